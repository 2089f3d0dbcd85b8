package agent

import (
	"strings"

	"github.com/vantagehq/marketscope/api/schemas"
	"github.com/vantagehq/marketscope/internal/llmclient"
)

// scoreSpec maps one key of an LLM "scores" object onto a display name and
// a point budget.
type scoreSpec struct {
	key  string
	name string
	max  int
}

// itemsFromScores converts the "scores" object of an LLM response into
// score items following the spec order. Missing keys are skipped and
// points are clamped to the budget, so a hallucinated score can never
// inflate a module.
func itemsFromScores(result map[string]any, specs []scoreSpec) []schemas.ScoreItem {
	scores := llmclient.Obj(result, "scores")
	var items []schemas.ScoreItem
	for _, spec := range specs {
		raw, ok := scores[spec.key].(map[string]any)
		if !ok {
			continue
		}
		pts := int(llmclient.Num(raw, "score"))
		if pts > spec.max {
			pts = spec.max
		}
		if pts < 0 {
			pts = 0
		}
		items = append(items, schemas.ScoreItem{
			Name:           spec.name,
			Description:    "Evaluates " + strings.ToLower(spec.name),
			MaxPoints:      spec.max,
			ActualPoints:   pts,
			Notes:          llmclient.Str(raw, "notes"),
			Recommendation: llmclient.Str(raw, "recommendation"),
			BusinessImpact: llmclient.Str(raw, "business_impact"),
			PageURL:        llmclient.Str(raw, "page_url"),
		})
	}
	return items
}

func impactFrom(s string) schemas.Impact {
	switch strings.ToLower(s) {
	case "high":
		return schemas.ImpactHigh
	case "low":
		return schemas.ImpactLow
	default:
		return schemas.ImpactMedium
	}
}

func effortFrom(s string) schemas.Effort {
	switch strings.ToLower(s) {
	case "high":
		return schemas.EffortHigh
	case "low":
		return schemas.EffortLow
	default:
		return schemas.EffortMedium
	}
}

// recommendationsFrom converts the "recommendations" list of an LLM
// response, stamping each entry with the module category, a fallback page
// URL, and the module's primary KPI.
func recommendationsFrom(result map[string]any, category, fallbackURL string, kpi schemas.KPI) []schemas.Recommendation {
	var recs []schemas.Recommendation
	for _, entry := range llmclient.List(result, "recommendations") {
		raw, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		rec := schemas.Recommendation{
			Issue:          llmclient.Str(raw, "issue"),
			Recommendation: llmclient.Str(raw, "recommendation"),
			Impact:         impactFrom(llmclient.Str(raw, "impact")),
			Effort:         effortFrom(llmclient.Str(raw, "effort")),
			BusinessImpact: llmclient.Str(raw, "business_impact"),
			Category:       category,
			PageURL:        llmclient.Str(raw, "page_url"),
			KPIImpact:      kpi,
		}
		if rec.Issue == "" && rec.Recommendation == "" {
			continue
		}
		if rec.PageURL == "" {
			rec.PageURL = fallbackURL
		}
		recs = append(recs, rec)
	}
	return recs
}
