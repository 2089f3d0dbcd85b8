package agent

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/vantagehq/marketscope/api/schemas"
	"github.com/vantagehq/marketscope/internal/llmclient"
	"github.com/vantagehq/marketscope/internal/store"
)

// Positioning scores value-proposition clarity, differentiation, ICP
// alignment, and messaging consistency. It is the highest-weighted module;
// the jobs-to-be-done analysis it leaves in raw data feeds the competitor
// and critique agents.
type Positioning struct {
	*BaseAgent
}

func NewPositioning(st *store.ContextStore, llm schemas.LLMClient, logger *zap.Logger) *Positioning {
	a := &Positioning{BaseAgent: NewBase("positioning", []string{"website"}, 2.0, st, llm, logger)}
	a.bind(a)
	return a
}

var positioningSpecs = []scoreSpec{
	{"value_proposition_clarity", "Value Proposition Clarity", 20},
	{"differentiation", "Differentiation", 20},
	{"icp_alignment", "ICP Alignment & JTBD", 15},
	{"pain_point_articulation", "Pain Point Articulation", 15},
	{"outcome_focus", "Outcome Focus", 15},
	{"consistency", "Consistency", 15},
}

func (a *Positioning) Plan() string {
	return fmt.Sprintf(
		"Positioning analysis of %s: identify the job to be done, check value propositions against generic claims, assess differentiation, draft messaging repairs",
		a.Store.Cfg().CompanyName)
}

func (a *Positioning) Run(ctx context.Context) (*schemas.ModuleScore, error) {
	cfg := a.Store.Cfg()
	module := schemas.NewModuleScore("Positioning & Messaging", a.Weight())

	content := a.PagesDigest(15000)
	if content == "" {
		module.AnalysisText = "No content available for analysis."
		return module, nil
	}

	if !a.LLMAvailable() {
		return a.fallback(module), nil
	}

	prompt := fmt.Sprintf(`You are a B2B positioning strategist auditing %s (%s) in the %s industry.

Website content:
%s

Evaluate positioning and messaging. Respond in valid JSON:
{
  "scores": {
    "value_proposition_clarity": {"score": 0-20, "notes": "...", "recommendation": "...", "page_url": "..."},
    "differentiation": {"score": 0-20, "notes": "...", "recommendation": "..."},
    "icp_alignment": {"score": 0-15, "notes": "...", "recommendation": "..."},
    "pain_point_articulation": {"score": 0-15, "notes": "...", "recommendation": "..."},
    "outcome_focus": {"score": 0-15, "notes": "...", "recommendation": "..."},
    "consistency": {"score": 0-15, "notes": "...", "recommendation": "..."}
  },
  "strengths": ["..."],
  "weaknesses": ["..."],
  "jtbd_analysis": {"functional_job": "...", "emotional_job": "...", "recommended_assets": [{"type": "...", "description": "..."}]},
  "messaging_house": {"core_pillar": "...", "support_pillars": ["..."]},
  "recommendations": [{"issue": "...", "recommendation": "...", "impact": "High|Medium|Low", "effort": "High|Medium|Low", "business_impact": "..."}],
  "analysis": "2-3 paragraph narrative"
}`, cfg.CompanyName, cfg.CompanyWebsite, cfg.Industry, content)

	result, err := a.LLM.CompleteJSON(ctx, schemas.GenerationRequest{Prompt: prompt, MaxTokens: 4000})
	if err != nil {
		a.Logger.Warn("Positioning analysis degraded to heuristics", zap.Error(err))
		return a.fallback(module), nil
	}

	if missing := llmclient.ValidateResponse(result, []string{"scores", "analysis"}); len(missing) > 0 {
		a.Logger.Warn("Incomplete positioning response", zap.Strings("missing", missing))
		return a.fallback(module), nil
	}

	jtbd := llmclient.Obj(result, "jtbd_analysis")
	if llmclient.Str(jtbd, "functional_job") == "" {
		jtbd["functional_job"] = "Not clearly articulated on the website"
	}
	if llmclient.Str(jtbd, "emotional_job") == "" {
		jtbd["emotional_job"] = "Not clearly articulated on the website"
	}
	if len(llmclient.List(jtbd, "recommended_assets")) == 0 {
		jtbd["recommended_assets"] = []any{
			map[string]any{"type": "Case Study", "description": "Customer success story demonstrating core value proposition"},
			map[string]any{"type": "Comparison Guide", "description": "Side-by-side comparison against key alternatives"},
			map[string]any{"type": "ROI Calculator", "description": "Interactive tool quantifying business outcomes"},
		}
	}
	house := llmclient.Obj(result, "messaging_house")
	if llmclient.Str(house, "core_pillar") == "" {
		house["core_pillar"] = "No clear umbrella message identified"
	}

	module.Items = itemsFromScores(result, positioningSpecs)

	homeURL := cfg.CompanyWebsite
	if home := a.Store.Homepage(); home != nil {
		homeURL = home.URL
	}
	module.Recommendations = recommendationsFrom(result, "Positioning & Messaging", homeURL, schemas.KPICloseRate)

	module.RawData = map[string]any{
		"strengths":       llmclient.List(result, "strengths"),
		"weaknesses":      llmclient.List(result, "weaknesses"),
		"jtbd_analysis":   jtbd,
		"messaging_house": house,
	}
	module.AnalysisText = llmclient.Str(result, "analysis") + jtbdSummary(jtbd)
	return module, nil
}

func jtbdSummary(jtbd map[string]any) string {
	var assets []string
	for _, entry := range llmclient.List(jtbd, "recommended_assets") {
		if raw, ok := entry.(map[string]any); ok {
			assets = append(assets, fmt.Sprintf("- %s: %s", llmclient.Str(raw, "type"), llmclient.Str(raw, "description")))
		}
	}
	assetText := "No specific assets recommended."
	if len(assets) > 0 {
		assetText = strings.Join(assets, "\n")
	}
	return fmt.Sprintf("\n\n**Jobs to be Done Analysis:**\n- **Functional Job:** %s\n- **Emotional Job:** %s\n\n**Recommended Assets:**\n%s",
		llmclient.Str(jtbd, "functional_job"), llmclient.Str(jtbd, "emotional_job"), assetText)
}

func (a *Positioning) fallback(module *schemas.ModuleScore) *schemas.ModuleScore {
	site := a.Store.Cfg().CompanyWebsite
	module.Items = []schemas.ScoreItem{
		{Name: "Value Proposition Clarity", Description: "Is the value prop clear?", MaxPoints: 20, ActualPoints: 10, Notes: "Analysis unavailable"},
		{Name: "Differentiation", Description: "Is differentiation clear?", MaxPoints: 20, ActualPoints: 10, Notes: "Analysis unavailable"},
		{Name: "ICP Alignment & JTBD", Description: "Is ICP targeted?", MaxPoints: 15, ActualPoints: 7, Notes: "Analysis unavailable"},
		{Name: "Pain Point Articulation", Description: "Are pain points addressed?", MaxPoints: 15, ActualPoints: 7, Notes: "Analysis unavailable"},
		{Name: "Outcome Focus", Description: "Are outcomes emphasized?", MaxPoints: 15, ActualPoints: 7, Notes: "Analysis unavailable"},
		{Name: "Consistency", Description: "Is messaging consistent?", MaxPoints: 15, ActualPoints: 7, Notes: "Analysis unavailable"},
	}
	module.Recommendations = []schemas.Recommendation{
		{
			Issue:          "Value proposition clarity needs review",
			Recommendation: "Audit homepage H1 and subheadline to ensure a new visitor understands what you do, who you serve, and why you're different within 5 seconds",
			Impact:         schemas.ImpactHigh,
			Effort:         schemas.EffortLow,
			Category:       "Positioning & Messaging",
			PageURL:        site,
			KPIImpact:      schemas.KPICloseRate,
		},
		{
			Issue:          "Differentiation not assessed",
			Recommendation: "Create a 'Why Us' section on the homepage that explicitly contrasts your approach against alternatives, avoiding generic claims like 'best-in-class'",
			Impact:         schemas.ImpactHigh,
			Effort:         schemas.EffortMedium,
			Category:       "Positioning & Messaging",
			PageURL:        site,
			KPIImpact:      schemas.KPICloseRate,
		},
	}
	module.RawData = map[string]any{
		"jtbd_analysis": map[string]any{
			"functional_job": "Unknown (analysis unavailable)",
			"emotional_job":  "Unknown (analysis unavailable)",
		},
	}
	module.AnalysisText = "Detailed positioning analysis requires text-generation access. " +
		"Scores reflect a neutral midpoint pending manual review of value proposition, differentiation, and messaging consistency."
	return module
}

// SelfAudit additionally requires all six criteria and, when generation is
// available, at least two recommendations.
func (a *Positioning) SelfAudit() bool {
	if !a.BaseAgent.SelfAudit() {
		return false
	}
	score := a.Analysis().ModuleScore
	if len(score.Items) < 6 {
		return false
	}
	if a.LLMAvailable() && len(score.Recommendations) < 2 {
		return false
	}
	return true
}
