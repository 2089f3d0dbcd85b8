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

// TopPages grades the five most commercially important pages and requests
// screenshots for each. It owns the store's critical-pages collection;
// screenshot fulfillment and cross-linking happen after the analysis
// phases.
type TopPages struct {
	*BaseAgent
}

func NewTopPages(st *store.ContextStore, llm schemas.LLMClient, logger *zap.Logger) *TopPages {
	a := &TopPages{BaseAgent: NewBase("top5_pages", []string{"website", "positioning"}, 1.5, st, llm, logger)}
	a.bind(a)
	return a
}

// criticalPageSpec defines one slot in the top-five lineup and the URL
// patterns that fill it.
type criticalPageSpec struct {
	pageType string
	patterns []string
}

var criticalPageSpecs = []criticalPageSpec{
	{"homepage", []string{""}},
	{"product", []string{"/product", "/platform", "/features"}},
	{"solutions", []string{"/solutions", "/use-cases"}},
	{"pricing", []string{"/pricing", "/plans"}},
	{"about", []string{"/about", "/about-us", "/company", "/team"}},
}

func (a *TopPages) Run(ctx context.Context) (*schemas.ModuleScore, error) {
	cfg := a.Store.Cfg()
	module := schemas.NewModuleScore("Top 5 Critical Pages", a.Weight())

	criticalPages := a.findCriticalPages()
	if len(criticalPages) == 0 {
		module.AnalysisText = "Could not identify critical pages for analysis."
		return module, nil
	}

	// Full page plus hero and CTA element captures for the report.
	for _, cp := range criticalPages {
		a.RequestScreenshot(cp.URL, "")
		a.RequestScreenshot(cp.URL, "header, .hero, h1")
		a.RequestScreenshot(cp.URL, ".cta, [class*='cta'], a[class*='button'], button[class*='primary']")
	}

	if !a.LLMAvailable() {
		return a.fallback(module, criticalPages), nil
	}

	prompt := fmt.Sprintf(`You are a conversion-focused web design auditor grading the critical pages of %s (%s).

%s

Grade each page 0-100 with a letter grade. Respond in valid JSON:
{
  "page_grades": {
    "homepage": {"grade": "A-F", "score": 0-100, "strengths": ["..."], "weaknesses": ["..."], "recommendations": ["..."]},
    "product": {...}, "solutions": {...}, "pricing": {...}, "about": {...}
  },
  "recommendations": [{"issue": "...", "recommendation": "...", "impact": "High|Medium|Low", "effort": "High|Medium|Low", "page_type": "homepage|product|solutions|pricing|about"}],
  "overall_analysis": "2-3 paragraph narrative"
}`, cfg.CompanyName, cfg.CompanyWebsite, a.pagesContent(criticalPages))

	result, err := a.LLM.CompleteJSON(ctx, schemas.GenerationRequest{Prompt: prompt, MaxTokens: 4000})
	if err != nil {
		a.Logger.Warn("Critical pages analysis degraded to heuristics", zap.Error(err))
		return a.fallback(module, criticalPages), nil
	}

	grades := llmclient.Obj(result, "page_grades")
	for _, cp := range criticalPages {
		if raw, ok := grades[cp.PageType].(map[string]any); ok {
			cp.Grade = orDefault(llmclient.Str(raw, "grade"), "C")
			cp.Score = llmclient.Num(raw, "score")
			if cp.Score == 0 {
				cp.Score = 50
			}
			cp.Strengths = llmclient.StrList(raw, "strengths")
			cp.Weaknesses = llmclient.StrList(raw, "weaknesses")
			cp.Recommendations = llmclient.StrList(raw, "recommendations")
		}
		module.Items = append(module.Items, schemas.ScoreItem{
			Name:           titleCase(cp.PageType) + " Page",
			Description:    fmt.Sprintf("Quality of %s page", cp.PageType),
			MaxPoints:      20,
			ActualPoints:   int(cp.Score / 5),
			Notes:          fmt.Sprintf("Grade: %s - %s", cp.Grade, weaknessSummary(cp.Weaknesses)),
			Recommendation: firstOr(cp.Recommendations, ""),
			PageURL:        cp.URL,
		})
	}
	a.Store.SetCriticalPages(criticalPages)

	pageKPI := map[string]schemas.KPI{
		"homepage":  schemas.KPITraffic,
		"product":   schemas.KPIEngagement,
		"solutions": schemas.KPILeadConversion,
		"pricing":   schemas.KPICloseRate,
		"about":     schemas.KPICustomerTrust,
	}
	for _, entry := range llmclient.List(result, "recommendations") {
		raw, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		pageType := strings.ToLower(llmclient.Str(raw, "page_type"))
		pageURL := llmclient.Str(raw, "page_url")
		if pageURL == "" {
			for _, cp := range criticalPages {
				if cp.PageType == pageType {
					pageURL = cp.URL
					break
				}
			}
		}
		if pageURL == "" {
			pageURL = cfg.CompanyWebsite
		}
		kpi, ok := pageKPI[pageType]
		if !ok {
			kpi = schemas.KPILeadConversion
		}
		module.Recommendations = append(module.Recommendations, schemas.Recommendation{
			Issue:          llmclient.Str(raw, "issue"),
			Recommendation: llmclient.Str(raw, "recommendation"),
			Impact:         impactFrom(llmclient.Str(raw, "impact")),
			Effort:         effortFrom(llmclient.Str(raw, "effort")),
			Category:       "Critical Pages",
			PageURL:        pageURL,
			KPIImpact:      kpi,
		})
	}

	module.AnalysisText = llmclient.Str(result, "overall_analysis")
	module.RawData = map[string]any{
		"pages_analyzed": pageTypes(criticalPages),
		"page_grades":    grades,
		"average_score":  averageScore(criticalPages),
	}
	return module, nil
}

func (a *TopPages) findCriticalPages() []*schemas.CriticalPage {
	base := strings.TrimRight(a.Store.Cfg().CompanyWebsite, "/")
	var found []*schemas.CriticalPage

	for _, spec := range criticalPageSpecs {
		var match *schemas.PageData
		for _, pattern := range spec.patterns {
			if pattern == "" {
				match = a.Store.GetPage(base)
				if match == nil {
					match = a.Store.Homepage()
				}
			} else {
				for url, page := range a.Store.Pages() {
					if strings.Contains(strings.ToLower(url), pattern) {
						match = page
						break
					}
				}
			}
			if match != nil {
				break
			}
		}
		if match != nil {
			found = append(found, &schemas.CriticalPage{PageType: spec.pageType, URL: match.URL, MaxScore: 100})
		}
	}
	return found
}

func (a *TopPages) pagesContent(criticalPages []*schemas.CriticalPage) string {
	var parts []string
	for _, cp := range criticalPages {
		page := a.Store.GetPage(cp.URL)
		if page == nil {
			continue
		}
		ctaTexts := make([]string, 0, 5)
		for _, cta := range page.CTAs {
			ctaTexts = append(ctaTexts, cta.Text)
			if len(ctaTexts) == 5 {
				break
			}
		}
		withAlt := 0
		for _, img := range page.Images {
			if img.Alt != "" {
				withAlt++
			}
		}
		parts = append(parts, fmt.Sprintf(
			"--- %s PAGE: %s ---\nTitle: %s\nMeta Description: %s\nH1: %s\nH2: %s\nCTAs: %s\nForms: %d forms found\nImages: %d images (%d with alt text)\nContent:\n%s",
			strings.ToUpper(cp.PageType), cp.URL, page.Title, page.MetaDescription,
			strings.Join(page.H1Tags, ", "), strings.Join(firstN(page.H2Tags, 6), ", "),
			strings.Join(ctaTexts, ", "), len(page.Forms), len(page.Images), withAlt,
			truncate(page.RawText, 4000)))
	}
	return strings.Join(parts, "\n")
}

func (a *TopPages) fallback(module *schemas.ModuleScore, criticalPages []*schemas.CriticalPage) *schemas.ModuleScore {
	for _, cp := range criticalPages {
		page := a.Store.GetPage(cp.URL)
		if page == nil {
			continue
		}
		score := 50.0
		if len(page.H1Tags) > 0 {
			score += 10
		}
		if len(page.MetaDescription) > 50 {
			score += 10
		}
		if len(page.CTAs) > 0 {
			score += 10
		}
		if len(page.RawText) > 500 {
			score += 10
		}
		if len(page.Images) > 0 {
			score += 10
		}
		if score > 100 {
			score = 100
		}
		cp.Score = score
		cp.Grade = heuristicGrade(score)
		cp.Weaknesses = []string{"Detailed analysis requires manual review"}

		module.Items = append(module.Items, schemas.ScoreItem{
			Name:         titleCase(cp.PageType) + " Page",
			Description:  fmt.Sprintf("Quality of %s page", cp.PageType),
			MaxPoints:    20,
			ActualPoints: int(cp.Score / 5),
			Notes:        fmt.Sprintf("Grade: %s (basic heuristic)", cp.Grade),
			PageURL:      cp.URL,
		})
	}
	a.Store.SetCriticalPages(criticalPages)

	var lines []string
	for _, cp := range criticalPages {
		lines = append(lines, fmt.Sprintf("- %s: %s (Grade: %s)", titleCase(cp.PageType), cp.URL, cp.Grade))
	}
	module.AnalysisText = fmt.Sprintf(
		"Analyzed %d critical pages using basic heuristics.\n\n**Pages Found:**\n%s\n\n**Average Score:** %.0f/100\n\n"+
			"Detailed page-by-page grading with specific recommendations requires manual review.",
		len(criticalPages), strings.Join(lines, "\n"), averageScore(criticalPages))
	module.RawData = map[string]any{
		"pages_analyzed": pageTypes(criticalPages),
		"average_score":  averageScore(criticalPages),
	}
	return module
}

// SelfAudit additionally requires at least three graded pages; a lineup
// missing homepage, product, and pricing is not worth reporting on.
func (a *TopPages) SelfAudit() bool {
	if !a.BaseAgent.SelfAudit() {
		return false
	}
	return len(a.Store.CriticalPages()) >= 3
}

func heuristicGrade(score float64) string {
	switch {
	case score >= 90:
		return "A"
	case score >= 80:
		return "B"
	case score >= 70:
		return "C"
	case score >= 60:
		return "D"
	default:
		return "F"
	}
}

func weaknessSummary(weaknesses []string) string {
	if len(weaknesses) == 0 {
		return "Good overall"
	}
	return strings.Join(firstN(weaknesses, 2), ", ")
}

func pageTypes(pages []*schemas.CriticalPage) []string {
	types := make([]string, 0, len(pages))
	for _, cp := range pages {
		types = append(types, cp.PageType)
	}
	return types
}

func averageScore(pages []*schemas.CriticalPage) float64 {
	if len(pages) == 0 {
		return 0
	}
	sum := 0.0
	for _, cp := range pages {
		sum += cp.Score
	}
	return sum / float64(len(pages))
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
