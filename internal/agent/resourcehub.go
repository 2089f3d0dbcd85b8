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

// ResourceHub scores the lead-generation machinery: landing pages, gated
// content, and resource offers. It owns the store's landing-page and
// gated-content collections. Depends on conversion so form findings exist
// before it grades gating strategy.
type ResourceHub struct {
	*BaseAgent
}

func NewResourceHub(st *store.ContextStore, llm schemas.LLMClient, logger *zap.Logger) *ResourceHub {
	a := &ResourceHub{BaseAgent: NewBase("resource_hub", []string{"website", "conversion"}, 1.0, st, llm, logger)}
	a.bind(a)
	return a
}

var resourceHubSpecs = []scoreSpec{
	{"landing_page_quality", "Landing Page Quality", 25},
	{"gated_content_strategy", "Gated Content Strategy", 20},
	{"form_optimization", "Form Optimization", 20},
	{"content_offer_variety", "Content Offer Variety", 20},
	{"lead_magnet_effectiveness", "Lead Magnet Effectiveness", 15},
}

var resourceMarkers = []string{"/resource", "/guide", "/ebook", "/whitepaper", "/webinar", "/template"}
var landingMarkers = []string{"/lp/", "/landing", "/offer", "/download"}

func (a *ResourceHub) Run(ctx context.Context) (*schemas.ModuleScore, error) {
	cfg := a.Store.Cfg()
	module := schemas.NewModuleScore("Resource Hub Analysis", a.Weight())

	var resourcePages, landingPages []*schemas.PageData
	var gated []schemas.ResourceEntry
	for url, page := range a.Store.Pages() {
		lower := strings.ToLower(url)
		if containsAny(lower, resourceMarkers) {
			resourcePages = append(resourcePages, page)
			if len(page.Forms) > 0 {
				gated = append(gated, schemas.ResourceEntry{URL: url, Title: page.Title, AssetType: "resource", Gated: true})
			}
		}
		if containsAny(lower, landingMarkers) {
			landingPages = append(landingPages, page)
		}
	}

	// No dedicated resource section: treat blog posts as the fallback
	// content offer inventory.
	if len(resourcePages) == 0 {
		for url, page := range a.Store.Pages() {
			if strings.Contains(strings.ToLower(url), "/blog") {
				resourcePages = append(resourcePages, page)
				if len(resourcePages) >= 5 {
					break
				}
			}
		}
	}

	landing := make([]schemas.ResourceEntry, 0, len(landingPages))
	for _, p := range landingPages {
		landing = append(landing, schemas.ResourceEntry{URL: p.URL, Title: p.Title, AssetType: "landing"})
	}
	a.Store.SetResources(landing, gated)

	if !a.LLMAvailable() {
		return a.fallback(module, len(resourcePages), len(landingPages), len(gated)), nil
	}

	prompt := fmt.Sprintf(`You are a demand-generation consultant auditing the resource hub of %s (%s).

Resource and landing page content:
%s

Gated content items found: %d
Landing pages found: %d

Respond in valid JSON:
{
  "scores": {
    "landing_page_quality": {"score": 0-25, "notes": "...", "recommendation": "...", "page_url": "..."},
    "gated_content_strategy": {"score": 0-20, "notes": "...", "recommendation": "..."},
    "form_optimization": {"score": 0-20, "notes": "...", "recommendation": "..."},
    "content_offer_variety": {"score": 0-20, "notes": "...", "recommendation": "..."},
    "lead_magnet_effectiveness": {"score": 0-15, "notes": "...", "recommendation": "..."}
  },
  "recommendations": [{"issue": "...", "recommendation": "...", "impact": "High|Medium|Low", "effort": "High|Medium|Low"}],
  "analysis": "2-3 paragraph narrative"
}`, cfg.CompanyName, cfg.CompanyWebsite,
		a.resourceContent(resourcePages, landingPages), len(gated), len(landingPages))

	result, err := a.LLM.CompleteJSON(ctx, schemas.GenerationRequest{Prompt: prompt, MaxTokens: 4000})
	if err != nil {
		a.Logger.Warn("Resource hub analysis degraded to heuristics", zap.Error(err))
		return a.fallback(module, len(resourcePages), len(landingPages), len(gated)), nil
	}

	resourceURL := cfg.CompanyWebsite
	if len(resourcePages) > 0 {
		resourceURL = resourcePages[0].URL
	}
	module.Items = itemsFromScores(result, resourceHubSpecs)
	module.Recommendations = recommendationsFrom(result, "Resource Hub", resourceURL, schemas.KPILeadConversion)
	module.AnalysisText = llmclient.Str(result, "analysis")
	module.RawData = map[string]any{
		"resource_pages": len(resourcePages),
		"landing_pages":  len(landingPages),
		"gated_content":  len(gated),
	}
	return module, nil
}

func (a *ResourceHub) resourceContent(resourcePages, landingPages []*schemas.PageData) string {
	var parts []string
	for _, page := range resourcePages {
		if len(parts) >= 6 {
			break
		}
		parts = append(parts, fmt.Sprintf("--- RESOURCE: %s ---\nTitle: %s\nForms: %d\nContent: %s",
			page.URL, page.Title, len(page.Forms), truncate(page.RawText, 2000)))
	}
	for _, page := range landingPages {
		if len(parts) >= 10 {
			break
		}
		parts = append(parts, fmt.Sprintf("--- LANDING PAGE: %s ---\nTitle: %s\nForms: %d\nCTAs: %d\nContent: %s",
			page.URL, page.Title, len(page.Forms), len(page.CTAs), truncate(page.RawText, 1500)))
	}
	return truncate(strings.Join(parts, "\n"), 12000)
}

func (a *ResourceHub) fallback(module *schemas.ModuleScore, resourceCount, landingCount, gatedCount int) *schemas.ModuleScore {
	site := a.Store.Cfg().CompanyWebsite
	resourceScore := minInt(resourceCount*4, 20)
	landingScore := minInt(landingCount*5, 20)
	gatedScore := minInt(gatedCount*4, 15)

	module.Items = []schemas.ScoreItem{
		{Name: "Landing Page Quality", Description: "Dedicated landing pages", MaxPoints: 25, ActualPoints: landingScore,
			Notes: fmt.Sprintf("Found %d landing pages", landingCount)},
		{Name: "Gated Content Strategy", Description: "Content behind forms", MaxPoints: 20, ActualPoints: gatedScore,
			Notes: fmt.Sprintf("Found %d gated resources", gatedCount)},
		{Name: "Form Optimization", Description: "Form length and design", MaxPoints: 20, ActualPoints: 10, Notes: "Manual review recommended"},
		{Name: "Content Offer Variety", Description: "Different content types", MaxPoints: 20, ActualPoints: resourceScore,
			Notes: fmt.Sprintf("Found %d resource pages", resourceCount)},
		{Name: "Lead Magnet Effectiveness", Description: "Value of gated content", MaxPoints: 15, ActualPoints: 7, Notes: "Manual review recommended"},
	}
	module.Recommendations = []schemas.Recommendation{
		{
			Issue:          "Resource hub structure not assessed",
			Recommendation: "Create a centralized '/resources' page organized by content type (eBooks, webinars, case studies) and buyer stage (awareness, consideration, decision)",
			Impact:         schemas.ImpactHigh,
			Effort:         schemas.EffortMedium,
			Category:       "Resource Hub",
			PageURL:        site,
			KPIImpact:      schemas.KPILeadConversion,
		},
		{
			Issue:          "Lead magnet strategy not assessed",
			Recommendation: "Develop a high-value bottom-of-funnel asset (ROI calculator, assessment tool, or benchmark report) to capture high-intent leads",
			Impact:         schemas.ImpactHigh,
			Effort:         schemas.EffortHigh,
			Category:       "Resource Hub",
			PageURL:        site,
			KPIImpact:      schemas.KPILeadConversion,
		},
	}
	module.AnalysisText = fmt.Sprintf(
		"Resource hub analysis completed.\n\n**Summary:**\n- Resource pages found: %d\n- Landing pages found: %d\n- Gated content items: %d\n\n"+
			"**Assessment:**\n%s\n%s\n%s",
		resourceCount, landingCount, gatedCount,
		checkmark(resourceCount > 0, "Has resource content", "No dedicated resource pages found"),
		checkmark(landingCount > 0, "Has landing pages", "No landing pages detected"),
		checkmark(gatedCount > 0, "Uses gated content", "No gated content strategy detected"))
	module.RawData = map[string]any{
		"resource_pages": resourceCount,
		"landing_pages":  landingCount,
		"gated_content":  gatedCount,
	}
	return module
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

func checkmark(ok bool, yes, no string) string {
	if ok {
		return "+ " + yes
	}
	return "- " + no
}
