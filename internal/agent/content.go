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

// Content scores content quality: freshness, depth, readability, visual
// support, variety, and thought leadership. The deterministic path only
// detects which content types exist.
type Content struct {
	*BaseAgent
}

func NewContent(st *store.ContextStore, llm schemas.LLMClient, logger *zap.Logger) *Content {
	a := &Content{BaseAgent: NewBase("content", []string{"website"}, 1.0, st, llm, logger)}
	a.bind(a)
	return a
}

var contentSpecs = []scoreSpec{
	{"content_freshness", "Content Freshness", 15},
	{"depth_value", "Depth & Value", 20},
	{"readability", "Readability", 15},
	{"visual_support", "Visual Support", 15},
	{"content_variety", "Content Variety", 15},
	{"thought_leadership", "Thought Leadership", 20},
}

func (a *Content) Run(ctx context.Context) (*schemas.ModuleScore, error) {
	cfg := a.Store.Cfg()
	module := schemas.NewModuleScore("Content Quality", a.Weight())

	hasBlog, hasResources, hasCaseStudies := false, false, false
	var samples []string
	for url, page := range a.Store.Pages() {
		lower := strings.ToLower(url)
		if strings.Contains(lower, "/blog") || strings.Contains(lower, "/posts") {
			hasBlog = true
		}
		if strings.Contains(lower, "/resource") || strings.Contains(lower, "/guide") || strings.Contains(lower, "/ebook") {
			hasResources = true
		}
		if strings.Contains(lower, "/case-stud") || strings.Contains(lower, "/customer") || strings.Contains(lower, "/success") {
			hasCaseStudies = true
		}
		samples = append(samples, fmt.Sprintf(
			"--- PAGE: %s ---\nTitle: %s\nHeadings: %s\nContent Preview: %s\nImages: %d images",
			url, page.Title,
			strings.Join(append(page.H1Tags, firstN(page.H2Tags, 3)...), ", "),
			truncate(page.RawText, 2500), len(page.Images)))
	}

	if !a.LLMAvailable() {
		return a.fallback(module, hasBlog, hasResources, hasCaseStudies), nil
	}

	prompt := fmt.Sprintf(`You are a content strategist auditing %s (%s).

Page content:
%s

Respond in valid JSON:
{
  "scores": {
    "content_freshness": {"score": 0-15, "notes": "...", "recommendation": "...", "page_url": "..."},
    "depth_value": {"score": 0-20, "notes": "...", "recommendation": "..."},
    "readability": {"score": 0-15, "notes": "...", "recommendation": "..."},
    "visual_support": {"score": 0-15, "notes": "...", "recommendation": "..."},
    "content_variety": {"score": 0-15, "notes": "...", "recommendation": "..."},
    "thought_leadership": {"score": 0-20, "notes": "...", "recommendation": "..."}
  },
  "strengths": ["..."],
  "weaknesses": ["..."],
  "recommendations": [{"issue": "...", "recommendation": "...", "impact": "High|Medium|Low", "effort": "High|Medium|Low"}],
  "analysis": "2-3 paragraph narrative"
}`, cfg.CompanyName, cfg.CompanyWebsite, truncate(strings.Join(samples, "\n"), 15000))

	result, err := a.LLM.CompleteJSON(ctx, schemas.GenerationRequest{Prompt: prompt, MaxTokens: 4000})
	if err != nil {
		a.Logger.Warn("Content analysis degraded to heuristics", zap.Error(err))
		return a.fallback(module, hasBlog, hasResources, hasCaseStudies), nil
	}

	module.Items = itemsFromScores(result, contentSpecs)

	contentURL := cfg.CompanyWebsite
	for url := range a.Store.Pages() {
		lower := strings.ToLower(url)
		if strings.Contains(lower, "/blog") || strings.Contains(lower, "/resource") {
			contentURL = url
			break
		}
	}
	module.Recommendations = recommendationsFrom(result, "Content Quality", contentURL, schemas.KPITraffic)

	module.AnalysisText = llmclient.Str(result, "analysis")
	module.RawData = map[string]any{
		"strengths":        llmclient.List(result, "strengths"),
		"weaknesses":       llmclient.List(result, "weaknesses"),
		"has_blog":         hasBlog,
		"has_resources":    hasResources,
		"has_case_studies": hasCaseStudies,
	}
	return module, nil
}

func (a *Content) fallback(module *schemas.ModuleScore, hasBlog, hasResources, hasCaseStudies bool) *schemas.ModuleScore {
	site := a.Store.Cfg().CompanyWebsite

	varietyScore := 5
	if hasBlog {
		varietyScore += 4
	}
	if hasResources {
		varietyScore += 3
	}
	if hasCaseStudies {
		varietyScore += 3
	}

	module.Items = []schemas.ScoreItem{
		{Name: "Content Freshness", Description: "Recent updates present", MaxPoints: 15, ActualPoints: 7, Notes: "Manual review recommended"},
		{Name: "Depth & Value", Description: "Substantive content", MaxPoints: 20, ActualPoints: 10, Notes: "Manual review recommended"},
		{Name: "Readability", Description: "Scannable, clear content", MaxPoints: 15, ActualPoints: 7, Notes: "Manual review recommended"},
		{Name: "Visual Support", Description: "Images enhance content", MaxPoints: 15, ActualPoints: 7, Notes: "Manual review recommended"},
		{Name: "Content Variety", Description: "Blog, case studies, resources", MaxPoints: 15, ActualPoints: varietyScore,
			Notes: fmt.Sprintf("Blog: %s, Resources: %s, Case Studies: %s", yesNo(hasBlog), yesNo(hasResources), yesNo(hasCaseStudies))},
		{Name: "Thought Leadership", Description: "Original insights", MaxPoints: 20, ActualPoints: 10, Notes: "Manual review recommended"},
	}
	module.Recommendations = []schemas.Recommendation{
		{
			Issue:          "Content depth not verified",
			Recommendation: "Add long-form content (1500+ words) on core product use cases with specific examples, data, and actionable takeaways",
			Impact:         schemas.ImpactHigh,
			Effort:         schemas.EffortHigh,
			Category:       "Content Quality",
			PageURL:        site,
			KPIImpact:      schemas.KPITraffic,
		},
		{
			Issue:          "Thought leadership not assessed",
			Recommendation: "Publish original research or proprietary data insights quarterly to establish subject matter authority",
			Impact:         schemas.ImpactHigh,
			Effort:         schemas.EffortHigh,
			Category:       "Content Quality",
			PageURL:        site,
			KPIImpact:      schemas.KPIBrandAwareness,
		},
	}
	if !hasCaseStudies {
		module.Recommendations = append(module.Recommendations, schemas.Recommendation{
			Issue:          "No case studies detected",
			Recommendation: "Create 2-3 customer case studies with measurable results (e.g., '40% reduction in X') to support bottom-of-funnel conversion",
			Impact:         schemas.ImpactHigh,
			Effort:         schemas.EffortMedium,
			Category:       "Content Quality",
			PageURL:        site,
			KPIImpact:      schemas.KPICloseRate,
		})
	}
	module.AnalysisText = fmt.Sprintf(
		"Basic content inventory: Blog present: %t, Resources section: %t, Case studies: %t. "+
			"Detailed quality assessment of depth, readability, and thought leadership requires manual review.",
		hasBlog, hasResources, hasCaseStudies)
	module.RawData = map[string]any{
		"has_blog":         hasBlog,
		"has_resources":    hasResources,
		"has_case_studies": hasCaseStudies,
	}
	return module
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
