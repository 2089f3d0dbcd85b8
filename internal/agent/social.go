package agent

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/vantagehq/marketscope/api/schemas"
	"github.com/vantagehq/marketscope/internal/llmclient"
	"github.com/vantagehq/marketscope/internal/store"
)

// Social scores social media presence from the profile links found during
// the crawl. It owns the store's social-links collection. Engagement
// metrics need platform API access, so most criteria are estimates flagged
// for manual review.
type Social struct {
	*BaseAgent
}

func NewSocial(st *store.ContextStore, llm schemas.LLMClient, logger *zap.Logger) *Social {
	a := &Social{BaseAgent: NewBase("social", []string{"website"}, 1.0, st, llm, logger)}
	a.bind(a)
	return a
}

var socialSpecs = []scoreSpec{
	{"presence", "Social Presence", 10},
	{"posting_frequency", "Posting Frequency", 15},
	{"engagement_rate", "Engagement Rate", 25},
	{"content_mix", "Content Mix", 15},
	{"brand_consistency", "Brand Consistency", 15},
	{"best_practices", "Best Practices", 20},
}

func (a *Social) Run(ctx context.Context) (*schemas.ModuleScore, error) {
	cfg := a.Store.Cfg()
	module := schemas.NewModuleScore("Social Media", a.Weight())

	// Collect profile links from every crawled page.
	links := make(map[string]string)
	for _, page := range a.Store.Pages() {
		for platform, url := range page.SocialLinks {
			if _, ok := links[platform]; !ok {
				links[platform] = url
			}
		}
	}
	a.Store.SetSocialLinks(links)

	if len(links) == 0 {
		return a.noPresence(module), nil
	}

	if !a.LLMAvailable() {
		return a.fallback(module, links), nil
	}

	var profiles []string
	for _, platform := range sortedKeys(links) {
		profiles = append(profiles, fmt.Sprintf("**%s**: %s", titleCase(platform), links[platform]))
	}

	prompt := fmt.Sprintf(`You are a B2B social media strategist assessing %s (%s).

Social profiles found on the website:
%s

Detailed engagement metrics require API access; assess presence, platform selection for B2B,
and profile completeness from the URLs found. Platforms not found should be noted.

Respond in valid JSON:
{
  "scores": {
    "presence": {"score": 0-10, "notes": "...", "recommendation": "..."},
    "posting_frequency": {"score": 0-15, "notes": "...", "recommendation": "..."},
    "engagement_rate": {"score": 0-25, "notes": "...", "recommendation": "..."},
    "content_mix": {"score": 0-15, "notes": "...", "recommendation": "..."},
    "brand_consistency": {"score": 0-15, "notes": "...", "recommendation": "..."},
    "best_practices": {"score": 0-20, "notes": "...", "recommendation": "..."}
  },
  "recommendations": [{"issue": "...", "recommendation": "...", "impact": "High|Medium|Low", "effort": "High|Medium|Low"}],
  "analysis": "2-3 paragraph narrative"
}`, cfg.CompanyName, cfg.CompanyWebsite, strings.Join(profiles, "\n"))

	result, err := a.LLM.CompleteJSON(ctx, schemas.GenerationRequest{Prompt: prompt, MaxTokens: 3000})
	if err != nil {
		a.Logger.Warn("Social analysis degraded to heuristics", zap.Error(err))
		return a.fallback(module, links), nil
	}

	fallbackURL := cfg.CompanyWebsite
	if url, ok := links["linkedin"]; ok {
		fallbackURL = url
	}
	module.Items = itemsFromScores(result, socialSpecs)
	module.Recommendations = recommendationsFrom(result, "Social Media", fallbackURL, schemas.KPIBrandAwareness)
	module.AnalysisText = llmclient.Str(result, "analysis")
	module.RawData = map[string]any{
		"platforms_found": sortedKeys(links),
		"platform_urls":   links,
	}
	return module, nil
}

func (a *Social) noPresence(module *schemas.ModuleScore) *schemas.ModuleScore {
	site := a.Store.Cfg().CompanyWebsite
	module.Items = []schemas.ScoreItem{
		{Name: "Social Presence", Description: "Active accounts exist", MaxPoints: 100, ActualPoints: 0,
			Notes: "No social media links found on website"},
	}
	module.Recommendations = []schemas.Recommendation{
		{
			Issue:          "No social media links found on website",
			Recommendation: "Add social media links to website footer/header and create profiles on LinkedIn and Twitter/X at minimum",
			Impact:         schemas.ImpactHigh,
			Effort:         schemas.EffortMedium,
			Category:       "Social Media",
			PageURL:        site,
			KPIImpact:      schemas.KPIBrandAwareness,
		},
	}
	module.AnalysisText = "No social media profile links were detected anywhere on the crawled pages. " +
		"Either the company has no social presence or the profiles are not linked from the website, which itself costs discoverability."
	module.RawData = map[string]any{"platforms_found": []string{}}
	return module
}

func (a *Social) fallback(module *schemas.ModuleScore, links map[string]string) *schemas.ModuleScore {
	platforms := sortedKeys(links)
	presenceScore := minInt(len(platforms)*2, 10)

	module.Items = []schemas.ScoreItem{
		{Name: "Social Presence", Description: "Active accounts exist", MaxPoints: 10, ActualPoints: presenceScore,
			Notes: "Found: " + strings.Join(platforms, ", ")},
		{Name: "Posting Frequency", Description: "Consistent posting", MaxPoints: 15, ActualPoints: 7,
			Notes: "Manual review required - API access needed for metrics"},
		{Name: "Engagement Rate", Description: "Engagement relative to followers", MaxPoints: 25, ActualPoints: 12,
			Notes: "Manual review required - API access needed for metrics"},
		{Name: "Content Mix", Description: "Content variety", MaxPoints: 15, ActualPoints: 7, Notes: "Manual review required"},
		{Name: "Brand Consistency", Description: "Visual/messaging alignment", MaxPoints: 15, ActualPoints: 7, Notes: "Manual review required"},
		{Name: "Best Practices", Description: "Platform optimization", MaxPoints: 20, ActualPoints: 10, Notes: "Manual review required"},
	}

	linkedinURL := a.Store.Cfg().CompanyWebsite
	if url, ok := links["linkedin"]; ok {
		linkedinURL = url
	}
	module.Recommendations = []schemas.Recommendation{
		{
			Issue:          "Social engagement strategy not assessed",
			Recommendation: "Shift from broadcasting link drops to engagement: reply to comments, ask questions, and share employee thought leadership on LinkedIn",
			Impact:         schemas.ImpactMedium,
			Effort:         schemas.EffortLow,
			Category:       "Social Media",
			PageURL:        linkedinURL,
			KPIImpact:      schemas.KPIBrandAwareness,
		},
		{
			Issue:          "Content sharing not assessed",
			Recommendation: "Add social sharing buttons to blog posts and resource pages to amplify content distribution",
			Impact:         schemas.ImpactMedium,
			Effort:         schemas.EffortLow,
			Category:       "Social Media",
			PageURL:        a.Store.Cfg().CompanyWebsite,
			KPIImpact:      schemas.KPITraffic,
		},
	}
	module.AnalysisText = fmt.Sprintf(
		"Social media profiles detected: %s\n\n"+
			"Detailed social media metrics (engagement rates, posting frequency) require either API access "+
			"to each platform or manual review. The scores above are estimates based on presence detection only. "+
			"For a complete social media audit, manual review of the last 15-20 posts on each platform is recommended.",
		commaJoinOr(platforms, "None"))
	module.RawData = map[string]any{
		"platforms_found": platforms,
		"platform_urls":   links,
	}
	return module
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func commaJoinOr(parts []string, fallback string) string {
	if len(parts) == 0 {
		return fallback
	}
	return strings.Join(parts, ", ")
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
