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

// Competitor compares the client's positioning against configured or
// discovered competitors. It fetches each competitor's homepage through
// the crawl collaborator with a one-page budget. A run with zero
// competitors still completes with a neutral placeholder score.
type Competitor struct {
	*BaseAgent
	crawler schemas.Crawler
}

func NewCompetitor(st *store.ContextStore, crawler schemas.Crawler, llm schemas.LLMClient, logger *zap.Logger) *Competitor {
	a := &Competitor{
		BaseAgent: NewBase("competitor", []string{"website", "positioning"}, 1.0, st, llm, logger),
		crawler:   crawler,
	}
	a.bind(a)
	return a
}

func (a *Competitor) Run(ctx context.Context) (*schemas.ModuleScore, error) {
	cfg := a.Store.Cfg()
	module := schemas.NewModuleScore("Competitive Positioning", a.Weight())

	urls := a.competitorURLs()
	if len(urls) == 0 {
		discovered := a.discoverCompetitors(ctx)
		if len(discovered) == 0 {
			module.AnalysisText = "No competitors specified and discovery was unsuccessful."
			module.Items = []schemas.ScoreItem{
				{Name: "Competitor Analysis", Description: "Competitive positioning review",
					MaxPoints: 100, ActualPoints: 50, Notes: "No competitors found"},
			}
			module.RawData = map[string]any{"competitors": []any{}}
			return module, nil
		}
		urls = discovered
	}

	if len(urls) > 5 {
		urls = urls[:5]
	}
	homepages := a.fetchHomepages(ctx, urls)
	if len(homepages) == 0 {
		module.AnalysisText = "Could not fetch any competitor websites."
		module.Items = []schemas.ScoreItem{
			{Name: "Competitor Analysis", Description: "Competitive positioning review",
				MaxPoints: 100, ActualPoints: 50, Notes: "Could not fetch competitors"},
		}
		module.RawData = map[string]any{"competitors": []any{}}
		return module, nil
	}

	if !a.LLMAvailable() {
		return a.fallback(module, homepages), nil
	}

	homeURL := cfg.CompanyWebsite
	if home := a.Store.Homepage(); home != nil {
		homeURL = home.URL
	}

	prompt := fmt.Sprintf(`You are a competitive intelligence analyst comparing %s (%s) against its competitors.

CLIENT:
%s

COMPETITORS:
%s

Respond in valid JSON:
{
  "competitors": [{"url": "...", "name": "...", "positioning": "...", "strengths": ["..."], "weaknesses": ["..."]}],
  "client_positioning": {"summary": "...", "key_differentiators": ["..."]},
  "positioning_gaps": ["..."],
  "positioning_opportunities": ["..."],
  "recommendations": [{"issue": "...", "recommendation": "...", "impact": "High|Medium|Low", "effort": "High|Medium|Low"}],
  "comparison_analysis": "2-3 paragraph narrative"
}`, cfg.CompanyName, cfg.CompanyWebsite, a.clientContent(), formatHomepages(homepages))

	result, err := a.LLM.CompleteJSON(ctx, schemas.GenerationRequest{Prompt: prompt, MaxTokens: 3000})
	if err != nil {
		a.Logger.Warn("Competitor analysis degraded to heuristics", zap.Error(err))
		return a.fallback(module, homepages), nil
	}

	// Promote the LLM's read of each competitor into the store profiles.
	profiles := a.Store.Competitors()
	for _, entry := range llmclient.List(result, "competitors") {
		raw, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		url := llmclient.Str(raw, "url")
		for i := range profiles {
			if strings.Contains(url, profiles[i].URL) || strings.Contains(profiles[i].URL, url) {
				profiles[i].Name = orDefault(llmclient.Str(raw, "name"), profiles[i].Name)
				profiles[i].Strengths = llmclient.StrList(raw, "strengths")
				profiles[i].Weaknesses = llmclient.StrList(raw, "weaknesses")
				profiles[i].Notes = llmclient.Str(raw, "positioning")
			}
		}
	}
	a.Store.SetCompetitors(profiles)

	clientPos := llmclient.Obj(result, "client_positioning")
	diffCount := len(llmclient.StrList(clientPos, "key_differentiators"))
	gaps := llmclient.StrList(result, "positioning_gaps")
	opportunities := llmclient.StrList(result, "positioning_opportunities")

	diffScore, diffNotes := differentiationBand(diffCount)
	module.Items = append(module.Items, schemas.ScoreItem{
		Name:           "Differentiation Clarity",
		Description:    "How clearly the company differentiates from competitors",
		MaxPoints:      35,
		ActualPoints:   diffScore,
		Notes:          diffNotes,
		Recommendation: unless(diffCount >= 3, "Strengthen differentiation by identifying and claiming a unique category position that competitors cannot replicate"),
		PageURL:        homeURL,
	})

	gapScore, gapNotes := gapBand(len(gaps))
	gapRec := ""
	if len(gaps) > 1 {
		gapRec = fmt.Sprintf("Address the %d positioning gaps: %s", len(gaps), strings.Join(firstN(gaps, 2), "; "))
	}
	module.Items = append(module.Items, schemas.ScoreItem{
		Name:           "Positioning Completeness",
		Description:    "Coverage of key positioning elements",
		MaxPoints:      35,
		ActualPoints:   gapScore,
		Notes:          gapNotes,
		Recommendation: gapRec,
		PageURL:        homeURL,
	})

	oppScore := minInt(len(opportunities)*10, 30)
	oppRec := "Conduct competitive research to identify differentiation angles"
	oppNotes := "Limited opportunities found"
	if len(opportunities) > 0 {
		oppRec = "Pursue top opportunity: " + opportunities[0]
		oppNotes = fmt.Sprintf("%d opportunities identified", len(opportunities))
	}
	module.Items = append(module.Items, schemas.ScoreItem{
		Name:           "Competitive Opportunities",
		Description:    "Identified opportunities for differentiation",
		MaxPoints:      30,
		ActualPoints:   oppScore,
		Notes:          oppNotes,
		Recommendation: oppRec,
		PageURL:        homeURL,
	})

	module.Recommendations = recommendationsFrom(result, "Competitive Positioning", homeURL, schemas.KPICloseRate)
	module.AnalysisText = llmclient.Str(result, "comparison_analysis")
	module.RawData = map[string]any{
		"competitors":               llmclient.List(result, "competitors"),
		"client_positioning":        clientPos,
		"positioning_gaps":          gaps,
		"positioning_opportunities": opportunities,
	}
	return module, nil
}

// competitorURLs merges configured competitors with anything already
// discovered by deep research.
func (a *Competitor) competitorURLs() []string {
	var urls []string
	seen := make(map[string]bool)
	add := func(url string) {
		url = ensureScheme(url)
		if url != "" && !seen[url] {
			seen[url] = true
			urls = append(urls, url)
		}
	}
	for _, url := range a.Store.Cfg().Competitors {
		add(url)
	}
	for _, profile := range a.Store.Competitors() {
		add(profile.URL)
	}
	return urls
}

func (a *Competitor) discoverCompetitors(ctx context.Context) []string {
	if !a.LLMAvailable() {
		a.Logger.Debug("Competitor discovery unavailable without text generation")
		return nil
	}
	content := a.clientContent()
	if content == "" {
		return nil
	}
	cfg := a.Store.Cfg()
	prompt := fmt.Sprintf(`Identify the most likely direct competitors of %s (%s) in the %s industry.

Homepage content:
%s

Respond in valid JSON:
{
  "product_category": "...",
  "discovery_confidence": "high|medium|low",
  "competitors": [{"name": "...", "website": "domain.com", "reason": "..."}]
}`, cfg.CompanyName, cfg.CompanyWebsite, cfg.Industry, content)

	result, err := a.LLM.CompleteJSON(ctx, schemas.GenerationRequest{Prompt: prompt, MaxTokens: 2000})
	if err != nil {
		a.Logger.Warn("Competitor discovery failed", zap.Error(err))
		return nil
	}

	var urls []string
	var profiles []schemas.CompetitorProfile
	for _, entry := range llmclient.List(result, "competitors") {
		raw, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		url := ensureScheme(llmclient.Str(raw, "website"))
		if url == "" {
			continue
		}
		urls = append(urls, url)
		profiles = append(profiles, schemas.CompetitorProfile{
			Name:       llmclient.Str(raw, "name"),
			URL:        url,
			Discovered: true,
			Notes:      llmclient.Str(raw, "reason"),
		})
	}
	if len(profiles) > 0 {
		a.Store.SetCompetitors(profiles)
		a.Logger.Info("Discovered competitors",
			zap.Int("count", len(profiles)),
			zap.String("category", llmclient.Str(result, "product_category")))
	}
	return urls
}

// fetchHomepages pulls each competitor's homepage with a one-page crawl
// budget. Fetch failures are skipped, not fatal.
func (a *Competitor) fetchHomepages(ctx context.Context, urls []string) []*schemas.PageData {
	var homepages []*schemas.PageData
	for _, url := range urls {
		pages, err := a.crawler.Crawl(ctx, url, 1)
		if err != nil {
			a.Logger.Debug("Competitor fetch failed", zap.String("url", url), zap.Error(err))
			continue
		}
		for _, page := range pages {
			homepages = append(homepages, page)
			break
		}
	}
	return homepages
}

func (a *Competitor) clientContent() string {
	home := a.Store.Homepage()
	if home == nil {
		for _, page := range a.Store.Pages() {
			home = page
			break
		}
	}
	if home == nil {
		return ""
	}
	return fmt.Sprintf("Title: %s\nH1: %s\nH2: %s\nContent: %s",
		home.Title,
		strings.Join(home.H1Tags, ", "),
		strings.Join(firstN(home.H2Tags, 5), ", "),
		truncate(home.RawText, 3000))
}

func formatHomepages(homepages []*schemas.PageData) string {
	var parts []string
	for i, page := range homepages {
		parts = append(parts, fmt.Sprintf(
			"### Competitor %d: %s\nTitle: %s\nH1: %s\nH2: %s\nMeta Description: %s\nContent Preview: %s",
			i+1, page.URL, page.Title,
			strings.Join(page.H1Tags, ", "),
			strings.Join(firstN(page.H2Tags, 5), ", "),
			page.MetaDescription,
			truncate(page.RawText, 2000)))
	}
	return strings.Join(parts, "\n")
}

func (a *Competitor) fallback(module *schemas.ModuleScore, homepages []*schemas.PageData) *schemas.ModuleScore {
	summaries := make([]any, 0, len(homepages))
	for _, page := range homepages {
		summaries = append(summaries, map[string]any{"url": page.URL, "title": page.Title})
	}
	module.Items = []schemas.ScoreItem{
		{Name: "Competitor Analysis", Description: "Analysis of competitive positioning",
			MaxPoints: 100, ActualPoints: 50, Notes: "Detailed comparison unavailable"},
	}
	module.AnalysisText = fmt.Sprintf(
		"Analyzed %d competitors. Homepage data was captured for each, but detailed positioning comparison requires manual review.",
		len(homepages))
	module.RawData = map[string]any{"competitors": summaries}
	return module
}

// SelfAudit additionally requires captured competitor data.
func (a *Competitor) SelfAudit() bool {
	if !a.BaseAgent.SelfAudit() {
		return false
	}
	score := a.Analysis().ModuleScore
	if comps, ok := score.RawData["competitors"].([]any); ok {
		return len(comps) > 0
	}
	return false
}

func differentiationBand(count int) (int, string) {
	switch {
	case count >= 3:
		return 35, fmt.Sprintf("Clear differentiation with %d unique points", count)
	case count >= 2:
		return 25, fmt.Sprintf("Moderate differentiation with %d points", count)
	default:
		return 15, "Weak differentiation vs competitors"
	}
}

func gapBand(gaps int) (int, string) {
	switch {
	case gaps <= 1:
		return 35, "Strong positioning with minimal gaps"
	case gaps <= 3:
		return 25, fmt.Sprintf("%d positioning gaps identified", gaps)
	default:
		return 15, fmt.Sprintf("%d significant positioning gaps", gaps)
	}
}

func ensureScheme(url string) string {
	url = strings.TrimSpace(url)
	if url == "" {
		return ""
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		url = "https://" + url
	}
	return url
}
