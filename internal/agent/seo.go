package agent

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/vantagehq/marketscope/api/schemas"
	"github.com/vantagehq/marketscope/internal/llmclient"
	"github.com/vantagehq/marketscope/internal/store"
)

// SEO scores technical health from crawl measurements alone: meta
// coverage, heading structure, load times, mobile readiness, image alt
// coverage, URL hygiene, internal linking, and schema markup. Generation
// access only augments the recommendations; the scores are deterministic.
type SEO struct {
	*BaseAgent
}

func NewSEO(st *store.ContextStore, llm schemas.LLMClient, logger *zap.Logger) *SEO {
	a := &SEO{BaseAgent: NewBase("seo", []string{"website"}, 1.0, st, llm, logger)}
	a.bind(a)
	return a
}

var numericSlugRE = regexp.MustCompile(`\d{5,}`)

func (a *SEO) Run(ctx context.Context) (*schemas.ModuleScore, error) {
	cfg := a.Store.Cfg()
	module := schemas.NewModuleScore("SEO & Technical", a.Weight())

	pages := a.Store.Pages()
	total := len(pages)
	if total == 0 {
		module.AnalysisText = "No pages could be analyzed."
		return module, nil
	}

	// Meta tags.
	withTitle, withDesc := 0, 0
	var missingDesc []string
	for url, p := range pages {
		if len(p.Title) > 10 {
			withTitle++
		}
		if len(p.MetaDescription) > 50 {
			withDesc++
		} else {
			missingDesc = append(missingDesc, url)
		}
	}
	titlePct := pct(withTitle, total)
	descPct := pct(withDesc, total)
	metaScore := int((titlePct + descPct) / 200 * 15)

	var metaNotes []string
	if titlePct < 100 {
		metaNotes = append(metaNotes, fmt.Sprintf("%.0f%% of pages missing proper titles", 100-titlePct))
	}
	if descPct < 100 {
		metaNotes = append(metaNotes, fmt.Sprintf("%.0f%% of pages missing meta descriptions", 100-descPct))
	}
	module.Items = append(module.Items, schemas.ScoreItem{
		Name:           "Meta Tags",
		Description:    "Title and description optimization",
		MaxPoints:      15,
		ActualPoints:   metaScore,
		Notes:          joinOr(metaNotes, "Good meta tag coverage"),
		Recommendation: unless(metaScore >= 12, "Add unique, keyword-rich meta descriptions (150-160 chars) to all pages missing them"),
		PageURL:        firstOr(missingDesc, cfg.CompanyWebsite),
	})

	// Heading structure.
	withH1, withSingleH1, withH2 := 0, 0, 0
	var missingH1 []string
	for url, p := range pages {
		if len(p.H1Tags) > 0 {
			withH1++
		} else {
			missingH1 = append(missingH1, url)
		}
		if len(p.H1Tags) == 1 {
			withSingleH1++
		}
		if len(p.H2Tags) > 0 {
			withH2++
		}
	}
	h1Pct := pct(withH1, total)
	singleH1Pct := pct(withSingleH1, total)
	h2Pct := pct(withH2, total)
	headingScore := int((h1Pct*0.5 + singleH1Pct*0.3 + h2Pct*0.2) / 100 * 10)

	var headingNotes []string
	if h1Pct < 100 {
		headingNotes = append(headingNotes, fmt.Sprintf("%.0f%% pages missing H1", 100-h1Pct))
	}
	if singleH1Pct < h1Pct {
		headingNotes = append(headingNotes, "Some pages have multiple H1 tags")
	}
	module.Items = append(module.Items, schemas.ScoreItem{
		Name:           "Heading Structure",
		Description:    "Proper H1-H6 hierarchy",
		MaxPoints:      10,
		ActualPoints:   headingScore,
		Notes:          joinOr(headingNotes, "Good heading structure"),
		Recommendation: unless(headingScore >= 8, "Ensure every page has exactly one H1 tag that contains the primary keyword"),
		PageURL:        firstOr(missingH1, cfg.CompanyWebsite),
	})

	// Page speed.
	var loadSum float64
	loadCount := 0
	slowest := cfg.CompanyWebsite
	var slowestLoad float64
	for url, p := range pages {
		secs := p.LoadTime.Seconds()
		if secs > 0 {
			loadSum += secs
			loadCount++
		}
		if secs > slowestLoad {
			slowestLoad = secs
			slowest = url
		}
	}
	avgLoad := 5.0
	if loadCount > 0 {
		avgLoad = loadSum / float64(loadCount)
	}
	speedScore, speedNotes := speedBand(avgLoad)
	module.Items = append(module.Items, schemas.ScoreItem{
		Name:           "Page Speed",
		Description:    "Load time under 3s",
		MaxPoints:      20,
		ActualPoints:   speedScore,
		Notes:          speedNotes,
		Recommendation: unless(speedScore >= 16, "Optimize images, enable compression, leverage browser caching, and consider a CDN"),
		PageURL:        slowest,
	})

	// Mobile responsiveness.
	mobileReady := 0
	for _, p := range pages {
		if p.HasViewport {
			mobileReady++
		}
	}
	mobilePct := pct(mobileReady, total)
	mobileScore := int(mobilePct / 100 * 15)
	module.Items = append(module.Items, schemas.ScoreItem{
		Name:           "Mobile Responsiveness",
		Description:    "Mobile-friendly design indicators",
		MaxPoints:      15,
		ActualPoints:   mobileScore,
		Notes:          fmt.Sprintf("%.0f%% of pages have viewport meta tag", mobilePct),
		Recommendation: unless(mobileScore >= 12, "Add viewport meta tag and ensure responsive design across all pages"),
		PageURL:        cfg.CompanyWebsite,
	})

	// Image optimization.
	totalImages, withAlt := 0, 0
	for _, p := range pages {
		for _, img := range p.Images {
			totalImages++
			if img.Alt != "" {
				withAlt++
			}
		}
	}
	imgScore, altPct := 5, 0.0
	imgNotes := "No images found to analyze"
	if totalImages > 0 {
		altPct = pct(withAlt, totalImages)
		imgScore = int(altPct / 100 * 10)
		imgNotes = fmt.Sprintf("%.0f%% of %d images have alt text", altPct, totalImages)
	}
	module.Items = append(module.Items, schemas.ScoreItem{
		Name:           "Image Optimization",
		Description:    "Alt tags and optimization",
		MaxPoints:      10,
		ActualPoints:   imgScore,
		Notes:          imgNotes,
		Recommendation: unless(imgScore >= 8, "Add descriptive alt text to all images for accessibility and SEO"),
		PageURL:        cfg.CompanyWebsite,
	})

	// URL structure.
	cleanURLs := 0
	for url := range pages {
		if !strings.Contains(url, "?") && !numericSlugRE.MatchString(url) {
			cleanURLs++
		}
	}
	urlPct := pct(cleanURLs, total)
	urlScore := int(urlPct / 100 * 10)
	module.Items = append(module.Items, schemas.ScoreItem{
		Name:           "URL Structure",
		Description:    "Clean, descriptive URLs",
		MaxPoints:      10,
		ActualPoints:   urlScore,
		Notes:          fmt.Sprintf("%.0f%% clean URL structure", urlPct),
		Recommendation: unless(urlScore >= 8, "Use descriptive, keyword-rich URL slugs and remove query parameters from indexable pages"),
		PageURL:        cfg.CompanyWebsite,
	})

	// Internal linking.
	totalInternal := 0
	for _, p := range pages {
		totalInternal += len(p.InternalLinks)
	}
	avgLinks := float64(totalInternal) / float64(total)
	linkScore, linkNotes := linkBand(avgLinks)
	module.Items = append(module.Items, schemas.ScoreItem{
		Name:           "Internal Linking",
		Description:    "Logical site structure",
		MaxPoints:      10,
		ActualPoints:   linkScore,
		Notes:          linkNotes,
		Recommendation: unless(linkScore >= 8, "Add contextual internal links between related pages to improve crawlability and user navigation"),
		PageURL:        cfg.CompanyWebsite,
	})

	// Schema markup.
	withSchema := 0
	schemaTypes := make(map[string]struct{})
	for _, p := range pages {
		if p.HasSchema {
			withSchema++
		}
		for _, t := range p.SchemaTypes {
			schemaTypes[t] = struct{}{}
		}
	}
	schemaPct := pct(withSchema, total)
	schemaScore := schemaBand(schemaPct)
	typeList := make([]string, 0, len(schemaTypes))
	for t := range schemaTypes {
		typeList = append(typeList, t)
	}
	module.Items = append(module.Items, schemas.ScoreItem{
		Name:           "Schema Markup",
		Description:    "Structured data present",
		MaxPoints:      10,
		ActualPoints:   schemaScore,
		Notes:          fmt.Sprintf("%.0f%% pages with schema. Types: %s", schemaPct, joinOr(firstN(typeList, 5), "None")),
		Recommendation: unless(schemaScore >= 7, "Implement Organization, Product, and FAQ schema markup on key pages"),
		PageURL:        cfg.CompanyWebsite,
	})

	module.Recommendations = a.buildRecommendations(cfg, missingDesc, descPct, avgLoad, slowest, totalImages, altPct, schemaPct, avgLinks)

	module.AnalysisText = fmt.Sprintf(
		"The website was analyzed across %d pages for technical SEO health.\n\n"+
			"**Performance:** Average page load time is %.2f seconds. %s\n\n"+
			"**On-Page SEO:** %.0f%% of pages have proper titles and %.0f%% have meta descriptions. "+
			"%.0f%% have H1 tags with %.0f%% following the single-H1 best practice.\n\n"+
			"**Technical:** %.0f%% of pages indicate mobile responsiveness. Internal linking averages %.1f links per page. Schema markup is %s.",
		total, avgLoad, loadVerdict(avgLoad),
		titlePct, descPct, h1Pct, singleH1Pct,
		mobilePct, avgLinks, presentOr(schemaPct > 0))

	a.augmentWithLLM(ctx, module, titlePct, descPct, h1Pct, avgLoad, mobilePct, schemaPct, avgLinks, altPct, totalImages, typeList)

	module.RawData = map[string]any{
		"total_pages":   total,
		"avg_load_time": avgLoad,
		"meta_coverage": map[string]any{"title": titlePct, "description": descPct},
		"schema_types":  typeList,
	}
	return module, nil
}

func (a *SEO) buildRecommendations(cfg store.Config, missingDesc []string, descPct, avgLoad float64, slowest string, totalImages int, altPct, schemaPct, avgLinks float64) []schemas.Recommendation {
	var recs []schemas.Recommendation
	if descPct < 80 {
		recs = append(recs, schemas.Recommendation{
			Issue:          "Missing meta descriptions on multiple pages",
			Recommendation: "Add unique, compelling meta descriptions (150-160 chars) to all key pages",
			Impact:         schemas.ImpactHigh,
			Effort:         schemas.EffortLow,
			Category:       "SEO & Technical",
			PageURL:        firstOr(missingDesc, cfg.CompanyWebsite),
			KPIImpact:      schemas.KPISEORanking,
		})
	}
	if avgLoad > 3.0 {
		recs = append(recs, schemas.Recommendation{
			Issue:          fmt.Sprintf("Slow page load times (avg %.1fs)", avgLoad),
			Recommendation: "Optimize images, enable compression, leverage browser caching, consider CDN",
			Impact:         schemas.ImpactHigh,
			Effort:         schemas.EffortMedium,
			Category:       "SEO & Technical",
			PageURL:        slowest,
			KPIImpact:      schemas.KPITraffic,
		})
	}
	if totalImages > 0 && altPct < 80 {
		recs = append(recs, schemas.Recommendation{
			Issue:          fmt.Sprintf("Missing alt text on %.0f%% of images", 100-altPct),
			Recommendation: "Add descriptive alt text to all images for accessibility and SEO",
			Impact:         schemas.ImpactMedium,
			Effort:         schemas.EffortLow,
			Category:       "SEO & Technical",
			PageURL:        cfg.CompanyWebsite,
			KPIImpact:      schemas.KPISEORanking,
		})
	}
	if schemaPct < 25 {
		recs = append(recs, schemas.Recommendation{
			Issue:          "Limited or no schema markup",
			Recommendation: "Implement Organization, Product, and FAQ schema on relevant pages",
			Impact:         schemas.ImpactMedium,
			Effort:         schemas.EffortMedium,
			Category:       "SEO & Technical",
			PageURL:        cfg.CompanyWebsite,
			KPIImpact:      schemas.KPISEORanking,
		})
	}
	if avgLinks < 5 {
		recs = append(recs, schemas.Recommendation{
			Issue:          "Weak internal linking structure",
			Recommendation: "Add contextual internal links to improve site navigation and SEO",
			Impact:         schemas.ImpactMedium,
			Effort:         schemas.EffortLow,
			Category:       "SEO & Technical",
			PageURL:        cfg.CompanyWebsite,
			KPIImpact:      schemas.KPIEngagement,
		})
	}
	if len(recs) > 5 {
		recs = recs[:5]
	}
	return recs
}

// augmentWithLLM layers strategic recommendations on top of the heuristic
// scores. Failures here are logged and swallowed; the deterministic result
// already stands on its own.
func (a *SEO) augmentWithLLM(ctx context.Context, module *schemas.ModuleScore, titlePct, descPct, h1Pct, avgLoad, mobilePct, schemaPct, avgLinks, altPct float64, totalImages int, schemaTypes []string) {
	if !a.LLMAvailable() {
		return
	}
	cfg := a.Store.Cfg()
	summary := fmt.Sprintf(
		"Meta coverage: titles %.0f%%, descriptions %.0f%%. H1 coverage: %.0f%%. Avg load time: %.2fs. "+
			"Mobile ready: %.0f%%. Schema: %.0f%%. Avg internal links: %.1f. "+
			"Image alt coverage: %.0f%% of %d images. Schema types found: %s.",
		titlePct, descPct, h1Pct, avgLoad, mobilePct, schemaPct, avgLinks, altPct, totalImages,
		joinOr(firstN(schemaTypes, 5), "None"))

	prompt := fmt.Sprintf(`You are a technical SEO strategist reviewing %s (%s).

Heuristic findings:
%s

Respond in valid JSON:
{
  "prioritized_actions": [{"issue": "...", "recommendation": "...", "impact": "High|Medium|Low", "effort": "High|Medium|Low"}],
  "strategic_priorities": "2-3 sentences on what to fix first and why"
}`, cfg.CompanyName, cfg.CompanyWebsite, summary)

	result, err := a.LLM.CompleteJSON(ctx, schemas.GenerationRequest{Prompt: prompt, MaxTokens: 2000})
	if err != nil {
		a.Logger.Debug("SEO augmentation skipped", zap.Error(err))
		return
	}
	for _, entry := range llmclient.List(result, "prioritized_actions") {
		raw, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		module.Recommendations = append(module.Recommendations, schemas.Recommendation{
			Issue:          llmclient.Str(raw, "issue"),
			Recommendation: llmclient.Str(raw, "recommendation"),
			Impact:         impactFrom(llmclient.Str(raw, "impact")),
			Effort:         effortFrom(llmclient.Str(raw, "effort")),
			Category:       "SEO & Technical",
			PageURL:        cfg.CompanyWebsite,
			KPIImpact:      schemas.KPISEORanking,
		})
	}
	if strategic := llmclient.Str(result, "strategic_priorities"); strategic != "" {
		module.AnalysisText += "\n\n**Strategic SEO Priorities:**\n" + strategic
	}
}

// SelfAudit additionally requires at least three analyzed pages; below
// that the percentages are noise.
func (a *SEO) SelfAudit() bool {
	if !a.BaseAgent.SelfAudit() {
		return false
	}
	score := a.Analysis().ModuleScore
	if n, ok := score.RawData["total_pages"].(int); !ok || n < 3 {
		return false
	}
	return true
}

func speedBand(avg float64) (int, string) {
	switch {
	case avg < 1.5:
		return 20, fmt.Sprintf("Excellent avg load time: %.2fs", avg)
	case avg < 2.5:
		return 16, fmt.Sprintf("Good avg load time: %.2fs", avg)
	case avg < 3.5:
		return 12, fmt.Sprintf("Average load time: %.2fs - could improve", avg)
	case avg < 5.0:
		return 8, fmt.Sprintf("Slow avg load time: %.2fs - needs optimization", avg)
	default:
		return 4, fmt.Sprintf("Very slow avg load time: %.2fs - critical issue", avg)
	}
}

func linkBand(avg float64) (int, string) {
	switch {
	case avg >= 10:
		return 10, fmt.Sprintf("Strong internal linking: avg %.1f links/page", avg)
	case avg >= 5:
		return 7, fmt.Sprintf("Good internal linking: avg %.1f links/page", avg)
	default:
		return 4, fmt.Sprintf("Weak internal linking: avg %.1f links/page", avg)
	}
}

func schemaBand(schemaPct float64) int {
	switch {
	case schemaPct >= 50:
		return 10
	case schemaPct >= 25:
		return 7
	case schemaPct > 0:
		return 4
	default:
		return 0
	}
}

func loadVerdict(avg float64) string {
	if avg < 3 {
		return "This is within acceptable range."
	}
	return "This needs improvement for better user experience and SEO."
}

func presentOr(present bool) string {
	if present {
		return "present"
	}
	return "not implemented"
}

func pct(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}

func joinOr(parts []string, fallback string) string {
	if len(parts) == 0 {
		return fallback
	}
	return strings.Join(parts, "; ")
}

func firstOr(items []string, fallback string) string {
	if len(items) == 0 {
		return fallback
	}
	return items[0]
}

func unless(ok bool, rec string) string {
	if ok {
		return ""
	}
	return rec
}
