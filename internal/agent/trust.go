package agent

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/vantagehq/marketscope/api/schemas"
	"github.com/vantagehq/marketscope/internal/llmclient"
	"github.com/vantagehq/marketscope/internal/store"
)

// Trust scores credibility signals: customer logos, testimonials, case
// studies, awards, team visibility, security badges, press mentions, and
// third-party reviews. Signal detection is regex-based over page text; the
// generation path grades the quality of what was detected.
type Trust struct {
	*BaseAgent
}

func NewTrust(st *store.ContextStore, llm schemas.LLMClient, logger *zap.Logger) *Trust {
	a := &Trust{BaseAgent: NewBase("trust", []string{"website"}, 1.0, st, llm, logger)}
	a.bind(a)
	return a
}

var trustPatterns = map[string]*regexp.Regexp{
	"customer_logos": regexp.MustCompile(`(?i)(customer|client|trusted by|used by|logo)`),
	"testimonials":   regexp.MustCompile(`(?i)(testimonial|quote|said|review)`),
	"case_studies":   regexp.MustCompile(`(?i)(case study|success story|customer story)`),
	"awards":         regexp.MustCompile(`(?i)(award|winner|recognized|certification|certified)`),
	"security":       regexp.MustCompile(`(?i)(soc\s*2|gdpr|hipaa|iso|security|complian)`),
	"press":          regexp.MustCompile(`(?i)(press|media|news|featured in|as seen)`),
	"reviews":        regexp.MustCompile(`(?i)(g2|capterra|trustpilot|rating|star)`),
}

var trustSpecs = []scoreSpec{
	{"customer_logos", "Customer Logos", 15},
	{"testimonials", "Testimonials", 20},
	{"case_studies", "Case Studies", 20},
	{"awards_recognition", "Awards/Recognition", 10},
	{"team_about", "Team/About", 10},
	{"security_compliance", "Security/Compliance", 10},
	{"press_media", "Press/Media", 10},
	{"reviews_ratings", "Reviews/Ratings", 5},
}

func (a *Trust) Plan() string {
	return fmt.Sprintf(
		"Trust analysis of %s: scan hard signals (logos, case studies, certifications), soft signals (testimonials, team story), and third-party review presence",
		a.Store.Cfg().CompanyName)
}

func (a *Trust) Run(ctx context.Context) (*schemas.ModuleScore, error) {
	cfg := a.Store.Cfg()
	module := schemas.NewModuleScore("Trust & Credibility", a.Weight())

	var testimonials []string
	var images []schemas.Image
	var samples []string
	detected := make(map[string]bool, len(trustPatterns))
	for signal := range trustPatterns {
		detected[signal] = false
	}

	// Home and about pages first; trust signals concentrate there.
	home := store.NormalizeURL(cfg.CompanyWebsite)
	type entry struct {
		url  string
		page *schemas.PageData
	}
	var ordered []entry
	for url, page := range a.Store.Pages() {
		ordered = append(ordered, entry{url, page})
	}
	rank := func(url string) int {
		switch {
		case store.NormalizeURL(url) == home:
			return 0
		case strings.Contains(url, "/about") || strings.Contains(url, "/company"):
			return 1
		default:
			return 2
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool { return rank(ordered[i].url) < rank(ordered[j].url) })

	for _, e := range ordered {
		testimonials = append(testimonials, e.page.Testimonials...)
		images = append(images, firstNImages(e.page.Images, 10)...)
		for signal, pattern := range trustPatterns {
			if !detected[signal] && pattern.MatchString(e.page.RawText) {
				detected[signal] = true
			}
		}
		samples = append(samples, fmt.Sprintf("--- PAGE: %s ---\nTitle: %s\nContent: %s",
			e.url, e.page.Title, truncate(e.page.RawText, 2000)))
	}

	if !a.LLMAvailable() {
		return a.fallback(module, detected, testimonials), nil
	}

	testimonialsJSON, _ := jsoniter.MarshalIndent(firstN(testimonials, 10), "", "  ")
	imagesJSON, _ := jsoniter.MarshalIndent(firstNImages(images, 20), "", "  ")

	prompt := fmt.Sprintf(`You are a B2B trust and credibility auditor reviewing %s (%s).

Page content:
%s

Testimonials found:
%s

Images found:
%s

Respond in valid JSON:
{
  "scores": {
    "customer_logos": {"score": 0-15, "notes": "...", "recommendation": "...", "page_url": "..."},
    "testimonials": {"score": 0-20, "notes": "...", "recommendation": "..."},
    "case_studies": {"score": 0-20, "notes": "...", "recommendation": "..."},
    "awards_recognition": {"score": 0-10, "notes": "...", "recommendation": "..."},
    "team_about": {"score": 0-10, "notes": "...", "recommendation": "..."},
    "security_compliance": {"score": 0-10, "notes": "...", "recommendation": "..."},
    "press_media": {"score": 0-10, "notes": "...", "recommendation": "..."},
    "reviews_ratings": {"score": 0-5, "notes": "...", "recommendation": "..."}
  },
  "strengths": ["..."],
  "weaknesses": ["..."],
  "recommendations": [{"issue": "...", "recommendation": "...", "impact": "High|Medium|Low", "effort": "High|Medium|Low"}],
  "analysis": "2-3 paragraph narrative"
}`, cfg.CompanyName, cfg.CompanyWebsite,
		truncate(strings.Join(samples, "\n"), 12000), testimonialsJSON, imagesJSON)

	result, err := a.LLM.CompleteJSON(ctx, schemas.GenerationRequest{Prompt: prompt, MaxTokens: 4000})
	if err != nil {
		a.Logger.Warn("Trust analysis degraded to heuristics", zap.Error(err))
		return a.fallback(module, detected, testimonials), nil
	}

	module.Items = itemsFromScores(result, trustSpecs)
	module.Recommendations = recommendationsFrom(result, "Trust & Credibility", cfg.CompanyWebsite, schemas.KPICustomerTrust)
	module.AnalysisText = llmclient.Str(result, "analysis")
	module.RawData = map[string]any{
		"detected_signals":  detected,
		"testimonial_count": len(testimonials),
		"strengths":         llmclient.List(result, "strengths"),
		"weaknesses":        llmclient.List(result, "weaknesses"),
	}
	return module, nil
}

func (a *Trust) fallback(module *schemas.ModuleScore, detected map[string]bool, testimonials []string) *schemas.ModuleScore {
	site := a.Store.Cfg().CompanyWebsite

	signalItem := func(name, desc string, max, yes, no int, signal string) schemas.ScoreItem {
		pts, notes := no, "Not clearly detected"
		if detected[signal] {
			pts, notes = yes, "Detected"
		}
		return schemas.ScoreItem{Name: name, Description: desc, MaxPoints: max, ActualPoints: pts, Notes: notes}
	}

	testimonialPts := 5
	if len(testimonials) > 0 {
		testimonialPts = 10
	}

	module.Items = []schemas.ScoreItem{
		signalItem("Customer Logos", "Client logos displayed", 15, 8, 3, "customer_logos"),
		{Name: "Testimonials", Description: "Specific quotes", MaxPoints: 20, ActualPoints: testimonialPts,
			Notes: fmt.Sprintf("Found %d potential testimonials", len(testimonials))},
		signalItem("Case Studies", "Success stories", 20, 10, 5, "case_studies"),
		signalItem("Awards/Recognition", "Industry recognition", 10, 5, 2, "awards"),
		{Name: "Team/About", Description: "Leadership visibility", MaxPoints: 10, ActualPoints: 5, Notes: "Manual review recommended"},
		signalItem("Security/Compliance", "Certifications", 10, 5, 2, "security"),
		signalItem("Press/Media", "Media mentions", 10, 5, 2, "press"),
		signalItem("Reviews/Ratings", "G2, Capterra, etc.", 5, 3, 1, "reviews"),
	}
	module.Recommendations = []schemas.Recommendation{
		{
			Issue:          "Customer proof not verified",
			Recommendation: "Add a customer logo bar to the homepage with 5-8 recognizable logos and a '100+ companies trust us' headline",
			Impact:         schemas.ImpactHigh,
			Effort:         schemas.EffortLow,
			Category:       "Trust & Credibility",
			PageURL:        site,
			KPIImpact:      schemas.KPICustomerTrust,
		},
		{
			Issue:          "Testimonial quality not assessed",
			Recommendation: "Replace anonymous quotes with attributed testimonials including name, title, company, and headshot",
			Impact:         schemas.ImpactHigh,
			Effort:         schemas.EffortMedium,
			Category:       "Trust & Credibility",
			PageURL:        site,
			KPIImpact:      schemas.KPICloseRate,
		},
	}
	module.AnalysisText = fmt.Sprintf(
		"Basic trust signal detection completed. Found %d testimonial-like elements. "+
			"Pattern matching detected the signal categories recorded below; grading their quality requires manual review.",
		len(testimonials))
	module.RawData = map[string]any{
		"detected_signals":  detected,
		"testimonial_count": len(testimonials),
	}
	return module
}

func firstNImages(imgs []schemas.Image, n int) []schemas.Image {
	if len(imgs) <= n {
		return imgs
	}
	return imgs[:n]
}
