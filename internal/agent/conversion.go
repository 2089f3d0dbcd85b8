package agent

import (
	"context"
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/vantagehq/marketscope/api/schemas"
	"github.com/vantagehq/marketscope/internal/llmclient"
	"github.com/vantagehq/marketscope/internal/store"
)

// Conversion scores call-to-action effectiveness and form friction across
// the crawled pages. Without generation access it degrades to counting
// CTAs and forms.
type Conversion struct {
	*BaseAgent
}

func NewConversion(st *store.ContextStore, llm schemas.LLMClient, logger *zap.Logger) *Conversion {
	a := &Conversion{BaseAgent: NewBase("conversion", []string{"website"}, 1.0, st, llm, logger)}
	a.bind(a)
	return a
}

var conversionSpecs = []scoreSpec{
	{"cta_visibility", "CTA Visibility", 20},
	{"cta_copy", "CTA Copy", 15},
	{"form_optimization", "Form Optimization", 15},
	{"trust_signals", "Trust Signals Near Conversion", 15},
	{"path_clarity", "Path Clarity", 15},
	{"multiple_entry_points", "Multiple Entry Points", 10},
	{"friction_reduction", "Friction Reduction", 10},
}

func (a *Conversion) Plan() string {
	return fmt.Sprintf(
		"Conversion analysis of %s: identify conversion points, evaluate CTA copy, audit form friction, check trust signals near submit buttons",
		a.Store.Cfg().CompanyName)
}

func (a *Conversion) Run(ctx context.Context) (*schemas.ModuleScore, error) {
	cfg := a.Store.Cfg()
	module := schemas.NewModuleScore("Conversion Paths", a.Weight())

	allCTAs := a.Store.AllCTAs()
	allForms := a.Store.AllForms()

	if !a.LLMAvailable() {
		return a.fallback(module, allCTAs, allForms), nil
	}

	var keyContent []string
	for url, page := range a.Store.Pages() {
		lower := strings.ToLower(url)
		for _, marker := range []string{"pricing", "demo", "contact", "trial", "signup", "get-started"} {
			if strings.Contains(lower, marker) {
				keyContent = append(keyContent, fmt.Sprintf("--- %s ---\n%s", url, truncate(page.RawText, 2000)))
				break
			}
		}
	}

	ctasJSON, _ := jsoniter.MarshalIndent(firstNCTAs(allCTAs, 30), "", "  ")
	formsJSON, _ := jsoniter.MarshalIndent(firstNForms(allForms, 10), "", "  ")

	prompt := fmt.Sprintf(`You are a conversion rate optimization consultant auditing %s (%s).

CTAs found across the site:
%s

Forms found:
%s

Key conversion page content:
%s

Respond in valid JSON:
{
  "scores": {
    "cta_visibility": {"score": 0-20, "notes": "...", "recommendation": "...", "page_url": "..."},
    "cta_copy": {"score": 0-15, "notes": "...", "recommendation": "..."},
    "form_optimization": {"score": 0-15, "notes": "...", "recommendation": "..."},
    "trust_signals": {"score": 0-15, "notes": "...", "recommendation": "..."},
    "path_clarity": {"score": 0-15, "notes": "...", "recommendation": "..."},
    "multiple_entry_points": {"score": 0-10, "notes": "...", "recommendation": "..."},
    "friction_reduction": {"score": 0-10, "notes": "...", "recommendation": "..."}
  },
  "cta_inventory": [{"text": "...", "assessment": "..."}],
  "strengths": ["..."],
  "weaknesses": ["..."],
  "opportunity_cost": {"estimated_lost_revenue": "...", "friction_factor": "..."},
  "recommendations": [{"issue": "...", "recommendation": "...", "impact": "High|Medium|Low", "effort": "High|Medium|Low", "business_impact": "..."}],
  "analysis": "2-3 paragraph narrative"
}`, cfg.CompanyName, cfg.CompanyWebsite, ctasJSON, formsJSON, truncate(strings.Join(keyContent, "\n"), 10000))

	result, err := a.LLM.CompleteJSON(ctx, schemas.GenerationRequest{Prompt: prompt, MaxTokens: 4000})
	if err != nil {
		a.Logger.Warn("Conversion analysis degraded to heuristics", zap.Error(err))
		return a.fallback(module, allCTAs, allForms), nil
	}

	module.Items = itemsFromScores(result, conversionSpecs)
	module.RawData = map[string]any{
		"cta_inventory":    llmclient.List(result, "cta_inventory"),
		"strengths":        llmclient.List(result, "strengths"),
		"weaknesses":       llmclient.List(result, "weaknesses"),
		"total_ctas":       len(allCTAs),
		"total_forms":      len(allForms),
		"opportunity_cost": llmclient.Obj(result, "opportunity_cost"),
	}

	fallbackURL := cfg.CompanyWebsite
	for _, cta := range allCTAs {
		if cta.PageURL != "" {
			fallbackURL = cta.PageURL
			break
		}
	}
	module.Recommendations = recommendationsFrom(result, "Conversion Paths", fallbackURL, schemas.KPILeadConversion)

	oppCost := llmclient.Obj(result, "opportunity_cost")
	module.AnalysisText = fmt.Sprintf("%s\n\n**Opportunity Cost:** %s\n*Factor: %s*",
		llmclient.Str(result, "analysis"),
		orUnknown(llmclient.Str(oppCost, "estimated_lost_revenue")),
		orNA(llmclient.Str(oppCost, "friction_factor")))

	return module, nil
}

func (a *Conversion) fallback(module *schemas.ModuleScore, allCTAs []schemas.CTA, allForms []schemas.Form) *schemas.ModuleScore {
	site := a.Store.Cfg().CompanyWebsite
	ctaScore := minInt(len(allCTAs)*2, 20)
	formScore := 5
	if len(allForms) > 0 {
		formScore = 10
	}

	module.Items = []schemas.ScoreItem{
		{Name: "CTA Visibility", Description: "Are CTAs prominent?", MaxPoints: 20, ActualPoints: ctaScore, Notes: fmt.Sprintf("Found %d CTAs", len(allCTAs))},
		{Name: "CTA Copy", Description: "Is copy compelling?", MaxPoints: 15, ActualPoints: 8, Notes: "Manual review recommended"},
		{Name: "Form Optimization", Description: "Form length and clarity", MaxPoints: 15, ActualPoints: formScore, Notes: fmt.Sprintf("Found %d forms", len(allForms))},
		{Name: "Trust Signals Near Conversion", Description: "Social proof near CTAs", MaxPoints: 15, ActualPoints: 7, Notes: "Manual review recommended"},
		{Name: "Path Clarity", Description: "Is next step obvious?", MaxPoints: 15, ActualPoints: 7, Notes: "Manual review recommended"},
		{Name: "Multiple Entry Points", Description: "Options for different stages", MaxPoints: 10, ActualPoints: 5, Notes: "Manual review recommended"},
		{Name: "Friction Reduction", Description: "Minimal steps to convert", MaxPoints: 10, ActualPoints: 5, Notes: "Manual review recommended"},
	}
	module.Recommendations = []schemas.Recommendation{
		{
			Issue:          "CTA effectiveness not fully assessed",
			Recommendation: "Replace generic CTA text ('Submit', 'Learn More') with value-driven copy ('Get Your Free Audit', 'Start Saving Today')",
			Impact:         schemas.ImpactHigh,
			Effort:         schemas.EffortLow,
			Category:       "Conversion Paths",
			PageURL:        site,
			KPIImpact:      schemas.KPILeadConversion,
		},
		{
			Issue:          "Form friction not fully assessed",
			Recommendation: "Reduce form fields to essential-only (Name, Email, Company) for initial contact forms and move qualifying questions to follow-up",
			Impact:         schemas.ImpactHigh,
			Effort:         schemas.EffortLow,
			Category:       "Conversion Paths",
			PageURL:        site,
			KPIImpact:      schemas.KPILeadConversion,
		},
	}
	module.AnalysisText = fmt.Sprintf(
		"Basic analysis: Found %d CTAs and %d forms across the site. Detailed analysis requires manual review.",
		len(allCTAs), len(allForms))
	module.RawData = map[string]any{
		"total_ctas":  len(allCTAs),
		"total_forms": len(allForms),
	}
	return module
}

func firstNCTAs(ctas []schemas.CTA, n int) []schemas.CTA {
	if len(ctas) <= n {
		return ctas
	}
	return ctas[:n]
}

func firstNForms(forms []schemas.Form, n int) []schemas.Form {
	if len(forms) <= n {
		return forms
	}
	return forms[:n]
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
