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

// DeepResearch builds a company profile (background, funding stage, ICP,
// market position) from model knowledge plus crawled content. It carries
// no scoring weight; its value is the context it leaves for other agents,
// in particular a discovered competitor list when none was configured.
type DeepResearch struct {
	*BaseAgent
}

func NewDeepResearch(st *store.ContextStore, llm schemas.LLMClient, logger *zap.Logger) *DeepResearch {
	a := &DeepResearch{BaseAgent: NewBase("deep_research", nil, 0, st, llm, logger)}
	a.bind(a)
	return a
}

func (a *DeepResearch) Plan() string {
	return fmt.Sprintf("Build a company profile for %s: background, funding stage, ICP, market position, likely competitors",
		a.Store.Cfg().CompanyName)
}

func (a *DeepResearch) Run(ctx context.Context) (*schemas.ModuleScore, error) {
	cfg := a.Store.Cfg()
	module := schemas.NewModuleScore("Company Research", 0)

	if !a.LLMAvailable() {
		module.Items = []schemas.ScoreItem{
			{Name: "Company Profile", Description: "Background and market research", MaxPoints: 30, ActualPoints: 10,
				Notes: "Research unavailable without text-generation access"},
		}
		module.AnalysisText = fmt.Sprintf(
			"Deep research on %s could not be performed without text-generation access. "+
				"Downstream agents will rely on crawled content only.", cfg.CompanyName)
		return module, nil
	}

	prompt := fmt.Sprintf(`You are a senior strategic consultant conducting due diligence on a B2B company.

Target Company: %s
Website: %s
Industry: %s

Context from Website:
%s

Construct a company profile from your knowledge and the text provided. Where specifics are not
public, make an educated estimate or state "Unknown".

Respond in valid JSON:
{
  "background": "Brief history and founding story (2-3 sentences)",
  "funding_status": "Bootstrapped, Seed, Series A, etc.",
  "icp": {"primary": "Primary ideal customer profile", "industries": ["..."], "roles": ["..."]},
  "products": ["..."],
  "key_value_props": ["..."],
  "market_position": "Where they sit in the market",
  "competitors": ["competitor-domain-or-name", "..."]
}`, cfg.CompanyName, cfg.CompanyWebsite, cfg.Industry, a.PagesDigest(20000))

	result, err := a.LLM.CompleteJSON(ctx, schemas.GenerationRequest{Prompt: prompt, MaxTokens: 1500})
	if err != nil {
		return nil, fmt.Errorf("company research: %w", err)
	}

	// Hand discovered competitors to the store when none were configured.
	if len(cfg.Competitors) == 0 && len(a.Store.Competitors()) == 0 {
		discovered := llmclient.StrList(result, "competitors")
		if len(discovered) > 0 {
			profiles := make([]schemas.CompetitorProfile, 0, len(discovered))
			for _, name := range discovered {
				profiles = append(profiles, schemas.CompetitorProfile{Name: name, URL: name, Discovered: true})
			}
			a.Store.SetCompetitors(profiles)
			a.Logger.Info("Discovered competitors", zap.Strings("competitors", discovered))
		}
	}

	module.Items = a.evaluateResearch(result)
	module.AnalysisText = researchSummary(result)
	module.RawData = result
	return module, nil
}

func (a *DeepResearch) evaluateResearch(data map[string]any) []schemas.ScoreItem {
	funding := llmclient.Str(data, "funding_status")
	hasFunding := funding != "" && funding != "Unknown"
	icp := llmclient.Str(llmclient.Obj(data, "icp"), "primary")
	position := llmclient.Str(data, "market_position")

	pick := func(ok bool, yes, no int) int {
		if ok {
			return yes
		}
		return no
	}

	return []schemas.ScoreItem{
		{Name: "Funding/Stage Identified", Description: "Clarity of company funding", MaxPoints: 10,
			ActualPoints: pick(hasFunding, 10, 5), Notes: "Stage: " + funding},
		{Name: "ICP Clarity", Description: "Clarity of ideal customer profile", MaxPoints: 10,
			ActualPoints: pick(icp != "", 10, 4), Notes: "Primary ICP: " + orUnclear(icp)},
		{Name: "Market Position", Description: "Clarity of market positioning", MaxPoints: 10,
			ActualPoints: pick(position != "", 10, 5), Notes: orUnclear(position)},
	}
}

func researchSummary(data map[string]any) string {
	icp := llmclient.Obj(data, "icp")
	var b strings.Builder
	fmt.Fprintf(&b, "### Company Background\n%s\n\n", llmclient.Str(data, "background"))
	fmt.Fprintf(&b, "**Funding Stage:** %s\n", orUnclear(llmclient.Str(data, "funding_status")))
	fmt.Fprintf(&b, "**Market Position:** %s\n\n", orUnclear(llmclient.Str(data, "market_position")))
	fmt.Fprintf(&b, "### Target Audience (ICP)\n- **Primary:** %s\n", orUnclear(llmclient.Str(icp, "primary")))
	fmt.Fprintf(&b, "- **Industries:** %s\n", strings.Join(llmclient.StrList(icp, "industries"), ", "))
	fmt.Fprintf(&b, "- **Key Roles:** %s\n\n", strings.Join(llmclient.StrList(icp, "roles"), ", "))
	b.WriteString("### Core Value Propositions\n")
	for _, v := range llmclient.StrList(data, "key_value_props") {
		fmt.Fprintf(&b, "- %s\n", v)
	}
	return b.String()
}

func orUnclear(s string) string {
	if s == "" {
		return "Unclear"
	}
	return s
}
