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

// Visibility scoring weights: being mentioned at all counts for less
// than being recommended early in the answer.
const (
	visibilityMentionWeight = 40
	visibilityTop3Weight    = 60
	visibilityTopRank       = 3
	visibilityMaxQuestions  = 5
)

// PromptVisibility measures share of voice in generated answers: it
// derives the buying questions a prospect would ask an assistant, asks
// them, and ranks how early the company appears against its competitors.
// The whole module depends on the text-generation collaborator; without
// it the result is an explicit manual-review placeholder.
type PromptVisibility struct {
	*BaseAgent
}

func NewPromptVisibility(st *store.ContextStore, llm schemas.LLMClient, logger *zap.Logger) *PromptVisibility {
	a := &PromptVisibility{BaseAgent: NewBase("prompt_visibility", []string{"deep_research"}, 1.5, st, llm, logger)}
	a.bind(a)
	return a
}

// promptRanking records where one entity appeared in a generated answer.
// Rank 999 marks an entity that was not mentioned at all.
type promptRanking struct {
	Name      string `json:"name"`
	Rank      int    `json:"rank"`
	Mentioned bool   `json:"mentioned"`
}

type promptResult struct {
	Question string          `json:"question"`
	Rankings []promptRanking `json:"rankings"`
}

func (a *PromptVisibility) Run(ctx context.Context) (*schemas.ModuleScore, error) {
	cfg := a.Store.Cfg()
	module := schemas.NewModuleScore("Prompt Visibility", a.Weight())

	if !a.LLMAvailable() {
		return a.unavailable(module), nil
	}

	questions := a.identifyQuestions(ctx)
	a.Logger.Info("Testing buying questions", zap.Int("questions", len(questions)))

	var results []promptResult
	for _, q := range questions {
		answer, err := a.LLM.Complete(ctx, schemas.GenerationRequest{
			Prompt: fmt.Sprintf(`Answer this user question as a helpful assistant:
%q

Provide a list of recommended tools or solutions.`, q),
			MaxTokens: 1000,
		})
		if err != nil {
			a.Logger.Warn("Visibility question failed", zap.String("question", q), zap.Error(err))
			continue
		}
		results = append(results, promptResult{
			Question: q,
			Rankings: rankMentions(answer, cfg.CompanyName, cfg.Competitors),
		})
	}
	if len(results) == 0 {
		return a.unavailable(module), nil
	}

	module.Items = a.scoreVisibility(results)
	module.AnalysisText = a.summarize(results)
	module.RawData = map[string]any{"results": results}
	return module, nil
}

// identifyQuestions asks the model for the jobs-to-be-done questions a
// buyer in this industry would pose, falling back to templated questions
// built from the run configuration.
func (a *PromptVisibility) identifyQuestions(ctx context.Context) []string {
	cfg := a.Store.Cfg()

	var valueProps []string
	if research := a.Store.GetAnalysis("deep_research"); research != nil {
		valueProps = llmclient.StrList(research.RawData, "key_value_props")
	}

	prompt := fmt.Sprintf(`Generate 5 specific "How to" or "Best software for" questions that a
prospective buyer would ask an AI assistant when looking for a solution like %s.

Context:
- Industry: %s
- Value props: %s

Examples:
- "How to automate SDR outreach?"
- "Best enterprise CRM for healthcare"

Respond in valid JSON: {"questions": ["...", "..."]}`,
		cfg.CompanyName, cfg.Industry, strings.Join(valueProps, "; "))

	result, err := a.LLM.CompleteJSON(ctx, schemas.GenerationRequest{Prompt: prompt, MaxTokens: 1000})
	if err == nil {
		if qs := llmclient.StrList(result, "questions"); len(qs) > 0 {
			if len(qs) > visibilityMaxQuestions {
				qs = qs[:visibilityMaxQuestions]
			}
			return qs
		}
	}
	if err != nil {
		a.Logger.Warn("Question generation degraded to templates", zap.Error(err))
	}

	alternatives := "leading competitors"
	if len(cfg.Competitors) > 0 {
		alternatives = cfg.Competitors[0]
	}
	return []string{
		fmt.Sprintf("Best software for %s", cfg.Industry),
		fmt.Sprintf("How to improve %s workflows", cfg.Industry),
		fmt.Sprintf("Alternatives to %s", alternatives),
		fmt.Sprintf("Top rated %s tools", cfg.Industry),
		fmt.Sprintf("Implementation guide for %s software", cfg.Industry),
	}
}

// rankMentions orders the company and its competitors by where each
// first appears in the answer text. Unmentioned entities trail with rank
// 999 so the raw data still lists the full roster.
func rankMentions(answer, company string, competitors []string) []promptRanking {
	entities := append([]string{company}, competitors...)
	lower := strings.ToLower(answer)

	type found struct {
		name  string
		index int
	}
	var hits []found
	missing := make([]string, 0, len(entities))
	for _, entity := range entities {
		idx := strings.Index(lower, strings.ToLower(entity))
		if idx >= 0 {
			hits = append(hits, found{entity, idx})
		} else {
			missing = append(missing, entity)
		}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].index < hits[j].index })

	rankings := make([]promptRanking, 0, len(entities))
	for i, h := range hits {
		rankings = append(rankings, promptRanking{Name: h.name, Rank: i + 1, Mentioned: true})
	}
	for _, name := range missing {
		rankings = append(rankings, promptRanking{Name: name, Rank: 999, Mentioned: false})
	}
	return rankings
}

// scoreVisibility aggregates mention and top-3 ratios into one item.
func (a *PromptVisibility) scoreVisibility(results []promptResult) []schemas.ScoreItem {
	company := a.Store.Cfg().CompanyName
	mentions, top3 := 0, 0
	for _, res := range results {
		for _, r := range res.Rankings {
			if r.Name != company || !r.Mentioned {
				continue
			}
			mentions++
			if r.Rank <= visibilityTopRank {
				top3++
			}
			break
		}
	}

	total := len(results)
	actual := 0
	if total > 0 {
		mentionRatio := float64(mentions) / float64(total)
		top3Ratio := float64(top3) / float64(total)
		actual = int(mentionRatio*visibilityMentionWeight + top3Ratio*visibilityTop3Weight)
	}

	recommendation := ""
	switch {
	case mentions == 0:
		recommendation = "Critical: brand not mentioned in any generated answers. Develop authoritative content (documentation, reviews, thought leadership) targeting key buying queries."
	case top3 < total:
		recommendation = "Optimize brand presence in technical documentation, review sites, and industry publications to improve answer-engine ranking."
	}

	return []schemas.ScoreItem{{
		Name:           "Overall Prompt Visibility",
		Description:    "Aggregate visibility across key buying questions",
		MaxPoints:      100,
		ActualPoints:   actual,
		Notes:          fmt.Sprintf("Mentioned in %d/%d queries, top %d in %d", mentions, total, visibilityTopRank, top3),
		Recommendation: recommendation,
	}}
}

// summarize renders the per-question ranking table.
func (a *PromptVisibility) summarize(results []promptResult) string {
	company := a.Store.Cfg().CompanyName

	var b strings.Builder
	b.WriteString("### Share of Voice Analysis (Prompt Visibility)\n\n")
	b.WriteString("How the brand appears in AI-generated answers for key buying questions.\n\n")
	b.WriteString("| Question | Client Rank | Top Competitor |\n")
	b.WriteString("| :--- | :---: | :--- |\n")

	for _, res := range results {
		clientRank := "not mentioned"
		for _, r := range res.Rankings {
			if r.Name == company && r.Mentioned {
				clientRank = fmt.Sprintf("#%d", r.Rank)
				break
			}
		}
		topCompetitor := "Generic advice"
		if len(res.Rankings) > 0 && res.Rankings[0].Mentioned {
			topCompetitor = res.Rankings[0].Name
		}
		fmt.Fprintf(&b, "| %s | %s | %s |\n", res.Question, clientRank, topCompetitor)
	}
	return b.String()
}

// unavailable produces the manual-review placeholder used when the
// module cannot query generated answers at all.
func (a *PromptVisibility) unavailable(module *schemas.ModuleScore) *schemas.ModuleScore {
	module.Items = []schemas.ScoreItem{{
		Name:         "Overall Prompt Visibility",
		Description:  "Aggregate visibility across key buying questions",
		MaxPoints:    100,
		ActualPoints: 0,
		Notes:        "Requires text-generation access to query answer engines",
	}}
	module.Recommendations = []schemas.Recommendation{{
		Issue:          "Share of voice in AI answers not assessed",
		Recommendation: "Manually test key buying questions against major assistants and record where the brand appears relative to competitors",
		Impact:         schemas.ImpactMedium,
		Effort:         schemas.EffortLow,
		Category:       "Prompt Visibility",
		PageURL:        a.Store.Cfg().CompanyWebsite,
		KPIImpact:      schemas.KPIBrandAwareness,
	}}
	module.AnalysisText = "Prompt visibility could not be measured because no text-generation " +
		"collaborator was available. Share of voice in AI-generated answers increasingly shapes " +
		"buying shortlists, so a manual spot check of the top buying questions is recommended."
	module.RawData = map[string]any{"results": []promptResult{}}
	return module
}
