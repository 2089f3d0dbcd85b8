package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vantagehq/marketscope/api/schemas"
	"github.com/vantagehq/marketscope/internal/store"
)

func visibilityStore(competitors ...string) *store.ContextStore {
	st := store.New(store.Config{
		CompanyName:    "Acme",
		CompanyWebsite: "https://acme.io",
		Industry:       "SaaS",
		Competitors:    competitors,
		MaxPages:       20,
		MaxRevisions:   3,
	})
	completeDeps(st, "deep_research")
	return st
}

func TestPromptVisibilityScoring(t *testing.T) {
	st := visibilityStore("Rival")
	llm := &fakeLLM{
		responses: []map[string]any{
			{"questions": []any{"Best software for SaaS compliance", "Top rated audit tools"}},
		},
		texts: []string{
			"For compliance work most teams pick Rival, though Acme is a strong runner-up.",
			"Try ZenAudit or CheckKit for audit workflows.",
		},
	}
	a := NewPromptVisibility(st, llm, testLogger())

	analysis := a.Execute(context.Background())
	require.Equal(t, schemas.StatusCompleted, analysis.Status)

	score := analysis.ModuleScore
	require.NotNil(t, score)
	require.Len(t, score.Items, 1)
	item := score.Items[0]
	assert.Equal(t, "Overall Prompt Visibility", item.Name)

	// Mentioned in 1 of 2 answers, ranked #2 there: 0.5*40 + 0.5*60.
	assert.Equal(t, 50, item.ActualPoints)
	assert.Equal(t, 100, item.MaxPoints)
	assert.Equal(t, "Mentioned in 1/2 queries, top 3 in 1", item.Notes)
	assert.Contains(t, item.Recommendation, "review sites")

	assert.Contains(t, analysis.AnalysisText, "| Best software for SaaS compliance | #2 | Rival |")
	assert.Contains(t, analysis.AnalysisText, "| Top rated audit tools | not mentioned | Generic advice |")

	results, ok := analysis.RawData["results"].([]promptResult)
	require.True(t, ok)
	require.Len(t, results, 2)
	assert.Equal(t, promptRanking{Name: "Rival", Rank: 1, Mentioned: true}, results[0].Rankings[0])
	assert.Equal(t, promptRanking{Name: "Acme", Rank: 2, Mentioned: true}, results[0].Rankings[1])
	assert.Equal(t, 999, results[1].Rankings[0].Rank)
}

func TestPromptVisibilityTemplatedQuestions(t *testing.T) {
	st := visibilityStore("Rival")
	llm := &fakeLLM{
		responses: []map[string]any{{}},
		texts: []string{
			"Acme leads the pack.", "Acme again.", "Acme or Rival.", "Acme.", "Acme wins.",
		},
	}
	a := NewPromptVisibility(st, llm, testLogger())

	questions := a.identifyQuestions(context.Background())
	require.Len(t, questions, 5)
	assert.Contains(t, questions, "Best software for SaaS")
	assert.Contains(t, questions, "Alternatives to Rival")

	analysis := a.Execute(context.Background())
	require.Equal(t, schemas.StatusCompleted, analysis.Status)
	// The Execute call consumed a second empty JSON response, so the same
	// templated questions were asked; every answer names the company
	// first.
	item := analysis.ModuleScore.Items[0]
	assert.Equal(t, 100, item.ActualPoints)
	assert.Empty(t, item.Recommendation)
}

func TestPromptVisibilityWithoutModel(t *testing.T) {
	st := visibilityStore()
	a := NewPromptVisibility(st, nil, testLogger())

	analysis := a.Execute(context.Background())
	require.Equal(t, schemas.StatusCompleted, analysis.Status)

	item := analysis.ModuleScore.Items[0]
	assert.Equal(t, 0, item.ActualPoints)
	assert.Contains(t, item.Notes, "Requires text-generation access")
	require.Len(t, analysis.ModuleScore.Recommendations, 1)
	assert.Equal(t, schemas.KPIBrandAwareness, analysis.ModuleScore.Recommendations[0].KPIImpact)
}

func TestPromptVisibilityRequiresResearch(t *testing.T) {
	st := store.New(store.Config{CompanyName: "Acme", CompanyWebsite: "https://acme.io"})
	a := NewPromptVisibility(st, nil, testLogger())

	analysis := a.Execute(context.Background())
	assert.Equal(t, schemas.StatusPending, analysis.Status)
	assert.Equal(t, []string{"deep_research"}, a.MissingDependencies())
}

func TestRankMentionsOrdersByFirstAppearance(t *testing.T) {
	rankings := rankMentions("We like widgetco, then ACME, then Gadget Inc.", "Acme", []string{"Gadget Inc", "WidgetCo"})
	require.Len(t, rankings, 3)
	assert.Equal(t, promptRanking{Name: "WidgetCo", Rank: 1, Mentioned: true}, rankings[0])
	assert.Equal(t, promptRanking{Name: "Acme", Rank: 2, Mentioned: true}, rankings[1])
	assert.Equal(t, promptRanking{Name: "Gadget Inc", Rank: 3, Mentioned: true}, rankings[2])
}
