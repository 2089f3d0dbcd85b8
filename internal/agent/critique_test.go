package agent

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vantagehq/marketscope/api/schemas"
	"github.com/vantagehq/marketscope/internal/store"
)

// qualityAnalysis builds a completed analysis that clears every generic
// critique threshold: long narrative, four noted items, varied points.
func qualityAnalysis(name string, pts ...int) *schemas.AgentAnalysis {
	if len(pts) == 0 {
		pts = []int{8, 6, 9, 7}
	}
	a := schemas.NewAgentAnalysis(name)
	a.Status = schemas.StatusCompleted
	score := schemas.NewModuleScore(name, 1.0)
	for i, p := range pts {
		score.Items = append(score.Items, schemas.ScoreItem{
			Name:         fmt.Sprintf("Criterion %d", i+1),
			MaxPoints:    10,
			ActualPoints: p,
			Notes:        fmt.Sprintf("Observed detail %d on the live site", i+1),
		})
	}
	score.AnalysisText = strings.Repeat("The review covers concrete findings from the crawled pages in depth. ", 3)
	score.RawData = map[string]any{}
	a.ModuleScore = score
	return a
}

func seedPassingRoster(st *store.ContextStore) {
	for _, name := range scoringAgents {
		a := qualityAnalysis(name)
		switch name {
		case "positioning":
			a.ModuleScore.RawData["strengths"] = []any{"Clear category claim"}
			a.ModuleScore.RawData["weaknesses"] = []any{"Weak proof points"}
		case "seo":
			a.ModuleScore.RawData["avg_load_time"] = 1.2
		case "top5_pages":
			a.ModuleScore.RawData["pages_analyzed"] = []string{
				"https://acme.io", "https://acme.io/pricing", "https://acme.io/about",
			}
		}
		st.SetAnalysis(a)
	}
}

func TestCritiqueAllPass(t *testing.T) {
	st := testStore()
	seedPassingRoster(st)

	c := NewCritique(st, nil, testLogger())
	analysis := c.Execute(context.Background())

	require.Equal(t, schemas.StatusCompleted, analysis.Status)
	assert.Len(t, c.Results(), len(scoringAgents))
	assert.Empty(t, c.RevisionRequests())

	score := analysis.ModuleScore
	require.Len(t, score.Items, 1)
	assert.Equal(t, "Quality Review", score.Items[0].Name)
	assert.Equal(t, len(scoringAgents), score.Items[0].MaxPoints)
	assert.Equal(t, len(scoringAgents), score.Items[0].ActualPoints)
	assert.Contains(t, score.AnalysisText, "Good quality")
	assert.Equal(t, len(scoringAgents), score.RawData["passed_count"])
}

func TestCritiqueFlagsShortAnalysis(t *testing.T) {
	st := testStore()
	seedPassingRoster(st)

	weak := qualityAnalysis("content", 5, 5)
	weak.ModuleScore.Items = weak.ModuleScore.Items[:2]
	weak.ModuleScore.AnalysisText = "Too thin."
	st.SetAnalysis(weak)

	c := NewCritique(st, nil, testLogger())
	analysis := c.Execute(context.Background())

	requests := c.RevisionRequests()
	require.Len(t, requests, 1)
	assert.Equal(t, "content", requests[0].Agent)
	assert.Contains(t, requests[0].Issues, "Analysis text too short or missing")
	assert.Contains(t, requests[0].Issues, "Too few score items (2)")

	score := analysis.ModuleScore
	require.Len(t, score.Items, 2)
	assert.Equal(t, "Revisions Needed", score.Items[1].Name)
	require.Len(t, score.Recommendations, 1)
	assert.Equal(t, "Quality Assurance", score.Recommendations[0].Category)
	assert.Contains(t, score.Recommendations[0].Issue, "content analysis needs improvement")
}

func TestCritiqueSkipsUnfinishedAgents(t *testing.T) {
	st := testStore()
	for _, name := range scoringAgents {
		st.SetAnalysis(qualityAnalysis(name))
	}
	pending := schemas.NewAgentAnalysis("trust")
	pending.Status = schemas.StatusNeedsRevision
	st.SetAnalysis(pending)

	c := NewCritique(st, nil, testLogger())
	c.Execute(context.Background())

	for _, r := range c.Results() {
		assert.NotEqual(t, "trust", r.Agent)
	}
	assert.Len(t, c.Results(), len(scoringAgents)-1)
}

func TestCritiqueGenericNotesCountAsEmpty(t *testing.T) {
	st := testStore()

	a := qualityAnalysis("trust")
	for i := range a.ModuleScore.Items {
		a.ModuleScore.Items[i].Notes = "Manual review recommended"
	}
	st.SetAnalysis(a)

	c := NewCritique(st, nil, testLogger())
	c.Execute(context.Background())

	require.Len(t, c.Results(), 1)
	result := c.Results()[0]
	assert.Contains(t, result.Issues, "4 score items lack specific notes")
	// A single minor issue is tolerated.
	assert.True(t, result.Passed)
}

func TestCritiqueUniformScores(t *testing.T) {
	st := testStore()
	st.SetAnalysis(qualityAnalysis("social", 7, 7, 7, 7, 7))

	c := NewCritique(st, nil, testLogger())
	c.Execute(context.Background())

	require.Len(t, c.Results(), 1)
	assert.Contains(t, c.Results()[0].Issues, "All scores are identical - may indicate superficial analysis")
}

func TestCritiqueCompetitorRuleIsFatal(t *testing.T) {
	st := testStore()
	c := NewCritique(st, nil, testLogger())

	a := qualityAnalysis("competitor")
	a.ModuleScore.RawData["competitors"] = []any{}

	result := c.critiqueAnalysis("competitor", a)
	assert.False(t, result.Passed)
	assert.Contains(t, result.Issues, "No competitor data captured")
}

func TestCritiqueTopPagesCoverage(t *testing.T) {
	st := testStore()
	seedPassingRoster(st)

	a := st.GetAnalysis("top5_pages")
	a.ModuleScore.RawData["pages_analyzed"] = []string{"https://acme.io"}
	st.SetAnalysis(a)

	c := NewCritique(st, nil, testLogger())
	c.Execute(context.Background())

	var topPages CritiqueResult
	for _, r := range c.Results() {
		if r.Agent == "top5_pages" {
			topPages = r
		}
	}
	assert.Contains(t, topPages.Issues, "Too few critical pages analyzed")
	// Non-fatal; a single issue still passes.
	assert.True(t, topPages.Passed)
}

func TestCritiqueCrossAgentGap(t *testing.T) {
	st := testStore()
	seedPassingRoster(st)

	low := qualityAnalysis("content", 2, 1, 3, 2)
	st.SetAnalysis(low)

	c := NewCritique(st, nil, testLogger())
	c.Execute(context.Background())

	results := c.Results()
	require.Len(t, results, len(scoringAgents)+1)
	last := results[len(results)-1]
	assert.Equal(t, "cross_agent", last.Agent)
	assert.False(t, last.Passed)
	assert.Contains(t, last.Issues[0], "Large score gap")

	// Consistency findings never generate revision requests.
	for _, req := range c.RevisionRequests() {
		assert.NotEqual(t, "cross_agent", req.Agent)
	}
}

func TestCritiqueSummaryBands(t *testing.T) {
	st := testStore()
	for i, name := range scoringAgents {
		a := qualityAnalysis(name)
		if i < 5 {
			a.ModuleScore.AnalysisText = "Too thin."
		}
		st.SetAnalysis(a)
	}

	c := NewCritique(st, nil, testLogger())
	analysis := c.Execute(context.Background())

	assert.Contains(t, analysis.ModuleScore.AnalysisText, "Needs improvement")
}

func TestCritiqueSelfAuditAlwaysPasses(t *testing.T) {
	st := testStore()
	seedPassingRoster(st)
	c := NewCritique(st, nil, testLogger())
	c.Execute(context.Background())
	assert.True(t, c.SelfAudit())
	assert.Equal(t, schemas.StatusCompleted, c.Analysis().Status)
}
