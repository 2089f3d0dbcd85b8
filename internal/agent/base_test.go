package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vantagehq/marketscope/api/schemas"
	"github.com/vantagehq/marketscope/internal/store"
)

// stubAgent exercises the shared execution machinery with scriptable
// behavior.
type stubAgent struct {
	*BaseAgent
	score     *schemas.ModuleScore
	runErr    error
	panicWith any
	auditPass bool
}

func newStubAgent(st *store.ContextStore, deps []string) *stubAgent {
	a := &stubAgent{
		BaseAgent: NewBase("stub", deps, 1.0, st, nil, testLogger()),
		auditPass: true,
	}
	a.score = &schemas.ModuleScore{
		Name:         "Stub",
		Items:        []schemas.ScoreItem{{Name: "x", MaxPoints: 10, ActualPoints: 5}},
		AnalysisText: "A sufficiently long narrative describing what the stub found during analysis.",
	}
	a.bind(a)
	return a
}

func (a *stubAgent) Run(context.Context) (*schemas.ModuleScore, error) {
	if a.panicWith != nil {
		panic(a.panicWith)
	}
	return a.score, a.runErr
}

func (a *stubAgent) SelfAudit() bool { return a.auditPass }

func TestExecuteStaysPendingOnUnmetDependencies(t *testing.T) {
	st := testStore()
	a := newStubAgent(st, []string{"website", "positioning"})

	analysis := a.Execute(context.Background())

	assert.Equal(t, schemas.StatusPending, analysis.Status)
	require.Len(t, analysis.Errors, 1)
	assert.Contains(t, analysis.Errors[0], "website")
	assert.Contains(t, analysis.Errors[0], "positioning")
	assert.Equal(t, []string{"website", "positioning"}, a.MissingDependencies())
	assert.False(t, a.CanRun())

	// The pending record is persisted for the scheduler to observe.
	assert.NotNil(t, st.GetAnalysis("stub"))
}

func TestExecuteIgnoresNonCompletedDependencies(t *testing.T) {
	st := testStore()
	failed := schemas.NewAgentAnalysis("website")
	failed.Status = schemas.StatusFailed
	st.SetAnalysis(failed)

	a := newStubAgent(st, []string{"website"})
	assert.False(t, a.CanRun(), "failed dependencies do not satisfy the edge")

	revising := schemas.NewAgentAnalysis("website")
	revising.Status = schemas.StatusNeedsRevision
	st.SetAnalysis(revising)
	assert.False(t, a.CanRun(), "needs_revision does not satisfy the edge either")
}

func TestExecuteCompletesAndPersists(t *testing.T) {
	st := testStore()
	a := newStubAgent(st, nil)

	analysis := a.Execute(context.Background())

	assert.Equal(t, schemas.StatusCompleted, analysis.Status)
	assert.True(t, analysis.SelfAuditPassed)
	assert.NotEmpty(t, analysis.Plan)
	assert.False(t, analysis.StartedAt.IsZero())
	assert.False(t, analysis.CompletedAt.IsZero())
	assert.Equal(t, analysis, st.GetAnalysis("stub"))
	assert.Equal(t, a.score.AnalysisText, analysis.AnalysisText)
}

func TestExecuteRecordsRunFailure(t *testing.T) {
	st := testStore()
	a := newStubAgent(st, nil)
	a.runErr = errors.New("upstream timeout")

	analysis := a.Execute(context.Background())

	assert.Equal(t, schemas.StatusFailed, analysis.Status)
	require.Len(t, analysis.Errors, 1)
	assert.Contains(t, analysis.Errors[0], "upstream timeout")
}

func TestExecuteContainsPanics(t *testing.T) {
	st := testStore()
	a := newStubAgent(st, nil)
	a.panicWith = "nil map write"

	var analysis *schemas.AgentAnalysis
	require.NotPanics(t, func() {
		analysis = a.Execute(context.Background())
	})
	assert.Equal(t, schemas.StatusFailed, analysis.Status)
	require.Len(t, analysis.Errors, 1)
	assert.Contains(t, analysis.Errors[0], "panicked")
}

func TestExecuteFlagsFailedSelfAudit(t *testing.T) {
	st := testStore()
	a := newStubAgent(st, nil)
	a.auditPass = false

	analysis := a.Execute(context.Background())

	assert.Equal(t, schemas.StatusNeedsRevision, analysis.Status)
	assert.False(t, analysis.SelfAuditPassed)
	assert.NotNil(t, analysis.ModuleScore, "score is kept even when flagged")
}

func TestReviseIncrementsRevisionCount(t *testing.T) {
	st := testStore()
	a := newStubAgent(st, nil)
	a.Execute(context.Background())

	score, err := a.Revise(context.Background(), "issues found", []string{"add detail"})
	require.NoError(t, err)
	assert.NotNil(t, score)
	assert.Equal(t, 1, a.Analysis().RevisionCount)
}

func TestDefaultSelfAuditThresholds(t *testing.T) {
	st := testStore()
	a := newStubAgent(st, nil)

	t.Run("no score", func(t *testing.T) {
		a.Analysis().ModuleScore = nil
		assert.False(t, a.BaseAgent.SelfAudit())
	})
	t.Run("no items", func(t *testing.T) {
		a.Analysis().ModuleScore = &schemas.ModuleScore{AnalysisText: a.score.AnalysisText}
		assert.False(t, a.BaseAgent.SelfAudit())
	})
	t.Run("short narrative", func(t *testing.T) {
		a.Analysis().ModuleScore = &schemas.ModuleScore{
			Items:        a.score.Items,
			AnalysisText: "too short",
		}
		assert.False(t, a.BaseAgent.SelfAudit())
	})
	t.Run("passes", func(t *testing.T) {
		a.Analysis().ModuleScore = a.score
		assert.True(t, a.BaseAgent.SelfAudit())
	})
}

func TestRequestScreenshotTypes(t *testing.T) {
	st := testStore()
	a := newStubAgent(st, nil)

	a.RequestScreenshot("https://acme.io", "")
	a.RequestScreenshot("https://acme.io", ".hero")

	pending := st.PendingScreenshots()
	require.Len(t, pending, 2)
	types := map[schemas.ScreenshotType]bool{}
	for _, shot := range pending {
		types[shot.Type] = true
	}
	assert.True(t, types[schemas.ScreenshotFullPage])
	assert.True(t, types[schemas.ScreenshotElement])
}
