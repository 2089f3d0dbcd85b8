package revision

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerPerAgentBudget(t *testing.T) {
	m := NewManager(2, nil)
	assert.Equal(t, 2, m.Budget())

	first := m.Request("seo", []string{"thin analysis"}, []string{"add detail"})
	require.NotNil(t, first)
	assert.Equal(t, "seo", first.Agent)
	assert.NotEmpty(t, first.ID)

	require.NotNil(t, m.Request("seo", nil, nil))
	assert.False(t, m.CanRequest("seo"))

	// seo is exhausted; further requests for it are refused, not queued.
	assert.Nil(t, m.Request("seo", nil, nil))
	assert.Equal(t, 2, m.Attempts("seo"))

	// Other agents keep their own budget regardless of seo's.
	assert.True(t, m.CanRequest("content"))
	require.NotNil(t, m.Request("content", nil, nil))
	assert.Equal(t, 1, m.Attempts("content"))
	assert.Len(t, m.History(), 3)
}

func TestManagerFirstRequestNeverStarvedByOtherAgents(t *testing.T) {
	m := NewManager(3, nil)
	for _, name := range []string{"seo", "content", "trust"} {
		require.NotNil(t, m.Request(name, nil, nil))
	}

	// A fourth agent's first revision must not be refused just because
	// three requests exist elsewhere.
	req := m.Request("conversion", []string{"self-audit failed"}, nil)
	require.NotNil(t, req)
	assert.Equal(t, 1, m.Attempts("conversion"))
}

func TestManagerNegativeBudget(t *testing.T) {
	m := NewManager(-1, nil)
	assert.Equal(t, 0, m.Budget())
	assert.False(t, m.CanRequest("seo"))
	assert.Nil(t, m.Request("seo", nil, nil))
}

func TestManagerRecordResult(t *testing.T) {
	m := NewManager(3, nil)
	req := m.Request("seo", nil, nil)
	require.NotNil(t, req)

	require.Len(t, m.PendingRequests(), 1)

	require.NoError(t, m.RecordResult(req.ID, true))
	assert.Empty(t, m.PendingRequests())

	// Double resolution and unknown IDs are rejected.
	err := m.RecordResult(req.ID, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already resolved")

	err = m.RecordResult("nonexistent", true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown revision request")
}

func TestManagerShouldContinue(t *testing.T) {
	m := NewManager(3, nil)

	// Nothing tried yet.
	assert.True(t, m.ShouldContinue())

	m.StartCycle()
	req := m.Request("seo", nil, nil)
	require.NoError(t, m.RecordResult(req.ID, false))

	// seo failed its attempt but still has budget.
	assert.True(t, m.ShouldContinue())

	m.StartCycle()
	req = m.Request("seo", nil, nil)
	require.NoError(t, m.RecordResult(req.ID, true))

	// Every agent's last attempt improved; the loop has converged.
	assert.False(t, m.ShouldContinue())
}

func TestManagerShouldContinueStopsAtCycleCap(t *testing.T) {
	m := NewManager(2, nil)

	for cycle := 1; cycle <= 2; cycle++ {
		assert.Equal(t, cycle, m.StartCycle())
		req := m.Request("content", []string{"still thin"}, nil)
		require.NotNil(t, req)
		require.NoError(t, m.RecordResult(req.ID, false))
	}

	// content never improved, but the cycle cap ends the loop anyway.
	assert.Equal(t, 2, m.Cycle())
	assert.False(t, m.ShouldContinue())
}

func TestManagerShouldContinueStopsWhenAllExhausted(t *testing.T) {
	m := NewManager(1, nil)
	m.StartCycle()
	req := m.Request("seo", nil, nil)
	require.NoError(t, m.RecordResult(req.ID, false))

	assert.False(t, m.CanRequest("seo"))
	assert.False(t, m.ShouldContinue())
}

func TestManagerMultiCycleInvariants(t *testing.T) {
	agents := []string{"seo", "content", "trust", "conversion"}
	m := NewManager(2, nil)

	// Two cycles in which every agent fails critique and is revised
	// without improving.
	for m.ShouldContinue() {
		m.StartCycle()
		for _, name := range agents {
			req := m.Request(name, []string{"quality issues"}, nil)
			if req == nil {
				continue
			}
			require.NoError(t, m.RecordResult(req.ID, false))
		}
	}

	assert.Equal(t, 2, m.Cycle())
	for _, name := range agents {
		assert.Equal(t, 2, m.Attempts(name), name)
		assert.False(t, m.CanRequest(name), name)
	}
	assert.Empty(t, m.PendingRequests())
	assert.Equal(t, len(agents)*2, m.Used())
}

func TestManagerCycleSummary(t *testing.T) {
	m := NewManager(3, nil)
	assert.Equal(t, "No revisions were needed.", m.CycleSummary())

	m.StartCycle()
	first := m.Request("seo", nil, nil)
	second := m.Request("content", nil, nil)
	require.NoError(t, m.RecordResult(first.ID, true))
	require.NoError(t, m.RecordResult(second.ID, false))
	m.StartCycle()
	m.Request("seo", nil, nil)

	summary := m.CycleSummary()
	assert.Contains(t, summary, "2 revision cycles run")
	assert.Contains(t, summary, "2 attempts completed, 1 improved")
	assert.Contains(t, summary, "seo(2/3)")
	assert.Contains(t, summary, "content(1/3)")
}

func TestManagerResultsNeverOutnumberRequests(t *testing.T) {
	m := NewManager(2, nil)
	a := m.Request("seo", nil, nil)
	b := m.Request("content", nil, nil)
	require.NoError(t, m.RecordResult(a.ID, true))
	require.NoError(t, m.RecordResult(b.ID, false))

	assert.Empty(t, m.PendingRequests())
	assert.Error(t, m.RecordResult(a.ID, true))
	for _, name := range []string{"seo", "content"} {
		assert.LessOrEqual(t, m.Attempts(name), m.Budget())
	}
}
