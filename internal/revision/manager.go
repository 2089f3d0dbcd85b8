// Package revision tracks the bounded critique/revision budget for an
// audit run. The manager is the single authority on how many revision
// attempts each agent has been granted and whether another cycle is
// allowed.
package revision

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Request is one issued revision, identified so its result can be
// recorded later.
type Request struct {
	ID          string    `json:"id"`
	Agent       string    `json:"agent"`
	Issues      []string  `json:"issues"`
	Suggestions []string  `json:"suggestions"`
	IssuedAt    time.Time `json:"issued_at"`
}

// Result records the outcome of one revision request.
type Result struct {
	RequestID   string    `json:"request_id"`
	Agent       string    `json:"agent"`
	Improved    bool      `json:"improved"`
	CompletedAt time.Time `json:"completed_at"`
}

// Manager enforces the revision budget. The budget is per agent: each
// agent may be asked to revise at most maxRevisions times, and one
// exhausted agent never blocks requests for another. Requests beyond an
// agent's budget are refused, never queued; every recorded result
// corresponds to a previously issued request. The same bound caps the
// number of critique cycles.
type Manager struct {
	maxRevisions int
	cycle        int
	requests     map[string][]Request
	results      map[string][]Result
	log          []Request
	logger       *zap.Logger
}

func NewManager(maxRevisions int, logger *zap.Logger) *Manager {
	if maxRevisions < 0 {
		maxRevisions = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		maxRevisions: maxRevisions,
		requests:     make(map[string][]Request),
		results:      make(map[string][]Result),
		logger:       logger,
	}
}

// CanRequest reports whether the named agent still has revision budget.
func (m *Manager) CanRequest(agent string) bool {
	return len(m.requests[agent]) < m.maxRevisions
}

// Request issues a revision for the named agent, or returns nil when
// that agent's budget is exhausted.
func (m *Manager) Request(agent string, issues, suggestions []string) *Request {
	if !m.CanRequest(agent) {
		m.logger.Warn("Revision budget exhausted for agent",
			zap.String("agent", agent),
			zap.Int("attempts", len(m.requests[agent])),
			zap.Int("max_revisions", m.maxRevisions))
		return nil
	}
	req := Request{
		ID:          uuid.NewString(),
		Agent:       agent,
		Issues:      issues,
		Suggestions: suggestions,
		IssuedAt:    time.Now().UTC(),
	}
	m.requests[agent] = append(m.requests[agent], req)
	m.log = append(m.log, req)
	m.logger.Info("Revision requested",
		zap.String("agent", agent),
		zap.String("request_id", req.ID),
		zap.Int("attempt", len(m.requests[agent])),
		zap.Int("budget", m.maxRevisions))
	return &req
}

// RecordResult stores the outcome of an issued request. Unknown request
// IDs are rejected so an agent's results can never outnumber its
// requests.
func (m *Manager) RecordResult(requestID string, improved bool) error {
	var req *Request
	for i := range m.log {
		if m.log[i].ID == requestID {
			req = &m.log[i]
			break
		}
	}
	if req == nil {
		return fmt.Errorf("unknown revision request %q", requestID)
	}
	for _, r := range m.results[req.Agent] {
		if r.RequestID == requestID {
			return fmt.Errorf("revision request %q already resolved", requestID)
		}
	}
	m.results[req.Agent] = append(m.results[req.Agent], Result{
		RequestID:   requestID,
		Agent:       req.Agent,
		Improved:    improved,
		CompletedAt: time.Now().UTC(),
	})
	m.logger.Info("Revision resolved",
		zap.String("agent", req.Agent),
		zap.String("request_id", requestID),
		zap.Bool("improved", improved))
	return nil
}

// PendingRequests returns issued requests with no recorded result.
func (m *Manager) PendingRequests() []Request {
	resolved := make(map[string]bool)
	for _, results := range m.results {
		for _, r := range results {
			resolved[r.RequestID] = true
		}
	}
	var pending []Request
	for _, req := range m.log {
		if !resolved[req.ID] {
			pending = append(pending, req)
		}
	}
	return pending
}

// StartCycle opens the next critique cycle and returns its number.
func (m *Manager) StartCycle() int {
	m.cycle++
	return m.cycle
}

// Cycle returns the number of critique cycles started.
func (m *Manager) Cycle() int { return m.cycle }

// ShouldContinue reports whether another critique cycle is worthwhile.
// It stops the loop when the cycle cap is reached, and otherwise
// continues while any agent either has an unresolved request or failed
// its last attempt with budget remaining. An agent that never improves
// is abandoned once its own budget runs out; it never extends the loop
// for everyone else.
func (m *Manager) ShouldContinue() bool {
	if m.cycle >= m.maxRevisions {
		return false
	}
	if len(m.log) == 0 {
		return true
	}
	for agent, reqs := range m.requests {
		results := m.results[agent]
		if len(results) < len(reqs) {
			return true
		}
		if len(results) > 0 && !results[len(results)-1].Improved && m.CanRequest(agent) {
			return true
		}
	}
	return false
}

// Attempts returns how many revisions have been issued for the agent.
func (m *Manager) Attempts(agent string) int { return len(m.requests[agent]) }

// Used returns how many revisions have been issued across all agents.
func (m *Manager) Used() int { return len(m.log) }

// Budget returns the configured per-agent maximum.
func (m *Manager) Budget() int { return m.maxRevisions }

// History returns all issued requests in issue order.
func (m *Manager) History() []Request {
	out := make([]Request, len(m.log))
	copy(out, m.log)
	return out
}

// CycleSummary renders a short human-readable account of the revision
// activity for report output.
func (m *Manager) CycleSummary() string {
	if len(m.log) == 0 {
		return "No revisions were needed."
	}
	completed, improved := 0, 0
	for _, results := range m.results {
		completed += len(results)
		for _, r := range results {
			if r.Improved {
				improved++
			}
		}
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d revision cycles run; %d attempts completed, %d improved their analysis.",
		m.cycle, completed, improved)
	seen := make(map[string]bool)
	b.WriteString(" Attempts:")
	for _, req := range m.log {
		if seen[req.Agent] {
			continue
		}
		seen[req.Agent] = true
		fmt.Fprintf(&b, " %s(%d/%d)", req.Agent, len(m.requests[req.Agent]), m.maxRevisions)
	}
	b.WriteString(".")
	return b.String()
}
