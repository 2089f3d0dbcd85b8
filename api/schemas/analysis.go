package schemas

import "time"

// AgentAnalysis is the per-agent execution record held in the context
// store. One record exists per agent name; it is overwritten in place on
// re-runs. The error list only ever grows.
type AgentAnalysis struct {
	AgentName       string         `json:"agent_name"`
	Status          AgentStatus    `json:"status"`
	ModuleScore     *ModuleScore   `json:"module_score,omitempty"`
	AnalysisText    string         `json:"analysis_text"`
	Plan            string         `json:"plan,omitempty"`
	RawData         map[string]any `json:"raw_data,omitempty"`
	Errors          []string       `json:"errors,omitempty"`
	StartedAt       time.Time      `json:"started_at,omitzero"`
	CompletedAt     time.Time      `json:"completed_at,omitzero"`
	RevisionCount   int            `json:"revision_count"`
	SelfAuditPassed bool           `json:"self_audit_passed"`
}

// NewAgentAnalysis creates a fresh pending record for the named agent.
func NewAgentAnalysis(agentName string) *AgentAnalysis {
	return &AgentAnalysis{
		AgentName: agentName,
		Status:    StatusPending,
		RawData:   make(map[string]any),
	}
}

// RecordError appends to the analysis error list. Errors accumulate across
// runs and revisions; they are never cleared.
func (a *AgentAnalysis) RecordError(msg string) {
	a.Errors = append(a.Errors, msg)
}

// IsCompleted reports whether this analysis satisfies a dependency edge.
// Only COMPLETED counts; FAILED and NEEDS_REVISION do not.
func (a *AgentAnalysis) IsCompleted() bool {
	return a != nil && a.Status == StatusCompleted
}
