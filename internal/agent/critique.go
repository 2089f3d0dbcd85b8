package agent

import (
	"context"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/vantagehq/marketscope/api/schemas"
	"github.com/vantagehq/marketscope/internal/store"
)

// Quality thresholds a module score must clear to pass critique.
const (
	minAnalysisLength  = 100
	minScoreItems      = 3
	minRecommendations = 2
	maxEmptyNotes      = 2

	// genericNote is the filler agents leave when a criterion was not
	// really assessed; too many of them is a quality failure.
	genericNote = "Manual review recommended"

	// maxScoreGap is the largest tolerated percentage spread between
	// positioning and content before flagging an inconsistency.
	maxScoreGap = 30.0
)

// CritiqueResult is the verdict on one agent's analysis.
type CritiqueResult struct {
	Agent       string   `json:"agent"`
	Passed      bool     `json:"passed"`
	Issues      []string `json:"issues"`
	Suggestions []string `json:"suggestions"`
	ScorePct    float64  `json:"score_percentage"`
}

// RevisionRequest asks one agent to improve its analysis.
type RevisionRequest struct {
	Agent       string   `json:"agent"`
	Issues      []string `json:"issues"`
	Suggestions []string `json:"suggestions"`
}

// Critique reviews every completed analysis against fixed quality
// thresholds and flags the ones that need another pass. It never blocks
// the run: its output is a set of revision requests the orchestrator may
// or may not be able to honor within the revision budget.
type Critique struct {
	*BaseAgent
	results  []CritiqueResult
	requests []RevisionRequest
}

// scoringAgents is the review roster; data-collection agents are exempt.
var scoringAgents = []string{
	"positioning", "seo", "conversion", "content",
	"trust", "social", "segmentation", "resource_hub", "top5_pages",
}

func NewCritique(st *store.ContextStore, llm schemas.LLMClient, logger *zap.Logger) *Critique {
	a := &Critique{BaseAgent: NewBase("critique", scoringAgents, 0, st, llm, logger)}
	a.bind(a)
	return a
}

// CanRun requires only one reviewable analysis. Agents flagged for
// revision are skipped during the run rather than waited on, so a partial
// roster never blocks the critique pass.
func (a *Critique) CanRun() bool {
	return len(a.MissingDependencies()) < len(a.deps)
}

// RevisionRequests returns the requests produced by the last run.
func (a *Critique) RevisionRequests() []RevisionRequest { return a.requests }

// Results returns the per-agent verdicts from the last run.
func (a *Critique) Results() []CritiqueResult { return a.results }

func (a *Critique) Plan() string {
	return fmt.Sprintf("Review %d analyses against quality thresholds and flag the ones needing revision", len(a.deps))
}

func (a *Critique) Run(ctx context.Context) (*schemas.ModuleScore, error) {
	module := schemas.NewModuleScore("Audit Critique", 0)

	a.results = nil
	a.requests = nil

	for _, name := range a.deps {
		analysis := a.Store.GetAnalysis(name)
		if analysis == nil || analysis.Status != schemas.StatusCompleted {
			continue
		}
		result := a.critiqueAnalysis(name, analysis)
		a.results = append(a.results, result)
		if !result.Passed {
			a.requests = append(a.requests, RevisionRequest{
				Agent:       name,
				Issues:      result.Issues,
				Suggestions: result.Suggestions,
			})
		}
	}

	if issues := a.checkConsistency(); len(issues) > 0 {
		a.results = append(a.results, CritiqueResult{
			Agent:       "cross_agent",
			Passed:      false,
			Issues:      issues,
			Suggestions: []string{"Ensure messaging consistency across analyses"},
		})
	}

	passed := 0
	for _, r := range a.results {
		if r.Passed {
			passed++
		}
	}

	module.Items = append(module.Items, schemas.ScoreItem{
		Name:         "Quality Review",
		Description:  "Agents passing quality review",
		MaxPoints:    len(a.results),
		ActualPoints: passed,
		Notes:        fmt.Sprintf("%d/%d agents passed critique", passed, len(a.results)),
	})
	if len(a.requests) > 0 {
		module.Items = append(module.Items, schemas.ScoreItem{
			Name:        "Revisions Needed",
			Description: "Agents requiring revision",
			Notes:       fmt.Sprintf("%d agents flagged for revision", len(a.requests)),
		})
	}

	for _, req := range a.requests {
		rec := schemas.Recommendation{
			Issue:          fmt.Sprintf("%s analysis needs improvement: %s", req.Agent, strings.Join(firstN(req.Issues, 2), ", ")),
			Recommendation: firstOr(req.Suggestions, "Review and improve analysis"),
			Impact:         schemas.ImpactMedium,
			Effort:         schemas.EffortLow,
			Category:       "Quality Assurance",
		}
		module.Recommendations = append(module.Recommendations, rec)
	}

	module.AnalysisText = a.summary(passed)
	module.RawData = map[string]any{
		"critique_results":  a.results,
		"revision_requests": a.requests,
		"passed_count":      passed,
		"total_count":       len(a.results),
	}

	a.Logger.Info("Critique complete",
		zap.Int("reviewed", len(a.results)),
		zap.Int("passed", passed),
		zap.Int("flagged", len(a.requests)))

	return module, nil
}

func (a *Critique) critiqueAnalysis(name string, analysis *schemas.AgentAnalysis) CritiqueResult {
	score := analysis.ModuleScore
	if score == nil {
		return CritiqueResult{
			Agent:       name,
			Issues:      []string{"No module score produced"},
			Suggestions: []string{"Ensure agent produces a valid module score"},
		}
	}

	var issues, suggestions []string
	failed := false

	if len(score.AnalysisText) < minAnalysisLength {
		issues = append(issues, "Analysis text too short or missing")
		suggestions = append(suggestions, "Provide more detailed analysis explanation")
		failed = true
	}

	if len(score.Items) < minScoreItems {
		issues = append(issues, fmt.Sprintf("Too few score items (%d)", len(score.Items)))
		suggestions = append(suggestions, fmt.Sprintf("Add more granular scoring criteria (minimum %d)", minScoreItems))
		failed = true
	}

	emptyNotes := 0
	for _, item := range score.Items {
		if item.Notes == "" || item.Notes == genericNote {
			emptyNotes++
		}
	}
	if emptyNotes > maxEmptyNotes {
		issues = append(issues, fmt.Sprintf("%d score items lack specific notes", emptyNotes))
		suggestions = append(suggestions, "Add specific observations to each score item")
	}

	if a.LLMAvailable() && len(score.Recommendations) < minRecommendations {
		issues = append(issues, "Too few recommendations")
		suggestions = append(suggestions, fmt.Sprintf("Provide at least %d actionable recommendations", minRecommendations))
	}

	if score.UniformScores() {
		issues = append(issues, "All scores are identical - may indicate superficial analysis")
		suggestions = append(suggestions, "Differentiate scoring based on specific criteria")
	}

	specific := a.agentSpecificCritique(name, score)
	issues = append(issues, specific.Issues...)
	suggestions = append(suggestions, specific.Suggestions...)
	if !specific.Passed {
		failed = true
	}

	return CritiqueResult{
		Agent:       name,
		Passed:      !failed && len(issues) <= 2, // tolerate up to 2 minor issues
		Issues:      issues,
		Suggestions: suggestions,
		ScorePct:    score.Percentage(),
	}
}

// agentSpecificCritique applies per-agent rules on top of the generic
// thresholds. Passed=false here is a fatal failure regardless of issue
// count.
func (a *Critique) agentSpecificCritique(name string, score *schemas.ModuleScore) CritiqueResult {
	result := CritiqueResult{Passed: true}

	switch name {
	case "positioning":
		strengths, _ := score.RawData["strengths"].([]any)
		weaknesses, _ := score.RawData["weaknesses"].([]any)
		if len(strengths) == 0 && len(weaknesses) == 0 {
			result.Issues = append(result.Issues, "No strengths/weaknesses identified")
			result.Suggestions = append(result.Suggestions, "Identify specific positioning strengths and weaknesses")
		}

	case "seo":
		if _, ok := score.RawData["avg_load_time"]; !ok {
			result.Issues = append(result.Issues, "Missing performance metrics")
			result.Suggestions = append(result.Suggestions, "Include specific load time measurements")
		}

	case "competitor":
		comps, _ := score.RawData["competitors"].([]any)
		if len(comps) == 0 {
			result.Issues = append(result.Issues, "No competitor data captured")
			result.Passed = false
		}

	case "top5_pages":
		analyzed, _ := score.RawData["pages_analyzed"].([]string)
		if len(analyzed) < 3 {
			result.Issues = append(result.Issues, "Too few critical pages analyzed")
			result.Suggestions = append(result.Suggestions, "Ensure homepage, product, and pricing pages are analyzed")
		}
	}

	return result
}

// checkConsistency flags a large score gap between positioning and
// content; the two modules read the same pages and should broadly agree.
func (a *Critique) checkConsistency() []string {
	pos := a.Store.GetAnalysis("positioning")
	content := a.Store.GetAnalysis("content")
	if pos == nil || content == nil || pos.ModuleScore == nil || content.ModuleScore == nil {
		return nil
	}
	posPct := pos.ModuleScore.Percentage()
	contentPct := content.ModuleScore.Percentage()
	if math.Abs(posPct-contentPct) > maxScoreGap {
		return []string{fmt.Sprintf("Large score gap between positioning (%.0f%%) and content (%.0f%%)", posPct, contentPct)}
	}
	return nil
}

func (a *Critique) summary(passed int) string {
	parts := []string{
		"## Audit Quality Review\n",
		fmt.Sprintf("**Agents Reviewed:** %d", len(a.results)),
		fmt.Sprintf("**Passed Quality Check:** %d", passed),
		fmt.Sprintf("**Flagged for Revision:** %d", len(a.requests)),
		"",
	}
	if len(a.requests) > 0 {
		parts = append(parts, "### Issues Found:\n")
		for _, req := range a.requests {
			parts = append(parts, fmt.Sprintf("**%s:**", titleCase(req.Agent)))
			for _, issue := range firstN(req.Issues, 3) {
				parts = append(parts, "  - "+issue)
			}
			parts = append(parts, "")
		}
	}

	passRate := 0.0
	if len(a.results) > 0 {
		passRate = float64(passed) / float64(len(a.results))
	}
	switch {
	case passRate >= 0.8:
		parts = append(parts, "**Overall Assessment:** Good quality - minor improvements suggested")
	case passRate >= 0.6:
		parts = append(parts, "**Overall Assessment:** Acceptable - some revisions recommended")
	default:
		parts = append(parts, "**Overall Assessment:** Needs improvement - multiple revisions required")
	}
	return strings.Join(parts, "\n")
}

// SelfAudit always passes; the critique's own output is never critiqued.
func (a *Critique) SelfAudit() bool { return true }
