// Package agent defines the analysis-agent contract and the concrete
// agents that produce module scores. All agents read and write through the
// shared context store and degrade to deterministic heuristics whenever
// the text-generation collaborator is unavailable.
package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/vantagehq/marketscope/api/schemas"
	"github.com/vantagehq/marketscope/internal/store"
)

// Agent is the polymorphic contract the orchestrator schedules against.
// The scheduler holds a homogeneous collection of these and never branches
// on concrete type.
type Agent interface {
	Name() string
	Dependencies() []string
	Weight() float64

	// Execute is the only entry point the scheduler uses. It never
	// returns an error; failures are recorded on the analysis.
	Execute(ctx context.Context) *schemas.AgentAnalysis

	// Revise re-runs the agent with critique feedback. The caller is
	// expected to re-check SelfAudit afterwards.
	Revise(ctx context.Context, feedback string, suggestions []string) (*schemas.ModuleScore, error)

	SelfAudit() bool
	CanRun() bool
	MissingDependencies() []string
	Analysis() *schemas.AgentAnalysis
}

// runner is the part of the contract concrete agents override. BaseAgent
// dispatches through it so that Execute picks up overridden behavior.
type runner interface {
	Run(ctx context.Context) (*schemas.ModuleScore, error)
	SelfAudit() bool
	CanRun() bool
	Plan() string
}

// BaseAgent carries the shared execution machinery. Concrete agents embed
// it and register themselves via bind so status transitions, dependency
// checks, failure containment, and self-audit routing stay in one place.
type BaseAgent struct {
	name   string
	deps   []string
	weight float64

	Store  *store.ContextStore
	LLM    schemas.LLMClient
	Logger *zap.Logger

	self     runner
	analysis *schemas.AgentAnalysis
}

// NewBase wires a BaseAgent. Concrete constructors call bind immediately
// after embedding it.
func NewBase(name string, deps []string, weight float64, st *store.ContextStore, llm schemas.LLMClient, logger *zap.Logger) *BaseAgent {
	return &BaseAgent{
		name:   name,
		deps:   deps,
		weight: weight,
		Store:  st,
		LLM:    llm,
		Logger: logger.Named(name),
	}
}

func (b *BaseAgent) bind(self runner) { b.self = self }

func (b *BaseAgent) Name() string           { return b.name }
func (b *BaseAgent) Dependencies() []string { return b.deps }
func (b *BaseAgent) Weight() float64        { return b.weight }

// Analysis returns the agent's record, loading it from the store or
// creating a fresh pending one on first use.
func (b *BaseAgent) Analysis() *schemas.AgentAnalysis {
	if b.analysis == nil {
		if existing := b.Store.GetAnalysis(b.name); existing != nil {
			b.analysis = existing
		} else {
			b.analysis = schemas.NewAgentAnalysis(b.name)
		}
	}
	return b.analysis
}

// CanRun reports whether every declared dependency has a COMPLETED
// analysis. Transitive dependencies are the scheduler's problem, not the
// agent's.
func (b *BaseAgent) CanRun() bool { return len(b.MissingDependencies()) == 0 }

// MissingDependencies lists dependencies without a COMPLETED analysis.
func (b *BaseAgent) MissingDependencies() []string {
	var missing []string
	for _, dep := range b.deps {
		if !b.Store.GetAnalysis(dep).IsCompleted() {
			missing = append(missing, dep)
		}
	}
	return missing
}

// Plan produces the traceability string recorded before Run. Cosmetic
// only; it never affects behavior.
func (b *BaseAgent) Plan() string {
	return fmt.Sprintf("Analyzing %s for %s", b.name, b.Store.Cfg().CompanyName)
}

// Execute runs the agent with full state management: dependency re-check,
// status transitions, plan capture, failure containment, self-audit
// routing, and an unconditional persist of the record. Nothing raised by
// Run escapes this boundary.
func (b *BaseAgent) Execute(ctx context.Context) *schemas.AgentAnalysis {
	analysis := b.Analysis()

	if !b.self.CanRun() {
		missing := b.MissingDependencies()
		analysis.Status = schemas.StatusPending
		analysis.RecordError(fmt.Sprintf("dependencies not met: %s", strings.Join(missing, ", ")))
		b.Logger.Debug("Dependencies not met, staying pending", zap.Strings("missing", missing))
		b.Store.SetAnalysis(analysis)
		return analysis
	}

	analysis.Status = schemas.StatusRunning
	analysis.StartedAt = time.Now()
	b.Store.SetAnalysis(analysis)

	b.Logger.Info("Running agent")
	analysis.Plan = b.self.Plan()

	score, err := b.runContained(ctx)
	if err != nil {
		analysis.Status = schemas.StatusFailed
		analysis.RecordError(err.Error())
		b.Logger.Warn("Agent execution failed", zap.Error(err))
		b.Store.SetAnalysis(analysis)
		return analysis
	}

	analysis.ModuleScore = score
	if score != nil {
		analysis.AnalysisText = score.AnalysisText
		analysis.RawData = score.RawData
	}

	analysis.SelfAuditPassed = b.self.SelfAudit()
	if analysis.SelfAuditPassed {
		analysis.Status = schemas.StatusCompleted
	} else {
		analysis.Status = schemas.StatusNeedsRevision
		b.Logger.Warn("Self-audit failed, flagging for revision")
	}
	analysis.CompletedAt = time.Now()

	b.Store.SetAnalysis(analysis)
	return analysis
}

// runContained invokes Run and converts panics into errors so a misbehaving
// agent cannot take down the pipeline.
func (b *BaseAgent) runContained(ctx context.Context) (score *schemas.ModuleScore, err error) {
	defer func() {
		if r := recover(); r != nil {
			score = nil
			err = fmt.Errorf("agent panicked: %v", r)
		}
	}()
	return b.self.Run(ctx)
}

// SelfAudit is the default quality gate: a score must exist, carry at
// least one scored criterion, and have a narrative of at least 50
// characters. Concrete agents tighten this but rarely loosen it.
func (b *BaseAgent) SelfAudit() bool {
	score := b.Analysis().ModuleScore
	if score == nil {
		return false
	}
	if len(score.Items) == 0 {
		return false
	}
	if len(score.AnalysisText) < 50 {
		return false
	}
	return true
}

// Revise defaults to re-running the analysis. Agents that can fold the
// critique feedback into their prompt override this.
func (b *BaseAgent) Revise(ctx context.Context, feedback string, suggestions []string) (*schemas.ModuleScore, error) {
	analysis := b.Analysis()
	analysis.RevisionCount++
	analysis.Status = schemas.StatusRunning
	b.Store.SetAnalysis(analysis)
	return b.self.Run(ctx)
}

// RequestScreenshot records a capture request for the render collaborator.
// The agent does not wait for fulfillment.
func (b *BaseAgent) RequestScreenshot(url, selector string) {
	shot := &schemas.ScreenshotData{
		URL:             url,
		Type:            schemas.ScreenshotFullPage,
		ElementSelector: selector,
	}
	if selector != "" {
		shot.Type = schemas.ScreenshotElement
	}
	b.Store.AddScreenshot(shot)
}

// RequestAdditionalCrawl asks for more URLs to be crawled; the crawler may
// act on them between phases. Returns the URLs that were new.
func (b *BaseAgent) RequestAdditionalCrawl(urls []string) []string {
	return b.Store.RequestAdditionalCrawl(urls)
}

// LLMAvailable reports whether the text-generation collaborator can be
// called. Agents must consult this before every LLM path.
func (b *BaseAgent) LLMAvailable() bool { return b.LLM != nil && b.LLM.IsAvailable() }

// PagesDigest aggregates crawled content for prompts, bounded by maxChars.
func (b *BaseAgent) PagesDigest(maxChars int) string {
	var parts []string
	total := 0
	for url, page := range b.Store.Pages() {
		section := fmt.Sprintf("--- PAGE: %s ---\nTitle: %s\nH1: %s\nH2: %s\nContent: %s\n",
			url, page.Title,
			strings.Join(page.H1Tags, ", "),
			strings.Join(firstN(page.H2Tags, 5), ", "),
			truncate(page.RawText, 2500))
		if total+len(section) > maxChars {
			break
		}
		parts = append(parts, section)
		total += len(section)
	}
	return strings.Join(parts, "\n")
}

func firstN(items []string, n int) []string {
	if len(items) <= n {
		return items
	}
	return items[:n]
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
