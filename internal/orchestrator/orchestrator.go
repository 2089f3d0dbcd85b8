// Package orchestrator runs the audit pipeline: dependency-ordered agent
// phases over a shared context store, a bounded critique/revision loop,
// cross-module synthesis, and final report assembly.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vantagehq/marketscope/api/schemas"
	"github.com/vantagehq/marketscope/internal/agent"
	"github.com/vantagehq/marketscope/internal/revision"
	"github.com/vantagehq/marketscope/internal/store"
)

// reportOrder is the fixed module display order in the final report.
var reportOrder = []string{
	"positioning", "seo", "conversion", "content", "trust",
	"social", "segmentation", "resource_hub",
	"prompt_visibility", "social_listening",
	"top5_pages", "competitor",
}

// Orchestrator coordinates one audit run. It owns the agents and the
// revision budget; the store, crawler, renderer, and generator are
// injected collaborators.
type Orchestrator struct {
	store    *store.ContextStore
	capturer schemas.ScreenshotCapturer
	logger   *zap.Logger

	agents    map[string]agent.Agent
	critique  *agent.Critique
	revisions *revision.Manager
}

// New wires the full agent roster against the given collaborators. The
// capturer and llm may be nil; the crawler and store may not.
func New(st *store.ContextStore, crawler schemas.Crawler, llm schemas.LLMClient, capturer schemas.ScreenshotCapturer, logger *zap.Logger) (*Orchestrator, error) {
	if st == nil {
		return nil, errors.New("orchestrator: store is required")
	}
	if crawler == nil {
		return nil, errors.New("orchestrator: crawler is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	o := &Orchestrator{
		store:     st,
		capturer:  capturer,
		logger:    logger.Named("orchestrator"),
		agents:    make(map[string]agent.Agent),
		revisions: revision.NewManager(st.Cfg().MaxRevisions, logger),
	}

	roster := []agent.Agent{
		agent.NewWebsite(st, crawler, llm, logger),
		agent.NewDeepResearch(st, llm, logger),
		agent.NewPositioning(st, llm, logger),
		agent.NewSEO(st, llm, logger),
		agent.NewConversion(st, llm, logger),
		agent.NewContent(st, llm, logger),
		agent.NewTrust(st, llm, logger),
		agent.NewSocial(st, llm, logger),
		agent.NewSegmentation(st, llm, logger),
		agent.NewResourceHub(st, llm, logger),
		agent.NewTopPages(st, llm, logger),
		agent.NewCompetitor(st, crawler, llm, logger),
		agent.NewPromptVisibility(st, llm, logger),
		agent.NewSocialListening(st, llm, logger),
	}
	for _, a := range roster {
		o.agents[a.Name()] = a
	}
	o.critique = agent.NewCritique(st, llm, logger)
	o.agents[o.critique.Name()] = o.critique

	if err := o.validateDependencies(); err != nil {
		return nil, err
	}
	return o, nil
}

// validateDependencies rejects unknown dependency names and cycles. A
// Kahn pass is enough; the run itself uses the fixed phase plan.
func (o *Orchestrator) validateDependencies() error {
	indegree := make(map[string]int, len(o.agents))
	dependents := make(map[string][]string)
	for name, a := range o.agents {
		indegree[name] += 0
		for _, dep := range a.Dependencies() {
			if _, ok := o.agents[dep]; !ok {
				return fmt.Errorf("agent %q depends on unknown agent %q", name, dep)
			}
			indegree[name]++
			dependents[dep] = append(dependents[dep], name)
		}
	}

	var ready []string
	for name, deg := range indegree {
		if deg == 0 {
			ready = append(ready, name)
		}
	}
	resolved := 0
	for len(ready) > 0 {
		name := ready[len(ready)-1]
		ready = ready[:len(ready)-1]
		resolved++
		for _, dep := range dependents[name] {
			indegree[dep]--
			if indegree[dep] == 0 {
				ready = append(ready, dep)
			}
		}
	}
	if resolved != len(o.agents) {
		return errors.New("agent dependency graph contains a cycle")
	}
	return nil
}

// RunAudit executes the full pipeline and returns the assembled report.
// Individual agent failures degrade the report; only context cancellation
// and pre-flight errors abort the run.
func (o *Orchestrator) RunAudit(ctx context.Context) (*schemas.AuditReport, error) {
	started := time.Now()
	cfg := o.store.Cfg()
	o.logger.Info("Starting audit",
		zap.String("company", cfg.CompanyName),
		zap.String("website", cfg.CompanyWebsite))

	phases := []struct {
		name   string
		agents []string
	}{
		{"crawl", []string{"website"}},
		{"research", []string{"deep_research"}},
		{"primary", []string{"positioning", "seo", "conversion", "content", "prompt_visibility"}},
		{"secondary", []string{"trust", "social", "segmentation", "social_listening", "resource_hub", "top5_pages"}},
	}
	for _, phase := range phases {
		if err := o.runPhase(ctx, phase.name, phase.agents); err != nil {
			return nil, err
		}
	}

	o.captureScreenshots(ctx)

	if err := o.runPhase(ctx, "competitive", []string{"competitor"}); err != nil {
		return nil, err
	}

	if err := o.runRevisionCycles(ctx); err != nil {
		return nil, err
	}

	report := o.BuildReport()
	report.StrategicFriction = o.SynthesizeFindings(report)

	summary := o.store.GetSummary()
	o.logger.Info("Audit complete",
		zap.Duration("elapsed", time.Since(started)),
		zap.Int("pages_crawled", summary.PagesCrawled),
		zap.Int("analyses_completed", summary.AnalysesCompleted),
		zap.Float64("overall_pct", report.OverallPercentage()),
		zap.String("grade", string(report.OverallGrade())))
	return report, nil
}

// runPhase executes the named agents concurrently and waits for all of
// them. Agents already COMPLETED (from a resumed store) are skipped.
// Agent-level failures are recorded on their analyses, never returned;
// only context cancellation aborts the phase.
func (o *Orchestrator) runPhase(ctx context.Context, phase string, names []string) error {
	o.logger.Info("Running phase", zap.String("phase", phase), zap.Strings("agents", names))

	g, gctx := errgroup.WithContext(ctx)
	for _, name := range names {
		a, ok := o.agents[name]
		if !ok {
			return fmt.Errorf("phase %q references unknown agent %q", phase, name)
		}
		if a.Analysis().IsCompleted() {
			o.logger.Debug("Skipping completed agent", zap.String("agent", name))
			continue
		}
		g.Go(func() error {
			analysis := a.Execute(gctx)
			o.logger.Info("Agent finished",
				zap.String("phase", phase),
				zap.String("agent", name),
				zap.String("status", string(analysis.Status)))
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("phase %q aborted: %w", phase, err)
	}
	return nil
}

// captureScreenshots drains pending screenshot requests through the
// render collaborator, then cross-links fulfilled captures into the
// graded critical pages by normalized URL. A nil capturer or a failed
// capture leaves the request annotated, never fails the run.
func (o *Orchestrator) captureScreenshots(ctx context.Context) {
	pending := o.store.PendingScreenshots()
	if len(pending) == 0 {
		return
	}
	if o.capturer == nil {
		o.logger.Info("Screenshot capture disabled, marking requests skipped",
			zap.Int("pending", len(pending)))
		for _, req := range pending {
			req.Notes = "capture disabled"
			o.store.AddScreenshot(req)
		}
		return
	}

	o.logger.Info("Capturing screenshots", zap.Int("pending", len(pending)))
	for _, req := range pending {
		if ctx.Err() != nil {
			return
		}
		var (
			shot *schemas.ScreenshotData
			err  error
		)
		if req.Type == schemas.ScreenshotElement {
			shot, err = o.capturer.CaptureElement(ctx, req.URL, req.ElementSelector)
		} else {
			shot, err = o.capturer.CaptureFullPage(ctx, req.URL)
		}
		if err != nil {
			req.Notes = "capture failed: " + err.Error()
			o.store.AddScreenshot(req)
			o.logger.Warn("Screenshot capture failed",
				zap.String("url", req.URL), zap.Error(err))
			continue
		}
		shot.ElementSelector = req.ElementSelector
		shot.Type = req.Type
		shot.CapturedAt = time.Now()
		o.store.AddScreenshot(shot)
	}

	o.linkScreenshots()
}

// linkScreenshots attaches each critical page's full-page capture.
func (o *Orchestrator) linkScreenshots() {
	pages := o.store.CriticalPages()
	if len(pages) == 0 {
		return
	}
	byURL := make(map[string]*schemas.ScreenshotData)
	for _, shot := range o.store.Screenshots() {
		if shot.Type == schemas.ScreenshotFullPage && !shot.Pending() {
			byURL[store.NormalizeURL(shot.URL)] = shot
		}
	}
	linked := 0
	for _, cp := range pages {
		if shot, ok := byURL[store.NormalizeURL(cp.URL)]; ok {
			cp.Screenshot = shot
			linked++
		}
	}
	o.store.SetCriticalPages(pages)
	o.logger.Debug("Linked screenshots to critical pages", zap.Int("linked", linked))
}

// runRevisionCycles alternates critique passes with bounded revision
// attempts. Each cycle re-runs the critique over all completed analyses,
// issues revision requests within each agent's budget, and revises the
// flagged agents concurrently. One exhausted agent never blocks requests
// for the others; agents still flagged when their budget runs out stay
// in needs_revision and the run completes regardless. The cycle count
// itself is capped at the same bound.
func (o *Orchestrator) runRevisionCycles(ctx context.Context) error {
	for o.revisions.ShouldContinue() {
		cycle := o.revisions.StartCycle()
		o.critique.Execute(ctx)
		if err := ctx.Err(); err != nil {
			return err
		}

		candidates := o.revisionCandidates()
		if len(candidates) == 0 {
			o.logger.Info("Critique passed, no revisions needed", zap.Int("cycle", cycle))
			return nil
		}

		g, gctx := errgroup.WithContext(ctx)
		issued := 0
		for _, cand := range candidates {
			req := o.revisions.Request(cand.agent, cand.issues, cand.suggestions)
			if req == nil {
				continue
			}
			issued++
			a := o.agents[cand.agent]
			g.Go(func() error {
				o.reviseAgent(gctx, a, req)
				return gctx.Err()
			})
		}
		if err := g.Wait(); err != nil {
			return fmt.Errorf("revision cycle %d aborted: %w", cycle, err)
		}
		if issued == 0 {
			o.logger.Warn("Revision budget exhausted with agents still flagged",
				zap.Int("cycle", cycle),
				zap.Int("flagged", len(candidates)))
			return nil
		}
		o.logger.Info("Revision cycle complete",
			zap.Int("cycle", cycle),
			zap.Int("revised", issued))
	}
	return nil
}

type revisionCandidate struct {
	agent       string
	issues      []string
	suggestions []string
}

// revisionCandidates merges critique requests with agents whose own
// self-audit flagged them. Data-collection agents and the critique itself
// are never revised.
func (o *Orchestrator) revisionCandidates() []revisionCandidate {
	var out []revisionCandidate
	seen := make(map[string]bool)
	for _, req := range o.critique.RevisionRequests() {
		if _, ok := o.agents[req.Agent]; !ok {
			continue
		}
		out = append(out, revisionCandidate{req.Agent, req.Issues, req.Suggestions})
		seen[req.Agent] = true
	}
	for name, a := range o.agents {
		if seen[name] || name == "critique" || name == "website" {
			continue
		}
		if a.Analysis().Status == schemas.StatusNeedsRevision {
			out = append(out, revisionCandidate{
				agent:       name,
				issues:      []string{"self-audit failed"},
				suggestions: []string{"Re-run analysis with available data"},
			})
		}
	}
	return out
}

// reviseAgent runs one revision attempt and records whether it improved
// the analysis. The status transition mirrors Execute: a passing re-audit
// completes the agent, anything else leaves it flagged.
func (o *Orchestrator) reviseAgent(ctx context.Context, a agent.Agent, req *revision.Request) {
	analysis := a.Analysis()
	before := 0.0
	if analysis.ModuleScore != nil {
		before = analysis.ModuleScore.Percentage()
	}

	feedback := fmt.Sprintf("Issues found: %v", req.Issues)
	score, err := a.Revise(ctx, feedback, req.Suggestions)
	if err != nil {
		analysis.Status = schemas.StatusNeedsRevision
		analysis.RecordError("revision failed: " + err.Error())
		o.store.SetAnalysis(analysis)
		_ = o.revisions.RecordResult(req.ID, false)
		o.logger.Warn("Revision failed", zap.String("agent", a.Name()), zap.Error(err))
		return
	}

	analysis.ModuleScore = score
	if score != nil {
		analysis.AnalysisText = score.AnalysisText
		analysis.RawData = score.RawData
	}
	analysis.SelfAuditPassed = a.SelfAudit()
	if analysis.SelfAuditPassed {
		analysis.Status = schemas.StatusCompleted
	} else {
		analysis.Status = schemas.StatusNeedsRevision
	}
	analysis.CompletedAt = time.Now()
	o.store.SetAnalysis(analysis)

	after := 0.0
	if score != nil {
		after = score.Percentage()
	}
	improved := analysis.SelfAuditPassed
	_ = o.revisions.RecordResult(req.ID, improved)
	o.logger.Info("Revision recorded",
		zap.String("agent", a.Name()),
		zap.Bool("improved", improved),
		zap.Float64("before_pct", before),
		zap.Float64("after_pct", after))
}

// BuildReport assembles the final report from whatever analyses exist.
// Modules appear in a fixed display order; agents with no module score
// are omitted rather than reported empty.
func (o *Orchestrator) BuildReport() *schemas.AuditReport {
	cfg := o.store.Cfg()
	report := &schemas.AuditReport{
		RunID:          uuid.NewString(),
		CompanyName:    cfg.CompanyName,
		CompanyWebsite: cfg.CompanyWebsite,
		Industry:       cfg.Industry,
		AuditDate:      cfg.AuditDate,
		AnalystName:    cfg.AnalystName,
		AnalystCompany: cfg.AnalystCompany,
	}
	if report.AuditDate == "" {
		report.AuditDate = time.Now().Format("2006-01-02")
	}
	for _, name := range reportOrder {
		analysis := o.store.GetAnalysis(name)
		if analysis == nil || analysis.ModuleScore == nil {
			continue
		}
		report.Modules = append(report.Modules, analysis.ModuleScore)
	}
	return report
}

// SynthesizeFindings derives the single cross-module friction diagnosis.
// Pattern checks run in priority order; the first match wins.
func (o *Orchestrator) SynthesizeFindings(report *schemas.AuditReport) *schemas.StrategicFriction {
	if len(report.Modules) == 0 {
		return nil
	}

	pct := func(agentName string) (float64, bool) {
		analysis := o.store.GetAnalysis(agentName)
		if analysis == nil || analysis.ModuleScore == nil || analysis.ModuleScore.MaxPoints() == 0 {
			return 0, false
		}
		return analysis.ModuleScore.Percentage(), true
	}

	seo, hasSEO := pct("seo")
	positioning, hasPos := pct("positioning")
	content, hasContent := pct("content")
	trust, hasTrust := pct("trust")
	conversion, hasConv := pct("conversion")

	attract := 0.0
	hasAttract := false
	if hasSEO && seo > attract {
		attract, hasAttract = seo, true
	}
	if hasPos && positioning > attract {
		attract, hasAttract = positioning, true
	}
	convert := 100.0
	hasConvert := false
	if hasTrust {
		convert, hasConvert = trust, true
	}
	if hasConv && conversion < convert {
		convert, hasConvert = conversion, true
	}

	switch {
	case hasAttract && hasConvert && attract >= 70 && convert < 50:
		return &schemas.StrategicFriction{
			Title:          "The Leaky Bucket",
			Description:    "The company attracts and engages visitors effectively, but weak trust and conversion infrastructure lets that demand drain away before it becomes pipeline.",
			PrimarySymptom: fmt.Sprintf("Acquisition strength scores %.0f%% while trust/conversion bottoms out at %.0f%%.", attract, convert),
			BusinessImpact: "Marketing spend generates traffic that never converts, inflating acquisition cost per closed deal.",
		}
	case hasContent && hasSEO && content >= 70 && seo < 50:
		return &schemas.StrategicFriction{
			Title:          "The Invisible Expert",
			Description:    "Strong, substantive content exists but poor technical visibility keeps it from being found by the buyers it was written for.",
			PrimarySymptom: fmt.Sprintf("Content quality scores %.0f%% against a search visibility score of %.0f%%.", content, seo),
			BusinessImpact: "Expertise that should drive inbound demand sits unread, forcing reliance on outbound motion.",
		}
	case hasSEO && hasPos && seo >= 70 && positioning < 60:
		return &schemas.StrategicFriction{
			Title:          "The Commodity Trap",
			Description:    "The site is discoverable but its undifferentiated positioning makes every visit a price comparison instead of a value conversation.",
			PrimarySymptom: fmt.Sprintf("Search visibility scores %.0f%% while positioning clarity sits at %.0f%%.", seo, positioning),
			BusinessImpact: "Deals compress to price because prospects cannot articulate why this vendor over the alternatives.",
		}
	}

	// No named pattern matched; diagnose around the weakest module.
	weakest := report.Modules[0]
	for _, m := range report.Modules[1:] {
		if m.MaxPoints() > 0 && m.Percentage() < weakest.Percentage() {
			weakest = m
		}
	}
	return &schemas.StrategicFriction{
		Title:          "Uneven Marketing Foundation",
		Description:    fmt.Sprintf("Marketing performance is inconsistent across dimensions, with %s as the weakest link holding back otherwise solid execution.", weakest.Name),
		PrimarySymptom: fmt.Sprintf("%s scores %.0f%% (%s) against an overall score of %.0f%%.", weakest.Name, weakest.Percentage(), weakest.Grade(), report.OverallPercentage()),
		BusinessImpact: "The weakest dimension caps the return on investment in every other marketing activity.",
	}
}

// RevisionSummary exposes the revision activity for the CLI.
func (o *Orchestrator) RevisionSummary() string { return o.revisions.CycleSummary() }

// Agents exposes the roster for inspection in tests and the CLI.
func (o *Orchestrator) Agents() map[string]agent.Agent {
	out := make(map[string]agent.Agent, len(o.agents))
	for k, v := range o.agents {
		out[k] = v
	}
	return out
}
