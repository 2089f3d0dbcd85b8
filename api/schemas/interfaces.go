// Collaborator contracts consumed by the coordination core. Keeping them
// here, at the API level, lets internal packages depend on each other
// through interfaces without import cycles.
package schemas

import "context"

// Crawler produces the page map for a root URL, bounded by maxPages. It
// runs once per audit, before any analysis phase.
type Crawler interface {
	Crawl(ctx context.Context, rootURL string, maxPages int) (map[string]*PageData, error)
}

// GenerationRequest is one structured-text-generation call.
type GenerationRequest struct {
	Prompt      string
	System      string
	MaxTokens   int
	Temperature float64
}

// LLMClient is the structured-text-generation collaborator. Every agent
// must consult IsAvailable before calling Complete/CompleteJSON and take a
// deterministic fallback path when it returns false. Retry, backoff, and
// pacing live behind this interface, never in the core.
type LLMClient interface {
	IsAvailable() bool
	Complete(ctx context.Context, req GenerationRequest) (string, error)
	CompleteJSON(ctx context.Context, req GenerationRequest) (map[string]any, error)
}

// ScreenshotCapturer renders pages or elements to images. Invoked only
// after the analysis phases, draining requests accumulated in the store.
type ScreenshotCapturer interface {
	CaptureFullPage(ctx context.Context, url string) (*ScreenshotData, error)
	CaptureElement(ctx context.Context, url, selector string) (*ScreenshotData, error)
	Close() error
}

// Reporter writes the assembled report to a durable artifact. It consumes
// the report's public fields and never mutates it.
type Reporter interface {
	Write(report *AuditReport) error
	Close() error
}

// ReportArchive persists finished reports beyond the run's lifetime.
// Optional; a nil archive means reports live only in the output artifact.
type ReportArchive interface {
	SaveReport(ctx context.Context, report *AuditReport) error
	ListReports(ctx context.Context, companyName string) ([]ArchivedReport, error)
}

// ArchivedReport is a summary row from the report archive.
type ArchivedReport struct {
	RunID          string
	CompanyName    string
	CompanyWebsite string
	AuditDate      string
	OverallPct     float64
	ModuleCount    int
}
