// Package reporting writes the finished audit report to its output
// artifact, as machine-readable JSON or as a human-readable markdown
// document.
package reporting

import (
	"fmt"
	"io"
	"os"

	jsoniter "github.com/json-iterator/go"

	"github.com/vantagehq/marketscope/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// nopWriteCloser wraps an io.Writer and provides a no-op Close method.
type nopWriteCloser struct {
	io.Writer
}

func (nwc *nopWriteCloser) Close() error {
	return nil
}

// New creates a reporter for the given format and output path. An empty
// or "stdout" path writes to standard output without closing it.
func New(format, outputPath string) (schemas.Reporter, error) {
	var writer io.WriteCloser
	isStdOut := outputPath == "" || outputPath == "stdout"

	if isStdOut {
		writer = &nopWriteCloser{os.Stdout}
	} else {
		f, err := os.Create(outputPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create output file %s: %w", outputPath, err)
		}
		writer = f
	}

	switch format {
	case "json", "":
		return &jsonReporter{writer: writer}, nil
	case "markdown", "md":
		return &markdownReporter{writer: writer}, nil
	default:
		if !isStdOut {
			writer.Close()
		}
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

// jsonReporter emits the report as one indented JSON document, with the
// derived totals materialized so consumers do not recompute them.
type jsonReporter struct {
	writer io.WriteCloser
}

func (r *jsonReporter) Write(report *schemas.AuditReport) error {
	type moduleView struct {
		*schemas.ModuleScore
		Percentage float64         `json:"percentage"`
		Grade      schemas.Grade   `json:"grade"`
		Outcome    schemas.Outcome `json:"outcome"`
	}
	type reportView struct {
		*schemas.AuditReport
		Modules      []moduleView             `json:"modules"`
		OverallPct   float64                  `json:"overall_percentage"`
		OverallGrade schemas.Grade            `json:"overall_grade"`
		Outcome      schemas.Outcome          `json:"overall_outcome"`
		QuickWins    []schemas.Recommendation `json:"quick_wins"`
		Strengths    []string                 `json:"top_strengths"`
		CriticalGaps []string                 `json:"critical_gaps"`
	}

	view := reportView{
		AuditReport:  report,
		OverallPct:   report.OverallPercentage(),
		OverallGrade: report.OverallGrade(),
		Outcome:      report.OverallOutcome(),
		QuickWins:    report.QuickWins(5),
		Strengths:    report.TopStrengths(5),
		CriticalGaps: report.CriticalGaps(5),
	}
	for _, m := range report.Modules {
		view.Modules = append(view.Modules, moduleView{
			ModuleScore: m,
			Percentage:  m.Percentage(),
			Grade:       m.Grade(),
			Outcome:     m.Outcome(),
		})
	}

	enc := json.NewEncoder(r.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(view)
}

func (r *jsonReporter) Close() error { return r.writer.Close() }

// markdownReporter renders the consulting-style audit document.
type markdownReporter struct {
	writer io.WriteCloser
}

func (r *markdownReporter) Write(report *schemas.AuditReport) error {
	w := r.writer

	fmt.Fprintf(w, "# Marketing Audit: %s\n\n", report.CompanyName)
	fmt.Fprintf(w, "- **Website:** %s\n", report.CompanyWebsite)
	if report.Industry != "" {
		fmt.Fprintf(w, "- **Industry:** %s\n", report.Industry)
	}
	fmt.Fprintf(w, "- **Date:** %s\n", report.AuditDate)
	if report.AnalystName != "" {
		fmt.Fprintf(w, "- **Analyst:** %s\n", report.AnalystName)
	}
	fmt.Fprintf(w, "\n## Overall Score: %.1f%% (%s) - %s\n\n",
		report.OverallPercentage(), report.OverallGrade(), report.OverallOutcome())

	if sf := report.StrategicFriction; sf != nil {
		fmt.Fprintf(w, "## Strategic Friction: %s\n\n", sf.Title)
		fmt.Fprintf(w, "%s\n\n", sf.Description)
		fmt.Fprintf(w, "- **Primary Symptom:** %s\n", sf.PrimarySymptom)
		fmt.Fprintf(w, "- **Business Impact:** %s\n\n", sf.BusinessImpact)
	}

	fmt.Fprintf(w, "## Module Scores\n\n")
	fmt.Fprintf(w, "| Module | Score | Grade | Outcome |\n")
	fmt.Fprintf(w, "|---|---|---|---|\n")
	for _, m := range report.Modules {
		fmt.Fprintf(w, "| %s | %d/%d (%.0f%%) | %s | %s |\n",
			m.Name, m.ActualPoints(), m.MaxPoints(), m.Percentage(), m.Grade(), m.Outcome())
	}
	fmt.Fprintln(w)

	if wins := report.QuickWins(5); len(wins) > 0 {
		fmt.Fprintf(w, "## Quick Wins\n\n")
		for i, rec := range wins {
			fmt.Fprintf(w, "%d. **%s** %s\n", i+1, rec.Issue, rec.Recommendation)
		}
		fmt.Fprintln(w)
	}
	if strengths := report.TopStrengths(5); len(strengths) > 0 {
		fmt.Fprintf(w, "## Top Strengths\n\n")
		for _, s := range strengths {
			fmt.Fprintf(w, "- %s\n", s)
		}
		fmt.Fprintln(w)
	}
	if gaps := report.CriticalGaps(5); len(gaps) > 0 {
		fmt.Fprintf(w, "## Critical Gaps\n\n")
		for _, g := range gaps {
			fmt.Fprintf(w, "- %s\n", g)
		}
		fmt.Fprintln(w)
	}

	for _, m := range report.Modules {
		if m.AnalysisText == "" {
			continue
		}
		fmt.Fprintf(w, "---\n\n## %s\n\n%s\n\n", m.Name, m.AnalysisText)
	}
	return nil
}

func (r *markdownReporter) Close() error { return r.writer.Close() }
