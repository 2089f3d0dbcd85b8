package reporting

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vantagehq/marketscope/api/schemas"
)

func sampleReport() *schemas.AuditReport {
	seo := schemas.NewModuleScore("SEO & Technical", 1.0)
	seo.Items = []schemas.ScoreItem{
		{Name: "Meta Tags", MaxPoints: 15, ActualPoints: 12, Notes: "Good coverage"},
		{Name: "Page Speed", MaxPoints: 20, ActualPoints: 8, Notes: "Slow pages"},
	}
	seo.AnalysisText = "Technical SEO is solid apart from page speed."
	seo.Recommendations = []schemas.Recommendation{{
		Issue:          "Slow page load times",
		Recommendation: "Enable compression and a CDN",
		Impact:         schemas.ImpactHigh,
		Effort:         schemas.EffortLow,
		Category:       "SEO & Technical",
	}}

	trust := schemas.NewModuleScore("Trust & Social Proof", 1.0)
	trust.Items = []schemas.ScoreItem{
		{Name: "Testimonials", MaxPoints: 50, ActualPoints: 10, Notes: "Only one quote sitewide"},
	}
	trust.AnalysisText = "Trust signals are thin across the site."

	return &schemas.AuditReport{
		RunID:          "run-123",
		CompanyName:    "Acme",
		CompanyWebsite: "https://acme.io",
		Industry:       "SaaS",
		AuditDate:      "2026-08-30",
		Modules:        []*schemas.ModuleScore{seo, trust},
		StrategicFriction: &schemas.StrategicFriction{
			Title:          "The Leaky Bucket",
			Description:    "Traffic arrives but trust gaps drain it away.",
			PrimarySymptom: "Acquisition outscores conversion by 40 points.",
			BusinessImpact: "High acquisition cost per closed deal.",
		},
	}
}

func TestJSONReporter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	r, err := New("json", path)
	require.NoError(t, err)

	report := sampleReport()
	require.NoError(t, r.Write(report))
	require.NoError(t, r.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, jsoniter.Unmarshal(data, &decoded))

	assert.Equal(t, "run-123", decoded["run_id"])
	assert.Equal(t, "Acme", decoded["company_name"])
	assert.InDelta(t, report.OverallPercentage(), decoded["overall_percentage"].(float64), 0.01)
	assert.Equal(t, string(report.OverallGrade()), decoded["overall_grade"])

	modules := decoded["modules"].([]any)
	require.Len(t, modules, 2)
	first := modules[0].(map[string]any)
	assert.Equal(t, "SEO & Technical", first["name"])
	assert.InDelta(t, 57.14, first["percentage"].(float64), 0.01)

	wins := decoded["quick_wins"].([]any)
	require.NotEmpty(t, wins)
	assert.Equal(t, "Slow page load times", wins[0].(map[string]any)["issue"])
}

func TestMarkdownReporter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.md")
	r, err := New("markdown", path)
	require.NoError(t, err)

	require.NoError(t, r.Write(sampleReport()))
	require.NoError(t, r.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	doc := string(data)

	assert.True(t, strings.HasPrefix(doc, "# Marketing Audit: Acme"))
	assert.Contains(t, doc, "## Overall Score:")
	assert.Contains(t, doc, "## Strategic Friction: The Leaky Bucket")
	assert.Contains(t, doc, "| SEO & Technical | 20/35 (57%) |")
	assert.Contains(t, doc, "## Quick Wins")
	assert.Contains(t, doc, "Enable compression and a CDN")
	assert.Contains(t, doc, "Trust signals are thin across the site.")
}

func TestMarkdownAliasAndStdout(t *testing.T) {
	r, err := New("md", "stdout")
	require.NoError(t, err)
	// Closing a stdout reporter must not close the process stream.
	require.NoError(t, r.Close())
	require.NoError(t, r.Close())
}

func TestUnsupportedFormat(t *testing.T) {
	_, err := New("xml", filepath.Join(t.TempDir(), "report.xml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported output format")
}
