package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vantagehq/marketscope/api/schemas"
)

func TestConversionFallbackScoresFromInventory(t *testing.T) {
	st := testStore()
	seedPages(st)

	a := NewConversion(st, nil, testLogger())
	analysis := a.Execute(context.Background())

	require.Equal(t, schemas.StatusCompleted, analysis.Status)
	score := analysis.ModuleScore
	require.NotNil(t, score)
	require.Len(t, score.Items, 7)

	// 3 CTAs across the fixture pages: visibility = min(3*2, 20).
	assert.Equal(t, "CTA Visibility", score.Items[0].Name)
	assert.Equal(t, 6, score.Items[0].ActualPoints)

	// One form exists, so form optimization takes the upper band.
	assert.Equal(t, "Form Optimization", score.Items[2].Name)
	assert.Equal(t, 10, score.Items[2].ActualPoints)

	assert.Equal(t, 3, score.RawData["total_ctas"])
	assert.Equal(t, 1, score.RawData["total_forms"])
	assert.Equal(t,
		"Basic analysis: Found 3 CTAs and 1 forms across the site. Detailed analysis requires manual review.",
		score.AnalysisText)
	require.Len(t, score.Recommendations, 2)
	assert.Equal(t, schemas.ImpactHigh, score.Recommendations[0].Impact)
}

func TestConversionFallbackCapsCTAScore(t *testing.T) {
	st := testStore()
	ctas := make([]schemas.CTA, 15)
	for i := range ctas {
		ctas[i] = schemas.CTA{Text: "Get Started"}
	}
	st.AddPage(&schemas.PageData{URL: "https://acme.io", PageType: "homepage", CTAs: ctas})
	completeDeps(st, "website")

	a := NewConversion(st, nil, testLogger())
	analysis := a.Execute(context.Background())

	score := analysis.ModuleScore
	require.NotNil(t, score)
	assert.Equal(t, 20, score.Items[0].ActualPoints, "capped at the criterion maximum")
}

func TestConversionUsesLLMWhenAvailable(t *testing.T) {
	st := testStore()
	seedPages(st)

	llm := &fakeLLM{responses: []map[string]any{{
		"scores": map[string]any{
			"cta_visibility": map[string]any{"score": float64(18), "notes": "strong above the fold"},
			"cta_copy":       map[string]any{"score": float64(12), "notes": "benefit-led"},
		},
		"strengths": []any{"clear demo CTA"},
		"recommendations": []any{map[string]any{
			"issue": "trial form asks 9 questions", "recommendation": "cut to 3 fields",
			"impact": "High", "effort": "Low",
		}},
		"analysis": "The conversion paths are generally strong with a clear primary CTA repeated on every page and a short trial form on pricing.",
	}}}

	a := NewConversion(st, llm, testLogger())
	analysis := a.Execute(context.Background())

	require.Equal(t, schemas.StatusCompleted, analysis.Status)
	score := analysis.ModuleScore
	require.NotNil(t, score)

	// Only the keys present in the response become items.
	require.Len(t, score.Items, 2)
	assert.Equal(t, 18, score.Items[0].ActualPoints)
	assert.Equal(t, "strong above the fold", score.Items[0].Notes)

	require.Len(t, score.Recommendations, 1)
	assert.Equal(t, schemas.KPILeadConversion, score.Recommendations[0].KPIImpact)
	assert.Contains(t, score.AnalysisText, "Opportunity Cost")
}

func TestItemsFromScoresClampsPoints(t *testing.T) {
	result := map[string]any{
		"scores": map[string]any{
			"cta_visibility": map[string]any{"score": float64(99)},
			"cta_copy":       map[string]any{"score": float64(-4)},
		},
	}
	items := itemsFromScores(result, conversionSpecs)
	require.Len(t, items, 2)
	assert.Equal(t, 20, items[0].ActualPoints, "clamped to criterion max")
	assert.Equal(t, 0, items[1].ActualPoints, "clamped to zero")
}
