package store

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vantagehq/marketscope/api/schemas"
)

func newTestStore() *ContextStore {
	return New(Config{
		CompanyName:    "Acme",
		CompanyWebsite: "https://acme.io",
		MaxPages:       20,
		MaxRevisions:   3,
	})
}

func TestNewAppliesDefaults(t *testing.T) {
	s := New(Config{CompanyName: "Acme"})
	assert.Equal(t, 20, s.Cfg().MaxPages)
	assert.Equal(t, 3, s.Cfg().MaxRevisions)
}

func TestNormalizeURL(t *testing.T) {
	assert.Equal(t, "https://acme.io", NormalizeURL("https://ACME.io/"))
	assert.Equal(t, "https://acme.io/pricing", NormalizeURL("https://acme.io/pricing/"))
}

func TestPagesKeyedByNormalizedURL(t *testing.T) {
	s := newTestStore()
	s.AddPage(&schemas.PageData{URL: "https://acme.io/Pricing/"})

	require.NotNil(t, s.GetPage("https://acme.io/pricing"))
	assert.Equal(t, 1, s.PageCount())

	// Re-adding the same normalized URL overwrites, not duplicates.
	s.AddPage(&schemas.PageData{URL: "https://acme.io/pricing", Title: "Pricing"})
	assert.Equal(t, 1, s.PageCount())
	assert.Equal(t, "Pricing", s.GetPage("https://acme.io/pricing/").Title)
}

func TestHomepageLookup(t *testing.T) {
	s := newTestStore()
	assert.Nil(t, s.Homepage())

	s.AddPage(&schemas.PageData{URL: "https://acme.io/about", PageType: "about"})
	assert.NotNil(t, s.Homepage(), "falls back to any page without an exact root match")

	s.AddPage(&schemas.PageData{URL: "https://acme.io/", PageType: "homepage"})
	assert.Equal(t, "homepage", s.Homepage().PageType)
}

func TestPagesByTypeAndFlattening(t *testing.T) {
	s := newTestStore()
	s.AddPage(&schemas.PageData{
		URL:      "https://acme.io/blog/a",
		PageType: "blog",
		CTAs:     []schemas.CTA{{Text: "Get Started"}},
		Forms:    []schemas.Form{{Action: "/subscribe"}},
	})
	s.AddPage(&schemas.PageData{
		URL:      "https://acme.io/blog/b",
		PageType: "blog",
		CTAs:     []schemas.CTA{{Text: "Book Demo"}},
	})
	s.AddPage(&schemas.PageData{URL: "https://acme.io/pricing", PageType: "pricing"})

	assert.Len(t, s.PagesByType("blog"), 2)
	assert.Empty(t, s.PagesByType("segment"))

	ctas := s.AllCTAs()
	require.Len(t, ctas, 2)
	assert.NotEmpty(t, ctas[0].PageURL, "flattened CTAs carry their page URL")

	forms := s.AllForms()
	require.Len(t, forms, 1)
	assert.Equal(t, "https://acme.io/blog/a", forms[0].PageURL)
}

func TestCrawlRequestsDedupeAgainstCrawledPages(t *testing.T) {
	s := newTestStore()
	s.AddPage(&schemas.PageData{URL: "https://acme.io/pricing"})

	added := s.RequestAdditionalCrawl([]string{
		"https://acme.io/pricing/", // already crawled
		"https://acme.io/industries",
	})
	assert.Equal(t, []string{"https://acme.io/industries"}, added)

	assert.Equal(t, []string{"https://acme.io/industries"}, s.PendingCrawlRequests())
	assert.Empty(t, s.PendingCrawlRequests(), "drained on read")
}

func TestScreenshotRequestLifecycle(t *testing.T) {
	s := newTestStore()
	s.AddScreenshot(&schemas.ScreenshotData{URL: "https://acme.io", Type: schemas.ScreenshotFullPage})
	s.AddScreenshot(&schemas.ScreenshotData{URL: "https://acme.io", Type: schemas.ScreenshotElement, ElementSelector: "h1"})

	assert.Len(t, s.PendingScreenshots(), 2)

	// Fulfilling one request replaces it under the same key.
	s.AddScreenshot(&schemas.ScreenshotData{
		URL:        "https://acme.io",
		Type:       schemas.ScreenshotFullPage,
		Base64Data: "aGVsbG8=",
	})
	assert.Len(t, s.PendingScreenshots(), 1)
	assert.Len(t, s.Screenshots(), 2)
}

func TestAnalysisOwnership(t *testing.T) {
	s := newTestStore()
	assert.Nil(t, s.GetAnalysis("seo"))

	a := schemas.NewAgentAnalysis("seo")
	a.Status = schemas.StatusCompleted
	s.SetAnalysis(a)

	got := s.GetAnalysis("seo")
	require.NotNil(t, got)
	assert.True(t, got.IsCompleted())
	assert.Len(t, s.Analyses(), 1)
}

func TestSideChannelOwnership(t *testing.T) {
	s := newTestStore()

	s.SetSegments([]schemas.SegmentInfo{{Name: "Healthcare"}}, "Healthcare")
	segments, primary := s.Segments()
	assert.Len(t, segments, 1)
	assert.Equal(t, "Healthcare", primary)

	s.SetCriticalPages([]*schemas.CriticalPage{{PageType: "homepage", URL: "https://acme.io"}})
	assert.Len(t, s.CriticalPages(), 1)

	s.SetResources(
		[]schemas.ResourceEntry{{URL: "https://acme.io/lp/guide"}},
		[]schemas.ResourceEntry{{URL: "https://acme.io/resources/ebook", Gated: true}},
	)
	landing, gated := s.Resources()
	assert.Len(t, landing, 1)
	assert.Len(t, gated, 1)

	s.SetSocialLinks(map[string]string{"linkedin": "https://linkedin.com/company/acme"})
	assert.Equal(t, "https://linkedin.com/company/acme", s.SocialLinks()["linkedin"])

	s.SetCompetitors([]schemas.CompetitorProfile{{Name: "Rival", Discovered: true}})
	assert.Len(t, s.Competitors(), 1)
}

func TestSummaryCounts(t *testing.T) {
	s := newTestStore()
	s.AddPage(&schemas.PageData{URL: "https://acme.io"})

	done := schemas.NewAgentAnalysis("website")
	done.Status = schemas.StatusCompleted
	s.SetAnalysis(done)
	s.SetAnalysis(schemas.NewAgentAnalysis("seo"))

	s.AddScreenshot(&schemas.ScreenshotData{URL: "https://acme.io", Type: schemas.ScreenshotFullPage, Base64Data: "x"})
	s.AddScreenshot(&schemas.ScreenshotData{URL: "https://acme.io/pricing", Type: schemas.ScreenshotFullPage})

	sum := s.GetSummary()
	assert.Equal(t, "Acme", sum.Company)
	assert.Equal(t, 1, sum.PagesCrawled)
	assert.Equal(t, 1, sum.AnalysesCompleted)
	assert.Equal(t, 1, sum.AnalysesPending)
	assert.Equal(t, 1, sum.ScreenshotsCaptured)
}

func TestConcurrentAccess(t *testing.T) {
	s := newTestStore()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.AddPage(&schemas.PageData{URL: fmt.Sprintf("https://acme.io/p%d", i)})
			a := schemas.NewAgentAnalysis(fmt.Sprintf("agent%d", i))
			s.SetAnalysis(a)
		}()
		go func() {
			defer wg.Done()
			_ = s.Pages()
			_ = s.Analyses()
			_ = s.GetSummary()
		}()
	}
	wg.Wait()
	assert.Equal(t, 16, s.PageCount())
}
