package crawler

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyPage(t *testing.T) {
	root := "https://acme.io"
	cases := map[string]string{
		"https://acme.io":                     "homepage",
		"https://acme.io/":                    "homepage",
		"https://acme.io/pricing":             "pricing",
		"https://acme.io/about-us":            "about",
		"https://acme.io/team":                "about",
		"https://acme.io/products/widget":     "product",
		"https://acme.io/platform":            "product",
		"https://acme.io/solutions/health":    "solutions",
		"https://acme.io/blog/some-post":      "blog",
		"https://acme.io/case-studies/acorn":  "case_study",
		"https://acme.io/customers":           "case_study",
		"https://acme.io/resources/guide-1":   "resources",
		"https://acme.io/contact":             "contact",
		"https://acme.io/demo":                "conversion",
		"https://acme.io/free-trial":          "conversion",
		"https://acme.io/industries/fintech":  "segment",
		"https://acme.io/for-startups":        "segment",
		"https://acme.io/careers/engineering": "other",
	}
	for pageURL, want := range cases {
		assert.Equal(t, want, classifyPage(pageURL, root), pageURL)
	}
}

func TestDetectSegments(t *testing.T) {
	segs := detectSegments("We serve Healthcare providers and FinTech startups at enterprise scale.")
	assert.ElementsMatch(t, []string{"healthcare", "fintech", "enterprise", "startups"}, segs)

	assert.Empty(t, detectSegments("Nothing industry specific here."))

	// Cap at ten even when more keywords match.
	all := strings.Join(segmentKeywords, " ")
	assert.Len(t, detectSegments(all), 10)
}

func TestSchemaTypes(t *testing.T) {
	assert.Equal(t, []string{"Organization"},
		schemaTypes(`{"@context":"https://schema.org","@type":"Organization"}`))

	assert.Equal(t, []string{"Product", "FAQPage"},
		schemaTypes(`[{"@type":"Product"},{"@type":"FAQPage"},{"name":"untyped"}]`))

	assert.Nil(t, schemaTypes(`not json at all`))
}

func TestExtractPageResolvesRelativeLinks(t *testing.T) {
	base, err := url.Parse("https://acme.io")
	require.NoError(t, err)

	body := []byte(`<html><body>
<a href="/pricing">Pricing</a>
<a href="https://partner.example/ref">Partner</a>
<img src="/img/hero.png" alt="hero">
</body></html>`)

	page, err := extractPage(body, "https://acme.io/solutions", base)
	require.NoError(t, err)

	assert.Equal(t, []string{"https://acme.io/pricing"}, page.InternalLinks)
	assert.Equal(t, []string{"https://partner.example/ref"}, page.ExternalLinks)
	require.Len(t, page.Images, 1)
	assert.Equal(t, "https://acme.io/img/hero.png", page.Images[0].Src)
}

func TestExtractFormDefaultsToGet(t *testing.T) {
	base, _ := url.Parse("https://acme.io")
	body := []byte(`<html><body><form action="/search">
<input placeholder="Search docs">
<select name="scope"><option>All</option></select>
</form></body></html>`)

	page, err := extractPage(body, "https://acme.io/docs", base)
	require.NoError(t, err)

	require.Len(t, page.Forms, 1)
	form := page.Forms[0]
	assert.Equal(t, "GET", form.Method)
	assert.Equal(t, "/search", form.Action)
	require.Len(t, form.Fields, 2)
	assert.Equal(t, "Search docs", form.Fields[0].Name)
	assert.Equal(t, "scope", form.Fields[1].Name)
}
