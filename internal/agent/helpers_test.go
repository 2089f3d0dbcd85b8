package agent

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/vantagehq/marketscope/api/schemas"
	"github.com/vantagehq/marketscope/internal/store"
)

// fakeCrawler serves canned pages keyed by root URL.
type fakeCrawler struct {
	pages map[string]map[string]*schemas.PageData
	err   error
}

func (f *fakeCrawler) Crawl(_ context.Context, rootURL string, _ int) (map[string]*schemas.PageData, error) {
	if f.err != nil {
		return nil, f.err
	}
	if pages, ok := f.pages[rootURL]; ok {
		return pages, nil
	}
	return nil, fmt.Errorf("no fixture for %s", rootURL)
}

// fakeLLM replays scripted JSON responses and plain-text replies in
// order.
type fakeLLM struct {
	responses []map[string]any
	texts     []string
	calls     int
	textCalls int
	err       error
}

func (f *fakeLLM) IsAvailable() bool { return true }

func (f *fakeLLM) Complete(context.Context, schemas.GenerationRequest) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if f.textCalls >= len(f.texts) {
		return "", nil
	}
	text := f.texts[f.textCalls]
	f.textCalls++
	return text, nil
}

func (f *fakeLLM) CompleteJSON(context.Context, schemas.GenerationRequest) (map[string]any, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.calls >= len(f.responses) {
		return map[string]any{}, nil
	}
	resp := f.responses[f.calls]
	f.calls++
	return resp, nil
}

func testStore() *store.ContextStore {
	return store.New(store.Config{
		CompanyName:    "Acme",
		CompanyWebsite: "https://acme.io",
		Industry:       "SaaS",
		MaxPages:       20,
		MaxRevisions:   3,
	})
}

// seedPages loads a minimal crawled site into the store and marks the
// website agent completed so downstream agents can run.
func seedPages(st *store.ContextStore) {
	st.AddPage(&schemas.PageData{
		URL:             "https://acme.io",
		Title:           "Acme - Automated Compliance for Healthcare",
		MetaDescription: "Acme automates compliance workflows so healthcare teams can focus on care delivery instead of paperwork.",
		H1Tags:          []string{"Compliance on autopilot"},
		H2Tags:          []string{"Trusted by 500 clinics"},
		PageType:        "homepage",
		HasViewport:     true,
		HasSchema:       true,
		SchemaTypes:     []string{"Organization"},
		CTAs:            []schemas.CTA{{Text: "Book Demo", Href: "/demo"}, {Text: "Get Started", Href: "/signup"}},
		SocialLinks:     map[string]string{"linkedin": "https://linkedin.com/company/acme"},
		Images:          []schemas.Image{{Src: "/hero.png", Alt: "dashboard"}},
		InternalLinks:   []string{"https://acme.io/pricing"},
		LoadTime:        1200 * time.Millisecond,
		RawText:         "Acme automates healthcare compliance for clinics and hospitals. Enterprise ready. SOC 2 certified.",
		Segments:        []string{"healthcare"},
	})
	st.AddPage(&schemas.PageData{
		URL:             "https://acme.io/pricing",
		Title:           "Pricing - Acme",
		MetaDescription: "Simple transparent pricing for teams of every size, from solo practices to hospital networks.",
		H1Tags:          []string{"Pricing"},
		PageType:        "pricing",
		HasViewport:     true,
		CTAs:            []schemas.CTA{{Text: "Start Free Trial", Href: "/trial"}},
		Forms:           []schemas.Form{{Action: "/signup", Method: "POST", Fields: []schemas.FormField{{Name: "email", Type: "email", Required: true}}}},
		LoadTime:        900 * time.Millisecond,
		RawText:         "Choose the plan that fits your clinic. All plans include audit trails.",
	})
	st.AddPage(&schemas.PageData{
		URL:         "https://acme.io/about",
		Title:       "About Acme",
		H1Tags:      []string{"Our mission"},
		PageType:    "about",
		HasViewport: true,
		LoadTime:    1100 * time.Millisecond,
		RawText:     "Founded by compliance officers, Acme serves healthcare and fintech teams worldwide.",
	})

	website := schemas.NewAgentAnalysis("website")
	website.Status = schemas.StatusCompleted
	st.SetAnalysis(website)
}

func completeDeps(st *store.ContextStore, names ...string) {
	for _, name := range names {
		a := schemas.NewAgentAnalysis(name)
		a.Status = schemas.StatusCompleted
		st.SetAnalysis(a)
	}
}

func testLogger() *zap.Logger { return zap.NewNop() }
