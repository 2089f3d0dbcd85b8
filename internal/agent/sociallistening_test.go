package agent

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vantagehq/marketscope/api/schemas"
	"github.com/vantagehq/marketscope/internal/store"
)

func listeningStore(searchURL string) *store.ContextStore {
	return store.New(store.Config{
		CompanyName:      "Acme",
		CompanyWebsite:   "https://acme.io",
		Industry:         "SaaS",
		MaxPages:         20,
		MaxRevisions:     3,
		MentionSearchURL: searchURL,
	})
}

const redditFixture = `{
  "data": {
    "children": [
      {"data": {"author": "complianceguy", "title": "Acme saved our audit",
        "selftext": "We rolled out Acme last quarter and the SOC 2 prep was painless.",
        "permalink": "/r/saas/comments/abc/acme_saved_our_audit/", "created_utc": 1756512000}},
      {"data": {"author": "skeptic22", "title": "Anyone else find Acme pricing steep?",
        "selftext": "", "permalink": "/r/saas/comments/def/acme_pricing/", "created_utc": 1756425600}}
    ]
  }
}`

func TestSocialListeningFeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Acme", r.URL.Query().Get("q"))
		assert.Equal(t, "new", r.URL.Query().Get("sort"))
		w.Write([]byte(redditFixture))
	}))
	defer srv.Close()

	st := listeningStore(srv.URL)
	llm := &fakeLLM{texts: []string{"Positive", "Negative"}}
	a := NewSocialListening(st, llm, testLogger())

	analysis := a.Execute(context.Background())
	require.Equal(t, schemas.StatusCompleted, analysis.Status)

	mentions, ok := analysis.RawData["mentions"].([]*mention)
	require.True(t, ok)
	require.Len(t, mentions, 2)
	assert.Equal(t, "Reddit", mentions[0].Source)
	assert.Equal(t, "complianceguy", mentions[0].Author)
	assert.Equal(t, srv.URL+"/r/saas/comments/abc/acme_saved_our_audit/", mentions[0].URL)
	assert.Equal(t, "2025-08-30", mentions[0].Date)
	assert.Equal(t, "Positive", mentions[0].Sentiment)
	assert.Equal(t, "Negative", mentions[1].Sentiment)

	// Tie between positive and negative keeps the neutral score.
	item := analysis.ModuleScore.Items[0]
	assert.Equal(t, "Brand Sentiment", item.Name)
	assert.Equal(t, 5, item.ActualPoints)
	assert.Equal(t, "Found 2 mentions. 1 positive.", item.Notes)

	// Every mention gets an evidence capture request.
	pending := st.PendingScreenshots()
	require.Len(t, pending, 2)

	assert.Contains(t, analysis.AnalysisText, "### Social Media Feed")
	assert.Contains(t, analysis.AnalysisText, "Acme saved our audit")
}

func TestSocialListeningPositiveConsensus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(redditFixture))
	}))
	defer srv.Close()

	st := listeningStore(srv.URL)
	llm := &fakeLLM{texts: []string{"Positive", "Positive"}}
	a := NewSocialListening(st, llm, testLogger())

	analysis := a.Execute(context.Background())
	require.Equal(t, schemas.StatusCompleted, analysis.Status)
	assert.Equal(t, 10, analysis.ModuleScore.Items[0].ActualPoints)
}

func TestSocialListeningNoEndpoint(t *testing.T) {
	st := listeningStore("")
	a := NewSocialListening(st, nil, testLogger())

	analysis := a.Execute(context.Background())
	require.Equal(t, schemas.StatusCompleted, analysis.Status)

	item := analysis.ModuleScore.Items[0]
	assert.Equal(t, "Recent Activity", item.Name)
	assert.Equal(t, 0, item.ActualPoints)
	assert.Contains(t, item.Notes, "No recent mentions found")
	assert.Contains(t, analysis.AnalysisText, "closed platforms")
	assert.Empty(t, st.PendingScreenshots())
}

func TestSocialListeningSearchFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	st := listeningStore(srv.URL)
	a := NewSocialListening(st, nil, testLogger())

	// A rejected search degrades to the no-activity report instead of
	// failing the agent.
	analysis := a.Execute(context.Background())
	require.Equal(t, schemas.StatusCompleted, analysis.Status)
	assert.Equal(t, "Recent Activity", analysis.ModuleScore.Items[0].Name)
}

func TestSocialListeningKeepsNeutralWithoutModel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(redditFixture))
	}))
	defer srv.Close()

	st := listeningStore(srv.URL)
	a := NewSocialListening(st, nil, testLogger())

	analysis := a.Execute(context.Background())
	require.Equal(t, schemas.StatusCompleted, analysis.Status)

	mentions := analysis.RawData["mentions"].([]*mention)
	require.Len(t, mentions, 2)
	assert.Equal(t, "Neutral", mentions[0].Sentiment)
	assert.Equal(t, 5, analysis.ModuleScore.Items[0].ActualPoints)
}
