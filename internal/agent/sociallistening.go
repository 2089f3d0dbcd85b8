package agent

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/vantagehq/marketscope/api/schemas"
	"github.com/vantagehq/marketscope/internal/store"
)

const (
	mentionSearchLimit   = 5
	mentionSearchTimeout = 10 * time.Second
	mentionTextLimit     = 200

	sentimentPositivePts = 10
	sentimentNeutralPts  = 5
	sentimentNegativePts = 2
)

// SocialListening samples recent public chatter about the company.
// Platform firehose APIs need credentials, so the search runs against an
// open JSON search endpoint (Reddit by default) and the sentiment of each
// hit is classified by the text-generation collaborator. Every mention
// gets a screenshot request so the report can carry evidence.
type SocialListening struct {
	*BaseAgent

	// HTTPClient may be replaced for tests; nil gets a default with a
	// search timeout.
	HTTPClient *http.Client
}

func NewSocialListening(st *store.ContextStore, llm schemas.LLMClient, logger *zap.Logger) *SocialListening {
	a := &SocialListening{
		BaseAgent:  NewBase("social_listening", nil, 1.0, st, llm, logger),
		HTTPClient: &http.Client{Timeout: mentionSearchTimeout},
	}
	a.bind(a)
	return a
}

// mention is one public post that names the company.
type mention struct {
	Source    string `json:"source"`
	Author    string `json:"author"`
	Text      string `json:"text"`
	URL       string `json:"url"`
	Date      string `json:"date"`
	Sentiment string `json:"sentiment"`
}

// redditListing is the subset of the search payload the agent reads.
type redditListing struct {
	Data struct {
		Children []struct {
			Data struct {
				Author     string  `json:"author"`
				Title      string  `json:"title"`
				Selftext   string  `json:"selftext"`
				Permalink  string  `json:"permalink"`
				CreatedUTC float64 `json:"created_utc"`
			} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

func (a *SocialListening) Run(ctx context.Context) (*schemas.ModuleScore, error) {
	module := schemas.NewModuleScore("Social Listening", a.Weight())

	mentions := a.searchMentions(ctx)
	a.Logger.Info("Social mention search finished", zap.Int("mentions", len(mentions)))

	a.classifySentiment(ctx, mentions)

	for _, m := range mentions {
		if m.URL != "" {
			a.RequestScreenshot(m.URL, "")
		}
	}

	module.Items = a.scoreSentiment(mentions)
	module.AnalysisText = a.summarize(mentions)
	module.RawData = map[string]any{"mentions": mentions}
	return module, nil
}

// searchMentions queries the configured public search endpoint. Any
// failure degrades to an empty result; the module then reports no
// recent activity rather than failing the run.
func (a *SocialListening) searchMentions(ctx context.Context) []*mention {
	cfg := a.Store.Cfg()
	endpoint := cfg.MentionSearchURL
	if endpoint == "" {
		a.Logger.Debug("Mention search disabled, no endpoint configured")
		return nil
	}

	query := url.Values{}
	query.Set("q", cfg.CompanyName)
	query.Set("sort", "new")
	query.Set("limit", fmt.Sprint(mentionSearchLimit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+query.Encode(), nil)
	if err != nil {
		a.Logger.Warn("Mention search request invalid", zap.Error(err))
		return nil
	}
	req.Header.Set("User-Agent", "marketscope/1.0 (social listening)")

	client := a.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: mentionSearchTimeout}
	}
	resp, err := client.Do(req)
	if err != nil {
		a.Logger.Warn("Mention search failed", zap.Error(err))
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		a.Logger.Warn("Mention search rejected", zap.Int("status", resp.StatusCode))
		return nil
	}

	var listing redditListing
	if err := jsoniter.NewDecoder(resp.Body).Decode(&listing); err != nil {
		a.Logger.Warn("Mention search payload unreadable", zap.Error(err))
		return nil
	}

	base := baseURLOf(endpoint)
	var mentions []*mention
	for _, child := range listing.Data.Children {
		post := child.Data
		mentions = append(mentions, &mention{
			Source:    "Reddit",
			Author:    post.Author,
			Text:      truncate(strings.TrimSpace(post.Title+" "+post.Selftext), mentionTextLimit),
			URL:       base + post.Permalink,
			Date:      time.Unix(int64(post.CreatedUTC), 0).UTC().Format("2006-01-02"),
			Sentiment: "Neutral",
		})
	}
	return mentions
}

func baseURLOf(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

// classifySentiment labels each mention Positive, Negative, or Neutral.
// Mentions keep their Neutral default when no collaborator is available
// or a classification fails.
func (a *SocialListening) classifySentiment(ctx context.Context, mentions []*mention) {
	if len(mentions) == 0 || !a.LLMAvailable() {
		return
	}
	company := a.Store.Cfg().CompanyName
	for _, m := range mentions {
		prompt := fmt.Sprintf(`Analyze the sentiment of this social media post about %s.
Post: %q

Return ONE word: Positive, Negative, or Neutral.`, company, m.Text)
		resp, err := a.LLM.Complete(ctx, schemas.GenerationRequest{Prompt: prompt, MaxTokens: 10})
		if err != nil {
			a.Logger.Warn("Sentiment classification failed", zap.Error(err))
			continue
		}
		switch {
		case strings.Contains(resp, "Positive"):
			m.Sentiment = "Positive"
		case strings.Contains(resp, "Negative"):
			m.Sentiment = "Negative"
		default:
			m.Sentiment = "Neutral"
		}
	}
}

func (a *SocialListening) scoreSentiment(mentions []*mention) []schemas.ScoreItem {
	if len(mentions) == 0 {
		return []schemas.ScoreItem{{
			Name:           "Recent Activity",
			Description:    "Frequency of recent social mentions",
			MaxPoints:      10,
			ActualPoints:   0,
			Notes:          "No recent mentions found on public channels.",
			Recommendation: "Encourage more community engagement.",
		}}
	}

	positive, negative := 0, 0
	for _, m := range mentions {
		switch m.Sentiment {
		case "Positive":
			positive++
		case "Negative":
			negative++
		}
	}
	points := sentimentNeutralPts
	if positive > negative {
		points = sentimentPositivePts
	} else if negative > positive {
		points = sentimentNegativePts
	}

	return []schemas.ScoreItem{{
		Name:           "Brand Sentiment",
		Description:    "Overall sentiment of recent mentions",
		MaxPoints:      10,
		ActualPoints:   points,
		Notes:          fmt.Sprintf("Found %d mentions. %d positive.", len(mentions), positive),
		Recommendation: "Monitor channels closely.",
	}}
}

func (a *SocialListening) summarize(mentions []*mention) string {
	if len(mentions) == 0 {
		return "No recent social mentions were found on public channels. Either conversation " +
			"volume is genuinely low or the discussion happens on closed platforms that public " +
			"search cannot reach; both are worth a manual follow-up."
	}
	var b strings.Builder
	b.WriteString("### Social Media Feed\n\n")
	for _, m := range mentions {
		fmt.Fprintf(&b, "**%s** - %s (%s)\n", m.Source, m.Date, m.Sentiment)
		fmt.Fprintf(&b, "> %s\n\n", m.Text)
		if m.URL != "" {
			fmt.Fprintf(&b, "[View Original](%s)\n\n---\n\n", m.URL)
		}
	}
	return b.String()
}
