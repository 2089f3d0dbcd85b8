// Package store holds the shared mutable state for a single audit run.
//
// The store is the single source of truth all agents serialize through.
// Each collection has a documented owner: the crawler writes pages, each
// agent writes its own analysis record, the segmentation agent writes
// segments, the top-pages agent writes critical pages, the resource-hub
// agent writes landing pages and gated content, the social agent writes
// social links. Everyone else only reads those fields, and must tolerate
// them being empty when the owning agent has not run or has failed.
//
// Agents within a phase run on separate goroutines, so the maps are
// guarded by a single RWMutex. The mutex serializes map access; it is not
// a merge rule - the owner-writes contracts above are what keep concurrent
// writes disjoint.
package store

import (
	"strings"
	"sync"
	"time"

	"github.com/vantagehq/marketscope/api/schemas"
)

// Config carries the run-scoped configuration the store is created with.
type Config struct {
	CompanyName    string
	CompanyWebsite string
	Industry       string
	AuditDate      string
	AnalystName    string
	AnalystCompany string
	Competitors    []string
	MaxPages       int
	MaxRevisions   int

	// MentionSearchURL is the public search endpoint used for social
	// listening. Empty disables the live search.
	MentionSearchURL string
}

// ContextStore is created at run start and discarded after report
// assembly (or handed to the archive by the caller).
type ContextStore struct {
	cfg Config

	mu            sync.RWMutex
	pages         map[string]*schemas.PageData
	screenshots   map[string]*schemas.ScreenshotData
	analyses      map[string]*schemas.AgentAnalysis
	crawlRequests []string

	segments      []schemas.SegmentInfo
	primarySeg    string
	criticalPages []*schemas.CriticalPage
	landingPages  []schemas.ResourceEntry
	gatedContent  []schemas.ResourceEntry
	socialLinks   map[string]string
	competitors   []schemas.CompetitorProfile

	createdAt   time.Time
	lastUpdated time.Time
}

// New creates an empty store for one audit run.
func New(cfg Config) *ContextStore {
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 20
	}
	if cfg.MaxRevisions <= 0 {
		cfg.MaxRevisions = 3
	}
	return &ContextStore{
		cfg:         cfg,
		pages:       make(map[string]*schemas.PageData),
		screenshots: make(map[string]*schemas.ScreenshotData),
		analyses:    make(map[string]*schemas.AgentAnalysis),
		socialLinks: make(map[string]string),
		createdAt:   time.Now(),
	}
}

// Cfg returns the run configuration. The returned value is a copy.
func (s *ContextStore) Cfg() Config { return s.cfg }

func (s *ContextStore) touch() { s.lastUpdated = time.Now() }

// -- Pages (owner: crawl collaborator; append-only during the run) --

// AddPage inserts or replaces a page record keyed by its normalized URL.
func (s *ContextStore) AddPage(page *schemas.PageData) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[NormalizeURL(page.URL)] = page
	s.touch()
}

// GetPage returns the page for a URL, or nil.
func (s *ContextStore) GetPage(url string) *schemas.PageData {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pages[NormalizeURL(url)]
}

// Pages returns a snapshot of all page records.
func (s *ContextStore) Pages() map[string]*schemas.PageData {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]*schemas.PageData, len(s.pages))
	for k, v := range s.pages {
		out[k] = v
	}
	return out
}

// PageCount returns the number of crawled pages.
func (s *ContextStore) PageCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pages)
}

// Homepage returns the page matching the configured root URL, falling back
// to any page when there is no exact match.
func (s *ContextStore) Homepage() *schemas.PageData {
	s.mu.RLock()
	defer s.mu.RUnlock()
	root := NormalizeURL(s.cfg.CompanyWebsite)
	if page, ok := s.pages[root]; ok {
		return page
	}
	for _, page := range s.pages {
		return page
	}
	return nil
}

// PagesByType filters pages by classification tag.
func (s *ContextStore) PagesByType(pageType string) []*schemas.PageData {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*schemas.PageData
	for _, page := range s.pages {
		if page.PageType == pageType {
			out = append(out, page)
		}
	}
	return out
}

// AllCTAs flattens every CTA across pages, annotating each with its page
// URL.
func (s *ContextStore) AllCTAs() []schemas.CTA {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []schemas.CTA
	for _, page := range s.pages {
		for _, cta := range page.CTAs {
			cta.PageURL = page.URL
			out = append(out, cta)
		}
	}
	return out
}

// AllForms flattens every form across pages, annotating each with its page
// URL.
func (s *ContextStore) AllForms() []schemas.Form {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []schemas.Form
	for _, page := range s.pages {
		for _, form := range page.Forms {
			form.PageURL = page.URL
			out = append(out, form)
		}
	}
	return out
}

// RequestAdditionalCrawl records URLs an agent wants crawled. Returns the
// URLs that were actually new. The crawler is not required to act on these
// mid-run.
func (s *ContextStore) RequestAdditionalCrawl(urls []string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var added []string
	for _, u := range urls {
		norm := NormalizeURL(u)
		if _, crawled := s.pages[norm]; crawled {
			continue
		}
		s.crawlRequests = append(s.crawlRequests, u)
		added = append(added, u)
	}
	return added
}

// PendingCrawlRequests drains and returns accumulated crawl requests.
func (s *ContextStore) PendingCrawlRequests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.crawlRequests
	s.crawlRequests = nil
	return out
}

// -- Screenshots (requests by agents, payloads by the render collaborator) --

// AddScreenshot inserts or replaces a screenshot record under its
// composite key.
func (s *ContextStore) AddScreenshot(shot *schemas.ScreenshotData) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.screenshots[shot.Key()] = shot
	s.touch()
}

// GetScreenshot returns the record for a composite key, or nil.
func (s *ContextStore) GetScreenshot(key string) *schemas.ScreenshotData {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.screenshots[key]
}

// PendingScreenshots returns all unfulfilled screenshot requests.
func (s *ContextStore) PendingScreenshots() []*schemas.ScreenshotData {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*schemas.ScreenshotData
	for _, shot := range s.screenshots {
		if shot.Pending() {
			out = append(out, shot)
		}
	}
	return out
}

// Screenshots returns a snapshot of all screenshot records.
func (s *ContextStore) Screenshots() []*schemas.ScreenshotData {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*schemas.ScreenshotData, 0, len(s.screenshots))
	for _, shot := range s.screenshots {
		out = append(out, shot)
	}
	return out
}

// -- Analyses (owner: each agent writes only its own record) --

// SetAnalysis stores the record under its agent name, overwriting any
// prior record in place.
func (s *ContextStore) SetAnalysis(analysis *schemas.AgentAnalysis) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.analyses[analysis.AgentName] = analysis
	s.touch()
}

// GetAnalysis returns the record for an agent name, or nil.
func (s *ContextStore) GetAnalysis(agentName string) *schemas.AgentAnalysis {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.analyses[agentName]
}

// Analyses returns a snapshot of all analysis records.
func (s *ContextStore) Analyses() map[string]*schemas.AgentAnalysis {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]*schemas.AgentAnalysis, len(s.analyses))
	for k, v := range s.analyses {
		out[k] = v
	}
	return out
}

// -- Cross-agent side-channel state --

// SetSegments records identified segments (owner: segmentation agent).
func (s *ContextStore) SetSegments(segments []schemas.SegmentInfo, primary string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.segments = segments
	s.primarySeg = primary
	s.touch()
}

// Segments returns identified segments and the primary segment name.
func (s *ContextStore) Segments() ([]schemas.SegmentInfo, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.segments, s.primarySeg
}

// SetCriticalPages records graded top pages (owner: top-pages agent).
func (s *ContextStore) SetCriticalPages(pages []*schemas.CriticalPage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.criticalPages = pages
	s.touch()
}

// CriticalPages returns the graded top pages.
func (s *ContextStore) CriticalPages() []*schemas.CriticalPage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.criticalPages
}

// SetResources records landing pages and gated content (owner:
// resource-hub agent).
func (s *ContextStore) SetResources(landing, gated []schemas.ResourceEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.landingPages = landing
	s.gatedContent = gated
	s.touch()
}

// Resources returns landing pages and gated content.
func (s *ContextStore) Resources() (landing, gated []schemas.ResourceEntry) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.landingPages, s.gatedContent
}

// SetSocialLinks records discovered social profiles (owner: social agent).
func (s *ContextStore) SetSocialLinks(links map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.socialLinks = links
	s.touch()
}

// SocialLinks returns discovered social profiles.
func (s *ContextStore) SocialLinks() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.socialLinks))
	for k, v := range s.socialLinks {
		out[k] = v
	}
	return out
}

// SetCompetitors records competitor profiles (owner: competitor agent).
func (s *ContextStore) SetCompetitors(profiles []schemas.CompetitorProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.competitors = profiles
	s.touch()
}

// Competitors returns recorded competitor profiles.
func (s *ContextStore) Competitors() []schemas.CompetitorProfile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.competitors
}

// -- Run state --

// Summary is a point-in-time view of run progress.
type Summary struct {
	Company             string `json:"company"`
	Website             string `json:"website"`
	PagesCrawled        int    `json:"pages_crawled"`
	ScreenshotsCaptured int    `json:"screenshots_captured"`
	AnalysesCompleted   int    `json:"analyses_completed"`
	AnalysesPending     int    `json:"analyses_pending"`
	SegmentsIdentified  int    `json:"segments_identified"`
	CriticalPagesGraded int    `json:"critical_pages_graded"`
}

// GetSummary snapshots run progress for logging and the CLI.
func (s *ContextStore) GetSummary() Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	summary := Summary{
		Company:             s.cfg.CompanyName,
		Website:             s.cfg.CompanyWebsite,
		PagesCrawled:        len(s.pages),
		SegmentsIdentified:  len(s.segments),
		CriticalPagesGraded: len(s.criticalPages),
	}
	for _, shot := range s.screenshots {
		if !shot.Pending() {
			summary.ScreenshotsCaptured++
		}
	}
	for _, a := range s.analyses {
		switch a.Status {
		case schemas.StatusCompleted:
			summary.AnalysesCompleted++
		case schemas.StatusPending:
			summary.AnalysesPending++
		}
	}
	return summary
}

// NormalizeURL strips the trailing slash and lowercases the URL so that
// page keys and screenshot cross-links compare consistently.
func NormalizeURL(url string) string {
	return strings.ToLower(strings.TrimRight(url, "/"))
}
