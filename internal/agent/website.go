package agent

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/vantagehq/marketscope/api/schemas"
	"github.com/vantagehq/marketscope/internal/store"
)

// Website drives the crawl collaborator and loads the page map into the
// shared store. It carries no scoring weight; every other agent depends on
// the data it collects.
type Website struct {
	*BaseAgent
	crawler schemas.Crawler
}

func NewWebsite(st *store.ContextStore, crawler schemas.Crawler, llm schemas.LLMClient, logger *zap.Logger) *Website {
	a := &Website{
		BaseAgent: NewBase("website", nil, 0, st, llm, logger),
		crawler:   crawler,
	}
	a.bind(a)
	return a
}

func (a *Website) Plan() string {
	return fmt.Sprintf("Crawl up to %d pages of %s, classify page types, and detect segment mentions",
		a.Store.Cfg().MaxPages, a.Store.Cfg().CompanyWebsite)
}

func (a *Website) Run(ctx context.Context) (*schemas.ModuleScore, error) {
	cfg := a.Store.Cfg()
	module := schemas.NewModuleScore("Website Crawl", 0)

	pages, err := a.crawler.Crawl(ctx, cfg.CompanyWebsite, cfg.MaxPages)
	if err != nil {
		return nil, fmt.Errorf("crawling %s: %w", cfg.CompanyWebsite, err)
	}

	segmentPages := 0
	for _, page := range pages {
		if len(page.Segments) > 0 {
			segmentPages++
		}
		a.Store.AddPage(page)
	}

	module.Items = append(module.Items, schemas.ScoreItem{
		Name:         "Pages Crawled",
		Description:  "Total pages indexed",
		MaxPoints:    cfg.MaxPages,
		ActualPoints: len(pages),
		Notes:        fmt.Sprintf("Crawled %d of %d max pages", len(pages), cfg.MaxPages),
	})

	typeCounts := a.pageTypeCounts()
	module.AnalysisText = fmt.Sprintf(
		"Website crawl completed for %s.\n\n**Summary:**\n- Pages crawled: %d\n- Segment-related pages: %d\n\n**Page Types Found:**\n%s",
		cfg.CompanyName, len(pages), segmentPages, formatTypeCounts(typeCounts))
	module.RawData = map[string]any{
		"pages_crawled": len(pages),
		"segment_pages": segmentPages,
		"page_types":    typeCounts,
	}

	a.Logger.Info("Crawl complete",
		zap.Int("pages", len(pages)),
		zap.Int("segment_pages", segmentPages))

	return module, nil
}

// SelfAudit requires at least one crawled page including the homepage; an
// empty crawl leaves nothing for downstream agents to analyze.
func (a *Website) SelfAudit() bool {
	if a.Store.PageCount() < 1 {
		return false
	}
	return a.Store.Homepage() != nil
}

func (a *Website) pageTypeCounts() map[string]int {
	counts := make(map[string]int)
	for _, page := range a.Store.Pages() {
		pt := page.PageType
		if pt == "" {
			pt = "other"
		}
		counts[pt]++
	}
	return counts
}

func formatTypeCounts(counts map[string]int) string {
	type kv struct {
		name  string
		count int
	}
	sorted := make([]kv, 0, len(counts))
	for name, count := range counts {
		sorted = append(sorted, kv{name, count})
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].count != sorted[j].count {
			return sorted[i].count > sorted[j].count
		}
		return sorted[i].name < sorted[j].name
	})
	var lines []string
	for _, entry := range sorted {
		lines = append(lines, fmt.Sprintf("- %s: %d", entry.name, entry.count))
	}
	return strings.Join(lines, "\n")
}
