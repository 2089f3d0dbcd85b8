// Package crawler fetches and indexes website pages for an audit run.
// It walks a bounded frontier seeded with high-value paths and the
// sitemap, classifies each page, and extracts the structured signals the
// analysis agents consume.
package crawler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/beevik/etree"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/vantagehq/marketscope/api/schemas"
	"github.com/vantagehq/marketscope/internal/config"
	"github.com/vantagehq/marketscope/internal/store"
)

// priorityPaths is the seed frontier, ordered by audit value. The crawl
// visits these before following discovered links.
var priorityPaths = []string{
	"", "/about", "/about-us", "/pricing", "/products", "/product",
	"/solutions", "/services", "/contact", "/contact-us", "/blog",
	"/resources", "/customers", "/case-studies", "/features", "/platform",
	"/company", "/team", "/why-us", "/demo", "/free-trial",
	"/industries", "/verticals", "/use-cases", "/for-enterprise",
	"/for-startups", "/for-teams", "/segments", "/sectors",
}

// segmentPathRE matches URLs that likely address a vertical or segment;
// such links jump the frontier queue.
var segmentPathRE = regexp.MustCompile(`(?i)/industries|/verticals|/for-|/use-case|/sector|/segment|/market`)

// skipSubstrings filters archive, pagination, anchor, and binary links
// out of the frontier.
var skipSubstrings = []string{"/tag/", "/category/", "/page/", "#", ".pdf", ".jpg", ".png"}

const maxBodyBytes = 2 << 20

// Crawler is the HTTP crawl collaborator.
type Crawler struct {
	cfg     config.CrawlerConfig
	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// New builds a crawler. Requests are paced at one per second regardless
// of worker concurrency.
func New(cfg config.CrawlerConfig, logger *zap.Logger) *Crawler {
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 20
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Crawler{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
		logger:  logger.Named("crawler"),
	}
}

// Crawl walks the site breadth-first from rootURL up to maxPages pages.
// It returns the pages it managed to fetch; an error only when the root
// itself is unreachable and nothing was indexed.
func (c *Crawler) Crawl(ctx context.Context, rootURL string, maxPages int) (map[string]*schemas.PageData, error) {
	if maxPages <= 0 {
		maxPages = c.cfg.MaxPages
	}
	base, err := url.Parse(strings.TrimRight(rootURL, "/"))
	if err != nil || base.Host == "" {
		return nil, fmt.Errorf("invalid root url %q: %w", rootURL, err)
	}

	frontier := newFrontier()
	for _, path := range priorityPaths {
		frontier.push(base.String()+path, false)
	}
	if c.cfg.UseSitemap {
		for _, loc := range c.sitemapURLs(ctx, base) {
			frontier.push(loc, false)
		}
	}

	pages := make(map[string]*schemas.PageData)
	for frontier.len() > 0 && len(pages) < maxPages {
		batch := frontier.pop(minInt(c.cfg.Concurrency, maxPages-len(pages)))

		results := make([]*schemas.PageData, len(batch))
		g, gctx := errgroup.WithContext(ctx)
		for i, u := range batch {
			g.Go(func() error {
				if err := c.limiter.Wait(gctx); err != nil {
					return err
				}
				page, err := c.fetchPage(gctx, u, base)
				if err != nil {
					c.logger.Debug("Fetch failed", zap.String("url", u), zap.Error(err))
					return nil
				}
				results[i] = page
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			break
		}

		for _, page := range results {
			if page == nil {
				continue
			}
			page.PageType = classifyPage(page.URL, base.String())
			page.Segments = detectSegments(page.RawText)
			pages[store.NormalizeURL(page.URL)] = page
			c.logger.Debug("Crawled page",
				zap.String("url", page.URL),
				zap.String("type", page.PageType))

			for _, link := range page.InternalLinks {
				if skipURL(link) {
					continue
				}
				frontier.push(link, segmentPathRE.MatchString(link))
			}
		}
	}

	if len(pages) == 0 {
		return nil, fmt.Errorf("crawl of %s produced no pages", rootURL)
	}
	c.logger.Info("Crawl complete",
		zap.String("root", rootURL),
		zap.Int("pages", len(pages)))
	return pages, nil
}

// fetchPage downloads and parses one page. Non-200 responses and
// non-HTML bodies are errors; the caller decides whether they matter.
func (c *Crawler) fetchPage(ctx context.Context, pageURL string, base *url.URL) (*schemas.PageData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	started := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}

	page, err := extractPage(body, pageURL, base)
	if err != nil {
		return nil, err
	}
	page.StatusCode = resp.StatusCode
	page.LoadTime = time.Since(started)
	page.ContentLength = len(body)
	return page, nil
}

// sitemapURLs pulls same-host page URLs out of /sitemap.xml. A missing
// or malformed sitemap is not an error; the priority paths still seed
// the crawl.
func (c *Crawler) sitemapURLs(ctx context.Context, base *url.URL) []string {
	sitemapURL := base.String() + "/sitemap.xml"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sitemapURL, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(body); err != nil {
		c.logger.Debug("Sitemap parse failed", zap.Error(err))
		return nil
	}

	var urls []string
	for _, loc := range doc.FindElements("//url/loc") {
		u := strings.TrimSpace(loc.Text())
		parsed, err := url.Parse(u)
		if err != nil || parsed.Host != base.Host || skipURL(u) {
			continue
		}
		urls = append(urls, u)
		if len(urls) >= 2*c.cfg.MaxPages {
			break
		}
	}
	c.logger.Debug("Sitemap seeded", zap.Int("urls", len(urls)))
	return urls
}

// frontier is the deduplicating crawl queue. Segment-related URLs are
// pushed to the front so vertical pages survive the page budget.
type frontier struct {
	queue []string
	seen  map[string]bool
}

func newFrontier() *frontier {
	return &frontier{seen: make(map[string]bool)}
}

func (f *frontier) push(rawURL string, front bool) {
	norm := store.NormalizeURL(rawURL)
	if f.seen[norm] {
		return
	}
	f.seen[norm] = true
	if front {
		f.queue = append([]string{rawURL}, f.queue...)
	} else {
		f.queue = append(f.queue, rawURL)
	}
}

func (f *frontier) len() int { return len(f.queue) }

func (f *frontier) pop(n int) []string {
	if n > len(f.queue) {
		n = len(f.queue)
	}
	batch := f.queue[:n]
	f.queue = f.queue[n:]
	return batch
}

func skipURL(u string) bool {
	lower := strings.ToLower(u)
	for _, s := range skipSubstrings {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
