// Package browser renders pages with headless Chrome and captures the
// screenshots agents requested during analysis. One browser process is
// shared across all captures in a run.
package browser

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/vantagehq/marketscope/api/schemas"
	"github.com/vantagehq/marketscope/internal/config"
)

// Capturer owns the browser process lifecycle. Captures run on contexts
// derived from the shared allocator, each bounded by the navigation
// timeout.
type Capturer struct {
	cfg    config.BrowserConfig
	logger *zap.Logger

	allocatorCtx    context.Context
	allocatorCancel context.CancelFunc
}

// NewCapturer launches the browser process and verifies it responds. The
// returned capturer must be Closed when the run finishes.
func NewCapturer(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (*Capturer, error) {
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 30 * time.Second
	}
	if cfg.ViewportWidth <= 0 {
		cfg.ViewportWidth = 1440
	}
	if cfg.ViewportHeight <= 0 {
		cfg.ViewportHeight = 900
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("no-default-browser-check", true),
		chromedp.WindowSize(cfg.ViewportWidth, cfg.ViewportHeight),
	)
	allocCtx, cancel := chromedp.NewExecAllocator(ctx, opts...)

	c := &Capturer{
		cfg:             cfg,
		logger:          logger.Named("browser"),
		allocatorCtx:    allocCtx,
		allocatorCancel: cancel,
	}

	probeCtx, cancelProbe := context.WithTimeout(allocCtx, cfg.NavigationTimeout)
	defer cancelProbe()
	probeCtx, cancelTab := chromedp.NewContext(probeCtx)
	defer cancelTab()
	if err := chromedp.Run(probeCtx, chromedp.Navigate("about:blank")); err != nil {
		cancel()
		return nil, fmt.Errorf("browser failed to start: %w", err)
	}

	c.logger.Info("Browser launched",
		zap.Bool("headless", cfg.Headless),
		zap.Int("viewport_width", cfg.ViewportWidth),
		zap.Int("viewport_height", cfg.ViewportHeight))
	return c, nil
}

// CaptureFullPage renders the URL and captures the entire page. The
// recorded dimensions come from the page's layout metrics, not the
// viewport.
func (c *Capturer) CaptureFullPage(ctx context.Context, url string) (*schemas.ScreenshotData, error) {
	var buf []byte
	var width, height int
	err := c.run(ctx, url,
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, _, contentSize, _, _, _, err := page.GetLayoutMetrics().Do(ctx)
			if err != nil {
				return err
			}
			if contentSize != nil {
				width = int(contentSize.Width)
				height = int(contentSize.Height)
			}
			return nil
		}),
		chromedp.FullScreenshot(&buf, 90),
	)
	if err != nil {
		return nil, fmt.Errorf("full-page capture of %s: %w", url, err)
	}
	return &schemas.ScreenshotData{
		URL:        url,
		Type:       schemas.ScreenshotFullPage,
		Base64Data: base64.StdEncoding.EncodeToString(buf),
		Width:      width,
		Height:     height,
		CapturedAt: time.Now(),
	}, nil
}

// CaptureElement renders the URL and captures the first element matching
// the selector. Comma-separated selectors fall through to the first
// present match.
func (c *Capturer) CaptureElement(ctx context.Context, url, selector string) (*schemas.ScreenshotData, error) {
	var buf []byte
	err := c.run(ctx, url,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Screenshot(selector, &buf, chromedp.ByQuery),
	)
	if err != nil {
		return nil, fmt.Errorf("element capture of %s (%s): %w", url, selector, err)
	}
	return &schemas.ScreenshotData{
		URL:             url,
		Type:            schemas.ScreenshotElement,
		ElementSelector: selector,
		Base64Data:      base64.StdEncoding.EncodeToString(buf),
		CapturedAt:      time.Now(),
	}, nil
}

// run executes navigation plus the capture actions on a fresh tab bounded
// by the navigation timeout.
func (c *Capturer) run(ctx context.Context, url string, actions ...chromedp.Action) error {
	if err := c.allocatorCtx.Err(); err != nil {
		return fmt.Errorf("browser closed: %w", err)
	}
	tabCtx, cancelTimeout := context.WithTimeout(c.allocatorCtx, c.cfg.NavigationTimeout)
	defer cancelTimeout()
	tabCtx, cancelTab := chromedp.NewContext(tabCtx)
	defer cancelTab()

	// Honor cancellation of the caller's context, not just the allocator's.
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	tasks := append(chromedp.Tasks{
		chromedp.EmulateViewport(int64(c.cfg.ViewportWidth), int64(c.cfg.ViewportHeight)),
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	}, actions...)
	return chromedp.Run(tabCtx, tasks...)
}

// Close shuts down the browser process.
func (c *Capturer) Close() error {
	c.allocatorCancel()
	c.logger.Info("Browser closed")
	return nil
}
