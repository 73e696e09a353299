package extract

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog"

	"lureingest/internal/domain"
)

const (
	defaultHeadlessWait    = 2 * time.Second
	defaultHeadlessTimeout = 45 * time.Second
)

// HeadlessAdapter renders pages in headless Chrome before applying the
// source's selectors. The browser starts on first use and is shared by every
// extraction of the source until Close.
type HeadlessAdapter struct {
	cfg       SourceConfig
	userAgent string
	logger    zerolog.Logger

	mu            sync.Mutex
	browserCtx    context.Context
	cancelAlloc   context.CancelFunc
	cancelBrowser context.CancelFunc
}

func NewHeadlessAdapter(cfg SourceConfig, userAgent string, logger zerolog.Logger) *HeadlessAdapter {
	return &HeadlessAdapter{cfg: cfg, userAgent: userAgent, logger: logger}
}

func (a *HeadlessAdapter) browser() (context.Context, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.browserCtx != nil {
		return a.browserCtx, nil
	}
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.UserAgent(a.userAgent),
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(1366, 900),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(s string, args ...interface{}) {
			a.logger.Debug().Msgf("chromedp: "+s, args...)
		}),
	)
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, fmt.Errorf("start browser: %w", err)
	}
	a.logger.Info().Msg("extract: headless browser started")
	a.browserCtx, a.cancelAlloc, a.cancelBrowser = browserCtx, cancelAlloc, cancelBrowser
	return browserCtx, nil
}

func (a *HeadlessAdapter) Extract(ctx context.Context, rawURL string) (domain.ExtractionResult, error) {
	parent, err := a.browser()
	if err != nil {
		return domain.ExtractionResult{}, err
	}
	wait := a.cfg.Wait
	if wait <= 0 {
		wait = defaultHeadlessWait
	}
	timeout := a.cfg.Timeout
	if timeout <= 0 {
		timeout = defaultHeadlessTimeout
	}

	tabCtx, cancelTab := chromedp.NewContext(parent)
	defer cancelTab()
	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, timeout)
	defer cancelTimeout()
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	var html string
	if err := chromedp.Run(tabCtx,
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(wait),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	); err != nil {
		if ctx.Err() != nil {
			return domain.ExtractionResult{}, ctx.Err()
		}
		return domain.ExtractionResult{}, fmt.Errorf("render %s: %w", rawURL, err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return domain.ExtractionResult{}, fmt.Errorf("parse rendered html %s: %w", rawURL, err)
	}
	return fromSelectors(doc, rawURL, a.cfg)
}

// Close shuts the browser down. The adapter can be used again afterwards.
func (a *HeadlessAdapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.browserCtx == nil {
		return nil
	}
	a.cancelBrowser()
	a.cancelAlloc()
	a.browserCtx, a.cancelAlloc, a.cancelBrowser = nil, nil, nil
	return nil
}
