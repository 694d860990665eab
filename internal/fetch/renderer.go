package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"firmscout/internal/scout"
)

// ErrRendererDisabled indicates rendering has been disabled via configuration.
var ErrRendererDisabled = errors.New("renderer disabled")

// RendererConfig controls the optional headless render path.
type RendererConfig struct {
	UserAgent   string
	Timeout     time.Duration
	MaxParallel int
}

// Renderer renders pages using headless Chrome via chromedp. Listing sites
// that build their cards client-side return near-empty documents to a plain
// GET; the renderer recovers those.
type Renderer struct {
	allocatorCancel context.CancelFunc
	browserCtx      context.Context
	browserCancel   context.CancelFunc
	logger          *zap.Logger
	sem             chan struct{}
	timeout         time.Duration
}

// NewRenderer creates a renderer using the provided configuration.
func NewRenderer(cfg RendererConfig, logger *zap.Logger) (*Renderer, error) {
	if cfg.MaxParallel <= 0 {
		return nil, ErrRendererDisabled
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	opts := chromedp.DefaultExecAllocatorOptions[:]
	opts = append(opts,
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.UserAgent(cfg.UserAgent),
	)
	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		allocatorCancel()
		browserCancel()
		return nil, fmt.Errorf("chromedp warmup: %w", err)
	}

	return &Renderer{
		allocatorCancel: allocatorCancel,
		browserCtx:      browserCtx,
		browserCancel:   browserCancel,
		logger:          logger,
		sem:             make(chan struct{}, cfg.MaxParallel),
		timeout:         timeout,
	}, nil
}

// Close tears down the chromedp allocator and browser contexts.
func (r *Renderer) Close() {
	if r == nil {
		return
	}
	r.browserCancel()
	r.allocatorCancel()
}

// Render executes the page with JavaScript enabled and returns the DOM
// snapshot as a Page.
func (r *Renderer) Render(ctx context.Context, rawURL string) (scout.Page, error) {
	if r == nil {
		return scout.Page{}, ErrRendererDisabled
	}

	select {
	case r.sem <- struct{}{}:
		defer func() { <-r.sem }()
	case <-ctx.Done():
		return scout.Page{}, ctx.Err()
	}

	tabCtx, cancelTab := chromedp.NewContext(r.browserCtx)
	defer cancelTab()
	taskCtx, cancelTask := context.WithTimeout(tabCtx, r.timeout)
	defer cancelTask()

	stop := context.AfterFunc(ctx, cancelTask)
	defer stop()

	start := time.Now()
	var html string
	err := chromedp.Run(taskCtx,
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body"),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return scout.Page{}, fmt.Errorf("render %s: %w", rawURL, err)
	}
	return scout.Page{
		URL:        rawURL,
		FinalURL:   rawURL,
		StatusCode: http.StatusOK,
		Body:       []byte(html),
		Duration:   time.Since(start),
	}, nil
}

// RenderingFetcher wraps a plain fetcher with a render fallback: when the
// plain fetch fails or yields a suspiciously small document, the page is
// retried through the renderer. The plain result is kept whenever rendering
// fails, so enabling the renderer can only add coverage.
type RenderingFetcher struct {
	plain        scout.PageFetcher
	renderer     *Renderer
	minHTMLBytes int
	logger       *zap.Logger
}

// NewRenderingFetcher wires the fallback. A nil renderer returns the plain
// fetcher unchanged.
func NewRenderingFetcher(plain scout.PageFetcher, renderer *Renderer, minHTMLBytes int, logger *zap.Logger) scout.PageFetcher {
	if renderer == nil {
		return plain
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RenderingFetcher{
		plain:        plain,
		renderer:     renderer,
		minHTMLBytes: minHTMLBytes,
		logger:       logger,
	}
}

// Fetch implements scout.PageFetcher.
func (f *RenderingFetcher) Fetch(ctx context.Context, rawURL string) (scout.Page, error) {
	page, err := f.plain.Fetch(ctx, rawURL)
	if err == nil && len(page.Body) >= f.minHTMLBytes {
		return page, nil
	}

	rendered, renderErr := f.renderer.Render(ctx, rawURL)
	if renderErr != nil {
		f.logger.Debug("render fallback failed",
			zap.String("url", rawURL),
			zap.Error(renderErr),
		)
		return page, err
	}
	return rendered, nil
}
