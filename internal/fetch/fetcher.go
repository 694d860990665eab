// Package fetch implements the shared page fetcher used by every outbound
// request: listing searches, posting detail pages, firm sites, and the
// population data source.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"firmscout/internal/scout"
)

// Config controls fetcher behavior.
type Config struct {
	UserAgent    string
	Timeout      time.Duration
	PerDomainRPS int
	MaxParallel  int
}

// Fetcher implements scout.PageFetcher using the Colly collector with a
// pooled transport and per-domain politeness limits.
type Fetcher struct {
	baseCollector *colly.Collector
	limiter       *Limiter
	logger        *zap.Logger
	timeout       time.Duration
}

// New constructs a configured Colly-based Fetcher.
func New(cfg Config, logger *zap.Logger) (*Fetcher, error) {
	if cfg.UserAgent == "" {
		return nil, errors.New("user agent is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	maxParallel := cfg.MaxParallel
	if maxParallel <= 0 {
		maxParallel = 8
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	base := colly.NewCollector(
		colly.Async(true),
		colly.UserAgent(cfg.UserAgent),
	)
	base.AllowURLRevisit = true
	base.IgnoreRobotsTxt = true
	base.WithTransport(&http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          128,
		MaxIdleConnsPerHost:   32,
		MaxConnsPerHost:       maxParallel * 2,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: timeout,
		ForceAttemptHTTP2:     true,
	})
	base.SetRequestTimeout(timeout)

	if err := base.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: maxParallel,
	}); err != nil {
		return nil, fmt.Errorf("set collector limits: %w", err)
	}

	return &Fetcher{
		baseCollector: base,
		limiter:       NewLimiter(cfg.PerDomainRPS),
		logger:        logger,
		timeout:       timeout,
	}, nil
}

// Fetch retrieves a page via the configured Colly collector. Non-2xx
// responses are returned as errors so callers can treat them uniformly with
// transport failures.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (scout.Page, error) {
	if err := f.limiter.Wait(ctx, rawURL); err != nil {
		return scout.Page{}, fmt.Errorf("rate limit wait: %w", err)
	}

	collector := f.baseCollector.Clone()
	start := time.Now()
	resultCh := make(chan fetchResult, 1)
	var once sync.Once
	send := func(res fetchResult) {
		once.Do(func() {
			resultCh <- res
		})
	}

	collector.OnResponse(func(r *colly.Response) {
		headers := http.Header{}
		if r.Headers != nil {
			for k, v := range *r.Headers {
				cp := make([]string, len(v))
				copy(cp, v)
				headers[k] = cp
			}
		}
		page := scout.Page{
			URL:        rawURL,
			FinalURL:   r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Headers:    headers,
			Body:       append([]byte{}, r.Body...),
			Duration:   time.Since(start),
		}
		send(fetchResult{page: page})
	})

	collector.OnError(func(r *colly.Response, err error) {
		if err == nil {
			err = errors.New("unknown colly error")
		}
		if r != nil && r.StatusCode != 0 {
			err = fmt.Errorf("status %d: %w", r.StatusCode, err)
		}
		send(fetchResult{err: err})
	})

	visitDone := make(chan error, 1)
	go func() {
		if err := collector.Visit(rawURL); err != nil {
			send(fetchResult{err: err})
		}
		collector.Wait()
		visitDone <- nil
	}()

	select {
	case <-ctx.Done():
		return scout.Page{}, fmt.Errorf("fetch canceled: %w", ctx.Err())
	case <-visitDone:
	}

	select {
	case res := <-resultCh:
		if res.err != nil {
			return scout.Page{}, res.err
		}
		return res.page, nil
	default:
		return scout.Page{}, errors.New("fetch produced no result")
	}
}

type fetchResult struct {
	page scout.Page
	err  error
}
