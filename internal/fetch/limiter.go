package fetch

import (
	"context"
	"net/url"
	"sync"

	"golang.org/x/time/rate"
)

// Limiter manages per-domain request rates so bursts against a single
// listing site stay polite.
type Limiter struct {
	mu          sync.Mutex
	limiters    map[string]*rate.Limiter
	defaultRate rate.Limit
}

// NewLimiter creates a Limiter allowing rps requests per second per domain.
// A non-positive rps disables limiting.
func NewLimiter(rps int) *Limiter {
	r := rate.Limit(rps)
	if rps <= 0 {
		r = rate.Inf
	}
	return &Limiter{
		limiters:    make(map[string]*rate.Limiter),
		defaultRate: r,
	}
}

// Wait blocks until a token is available for the URL's domain, respecting
// the context.
func (l *Limiter) Wait(ctx context.Context, rawURL string) error {
	domain := "unknown"
	if u, err := url.Parse(rawURL); err == nil && u.Hostname() != "" {
		domain = u.Hostname()
	}
	l.mu.Lock()
	limiter, ok := l.limiters[domain]
	if !ok {
		limiter = rate.NewLimiter(l.defaultRate, 1)
		l.limiters[domain] = limiter
	}
	l.mu.Unlock()
	return limiter.Wait(ctx)
}
