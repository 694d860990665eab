package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestFetcher(t *testing.T, cfg Config) *Fetcher {
	t.Helper()
	if cfg.UserAgent == "" {
		cfg.UserAgent = "scout-test-agent"
	}
	f, err := New(cfg, zap.NewNop())
	require.NoError(t, err)
	return f
}

func TestFetchReturnsBodyAndMetadata(t *testing.T) {
	t.Parallel()

	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.UserAgent()
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><body>ok</body></html>"))
	}))
	defer srv.Close()

	f := newTestFetcher(t, Config{Timeout: 5 * time.Second})

	page, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, page.StatusCode)
	require.Contains(t, string(page.Body), "ok")
	require.Equal(t, "scout-test-agent", gotUA)
	require.Equal(t, "text/html", page.Headers.Get("Content-Type"))
	require.Positive(t, page.Duration)
}

func TestFetchReportsServerErrors(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	f := newTestFetcher(t, Config{Timeout: 5 * time.Second})

	_, err := f.Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	require.Contains(t, err.Error(), "503")
}

func TestFetchTimesOutSlowServers(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	f := newTestFetcher(t, Config{Timeout: 200 * time.Millisecond})

	start := time.Now()
	_, err := f.Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	require.Less(t, time.Since(start), 5*time.Second)
}

func TestFetchHonorsContextCancellation(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	f := newTestFetcher(t, Config{Timeout: 30 * time.Second})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := f.Fetch(ctx, srv.URL)
	require.Error(t, err)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewRequiresUserAgent(t *testing.T) {
	t.Parallel()

	_, err := New(Config{}, zap.NewNop())
	require.Error(t, err)
}

func TestLimiterWaitRespectsContext(t *testing.T) {
	t.Parallel()

	l := NewLimiter(1)
	ctx := context.Background()

	// First token is immediate; the second has to wait about a second.
	require.NoError(t, l.Wait(ctx, "https://example.com/a"))

	shortCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	err := l.Wait(shortCtx, "https://example.com/b")
	require.Error(t, err)
}

func TestLimiterIsPerDomain(t *testing.T) {
	t.Parallel()

	l := NewLimiter(1)
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	require.NoError(t, l.Wait(ctx, "https://a.example.com/"))
	// A different domain gets its own bucket and does not wait.
	require.NoError(t, l.Wait(ctx, "https://b.example.com/"))
}

func TestRenderingFetcherWithoutRendererIsPlain(t *testing.T) {
	t.Parallel()

	f := newTestFetcher(t, Config{Timeout: time.Second})
	wrapped := NewRenderingFetcher(f, nil, 2000, zap.NewNop())
	require.Equal(t, any(f), any(wrapped))
}
