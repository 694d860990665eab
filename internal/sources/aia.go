package sources

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"firmscout/internal/scout"
)

const aiaEndpoint = "https://careercenter.aia.org/jobs/"

// AIA scrapes the AIA Career Center, which takes the location as a single
// free-text search parameter rather than a path.
type AIA struct {
	endpoint string
	fetcher  scout.PageFetcher
	logger   *zap.Logger
}

// NewAIA builds the source against the production endpoint.
func NewAIA(fetcher scout.PageFetcher, logger *zap.Logger) *AIA {
	return NewAIAWithEndpoint(aiaEndpoint, fetcher, logger)
}

// NewAIAWithEndpoint is the injectable constructor used by tests.
func NewAIAWithEndpoint(endpoint string, fetcher scout.PageFetcher, logger *zap.Logger) *AIA {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AIA{endpoint: endpoint, fetcher: fetcher, logger: logger}
}

// Name implements scout.ListingSource.
func (a *AIA) Name() string { return "aia" }

// FetchListings issues a keyword search scoped to the location and extracts
// one Posting per result card. The detail URL comes straight from the
// card's anchor.
func (a *AIA) FetchListings(ctx context.Context, loc scout.Location) ([]scout.Posting, error) {
	searchURL, err := a.searchURL(loc)
	if err != nil {
		return nil, err
	}
	page, err := a.fetcher.Fetch(ctx, searchURL)
	if err != nil {
		return nil, fmt.Errorf("aia fetch %s: %w", searchURL, err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return nil, fmt.Errorf("aia parse %s: %w", searchURL, err)
	}

	var postings []scout.Posting
	doc.Find("article.job-listing").Each(func(_ int, card *goquery.Selection) {
		firm := strings.TrimSpace(card.Find(".job-listing__info--name").First().Text())
		role := strings.TrimSpace(card.Find(".job-listing__info--title").First().Text())
		if firm == "" || role == "" {
			a.logger.Debug("skipping incomplete card",
				zap.String("source", a.Name()),
				zap.String("location", loc.String()),
			)
			return
		}
		href, ok := card.Find("a").First().Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			return
		}
		postings = append(postings, scout.Posting{
			Firm:      firm,
			Role:      role,
			DetailURL: strings.TrimSpace(href),
		})
	})
	return postings, nil
}

func (a *AIA) searchURL(loc scout.Location) (string, error) {
	u, err := url.Parse(a.endpoint)
	if err != nil {
		return "", fmt.Errorf("aia endpoint: %w", err)
	}
	q := u.Query()
	q.Set("keywords", "")
	q.Set("location", loc.String())
	u.RawQuery = q.Encode()
	return u.String(), nil
}
