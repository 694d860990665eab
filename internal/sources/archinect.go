package sources

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"firmscout/internal/scout"
)

const archinectOrigin = "https://archinect.com"

// Archinect scrapes the Archinect job board, which exposes listings under a
// /jobs/{REGION}/{City} path.
type Archinect struct {
	origin  string
	fetcher scout.PageFetcher
	logger  *zap.Logger
}

// NewArchinect builds the source against the production origin.
func NewArchinect(fetcher scout.PageFetcher, logger *zap.Logger) *Archinect {
	return NewArchinectWithOrigin(archinectOrigin, fetcher, logger)
}

// NewArchinectWithOrigin is the injectable constructor used by tests.
func NewArchinectWithOrigin(origin string, fetcher scout.PageFetcher, logger *zap.Logger) *Archinect {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Archinect{
		origin:  strings.TrimRight(origin, "/"),
		fetcher: fetcher,
		logger:  logger,
	}
}

// Name implements scout.ListingSource.
func (a *Archinect) Name() string { return "archinect" }

// FetchListings fetches the location's listing page and extracts one Posting
// per job card. Cards missing the firm, role, or link are skipped.
func (a *Archinect) FetchListings(ctx context.Context, loc scout.Location) ([]scout.Posting, error) {
	pageURL := fmt.Sprintf("%s/jobs/%s/%s", a.origin, loc.Region, hyphenate(loc.City))
	page, err := a.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("archinect fetch %s: %w", pageURL, err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return nil, fmt.Errorf("archinect parse %s: %w", pageURL, err)
	}

	var postings []scout.Posting
	doc.Find(".job-listing").Each(func(_ int, card *goquery.Selection) {
		firm := strings.TrimSpace(card.Find(".job-listing-title").First().Text())
		role := strings.TrimSpace(card.Find(".job-position").First().Text())
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
			DetailURL: a.absoluteURL(strings.TrimSpace(href)),
		})
	})
	return postings, nil
}

func (a *Archinect) absoluteURL(href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	if !strings.HasPrefix(href, "/") {
		href = "/" + href
	}
	return a.origin + href
}
