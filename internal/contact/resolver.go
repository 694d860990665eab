// Package contact enriches postings with phone numbers and firm websites
// scraped from their detail pages.
package contact

import (
	"bytes"
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"firmscout/internal/scout"
)

// Resolver implements scout.ContactResolver. Every failure path degrades to
// absent fields; a posting without contact details is still a valid record.
type Resolver struct {
	fetcher scout.PageFetcher
	logger  *zap.Logger
}

// New builds a Resolver. A nil logger falls back to a no-op one.
func New(fetcher scout.PageFetcher, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{fetcher: fetcher, logger: logger}
}

// Resolve fetches the detail page and extracts the first phone number found
// in its visible text plus the first external link. When the page itself has
// no phone but does link out to a website, the website is fetched once and
// scanned as a fallback.
func (r *Resolver) Resolve(ctx context.Context, detailURL string) scout.ContactInfo {
	page, err := r.fetcher.Fetch(ctx, detailURL)
	if err != nil {
		r.logger.Debug("detail fetch failed", zap.String("url", detailURL), zap.Error(err))
		return scout.ContactInfo{}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		r.logger.Debug("detail parse failed", zap.String("url", detailURL), zap.Error(err))
		return scout.ContactInfo{}
	}

	info := scout.ContactInfo{
		Phone:   scout.PhonePattern.FindString(visibleText(doc)),
		Website: firstExternalLink(doc),
	}

	if info.Phone == "" && info.Website != "" {
		info.Phone = r.phoneFromWebsite(ctx, info.Website)
	}
	return info
}

// phoneFromWebsite scans the linked site's raw markup for a phone number.
// The site is third-party markup we make no structural assumptions about.
func (r *Resolver) phoneFromWebsite(ctx context.Context, website string) string {
	page, err := r.fetcher.Fetch(ctx, website)
	if err != nil {
		r.logger.Debug("website fetch failed", zap.String("url", website), zap.Error(err))
		return ""
	}
	return scout.PhonePattern.FindString(string(page.Body))
}

// firstExternalLink returns the first anchor href in document order that
// looks like a firm website.
func firstExternalLink(doc *goquery.Document) string {
	var found string
	doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href := strings.TrimSpace(sel.AttrOr("href", ""))
		if scout.QualifiesAsWebsite(href) {
			found = href
			return false
		}
		return true
	})
	return found
}

// visibleText concatenates the document's text nodes with single spaces.
// Joining on spaces keeps adjacent nodes from fusing, which matters for the
// phone pattern's word boundaries. Script and style bodies are excluded.
func visibleText(doc *goquery.Document) string {
	var parts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style" || n.Data == "noscript") {
			return
		}
		if n.Type == html.TextNode {
			if text := strings.TrimSpace(n.Data); text != "" {
				parts = append(parts, text)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, root := range doc.Nodes {
		walk(root)
	}
	return strings.Join(parts, " ")
}
