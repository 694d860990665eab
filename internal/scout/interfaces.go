package scout

import "context"

// PageFetcher fetches a single URL and returns the body plus metadata.
type PageFetcher interface {
	Fetch(ctx context.Context, rawURL string) (Page, error)
}

// ListingSource is implemented once per external listing site. FetchListings
// returns the raw postings found for a location. A failed fetch or an
// unparseable page is reported as an error so the caller can decide to
// skip-and-continue; individual cards with missing fields are skipped
// silently, since partial markup is expected.
type ListingSource interface {
	Name() string
	FetchListings(ctx context.Context, loc Location) ([]Posting, error)
}

// ContactResolver extracts a phone number and candidate website from a
// posting's detail page. It never fails: every internal error degrades to
// absent fields.
type ContactResolver interface {
	Resolve(ctx context.Context, detailURL string) ContactInfo
}

// LocationProvider resolves the working set of locations to scan.
type LocationProvider interface {
	Resolve(ctx context.Context) ([]Location, error)
}

// Exporter consumes the final ordered record set.
type Exporter interface {
	Export(ctx context.Context, records []JobRecord) error
}
