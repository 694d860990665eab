// Package scout defines core types shared across subsystems.
package scout

import (
	"net/http"
	"regexp"
	"strings"
	"time"
)

// Location is a (city, region) pair to scan. Region is a 2-letter USPS code.
type Location struct {
	City   string `json:"city"`
	Region string `json:"region"`
}

// String renders the location the way listing sites expect it ("City, RG").
func (l Location) String() string {
	return l.City + ", " + l.Region
}

// Posting is one listing card as extracted from a source's search page,
// prior to contact enrichment.
type Posting struct {
	Firm      string `json:"firm"`
	Role      string `json:"role"`
	DetailURL string `json:"detail_url"`
}

// ContactInfo holds the contact details resolved from a posting's detail
// page. Both fields are independently optional; the empty string means the
// field could not be found, which is a valid outcome rather than an error.
type ContactInfo struct {
	Phone   string `json:"phone,omitempty"`
	Website string `json:"website,omitempty"`
}

// JobRecord is the terminal entity handed to the exporter: a Posting merged
// with its ContactInfo. Firm and Role are always non-empty.
type JobRecord struct {
	Firm    string `json:"firm"`
	Role    string `json:"role"`
	Phone   string `json:"phone,omitempty"`
	Website string `json:"website,omitempty"`
}

// Key returns the deduplication key for the record. Matching is exact and
// case-sensitive; the first record seen for a key wins.
func (r JobRecord) Key() RecordKey {
	return RecordKey{Firm: r.Firm, Role: r.Role}
}

// RecordKey identifies logically identical postings across sources.
type RecordKey struct {
	Firm string
	Role string
}

// PhonePattern matches common U.S. phone formats: (NNN) NNN-NNNN,
// NNN-NNN-NNNN, NNN.NNN.NNNN and NNN NNN NNNN, with the separators
// interchangeable across the two gaps.
var PhonePattern = regexp.MustCompile(`(?:\(\d{3}\)\s?|\b\d{3}[-.\s])\d{3}[-.\s]\d{4}\b`)

// QualifiesAsWebsite reports whether href is acceptable as a firm website:
// an absolute http(s) URL that is not a mail address link.
func QualifiesAsWebsite(href string) bool {
	if !strings.HasPrefix(href, "http://") && !strings.HasPrefix(href, "https://") {
		return false
	}
	if strings.Contains(href, "@") {
		return false
	}
	return !strings.HasPrefix(href, "mailto:")
}

// Page is the result of fetching a single URL.
type Page struct {
	URL        string
	FinalURL   string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}
