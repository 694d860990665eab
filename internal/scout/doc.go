// Package scout defines the data model and capability interfaces for the
// architecture-firm job discovery pipeline: locations, postings, contact
// details, the terminal JobRecord, and the fetcher/source/resolver/exporter
// contracts implemented elsewhere.
package scout
