// Package sources implements one scout.ListingSource per external listing
// site, plus the registry the pipeline iterates.
package sources

import (
	"strings"

	"firmscout/internal/scout"
)

// Registry holds listing sources in registration order so every run
// iterates them deterministically.
type Registry struct {
	sources []scout.ListingSource
	byName  map[string]scout.ListingSource
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]scout.ListingSource)}
}

// Register adds a source. Re-registering a name replaces the earlier entry
// but keeps its position.
func (r *Registry) Register(s scout.ListingSource) {
	name := s.Name()
	if _, ok := r.byName[name]; !ok {
		r.sources = append(r.sources, s)
	} else {
		for i, existing := range r.sources {
			if existing.Name() == name {
				r.sources[i] = s
				break
			}
		}
	}
	r.byName[name] = s
}

// All returns the sources in registration order.
func (r *Registry) All() []scout.ListingSource {
	return append([]scout.ListingSource(nil), r.sources...)
}

// Names returns the registered source names in order.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.sources))
	for _, s := range r.sources {
		out = append(out, s.Name())
	}
	return out
}

// hyphenate converts a city name into the path form listing sites expect.
func hyphenate(city string) string {
	return strings.ReplaceAll(city, " ", "-")
}
