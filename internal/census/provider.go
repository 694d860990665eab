// Package census resolves the working set of locations to scan, either from
// a static list or from the Census population API with multi-vintage
// fallback.
package census

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"firmscout/internal/scout"
)

// ErrNoPopulationData indicates every candidate vintage failed. It is the
// only fatal error in the acquisition path: with zero locations the run
// would silently produce an empty result, so resolution aborts instead.
var ErrNoPopulationData = errors.New("no usable population data source")

// Config controls dynamic resolution.
type Config struct {
	BaseURL       string
	Vintages      []int
	MaxPopulation int
	APIKey        string
}

// Provider implements scout.LocationProvider against the population API.
type Provider struct {
	cfg     Config
	fetcher scout.PageFetcher
	logger  *zap.Logger
}

// NewProvider builds a dynamic Provider.
func NewProvider(cfg Config, fetcher scout.PageFetcher, logger *zap.Logger) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{cfg: cfg, fetcher: fetcher, logger: logger}
}

// Resolve queries the population endpoint for each configured vintage, most
// recent first, and keeps the first vintage that responds with a parseable
// payload. Places above the population ceiling, places whose count does not
// parse, and places in unmappable regions are skipped; only a total data
// outage is fatal.
func (p *Provider) Resolve(ctx context.Context) ([]scout.Location, error) {
	var rows [][]string
	for _, vintage := range p.cfg.Vintages {
		fetched, err := p.fetchVintage(ctx, vintage)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			p.logger.Warn("population vintage failed",
				zap.Int("vintage", vintage),
				zap.Error(err),
			)
			continue
		}
		rows = fetched
		break
	}
	if rows == nil {
		return nil, ErrNoPopulationData
	}

	var locations []scout.Location
	for i, row := range rows {
		if i == 0 {
			// Header row: NAME, POP, ...
			continue
		}
		if len(row) < 2 {
			continue
		}
		pop, err := strconv.Atoi(strings.TrimSpace(row[1]))
		if err != nil {
			continue
		}
		if pop > p.cfg.MaxPopulation {
			continue
		}
		city, state, ok := splitPlaceName(row[0])
		if !ok {
			continue
		}
		code, ok := StateCode(state)
		if !ok {
			continue
		}
		locations = append(locations, scout.Location{City: city, Region: code})
	}
	p.logger.Info("resolved locations from population data",
		zap.Int("places", len(rows)-1),
		zap.Int("kept", len(locations)),
	)
	return locations, nil
}

func (p *Provider) fetchVintage(ctx context.Context, vintage int) ([][]string, error) {
	endpoint, err := p.vintageURL(vintage)
	if err != nil {
		return nil, err
	}
	page, err := p.fetcher.Fetch(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	// The API returns a JSON array of rows; cells are usually strings but
	// counts occasionally come back as bare numbers.
	var raw [][]json.RawMessage
	if err := json.Unmarshal(page.Body, &raw); err != nil {
		return nil, fmt.Errorf("parse population payload: %w", err)
	}
	if len(raw) < 2 {
		return nil, fmt.Errorf("population payload has no data rows")
	}
	rows := make([][]string, len(raw))
	for i, cells := range raw {
		row := make([]string, len(cells))
		for j, cell := range cells {
			row[j] = decodeCell(cell)
		}
		rows[i] = row
	}
	return rows, nil
}

func (p *Provider) vintageURL(vintage int) (string, error) {
	u, err := url.Parse(fmt.Sprintf("%s/%d/pep/population", strings.TrimRight(p.cfg.BaseURL, "/"), vintage))
	if err != nil {
		return "", fmt.Errorf("build vintage url: %w", err)
	}
	q := u.Query()
	q.Set("get", "NAME,POP")
	q.Set("for", "place:*")
	if p.cfg.APIKey != "" {
		q.Set("key", p.cfg.APIKey)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func decodeCell(cell json.RawMessage) string {
	var s string
	if err := json.Unmarshal(cell, &s); err == nil {
		return s
	}
	var n float64
	if err := json.Unmarshal(cell, &n); err == nil {
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	return ""
}

// splitPlaceName breaks "Ellicott City CDP, Maryland" into its city and
// state-name parts, trimming the census place-type suffixes the jobs sites
// do not understand.
func splitPlaceName(name string) (city, state string, ok bool) {
	city, state, found := strings.Cut(name, ",")
	if !found {
		return "", "", false
	}
	city = trimPlaceType(strings.TrimSpace(city))
	state = strings.TrimSpace(state)
	if city == "" || state == "" {
		return "", "", false
	}
	return city, state, true
}

var placeTypeSuffixes = []string{
	" city", " town", " village", " borough", " CDP", " municipality",
}

func trimPlaceType(city string) string {
	for _, suffix := range placeTypeSuffixes {
		if strings.HasSuffix(city, suffix) {
			return strings.TrimSpace(strings.TrimSuffix(city, suffix))
		}
	}
	return city
}

// StaticProvider implements scout.LocationProvider over a fixed list. It
// never fails.
type StaticProvider struct {
	locations []scout.Location
}

// NewStaticProvider copies the configured list.
func NewStaticProvider(locations []scout.Location) *StaticProvider {
	return &StaticProvider{locations: append([]scout.Location(nil), locations...)}
}

// Resolve returns the configured locations.
func (p *StaticProvider) Resolve(context.Context) ([]scout.Location, error) {
	return append([]scout.Location(nil), p.locations...), nil
}
