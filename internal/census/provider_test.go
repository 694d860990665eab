package census

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"firmscout/internal/scout"
)

// fakeFetcher returns canned bodies or errors keyed by URL substring.
type fakeFetcher struct {
	responses map[string]string
	failures  map[string]error
	requested []string
}

func (f *fakeFetcher) Fetch(_ context.Context, rawURL string) (scout.Page, error) {
	f.requested = append(f.requested, rawURL)
	for substr, err := range f.failures {
		if strings.Contains(rawURL, substr) {
			return scout.Page{}, err
		}
	}
	for substr, body := range f.responses {
		if strings.Contains(rawURL, substr) {
			return scout.Page{
				URL:        rawURL,
				StatusCode: http.StatusOK,
				Body:       []byte(body),
			}, nil
		}
	}
	return scout.Page{}, errors.New("status 404: not found")
}

func newProvider(f scout.PageFetcher) *Provider {
	return NewProvider(Config{
		BaseURL:       "https://api.census.gov/data",
		Vintages:      []int{2023, 2022, 2017},
		MaxPopulation: 50000,
	}, f, zap.NewNop())
}

const payload2017 = `[
  ["NAME","POP","state","place"],
  ["Bozeman city, Montana","48532","30","08950"],
  ["Billings city, Montana","109577","30","06550"],
  ["Asheville city, North Carolina","92870","37","02140"],
  ["Marfa city, Texas","1772","48","46620"],
  ["Yigo CDP, Guam","19339","66","80056"],
  ["Nowhere place","1000","00","00000"],
  ["Mystery city, Texas","n/a","48","00001"]
]`

func TestResolveFallsBackThroughVintages(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{
		responses: map[string]string{"/2017/": payload2017},
		failures: map[string]error{
			"/2023/": errors.New("status 404: not found"),
			"/2022/": errors.New("status 500: boom"),
		},
	}

	locs, err := newProvider(f).Resolve(context.Background())
	require.NoError(t, err)
	require.Len(t, f.requested, 3)

	// Billings and Asheville exceed the ceiling, Guam has no state code,
	// the malformed rows are skipped.
	require.Equal(t, []scout.Location{
		{City: "Bozeman", Region: "MT"},
		{City: "Marfa", Region: "TX"},
	}, locs)
}

func TestResolveUsesFirstWorkingVintage(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{
		responses: map[string]string{
			"/2023/": `[["NAME","POP"],["Marfa city, Texas","1772"]]`,
			"/2017/": payload2017,
		},
	}

	locs, err := newProvider(f).Resolve(context.Background())
	require.NoError(t, err)
	require.Len(t, f.requested, 1)
	require.Contains(t, f.requested[0], "/2023/")
	require.Equal(t, []scout.Location{{City: "Marfa", Region: "TX"}}, locs)
}

func TestResolveFailsWhenAllVintagesFail(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{
		failures: map[string]error{
			"/2023/": errors.New("timeout"),
			"/2022/": errors.New("timeout"),
			"/2017/": errors.New("timeout"),
		},
	}

	_, err := newProvider(f).Resolve(context.Background())
	require.ErrorIs(t, err, ErrNoPopulationData)
}

func TestResolveRejectsUnparseablePayload(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{
		responses: map[string]string{
			"/2023/": `<html>maintenance</html>`,
			"/2022/": `[["NAME","POP"],["Marfa city, Texas","1772"]]`,
		},
	}

	locs, err := newProvider(f).Resolve(context.Background())
	require.NoError(t, err)
	require.Equal(t, []scout.Location{{City: "Marfa", Region: "TX"}}, locs)
}

func TestResolveDecodesNumericPopulationCells(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{
		responses: map[string]string{
			"/2023/": `[["NAME","POP"],["Marfa city, Texas",1772]]`,
		},
	}

	locs, err := newProvider(f).Resolve(context.Background())
	require.NoError(t, err)
	require.Equal(t, []scout.Location{{City: "Marfa", Region: "TX"}}, locs)
}

func TestResolveIncludesAPIKeyWhenSet(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{
		responses: map[string]string{
			"/2023/": `[["NAME","POP"],["Marfa city, Texas","1772"]]`,
		},
	}
	p := NewProvider(Config{
		BaseURL:       "https://api.census.gov/data",
		Vintages:      []int{2023},
		MaxPopulation: 50000,
		APIKey:        "sekrit",
	}, f, zap.NewNop())

	_, err := p.Resolve(context.Background())
	require.NoError(t, err)
	require.Contains(t, f.requested[0], "key=sekrit")
}

func TestStaticProviderNeverFails(t *testing.T) {
	t.Parallel()

	want := []scout.Location{
		{City: "Fort Worth", Region: "TX"},
		{City: "Bozeman", Region: "MT"},
	}
	p := NewStaticProvider(want)

	got, err := p.Resolve(context.Background())
	require.NoError(t, err)
	require.Equal(t, want, got)

	// The provider hands out copies; callers cannot mutate its list.
	got[0].City = "Elsewhere"
	again, err := p.Resolve(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Fort Worth", again[0].City)
}

func TestSplitPlaceName(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in       string
		city     string
		state    string
		expectOK bool
	}{
		{"Bozeman city, Montana", "Bozeman", "Montana", true},
		{"Ellicott City CDP, Maryland", "Ellicott City", "Maryland", true},
		{"North Bend town, Washington", "North Bend", "Washington", true},
		{"Anchorage municipality, Alaska", "Anchorage", "Alaska", true},
		{"No comma here", "", "", false},
		{", Texas", "", "", false},
	}
	for _, tc := range cases {
		city, state, ok := splitPlaceName(tc.in)
		require.Equal(t, tc.expectOK, ok, "input %q", tc.in)
		require.Equal(t, tc.city, city, "input %q", tc.in)
		require.Equal(t, tc.state, state, "input %q", tc.in)
	}
}
