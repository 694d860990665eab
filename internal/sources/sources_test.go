package sources

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"firmscout/internal/scout"
)

type fakeFetcher struct {
	requested []string
	pages     map[string]string
	err       error
}

func (f *fakeFetcher) Fetch(_ context.Context, rawURL string) (scout.Page, error) {
	f.requested = append(f.requested, rawURL)
	if f.err != nil {
		return scout.Page{}, f.err
	}
	body, ok := f.pages[rawURL]
	if !ok {
		return scout.Page{}, errors.New("status 404")
	}
	return scout.Page{URL: rawURL, FinalURL: rawURL, StatusCode: 200, Body: []byte(body)}, nil
}

const archinectPage = `<html><body>
<div class="job-listing">
  <a href="/jobs/view/123"><div class="job-listing-title"> Olson Kundig </div></a>
  <div class="job-position">Project Architect</div>
</div>
<div class="job-listing">
  <a href="https://archinect.com/jobs/view/456"><div class="job-listing-title">LMN Architects</div></a>
  <div class="job-position">Designer II</div>
</div>
<div class="job-listing">
  <a href="/jobs/view/789"><div class="job-listing-title"></div></a>
  <div class="job-position">Nameless Firm Role</div>
</div>
<div class="job-listing">
  <div class="job-listing-title">No Link Studio</div>
  <div class="job-position">Intern</div>
</div>
</body></html>`

func TestArchinectExtractsPostings(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{pages: map[string]string{
		"https://archinect.test/jobs/WA/Walla-Walla": archinectPage,
	}}
	src := NewArchinectWithOrigin("https://archinect.test", fetcher, nil)

	postings, err := src.FetchListings(context.Background(), scout.Location{City: "Walla Walla", Region: "WA"})
	require.NoError(t, err)
	require.Equal(t, []scout.Posting{
		{Firm: "Olson Kundig", Role: "Project Architect", DetailURL: "https://archinect.test/jobs/view/123"},
		{Firm: "LMN Architects", Role: "Designer II", DetailURL: "https://archinect.com/jobs/view/456"},
	}, postings)
	require.Equal(t, []string{"https://archinect.test/jobs/WA/Walla-Walla"}, fetcher.requested)
}

func TestArchinectFetchFailure(t *testing.T) {
	t.Parallel()

	sentinel := errors.New("connection refused")
	src := NewArchinectWithOrigin("https://archinect.test", &fakeFetcher{err: sentinel}, nil)

	_, err := src.FetchListings(context.Background(), scout.Location{City: "Boise", Region: "ID"})
	require.ErrorIs(t, err, sentinel)
}

const aiaPage = `<html><body>
<article class="job-listing">
  <a href="https://careercenter.test/job/42">
    <span class="job-listing__info--name">Perkins Eastman</span>
    <span class="job-listing__info--title">Architect I</span>
  </a>
</article>
<article class="job-listing">
  <a href="https://careercenter.test/job/43">
    <span class="job-listing__info--name">Solo Shop</span>
    <span class="job-listing__info--title"></span>
  </a>
</article>
</body></html>`

func TestAIAExtractsPostings(t *testing.T) {
	t.Parallel()

	wantURL := "https://careercenter.test/jobs/?keywords=&location=Ann+Arbor%2C+MI"
	fetcher := &fakeFetcher{pages: map[string]string{wantURL: aiaPage}}
	src := NewAIAWithEndpoint("https://careercenter.test/jobs/", fetcher, nil)

	postings, err := src.FetchListings(context.Background(), scout.Location{City: "Ann Arbor", Region: "MI"})
	require.NoError(t, err)
	require.Equal(t, []scout.Posting{
		{Firm: "Perkins Eastman", Role: "Architect I", DetailURL: "https://careercenter.test/job/42"},
	}, postings)
	require.Equal(t, []string{wantURL}, fetcher.requested)
}

func TestAIAFetchFailure(t *testing.T) {
	t.Parallel()

	sentinel := errors.New("status 503")
	src := NewAIAWithEndpoint("https://careercenter.test/jobs/", &fakeFetcher{err: sentinel}, nil)

	_, err := src.FetchListings(context.Background(), scout.Location{City: "Reno", Region: "NV"})
	require.ErrorIs(t, err, sentinel)
}

func TestRegistryKeepsOrderAndReplacesInPlace(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	archinect := NewArchinect(&fakeFetcher{}, nil)
	aia := NewAIA(&fakeFetcher{}, nil)
	reg.Register(archinect)
	reg.Register(aia)
	require.Equal(t, []string{"archinect", "aia"}, reg.Names())

	replacement := NewArchinectWithOrigin("https://mirror.test", &fakeFetcher{}, nil)
	reg.Register(replacement)
	require.Equal(t, []string{"archinect", "aia"}, reg.Names())
	require.Same(t, replacement, reg.All()[0].(*Archinect))
}

func TestHyphenate(t *testing.T) {
	t.Parallel()

	require.Equal(t, "New-York", hyphenate("New York"))
	require.Equal(t, "Boise", hyphenate("Boise"))
}
