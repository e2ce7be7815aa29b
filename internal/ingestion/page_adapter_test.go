package ingestion

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/STRATINT/citypulse/internal/models"
)

const (
	listingBase = "https://www.eventbrite.com.au"
	listingPage = "https://www.eventbrite.com.au/d/au--sydney/events/"
	jazzURL     = "https://www.eventbrite.com.au/e/jazz-night-tickets-1001"
	marketURL   = "https://www.eventbrite.com.au/e/market-1002"
)

func listingCard(href, title, date string) string {
	return fmt.Sprintf(`<div class="event-card">
  <a href="%s"></a>
  <h3 data-testid="event-card-title">%s</h3>
  <p data-testid="event-card-date">%s</p>
  <p data-testid="event-card-venue">The Basement · 7 Macquarie Pl · Sydney</p>
  <p data-testid="event-card-price">From $25.00</p>
</div>`, href, title, date)
}

func listing(cards ...string) string {
	body := "<html><body>"
	for _, c := range cards {
		body += c
	}
	return body + "</body></html>"
}

func newEventbriteAdapter(t *testing.T, env *testEnv, fetcher Fetcher, pages ...string) *PageAdapter {
	t.Helper()
	profile, err := LookupProfile("eventbrite")
	require.NoError(t, err)
	a, err := NewPageAdapter("Eventbrite", listingBase, pages, fetcher, profile, 0, env.deps)
	require.NoError(t, err)
	return a
}

func TestPageAdapter_JazzNightEndToEnd(t *testing.T) {
	env := newTestEnv(t)
	fetcher := &stubFetcher{bodies: map[string]string{listingPage: eventbriteListing}}
	a := newEventbriteAdapter(t, env, fetcher, "/d/au--sydney/events/")

	res := a.Scrape(context.Background())
	require.True(t, res.Success, res.Error)
	assert.Equal(t, 2, res.EventCount)
	assert.Equal(t, []string{listingPage}, fetcher.calls)

	jazz, err := env.repo.FindByIdentity(context.Background(), "Eventbrite", jazzURL)
	require.NoError(t, err)
	require.NotNil(t, jazz)

	assert.Equal(t, "Jazz Night", jazz.Title)
	assert.Equal(t, models.EventStatusNew, jazz.Status)
	assert.Equal(t, "Sydney", jazz.City)
	assert.Equal(t, "The Basement", jazz.Venue.Name)
	assert.Equal(t, "7 Macquarie Pl, Sydney", jazz.Venue.Address)
	require.NotNil(t, jazz.Price)
	assert.Equal(t, 25.0, *jazz.Price.Min)
	assert.Equal(t, 25.0, *jazz.Price.Max)
	assert.Equal(t, "AUD", jazz.Price.Currency)
	assert.False(t, jazz.Price.IsFree)
	require.NotNil(t, jazz.DateTime)
	sydney := env.deps.Normalizer.Location
	assert.True(t, jazz.DateTime.Equal(time.Date(2026, 3, 15, 19, 0, 0, 0, sydney)))
	assert.Equal(t, listingPage, jazz.Source.URL)
	assert.Equal(t, jazzURL, jazz.Source.EventURL)

	// Unchanged second run leaves the entry new.
	env.clock.Advance(time.Hour)
	res = a.Scrape(context.Background())
	require.True(t, res.Success)
	jazz, _ = env.repo.FindByIdentity(context.Background(), "Eventbrite", jazzURL)
	assert.Equal(t, models.EventStatusNew, jazz.Status)
	assert.True(t, jazz.LastScrapedAt.Equal(env.clock.t))
	assert.Equal(t, 2, env.repo.Len())
}

func TestPageAdapter_InactivatesUnobserved(t *testing.T) {
	env := newTestEnv(t)
	fetcher := &stubFetcher{bodies: map[string]string{
		listingPage: listing(
			listingCard("/e/jazz-night-tickets-1001", "Jazz Night", "Sun, Mar 15, 2026 7:00 PM"),
			listingCard("/e/market-1002", "Night Market", "Fri, Apr 3, 2026 5:00 PM"),
		),
	}}
	a := newEventbriteAdapter(t, env, fetcher, listingPage)

	require.True(t, a.Scrape(context.Background()).Success)

	env.clock.Advance(time.Hour)
	fetcher.bodies[listingPage] = listing(
		listingCard("/e/jazz-night-tickets-1001", "Jazz Night", "Sun, Mar 15, 2026 7:00 PM"),
	)
	res := a.Scrape(context.Background())
	require.True(t, res.Success)
	assert.Equal(t, 1, res.EventCount)

	market, _ := env.repo.FindByIdentity(context.Background(), "Eventbrite", marketURL)
	require.NotNil(t, market)
	assert.Equal(t, models.EventStatusInactive, market.Status)

	jazz, _ := env.repo.FindByIdentity(context.Background(), "Eventbrite", jazzURL)
	assert.Equal(t, models.EventStatusNew, jazz.Status)
}

func TestPageAdapter_OtherSourcesUntouched(t *testing.T) {
	env := newTestEnv(t)
	other := &stubFetcher{bodies: map[string]string{
		"https://www.sydneytoday.com/events": `<article><h2>Harbour Lights</h2><a href="/events/lights">x</a></article>`,
	}}
	profile, err := LookupProfile("sydneytoday")
	require.NoError(t, err)
	sydneyToday, err := NewPageAdapter("Sydney Today", "https://www.sydneytoday.com", []string{"/events"}, other, profile, 0, env.deps)
	require.NoError(t, err)
	require.True(t, sydneyToday.Scrape(context.Background()).Success)

	fetcher := &stubFetcher{bodies: map[string]string{listingPage: eventbriteListing}}
	require.True(t, newEventbriteAdapter(t, env, fetcher, listingPage).Scrape(context.Background()).Success)

	lights, _ := env.repo.FindByIdentity(context.Background(), "Sydney Today", "https://www.sydneytoday.com/events/lights")
	require.NotNil(t, lights)
	assert.Equal(t, models.EventStatusNew, lights.Status)
}

func TestPageAdapter_PartialFailureSkipsInactivation(t *testing.T) {
	env := newTestEnv(t)
	page2 := listingPage + "?page=2"
	fetcher := &stubFetcher{bodies: map[string]string{
		listingPage: listing(listingCard("/e/jazz-night-tickets-1001", "Jazz Night", "Sun, Mar 15, 2026 7:00 PM")),
		page2:       listing(listingCard("/e/market-1002", "Night Market", "Fri, Apr 3, 2026 5:00 PM")),
	}}
	a := newEventbriteAdapter(t, env, fetcher, listingPage, page2)
	require.True(t, a.Scrape(context.Background()).Success)
	require.Equal(t, 1, env.marker.calls)

	fetcher.errs = map[string]error{
		page2: &FetchError{URL: page2, Kind: FetchBlocked, StatusCode: 429, Err: errors.New("Too Many Requests")},
	}
	res := a.Scrape(context.Background())
	assert.True(t, res.Success, "one surviving page keeps the run successful")
	assert.Equal(t, 1, res.EventCount)
	assert.Equal(t, 1, env.marker.calls, "inactivation skipped after a page failure")

	market, _ := env.repo.FindByIdentity(context.Background(), "Eventbrite", marketURL)
	assert.Equal(t, models.EventStatusNew, market.Status)

	require.Len(t, env.errors.stored, 1)
	assert.Equal(t, string(models.ErrorTypeFetchBlocked), env.errors.stored[0].ErrorType)
	assert.Equal(t, page2, env.errors.stored[0].URL)
}

func TestPageAdapter_AllPagesFailed(t *testing.T) {
	env := newTestEnv(t)
	fetcher := &stubFetcher{}
	a := newEventbriteAdapter(t, env, fetcher, listingPage, listingPage+"?page=2")

	res := a.Scrape(context.Background())
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "all 2 pages failed")
	assert.Zero(t, res.EventCount)
	assert.Zero(t, env.marker.calls)
	assert.Len(t, env.errors.stored, 2)
}

func TestPageAdapter_EmptyListingSkipsInactivation(t *testing.T) {
	env := newTestEnv(t)
	fetcher := &stubFetcher{bodies: map[string]string{listingPage: eventbriteListing}}
	a := newEventbriteAdapter(t, env, fetcher, listingPage)
	require.True(t, a.Scrape(context.Background()).Success)

	fetcher.bodies[listingPage] = "<html><body><p>Something went wrong</p></body></html>"
	res := a.Scrape(context.Background())
	assert.True(t, res.Success)
	assert.Zero(t, res.EventCount)

	jazz, _ := env.repo.FindByIdentity(context.Background(), "Eventbrite", jazzURL)
	assert.Equal(t, models.EventStatusNew, jazz.Status)
}

type panickingFetcher struct{}

func (panickingFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	panic("selector engine exploded")
}

func TestPageAdapter_PanicIsContained(t *testing.T) {
	env := newTestEnv(t)
	a := newEventbriteAdapter(t, env, panickingFetcher{}, listingPage)

	var res models.ScrapeResult
	require.NotPanics(t, func() { res = a.Scrape(context.Background()) })
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "selector engine exploded")

	require.Len(t, env.errors.stored, 1)
	assert.Equal(t, string(models.ErrorTypeAdapterPanic), env.errors.stored[0].ErrorType)
}

func TestPageAdapter_CancelDuringPageDelay(t *testing.T) {
	env := newTestEnv(t)
	fetcher := &stubFetcher{bodies: map[string]string{listingPage: eventbriteListing}}
	profile, _ := LookupProfile("eventbrite")
	a, err := NewPageAdapter("Eventbrite", listingBase, []string{listingPage, listingPage + "?page=2"}, fetcher, profile, time.Hour, env.deps)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	res := a.Scrape(ctx)
	assert.False(t, res.Success)
	assert.Len(t, fetcher.calls, 1)
	assert.Zero(t, env.marker.calls)
}

func TestNewPageAdapter_Validation(t *testing.T) {
	env := newTestEnv(t)
	profile, _ := LookupProfile("eventbrite")

	_, err := NewPageAdapter("Bad", "not a url", []string{"/x"}, &stubFetcher{}, profile, 0, env.deps)
	assert.Error(t, err)

	_, err = NewPageAdapter("Empty", listingBase, nil, &stubFetcher{}, profile, 0, env.deps)
	assert.Error(t, err)

	a, err := NewPageAdapter("Eventbrite", listingBase, []string{"/d/au--sydney/events/", "https://other.example/list"}, &stubFetcher{}, profile, 0, env.deps)
	require.NoError(t, err)
	assert.Equal(t, []string{listingPage, "https://other.example/list"}, a.Pages())
	assert.Equal(t, "Eventbrite", a.Name())
	assert.Equal(t, listingBase, a.BaseURL())
}
