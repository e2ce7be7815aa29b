package ingestion

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/STRATINT/citypulse/internal/config"
)

func TestBuildAdapters_DefaultCatalog(t *testing.T) {
	env := newTestEnv(t)

	adapters, err := BuildAdapters(config.DefaultSources(), env.deps, FetchOptions{Timeout: 30 * time.Second})
	require.NoError(t, err)
	require.Len(t, adapters, 4)

	names := make([]string, len(adapters))
	for i, a := range adapters {
		names[i] = a.Name()
	}
	assert.Equal(t, []string{"Eventbrite", "Sydney Today", "Time Out Sydney", "Sydney Events RSS"}, names)

	eventbrite, ok := adapters[0].(*PageAdapter)
	require.True(t, ok)
	assert.IsType(t, &BrowserFetcher{}, eventbrite.fetcher)
	assert.Equal(t, "https://www.eventbrite.com.au/d/au--sydney/events/?page=2", eventbrite.Pages()[1])
	assert.Equal(t, 2*time.Second, eventbrite.pageDelay)

	sydneyToday, ok := adapters[1].(*PageAdapter)
	require.True(t, ok)
	require.IsType(t, &HTTPFetcher{}, sydneyToday.fetcher)
	assert.Zero(t, sydneyToday.fetcher.(*HTTPFetcher).Retry.MaxRetries, "one attempt per run by default")

	feed, ok := adapters[3].(*FeedAdapter)
	require.True(t, ok)
	assert.Equal(t, "https://www.eventbrite.com.au/d/au--sydney/events/rss/", feed.FeedURL())
}

func TestBuildAdapters_FetchRetries(t *testing.T) {
	env := newTestEnv(t)

	adapters, err := BuildAdapters(config.DefaultSources(), env.deps, FetchOptions{Retries: 2})
	require.NoError(t, err)

	static := adapters[1].(*PageAdapter).fetcher.(*HTTPFetcher)
	assert.Equal(t, 2, static.Retry.MaxRetries)
	feed := adapters[3].(*FeedAdapter)
	assert.Equal(t, 2, feed.fetcher.(*HTTPFetcher).Retry.MaxRetries)
}

func TestBuildAdapters_Errors(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		src  config.SourceConfig
	}{
		{"unknown profile", config.SourceConfig{Name: "X", Type: config.SourceTypeStatic, BaseURL: "https://x.example", Pages: []string{"/"}, Profile: "meetup"}},
		{"missing feed url", config.SourceConfig{Name: "Y", Type: config.SourceTypeFeed, BaseURL: "https://y.example"}},
		{"bad base url", config.SourceConfig{Name: "Z", Type: config.SourceTypeStatic, BaseURL: "::", Pages: []string{"/"}, Profile: "timeout"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildAdapters([]config.SourceConfig{tt.src}, env.deps, FetchOptions{})
			assert.Error(t, err)
		})
	}
}
