package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleSources = `
sources:
  - name: Eventbrite
    type: browser
    base_url: https://www.eventbrite.com.au
    pages:
      - /d/au--sydney/events/
    wait_for: .event-card
    profile: eventbrite
    page_delay: 2s
  - name: Sydney Events RSS
    type: feed
    base_url: https://www.eventbrite.com.au
    feed_url: https://www.eventbrite.com.au/d/au--sydney/events/rss/
  - name: Old Listings
    type: static
    base_url: https://example.com
    pages: [/events]
    profile: sydneytoday
    disabled: true
`

func TestParseSources(t *testing.T) {
	sources, err := ParseSources([]byte(sampleSources))
	require.NoError(t, err)
	require.Len(t, sources, 2)

	assert.Equal(t, "Eventbrite", sources[0].Name)
	assert.Equal(t, SourceTypeBrowser, sources[0].Type)
	assert.Equal(t, 2*time.Second, sources[0].PageDelay)
	assert.Equal(t, ".event-card", sources[0].WaitFor)
	assert.Equal(t, SourceTypeFeed, sources[1].Type)
}

func TestParseSourcesRejectsInvalidEntries(t *testing.T) {
	cases := map[string]string{
		"empty":        `sources: []`,
		"missing name": "sources:\n  - type: feed\n    base_url: https://a\n    feed_url: https://a/rss\n",
		"unknown type": "sources:\n  - name: A\n    type: api\n    base_url: https://a\n",
		"feed no url":  "sources:\n  - name: A\n    type: feed\n    base_url: https://a\n",
		"page no profile": "sources:\n  - name: A\n    type: static\n    base_url: https://a\n    pages: [/x]\n",
		"duplicate": "sources:\n  - name: A\n    type: feed\n    base_url: https://a\n    feed_url: https://a/rss\n" +
			"  - name: a\n    type: feed\n    base_url: https://a\n    feed_url: https://a/rss\n",
		"malformed": "sources: [",
	}

	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseSources([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadSourcesFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sources.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleSources), 0o600))

	sources, err := LoadSources(path)
	require.NoError(t, err)
	assert.Len(t, sources, 2)
}

func TestLoadUsesSourcesFile(t *testing.T) {
	clearConfigEnv(t)
	path := filepath.Join(t.TempDir(), "sources.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleSources), 0o600))
	t.Setenv("SOURCES_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Len(t, cfg.Sources, 2)
}

func TestDefaultSourcesAreValid(t *testing.T) {
	sources := DefaultSources()
	require.Len(t, sources, 4)

	names := make([]string, 0, len(sources))
	for _, s := range sources {
		require.NoError(t, s.Validate())
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"Eventbrite", "Sydney Today", "Time Out Sydney", "Sydney Events RSS"}, names)
}
