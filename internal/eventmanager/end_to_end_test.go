package eventmanager

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/STRATINT/citypulse/internal/database"
	"github.com/STRATINT/citypulse/internal/ingestion"
	"github.com/STRATINT/citypulse/internal/logging"
	"github.com/STRATINT/citypulse/internal/models"
)

const jazzFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>Sydney Events</title>
  <item>
    <title>Jazz Night</title>
    <link>https://x.test/e/42</link>
    <description>%s</description>
    <pubDate>2026-03-01T19:00:00Z</pubDate>
  </item>
</channel>
</rss>`

// feedServer serves a one-item RSS feed whose description can be changed
// between runs.
type feedServer struct {
	mu          sync.Mutex
	description string
}

func (s *feedServer) setDescription(d string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.description = d
}

func (s *feedServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	body := fmt.Sprintf(jazzFeed, s.description)
	s.mu.Unlock()
	w.Header().Set("Content-Type", "application/rss+xml")
	w.Write([]byte(body))
}

func TestFeedToImportLifecycle(t *testing.T) {
	ctx := context.Background()

	db, err := database.OpenSQLite(ctx, ":memory:")
	require.NoError(t, err)
	defer db.Close()
	repo := database.NewSQLiteEventRepository(db)

	feed := &feedServer{description: "Live quartet in the Rocks"}
	srv := httptest.NewServer(feed)
	defer srv.Close()

	loc, err := time.LoadLocation("Australia/Sydney")
	require.NoError(t, err)

	manager := NewLifecycleManager(repo, nil, nil, logging.Discard(), DefaultLifecycleConfig())
	fetcher := ingestion.NewHTTPFetcher(5*time.Second, logging.Discard())
	adapter := ingestion.NewFeedAdapter("Sydney Events RSS", srv.URL, srv.URL+"/feed.rss", fetcher, ingestion.AdapterDeps{
		Merger:     ingestion.NewMerger(repo, logging.Discard()),
		Marker:     manager,
		Normalizer: ingestion.Normalizer{City: "Sydney", Currency: "AUD", Location: loc},
		Logger:     logging.Discard(),
	})

	scrape := func() *models.StoredEvent {
		t.Helper()
		res := adapter.Scrape(ctx)
		require.True(t, res.Success, res.Error)
		require.Equal(t, 1, res.EventCount)
		ev, err := repo.FindByIdentity(ctx, "Sydney Events RSS", "https://x.test/e/42")
		require.NoError(t, err)
		require.NotNil(t, ev)
		return ev
	}

	first := scrape()
	assert.Equal(t, "Jazz Night", first.Title)
	assert.Equal(t, models.EventStatusNew, first.Status)
	require.NotNil(t, first.DateTime)
	assert.True(t, first.DateTime.Equal(time.Date(2026, 3, 1, 19, 0, 0, 0, time.UTC)), first.DateTime.String())

	unchanged := scrape()
	assert.Equal(t, models.EventStatusNew, unchanged.Status, "an identical re-ingest keeps the entry new")
	assert.Equal(t, first.ID, unchanged.ID)

	feed.setDescription("Live quartet in the Rocks, doors 6:30pm")
	updated := scrape()
	assert.Equal(t, models.EventStatusUpdated, updated.Status)
	assert.Equal(t, "Live quartet in the Rocks, doors 6:30pm", updated.Description)

	imported, err := manager.Import(ctx, updated.ID, "ops@example.com", "")
	require.NoError(t, err)
	assert.Equal(t, models.EventStatusImported, imported.Status)

	feed.setDescription("Sold out")
	after := scrape()
	assert.Equal(t, models.EventStatusImported, after.Status, "imported entries keep their status through content changes")
	assert.Equal(t, "Sold out", after.Description)
	assert.Equal(t, "ops@example.com", after.ImportedBy)
	require.NotNil(t, after.DateTime)
	assert.True(t, after.DateTime.Equal(time.Date(2026, 3, 1, 19, 0, 0, 0, time.UTC)))
}
