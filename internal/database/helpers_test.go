package database

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/STRATINT/citypulse/internal/models"
)

// openTestDB returns a migrated in-memory SQLite database.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := OpenSQLite(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func fixedTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t.UTC()
}

func newStoredEvent(source, url, title string, start *time.Time, status models.EventStatus, seen time.Time) *models.StoredEvent {
	return &models.StoredEvent{
		NormalizedEvent: models.NormalizedEvent{
			Title:        title,
			DateTime:     start,
			City:         "Sydney",
			Availability: models.AvailabilityUnknown,
			Categories:   []string{},
			Tags:         []string{},
			ImageURLs:    []string{},
			Source: models.SourceIdentity{
				Name:     source,
				URL:      "https://example.com",
				EventURL: url,
			},
			ScrapedFromSourceAt: seen,
		},
		Status:        status,
		FirstSeenAt:   seen,
		LastScrapedAt: seen,
		LastUpdatedAt: seen,
	}
}
