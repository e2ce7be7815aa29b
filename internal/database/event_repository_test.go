package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/STRATINT/citypulse/internal/models"
)

func TestDialectRebind(t *testing.T) {
	query := "SELECT * FROM events WHERE a = ? AND b IN (?, ?)"

	assert.Equal(t, query, sqliteDialect.rebind(query))
	assert.Equal(t, "SELECT * FROM events WHERE a = $1 AND b IN ($2, $3)", postgresDialect.rebind(query))
	assert.Equal(t, "?, ?, ?", placeholders(3))
	assert.Equal(t, "", placeholders(0))
}

func TestEventRepository_InsertAndFind(t *testing.T) {
	repo := NewSQLiteEventRepository(openTestDB(t))
	ctx := context.Background()
	now := fixedTime("2026-03-01T09:00:00Z")
	start := fixedTime("2026-03-15T08:00:00Z")
	min, max := 25.0, 60.0

	event := newStoredEvent("Eventbrite", "https://x/e/1", "Jazz Night", &start, models.EventStatusNew, now)
	event.Description = "Live jazz"
	event.Venue = models.Venue{Name: "The Basement", Address: "7 Macquarie Pl", City: "Sydney",
		Coordinates: &models.Coordinates{Lat: -33.86, Lng: 151.21}}
	event.Categories = []string{"music"}
	event.Price = &models.Price{Min: &min, Max: &max, Currency: "AUD"}
	event.OriginalData = map[string]any{"dateText": "Mar 15, 2026 7:00 PM"}

	require.NoError(t, repo.Insert(ctx, event))
	require.NotEmpty(t, event.ID)

	got, err := repo.FindByIdentity(ctx, "Eventbrite", "https://x/e/1")
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, event.ID, got.ID)
	assert.Equal(t, "Jazz Night", got.Title)
	assert.Equal(t, "Live jazz", got.Description)
	require.NotNil(t, got.DateTime)
	assert.True(t, start.Equal(*got.DateTime))
	assert.Nil(t, got.EndDate)
	assert.Equal(t, "The Basement", got.Venue.Name)
	require.NotNil(t, got.Venue.Coordinates)
	assert.InDelta(t, -33.86, got.Venue.Coordinates.Lat, 1e-9)
	assert.Equal(t, []string{"music"}, got.Categories)
	assert.True(t, event.Price.Equal(got.Price))
	assert.Equal(t, "Mar 15, 2026 7:00 PM", got.OriginalData["dateText"])
	assert.Equal(t, models.EventStatusNew, got.Status)
	assert.True(t, now.Equal(got.FirstSeenAt))

	byID, err := repo.GetByID(ctx, event.ID)
	require.NoError(t, err)
	require.NotNil(t, byID)
	assert.Equal(t, got.Source, byID.Source)

	missing, err := repo.FindByIdentity(ctx, "Eventbrite", "https://x/e/404")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestEventRepository_InsertDuplicateIdentity(t *testing.T) {
	repo := NewSQLiteEventRepository(openTestDB(t))
	ctx := context.Background()
	now := fixedTime("2026-03-01T09:00:00Z")

	require.NoError(t, repo.Insert(ctx, newStoredEvent("Eventbrite", "https://x/e/1", "A", nil, models.EventStatusNew, now)))

	err := repo.Insert(ctx, newStoredEvent("Eventbrite", "https://x/e/1", "B", nil, models.EventStatusNew, now))
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrDuplicateIdentity))

	// Same URL under a different source is a different identity.
	require.NoError(t, repo.Insert(ctx, newStoredEvent("Sydney Events RSS", "https://x/e/1", "A", nil, models.EventStatusNew, now)))
}

func TestEventRepository_UpdateAndTouch(t *testing.T) {
	repo := NewSQLiteEventRepository(openTestDB(t))
	ctx := context.Background()
	now := fixedTime("2026-03-01T09:00:00Z")

	event := newStoredEvent("Eventbrite", "https://x/e/1", "Jazz Night", nil, models.EventStatusNew, now)
	require.NoError(t, repo.Insert(ctx, event))

	later := now.Add(time.Hour)
	updated := *event
	updated.Title = "Jazz Night (Late Show)"
	updated.Status = models.EventStatusUpdated
	updated.LastScrapedAt = later
	updated.LastUpdatedAt = later
	require.NoError(t, repo.Update(ctx, updated))

	got, err := repo.GetByID(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, "Jazz Night (Late Show)", got.Title)
	assert.Equal(t, models.EventStatusUpdated, got.Status)
	assert.True(t, later.Equal(got.LastUpdatedAt))
	assert.True(t, now.Equal(got.FirstSeenAt))

	touched := later.Add(time.Hour)
	require.NoError(t, repo.TouchScraped(ctx, event.ID, touched))
	got, err = repo.GetByID(ctx, event.ID)
	require.NoError(t, err)
	assert.True(t, touched.Equal(got.LastScrapedAt))
	assert.True(t, later.Equal(got.LastUpdatedAt))

	missing := updated
	missing.ID = "does-not-exist"
	assert.True(t, errors.Is(repo.Update(ctx, missing), models.ErrEventNotFound))
	assert.True(t, errors.Is(repo.TouchScraped(ctx, "does-not-exist", touched), models.ErrEventNotFound))
}

func TestEventRepository_MarkUnobserved(t *testing.T) {
	repo := NewSQLiteEventRepository(openTestDB(t))
	ctx := context.Background()
	seen := fixedTime("2026-03-01T09:00:00Z")
	now := seen.Add(time.Hour)

	keep := newStoredEvent("Eventbrite", "https://x/e/1", "Still listed", nil, models.EventStatusNew, seen)
	gone := newStoredEvent("Eventbrite", "https://x/e/2", "Delisted", nil, models.EventStatusUpdated, seen)
	imported := newStoredEvent("Eventbrite", "https://x/e/3", "Curated", nil, models.EventStatusImported, seen)
	other := newStoredEvent("Time Out Sydney", "https://t/1", "Other source", nil, models.EventStatusNew, seen)
	for _, e := range []*models.StoredEvent{keep, gone, imported, other} {
		require.NoError(t, repo.Insert(ctx, e))
	}

	n, err := repo.MarkUnobserved(ctx, "Eventbrite", []string{"https://x/e/1"}, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	assertStatus(t, repo, keep.ID, models.EventStatusNew)
	assertStatus(t, repo, gone.ID, models.EventStatusInactive)
	assertStatus(t, repo, imported.ID, models.EventStatusImported)
	assertStatus(t, repo, other.ID, models.EventStatusNew)

	got, err := repo.GetByID(ctx, gone.ID)
	require.NoError(t, err)
	assert.True(t, now.Equal(got.LastUpdatedAt))

	// Already inactive entries are not touched again.
	n, err = repo.MarkUnobserved(ctx, "Eventbrite", []string{"https://x/e/1"}, now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestEventRepository_SweepsAndCleanup(t *testing.T) {
	repo := NewSQLiteEventRepository(openTestDB(t))
	ctx := context.Background()
	now := fixedTime("2026-03-20T00:00:00Z")

	yesterday := now.Add(-24 * time.Hour)
	nextWeek := now.Add(7 * 24 * time.Hour)

	past := newStoredEvent("S", "u/past", "Past", &yesterday, models.EventStatusNew, now.Add(-48*time.Hour))
	pastImported := newStoredEvent("S", "u/imp", "Past imported", &yesterday, models.EventStatusImported, now.Add(-48*time.Hour))
	future := newStoredEvent("S", "u/future", "Future", &nextWeek, models.EventStatusNew, now)
	stale := newStoredEvent("S", "u/stale", "Stale", &nextWeek, models.EventStatusNew, now.Add(-8*24*time.Hour))
	oldInactive := newStoredEvent("S", "u/old", "Old", nil, models.EventStatusInactive, now.Add(-31*24*time.Hour))
	recentInactive := newStoredEvent("S", "u/recent", "Recent", nil, models.EventStatusInactive, now.Add(-29*24*time.Hour))
	for _, e := range []*models.StoredEvent{past, pastImported, future, stale, oldInactive, recentInactive} {
		require.NoError(t, repo.Insert(ctx, e))
	}

	n, err := repo.MarkPast(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assertStatus(t, repo, past.ID, models.EventStatusInactive)
	assertStatus(t, repo, pastImported.ID, models.EventStatusImported)

	got, err := repo.GetByID(ctx, past.ID)
	require.NoError(t, err)
	assert.True(t, yesterday.Equal(*got.DateTime), "start time must be preserved")

	n, err = repo.PromoteStale(ctx, now.Add(-7*24*time.Hour), now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assertStatus(t, repo, stale.ID, models.EventStatusUpdated)
	assertStatus(t, repo, future.ID, models.EventStatusNew)

	n, err = repo.DeleteInactiveBefore(ctx, now.Add(-30*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	gone, err := repo.GetByID(ctx, oldInactive.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
	assertStatus(t, repo, recentInactive.ID, models.EventStatusInactive)
}

func TestEventRepository_ListAndCount(t *testing.T) {
	repo := NewSQLiteEventRepository(openTestDB(t))
	ctx := context.Background()
	now := fixedTime("2026-03-01T00:00:00Z")

	d1 := now.Add(48 * time.Hour)
	d2 := now.Add(24 * time.Hour)
	d0 := now.Add(-24 * time.Hour)

	a := newStoredEvent("Eventbrite", "u/a", "A", &d1, models.EventStatusNew, now)
	b := newStoredEvent("Eventbrite", "u/b", "B", &d2, models.EventStatusNew, now)
	c := newStoredEvent("Time Out Sydney", "u/c", "C", nil, models.EventStatusNew, now)
	d := newStoredEvent("Time Out Sydney", "u/d", "D", &d0, models.EventStatusInactive, now)
	for _, e := range []*models.StoredEvent{a, b, c, d} {
		require.NoError(t, repo.Insert(ctx, e))
	}

	all, err := repo.List(ctx, models.EventQuery{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, []string{"D", "B", "A", "C"}, titles(all), "dated ascending, undated last")

	upcoming, err := repo.List(ctx, models.EventQuery{UpcomingFrom: &now})
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "A"}, titles(upcoming))

	active := models.EventStatusNew
	count, err := repo.Count(ctx, models.EventQuery{Status: &active, SourceName: "Time Out Sydney"})
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	page, err := repo.List(ctx, models.EventQuery{Limit: 2, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "A"}, titles(page))
}

func assertStatus(t *testing.T, repo *EventRepository, id string, want models.EventStatus) {
	t.Helper()
	got, err := repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want, got.Status)
}

func titles(events []models.StoredEvent) []string {
	out := make([]string, 0, len(events))
	for _, e := range events {
		out = append(out, e.Title)
	}
	return out
}
