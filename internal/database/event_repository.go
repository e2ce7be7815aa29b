package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/STRATINT/citypulse/internal/models"
)

// EventRepository is the SQL-backed event catalog. The same queries run on
// PostgreSQL and SQLite; the dialect handles placeholders.
type EventRepository struct {
	db *sql.DB
	d  dialect
}

// NewPostgresEventRepository creates a catalog on a PostgreSQL connection.
func NewPostgresEventRepository(db *sql.DB) *EventRepository {
	return &EventRepository{db: db, d: postgresDialect}
}

// NewSQLiteEventRepository creates a catalog on a migrated SQLite connection.
func NewSQLiteEventRepository(db *sql.DB) *EventRepository {
	return &EventRepository{db: db, d: sqliteDialect}
}

const eventColumns = `id, title, description, date_time, end_date, city,
	venue_name, venue_address, venue_city, venue_lat, venue_lng,
	categories, tags, image_url, image_urls, price, availability,
	organizer, age_restriction, source_name, source_url, source_event_url,
	scraped_from_source_at, original_data, status, imported_at, imported_by,
	import_notes, first_seen_at, last_scraped_at, last_updated_at`

// Ping verifies the catalog is reachable.
func (r *EventRepository) Ping(ctx context.Context) error {
	return HealthCheck(ctx, r.db)
}

// Insert stores a new catalog entry. A collision on (source name, event URL)
// returns models.ErrDuplicateIdentity.
func (r *EventRepository) Insert(ctx context.Context, event *models.StoredEvent) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}

	enc, err := encodeEvent(event)
	if err != nil {
		return err
	}

	query := `INSERT INTO events (` + eventColumns + `) VALUES (` + placeholders(31) + `)`
	_, err = r.db.ExecContext(ctx, r.d.rebind(query),
		event.ID, event.Title, event.Description, nullTime(event.DateTime), nullTime(event.EndDate), event.City,
		event.Venue.Name, event.Venue.Address, event.Venue.City, enc.lat, enc.lng,
		enc.categories, enc.tags, event.ImageURL, enc.imageURLs, enc.price, string(event.Availability),
		event.Organizer, event.AgeRestriction, event.Source.Name, event.Source.URL, event.Source.EventURL,
		event.ScrapedFromSourceAt.UTC(), enc.originalData, string(event.Status), nullTime(event.ImportedAt), event.ImportedBy,
		event.ImportNotes, event.FirstSeenAt.UTC(), event.LastScrapedAt.UTC(), event.LastUpdatedAt.UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s %s", models.ErrDuplicateIdentity, event.Source.Name, event.Source.EventURL)
		}
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

// Update overwrites every mutable column of an existing entry.
func (r *EventRepository) Update(ctx context.Context, event models.StoredEvent) error {
	enc, err := encodeEvent(&event)
	if err != nil {
		return err
	}

	query := `
		UPDATE events SET
			title = ?, description = ?, date_time = ?, end_date = ?, city = ?,
			venue_name = ?, venue_address = ?, venue_city = ?, venue_lat = ?, venue_lng = ?,
			categories = ?, tags = ?, image_url = ?, image_urls = ?, price = ?, availability = ?,
			organizer = ?, age_restriction = ?, source_url = ?, scraped_from_source_at = ?,
			original_data = ?, status = ?, imported_at = ?, imported_by = ?, import_notes = ?,
			last_scraped_at = ?, last_updated_at = ?
		WHERE id = ?
	`
	res, err := r.db.ExecContext(ctx, r.d.rebind(query),
		event.Title, event.Description, nullTime(event.DateTime), nullTime(event.EndDate), event.City,
		event.Venue.Name, event.Venue.Address, event.Venue.City, enc.lat, enc.lng,
		enc.categories, enc.tags, event.ImageURL, enc.imageURLs, enc.price, string(event.Availability),
		event.Organizer, event.AgeRestriction, event.Source.URL, event.ScrapedFromSourceAt.UTC(),
		enc.originalData, string(event.Status), nullTime(event.ImportedAt), event.ImportedBy, event.ImportNotes,
		event.LastScrapedAt.UTC(), event.LastUpdatedAt.UTC(),
		event.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update event %s: %w", event.ID, err)
	}
	return requireAffected(res, event.ID)
}

// TouchScraped records that an unchanged entry was seen again.
func (r *EventRepository) TouchScraped(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, r.d.rebind(`UPDATE events SET last_scraped_at = ? WHERE id = ?`), at.UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to touch event %s: %w", id, err)
	}
	return requireAffected(res, id)
}

// GetByID returns the entry or nil when it does not exist.
func (r *EventRepository) GetByID(ctx context.Context, id string) (*models.StoredEvent, error) {
	row := r.db.QueryRowContext(ctx, r.d.rebind(`SELECT `+eventColumns+` FROM events WHERE id = ?`), id)
	return scanOptional(row)
}

// FindByIdentity returns the entry with the given source identity or nil.
func (r *EventRepository) FindByIdentity(ctx context.Context, sourceName, eventURL string) (*models.StoredEvent, error) {
	row := r.db.QueryRowContext(ctx,
		r.d.rebind(`SELECT `+eventColumns+` FROM events WHERE source_name = ? AND source_event_url = ?`),
		sourceName, eventURL)
	return scanOptional(row)
}

// MarkUnobserved sets every entry of the source whose URL is not in
// activeURLs to inactive, leaving inactive and imported entries alone.
func (r *EventRepository) MarkUnobserved(ctx context.Context, sourceName string, activeURLs []string, now time.Time) (int64, error) {
	query := `
		UPDATE events SET status = ?, last_updated_at = ` + monotonicUpdatedAt + `
		WHERE source_name = ? AND status NOT IN (?, ?)`
	args := []any{string(models.EventStatusInactive), now.UTC(), now.UTC(), sourceName,
		string(models.EventStatusInactive), string(models.EventStatusImported)}

	if len(activeURLs) > 0 {
		query += ` AND source_event_url NOT IN (` + placeholders(len(activeURLs)) + `)`
		for _, u := range activeURLs {
			args = append(args, u)
		}
	}

	return r.exec(ctx, "mark unobserved events", query, args...)
}

// MarkPast sets entries whose start time is before now to inactive. The
// start time itself is left untouched.
func (r *EventRepository) MarkPast(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE events SET status = ?, last_updated_at = ` + monotonicUpdatedAt + `
		WHERE status NOT IN (?, ?) AND date_time IS NOT NULL AND date_time < ?`
	return r.exec(ctx, "mark past events", query,
		string(models.EventStatusInactive), now.UTC(), now.UTC(),
		string(models.EventStatusInactive), string(models.EventStatusImported), now.UTC())
}

// PromoteStale moves new entries not scraped since olderThan to updated.
func (r *EventRepository) PromoteStale(ctx context.Context, olderThan, now time.Time) (int64, error) {
	query := `
		UPDATE events SET status = ?, last_updated_at = ` + monotonicUpdatedAt + `
		WHERE status = ? AND last_scraped_at < ?`
	return r.exec(ctx, "promote stale events", query,
		string(models.EventStatusUpdated), now.UTC(), now.UTC(),
		string(models.EventStatusNew), olderThan.UTC())
}

// DeleteInactiveBefore removes inactive entries last updated before cutoff.
func (r *EventRepository) DeleteInactiveBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return r.exec(ctx, "delete inactive events",
		`DELETE FROM events WHERE status = ? AND last_updated_at < ?`,
		string(models.EventStatusInactive), cutoff.UTC())
}

// List returns entries matching the query ordered by start time, undated last.
func (r *EventRepository) List(ctx context.Context, q models.EventQuery) ([]models.StoredEvent, error) {
	q.Normalize()
	where, args := buildEventFilter(q)

	query := `SELECT ` + eventColumns + ` FROM events` + where +
		` ORDER BY date_time IS NULL, date_time ASC, id LIMIT ? OFFSET ?`
	args = append(args, q.Limit, q.Offset)

	rows, err := r.db.QueryContext(ctx, r.d.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	events := []models.StoredEvent{}
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *event)
	}
	return events, rows.Err()
}

// Count returns how many entries match the query filters.
func (r *EventRepository) Count(ctx context.Context, q models.EventQuery) (int, error) {
	where, args := buildEventFilter(q)

	var count int
	if err := r.db.QueryRowContext(ctx, r.d.rebind(`SELECT COUNT(*) FROM events`+where), args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return count, nil
}

// monotonicUpdatedAt keeps last_updated_at from moving backwards. It consumes
// two placeholders, both bound to the new timestamp.
const monotonicUpdatedAt = `CASE WHEN last_updated_at > ? THEN last_updated_at ELSE ? END`

func (r *EventRepository) exec(ctx context.Context, what, query string, args ...any) (int64, error) {
	res, err := r.db.ExecContext(ctx, r.d.rebind(query), args...)
	if err != nil {
		return 0, fmt.Errorf("failed to %s: %w", what, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to %s: %w", what, err)
	}
	return n, nil
}

func buildEventFilter(q models.EventQuery) (string, []any) {
	var clauses []string
	var args []any

	if q.Status != nil {
		clauses = append(clauses, "status = ?")
		args = append(args, string(*q.Status))
	}
	if q.City != "" {
		clauses = append(clauses, "city = ?")
		args = append(args, q.City)
	}
	if q.SourceName != "" {
		clauses = append(clauses, "source_name = ?")
		args = append(args, q.SourceName)
	}
	if q.UpcomingFrom != nil {
		clauses = append(clauses, "date_time IS NOT NULL AND date_time >= ?")
		args = append(args, q.UpcomingFrom.UTC())
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func requireAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", models.ErrEventNotFound, id)
	}
	return nil
}

type encodedEvent struct {
	lat, lng     sql.NullFloat64
	categories   string
	tags         string
	imageURLs    string
	price        sql.NullString
	originalData sql.NullString
}

func encodeEvent(e *models.StoredEvent) (encodedEvent, error) {
	var enc encodedEvent
	var err error

	if c := e.Venue.Coordinates; c != nil {
		enc.lat = sql.NullFloat64{Float64: c.Lat, Valid: true}
		enc.lng = sql.NullFloat64{Float64: c.Lng, Valid: true}
	}
	if enc.categories, err = encodeList(e.Categories); err != nil {
		return enc, fmt.Errorf("failed to marshal categories: %w", err)
	}
	if enc.tags, err = encodeList(e.Tags); err != nil {
		return enc, fmt.Errorf("failed to marshal tags: %w", err)
	}
	if enc.imageURLs, err = encodeList(e.ImageURLs); err != nil {
		return enc, fmt.Errorf("failed to marshal image urls: %w", err)
	}
	if e.Price != nil {
		b, err := json.Marshal(e.Price)
		if err != nil {
			return enc, fmt.Errorf("failed to marshal price: %w", err)
		}
		enc.price = sql.NullString{String: string(b), Valid: true}
	}
	if len(e.OriginalData) > 0 {
		b, err := json.Marshal(e.OriginalData)
		if err != nil {
			return enc, fmt.Errorf("failed to marshal original data: %w", err)
		}
		enc.originalData = sql.NullString{String: string(b), Valid: true}
	}
	return enc, nil
}

func encodeList(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	b, err := json.Marshal(values)
	return string(b), err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOptional(row *sql.Row) (*models.StoredEvent, error) {
	event, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return event, err
}

func scanEvent(row rowScanner) (*models.StoredEvent, error) {
	var (
		e                             models.StoredEvent
		dateTime, endDate, importedAt sql.NullTime
		lat, lng                      sql.NullFloat64
		categories, tags, imageURLs   string
		price, originalData           sql.NullString
		availability, status          string
	)

	err := row.Scan(
		&e.ID, &e.Title, &e.Description, &dateTime, &endDate, &e.City,
		&e.Venue.Name, &e.Venue.Address, &e.Venue.City, &lat, &lng,
		&categories, &tags, &e.ImageURL, &imageURLs, &price, &availability,
		&e.Organizer, &e.AgeRestriction, &e.Source.Name, &e.Source.URL, &e.Source.EventURL,
		&e.ScrapedFromSourceAt, &originalData, &status, &importedAt, &e.ImportedBy,
		&e.ImportNotes, &e.FirstSeenAt, &e.LastScrapedAt, &e.LastUpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan event: %w", err)
	}

	e.DateTime = timePtr(dateTime)
	e.EndDate = timePtr(endDate)
	e.ImportedAt = timePtr(importedAt)
	e.ScrapedFromSourceAt = e.ScrapedFromSourceAt.UTC()
	e.FirstSeenAt = e.FirstSeenAt.UTC()
	e.LastScrapedAt = e.LastScrapedAt.UTC()
	e.LastUpdatedAt = e.LastUpdatedAt.UTC()
	e.Availability = models.Availability(availability)
	e.Status = models.EventStatus(status)

	if lat.Valid && lng.Valid {
		e.Venue.Coordinates = &models.Coordinates{Lat: lat.Float64, Lng: lng.Float64}
	}
	if err := json.Unmarshal([]byte(categories), &e.Categories); err != nil {
		return nil, fmt.Errorf("failed to unmarshal categories: %w", err)
	}
	if err := json.Unmarshal([]byte(tags), &e.Tags); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tags: %w", err)
	}
	if err := json.Unmarshal([]byte(imageURLs), &e.ImageURLs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal image urls: %w", err)
	}
	if price.Valid {
		e.Price = &models.Price{}
		if err := json.Unmarshal([]byte(price.String), e.Price); err != nil {
			return nil, fmt.Errorf("failed to unmarshal price: %w", err)
		}
	}
	if originalData.Valid {
		if err := json.Unmarshal([]byte(originalData.String), &e.OriginalData); err != nil {
			return nil, fmt.Errorf("failed to unmarshal original data: %w", err)
		}
	}

	return &e, nil
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}
