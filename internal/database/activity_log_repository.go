package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/STRATINT/citypulse/internal/models"
)

// ActivityLogRepository handles activity log storage and retrieval.
type ActivityLogRepository struct {
	db *sql.DB
	d  dialect
}

// NewActivityLogRepository creates a PostgreSQL activity log repository.
func NewActivityLogRepository(db *sql.DB) *ActivityLogRepository {
	return &ActivityLogRepository{db: db, d: postgresDialect}
}

// NewSQLiteActivityLogRepository creates a SQLite activity log repository.
func NewSQLiteActivityLogRepository(db *sql.DB) *ActivityLogRepository {
	return &ActivityLogRepository{db: db, d: sqliteDialect}
}

// Log stores a new activity log entry.
func (r *ActivityLogRepository) Log(ctx context.Context, log models.ActivityLog) error {
	if log.ID == "" {
		log.ID = uuid.New().String()
	}
	if log.Timestamp.IsZero() {
		log.Timestamp = time.Now()
	}

	var details sql.NullString
	if log.Details != nil {
		b, err := json.Marshal(log.Details)
		if err != nil {
			return fmt.Errorf("failed to marshal details: %w", err)
		}
		details = sql.NullString{String: string(b), Valid: true}
	}

	query := `
		INSERT INTO activity_logs (id, timestamp, activity_type, source, message, details, event_count, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.d.rebind(query),
		log.ID,
		log.Timestamp.UTC(),
		string(log.ActivityType),
		log.Source,
		log.Message,
		details,
		log.EventCount,
		log.DurationMs,
	)
	if err != nil {
		return fmt.Errorf("failed to store activity log: %w", err)
	}
	return nil
}

// List retrieves activity logs, newest first, optionally filtered.
func (r *ActivityLogRepository) List(ctx context.Context, limit int, activityType models.ActivityType, source string) ([]models.ActivityLog, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000
	}

	query := `
		SELECT id, timestamp, activity_type, source, message, details, event_count, duration_ms
		FROM activity_logs
		WHERE 1=1
	`
	args := []any{}

	if activityType != "" {
		query += " AND activity_type = ?"
		args = append(args, string(activityType))
	}
	if source != "" {
		query += " AND source = ?"
		args = append(args, source)
	}

	query += " ORDER BY timestamp DESC LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, r.d.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query activity logs: %w", err)
	}
	defer rows.Close()

	logs := []models.ActivityLog{}
	for rows.Next() {
		var log models.ActivityLog
		var activity string
		var details sql.NullString
		var eventCount, durationMs sql.NullInt64

		if err := rows.Scan(
			&log.ID,
			&log.Timestamp,
			&activity,
			&log.Source,
			&log.Message,
			&details,
			&eventCount,
			&durationMs,
		); err != nil {
			return nil, fmt.Errorf("failed to scan activity log: %w", err)
		}

		log.Timestamp = log.Timestamp.UTC()
		log.ActivityType = models.ActivityType(activity)
		if details.Valid {
			if err := json.Unmarshal([]byte(details.String), &log.Details); err != nil {
				return nil, fmt.Errorf("failed to unmarshal details: %w", err)
			}
		}
		if eventCount.Valid {
			n := int(eventCount.Int64)
			log.EventCount = &n
		}
		if durationMs.Valid {
			n := int(durationMs.Int64)
			log.DurationMs = &n
		}

		logs = append(logs, log)
	}

	return logs, rows.Err()
}

// DeleteOlderThan deletes activity logs older than the specified age.
func (r *ActivityLogRepository) DeleteOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	cutoff := time.Now().Add(-age).UTC()

	result, err := r.db.ExecContext(ctx, r.d.rebind(`DELETE FROM activity_logs WHERE timestamp < ?`), cutoff)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}
