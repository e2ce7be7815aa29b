package database

import (
	"database/sql"
	"fmt"
)

// migration represents a single SQLite schema migration.
type migration struct {
	Version int
	Name    string
	Apply   func(tx *sql.Tx) error
}

// MigrationRunner applies pending migrations to a SQLite database.
type MigrationRunner struct {
	db         *sql.DB
	migrations []migration
}

// NewMigrationRunner creates a MigrationRunner with all registered migrations.
func NewMigrationRunner(db *sql.DB) *MigrationRunner {
	return &MigrationRunner{
		db: db,
		migrations: []migration{
			{Version: 1, Name: "event_catalog", Apply: sqliteEventCatalog},
			{Version: 2, Name: "ingestion_ledger", Apply: sqliteIngestionLedger},
		},
	}
}

// Run enables WAL mode, ensures the tracking table exists, then applies each
// migration not yet recorded.
func (r *MigrationRunner) Run() error {
	if _, err := r.db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return fmt.Errorf("set WAL mode: %w", err)
	}

	if _, err := r.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			name       TEXT NOT NULL,
			applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("create schema_migrations table: %w", err)
	}

	for _, m := range r.migrations {
		var count int
		if err := r.db.QueryRow("SELECT COUNT(*) FROM schema_migrations WHERE version = ?", m.Version).Scan(&count); err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if count > 0 {
			continue
		}

		if err := r.apply(m); err != nil {
			return fmt.Errorf("apply migration %d (%s): %w", m.Version, m.Name, err)
		}
	}

	return nil
}

// Version returns the highest applied migration version, or 0.
func (r *MigrationRunner) Version() (int, error) {
	var v sql.NullInt64
	if err := r.db.QueryRow("SELECT MAX(version) FROM schema_migrations").Scan(&v); err != nil {
		return 0, err
	}
	return int(v.Int64), nil
}

func (r *MigrationRunner) apply(m migration) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := m.Apply(tx); err != nil {
		return err
	}

	if _, err := tx.Exec(
		"INSERT INTO schema_migrations (version, name) VALUES (?, ?)",
		m.Version, m.Name,
	); err != nil {
		return fmt.Errorf("record migration: %w", err)
	}

	return tx.Commit()
}

func sqliteEventCatalog(tx *sql.Tx) error {
	stmts := []string{
		`CREATE TABLE events (
			id                     TEXT PRIMARY KEY,
			title                  TEXT NOT NULL,
			description            TEXT NOT NULL DEFAULT '',
			date_time              TIMESTAMP,
			end_date               TIMESTAMP,
			city                   TEXT NOT NULL DEFAULT '',
			venue_name             TEXT NOT NULL DEFAULT '',
			venue_address          TEXT NOT NULL DEFAULT '',
			venue_city             TEXT NOT NULL DEFAULT '',
			venue_lat              REAL,
			venue_lng              REAL,
			categories             TEXT NOT NULL DEFAULT '[]',
			tags                   TEXT NOT NULL DEFAULT '[]',
			image_url              TEXT NOT NULL DEFAULT '',
			image_urls             TEXT NOT NULL DEFAULT '[]',
			price                  TEXT,
			availability           TEXT NOT NULL DEFAULT 'unknown',
			organizer              TEXT NOT NULL DEFAULT '',
			age_restriction        TEXT NOT NULL DEFAULT '',
			source_name            TEXT NOT NULL,
			source_url             TEXT NOT NULL DEFAULT '',
			source_event_url       TEXT NOT NULL,
			scraped_from_source_at TIMESTAMP NOT NULL,
			original_data          TEXT,
			status                 TEXT NOT NULL CHECK (status IN ('new', 'updated', 'inactive', 'imported')),
			imported_at            TIMESTAMP,
			imported_by            TEXT NOT NULL DEFAULT '',
			import_notes           TEXT NOT NULL DEFAULT '',
			first_seen_at          TIMESTAMP NOT NULL,
			last_scraped_at        TIMESTAMP NOT NULL,
			last_updated_at        TIMESTAMP NOT NULL,
			UNIQUE (source_name, source_event_url)
		)`,
		`CREATE INDEX idx_events_status ON events(status)`,
		`CREATE INDEX idx_events_date_time ON events(date_time)`,
		`CREATE INDEX idx_events_city ON events(city)`,
		`CREATE INDEX idx_events_status_updated ON events(status, last_updated_at)`,
	}
	return execAll(tx, stmts)
}

func sqliteIngestionLedger(tx *sql.Tx) error {
	stmts := []string{
		`CREATE TABLE ingestion_errors (
			id          TEXT PRIMARY KEY,
			source      TEXT NOT NULL,
			error_type  TEXT NOT NULL,
			url         TEXT NOT NULL DEFAULT '',
			error_msg   TEXT NOT NULL,
			metadata    TEXT,
			created_at  TIMESTAMP NOT NULL,
			resolved    BOOLEAN NOT NULL DEFAULT 0,
			resolved_at TIMESTAMP
		)`,
		`CREATE INDEX idx_ingestion_errors_created ON ingestion_errors(created_at)`,
		`CREATE TABLE activity_logs (
			id            TEXT PRIMARY KEY,
			timestamp     TIMESTAMP NOT NULL,
			activity_type TEXT NOT NULL,
			source        TEXT NOT NULL DEFAULT '',
			message       TEXT NOT NULL,
			details       TEXT,
			event_count   INTEGER,
			duration_ms   INTEGER
		)`,
		`CREATE INDEX idx_activity_logs_timestamp ON activity_logs(timestamp)`,
	}
	return execAll(tx, stmts)
}

func execAll(tx *sql.Tx, stmts []string) error {
	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
