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

// IngestionErrorRepository defines the interface for storing and retrieving ingestion errors.
type IngestionErrorRepository interface {
	// Store saves an ingestion error to the repository.
	Store(ctx context.Context, err models.IngestionError) error

	// List retrieves ingestion errors, newest first.
	List(ctx context.Context, limit int, unresolvedOnly bool) ([]models.IngestionError, error)

	// GetByID retrieves an error by its ID, or nil.
	GetByID(ctx context.Context, id string) (*models.IngestionError, error)

	// MarkResolved marks an error as resolved.
	MarkResolved(ctx context.Context, id string) error

	// CountUnresolved returns the count of unresolved errors.
	CountUnresolved(ctx context.Context) (int, error)
}

// SQLIngestionErrorRepository implements IngestionErrorRepository on
// PostgreSQL or SQLite.
type SQLIngestionErrorRepository struct {
	db *sql.DB
	d  dialect
}

// NewPostgresIngestionErrorRepository creates a PostgreSQL-based ingestion error repository.
func NewPostgresIngestionErrorRepository(db *sql.DB) *SQLIngestionErrorRepository {
	return &SQLIngestionErrorRepository{db: db, d: postgresDialect}
}

// NewSQLiteIngestionErrorRepository creates a SQLite-based ingestion error repository.
func NewSQLiteIngestionErrorRepository(db *sql.DB) *SQLIngestionErrorRepository {
	return &SQLIngestionErrorRepository{db: db, d: sqliteDialect}
}

const ingestionErrorColumns = `id, source, error_type, url, error_msg, metadata, created_at, resolved, resolved_at`

// Store saves an ingestion error to the database.
func (r *SQLIngestionErrorRepository) Store(ctx context.Context, err models.IngestionError) error {
	if err.ID == "" {
		err.ID = uuid.New().String()
	}
	if err.CreatedAt.IsZero() {
		err.CreatedAt = time.Now()
	}

	var metadata sql.NullString
	if err.Metadata != "" {
		metadata = sql.NullString{String: err.Metadata, Valid: true}
	}

	query := `INSERT INTO ingestion_errors (` + ingestionErrorColumns + `) VALUES (` + placeholders(9) + `)`
	_, execErr := r.db.ExecContext(ctx, r.d.rebind(query),
		err.ID,
		err.Source,
		err.ErrorType,
		err.URL,
		err.ErrorMsg,
		metadata,
		err.CreatedAt.UTC(),
		err.Resolved,
		nullTime(err.ResolvedAt),
	)
	if execErr != nil {
		return fmt.Errorf("failed to store ingestion error: %w", execErr)
	}
	return nil
}

// List retrieves ingestion errors, newest first.
func (r *SQLIngestionErrorRepository) List(ctx context.Context, limit int, unresolvedOnly bool) ([]models.IngestionError, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT ` + ingestionErrorColumns + ` FROM ingestion_errors`
	args := []any{}
	if unresolvedOnly {
		query += " WHERE resolved = ?"
		args = append(args, false)
	}
	query += " ORDER BY created_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, r.d.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query ingestion errors: %w", err)
	}
	defer rows.Close()

	errs := []models.IngestionError{}
	for rows.Next() {
		e, err := scanIngestionError(rows)
		if err != nil {
			return nil, err
		}
		errs = append(errs, *e)
	}

	return errs, rows.Err()
}

// GetByID retrieves an error by its ID.
func (r *SQLIngestionErrorRepository) GetByID(ctx context.Context, id string) (*models.IngestionError, error) {
	row := r.db.QueryRowContext(ctx, r.d.rebind(`SELECT `+ingestionErrorColumns+` FROM ingestion_errors WHERE id = ?`), id)
	e, err := scanIngestionError(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return e, err
}

// MarkResolved marks an error as resolved.
func (r *SQLIngestionErrorRepository) MarkResolved(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		r.d.rebind(`UPDATE ingestion_errors SET resolved = ?, resolved_at = ? WHERE id = ?`),
		true, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to resolve ingestion error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("ingestion error %s not found", id)
	}
	return nil
}

// CountUnresolved returns the count of unresolved errors.
func (r *SQLIngestionErrorRepository) CountUnresolved(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, r.d.rebind(`SELECT COUNT(*) FROM ingestion_errors WHERE resolved = ?`), false).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count unresolved errors: %w", err)
	}
	return count, nil
}

func scanIngestionError(row rowScanner) (*models.IngestionError, error) {
	var e models.IngestionError
	var metadata sql.NullString
	var resolvedAt sql.NullTime

	err := row.Scan(
		&e.ID,
		&e.Source,
		&e.ErrorType,
		&e.URL,
		&e.ErrorMsg,
		&metadata,
		&e.CreatedAt,
		&e.Resolved,
		&resolvedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan ingestion error: %w", err)
	}

	e.CreatedAt = e.CreatedAt.UTC()
	if metadata.Valid {
		e.Metadata = metadata.String
	}
	e.ResolvedAt = timePtr(resolvedAt)

	return &e, nil
}

// CreateErrorMetadata encodes ledger metadata as a JSON string.
func CreateErrorMetadata(data map[string]interface{}) (string, error) {
	if data == nil {
		return "", nil
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		return "", err
	}

	return string(jsonData), nil
}
