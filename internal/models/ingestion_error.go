package models

import (
	"time"
)

// IngestionError records a fetch or parse failure for later inspection.
type IngestionError struct {
	ID         string     `json:"id"`
	Source     string     `json:"source"`     // Source adapter name
	ErrorType  string     `json:"error_type"` // e.g., "fetch_blocked", "feed_parse_failed"
	URL        string     `json:"url"`        // The URL that failed
	ErrorMsg   string     `json:"error_msg"`
	Metadata   string     `json:"metadata"` // Additional JSON metadata
	CreatedAt  time.Time  `json:"created_at"`
	Resolved   bool       `json:"resolved"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

// IngestionErrorType categorizes different types of ingestion errors.
type IngestionErrorType string

const (
	ErrorTypeFetchBlocked     IngestionErrorType = "fetch_blocked"
	ErrorTypeFetchFailed      IngestionErrorType = "fetch_failed"
	ErrorTypeBrowserFailed    IngestionErrorType = "browser_failed"
	ErrorTypeFeedParseFailed  IngestionErrorType = "feed_parse_failed"
	ErrorTypePersistenceFault IngestionErrorType = "persistence_fault"
	ErrorTypeAdapterPanic     IngestionErrorType = "adapter_panic"
)
