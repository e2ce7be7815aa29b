package models

import "time"

// ActivityType represents the type of activity being logged.
type ActivityType string

const (
	ActivityTypeCycle       ActivityType = "ingestion_cycle"
	ActivityTypeSingleRun   ActivityType = "single_source_run"
	ActivityTypeMaintenance ActivityType = "maintenance_sweep"
	ActivityTypeImport      ActivityType = "event_import"
)

// ActivityLog represents a logged activity in the system.
type ActivityLog struct {
	ID           string                 `json:"id"`
	Timestamp    time.Time              `json:"timestamp"`
	ActivityType ActivityType           `json:"activity_type"`
	Source       string                 `json:"source,omitempty"`
	Message      string                 `json:"message"`
	Details      map[string]interface{} `json:"details,omitempty"`
	EventCount   *int                   `json:"event_count,omitempty"`
	DurationMs   *int                   `json:"duration_ms,omitempty"`
}
