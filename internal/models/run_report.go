package models

import "time"

// MergeOutcome is the result of reconciling one normalized record.
type MergeOutcome string

const (
	OutcomeCreated   MergeOutcome = "created"
	OutcomeUpdated   MergeOutcome = "updated"
	OutcomeUnchanged MergeOutcome = "unchanged"
	OutcomeDuplicate MergeOutcome = "duplicate"
	OutcomeError     MergeOutcome = "error"
)

// ScrapeResult is what a single source adapter reports for one run.
type ScrapeResult struct {
	Success    bool   `json:"success"`
	EventCount int    `json:"event_count"`
	Error      string `json:"error,omitempty"`
}

// SourceRunResult is one source's line in a run report.
type SourceRunResult struct {
	Name       string `json:"name"`
	Success    bool   `json:"success"`
	EventCount int    `json:"event_count"`
	Error      string `json:"error,omitempty"`
}

// RunReport aggregates one orchestration cycle. It is returned to the caller
// and never persisted.
type RunReport struct {
	Success              bool              `json:"success"`
	Message              string            `json:"message,omitempty"`
	Sources              []SourceRunResult `json:"scrapers"`
	TotalEventsProcessed int               `json:"total_events_processed"`
	StartedAt            time.Time         `json:"started_at"`
	Duration             time.Duration     `json:"duration"`
}

// ConfiguredSource describes a source adapter for status reporting.
type ConfiguredSource struct {
	Name    string `json:"name"`
	BaseURL string `json:"base_url"`
}

// PipelineStatus is the snapshot exposed to the admin layer.
type PipelineStatus struct {
	IsRunning         bool               `json:"is_running"`
	ConfiguredSources []ConfiguredSource `json:"scrapers"`
}

// MaintenanceResult counts what one maintenance sweep changed.
type MaintenanceResult struct {
	Deleted        int64 `json:"deleted"`
	MarkedPast     int64 `json:"marked_past"`
	PromotedStale  int64 `json:"promoted_stale"`
	ActivityPruned int64 `json:"activity_pruned"`
}
