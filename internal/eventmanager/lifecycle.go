package eventmanager

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/STRATINT/citypulse/internal/ingestion"
	"github.com/STRATINT/citypulse/internal/models"
)

// ActivityLogger defines the interface for logging activity.
type ActivityLogger interface {
	Log(ctx context.Context, log models.ActivityLog) error
}

// ActivityPruner is implemented by activity logs that can drop old rows.
// RunMaintenance prunes through it when the configured ActivityLogger
// supports it.
type ActivityPruner interface {
	DeleteOlderThan(ctx context.Context, age time.Duration) (int64, error)
}

// TransitionRecorder counts status transitions by trigger.
type TransitionRecorder interface {
	Transitions(kind string, n int)
}

// LifecycleManager owns the status transitions that are not driven by a
// single merge: admin import, source-scoped inactivation, the past-date and
// aging sweep, and cleanup of long-inactive entries.
type LifecycleManager struct {
	eventRepo ingestion.EventRepository
	activity  ActivityLogger
	metrics   TransitionRecorder
	config    LifecycleConfig
	logger    *slog.Logger
	now       func() time.Time
}

// LifecycleConfig holds configuration for event lifecycle management.
type LifecycleConfig struct {
	CutoffAge         time.Duration // inactive entries older than this are deleted
	AgingWindow       time.Duration // new entries not scraped for this long become updated
	ActivityRetention time.Duration // activity log rows older than this are pruned; zero keeps them
}

// DefaultLifecycleConfig returns sensible defaults.
func DefaultLifecycleConfig() LifecycleConfig {
	return LifecycleConfig{
		CutoffAge:         30 * 24 * time.Hour,
		AgingWindow:       7 * 24 * time.Hour,
		ActivityRetention: 90 * 24 * time.Hour,
	}
}

// NewLifecycleManager creates a new lifecycle manager. activity and metrics
// may be nil.
func NewLifecycleManager(
	eventRepo ingestion.EventRepository,
	activity ActivityLogger,
	metrics TransitionRecorder,
	logger *slog.Logger,
	config LifecycleConfig,
) *LifecycleManager {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &LifecycleManager{
		eventRepo: eventRepo,
		activity:  activity,
		metrics:   metrics,
		config:    config,
		logger:    logger,
		now:       time.Now,
	}
}

// Import hands an entry over to an admin. Imported entries keep receiving
// content updates but no automated transition moves them again. Importing an
// already imported entry returns it unchanged.
func (m *LifecycleManager) Import(ctx context.Context, eventID, actor, notes string) (*models.StoredEvent, error) {
	event, err := m.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	if event == nil {
		return nil, fmt.Errorf("%w: %s", models.ErrEventNotFound, eventID)
	}

	next, changed := models.NextStatus(event.Status, models.TransitionImport)
	if !changed {
		m.logger.Debug("event already imported", "event_id", eventID)
		return event, nil
	}

	now := m.now().UTC()
	previous := event.Status
	event.Status = next
	event.ImportedAt = &now
	event.ImportedBy = strings.TrimSpace(actor)
	event.ImportNotes = strings.TrimSpace(notes)
	if now.After(event.LastUpdatedAt) {
		event.LastUpdatedAt = now
	}

	if err := m.eventRepo.Update(ctx, *event); err != nil {
		return nil, fmt.Errorf("failed to import event: %w", err)
	}

	m.logger.Info("event imported",
		"event_id", eventID,
		"title", event.Title,
		"previous_status", previous,
		"imported_by", event.ImportedBy)
	m.recordTransitions(models.TransitionImport, 1)

	if m.activity != nil {
		if err := m.activity.Log(context.WithoutCancel(ctx), models.ActivityLog{
			ActivityType: models.ActivityTypeImport,
			Source:       event.Source.Name,
			Message:      fmt.Sprintf("Imported %q", event.Title),
			Details: map[string]interface{}{
				"event_id":        event.ID,
				"imported_by":     event.ImportedBy,
				"previous_status": string(previous),
			},
		}); err != nil {
			m.logger.Error("failed to write activity log", "error", err)
		}
	}
	return event, nil
}

// MarkUnobserved moves a source's entries that are missing from activeURLs
// to inactive. Imported and already inactive entries are left alone.
func (m *LifecycleManager) MarkUnobserved(ctx context.Context, sourceName string, activeURLs []string) (int64, error) {
	n, err := m.eventRepo.MarkUnobserved(ctx, sourceName, activeURLs, m.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to mark unobserved events for %s: %w", sourceName, err)
	}
	m.recordTransitions(models.TransitionUnobserved, n)
	return n, nil
}

// SweepStatuses inactivates past-dated entries and promotes new entries that
// have not been scraped within the aging window.
func (m *LifecycleManager) SweepStatuses(ctx context.Context, now time.Time) (models.MaintenanceResult, error) {
	var result models.MaintenanceResult

	past, err := m.eventRepo.MarkPast(ctx, now)
	if err != nil {
		return result, fmt.Errorf("failed to mark past events: %w", err)
	}
	result.MarkedPast = past
	m.recordTransitions(models.TransitionPastDate, past)

	promoted, err := m.eventRepo.PromoteStale(ctx, now.Add(-m.config.AgingWindow), now)
	if err != nil {
		return result, fmt.Errorf("failed to promote stale events: %w", err)
	}
	result.PromotedStale = promoted
	m.recordTransitions(models.TransitionAged, promoted)

	return result, nil
}

// Cleanup deletes inactive entries whose last update is older than the
// cutoff age.
func (m *LifecycleManager) Cleanup(ctx context.Context, now time.Time) (int64, error) {
	cutoff := now.Add(-m.config.CutoffAge)
	n, err := m.eventRepo.DeleteInactiveBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete inactive events: %w", err)
	}
	if n > 0 {
		m.logger.Info("deleted inactive events", "count", n, "cutoff", cutoff)
	}
	return n, nil
}

// PruneActivity drops activity log rows older than the retention window.
// It is a no-op when retention is disabled or the activity log cannot prune.
func (m *LifecycleManager) PruneActivity(ctx context.Context) (int64, error) {
	pruner, ok := m.activity.(ActivityPruner)
	if !ok || m.config.ActivityRetention <= 0 {
		return 0, nil
	}
	n, err := pruner.DeleteOlderThan(ctx, m.config.ActivityRetention)
	if err != nil {
		return 0, fmt.Errorf("failed to prune activity logs: %w", err)
	}
	if n > 0 {
		m.logger.Info("pruned activity logs", "count", n, "retention", m.config.ActivityRetention)
	}
	return n, nil
}

// RunMaintenance runs cleanup followed by the status sweep, then prunes the
// activity log. A pruning failure is logged and does not fail the sweep.
func (m *LifecycleManager) RunMaintenance(ctx context.Context) (models.MaintenanceResult, error) {
	now := m.now().UTC()

	deleted, err := m.Cleanup(ctx, now)
	if err != nil {
		return models.MaintenanceResult{}, err
	}

	result, err := m.SweepStatuses(ctx, now)
	result.Deleted = deleted
	if err != nil {
		return result, err
	}

	pruned, err := m.PruneActivity(ctx)
	if err != nil {
		m.logger.Warn("activity log retention failed", "error", err)
	}
	result.ActivityPruned = pruned

	m.logger.Debug("maintenance completed",
		"deleted", result.Deleted,
		"marked_past", result.MarkedPast,
		"promoted_stale", result.PromotedStale,
		"activity_pruned", result.ActivityPruned)
	return result, nil
}

// ListEvents returns a page of entries and the total matching the filters.
func (m *LifecycleManager) ListEvents(ctx context.Context, query models.EventQuery) ([]models.StoredEvent, int, error) {
	query.Normalize()
	if query.Status != nil && !query.Status.Valid() {
		return nil, 0, fmt.Errorf("invalid status %q", *query.Status)
	}

	events, err := m.eventRepo.List(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query events: %w", err)
	}
	total, err := m.eventRepo.Count(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count events: %w", err)
	}
	return events, total, nil
}

// GetEvent retrieves a specific entry by its ID.
func (m *LifecycleManager) GetEvent(ctx context.Context, eventID string) (*models.StoredEvent, error) {
	event, err := m.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, fmt.Errorf("%w: %s", models.ErrEventNotFound, eventID)
	}
	return event, nil
}

func (m *LifecycleManager) recordTransitions(t models.Transition, n int64) {
	if m.metrics != nil && n > 0 {
		m.metrics.Transitions(string(t), int(n))
	}
}
