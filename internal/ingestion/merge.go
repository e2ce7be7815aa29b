package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/STRATINT/citypulse/internal/models"
)

// Merger reconciles normalized records against the catalog by source
// identity.
type Merger struct {
	repo   EventRepository
	logger *slog.Logger
	now    func() time.Time
}

// NewMerger creates a merger over repo.
func NewMerger(repo EventRepository, logger *slog.Logger) *Merger {
	return &Merger{
		repo:   repo,
		logger: logger,
		now:    time.Now,
	}
}

// Upsert inserts ev when its identity is unknown, overwrites the stored entry
// when a tracked field changed, and otherwise only refreshes LastScrapedAt.
// A lost insert race is reported as OutcomeDuplicate without an error.
func (m *Merger) Upsert(ctx context.Context, ev models.NormalizedEvent) (models.MergeOutcome, error) {
	now := m.now().UTC()

	existing, err := m.repo.FindByIdentity(ctx, ev.Source.Name, ev.Source.EventURL)
	if err != nil {
		return models.OutcomeError, fmt.Errorf("find %s: %w", ev.Source.EventURL, err)
	}

	if existing == nil {
		stored := &models.StoredEvent{
			NormalizedEvent: ev,
			Status:          models.EventStatusNew,
			FirstSeenAt:     now,
			LastScrapedAt:   now,
			LastUpdatedAt:   now,
		}
		if err := m.repo.Insert(ctx, stored); err != nil {
			if errors.Is(err, models.ErrDuplicateIdentity) {
				m.logger.Warn("event inserted concurrently, skipping",
					"source", ev.Source.Name,
					"url", ev.Source.EventURL)
				return models.OutcomeDuplicate, nil
			}
			return models.OutcomeError, fmt.Errorf("insert %s: %w", ev.Source.EventURL, err)
		}
		return models.OutcomeCreated, nil
	}

	changed := ContentChanged(existing.NormalizedEvent, ev)
	trigger := models.TransitionContentChanged
	if !changed {
		trigger = models.TransitionReobserved
	}
	status, moved := models.NextStatus(existing.Status, trigger)
	if trigger == models.TransitionReobserved && moved && ev.IsPast(now) {
		// Past events would be swept straight back to inactive.
		moved = false
	}

	if !changed && !moved {
		if err := m.repo.TouchScraped(ctx, existing.ID, now); err != nil {
			return models.OutcomeError, fmt.Errorf("touch %s: %w", existing.ID, err)
		}
		return models.OutcomeUnchanged, nil
	}

	updated := *existing
	if changed {
		updated.NormalizedEvent = ev
	}
	updated.Status = status
	updated.LastScrapedAt = now
	if now.After(updated.LastUpdatedAt) {
		updated.LastUpdatedAt = now
	}
	if err := m.repo.Update(ctx, updated); err != nil {
		return models.OutcomeError, fmt.Errorf("update %s: %w", existing.ID, err)
	}
	return models.OutcomeUpdated, nil
}

// ContentChanged reports whether any tracked field differs between the stored
// and incoming record. Empty and missing strings are the same value.
func ContentChanged(stored, incoming models.NormalizedEvent) bool {
	return !sameText(stored.Title, incoming.Title) ||
		!sameText(stored.Description, incoming.Description) ||
		!sameTime(stored.DateTime, incoming.DateTime) ||
		!sameTime(stored.EndDate, incoming.EndDate) ||
		!sameText(stored.Venue.Name, incoming.Venue.Name) ||
		!sameText(stored.Venue.Address, incoming.Venue.Address) ||
		!sameText(stored.ImageURL, incoming.ImageURL) ||
		!stored.Price.Equal(incoming.Price) ||
		normalizedAvailability(stored.Availability) != normalizedAvailability(incoming.Availability)
}

func sameText(a, b string) bool {
	return strings.TrimSpace(a) == strings.TrimSpace(b)
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

func normalizedAvailability(a models.Availability) models.Availability {
	if a == "" {
		return models.AvailabilityUnknown
	}
	return a
}
