package ingestion

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/STRATINT/citypulse/internal/models"
)

// EventRepository is the catalog contract the pipeline and lifecycle manager
// work against. (Source name, event URL) is unique; lookups that miss return
// nil without an error.
type EventRepository interface {
	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error

	// Insert stores a new entry, assigning an ID when empty. A collision on
	// the identity key returns models.ErrDuplicateIdentity.
	Insert(ctx context.Context, event *models.StoredEvent) error

	// Update overwrites an existing entry by ID.
	Update(ctx context.Context, event models.StoredEvent) error

	// TouchScraped sets only LastScrapedAt.
	TouchScraped(ctx context.Context, id string, at time.Time) error

	// GetByID retrieves an entry by its ID.
	GetByID(ctx context.Context, id string) (*models.StoredEvent, error)

	// FindByIdentity retrieves an entry by its source identity.
	FindByIdentity(ctx context.Context, sourceName, eventURL string) (*models.StoredEvent, error)

	// MarkUnobserved sets entries of a source that are not in activeURLs to
	// inactive, skipping inactive and imported entries.
	MarkUnobserved(ctx context.Context, sourceName string, activeURLs []string, now time.Time) (int64, error)

	// MarkPast sets non-imported entries starting before now to inactive.
	MarkPast(ctx context.Context, now time.Time) (int64, error)

	// PromoteStale moves new entries last scraped before olderThan to updated.
	PromoteStale(ctx context.Context, olderThan, now time.Time) (int64, error)

	// DeleteInactiveBefore deletes inactive entries last updated before cutoff.
	DeleteInactiveBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// List retrieves entries matching the query, ordered by start time with
	// undated entries last.
	List(ctx context.Context, query models.EventQuery) ([]models.StoredEvent, error)

	// Count returns the number of entries matching the query filters.
	Count(ctx context.Context, query models.EventQuery) (int, error)
}

// MemoryEventRepository implements EventRepository in memory, for tests and
// the memory store driver.
type MemoryEventRepository struct {
	mu       sync.RWMutex
	events   map[string]models.StoredEvent
	identity map[identityKey]string // identity -> ID
}

type identityKey struct {
	source string
	url    string
}

// NewMemoryEventRepository creates an empty in-memory catalog.
func NewMemoryEventRepository() *MemoryEventRepository {
	return &MemoryEventRepository{
		events:   make(map[string]models.StoredEvent),
		identity: make(map[identityKey]string),
	}
}

// Ping always succeeds.
func (r *MemoryEventRepository) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Insert stores a new entry.
func (r *MemoryEventRepository) Insert(ctx context.Context, event *models.StoredEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := identityKey{source: event.Source.Name, url: event.Source.EventURL}
	if _, exists := r.identity[key]; exists {
		return fmt.Errorf("%w: %s %s", models.ErrDuplicateIdentity, key.source, key.url)
	}
	if event.ID == "" {
		event.ID = uuid.New().String()
	}

	r.events[event.ID] = cloneEvent(*event)
	r.identity[key] = event.ID
	return nil
}

// Update overwrites an existing entry. The identity key is immutable.
func (r *MemoryEventRepository) Update(ctx context.Context, event models.StoredEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.events[event.ID]
	if !ok {
		return fmt.Errorf("%w: %s", models.ErrEventNotFound, event.ID)
	}
	event.Source.Name = existing.Source.Name
	event.Source.EventURL = existing.Source.EventURL
	event.FirstSeenAt = existing.FirstSeenAt

	r.events[event.ID] = cloneEvent(event)
	return nil
}

// TouchScraped sets LastScrapedAt.
func (r *MemoryEventRepository) TouchScraped(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	event, ok := r.events[id]
	if !ok {
		return fmt.Errorf("%w: %s", models.ErrEventNotFound, id)
	}
	event.LastScrapedAt = at
	r.events[id] = event
	return nil
}

// GetByID retrieves an entry by ID.
func (r *MemoryEventRepository) GetByID(ctx context.Context, id string) (*models.StoredEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	event, ok := r.events[id]
	if !ok {
		return nil, nil
	}
	clone := cloneEvent(event)
	return &clone, nil
}

// FindByIdentity retrieves an entry by source identity.
func (r *MemoryEventRepository) FindByIdentity(ctx context.Context, sourceName, eventURL string) (*models.StoredEvent, error) {
	r.mu.RLock()
	id, ok := r.identity[identityKey{source: sourceName, url: eventURL}]
	r.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return r.GetByID(ctx, id)
}

// MarkUnobserved inactivates entries of the source missing from activeURLs.
func (r *MemoryEventRepository) MarkUnobserved(ctx context.Context, sourceName string, activeURLs []string, now time.Time) (int64, error) {
	active := make(map[string]struct{}, len(activeURLs))
	for _, u := range activeURLs {
		active[u] = struct{}{}
	}

	return r.updateWhere(func(e models.StoredEvent) bool {
		if e.Source.Name != sourceName || !automatable(e.Status) {
			return false
		}
		_, seen := active[e.Source.EventURL]
		return !seen
	}, models.EventStatusInactive, now), nil
}

// MarkPast inactivates entries whose start time is before now.
func (r *MemoryEventRepository) MarkPast(ctx context.Context, now time.Time) (int64, error) {
	return r.updateWhere(func(e models.StoredEvent) bool {
		return automatable(e.Status) && e.IsPast(now)
	}, models.EventStatusInactive, now), nil
}

// PromoteStale moves new entries not scraped since olderThan to updated.
func (r *MemoryEventRepository) PromoteStale(ctx context.Context, olderThan, now time.Time) (int64, error) {
	return r.updateWhere(func(e models.StoredEvent) bool {
		return e.Status == models.EventStatusNew && e.LastScrapedAt.Before(olderThan)
	}, models.EventStatusUpdated, now), nil
}

// DeleteInactiveBefore deletes inactive entries last updated before cutoff.
func (r *MemoryEventRepository) DeleteInactiveBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id, e := range r.events {
		if e.Status == models.EventStatusInactive && e.LastUpdatedAt.Before(cutoff) {
			delete(r.events, id)
			delete(r.identity, identityKey{source: e.Source.Name, url: e.Source.EventURL})
			n++
		}
	}
	return n, nil
}

// List retrieves entries matching the query.
func (r *MemoryEventRepository) List(ctx context.Context, query models.EventQuery) ([]models.StoredEvent, error) {
	query.Normalize()
	matched := r.filter(query)

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		switch {
		case a.DateTime == nil && b.DateTime == nil:
			return a.ID < b.ID
		case a.DateTime == nil:
			return false
		case b.DateTime == nil:
			return true
		case !a.DateTime.Equal(*b.DateTime):
			return a.DateTime.Before(*b.DateTime)
		default:
			return a.ID < b.ID
		}
	})

	if query.Offset >= len(matched) {
		return []models.StoredEvent{}, nil
	}
	end := query.Offset + query.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[query.Offset:end], nil
}

// Count returns the number of matching entries.
func (r *MemoryEventRepository) Count(ctx context.Context, query models.EventQuery) (int, error) {
	return len(r.filter(query)), nil
}

// Len returns the number of stored entries.
func (r *MemoryEventRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.events)
}

func (r *MemoryEventRepository) filter(query models.EventQuery) []models.StoredEvent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := make([]models.StoredEvent, 0, len(r.events))
	for _, e := range r.events {
		if query.Matches(e) {
			matched = append(matched, cloneEvent(e))
		}
	}
	return matched
}

func (r *MemoryEventRepository) updateWhere(match func(models.StoredEvent) bool, status models.EventStatus, now time.Time) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id, e := range r.events {
		if !match(e) {
			continue
		}
		e.Status = status
		if now.After(e.LastUpdatedAt) {
			e.LastUpdatedAt = now
		}
		r.events[id] = e
		n++
	}
	return n
}

// automatable reports whether sweeps may move an entry to inactive.
func automatable(s models.EventStatus) bool {
	return s != models.EventStatusInactive && !s.IsSticky()
}

func cloneEvent(e models.StoredEvent) models.StoredEvent {
	e.Categories = append([]string(nil), e.Categories...)
	e.Tags = append([]string(nil), e.Tags...)
	e.ImageURLs = append([]string(nil), e.ImageURLs...)
	if e.Price != nil {
		p := *e.Price
		e.Price = &p
	}
	if e.Venue.Coordinates != nil {
		c := *e.Venue.Coordinates
		e.Venue.Coordinates = &c
	}
	return e
}
