package models

import (
	"time"
)

// EventQuery represents filters and pagination for listing catalog entries.
type EventQuery struct {
	Status     *EventStatus `json:"status,omitempty"`
	City       string       `json:"city,omitempty"`
	SourceName string       `json:"source_name,omitempty"`

	// UpcomingFrom restricts results to events starting at or after the time.
	UpcomingFrom *time.Time `json:"upcoming_from,omitempty"`

	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

const (
	defaultQueryLimit = 100
	maxQueryLimit     = 1000
)

// Normalize applies default and maximum limits.
func (q *EventQuery) Normalize() {
	if q.Limit <= 0 {
		q.Limit = defaultQueryLimit
	}
	if q.Limit > maxQueryLimit {
		q.Limit = maxQueryLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
}

// Matches reports whether an event satisfies the query filters. Used by the
// in-memory store.
func (q EventQuery) Matches(e StoredEvent) bool {
	if q.Status != nil && e.Status != *q.Status {
		return false
	}
	if q.City != "" && e.City != q.City {
		return false
	}
	if q.SourceName != "" && e.Source.Name != q.SourceName {
		return false
	}
	if q.UpcomingFrom != nil && (e.DateTime == nil || e.DateTime.Before(*q.UpcomingFrom)) {
		return false
	}
	return true
}
