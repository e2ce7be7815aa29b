package models

import (
	"strings"
	"time"
)

// NormalizedEvent is the canonical shape every source record is converted to
// before it is reconciled against the catalog.
type NormalizedEvent struct {
	Title               string         `json:"title"`
	Description         string         `json:"description"`
	DateTime            *time.Time     `json:"date_time,omitempty"`
	EndDate             *time.Time     `json:"end_date,omitempty"`
	City                string         `json:"city"`
	Venue               Venue          `json:"venue"`
	Categories          []string       `json:"categories"`
	Tags                []string       `json:"tags"`
	ImageURL            string         `json:"image_url,omitempty"`
	ImageURLs           []string       `json:"image_urls"`
	Price               *Price         `json:"price,omitempty"`
	Availability        Availability   `json:"availability"`
	Organizer           string         `json:"organizer,omitempty"`
	AgeRestriction      string         `json:"age_restriction,omitempty"`
	Source              SourceIdentity `json:"source"`
	ScrapedFromSourceAt time.Time      `json:"scraped_from_source_at"`
	OriginalData        map[string]any `json:"original_data,omitempty"`
}

// StoredEvent is a catalog entry: the normalized event plus lifecycle state.
type StoredEvent struct {
	NormalizedEvent

	ID            string      `json:"id"`
	Status        EventStatus `json:"status"`
	ImportedAt    *time.Time  `json:"imported_at,omitempty"`
	ImportedBy    string      `json:"imported_by,omitempty"`
	ImportNotes   string      `json:"import_notes,omitempty"`
	FirstSeenAt   time.Time   `json:"first_seen_at"`
	LastScrapedAt time.Time   `json:"last_scraped_at"`
	LastUpdatedAt time.Time   `json:"last_updated_at"`
}

// SourceIdentity names where an event came from. (Name, EventURL) is the
// catalog identity key.
type SourceIdentity struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	EventURL string `json:"event_url"`
}

// Venue describes where an event takes place.
type Venue struct {
	Name        string       `json:"name"`
	Address     string       `json:"address"`
	City        string       `json:"city"`
	Coordinates *Coordinates `json:"coordinates,omitempty"`
}

// Coordinates is a latitude/longitude pair.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Price is the advertised ticket price range.
type Price struct {
	Min      *float64 `json:"min,omitempty"`
	Max      *float64 `json:"max,omitempty"`
	Currency string   `json:"currency"`
	IsFree   bool     `json:"is_free"`
}

// Equal reports whether two prices carry the same values. Nil prices are only
// equal to nil.
func (p *Price) Equal(other *Price) bool {
	if p == nil || other == nil {
		return p == nil && other == nil
	}
	return floatPtrEqual(p.Min, other.Min) &&
		floatPtrEqual(p.Max, other.Max) &&
		p.Currency == other.Currency &&
		p.IsFree == other.IsFree
}

func floatPtrEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// Availability is the ticket availability advertised by a source.
type Availability string

const (
	AvailabilityAvailable Availability = "available"
	AvailabilitySoldOut   Availability = "sold_out"
	AvailabilityLimited   Availability = "limited"
	AvailabilityWaitlist  Availability = "waitlist"
	AvailabilityUnknown   Availability = "unknown"
)

// ParseAvailability maps free text onto the availability enum, falling back
// to unknown.
func ParseAvailability(raw string) Availability {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	normalized = strings.ReplaceAll(normalized, " ", "_")

	switch Availability(normalized) {
	case AvailabilityAvailable, AvailabilitySoldOut, AvailabilityLimited, AvailabilityWaitlist:
		return Availability(normalized)
	}

	switch normalized {
	case "sales_ended", "sold":
		return AvailabilitySoldOut
	case "almost_full", "few_tickets_left", "selling_fast":
		return AvailabilityLimited
	case "on_sale", "tickets_available":
		return AvailabilityAvailable
	}
	return AvailabilityUnknown
}

// IsPast returns true when the event has a start time before now.
func (e *NormalizedEvent) IsPast(now time.Time) bool {
	return e.DateTime != nil && e.DateTime.Before(now)
}
