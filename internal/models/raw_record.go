package models

import "time"

// RawRecord is the loosely typed bag of fields an adapter pulls out of a page
// card or feed item. It is discarded once normalized.
type RawRecord struct {
	Title          string
	Description    string
	DateText       string
	EndDateText    string
	VenueText      string
	VenueName      string
	VenueAddress   string
	PriceText      string
	Categories     []string
	Tags           []string
	EventURL       string
	ImageURL       string
	ImageURLs      []string
	Organizer      string
	AgeRestriction string
	Availability   string

	// Start is set when the adapter already has a structured timestamp, such
	// as a feed item's publication date.
	Start *time.Time

	Raw map[string]any
}
