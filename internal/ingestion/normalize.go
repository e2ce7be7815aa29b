package ingestion

import (
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/STRATINT/citypulse/internal/models"
)

const feedDescriptionLimit = 500

// Normalizer converts raw source records into the canonical event shape,
// filling in locality defaults.
type Normalizer struct {
	City     string
	Currency string
	Location *time.Location
}

// NormalizeRules carries the per-source parts of normalization.
type NormalizeRules struct {
	ParseDate      DateParser
	VenueSeparator string
	// StripHTML treats the description as markup and keeps only its text.
	StripHTML bool
	// MaxDescription clips the description to this many runes when positive.
	MaxDescription int
}

// Normalize builds a NormalizedEvent from raw. It never fails: fields that
// cannot be interpreted are left empty.
func (n Normalizer) Normalize(identity models.SourceIdentity, raw models.RawRecord, rules NormalizeRules, now time.Time) models.NormalizedEvent {
	parse := rules.ParseDate
	if parse == nil {
		parse = ParseFlexible
	}

	description := raw.Description
	if rules.StripHTML {
		description = StripHTML(description)
	}
	description = clip(collapseSpace(description), rules.MaxDescription)

	ev := models.NormalizedEvent{
		Title:               collapseSpace(raw.Title),
		Description:         description,
		City:                n.City,
		Categories:          cleanList(raw.Categories),
		Tags:                cleanList(raw.Tags),
		ImageURL:            strings.TrimSpace(raw.ImageURL),
		ImageURLs:           cleanList(raw.ImageURLs),
		Price:               ParsePrice(raw.PriceText, n.Currency),
		Availability:        models.ParseAvailability(raw.Availability),
		Organizer:           collapseSpace(raw.Organizer),
		AgeRestriction:      collapseSpace(raw.AgeRestriction),
		Source:              identity,
		ScrapedFromSourceAt: now.UTC(),
		OriginalData:        raw.Raw,
	}
	if ev.Categories == nil {
		ev.Categories = []string{}
	}
	if ev.Tags == nil {
		ev.Tags = []string{}
	}
	if ev.ImageURLs == nil {
		ev.ImageURLs = []string{}
	}
	if ev.ImageURL != "" && len(ev.ImageURLs) == 0 {
		ev.ImageURLs = []string{ev.ImageURL}
	}

	if raw.Start != nil {
		t := *raw.Start
		ev.DateTime = &t
	} else {
		ev.DateTime = parse(raw.DateText, n.Location)
	}
	ev.EndDate = parse(raw.EndDateText, n.Location)

	ev.Venue = n.venue(raw, rules.VenueSeparator)
	return ev
}

func (n Normalizer) venue(raw models.RawRecord, separator string) models.Venue {
	v := models.Venue{
		Name:    collapseSpace(raw.VenueName),
		Address: collapseSpace(raw.VenueAddress),
		City:    n.City,
	}
	if v.Name != "" || raw.VenueText == "" {
		return v
	}

	if separator == "" {
		v.Name = collapseSpace(raw.VenueText)
		return v
	}
	parts := cleanList(strings.Split(raw.VenueText, separator))
	if len(parts) == 0 {
		return v
	}
	v.Name = parts[0]
	if v.Address == "" && len(parts) > 1 {
		v.Address = strings.Join(parts[1:], ", ")
	}
	return v
}

// StripHTML returns the text content of an HTML fragment with entities
// decoded.
func StripHTML(fragment string) string {
	if !strings.ContainsAny(fragment, "<&") {
		return fragment
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return fragment
	}
	return doc.Text()
}

func cleanList(items []string) []string {
	var out []string
	for _, item := range items {
		if item = collapseSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func clip(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return strings.TrimSpace(string(r[:limit]))
}
