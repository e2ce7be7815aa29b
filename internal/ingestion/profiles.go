package ingestion

import (
	"fmt"
	"strings"
)

// Profile couples a card layout with the way its fields are interpreted.
type Profile struct {
	Cards     CardSpec
	ParseDate DateParser
	// VenueSeparator splits "Venue · Street, Suburb" style venue text.
	VenueSeparator string
}

var profiles = map[string]Profile{
	"eventbrite": {
		Cards: CardSpec{
			Item: `.event-card, [data-testid="event-card"]`,
			Title: Texts(
				`[data-testid="event-card-title"]`, ".event-card__title", "h3", "h2",
			),
			Description: Texts(
				`[data-testid="event-card-description"]`, ".event-card__description", ".description", "p",
			),
			Date: Texts(
				`[data-testid="event-card-date"]`, ".event-card__date", ".date", ".event-date",
				`[class*="date"]`, `[class*="time"]`, "time", "[datetime]",
				".event-card__time", ".event-time", ".time-badge", ".text-tag",
			),
			Venue: Texts(
				`[data-testid="event-card-venue"]`, ".event-card__venue", ".venue",
				`[class*="venue"]`, `[class*="location"]`, ".address",
			),
			Price: Texts(
				`[data-testid="event-card-price"]`, ".event-card__price", ".price",
				`[class*="price"]`, `[class*="cost"]`,
			),
			Category: Texts(
				`[data-testid="event-card-category"]`, ".event-card__category", ".category",
				`[class*="category"]`, `[class*="tag"]`,
			),
			URL:        Strategies{Attr("a[href]", "href")},
			Image:      Strategies{Attr("img[src]", "src"), Attr("img[data-src]", "data-src")},
			RequireURL: true,
		},
		ParseDate:      ParseMonthDayYear,
		VenueSeparator: "·",
	},
	"sydneytoday": {
		Cards: CardSpec{
			Item:        ".event-item, .event-card, article",
			Title:       Texts("h2", "h3", ".event-title", ".title"),
			Description: Texts(".event-description", ".description", "p"),
			Date:        Texts(".event-date", ".date", ".time"),
			Venue:       Texts(".event-venue", ".venue", ".location"),
			Price:       Texts(".event-price", ".price"),
			URL:         Strategies{Attr("a[href]", "href")},
			Image:       Strategies{Attr("img[src]", "src"), Attr("img[data-src]", "data-src")},
		},
		ParseDate:      ParseFlexible,
		VenueSeparator: ",",
	},
	"timeout": {
		Cards: CardSpec{
			Item:        ".card, article, .event-item",
			Title:       Texts("h3", "h4", ".card-title", ".title"),
			Description: Texts(".description", ".card-description", "p"),
			Date: Strategies{
				Text(".date"), Text(".time"), Text(".card-date"),
				Attr("time[datetime]", "datetime"), Attr("[datetime]", "datetime"), Text("time"),
			},
			Venue:          Texts(".location", ".venue", ".card-venue", ".address"),
			Category:       Texts(".category", ".tag", `[class*="tag"]`),
			URL:            Strategies{Attr("a[href]", "href")},
			Image:          Strategies{Attr("img[src]", "src"), Attr("img[data-src]", "data-src")},
			MinTitleLength: 5,
		},
		ParseDate:      ParseDayMonthYear,
		VenueSeparator: ",",
	},
}

// LookupProfile returns a built-in extraction profile by name.
func LookupProfile(name string) (Profile, error) {
	p, ok := profiles[strings.ToLower(name)]
	if !ok {
		return Profile{}, fmt.Errorf("unknown extraction profile %q", name)
	}
	return p, nil
}
