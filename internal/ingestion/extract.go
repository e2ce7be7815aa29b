package ingestion

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/STRATINT/citypulse/internal/models"
)

// Strategy reads one field from a card: the first element matching Selector,
// either its text or, when Attr is set, that attribute.
type Strategy struct {
	Selector string
	Attr     string
}

// Strategies is an ordered fallback list; the first non-empty value wins.
type Strategies []Strategy

// Text returns a strategy reading element text.
func Text(selector string) Strategy {
	return Strategy{Selector: selector}
}

// Attr returns a strategy reading an attribute.
func Attr(selector, attr string) Strategy {
	return Strategy{Selector: selector, Attr: attr}
}

// Texts builds a text strategy per selector.
func Texts(selectors ...string) Strategies {
	out := make(Strategies, len(selectors))
	for i, s := range selectors {
		out[i] = Text(s)
	}
	return out
}

func (ss Strategies) first(card *goquery.Selection) string {
	for _, s := range ss {
		sel := card.Find(s.Selector).First()
		if sel.Length() == 0 {
			continue
		}
		var v string
		if s.Attr != "" {
			v, _ = sel.Attr(s.Attr)
		} else {
			v = sel.Text()
		}
		if v = collapseSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func (ss Strategies) all(card *goquery.Selection) []string {
	var out []string
	for _, s := range ss {
		card.Find(s.Selector).Each(func(_ int, sel *goquery.Selection) {
			v := sel.Text()
			if s.Attr != "" {
				v, _ = sel.Attr(s.Attr)
			}
			if v = collapseSpace(v); v != "" {
				out = append(out, v)
			}
		})
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

// CardSpec declares how listing cards are found and read.
type CardSpec struct {
	Item        string
	Title       Strategies
	Description Strategies
	Date        Strategies
	Venue       Strategies
	Price       Strategies
	Category    Strategies
	URL         Strategies
	Image       Strategies

	MinTitleLength int
	// RequireURL skips cards without a link instead of deriving one.
	RequireURL bool
}

// Extract reads every card of an HTML listing page. pageURL resolves
// relative links. Cards without a usable title, or without a link when one is
// required, are skipped and counted in skipped.
func (c CardSpec) Extract(body []byte, pageURL string) (records []models.RawRecord, skipped int, err error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("parse html: %w", err)
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, 0, fmt.Errorf("parse page url: %w", err)
	}

	doc.Find(c.Item).Each(func(_ int, card *goquery.Selection) {
		rec, ok := c.extractCard(card, base)
		if !ok {
			skipped++
			return
		}
		records = append(records, rec)
	})
	return records, skipped, nil
}

func (c CardSpec) extractCard(card *goquery.Selection, base *url.URL) (models.RawRecord, bool) {
	title := c.Title.first(card)
	if title == "" || len([]rune(title)) < c.MinTitleLength {
		return models.RawRecord{}, false
	}

	eventURL := resolveURL(base, c.URL.first(card))
	if eventURL == "" {
		if c.RequireURL {
			return models.RawRecord{}, false
		}
		eventURL = fallbackEventURL(base, title)
	}

	rec := models.RawRecord{
		Title:       title,
		Description: c.Description.first(card),
		DateText:    c.Date.first(card),
		VenueText:   c.Venue.first(card),
		PriceText:   c.Price.first(card),
		Categories:  c.Category.all(card),
		EventURL:    eventURL,
		ImageURL:    resolveURL(base, c.Image.first(card)),
	}
	rec.Raw = map[string]any{
		"dateTimeText": rec.DateText,
		"venueText":    rec.VenueText,
		"priceText":    rec.PriceText,
	}
	return rec, true
}

// resolveURL makes ref absolute against base, keeping only http(s) links.
func resolveURL(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "#") || strings.HasPrefix(strings.ToLower(ref), "javascript:") {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	if base != nil {
		u = base.ResolveReference(u)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	return u.String()
}

// fallbackEventURL derives a stable identity for a card that has no link of
// its own, so repeated runs reconcile against the same catalog entry.
func fallbackEventURL(base *url.URL, title string) string {
	u := *base
	u.Fragment = strings.ToLower(strings.Join(strings.Fields(title), "-"))
	return u.String()
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
