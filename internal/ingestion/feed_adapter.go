package ingestion

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/html/charset"

	"github.com/STRATINT/citypulse/internal/models"
)

// ErrParseFallback is returned when a feed cannot be parsed even after bare
// ampersands were escaped.
var ErrParseFallback = errors.New("feed unparseable after ampersand repair")

var (
	feedImagePattern = regexp.MustCompile(`(?i)src=["']([^"']+\.(?:jpg|jpeg|png|webp))["']`)
	feedVenuePattern = regexp.MustCompile(`(?i)(?:venue|location|where)[:\s]+([^.]+)`)
)

// feedDocument accepts either an RSS 2.0 <rss> or an Atom <feed> root.
type feedDocument struct {
	XMLName xml.Name
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
	Entries []atomEntry `xml:"entry"`
}

type rssItem struct {
	Title       string   `xml:"title"`
	Link        string   `xml:"link"`
	Description string   `xml:"description"`
	PubDate     string   `xml:"pubDate"`
	GUID        string   `xml:"guid"`
	Categories  []string `xml:"category"`
	Enclosure   struct {
		URL  string `xml:"url,attr"`
		Type string `xml:"type,attr"`
	} `xml:"enclosure"`
	Thumbnail struct {
		URL string `xml:"url,attr"`
	} `xml:"http://search.yahoo.com/mrss/ thumbnail"`
}

type atomEntry struct {
	Title string `xml:"title"`
	Links []struct {
		Href string `xml:"href,attr"`
		Rel  string `xml:"rel,attr"`
	} `xml:"link"`
	Summary    string `xml:"summary"`
	Content    string `xml:"content"`
	Published  string `xml:"published"`
	Updated    string `xml:"updated"`
	ID         string `xml:"id"`
	Categories []struct {
		Term string `xml:"term,attr"`
	} `xml:"category"`
}

// feedItem is the common shape of RSS items and Atom entries.
type feedItem struct {
	Title        string
	Link         string
	Description  string
	Published    string
	Categories   []string
	ThumbnailURL string
	EnclosureURL string
}

// FeedAdapter reads events from an RSS 2.0 or Atom feed.
type FeedAdapter struct {
	baseAdapter
	feedURL string
	fetcher Fetcher
}

// NewFeedAdapter creates a feed adapter. Feed descriptions are HTML, so they
// are stripped and clipped during normalization.
func NewFeedAdapter(name, baseURL, feedURL string, fetcher Fetcher, deps AdapterDeps) *FeedAdapter {
	rules := NormalizeRules{
		ParseDate:      ParseFlexible,
		StripHTML:      true,
		MaxDescription: feedDescriptionLimit,
	}
	return &FeedAdapter{
		baseAdapter: newBaseAdapter(name, baseURL, rules, deps),
		feedURL:     feedURL,
		fetcher:     fetcher,
	}
}

// FeedURL returns the feed location.
func (a *FeedAdapter) FeedURL() string {
	return a.feedURL
}

// Scrape fetches the feed and reconciles its items.
func (a *FeedAdapter) Scrape(ctx context.Context) models.ScrapeResult {
	return a.run(ctx, func(ctx context.Context, run *sourceRun) error {
		a.logger.Info("fetching feed", "url", a.feedURL)

		body, err := a.fetcher.Fetch(ctx, a.feedURL)
		if err != nil {
			a.logger.Error("failed to fetch feed", "url", a.feedURL, "error", err)
			a.recordError(ctx, errorTypeFor(err), a.feedURL, err.Error(), nil)
			return err
		}

		items, err := a.parse(body)
		if err != nil {
			a.recordError(ctx, models.ErrorTypeFeedParseFailed, a.feedURL, err.Error(), map[string]interface{}{
				"bytes": len(body),
			})
			return err
		}

		skipped := 0
		for _, item := range items {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			raw, ok := a.toRecord(item)
			if !ok {
				skipped++
				continue
			}
			a.ingest(ctx, run, a.feedURL, raw)
		}
		if skipped > 0 {
			a.logger.Debug("skipped feed items without title or link", "skipped", skipped)
		}
		return nil
	})
}

// parse decodes the feed, retrying once with bare ampersands escaped.
func (a *FeedAdapter) parse(body []byte) ([]feedItem, error) {
	items, err := parseFeed(body)
	if err == nil {
		return items, nil
	}
	a.logger.Warn("feed parse failed, retrying with escaped ampersands", "url", a.feedURL, "error", err)

	items, retryErr := parseFeed(escapeBareAmpersands(body))
	if retryErr != nil {
		a.logger.Error("feed parse failed after ampersand repair", "url", a.feedURL, "error", retryErr)
		return nil, fmt.Errorf("%w: %v", ErrParseFallback, retryErr)
	}
	return items, nil
}

func parseFeed(body []byte) ([]feedItem, error) {
	dec := xml.NewDecoder(bytes.NewReader(body))
	dec.CharsetReader = charset.NewReaderLabel
	dec.Entity = xml.HTMLEntity
	dec.Strict = true

	var doc feedDocument
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}

	switch doc.XMLName.Local {
	case "rss":
		items := make([]feedItem, 0, len(doc.Channel.Items))
		for _, it := range doc.Channel.Items {
			link := strings.TrimSpace(it.Link)
			if link == "" && isHTTPURL(it.GUID) {
				link = strings.TrimSpace(it.GUID)
			}
			items = append(items, feedItem{
				Title:        it.Title,
				Link:         link,
				Description:  it.Description,
				Published:    it.PubDate,
				Categories:   it.Categories,
				ThumbnailURL: it.Thumbnail.URL,
				EnclosureURL: it.Enclosure.URL,
			})
		}
		return items, nil
	case "feed":
		items := make([]feedItem, 0, len(doc.Entries))
		for _, e := range doc.Entries {
			item := feedItem{
				Title:       e.Title,
				Description: e.Summary,
				Published:   e.Published,
			}
			if item.Description == "" {
				item.Description = e.Content
			}
			if item.Published == "" {
				item.Published = e.Updated
			}
			for _, l := range e.Links {
				if l.Rel == "" || l.Rel == "alternate" {
					item.Link = strings.TrimSpace(l.Href)
					break
				}
			}
			if item.Link == "" && isHTTPURL(e.ID) {
				item.Link = strings.TrimSpace(e.ID)
			}
			for _, c := range e.Categories {
				item.Categories = append(item.Categories, c.Term)
			}
			items = append(items, item)
		}
		return items, nil
	default:
		return nil, fmt.Errorf("unsupported feed root <%s>", doc.XMLName.Local)
	}
}

func (a *FeedAdapter) toRecord(item feedItem) (models.RawRecord, bool) {
	title := collapseSpace(StripHTML(item.Title))
	if title == "" || !isHTTPURL(item.Link) {
		return models.RawRecord{}, false
	}

	text := collapseSpace(StripHTML(item.Description))
	rec := models.RawRecord{
		Title:       title,
		Description: item.Description,
		Categories:  item.Categories,
		EventURL:    item.Link,
		ImageURL:    feedImage(item),
		Start:       ParseFlexible(item.Published, a.deps.Normalizer.Location),
		Raw: map[string]any{
			"title":       item.Title,
			"link":        item.Link,
			"description": item.Description,
			"pubDate":     item.Published,
			"category":    item.Categories,
		},
	}
	if m := feedVenuePattern.FindStringSubmatch(text); m != nil {
		rec.VenueName = strings.TrimSpace(m[1])
	}
	return rec, true
}

// feedImage prefers an image embedded in the description, then the media
// thumbnail, then the enclosure.
func feedImage(item feedItem) string {
	if m := feedImagePattern.FindStringSubmatch(item.Description); m != nil && isHTTPURL(m[1]) {
		return m[1]
	}
	if isHTTPURL(item.ThumbnailURL) {
		return item.ThumbnailURL
	}
	if isHTTPURL(item.EnclosureURL) {
		return item.EnclosureURL
	}
	return ""
}

var knownEntities = []string{"amp;", "lt;", "gt;", "quot;", "apos;", "nbsp;", "#"}

// escapeBareAmpersands rewrites "&" that does not start a known entity or a
// character reference as "&amp;".
func escapeBareAmpersands(body []byte) []byte {
	var out bytes.Buffer
	out.Grow(len(body) + 64)
	for i := 0; i < len(body); i++ {
		if body[i] != '&' {
			out.WriteByte(body[i])
			continue
		}
		rest := body[i+1:]
		known := false
		for _, e := range knownEntities {
			if bytes.HasPrefix(rest, []byte(e)) {
				known = true
				break
			}
		}
		if known {
			out.WriteByte('&')
		} else {
			out.WriteString("&amp;")
		}
	}
	return out.Bytes()
}

func isHTTPURL(s string) bool {
	s = strings.TrimSpace(strings.ToLower(s))
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
