package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Source adapter kinds.
const (
	SourceTypeStatic  = "static"  // plain HTTP fetch
	SourceTypeBrowser = "browser" // headless Chrome render
	SourceTypeFeed    = "feed"    // RSS 2.0 or Atom
)

// SourceConfig describes one configured event source.
type SourceConfig struct {
	Name    string `yaml:"name"`
	Type    string `yaml:"type"`
	BaseURL string `yaml:"base_url"`

	// Pages are listing pages, absolute or relative to BaseURL.
	Pages []string `yaml:"pages"`
	// FeedURL is used by feed sources instead of Pages.
	FeedURL string `yaml:"feed_url"`
	// WaitFor is the selector a browser fetch waits for before capturing HTML.
	WaitFor string `yaml:"wait_for"`
	// Profile names the built-in extraction profile for page sources.
	Profile   string        `yaml:"profile"`
	PageDelay time.Duration `yaml:"page_delay"`
	Disabled  bool          `yaml:"disabled"`
}

type sourcesFile struct {
	Sources []SourceConfig `yaml:"sources"`
}

// LoadSources reads a YAML source catalog. Disabled entries are dropped.
func LoadSources(path string) ([]SourceConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseSources(b)
}

// ParseSources decodes and validates a YAML source catalog.
func ParseSources(b []byte) ([]SourceConfig, error) {
	var f sourcesFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, err
	}
	if len(f.Sources) == 0 {
		return nil, errors.New("no sources defined")
	}

	seen := make(map[string]bool, len(f.Sources))
	sources := make([]SourceConfig, 0, len(f.Sources))
	for i, s := range f.Sources {
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("source %d: %w", i, err)
		}
		key := strings.ToLower(s.Name)
		if seen[key] {
			return nil, fmt.Errorf("source %d: duplicate name %q", i, s.Name)
		}
		seen[key] = true
		if s.Disabled {
			continue
		}
		sources = append(sources, s)
	}
	return sources, nil
}

// Validate checks that the entry has what its adapter kind needs.
func (s SourceConfig) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return errors.New("name is required")
	}
	if s.BaseURL == "" {
		return fmt.Errorf("%s: base_url is required", s.Name)
	}
	if s.PageDelay < 0 {
		return fmt.Errorf("%s: page_delay must not be negative", s.Name)
	}
	switch s.Type {
	case SourceTypeStatic, SourceTypeBrowser:
		if len(s.Pages) == 0 {
			return fmt.Errorf("%s: at least one page is required", s.Name)
		}
		if s.Profile == "" {
			return fmt.Errorf("%s: profile is required", s.Name)
		}
	case SourceTypeFeed:
		if s.FeedURL == "" {
			return fmt.Errorf("%s: feed_url is required", s.Name)
		}
	default:
		return fmt.Errorf("%s: unknown type %q", s.Name, s.Type)
	}
	return nil
}

// DefaultSources returns the built-in Sydney source catalog, in run order.
func DefaultSources() []SourceConfig {
	return []SourceConfig{
		{
			Name:    "Eventbrite",
			Type:    SourceTypeBrowser,
			BaseURL: "https://www.eventbrite.com.au",
			Pages: []string{
				"/d/au--sydney/events/",
				"/d/au--sydney/events/?page=2",
				"/d/au--sydney/music/",
				"/d/au--sydney/arts/",
			},
			WaitFor:   ".event-card",
			Profile:   "eventbrite",
			PageDelay: 2 * time.Second,
		},
		{
			Name:    "Sydney Today",
			Type:    SourceTypeStatic,
			BaseURL: "https://www.sydneytoday.com",
			Pages: []string{
				"/events",
				"/whats-on",
			},
			Profile:   "sydneytoday",
			PageDelay: time.Second,
		},
		{
			Name:    "Time Out Sydney",
			Type:    SourceTypeBrowser,
			BaseURL: "https://www.timeout.com",
			Pages: []string{
				"/sydney/things-to-do",
				"/sydney/music",
				"/sydney/art",
				"/sydney/theatre",
			},
			WaitFor:   ".card, article",
			Profile:   "timeout",
			PageDelay: 2 * time.Second,
		},
		{
			Name:    "Sydney Events RSS",
			Type:    SourceTypeFeed,
			BaseURL: "https://www.eventbrite.com.au",
			FeedURL: "https://www.eventbrite.com.au/d/au--sydney/events/rss/",
		},
	}
}
