package ingestion

import (
	"sort"
	"strings"
)

// ActiveURLSet collects the event URLs one source run observed. Listing pages
// overlap (an event appears on both "all events" and "music"), so the set
// also counts repeats.
type ActiveURLSet struct {
	urls    map[string]struct{}
	repeats int
}

// NewActiveURLSet creates an empty set.
func NewActiveURLSet() *ActiveURLSet {
	return &ActiveURLSet{urls: make(map[string]struct{})}
}

// Add records url and reports whether it was new to this run.
func (s *ActiveURLSet) Add(url string) bool {
	url = strings.TrimSpace(url)
	if url == "" {
		return false
	}
	if _, ok := s.urls[url]; ok {
		s.repeats++
		return false
	}
	s.urls[url] = struct{}{}
	return true
}

// Len returns the number of distinct URLs.
func (s *ActiveURLSet) Len() int {
	return len(s.urls)
}

// Repeats returns how many additions were already present. Source runs
// report it as repeated_listings.
func (s *ActiveURLSet) Repeats() int {
	return s.repeats
}

// URLs returns the observed URLs in sorted order.
func (s *ActiveURLSet) URLs() []string {
	out := make([]string, 0, len(s.urls))
	for u := range s.urls {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}
