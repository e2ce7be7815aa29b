package ingestion

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DateParser turns a source's free-text date into a time in loc. It returns
// nil when the text cannot be understood.
type DateParser func(text string, loc *time.Location) *time.Time

const (
	minYear = 2000
	maxYear = 2100
)

var (
	// "Mar 15, 2026", "Saturday, March 15th 2026"
	monthDayYearPattern = regexp.MustCompile(`(?i)\b([a-z]{3,9})\.?\s+(\d{1,2})(?:st|nd|rd|th)?[,\s]+(\d{4})\b`)

	// "15th March 2026", "Sat 15 Mar, 2026"
	dayMonthYearPattern = regexp.MustCompile(`(?i)\b(\d{1,2})(?:st|nd|rd|th)?\s+([a-z]{3,9})\.?,?\s+(\d{4})\b`)

	// Time of day directly following a matched date: "7:00 PM", "7.30pm", "19:30".
	timeOfDayPattern = regexp.MustCompile(`(?i)^\D{0,6}?(\d{1,2})(?:[:.](\d{2}))?\s*([ap])?\.?m?\b`)

	// Layouts tried by ParseFlexible before the free-text patterns.
	flexibleLayouts = []string{
		time.RFC3339,
		time.RFC1123Z,
		time.RFC1123,
		"Mon, 2 Jan 2006 15:04:05 -0700",
		"Mon, 2 Jan 2006 15:04:05 MST",
		time.RFC822Z,
		time.RFC822,
		"2006-01-02T15:04:05",
		"2006-01-02T15:04",
		"2006-01-02 15:04:05",
		"2006-01-02",
	}

	zeroWidth = strings.NewReplacer("\u200b", "", "\u200c", "", "\u200d", "", "\ufeff", "")
)

var months = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

// ParseMonthDayYear understands month-first dates such as
// "Sat, Mar 15, 2026 7:00 PM", falling back to ParseFlexible.
func ParseMonthDayYear(text string, loc *time.Location) *time.Time {
	text = cleanDateText(text)
	if text == "" {
		return nil
	}
	if t := matchMonthDayYear(text, loc); t != nil {
		return t
	}
	return ParseFlexible(text, loc)
}

// ParseDayMonthYear understands day-first dates such as
// "15th March 2026 7:00 PM", falling back to ParseFlexible.
func ParseDayMonthYear(text string, loc *time.Location) *time.Time {
	text = cleanDateText(text)
	if text == "" {
		return nil
	}
	if t := matchDayMonthYear(text, loc); t != nil {
		return t
	}
	return ParseFlexible(text, loc)
}

// ParseFlexible tries machine formats (RFC 3339, RFC 1123, ISO dates) and
// then both free-text orders.
func ParseFlexible(text string, loc *time.Location) *time.Time {
	text = cleanDateText(text)
	if text == "" {
		return nil
	}
	if loc == nil {
		loc = time.UTC
	}

	for _, layout := range flexibleLayouts {
		if t, err := time.ParseInLocation(layout, text, loc); err == nil {
			if !yearInRange(t.Year()) {
				return nil
			}
			return &t
		}
	}

	if t := matchMonthDayYear(text, loc); t != nil {
		return t
	}
	return matchDayMonthYear(text, loc)
}

func matchMonthDayYear(text string, loc *time.Location) *time.Time {
	for _, idx := range monthDayYearPattern.FindAllStringSubmatchIndex(text, -1) {
		group := func(n int) string { return text[idx[2*n]:idx[2*n+1]] }
		if t := buildDate(group(3), group(1), group(2), text[idx[1]:], loc); t != nil {
			return t
		}
	}
	return nil
}

func matchDayMonthYear(text string, loc *time.Location) *time.Time {
	for _, idx := range dayMonthYearPattern.FindAllStringSubmatchIndex(text, -1) {
		group := func(n int) string { return text[idx[2*n]:idx[2*n+1]] }
		if t := buildDate(group(3), group(2), group(1), text[idx[1]:], loc); t != nil {
			return t
		}
	}
	return nil
}

// buildDate validates the captured parts and assembles a time, reading a
// time of day from the start of rest when one is present. Unknown month
// names, impossible days and out-of-range years yield nil.
func buildDate(yearText, monthText, dayText, rest string, loc *time.Location) *time.Time {
	if loc == nil {
		loc = time.UTC
	}

	month, ok := lookupMonth(monthText)
	if !ok {
		return nil
	}
	year, err := strconv.Atoi(yearText)
	if err != nil || !yearInRange(year) {
		return nil
	}
	day, err := strconv.Atoi(dayText)
	if err != nil || day < 1 || day > 31 {
		return nil
	}

	hour, minute := timeOfDay(rest)
	t := time.Date(year, month, day, hour, minute, 0, 0, loc)
	if t.Day() != day || t.Month() != month {
		return nil
	}
	return &t
}

// timeOfDay reads "7:00 PM", "7pm" or "19:30" from the start of text. A bare
// number without minutes or a meridiem is not a time.
func timeOfDay(text string) (hour, minute int) {
	m := timeOfDayPattern.FindStringSubmatch(text)
	if m == nil || (m[2] == "" && m[3] == "") {
		return 0, 0
	}
	hour, _ = strconv.Atoi(m[1])
	if m[2] != "" {
		minute, _ = strconv.Atoi(m[2])
	}
	switch strings.ToLower(m[3]) {
	case "p":
		if hour < 12 {
			hour += 12
		}
	case "a":
		if hour == 12 {
			hour = 0
		}
	}
	if hour > 23 || minute > 59 {
		return 0, 0
	}
	return hour, minute
}

func lookupMonth(name string) (time.Month, bool) {
	name = strings.ToLower(name)
	if len(name) < 3 {
		return 0, false
	}
	m, ok := months[name[:3]]
	if !ok {
		return 0, false
	}
	// Reject words that merely start like a month ("marathon", "mayor").
	full := strings.ToLower(m.String())
	if len(name) > 3 && !strings.HasPrefix(full, name) && name != "sept" {
		return 0, false
	}
	return m, true
}

func yearInRange(year int) bool {
	return year >= minYear && year <= maxYear
}

func cleanDateText(text string) string {
	return strings.Join(strings.Fields(zeroWidth.Replace(text)), " ")
}
