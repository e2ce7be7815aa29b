package ingestion

import (
	"testing"
	"time"
)

func TestParseMonthDayYear(t *testing.T) {
	sydney, err := time.LoadLocation("Australia/Sydney")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}

	tests := []struct {
		name string
		in   string
		want time.Time
	}{
		{"with time", "Mar 15, 2026 7:00 PM", time.Date(2026, 3, 15, 19, 0, 0, 0, sydney)},
		{"zero width space before meridiem", "Mar 15, 2026 7:00\u200bPM", time.Date(2026, 3, 15, 19, 0, 0, 0, sydney)},
		{"weekday prefix", "Sat, Mar 15, 2026", time.Date(2026, 3, 15, 0, 0, 0, 0, sydney)},
		{"full month ordinal", "Saturday, March 21st 2026 10:30 AM", time.Date(2026, 3, 21, 10, 30, 0, 0, sydney)},
		{"noon", "Apr 4, 2026 12:00 PM", time.Date(2026, 4, 4, 12, 0, 0, 0, sydney)},
		{"midnight", "Apr 4, 2026 12:15 AM", time.Date(2026, 4, 4, 0, 15, 0, 0, sydney)},
		{"short meridiem", "Apr 4, 2026 7pm", time.Date(2026, 4, 4, 19, 0, 0, 0, sydney)},
		{"trailing count is not a time", "Apr 4, 2026 + 3 more", time.Date(2026, 4, 4, 0, 0, 0, 0, sydney)},
		{"iso fallback", "2026-05-01T18:30:00+10:00", time.Date(2026, 5, 1, 18, 30, 0, 0, sydney)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseMonthDayYear(tt.in, sydney)
			if got == nil {
				t.Fatalf("ParseMonthDayYear(%q) = nil, want %v", tt.in, tt.want)
			}
			if !got.Equal(tt.want) {
				t.Errorf("ParseMonthDayYear(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseDayMonthYear(t *testing.T) {
	loc := time.UTC

	tests := []struct {
		name string
		in   string
		want time.Time
	}{
		{"ordinal with time", "15th March 2026 7:00 PM", time.Date(2026, 3, 15, 19, 0, 0, 0, loc)},
		{"abbreviated", "Sat 4 Apr 2026", time.Date(2026, 4, 4, 0, 0, 0, 0, loc)},
		{"range picks first full date", "Until 30 June 2026", time.Date(2026, 6, 30, 0, 0, 0, 0, loc)},
		{"twenty four hour", "1 May 2026, 19:30", time.Date(2026, 5, 1, 19, 30, 0, 0, loc)},
		{"sept", "2 Sept 2026", time.Date(2026, 9, 2, 0, 0, 0, 0, loc)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseDayMonthYear(tt.in, loc)
			if got == nil {
				t.Fatalf("ParseDayMonthYear(%q) = nil, want %v", tt.in, tt.want)
			}
			if !got.Equal(tt.want) {
				t.Errorf("ParseDayMonthYear(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseFlexible(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want time.Time
	}{
		{"rfc1123z", "Sun, 15 Mar 2026 09:00:00 +0000", time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC)},
		{"rfc3339", "2026-03-15T09:00:00Z", time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC)},
		{"single digit day rss", "Sun, 5 Apr 2026 09:00:00 +0000", time.Date(2026, 4, 5, 9, 0, 0, 0, time.UTC)},
		{"iso date", "2026-03-15", time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)},
		{"month first text", "March 15, 2026", time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)},
		{"day first text", "15 March 2026", time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseFlexible(tt.in, time.UTC)
			if got == nil {
				t.Fatalf("ParseFlexible(%q) = nil, want %v", tt.in, tt.want)
			}
			if !got.Equal(tt.want) {
				t.Errorf("ParseFlexible(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestDateParsers_RejectUnparseable(t *testing.T) {
	inputs := []string{
		"",
		"   ",
		"TBA",
		"Every Saturday",
		"Mar 15, 26",         // two-digit year
		"Mar 15, 1999",       // before 2000
		"Mar 15, 2150",       // after 2100
		"Feb 30, 2026",       // impossible day
		"Marathon 15, 2026",  // not a month
		"15 Smarch 2026",     // not a month
		"1999-12-31",         // ISO but out of range
		"Saturday • 7:00 PM", // no date at all
	}

	parsers := map[string]DateParser{
		"month-day-year": ParseMonthDayYear,
		"day-month-year": ParseDayMonthYear,
		"flexible":       ParseFlexible,
	}

	for name, parse := range parsers {
		for _, in := range inputs {
			if got := parse(in, time.UTC); got != nil {
				t.Errorf("%s(%q) = %v, want nil", name, in, got)
			}
		}
	}
}

func TestTimeOfDay(t *testing.T) {
	tests := []struct {
		in           string
		hour, minute int
	}{
		{" 7:00 PM", 19, 0},
		{", 19:45", 19, 45},
		{" 12 am", 0, 0},
		{" 9.30pm", 21, 30},
		{" - 3 more dates", 0, 0},
		{"", 0, 0},
	}
	for _, tt := range tests {
		h, m := timeOfDay(tt.in)
		if h != tt.hour || m != tt.minute {
			t.Errorf("timeOfDay(%q) = %d:%02d, want %d:%02d", tt.in, h, m, tt.hour, tt.minute)
		}
	}
}
