package models

import (
	"testing"
	"time"
)

func TestPrice_Equal(t *testing.T) {
	ten := 10.0
	otherTen := 10.0
	twenty := 20.0

	tests := []struct {
		name string
		a    *Price
		b    *Price
		want bool
	}{
		{"both nil", nil, nil, true},
		{"one nil", &Price{Currency: "AUD"}, nil, false},
		{"same values different pointers", &Price{Min: &ten, Max: &ten, Currency: "AUD"}, &Price{Min: &otherTen, Max: &otherTen, Currency: "AUD"}, true},
		{"different max", &Price{Min: &ten, Max: &ten, Currency: "AUD"}, &Price{Min: &ten, Max: &twenty, Currency: "AUD"}, false},
		{"missing min", &Price{Max: &ten, Currency: "AUD"}, &Price{Min: &ten, Max: &ten, Currency: "AUD"}, false},
		{"free flag", &Price{IsFree: true, Currency: "AUD"}, &Price{Currency: "AUD"}, false},
		{"currency", &Price{IsFree: true, Currency: "AUD"}, &Price{IsFree: true, Currency: "USD"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Equal(tt.b); got != tt.want {
				t.Errorf("Equal() = %t, want %t", got, tt.want)
			}
		})
	}
}

func TestParseAvailability(t *testing.T) {
	tests := map[string]Availability{
		"available":   AvailabilityAvailable,
		"Sold Out":    AvailabilitySoldOut,
		"sold_out":    AvailabilitySoldOut,
		"Almost full": AvailabilityLimited,
		"waitlist":    AvailabilityWaitlist,
		"":            AvailabilityUnknown,
		"call venue":  AvailabilityUnknown,
	}

	for input, expected := range tests {
		if got := ParseAvailability(input); got != expected {
			t.Errorf("ParseAvailability(%q) = %q, want %q", input, got, expected)
		}
	}
}

func TestNormalizedEvent_IsPast(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	if !(&NormalizedEvent{DateTime: &past}).IsPast(now) {
		t.Error("expected event an hour ago to be past")
	}
	if (&NormalizedEvent{DateTime: &future}).IsPast(now) {
		t.Error("expected event in an hour not to be past")
	}
	if (&NormalizedEvent{}).IsPast(now) {
		t.Error("expected undated event not to be past")
	}
}
