package domain

import (
	"testing"
	"time"
)

// TestParseArrestDuration ensures compound tokens, clamping, and the
// fallback default all resolve correctly.
func TestParseArrestDuration(t *testing.T) {
	tcs := []struct {
		name string
		text string
		want time.Duration
	}{
		{"bare minutes", "90", 90 * time.Minute},
		{"hours and minutes", "1h30m", 90 * time.Minute},
		{"spaced tokens", "2h 15m", 135 * time.Minute},
		{"days clamp to max", "2d", 1440 * time.Minute},
		{"spelled out unit", "3 hours", 3 * time.Hour},
		{"zero falls back", "0", DefaultArrestDuration},
		{"mixed text around tokens", "lock him up for 45m please", 45 * time.Minute},
		{"unparseable falls back", "for a while", DefaultArrestDuration},
		{"empty falls back", "", DefaultArrestDuration},
		{"max boundary", "24h", 1440 * time.Minute},
		{"over a day clamps", "25h", 1440 * time.Minute},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			got := ParseArrestDuration(tc.text)
			if got != tc.want {
				t.Fatalf("ParseArrestDuration(%q) = %v, want %v", tc.text, got, tc.want)
			}
		})
	}
}

// TestArrestRecordActive ensures release time is evaluated lazily
// against the given clock.
func TestArrestRecordActive(t *testing.T) {
	now := time.Now()
	rec := &ArrestRecord{AccountID: "a1", OfficerID: "o1", ReleaseAt: now.Add(time.Hour)}
	if !rec.Active(now) {
		t.Fatal("expected arrest with future release to be active")
	}
	if rec.Active(now.Add(2 * time.Hour)) {
		t.Fatal("expected arrest with past release to be inactive")
	}
}
