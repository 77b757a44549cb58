package domain

import (
	"errors"
	"testing"
	"time"
)

// TestParseCoins ensures exact parsing of large amounts and rejection of
// malformed input.
func TestParseCoins(t *testing.T) {
	v, err := ParseCoins("123456789012345678901234567890")
	if err != nil {
		t.Fatalf("ParseCoins returned error: %v", err)
	}
	if v.String() != "123456789012345678901234567890" {
		t.Fatalf("unexpected value: %s", v)
	}

	if _, err := ParseCoins("12.5"); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("ParseCoins(12.5) error = %v, want %v", err, ErrInvalidAmount)
	}
	if _, err := ParseCoins("coins"); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("ParseCoins(coins) error = %v, want %v", err, ErrInvalidAmount)
	}
}

// TestValidAmount ensures only strictly positive amounts pass.
func TestValidAmount(t *testing.T) {
	if !ValidAmount(Coins(1)) {
		t.Fatal("expected 1 to be valid")
	}
	if ValidAmount(Coins(0)) {
		t.Fatal("expected 0 to be invalid")
	}
	if ValidAmount(Coins(-5)) {
		t.Fatal("expected -5 to be invalid")
	}
	if ValidAmount(nil) {
		t.Fatal("expected nil to be invalid")
	}
}

// TestPercentOf ensures theft spoils round down.
func TestPercentOf(t *testing.T) {
	if got := PercentOf(Coins(1000), 10); got.Cmp(Coins(100)) != 0 {
		t.Fatalf("PercentOf(1000, 10) = %s, want 100", got)
	}
	if got := PercentOf(Coins(9), 10); got.Sign() != 0 {
		t.Fatalf("PercentOf(9, 10) = %s, want 0", got)
	}
	if got := PercentOf(Coins(15), 10); got.Cmp(Coins(1)) != 0 {
		t.Fatalf("PercentOf(15, 10) = %s, want 1", got)
	}
}

// TestWindowExpired ensures elapsed-time windows reset on elapsed time,
// not calendar boundaries.
func TestWindowExpired(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	if !WindowExpired(time.Time{}, now, 24*time.Hour) {
		t.Fatal("zero start should count as expired")
	}
	if WindowExpired(now.Add(-23*time.Hour), now, 24*time.Hour) {
		t.Fatal("23h elapsed should not expire a 24h window")
	}
	if !WindowExpired(now.Add(-24*time.Hour), now, 24*time.Hour) {
		t.Fatal("24h elapsed should expire a 24h window")
	}
}

// TestCooldownErrorMatchesSentinel ensures typed cooldown errors satisfy
// errors.Is against the sentinel.
func TestCooldownErrorMatchesSentinel(t *testing.T) {
	err := &CooldownError{Action: "arrest", Remaining: 90 * time.Minute}
	if !errors.Is(err, ErrCooldownActive) {
		t.Fatal("CooldownError should match ErrCooldownActive")
	}
	if !IsDomainError(err) {
		t.Fatal("CooldownError should classify as a domain error")
	}
	if IsDomainError(errors.New("connection refused")) {
		t.Fatal("infrastructure errors should not classify as domain errors")
	}
}
