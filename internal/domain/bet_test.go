package domain

import (
	"errors"
	"testing"
)

// TestRouletteBetValidate ensures each tagged variant checks only its
// own field and rejects out-of-range values.
func TestRouletteBetValidate(t *testing.T) {
	valid := []RouletteBet{
		{Kind: BetStraight, Number: 0},
		{Kind: BetStraight, Number: 36},
		{Kind: BetColor, Color: ColorRed},
		{Kind: BetColor, Color: ColorBlack},
		{Kind: BetParity, Parity: ParityOdd},
		{Kind: BetDozen, Dozen: 3},
	}
	for _, b := range valid {
		if err := b.Validate(); err != nil {
			t.Fatalf("Validate(%+v) = %v, want nil", b, err)
		}
	}

	invalid := []RouletteBet{
		{Kind: BetStraight, Number: 37},
		{Kind: BetStraight, Number: -1},
		{Kind: BetColor, Color: "green"},
		{Kind: BetParity},
		{Kind: BetDozen, Dozen: 4},
		{Kind: "split"},
		{},
	}
	for _, b := range invalid {
		if err := b.Validate(); !errors.Is(err, ErrInvalidRequest) {
			t.Fatalf("Validate(%+v) = %v, want %v", b, err, ErrInvalidRequest)
		}
	}
}

// TestDiceBetValidate ensures face and sum selections stay in range.
func TestDiceBetValidate(t *testing.T) {
	valid := []DiceBet{
		{Dice: 1, Selection: 1},
		{Dice: 1, Selection: 6},
		{Dice: 2, Selection: 2},
		{Dice: 2, Selection: 12},
	}
	for _, b := range valid {
		if err := b.Validate(); err != nil {
			t.Fatalf("Validate(%+v) = %v, want nil", b, err)
		}
	}

	invalid := []DiceBet{
		{Dice: 1, Selection: 0},
		{Dice: 1, Selection: 7},
		{Dice: 2, Selection: 1},
		{Dice: 2, Selection: 13},
		{Dice: 3, Selection: 3},
	}
	for _, b := range invalid {
		if err := b.Validate(); !errors.Is(err, ErrInvalidRequest) {
			t.Fatalf("Validate(%+v) = %v, want %v", b, err, ErrInvalidRequest)
		}
	}
}

// TestPocketColor spot-checks the wheel coloring.
func TestPocketColor(t *testing.T) {
	if got := PocketColor(0); got != "" {
		t.Fatalf("PocketColor(0) = %q, want empty", got)
	}
	if got := PocketColor(1); got != ColorRed {
		t.Fatalf("PocketColor(1) = %q, want red", got)
	}
	if got := PocketColor(17); got != ColorBlack {
		t.Fatalf("PocketColor(17) = %q, want black", got)
	}
	if got := PocketColor(36); got != ColorRed {
		t.Fatalf("PocketColor(36) = %q, want red", got)
	}

	reds := 0
	for n := 1; n <= 36; n++ {
		if PocketColor(n) == ColorRed {
			reds++
		}
	}
	if reds != 18 {
		t.Fatalf("expected 18 red pockets, got %d", reds)
	}
}

// TestParseRouletteBet covers the free-text command argument forms.
func TestParseRouletteBet(t *testing.T) {
	cases := []struct {
		in   string
		want RouletteBet
	}{
		{"17", RouletteBet{Kind: BetStraight, Number: 17}},
		{" 0 ", RouletteBet{Kind: BetStraight, Number: 0}},
		{"red", RouletteBet{Kind: BetColor, Color: ColorRed}},
		{"BLACK", RouletteBet{Kind: BetColor, Color: ColorBlack}},
		{"even", RouletteBet{Kind: BetParity, Parity: ParityEven}},
		{"odd", RouletteBet{Kind: BetParity, Parity: ParityOdd}},
		{"dozen1", RouletteBet{Kind: BetDozen, Dozen: 1}},
		{"dozen3", RouletteBet{Kind: BetDozen, Dozen: 3}},
	}
	for _, tc := range cases {
		got, err := ParseRouletteBet(tc.in)
		if err != nil {
			t.Fatalf("ParseRouletteBet(%q) error: %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("ParseRouletteBet(%q) = %+v, want %+v", tc.in, got, tc.want)
		}
	}

	for _, in := range []string{"", "green", "37", "-1", "dozen4", "1st"} {
		if _, err := ParseRouletteBet(in); !errors.Is(err, ErrInvalidRequest) {
			t.Fatalf("ParseRouletteBet(%q) = %v, want %v", in, err, ErrInvalidRequest)
		}
	}
}
