package domain

import (
	"strconv"
	"strings"
)

// RouletteBetKind selects which region of the wheel a bet covers.
type RouletteBetKind string

const (
	BetStraight RouletteBetKind = "straight"
	BetColor    RouletteBetKind = "color"
	BetParity   RouletteBetKind = "parity"
	BetDozen    RouletteBetKind = "dozen"
)

// Color represents a pocket color; zero has no color.
type Color string

const (
	ColorRed   Color = "red"
	ColorBlack Color = "black"
)

// Parity represents an even/odd bet; zero is neither.
type Parity string

const (
	ParityEven Parity = "even"
	ParityOdd  Parity = "odd"
)

// RouletteBet is a tagged bet variant. Exactly the field matching Kind
// is consulted; the caller chooses the variant explicitly.
type RouletteBet struct {
	Kind   RouletteBetKind `json:"kind"`
	Number int             `json:"number,omitempty"` // straight: 0-36
	Color  Color           `json:"color,omitempty"`
	Parity Parity          `json:"parity,omitempty"`
	Dozen  int             `json:"dozen,omitempty"` // 1: 1-12, 2: 13-24, 3: 25-36
}

// Validate checks the bet spec against its tagged variant.
func (b RouletteBet) Validate() error {
	switch b.Kind {
	case BetStraight:
		if b.Number < 0 || b.Number > 36 {
			return ErrInvalidRequest
		}
	case BetColor:
		if b.Color != ColorRed && b.Color != ColorBlack {
			return ErrInvalidRequest
		}
	case BetParity:
		if b.Parity != ParityEven && b.Parity != ParityOdd {
			return ErrInvalidRequest
		}
	case BetDozen:
		if b.Dozen < 1 || b.Dozen > 3 {
			return ErrInvalidRequest
		}
	default:
		return ErrInvalidRequest
	}
	return nil
}

// redPockets holds the red numbers of a European wheel.
var redPockets = map[int]bool{
	1: true, 3: true, 5: true, 7: true, 9: true, 12: true,
	14: true, 16: true, 18: true, 19: true, 21: true, 23: true,
	25: true, 27: true, 30: true, 32: true, 34: true, 36: true,
}

// PocketColor returns the color for a wheel pocket; zero returns "".
func PocketColor(n int) Color {
	if n == 0 {
		return ""
	}
	if redPockets[n] {
		return ColorRed
	}
	return ColorBlack
}

// ParseRouletteBet decodes the free-text bet argument of a chat
// command: a bare number is a straight bet, "red"/"black" a color bet,
// "even"/"odd" a parity bet, "dozen1".."dozen3" a dozen bet.
func ParseRouletteBet(text string) (RouletteBet, error) {
	arg := strings.ToLower(strings.TrimSpace(text))
	switch arg {
	case "red", "black":
		return RouletteBet{Kind: BetColor, Color: Color(arg)}, nil
	case "even", "odd":
		return RouletteBet{Kind: BetParity, Parity: Parity(arg)}, nil
	case "dozen1", "dozen2", "dozen3":
		d := int(arg[len(arg)-1] - '0')
		return RouletteBet{Kind: BetDozen, Dozen: d}, nil
	}
	n, err := strconv.Atoi(arg)
	if err != nil {
		return RouletteBet{}, ErrInvalidRequest
	}
	bet := RouletteBet{Kind: BetStraight, Number: n}
	if err := bet.Validate(); err != nil {
		return RouletteBet{}, err
	}
	return bet, nil
}

// DiceBet selects a value on one die or two dice. With one die the
// selection is an exact face; with two dice it is primarily a target sum
// and secondarily a partial match against either individual die.
type DiceBet struct {
	Dice      int `json:"dice"`      // 1 or 2
	Selection int `json:"selection"` // face 1-6, or sum 2-12
}

// Validate checks the dice bet spec.
func (b DiceBet) Validate() error {
	switch b.Dice {
	case 1:
		if b.Selection < 1 || b.Selection > 6 {
			return ErrInvalidRequest
		}
	case 2:
		if b.Selection < 2 || b.Selection > 12 {
			return ErrInvalidRequest
		}
	default:
		return ErrInvalidRequest
	}
	return nil
}
