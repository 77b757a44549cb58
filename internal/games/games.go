// Package games implements the roulette and dice payout engines. Both
// resolvers are pure functions of (bet, amount, drawn outcome); the draw
// itself goes through an injectable Source so outcomes can be fixed in
// tests.
package games

import (
	crand "crypto/rand"
	"encoding/binary"
	"math/big"
	"math/rand"
	"sync"

	"github.com/chatcoins/internal/domain"
)

// Source draws uniform integers in [0, n).
type Source interface {
	Intn(n int) int
}

// lockedSource serializes access to a math/rand generator so the engine
// can be shared across request goroutines.
type lockedSource struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func (s *lockedSource) Intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Intn(n)
}

// NewSource returns the production randomness source, seeded once from
// crypto/rand. Draws are uniform and independent; cryptographic
// strength is not required here.
func NewSource() Source {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		// crypto/rand failing means the platform is broken; a zero
		// seed still yields a uniform sequence.
		return &lockedSource{rng: rand.New(rand.NewSource(0))}
	}
	seed := int64(binary.LittleEndian.Uint64(b[:]))
	return &lockedSource{rng: rand.New(rand.NewSource(seed))}
}

// Multipliers is the payout table. Values are total-return multipliers:
// a winning stake of 100 at ×36 pays out 3600 (stake included). They are
// deployment configuration, not rules of the game.
type Multipliers struct {
	Straight    int64
	Color       int64
	Parity      int64
	Dozen       int64
	DieExact    int64
	PairSum     int64
	PairPartial int64
}

// DefaultMultipliers returns the standard payout tiers.
func DefaultMultipliers() Multipliers {
	return Multipliers{
		Straight:    36,
		Color:       2,
		Parity:      2,
		Dozen:       3,
		DieExact:    6,
		PairSum:     12,
		PairPartial: 3,
	}
}

// RouletteResult captures one resolved spin.
type RouletteResult struct {
	Outcome int      `json:"outcome"`
	Color   string   `json:"color,omitempty"`
	Won     bool     `json:"won"`
	Payout  *big.Int `json:"payout"`
}

// SpinRoulette draws one pocket from the wheel and resolves the bet
// against it.
func SpinRoulette(src Source, bet domain.RouletteBet, amount *big.Int, m Multipliers) (RouletteResult, error) {
	if err := bet.Validate(); err != nil {
		return RouletteResult{}, err
	}
	return ResolveRoulette(bet, amount, src.Intn(37), m)
}

// ResolveRoulette resolves a bet against a fixed pocket outcome.
func ResolveRoulette(bet domain.RouletteBet, amount *big.Int, outcome int, m Multipliers) (RouletteResult, error) {
	if err := bet.Validate(); err != nil {
		return RouletteResult{}, err
	}
	if !domain.ValidAmount(amount) {
		return RouletteResult{}, domain.ErrInvalidAmount
	}

	var multiplier int64
	switch bet.Kind {
	case domain.BetStraight:
		if outcome == bet.Number {
			multiplier = m.Straight
		}
	case domain.BetColor:
		if domain.PocketColor(outcome) == bet.Color {
			multiplier = m.Color
		}
	case domain.BetParity:
		// zero is neither even nor odd on the wheel
		if outcome != 0 {
			parity := domain.ParityEven
			if outcome%2 == 1 {
				parity = domain.ParityOdd
			}
			if parity == bet.Parity {
				multiplier = m.Parity
			}
		}
	case domain.BetDozen:
		if outcome != 0 && (outcome-1)/12+1 == bet.Dozen {
			multiplier = m.Dozen
		}
	}

	result := RouletteResult{
		Outcome: outcome,
		Color:   string(domain.PocketColor(outcome)),
		Payout:  big.NewInt(0),
	}
	if multiplier > 0 {
		result.Won = true
		result.Payout = domain.MulCoins(amount, multiplier)
	}
	return result, nil
}

// DiceResult captures one resolved roll. Die2 is zero for single-die
// bets.
type DiceResult struct {
	Die1   int      `json:"die1"`
	Die2   int      `json:"die2,omitempty"`
	Won    bool     `json:"won"`
	Payout *big.Int `json:"payout"`
}

// RollDice draws the dice and resolves the bet against them.
func RollDice(src Source, bet domain.DiceBet, amount *big.Int, m Multipliers) (DiceResult, error) {
	if err := bet.Validate(); err != nil {
		return DiceResult{}, err
	}
	die1 := src.Intn(6) + 1
	die2 := 0
	if bet.Dice == 2 {
		die2 = src.Intn(6) + 1
	}
	return ResolveDice(bet, amount, die1, die2, m)
}

// ResolveDice resolves a bet against fixed dice. A two-dice selection
// pays the sum tier on an exact sum match, and the partial tier when the
// selection equals either individual die but not the sum.
func ResolveDice(bet domain.DiceBet, amount *big.Int, die1, die2 int, m Multipliers) (DiceResult, error) {
	if err := bet.Validate(); err != nil {
		return DiceResult{}, err
	}
	if !domain.ValidAmount(amount) {
		return DiceResult{}, domain.ErrInvalidAmount
	}

	var multiplier int64
	switch bet.Dice {
	case 1:
		if die1 == bet.Selection {
			multiplier = m.DieExact
		}
	case 2:
		switch {
		case die1+die2 == bet.Selection:
			multiplier = m.PairSum
		case die1 == bet.Selection || die2 == bet.Selection:
			multiplier = m.PairPartial
		}
	}

	result := DiceResult{
		Die1:   die1,
		Die2:   die2,
		Payout: big.NewInt(0),
	}
	if multiplier > 0 {
		result.Won = true
		result.Payout = domain.MulCoins(amount, multiplier)
	}
	return result, nil
}
