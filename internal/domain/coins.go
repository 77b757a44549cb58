package domain

import (
	"fmt"
	"math/big"
)

// Coin amounts are arbitrary-precision integers. The store keeps them
// as NUMERIC(30,0); in-process arithmetic always goes through *big.Int
// so payouts can never overflow or round.

// Coins builds an amount from an int64 convenience value.
func Coins(v int64) *big.Int {
	return big.NewInt(v)
}

// ParseCoins parses a base-10 coin amount.
func ParseCoins(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("parsing coin amount %q: %w", s, ErrInvalidAmount)
	}
	return v, nil
}

// ValidAmount checks that amount is a positive transferable value.
func ValidAmount(amount *big.Int) bool {
	return amount != nil && amount.Sign() > 0
}

// MulCoins returns amount × multiplier as a fresh value.
func MulCoins(amount *big.Int, multiplier int64) *big.Int {
	return new(big.Int).Mul(amount, big.NewInt(multiplier))
}

// PercentOf returns floor(amount × percent / 100).
func PercentOf(amount *big.Int, percent int64) *big.Int {
	v := new(big.Int).Mul(amount, big.NewInt(percent))
	return v.Div(v, big.NewInt(100))
}

// CoinString renders an amount for payloads and logs; nil renders as 0.
func CoinString(amount *big.Int) string {
	if amount == nil {
		return "0"
	}
	return amount.String()
}
