package domain

import (
	"math/big"
	"time"
)

// SystemAccount is the house identity. Transfers from or to it touch
// only the other party's balance; the house side is unbounded.
const SystemAccount = ""

// Account represents a user's coin account. Accounts are created lazily
// on first interaction and never deleted; the balance is mutated only
// through ledger transfers.
type Account struct {
	ActorID       string    `json:"actor_id"`
	Balance       *big.Int  `json:"balance"`
	BestWin       *big.Int  `json:"best_win"`
	WorstLoss     *big.Int  `json:"worst_loss"`
	TheftCount    int       `json:"theft_count"`
	TheftWindowAt time.Time `json:"theft_window_at"`
	LastBonusAt   time.Time `json:"last_bonus_at"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Category tags a ledger transaction with the operation that produced it.
type Category string

const (
	CategoryTransfer Category = "transfer"
	CategoryRoulette Category = "roulette"
	CategoryDice     Category = "dice"
	CategoryTheft    Category = "theft"
	CategoryBonus    Category = "bonus"
	CategoryPurchase Category = "purchase"
)

// TransactionRecord is an immutable, append-only ledger entry. An empty
// FromID or ToID means the system side of the movement.
type TransactionRecord struct {
	ID        string    `json:"id"`
	FromID    string    `json:"from_id,omitempty"`
	ToID      string    `json:"to_id,omitempty"`
	Amount    *big.Int  `json:"amount"`
	Category  Category  `json:"category"`
	Memo      string    `json:"memo,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// RichEntry is one row of the balance leaderboard read model.
type RichEntry struct {
	Rank    int64    `json:"rank"`
	ActorID string   `json:"actor_id"`
	Balance *big.Int `json:"balance"`
}

// WindowExpired checks if an elapsed-time window (daily quota, bonus
// eligibility) has fully passed. A zero start means the window never
// started and counts as expired.
func WindowExpired(start, now time.Time, period time.Duration) bool {
	if start.IsZero() {
		return true
	}
	return now.Sub(start) >= period
}
