package postgres

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/chatcoins/internal/domain"
)

// BonusAmountFunc computes the grant for an account from the privilege
// kinds it actively holds. Kept as a callback so the amount table stays
// in configuration, outside the store.
type BonusAmountFunc func(activeKinds []string) *big.Int

// GrantDueBonuses runs one distribution cycle in batches. Each batch
// claims eligible accounts with FOR UPDATE SKIP LOCKED and, inside the
// same transaction, re-checks eligibility per account, credits the
// coins, appends the ledger record, and advances last_bonus_at, so
// overlapping cycles (or a crash mid-cycle) can never double-grant.
func (s *Store) GrantDueBonuses(ctx context.Context, period time.Duration, batchSize int, amountFor BonusAmountFunc) (int, error) {
	total := 0
	for {
		granted, processed, err := s.grantBonusBatch(ctx, period, batchSize, amountFor)
		if err != nil {
			return total, err
		}
		total += granted
		if processed < batchSize {
			return total, nil
		}
	}
}

func (s *Store) grantBonusBatch(ctx context.Context, period time.Duration, batchSize int, amountFor BonusAmountFunc) (int, int, error) {
	tx, err := s.begin(ctx)
	if err != nil {
		return 0, 0, err
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		SELECT actor_id FROM accounts
		WHERE last_bonus_at IS NULL OR now() - last_bonus_at >= $1::interval
		ORDER BY actor_id
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	`, period, batchSize)
	if err != nil {
		return 0, 0, fault("selecting bonus-eligible accounts", err)
	}

	var eligible []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, 0, fault("scanning eligible account", err)
		}
		eligible = append(eligible, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, 0, fault("iterating eligible accounts", err)
	}

	granted := 0
	for _, id := range eligible {
		kinds, err := activePrivilegeKindsTx(ctx, tx, id)
		if err != nil {
			return 0, 0, err
		}

		amount := amountFor(kinds)

		// The timestamp advance is conditioned on the same eligibility
		// predicate; rows claimed by a racing cycle report zero rows
		// and are skipped without a credit.
		tag, err := tx.Exec(ctx, `
			UPDATE accounts
			SET last_bonus_at = now(), updated_at = now()
			WHERE actor_id = $1
			  AND (last_bonus_at IS NULL OR now() - last_bonus_at >= $2::interval)
		`, id, period)
		if err != nil {
			return 0, 0, fault("advancing bonus timestamp", err)
		}
		if tag.RowsAffected() == 0 {
			continue
		}

		// A non-positive amount consumes the period without a credit.
		// The row must leave the eligible set either way or a full
		// batch of such rows would keep the cycle spinning.
		if !domain.ValidAmount(amount) {
			continue
		}

		if _, err := transferTx(ctx, tx, TransferParams{
			FromID:   domain.SystemAccount,
			ToID:     id,
			Amount:   amount,
			Category: domain.CategoryBonus,
			Memo:     "periodic bonus",
		}); err != nil {
			return 0, 0, err
		}
		granted++
	}

	if err := commit(ctx, tx); err != nil {
		return 0, 0, err
	}
	return granted, len(eligible), nil
}

// activePrivilegeKindsTx lists unexpired privilege kinds inside an open
// transaction.
func activePrivilegeKindsTx(ctx context.Context, tx pgx.Tx, accountID string) ([]string, error) {
	rows, err := tx.Query(ctx, `
		SELECT kind FROM privileges
		WHERE account_id = $1 AND (expires_at IS NULL OR expires_at > now())
	`, accountID)
	if err != nil {
		return nil, fault("listing privilege kinds", err)
	}
	defer rows.Close()

	var kinds []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fault("scanning privilege kind", err)
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}

// LastBonusAt reads the account's bonus clock; zero when never granted.
func (s *Store) LastBonusAt(ctx context.Context, accountID string) (time.Time, error) {
	var at *time.Time
	err := s.pool.QueryRow(ctx, `
		SELECT last_bonus_at FROM accounts WHERE actor_id = $1
	`, accountID).Scan(&at)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, domain.ErrNotFound
		}
		return time.Time{}, fault("reading bonus timestamp", err)
	}
	if at == nil {
		return time.Time{}, nil
	}
	return *at, nil
}
