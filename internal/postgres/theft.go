package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/chatcoins/internal/domain"
)

// StealBalance takes the configured fraction of the victim's balance in
// one atomic unit: the victim row is locked so spoils are computed from
// the committed balance, the thief's daily counter is re-validated and
// incremented, and the transfer lands in the same transaction. Any
// failure rolls back all three.
func (s *Store) StealBalance(ctx context.Context, thiefID, victimID string, ratePercent int, dailyLimit int, quotaWindow time.Duration) (*domain.TransactionRecord, error) {
	tx, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if err := ensureAccountTx(ctx, tx, thiefID); err != nil {
		return nil, err
	}

	// Lock the victim so the spoils computation and the debit agree.
	var victimBalance pgtype.Numeric
	err = tx.QueryRow(ctx, `
		SELECT balance FROM accounts WHERE actor_id = $1 FOR UPDATE
	`, victimID).Scan(&victimBalance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fault("locking victim account", err)
	}

	spoils := domain.PercentOf(bigint(victimBalance), int64(ratePercent))
	if spoils.Sign() <= 0 {
		// Nothing to take: no quota burn, no state change.
		return nil, domain.ErrNoEffect
	}

	// Re-validate the daily quota at commit time. The window resets on
	// elapsed time, not on a calendar boundary.
	tag, err := tx.Exec(ctx, `
		UPDATE accounts
		SET theft_count = CASE
				WHEN theft_window_at IS NULL OR now() - theft_window_at >= $2::interval THEN 1
				ELSE theft_count + 1
			END,
			theft_window_at = CASE
				WHEN theft_window_at IS NULL OR now() - theft_window_at >= $2::interval THEN now()
				ELSE theft_window_at
			END,
			updated_at = now()
		WHERE actor_id = $1
		  AND (theft_window_at IS NULL
		       OR now() - theft_window_at >= $2::interval
		       OR theft_count < $3)
	`, thiefID, quotaWindow, dailyLimit)
	if err != nil {
		return nil, fault("incrementing theft counter", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, domain.ErrQuotaExceeded
	}

	rec, err := transferTx(ctx, tx, TransferParams{
		FromID:   victimID,
		ToID:     thiefID,
		Amount:   spoils,
		Category: domain.CategoryTheft,
		Memo:     fmt.Sprintf("stolen by %s", thiefID),
	})
	if err != nil {
		return nil, err
	}

	if err := commit(ctx, tx); err != nil {
		return nil, err
	}
	return rec, nil
}
