package postgres

import (
	"context"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/chatcoins/internal/domain"
)

// TransferParams describes one ledger movement. FromID or ToID may be
// domain.SystemAccount for house-side flows (stakes, payouts, bonuses).
type TransferParams struct {
	FromID   string
	ToID     string
	Amount   *big.Int
	Category domain.Category
	Memo     string
}

// Transfer atomically moves coins and appends the immutable ledger
// record. The debit is conditioned on sufficient balance at commit time
// (UPDATE ... WHERE balance >= amount), so two racing transfers can
// never drive a balance negative even if both passed an earlier check.
func (s *Store) Transfer(ctx context.Context, p TransferParams) (*domain.TransactionRecord, error) {
	if !domain.ValidAmount(p.Amount) {
		return nil, domain.ErrInvalidAmount
	}

	tx, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	rec, err := transferTx(ctx, tx, p)
	if err != nil {
		return nil, err
	}
	if err := commit(ctx, tx); err != nil {
		return nil, err
	}
	return rec, nil
}

// transferTx performs the movement inside an open transaction so
// compound operations (theft, purchases, bonuses) can bundle it with
// their own writes into one atomic unit.
func transferTx(ctx context.Context, tx pgx.Tx, p TransferParams) (*domain.TransactionRecord, error) {
	if !domain.ValidAmount(p.Amount) {
		return nil, domain.ErrInvalidAmount
	}
	amount := numeric(p.Amount)

	if p.FromID != domain.SystemAccount {
		if err := ensureAccountTx(ctx, tx, p.FromID); err != nil {
			return nil, err
		}
		tag, err := tx.Exec(ctx, `
			UPDATE accounts
			SET balance = balance - $2, updated_at = now()
			WHERE actor_id = $1 AND balance >= $2
		`, p.FromID, amount)
		if err != nil {
			return nil, fault("debiting account", err)
		}
		if tag.RowsAffected() == 0 {
			return nil, domain.ErrInsufficientFunds
		}
	}

	if p.ToID != domain.SystemAccount {
		if err := ensureAccountTx(ctx, tx, p.ToID); err != nil {
			return nil, err
		}
		tag, err := tx.Exec(ctx, `
			UPDATE accounts
			SET balance = balance + $2, updated_at = now()
			WHERE actor_id = $1
		`, p.ToID, amount)
		if err != nil {
			return nil, fault("crediting account", err)
		}
		if tag.RowsAffected() == 0 {
			return nil, domain.ErrNotFound
		}
	}

	rec := &domain.TransactionRecord{
		ID:        uuid.New().String(),
		FromID:    p.FromID,
		ToID:      p.ToID,
		Amount:    new(big.Int).Set(p.Amount),
		Category:  p.Category,
		Memo:      p.Memo,
		CreatedAt: time.Now(),
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO transactions (id, from_id, to_id, amount, category, memo, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, rec.ID, nullable(p.FromID), nullable(p.ToID), amount, string(p.Category), p.Memo, rec.CreatedAt)
	if err != nil {
		return nil, fault("appending transaction record", err)
	}

	return rec, nil
}

// SettleGamble commits one resolved game round: the stake debit and, on
// a win, the payout credit land in the same transaction, so a crash can
// never collect a stake without honoring its payout. A nil or zero
// payout settles as a plain loss.
func (s *Store) SettleGamble(ctx context.Context, actorID string, stake, payout *big.Int, category domain.Category, memo string) (*domain.TransactionRecord, *domain.TransactionRecord, error) {
	if !domain.ValidAmount(stake) {
		return nil, nil, domain.ErrInvalidAmount
	}

	tx, err := s.begin(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback(ctx)

	stakeRec, err := transferTx(ctx, tx, TransferParams{
		FromID:   actorID,
		ToID:     domain.SystemAccount,
		Amount:   stake,
		Category: category,
		Memo:     memo,
	})
	if err != nil {
		return nil, nil, err
	}

	var payoutRec *domain.TransactionRecord
	if payout != nil && payout.Sign() > 0 {
		payoutRec, err = transferTx(ctx, tx, TransferParams{
			FromID:   domain.SystemAccount,
			ToID:     actorID,
			Amount:   payout,
			Category: category,
			Memo:     memo,
		})
		if err != nil {
			return nil, nil, err
		}
	}

	// Lifetime extrema track the net result of the whole round, not the
	// individual legs: a winning round must never widen worst_loss by
	// its stake.
	net := new(big.Int).Neg(stake)
	if payout != nil {
		net.Add(net, payout)
	}
	switch net.Sign() {
	case 1:
		_, err = tx.Exec(ctx, `
			UPDATE accounts SET best_win = GREATEST(best_win, $2) WHERE actor_id = $1
		`, actorID, numeric(net))
	case -1:
		_, err = tx.Exec(ctx, `
			UPDATE accounts SET worst_loss = GREATEST(worst_loss, $2) WHERE actor_id = $1
		`, actorID, numeric(new(big.Int).Neg(net)))
	}
	if err != nil {
		return nil, nil, fault("updating lifetime extrema", err)
	}

	if err := commit(ctx, tx); err != nil {
		return nil, nil, err
	}
	return stakeRec, payoutRec, nil
}

// TransferWithQuota performs a player-to-player transfer gated by the
// sliding-window quota. The sender's account row is locked before the
// window count runs, so under READ COMMITTED two racing transfers
// serialize: the second counts the first's committed window row and
// rejects instead of both slipping under the limit.
func (s *Store) TransferWithQuota(ctx context.Context, p TransferParams, window time.Duration, maxPerWindow int) (*domain.TransactionRecord, error) {
	if !domain.ValidAmount(p.Amount) {
		return nil, domain.ErrInvalidAmount
	}

	tx, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if err := ensureAccountTx(ctx, tx, p.FromID); err != nil {
		return nil, err
	}
	_, err = tx.Exec(ctx, `
		SELECT actor_id FROM accounts WHERE actor_id = $1 FOR UPDATE
	`, p.FromID)
	if err != nil {
		return nil, fault("locking sender account", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO transfer_windows (account_id, sent_at) VALUES ($1, now())
	`, p.FromID)
	if err != nil {
		return nil, fault("recording transfer window", err)
	}

	var inWindow int
	err = tx.QueryRow(ctx, `
		SELECT count(*) FROM transfer_windows
		WHERE account_id = $1 AND sent_at > now() - $2::interval
	`, p.FromID, window).Scan(&inWindow)
	if err != nil {
		return nil, fault("counting transfer window", err)
	}
	if inWindow > maxPerWindow {
		return nil, domain.ErrQuotaExceeded
	}

	rec, err := transferTx(ctx, tx, p)
	if err != nil {
		return nil, err
	}
	if err := commit(ctx, tx); err != nil {
		return nil, err
	}
	return rec, nil
}

// PruneTransferWindows drops window rows older than the quota window.
// Retention only; the quota count never sees them.
func (s *Store) PruneTransferWindows(ctx context.Context, olderThan time.Duration) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM transfer_windows WHERE sent_at <= now() - $1::interval
	`, olderThan)
	if err != nil {
		return 0, fault("pruning transfer windows", err)
	}
	return tag.RowsAffected(), nil
}

// ListTransactions returns an account's ledger history, newest first.
func (s *Store) ListTransactions(ctx context.Context, actorID string, page, pageSize int) ([]domain.TransactionRecord, error) {
	if page < 1 {
		page = 1
	}
	query := `
		SELECT id, COALESCE(from_id, ''), COALESCE(to_id, ''), amount, category, memo, created_at
		FROM transactions
		WHERE from_id = $1 OR to_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := s.pool.Query(ctx, query, actorID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, fault("listing transactions", err)
	}
	defer rows.Close()

	var records []domain.TransactionRecord
	for rows.Next() {
		var (
			rec    domain.TransactionRecord
			amount pgtype.Numeric
			cat    string
		)
		if err := rows.Scan(&rec.ID, &rec.FromID, &rec.ToID, &amount, &cat, &rec.Memo, &rec.CreatedAt); err != nil {
			return nil, fault("scanning transaction", err)
		}
		rec.Amount = bigint(amount)
		rec.Category = domain.Category(cat)
		records = append(records, rec)
	}
	return records, nil
}
