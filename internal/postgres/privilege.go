package postgres

import (
	"context"
	"math/big"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/chatcoins/internal/domain"
)

// GrantPrivilege creates or refreshes a privilege. The (account, kind)
// primary key guarantees a single row; an active grant is extended by
// the duration, an expired one starts over from now. A zero duration
// grants permanently.
func (s *Store) GrantPrivilege(ctx context.Context, accountID, kind string, duration time.Duration) (*domain.Privilege, error) {
	tx, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	priv, err := grantPrivilegeTx(ctx, tx, accountID, kind, duration)
	if err != nil {
		return nil, err
	}
	if err := commit(ctx, tx); err != nil {
		return nil, err
	}
	return priv, nil
}

func grantPrivilegeTx(ctx context.Context, tx pgx.Tx, accountID, kind string, duration time.Duration) (*domain.Privilege, error) {
	if err := ensureAccountTx(ctx, tx, accountID); err != nil {
		return nil, err
	}

	var query string
	if duration <= 0 {
		query = `
			INSERT INTO privileges (account_id, kind, granted_at, expires_at)
			VALUES ($1, $2, now(), NULL)
			ON CONFLICT (account_id, kind)
			DO UPDATE SET granted_at = now(), expires_at = NULL
			RETURNING account_id, kind, granted_at, expires_at
		`
	} else {
		query = `
			INSERT INTO privileges (account_id, kind, granted_at, expires_at)
			VALUES ($1, $2, now(), now() + $3::interval)
			ON CONFLICT (account_id, kind)
			DO UPDATE SET
				granted_at = now(),
				expires_at = CASE
					WHEN privileges.expires_at IS NULL THEN NULL
					WHEN privileges.expires_at > now() THEN privileges.expires_at + $3::interval
					ELSE now() + $3::interval
				END
			RETURNING account_id, kind, granted_at, expires_at
		`
	}

	var priv domain.Privilege
	var err error
	if duration <= 0 {
		err = tx.QueryRow(ctx, query, accountID, kind).Scan(&priv.AccountID, &priv.Kind, &priv.GrantedAt, &priv.ExpiresAt)
	} else {
		err = tx.QueryRow(ctx, query, accountID, kind, duration).Scan(&priv.AccountID, &priv.Kind, &priv.GrantedAt, &priv.ExpiresAt)
	}
	if err != nil {
		return nil, fault("granting privilege", err)
	}
	return &priv, nil
}

// HasActivePrivilege checks expiry at read time; an expired row that
// the sweep has not yet removed still reads as inactive. This is the
// authoritative check used by the theft, arrest, and bonus paths.
func (s *Store) HasActivePrivilege(ctx context.Context, accountID, kind string) (bool, error) {
	var active bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM privileges
			WHERE account_id = $1 AND kind = $2
			  AND (expires_at IS NULL OR expires_at > now())
		)
	`, accountID, kind).Scan(&active)
	if err != nil {
		return false, fault("checking privilege", err)
	}
	return active, nil
}

// ActivePrivileges lists an account's unexpired privileges.
func (s *Store) ActivePrivileges(ctx context.Context, accountID string) ([]domain.Privilege, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT account_id, kind, granted_at, expires_at
		FROM privileges
		WHERE account_id = $1 AND (expires_at IS NULL OR expires_at > now())
		ORDER BY kind
	`, accountID)
	if err != nil {
		return nil, fault("listing privileges", err)
	}
	defer rows.Close()

	var privs []domain.Privilege
	for rows.Next() {
		var p domain.Privilege
		if err := rows.Scan(&p.AccountID, &p.Kind, &p.GrantedAt, &p.ExpiresAt); err != nil {
			return nil, fault("scanning privilege", err)
		}
		privs = append(privs, p)
	}
	return privs, nil
}

// SweepExpiredPrivileges removes expired rows. Storage hygiene only;
// correctness never depends on it running.
func (s *Store) SweepExpiredPrivileges(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM privileges WHERE expires_at IS NOT NULL AND expires_at <= now()
	`)
	if err != nil {
		return 0, fault("sweeping privileges", err)
	}
	return tag.RowsAffected(), nil
}

// PurchasePrivilege debits the price to the house and grants the
// privilege in one transaction. An already-active permanent privilege
// rejects rather than charging twice.
func (s *Store) PurchasePrivilege(ctx context.Context, accountID, kind string, price *big.Int, duration time.Duration) (*domain.Privilege, *domain.TransactionRecord, error) {
	tx, err := s.begin(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback(ctx)

	if duration <= 0 {
		var active bool
		err := tx.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM privileges
				WHERE account_id = $1 AND kind = $2 AND expires_at IS NULL
			)
		`, accountID, kind).Scan(&active)
		if err != nil {
			return nil, nil, fault("checking permanent privilege", err)
		}
		if active {
			return nil, nil, domain.ErrAlreadyInState
		}
	}

	rec, err := transferTx(ctx, tx, TransferParams{
		FromID:   accountID,
		ToID:     domain.SystemAccount,
		Amount:   price,
		Category: domain.CategoryPurchase,
		Memo:     "privilege: " + kind,
	})
	if err != nil {
		return nil, nil, err
	}

	priv, err := grantPrivilegeTx(ctx, tx, accountID, kind, duration)
	if err != nil {
		return nil, nil, err
	}

	if err := commit(ctx, tx); err != nil {
		return nil, nil, err
	}
	return priv, rec, nil
}
