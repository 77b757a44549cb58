// Package postgres is the authoritative store for the economy. Every
// state-mutating sequence (balance change + ledger append, quota
// increment + transfer, arrest + officer cooldown) runs inside a single
// database transaction, never behind in-process locks, so multiple
// process instances stay consistent.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chatcoins/internal/config"
	"github.com/chatcoins/internal/domain"
)

// Store provides PostgreSQL-based data access
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewStore creates a new PostgreSQL store
func NewStore(cfg *config.PostgresConfig, logger *slog.Logger) (*Store, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConnections)
	poolConfig.MinConns = int32(cfg.MinConnections)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	return &Store{
		pool:   pool,
		logger: logger,
	}, nil
}

// Close closes the database connection pool
func (s *Store) Close() {
	s.pool.Close()
}

// Pool returns the underlying connection pool
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

// RunMigrations executes database migrations
func (s *Store) RunMigrations(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS accounts (
			actor_id VARCHAR(64) PRIMARY KEY,
			balance NUMERIC(30,0) NOT NULL DEFAULT 0 CHECK (balance >= 0),
			best_win NUMERIC(30,0) NOT NULL DEFAULT 0,
			worst_loss NUMERIC(30,0) NOT NULL DEFAULT 0,
			theft_count INT NOT NULL DEFAULT 0,
			theft_window_at TIMESTAMPTZ,
			last_bonus_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS transactions (
			id UUID PRIMARY KEY,
			from_id VARCHAR(64),
			to_id VARCHAR(64),
			amount NUMERIC(30,0) NOT NULL CHECK (amount > 0),
			category VARCHAR(16) NOT NULL,
			memo VARCHAR(256) NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS privileges (
			account_id VARCHAR(64) NOT NULL,
			kind VARCHAR(32) NOT NULL,
			granted_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			expires_at TIMESTAMPTZ,
			PRIMARY KEY (account_id, kind)
		)`,
		`CREATE TABLE IF NOT EXISTS cooldowns (
			account_id VARCHAR(64) NOT NULL,
			action VARCHAR(32) NOT NULL,
			last_action_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (account_id, action)
		)`,
		`CREATE TABLE IF NOT EXISTS transfer_windows (
			id BIGSERIAL PRIMARY KEY,
			account_id VARCHAR(64) NOT NULL,
			sent_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS arrests (
			account_id VARCHAR(64) PRIMARY KEY,
			officer_id VARCHAR(64) NOT NULL,
			release_at TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS proposals (
			id UUID PRIMARY KEY,
			kind VARCHAR(16) NOT NULL,
			proposer_id VARCHAR(64) NOT NULL,
			target_id VARCHAR(64) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (kind, proposer_id, target_id)
		)`,
		`CREATE TABLE IF NOT EXISTS marriages (
			partner_a VARCHAR(64) NOT NULL,
			partner_b VARCHAR(64) NOT NULL,
			married_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (partner_a, partner_b),
			CHECK (partner_a < partner_b)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_from ON transactions(from_id, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_to ON transactions(to_id, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_category ON transactions(category, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_transfer_windows_account ON transfer_windows(account_id, sent_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_privileges_expiry ON privileges(expires_at) WHERE expires_at IS NOT NULL`,
		`CREATE INDEX IF NOT EXISTS idx_marriages_partner_b ON marriages(partner_b)`,
		`CREATE INDEX IF NOT EXISTS idx_accounts_balance ON accounts(balance DESC)`,
	}

	for _, migration := range migrations {
		_, err := s.pool.Exec(ctx, migration)
		if err != nil {
			return fmt.Errorf("executing migration: %w", err)
		}
	}

	s.logger.Info("database migrations completed")
	return nil
}

// fault classifies an infrastructure failure. Callers can test it with
// errors.Is(err, domain.ErrStoreUnavailable); the transaction it came
// from has been rolled back.
func fault(op string, err error) error {
	return fmt.Errorf("%s: %v: %w", op, err, domain.ErrStoreUnavailable)
}

// begin opens a transaction, classifying connection failures.
func (s *Store) begin(ctx context.Context) (pgx.Tx, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fault("beginning transaction", err)
	}
	return tx, nil
}

// commit finalizes a transaction, classifying commit failures.
func commit(ctx context.Context, tx pgx.Tx) error {
	if err := tx.Commit(ctx); err != nil {
		return fault("committing transaction", err)
	}
	return nil
}

// numeric converts a coin amount for a NUMERIC(30,0) column.
func numeric(v *big.Int) pgtype.Numeric {
	if v == nil {
		v = big.NewInt(0)
	}
	return pgtype.Numeric{Int: new(big.Int).Set(v), Exp: 0, Valid: true}
}

var ten = big.NewInt(10)

// bigint converts a scanned NUMERIC back to a coin amount. Scale-0
// columns come back with a non-negative exponent.
func bigint(n pgtype.Numeric) *big.Int {
	if !n.Valid || n.Int == nil {
		return big.NewInt(0)
	}
	v := new(big.Int).Set(n.Int)
	for e := n.Exp; e > 0; e-- {
		v.Mul(v, ten)
	}
	for e := n.Exp; e < 0; e++ {
		v.Quo(v, ten)
	}
	return v
}

// nullable maps the system identity to a NULL column value.
func nullable(id string) any {
	if id == domain.SystemAccount {
		return nil
	}
	return id
}

// EnsureAccount lazily creates an account row on first interaction.
func (s *Store) EnsureAccount(ctx context.Context, actorID string) error {
	query := `
		INSERT INTO accounts (actor_id)
		VALUES ($1)
		ON CONFLICT (actor_id) DO NOTHING
	`
	if _, err := s.pool.Exec(ctx, query, actorID); err != nil {
		return fault("ensuring account", err)
	}
	return nil
}

// ensureAccountTx is EnsureAccount inside an open transaction.
func ensureAccountTx(ctx context.Context, tx pgx.Tx, actorID string) error {
	_, err := tx.Exec(ctx, `INSERT INTO accounts (actor_id) VALUES ($1) ON CONFLICT (actor_id) DO NOTHING`, actorID)
	if err != nil {
		return fault("ensuring account", err)
	}
	return nil
}

// GetAccount retrieves an account by actor ID.
func (s *Store) GetAccount(ctx context.Context, actorID string) (*domain.Account, error) {
	query := `
		SELECT actor_id, balance, best_win, worst_loss,
		       theft_count, theft_window_at, last_bonus_at, created_at, updated_at
		FROM accounts
		WHERE actor_id = $1
	`
	var (
		acc                  domain.Account
		balance, best, worst pgtype.Numeric
		theftWindow, bonus   *time.Time
	)
	err := s.pool.QueryRow(ctx, query, actorID).Scan(
		&acc.ActorID,
		&balance,
		&best,
		&worst,
		&acc.TheftCount,
		&theftWindow,
		&bonus,
		&acc.CreatedAt,
		&acc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fault("getting account", err)
	}
	acc.Balance = bigint(balance)
	acc.BestWin = bigint(best)
	acc.WorstLoss = bigint(worst)
	if theftWindow != nil {
		acc.TheftWindowAt = *theftWindow
	}
	if bonus != nil {
		acc.LastBonusAt = *bonus
	}
	return &acc, nil
}

// TopBalances returns the richest accounts, richest first.
func (s *Store) TopBalances(ctx context.Context, limit int) ([]domain.RichEntry, error) {
	query := `
		SELECT actor_id, balance
		FROM accounts
		ORDER BY balance DESC, actor_id
		LIMIT $1
	`
	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fault("listing top balances", err)
	}
	defer rows.Close()

	var entries []domain.RichEntry
	rank := int64(0)
	for rows.Next() {
		var (
			entry   domain.RichEntry
			balance pgtype.Numeric
		)
		if err := rows.Scan(&entry.ActorID, &balance); err != nil {
			return nil, fault("scanning top balance", err)
		}
		rank++
		entry.Rank = rank
		entry.Balance = bigint(balance)
		entries = append(entries, entry)
	}
	return entries, nil
}
