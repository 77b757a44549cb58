package postgres

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/chatcoins/internal/config"
	"github.com/chatcoins/internal/domain"
)

var (
	testContainer testcontainers.Container
	testStore     *Store
)

// TestMain starts a disposable Postgres and runs the migrations once
// for the whole package.
func TestMain(m *testing.M) {
	ctx := context.Background()

	if err := setupPostgres(ctx); err != nil {
		fmt.Printf("Failed to setup Postgres container: %v\n", err)
		os.Exit(1)
	}

	code := m.Run()

	testStore.Close()
	if err := testContainer.Terminate(ctx); err != nil {
		fmt.Printf("Failed to terminate Postgres container: %v\n", err)
	}

	os.Exit(code)
}

func setupPostgres(ctx context.Context) error {
	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "economy",
			"POSTGRES_PASSWORD": "economy",
			"POSTGRES_DB":       "economy",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return fmt.Errorf("failed to start container: %w", err)
	}
	testContainer = container

	host, err := container.Host(ctx)
	if err != nil {
		return fmt.Errorf("failed to get container host: %w", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		return fmt.Errorf("failed to get container port: %w", err)
	}

	cfg := &config.PostgresConfig{
		Host:            host,
		Port:            port.Int(),
		User:            "economy",
		Password:        "economy",
		Database:        "economy",
		MaxConnections:  10,
		MinConnections:  1,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: 30 * time.Minute,
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := NewStore(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create store: %w", err)
	}
	if err := store.RunMigrations(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	testStore = store
	return nil
}

// cleanupTables wipes all state between tests.
func cleanupTables(t *testing.T) {
	t.Helper()
	_, err := testStore.Pool().Exec(context.Background(), `
		TRUNCATE accounts, transactions, privileges, cooldowns,
		         transfer_windows, arrests, proposals, marriages
	`)
	require.NoError(t, err)
}

// seedBalance creates the account and sets its balance directly.
func seedBalance(t *testing.T, actorID string, balance int64) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, testStore.EnsureAccount(ctx, actorID))
	_, err := testStore.Pool().Exec(ctx, `
		UPDATE accounts SET balance = $2 WHERE actor_id = $1
	`, actorID, balance)
	require.NoError(t, err)
}

func balanceOf(t *testing.T, actorID string) *big.Int {
	t.Helper()
	acct, err := testStore.GetAccount(context.Background(), actorID)
	require.NoError(t, err)
	return acct.Balance
}

func TestTransfer(t *testing.T) {
	cleanupTables(t)
	ctx := context.Background()
	seedBalance(t, "alice", 1000)

	rec, err := testStore.Transfer(ctx, TransferParams{
		FromID:   "alice",
		ToID:     "bob",
		Amount:   domain.Coins(400),
		Category: domain.CategoryTransfer,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, int64(600), balanceOf(t, "alice").Int64())
	assert.Equal(t, int64(400), balanceOf(t, "bob").Int64())

	// Overdraft rejects at commit time and changes nothing.
	_, err = testStore.Transfer(ctx, TransferParams{
		FromID:   "alice",
		ToID:     "bob",
		Amount:   domain.Coins(601),
		Category: domain.CategoryTransfer,
	})
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)
	assert.Equal(t, int64(600), balanceOf(t, "alice").Int64())
}

func TestTransferQuota(t *testing.T) {
	cleanupTables(t)
	ctx := context.Background()
	seedBalance(t, "alice", 1000)

	p := TransferParams{
		FromID:   "alice",
		ToID:     "bob",
		Amount:   domain.Coins(10),
		Category: domain.CategoryTransfer,
	}

	for i := 0; i < 2; i++ {
		_, err := testStore.TransferWithQuota(ctx, p, time.Hour, 2)
		require.NoError(t, err)
	}
	_, err := testStore.TransferWithQuota(ctx, p, time.Hour, 2)
	require.ErrorIs(t, err, domain.ErrQuotaExceeded)
	assert.Equal(t, int64(980), balanceOf(t, "alice").Int64())

	// The rejected attempt's window row rolled back with it.
	var rows int
	err = testStore.Pool().QueryRow(ctx, `
		SELECT count(*) FROM transfer_windows WHERE account_id = 'alice'
	`).Scan(&rows)
	require.NoError(t, err)
	assert.Equal(t, 2, rows)
}

// Concurrent transfers from one sender must serialize on the quota
// check: with a limit of one, exactly one of the racing attempts may
// land.
func TestTransferQuotaConcurrent(t *testing.T) {
	cleanupTables(t)
	ctx := context.Background()
	seedBalance(t, "alice", 1000)

	const attempts = 4
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = testStore.TransferWithQuota(ctx, TransferParams{
				FromID:   "alice",
				ToID:     "bob",
				Amount:   domain.Coins(10),
				Category: domain.CategoryTransfer,
			}, time.Hour, 1)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			require.ErrorIs(t, err, domain.ErrQuotaExceeded)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, int64(990), balanceOf(t, "alice").Int64())
}

func TestSettleGambleExtrema(t *testing.T) {
	cleanupTables(t)
	ctx := context.Background()
	seedBalance(t, "alice", 1000)

	// Winning round: stake 100, payout 300. Only the net win of 200
	// counts; the stake leg must not register as a loss.
	_, payoutRec, err := testStore.SettleGamble(ctx, "alice", domain.Coins(100), domain.Coins(300), domain.CategoryRoulette, "")
	require.NoError(t, err)
	require.NotNil(t, payoutRec)

	acct, err := testStore.GetAccount(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1200), acct.Balance.Int64())
	assert.Equal(t, int64(200), acct.BestWin.Int64())
	assert.Equal(t, int64(0), acct.WorstLoss.Int64())

	// Losing round: stake 150, no payout.
	_, payoutRec, err = testStore.SettleGamble(ctx, "alice", domain.Coins(150), nil, domain.CategoryDice, "")
	require.NoError(t, err)
	assert.Nil(t, payoutRec)

	acct, err = testStore.GetAccount(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1050), acct.Balance.Int64())
	assert.Equal(t, int64(200), acct.BestWin.Int64())
	assert.Equal(t, int64(150), acct.WorstLoss.Int64())

	// A smaller loss leaves the extremum in place; a break-even round
	// (stake returned exactly) touches neither.
	_, _, err = testStore.SettleGamble(ctx, "alice", domain.Coins(50), nil, domain.CategoryDice, "")
	require.NoError(t, err)
	_, _, err = testStore.SettleGamble(ctx, "alice", domain.Coins(50), domain.Coins(50), domain.CategoryDice, "")
	require.NoError(t, err)

	acct, err = testStore.GetAccount(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(200), acct.BestWin.Int64())
	assert.Equal(t, int64(150), acct.WorstLoss.Int64())
}

func TestStealBalanceQuota(t *testing.T) {
	cleanupTables(t)
	ctx := context.Background()
	seedBalance(t, "thief", 0)
	seedBalance(t, "victim", 10000)

	// 10% of the committed balance each time, limit two per window.
	rec, err := testStore.StealBalance(ctx, "thief", "victim", 10, 2, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), rec.Amount.Int64())

	rec, err = testStore.StealBalance(ctx, "thief", "victim", 10, 2, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(900), rec.Amount.Int64())

	_, err = testStore.StealBalance(ctx, "thief", "victim", 10, 2, time.Hour)
	require.ErrorIs(t, err, domain.ErrQuotaExceeded)
	assert.Equal(t, int64(1900), balanceOf(t, "thief").Int64())
	assert.Equal(t, int64(8100), balanceOf(t, "victim").Int64())

	// The counter resets once the window has elapsed.
	_, err = testStore.Pool().Exec(ctx, `
		UPDATE accounts SET theft_window_at = now() - interval '2 hours'
		WHERE actor_id = 'thief'
	`)
	require.NoError(t, err)

	_, err = testStore.StealBalance(ctx, "thief", "victim", 10, 2, time.Hour)
	require.NoError(t, err)
}

func TestStealBalanceNoSpoils(t *testing.T) {
	cleanupTables(t)
	ctx := context.Background()
	seedBalance(t, "thief", 0)
	seedBalance(t, "victim", 0)

	_, err := testStore.StealBalance(ctx, "thief", "victim", 10, 3, time.Hour)
	require.ErrorIs(t, err, domain.ErrNoEffect)

	// An empty-handed attempt burns no quota.
	acct, err := testStore.GetAccount(ctx, "thief")
	require.NoError(t, err)
	assert.Equal(t, 0, acct.TheftCount)

	_, err = testStore.StealBalance(ctx, "thief", "missing", 10, 3, time.Hour)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGrantPrivilegeExtends(t *testing.T) {
	cleanupTables(t)
	ctx := context.Background()

	first, err := testStore.GrantPrivilege(ctx, "alice", "thief", time.Hour)
	require.NoError(t, err)
	require.NotNil(t, first.ExpiresAt)

	// Re-granting while active stacks the duration onto the current
	// expiry instead of restarting it.
	second, err := testStore.GrantPrivilege(ctx, "alice", "thief", time.Hour)
	require.NoError(t, err)
	require.NotNil(t, second.ExpiresAt)
	assert.WithinDuration(t, first.ExpiresAt.Add(time.Hour), *second.ExpiresAt, 2*time.Second)

	// Still a single row per (account, kind).
	var rows int
	err = testStore.Pool().QueryRow(ctx, `
		SELECT count(*) FROM privileges WHERE account_id = 'alice' AND kind = 'thief'
	`).Scan(&rows)
	require.NoError(t, err)
	assert.Equal(t, 1, rows)

	// An expired grant starts over from now.
	_, err = testStore.Pool().Exec(ctx, `
		UPDATE privileges SET expires_at = now() - interval '1 minute'
		WHERE account_id = 'alice' AND kind = 'thief'
	`)
	require.NoError(t, err)

	active, err := testStore.HasActivePrivilege(ctx, "alice", "thief")
	require.NoError(t, err)
	assert.False(t, active)

	third, err := testStore.GrantPrivilege(ctx, "alice", "thief", time.Hour)
	require.NoError(t, err)
	require.NotNil(t, third.ExpiresAt)
	assert.WithinDuration(t, time.Now().Add(time.Hour), *third.ExpiresAt, 2*time.Second)
}

func TestPurchasePrivilege(t *testing.T) {
	cleanupTables(t)
	ctx := context.Background()
	seedBalance(t, "alice", 10000)

	priv, rec, err := testStore.PurchasePrivilege(ctx, "alice", "crown", domain.Coins(4000), 0)
	require.NoError(t, err)
	assert.Nil(t, priv.ExpiresAt)
	assert.Equal(t, int64(4000), rec.Amount.Int64())
	assert.Equal(t, int64(6000), balanceOf(t, "alice").Int64())

	// Re-buying an active permanent privilege rejects before charging.
	_, _, err = testStore.PurchasePrivilege(ctx, "alice", "crown", domain.Coins(4000), 0)
	require.ErrorIs(t, err, domain.ErrAlreadyInState)
	assert.Equal(t, int64(6000), balanceOf(t, "alice").Int64())

	// Too poor: nothing granted, nothing charged.
	_, _, err = testStore.PurchasePrivilege(ctx, "alice", "police", domain.Coins(8000), time.Hour)
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)
	active, err := testStore.HasActivePrivilege(ctx, "alice", "police")
	require.NoError(t, err)
	assert.False(t, active)
}

func TestGrantDueBonusesIdempotent(t *testing.T) {
	cleanupTables(t)
	ctx := context.Background()
	seedBalance(t, "alice", 0)
	seedBalance(t, "bob", 0)

	flat := func([]string) *big.Int { return domain.Coins(100) }

	granted, err := testStore.GrantDueBonuses(ctx, 24*time.Hour, 10, flat)
	require.NoError(t, err)
	assert.Equal(t, 2, granted)
	assert.Equal(t, int64(100), balanceOf(t, "alice").Int64())

	// A second cycle inside the period grants nothing.
	granted, err = testStore.GrantDueBonuses(ctx, 24*time.Hour, 10, flat)
	require.NoError(t, err)
	assert.Equal(t, 0, granted)
	assert.Equal(t, int64(100), balanceOf(t, "alice").Int64())

	// Once the period has elapsed the account is due again.
	_, err = testStore.Pool().Exec(ctx, `
		UPDATE accounts SET last_bonus_at = now() - interval '25 hours'
		WHERE actor_id = 'alice'
	`)
	require.NoError(t, err)

	granted, err = testStore.GrantDueBonuses(ctx, 24*time.Hour, 10, flat)
	require.NoError(t, err)
	assert.Equal(t, 1, granted)
	assert.Equal(t, int64(200), balanceOf(t, "alice").Int64())
}

// A cycle whose computed amount is not positive must still consume the
// period for every eligible account, or the batch loop would never
// drain.
func TestGrantDueBonusesZeroAmountTerminates(t *testing.T) {
	cleanupTables(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for i := 0; i < 5; i++ {
		seedBalance(t, fmt.Sprintf("acct-%d", i), 0)
	}

	zero := func([]string) *big.Int { return big.NewInt(0) }

	// Batch smaller than the account count forces multiple batches.
	granted, err := testStore.GrantDueBonuses(ctx, 24*time.Hour, 2, zero)
	require.NoError(t, err)
	assert.Equal(t, 0, granted)
	assert.Equal(t, int64(0), balanceOf(t, "acct-0").Int64())

	// The zero grants consumed the period: a later positive cycle
	// grants nothing until it elapses.
	granted, err = testStore.GrantDueBonuses(ctx, 24*time.Hour, 2, func([]string) *big.Int { return domain.Coins(100) })
	require.NoError(t, err)
	assert.Equal(t, 0, granted)
}

func TestCreateArrest(t *testing.T) {
	cleanupTables(t)
	ctx := context.Background()

	rec, err := testStore.CreateArrest(ctx, "target", "officer-a", time.Now().Add(time.Hour), time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "officer-a", rec.OfficerID)

	// Another officer cannot double-book an active arrest.
	_, err = testStore.CreateArrest(ctx, "target", "officer-b", time.Now().Add(time.Hour), time.Hour)
	require.ErrorIs(t, err, domain.ErrAlreadyInState)

	// The first officer is still cooling down, even toward a new target.
	var cooldownErr *domain.CooldownError
	_, err = testStore.CreateArrest(ctx, "other", "officer-a", time.Now().Add(time.Hour), time.Hour)
	require.ErrorAs(t, err, &cooldownErr)
	assert.Equal(t, ActionArrest, cooldownErr.Action)
	assert.Greater(t, cooldownErr.Remaining, time.Duration(0))
}

func TestArrestLazyRelease(t *testing.T) {
	cleanupTables(t)
	ctx := context.Background()

	// A release time in the past reads as no arrest before any sweep.
	_, err := testStore.CreateArrest(ctx, "target", "officer-a", time.Now().Add(-time.Second), time.Hour)
	require.NoError(t, err)

	active, err := testStore.ActiveArrest(ctx, "target")
	require.NoError(t, err)
	assert.Nil(t, active)

	// The stale row can be overwritten by a fresh arrest.
	rec, err := testStore.CreateArrest(ctx, "target", "officer-b", time.Now().Add(time.Hour), time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "officer-b", rec.OfficerID)

	active, err = testStore.ActiveArrest(ctx, "target")
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, "officer-b", active.OfficerID)
}

func TestProposalLifetime(t *testing.T) {
	cleanupTables(t)
	ctx := context.Background()
	ttl := 72 * time.Hour

	_, err := testStore.CreateProposal(ctx, domain.ProposalMarriage, "alice", "bob", ttl)
	require.NoError(t, err)

	// A second pending request for the same pair rejects.
	_, err = testStore.CreateProposal(ctx, domain.ProposalMarriage, "alice", "bob", ttl)
	require.ErrorIs(t, err, domain.ErrAlreadyInState)

	// A lapsed proposal reads as absent and can no longer be accepted.
	_, err = testStore.Pool().Exec(ctx, `
		UPDATE proposals SET created_at = now() - interval '4 days'
	`)
	require.NoError(t, err)

	_, err = testStore.TakeProposal(ctx, domain.ProposalMarriage, "alice", "bob", ttl)
	require.ErrorIs(t, err, domain.ErrNotFound)

	// But it no longer blocks a fresh request either.
	fresh, err := testStore.CreateProposal(ctx, domain.ProposalMarriage, "alice", "bob", ttl)
	require.NoError(t, err)

	taken, err := testStore.TakeProposal(ctx, domain.ProposalMarriage, "alice", "bob", ttl)
	require.NoError(t, err)
	assert.Equal(t, fresh.ID, taken.ID)

	// Consumed on read: a second answer finds nothing.
	_, err = testStore.TakeProposal(ctx, domain.ProposalMarriage, "alice", "bob", ttl)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPruneProposals(t *testing.T) {
	cleanupTables(t)
	ctx := context.Background()
	ttl := 72 * time.Hour

	_, err := testStore.CreateProposal(ctx, domain.ProposalMarriage, "alice", "bob", ttl)
	require.NoError(t, err)
	_, err = testStore.CreateProposal(ctx, domain.ProposalDivorce, "carol", "dave", ttl)
	require.NoError(t, err)

	_, err = testStore.Pool().Exec(ctx, `
		UPDATE proposals SET created_at = now() - interval '4 days'
		WHERE proposer_id = 'alice'
	`)
	require.NoError(t, err)

	pruned, err := testStore.PruneProposals(ctx, ttl)
	require.NoError(t, err)
	assert.Equal(t, int64(1), pruned)

	_, err = testStore.TakeProposal(ctx, domain.ProposalDivorce, "carol", "dave", ttl)
	require.NoError(t, err)
}

func TestCreateMarriage(t *testing.T) {
	cleanupTables(t)
	ctx := context.Background()

	m, err := testStore.CreateMarriage(ctx, "bob", "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", m.PartnerA)
	assert.Equal(t, "bob", m.PartnerB)

	// Either partner marrying anyone else rejects at commit time.
	_, err = testStore.CreateMarriage(ctx, "bob", "carol")
	require.ErrorIs(t, err, domain.ErrAlreadyInState)

	got, err := testStore.MarriageOf(ctx, "bob")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "alice", got.PartnerA)

	require.NoError(t, testStore.DeleteMarriage(ctx, "alice", "bob"))
	got, err = testStore.MarriageOf(ctx, "bob")
	require.NoError(t, err)
	assert.Nil(t, got)
}
