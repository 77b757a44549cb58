package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDefaultConfig ensures every tunable gets a sane default.
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Postgres.Host)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.True(t, cfg.Worker.Enabled)
	assert.Equal(t, 5*time.Minute, cfg.Worker.Interval)

	assert.Equal(t, int64(36), cfg.Economy.Games.StraightMultiplier)
	assert.Equal(t, int64(12), cfg.Economy.Games.PairSumMultiplier)
	assert.Equal(t, 10, cfg.Economy.Theft.RatePercent)
	assert.Equal(t, 3, cfg.Economy.Theft.DailyLimit)
	assert.Equal(t, 24*time.Hour, cfg.Economy.Theft.QuotaWindow)
	assert.Equal(t, 3*time.Hour, cfg.Economy.Arrest.OfficerCooldown)
	assert.Equal(t, 24*time.Hour, cfg.Economy.Bonus.Period)
	assert.Equal(t, 6*time.Hour, cfg.Economy.Transfer.Window)
	assert.Equal(t, 72*time.Hour, cfg.Economy.Marriage.ProposalTTL)
	assert.NotEmpty(t, cfg.Economy.Privileges)
}

// TestLoadOverridesAndExpandsEnv ensures YAML values override defaults
// and ${VAR} references expand.
func TestLoadOverridesAndExpandsEnv(t *testing.T) {
	t.Setenv("TEST_PG_PASSWORD", "sekrit")

	raw := `
server:
  port: 9090
postgres:
  password: ${TEST_PG_PASSWORD}
  database: economy
economy:
  theft:
    rate_percent: 25
  games:
    straight_multiplier: 40
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "sekrit", cfg.Postgres.Password)
	assert.Equal(t, "economy", cfg.Postgres.Database)
	assert.Equal(t, 25, cfg.Economy.Theft.RatePercent)
	assert.Equal(t, int64(40), cfg.Economy.Games.StraightMultiplier)
	// untouched values still defaulted
	assert.Equal(t, int64(2), cfg.Economy.Games.ColorMultiplier)
	assert.Equal(t, 3, cfg.Economy.Theft.DailyLimit)
}

// TestPrivilegeItemFor ensures catalog lookup by kind.
func TestPrivilegeItemFor(t *testing.T) {
	cfg := DefaultConfig()

	item, ok := cfg.Economy.PrivilegeItemFor("thief")
	require.True(t, ok)
	assert.Equal(t, int64(5000), item.Price)

	_, ok = cfg.Economy.PrivilegeItemFor("dragon")
	assert.False(t, ok)
}

// TestLoadMissingFile ensures a missing config path errors out.
func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
