package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/chatcoins/internal/config"
	"github.com/chatcoins/internal/domain"
	"github.com/chatcoins/internal/games"
)

func testEconomyConfig() *config.EconomyConfig {
	return &config.EconomyConfig{
		Games: config.GamesConfig{MinStake: 10},
		Bonus: config.BonusConfig{
			Period:     24 * time.Hour,
			BaseAmount: 100,
			PrivilegeAmounts: map[string]int64{
				domain.PrivilegeThief:  50,
				domain.PrivilegePolice: 75,
			},
		},
	}
}

func TestBonusAmountStacksPrivileges(t *testing.T) {
	s := &EconomyService{economy: testEconomyConfig()}

	assert.Equal(t, domain.Coins(100), s.BonusAmount(nil))
	assert.Equal(t, domain.Coins(150), s.BonusAmount([]string{domain.PrivilegeThief}))
	assert.Equal(t, domain.Coins(175), s.BonusAmount([]string{domain.PrivilegePolice}))
	assert.Equal(t, domain.Coins(225), s.BonusAmount([]string{domain.PrivilegeThief, domain.PrivilegePolice}))
	// unknown kinds add nothing
	assert.Equal(t, domain.Coins(100), s.BonusAmount([]string{"crown"}))
}

func TestMultipliersFromConfig(t *testing.T) {
	// empty config falls back to the standard tiers
	assert.Equal(t, games.DefaultMultipliers(), multipliersFrom(&config.GamesConfig{}))

	m := multipliersFrom(&config.GamesConfig{
		StraightMultiplier: 35,
		PairSumMultiplier:  10,
	})
	assert.Equal(t, int64(35), m.Straight)
	assert.Equal(t, int64(10), m.PairSum)
	assert.Equal(t, games.DefaultMultipliers().Color, m.Color)
}

func TestCheckStake(t *testing.T) {
	s := &EconomyService{economy: testEconomyConfig()}

	assert.NoError(t, s.checkStake(domain.Coins(10)))
	assert.NoError(t, s.checkStake(domain.Coins(5000)))

	assert.ErrorIs(t, s.checkStake(domain.Coins(9)), domain.ErrInvalidAmount)
	assert.ErrorIs(t, s.checkStake(domain.Coins(0)), domain.ErrInvalidAmount)
	assert.ErrorIs(t, s.checkStake(domain.Coins(-1)), domain.ErrInvalidAmount)
	assert.ErrorIs(t, s.checkStake(nil), domain.ErrInvalidAmount)
}

func TestParseAnswer(t *testing.T) {
	for _, in := range []string{"yes", "Yes", " y ", "ACCEPT", "true"} {
		assert.True(t, parseAnswer(in), "parseAnswer(%q)", in)
	}
	for _, in := range []string{"", "no", "n", "decline", "maybe"} {
		assert.False(t, parseAnswer(in), "parseAnswer(%q)", in)
	}
}
