package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/chatcoins/internal/config"
	"github.com/chatcoins/internal/domain"
	"github.com/chatcoins/internal/games"
	"github.com/chatcoins/internal/postgres"
	"github.com/chatcoins/internal/redis"
)

// EventSink receives committed economy events. Delivery is best-effort
// and runs after the transaction commits; a sink failure never surfaces
// as an economic error.
type EventSink interface {
	Publish(event domain.Event)
}

// EconomyService provides business logic for the virtual economy
type EconomyService struct {
	store       *postgres.Store
	richList    *redis.RichListService
	sinks       []EventSink
	source      games.Source
	multipliers games.Multipliers
	economy     *config.EconomyConfig
	logger      *slog.Logger
}

// NewEconomyService creates a new economy service. richList may be nil
// when Redis is not deployed; the rich list then falls back to the
// authoritative store on read.
func NewEconomyService(
	store *postgres.Store,
	richList *redis.RichListService,
	economy *config.EconomyConfig,
	logger *slog.Logger,
	sinks ...EventSink,
) *EconomyService {
	return &EconomyService{
		store:       store,
		richList:    richList,
		sinks:       sinks,
		source:      games.NewSource(),
		multipliers: multipliersFrom(&economy.Games),
		economy:     economy,
		logger:      logger,
	}
}

// SetSource swaps the randomness source. Test hook.
func (s *EconomyService) SetSource(src games.Source) {
	s.source = src
}

func multipliersFrom(cfg *config.GamesConfig) games.Multipliers {
	m := games.DefaultMultipliers()
	if cfg.StraightMultiplier > 0 {
		m.Straight = cfg.StraightMultiplier
	}
	if cfg.ColorMultiplier > 0 {
		m.Color = cfg.ColorMultiplier
	}
	if cfg.ParityMultiplier > 0 {
		m.Parity = cfg.ParityMultiplier
	}
	if cfg.DozenMultiplier > 0 {
		m.Dozen = cfg.DozenMultiplier
	}
	if cfg.DieMultiplier > 0 {
		m.DieExact = cfg.DieMultiplier
	}
	if cfg.PairSumMultiplier > 0 {
		m.PairSum = cfg.PairSumMultiplier
	}
	if cfg.PairPartialMultiplier > 0 {
		m.PairPartial = cfg.PairPartialMultiplier
	}
	return m
}

// publish fans a committed event out to every sink
func (s *EconomyService) publish(event domain.Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	for _, sink := range s.sinks {
		sink.Publish(event)
	}
}

// refreshRichList pushes current balances into the Redis read model.
// Best-effort; the authoritative balance lives in Postgres.
func (s *EconomyService) refreshRichList(ctx context.Context, actorIDs ...string) {
	if s.richList == nil {
		return
	}
	for _, id := range actorIDs {
		if id == domain.SystemAccount {
			continue
		}
		account, err := s.store.GetAccount(ctx, id)
		if err != nil {
			s.logger.Warn("failed to read balance for rich list", "actor_id", id, "error", err)
			continue
		}
		if err := s.richList.SetBalance(ctx, id, account.Balance); err != nil {
			s.logger.Warn("failed to update rich list", "actor_id", id, "error", err)
		}
	}
}

// AccountView bundles an account with its auxiliary state for display.
type AccountView struct {
	Account    *domain.Account      `json:"account"`
	Privileges []domain.Privilege   `json:"privileges,omitempty"`
	Arrest     *domain.ArrestRecord `json:"arrest,omitempty"`
	Marriage   *domain.Marriage     `json:"marriage,omitempty"`
}

// Account returns the full view of one account
func (s *EconomyService) Account(ctx context.Context, actorID string) (*AccountView, error) {
	account, err := s.store.GetAccount(ctx, actorID)
	if err != nil {
		return nil, err
	}
	privileges, err := s.store.ActivePrivileges(ctx, actorID)
	if err != nil {
		return nil, err
	}
	arrest, err := s.store.ActiveArrest(ctx, actorID)
	if err != nil {
		return nil, err
	}
	marriage, err := s.store.MarriageOf(ctx, actorID)
	if err != nil {
		return nil, err
	}
	return &AccountView{
		Account:    account,
		Privileges: privileges,
		Arrest:     arrest,
		Marriage:   marriage,
	}, nil
}

// Transactions returns an account's ledger history, newest first
func (s *EconomyService) Transactions(ctx context.Context, actorID string, page, pageSize int) ([]domain.TransactionRecord, error) {
	return s.store.ListTransactions(ctx, actorID, page, pageSize)
}

// Transfer moves coins between two player accounts, gated by the
// sender's sliding-window quota.
func (s *EconomyService) Transfer(ctx context.Context, fromID, toID string, amount *big.Int, memo string) (*domain.TransactionRecord, error) {
	if fromID == toID {
		return nil, fmt.Errorf("transfer to self: %w", domain.ErrInvalidRequest)
	}
	if !domain.ValidAmount(amount) {
		return nil, domain.ErrInvalidAmount
	}

	rec, err := s.store.TransferWithQuota(ctx, postgres.TransferParams{
		FromID:   fromID,
		ToID:     toID,
		Amount:   amount,
		Category: domain.CategoryTransfer,
		Memo:     memo,
	}, s.economy.Transfer.Window, s.economy.Transfer.MaxPerWindow)
	if err != nil {
		return nil, err
	}

	s.publish(domain.Event{
		Type:     domain.EventTransfer,
		ActorID:  fromID,
		TargetID: toID,
		Amount:   domain.CoinString(amount),
	})
	s.refreshRichList(ctx, fromID, toID)
	return rec, nil
}

// GameOutcome is the settled result of one game round.
type GameOutcome struct {
	Roulette *games.RouletteResult     `json:"roulette,omitempty"`
	Dice     *games.DiceResult         `json:"dice,omitempty"`
	Stake    *domain.TransactionRecord `json:"stake"`
	Payout   *domain.TransactionRecord `json:"payout,omitempty"`
}

// PlayRoulette stakes coins on one spin and settles it. The stake debit
// and any payout credit commit together.
func (s *EconomyService) PlayRoulette(ctx context.Context, actorID string, bet domain.RouletteBet, amount *big.Int) (*GameOutcome, error) {
	if err := s.checkStake(amount); err != nil {
		return nil, err
	}

	result, err := games.SpinRoulette(s.source, bet, amount, s.multipliers)
	if err != nil {
		return nil, err
	}

	memo := fmt.Sprintf("roulette %s, pocket %d", bet.Kind, result.Outcome)
	stakeRec, payoutRec, err := s.store.SettleGamble(ctx, actorID, amount, result.Payout, domain.CategoryRoulette, memo)
	if err != nil {
		return nil, err
	}

	s.publish(domain.Event{
		Type:    domain.EventRouletteResult,
		ActorID: actorID,
		Amount:  domain.CoinString(result.Payout),
		Details: map[string]string{
			"outcome": fmt.Sprintf("%d", result.Outcome),
			"color":   string(result.Color),
			"won":     fmt.Sprintf("%t", result.Won),
			"stake":   domain.CoinString(amount),
		},
	})
	s.refreshRichList(ctx, actorID)

	return &GameOutcome{Roulette: &result, Stake: stakeRec, Payout: payoutRec}, nil
}

// PlayDice stakes coins on a one-die or two-dice roll and settles it.
func (s *EconomyService) PlayDice(ctx context.Context, actorID string, bet domain.DiceBet, amount *big.Int) (*GameOutcome, error) {
	if err := s.checkStake(amount); err != nil {
		return nil, err
	}

	result, err := games.RollDice(s.source, bet, amount, s.multipliers)
	if err != nil {
		return nil, err
	}

	memo := fmt.Sprintf("dice x%d, rolled %d", bet.Dice, result.Die1)
	if bet.Dice == 2 {
		memo = fmt.Sprintf("dice x2, rolled %d+%d", result.Die1, result.Die2)
	}
	stakeRec, payoutRec, err := s.store.SettleGamble(ctx, actorID, amount, result.Payout, domain.CategoryDice, memo)
	if err != nil {
		return nil, err
	}

	s.publish(domain.Event{
		Type:    domain.EventDiceResult,
		ActorID: actorID,
		Amount:  domain.CoinString(result.Payout),
		Details: map[string]string{
			"die1":  fmt.Sprintf("%d", result.Die1),
			"die2":  fmt.Sprintf("%d", result.Die2),
			"won":   fmt.Sprintf("%t", result.Won),
			"stake": domain.CoinString(amount),
		},
	})
	s.refreshRichList(ctx, actorID)

	return &GameOutcome{Dice: &result, Stake: stakeRec, Payout: payoutRec}, nil
}

func (s *EconomyService) checkStake(amount *big.Int) error {
	if !domain.ValidAmount(amount) {
		return domain.ErrInvalidAmount
	}
	if min := s.economy.Games.MinStake; min > 0 && amount.Cmp(domain.Coins(min)) < 0 {
		return fmt.Errorf("stake below minimum of %d: %w", min, domain.ErrInvalidAmount)
	}
	return nil
}

// TheftOutcome reports one theft attempt. NoSpoils marks the soft
// failure where the victim's balance rounds to nothing; it consumes no
// quota and moves no coins.
type TheftOutcome struct {
	Spoils   *big.Int                  `json:"spoils,omitempty"`
	NoSpoils bool                      `json:"no_spoils,omitempty"`
	Record   *domain.TransactionRecord `json:"record,omitempty"`
}

// Steal attempts to take a cut of the victim's balance. Preconditions
// are checked in a fixed order so each failure has a distinct reason;
// the quota and balance checks are re-validated inside the store
// transaction at commit time.
func (s *EconomyService) Steal(ctx context.Context, thiefID, victimID string) (*TheftOutcome, error) {
	ok, err := s.store.HasActivePrivilege(ctx, thiefID, domain.PrivilegeThief)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("thief privilege required: %w", domain.ErrPermissionDenied)
	}

	if thiefID == victimID {
		return nil, fmt.Errorf("cannot steal from yourself: %w", domain.ErrPermissionDenied)
	}

	protected, err := s.store.HasActivePrivilege(ctx, victimID, domain.PrivilegePolice)
	if err != nil {
		return nil, err
	}
	if protected {
		return nil, fmt.Errorf("victim is under police protection: %w", domain.ErrPermissionDenied)
	}

	arrest, err := s.store.ActiveArrest(ctx, thiefID)
	if err != nil {
		return nil, err
	}
	if arrest != nil {
		return nil, &domain.CooldownError{
			Action:    "theft",
			Remaining: time.Until(arrest.ReleaseAt),
		}
	}

	theft := &s.economy.Theft
	rec, err := s.store.StealBalance(ctx, thiefID, victimID, theft.RatePercent, theft.DailyLimit, theft.QuotaWindow)
	if err != nil {
		if errors.Is(err, domain.ErrNoEffect) {
			return &TheftOutcome{NoSpoils: true}, nil
		}
		return nil, err
	}

	s.publish(domain.Event{
		Type:     domain.EventTheft,
		ActorID:  thiefID,
		TargetID: victimID,
		Amount:   domain.CoinString(rec.Amount),
	})
	s.refreshRichList(ctx, thiefID, victimID)

	return &TheftOutcome{Spoils: rec.Amount, Record: rec}, nil
}

// Arrest locks a thief-privileged target for a duration parsed from
// free-form text. The officer cooldown and the not-already-arrested
// check both commit atomically in the store.
func (s *EconomyService) Arrest(ctx context.Context, officerID, targetID, durationText string) (*domain.ArrestRecord, error) {
	if officerID == targetID {
		return nil, fmt.Errorf("cannot arrest yourself: %w", domain.ErrInvalidRequest)
	}
	if officerID == domain.SystemAccount {
		return nil, fmt.Errorf("system identity cannot arrest: %w", domain.ErrPermissionDenied)
	}

	ok, err := s.store.HasActivePrivilege(ctx, officerID, domain.PrivilegePolice)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("police privilege required: %w", domain.ErrPermissionDenied)
	}

	thief, err := s.store.HasActivePrivilege(ctx, targetID, domain.PrivilegeThief)
	if err != nil {
		return nil, err
	}
	if !thief {
		return nil, fmt.Errorf("target is not a known thief: %w", domain.ErrPermissionDenied)
	}

	duration := domain.ParseArrestDuration(durationText)
	rec, err := s.store.CreateArrest(ctx, targetID, officerID, time.Now().Add(duration), s.economy.Arrest.OfficerCooldown)
	if err != nil {
		return nil, err
	}

	s.publish(domain.Event{
		Type:     domain.EventArrest,
		ActorID:  officerID,
		TargetID: targetID,
		Details: map[string]string{
			"release_at": rec.ReleaseAt.Format(time.RFC3339),
		},
	})
	return rec, nil
}

// IsArrested reports whether an account is currently locked up
func (s *EconomyService) IsArrested(ctx context.Context, accountID string) (bool, error) {
	arrest, err := s.store.ActiveArrest(ctx, accountID)
	if err != nil {
		return false, err
	}
	return arrest != nil, nil
}

// PurchasePrivilege buys a catalog privilege: the debit and the grant
// commit together.
func (s *EconomyService) PurchasePrivilege(ctx context.Context, actorID, kind string) (*domain.Privilege, error) {
	item, ok := s.economy.PrivilegeItemFor(kind)
	if !ok {
		return nil, fmt.Errorf("no catalog entry for %q: %w", kind, domain.ErrNotFound)
	}

	priv, rec, err := s.store.PurchasePrivilege(ctx, actorID, kind, domain.Coins(item.Price), item.Duration)
	if err != nil {
		return nil, err
	}

	s.publish(domain.Event{
		Type:    domain.EventPrivilegeBought,
		ActorID: actorID,
		Amount:  domain.CoinString(rec.Amount),
		Details: map[string]string{"kind": kind},
	})
	s.refreshRichList(ctx, actorID)
	return priv, nil
}

// BonusAmount computes one account's periodic grant: the base amount
// plus the additive amount of every active privilege kind held.
func (s *EconomyService) BonusAmount(kinds []string) *big.Int {
	total := s.economy.Bonus.BaseAmount
	for _, kind := range kinds {
		total += s.economy.Bonus.PrivilegeAmounts[kind]
	}
	return domain.Coins(total)
}

// RunBonusCycle grants the periodic bonus to every eligible account.
// Safe to invoke concurrently with itself: eligibility is re-checked
// row by row under lock inside the store.
func (s *EconomyService) RunBonusCycle(ctx context.Context, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = 500
	}
	granted, err := s.store.GrantDueBonuses(ctx, s.economy.Bonus.Period, batchSize, s.BonusAmount)
	if err != nil {
		return 0, err
	}
	if granted > 0 {
		s.publish(domain.Event{
			Type:    domain.EventBonusGranted,
			ActorID: domain.SystemAccount,
			Details: map[string]string{"grants": fmt.Sprintf("%d", granted)},
		})
	}
	return granted, nil
}

// TopRich returns the richest accounts, preferring the Redis read model
// and falling back to the authoritative store.
func (s *EconomyService) TopRich(ctx context.Context, n int) ([]domain.RichEntry, error) {
	if n <= 0 {
		n = 10
	}
	if s.richList != nil {
		entries, err := s.richList.Top(ctx, n)
		if err == nil && len(entries) > 0 {
			return entries, nil
		}
		if err != nil {
			s.logger.Warn("rich list read failed, falling back to store", "error", err)
		}
	}
	return s.store.TopBalances(ctx, n)
}
