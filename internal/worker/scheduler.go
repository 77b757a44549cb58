package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/chatcoins/internal/config"
	"github.com/chatcoins/internal/postgres"
	"github.com/chatcoins/internal/redis"
	"github.com/chatcoins/internal/service"
)

// Scheduler drives the periodic economy jobs: the bonus cycle, the
// expiry sweeps, window retention, and the rich-list rebuild. Every job
// is idempotent, so cadence drift or overlapping instances are safe.
type Scheduler struct {
	economy  *service.EconomyService
	store    *postgres.Store
	richList *redis.RichListService
	config   *config.WorkerConfig
	econ     *config.EconomyConfig
	logger   *slog.Logger
	stopCh   chan struct{}
	doneCh   chan struct{}
	mu       sync.Mutex
	running  bool
}

// NewScheduler creates a new background scheduler
func NewScheduler(
	economy *service.EconomyService,
	store *postgres.Store,
	richList *redis.RichListService,
	cfg *config.WorkerConfig,
	econCfg *config.EconomyConfig,
	logger *slog.Logger,
) *Scheduler {
	return &Scheduler{
		economy:  economy,
		store:    store,
		richList: richList,
		config:   cfg,
		econ:     econCfg,
		logger:   logger,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins the background tick loop
func (w *Scheduler) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	w.logger.Info("scheduler started", "interval", w.config.Interval)

	go w.run(ctx)
	return nil
}

// Stop stops the background tick loop
func (w *Scheduler) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	w.logger.Info("scheduler stopped")
	return nil
}

// run is the main worker loop
func (w *Scheduler) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.Tick(ctx)
		}
	}
}

// Tick runs one full maintenance cycle. Each job logs its own failure
// and the cycle continues; a broken store on one tick heals on the next.
func (w *Scheduler) Tick(ctx context.Context) {
	startTime := time.Now()

	granted, err := w.economy.RunBonusCycle(ctx, w.config.BonusBatch)
	if err != nil {
		w.logger.Error("bonus cycle failed", "error", err)
	} else if granted > 0 {
		w.logger.Info("bonus cycle completed", "grants", granted)
	}

	if swept, err := w.store.SweepExpiredPrivileges(ctx); err != nil {
		w.logger.Error("privilege sweep failed", "error", err)
	} else if swept > 0 {
		w.logger.Debug("swept expired privileges", "count", swept)
	}

	if swept, err := w.store.SweepArrests(ctx); err != nil {
		w.logger.Error("arrest sweep failed", "error", err)
	} else if swept > 0 {
		w.logger.Debug("swept released arrests", "count", swept)
	}

	if pruned, err := w.store.PruneTransferWindows(ctx, w.econ.Transfer.Window); err != nil {
		w.logger.Error("transfer window prune failed", "error", err)
	} else if pruned > 0 {
		w.logger.Debug("pruned transfer windows", "count", pruned)
	}

	if pruned, err := w.store.PruneProposals(ctx, w.econ.Marriage.ProposalTTL); err != nil {
		w.logger.Error("proposal prune failed", "error", err)
	} else if pruned > 0 {
		w.logger.Debug("pruned lapsed proposals", "count", pruned)
	}

	w.rebuildRichList(ctx)

	w.logger.Debug("maintenance cycle completed", "duration", time.Since(startTime))
}

// rebuildRichList refreshes the Redis read model from the authoritative
// balances. Recovers the rich list after a Redis restart or missed
// best-effort updates.
func (w *Scheduler) rebuildRichList(ctx context.Context) {
	if w.richList == nil {
		return
	}

	entries, err := w.store.TopBalances(ctx, w.config.RichListSize)
	if err != nil {
		w.logger.Error("failed to read balances for rich list", "error", err)
		return
	}

	if err := w.richList.Rebuild(ctx, entries); err != nil {
		w.logger.Error("failed to rebuild rich list", "error", err)
		return
	}
	w.logger.Debug("rich list rebuilt", "entries", len(entries))
}
