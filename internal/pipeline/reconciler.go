package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/whalewatch/engine/internal/domain"
)

// reconcileLockKey guards against concurrent reconciliation runs across
// instances.
const reconcileLockKey = "reconcile:trades"

// ReconcilerOptions tune the background enrichment sweep. Zero fields
// select defaults.
type ReconcilerOptions struct {
	Interval        time.Duration
	BatchSize       int
	MaxAge          time.Duration
	InterTradeDelay time.Duration
}

func (o *ReconcilerOptions) applyDefaults() {
	if o.Interval <= 0 {
		o.Interval = 5 * time.Minute
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 50
	}
	if o.MaxAge <= 0 {
		o.MaxAge = 24 * time.Hour
	}
	if o.InterTradeDelay <= 0 {
		o.InterTradeDelay = 500 * time.Millisecond
	}
}

// Reconciler periodically retries wallet resolution for trades the live
// path could not enrich. Each sweep is bounded by batch size and trade age,
// only touches trades that carry a transaction hash, and sleeps a fixed
// delay between trades to stay under upstream rate limits.
type Reconciler struct {
	store    domain.TradeStore
	wallets  WalletResolver
	profiles ProfileSource
	locks    domain.LockManager
	opts     ReconcilerOptions
	logger   *slog.Logger
}

// NewReconciler creates a Reconciler. profiles and locks may be nil.
func NewReconciler(store domain.TradeStore, wallets WalletResolver, profiles ProfileSource, locks domain.LockManager, opts ReconcilerOptions, logger *slog.Logger) *Reconciler {
	opts.applyDefaults()
	return &Reconciler{
		store:    store,
		wallets:  wallets,
		profiles: profiles,
		locks:    locks,
		opts:     opts,
		logger:   logger.With(slog.String("component", "reconciler")),
	}
}

// Run sweeps on a fixed interval until the context ends.
func (r *Reconciler) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.ReconcileOnce(ctx); err != nil && ctx.Err() == nil {
				r.logger.Error("reconcile sweep failed", slog.String("error", err.Error()))
			}
		}
	}
}

// ReconcileOnce performs a single sweep. When another instance holds the
// reconcile lock the sweep is skipped silently.
func (r *Reconciler) ReconcileOnce(ctx context.Context) error {
	if r.locks != nil {
		unlock, err := r.locks.Acquire(ctx, reconcileLockKey, 2*r.opts.Interval)
		if err != nil {
			if errors.Is(err, domain.ErrLockHeld) {
				r.logger.Debug("reconcile lock held elsewhere, skipping sweep")
				return nil
			}
			return fmt.Errorf("pipeline: acquire reconcile lock: %w", err)
		}
		defer unlock()
	}

	trades, err := r.store.ListUnenriched(ctx, r.opts.MaxAge, r.opts.BatchSize)
	if err != nil {
		return fmt.Errorf("pipeline: list unenriched: %w", err)
	}
	if len(trades) == 0 {
		return nil
	}

	var enriched, failed int
	for i, trade := range trades {
		if err := ctx.Err(); err != nil {
			return err
		}
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(r.opts.InterTradeDelay):
			}
		}

		if r.reconcileTrade(ctx, trade) {
			enriched++
		} else {
			failed++
		}
	}

	r.logger.Info("reconcile sweep complete",
		slog.Int("candidates", len(trades)),
		slog.Int("enriched", enriched),
		slog.Int("failed", failed),
	)
	return nil
}

// reconcileTrade retries one trade and reports whether it was enriched.
// The store refuses to regress already-enriched rows, so a stale candidate
// list cannot clobber fresher data.
func (r *Reconciler) reconcileTrade(ctx context.Context, trade domain.EnrichedTrade) bool {
	raw := domain.RawTrade{
		AssetID:         trade.AssetID,
		Price:           trade.Price,
		Size:            trade.Size,
		Side:            trade.Side,
		TransactionHash: trade.TransactionHash,
		Timestamp:       trade.Timestamp,
	}

	res, strategy, err := r.wallets.Resolve(ctx, raw)
	if err != nil {
		if updErr := r.store.UpdateEnrichment(ctx, trade.ID, domain.EnrichmentUpdate{
			Status: domain.EnrichmentFailed,
		}); updErr != nil {
			r.logger.Warn("mark failed errored",
				slog.String("id", trade.ID),
				slog.String("error", updErr.Error()),
			)
		}
		return false
	}

	upd := domain.EnrichmentUpdate{
		WalletAddress: res.Address(),
		Status:        domain.EnrichmentEnriched,
		BlockNumber:   res.BlockNumber,
		LogIndex:      res.LogIndex,
	}

	if r.profiles != nil {
		if profile, perr := r.profiles.Get(ctx, res.Address()); perr == nil {
			smart := isSmartMoney(profile)
			upd.IsSmartMoney = &smart
			fresh := profile.IsFresh
			upd.IsFresh = &fresh
		}
	}

	if err := r.store.UpdateEnrichment(ctx, trade.ID, upd); err != nil {
		r.logger.Warn("enrichment update failed",
			slog.String("id", trade.ID),
			slog.String("error", err.Error()),
		)
		return false
	}

	r.logger.Debug("trade reconciled",
		slog.String("id", trade.ID),
		slog.String("wallet", upd.WalletAddress),
		slog.String("strategy", strategy),
	)
	return true
}
