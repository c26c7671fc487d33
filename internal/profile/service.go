// Package profile builds and caches trader profiles for enriched wallets.
package profile

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/whalewatch/engine/internal/domain"
)

const (
	// freshWalletTxCount marks wallets with fewer on-chain transactions
	// than this as fresh.
	freshWalletTxCount = 10

	// Activity cutoffs on lifetime transaction count.
	highActivityTxCount   = 500
	mediumActivityTxCount = 50

	// defaultWhalePositionValue marks a wallet as a whale when any single
	// open position's current value exceeds it.
	defaultWhalePositionValue = 10000

	// Label cutoffs on realized PnL, plus the win rate that counts as
	// smart. A wallet between the Degen loss and a positive PnL gets no
	// label at all.
	whaleLabelPnl = 50000
	degenLabelPnl = -10000
	smartWinRate  = 0.6
)

// PositionLister returns a wallet's open positions.
type PositionLister interface {
	ListPositions(ctx context.Context, wallet string) ([]domain.Position, error)
}

// ChainCounter returns a wallet's lifetime transaction count.
type ChainCounter interface {
	TransactionCount(ctx context.Context, address string) (int64, error)
}

// Service is the read-through profile layer: cache first, then a rebuild
// from the exchange and chain APIs. Cache and store writes are best effort;
// a profile is never lost to a failed write.
type Service struct {
	cache      domain.ProfileCache
	store      domain.ProfileStore
	positions  PositionLister
	chain      ChainCounter
	whaleValue float64
	logger     *slog.Logger
}

// New creates a profile Service. store and chain may be nil when running
// without Postgres or an RPC endpoint. whaleValue is the per-position
// current value above which a wallet counts as a whale; <= 0 selects the
// default.
func New(cache domain.ProfileCache, store domain.ProfileStore, positions PositionLister, chain ChainCounter, whaleValue float64, logger *slog.Logger) *Service {
	if whaleValue <= 0 {
		whaleValue = defaultWhalePositionValue
	}
	return &Service{
		cache:      cache,
		store:      store,
		positions:  positions,
		chain:      chain,
		whaleValue: whaleValue,
		logger:     logger.With(slog.String("component", "profile")),
	}
}

// Get returns the profile for a wallet, building it on a cache miss.
// Lookup failures degrade to a zero-stat profile rather than failing the
// trade that triggered the lookup.
func (s *Service) Get(ctx context.Context, address string) (domain.WalletProfile, error) {
	address = strings.ToLower(address)

	if cached, err := s.cache.Get(ctx, address); err == nil {
		return cached, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		s.logger.Warn("profile cache read failed",
			slog.String("wallet", address),
			slog.String("error", err.Error()),
		)
	}

	p := s.build(ctx, address)

	if s.store != nil {
		if err := s.store.Upsert(ctx, p); err != nil {
			s.logger.Warn("profile store write failed",
				slog.String("wallet", address),
				slog.String("error", err.Error()),
			)
		}
	}
	if err := s.cache.Set(ctx, p); err != nil {
		s.logger.Warn("profile cache write failed",
			slog.String("wallet", address),
			slog.String("error", err.Error()),
		)
	}

	return p, nil
}

// build assembles a fresh profile from the positions API and the chain,
// fetched concurrently.
func (s *Service) build(ctx context.Context, address string) domain.WalletProfile {
	var (
		positions []domain.Position
		txCount   int64
		chainOK   bool
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		positions, err = s.positions.ListPositions(gctx, address)
		if err != nil {
			s.logger.Warn("position lookup failed",
				slog.String("wallet", address),
				slog.String("error", err.Error()),
			)
			positions = nil
		}
		return nil
	})

	if s.chain != nil {
		g.Go(func() error {
			n, err := s.chain.TransactionCount(gctx, address)
			if err != nil {
				s.logger.Warn("transaction count lookup failed",
					slog.String("wallet", address),
					slog.String("error", err.Error()),
				)
				return nil
			}
			txCount = n
			chainOK = true
			return nil
		})
	}

	_ = g.Wait() // goroutines swallow their own errors

	p := domain.WalletProfile{
		Address:     address,
		TxCount:     txCount,
		LastUpdated: time.Now().UTC(),
	}

	var wins int
	for _, pos := range positions {
		p.TotalPnl += pos.CashPnl
		if pos.CurrentValue > s.whaleValue {
			p.IsWhale = true
		}
		if pos.PercentPnl > 0 {
			wins++
		}
	}
	if len(positions) > 0 {
		p.WinRate = float64(wins) / float64(len(positions))
	}

	// Unknown history never marks a wallet fresh.
	p.IsFresh = chainOK && txCount < freshWalletTxCount
	p.ActivityLevel = activityLevel(txCount)
	p.Label = label(p.TotalPnl, p.WinRate)

	return p
}

func activityLevel(txCount int64) domain.ActivityLevel {
	switch {
	case txCount > highActivityTxCount:
		return domain.ActivityHigh
	case txCount > mediumActivityTxCount:
		return domain.ActivityMedium
	default:
		return domain.ActivityLow
	}
}

// label buckets a wallet by realized PnL and win rate. Wallets between the
// Degen loss and the Smart Money cutoffs carry no label.
func label(pnl, winRate float64) string {
	smart := winRate > smartWinRate
	switch {
	case pnl > whaleLabelPnl && smart:
		return domain.LabelSmartWhale
	case pnl > whaleLabelPnl:
		return domain.LabelWhale
	case smart && pnl > 0:
		return domain.LabelSmartMoney
	case pnl < degenLabelPnl:
		return domain.LabelDegen
	default:
		return ""
	}
}
