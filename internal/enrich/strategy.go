// Package enrich resolves the wallet behind a trade. Strategies are tried
// cheapest first: wallet fields embedded in the feed message, then the
// exchange's off-chain trade log, then the on-chain transaction receipt.
package enrich

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/whalewatch/engine/internal/domain"
)

// Strategy attempts one wallet resolution method for a trade.
type Strategy interface {
	Name() string
	Attempt(ctx context.Context, trade domain.RawTrade) (domain.WalletResolution, error)
}

// Resolver walks an ordered strategy chain until one succeeds.
type Resolver struct {
	strategies []Strategy
	logger     *slog.Logger
}

// NewResolver creates a Resolver that tries the given strategies in order.
func NewResolver(logger *slog.Logger, strategies ...Strategy) *Resolver {
	return &Resolver{
		strategies: strategies,
		logger:     logger.With(slog.String("component", "enrich")),
	}
}

// Resolve returns the first successful resolution, with all addresses
// lower-cased, and the name of the strategy that produced it. When every
// strategy fails, the returned error wraps ErrNoMatch.
func (r *Resolver) Resolve(ctx context.Context, trade domain.RawTrade) (domain.WalletResolution, string, error) {
	for _, s := range r.strategies {
		res, err := s.Attempt(ctx, trade)
		if err != nil {
			r.logger.Debug("strategy miss",
				slog.String("strategy", s.Name()),
				slog.String("tx_hash", trade.TransactionHash),
				slog.String("error", err.Error()),
			)
			continue
		}
		if res.Address() == "" {
			continue
		}
		res.Taker = strings.ToLower(res.Taker)
		res.Maker = strings.ToLower(res.Maker)
		return res, s.Name(), nil
	}

	return domain.WalletResolution{}, "", fmt.Errorf("enrich: tx %s: %w", trade.TransactionHash, domain.ErrNoMatch)
}
