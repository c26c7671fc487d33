package enrich

import (
	"context"
	"fmt"

	"github.com/whalewatch/engine/internal/domain"
)

// ReceiptResolver is the slice of the chain client the strategy needs.
type ReceiptResolver interface {
	ResolveTrade(ctx context.Context, txHash string) (domain.WalletResolution, error)
}

// OnchainStrategy decodes the trade's transaction receipt. The most
// expensive strategy and the only one that also yields block coordinates.
type OnchainStrategy struct {
	chain ReceiptResolver
}

// NewOnchainStrategy creates the receipt-decoding strategy.
func NewOnchainStrategy(chain ReceiptResolver) *OnchainStrategy {
	return &OnchainStrategy{chain: chain}
}

func (s *OnchainStrategy) Name() string { return "onchain" }

// Attempt requires a transaction hash; trades without one cannot be
// resolved on chain.
func (s *OnchainStrategy) Attempt(ctx context.Context, trade domain.RawTrade) (domain.WalletResolution, error) {
	if trade.TransactionHash == "" {
		return domain.WalletResolution{}, fmt.Errorf("enrich/onchain: %w", domain.ErrNoTxHash)
	}
	return s.chain.ResolveTrade(ctx, trade.TransactionHash)
}
