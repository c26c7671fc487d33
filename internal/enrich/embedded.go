package enrich

import (
	"context"
	"fmt"

	"github.com/whalewatch/engine/internal/domain"
)

// EmbeddedStrategy pulls wallet addresses directly off the feed message.
// Free when the feed populates them, which it does intermittently.
type EmbeddedStrategy struct{}

// NewEmbeddedStrategy creates the embedded-field strategy.
func NewEmbeddedStrategy() *EmbeddedStrategy {
	return &EmbeddedStrategy{}
}

func (s *EmbeddedStrategy) Name() string { return "embedded" }

// Attempt succeeds when the message carried a taker or maker address.
func (s *EmbeddedStrategy) Attempt(_ context.Context, trade domain.RawTrade) (domain.WalletResolution, error) {
	maker := trade.Maker
	if maker == "" {
		maker = trade.User
	}

	res := domain.WalletResolution{
		Taker: trade.Taker,
		Maker: maker,
	}
	if res.Address() == "" {
		return domain.WalletResolution{}, fmt.Errorf("enrich/embedded: %w", domain.ErrNoMatch)
	}
	return res, nil
}
