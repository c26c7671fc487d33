package enrich

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whalewatch/engine/internal/domain"
	"github.com/whalewatch/engine/internal/platform/polymarket"
)

type stubLog struct {
	records []polymarket.APITradeRecord
	err     error
}

func (s *stubLog) ListTrades(ctx context.Context, q polymarket.TradeQuery) ([]polymarket.APITradeRecord, error) {
	return s.records, s.err
}

func record(wallet, hash string, price, size float64, at time.Time) polymarket.APITradeRecord {
	return polymarket.APITradeRecord{
		Price:           polymarket.FlexFloat(price),
		Size:            polymarket.FlexFloat(size),
		MatchTime:       polymarket.FlexTimeOf(at),
		MakerAddress:    wallet,
		TransactionHash: hash,
	}
}

func feedTrade(price, size float64, at time.Time) domain.RawTrade {
	return domain.RawTrade{
		AssetID:         "asset-1",
		Price:           price,
		Size:            size,
		TransactionHash: "0xabc",
		Timestamp:       at,
	}
}

func TestOffchainExactHashWins(t *testing.T) {
	now := time.Unix(1700000000, 0)
	log := &stubLog{records: []polymarket.APITradeRecord{
		record("0xCloser", "0xother", 0.50, 1000, now),
		record("0xHashMatch", "0xABC", 0.55, 900, now.Add(4*time.Second)),
	}}

	s := NewOffchainStrategy(log, 0, 0, 0)
	res, err := s.Attempt(context.Background(), feedTrade(0.50, 1000, now))
	require.NoError(t, err)
	assert.Equal(t, "0xHashMatch", res.Taker, "hash match beats a closer fuzzy match")
}

func TestOffchainFuzzyClosestDeltaWins(t *testing.T) {
	now := time.Unix(1700000000, 0)
	log := &stubLog{records: []polymarket.APITradeRecord{
		record("0xFar", "", 0.50, 1000, now.Add(-4*time.Second)),
		record("0xNear", "", 0.5003, 1005, now.Add(1*time.Second)),
		record("0xOutsideWindow", "", 0.50, 1000, now.Add(8*time.Second)),
		record("0xPriceOff", "", 0.52, 1000, now),
		record("0xSizeOff", "", 0.50, 1100, now),
	}}

	s := NewOffchainStrategy(log, 0, 0, 0)
	res, err := s.Attempt(context.Background(), feedTrade(0.50, 1000, now))
	require.NoError(t, err)
	assert.Equal(t, "0xNear", res.Taker)
}

func TestOffchainNoCandidates(t *testing.T) {
	s := NewOffchainStrategy(&stubLog{}, 0, 0, 0)
	_, err := s.Attempt(context.Background(), feedTrade(0.50, 1000, time.Unix(1700000000, 0)))
	assert.ErrorIs(t, err, domain.ErrNoMatch)
}

func TestEmbeddedPrefersTaker(t *testing.T) {
	s := NewEmbeddedStrategy()
	res, err := s.Attempt(context.Background(), domain.RawTrade{Taker: "0xT", Maker: "0xM"})
	require.NoError(t, err)
	assert.Equal(t, "0xT", res.Address())

	res, err = s.Attempt(context.Background(), domain.RawTrade{User: "0xU"})
	require.NoError(t, err)
	assert.Equal(t, "0xU", res.Address())

	_, err = s.Attempt(context.Background(), domain.RawTrade{})
	assert.ErrorIs(t, err, domain.ErrNoMatch)
}

type fixedStrategy struct {
	name string
	res  domain.WalletResolution
	err  error
}

func (f *fixedStrategy) Name() string { return f.name }
func (f *fixedStrategy) Attempt(ctx context.Context, trade domain.RawTrade) (domain.WalletResolution, error) {
	return f.res, f.err
}

func TestResolverOrderAndLowercasing(t *testing.T) {
	r := NewResolver(slog.Default(),
		&fixedStrategy{name: "first", err: errors.New("miss")},
		&fixedStrategy{name: "second", res: domain.WalletResolution{Taker: "0xABCDEF", Maker: "0xFEEDBEEF"}},
		&fixedStrategy{name: "third", res: domain.WalletResolution{Taker: "0xnever"}},
	)

	res, strategy, err := r.Resolve(context.Background(), domain.RawTrade{TransactionHash: "0x1"})
	require.NoError(t, err)
	assert.Equal(t, "second", strategy)
	assert.Equal(t, "0xabcdef", res.Taker)
	assert.Equal(t, "0xfeedbeef", res.Maker)
}

func TestResolverAllMiss(t *testing.T) {
	r := NewResolver(slog.Default(),
		&fixedStrategy{name: "a", err: errors.New("miss")},
		&fixedStrategy{name: "b", err: errors.New("miss")},
	)

	_, _, err := r.Resolve(context.Background(), domain.RawTrade{TransactionHash: "0x1"})
	assert.ErrorIs(t, err, domain.ErrNoMatch)
}
