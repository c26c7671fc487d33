package enrich

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/whalewatch/engine/internal/domain"
	"github.com/whalewatch/engine/internal/platform/polymarket"
)

// Matching tolerances for the off-chain trade log. A candidate must land
// inside the time window and within both the price and size tolerance
// before it is considered at all; among survivors the smallest timestamp
// delta wins.
const (
	defaultMatchWindow = 5 * time.Second
	defaultPriceTol    = 0.001 // relative
	defaultSizeTol     = 0.01  // relative
	defaultQueryLimit  = 100
)

// TradeLog is the slice of the Data API the strategy needs.
type TradeLog interface {
	ListTrades(ctx context.Context, q polymarket.TradeQuery) ([]polymarket.APITradeRecord, error)
}

// OffchainStrategy matches a feed trade against the exchange's historical
// trade log. An exact transaction-hash match short-circuits; otherwise the
// trade is matched fuzzily on time, price, and size.
type OffchainStrategy struct {
	log      TradeLog
	window   time.Duration
	priceTol float64
	sizeTol  float64
}

// NewOffchainStrategy creates the trade-log strategy. Zero tolerances fall
// back to the defaults.
func NewOffchainStrategy(log TradeLog, window time.Duration, priceTol, sizeTol float64) *OffchainStrategy {
	if window <= 0 {
		window = defaultMatchWindow
	}
	if priceTol <= 0 {
		priceTol = defaultPriceTol
	}
	if sizeTol <= 0 {
		sizeTol = defaultSizeTol
	}
	return &OffchainStrategy{log: log, window: window, priceTol: priceTol, sizeTol: sizeTol}
}

func (s *OffchainStrategy) Name() string { return "offchain" }

// Attempt queries the trade log around the trade's timestamp and picks the
// best match.
func (s *OffchainStrategy) Attempt(ctx context.Context, trade domain.RawTrade) (domain.WalletResolution, error) {
	records, err := s.log.ListTrades(ctx, polymarket.TradeQuery{
		AssetID: trade.AssetID,
		After:   trade.Timestamp.Add(-s.window),
		Before:  trade.Timestamp.Add(s.window),
		Limit:   defaultQueryLimit,
	})
	if err != nil {
		return domain.WalletResolution{}, fmt.Errorf("enrich/offchain: query log: %w", err)
	}

	record, ok := s.bestMatch(trade, records)
	if !ok {
		return domain.WalletResolution{}, fmt.Errorf("enrich/offchain: %w", domain.ErrNoMatch)
	}

	return domain.WalletResolution{Taker: record.MakerAddress}, nil
}

// bestMatch selects the winning record. Hash matches beat everything; the
// fuzzy path keeps candidates inside all three tolerances and returns the
// one closest in time.
func (s *OffchainStrategy) bestMatch(trade domain.RawTrade, records []polymarket.APITradeRecord) (polymarket.APITradeRecord, bool) {
	var (
		best      polymarket.APITradeRecord
		bestDelta time.Duration
		found     bool
	)

	for _, rec := range records {
		if rec.MakerAddress == "" {
			continue
		}
		if trade.TransactionHash != "" && strings.EqualFold(rec.TransactionHash, trade.TransactionHash) {
			return rec, true
		}

		delta := trade.Timestamp.Sub(rec.MatchTime.Time)
		if delta < 0 {
			delta = -delta
		}
		if delta > s.window {
			continue
		}
		if relDiff(float64(rec.Price), trade.Price) > s.priceTol {
			continue
		}
		if relDiff(float64(rec.Size), trade.Size) > s.sizeTol {
			continue
		}

		if !found || delta < bestDelta {
			best = rec
			bestDelta = delta
			found = true
		}
	}

	return best, found
}

// relDiff is the relative difference between two values, scaled by the
// reference value b.
func relDiff(a, b float64) float64 {
	if b == 0 {
		if a == 0 {
			return 0
		}
		return math.Inf(1)
	}
	return math.Abs(a-b) / math.Abs(b)
}
