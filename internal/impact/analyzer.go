// Package impact estimates how deeply a trade cut into the visible book.
package impact

import (
	"context"
	"log/slog"
	"math"
	"sort"

	"github.com/whalewatch/engine/internal/domain"
)

// sweeperLevelCount is the number of consumed price levels above which a
// trade counts as a sweep.
const sweeperLevelCount = 3

// BookFetcher returns the current order book for an asset.
type BookFetcher interface {
	GetOrderBook(ctx context.Context, assetID string) (domain.OrderBook, error)
}

// Analyzer walks the resting side of the book opposite a trade and flags
// sweeps. Analysis is advisory: any failure yields a neutral result rather
// than an error, because the book snapshot arrives after the trade anyway.
type Analyzer struct {
	books  BookFetcher
	logger *slog.Logger
}

// New creates an Analyzer.
func New(books BookFetcher, logger *slog.Logger) *Analyzer {
	return &Analyzer{
		books:  books,
		logger: logger.With(slog.String("component", "impact")),
	}
}

// Analyze fetches the book and measures the trade against it.
func (a *Analyzer) Analyze(ctx context.Context, trade domain.RawTrade) domain.MarketImpact {
	book, err := a.books.GetOrderBook(ctx, trade.AssetID)
	if err != nil {
		a.logger.Debug("book fetch failed, skipping impact",
			slog.String("asset_id", trade.AssetID),
			slog.String("error", err.Error()),
		)
		return domain.MarketImpact{}
	}
	return Measure(trade, book)
}

// Measure walks the side of the book the trade consumed: asks for a buy,
// bids for a sell. A trade is a sweeper when it ate through more than
// sweeperLevelCount levels or exceeded the side's entire visible size.
func Measure(trade domain.RawTrade, book domain.OrderBook) domain.MarketImpact {
	levels := book.Asks
	ascending := true
	if trade.Side == domain.SideSell {
		levels = book.Bids
		ascending = false
	}
	if len(levels) == 0 || trade.Size <= 0 {
		return domain.MarketImpact{}
	}

	sorted := make([]domain.PriceLevel, len(levels))
	copy(sorted, levels)
	sort.Slice(sorted, func(i, j int) bool {
		if ascending {
			return sorted[i].Price < sorted[j].Price
		}
		return sorted[i].Price > sorted[j].Price
	})

	var visible float64
	for _, lvl := range sorted {
		visible += lvl.Size
	}

	remaining := trade.Size
	consumed := 0
	lastPrice := sorted[0].Price
	for _, lvl := range sorted {
		if remaining <= 0 {
			break
		}
		consumed++
		lastPrice = lvl.Price
		remaining -= lvl.Size
	}

	best := sorted[0].Price
	var priceImpact float64
	if best > 0 {
		priceImpact = math.Abs(lastPrice-best) / best
	}

	return domain.MarketImpact{
		IsSweeper:      consumed > sweeperLevelCount || trade.Size > visible,
		LevelsConsumed: consumed,
		PriceImpact:    priceImpact,
		VisibleSize:    visible,
	}
}
