package impact

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/whalewatch/engine/internal/domain"
)

func askBook() domain.OrderBook {
	return domain.OrderBook{
		AssetID: "a1",
		Asks: []domain.PriceLevel{
			{Price: 0.52, Size: 100},
			{Price: 0.51, Size: 100},
			{Price: 0.53, Size: 100},
			{Price: 0.54, Size: 100},
			{Price: 0.55, Size: 100},
		},
		Bids: []domain.PriceLevel{
			{Price: 0.50, Size: 200},
			{Price: 0.49, Size: 200},
		},
	}
}

func TestMeasureSmallBuyIsNeutral(t *testing.T) {
	res := Measure(domain.RawTrade{Side: domain.SideBuy, Size: 80}, askBook())
	assert.False(t, res.IsSweeper)
	assert.Equal(t, 1, res.LevelsConsumed)
	assert.Zero(t, res.PriceImpact)
	assert.InDelta(t, 500, res.VisibleSize, 1e-9)
}

func TestMeasureDeepBuyIsSweeper(t *testing.T) {
	// 420 eats through four levels out of five.
	res := Measure(domain.RawTrade{Side: domain.SideBuy, Size: 420}, askBook())
	assert.True(t, res.IsSweeper)
	assert.Equal(t, 5, res.LevelsConsumed)
	assert.InDelta(t, (0.55-0.51)/0.51, res.PriceImpact, 1e-9)
}

func TestMeasureOversizedTradeIsSweeper(t *testing.T) {
	// Exceeds visible bid liquidity even though it only spans two levels.
	res := Measure(domain.RawTrade{Side: domain.SideSell, Size: 500}, askBook())
	assert.True(t, res.IsSweeper)
	assert.Equal(t, 2, res.LevelsConsumed)
}

func TestMeasureSellWalksBidsDescending(t *testing.T) {
	res := Measure(domain.RawTrade{Side: domain.SideSell, Size: 250}, askBook())
	assert.Equal(t, 2, res.LevelsConsumed)
	assert.InDelta(t, (0.50-0.49)/0.50, res.PriceImpact, 1e-9)
}

func TestMeasureEmptyBook(t *testing.T) {
	res := Measure(domain.RawTrade{Side: domain.SideBuy, Size: 100}, domain.OrderBook{})
	assert.Equal(t, domain.MarketImpact{}, res)
}

type failingFetcher struct{}

func (failingFetcher) GetOrderBook(ctx context.Context, assetID string) (domain.OrderBook, error) {
	return domain.OrderBook{}, errors.New("book unavailable")
}

func TestAnalyzeNeutralOnFetchFailure(t *testing.T) {
	a := New(failingFetcher{}, slog.Default())
	res := a.Analyze(context.Background(), domain.RawTrade{AssetID: "a1", Side: domain.SideBuy, Size: 100})
	assert.Equal(t, domain.MarketImpact{}, res)
}
