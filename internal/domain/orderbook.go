package domain

// PriceLevel is a single price+size entry in an order book side.
type PriceLevel struct {
	Price float64
	Size  float64
}

// OrderBook is a snapshot of resting liquidity for one asset.
type OrderBook struct {
	AssetID string
	Bids    []PriceLevel
	Asks    []PriceLevel
}

// MarketImpact summarizes how much resting liquidity a trade consumed.
// The zero value is the neutral "no measurable impact" result used when
// the order book could not be inspected.
type MarketImpact struct {
	IsSweeper      bool
	LevelsConsumed int
	PriceImpact    float64 // relative move from first to absorbing level
	VisibleSize    float64 // total liquidity on the inspected side
}
