package domain

import "time"

// Side is the direction of a trade from the active party's point of view.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// EnrichmentStatus tracks wallet-identity resolution progress for a trade.
// Transitions are monotonic: pending -> enriched, pending -> failed, and
// failed -> enriched. A trade never regresses from enriched.
type EnrichmentStatus string

const (
	EnrichmentPending  EnrichmentStatus = "pending"
	EnrichmentEnriched EnrichmentStatus = "enriched"
	EnrichmentFailed   EnrichmentStatus = "failed"
)

// Tier is the severity bucket derived from a trade's notional value.
type Tier string

const (
	TierStandard   Tier = "STANDARD"
	TierWhale      Tier = "WHALE"
	TierMegaWhale  Tier = "MEGA_WHALE"
	TierSuperWhale Tier = "SUPER_WHALE"
	TierGodWhale   Tier = "GOD_WHALE"
)

// Rank returns the tier's position in the severity ordering, with
// STANDARD lowest. Unknown tiers rank below STANDARD.
func (t Tier) Rank() int {
	switch t {
	case TierStandard:
		return 0
	case TierWhale:
		return 1
	case TierMegaWhale:
		return 2
	case TierSuperWhale:
		return 3
	case TierGodWhale:
		return 4
	default:
		return -1
	}
}

// RawTrade is a single trade message as delivered by the exchange feed.
// It is ephemeral; only the enriched form is persisted.
type RawTrade struct {
	AssetID         string
	Price           float64
	Size            float64
	Side            Side
	TransactionHash string
	Timestamp       time.Time

	// Wallet fields occasionally embedded in the feed message itself.
	// When present they short-circuit the enrichment cascade.
	User  string
	Maker string
	Taker string
}

// Value returns the trade's notional value in collateral units.
func (r RawTrade) Value() float64 {
	return r.Price * r.Size
}

// EnrichedTrade is the canonical persisted and broadcast trade record.
type EnrichedTrade struct {
	ID            string
	AssetID       string
	Side          Side
	Size          float64
	Price         float64
	TradeValue    float64
	Timestamp     time.Time
	WalletAddress string // lower-case when non-empty

	// Market context resolved from the metadata index.
	ConditionID string
	Outcome     string
	Question    string
	EventTitle  string
	Image       string

	// Classification and analysis flags.
	Tier         Tier
	IsWhale      bool
	IsSmartMoney bool
	IsFresh      bool
	IsSweeper    bool

	Status          EnrichmentStatus
	TransactionHash string
	BlockNumber     *int64
	LogIndex        *int64
}

// Tags derives the fixed-vocabulary tag set from the trade's boolean flags.
// Tags are never stored; they are recomputed from persisted fields so
// write-time and read-time logic cannot drift.
func (t EnrichedTrade) Tags() []string {
	var tags []string
	if t.IsWhale {
		tags = append(tags, "WHALE")
	}
	if t.IsSmartMoney {
		tags = append(tags, "SMART_MONEY")
	}
	if t.IsFresh {
		tags = append(tags, "FRESH_WALLET")
	}
	if t.IsSweeper {
		tags = append(tags, "SWEEPER")
	}
	return tags
}

// WalletResolution is the outcome of one enrichment strategy attempt.
type WalletResolution struct {
	// Taker is preferred over Maker as the active party being profiled.
	Taker string
	Maker string

	// Set only by the on-chain strategy.
	BlockNumber *int64
	LogIndex    *int64
}

// Address returns the active party's address, preferring taker over maker.
func (r WalletResolution) Address() string {
	if r.Taker != "" {
		return r.Taker
	}
	return r.Maker
}
