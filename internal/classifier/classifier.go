// Package classifier maps trade notional values to discrete severity tiers.
package classifier

import (
	"github.com/whalewatch/engine/internal/domain"
	"github.com/whalewatch/engine/internal/stats"
)

// Mode selects between the authoritative fixed-dollar rules and the legacy
// statistical rules used only for live-feed tagging.
type Mode string

const (
	// ModeFixed classifies by fixed dollar thresholds. This is the
	// authoritative mode; persisted records always carry its output.
	ModeFixed Mode = "fixed"

	// ModeZScore classifies by z-scores against per-market and global
	// running statistics. Retained as a legacy alternate for the live feed.
	ModeZScore Mode = "zscore"
)

// Thresholds holds the fixed-dollar classification boundaries. Every
// comparison is a strict greater-than, so a trade exactly at a boundary
// falls into the lower tier.
type Thresholds struct {
	MinTradeValue float64 // trades below this are dropped entirely
	OddsCeiling   float64 // trades priced above this are dropped entirely
	Whale         float64
	MegaWhale     float64
	SuperWhale    float64
	GodWhale      float64
}

// DefaultThresholds returns the production boundary values.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinTradeValue: 1000,
		OddsCeiling:   0.97,
		Whale:         8000,
		MegaWhale:     15000,
		SuperWhale:    50000,
		GodWhale:      100000,
	}
}

// Z-score cutoffs for the legacy mode, ordered most to least severe. A
// trade qualifies for a level when either its market z or global z exceeds
// the level's cutoff. The statistical path only fires once a market has
// accumulated at least minObservations trades.
const (
	minObservations = 3

	megaMarketZ  = 2.0
	megaGlobalZ  = 3.0
	whaleMarketZ = 1.5
	whaleGlobalZ = 2.5
	notedMarketZ = 1.0
	notedGlobalZ = 2.0

	// contraOdds marks large bets against market consensus: a trade at
	// odds below this co-occurring with market z above megaMarketZ.
	contraOdds = 0.40
)

// Result is the classification outcome for one accepted trade.
type Result struct {
	Tier      domain.Tier
	IsWhale   bool
	Anomalous bool // tier above STANDARD, or statistically notable
	Contra    bool // large bet against market consensus
	MarketZ   float64
	GlobalZ   float64
}

// Classifier is a pure decision function over trade value plus the shared
// running-statistics tracker.
type Classifier struct {
	thresholds Thresholds
	mode       Mode
	tracker    *stats.Tracker
}

// New creates a Classifier. tracker may be shared with other components;
// Classify is the sole writer.
func New(thresholds Thresholds, mode Mode, tracker *stats.Tracker) *Classifier {
	if mode == "" {
		mode = ModeFixed
	}
	return &Classifier{thresholds: thresholds, mode: mode, tracker: tracker}
}

// Classify scores a raw trade. The second return value is false when the
// trade should be dropped: below the minimum value, or priced above the
// odds ceiling (near-certain outcomes are uninteresting). Accepted trades
// are folded into the running statistics.
func (c *Classifier) Classify(trade domain.RawTrade, profileWhale bool) (Result, bool) {
	value := trade.Value()

	if value < c.thresholds.MinTradeValue {
		return Result{}, false
	}
	if trade.Price > c.thresholds.OddsCeiling {
		return Result{}, false
	}

	marketZ, globalZ, seen := c.tracker.Scores(trade.AssetID, value)
	c.tracker.Observe(trade.AssetID, value)

	res := Result{MarketZ: marketZ, GlobalZ: globalZ}

	switch c.mode {
	case ModeZScore:
		res.Tier = domain.TierStandard
		if seen >= minObservations {
			switch {
			case marketZ > megaMarketZ || globalZ > megaGlobalZ:
				res.Tier = domain.TierMegaWhale
				res.Anomalous = true
			case marketZ > whaleMarketZ || globalZ > whaleGlobalZ:
				res.Tier = domain.TierWhale
				res.Anomalous = true
			case marketZ > notedMarketZ || globalZ > notedGlobalZ:
				res.Anomalous = true
			}
		}
		res.IsWhale = res.Tier.Rank() >= domain.TierWhale.Rank()
	default:
		res.Tier = c.fixedTier(value)
		res.IsWhale = value > c.thresholds.Whale || profileWhale
		res.Anomalous = res.Tier != domain.TierStandard || res.IsWhale
	}

	res.Contra = trade.Price < contraOdds && marketZ > megaMarketZ

	return res, true
}

// fixedTier buckets a notional value. Boundaries are strict greater-than
// and the highest matching tier wins.
func (c *Classifier) fixedTier(value float64) domain.Tier {
	switch {
	case value > c.thresholds.GodWhale:
		return domain.TierGodWhale
	case value > c.thresholds.SuperWhale:
		return domain.TierSuperWhale
	case value > c.thresholds.MegaWhale:
		return domain.TierMegaWhale
	case value > c.thresholds.Whale:
		return domain.TierWhale
	default:
		return domain.TierStandard
	}
}
