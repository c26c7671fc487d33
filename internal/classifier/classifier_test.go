package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whalewatch/engine/internal/domain"
	"github.com/whalewatch/engine/internal/stats"
)

func newFixed(t *testing.T) *Classifier {
	t.Helper()
	return New(DefaultThresholds(), ModeFixed, stats.NewTracker())
}

func trade(price, size float64) domain.RawTrade {
	return domain.RawTrade{AssetID: "asset-1", Price: price, Size: size}
}

func TestDropBelowMinValue(t *testing.T) {
	c := newFixed(t)
	// price 0.10 * size 500 = 50, well below the minimum.
	_, ok := c.Classify(trade(0.10, 500), false)
	assert.False(t, ok)
}

func TestDropAboveOddsCeiling(t *testing.T) {
	c := newFixed(t)
	// Near-certain outcome: dropped regardless of notional size.
	_, ok := c.Classify(trade(0.98, 20000/0.98), false)
	assert.False(t, ok)
}

func TestFixedTierBoundaries(t *testing.T) {
	cases := []struct {
		value float64
		tier  domain.Tier
	}{
		{1000, domain.TierStandard},
		{8000, domain.TierStandard}, // boundaries are strict greater-than
		{8000.01, domain.TierWhale},
		{15000, domain.TierWhale},
		{15000.01, domain.TierMegaWhale},
		{50000, domain.TierMegaWhale},
		{50000.01, domain.TierSuperWhale},
		{100000, domain.TierSuperWhale},
		{100000.01, domain.TierGodWhale},
		{120000, domain.TierGodWhale},
	}

	for _, tc := range cases {
		c := newFixed(t)
		res, ok := c.Classify(trade(0.5, tc.value/0.5), false)
		require.True(t, ok, "value %v", tc.value)
		assert.Equal(t, tc.tier, res.Tier, "value %v", tc.value)
	}
}

func TestTierMonotonicInValue(t *testing.T) {
	c := newFixed(t)
	prev := -1
	for _, v := range []float64{1500, 7000, 9000, 20000, 60000, 150000} {
		res, ok := c.Classify(trade(0.5, v/0.5), false)
		require.True(t, ok)
		assert.GreaterOrEqual(t, res.Tier.Rank(), prev, "value %v", v)
		prev = res.Tier.Rank()
	}
}

func TestProfileWhaleForcesWhaleFlag(t *testing.T) {
	c := newFixed(t)
	res, ok := c.Classify(trade(0.5, 4000), true) // value 2000, below whale cutoff
	require.True(t, ok)
	assert.Equal(t, domain.TierStandard, res.Tier)
	assert.True(t, res.IsWhale, "known whale wallet keeps the flag")
}

func TestGodWhaleEndToEndValues(t *testing.T) {
	c := newFixed(t)
	res, ok := c.Classify(domain.RawTrade{AssetID: "A1", Price: 0.60, Size: 200000}, false)
	require.True(t, ok)
	assert.Equal(t, domain.TierGodWhale, res.Tier)
	assert.True(t, res.IsWhale)
}

func TestZScoreModeRequiresObservations(t *testing.T) {
	tr := stats.NewTracker()
	c := New(DefaultThresholds(), ModeZScore, tr)

	// First two trades: not enough history for the statistical path.
	for i := 0; i < 2; i++ {
		res, ok := c.Classify(trade(0.5, 4000), false)
		require.True(t, ok)
		assert.Equal(t, domain.TierStandard, res.Tier)
		assert.False(t, res.Anomalous)
	}
}

func TestZScoreModeFlagsOutlier(t *testing.T) {
	tr := stats.NewTracker()
	c := New(DefaultThresholds(), ModeZScore, tr)

	// Seed a baseline of modest trades with some spread.
	for _, v := range []float64{2000, 2200, 1800, 2100, 1900, 2000} {
		_, ok := c.Classify(trade(0.5, v/0.5), false)
		require.True(t, ok)
	}

	res, ok := c.Classify(trade(0.5, 80000), false) // value 40000, far outside baseline
	require.True(t, ok)
	assert.Equal(t, domain.TierMegaWhale, res.Tier)
	assert.True(t, res.Anomalous)
	assert.True(t, res.IsWhale)
}

func TestContraFlag(t *testing.T) {
	tr := stats.NewTracker()
	c := New(DefaultThresholds(), ModeFixed, tr)

	for _, v := range []float64{2000, 2200, 1800, 2100, 1900, 2000} {
		_, ok := c.Classify(trade(0.5, v/0.5), false)
		require.True(t, ok)
	}

	// Large long-shot bet: low odds plus an extreme market z-score.
	res, ok := c.Classify(trade(0.20, 200000), false)
	require.True(t, ok)
	assert.True(t, res.Contra)

	// Same size at mid odds is not contra.
	res2, ok := c.Classify(trade(0.55, 80000), false)
	require.True(t, ok)
	assert.False(t, res2.Contra)
}
