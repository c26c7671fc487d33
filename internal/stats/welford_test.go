package stats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunningMeanVariance(t *testing.T) {
	var r Running
	for _, v := range []float64{2, 4, 4, 4, 5, 5, 7, 9} {
		r.Push(v)
	}

	assert.Equal(t, int64(8), r.Count())
	assert.InDelta(t, 5.0, r.Mean(), 1e-9)
	// Sample variance of the classic 2,4,4,4,5,5,7,9 sequence.
	assert.InDelta(t, 32.0/7.0, r.Variance(), 1e-9)
}

func TestZScoreInsufficientData(t *testing.T) {
	var r Running
	assert.Equal(t, 0.0, r.ZScore(100))

	r.Push(50)
	assert.Equal(t, 0.0, r.ZScore(100), "one observation is not enough")
}

func TestZScoreZeroStddev(t *testing.T) {
	var r Running
	r.Push(10)
	r.Push(10)
	r.Push(10)
	assert.Equal(t, 0.0, r.ZScore(10))
	assert.Equal(t, 0.0, r.ZScore(1000))
}

func TestZScoreOfMeanIsZero(t *testing.T) {
	var r Running
	for _, v := range []float64{100, 200, 300, 250, 150} {
		r.Push(v)
	}
	require.Greater(t, r.Variance(), 0.0)
	assert.InDelta(t, 0.0, r.ZScore(r.Mean()), 1e-9)
}

func TestVarianceNeverNegative(t *testing.T) {
	var r Running
	// Values chosen to stress numerical stability: large offset, tiny spread.
	base := 1e9
	for i := 0; i < 1000; i++ {
		r.Push(base + float64(i%3)*1e-3)
	}
	assert.GreaterOrEqual(t, r.Variance(), 0.0)
	assert.False(t, math.IsNaN(r.ZScore(base)))
}

func TestTrackerPerAssetIsolation(t *testing.T) {
	tr := NewTracker()
	for i := 0; i < 10; i++ {
		tr.Observe("A", 100)
	}
	for i := 0; i < 10; i++ {
		tr.Observe("B", 10000)
	}

	assetZ, _, count := tr.Scores("A", 100)
	assert.Equal(t, int64(10), count)
	assert.Equal(t, 0.0, assetZ, "constant series has zero stddev")

	_, _, unseen := tr.Scores("C", 100)
	assert.Equal(t, int64(0), unseen)
}
