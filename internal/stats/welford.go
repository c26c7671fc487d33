// Package stats provides online running statistics for anomaly scoring.
package stats

import (
	"math"
	"sync"
)

// Running accumulates count, mean, and sum of squared deviations using
// Welford's online algorithm. It uses O(1) memory regardless of how many
// values are pushed and never shrinks.
type Running struct {
	count int64
	mean  float64
	m2    float64 // sum of squared deviations from the mean
}

// Push folds one value into the accumulator.
func (r *Running) Push(value float64) {
	r.count++
	delta := value - r.mean
	r.mean += delta / float64(r.count)
	r.m2 += delta * (value - r.mean)
}

// Count returns the number of values pushed so far.
func (r *Running) Count() int64 {
	return r.count
}

// Mean returns the running mean, or 0 before any values are pushed.
func (r *Running) Mean() float64 {
	return r.mean
}

// Variance returns the sample variance, or 0 when count < 2.
func (r *Running) Variance() float64 {
	if r.count < 2 {
		return 0
	}
	return r.m2 / float64(r.count-1)
}

// ZScore returns (value - mean) / stddev. It returns 0 when count < 2 or
// the standard deviation is 0, so callers never divide by zero or score
// against insufficient data.
func (r *Running) ZScore(value float64) float64 {
	if r.count < 2 {
		return 0
	}
	sd := math.Sqrt(r.Variance())
	if sd == 0 {
		return 0
	}
	return (value - r.mean) / sd
}

// Tracker owns one global accumulator plus a per-asset accumulator map.
// The ingest path is the sole writer but scores are read from concurrent
// enrichment goroutines, so access is guarded by a mutex.
type Tracker struct {
	mu     sync.Mutex
	global Running
	assets map[string]*Running
}

// NewTracker creates an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{assets: make(map[string]*Running)}
}

// Observe pushes a trade value into both the global accumulator and the
// asset's accumulator, creating the latter on first sight.
func (t *Tracker) Observe(assetID string, value float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.global.Push(value)
	r, ok := t.assets[assetID]
	if !ok {
		r = &Running{}
		t.assets[assetID] = r
	}
	r.Push(value)
}

// Scores returns the z-score of value against the asset's distribution and
// the global distribution, along with the asset's observation count.
func (t *Tracker) Scores(assetID string, value float64) (assetZ, globalZ float64, assetCount int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	globalZ = t.global.ZScore(value)
	if r, ok := t.assets[assetID]; ok {
		assetZ = r.ZScore(value)
		assetCount = r.Count()
	}
	return assetZ, globalZ, assetCount
}
