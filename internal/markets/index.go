// Package markets maintains the in-memory market metadata index consumed by
// the ingestion pipeline.
package markets

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/whalewatch/engine/internal/domain"
)

// Fetcher retrieves one page of the exchange's bulk market listing.
type Fetcher interface {
	ListMarkets(ctx context.Context, limit, offset int) ([]domain.MarketDescriptor, error)
}

// defaultPageSize bounds each bulk listing request.
const defaultPageSize = 500

// Index maps condition IDs to market descriptors and asset IDs to outcome
// entries. Both maps are rebuilt wholesale on Refresh and swapped in under
// the lock, so readers never observe a half-built generation.
type Index struct {
	fetcher  Fetcher
	pageSize int
	logger   *slog.Logger

	mu          sync.RWMutex
	byCondition map[string]domain.MarketDescriptor
	byAsset     map[string]domain.AssetOutcome
}

// NewIndex creates an empty Index backed by the given fetcher.
func NewIndex(fetcher Fetcher, logger *slog.Logger) *Index {
	return &Index{
		fetcher:     fetcher,
		pageSize:    defaultPageSize,
		logger:      logger.With(slog.String("component", "market_index")),
		byCondition: make(map[string]domain.MarketDescriptor),
		byAsset:     make(map[string]domain.AssetOutcome),
	}
}

// Refresh fetches the full market listing, rebuilds both lookup maps, and
// atomically swaps them in. It returns the complete set of subscribable
// asset IDs. Malformed entries are skipped; a single bad market never
// aborts the refresh.
func (ix *Index) Refresh(ctx context.Context) ([]string, error) {
	byCondition := make(map[string]domain.MarketDescriptor)
	byAsset := make(map[string]domain.AssetOutcome)
	var assetIDs []string

	offset := 0
	for {
		page, err := ix.fetcher.ListMarkets(ctx, ix.pageSize, offset)
		if err != nil {
			return nil, fmt.Errorf("markets: list page offset=%d: %w", offset, err)
		}

		for _, m := range page {
			if !wellFormed(m) {
				ix.logger.Debug("skipping malformed market entry",
					slog.String("condition_id", m.ConditionID),
				)
				continue
			}
			byCondition[m.ConditionID] = m
			for i, assetID := range m.AssetIDs {
				byAsset[assetID] = domain.AssetOutcome{
					OutcomeLabel: m.Outcomes[i],
					ConditionID:  m.ConditionID,
				}
				assetIDs = append(assetIDs, assetID)
			}
		}

		if len(page) < ix.pageSize {
			break
		}
		offset += ix.pageSize
	}

	ix.mu.Lock()
	ix.byCondition = byCondition
	ix.byAsset = byAsset
	ix.mu.Unlock()

	ix.logger.Info("metadata index refreshed",
		slog.Int("markets", len(byCondition)),
		slog.Int("assets", len(byAsset)),
	)

	return assetIDs, nil
}

// wellFormed reports whether a listing entry carries everything the index
// needs: a condition ID and a non-empty outcome list parallel to its
// asset IDs.
func wellFormed(m domain.MarketDescriptor) bool {
	if m.ConditionID == "" || len(m.AssetIDs) == 0 {
		return false
	}
	if len(m.AssetIDs) != len(m.Outcomes) {
		return false
	}
	for _, id := range m.AssetIDs {
		if id == "" {
			return false
		}
	}
	return true
}

// Market returns the descriptor for a condition ID.
func (ix *Index) Market(conditionID string) (domain.MarketDescriptor, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	m, ok := ix.byCondition[conditionID]
	return m, ok
}

// Asset returns the outcome entry for a tradable asset ID.
func (ix *Index) Asset(assetID string) (domain.AssetOutcome, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	a, ok := ix.byAsset[assetID]
	return a, ok
}

// Resolve returns both the asset's outcome entry and its market descriptor
// in one lookup.
func (ix *Index) Resolve(assetID string) (domain.AssetOutcome, domain.MarketDescriptor, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	a, ok := ix.byAsset[assetID]
	if !ok {
		return domain.AssetOutcome{}, domain.MarketDescriptor{}, false
	}
	m, ok := ix.byCondition[a.ConditionID]
	return a, m, ok
}

// AssetCount returns the number of indexed assets.
func (ix *Index) AssetCount() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.byAsset)
}
