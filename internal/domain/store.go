package domain

import (
	"context"
	"time"
)

// EnrichmentUpdate is a partial update applied to a trade by the
// reconciliation path. Nil pointers leave the stored value untouched.
type EnrichmentUpdate struct {
	WalletAddress string
	Status        EnrichmentStatus
	BlockNumber   *int64
	LogIndex      *int64
	IsSmartMoney  *bool
	IsFresh       *bool
}

// TradeStore persists enriched trades.
type TradeStore interface {
	// Upsert inserts a trade, silently skipping duplicates so re-processing
	// the same feed message is idempotent.
	Upsert(ctx context.Context, trade EnrichedTrade) error

	// UpdateEnrichment applies a partial enrichment update. It must never
	// regress a trade whose status is already enriched.
	UpdateEnrichment(ctx context.Context, id string, upd EnrichmentUpdate) error

	// ListUnenriched returns trades with an empty wallet address or pending
	// status, newer than maxAge and carrying a transaction hash, oldest
	// first, bounded by limit.
	ListUnenriched(ctx context.Context, maxAge time.Duration, limit int) ([]EnrichedTrade, error)

	// ListBefore returns all trades strictly older than the cutoff, for
	// archival.
	ListBefore(ctx context.Context, before time.Time) ([]EnrichedTrade, error)
}

// ProfileStore persists wallet profiles.
type ProfileStore interface {
	// Upsert writes a profile, keeping max_trade_value monotonically
	// non-decreasing regardless of the value supplied.
	Upsert(ctx context.Context, profile WalletProfile) error
	Get(ctx context.Context, address string) (WalletProfile, error)

	// RecordTradeValue bumps a wallet's largest observed trade value,
	// creating a stub row when the wallet has no profile yet.
	RecordTradeValue(ctx context.Context, address string, value float64) error
}
