package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/whalewatch/engine/internal/domain"
)

// TradeStore implements domain.TradeStore using PostgreSQL.
type TradeStore struct {
	pool *pgxpool.Pool
}

// NewTradeStore creates a new TradeStore backed by the given connection pool.
func NewTradeStore(pool *pgxpool.Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

const tradeSelectCols = `id, asset_id, side, size, price, trade_value, timestamp,
	wallet_address, condition_id, outcome, question, event_title, image,
	tier, is_whale, is_smart_money, is_fresh, is_sweeper,
	status, tx_hash, block_number, log_index`

func scanTradeRows(rows pgx.Rows) ([]domain.EnrichedTrade, error) {
	var trades []domain.EnrichedTrade
	for rows.Next() {
		var t domain.EnrichedTrade
		if err := rows.Scan(
			&t.ID, &t.AssetID, &t.Side, &t.Size, &t.Price, &t.TradeValue,
			&t.Timestamp, &t.WalletAddress,
			&t.ConditionID, &t.Outcome, &t.Question, &t.EventTitle, &t.Image,
			&t.Tier, &t.IsWhale, &t.IsSmartMoney, &t.IsFresh, &t.IsSweeper,
			&t.Status, &t.TransactionHash, &t.BlockNumber, &t.LogIndex,
		); err != nil {
			return nil, err
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// Upsert inserts a trade. Re-processing the same feed message is a no-op:
// duplicates on the primary key or on (tx_hash, log_index) are skipped.
func (s *TradeStore) Upsert(ctx context.Context, t domain.EnrichedTrade) error {
	const query = `
		INSERT INTO trades (
			id, asset_id, side, size, price, trade_value, timestamp,
			wallet_address, condition_id, outcome, question, event_title, image,
			tier, is_whale, is_smart_money, is_fresh, is_sweeper,
			status, tx_hash, block_number, log_index
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9, $10, $11, $12, $13,
			$14, $15, $16, $17, $18,
			$19, $20, $21, $22
		) ON CONFLICT DO NOTHING`

	_, err := s.pool.Exec(ctx, query,
		t.ID, t.AssetID, t.Side, t.Size, t.Price, t.TradeValue, t.Timestamp,
		t.WalletAddress, t.ConditionID, t.Outcome, t.Question, t.EventTitle, t.Image,
		t.Tier, t.IsWhale, t.IsSmartMoney, t.IsFresh, t.IsSweeper,
		t.Status, t.TransactionHash, t.BlockNumber, t.LogIndex,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert trade %s: %w", t.ID, err)
	}
	return nil
}

// UpdateEnrichment applies a partial enrichment update. A trade already
// marked enriched is never touched, so a late reconciliation pass cannot
// regress a live-path result. Nil pointer fields keep the stored value.
func (s *TradeStore) UpdateEnrichment(ctx context.Context, id string, upd domain.EnrichmentUpdate) error {
	const query = `
		UPDATE trades SET
			wallet_address = COALESCE(NULLIF($2, ''), wallet_address),
			status         = $3,
			block_number   = COALESCE($4, block_number),
			log_index      = COALESCE($5, log_index),
			is_smart_money = COALESCE($6, is_smart_money),
			is_fresh       = COALESCE($7, is_fresh)
		WHERE id = $1 AND status <> 'enriched'`

	tag, err := s.pool.Exec(ctx, query,
		id, upd.WalletAddress, upd.Status,
		upd.BlockNumber, upd.LogIndex, upd.IsSmartMoney, upd.IsFresh,
	)
	if err != nil {
		return fmt.Errorf("postgres: update enrichment %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		// Already enriched or unknown; either way there is nothing to do.
		return nil
	}
	return nil
}

// ListUnenriched returns trades still awaiting a wallet identity: empty
// wallet or pending status, with a transaction hash to chase, no older than
// maxAge, oldest first.
func (s *TradeStore) ListUnenriched(ctx context.Context, maxAge time.Duration, limit int) ([]domain.EnrichedTrade, error) {
	query := `SELECT ` + tradeSelectCols + `
		FROM trades
		WHERE (wallet_address = '' OR status = 'pending')
		  AND tx_hash <> ''
		  AND timestamp >= $1
		ORDER BY timestamp ASC
		LIMIT $2`

	cutoff := time.Now().Add(-maxAge)
	rows, err := s.pool.Query(ctx, query, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list unenriched: %w", err)
	}
	defer rows.Close()

	trades, err := scanTradeRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan unenriched: %w", err)
	}
	return trades, nil
}

// ListBefore returns all trades strictly older than the cutoff, oldest
// first, for archival.
func (s *TradeStore) ListBefore(ctx context.Context, before time.Time) ([]domain.EnrichedTrade, error) {
	query := `SELECT ` + tradeSelectCols + ` FROM trades WHERE timestamp < $1 ORDER BY timestamp ASC`
	rows, err := s.pool.Query(ctx, query, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trades before: %w", err)
	}
	defer rows.Close()
	return scanTradeRows(rows)
}

// Compile-time interface check.
var _ domain.TradeStore = (*TradeStore)(nil)
