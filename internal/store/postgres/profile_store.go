package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/whalewatch/engine/internal/domain"
)

// ProfileStore implements domain.ProfileStore using PostgreSQL.
type ProfileStore struct {
	pool *pgxpool.Pool
}

// NewProfileStore creates a new ProfileStore backed by the given pool.
func NewProfileStore(pool *pgxpool.Pool) *ProfileStore {
	return &ProfileStore{pool: pool}
}

// Upsert writes a profile. max_trade_value only ever grows: a rebuild from
// the positions API does not know about past trades, so the stored maximum
// is kept when it is larger.
func (s *ProfileStore) Upsert(ctx context.Context, p domain.WalletProfile) error {
	const query = `
		INSERT INTO wallet_profiles (
			address, label, total_pnl, win_rate, is_whale, is_fresh,
			tx_count, max_trade_value, activity_level, last_updated
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (address) DO UPDATE SET
			label           = EXCLUDED.label,
			total_pnl       = EXCLUDED.total_pnl,
			win_rate        = EXCLUDED.win_rate,
			is_whale        = EXCLUDED.is_whale,
			is_fresh        = EXCLUDED.is_fresh,
			tx_count        = EXCLUDED.tx_count,
			max_trade_value = GREATEST(wallet_profiles.max_trade_value, EXCLUDED.max_trade_value),
			activity_level  = EXCLUDED.activity_level,
			last_updated    = EXCLUDED.last_updated`

	_, err := s.pool.Exec(ctx, query,
		strings.ToLower(p.Address), p.Label, p.TotalPnl, p.WinRate,
		p.IsWhale, p.IsFresh, p.TxCount, p.MaxTradeValue,
		p.ActivityLevel, p.LastUpdated,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert profile %s: %w", p.Address, err)
	}
	return nil
}

// Get returns the stored profile for a wallet.
func (s *ProfileStore) Get(ctx context.Context, address string) (domain.WalletProfile, error) {
	const query = `
		SELECT address, label, total_pnl, win_rate, is_whale, is_fresh,
			tx_count, max_trade_value, activity_level, last_updated
		FROM wallet_profiles WHERE address = $1`

	var p domain.WalletProfile
	err := s.pool.QueryRow(ctx, query, strings.ToLower(address)).Scan(
		&p.Address, &p.Label, &p.TotalPnl, &p.WinRate, &p.IsWhale, &p.IsFresh,
		&p.TxCount, &p.MaxTradeValue, &p.ActivityLevel, &p.LastUpdated,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.WalletProfile{}, fmt.Errorf("postgres: profile %s: %w", address, domain.ErrNotFound)
		}
		return domain.WalletProfile{}, fmt.Errorf("postgres: get profile %s: %w", address, err)
	}
	return p, nil
}

// RecordTradeValue bumps a wallet's max_trade_value when the given value
// exceeds it, inserting a stub row for wallets not yet profiled.
func (s *ProfileStore) RecordTradeValue(ctx context.Context, address string, value float64) error {
	const query = `
		INSERT INTO wallet_profiles (address, max_trade_value, last_updated)
		VALUES ($1, $2, NOW())
		ON CONFLICT (address) DO UPDATE SET
			max_trade_value = GREATEST(wallet_profiles.max_trade_value, EXCLUDED.max_trade_value)`

	if _, err := s.pool.Exec(ctx, query, strings.ToLower(address), value); err != nil {
		return fmt.Errorf("postgres: record trade value for %s: %w", address, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.ProfileStore = (*ProfileStore)(nil)
