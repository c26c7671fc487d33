package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/whalewatch/engine/internal/domain"
)

// defaultProfileTTL is how long a cached trader profile stays valid before
// it is rebuilt from the upstream APIs.
const defaultProfileTTL = 24 * time.Hour

// ProfileCache implements domain.ProfileCache on Redis with a per-entry TTL.
type ProfileCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewProfileCache creates a ProfileCache backed by the given Client.
// ttl <= 0 selects the default of 24 hours.
func NewProfileCache(c *Client, ttl time.Duration) *ProfileCache {
	if ttl <= 0 {
		ttl = defaultProfileTTL
	}
	return &ProfileCache{rdb: c.Underlying(), ttl: ttl}
}

func profileKey(address string) string {
	return "wallet:profile:" + strings.ToLower(address)
}

// Get returns the cached profile for a wallet, or ErrNotFound when the key
// is absent or expired.
func (pc *ProfileCache) Get(ctx context.Context, address string) (domain.WalletProfile, error) {
	data, err := pc.rdb.Get(ctx, profileKey(address)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.WalletProfile{}, domain.ErrNotFound
		}
		return domain.WalletProfile{}, fmt.Errorf("redis: get profile %s: %w", address, err)
	}

	var p domain.WalletProfile
	if err := json.Unmarshal(data, &p); err != nil {
		return domain.WalletProfile{}, fmt.Errorf("redis: decode profile %s: %w", address, err)
	}
	return p, nil
}

// Set stores a profile with the cache TTL.
func (pc *ProfileCache) Set(ctx context.Context, p domain.WalletProfile) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("redis: encode profile %s: %w", p.Address, err)
	}
	if err := pc.rdb.Set(ctx, profileKey(p.Address), data, pc.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set profile %s: %w", p.Address, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.ProfileCache = (*ProfileCache)(nil)
