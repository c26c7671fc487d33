package domain

import (
	"context"
	"time"
)

// ProfileCache provides TTL-bounded access to wallet profiles. Lookups for
// unknown or expired addresses return ErrNotFound.
type ProfileCache interface {
	Get(ctx context.Context, address string) (WalletProfile, error)
	Set(ctx context.Context, profile WalletProfile) error
}

// RateLimiter bounds request rates per key over a sliding window.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// LockManager provides distributed locking.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// StreamMessage represents a single entry from a Redis stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus provides pub/sub and durable streams.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	// StreamTail returns up to count of the most recent stream entries in
	// chronological order.
	StreamTail(ctx context.Context, stream string, count int) ([]StreamMessage, error)
}
