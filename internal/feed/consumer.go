// Package feed runs the real-time trade stream: one WebSocket connection,
// a reconnect loop, and periodic metadata-driven resubscription.
package feed

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/whalewatch/engine/internal/domain"
)

// State is the consumer's connection state.
type State string

const (
	StateDisconnected State = "DISCONNECTED"
	StateConnecting   State = "CONNECTING"
	StateSubscribed   State = "SUBSCRIBED"
)

const (
	defaultReconnectDelay    = 5 * time.Second
	defaultRefreshInterval   = 10 * time.Minute
	defaultHeartbeatInterval = 30 * time.Second
)

// StreamClient is one WebSocket session. Run blocks until the connection
// fails or the context ends; the consumer owns reconnection.
type StreamClient interface {
	Connect(ctx context.Context) error
	Subscribe(assetIDs []string) error
	Run(ctx context.Context) error
}

// MetadataSource refreshes the market index and returns the full set of
// subscribable asset IDs.
type MetadataSource interface {
	Refresh(ctx context.Context) ([]string, error)
}

// Options tune the consumer's timing. Zero fields select defaults.
type Options struct {
	ReconnectDelay    time.Duration
	RefreshInterval   time.Duration
	HeartbeatInterval time.Duration
}

// Consumer drives the stream through a three-state loop: connect, subscribe
// the full asset set, read until failure, then back off a fixed delay and
// start over. While subscribed, a refresh ticker picks up newly listed
// assets and subscribes just the delta.
type Consumer struct {
	client  StreamClient
	meta    MetadataSource
	handler func(domain.RawTrade)
	opts    Options
	logger  *slog.Logger

	state atomic.Value // State

	mu    sync.Mutex
	known map[string]struct{}

	received atomic.Int64
}

// NewConsumer creates a Consumer. handler is invoked inline for every trade
// the stream delivers.
func NewConsumer(client StreamClient, meta MetadataSource, handler func(domain.RawTrade), opts Options, logger *slog.Logger) *Consumer {
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = defaultReconnectDelay
	}
	if opts.RefreshInterval <= 0 {
		opts.RefreshInterval = defaultRefreshInterval
	}
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = defaultHeartbeatInterval
	}

	c := &Consumer{
		client:  client,
		meta:    meta,
		handler: handler,
		opts:    opts,
		logger:  logger.With(slog.String("component", "feed")),
		known:   make(map[string]struct{}),
	}
	c.state.Store(StateDisconnected)
	return c
}

// State returns the current connection state.
func (c *Consumer) State() State {
	return c.state.Load().(State)
}

// Received returns the total number of trades delivered so far.
func (c *Consumer) Received() int64 {
	return c.received.Load()
}

// HandleTrade is the stream-side entry point; register it with the
// WebSocket client's trade handler.
func (c *Consumer) HandleTrade(trade domain.RawTrade) {
	c.received.Add(1)
	c.handler(trade)
}

// Run blocks until the context ends, reconnecting with a fixed delay after
// every failure. Errors never escape one cycle; the loop is the recovery.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			c.setState(StateDisconnected)
			return err
		}

		if err := c.runOnce(ctx); err != nil && ctx.Err() == nil {
			c.logger.Warn("stream cycle ended",
				slog.String("error", err.Error()),
				slog.Duration("retry_in", c.opts.ReconnectDelay),
			)
		}
		c.setState(StateDisconnected)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.opts.ReconnectDelay):
		}
	}
}

// runOnce performs one full cycle: refresh metadata, connect, subscribe
// everything, then read until the connection drops.
func (c *Consumer) runOnce(ctx context.Context) error {
	c.setState(StateConnecting)

	assetIDs, err := c.meta.Refresh(ctx)
	if err != nil {
		return err
	}

	if err := c.client.Connect(ctx); err != nil {
		return err
	}

	// Every cycle starts from the full set; deltas only apply within a
	// connection.
	if err := c.client.Subscribe(assetIDs); err != nil {
		return err
	}
	c.resetKnown(assetIDs)
	c.setState(StateSubscribed)
	c.logger.Info("subscribed", slog.Int("assets", len(assetIDs)))

	cycleCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go c.refreshLoop(cycleCtx)
	go c.heartbeatLoop(cycleCtx)

	return c.client.Run(cycleCtx)
}

// refreshLoop periodically re-reads the market listing and subscribes any
// assets that appeared since the connection was established.
func (c *Consumer) refreshLoop(ctx context.Context) {
	ticker := time.NewTicker(c.opts.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			assetIDs, err := c.meta.Refresh(ctx)
			if err != nil {
				c.logger.Warn("metadata refresh failed", slog.String("error", err.Error()))
				continue
			}

			delta := c.takeDelta(assetIDs)
			if len(delta) == 0 {
				continue
			}
			if err := c.client.Subscribe(delta); err != nil {
				c.logger.Warn("delta subscribe failed",
					slog.Int("assets", len(delta)),
					slog.String("error", err.Error()),
				)
				continue
			}
			c.logger.Info("subscribed to new assets", slog.Int("assets", len(delta)))
		}
	}
}

// heartbeatLoop logs liveness and throughput at a fixed cadence.
func (c *Consumer) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(c.opts.HeartbeatInterval)
	defer ticker.Stop()

	last := c.received.Load()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			total := c.received.Load()
			c.logger.Info("stream heartbeat",
				slog.String("state", string(c.State())),
				slog.Int64("trades_total", total),
				slog.Int64("trades_delta", total-last),
			)
			last = total
		}
	}
}

func (c *Consumer) setState(s State) {
	c.state.Store(s)
}

// resetKnown replaces the known-asset set with the current full set.
func (c *Consumer) resetKnown(assetIDs []string) {
	known := make(map[string]struct{}, len(assetIDs))
	for _, id := range assetIDs {
		known[id] = struct{}{}
	}
	c.mu.Lock()
	c.known = known
	c.mu.Unlock()
}

// takeDelta returns the asset IDs not yet subscribed and records them as
// known.
func (c *Consumer) takeDelta(assetIDs []string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	var delta []string
	for _, id := range assetIDs {
		if _, ok := c.known[id]; !ok {
			delta = append(delta, id)
			c.known[id] = struct{}{}
		}
	}
	return delta
}
