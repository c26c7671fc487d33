package feed

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whalewatch/engine/internal/domain"
)

type scriptedClient struct {
	mu          sync.Mutex
	connectErrs []error
	connects    int
	subscribes  [][]string
	runErr      error
	runOnce     bool
}

func (s *scriptedClient) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connects++
	if len(s.connectErrs) > 0 {
		err := s.connectErrs[0]
		s.connectErrs = s.connectErrs[1:]
		return err
	}
	return nil
}

func (s *scriptedClient) Subscribe(assetIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, len(assetIDs))
	copy(ids, assetIDs)
	s.subscribes = append(s.subscribes, ids)
	return nil
}

func (s *scriptedClient) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.runErr != nil && !s.runOnce {
		s.runOnce = true
		err := s.runErr
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()
	<-ctx.Done()
	return ctx.Err()
}

func (s *scriptedClient) snapshotSubscribes() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]string, len(s.subscribes))
	copy(out, s.subscribes)
	return out
}

type stubMeta struct {
	mu     sync.Mutex
	assets []string
	err    error
}

func (m *stubMeta) Refresh(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.assets...), m.err
}

func (m *stubMeta) set(assets []string) {
	m.mu.Lock()
	m.assets = assets
	m.mu.Unlock()
}

func fastOpts() Options {
	return Options{
		ReconnectDelay:    5 * time.Millisecond,
		RefreshInterval:   10 * time.Millisecond,
		HeartbeatInterval: time.Hour,
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not reached")
}

func TestConsumerSubscribesFullSetOnConnect(t *testing.T) {
	client := &scriptedClient{}
	meta := &stubMeta{assets: []string{"a1", "a2"}}
	c := NewConsumer(client, meta, func(domain.RawTrade) {}, fastOpts(), slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	waitFor(t, func() bool { return c.State() == StateSubscribed })
	subs := client.snapshotSubscribes()
	require.NotEmpty(t, subs)
	assert.Equal(t, []string{"a1", "a2"}, subs[0])
}

func TestConsumerDeltaResubscribe(t *testing.T) {
	client := &scriptedClient{}
	meta := &stubMeta{assets: []string{"a1", "a2"}}
	c := NewConsumer(client, meta, func(domain.RawTrade) {}, fastOpts(), slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	waitFor(t, func() bool { return c.State() == StateSubscribed })
	meta.set([]string{"a1", "a2", "a3"})

	waitFor(t, func() bool { return len(client.snapshotSubscribes()) >= 2 })
	subs := client.snapshotSubscribes()
	assert.Equal(t, []string{"a3"}, subs[len(subs)-1], "only the newly listed asset is subscribed")
}

func TestConsumerReconnectsAfterFailure(t *testing.T) {
	client := &scriptedClient{
		connectErrs: []error{errors.New("dial refused")},
	}
	meta := &stubMeta{assets: []string{"a1"}}
	c := NewConsumer(client, meta, func(domain.RawTrade) {}, fastOpts(), slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	// First connect fails; the loop backs off and succeeds on the second.
	waitFor(t, func() bool { return c.State() == StateSubscribed })
	client.mu.Lock()
	connects := client.connects
	client.mu.Unlock()
	assert.GreaterOrEqual(t, connects, 2)
}

func TestConsumerCountsTrades(t *testing.T) {
	var delivered int
	c := NewConsumer(&scriptedClient{}, &stubMeta{}, func(domain.RawTrade) { delivered++ }, fastOpts(), slog.Default())

	c.HandleTrade(domain.RawTrade{AssetID: "a1"})
	c.HandleTrade(domain.RawTrade{AssetID: "a2"})

	assert.Equal(t, int64(2), c.Received())
	assert.Equal(t, 2, delivered)
}
