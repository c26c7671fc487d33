package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whalewatch/engine/internal/domain"
)

func fastReconcilerOpts() ReconcilerOptions {
	return ReconcilerOptions{
		Interval:        time.Minute,
		BatchSize:       10,
		MaxAge:          time.Hour,
		InterTradeDelay: time.Millisecond,
	}
}

func pendingTrade(id string) domain.EnrichedTrade {
	return domain.EnrichedTrade{
		ID:              id,
		AssetID:         "a1",
		Price:           0.6,
		Size:            20000,
		Side:            domain.SideBuy,
		Status:          domain.EnrichmentPending,
		TransactionHash: "0x" + id,
		Timestamp:       time.Now().Add(-10 * time.Minute),
	}
}

func TestReconcileOnceEnriches(t *testing.T) {
	store := newFakeStore()
	store.trades["t1"] = pendingTrade("t1")
	store.unenrich = []domain.EnrichedTrade{pendingTrade("t1")}

	wallets := &fakeWallets{res: domain.WalletResolution{Taker: "0xfound"}}
	r := NewReconciler(store, wallets, nil, nil, fastReconcilerOpts(), slog.Default())

	require.NoError(t, r.ReconcileOnce(context.Background()))

	updates := store.updates["t1"]
	require.Len(t, updates, 1)
	assert.Equal(t, domain.EnrichmentEnriched, updates[0].Status)
	assert.Equal(t, "0xfound", updates[0].WalletAddress)
}

func TestReconcileOnceMarksFailed(t *testing.T) {
	store := newFakeStore()
	store.trades["t1"] = pendingTrade("t1")
	store.unenrich = []domain.EnrichedTrade{pendingTrade("t1")}

	wallets := &fakeWallets{err: errors.New("nothing matched")}
	r := NewReconciler(store, wallets, nil, nil, fastReconcilerOpts(), slog.Default())

	require.NoError(t, r.ReconcileOnce(context.Background()))

	updates := store.updates["t1"]
	require.Len(t, updates, 1)
	assert.Equal(t, domain.EnrichmentFailed, updates[0].Status)
}

func TestReconcileFailedTradeCanBeEnrichedLater(t *testing.T) {
	store := newFakeStore()
	failed := pendingTrade("t1")
	failed.Status = domain.EnrichmentFailed
	store.trades["t1"] = failed
	store.unenrich = []domain.EnrichedTrade{failed}

	wallets := &fakeWallets{res: domain.WalletResolution{Taker: "0xlate"}}
	r := NewReconciler(store, wallets, nil, nil, fastReconcilerOpts(), slog.Default())

	require.NoError(t, r.ReconcileOnce(context.Background()))
	assert.Equal(t, domain.EnrichmentEnriched, store.trades["t1"].Status)
	assert.Equal(t, "0xlate", store.trades["t1"].WalletAddress)
}

func TestReconcileRespectsBatchSize(t *testing.T) {
	store := newFakeStore()
	for _, id := range []string{"t1", "t2", "t3"} {
		store.trades[id] = pendingTrade(id)
		store.unenrich = append(store.unenrich, pendingTrade(id))
	}

	opts := fastReconcilerOpts()
	opts.BatchSize = 2
	wallets := &fakeWallets{res: domain.WalletResolution{Taker: "0xw"}}
	r := NewReconciler(store, wallets, nil, nil, opts, slog.Default())

	require.NoError(t, r.ReconcileOnce(context.Background()))
	assert.Len(t, store.updates, 2, "only the batch-size prefix is processed")
}

type heldLocks struct{}

func (heldLocks) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	return nil, domain.ErrLockHeld
}

func TestReconcileSkipsWhenLockHeld(t *testing.T) {
	store := newFakeStore()
	store.trades["t1"] = pendingTrade("t1")
	store.unenrich = []domain.EnrichedTrade{pendingTrade("t1")}

	r := NewReconciler(store, &fakeWallets{res: domain.WalletResolution{Taker: "0xw"}}, nil, heldLocks{}, fastReconcilerOpts(), slog.Default())

	require.NoError(t, r.ReconcileOnce(context.Background()))
	assert.Empty(t, store.updates, "a held lock skips the sweep entirely")
}

func TestReconcileSetsProfileFlags(t *testing.T) {
	store := newFakeStore()
	store.trades["t1"] = pendingTrade("t1")
	store.unenrich = []domain.EnrichedTrade{pendingTrade("t1")}

	wallets := &fakeWallets{res: domain.WalletResolution{Taker: "0xsmart"}}
	profiles := &fakeProfiles{profile: domain.WalletProfile{Label: domain.LabelSmartMoney, IsFresh: true}}
	r := NewReconciler(store, wallets, profiles, nil, fastReconcilerOpts(), slog.Default())

	require.NoError(t, r.ReconcileOnce(context.Background()))

	upd := store.updates["t1"][0]
	require.NotNil(t, upd.IsSmartMoney)
	assert.True(t, *upd.IsSmartMoney)
	require.NotNil(t, upd.IsFresh)
	assert.True(t, *upd.IsFresh)
}
