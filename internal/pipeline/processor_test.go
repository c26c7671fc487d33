package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whalewatch/engine/internal/classifier"
	"github.com/whalewatch/engine/internal/domain"
	"github.com/whalewatch/engine/internal/stats"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

type fakeStore struct {
	mu       sync.Mutex
	trades   map[string]domain.EnrichedTrade
	upserts  []domain.EnrichedTrade
	updates  map[string][]domain.EnrichmentUpdate
	unenrich []domain.EnrichedTrade
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		trades:  make(map[string]domain.EnrichedTrade),
		updates: make(map[string][]domain.EnrichmentUpdate),
	}
}

func (s *fakeStore) Upsert(ctx context.Context, t domain.EnrichedTrade) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.trades[t.ID]; exists {
		return nil
	}
	s.trades[t.ID] = t
	s.upserts = append(s.upserts, t)
	return nil
}

func (s *fakeStore) UpdateEnrichment(ctx context.Context, id string, upd domain.EnrichmentUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.trades[id]
	if ok && t.Status == domain.EnrichmentEnriched {
		return nil // never regress
	}
	if ok {
		if upd.WalletAddress != "" {
			t.WalletAddress = upd.WalletAddress
		}
		t.Status = upd.Status
		s.trades[id] = t
	}
	s.updates[id] = append(s.updates[id], upd)
	return nil
}

func (s *fakeStore) ListUnenriched(ctx context.Context, maxAge time.Duration, limit int) ([]domain.EnrichedTrade, error) {
	if len(s.unenrich) > limit {
		return s.unenrich[:limit], nil
	}
	return s.unenrich, nil
}

func (s *fakeStore) ListBefore(ctx context.Context, before time.Time) ([]domain.EnrichedTrade, error) {
	return nil, nil
}

type fakeMarkets struct{}

func (fakeMarkets) Resolve(assetID string) (domain.AssetOutcome, domain.MarketDescriptor, bool) {
	if assetID != "a1" {
		return domain.AssetOutcome{}, domain.MarketDescriptor{}, false
	}
	return domain.AssetOutcome{OutcomeLabel: "Yes", ConditionID: "c1"},
		domain.MarketDescriptor{ConditionID: "c1", Question: "Will X happen?", EventTitle: "X"},
		true
}

type fakeWallets struct {
	res domain.WalletResolution
	err error
}

func (f *fakeWallets) Resolve(ctx context.Context, trade domain.RawTrade) (domain.WalletResolution, string, error) {
	return f.res, "offchain", f.err
}

type fakeProfiles struct {
	profile domain.WalletProfile
}

func (f *fakeProfiles) Get(ctx context.Context, address string) (domain.WalletProfile, error) {
	p := f.profile
	p.Address = address
	return p, nil
}

type fakeImpact struct {
	result domain.MarketImpact
}

func (f *fakeImpact) Analyze(ctx context.Context, trade domain.RawTrade) domain.MarketImpact {
	return f.result
}

type fakeBus struct {
	mu        sync.Mutex
	published [][]byte
	appended  [][]byte
}

func (b *fakeBus) Publish(ctx context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, payload)
	return nil
}

func (b *fakeBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	return nil, nil
}

func (b *fakeBus) StreamAppend(ctx context.Context, stream string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.appended = append(b.appended, payload)
	return nil
}

func (b *fakeBus) StreamTail(ctx context.Context, stream string, count int) ([]domain.StreamMessage, error) {
	return nil, nil
}

type fakeNotifier struct {
	events []string
	titles []string
}

func (n *fakeNotifier) Notify(ctx context.Context, event, title, message string) error {
	n.events = append(n.events, event)
	n.titles = append(n.titles, title)
	return nil
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

// newProcessor wires a Processor from fakes. Parameters are the interface
// types so a nil argument stays a nil interface and disables that stage,
// matching how NewProcessor treats absent dependencies.
func newProcessor(store domain.TradeStore, wallets WalletResolver, profiles ProfileSource, impact ImpactAnalyzer, bus domain.SignalBus, notifier Notifier) *Processor {
	cls := classifier.New(classifier.DefaultThresholds(), classifier.ModeFixed, stats.NewTracker())
	return NewProcessor(ProcessorDeps{
		Classifier: cls,
		Markets:    fakeMarkets{},
		Wallets:    wallets,
		Profiles:   profiles,
		Impact:     impact,
		Store:      store,
		Bus:        bus,
		Notifier:   notifier,
	}, slog.Default())
}

func rawTrade(price, size float64) domain.RawTrade {
	return domain.RawTrade{
		AssetID:         "a1",
		Price:           price,
		Size:            size,
		Side:            domain.SideBuy,
		TransactionHash: "0xabc",
		Timestamp:       time.Unix(1700000000, 0),
	}
}

func TestProcessPersistsBeforeBroadcast(t *testing.T) {
	store := newFakeStore()
	bus := &fakeBus{}
	wallets := &fakeWallets{res: domain.WalletResolution{Taker: "0xwallet"}}
	p := newProcessor(store, wallets, &fakeProfiles{}, &fakeImpact{}, bus, nil)

	require.NoError(t, p.Process(context.Background(), rawTrade(0.60, 30000)))

	require.Len(t, store.upserts, 1)
	require.Len(t, bus.published, 1)

	stored := store.upserts[0]
	assert.Equal(t, domain.TierMegaWhale, stored.Tier)
	assert.Equal(t, "0xwallet", stored.WalletAddress)
	assert.Equal(t, domain.EnrichmentEnriched, stored.Status)
	assert.Equal(t, "c1", stored.ConditionID)
	assert.Equal(t, "Yes", stored.Outcome)

	var env TradeEnvelope
	require.NoError(t, json.Unmarshal(bus.published[0], &env))
	assert.Equal(t, "trade", env.Event)
	assert.Equal(t, "MEGA_WHALE", env.Trade.Tier)
	assert.Equal(t, "Will X happen?", env.Market.Question)
}

func TestProcessDropsSmallTrades(t *testing.T) {
	store := newFakeStore()
	bus := &fakeBus{}
	p := newProcessor(store, &fakeWallets{}, &fakeProfiles{}, &fakeImpact{}, bus, nil)

	require.NoError(t, p.Process(context.Background(), rawTrade(0.10, 100)))
	assert.Empty(t, store.upserts)
	assert.Empty(t, bus.published)
}

func TestProcessMarksFailedWhenUnresolvable(t *testing.T) {
	store := newFakeStore()
	wallets := &fakeWallets{err: errors.New("all strategies missed")}
	p := newProcessor(store, wallets, &fakeProfiles{}, &fakeImpact{}, &fakeBus{}, nil)

	require.NoError(t, p.Process(context.Background(), rawTrade(0.60, 30000)))

	require.Len(t, store.upserts, 1)
	assert.Equal(t, domain.EnrichmentFailed, store.upserts[0].Status)
	assert.Empty(t, store.upserts[0].WalletAddress)
}

func TestProcessStaysPendingWithoutTxHash(t *testing.T) {
	store := newFakeStore()
	wallets := &fakeWallets{err: errors.New("all strategies missed")}
	p := newProcessor(store, wallets, &fakeProfiles{}, &fakeImpact{}, &fakeBus{}, nil)

	raw := rawTrade(0.60, 200000)
	raw.TransactionHash = ""
	require.NoError(t, p.Process(context.Background(), raw))

	// No hash means no strategy could have succeeded; the trade must not
	// be written off as failed.
	require.Len(t, store.upserts, 1)
	assert.Equal(t, domain.EnrichmentPending, store.upserts[0].Status)
	assert.Empty(t, store.upserts[0].WalletAddress)
}

func TestProcessToleratesNilNotifierOnTopTier(t *testing.T) {
	store := newFakeStore()
	p := newProcessor(store, &fakeWallets{res: domain.WalletResolution{Taker: "0xw"}}, &fakeProfiles{}, &fakeImpact{}, &fakeBus{}, nil)

	// GOD_WHALE reaches the notify stage; a nil notifier must disable it.
	require.NoError(t, p.Process(context.Background(), rawTrade(0.60, 200000)))
	require.Len(t, store.upserts, 1)
}

func TestProcessAppliesProfileFlags(t *testing.T) {
	store := newFakeStore()
	wallets := &fakeWallets{res: domain.WalletResolution{Taker: "0xsmart"}}
	profiles := &fakeProfiles{profile: domain.WalletProfile{
		Label:   domain.LabelSmartWhale,
		IsWhale: true,
		IsFresh: true,
	}}
	p := newProcessor(store, wallets, profiles, &fakeImpact{}, &fakeBus{}, nil)

	// Value 3000: below the whale cutoff, but the profile says whale.
	require.NoError(t, p.Process(context.Background(), rawTrade(0.60, 5000)))

	stored := store.upserts[0]
	assert.True(t, stored.IsWhale)
	assert.True(t, stored.IsSmartMoney)
	assert.True(t, stored.IsFresh)
	assert.ElementsMatch(t, []string{"WHALE", "SMART_MONEY", "FRESH_WALLET"}, stored.Tags())
}

func TestProcessFlagsSweeper(t *testing.T) {
	store := newFakeStore()
	impact := &fakeImpact{result: domain.MarketImpact{IsSweeper: true, LevelsConsumed: 5}}
	p := newProcessor(store, &fakeWallets{res: domain.WalletResolution{Taker: "0xw"}}, &fakeProfiles{}, impact, &fakeBus{}, nil)

	require.NoError(t, p.Process(context.Background(), rawTrade(0.60, 30000)))
	assert.True(t, store.upserts[0].IsSweeper)
}

func TestProcessNotifiesTopTiersOnly(t *testing.T) {
	store := newFakeStore()
	notifier := &fakeNotifier{}
	p := newProcessor(store, &fakeWallets{res: domain.WalletResolution{Taker: "0xw"}}, &fakeProfiles{}, &fakeImpact{}, &fakeBus{}, notifier)

	// MEGA_WHALE: no alert.
	require.NoError(t, p.Process(context.Background(), rawTrade(0.60, 30000)))
	assert.Empty(t, notifier.events)

	// GOD_WHALE: alert fires.
	require.NoError(t, p.Process(context.Background(), rawTrade(0.60, 200000)))
	require.Len(t, notifier.events, 1)
	assert.Equal(t, "whale_alert", notifier.events[0])
	assert.Contains(t, notifier.titles[0], "GOD_WHALE")
}
