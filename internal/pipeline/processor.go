// Package pipeline glues the ingestion stages together: classification,
// market resolution, wallet enrichment, impact analysis, persistence, and
// broadcast. It also owns the background reconciliation and archival loops.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/whalewatch/engine/internal/classifier"
	"github.com/whalewatch/engine/internal/domain"
)

// TradeChannel is the Pub/Sub channel live trades are broadcast on.
const TradeChannel = "trades"

// TradeStream is the Redis stream that retains recent broadcast payloads.
const TradeStream = "stream:trades"

// MarketResolver maps an asset ID to its outcome and market metadata.
type MarketResolver interface {
	Resolve(assetID string) (domain.AssetOutcome, domain.MarketDescriptor, bool)
}

// WalletResolver runs the enrichment strategy chain.
type WalletResolver interface {
	Resolve(ctx context.Context, trade domain.RawTrade) (domain.WalletResolution, string, error)
}

// ProfileSource returns the trader profile for a wallet.
type ProfileSource interface {
	Get(ctx context.Context, address string) (domain.WalletProfile, error)
}

// ImpactAnalyzer measures a trade against the order book.
type ImpactAnalyzer interface {
	Analyze(ctx context.Context, trade domain.RawTrade) domain.MarketImpact
}

// TradeValueRecorder bumps a wallet's largest observed trade.
type TradeValueRecorder interface {
	RecordTradeValue(ctx context.Context, address string, value float64) error
}

// Notifier delivers operator alerts.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// Processor turns one raw feed trade into a persisted, broadcast record.
// Store, bus, and notifier are optional; a nil dependency disables that
// stage without affecting the rest.
type Processor struct {
	classifier  *classifier.Classifier
	markets     MarketResolver
	wallets     WalletResolver
	profiles    ProfileSource
	impact      ImpactAnalyzer
	store       domain.TradeStore
	tradeValues TradeValueRecorder
	bus         domain.SignalBus
	notifier    Notifier
	logger      *slog.Logger
}

// ProcessorDeps bundles the Processor's collaborators.
type ProcessorDeps struct {
	Classifier  *classifier.Classifier
	Markets     MarketResolver
	Wallets     WalletResolver
	Profiles    ProfileSource
	Impact      ImpactAnalyzer
	Store       domain.TradeStore
	TradeValues TradeValueRecorder
	Bus         domain.SignalBus
	Notifier    Notifier
}

// NewProcessor creates a Processor.
func NewProcessor(deps ProcessorDeps, logger *slog.Logger) *Processor {
	return &Processor{
		classifier:  deps.Classifier,
		markets:     deps.Markets,
		wallets:     deps.Wallets,
		profiles:    deps.Profiles,
		impact:      deps.Impact,
		store:       deps.Store,
		tradeValues: deps.TradeValues,
		bus:         deps.Bus,
		notifier:    deps.Notifier,
		logger:      logger.With(slog.String("component", "processor")),
	}
}

// Process runs one trade through the full pipeline. Dropped trades return
// nil; only persistence failures surface as errors, because a trade that
// was not stored must not be broadcast.
func (p *Processor) Process(ctx context.Context, raw domain.RawTrade) error {
	result, ok := p.classifier.Classify(raw, false)
	if !ok {
		return nil
	}

	trade := domain.EnrichedTrade{
		ID:              uuid.New().String(),
		AssetID:         raw.AssetID,
		Side:            raw.Side,
		Size:            raw.Size,
		Price:           raw.Price,
		TradeValue:      raw.Value(),
		Timestamp:       raw.Timestamp,
		Tier:            result.Tier,
		IsWhale:         result.IsWhale,
		Status:          domain.EnrichmentPending,
		TransactionHash: raw.TransactionHash,
	}

	if asset, market, found := p.markets.Resolve(raw.AssetID); found {
		trade.ConditionID = market.ConditionID
		trade.Outcome = asset.OutcomeLabel
		trade.Question = market.Question
		trade.EventTitle = market.EventTitle
		trade.Image = market.Image
	} else {
		p.logger.Debug("asset not in metadata index", slog.String("asset_id", raw.AssetID))
	}

	var profile domain.WalletProfile
	if res, strategy, err := p.wallets.Resolve(ctx, raw); err == nil {
		trade.WalletAddress = res.Address()
		trade.BlockNumber = res.BlockNumber
		trade.LogIndex = res.LogIndex
		trade.Status = domain.EnrichmentEnriched

		profile = p.lookupProfile(ctx, trade.WalletAddress, trade.TradeValue)
		trade.IsWhale = trade.IsWhale || profile.IsWhale
		trade.IsSmartMoney = isSmartMoney(profile)
		trade.IsFresh = profile.IsFresh

		p.logger.Debug("wallet resolved",
			slog.String("wallet", trade.WalletAddress),
			slog.String("strategy", strategy),
		)
	} else {
		// Failed is reserved for trades that carried a transaction hash:
		// every strategy had a real chance and missed. Without a hash
		// there is nothing left to try, so the trade stays pending.
		if raw.TransactionHash != "" {
			trade.Status = domain.EnrichmentFailed
		}
		p.logger.Debug("wallet resolution failed",
			slog.String("tx_hash", raw.TransactionHash),
			slog.String("error", err.Error()),
		)
	}

	marketImpact := domain.MarketImpact{}
	if p.impact != nil {
		marketImpact = p.impact.Analyze(ctx, raw)
		trade.IsSweeper = marketImpact.IsSweeper
	}

	// Persist first. Consumers treat a broadcast trade as durable.
	if p.store != nil {
		if err := p.store.Upsert(ctx, trade); err != nil {
			return fmt.Errorf("pipeline: persist trade: %w", err)
		}
	}

	p.broadcast(ctx, trade, profile, marketImpact, result)
	p.notify(ctx, trade)

	p.logger.Info("trade processed",
		slog.String("id", trade.ID),
		slog.String("tier", string(trade.Tier)),
		slog.Float64("value", trade.TradeValue),
		slog.String("status", string(trade.Status)),
	)

	return nil
}

// lookupProfile fetches the trader profile and records this trade's value,
// both best effort.
func (p *Processor) lookupProfile(ctx context.Context, address string, value float64) domain.WalletProfile {
	if p.tradeValues != nil {
		if err := p.tradeValues.RecordTradeValue(ctx, address, value); err != nil {
			p.logger.Warn("record trade value failed",
				slog.String("wallet", address),
				slog.String("error", err.Error()),
			)
		}
	}
	if p.profiles == nil {
		return domain.WalletProfile{}
	}
	profile, err := p.profiles.Get(ctx, address)
	if err != nil {
		p.logger.Warn("profile lookup failed",
			slog.String("wallet", address),
			slog.String("error", err.Error()),
		)
		return domain.WalletProfile{}
	}
	return profile
}

func isSmartMoney(p domain.WalletProfile) bool {
	return p.Label == domain.LabelSmartMoney || p.Label == domain.LabelSmartWhale
}

// broadcast publishes the trade envelope to the Pub/Sub channel and appends
// it to the retained stream. Failures are logged, never fatal.
func (p *Processor) broadcast(ctx context.Context, trade domain.EnrichedTrade, profile domain.WalletProfile, marketImpact domain.MarketImpact, result classifier.Result) {
	if p.bus == nil {
		return
	}

	payload, err := json.Marshal(NewTradeEnvelope(trade, profile, marketImpact, result))
	if err != nil {
		p.logger.Error("envelope marshal failed", slog.String("error", err.Error()))
		return
	}

	if err := p.bus.Publish(ctx, TradeChannel, payload); err != nil {
		p.logger.Warn("trade publish failed", slog.String("error", err.Error()))
	}
	if err := p.bus.StreamAppend(ctx, TradeStream, payload); err != nil {
		p.logger.Warn("trade stream append failed", slog.String("error", err.Error()))
	}
}

// notify alerts operators about the two highest tiers only.
func (p *Processor) notify(ctx context.Context, trade domain.EnrichedTrade) {
	if p.notifier == nil {
		return
	}
	if trade.Tier != domain.TierSuperWhale && trade.Tier != domain.TierGodWhale {
		return
	}

	title := fmt.Sprintf("%s: $%.0f %s", trade.Tier, trade.TradeValue, trade.Side)
	message := fmt.Sprintf("%s\nOutcome: %s @ %.2f\nWallet: %s",
		trade.Question, trade.Outcome, trade.Price, trade.WalletAddress)

	if err := p.notifier.Notify(ctx, "whale_alert", title, message); err != nil {
		p.logger.Warn("whale alert failed", slog.String("error", err.Error()))
	}
}

// --------------------------------------------------------------------------
// Broadcast envelope
// --------------------------------------------------------------------------

// TradeEnvelope is the JSON document broadcast for every processed trade.
type TradeEnvelope struct {
	Event    string          `json:"event"`
	Trade    TradePayload    `json:"trade"`
	Market   MarketPayload   `json:"market"`
	Analysis AnalysisPayload `json:"analysis"`
}

// TradePayload carries the core trade fields.
type TradePayload struct {
	ID            string    `json:"id"`
	AssetID       string    `json:"asset_id"`
	Side          string    `json:"side"`
	Size          float64   `json:"size"`
	Price         float64   `json:"price"`
	TradeValue    float64   `json:"trade_value"`
	Timestamp     time.Time `json:"timestamp"`
	WalletAddress string    `json:"wallet_address,omitempty"`
	Tier          string    `json:"tier"`
	Status        string    `json:"status"`
	TxHash        string    `json:"tx_hash,omitempty"`
}

// MarketPayload carries the resolved market context.
type MarketPayload struct {
	ConditionID string `json:"condition_id,omitempty"`
	Question    string `json:"question,omitempty"`
	EventTitle  string `json:"event_title,omitempty"`
	Outcome     string `json:"outcome,omitempty"`
	Image       string `json:"image,omitempty"`
}

// AnalysisPayload carries derived signals.
type AnalysisPayload struct {
	Tags         []string              `json:"tags"`
	MarketZ      float64               `json:"market_z"`
	GlobalZ      float64               `json:"global_z"`
	Contra       bool                  `json:"contra,omitempty"`
	MarketImpact *ImpactPayload        `json:"market_impact,omitempty"`
	Trader       *TraderContextPayload `json:"trader,omitempty"`
}

// ImpactPayload mirrors domain.MarketImpact for the wire.
type ImpactPayload struct {
	IsSweeper      bool    `json:"is_sweeper"`
	LevelsConsumed int     `json:"levels_consumed"`
	PriceImpact    float64 `json:"price_impact"`
	VisibleSize    float64 `json:"visible_size"`
}

// TraderContextPayload summarizes the resolved wallet's profile.
type TraderContextPayload struct {
	Label         string  `json:"label"`
	TotalPnl      float64 `json:"total_pnl"`
	WinRate       float64 `json:"win_rate"`
	TxCount       int64   `json:"tx_count"`
	ActivityLevel string  `json:"activity_level"`
}

// NewTradeEnvelope assembles the broadcast document from the processed
// trade and its analysis context. Tags are recomputed from the trade's
// flags, never copied.
func NewTradeEnvelope(trade domain.EnrichedTrade, profile domain.WalletProfile, marketImpact domain.MarketImpact, result classifier.Result) TradeEnvelope {
	env := TradeEnvelope{
		Event: "trade",
		Trade: TradePayload{
			ID:            trade.ID,
			AssetID:       trade.AssetID,
			Side:          string(trade.Side),
			Size:          trade.Size,
			Price:         trade.Price,
			TradeValue:    trade.TradeValue,
			Timestamp:     trade.Timestamp,
			WalletAddress: trade.WalletAddress,
			Tier:          string(trade.Tier),
			Status:        string(trade.Status),
			TxHash:        trade.TransactionHash,
		},
		Market: MarketPayload{
			ConditionID: trade.ConditionID,
			Question:    trade.Question,
			EventTitle:  trade.EventTitle,
			Outcome:     trade.Outcome,
			Image:       trade.Image,
		},
		Analysis: AnalysisPayload{
			Tags:    trade.Tags(),
			MarketZ: result.MarketZ,
			GlobalZ: result.GlobalZ,
			Contra:  result.Contra,
		},
	}

	if marketImpact != (domain.MarketImpact{}) {
		env.Analysis.MarketImpact = &ImpactPayload{
			IsSweeper:      marketImpact.IsSweeper,
			LevelsConsumed: marketImpact.LevelsConsumed,
			PriceImpact:    marketImpact.PriceImpact,
			VisibleSize:    marketImpact.VisibleSize,
		}
	}
	if trade.WalletAddress != "" && profile.Address != "" {
		env.Analysis.Trader = &TraderContextPayload{
			Label:         profile.Label,
			TotalPnl:      profile.TotalPnl,
			WinRate:       profile.WinRate,
			TxCount:       profile.TxCount,
			ActivityLevel: string(profile.ActivityLevel),
		}
	}

	return env
}
