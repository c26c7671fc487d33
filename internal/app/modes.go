package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/whalewatch/engine/internal/classifier"
	"github.com/whalewatch/engine/internal/domain"
	"github.com/whalewatch/engine/internal/enrich"
	"github.com/whalewatch/engine/internal/feed"
	"github.com/whalewatch/engine/internal/impact"
	"github.com/whalewatch/engine/internal/markets"
	"github.com/whalewatch/engine/internal/pipeline"
	"github.com/whalewatch/engine/internal/platform/polymarket"
	"github.com/whalewatch/engine/internal/profile"
	"github.com/whalewatch/engine/internal/server"
	"github.com/whalewatch/engine/internal/server/handler"
	"github.com/whalewatch/engine/internal/server/ws"
	"github.com/whalewatch/engine/internal/stats"
)

// IngestMode runs the live feed: metadata index, WebSocket consumer, and the
// per-trade processing pipeline.
func (a *App) IngestMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting ingest mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startIngest(ctx, g, deps)
	return g.Wait()
}

// ReconcileMode runs only the background enrichment sweep.
func (a *App) ReconcileMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting reconcile mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startReconciler(ctx, g, deps)
	return g.Wait()
}

// ServerMode runs only the HTTP API and the WebSocket hub, serving trades
// broadcast by other instances through Redis.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startServer(ctx, g, deps, nil)
	return g.Wait()
}

// FullMode runs every subsystem in one process: ingest, reconcile, the HTTP
// surface, and the archival cron when enabled.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)

	consumer := a.startIngest(ctx, g, deps)
	a.startReconciler(ctx, g, deps)

	if a.cfg.Server.Enabled {
		a.startServer(ctx, g, deps, consumer)
	}

	if a.cfg.Archive.Enabled && deps.Archiver != nil {
		archiver := pipeline.NewArchiver(deps.Archiver, a.cfg.Archive.RetentionDays, a.logger)
		cron := a.cfg.Archive.Cron
		g.Go(func() error {
			err := archiver.RunCron(ctx, cron)
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("archiver cron: %w", err)
		})
	}

	return g.Wait()
}

// startIngest wires the live pipeline and adds the feed consumer to the
// errgroup. It returns the consumer so the HTTP status endpoint can report
// feed state.
func (a *App) startIngest(ctx context.Context, g *errgroup.Group, deps *Dependencies) *feed.Consumer {
	gamma := polymarket.NewGammaClient(a.cfg.Polymarket.GammaHost)
	clob := polymarket.NewClobClient(a.cfg.Polymarket.ClobHost)
	data := polymarket.NewDataClient(a.cfg.Polymarket.DataHost)

	index := markets.NewIndex(gamma, a.logger)
	resolver := a.newWalletResolver(deps, data, true)
	profiles := a.newProfileService(deps, data)

	processor := pipeline.NewProcessor(pipeline.ProcessorDeps{
		Classifier:  a.newClassifier(),
		Markets:     index,
		Wallets:     resolver,
		Profiles:    profiles,
		Impact:      impact.New(clob, a.logger),
		Store:       deps.TradeStore,
		TradeValues: deps.ProfileStore,
		Bus:         deps.SignalBus,
		Notifier:    deps.Notifier,
	}, a.logger)

	wsClient := polymarket.NewWSClient(a.cfg.Polymarket.WsHost + "/ws/market")

	consumer := feed.NewConsumer(wsClient, index, func(raw domain.RawTrade) {
		if err := processor.Process(ctx, raw); err != nil {
			a.logger.ErrorContext(ctx, "trade processing failed",
				slog.String("asset_id", raw.AssetID),
				slog.String("error", err.Error()),
			)
		}
	}, feed.Options{
		ReconnectDelay:    a.cfg.Feed.ReconnectDelay.Duration,
		RefreshInterval:   a.cfg.Feed.RefreshInterval.Duration,
		HeartbeatInterval: a.cfg.Feed.HeartbeatInterval.Duration,
	}, a.logger)
	wsClient.OnTrade(consumer.HandleTrade)

	g.Go(func() error {
		defer wsClient.Close()
		err := consumer.Run(ctx)
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("feed consumer: %w", err)
	})

	return consumer
}

// startReconciler adds the background enrichment sweep to the errgroup.
func (a *App) startReconciler(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	data := polymarket.NewDataClient(a.cfg.Polymarket.DataHost)

	// Stored trades carry no embedded wallet fields, so the sweep runs the
	// off-chain and on-chain strategies only.
	resolver := a.newWalletResolver(deps, data, false)
	profiles := a.newProfileService(deps, data)

	reconciler := pipeline.NewReconciler(
		deps.TradeStore,
		resolver,
		profiles,
		deps.LockManager,
		pipeline.ReconcilerOptions{
			Interval:        a.cfg.Reconcile.Interval.Duration,
			BatchSize:       a.cfg.Reconcile.BatchSize,
			MaxAge:          a.cfg.Reconcile.MaxAge.Duration,
			InterTradeDelay: a.cfg.Reconcile.RateLimitDelay.Duration,
		},
		a.logger,
	)

	g.Go(func() error {
		err := reconciler.Run(ctx)
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("reconciler: %w", err)
	})
}

// startServer adds the HTTP server and WebSocket hub to the errgroup.
// consumer is optional; when set the status endpoint reports feed state.
func (a *App) startServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, consumer *feed.Consumer) {
	startedAt := time.Now().UTC()

	hub := ws.NewHub(deps.SignalBus, a.logger, ws.Config{
		Mode:         a.cfg.Mode,
		StartedAt:    startedAt,
		ReplayStream: pipeline.TradeStream,
	})
	g.Go(func() error {
		err := hub.Run(ctx)
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("ws hub: %w", err)
	})

	var feedState func() string
	var received func() int64
	if consumer != nil {
		feedState = func() string { return string(consumer.State()) }
		received = consumer.Received
	}

	srv := server.NewServer(server.Config{
		Port:            a.cfg.Server.Port,
		CORSOrigins:     a.cfg.Server.CORSOrigins,
		RateLimit:       a.cfg.Server.RateLimit,
		RateLimitWindow: a.cfg.Server.RateLimitWindow.Duration,
	}, server.Handlers{
		Health: handler.NewHealthHandler(a.logger, deps.HealthProbes),
		Status: handler.NewStatusHandler(a.cfg.Mode, startedAt, feedState, received),
	}, hub, deps.RateLimiter, a.logger)

	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}

// newClassifier builds the classifier from config thresholds.
func (a *App) newClassifier() *classifier.Classifier {
	thresholds := classifier.Thresholds{
		MinTradeValue: a.cfg.Classifier.MinTradeValue,
		OddsCeiling:   a.cfg.Classifier.OddsCeiling,
		Whale:         a.cfg.Classifier.Whale,
		MegaWhale:     a.cfg.Classifier.MegaWhale,
		SuperWhale:    a.cfg.Classifier.SuperWhale,
		GodWhale:      a.cfg.Classifier.GodWhale,
	}
	return classifier.New(thresholds, classifier.Mode(a.cfg.Classifier.Mode), stats.NewTracker())
}

// newWalletResolver assembles the enrichment strategy chain. The embedded
// strategy only applies to live feed trades that may carry wallet fields.
func (a *App) newWalletResolver(deps *Dependencies, data *polymarket.DataClient, withEmbedded bool) *enrich.Resolver {
	var strategies []enrich.Strategy
	if withEmbedded {
		strategies = append(strategies, enrich.NewEmbeddedStrategy())
	}
	strategies = append(strategies, enrich.NewOffchainStrategy(
		data,
		a.cfg.Enrich.MatchWindow.Duration,
		a.cfg.Enrich.PriceTolerance,
		a.cfg.Enrich.SizeTolerance,
	))
	if deps.Chain != nil {
		strategies = append(strategies, enrich.NewOnchainStrategy(deps.Chain))
	}
	return enrich.NewResolver(a.logger, strategies...)
}

// newProfileService builds the trader profile service. The chain counter is
// omitted when no RPC client is wired, which leaves freshness unknown.
func (a *App) newProfileService(deps *Dependencies, data *polymarket.DataClient) *profile.Service {
	var chain profile.ChainCounter
	if deps.Chain != nil {
		chain = deps.Chain
	}
	return profile.New(
		deps.ProfileCache,
		deps.ProfileStore,
		data,
		chain,
		a.cfg.Profile.WhalePositionValue,
		a.logger,
	)
}
