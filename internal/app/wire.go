package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	s3blob "github.com/whalewatch/engine/internal/blob/s3"
	"github.com/whalewatch/engine/internal/cache/redis"
	"github.com/whalewatch/engine/internal/config"
	"github.com/whalewatch/engine/internal/domain"
	"github.com/whalewatch/engine/internal/notify"
	"github.com/whalewatch/engine/internal/platform/onchain"
	"github.com/whalewatch/engine/internal/store/postgres"
)

// Dependencies bundles every domain-level dependency that the application
// modes need to operate. It is constructed by Wire and torn down by the
// returned cleanup function.
type Dependencies struct {
	// Stores
	TradeStore   domain.TradeStore
	ProfileStore domain.ProfileStore

	// Caches
	ProfileCache domain.ProfileCache
	RateLimiter  domain.RateLimiter
	LockManager  domain.LockManager
	SignalBus    domain.SignalBus

	// Blob storage
	BlobWriter domain.BlobWriter
	Archiver   domain.Archiver

	// Chain access (nil when no RPC URL is configured or the dial failed)
	Chain *onchain.Client

	// Notifications
	Notifier *notify.Notifier

	// HealthProbes are dependency checks surfaced by the health endpoint,
	// keyed by dependency name.
	HealthProbes map[string]func(context.Context) error
}

// needsPostgres returns true for modes that require a database connection.
func needsPostgres(mode string) bool {
	switch mode {
	case "ingest", "reconcile", "full":
		return true
	default:
		return false
	}
}

// needsS3 returns true for modes that require object storage.
func needsS3(cfg *config.Config) bool {
	return cfg.Archive.Enabled && strings.ToLower(cfg.Mode) == "full"
}

// needsChain returns true for modes that resolve wallets or profiles.
func needsChain(mode string) bool {
	switch mode {
	case "ingest", "reconcile", "full":
		return true
	default:
		return false
	}
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()
	mode := strings.ToLower(cfg.Mode)

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{
		HealthProbes: make(map[string]func(context.Context) error),
	}

	// --- PostgreSQL (only for modes that need persistence) ---
	if needsPostgres(mode) {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		pool := pgClient.Pool()
		deps.TradeStore = postgres.NewTradeStore(pool)
		deps.ProfileStore = postgres.NewProfileStore(pool)
		deps.HealthProbes["postgres"] = pool.Ping
	}

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.HealthProbes["redis"] = redisClient.Ping
	deps.ProfileCache = redis.NewProfileCache(redisClient, cfg.Redis.ProfileTTL.Duration)
	deps.RateLimiter = redis.NewRateLimiter(redisClient)
	deps.LockManager = redis.NewLockManager(redisClient)
	deps.SignalBus = redis.NewSignalBus(redisClient, cfg.Redis.StreamMaxLen)

	// --- S3 blob storage (only for modes that archive) ---
	if needsS3(cfg) {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		deps.HealthProbes["s3"] = s3Client.Health
		deps.BlobWriter = s3blob.NewWriter(s3Client)
		if deps.TradeStore != nil {
			deps.Archiver = s3blob.NewArchiver(deps.BlobWriter, deps.TradeStore)
		}
	}

	// --- Polygon RPC (best effort; enrichment degrades without it) ---
	if needsChain(mode) && cfg.Polymarket.RpcURL != "" {
		chain, err := onchain.Dial(ctx, cfg.Polymarket.RpcURL)
		if err != nil {
			logger.WarnContext(ctx, "wire: rpc dial failed, on-chain enrichment disabled",
				slog.String("rpc_url", cfg.Polymarket.RpcURL),
				slog.String("error", err.Error()),
			)
		} else {
			closers = append(closers, chain.Close)
			deps.Chain = chain
		}
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}
