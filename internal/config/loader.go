package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies WHALEWATCH_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known WHALEWATCH_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Polymarket ──
	setStr(&cfg.Polymarket.GammaHost, "WHALEWATCH_POLYMARKET_GAMMA_HOST")
	setStr(&cfg.Polymarket.ClobHost, "WHALEWATCH_POLYMARKET_CLOB_HOST")
	setStr(&cfg.Polymarket.DataHost, "WHALEWATCH_POLYMARKET_DATA_HOST")
	setStr(&cfg.Polymarket.WsHost, "WHALEWATCH_POLYMARKET_WS_HOST")
	setStr(&cfg.Polymarket.RpcURL, "WHALEWATCH_POLYMARKET_RPC_URL")

	// ── Classifier ──
	setStr(&cfg.Classifier.Mode, "WHALEWATCH_CLASSIFIER_MODE")
	setFloat64(&cfg.Classifier.MinTradeValue, "WHALEWATCH_CLASSIFIER_MIN_TRADE_VALUE")
	setFloat64(&cfg.Classifier.OddsCeiling, "WHALEWATCH_CLASSIFIER_ODDS_CEILING")
	setFloat64(&cfg.Classifier.Whale, "WHALEWATCH_CLASSIFIER_WHALE")
	setFloat64(&cfg.Classifier.MegaWhale, "WHALEWATCH_CLASSIFIER_MEGA_WHALE")
	setFloat64(&cfg.Classifier.SuperWhale, "WHALEWATCH_CLASSIFIER_SUPER_WHALE")
	setFloat64(&cfg.Classifier.GodWhale, "WHALEWATCH_CLASSIFIER_GOD_WHALE")

	// ── Enrich ──
	setDuration(&cfg.Enrich.MatchWindow, "WHALEWATCH_ENRICH_MATCH_WINDOW")
	setFloat64(&cfg.Enrich.PriceTolerance, "WHALEWATCH_ENRICH_PRICE_TOLERANCE")
	setFloat64(&cfg.Enrich.SizeTolerance, "WHALEWATCH_ENRICH_SIZE_TOLERANCE")

	// ── Profile ──
	setFloat64(&cfg.Profile.WhalePositionValue, "WHALEWATCH_PROFILE_WHALE_POSITION_VALUE")
	setDuration(&cfg.Profile.CacheTTL, "WHALEWATCH_PROFILE_CACHE_TTL")

	// ── Feed ──
	setDuration(&cfg.Feed.ReconnectDelay, "WHALEWATCH_FEED_RECONNECT_DELAY")
	setDuration(&cfg.Feed.RefreshInterval, "WHALEWATCH_FEED_REFRESH_INTERVAL")
	setDuration(&cfg.Feed.HeartbeatInterval, "WHALEWATCH_FEED_HEARTBEAT_INTERVAL")

	// ── Reconcile ──
	setDuration(&cfg.Reconcile.Interval, "WHALEWATCH_RECONCILE_INTERVAL")
	setInt(&cfg.Reconcile.BatchSize, "WHALEWATCH_RECONCILE_BATCH_SIZE")
	setDuration(&cfg.Reconcile.MaxAge, "WHALEWATCH_RECONCILE_MAX_AGE")
	setDuration(&cfg.Reconcile.RateLimitDelay, "WHALEWATCH_RECONCILE_RATE_LIMIT_DELAY")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "WHALEWATCH_ARCHIVE_ENABLED")
	setInt(&cfg.Archive.RetentionDays, "WHALEWATCH_ARCHIVE_RETENTION_DAYS")
	setStr(&cfg.Archive.Cron, "WHALEWATCH_ARCHIVE_CRON")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "WHALEWATCH_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "WHALEWATCH_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "WHALEWATCH_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "WHALEWATCH_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "WHALEWATCH_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "WHALEWATCH_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "WHALEWATCH_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "WHALEWATCH_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "WHALEWATCH_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "WHALEWATCH_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "WHALEWATCH_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "WHALEWATCH_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "WHALEWATCH_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "WHALEWATCH_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "WHALEWATCH_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "WHALEWATCH_REDIS_TLS_ENABLED")
	setInt64(&cfg.Redis.StreamMaxLen, "WHALEWATCH_REDIS_STREAM_MAX_LEN")
	setDuration(&cfg.Redis.ProfileTTL, "WHALEWATCH_REDIS_PROFILE_TTL")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "WHALEWATCH_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "WHALEWATCH_S3_REGION")
	setStr(&cfg.S3.Bucket, "WHALEWATCH_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "WHALEWATCH_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "WHALEWATCH_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "WHALEWATCH_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "WHALEWATCH_S3_FORCE_PATH_STYLE")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "WHALEWATCH_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "WHALEWATCH_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "WHALEWATCH_SERVER_CORS_ORIGINS")
	setInt(&cfg.Server.RateLimit, "WHALEWATCH_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateLimitWindow, "WHALEWATCH_SERVER_RATE_LIMIT_WINDOW")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "WHALEWATCH_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "WHALEWATCH_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "WHALEWATCH_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "WHALEWATCH_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "WHALEWATCH_MODE")
	setStr(&cfg.LogLevel, "WHALEWATCH_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
