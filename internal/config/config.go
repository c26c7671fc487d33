// Package config defines the top-level configuration for the whale watch
// engine and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by WHALEWATCH_* environment variables.
type Config struct {
	Polymarket PolymarketConfig `toml:"polymarket"`
	Classifier ClassifierConfig `toml:"classifier"`
	Enrich     EnrichConfig     `toml:"enrich"`
	Profile    ProfileConfig    `toml:"profile"`
	Feed       FeedConfig       `toml:"feed"`
	Reconcile  ReconcileConfig  `toml:"reconcile"`
	Archive    ArchiveConfig    `toml:"archive"`
	Postgres   PostgresConfig   `toml:"postgres"`
	Redis      RedisConfig      `toml:"redis"`
	S3         S3Config         `toml:"s3"`
	Server     ServerConfig     `toml:"server"`
	Notify     NotifyConfig     `toml:"notify"`
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
}

// PolymarketConfig holds Polymarket API endpoints and the Polygon RPC URL
// used for on-chain wallet resolution.
type PolymarketConfig struct {
	GammaHost string `toml:"gamma_host"`
	ClobHost  string `toml:"clob_host"`
	DataHost  string `toml:"data_host"`
	WsHost    string `toml:"ws_host"`
	RpcURL    string `toml:"rpc_url"`
}

// ClassifierConfig holds whale-tier thresholds and the classification mode.
type ClassifierConfig struct {
	// Mode selects "fixed" (dollar thresholds) or "zscore" (legacy
	// statistical mode).
	Mode          string  `toml:"mode"`
	MinTradeValue float64 `toml:"min_trade_value"`
	OddsCeiling   float64 `toml:"odds_ceiling"`
	Whale         float64 `toml:"whale"`
	MegaWhale     float64 `toml:"mega_whale"`
	SuperWhale    float64 `toml:"super_whale"`
	GodWhale      float64 `toml:"god_whale"`
}

// EnrichConfig holds fuzzy-matching tolerances for off-chain wallet
// resolution.
type EnrichConfig struct {
	MatchWindow    duration `toml:"match_window"`
	PriceTolerance float64  `toml:"price_tolerance"`
	SizeTolerance  float64  `toml:"size_tolerance"`
}

// ProfileConfig holds trader-profile parameters. WhalePositionValue is the
// single-position current value above which a wallet counts as a whale.
type ProfileConfig struct {
	WhalePositionValue float64  `toml:"whale_position_value"`
	CacheTTL           duration `toml:"cache_ttl"`
}

// FeedConfig holds the live WebSocket feed parameters.
type FeedConfig struct {
	ReconnectDelay    duration `toml:"reconnect_delay"`
	RefreshInterval   duration `toml:"refresh_interval"`
	HeartbeatInterval duration `toml:"heartbeat_interval"`
}

// ReconcileConfig holds the background enrichment sweep parameters.
type ReconcileConfig struct {
	Interval       duration `toml:"interval"`
	BatchSize      int      `toml:"batch_size"`
	MaxAge         duration `toml:"max_age"`
	RateLimitDelay duration `toml:"rate_limit_delay"`
}

// ArchiveConfig holds cold-storage archival parameters.
type ArchiveConfig struct {
	Enabled       bool   `toml:"enabled"`
	RetentionDays int    `toml:"retention_days"`
	Cron          string `toml:"cron"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr         string   `toml:"addr"`
	Password     string   `toml:"password"`
	DB           int      `toml:"db"`
	PoolSize     int      `toml:"pool_size"`
	MaxRetries   int      `toml:"max_retries"`
	TLSEnabled   bool     `toml:"tls_enabled"`
	StreamMaxLen int64    `toml:"stream_max_len"`
	ProfileTTL   duration `toml:"profile_ttl"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled         bool     `toml:"enabled"`
	Port            int      `toml:"port"`
	CORSOrigins     []string `toml:"cors_origins"`
	RateLimit       int      `toml:"rate_limit"`
	RateLimitWindow duration `toml:"rate_limit_window"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Polymarket: PolymarketConfig{
			GammaHost: "https://gamma-api.polymarket.com",
			ClobHost:  "https://clob.polymarket.com",
			DataHost:  "https://data-api.polymarket.com",
			WsHost:    "wss://ws-subscriptions-clob.polymarket.com",
			RpcURL:    "https://polygon-rpc.com",
		},
		Classifier: ClassifierConfig{
			Mode:          "fixed",
			MinTradeValue: 1000,
			OddsCeiling:   0.97,
			Whale:         8000,
			MegaWhale:     15000,
			SuperWhale:    50000,
			GodWhale:      100000,
		},
		Enrich: EnrichConfig{
			MatchWindow:    duration{5 * time.Second},
			PriceTolerance: 0.001,
			SizeTolerance:  0.01,
		},
		Profile: ProfileConfig{
			WhalePositionValue: 10000,
			CacheTTL:           duration{24 * time.Hour},
		},
		Feed: FeedConfig{
			ReconnectDelay:    duration{5 * time.Second},
			RefreshInterval:   duration{10 * time.Minute},
			HeartbeatInterval: duration{30 * time.Second},
		},
		Reconcile: ReconcileConfig{
			Interval:       duration{5 * time.Minute},
			BatchSize:      50,
			MaxAge:         duration{24 * time.Hour},
			RateLimitDelay: duration{500 * time.Millisecond},
		},
		Archive: ArchiveConfig{
			Enabled:       false,
			RetentionDays: 90,
			Cron:          "0 3 1 * *",
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "postgres",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:         "localhost:6379",
			DB:           0,
			PoolSize:     20,
			MaxRetries:   3,
			TLSEnabled:   false,
			StreamMaxLen: 10000,
			ProfileTTL:   duration{24 * time.Hour},
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "whalewatch-data",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Server: ServerConfig{
			Enabled:         true,
			Port:            8000,
			CORSOrigins:     []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimit:       0,
			RateLimitWindow: duration{time.Second},
		},
		Notify: NotifyConfig{
			Events: []string{"whale_alert", "error"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"ingest":    true,
	"reconcile": true,
	"server":    true,
	"full":      true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	// Mode
	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: ingest, reconcile, server, full)", c.Mode))
	}

	// LogLevel
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Polymarket endpoints
	if c.Polymarket.GammaHost == "" {
		errs = append(errs, "polymarket: gamma_host must not be empty")
	}
	if c.Polymarket.DataHost == "" {
		errs = append(errs, "polymarket: data_host must not be empty")
	}
	if c.Polymarket.WsHost == "" {
		errs = append(errs, "polymarket: ws_host must not be empty")
	}

	// Classifier thresholds must be ordered.
	cl := c.Classifier
	if cl.Mode != "fixed" && cl.Mode != "zscore" {
		errs = append(errs, fmt.Sprintf("classifier: mode must be \"fixed\" or \"zscore\", got %q", cl.Mode))
	}
	if cl.MinTradeValue < 0 {
		errs = append(errs, "classifier: min_trade_value must be >= 0")
	}
	if cl.OddsCeiling <= 0 || cl.OddsCeiling > 1 {
		errs = append(errs, fmt.Sprintf("classifier: odds_ceiling must be in (0, 1], got %v", cl.OddsCeiling))
	}
	if !(cl.Whale < cl.MegaWhale && cl.MegaWhale < cl.SuperWhale && cl.SuperWhale < cl.GodWhale) {
		errs = append(errs, "classifier: tier thresholds must be strictly increasing (whale < mega_whale < super_whale < god_whale)")
	}

	// Enrich
	if c.Enrich.MatchWindow.Duration <= 0 {
		errs = append(errs, "enrich: match_window must be > 0")
	}
	if c.Enrich.PriceTolerance <= 0 {
		errs = append(errs, "enrich: price_tolerance must be > 0")
	}
	if c.Enrich.SizeTolerance <= 0 {
		errs = append(errs, "enrich: size_tolerance must be > 0")
	}

	// Reconcile
	if c.Reconcile.BatchSize < 1 {
		errs = append(errs, "reconcile: batch_size must be >= 1")
	}
	if c.Reconcile.Interval.Duration <= 0 {
		errs = append(errs, "reconcile: interval must be > 0")
	}

	// Postgres
	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 {
		errs = append(errs, "postgres: pool_min_conns must be >= 0")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3 settings are only required when archival is on.
	if c.Archive.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when archive is enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when archive is enabled")
		}
		if c.Archive.RetentionDays < 1 {
			errs = append(errs, "archive: retention_days must be >= 1")
		}
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	// Telegram fields must be set together.
	tt := c.Notify.TelegramToken != ""
	tc := c.Notify.TelegramChatID != ""
	if tt != tc {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
