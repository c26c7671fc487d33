package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
mode = "ingest"
log_level = "debug"

[classifier]
whale = 10000
mega_whale = 20000
super_whale = 60000
god_whale = 120000

[enrich]
match_window = "10s"

[redis]
addr = "redis.internal:6379"
stream_max_len = 5000
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "ingest", cfg.Mode)
	assert.Equal(t, float64(10000), cfg.Classifier.Whale)
	assert.Equal(t, 10*time.Second, cfg.Enrich.MatchWindow.Duration)
	assert.Equal(t, "redis.internal:6379", cfg.Redis.Addr)
	assert.Equal(t, int64(5000), cfg.Redis.StreamMaxLen)

	// Untouched sections keep their defaults.
	assert.Equal(t, "https://gamma-api.polymarket.com", cfg.Polymarket.GammaHost)
	assert.Equal(t, 50, cfg.Reconcile.BatchSize)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("WHALEWATCH_MODE", "reconcile")
	t.Setenv("WHALEWATCH_POSTGRES_PASSWORD", "hunter2")
	t.Setenv("WHALEWATCH_CLASSIFIER_MIN_TRADE_VALUE", "2500")
	t.Setenv("WHALEWATCH_FEED_RECONNECT_DELAY", "2s")
	t.Setenv("WHALEWATCH_SERVER_CORS_ORIGINS", "https://a.example, https://b.example")

	cfg := Defaults()
	applyEnvOverrides(&cfg)

	assert.Equal(t, "reconcile", cfg.Mode)
	assert.Equal(t, "hunter2", cfg.Postgres.Password)
	assert.Equal(t, float64(2500), cfg.Classifier.MinTradeValue)
	assert.Equal(t, 2*time.Second, cfg.Feed.ReconnectDelay.Duration)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "turbo"
	cfg.Classifier.Whale = 200000 // breaks strict ordering
	cfg.Redis.Addr = ""
	cfg.Notify.TelegramToken = "tok" // chat id missing

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
	assert.Contains(t, err.Error(), "strictly increasing")
	assert.Contains(t, err.Error(), "redis: addr")
	assert.Contains(t, err.Error(), "telegram_token and telegram_chat_id")
}

func TestRedactedConfigMasksSecrets(t *testing.T) {
	cfg := Defaults()
	cfg.Postgres.Password = "secret"
	cfg.S3.SecretKey = "sk"
	cfg.Notify.TelegramToken = "tok"
	cfg.Notify.TelegramChatID = "42"

	red := RedactedConfig(&cfg)
	assert.Equal(t, "***", red.Postgres.Password)
	assert.Equal(t, "***", red.S3.SecretKey)
	assert.Equal(t, "***", red.Notify.TelegramToken)

	// Original untouched.
	assert.Equal(t, "secret", cfg.Postgres.Password)
}
