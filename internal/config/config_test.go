package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTOML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultsAreValid(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())

	assert.True(t, cfg.General.MinProfitThreshold.Equal(decimal.RequireFromString("0.05")))
	assert.True(t, cfg.General.MaxPositionSize.Equal(decimal.NewFromInt(1000)))
	assert.True(t, cfg.Risk.MaxDailyLoss.Equal(decimal.NewFromInt(500)))
	assert.Equal(t, 5, cfg.Risk.MaxOpenPositions)
	assert.True(t, cfg.Risk.StopOnMaxLoss)
	assert.False(t, cfg.Trading.AutoExecute)
	assert.True(t, cfg.Trading.RequireConfirmation)
	assert.Equal(t, 3, cfg.Trading.MaxConcurrentTrades)
	assert.Equal(t, 60*time.Second, cfg.Trading.Interval.Duration)
	assert.Equal(t, "lightning", cfg.Bitcoin.Protocol)
	assert.Equal(t, 137, cfg.Polymarket.ChainID)
	assert.Equal(t, "first", cfg.Detector.Mode)
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := writeTOML(t, `
mode = "scan"

[general]
min_profit_threshold = "0.10"
max_slippage = 0.02

[bitcoin]
protocol = "stacks"

[trading]
interval = "15s"
dedup_window = "2m"
auto_execute = true

[risk]
max_daily_loss = 250
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "scan", cfg.Mode)
	assert.True(t, cfg.General.MinProfitThreshold.Equal(decimal.RequireFromString("0.1")))
	assert.True(t, cfg.General.MaxSlippage.Equal(decimal.RequireFromString("0.02")))
	assert.Equal(t, "stacks", cfg.Bitcoin.Protocol)
	assert.Equal(t, 15*time.Second, cfg.Trading.Interval.Duration)
	assert.Equal(t, 2*time.Minute, cfg.Trading.DedupWindow.Duration)
	assert.True(t, cfg.Trading.AutoExecute)
	assert.True(t, cfg.Risk.MaxDailyLoss.Equal(decimal.NewFromInt(250)))

	// Untouched sections keep their defaults.
	assert.Equal(t, 5, cfg.Risk.MaxOpenPositions)
	assert.Equal(t, "https://gamma-api.polymarket.com", cfg.Polymarket.GammaHost)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: decode")
}

func TestLoadEmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "monitor", cfg.Mode)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("BTCARB_MIN_PROFIT_THRESHOLD", "0.07")
	t.Setenv("BTCARB_BTC_PROTOCOL", "rsk")
	t.Setenv("BTCARB_AUTO_EXECUTE", "true")
	t.Setenv("BTCARB_MAX_OPEN_POSITIONS", "9")
	t.Setenv("BTCARB_TRADING_INTERVAL", "5s")
	t.Setenv("BTCARB_SERVER_CORS_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("BTCARB_MAX_DAILY_LOSS", "not-a-number")

	cfg, err := Load(writeTOML(t, `mode = "monitor"`))
	require.NoError(t, err)

	assert.True(t, cfg.General.MinProfitThreshold.Equal(decimal.RequireFromString("0.07")))
	assert.Equal(t, "rsk", cfg.Bitcoin.Protocol)
	assert.True(t, cfg.Trading.AutoExecute)
	assert.Equal(t, 9, cfg.Risk.MaxOpenPositions)
	assert.Equal(t, 5*time.Second, cfg.Trading.Interval.Duration)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	// Unparseable values leave the default in place.
	assert.True(t, cfg.Risk.MaxDailyLoss.Equal(decimal.NewFromInt(500)))
}

func TestValidateCollectsErrors(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "bogus"
	cfg.Bitcoin.Protocol = "carrier-pigeon"
	cfg.General.MaxPositionSize = decimal.Zero
	cfg.Trading.MaxConcurrentTrades = 0
	cfg.Polymarket.EncryptedKeyPath = "/keys/poly.enc"
	cfg.Bitcoin.Lightning.BTCUSDPrice = decimal.NewFromInt(-1)

	err := cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "config validation failed")
	assert.Contains(t, msg, `unknown mode "bogus"`)
	assert.Contains(t, msg, `unknown protocol "carrier-pigeon"`)
	assert.Contains(t, msg, "max_position_size must be > 0")
	assert.Contains(t, msg, "max_concurrent_trades must be >= 1")
	assert.Contains(t, msg, "key_password is required")
	assert.Contains(t, msg, "btc_usd_price must be >= 0")
}

func TestValidateOptionalBackends(t *testing.T) {
	cfg := Defaults()
	cfg.Redis.Addr = ""
	cfg.S3.Bucket = ""
	require.NoError(t, cfg.Validate(), "disabled backends are not validated")

	cfg.Redis.Enabled = true
	cfg.S3.Enabled = true
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis: addr must not be empty")
	assert.Contains(t, err.Error(), "s3: bucket must not be empty")
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Polymarket.PrivateKey = "0xdeadbeef"
	cfg.Bitcoin.Lightning.PredyxAPIKey = "predyx-key"
	cfg.Postgres.Password = "hunter2"
	cfg.Notify.TelegramToken = "tg"

	out := RedactedConfig(&cfg)
	assert.Equal(t, "***", out.Polymarket.PrivateKey)
	assert.Equal(t, "***", out.Bitcoin.Lightning.PredyxAPIKey)
	assert.Equal(t, "***", out.Postgres.Password)
	assert.Equal(t, "***", out.Notify.TelegramToken)
	assert.Empty(t, out.Redis.Password, "empty secrets stay empty")

	assert.Equal(t, "0xdeadbeef", cfg.Polymarket.PrivateKey, "original is untouched")

	out.Server.CORSOrigins[0] = "mutated"
	assert.Equal(t, "http://localhost:3000", cfg.Server.CORSOrigins[0])
}
