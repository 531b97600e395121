package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies BTCARB_* environment variable overrides, and
// returns the final Config. An empty path skips the file and uses defaults
// plus environment. The returned Config has NOT been validated; the caller
// should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known BTCARB_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty).
func applyEnvOverrides(cfg *Config) {
	// ── General ──
	setDecimal(&cfg.General.MinProfitThreshold, "BTCARB_MIN_PROFIT_THRESHOLD")
	setDecimal(&cfg.General.MaxPositionSize, "BTCARB_MAX_POSITION_SIZE")
	setDecimal(&cfg.General.MaxSlippage, "BTCARB_MAX_SLIPPAGE")

	// ── Detector ──
	setStr(&cfg.Detector.Mode, "BTCARB_DETECTOR_MODE")
	setInt(&cfg.Detector.TopMarkets, "BTCARB_DETECTOR_TOP_MARKETS")
	setInt(&cfg.Detector.FetchLimit, "BTCARB_DETECTOR_FETCH_LIMIT")

	// ── Polymarket ──
	setStr(&cfg.Polymarket.GammaHost, "BTCARB_POLYMARKET_GAMMA_HOST")
	setStr(&cfg.Polymarket.RPCURL, "BTCARB_POLYMARKET_RPC_URL")
	setStr(&cfg.Polymarket.Network, "BTCARB_POLYMARKET_NETWORK")
	setInt(&cfg.Polymarket.ChainID, "BTCARB_POLYMARKET_CHAIN_ID")
	setStr(&cfg.Polymarket.PrivateKey, "BTCARB_POLYMARKET_PRIVATE_KEY")
	setStr(&cfg.Polymarket.EncryptedKeyPath, "BTCARB_POLYMARKET_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Polymarket.KeyPassword, "BTCARB_POLYMARKET_KEY_PASSWORD")

	// ── Bitcoin ──
	setStr(&cfg.Bitcoin.Protocol, "BTCARB_BTC_PROTOCOL")
	setStr(&cfg.Bitcoin.Lightning.Endpoint, "BTCARB_LIGHTNING_ENDPOINT")
	setStr(&cfg.Bitcoin.Lightning.MacaroonPath, "BTCARB_LIGHTNING_MACAROON_PATH")
	setStr(&cfg.Bitcoin.Lightning.CertPath, "BTCARB_LIGHTNING_CERT_PATH")
	setStr(&cfg.Bitcoin.Lightning.PredyxURL, "BTCARB_PREDYX_URL")
	setStr(&cfg.Bitcoin.Lightning.PredyxAPIKey, "BTCARB_PREDYX_API_KEY")
	setInt(&cfg.Bitcoin.Lightning.PredyxRetries, "BTCARB_PREDYX_RETRIES")
	setDecimal(&cfg.Bitcoin.Lightning.BTCUSDPrice, "BTCARB_BTC_USD_PRICE")
	setStr(&cfg.Bitcoin.Ordinals.WalletAddress, "BTCARB_ORDINALS_WALLET_ADDRESS")
	setStr(&cfg.Bitcoin.Ordinals.APIEndpoint, "BTCARB_ORDINALS_API_ENDPOINT")
	setStr(&cfg.Bitcoin.Stacks.APIKey, "BTCARB_STACKS_API_KEY")
	setStr(&cfg.Bitcoin.Stacks.Network, "BTCARB_STACKS_NETWORK")
	setStr(&cfg.Bitcoin.RSK.RPCURL, "BTCARB_RSK_RPC_URL")
	setStr(&cfg.Bitcoin.RSK.PrivateKey, "BTCARB_RSK_PRIVATE_KEY")
	setStr(&cfg.Bitcoin.Liquid.RPCURL, "BTCARB_LIQUID_RPC_URL")
	setStr(&cfg.Bitcoin.Liquid.PrivateKey, "BTCARB_LIQUID_PRIVATE_KEY")

	// ── Trading ──
	setBool(&cfg.Trading.AutoExecute, "BTCARB_AUTO_EXECUTE")
	setBool(&cfg.Trading.RequireConfirmation, "BTCARB_REQUIRE_CONFIRMATION")
	setInt(&cfg.Trading.MaxConcurrentTrades, "BTCARB_MAX_CONCURRENT_TRADES")
	setDuration(&cfg.Trading.Interval, "BTCARB_TRADING_INTERVAL")
	setDuration(&cfg.Trading.DedupWindow, "BTCARB_TRADING_DEDUP_WINDOW")

	// ── Risk ──
	setDecimal(&cfg.Risk.MaxDailyLoss, "BTCARB_MAX_DAILY_LOSS")
	setBool(&cfg.Risk.StopOnMaxLoss, "BTCARB_STOP_ON_MAX_LOSS")
	setInt(&cfg.Risk.MaxOpenPositions, "BTCARB_MAX_OPEN_POSITIONS")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "BTCARB_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "BTCARB_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "BTCARB_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "BTCARB_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "BTCARB_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "BTCARB_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "BTCARB_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "BTCARB_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "BTCARB_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "BTCARB_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "BTCARB_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "BTCARB_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "BTCARB_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "BTCARB_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "BTCARB_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "BTCARB_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "BTCARB_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "BTCARB_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "BTCARB_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "BTCARB_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "BTCARB_S3_REGION")
	setStr(&cfg.S3.Bucket, "BTCARB_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "BTCARB_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "BTCARB_S3_SECRET_KEY")
	setBool(&cfg.S3.ForcePathStyle, "BTCARB_S3_FORCE_PATH_STYLE")

	// ── Server ──
	setInt(&cfg.Server.Port, "BTCARB_SERVER_PORT")
	setStr(&cfg.Server.APIKey, "BTCARB_SERVER_API_KEY")
	setStringSlice(&cfg.Server.CORSOrigins, "BTCARB_SERVER_CORS_ORIGINS")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "BTCARB_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "BTCARB_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "BTCARB_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "BTCARB_NOTIFY_EVENTS")

	// ── Logging ──
	setStr(&cfg.Logging.File, "BTCARB_LOG_FILE")
	setInt(&cfg.Logging.MaxSizeMB, "BTCARB_LOG_MAX_SIZE_MB")
	setInt(&cfg.Logging.MaxBackups, "BTCARB_LOG_MAX_BACKUPS")
	setInt(&cfg.Logging.MaxAgeDays, "BTCARB_LOG_MAX_AGE_DAYS")
	setBool(&cfg.Logging.Compress, "BTCARB_LOG_COMPRESS")

	// ── Top-level ──
	setStr(&cfg.Mode, "BTCARB_MODE")
	setStr(&cfg.LogLevel, "BTCARB_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present, non-empty and parses.
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

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDecimal(dst *decimal.Decimal, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := decimal.NewFromString(strings.TrimSpace(v)); err == nil {
			*dst = d
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
