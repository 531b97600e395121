// Package config defines the top-level configuration for the arbitrage bot
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by BTCARB_* environment variables.
type Config struct {
	General    GeneralConfig    `toml:"general"`
	Detector   DetectorConfig   `toml:"detector"`
	Polymarket PolymarketConfig `toml:"polymarket"`
	Bitcoin    BitcoinConfig    `toml:"bitcoin"`
	Trading    TradingConfig    `toml:"trading"`
	Risk       RiskConfig       `toml:"risk"`
	Postgres   PostgresConfig   `toml:"postgres"`
	Redis      RedisConfig      `toml:"redis"`
	S3         S3Config         `toml:"s3"`
	Server     ServerConfig     `toml:"server"`
	Notify     NotifyConfig     `toml:"notify"`
	Logging    LoggingConfig    `toml:"logging"`
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
}

// GeneralConfig holds profit and sizing thresholds. Decimal fields accept
// TOML strings or numbers.
type GeneralConfig struct {
	MinProfitThreshold decimal.Decimal `toml:"min_profit_threshold"`
	MaxPositionSize    decimal.Decimal `toml:"max_position_size"`
	MaxSlippage        decimal.Decimal `toml:"max_slippage"`
}

// DetectorConfig selects how opportunities are chosen and how many markets
// are scanned per tick.
type DetectorConfig struct {
	Mode       string `toml:"mode"` // "first" or "best"
	TopMarkets int    `toml:"top_markets"`
	FetchLimit int    `toml:"fetch_limit"`
}

// PolymarketConfig holds Polymarket endpoints and wallet credentials.
type PolymarketConfig struct {
	GammaHost        string `toml:"gamma_host"`
	RPCURL           string `toml:"rpc_url"`
	Network          string `toml:"network"`
	ChainID          int    `toml:"chain_id"`
	PrivateKey       string `toml:"private_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// BitcoinConfig selects the BTC venue and holds every protocol's settings.
type BitcoinConfig struct {
	Protocol  string          `toml:"protocol"`
	Lightning LightningConfig `toml:"lightning"`
	Ordinals  OrdinalsConfig  `toml:"ordinals"`
	Stacks    StacksConfig    `toml:"stacks"`
	RSK       SidechainConfig `toml:"rsk"`
	Liquid    SidechainConfig `toml:"liquid"`
}

// LightningConfig locates the LND node and the Predyx API.
type LightningConfig struct {
	Endpoint      string `toml:"endpoint"`
	MacaroonPath  string `toml:"macaroon_path"`
	CertPath      string `toml:"cert_path"`
	PredyxURL     string `toml:"predyx_url"`
	PredyxAPIKey  string `toml:"predyx_api_key"`
	PredyxRetries int    `toml:"predyx_retries"`

	// BTCUSDPrice converts position sizes to satoshis. Zero disables the
	// conversion.
	BTCUSDPrice decimal.Decimal `toml:"btc_usd_price"`
}

// OrdinalsConfig holds the ordinals wallet and indexer endpoint.
type OrdinalsConfig struct {
	WalletAddress string `toml:"wallet_address"`
	APIEndpoint   string `toml:"api_endpoint"`
}

// StacksConfig holds Stacks API credentials.
type StacksConfig struct {
	APIKey  string `toml:"api_key"`
	Network string `toml:"network"`
}

// SidechainConfig holds an RPC endpoint and signing key.
type SidechainConfig struct {
	RPCURL     string `toml:"rpc_url"`
	PrivateKey string `toml:"private_key"`
}

// TradingConfig controls the monitor loop and execution gating.
type TradingConfig struct {
	AutoExecute         bool     `toml:"auto_execute"`
	RequireConfirmation bool     `toml:"require_confirmation"`
	MaxConcurrentTrades int      `toml:"max_concurrent_trades"`
	Interval            duration `toml:"interval"`
	DedupWindow         duration `toml:"dedup_window"`
}

// RiskConfig holds pre-trade risk limits.
type RiskConfig struct {
	MaxDailyLoss     decimal.Decimal `toml:"max_daily_loss"`
	StopOnMaxLoss    bool            `toml:"stop_on_max_loss"`
	MaxOpenPositions int             `toml:"max_open_positions"`
}

// PostgresConfig holds the trade journal connection parameters.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
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
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for the report
// archive.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ServerConfig holds dashboard HTTP server parameters.
type ServerConfig struct {
	Port        int      `toml:"port"`
	APIKey      string   `toml:"api_key"`
	CORSOrigins []string `toml:"cors_origins"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// LoggingConfig configures the optional rotating log file.
type LoggingConfig struct {
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
	Compress   bool   `toml:"compress"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
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
func Defaults() Config {
	return Config{
		General: GeneralConfig{
			MinProfitThreshold: decimal.RequireFromString("0.05"),
			MaxPositionSize:    decimal.NewFromInt(1000),
			MaxSlippage:        decimal.RequireFromString("0.01"),
		},
		Detector: DetectorConfig{
			Mode:       "first",
			TopMarkets: 10,
			FetchLimit: 100,
		},
		Polymarket: PolymarketConfig{
			GammaHost: "https://gamma-api.polymarket.com",
			RPCURL:    "https://polygon-rpc.com",
			Network:   "polygon",
			ChainID:   137,
		},
		Bitcoin: BitcoinConfig{
			Protocol: "lightning",
			Lightning: LightningConfig{
				PredyxURL:     "https://beta.predyx.com/api/v1",
				PredyxRetries: 2,
			},
			Stacks: StacksConfig{Network: "mainnet"},
		},
		Trading: TradingConfig{
			AutoExecute:         false,
			RequireConfirmation: true,
			MaxConcurrentTrades: 3,
			Interval:            duration{60 * time.Second},
		},
		Risk: RiskConfig{
			MaxDailyLoss:     decimal.NewFromInt(500),
			StopOnMaxLoss:    true,
			MaxOpenPositions: 5,
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "btcarb",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  1,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   10,
			MaxRetries: 3,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "btcarb-reports",
			ForcePathStyle: true,
		},
		Server: ServerConfig{
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Notify: NotifyConfig{
			Events: []string{"arb_detected", "trade_executed", "trade_failed", "position_closed", "risk_rejected"},
		},
		Logging: LoggingConfig{
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 30,
			Compress:   true,
		},
		Mode:     "monitor",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"monitor": true,
	"server":  true,
	"full":    true,
	"scan":    true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validProtocols = map[string]bool{
	"lightning": true,
	"ordinals":  true,
	"stacks":    true,
	"rsk":       true,
	"liquid":    true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: monitor, server, full, scan)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// General
	if c.General.MinProfitThreshold.IsNegative() {
		errs = append(errs, "general: min_profit_threshold must be >= 0")
	}
	if !c.General.MaxPositionSize.IsPositive() {
		errs = append(errs, "general: max_position_size must be > 0")
	}
	if c.General.MaxSlippage.IsNegative() || c.General.MaxSlippage.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		errs = append(errs, "general: max_slippage must be in [0, 1)")
	}

	// Detector
	if c.Detector.Mode != "first" && c.Detector.Mode != "best" {
		errs = append(errs, fmt.Sprintf("detector: mode must be first or best, got %q", c.Detector.Mode))
	}
	if c.Detector.TopMarkets < 1 {
		errs = append(errs, "detector: top_markets must be >= 1")
	}

	// Polymarket
	if c.Polymarket.GammaHost == "" {
		errs = append(errs, "polymarket: gamma_host must not be empty")
	}
	if c.Polymarket.ChainID <= 0 {
		errs = append(errs, "polymarket: chain_id must be positive")
	}
	if c.Polymarket.EncryptedKeyPath != "" && c.Polymarket.KeyPassword == "" {
		errs = append(errs, "polymarket: key_password is required when encrypted_key_path is set")
	}

	// Bitcoin
	if !validProtocols[strings.ToLower(c.Bitcoin.Protocol)] {
		errs = append(errs, fmt.Sprintf("bitcoin: unknown protocol %q (valid: lightning, ordinals, stacks, rsk, liquid)", c.Bitcoin.Protocol))
	}
	if c.Bitcoin.Lightning.BTCUSDPrice.IsNegative() {
		errs = append(errs, "bitcoin: lightning.btc_usd_price must be >= 0")
	}

	// Trading
	if c.Trading.Interval.Duration <= 0 {
		errs = append(errs, "trading: interval must be > 0")
	}
	if c.Trading.MaxConcurrentTrades < 1 {
		errs = append(errs, "trading: max_concurrent_trades must be >= 1")
	}
	if c.Trading.DedupWindow.Duration < 0 {
		errs = append(errs, "trading: dedup_window must be >= 0")
	}

	// Risk
	if c.Risk.MaxOpenPositions < 1 {
		errs = append(errs, "risk: max_open_positions must be >= 1")
	}

	// Postgres
	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
	}

	// Server
	needsServer := c.Mode == "server" || c.Mode == "full"
	if needsServer && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
