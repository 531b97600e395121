package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	s3blob "github.com/alanyoungcy/btcarb/internal/blob/s3"
	"github.com/alanyoungcy/btcarb/internal/cache/redis"
	"github.com/alanyoungcy/btcarb/internal/config"
	"github.com/alanyoungcy/btcarb/internal/domain"
	"github.com/alanyoungcy/btcarb/internal/notify"
	"github.com/alanyoungcy/btcarb/internal/server/handler"
	"github.com/alanyoungcy/btcarb/internal/service"
	"github.com/alanyoungcy/btcarb/internal/store/postgres"
)

// Dependencies holds the infrastructure built from configuration. Every
// backend is optional: a nil field means the backend is disabled.
type Dependencies struct {
	// Redis-backed
	PriceCache domain.PriceCache
	Locks      domain.LockManager
	SignalBus  domain.SignalBus

	// Postgres-backed
	AuditStore domain.AuditStore
	TradeStore *postgres.TradeStore

	// S3-backed
	BlobWriter domain.BlobWriter

	// Notifier is nil when no channel has credentials.
	Notifier service.Notifier

	// Health lists a ping check per connected backend.
	Health map[string]handler.Pinger
}

// pingFunc adapts a health function to handler.Pinger.
type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

// Wire connects the backends enabled in cfg. The returned cleanup function
// closes them in reverse order and must be called even when err is nil.
// When Redis is disabled, mark prices are kept in process memory.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{Health: make(map[string]handler.Pinger)}

	if cfg.Postgres.Enabled {
		pg, err := postgres.New(ctx, postgres.ClientConfig{
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
		closers = append(closers, pg.Close)

		if cfg.Postgres.RunMigrations {
			if err := pg.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: migrations: %w", err)
			}
		}

		deps.AuditStore = postgres.NewAuditStore(pg.Pool())
		deps.TradeStore = postgres.NewTradeStore(pg.Pool())
		deps.Health["postgres"] = pg
		logger.InfoContext(ctx, "postgres connected")
	}

	if cfg.Redis.Enabled {
		rc, err := redis.New(ctx, redis.ClientConfig{
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
		closers = append(closers, func() { _ = rc.Close() })

		deps.PriceCache = redis.NewPriceCache(rc, markTTL(cfg))
		deps.Locks = redis.NewLockManager(rc)
		deps.SignalBus = redis.NewSignalBus(rc)
		deps.Health["redis"] = rc
		logger.InfoContext(ctx, "redis connected")
	} else {
		deps.PriceCache = service.NewMarkBook()
	}

	if cfg.S3.Enabled {
		sc, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		deps.BlobWriter = s3blob.NewWriter(sc)
		deps.Health["s3"] = pingFunc(sc.Health)
		logger.InfoContext(ctx, "s3 configured", slog.String("bucket", sc.Bucket()))
	}

	// An explicit nil keeps the interface nil when FromConfig returns a nil
	// *Notifier.
	if n := notify.FromConfig(notify.Config{
		TelegramToken:     cfg.Notify.TelegramToken,
		TelegramChatID:    cfg.Notify.TelegramChatID,
		DiscordWebhookURL: cfg.Notify.DiscordWebhookURL,
		Events:            cfg.Notify.Events,
	}, logger); n != nil {
		deps.Notifier = n
	}

	return deps, cleanup, nil
}

// Journal returns the trade journal, or nil when Postgres is disabled.
func (d *Dependencies) Journal() domain.TradeJournal {
	if d.TradeStore == nil {
		return nil
	}
	return d.TradeStore
}

// markTTL keeps cached marks for a few monitor intervals so a slow tick never
// finds them expired.
func markTTL(cfg *config.Config) time.Duration {
	iv := cfg.Trading.Interval.Duration
	if iv <= 0 {
		iv = time.Minute
	}
	return 5 * iv
}

// errNoBTCSource reports a protocol without a market data client.
var errNoBTCSource = errors.New("no market data client for bitcoin protocol")
