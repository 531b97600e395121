package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alanyoungcy/btcarb/internal/arbitrage"
	"github.com/alanyoungcy/btcarb/internal/config"
	"github.com/alanyoungcy/btcarb/internal/crypto"
	"github.com/alanyoungcy/btcarb/internal/domain"
	"github.com/alanyoungcy/btcarb/internal/executor"
	"github.com/alanyoungcy/btcarb/internal/monitor"
	"github.com/alanyoungcy/btcarb/internal/platform/polymarket"
	"github.com/alanyoungcy/btcarb/internal/platform/predyx"
	"github.com/alanyoungcy/btcarb/internal/server"
	"github.com/alanyoungcy/btcarb/internal/server/handler"
	"github.com/alanyoungcy/btcarb/internal/server/ws"
	"github.com/alanyoungcy/btcarb/internal/service"
	"github.com/alanyoungcy/btcarb/internal/venue"
)

// Engine is the arbitrage pipeline: sources, detector, risk, executor and
// the services that observe it.
type Engine struct {
	Positions *service.PositionManager
	Risk      *service.RiskValidator
	Executor  *executor.Executor
	Recorder  *service.TradeRecorder
	Reports   *service.ReportService
	Monitor   *monitor.Monitor
}

// buildEngine assembles the pipeline over deps. Reports are archived to blob
// storage only when archive is set.
func buildEngine(ctx context.Context, cfg *config.Config, deps *Dependencies, archive bool, logger *slog.Logger) (*Engine, error) {
	mode, err := arbitrage.ParseMode(cfg.Detector.Mode)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	signer, err := loadSigner(cfg)
	switch {
	case errors.Is(err, domain.ErrNotConfigured):
		logger.WarnContext(ctx, "no polymarket key configured, polymarket leg disabled")
	case err != nil:
		return nil, fmt.Errorf("engine: %w", err)
	}

	polyLeg := venue.NewPolymarketLeg(signer, cfg.General.MaxSlippage, logger)
	btcLeg, err := venue.NewBTCLeg(bitcoinConfig(cfg), logger)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	if !btcLeg.IsConfigured() {
		logger.WarnContext(ctx, "bitcoin leg not configured, trades will fail on that venue",
			slog.String("protocol", cfg.Bitcoin.Protocol),
		)
	}

	var btcSource monitor.MarketSource
	if src, err := btcMarketSource(cfg); err != nil {
		logger.WarnContext(ctx, "btc venue will not be scanned",
			slog.String("protocol", cfg.Bitcoin.Protocol),
			slog.String("error", err.Error()),
		)
	} else {
		btcSource = src
	}

	positions := service.NewPositionManager(logger)
	risk := service.NewRiskValidator(positions, service.RiskConfig{
		MaxOpenPositions: cfg.Risk.MaxOpenPositions,
		MaxDailyLoss:     cfg.Risk.MaxDailyLoss,
		StopOnMaxLoss:    cfg.Risk.StopOnMaxLoss,
	}, logger)
	recorder := service.NewTradeRecorder(deps.SignalBus, deps.AuditStore, deps.Journal(), deps.Notifier, logger)

	exec := executor.NewExecutor(polyLeg, btcLeg, risk, positions, recorder, logger)
	exec.SetDedupWindow(cfg.Trading.DedupWindow.Duration)

	var blob domain.BlobWriter
	if archive {
		blob = deps.BlobWriter
	}
	reports := service.NewReportService(positions, deps.PriceCache, deps.SignalBus, blob, logger)

	mon := monitor.New(
		polymarket.NewGammaClient(cfg.Polymarket.GammaHost),
		btcSource,
		arbitrage.NewDetector(mode),
		exec,
		recorder,
		reports,
		deps.Locks,
		monitor.Config{
			Interval:            cfg.Trading.Interval.Duration,
			TopMarkets:          cfg.Detector.TopMarkets,
			MarketFetchLimit:    cfg.Detector.FetchLimit,
			MinProfit:           cfg.General.MinProfitThreshold,
			MaxPositionSize:     cfg.General.MaxPositionSize,
			AutoExecute:         cfg.Trading.AutoExecute,
			RequireConfirmation: cfg.Trading.RequireConfirmation,
			MaxConcurrentTrades: cfg.Trading.MaxConcurrentTrades,
		},
		logger,
	)

	return &Engine{
		Positions: positions,
		Risk:      risk,
		Executor:  exec,
		Recorder:  recorder,
		Reports:   reports,
		Monitor:   mon,
	}, nil
}

func loadSigner(cfg *config.Config) (*crypto.Signer, error) {
	key, err := crypto.LoadKey(crypto.KeySource{
		RawPrivateKey:    cfg.Polymarket.PrivateKey,
		EncryptedKeyPath: cfg.Polymarket.EncryptedKeyPath,
		KeyPassword:      cfg.Polymarket.KeyPassword,
	})
	if err != nil {
		return nil, err
	}
	return crypto.NewSigner(key, int64(cfg.Polymarket.ChainID))
}

func bitcoinConfig(cfg *config.Config) venue.BitcoinConfig {
	b := cfg.Bitcoin
	return venue.BitcoinConfig{
		Protocol: b.Protocol,
		Lightning: venue.LightningConfig{
			Endpoint:     b.Lightning.Endpoint,
			MacaroonPath: b.Lightning.MacaroonPath,
			CertPath:     b.Lightning.CertPath,
			PredyxAPIKey: b.Lightning.PredyxAPIKey,
			BTCUSDPrice:  b.Lightning.BTCUSDPrice,
		},
		Ordinals: venue.OrdinalsConfig{
			WalletAddress: b.Ordinals.WalletAddress,
			APIEndpoint:   b.Ordinals.APIEndpoint,
		},
		Stacks: venue.StacksConfig{APIKey: b.Stacks.APIKey, Network: b.Stacks.Network},
		RSK:    venue.EVMSidechainConfig{RPCURL: b.RSK.RPCURL, PrivateKey: b.RSK.PrivateKey},
		Liquid: venue.EVMSidechainConfig{RPCURL: b.Liquid.RPCURL, PrivateKey: b.Liquid.PrivateKey},
	}
}

// btcMarketSource returns the market data client for the configured
// protocol. Only Lightning markets (Predyx) have one.
func btcMarketSource(cfg *config.Config) (monitor.MarketSource, error) {
	l := cfg.Bitcoin.Lightning
	switch domain.Venue(strings.ToLower(cfg.Bitcoin.Protocol)) {
	case domain.VenueLightning:
		return predyx.NewClient(l.PredyxURL, l.PredyxAPIKey, predyx.WithRetries(l.PredyxRetries)), nil
	default:
		return nil, errNoBTCSource
	}
}

// buildServer creates the dashboard server and its WebSocket hub over eng.
func buildServer(cfg *config.Config, deps *Dependencies, eng *Engine, startedAt time.Time, logger *slog.Logger) (*server.Server, *ws.Hub) {
	info := handler.StatusInfo{
		Mode:         cfg.Mode,
		BTCProtocol:  cfg.Bitcoin.Protocol,
		DetectorMode: cfg.Detector.Mode,
		AutoExecute:  cfg.Trading.AutoExecute,
		StartedAt:    startedAt,
	}

	hub := ws.NewHub(deps.SignalBus, func() any {
		status := map[string]any{
			"mode":           info.Mode,
			"btc_protocol":   info.BTCProtocol,
			"auto_execute":   info.AutoExecute,
			"started_at":     info.StartedAt,
			"open_positions": eng.Positions.OpenCount(),
		}
		if last, ok := eng.Monitor.LastTick(); ok {
			status["last_tick"] = last
		}
		return status
	}, cfg.Server.CORSOrigins, logger)

	srv := server.NewServer(server.Config{
		Port:        cfg.Server.Port,
		CORSOrigins: cfg.Server.CORSOrigins,
		APIKey:      cfg.Server.APIKey,
	}, server.Handlers{
		Health:    handler.NewHealthHandler(deps.Health),
		Status:    handler.NewStatusHandler(info, eng.Monitor),
		Positions: handler.NewPositionHandler(eng.Positions, eng.Recorder, logger),
		PnL:       handler.NewPnLHandler(eng.Reports, logger),
		Trades:    handler.NewTradeHandler(deps.Journal(), logger),
	}, hub, logger)

	return srv, hub
}
