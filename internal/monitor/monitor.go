// Package monitor drives the periodic detect, validate and execute cycle.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/btcarb/internal/arbitrage"
	"github.com/alanyoungcy/btcarb/internal/domain"
)

const tickLockKey = "monitor:tick"

// MarketSource lists a venue's markets and quotes their outcomes.
type MarketSource interface {
	Venue() domain.Venue
	ListMarkets(ctx context.Context, limit int) ([]domain.Market, error)
	Quotes(ctx context.Context, marketID string) ([]domain.Quote, error)
}

// Executor executes a detected opportunity.
type Executor interface {
	Execute(ctx context.Context, opp domain.Opportunity, sizeLimit decimal.Decimal) (domain.TradeResult, error)
}

// OpportunityRecorder is told about every detected opportunity.
type OpportunityRecorder interface {
	RecordOpportunity(ctx context.Context, opp domain.Opportunity)
}

// Reporter refreshes marks and publishes a PnL report after each tick.
type Reporter interface {
	UpdateMarks(ctx context.Context, quotes []domain.Quote) int
	Publish(ctx context.Context) (domain.PnLReport, error)
}

// Config holds the monitor's tunables.
type Config struct {
	Interval            time.Duration
	TopMarkets          int
	MarketFetchLimit    int
	MinProfit           decimal.Decimal
	MaxPositionSize     decimal.Decimal
	AutoExecute         bool
	RequireConfirmation bool
	MaxConcurrentTrades int
}

// TickReport summarises one tick.
type TickReport struct {
	At             time.Time         `json:"at"`
	MarketsScanned int               `json:"markets_scanned"`
	MarketsPaired  int               `json:"markets_paired"`
	Opportunities  int               `json:"opportunities"`
	Executed       int               `json:"executed"`
	PnL            *domain.PnLReport `json:"pnl,omitempty"`
}

// Monitor runs one tick per interval. Ticks never overlap: a slow tick
// delays the next one.
type Monitor struct {
	polymarket MarketSource
	btc        MarketSource
	detector   *arbitrage.Detector
	executor   Executor
	recorder   OpportunityRecorder
	reporter   Reporter
	locks      domain.LockManager
	cfg        Config
	logger     *slog.Logger

	mu   sync.RWMutex
	last *TickReport
}

// New creates a Monitor. btc, recorder, reporter and locks may be nil.
func New(
	polymarket, btc MarketSource,
	detector *arbitrage.Detector,
	executor Executor,
	recorder OpportunityRecorder,
	reporter Reporter,
	locks domain.LockManager,
	cfg Config,
	logger *slog.Logger,
) *Monitor {
	if cfg.MarketFetchLimit <= 0 {
		cfg.MarketFetchLimit = 100
	}
	return &Monitor{
		polymarket: polymarket,
		btc:        btc,
		detector:   detector,
		executor:   executor,
		recorder:   recorder,
		reporter:   reporter,
		locks:      locks,
		cfg:        cfg,
		logger:     logger.With(slog.String("component", "monitor")),
	}
}

// Run ticks every interval until ctx is cancelled. Tick errors are logged
// and the loop continues.
func (m *Monitor) Run(ctx context.Context) error {
	m.logger.InfoContext(ctx, "monitor started",
		slog.Duration("interval", m.cfg.Interval),
		slog.Bool("auto_execute", m.cfg.AutoExecute),
		slog.String("detector_mode", string(m.detector.Mode())),
	)

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("monitor stopped")
			return ctx.Err()
		case <-ticker.C:
			if _, err := m.Tick(ctx); err != nil {
				m.logger.WarnContext(ctx, "monitor tick failed", slog.String("error", err.Error()))
			}
		}
	}
}

// Tick runs one detect, validate and execute cycle.
func (m *Monitor) Tick(ctx context.Context) (TickReport, error) {
	if m.locks != nil {
		unlock, err := m.locks.Acquire(ctx, tickLockKey, m.lockTTL())
		if errors.Is(err, domain.ErrLockHeld) {
			m.logger.DebugContext(ctx, "tick held by another instance, skipping")
			return TickReport{}, nil
		}
		if err != nil {
			return TickReport{}, fmt.Errorf("monitor: acquire tick lock: %w", err)
		}
		defer unlock()
	}

	var report TickReport
	if m.btc == nil {
		m.logger.WarnContext(ctx, "no quote source for the configured bitcoin protocol, skipping detection")
		m.publish(ctx, &report, nil)
		return m.finish(report), nil
	}

	polyMarkets, btcMarkets, err := m.fetchMarkets(ctx)
	if err != nil {
		return report, err
	}

	candidates := TopByVolume(polyMarkets, m.cfg.TopMarkets)
	report.MarketsScanned = len(candidates)

	var polyQuotes []domain.Quote
	for _, pm := range candidates {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}

		bm, ok := arbitrage.MatchMarket(pm, btcMarkets)
		if !ok {
			continue
		}
		report.MarketsPaired++

		pq, bq, err := m.fetchQuotes(ctx, pm.ID, bm.ID)
		if err != nil {
			m.logger.DebugContext(ctx, "failed to fetch odds",
				slog.String("market_id", pm.ID),
				slog.String("btc_market_id", bm.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		polyQuotes = append(polyQuotes, pq...)

		opp, found := m.detector.Detect(pq, bq, m.cfg.MinProfit)
		if !found {
			continue
		}
		report.Opportunities++
		m.logger.InfoContext(ctx, "arbitrage opportunity",
			slog.String("market_id", opp.QuoteA.MarketID),
			slog.String("outcome", opp.QuoteA.Outcome),
			slog.String("polymarket_odds", opp.QuoteA.Odds.String()),
			slog.String("btc_odds", opp.QuoteB.Odds.String()),
			slog.String("implied_profit", opp.ImpliedProfit.StringFixed(4)),
			slog.Float64("confidence", opp.Confidence),
		)
		if m.recorder != nil {
			m.recorder.RecordOpportunity(ctx, opp)
		}

		stop, err := m.maybeExecute(ctx, opp, &report)
		if err != nil {
			m.logger.WarnContext(ctx, "execution failed", slog.String("error", err.Error()))
		}
		if stop {
			break
		}
	}

	m.publish(ctx, &report, polyQuotes)
	m.logger.InfoContext(ctx, "monitor tick complete",
		slog.Int("markets_scanned", report.MarketsScanned),
		slog.Int("markets_paired", report.MarketsPaired),
		slog.Int("opportunities", report.Opportunities),
		slog.Int("executed", report.Executed),
	)
	return m.finish(report), nil
}

// finish stamps report and keeps it for LastTick.
func (m *Monitor) finish(report TickReport) TickReport {
	report.At = time.Now().UTC()
	m.mu.Lock()
	m.last = &report
	m.mu.Unlock()
	return report
}

// LastTick returns the most recent completed tick, if any.
func (m *Monitor) LastTick() (TickReport, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.last == nil {
		return TickReport{}, false
	}
	return *m.last, true
}

// maybeExecute executes opp when allowed. stop is true once no further
// executions may happen this tick.
func (m *Monitor) maybeExecute(ctx context.Context, opp domain.Opportunity, report *TickReport) (stop bool, err error) {
	if !m.cfg.AutoExecute {
		if m.cfg.RequireConfirmation {
			m.logger.InfoContext(ctx, "auto-execute disabled, opportunity awaits confirmation",
				slog.String("opportunity", opp.Key()),
			)
		}
		return false, nil
	}
	if m.cfg.MaxConcurrentTrades > 0 && report.Executed >= m.cfg.MaxConcurrentTrades {
		return true, nil
	}
	if opp.ImpliedProfit.LessThan(m.cfg.MinProfit) {
		return false, nil
	}

	if _, err := m.executor.Execute(ctx, opp, m.cfg.MaxPositionSize); err != nil {
		return errors.Is(err, domain.ErrRiskLimitExceeded), err
	}
	report.Executed++
	return false, nil
}

func (m *Monitor) fetchMarkets(ctx context.Context) (poly, btc []domain.Market, err error) {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		poly, err = m.polymarket.ListMarkets(gctx, m.cfg.MarketFetchLimit)
		if err != nil {
			return fmt.Errorf("monitor: %s markets: %w", m.polymarket.Venue(), err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		btc, err = m.btc.ListMarkets(gctx, m.cfg.MarketFetchLimit)
		if err != nil {
			return fmt.Errorf("monitor: %s markets: %w", m.btc.Venue(), err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return poly, btc, nil
}

func (m *Monitor) fetchQuotes(ctx context.Context, polyID, btcID string) (poly, btc []domain.Quote, err error) {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		poly, err = m.polymarket.Quotes(gctx, polyID)
		return err
	})
	g.Go(func() error {
		var err error
		btc, err = m.btc.Quotes(gctx, btcID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return poly, btc, nil
}

func (m *Monitor) publish(ctx context.Context, report *TickReport, quotes []domain.Quote) {
	if m.reporter == nil {
		return
	}
	m.reporter.UpdateMarks(ctx, quotes)
	pnl, err := m.reporter.Publish(ctx)
	if err != nil {
		m.logger.WarnContext(ctx, "failed to publish pnl report", slog.String("error", err.Error()))
		return
	}
	report.PnL = &pnl
}

func (m *Monitor) lockTTL() time.Duration {
	if m.cfg.Interval > 0 {
		return m.cfg.Interval
	}
	return time.Minute
}

// TopByVolume returns up to n markets that report volume, highest first.
// Markets with equal volume keep their listed order.
func TopByVolume(markets []domain.Market, n int) []domain.Market {
	out := make([]domain.Market, 0, len(markets))
	for _, mk := range markets {
		if mk.HasVolume() {
			out = append(out, mk)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Volume.GreaterThan(*out[j].Volume)
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
