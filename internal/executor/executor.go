// Package executor runs both legs of an arbitrage opportunity and reconciles
// their outcomes into one TradeResult and, when anything was attempted, a
// Position.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/btcarb/internal/domain"
)

// ErrDuplicate is returned when the same quote pair was executed within the
// dedup window.
var ErrDuplicate = errors.New("executor: duplicate opportunity")

// LegExecutor executes one venue's side of an opportunity. Implementations
// report failures in the LegResult instead of returning errors.
type LegExecutor interface {
	Venue() domain.Venue
	IsConfigured() bool
	ExecuteLeg(ctx context.Context, opp domain.Opportunity, size decimal.Decimal) domain.LegResult
}

// RiskChecker gates executions before any leg is called.
type RiskChecker interface {
	PreTradeCheck(ctx context.Context) error
}

// PositionOpener is the write side of the position table.
type PositionOpener interface {
	OpenPosition(opp domain.Opportunity, entryPrice, size decimal.Decimal, txIDs domain.LegTxIDs) string
	Position(id string) (domain.Position, bool)
}

// Recorder receives execution outcomes for publishing and persistence.
type Recorder interface {
	RecordTrade(ctx context.Context, opp domain.Opportunity, result domain.TradeResult, pos *domain.Position)
	RecordRejection(ctx context.Context, opp domain.Opportunity, reason error)
}

// Executor is the arbitrage executor. The Polymarket leg always runs first,
// then the BTC-venue leg; neither depends on the other's output.
type Executor struct {
	polymarket LegExecutor
	btc        LegExecutor
	risk       RiskChecker
	positions  PositionOpener
	recorder   Recorder
	dedup      *Dedup
	now        func() time.Time
	logger     *slog.Logger
}

// NewExecutor creates an Executor. recorder may be nil.
func NewExecutor(
	polymarket, btc LegExecutor,
	risk RiskChecker,
	positions PositionOpener,
	recorder Recorder,
	logger *slog.Logger,
) *Executor {
	return &Executor{
		polymarket: polymarket,
		btc:        btc,
		risk:       risk,
		positions:  positions,
		recorder:   recorder,
		dedup:      NewDedup(0),
		now:        time.Now,
		logger:     logger.With(slog.String("component", "executor")),
	}
}

// SetDedupWindow replaces the dedup window. Zero disables suppression.
func (e *Executor) SetDedupWindow(ttl time.Duration) {
	e.dedup = NewDedup(ttl)
}

// Dedup returns the executor's dedup tracker.
func (e *Executor) Dedup() *Dedup {
	return e.dedup
}

// Execute runs both legs of opp with sizeLimit as the position size.
//
// A risk rejection returns an error wrapping domain.ErrRiskLimitExceeded and
// no leg is called. Leg failures never produce an error: they are carried in
// the returned TradeResult.
func (e *Executor) Execute(ctx context.Context, opp domain.Opportunity, sizeLimit decimal.Decimal) (domain.TradeResult, error) {
	log := e.logger.With(
		slog.String("market_id", opp.QuoteA.MarketID),
		slog.String("outcome", opp.QuoteA.Outcome),
		slog.String("btc_venue", string(opp.QuoteB.Source)),
	)

	if err := e.risk.PreTradeCheck(ctx); err != nil {
		log.WarnContext(ctx, "execution rejected by risk checks", slog.String("error", err.Error()))
		if e.recorder != nil {
			e.recorder.RecordRejection(ctx, opp, err)
		}
		return domain.TradeResult{}, fmt.Errorf("executor: pre-trade check: %w", err)
	}

	e.dedup.Cleanup()
	if e.dedup.IsDuplicate(opp.Key()) {
		log.DebugContext(ctx, "opportunity executed recently, skipping")
		return domain.TradeResult{}, fmt.Errorf("executor: %s: %w", opp.Key(), ErrDuplicate)
	}

	polyLeg := e.runLeg(ctx, e.polymarket, opp, sizeLimit)
	btcLeg := e.runLeg(ctx, e.btc, opp, sizeLimit)

	result := domain.TradeResult{
		PolymarketTx: polyLeg.TxID,
		BTCTx:        btcLeg.TxID,
		Status:       AggregateStatus(polyLeg.Status, btcLeg.Status),
		ExecutedAt:   e.now().UTC(),
		Error:        firstError(polyLeg, btcLeg),
	}

	var opened *domain.Position
	txIDs := domain.LegTxIDs{Polymarket: polyLeg.TxID, BTC: btcLeg.TxID}
	if txIDs.Any() {
		id := e.positions.OpenPosition(opp, opp.Midpoint(), sizeLimit, txIDs)
		result.PositionID = &id
		if pos, ok := e.positions.Position(id); ok {
			opened = &pos
		}
	}

	attrs := []any{
		slog.String("status", string(result.Status)),
		slog.String("polymarket_status", string(polyLeg.Status)),
		slog.String("btc_status", string(btcLeg.Status)),
		slog.String("implied_profit", opp.ImpliedProfit.StringFixed(4)),
	}
	if result.PositionID != nil {
		attrs = append(attrs, slog.String("position_id", *result.PositionID))
	}
	if result.Error != nil {
		attrs = append(attrs, slog.String("error", *result.Error))
	}
	if result.Status == domain.TradeFailed {
		log.WarnContext(ctx, "arbitrage execution failed", attrs...)
	} else {
		log.InfoContext(ctx, "arbitrage executed", attrs...)
	}

	if e.recorder != nil {
		e.recorder.RecordTrade(ctx, opp, result, opened)
	}
	return result, nil
}

// runLeg executes one leg, short-circuiting unconfigured venues.
func (e *Executor) runLeg(ctx context.Context, leg LegExecutor, opp domain.Opportunity, size decimal.Decimal) domain.LegResult {
	if !leg.IsConfigured() {
		return domain.FailedLeg(leg.Venue(), leg.Venue().DisplayName()+" wallet "+domain.ErrNotConfigured.Error())
	}
	res := leg.ExecuteLeg(ctx, opp, size)
	if res.Venue == "" {
		res.Venue = leg.Venue()
	}
	return res
}

// AggregateStatus reconciles two leg statuses. Precedence: both success,
// then any pending, then exactly one success (partial), else failed.
func AggregateStatus(a, b domain.TradeStatus) domain.TradeStatus {
	switch {
	case a == domain.TradeSuccess && b == domain.TradeSuccess:
		return domain.TradeSuccess
	case a == domain.TradePending || b == domain.TradePending:
		return domain.TradePending
	case a == domain.TradeSuccess || b == domain.TradeSuccess:
		return domain.TradePartial
	default:
		return domain.TradeFailed
	}
}

// firstError picks the Polymarket leg's error over the BTC leg's.
func firstError(poly, btc domain.LegResult) *string {
	if poly.Error != nil {
		return poly.Error
	}
	return btc.Error
}
