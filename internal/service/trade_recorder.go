package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/btcarb/internal/domain"
)

// Notifier delivers operator alerts for a named event type.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// Notification event types.
const (
	EventArbDetected    = "arb_detected"
	EventTradeExecuted  = "trade_executed"
	EventTradeFailed    = "trade_failed"
	EventPositionClosed = "position_closed"
	EventRiskRejected   = "risk_rejected"
)

// TradeRecorder fans execution outcomes out to the signal bus, the audit log,
// the trade journal and the notifier. Every collaborator is optional and every
// failure is logged and swallowed: recording never fails a trade.
type TradeRecorder struct {
	bus      domain.SignalBus
	audit    domain.AuditStore
	journal  domain.TradeJournal
	notifier Notifier
	logger   *slog.Logger
}

// NewTradeRecorder creates a TradeRecorder. Any collaborator may be nil.
func NewTradeRecorder(
	bus domain.SignalBus,
	audit domain.AuditStore,
	journal domain.TradeJournal,
	notifier Notifier,
	logger *slog.Logger,
) *TradeRecorder {
	return &TradeRecorder{
		bus:      bus,
		audit:    audit,
		journal:  journal,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "trade_recorder")),
	}
}

// RecordOpportunity publishes a detected opportunity.
func (r *TradeRecorder) RecordOpportunity(ctx context.Context, opp domain.Opportunity) {
	r.publish(ctx, domain.ChannelOpportunities, map[string]any{
		"type":        "opportunity_detected",
		"opportunity": opp,
	})
	r.notify(ctx, EventArbDetected, "Arbitrage detected", fmt.Sprintf(
		"%s @ %s vs %s @ %s, profit %s",
		opp.QuoteA.Source, opp.QuoteA.Odds, opp.QuoteB.Source, opp.QuoteB.Odds,
		opp.ImpliedProfit.StringFixed(4),
	))
}

// RecordRejection records an opportunity refused by risk checks.
func (r *TradeRecorder) RecordRejection(ctx context.Context, opp domain.Opportunity, reason error) {
	r.auditLog(ctx, "trade_rejected", map[string]any{
		"opportunity": opp.Key(),
		"reason":      reason.Error(),
	})
	r.notify(ctx, EventRiskRejected, "Trade rejected", reason.Error())
}

// RecordTrade records an execution attempt and, when one was opened, the
// resulting position.
func (r *TradeRecorder) RecordTrade(ctx context.Context, opp domain.Opportunity, result domain.TradeResult, pos *domain.Position) {
	evt := map[string]any{
		"type":        "trade_executed",
		"opportunity": opp,
		"result":      result,
	}
	r.publish(ctx, domain.ChannelTrades, evt)

	if r.bus != nil {
		if payload, err := json.Marshal(evt); err == nil {
			if err := r.bus.StreamAppend(ctx, domain.StreamTrades, payload); err != nil {
				r.logger.WarnContext(ctx, "failed to append trade stream",
					slog.String("error", err.Error()),
				)
			}
		}
	}

	detail := map[string]any{
		"opportunity": opp.Key(),
		"status":      string(result.Status),
	}
	if result.Error != nil {
		detail["error"] = *result.Error
	}
	if result.PositionID != nil {
		detail["position_id"] = *result.PositionID
	}
	r.auditLog(ctx, "trade_executed", detail)

	if r.journal != nil {
		if err := r.journal.RecordTrade(ctx, opp, result); err != nil {
			r.logger.WarnContext(ctx, "failed to journal trade",
				slog.String("error", err.Error()),
			)
		}
	}

	if pos != nil {
		r.RecordPosition(ctx, "position_opened", *pos)
	}

	if result.Status == domain.TradeFailed {
		msg := "both legs failed"
		if result.Error != nil {
			msg = *result.Error
		}
		r.notify(ctx, EventTradeFailed, "Trade failed", msg)
		return
	}
	r.notify(ctx, EventTradeExecuted, "Trade executed", fmt.Sprintf(
		"%s status=%s profit=%s", opp.Key(), result.Status, opp.ImpliedProfit.StringFixed(4),
	))
}

// RecordPosition publishes and journals a position snapshot under eventType.
func (r *TradeRecorder) RecordPosition(ctx context.Context, eventType string, pos domain.Position) {
	r.publish(ctx, domain.ChannelPositions, map[string]any{
		"type":     eventType,
		"position": pos,
	})

	detail := map[string]any{
		"position_id": pos.ID,
		"market_id":   pos.MarketID,
		"state":       string(pos.State),
		"entry_price": pos.EntryPrice.String(),
	}
	if pos.PnL != nil {
		detail["pnl"] = pos.PnL.String()
	}
	r.auditLog(ctx, eventType, detail)

	if r.journal != nil {
		if err := r.journal.RecordPosition(ctx, pos); err != nil {
			r.logger.WarnContext(ctx, "failed to journal position",
				slog.String("position_id", pos.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	if pos.State == domain.PositionClosed && pos.PnL != nil {
		r.notify(ctx, EventPositionClosed, "Position closed", fmt.Sprintf(
			"%s %s pnl=%s", pos.MarketID, pos.Label, pos.PnL.String(),
		))
	}
}

func (r *TradeRecorder) publish(ctx context.Context, channel string, evt map[string]any) {
	if r.bus == nil {
		return
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		r.logger.WarnContext(ctx, "failed to marshal event",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
		return
	}
	if err := r.bus.Publish(ctx, channel, payload); err != nil {
		r.logger.WarnContext(ctx, "failed to publish event",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
	}
}

func (r *TradeRecorder) auditLog(ctx context.Context, event string, detail map[string]any) {
	if r.audit == nil {
		return
	}
	if err := r.audit.Log(ctx, event, detail); err != nil {
		r.logger.WarnContext(ctx, "failed to write audit log",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

func (r *TradeRecorder) notify(ctx context.Context, event, title, message string) {
	if r.notifier == nil {
		return
	}
	if err := r.notifier.Notify(ctx, event, title, message); err != nil {
		r.logger.WarnContext(ctx, "failed to send notification",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}
