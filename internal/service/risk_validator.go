package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/btcarb/internal/domain"
)

// RiskConfig holds the tunable parameters for pre-trade risk checks.
type RiskConfig struct {
	MaxOpenPositions int
	// MaxDailyLoss is the largest tolerated realized loss, as a positive amount.
	MaxDailyLoss  decimal.Decimal
	StopOnMaxLoss bool
}

// PositionBook is the read side of the position table used by risk checks.
type PositionBook interface {
	OpenCount() int
	RealizedPnL() decimal.Decimal
}

// RiskValidator gates whether a new opportunity may be executed.
type RiskValidator struct {
	book   PositionBook
	cfg    RiskConfig
	logger *slog.Logger
}

// NewRiskValidator creates a RiskValidator reading from book.
func NewRiskValidator(book PositionBook, cfg RiskConfig, logger *slog.Logger) *RiskValidator {
	return &RiskValidator{
		book:   book,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "risk_validator")),
	}
}

// LossBound returns the realized PnL floor, always zero or negative.
func (v *RiskValidator) LossBound() decimal.Decimal {
	return v.cfg.MaxDailyLoss.Abs().Neg()
}

// PreTradeCheck returns an error wrapping domain.ErrRiskLimitExceeded when a
// new execution must not start.
//
// Checks performed:
//  1. Open positions below max_open_positions
//  2. Realized PnL above the loss bound (warn only unless stop_on_max_loss)
func (v *RiskValidator) PreTradeCheck(ctx context.Context) error {
	open := v.book.OpenCount()
	if open >= v.cfg.MaxOpenPositions {
		v.logger.WarnContext(ctx, "max open positions reached",
			slog.Int("open", open),
			slog.Int("max", v.cfg.MaxOpenPositions),
		)
		return fmt.Errorf("risk_validator: max open positions reached (%d/%d): %w",
			open, v.cfg.MaxOpenPositions, domain.ErrRiskLimitExceeded)
	}

	realized := v.book.RealizedPnL()
	bound := v.LossBound()
	if realized.LessThan(bound) {
		if v.cfg.StopOnMaxLoss {
			v.logger.WarnContext(ctx, "max daily loss breached, trading halted",
				slog.String("realized_pnl", realized.String()),
				slog.String("bound", bound.String()),
			)
			return fmt.Errorf("risk_validator: realized pnl %s below loss bound %s: %w",
				realized, bound, domain.ErrRiskLimitExceeded)
		}
		v.logger.WarnContext(ctx, "max daily loss breached, continuing",
			slog.String("realized_pnl", realized.String()),
			slog.String("bound", bound.String()),
		)
	}
	return nil
}
