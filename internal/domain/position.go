package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PositionState represents the lifecycle state of a position.
type PositionState string

const (
	PositionOpen    PositionState = "open"
	PositionClosed  PositionState = "closed"
	PositionFailed  PositionState = "failed"
	PositionPartial PositionState = "partial"
)

// PositionType distinguishes hedged arbitrage positions from one-sided bets.
type PositionType string

const (
	PositionTypeArbitrage   PositionType = "arbitrage"
	PositionTypeSpeculative PositionType = "speculative"
)

// Side is the direction of a position.
type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// LegTxIDs holds the transaction identifiers produced by each leg, if any.
type LegTxIDs struct {
	Polymarket *string `json:"polymarket_tx,omitempty"`
	BTC        *string `json:"btc_tx,omitempty"`
}

// Any reports whether at least one leg produced an identifier.
func (t LegTxIDs) Any() bool {
	return t.Polymarket != nil || t.BTC != nil
}

// Position is the record of an attempted or completed arbitrage trade.
type Position struct {
	ID         string           `json:"id"`
	MarketID   string           `json:"market_id"`
	Label      string           `json:"label"`
	Type       PositionType     `json:"type"`
	EntryPrice decimal.Decimal  `json:"entry_price"`
	Size       decimal.Decimal  `json:"size"`
	Side       Side             `json:"side"`
	State      PositionState    `json:"state"`
	OpenedAt   time.Time        `json:"opened_at"`
	ClosedAt   *time.Time       `json:"closed_at,omitempty"`
	ExitPrice  *decimal.Decimal `json:"exit_price,omitempty"`
	PnL        *decimal.Decimal `json:"pnl,omitempty"`
	TxIDs      LegTxIDs         `json:"tx_ids"`
}

// PnLReport is a point-in-time summary of the position table.
type PnLReport struct {
	OpenPositions  int             `json:"open_positions"`
	TotalPositions int             `json:"total_positions"`
	RealizedPnL    decimal.Decimal `json:"realized_pnl"`
	UnrealizedPnL  decimal.Decimal `json:"unrealized_pnl"`
	GeneratedAt    time.Time       `json:"generated_at"`
}
