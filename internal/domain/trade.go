package domain

import "time"

// TradeStatus is the outcome of one leg or of a whole execution attempt.
type TradeStatus string

const (
	TradeSuccess TradeStatus = "success"
	TradePending TradeStatus = "pending"
	TradePartial TradeStatus = "partial"
	TradeFailed  TradeStatus = "failed"
)

// LegResult is what a single venue returns for its side of an opportunity.
type LegResult struct {
	Venue  Venue       `json:"venue"`
	TxID   *string     `json:"tx_id,omitempty"`
	Status TradeStatus `json:"status"`
	Error  *string     `json:"error,omitempty"`
}

// FailedLeg builds a failed LegResult carrying msg as its error.
func FailedLeg(venue Venue, msg string) LegResult {
	return LegResult{Venue: venue, Status: TradeFailed, Error: &msg}
}

// TradeResult summarises one execution attempt across both legs.
type TradeResult struct {
	PolymarketTx *string     `json:"polymarket_tx,omitempty"`
	BTCTx        *string     `json:"btc_tx,omitempty"`
	Status       TradeStatus `json:"status"`
	ExecutedAt   time.Time   `json:"executed_at"`
	Error        *string     `json:"error,omitempty"`
	PositionID   *string     `json:"position_id,omitempty"`
}
