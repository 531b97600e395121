package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Venue identifies the exchange or protocol a quote came from.
type Venue string

const (
	VenuePolymarket Venue = "polymarket"
	VenueLightning  Venue = "lightning"
	VenueOrdinals   Venue = "ordinals"
	VenueStacks     Venue = "stacks"
	VenueRSK        Venue = "rsk"
	VenueLiquid     Venue = "liquid"
)

// Market is a binary-outcome market as listed by a venue.
type Market struct {
	ID          string
	Question    string
	Description string
	Outcomes    []string
	EndTime     *time.Time
	Volume      *decimal.Decimal
	Source      Venue
}

// HasVolume reports whether the venue published a traded volume.
func (m Market) HasVolume() bool {
	return m.Volume != nil
}

// Quote is a venue's price for one outcome of one market at one instant.
// Odds is the price of the outcome in [0,1]. Asset is the venue's tradable
// instrument for the outcome (a CLOB token id on Polymarket), when known.
type Quote struct {
	MarketID  string          `json:"market_id"`
	Outcome   string          `json:"outcome"`
	Asset     string          `json:"asset,omitempty"`
	Odds      decimal.Decimal `json:"odds"`
	Source    Venue           `json:"source"`
	Timestamp time.Time       `json:"timestamp"`
}

// DisplayName returns the operator-facing name of the venue's wallet.
func (v Venue) DisplayName() string {
	if v == VenuePolymarket {
		return "Polymarket"
	}
	return "BTC " + string(v)
}
