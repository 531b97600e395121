package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Opportunity is a cross-venue price discrepancy between two matched quotes.
// QuoteA is the Polymarket side and QuoteB the Bitcoin-venue side.
type Opportunity struct {
	QuoteA        Quote           `json:"quote_a"`
	QuoteB        Quote           `json:"quote_b"`
	ImpliedProfit decimal.Decimal `json:"implied_profit"`
	Confidence    float64         `json:"confidence"`
	DetectedAt    time.Time       `json:"detected_at"`
}

// Key identifies the quote pair behind the opportunity, independent of prices.
func (o Opportunity) Key() string {
	return string(o.QuoteA.Source) + ":" + o.QuoteA.MarketID + ":" + o.QuoteA.Outcome +
		"|" + string(o.QuoteB.Source) + ":" + o.QuoteB.MarketID + ":" + o.QuoteB.Outcome
}

// Midpoint returns the average of the two quoted prices.
func (o Opportunity) Midpoint() decimal.Decimal {
	return o.QuoteA.Odds.Add(o.QuoteB.Odds).Div(decimal.NewFromInt(2))
}
