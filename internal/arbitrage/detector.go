package arbitrage

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/btcarb/internal/domain"
)

// Mode selects how Detect chooses among qualifying quote pairs.
type Mode string

const (
	// ModeFirst returns the first qualifying pair in the order of quotesA.
	ModeFirst Mode = "first"
	// ModeBest scans every pair and returns the highest implied profit.
	ModeBest Mode = "best"
)

// ParseMode converts a config string to a Mode. The empty string is ModeFirst.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeFirst:
		return ModeFirst, nil
	case ModeBest:
		return ModeBest, nil
	default:
		return "", fmt.Errorf("arbitrage: unknown detector mode %q", s)
	}
}

// Detector turns matched quote pairs into opportunities.
type Detector struct {
	mode Mode
	now  func() time.Time
}

// NewDetector creates a Detector using the given selection mode.
func NewDetector(mode Mode) *Detector {
	if mode == "" {
		mode = ModeFirst
	}
	return &Detector{mode: mode, now: time.Now}
}

// Mode returns the selection mode.
func (d *Detector) Mode() Mode {
	return d.mode
}

// Detect looks for a quote in quotesA whose best match in quotesB implies a
// profit of at least minProfit.
func (d *Detector) Detect(quotesA, quotesB []domain.Quote, minProfit decimal.Decimal) (domain.Opportunity, bool) {
	var (
		best  domain.Opportunity
		found bool
	)
	for _, qa := range quotesA {
		qb, ok := FindBestMatch(qa, quotesB)
		if !ok {
			continue
		}
		profit, ok := ImpliedProfit(qa.Odds, qb.Odds)
		if !ok || profit.LessThan(minProfit) {
			continue
		}

		opp := domain.Opportunity{
			QuoteA:        qa,
			QuoteB:        qb,
			ImpliedProfit: profit,
			Confidence:    Confidence(qa.Timestamp, qb.Timestamp),
			DetectedAt:    d.now().UTC(),
		}
		if d.mode == ModeFirst {
			return opp, true
		}
		if !found || opp.ImpliedProfit.GreaterThan(best.ImpliedProfit) {
			best, found = opp, true
		}
	}
	return best, found
}

// ImpliedProfit returns |b-a|/a. It reports false when a is zero.
func ImpliedProfit(a, b decimal.Decimal) (decimal.Decimal, bool) {
	if a.IsZero() {
		return decimal.Zero, false
	}
	return b.Sub(a).Abs().Div(a.Abs()), true
}

// Confidence decays with the time between two quotes: 1/(1+|dt|/3600),
// never above 1.
func Confidence(a, b time.Time) float64 {
	dt := math.Abs(a.Sub(b).Seconds())
	c := 1.0 / (1.0 + dt/3600.0)
	return math.Min(c, 1.0)
}
