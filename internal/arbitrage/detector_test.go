package arbitrage

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/btcarb/internal/domain"
)

var threshold = decimal.RequireFromString("0.05")

func TestDetectEndToEnd(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	a := domain.Quote{MarketID: "poly-1", Outcome: "YES - Trump wins", Odds: decimal.RequireFromString("0.60"), Source: domain.VenuePolymarket, Timestamp: now}
	b := domain.Quote{MarketID: "ln-1", Outcome: "Trump Wins - Yes", Odds: decimal.RequireFromString("0.68"), Source: domain.VenueLightning, Timestamp: now}

	d := NewDetector(ModeFirst)
	opp, ok := d.Detect([]domain.Quote{a}, []domain.Quote{b}, threshold)
	require.True(t, ok)
	assert.Equal(t, "0.1333", opp.ImpliedProfit.StringFixed(4))
	assert.Equal(t, a, opp.QuoteA)
	assert.Equal(t, b, opp.QuoteB)
	assert.Equal(t, 1.0, opp.Confidence)
}

func TestDetectBelowThreshold(t *testing.T) {
	a := quote("yes", "0.60")
	b := quote("yes", "0.62")
	_, ok := NewDetector(ModeFirst).Detect([]domain.Quote{a}, []domain.Quote{b}, threshold)
	assert.False(t, ok)
}

func TestDetectExactlyAtThreshold(t *testing.T) {
	a := quote("yes", "0.60")
	b := quote("yes", "0.63")
	opp, ok := NewDetector(ModeFirst).Detect([]domain.Quote{a}, []domain.Quote{b}, threshold)
	require.True(t, ok)
	assert.True(t, opp.ImpliedProfit.Equal(threshold))
}

func TestDetectNoMatch(t *testing.T) {
	a := quote("Trump wins", "0.30")
	b := quote("Harris wins", "0.90")
	_, ok := NewDetector(ModeFirst).Detect([]domain.Quote{a}, []domain.Quote{b}, threshold)
	assert.False(t, ok)
}

func TestDetectProfitIsAbsolute(t *testing.T) {
	a := quote("yes", "0.80")
	b := quote("yes", "0.40")
	opp, ok := NewDetector(ModeFirst).Detect([]domain.Quote{a}, []domain.Quote{b}, threshold)
	require.True(t, ok)
	assert.True(t, opp.ImpliedProfit.Equal(decimal.RequireFromString("0.5")))
	assert.False(t, opp.ImpliedProfit.IsNegative())
}

func TestDetectSkipsZeroPrice(t *testing.T) {
	a := quote("yes", "0")
	b := quote("yes", "0.5")
	_, ok := NewDetector(ModeFirst).Detect([]domain.Quote{a}, []domain.Quote{b}, threshold)
	assert.False(t, ok)
}

func TestDetectModes(t *testing.T) {
	quotesA := []domain.Quote{quote("yes", "0.50"), quote("no", "0.50")}
	quotesB := []domain.Quote{quote("yes", "0.55"), quote("no", "0.80")}

	first, ok := NewDetector(ModeFirst).Detect(quotesA, quotesB, threshold)
	require.True(t, ok)
	assert.Equal(t, "yes", first.QuoteA.Outcome)

	best, ok := NewDetector(ModeBest).Detect(quotesA, quotesB, threshold)
	require.True(t, ok)
	assert.Equal(t, "no", best.QuoteA.Outcome)
	assert.True(t, best.ImpliedProfit.Equal(decimal.RequireFromString("0.6")))
}

func TestConfidence(t *testing.T) {
	now := time.Now()
	assert.Equal(t, 1.0, Confidence(now, now))
	assert.InDelta(t, 0.5, Confidence(now, now.Add(time.Hour)), 1e-12)
	assert.InDelta(t, 0.5, Confidence(now.Add(time.Hour), now), 1e-12)
	assert.InDelta(t, 0.25, Confidence(now, now.Add(-3*time.Hour)), 1e-12)
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeFirst, m)

	m, err = ParseMode("best")
	require.NoError(t, err)
	assert.Equal(t, ModeBest, m)

	_, err = ParseMode("greedy")
	assert.Error(t, err)
}
