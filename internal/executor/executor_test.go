package executor

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/btcarb/internal/domain"
	"github.com/alanyoungcy/btcarb/internal/service"
)

type fakeLeg struct {
	venue      domain.Venue
	configured bool
	result     domain.LegResult
	calls      int
}

func (l *fakeLeg) Venue() domain.Venue { return l.venue }
func (l *fakeLeg) IsConfigured() bool  { return l.configured }

func (l *fakeLeg) ExecuteLeg(context.Context, domain.Opportunity, decimal.Decimal) domain.LegResult {
	l.calls++
	return l.result
}

type fakeRisk struct{ err error }

func (r fakeRisk) PreTradeCheck(context.Context) error { return r.err }

type fakeRecorder struct {
	trades     []domain.TradeResult
	positions  []*domain.Position
	rejections int
}

func (r *fakeRecorder) RecordTrade(_ context.Context, _ domain.Opportunity, res domain.TradeResult, pos *domain.Position) {
	r.trades = append(r.trades, res)
	r.positions = append(r.positions, pos)
}

func (r *fakeRecorder) RecordRejection(context.Context, domain.Opportunity, error) {
	r.rejections++
}

func str(s string) *string { return &s }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testOpp() domain.Opportunity {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return domain.Opportunity{
		QuoteA: domain.Quote{MarketID: "pm-1", Outcome: "Yes", Odds: decimal.RequireFromString("0.60"),
			Source: domain.VenuePolymarket, Timestamp: ts},
		QuoteB: domain.Quote{MarketID: "ln-1", Outcome: "Yes", Odds: decimal.RequireFromString("0.68"),
			Source: domain.VenueLightning, Timestamp: ts},
		ImpliedProfit: decimal.RequireFromString("0.1333"),
		Confidence:    1,
		DetectedAt:    ts,
	}
}

type harness struct {
	poly, btc *fakeLeg
	pm        *service.PositionManager
	rec       *fakeRecorder
	exec      *Executor
}

func newHarness(poly, btc domain.LegResult, riskErr error) *harness {
	h := &harness{
		poly: &fakeLeg{venue: domain.VenuePolymarket, configured: true, result: poly},
		btc:  &fakeLeg{venue: domain.VenueLightning, configured: true, result: btc},
		pm:   service.NewPositionManager(testLogger()),
		rec:  &fakeRecorder{},
	}
	h.exec = NewExecutor(h.poly, h.btc, fakeRisk{err: riskErr}, h.pm, h.rec, testLogger())
	return h
}

func TestAggregateStatus(t *testing.T) {
	S, P, Pa, F := domain.TradeSuccess, domain.TradePending, domain.TradePartial, domain.TradeFailed
	tests := []struct {
		a, b, want domain.TradeStatus
	}{
		{S, S, S},
		{S, P, P},
		{P, S, P},
		{P, F, P},
		{F, P, P},
		{P, P, P},
		{S, F, Pa},
		{F, S, Pa},
		{S, Pa, Pa},
		{Pa, F, F},
		{Pa, Pa, F},
		{F, F, F},
	}
	for _, tt := range tests {
		t.Run(string(tt.a)+"_"+string(tt.b), func(t *testing.T) {
			assert.Equal(t, tt.want, AggregateStatus(tt.a, tt.b))
		})
	}
}

func TestExecute_PartialFillOpensPosition(t *testing.T) {
	h := newHarness(
		domain.LegResult{Venue: domain.VenuePolymarket, TxID: str("p1"), Status: domain.TradeSuccess},
		domain.LegResult{Venue: domain.VenueLightning, Status: domain.TradeFailed, Error: str("no funds")},
		nil,
	)

	res, err := h.exec.Execute(context.Background(), testOpp(), decimal.NewFromInt(1000))
	require.NoError(t, err)

	assert.Equal(t, domain.TradePartial, res.Status)
	require.NotNil(t, res.Error)
	assert.Equal(t, "no funds", *res.Error)
	require.NotNil(t, res.PolymarketTx)
	assert.Equal(t, "p1", *res.PolymarketTx)
	assert.Nil(t, res.BTCTx)
	require.NotNil(t, res.PositionID)

	open := h.pm.OpenPositions()
	require.Len(t, open, 1)
	pos := open[0]
	assert.Equal(t, *res.PositionID, pos.ID)
	assert.Equal(t, "0.64", pos.EntryPrice.String())
	assert.True(t, pos.Size.Equal(decimal.NewFromInt(1000)))
	require.NotNil(t, pos.TxIDs.Polymarket)
	assert.Equal(t, "p1", *pos.TxIDs.Polymarket)
	assert.Nil(t, pos.TxIDs.BTC)

	require.Len(t, h.rec.trades, 1)
	require.NotNil(t, h.rec.positions[0])
	assert.Equal(t, pos.ID, h.rec.positions[0].ID)
}

func TestExecute_NoTxNoPosition(t *testing.T) {
	h := newHarness(
		domain.LegResult{Status: domain.TradeFailed, Error: str("poly down")},
		domain.LegResult{Status: domain.TradeFailed, Error: str("ln down")},
		nil,
	)

	res, err := h.exec.Execute(context.Background(), testOpp(), decimal.NewFromInt(10))
	require.NoError(t, err)
	assert.Equal(t, domain.TradeFailed, res.Status)
	require.NotNil(t, res.Error)
	assert.Equal(t, "poly down", *res.Error)
	assert.Nil(t, res.PositionID)
	assert.Empty(t, h.pm.AllPositions())
	require.Len(t, h.rec.positions, 1)
	assert.Nil(t, h.rec.positions[0])
}

func TestExecute_PendingBTCTxOpensPosition(t *testing.T) {
	h := newHarness(
		domain.LegResult{Status: domain.TradeFailed, Error: str("rejected")},
		domain.LegResult{TxID: str("ln-hash"), Status: domain.TradePending},
		nil,
	)

	res, err := h.exec.Execute(context.Background(), testOpp(), decimal.NewFromInt(10))
	require.NoError(t, err)
	assert.Equal(t, domain.TradePending, res.Status)
	require.NotNil(t, res.PositionID)
	pos, ok := h.pm.Position(*res.PositionID)
	require.True(t, ok)
	assert.Nil(t, pos.TxIDs.Polymarket)
	assert.Equal(t, "ln-hash", *pos.TxIDs.BTC)
}

func TestExecute_BothSucceed(t *testing.T) {
	h := newHarness(
		domain.LegResult{TxID: str("p1"), Status: domain.TradeSuccess},
		domain.LegResult{TxID: str("b1"), Status: domain.TradeSuccess},
		nil,
	)

	res, err := h.exec.Execute(context.Background(), testOpp(), decimal.NewFromInt(10))
	require.NoError(t, err)
	assert.Equal(t, domain.TradeSuccess, res.Status)
	assert.Nil(t, res.Error)
	assert.Equal(t, 1, h.poly.calls)
	assert.Equal(t, 1, h.btc.calls)
}

func TestExecute_RiskRejectionCallsNoLeg(t *testing.T) {
	h := newHarness(domain.LegResult{}, domain.LegResult{}, domain.ErrRiskLimitExceeded)

	_, err := h.exec.Execute(context.Background(), testOpp(), decimal.NewFromInt(10))
	assert.ErrorIs(t, err, domain.ErrRiskLimitExceeded)
	assert.Zero(t, h.poly.calls)
	assert.Zero(t, h.btc.calls)
	assert.Empty(t, h.pm.AllPositions())
	assert.Equal(t, 1, h.rec.rejections)
	assert.Empty(t, h.rec.trades)
}

func TestExecute_RiskRejectionAtMaxOpenPositions(t *testing.T) {
	pm := service.NewPositionManager(testLogger())
	pm.OpenPosition(testOpp(), decimal.RequireFromString("0.5"), decimal.NewFromInt(1), domain.LegTxIDs{})
	risk := service.NewRiskValidator(pm, service.RiskConfig{
		MaxOpenPositions: 1,
		MaxDailyLoss:     decimal.NewFromInt(500),
		StopOnMaxLoss:    true,
	}, testLogger())
	poly := &fakeLeg{venue: domain.VenuePolymarket, configured: true}
	btc := &fakeLeg{venue: domain.VenueLightning, configured: true}
	exec := NewExecutor(poly, btc, risk, pm, nil, testLogger())

	_, err := exec.Execute(context.Background(), testOpp(), decimal.NewFromInt(10))
	assert.ErrorIs(t, err, domain.ErrRiskLimitExceeded)
	assert.Zero(t, poly.calls)
	assert.Zero(t, btc.calls)
}

func TestExecute_UnconfiguredLegs(t *testing.T) {
	h := newHarness(domain.LegResult{}, domain.LegResult{}, nil)
	h.poly.configured = false
	h.btc.configured = false

	res, err := h.exec.Execute(context.Background(), testOpp(), decimal.NewFromInt(10))
	require.NoError(t, err)
	assert.Equal(t, domain.TradeFailed, res.Status)
	require.NotNil(t, res.Error)
	assert.Equal(t, "Polymarket wallet not configured", *res.Error)
	assert.Zero(t, h.poly.calls)
	assert.Zero(t, h.btc.calls)
	assert.Nil(t, res.PositionID)
}

func TestExecute_UnconfiguredBTCLegMessage(t *testing.T) {
	h := newHarness(domain.LegResult{TxID: str("p1"), Status: domain.TradePending}, domain.LegResult{}, nil)
	h.btc.configured = false

	res, err := h.exec.Execute(context.Background(), testOpp(), decimal.NewFromInt(10))
	require.NoError(t, err)
	assert.Equal(t, domain.TradePending, res.Status)
	require.NotNil(t, res.Error)
	assert.Equal(t, "BTC lightning wallet not configured", *res.Error)
}

func TestExecute_DedupWindow(t *testing.T) {
	h := newHarness(
		domain.LegResult{TxID: str("p1"), Status: domain.TradeSuccess},
		domain.LegResult{TxID: str("b1"), Status: domain.TradeSuccess},
		nil,
	)
	h.exec.SetDedupWindow(time.Minute)

	_, err := h.exec.Execute(context.Background(), testOpp(), decimal.NewFromInt(10))
	require.NoError(t, err)

	_, err = h.exec.Execute(context.Background(), testOpp(), decimal.NewFromInt(10))
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.Equal(t, 1, h.poly.calls)
}

func TestDedup(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	d := NewDedup(time.Minute)
	d.now = func() time.Time { return now }

	assert.False(t, d.IsDuplicate("k"))
	assert.True(t, d.IsDuplicate("k"))
	assert.False(t, d.IsDuplicate("other"))

	now = now.Add(2 * time.Minute)
	d.Cleanup()
	assert.Equal(t, 0, d.Len())
	assert.False(t, d.IsDuplicate("k"))

	disabled := NewDedup(0)
	assert.False(t, disabled.IsDuplicate("k"))
	assert.False(t, disabled.IsDuplicate("k"))
}
