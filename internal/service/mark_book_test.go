package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/btcarb/internal/domain"
)

func TestMarkBook(t *testing.T) {
	ctx := context.Background()
	b := NewMarkBook()

	_, _, err := b.GetPrice(ctx, "m1")
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	ts := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, b.SetPrice(ctx, "m1", dec("0.61"), ts))
	require.NoError(t, b.SetPrice(ctx, "m1", dec("0.62"), ts.Add(time.Minute)))

	price, got, err := b.GetPrice(ctx, "m1")
	require.NoError(t, err)
	assert.True(t, price.Equal(dec("0.62")))
	assert.Equal(t, ts.Add(time.Minute), got)

	prices, err := b.GetPrices(ctx, []string{"m1", "missing"})
	require.NoError(t, err)
	assert.Len(t, prices, 1)
}

func TestReportUsesMarkBook(t *testing.T) {
	ctx := context.Background()
	pm := NewPositionManager(testLogger())
	opp := testOpportunity("m1", "Yes", "0.60", "0.70")
	pm.OpenPosition(opp, dec("0.65"), dec("100"), domain.LegTxIDs{})

	rs := NewReportService(pm, NewMarkBook(), nil, nil, testLogger())
	quote := opp.QuoteA
	quote.Odds = dec("0.75")
	assert.Equal(t, 1, rs.UpdateMarks(ctx, []domain.Quote{quote}))

	report, err := rs.Report(ctx)
	require.NoError(t, err)
	assert.True(t, report.UnrealizedPnL.Equal(dec("0.10")), report.UnrealizedPnL.String())
}
