package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/btcarb/internal/domain"
)

func TestTradeRecorder_RecordTrade(t *testing.T) {
	bus := &fakeBus{}
	audit := &fakeAudit{}
	journal := &fakeJournal{}
	notifier := &fakeNotifier{}
	rec := NewTradeRecorder(bus, audit, journal, notifier, testLogger())

	pm := NewPositionManager(testLogger())
	opp := testOpportunity("m1", "Yes", "0.60", "0.68")
	id := pm.OpenPosition(opp, opp.Midpoint(), dec("1000"), domain.LegTxIDs{BTC: strPtr("ln-1")})
	pos, _ := pm.Position(id)

	result := domain.TradeResult{
		BTCTx:      strPtr("ln-1"),
		Status:     domain.TradePartial,
		ExecutedAt: time.Now(),
		Error:      strPtr("no funds"),
		PositionID: &id,
	}
	rec.RecordTrade(context.Background(), opp, result, &pos)

	assert.Equal(t, []string{domain.ChannelTrades, domain.ChannelPositions}, bus.channels())
	require.Len(t, bus.streamed, 1)
	assert.Equal(t, domain.StreamTrades, bus.streamed[0].channel)

	var evt map[string]any
	require.NoError(t, json.Unmarshal(bus.published[0].payload, &evt))
	assert.Equal(t, "trade_executed", evt["type"])

	assert.Equal(t, []string{"trade_executed", "position_opened"}, audit.events)
	require.Len(t, journal.trades, 1)
	assert.Equal(t, domain.TradePartial, journal.trades[0].Status)
	require.Len(t, journal.positions, 1)
	assert.Equal(t, id, journal.positions[0].ID)
	assert.Equal(t, []string{EventTradeExecuted}, notifier.events)
}

func TestTradeRecorder_FailedTradeNotifies(t *testing.T) {
	notifier := &fakeNotifier{}
	rec := NewTradeRecorder(nil, nil, nil, notifier, testLogger())

	rec.RecordTrade(context.Background(), testOpportunity("m1", "Yes", "0.60", "0.68"), domain.TradeResult{
		Status: domain.TradeFailed,
		Error:  strPtr("Polymarket wallet not configured"),
	}, nil)

	assert.Equal(t, []string{EventTradeFailed}, notifier.events)
}

func TestTradeRecorder_CollaboratorFailuresAreSwallowed(t *testing.T) {
	bus := &fakeBus{err: errors.New("redis down")}
	journal := &fakeJournal{err: errors.New("pg down")}
	rec := NewTradeRecorder(bus, nil, journal, nil, testLogger())

	assert.NotPanics(t, func() {
		rec.RecordOpportunity(context.Background(), testOpportunity("m1", "Yes", "0.60", "0.68"))
		rec.RecordTrade(context.Background(), testOpportunity("m1", "Yes", "0.60", "0.68"),
			domain.TradeResult{Status: domain.TradePending}, nil)
	})
}

func TestTradeRecorder_RecordClosedPosition(t *testing.T) {
	bus := &fakeBus{}
	audit := &fakeAudit{}
	notifier := &fakeNotifier{}
	rec := NewTradeRecorder(bus, audit, nil, notifier, testLogger())

	pm := NewPositionManager(testLogger())
	id := pm.OpenPosition(testOpportunity("m1", "Yes", "0.60", "0.68"), dec("0.5"), dec("1"), domain.LegTxIDs{})
	closed, err := pm.ClosePosition(id, dec("0.7"))
	require.NoError(t, err)

	rec.RecordPosition(context.Background(), "position_closed", closed)

	assert.Equal(t, []string{domain.ChannelPositions}, bus.channels())
	assert.Equal(t, []string{"position_closed"}, audit.events)
	assert.Equal(t, []string{EventPositionClosed}, notifier.events)
}

func TestTradeRecorder_RecordOpportunityAndRejection(t *testing.T) {
	bus := &fakeBus{}
	audit := &fakeAudit{}
	notifier := &fakeNotifier{}
	rec := NewTradeRecorder(bus, audit, nil, notifier, testLogger())
	opp := testOpportunity("m1", "Yes", "0.60", "0.68")

	rec.RecordOpportunity(context.Background(), opp)
	rec.RecordRejection(context.Background(), opp, domain.ErrRiskLimitExceeded)

	assert.Equal(t, []string{domain.ChannelOpportunities}, bus.channels())
	assert.Equal(t, []string{"trade_rejected"}, audit.events)
	assert.Equal(t, []string{EventArbDetected, EventRiskRejected}, notifier.events)
}
