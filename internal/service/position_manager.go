package service

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/btcarb/internal/domain"
)

// PositionManager owns the in-memory position table. A single RWMutex guards
// the table and the open set so the tick loop and the dashboard can share it.
// Every id in the open set exists in the table with state open.
type PositionManager struct {
	mu        sync.RWMutex
	positions map[string]*domain.Position
	order     []string
	open      []string
	now       func() time.Time
	logger    *slog.Logger
}

// NewPositionManager creates an empty PositionManager.
func NewPositionManager(logger *slog.Logger) *PositionManager {
	return &PositionManager{
		positions: make(map[string]*domain.Position),
		now:       time.Now,
		logger:    logger.With(slog.String("component", "position_manager")),
	}
}

// OpenPosition records a new open position for opp and returns its id.
func (m *PositionManager) OpenPosition(opp domain.Opportunity, entryPrice, size decimal.Decimal, txIDs domain.LegTxIDs) string {
	pos := m.newPosition(opp, entryPrice, size, txIDs, domain.PositionOpen)

	m.mu.Lock()
	m.positions[pos.ID] = pos
	m.order = append(m.order, pos.ID)
	m.open = append(m.open, pos.ID)
	m.mu.Unlock()

	m.logger.Info("position opened",
		slog.String("position_id", pos.ID),
		slog.String("market_id", pos.MarketID),
		slog.String("label", pos.Label),
		slog.String("entry_price", entryPrice.String()),
		slog.String("size", size.String()),
	)
	return pos.ID
}

// RecordTerminal records a position created directly in the failed or
// partial state. Such positions never enter the open set and have no
// transition out. Any other state fails with domain.ErrInvalidState.
func (m *PositionManager) RecordTerminal(opp domain.Opportunity, entryPrice, size decimal.Decimal, txIDs domain.LegTxIDs, state domain.PositionState) (string, error) {
	if state != domain.PositionFailed && state != domain.PositionPartial {
		return "", fmt.Errorf("position_manager: record in state %s: %w", state, domain.ErrInvalidState)
	}
	pos := m.newPosition(opp, entryPrice, size, txIDs, state)

	m.mu.Lock()
	m.positions[pos.ID] = pos
	m.order = append(m.order, pos.ID)
	m.mu.Unlock()

	m.logger.Warn("position recorded",
		slog.String("position_id", pos.ID),
		slog.String("market_id", pos.MarketID),
		slog.String("state", string(state)),
	)
	return pos.ID, nil
}

func (m *PositionManager) newPosition(opp domain.Opportunity, entryPrice, size decimal.Decimal, txIDs domain.LegTxIDs, state domain.PositionState) *domain.Position {
	return &domain.Position{
		ID:         uuid.New().String(),
		MarketID:   opp.QuoteA.MarketID,
		Label:      opp.QuoteA.Outcome,
		Type:       domain.PositionTypeArbitrage,
		EntryPrice: entryPrice,
		Size:       size,
		Side:       domain.SideLong,
		State:      state,
		OpenedAt:   m.now().UTC(),
		TxIDs:      txIDs,
	}
}

// ClosePosition closes an open position at exitPrice and returns the updated
// snapshot. It fails with domain.ErrNotFound for unknown ids and
// domain.ErrInvalidState when the position is not open.
func (m *PositionManager) ClosePosition(id string, exitPrice decimal.Decimal) (domain.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pos, ok := m.positions[id]
	if !ok {
		return domain.Position{}, fmt.Errorf("position_manager: close %s: %w", id, domain.ErrNotFound)
	}
	if pos.State != domain.PositionOpen {
		return domain.Position{}, fmt.Errorf("position_manager: close %s in state %s: %w", id, pos.State, domain.ErrInvalidState)
	}

	closedAt := m.now().UTC()
	pnl := exitPrice.Sub(pos.EntryPrice)
	pos.State = domain.PositionClosed
	pos.ClosedAt = &closedAt
	pos.ExitPrice = &exitPrice
	pos.PnL = &pnl

	for i, openID := range m.open {
		if openID == id {
			m.open = append(m.open[:i], m.open[i+1:]...)
			break
		}
	}

	m.logger.Info("position closed",
		slog.String("position_id", id),
		slog.String("exit_price", exitPrice.String()),
		slog.String("pnl", pnl.String()),
	)
	return copyPosition(pos), nil
}

// Position returns a snapshot of the position with the given id.
func (m *PositionManager) Position(id string) (domain.Position, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	pos, ok := m.positions[id]
	if !ok {
		return domain.Position{}, false
	}
	return copyPosition(pos), true
}

// OpenPositions returns snapshots of every open position in opening order.
func (m *PositionManager) OpenPositions() []domain.Position {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.Position, 0, len(m.open))
	for _, id := range m.open {
		out = append(out, copyPosition(m.positions[id]))
	}
	return out
}

// OpenCount returns the number of open positions.
func (m *PositionManager) OpenCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.open)
}

// AllPositions returns snapshots of every position in opening order.
func (m *PositionManager) AllPositions() []domain.Position {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.Position, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, copyPosition(m.positions[id]))
	}
	return out
}

// RealizedPnL sums the pnl of closed positions.
func (m *PositionManager) RealizedPnL() decimal.Decimal {
	m.mu.RLock()
	defer m.mu.RUnlock()

	total := decimal.Zero
	for _, pos := range m.positions {
		if pos.State == domain.PositionClosed && pos.PnL != nil {
			total = total.Add(*pos.PnL)
		}
	}
	return total
}

// UnrealizedPnL marks every open position to currentPrices, keyed by market
// id. Markets without a price contribute nothing.
func (m *PositionManager) UnrealizedPnL(currentPrices map[string]decimal.Decimal) decimal.Decimal {
	m.mu.RLock()
	defer m.mu.RUnlock()

	total := decimal.Zero
	for _, id := range m.open {
		pos := m.positions[id]
		price, ok := currentPrices[pos.MarketID]
		if !ok {
			continue
		}
		total = total.Add(price.Sub(pos.EntryPrice))
	}
	return total
}

// MarketPositionCount returns the number of open positions in marketID.
func (m *PositionManager) MarketPositionCount(marketID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, id := range m.open {
		if m.positions[id].MarketID == marketID {
			n++
		}
	}
	return n
}

// copyPosition detaches a snapshot from the table's pointers.
func copyPosition(p *domain.Position) domain.Position {
	out := *p
	if p.ClosedAt != nil {
		t := *p.ClosedAt
		out.ClosedAt = &t
	}
	if p.ExitPrice != nil {
		d := *p.ExitPrice
		out.ExitPrice = &d
	}
	if p.PnL != nil {
		d := *p.PnL
		out.PnL = &d
	}
	if p.TxIDs.Polymarket != nil {
		s := *p.TxIDs.Polymarket
		out.TxIDs.Polymarket = &s
	}
	if p.TxIDs.BTC != nil {
		s := *p.TxIDs.BTC
		out.TxIDs.BTC = &s
	}
	return out
}
