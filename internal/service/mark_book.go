package service

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/btcarb/internal/domain"
)

type mark struct {
	price decimal.Decimal
	ts    time.Time
}

// MarkBook is an in-process domain.PriceCache used when Redis is disabled.
type MarkBook struct {
	mu    sync.RWMutex
	marks map[string]mark
}

// NewMarkBook creates an empty MarkBook.
func NewMarkBook() *MarkBook {
	return &MarkBook{marks: make(map[string]mark)}
}

// SetPrice records the latest mark for a market.
func (b *MarkBook) SetPrice(_ context.Context, marketID string, price decimal.Decimal, ts time.Time) error {
	b.mu.Lock()
	b.marks[marketID] = mark{price: price, ts: ts}
	b.mu.Unlock()
	return nil
}

// GetPrice returns the mark for a market or domain.ErrNotFound.
func (b *MarkBook) GetPrice(_ context.Context, marketID string) (decimal.Decimal, time.Time, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	m, ok := b.marks[marketID]
	if !ok {
		return decimal.Zero, time.Time{}, domain.ErrNotFound
	}
	return m.price, m.ts, nil
}

// GetPrices returns the marks that exist for marketIDs.
func (b *MarkBook) GetPrices(_ context.Context, marketIDs []string) (map[string]decimal.Decimal, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[string]decimal.Decimal, len(marketIDs))
	for _, id := range marketIDs {
		if m, ok := b.marks[id]; ok {
			out[id] = m.price
		}
	}
	return out, nil
}

var _ domain.PriceCache = (*MarkBook)(nil)
