package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/btcarb/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testOpportunity(marketID, outcome, a, b string) domain.Opportunity {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return domain.Opportunity{
		QuoteA: domain.Quote{
			MarketID: marketID, Outcome: outcome, Odds: dec(a),
			Source: domain.VenuePolymarket, Timestamp: now,
		},
		QuoteB: domain.Quote{
			MarketID: "btc-" + marketID, Outcome: outcome, Odds: dec(b),
			Source: domain.VenueLightning, Timestamp: now,
		},
		ImpliedProfit: dec(b).Sub(dec(a)).Abs().Div(dec(a)),
		Confidence:    1,
		DetectedAt:    now,
	}
}

type published struct {
	channel string
	payload []byte
}

type fakeBus struct {
	mu        sync.Mutex
	published []published
	streamed  []published
	err       error
}

func (b *fakeBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.published = append(b.published, published{channel, payload})
	return nil
}

func (b *fakeBus) Subscribe(context.Context, string) (<-chan []byte, error) {
	return make(chan []byte), nil
}

func (b *fakeBus) StreamAppend(_ context.Context, stream string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.streamed = append(b.streamed, published{stream, payload})
	return nil
}

func (b *fakeBus) StreamRead(context.Context, string, string, int) ([]domain.StreamMessage, error) {
	return nil, nil
}

func (b *fakeBus) channels() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.published))
	for _, p := range b.published {
		out = append(out, p.channel)
	}
	return out
}

type fakeAudit struct {
	events []string
}

func (a *fakeAudit) Log(_ context.Context, event string, _ map[string]any) error {
	a.events = append(a.events, event)
	return nil
}

func (a *fakeAudit) List(context.Context, domain.ListOpts) ([]domain.AuditEntry, error) {
	return nil, nil
}

type fakeJournal struct {
	trades    []domain.TradeResult
	positions []domain.Position
	err       error
}

func (j *fakeJournal) RecordTrade(_ context.Context, _ domain.Opportunity, r domain.TradeResult) error {
	if j.err != nil {
		return j.err
	}
	j.trades = append(j.trades, r)
	return nil
}

func (j *fakeJournal) RecordPosition(_ context.Context, p domain.Position) error {
	if j.err != nil {
		return j.err
	}
	j.positions = append(j.positions, p)
	return nil
}

func (j *fakeJournal) ListTrades(context.Context, domain.ListOpts) ([]domain.JournalTrade, error) {
	return nil, nil
}

type fakeNotifier struct {
	events []string
}

func (n *fakeNotifier) Notify(_ context.Context, event, _, _ string) error {
	n.events = append(n.events, event)
	return nil
}

type fakePrices struct {
	prices map[string]decimal.Decimal
}

func newFakePrices() *fakePrices {
	return &fakePrices{prices: make(map[string]decimal.Decimal)}
}

func (p *fakePrices) SetPrice(_ context.Context, marketID string, price decimal.Decimal, _ time.Time) error {
	p.prices[marketID] = price
	return nil
}

func (p *fakePrices) GetPrice(_ context.Context, marketID string) (decimal.Decimal, time.Time, error) {
	price, ok := p.prices[marketID]
	if !ok {
		return decimal.Zero, time.Time{}, domain.ErrNotFound
	}
	return price, time.Time{}, nil
}

func (p *fakePrices) GetPrices(_ context.Context, ids []string) (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal, len(ids))
	for _, id := range ids {
		if price, ok := p.prices[id]; ok {
			out[id] = price
		}
	}
	return out, nil
}

type fakeBlob struct {
	keys   []string
	bodies [][]byte
}

func (b *fakeBlob) Put(_ context.Context, path string, data io.Reader, _ string) error {
	body, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	b.keys = append(b.keys, path)
	b.bodies = append(b.bodies, body)
	return nil
}

func (b *fakeBlob) PutMultipart(ctx context.Context, path string, data io.Reader, _ int64) error {
	return b.Put(ctx, path, data, "")
}
