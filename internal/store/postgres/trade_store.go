package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/btcarb/internal/domain"
)

// TradeStore implements domain.TradeJournal on the arb_trades and
// position_snapshots tables. Rows are only ever inserted.
type TradeStore struct {
	pool *pgxpool.Pool
}

// NewTradeStore creates a TradeStore backed by the given pool.
func NewTradeStore(pool *pgxpool.Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

const insertTrade = `
	INSERT INTO arb_trades (
		market_a, market_b, outcome, odds_a, odds_b,
		implied_profit, confidence, status,
		polymarket_tx, btc_tx, error, position_id,
		opportunity, executed_at
	) VALUES (
		$1, $2, $3, $4, $5,
		$6, $7, $8,
		$9, $10, $11, $12,
		$13, $14
	)`

// tradeArgs maps an execution attempt onto insertTrade's parameters.
func tradeArgs(opp domain.Opportunity, result domain.TradeResult) ([]any, error) {
	oppJSON, err := json.Marshal(opp)
	if err != nil {
		return nil, fmt.Errorf("marshal opportunity: %w", err)
	}
	return []any{
		opp.QuoteA.MarketID, opp.QuoteB.MarketID, opp.QuoteA.Outcome,
		opp.QuoteA.Odds, opp.QuoteB.Odds,
		opp.ImpliedProfit, opp.Confidence, string(result.Status),
		result.PolymarketTx, result.BTCTx, result.Error, result.PositionID,
		oppJSON, result.ExecutedAt,
	}, nil
}

// RecordTrade appends one execution attempt.
func (s *TradeStore) RecordTrade(ctx context.Context, opp domain.Opportunity, result domain.TradeResult) error {
	args, err := tradeArgs(opp, result)
	if err != nil {
		return fmt.Errorf("postgres: record trade: %w", err)
	}
	if _, err := s.pool.Exec(ctx, insertTrade, args...); err != nil {
		return fmt.Errorf("postgres: record trade: %w", err)
	}
	return nil
}

const insertSnapshot = `
	INSERT INTO position_snapshots (
		position_id, market_id, label, state,
		entry_price, size, exit_price, pnl,
		polymarket_tx, btc_tx, opened_at, closed_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

func snapshotArgs(p domain.Position) []any {
	return []any{
		p.ID, p.MarketID, p.Label, string(p.State),
		p.EntryPrice, p.Size, nullDecimal(p.ExitPrice), nullDecimal(p.PnL),
		p.TxIDs.Polymarket, p.TxIDs.BTC, p.OpenedAt, p.ClosedAt,
	}
}

// RecordPosition appends a snapshot of p. Snapshots are never read back into
// the in-memory position table.
func (s *TradeStore) RecordPosition(ctx context.Context, p domain.Position) error {
	if _, err := s.pool.Exec(ctx, insertSnapshot, snapshotArgs(p)...); err != nil {
		return fmt.Errorf("postgres: record position %s: %w", p.ID, err)
	}
	return nil
}

// ListTrades returns journaled execution attempts newest first.
func (s *TradeStore) ListTrades(ctx context.Context, opts domain.ListOpts) ([]domain.JournalTrade, error) {
	query, args := pageQuery(`
		SELECT id, status, polymarket_tx, btc_tx, error, position_id,
		       opportunity, executed_at, created_at
		FROM arb_trades`, "executed_at", opts)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trades: %w", err)
	}
	defer rows.Close()

	trades, err := scanTrades(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trades: %w", err)
	}
	return trades, nil
}

func scanTrades(rows pgx.Rows) ([]domain.JournalTrade, error) {
	var out []domain.JournalTrade
	for rows.Next() {
		var (
			t       domain.JournalTrade
			status  string
			oppJSON []byte
		)
		if err := rows.Scan(
			&t.ID, &status, &t.Result.PolymarketTx, &t.Result.BTCTx,
			&t.Result.Error, &t.Result.PositionID,
			&oppJSON, &t.Result.ExecutedAt, &t.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		t.Result.Status = domain.TradeStatus(status)
		if err := json.Unmarshal(oppJSON, &t.Opportunity); err != nil {
			return nil, fmt.Errorf("unmarshal opportunity %d: %w", t.ID, err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// nullDecimal turns an optional decimal into a driver value, nil for absent.
func nullDecimal(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return *d
}

var _ domain.TradeJournal = (*TradeStore)(nil)
