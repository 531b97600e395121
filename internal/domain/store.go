package domain

import (
	"context"
	"time"
)

// ListOpts controls pagination and time filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// AuditEntry is a single row of the audit log.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore appends structured audit events.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}

// TradeJournal is an append-only record of execution attempts and position
// snapshots. It is written to but never read back into the position table.
type TradeJournal interface {
	RecordTrade(ctx context.Context, opp Opportunity, result TradeResult) error
	RecordPosition(ctx context.Context, p Position) error
	ListTrades(ctx context.Context, opts ListOpts) ([]JournalTrade, error)
}

// JournalTrade is a trade row read back from the journal for reporting.
type JournalTrade struct {
	ID          int64       `json:"id"`
	Opportunity Opportunity `json:"opportunity"`
	Result      TradeResult `json:"result"`
	CreatedAt   time.Time   `json:"created_at"`
}
