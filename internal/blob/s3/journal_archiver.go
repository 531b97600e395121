package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/btcarb/internal/domain"
)

// TradeLister is the read side of the trade journal the archiver needs.
type TradeLister interface {
	ListTrades(ctx context.Context, opts domain.ListOpts) ([]domain.JournalTrade, error)
}

// JournalArchiver exports one UTC day of journaled trades as JSONL. Archived
// rows stay in the journal.
type JournalArchiver struct {
	writer domain.BlobWriter
	trades TradeLister
	audit  domain.AuditStore
	logger *slog.Logger
}

// NewJournalArchiver creates a JournalArchiver. audit may be nil.
func NewJournalArchiver(writer domain.BlobWriter, trades TradeLister, audit domain.AuditStore, logger *slog.Logger) *JournalArchiver {
	return &JournalArchiver{
		writer: writer,
		trades: trades,
		audit:  audit,
		logger: logger.With(slog.String("component", "journal_archiver")),
	}
}

// ArchiveDay uploads every trade executed on day's UTC date to
// journal/YYYY/MM/DD.jsonl and returns how many were written. Payloads of at
// least one part go through the multipart uploader.
func (a *JournalArchiver) ArchiveDay(ctx context.Context, day time.Time) (int, error) {
	start := day.UTC().Truncate(24 * time.Hour)
	end := start.Add(24*time.Hour - time.Nanosecond)

	trades, err := a.trades.ListTrades(ctx, domain.ListOpts{Since: &start, Until: &end})
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive journal query: %w", err)
	}
	if len(trades) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(trades)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive journal marshal: %w", err)
	}

	path := journalPath(start)
	if int64(len(buf)) >= minPartSize {
		err = a.writer.PutMultipart(ctx, path, bytes.NewReader(buf), minPartSize)
	} else {
		err = a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson")
	}
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive journal upload: %w", err)
	}

	a.logger.InfoContext(ctx, "journal archived",
		slog.String("path", path),
		slog.Int("trades", len(trades)),
	)

	if a.audit != nil {
		if err := a.audit.Log(ctx, "archive.journal", map[string]any{
			"path":  path,
			"count": len(trades),
			"day":   start.Format(time.DateOnly),
		}); err != nil {
			return len(trades), fmt.Errorf("s3blob: archive journal audit log: %w", err)
		}
	}
	return len(trades), nil
}

// journalPath partitions archives by UTC date: journal/2026/03/07.jsonl.
func journalPath(day time.Time) string {
	return fmt.Sprintf("journal/%s.jsonl", day.UTC().Format("2006/01/02"))
}

// marshalJSONL encodes records as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
