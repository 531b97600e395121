package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/btcarb/internal/arbitrage"
	"github.com/alanyoungcy/btcarb/internal/domain"
)

// ReportService keeps mark prices for open positions and produces PnL
// reports. The price cache, bus and blob writer are optional.
type ReportService struct {
	positions *PositionManager
	prices    domain.PriceCache
	bus       domain.SignalBus
	blob      domain.BlobWriter
	now       func() time.Time
	logger    *slog.Logger
}

// NewReportService creates a ReportService over positions.
func NewReportService(
	positions *PositionManager,
	prices domain.PriceCache,
	bus domain.SignalBus,
	blob domain.BlobWriter,
	logger *slog.Logger,
) *ReportService {
	return &ReportService{
		positions: positions,
		prices:    prices,
		bus:       bus,
		blob:      blob,
		now:       time.Now,
		logger:    logger.With(slog.String("component", "report_service")),
	}
}

// UpdateMarks stores the latest odds for every open position whose market
// and outcome label appear in quotes. It returns the number of marks written.
func (s *ReportService) UpdateMarks(ctx context.Context, quotes []domain.Quote) int {
	if s.prices == nil {
		return 0
	}
	written := 0
	for _, pos := range s.positions.OpenPositions() {
		for _, q := range quotes {
			if q.MarketID != pos.MarketID || !arbitrage.OutcomesMatch(q.Outcome, pos.Label) {
				continue
			}
			if err := s.prices.SetPrice(ctx, pos.MarketID, q.Odds, q.Timestamp); err != nil {
				s.logger.WarnContext(ctx, "failed to store mark price",
					slog.String("market_id", pos.MarketID),
					slog.String("error", err.Error()),
				)
				break
			}
			written++
			break
		}
	}
	return written
}

// Report builds a PnL report from the position table and cached marks.
func (s *ReportService) Report(ctx context.Context) (domain.PnLReport, error) {
	open := s.positions.OpenPositions()
	marks, err := s.marks(ctx, open)
	if err != nil {
		return domain.PnLReport{}, err
	}
	return domain.PnLReport{
		OpenPositions:  len(open),
		TotalPositions: len(s.positions.AllPositions()),
		RealizedPnL:    s.positions.RealizedPnL(),
		UnrealizedPnL:  s.positions.UnrealizedPnL(marks),
		GeneratedAt:    s.now().UTC(),
	}, nil
}

// Publish builds a report, publishes it on the pnl channel and archives it
// to blob storage. Bus and blob failures are logged, not returned.
func (s *ReportService) Publish(ctx context.Context) (domain.PnLReport, error) {
	report, err := s.Report(ctx)
	if err != nil {
		return domain.PnLReport{}, err
	}
	payload, err := json.Marshal(report)
	if err != nil {
		return domain.PnLReport{}, fmt.Errorf("report_service: marshal report: %w", err)
	}

	if s.bus != nil {
		if err := s.bus.Publish(ctx, domain.ChannelPnL, payload); err != nil {
			s.logger.WarnContext(ctx, "failed to publish pnl report",
				slog.String("error", err.Error()),
			)
		}
	}

	if s.blob != nil {
		key := ArchiveKey(report.GeneratedAt)
		if err := s.blob.Put(ctx, key, bytes.NewReader(payload), "application/json"); err != nil {
			s.logger.WarnContext(ctx, "failed to archive pnl report",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
		}
	}
	return report, nil
}

// ArchiveKey returns the object key a report generated at t is stored under.
func ArchiveKey(t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("reports/%04d/%02d/%02d/%d.json", t.Year(), t.Month(), t.Day(), t.Unix())
}

func (s *ReportService) marks(ctx context.Context, open []domain.Position) (map[string]decimal.Decimal, error) {
	if s.prices == nil || len(open) == 0 {
		return map[string]decimal.Decimal{}, nil
	}
	ids := make([]string, 0, len(open))
	seen := make(map[string]bool, len(open))
	for _, p := range open {
		if !seen[p.MarketID] {
			seen[p.MarketID] = true
			ids = append(ids, p.MarketID)
		}
	}
	marks, err := s.prices.GetPrices(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("report_service: load marks: %w", err)
	}
	return marks, nil
}
