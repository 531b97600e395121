package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	s3blob "github.com/alanyoungcy/btcarb/internal/blob/s3"
)

// MonitorMode runs the detect and execute loop without a dashboard.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting monitor mode")

	eng, err := buildEngine(ctx, a.cfg, deps, false, a.logger)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return eng.Monitor.Run(ctx)
	})
	return g.Wait()
}

// ServerMode runs the loop together with the dashboard API and WebSocket.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	eng, err := buildEngine(ctx, a.cfg, deps, false, a.logger)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return eng.Monitor.Run(ctx)
	})
	a.startHTTPServer(ctx, g, deps, eng)
	return g.Wait()
}

// FullMode adds report archiving and the daily journal export to ServerMode.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	eng, err := buildEngine(ctx, a.cfg, deps, true, a.logger)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return eng.Monitor.Run(ctx)
	})
	a.startHTTPServer(ctx, g, deps, eng)

	if deps.BlobWriter != nil && deps.TradeStore != nil {
		archiver := s3blob.NewJournalArchiver(deps.BlobWriter, deps.TradeStore, deps.AuditStore, a.logger)
		g.Go(func() error {
			return a.runJournalExport(ctx, archiver)
		})
	} else {
		a.logger.InfoContext(ctx, "journal export disabled, needs postgres and s3")
	}

	return g.Wait()
}

// ScanMode runs a single tick, logs its report and returns.
func (a *App) ScanMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting scan mode")

	eng, err := buildEngine(ctx, a.cfg, deps, false, a.logger)
	if err != nil {
		return err
	}

	report, err := eng.Monitor.Tick(ctx)
	if err != nil {
		return fmt.Errorf("app: scan: %w", err)
	}
	a.logger.InfoContext(ctx, "scan complete",
		slog.Int("markets_scanned", report.MarketsScanned),
		slog.Int("markets_paired", report.MarketsPaired),
		slog.Int("opportunities", report.Opportunities),
		slog.Int("executed", report.Executed),
	)
	return nil
}

// startHTTPServer adds the dashboard server, its hub and a shutdown watcher
// to g. The server stops gracefully when ctx is cancelled.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, eng *Engine) {
	srv, hub := buildServer(a.cfg, deps, eng, a.startedAt, a.logger)

	g.Go(func() error {
		return hub.Run(ctx)
	})
	g.Go(func() error {
		a.logger.InfoContext(ctx, "HTTP server listening",
			slog.Int("port", a.cfg.Server.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", a.cfg.Server.Port)),
		)
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}

// runJournalExport archives the previous UTC day's trades shortly after each
// midnight. A failed export is logged and retried on the next day.
func (a *App) runJournalExport(ctx context.Context, archiver *s3blob.JournalArchiver) error {
	for {
		now := time.Now().UTC()
		next := nextExport(now)
		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		day := next.AddDate(0, 0, -1)
		n, err := archiver.ArchiveDay(ctx, day)
		if err != nil {
			a.logger.ErrorContext(ctx, "journal export failed",
				slog.String("day", day.Format(time.DateOnly)),
				slog.String("error", err.Error()),
			)
			continue
		}
		a.logger.InfoContext(ctx, "journal exported",
			slog.String("day", day.Format(time.DateOnly)),
			slog.Int("trades", n),
		)
	}
}

// nextExport returns the export time following now: five minutes past the
// next UTC midnight.
func nextExport(now time.Time) time.Time {
	now = now.UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 5, 0, 0, time.UTC)
	if !midnight.After(now) {
		midnight = midnight.AddDate(0, 0, 1)
	}
	return midnight
}
