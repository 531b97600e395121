package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/btcarb/internal/domain"
)

// PnLReporter builds a point-in-time PnL report.
type PnLReporter interface {
	Report(ctx context.Context) (domain.PnLReport, error)
}

// PnLHandler serves the PnL summary.
type PnLHandler struct {
	reporter PnLReporter
	logger   *slog.Logger
}

// NewPnLHandler creates a PnLHandler.
func NewPnLHandler(reporter PnLReporter, logger *slog.Logger) *PnLHandler {
	return &PnLHandler{reporter: reporter, logger: logHandler(logger, "pnl")}
}

// GetPnL returns realized and unrealized PnL.
// GET /api/pnl
func (h *PnLHandler) GetPnL(w http.ResponseWriter, r *http.Request) {
	report, err := h.reporter.Report(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "pnl report failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to build pnl report")
		return
	}
	writeJSON(w, http.StatusOK, report)
}
