package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/btcarb/internal/domain"
)

// TradeLister reads the trade journal.
type TradeLister interface {
	ListTrades(ctx context.Context, opts domain.ListOpts) ([]domain.JournalTrade, error)
}

// TradeHandler serves the journaled execution history.
type TradeHandler struct {
	journal TradeLister
	logger  *slog.Logger
}

// NewTradeHandler creates a TradeHandler. journal may be nil when Postgres
// is disabled.
func NewTradeHandler(journal TradeLister, logger *slog.Logger) *TradeHandler {
	return &TradeHandler{journal: journal, logger: logHandler(logger, "trades")}
}

type listTradesResponse struct {
	Trades []domain.JournalTrade `json:"trades"`
	Limit  int                   `json:"limit"`
	Offset int                   `json:"offset"`
}

// ListTrades pages through execution attempts, newest first.
// GET /api/trades?limit=&offset=&since=
func (h *TradeHandler) ListTrades(w http.ResponseWriter, r *http.Request) {
	if h.journal == nil {
		writeError(w, http.StatusServiceUnavailable, "trade journal disabled")
		return
	}

	opts := parseListOpts(r)
	trades, err := h.journal.ListTrades(r.Context(), opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list trades failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list trades")
		return
	}
	if trades == nil {
		trades = []domain.JournalTrade{}
	}
	writeJSON(w, http.StatusOK, listTradesResponse{Trades: trades, Limit: opts.Limit, Offset: opts.Offset})
}
