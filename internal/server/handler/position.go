package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/btcarb/internal/domain"
)

// PositionBook is the position table the handler reads and closes against.
type PositionBook interface {
	AllPositions() []domain.Position
	OpenPositions() []domain.Position
	Position(id string) (domain.Position, bool)
	ClosePosition(id string, exitPrice decimal.Decimal) (domain.Position, error)
}

// PositionRecorder journals a position after a lifecycle change.
type PositionRecorder interface {
	RecordPosition(ctx context.Context, eventType string, pos domain.Position)
}

// PositionHandler serves position endpoints.
type PositionHandler struct {
	book     PositionBook
	recorder PositionRecorder
	logger   *slog.Logger
}

// NewPositionHandler creates a PositionHandler. recorder may be nil.
func NewPositionHandler(book PositionBook, recorder PositionRecorder, logger *slog.Logger) *PositionHandler {
	return &PositionHandler{
		book:     book,
		recorder: recorder,
		logger:   logHandler(logger, "positions"),
	}
}

type listPositionsResponse struct {
	Positions []domain.Position `json:"positions"`
	Count     int               `json:"count"`
}

// ListPositions returns every position in opening order, or only open ones
// with ?state=open.
// GET /api/positions
func (h *PositionHandler) ListPositions(w http.ResponseWriter, r *http.Request) {
	var positions []domain.Position
	switch state := r.URL.Query().Get("state"); state {
	case "":
		positions = h.book.AllPositions()
	case string(domain.PositionOpen):
		positions = h.book.OpenPositions()
	default:
		positions = filterState(h.book.AllPositions(), domain.PositionState(state))
	}
	if positions == nil {
		positions = []domain.Position{}
	}
	writeJSON(w, http.StatusOK, listPositionsResponse{Positions: positions, Count: len(positions)})
}

func filterState(all []domain.Position, state domain.PositionState) []domain.Position {
	out := make([]domain.Position, 0, len(all))
	for _, p := range all {
		if p.State == state {
			out = append(out, p)
		}
	}
	return out
}

// GetPosition returns one position.
// GET /api/positions/{id}
func (h *PositionHandler) GetPosition(w http.ResponseWriter, r *http.Request) {
	p, ok := h.book.Position(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "position not found")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type closePositionRequest struct {
	ExitPrice *decimal.Decimal `json:"exit_price"`
}

// ClosePosition closes an open position at the given exit price. Unknown ids
// are 404 and positions that are not open are 409.
// POST /api/positions/{id}/close
func (h *PositionHandler) ClosePosition(w http.ResponseWriter, r *http.Request) {
	var req closePositionRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ExitPrice == nil || req.ExitPrice.IsNegative() {
		writeError(w, http.StatusBadRequest, "exit_price must be a non-negative decimal")
		return
	}

	id := r.PathValue("id")
	pos, err := h.book.ClosePosition(id, *req.ExitPrice)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			h.logger.ErrorContext(r.Context(), "close position failed",
				slog.String("position_id", id),
				slog.String("error", err.Error()),
			)
		}
		writeError(w, status, err.Error())
		return
	}

	if h.recorder != nil {
		h.recorder.RecordPosition(r.Context(), "position_closed", pos)
	}
	writeJSON(w, http.StatusOK, pos)
}
