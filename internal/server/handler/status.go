package handler

import (
	"net/http"
	"time"

	"github.com/alanyoungcy/btcarb/internal/monitor"
)

// TickSource exposes the monitor's most recent tick.
type TickSource interface {
	LastTick() (monitor.TickReport, bool)
}

// StatusInfo is the static part of the status response.
type StatusInfo struct {
	Mode         string    `json:"mode"`
	BTCProtocol  string    `json:"btc_protocol"`
	DetectorMode string    `json:"detector_mode"`
	AutoExecute  bool      `json:"auto_execute"`
	StartedAt    time.Time `json:"started_at"`
}

// StatusHandler serves the bot's runtime status.
type StatusHandler struct {
	info  StatusInfo
	ticks TickSource
}

// NewStatusHandler creates a StatusHandler. ticks may be nil.
func NewStatusHandler(info StatusInfo, ticks TickSource) *StatusHandler {
	return &StatusHandler{info: info, ticks: ticks}
}

type statusResponse struct {
	StatusInfo
	UptimeSeconds int64               `json:"uptime_seconds"`
	LastTick      *monitor.TickReport `json:"last_tick,omitempty"`
}

// GetStatus responds with configuration highlights and the last tick.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		StatusInfo:    h.info,
		UptimeSeconds: max(int64(time.Since(h.info.StartedAt).Seconds()), 0),
	}
	if h.ticks != nil {
		if last, ok := h.ticks.LastTick(); ok {
			resp.LastTick = &last
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
