package handler

import (
	"net/http"
	"time"
)

// RunStatus reports the live run the server is attached to, if any.
type RunStatus interface {
	CurrentRunID() string
	Paused() bool
}

// StatusHandler serves the backend status for dashboards.
type StatusHandler struct {
	mode      string
	startedAt time.Time
	run       RunStatus
}

// NewStatusHandler creates a StatusHandler. run may be nil when the server
// only serves historical data.
func NewStatusHandler(mode string, startedAt time.Time, run RunStatus) *StatusHandler {
	return &StatusHandler{mode: mode, startedAt: startedAt, run: run}
}

// GetStatus responds with the current mode, uptime, and live run state.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"mode":           h.mode,
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
	}
	if h.run != nil {
		resp["run_id"] = h.run.CurrentRunID()
		resp["paused"] = h.run.Paused()
	}
	writeJSON(w, http.StatusOK, resp)
}
