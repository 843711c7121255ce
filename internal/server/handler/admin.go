package handler

import (
	"log/slog"
	"net/http"
)

// Pauser toggles the protocol pause flag on a live run.
type Pauser interface {
	RequestPause(paused bool)
	Paused() bool
}

// AdminHandler serves operator controls for a live run.
type AdminHandler struct {
	pauser Pauser
	logger *slog.Logger
}

// NewAdminHandler creates an AdminHandler. pauser may be nil when no run is
// attached, in which case control requests return 409.
func NewAdminHandler(pauser Pauser, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{pauser: pauser, logger: logHandler(logger, "admin")}
}

// Pause halts state-changing actions at the next round boundary.
// POST /api/admin/pause
func (h *AdminHandler) Pause(w http.ResponseWriter, r *http.Request) {
	h.setPaused(w, r, true)
}

// Resume lifts a pause at the next round boundary.
// POST /api/admin/resume
func (h *AdminHandler) Resume(w http.ResponseWriter, r *http.Request) {
	h.setPaused(w, r, false)
}

func (h *AdminHandler) setPaused(w http.ResponseWriter, r *http.Request, paused bool) {
	if h.pauser == nil {
		writeError(w, http.StatusConflict, "no live run attached")
		return
	}
	h.pauser.RequestPause(paused)
	h.logger.InfoContext(r.Context(), "pause state changed", slog.Bool("paused", paused))
	writeJSON(w, http.StatusOK, map[string]any{"paused": paused})
}
