package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"saltydog/pkg/tracking"
)

// BackgroundSaver persists the background tracking choice.
type BackgroundSaver interface {
	SaveBackground(r *http.Request, enabled bool) error
}

// ControlHandler drives the tracking lifecycle.
type ControlHandler struct {
	session Session
	units   *DisplayUnits
	saver   BackgroundSaver
}

// NewControlHandler creates a ControlHandler. saver may be nil.
func NewControlHandler(s Session, du *DisplayUnits, saver BackgroundSaver) *ControlHandler {
	return &ControlHandler{session: s, units: du, saver: saver}
}

// HandleAuthorize asks the sensor for location access.
// POST /api/tracking/authorize
func (h *ControlHandler) HandleAuthorize(w http.ResponseWriter, r *http.Request) {
	h.respond(w, h.session.RequestAuthorization())
}

// HandleStart begins a session.
// POST /api/tracking/start
func (h *ControlHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	h.respond(w, h.session.StartTracking())
}

// HandleStop ends delivery but keeps the session.
// POST /api/tracking/stop
func (h *ControlHandler) HandleStop(w http.ResponseWriter, r *http.Request) {
	h.session.StopTracking()
	h.respond(w, nil)
}

// HandleReset discards the session and starts a new one.
// POST /api/tracking/reset
func (h *ControlHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	h.respond(w, h.session.ResetSession())
}

// BackgroundRequest toggles delivery while the host is in the background.
type BackgroundRequest struct {
	Enabled *bool `json:"enabled"`
}

// HandleBackground enables or disables background tracking.
// POST /api/tracking/background
func (h *ControlHandler) HandleBackground(w http.ResponseWriter, r *http.Request) {
	var req BackgroundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.Enabled == nil {
		writeError(w, http.StatusBadRequest, "enabled is required")
		return
	}

	if *req.Enabled {
		h.session.EnableBackgroundTracking()
	} else {
		h.session.DisableBackgroundTracking()
	}

	if h.saver != nil {
		if err := h.saver.SaveBackground(r, *req.Enabled); err != nil {
			slog.Error("Failed to persist background tracking", "error", err)
		}
	}
	h.respond(w, nil)
}

// respond writes the snapshot, with 403 when access is denied.
func (h *ControlHandler) respond(w http.ResponseWriter, err error) {
	if err != nil {
		if errors.Is(err, tracking.ErrAuthorizationDenied) {
			st := h.session.Snapshot()
			msg := st.LastError
			if msg == "" {
				msg = err.Error()
			}
			writeJSON(w, http.StatusForbidden, controlError{Error: msg, State: newStateResponse(st, h.units)})
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, newStateResponse(h.session.Snapshot(), h.units))
}

type controlError struct {
	Error string        `json:"error"`
	State StateResponse `json:"state"`
}
