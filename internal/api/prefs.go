package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"saltydog/pkg/prefs"
	"saltydog/pkg/units"
)

// PrefsStore loads and saves preferences.
type PrefsStore interface {
	Load(ctx context.Context, defaults prefs.Preferences) (prefs.Preferences, error)
	Save(ctx context.Context, p prefs.Preferences) error
}

// PrefsHandler reads and updates user preferences and applies them to the
// running session.
type PrefsHandler struct {
	store    PrefsStore
	session  Session
	units    *DisplayUnits
	defaults prefs.Preferences
}

// NewPrefsHandler creates a PrefsHandler. defaults fill keys never stored.
func NewPrefsHandler(st PrefsStore, s Session, du *DisplayUnits, defaults prefs.Preferences) *PrefsHandler {
	return &PrefsHandler{store: st, session: s, units: du, defaults: defaults}
}

// PrefsRequest is a partial update. Missing fields keep their value.
type PrefsRequest struct {
	SpeedUnit          string   `json:"speed_unit,omitempty"`
	DistanceUnit       string   `json:"distance_unit,omitempty"`
	MinimumAccuracy    *float64 `json:"minimum_accuracy,omitempty"`
	MinimumSpeed       *float64 `json:"minimum_speed,omitempty"`
	BackgroundTracking *bool    `json:"background_tracking,omitempty"` // Pointer to detect false vs missing
}

// HandlePreferences dispatches GET and PUT, facilitating CORS/OPTIONS.
func (h *PrefsHandler) HandlePreferences(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, PUT, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		h.HandleGet(w, r)
	case http.MethodPut, http.MethodPost:
		h.HandleSet(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleGet returns the effective preferences.
func (h *PrefsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	p, err := h.current(r.Context())
	if err != nil {
		slog.Error("Failed to load preferences", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load preferences")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HandleSet merges, validates, stores and applies a partial update.
func (h *PrefsHandler) HandleSet(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read body")
		return
	}
	defer func() { _ = r.Body.Close() }()

	var req PrefsRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	ctx := r.Context()
	p, err := h.current(ctx)
	if err != nil {
		slog.Error("Failed to load preferences", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load preferences")
		return
	}
	if err := merge(&p, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := p.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.store.Save(ctx, p); err != nil {
		slog.Error("Failed to save preferences", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save preferences")
		return
	}

	h.apply(p)
	slog.Info("Preferences updated",
		"speed_unit", p.SpeedUnit,
		"distance_unit", p.DistanceUnit,
		"min_accuracy", p.MinimumAccuracy,
		"min_speed", p.MinimumSpeed,
		"background", p.BackgroundTracking)
	writeJSON(w, http.StatusOK, p)
}

// SaveBackground implements BackgroundSaver.
func (h *PrefsHandler) SaveBackground(r *http.Request, enabled bool) error {
	p, err := h.store.Load(r.Context(), h.defaults)
	if err != nil {
		return err
	}
	p.BackgroundTracking = enabled
	return h.store.Save(r.Context(), p)
}

// current returns the stored preferences with the live session values on
// top.
func (h *PrefsHandler) current(ctx context.Context) (prefs.Preferences, error) {
	p, err := h.store.Load(ctx, h.defaults)
	if err != nil {
		return p, err
	}
	th := h.session.Thresholds()
	p.MinimumAccuracy = th.MinimumAccuracy
	p.MinimumSpeed = th.MinimumSpeed
	p.BackgroundTracking = h.session.Snapshot().BackgroundTracking
	return p, nil
}

func (h *PrefsHandler) apply(p prefs.Preferences) {
	if err := h.session.SetThresholds(p.Thresholds()); err != nil {
		slog.Error("Failed to apply thresholds", "error", err)
	}
	if p.BackgroundTracking {
		h.session.EnableBackgroundTracking()
	} else {
		h.session.DisableBackgroundTracking()
	}
	h.units.Set(p.SpeedUnit, p.DistanceUnit)
}

func merge(p *prefs.Preferences, req *PrefsRequest) error {
	if req.SpeedUnit != "" {
		u, err := units.ParseSpeedUnit(req.SpeedUnit)
		if err != nil {
			return err
		}
		p.SpeedUnit = u
	}
	if req.DistanceUnit != "" {
		u, err := units.ParseDistanceUnit(req.DistanceUnit)
		if err != nil {
			return err
		}
		p.DistanceUnit = u
	}
	if req.MinimumAccuracy != nil {
		p.MinimumAccuracy = *req.MinimumAccuracy
	}
	if req.MinimumSpeed != nil {
		p.MinimumSpeed = *req.MinimumSpeed
	}
	if req.BackgroundTracking != nil {
		p.BackgroundTracking = *req.BackgroundTracking
	}
	return nil
}
