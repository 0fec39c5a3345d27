package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"saltydog/pkg/export"
	"saltydog/pkg/geo"
	"saltydog/pkg/track"
)

// TrackHandler serves the recorded path and its exports.
type TrackHandler struct {
	session Session
	now     func() time.Time
}

// NewTrackHandler creates a TrackHandler.
func NewTrackHandler(s Session) *TrackHandler {
	return &TrackHandler{session: s, now: time.Now}
}

// TrackResponse lists the recorded points.
type TrackResponse struct {
	Count  int                `json:"count"`
	Points []track.TrackPoint `json:"points"`
}

// HandleTrack returns every recorded point in capture order.
// GET /api/track
func (h *TrackHandler) HandleTrack(w http.ResponseWriter, r *http.Request) {
	points := h.session.Points()
	if points == nil {
		points = []track.TrackPoint{}
	}
	writeJSON(w, http.StatusOK, TrackResponse{Count: len(points), Points: points})
}

// HandleCoordinates returns the path as an ordered coordinate list.
// GET /api/track/coordinates
func (h *TrackHandler) HandleCoordinates(w http.ResponseWriter, r *http.Request) {
	coords := h.session.Coordinates()
	if coords == nil {
		coords = []geo.Point{}
	}
	writeJSON(w, http.StatusOK, coords)
}

// HandleExport renders the track as a downloadable file.
// GET /api/export/{format}
func (h *TrackHandler) HandleExport(w http.ResponseWriter, r *http.Request) {
	f, err := export.ParseFormat(r.PathValue("format"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	at := h.now()
	data, err := export.Encode(f, h.session.Points(), at)
	if err != nil {
		slog.Error("Export failed", "format", f, "error", err)
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}

	w.Header().Set("Content-Type", f.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, export.Filename(f, at)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		slog.Error("Failed to write export", "error", err)
	}
}
