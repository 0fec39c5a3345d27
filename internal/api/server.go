package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"saltydog/pkg/version"
)

// Handlers bundles the endpoint handlers mounted by NewServer. Nil members
// leave their routes unregistered.
type Handlers struct {
	State   *StateHandler
	Track   *TrackHandler
	Control *ControlHandler
	Prefs   *PrefsHandler
	Stats   *StatsHandler
	Stream  *StreamHandler
}

// NewServer creates and configures the HTTP server.
// shutdown is invoked asynchronously by POST /api/shutdown.
func NewServer(addr string, h Handlers, shutdown func()) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      NewMux(h, shutdown),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// NewMux registers all routes.
func NewMux(h Handlers, shutdown func()) *http.ServeMux {
	mux := http.NewServeMux()

	// 1. Health and version
	mux.HandleFunc("GET /health", handleHealth)
	mux.HandleFunc("GET /api/version", handleVersion)

	// 2. Session state
	if h.State != nil {
		mux.HandleFunc("GET /api/state", h.State.HandleState)
	}

	// 3. Track and export
	if h.Track != nil {
		mux.HandleFunc("GET /api/track", h.Track.HandleTrack)
		mux.HandleFunc("GET /api/track/coordinates", h.Track.HandleCoordinates)
		mux.HandleFunc("GET /api/export/{format}", h.Track.HandleExport)
	}

	// 4. Tracking control
	if h.Control != nil {
		mux.HandleFunc("POST /api/tracking/authorize", h.Control.HandleAuthorize)
		mux.HandleFunc("POST /api/tracking/start", h.Control.HandleStart)
		mux.HandleFunc("POST /api/tracking/stop", h.Control.HandleStop)
		mux.HandleFunc("POST /api/tracking/reset", h.Control.HandleReset)
		mux.HandleFunc("POST /api/tracking/background", h.Control.HandleBackground)
	}

	// 5. Preferences
	if h.Prefs != nil {
		mux.HandleFunc("/api/preferences", h.Prefs.HandlePreferences)
	}

	// 6. Stats and logs
	if h.Stats != nil {
		mux.Handle("GET /api/stats", h.Stats)
	}
	mux.HandleFunc("GET /api/log/latest", handleLatestLog)
	mux.HandleFunc("GET /api/log/event", handleLatestEvent)

	// 7. Live stream
	if h.Stream != nil {
		mux.Handle("GET /api/stream", h.Stream)
	}

	// 8. Shutdown
	if shutdown != nil {
		mux.HandleFunc("POST /api/shutdown", func(w http.ResponseWriter, r *http.Request) {
			slog.Info("Graceful shutdown initiated via API")
			w.WriteHeader(http.StatusOK)
			if _, err := w.Write([]byte("Shutting down...")); err != nil {
				slog.Error("Failed to write shutdown response", "error", err)
			}
			// Let the response flush first.
			go func() {
				time.Sleep(100 * time.Millisecond)
				shutdown()
			}()
		})
	}

	return mux
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		slog.Error("Failed to write health response", "error", err)
	}
}

func handleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if _, err := fmt.Fprintf(w, `{"version": "%s"}`, version.Version); err != nil {
		slog.Error("Failed to write version response", "error", err)
	}
}

// writeJSON encodes v with the given status. An unencodable value becomes a
// 500 before any header is sent.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("Failed to encode response", "error", err)
		status = http.StatusInternalServerError
		data = []byte(`{"error":"failed to encode response"}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(append(data, '\n')); err != nil {
		slog.Error("Failed to write response", "error", err)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
