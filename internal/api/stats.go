package api

import (
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"saltydog/pkg/tracker"
)

// StatsHandler reports sensor event counters and process diagnostics.
type StatsHandler struct {
	tracker *tracker.Tracker
	session Session
	started time.Time
}

// NewStatsHandler creates a StatsHandler.
func NewStatsHandler(t *tracker.Tracker, s Session) *StatsHandler {
	return &StatsHandler{tracker: t, session: s, started: time.Now()}
}

// SourceStatsDTO adds derived rates to the raw counters.
type SourceStatsDTO struct {
	tracker.SourceStats
	AcceptRate  int64 `json:"accept_rate"`  // percent of received fixes
	HeadingRate int64 `json:"heading_rate"` // percent of headings applied
}

type Diagnostics struct {
	MemoryMB   uint64  `json:"memory_mb"`
	Goroutines int     `json:"goroutines"`
	UptimeSec  float64 `json:"uptime_sec"`
}

type SessionStats struct {
	IsTracking bool `json:"is_tracking"`
	PointCount int  `json:"point_count"`
}

type StatsResponse struct {
	Diagnostics Diagnostics               `json:"diagnostics"`
	Session     SessionStats              `json:"session"`
	Sources     map[string]SourceStatsDTO `json:"sources"`
}

func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	snapshot := h.tracker.Snapshot()
	st := h.session.Snapshot()

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	resp := StatsResponse{
		Diagnostics: Diagnostics{
			MemoryMB:   bToMb(mem.Alloc),
			Goroutines: runtime.NumGoroutine(),
			UptimeSec:  time.Since(h.started).Seconds(),
		},
		Session: SessionStats{
			IsTracking: st.IsTracking,
			PointCount: st.PointCount,
		},
		Sources: make(map[string]SourceStatsDTO, len(snapshot)),
	}

	for source, stats := range snapshot {
		resp.Sources[source] = SourceStatsDTO{
			SourceStats: stats,
			AcceptRate:  percent(stats.FixesAccepted, stats.FixesReceived),
			HeadingRate: percent(stats.HeadingsUsed, stats.Headings),
		}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func percent(part, total int64) int64 {
	if total <= 0 {
		return 0
	}
	return (part * 100) / total
}

func bToMb(b uint64) uint64 {
	return b / 1024 / 1024
}
