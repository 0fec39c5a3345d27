// Package tracker counts sensor events as they pass through the engine.
package tracker

import (
	"sync"
	"sync/atomic"
)

// Tracker tracks event statistics per sensor source.
type Tracker struct {
	mu    sync.RWMutex
	stats map[string]*SourceStats
}

// SourceStats holds counters for one source.
// Fields are accessed atomically.
type SourceStats struct {
	FixesReceived int64 `json:"fixes_received"`
	FixesAccepted int64 `json:"fixes_accepted"`
	FixesRejected int64 `json:"fixes_rejected"` // accuracy gate
	FixesStale    int64 `json:"fixes_stale"`    // out of order or duplicate
	FixesIgnored  int64 `json:"fixes_ignored"`  // delivered while not tracking
	Headings      int64 `json:"headings"`
	HeadingsUsed  int64 `json:"headings_used"`
	Errors        int64 `json:"errors"`
}

// New creates a new Tracker.
func New() *Tracker {
	return &Tracker{
		stats: make(map[string]*SourceStats),
	}
}

// getStats returns the stats object for a source, creating it if needed.
func (t *Tracker) getStats(source string) *SourceStats {
	t.mu.RLock()
	s, ok := t.stats[source]
	t.mu.RUnlock()
	if ok {
		return s
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok = t.stats[source]; ok {
		return s
	}
	s = &SourceStats{}
	t.stats[source] = s
	return s
}

// TrackFixReceived counts a fix delivered by the source.
func (t *Tracker) TrackFixReceived(source string) {
	atomic.AddInt64(&t.getStats(source).FixesReceived, 1)
}

func (t *Tracker) TrackFixAccepted(source string) {
	atomic.AddInt64(&t.getStats(source).FixesAccepted, 1)
}

func (t *Tracker) TrackFixRejected(source string) {
	atomic.AddInt64(&t.getStats(source).FixesRejected, 1)
}

func (t *Tracker) TrackFixStale(source string) {
	atomic.AddInt64(&t.getStats(source).FixesStale, 1)
}

func (t *Tracker) TrackFixIgnored(source string) {
	atomic.AddInt64(&t.getStats(source).FixesIgnored, 1)
}

// TrackHeading counts a compass event; used reports whether it changed the
// heading.
func (t *Tracker) TrackHeading(source string, used bool) {
	s := t.getStats(source)
	atomic.AddInt64(&s.Headings, 1)
	if used {
		atomic.AddInt64(&s.HeadingsUsed, 1)
	}
}

func (t *Tracker) TrackError(source string) {
	atomic.AddInt64(&t.getStats(source).Errors, 1)
}

// Snapshot returns a copy of the current stats.
func (t *Tracker) Snapshot() map[string]SourceStats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	result := make(map[string]SourceStats)
	for k, v := range t.stats {
		result[k] = SourceStats{
			FixesReceived: atomic.LoadInt64(&v.FixesReceived),
			FixesAccepted: atomic.LoadInt64(&v.FixesAccepted),
			FixesRejected: atomic.LoadInt64(&v.FixesRejected),
			FixesStale:    atomic.LoadInt64(&v.FixesStale),
			FixesIgnored:  atomic.LoadInt64(&v.FixesIgnored),
			Headings:      atomic.LoadInt64(&v.Headings),
			HeadingsUsed:  atomic.LoadInt64(&v.HeadingsUsed),
			Errors:        atomic.LoadInt64(&v.Errors),
		}
	}
	return result
}
