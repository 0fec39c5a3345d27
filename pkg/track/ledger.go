package track

import (
	"sync"

	"github.com/paulmach/orb"

	"saltydog/pkg/geo"
)

// Ledger is an append-only, time-ordered sequence of TrackPoints.
// Entries are never removed or reordered except by Clear on session reset.
type Ledger struct {
	mu     sync.RWMutex
	points []TrackPoint
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{}
}

// Append adds a point at the end of the ledger.
func (l *Ledger) Append(p TrackPoint) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.points = append(l.points, p)
}

// Len returns the number of recorded points.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.points)
}

// Snapshot returns a copy of all points. Later appends do not affect it.
func (l *Ledger) Snapshot() []TrackPoint {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]TrackPoint, len(l.points))
	copy(out, l.points)
	return out
}

// Coordinates projects the ledger to its (lat, lon) path, in ledger order.
func (l *Ledger) Coordinates() []geo.Point {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]geo.Point, len(l.points))
	for i, p := range l.points {
		out[i] = p.Coordinate()
	}
	return out
}

// LineString projects points to an orb line string in lon/lat order.
func LineString(points []TrackPoint) orb.LineString {
	ls := make(orb.LineString, len(points))
	for i, p := range points {
		ls[i] = orb.Point{p.Longitude, p.Latitude}
	}
	return ls
}

// Clear empties the ledger. Only a full session reset may call this.
func (l *Ledger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.points = nil
}
