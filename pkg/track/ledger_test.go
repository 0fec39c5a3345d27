package track

import (
	"sync"
	"testing"
	"time"
)

func samplePoints(n int) []TrackPoint {
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	pts := make([]TrackPoint, n)
	for i := range pts {
		pts[i] = NewPoint(47.0+float64(i)*0.001, 8.0+float64(i)*0.002, float64(i), 90, 400, 5, base.Add(time.Duration(i)*time.Second))
	}
	return pts
}

func TestLedger_AppendAndSnapshot(t *testing.T) {
	l := NewLedger()
	if got := l.Snapshot(); len(got) != 0 {
		t.Fatalf("new ledger has %d points", len(got))
	}

	pts := samplePoints(3)
	for _, p := range pts {
		l.Append(p)
	}

	if l.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", l.Len())
	}
	snap := l.Snapshot()
	for i := range pts {
		if snap[i] != pts[i] {
			t.Errorf("snapshot[%d] = %+v, want %+v", i, snap[i], pts[i])
		}
	}

	// Snapshot is isolated from later appends and from caller mutation.
	snap[0].Latitude = -1
	l.Append(samplePoints(1)[0])
	if len(snap) != 3 {
		t.Errorf("snapshot grew to %d", len(snap))
	}
	if got := l.Snapshot()[0].Latitude; got != pts[0].Latitude {
		t.Errorf("ledger latitude = %v, want %v", got, pts[0].Latitude)
	}
}

func TestLedger_Coordinates(t *testing.T) {
	l := NewLedger()
	pts := samplePoints(4)
	for _, p := range pts {
		l.Append(p)
	}

	coords := l.Coordinates()
	if len(coords) != len(pts) {
		t.Fatalf("got %d coordinates, want %d", len(coords), len(pts))
	}
	for i, c := range coords {
		if c.Lat != pts[i].Latitude || c.Lon != pts[i].Longitude {
			t.Errorf("coordinate %d = %+v, want (%v, %v)", i, c, pts[i].Latitude, pts[i].Longitude)
		}
	}
}

func TestLineString(t *testing.T) {
	tests := []struct {
		name   string
		points []TrackPoint
	}{
		{"Empty", nil},
		{"Single", samplePoints(1)},
		{"Several", samplePoints(4)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ls := LineString(tt.points)
			if len(ls) != len(tt.points) {
				t.Fatalf("len = %d, want %d", len(ls), len(tt.points))
			}
			for i, p := range tt.points {
				if ls[i].Lon() != p.Longitude || ls[i].Lat() != p.Latitude {
					t.Errorf("vertex %d = %v, want lon/lat (%v, %v)", i, ls[i], p.Longitude, p.Latitude)
				}
			}
		})
	}
}

func TestLedger_Clear(t *testing.T) {
	l := NewLedger()
	for _, p := range samplePoints(5) {
		l.Append(p)
	}
	l.Clear()
	if l.Len() != 0 {
		t.Errorf("Len() = %d after Clear", l.Len())
	}
	if got := l.Coordinates(); len(got) != 0 {
		t.Errorf("Coordinates() = %v after Clear", got)
	}
}

func TestLedger_ConcurrentAppend(t *testing.T) {
	l := NewLedger()
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, p := range samplePoints(50) {
				l.Append(p)
				_ = l.Snapshot()
			}
		}()
	}
	wg.Wait()
	if l.Len() != 200 {
		t.Errorf("Len() = %d, want 200", l.Len())
	}
}

func TestNewPoint_UniqueIDs(t *testing.T) {
	seen := map[string]bool{}
	for _, p := range samplePoints(100) {
		if p.ID == "" {
			t.Fatal("empty id")
		}
		if seen[p.ID] {
			t.Fatalf("duplicate id %s", p.ID)
		}
		seen[p.ID] = true
	}
}
