package stats

import (
	"math"
	"testing"
	"time"

	"saltydog/pkg/filter"
	"saltydog/pkg/geo"
	"saltydog/pkg/sensor"
)

var t0 = time.Date(2024, 5, 4, 9, 0, 0, 0, time.UTC)

func fix(lat, lon, speed, course, acc float64, sec int) sensor.RawFix {
	return sensor.RawFix{
		Latitude:           lat,
		Longitude:          lon,
		Speed:              speed,
		Course:             course,
		Altitude:           12,
		HorizontalAccuracy: acc,
		Timestamp:          t0.Add(time.Duration(sec) * time.Second),
	}
}

// feed runs fixes through the filter and aggregator the way the engine does
// and returns the accepted deltas.
func feed(a *Aggregator, fixes ...sensor.RawFix) []Delta {
	th := filter.DefaultThresholds()
	var out []Delta
	for _, f := range fixes {
		r, ok := filter.Evaluate(f, th)
		if !ok {
			continue
		}
		out = append(out, a.ApplyAccepted(r))
	}
	return out
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestAggregator_FourFixScenario(t *testing.T) {
	a := New()
	f1 := fix(47.3700, 8.5400, 1.0, 90, 10, 0)
	f2 := fix(47.3701, 8.5402, 0.1, 95, 10, 1)
	f3 := fix(47.3705, 8.5410, 5.0, 100, 25, 2)
	f4 := fix(47.3710, 8.5420, 2.0, 80, 5, 3)

	deltas := feed(a, f1, f2, f3, f4)
	if len(deltas) != 3 {
		t.Fatalf("accepted %d fixes, want 3", len(deltas))
	}

	v := a.Values()
	if v.CurrentSpeed != 2.0 {
		t.Errorf("CurrentSpeed = %v, want 2", v.CurrentSpeed)
	}
	if v.TopSpeed != 2.0 {
		t.Errorf("TopSpeed = %v, want 2", v.TopSpeed)
	}
	if !approx(v.AverageSpeed, 1.5) {
		t.Errorf("AverageSpeed = %v, want 1.5", v.AverageSpeed)
	}
	if v.CurrentHeading != 80.0 {
		t.Errorf("CurrentHeading = %v, want 80", v.CurrentHeading)
	}
	if v.MovingSamples != 2 {
		t.Errorf("MovingSamples = %d, want 2", v.MovingSamples)
	}

	want := geo.Distance(geo.Point{Lat: f1.Latitude, Lon: f1.Longitude}, geo.Point{Lat: f4.Latitude, Lon: f4.Longitude})
	if math.Abs(v.TotalDistance-want) > 1e-6 {
		t.Errorf("TotalDistance = %v, want %v", v.TotalDistance, want)
	}

	// Stationary fix still produces a point carrying its true clamped speed.
	stationary := deltas[1]
	if stationary.Point.Speed != 0.1 || stationary.Point.Heading != 95.0 {
		t.Errorf("stationary point = speed %v heading %v, want 0.1 and 95", stationary.Point.Speed, stationary.Point.Heading)
	}
	if stationary.DistanceAdded != 0 {
		t.Errorf("stationary fix added %v m", stationary.DistanceAdded)
	}
	if wantCoord := (geo.Point{Lat: f4.Latitude, Lon: f4.Longitude}); v.Coordinate != wantCoord {
		t.Errorf("Coordinate = %+v, want %+v", v.Coordinate, wantCoord)
	}
}

func TestAggregator_StationaryLeavesTotalsAlone(t *testing.T) {
	a := New()
	feed(a, fix(10, 10, 3.0, 0, 5, 0), fix(10.001, 10, 3.0, 0, 5, 1))
	before := a.Values()

	deltas := feed(a, fix(10.002, 10.002, 0.2, -1, 5, 2))
	if len(deltas) != 1 {
		t.Fatalf("accepted %d fixes, want 1", len(deltas))
	}

	after := a.Values()
	if after.CurrentSpeed != 0 {
		t.Errorf("CurrentSpeed = %v, want 0", after.CurrentSpeed)
	}
	if after.TopSpeed != before.TopSpeed || after.AverageSpeed != before.AverageSpeed || after.TotalDistance != before.TotalDistance {
		t.Errorf("totals changed: before %+v, after %+v", before, after)
	}
	if after.CurrentHeading != before.CurrentHeading {
		t.Errorf("invalid course changed heading from %v to %v", before.CurrentHeading, after.CurrentHeading)
	}
	if deltas[0].Point.Heading != 0 {
		t.Errorf("point heading = %v, want 0", deltas[0].Point.Heading)
	}
}

func TestAggregator_MonotonicTotals(t *testing.T) {
	a := New()
	speeds := []float64{1, 4, 2, 0, 7, 3, 0.1, 5}
	var lastTop, lastDist float64
	for i, s := range speeds {
		feed(a, fix(1+float64(i)*0.0005, 2, s, 45, 5, i))
		v := a.Values()
		if v.TopSpeed < lastTop || v.TotalDistance < lastDist {
			t.Fatalf("step %d: totals decreased (top %v -> %v, distance %v -> %v)", i, lastTop, v.TopSpeed, lastDist, v.TotalDistance)
		}
		lastTop, lastDist = v.TopSpeed, v.TotalDistance
	}
	if lastTop != 7.0 {
		t.Errorf("TopSpeed = %v, want 7", lastTop)
	}
	// Moving samples: 1,4,2,7,3,5
	if got := a.Values().AverageSpeed; !approx(got, 22.0/6.0) {
		t.Errorf("AverageSpeed = %v, want %v", got, 22.0/6.0)
	}
}

func TestAggregator_FirstFixAddsNoDistance(t *testing.T) {
	a := New()
	deltas := feed(a, fix(0, 0, 5, 10, 5, 0))
	if len(deltas) != 1 {
		t.Fatalf("accepted %d fixes, want 1", len(deltas))
	}
	if deltas[0].DistanceAdded != 0 || a.Values().TotalDistance != 0 {
		t.Errorf("first fix added distance: %v", a.Values().TotalDistance)
	}
	if !a.Values().HasCoordinate {
		t.Error("HasCoordinate = false after first fix")
	}
}

func TestAggregator_ApplyHeading(t *testing.T) {
	tests := []struct {
		name        string
		speed       float64
		course      float64
		ev          sensor.HeadingEvent
		wantChanged bool
		wantHeading float64
	}{
		{
			name:        "Stationary Valid Accuracy",
			speed:       0,
			course:      95,
			ev:          sensor.HeadingEvent{MagneticHeading: 200, Accuracy: 5},
			wantChanged: true,
			wantHeading: 200,
		},
		{
			name:        "Stationary Invalid Accuracy",
			speed:       0,
			course:      95,
			ev:          sensor.HeadingEvent{MagneticHeading: 200, Accuracy: -1},
			wantHeading: 95,
		},
		{
			name:        "Moving Ignores Compass",
			speed:       2,
			course:      80,
			ev:          sensor.HeadingEvent{MagneticHeading: 200, Accuracy: 5},
			wantHeading: 80,
		},
		{
			name:        "Normalizes Magnetic Value",
			speed:       0,
			course:      95,
			ev:          sensor.HeadingEvent{MagneticHeading: 370, Accuracy: 1},
			wantChanged: true,
			wantHeading: 10,
		},
		{
			name:        "NaN Compass Ignored",
			speed:       0,
			course:      95,
			ev:          sensor.HeadingEvent{MagneticHeading: math.NaN(), Accuracy: 5},
			wantHeading: 95,
		},
		{
			name:        "Same Heading Reports No Change",
			speed:       0,
			course:      120,
			ev:          sensor.HeadingEvent{MagneticHeading: 120, Accuracy: 1},
			wantHeading: 120,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := New()
			feed(a, fix(1, 1, tt.speed, tt.course, 5, 0))
			changed := a.ApplyHeading(tt.ev, filter.DefaultMinimumSpeed)
			if changed != tt.wantChanged {
				t.Errorf("changed = %v, want %v", changed, tt.wantChanged)
			}
			if got := a.Values().CurrentHeading; got != tt.wantHeading {
				t.Errorf("CurrentHeading = %v, want %v", got, tt.wantHeading)
			}
		})
	}
}

func TestAggregator_Reset(t *testing.T) {
	a := New()
	feed(a, fix(1, 1, 3, 30, 5, 0), fix(1.001, 1, 4, 40, 5, 1))
	if a.Values().TotalDistance == 0 {
		t.Fatal("expected distance before reset")
	}

	a.Reset()
	if got := a.Values(); got != (Values{}) {
		t.Errorf("Values() after Reset = %+v", got)
	}

	// Pool and anchor are gone: the next moving fix adds no distance and
	// averages alone.
	deltas := feed(a, fix(2, 2, 6, 0, 5, 2))
	if len(deltas) != 1 {
		t.Fatalf("accepted %d fixes, want 1", len(deltas))
	}
	if deltas[0].DistanceAdded != 0 {
		t.Errorf("DistanceAdded = %v, want 0", deltas[0].DistanceAdded)
	}
	if got := a.Values().AverageSpeed; got != 6.0 {
		t.Errorf("AverageSpeed = %v, want 6", got)
	}
}
