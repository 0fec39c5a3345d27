// Package stats maintains the running session aggregates: current, top and
// average speed, heading, cumulative distance and the current coordinate.
package stats

import (
	"math"

	"saltydog/pkg/filter"
	"saltydog/pkg/geo"
	"saltydog/pkg/sensor"
	"saltydog/pkg/track"
	"saltydog/pkg/units"
)

// Values is a point-in-time copy of the aggregates.
type Values struct {
	CurrentSpeed   float64   `json:"current_speed"`
	CurrentHeading float64   `json:"current_heading"`
	TopSpeed       float64   `json:"top_speed"`
	AverageSpeed   float64   `json:"average_speed"`
	TotalDistance  float64   `json:"total_distance"`
	Coordinate     geo.Point `json:"coordinate"`
	HasCoordinate  bool      `json:"has_coordinate"`
	MovingSamples  int       `json:"moving_samples"`
}

// Delta describes the outcome of applying one accepted reading.
type Delta struct {
	// Point is the ledger entry for the reading. Every accepted reading
	// yields one, moving or stationary.
	Point         track.TrackPoint
	DistanceAdded float64
}

// Aggregator is not safe for concurrent use. The tracking engine owns it and
// serializes every call under its own lock.
type Aggregator struct {
	v Values

	// Moving-sample pool, kept as a running sum.
	sampleSum   float64
	sampleCount int

	// anchor is the coordinate distance is measured from: the last moving
	// fix, or the first accepted fix until something moves.
	anchor *geo.Point
}

// New returns a zeroed aggregator.
func New() *Aggregator {
	return &Aggregator{}
}

// ApplyAccepted folds an accepted reading into the aggregates and returns the
// track point to append.
func (a *Aggregator) ApplyAccepted(r filter.Reading) Delta {
	fix := r.Fix
	cur := geo.Point{Lat: fix.Latitude, Lon: fix.Longitude}
	a.v.Coordinate = cur
	a.v.HasCoordinate = true

	var d Delta
	if r.Moving {
		a.v.CurrentSpeed = r.Speed
		a.sampleSum += r.Speed
		a.sampleCount++
		a.v.TopSpeed = math.Max(a.v.TopSpeed, r.Speed)

		if a.anchor != nil {
			d.DistanceAdded = geo.Distance(*a.anchor, cur)
			a.v.TotalDistance += d.DistanceAdded
		}
		a.anchor = &cur
	} else {
		a.v.CurrentSpeed = 0
		if a.anchor == nil {
			a.anchor = &cur
		}
	}

	if a.sampleCount > 0 {
		a.v.AverageSpeed = a.sampleSum / float64(a.sampleCount)
	}
	a.v.MovingSamples = a.sampleCount

	heading := 0.0
	if r.CourseValid {
		heading = units.NormalizeHeading(r.Course)
		a.v.CurrentHeading = heading
	}

	d.Point = track.NewPoint(fix.Latitude, fix.Longitude, r.Speed, heading, fix.Altitude, fix.HorizontalAccuracy, fix.Timestamp)
	return d
}

// ApplyHeading applies the magnetic fallback: while below the moving
// threshold, a compass reading with valid accuracy replaces the heading.
// It reports whether the heading changed.
func (a *Aggregator) ApplyHeading(ev sensor.HeadingEvent, minimumSpeed float64) bool {
	if a.v.CurrentSpeed >= minimumSpeed || ev.Accuracy < 0 {
		return false
	}
	if math.IsNaN(ev.MagneticHeading) || math.IsInf(ev.MagneticHeading, 0) {
		return false
	}
	h := units.NormalizeHeading(ev.MagneticHeading)
	if h == a.v.CurrentHeading {
		return false
	}
	a.v.CurrentHeading = h
	return true
}

// Reset zeroes every aggregate, the sample pool and the distance anchor.
func (a *Aggregator) Reset() {
	a.v = Values{}
	a.sampleSum = 0
	a.sampleCount = 0
	a.anchor = nil
}

// Values returns a copy of the current aggregates.
func (a *Aggregator) Values() Values {
	return a.v
}
