// Package filter decides whether a raw fix is usable and whether it counts
// as moving.
package filter

import (
	"fmt"
	"math"

	"saltydog/pkg/sensor"
)

// Defaults for the two quality gates.
const (
	DefaultMinimumAccuracy = 20.0 // meters
	DefaultMinimumSpeed    = 0.3  // meters/second
)

// Thresholds configures the quality gates.
type Thresholds struct {
	// MinimumAccuracy is the largest acceptable horizontal accuracy radius.
	MinimumAccuracy float64 `json:"minimum_accuracy"`
	// MinimumSpeed is the speed at or above which a fix counts as moving.
	MinimumSpeed float64 `json:"minimum_speed"`
}

// DefaultThresholds returns the stock gate values.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinimumAccuracy: DefaultMinimumAccuracy,
		MinimumSpeed:    DefaultMinimumSpeed,
	}
}

// Validate rejects negative or non-finite thresholds.
func (t Thresholds) Validate() error {
	if !finite(t.MinimumAccuracy) || !finite(t.MinimumSpeed) {
		return fmt.Errorf("thresholds must be finite, got %+v", t)
	}
	if t.MinimumAccuracy < 0 {
		return fmt.Errorf("minimum accuracy must be >= 0, got %v", t.MinimumAccuracy)
	}
	if t.MinimumSpeed < 0 {
		return fmt.Errorf("minimum speed must be >= 0, got %v", t.MinimumSpeed)
	}
	return nil
}

// Reading is an accepted fix classified by the speed gate.
type Reading struct {
	Fix sensor.RawFix
	// Speed is the clamped (>= 0) sensor speed, stored in the ledger.
	Speed float64
	// DisplaySpeed is Speed when moving and 0 when stationary.
	DisplaySpeed float64
	Moving       bool
	Course       float64
	CourseValid  bool
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Accurate reports whether the fix passes the accuracy gate. A fix without a
// finite position never does.
func Accurate(fix sensor.RawFix, th Thresholds) bool {
	if !finite(fix.Latitude) || !finite(fix.Longitude) {
		return false
	}
	acc := fix.HorizontalAccuracy
	return finite(acc) && acc >= 0 && acc <= th.MinimumAccuracy
}

// Evaluate applies the accuracy gate and, for accepted fixes, the speed gate
// and course derivation. The second result is false for rejected fixes.
// Non-finite speed and course are treated as invalid; a non-finite altitude
// is recorded as 0.
func Evaluate(fix sensor.RawFix, th Thresholds) (Reading, bool) {
	if !Accurate(fix, th) {
		return Reading{}, false
	}
	if !finite(fix.Speed) {
		fix.Speed = -1
	}
	if !finite(fix.Course) {
		fix.Course = -1
	}
	if !finite(fix.Altitude) {
		fix.Altitude = 0
	}

	speed := max(fix.Speed, 0)
	r := Reading{
		Fix:    fix,
		Speed:  speed,
		Moving: speed >= th.MinimumSpeed,
	}
	if r.Moving {
		r.DisplaySpeed = speed
	}
	if fix.Course >= 0 {
		r.Course = fix.Course
		r.CourseValid = true
	}
	return r, true
}

// Stale reports whether fix must be dropped given the previously accepted
// fix: it is older than prev, or it repeats prev's timestamp and position.
func Stale(prev *sensor.RawFix, fix sensor.RawFix) bool {
	if prev == nil {
		return false
	}
	if fix.Timestamp.Before(prev.Timestamp) {
		return true
	}
	return fix.Timestamp.Equal(prev.Timestamp) &&
		fix.Latitude == prev.Latitude &&
		fix.Longitude == prev.Longitude
}
