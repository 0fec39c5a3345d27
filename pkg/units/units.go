// Package units converts and formats speeds, distances, headings and
// durations for display. All inputs are SI (meters, meters/second, degrees).
package units

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// SpeedUnit identifies a display unit for speed.
type SpeedUnit string

const (
	MetersPerSecond   SpeedUnit = "m/s"
	KilometersPerHour SpeedUnit = "km/h"
	MilesPerHour      SpeedUnit = "mph"
	Knots             SpeedUnit = "kn"
)

// DistanceUnit identifies a display unit for distance.
type DistanceUnit string

const (
	Meters        DistanceUnit = "m"
	Kilometers    DistanceUnit = "km"
	Feet          DistanceUnit = "ft"
	Miles         DistanceUnit = "mi"
	NauticalMiles DistanceUnit = "nm"
)

// Conversion factors to SI.
const (
	metersPerKilometer   = 1000.0
	metersPerMile        = 1609.344
	metersPerNauticalMi  = 1852.0
	metersPerFoot        = 0.3048
	mpsPerKmh            = 1000.0 / 3600.0
	mpsPerMph            = metersPerMile / 3600.0
	mpsPerKnot           = metersPerNauticalMi / 3600.0
	shortDistanceCutover = 1000.0
)

var speedFactors = map[SpeedUnit]float64{
	MetersPerSecond:   1,
	KilometersPerHour: mpsPerKmh,
	MilesPerHour:      mpsPerMph,
	Knots:             mpsPerKnot,
}

var distanceFactors = map[DistanceUnit]float64{
	Meters:        1,
	Kilometers:    metersPerKilometer,
	Feet:          metersPerFoot,
	Miles:         metersPerMile,
	NauticalMiles: metersPerNauticalMi,
}

// ParseSpeedUnit accepts the canonical unit strings plus a few aliases.
func ParseSpeedUnit(s string) (SpeedUnit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "m/s", "mps", "ms":
		return MetersPerSecond, nil
	case "km/h", "kmh", "kph":
		return KilometersPerHour, nil
	case "mph", "mi/h":
		return MilesPerHour, nil
	case "kn", "kt", "kts", "knots":
		return Knots, nil
	}
	return "", fmt.Errorf("unknown speed unit: %q", s)
}

// ParseDistanceUnit accepts the canonical unit strings plus a few aliases.
func ParseDistanceUnit(s string) (DistanceUnit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "m", "meters":
		return Meters, nil
	case "km", "kilometers":
		return Kilometers, nil
	case "ft", "feet":
		return Feet, nil
	case "mi", "miles":
		return Miles, nil
	case "nm", "nmi":
		return NauticalMiles, nil
	}
	return "", fmt.Errorf("unknown distance unit: %q", s)
}

// FromSpeed converts meters/second to the given unit.
func FromSpeed(mps float64, u SpeedUnit) float64 {
	f, ok := speedFactors[u]
	if !ok {
		return mps
	}
	return mps / f
}

// ToSpeed converts a value in the given unit to meters/second.
func ToSpeed(v float64, u SpeedUnit) float64 {
	f, ok := speedFactors[u]
	if !ok {
		return v
	}
	return v * f
}

// FromDistance converts meters to the given unit.
func FromDistance(m float64, u DistanceUnit) float64 {
	f, ok := distanceFactors[u]
	if !ok {
		return m
	}
	return m / f
}

// ToDistance converts a value in the given unit to meters.
func ToDistance(v float64, u DistanceUnit) float64 {
	f, ok := distanceFactors[u]
	if !ok {
		return v
	}
	return v * f
}

// ShortUnit returns the unit used for short distances in the same system
// (meters for km, feet for miles, meters otherwise).
func (u DistanceUnit) ShortUnit() DistanceUnit {
	if u == Miles {
		return Feet
	}
	return Meters
}

// FormatSpeed renders a speed with one decimal, e.g. "12.3 km/h".
func FormatSpeed(mps float64, u SpeedUnit) string {
	return fmt.Sprintf("%.1f %s", FromSpeed(mps, u), u)
}

// FormatDistance renders a distance in u, falling back to the short unit of
// the same system below one kilometer (or 0.1 mi for imperial).
func FormatDistance(m float64, u DistanceUnit) string {
	switch u {
	case Kilometers:
		if m < shortDistanceCutover {
			return fmt.Sprintf("%.0f %s", m, Meters)
		}
	case Miles:
		if m < 0.1*metersPerMile {
			return fmt.Sprintf("%.0f %s", FromDistance(m, Feet), Feet)
		}
	case Meters, Feet:
		return fmt.Sprintf("%.0f %s", FromDistance(m, u), u)
	}
	return fmt.Sprintf("%.2f %s", FromDistance(m, u), u)
}

var cardinals = []string{"N", "NE", "E", "SE", "S", "SW", "W", "NW"}

// NormalizeHeading maps any angle to [0, 360).
func NormalizeHeading(deg float64) float64 {
	if math.IsNaN(deg) || math.IsInf(deg, 0) {
		return 0
	}
	h := math.Mod(deg, 360)
	if h < 0 {
		h += 360
	}
	if h >= 360 {
		h = 0
	}
	return h
}

// Cardinal returns the 8-point compass direction for a heading.
// Each sector is 45 degrees wide and centered on its direction.
func Cardinal(deg float64) string {
	idx := int(math.Floor((NormalizeHeading(deg)+22.5)/45)) % len(cardinals)
	return cardinals[idx]
}

// FormatHeading renders a heading like "087° E".
func FormatHeading(deg float64) string {
	h := NormalizeHeading(deg)
	rounded := int(math.Round(h)) % 360
	return fmt.Sprintf("%03d° %s", rounded, Cardinal(h))
}

// FormatDuration renders elapsed time as "MM:SS" below an hour and
// "H:MM:SS" above. Negative durations are clamped to zero.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

// FormatClock renders a wall-clock time as "15:04:05" in the time's location.
func FormatClock(t time.Time) string {
	if t.IsZero() {
		return "--:--:--"
	}
	return t.Format("15:04:05")
}
