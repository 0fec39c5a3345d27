// Package track holds the append-only ledger of accepted fixes that forms
// the session's path and the raw data for export.
package track

import (
	"time"

	"github.com/google/uuid"

	"saltydog/pkg/geo"
)

// TrackPoint is an accepted fix as recorded in the ledger. It is a value
// type and is never modified after creation.
type TrackPoint struct {
	ID                 string    `json:"id"`
	Latitude           float64   `json:"lat"`
	Longitude          float64   `json:"lon"`
	Speed              float64   `json:"speed"`   // m/s, >= 0
	Heading            float64   `json:"heading"` // degrees, 0 if unknown at capture
	Timestamp          time.Time `json:"timestamp"`
	Altitude           float64   `json:"altitude"`
	HorizontalAccuracy float64   `json:"accuracy"`
}

// NewPoint creates a TrackPoint with a fresh unique ID.
func NewPoint(lat, lon, speed, heading, altitude, accuracy float64, ts time.Time) TrackPoint {
	return TrackPoint{
		ID:                 uuid.NewString(),
		Latitude:           lat,
		Longitude:          lon,
		Speed:              speed,
		Heading:            heading,
		Timestamp:          ts,
		Altitude:           altitude,
		HorizontalAccuracy: accuracy,
	}
}

// Coordinate returns the point's position.
func (p TrackPoint) Coordinate() geo.Point {
	return geo.Point{Lat: p.Latitude, Lon: p.Longitude}
}
