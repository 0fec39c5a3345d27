package export

import (
	"fmt"
	"strings"
	"time"

	"saltydog/pkg/track"
)

// Format names an export encoding.
type Format string

const (
	FormatGPX     Format = "gpx"
	FormatCSV     Format = "csv"
	FormatGeoJSON Format = "geojson"
)

// ParseFormat accepts a format name case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatGPX, FormatCSV, FormatGeoJSON:
		return f, nil
	}
	return "", fmt.Errorf("unknown export format %q", s)
}

// ContentType returns the MIME type for the format.
func (f Format) ContentType() string {
	switch f {
	case FormatGPX:
		return "application/gpx+xml"
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatGeoJSON:
		return "application/geo+json"
	}
	return "application/octet-stream"
}

// Filename suggests a file name such as track-20240501-093000.gpx.
func Filename(f Format, at time.Time) string {
	return "track-" + at.UTC().Format("20060102-150405") + "." + string(f)
}

// Encode renders points in the given format.
func Encode(f Format, points []track.TrackPoint, exportedAt time.Time) ([]byte, error) {
	switch f {
	case FormatGPX:
		return GPX(points, exportedAt)
	case FormatCSV:
		return CSV(points)
	case FormatGeoJSON:
		return GeoJSON(points)
	}
	return nil, fmt.Errorf("unknown export format %q", f)
}
