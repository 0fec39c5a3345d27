// Package export serializes the track ledger for sharing: GPX 1.1, CSV and
// GeoJSON.
package export

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strconv"
	"time"

	"saltydog/pkg/track"
)

const (
	gpxNamespace = "http://www.topografix.com/GPX/1/1"
	tpxNamespace = "http://www.garmin.com/xmlschemas/TrackPointExtension/v2"
	gpxCreator   = "SaltyDog"
	trackPrefix  = "SaltyDog Track "
)

type gpxDoc struct {
	XMLName xml.Name `xml:"gpx"`
	Version string   `xml:"version,attr"`
	Creator string   `xml:"creator,attr"`
	XMLNS   string   `xml:"xmlns,attr"`
	Track   gpxTrack `xml:"trk"`
}

type gpxTrack struct {
	Name    string     `xml:"name"`
	Segment gpxSegment `xml:"trkseg"`
}

type gpxSegment struct {
	Points []gpxPoint `xml:"trkpt"`
}

// Field order is part of the format: ele, time, speed, course. GPX 1.1 has
// no speed or course on trkpt, so they go in the Garmin TrackPointExtension.
type gpxPoint struct {
	Lat        string        `xml:"lat,attr"`
	Lon        string        `xml:"lon,attr"`
	Ele        string        `xml:"ele"`
	Time       string        `xml:"time"`
	Extensions gpxExtensions `xml:"extensions"`
}

type gpxExtensions struct {
	TrackPoint gpxTrackPointExt `xml:"http://www.garmin.com/xmlschemas/TrackPointExtension/v2 TrackPointExtension"`
}

type gpxTrackPointExt struct {
	Speed  string `xml:"speed"`
	Course string `xml:"course"`
}

// GPX renders points as a single-track, single-segment GPX 1.1 document.
// The track name embeds exportedAt.
func GPX(points []track.TrackPoint, exportedAt time.Time) ([]byte, error) {
	doc := gpxDoc{
		Version: "1.1",
		Creator: gpxCreator,
		XMLNS:   gpxNamespace,
		Track: gpxTrack{
			Name:    trackPrefix + formatTime(exportedAt),
			Segment: gpxSegment{Points: make([]gpxPoint, 0, len(points))},
		},
	}
	for _, p := range points {
		doc.Track.Segment.Points = append(doc.Track.Segment.Points, gpxPoint{
			Lat:        formatFloat(p.Latitude),
			Lon:        formatFloat(p.Longitude),
			Ele:        formatFloat(p.Altitude),
			Time:       formatTime(p.Timestamp),
			Extensions: gpxExtensions{TrackPoint: gpxTrackPointExt{
				Speed:  formatFloat(p.Speed),
				Course: formatFloat(p.Heading),
			}},
		})
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("failed to encode gpx: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
