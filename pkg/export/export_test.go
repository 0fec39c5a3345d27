package export

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"saltydog/pkg/track"
)

var exportedAt = time.Date(2024, 8, 15, 17, 30, 0, 0, time.UTC)

func samplePoints() []track.TrackPoint {
	base := time.Date(2024, 8, 15, 16, 0, 0, 0, time.UTC)
	return []track.TrackPoint{
		track.NewPoint(46.948, 7.4474, 1.25, 90, 540.5, 4, base),
		track.NewPoint(46.9481, 7.4476, 0.1, 0, 541, 6.5, base.Add(time.Second)),
		track.NewPoint(46.9485, 7.4481, 13.9, 272.5, 539.75, 3, base.Add(2*time.Second)),
	}
}

func TestGPX(t *testing.T) {
	pts := samplePoints()
	data, err := GPX(pts, exportedAt)
	require.NoError(t, err)

	s := string(data)
	assert.True(t, strings.HasPrefix(s, `<?xml version="1.0" encoding="UTF-8"?>`))
	assert.Contains(t, s, `<name>SaltyDog Track 2024-08-15T17:30:00Z</name>`)
	assert.Contains(t, s, `version="1.1"`)

	// Speed and course sit in the TrackPointExtension namespace.
	assert.Contains(t, s, `<TrackPointExtension xmlns="`+tpxNamespace+`">`)

	// Field order within a point is fixed.
	first := s[strings.Index(s, "<trkpt"):strings.Index(s, "</trkpt>")]
	order := []string{`lat="46.948"`, `lon="7.4474"`, "<ele>540.5</ele>", "<time>2024-08-15T16:00:00Z</time>", "<speed>1.25</speed>", "<course>90</course>"}
	last := -1
	for _, frag := range order {
		idx := strings.Index(first, frag)
		require.NotEqual(t, -1, idx, "missing %s in %s", frag, first)
		assert.Greater(t, idx, last, "%s out of order", frag)
		last = idx
	}

	var doc gpxDoc
	require.NoError(t, xml.Unmarshal(data, &doc))
	require.Len(t, doc.Track.Segment.Points, len(pts))
	for i, p := range pts {
		got := doc.Track.Segment.Points[i]
		assert.Equal(t, p.Latitude, mustFloat(t, got.Lat))
		assert.Equal(t, p.Longitude, mustFloat(t, got.Lon))
		assert.Equal(t, p.Altitude, mustFloat(t, got.Ele))
		assert.Equal(t, p.Speed, mustFloat(t, got.Extensions.TrackPoint.Speed))
		assert.Equal(t, p.Heading, mustFloat(t, got.Extensions.TrackPoint.Course))
	}
}

func TestGPX_Empty(t *testing.T) {
	data, err := GPX(nil, exportedAt)
	require.NoError(t, err)

	var doc gpxDoc
	require.NoError(t, xml.Unmarshal(data, &doc))
	assert.Empty(t, doc.Track.Segment.Points)
	assert.Contains(t, string(data), "<trkseg></trkseg>")
}

func TestCSV(t *testing.T) {
	pts := samplePoints()
	data, err := CSV(pts)
	require.NoError(t, err)

	want := "Timestamp,Latitude,Longitude,Speed (m/s),Heading,Altitude,Accuracy\n" +
		"2024-08-15T16:00:00Z,46.948,7.4474,1.25,90,540.5,4\n" +
		"2024-08-15T16:00:01Z,46.9481,7.4476,0.1,0,541,6.5\n" +
		"2024-08-15T16:00:02Z,46.9485,7.4481,13.9,272.5,539.75,3\n"
	assert.Equal(t, want, string(data))
}

func TestCSV_Empty(t *testing.T) {
	data, err := CSV(nil)
	require.NoError(t, err)
	assert.Equal(t, "Timestamp,Latitude,Longitude,Speed (m/s),Heading,Altitude,Accuracy\n", string(data))
}

func TestReadCSV_RoundTrip(t *testing.T) {
	pts := samplePoints()
	data, err := CSV(pts)
	require.NoError(t, err)

	got, err := ReadCSV(bytes.NewReader(data))
	require.NoError(t, err)
	require.Len(t, got, len(pts))
	for i := range pts {
		assert.NotEqual(t, pts[i].ID, got[i].ID)
		got[i].ID = pts[i].ID
		assert.True(t, pts[i].Timestamp.Equal(got[i].Timestamp))
		got[i].Timestamp = pts[i].Timestamp
		assert.Equal(t, pts[i], got[i])
	}
}

func TestReadCSV_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"Empty", ""},
		{"Wrong Header", "Time,Lat,Lon,Speed,Heading,Altitude,Accuracy\n"},
		{"Bad Timestamp", "Timestamp,Latitude,Longitude,Speed (m/s),Heading,Altitude,Accuracy\nyesterday,1,2,3,4,5,6\n"},
		{"Bad Number", "Timestamp,Latitude,Longitude,Speed (m/s),Heading,Altitude,Accuracy\n2024-01-01T00:00:00Z,north,2,3,4,5,6\n"},
		{"Short Row", "Timestamp,Latitude,Longitude,Speed (m/s),Heading,Altitude,Accuracy\n2024-01-01T00:00:00Z,1,2\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(tt.input))
			assert.Error(t, err)
		})
	}

	_, err := ReadCSV(strings.NewReader("Time,Lat,Lon,Speed,Heading,Altitude,Accuracy\n"))
	assert.True(t, errors.Is(err, ErrBadHeader))
}

func TestGeoJSON(t *testing.T) {
	pts := samplePoints()
	data, err := GeoJSON(pts)
	require.NoError(t, err)

	fc, err := geojson.UnmarshalFeatureCollection(data)
	require.NoError(t, err)
	require.Len(t, fc.Features, 3)

	line, ok := fc.Features[0].Geometry.(orb.LineString)
	require.True(t, ok)
	require.Len(t, line, len(pts))
	for i, p := range pts {
		assert.Equal(t, p.Longitude, line[i].Lon())
		assert.Equal(t, p.Latitude, line[i].Lat())
	}
	assert.Equal(t, "start", fc.Features[1].Properties["name"])
	assert.Equal(t, "end", fc.Features[2].Properties["name"])
	assert.Len(t, fc.Features[1].Properties["geohash"], 7)
	assert.Greater(t, fc.Features[0].Properties["distance_m"].(float64), 0.0)
}

func TestGeoJSON_Empty(t *testing.T) {
	data, err := GeoJSON(nil)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "FeatureCollection", raw["type"])
	assert.Len(t, raw["features"], 1)
}

func TestFormat(t *testing.T) {
	f, err := ParseFormat(" GPX ")
	require.NoError(t, err)
	assert.Equal(t, FormatGPX, f)
	_, err = ParseFormat("kml")
	assert.Error(t, err)

	assert.Equal(t, "track-20240815-173000.csv", Filename(FormatCSV, exportedAt))
	assert.Equal(t, "application/gpx+xml", FormatGPX.ContentType())

	for _, f := range []Format{FormatGPX, FormatCSV, FormatGeoJSON} {
		data, err := Encode(f, samplePoints(), exportedAt)
		require.NoError(t, err)
		assert.NotEmpty(t, data)
	}
	_, err = Encode("kml", nil, exportedAt)
	assert.Error(t, err)
}

func mustFloat(t *testing.T, s string) float64 {
	t.Helper()
	v, err := strconv.ParseFloat(s, 64)
	require.NoError(t, err)
	return v
}
