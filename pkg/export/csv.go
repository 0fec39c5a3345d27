package export

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"saltydog/pkg/track"
)

// csvHeader is the fixed first row.
var csvHeader = []string{"Timestamp", "Latitude", "Longitude", "Speed (m/s)", "Heading", "Altitude", "Accuracy"}

// CSV renders one header row and one row per point, each terminated by "\n".
func CSV(points []track.TrackPoint) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return nil, fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, p := range points {
		row := []string{
			formatTime(p.Timestamp),
			formatFloat(p.Latitude),
			formatFloat(p.Longitude),
			formatFloat(p.Speed),
			formatFloat(p.Heading),
			formatFloat(p.Altitude),
			formatFloat(p.HorizontalAccuracy),
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

// ErrBadHeader is returned by ReadCSV when the first row is not the export
// header.
var ErrBadHeader = errors.New("unexpected csv header")

// ReadCSV parses a document produced by CSV back into track points. Each
// point gets a fresh ID.
func ReadCSV(r io.Reader) ([]track.TrackPoint, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(csvHeader)

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}
	for i, h := range csvHeader {
		if header[i] != h {
			return nil, fmt.Errorf("%w: column %d is %q, want %q", ErrBadHeader, i+1, header[i], h)
		}
	}

	var points []track.TrackPoint
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		p, err := parseRow(rec)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		points = append(points, p)
	}
	return points, nil
}

func parseRow(rec []string) (track.TrackPoint, error) {
	ts, err := time.Parse(time.RFC3339Nano, rec[0])
	if err != nil {
		return track.TrackPoint{}, fmt.Errorf("invalid timestamp %q: %w", rec[0], err)
	}
	var vals [6]float64
	for i := range vals {
		v, err := strconv.ParseFloat(rec[i+1], 64)
		if err != nil {
			return track.TrackPoint{}, fmt.Errorf("invalid %s %q: %w", csvHeader[i+1], rec[i+1], err)
		}
		vals[i] = v
	}
	return track.NewPoint(vals[0], vals[1], vals[2], vals[3], vals[4], vals[5], ts), nil
}
