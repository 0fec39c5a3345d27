package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"saltydog/pkg/prefs"
	"saltydog/pkg/sensor"
	"saltydog/pkg/tracking"
	"saltydog/pkg/units"
)

// stubSource satisfies sensor.Source without producing events.
type stubSource struct {
	events chan sensor.Event
}

func newStubSource() *stubSource {
	return &stubSource{events: make(chan sensor.Event)}
}

func (s *stubSource) Events() <-chan sensor.Event  { return s.events }
func (s *stubSource) StartLocationUpdates()        {}
func (s *stubSource) StopLocationUpdates()         {}
func (s *stubSource) StartHeadingUpdates()         {}
func (s *stubSource) StopHeadingUpdates()          {}
func (s *stubSource) RequestAuthorization()        {}
func (s *stubSource) SetBackgroundDelivery(_ bool) {}
func (s *stubSource) Close() error                 { return nil }

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

var testNow = time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC)

func newTestEngine(t *testing.T) *tracking.Engine {
	t.Helper()
	e := tracking.NewEngine(newStubSource(),
		tracking.WithClock(fixedClock{t: testNow}),
		tracking.WithTickInterval(0))
	t.Cleanup(e.Close)
	return e
}

func testFix(lat, lon, speed float64, offset time.Duration) sensor.RawFix {
	return sensor.RawFix{
		Latitude:           lat,
		Longitude:          lon,
		Speed:              speed,
		Course:             90,
		HorizontalAccuracy: 5,
		Timestamp:          testNow.Add(offset),
	}
}

func testUnits() *DisplayUnits {
	return NewDisplayUnits(units.KilometersPerHour, units.Kilometers)
}

func testDefaults() prefs.Preferences {
	return prefs.Preferences{
		SpeedUnit:       units.KilometersPerHour,
		DistanceUnit:    units.Kilometers,
		MinimumAccuracy: 20,
		MinimumSpeed:    0.3,
	}
}

func doRequest(t *testing.T, h http.HandlerFunc, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func serve(h http.Handler, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}
