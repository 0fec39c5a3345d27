package replay

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"saltydog/pkg/export"
	"saltydog/pkg/sensor"
	"saltydog/pkg/track"
)

func recorded() []track.TrackPoint {
	base := time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC)
	return []track.TrackPoint{
		track.NewPoint(1.0, 2.0, 0, 0, 10, 5, base),
		track.NewPoint(1.0001, 2.0, 1.2, 5, 10, 5, base.Add(time.Second)),
		track.NewPoint(1.0002, 2.0, 1.3, 7, 11, 4, base.Add(2*time.Second)),
	}
}

func next(t *testing.T, ch <-chan sensor.Event) sensor.Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return sensor.Event{}
}

func TestReplay_PlaysInOrder(t *testing.T) {
	pts := recorded()
	r := NewSource(pts, Config{Rate: 1000})
	defer r.Close()

	r.StartLocationUpdates()
	var prev time.Time
	for i, p := range pts {
		ev := next(t, r.Events())
		require.Equal(t, sensor.EventFix, ev.Type)
		assert.Equal(t, p.Latitude, ev.Fix.Latitude)
		assert.Equal(t, p.HorizontalAccuracy, ev.Fix.HorizontalAccuracy)
		if i == 0 {
			assert.Equal(t, -1.0, ev.Fix.Course, "stationary point has no course")
		} else {
			assert.Equal(t, p.Heading, ev.Fix.Course)
		}
		assert.False(t, ev.Fix.Timestamp.Before(prev))
		prev = ev.Fix.Timestamp
	}
	assert.Eventually(t, func() bool { return r.Remaining() == 0 }, time.Second, 5*time.Millisecond)
}

func TestReplay_HeadingEvents(t *testing.T) {
	r := NewSource(recorded(), Config{Rate: 1000})
	defer r.Close()

	r.StartHeadingUpdates()
	r.StartLocationUpdates()
	fix := next(t, r.Events())
	heading := next(t, r.Events())
	assert.Equal(t, sensor.EventFix, fix.Type)
	require.Equal(t, sensor.EventHeading, heading.Type)
	assert.Equal(t, headingAccuracy, heading.Heading.Accuracy)
}

func TestReplay_WaitsWhileStopped(t *testing.T) {
	r := NewSource(recorded(), Config{Rate: 1000})
	defer r.Close()

	select {
	case ev := <-r.Events():
		t.Fatalf("unexpected event before start: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
	assert.Equal(t, 3, r.Remaining())
}

func TestReplay_Loop(t *testing.T) {
	r := NewSource(recorded(), Config{Rate: 1000, Loop: true})
	defer r.Close()

	r.StartLocationUpdates()
	for i := 0; i < 7; i++ {
		ev := next(t, r.Events())
		require.Equal(t, sensor.EventFix, ev.Type)
	}
}

func TestReplay_Authorization(t *testing.T) {
	r := NewSource(nil, Config{})
	defer r.Close()

	r.RequestAuthorization()
	ev := next(t, r.Events())
	assert.Equal(t, sensor.EventAuthorization, ev.Type)
	assert.Equal(t, sensor.AuthAuthorized, ev.Authorization)
}

func TestOpen(t *testing.T) {
	data, err := export.CSV(recorded())
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "track.csv")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	r, err := Open(Config{File: path, Rate: 1})
	require.NoError(t, err)
	assert.Equal(t, 3, r.Remaining())
	require.NoError(t, r.Close())
	assert.ErrorIs(t, r.Close(), sensor.ErrClosed)

	_, err = Open(Config{File: filepath.Join(t.TempDir(), "missing.csv")})
	assert.Error(t, err)
}
