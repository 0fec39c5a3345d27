// Package replay plays a recorded CSV track back as a positioning sensor.
package replay

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"saltydog/pkg/export"
	"saltydog/pkg/sensor"
	"saltydog/pkg/track"
)

const (
	eventBuffer = 64
	idlePoll    = 100 * time.Millisecond
	// headingAccuracy is reported with compass events derived from the track.
	headingAccuracy = 10.0
)

// Config holds replay settings.
type Config struct {
	File string
	Rate float64 // 2 plays twice as fast as recorded
	Loop bool
}

// Source implements sensor.Source over recorded points. Fixes carry the
// wall-clock time of emission, so looping never produces stale timestamps.
type Source struct {
	mu     sync.Mutex
	points []track.TrackPoint
	rate   float64
	loop   bool
	idx    int

	events chan sensor.Event
	stopCh chan struct{}
	wg     sync.WaitGroup
	closed bool

	locationOn bool
	headingOn  bool
}

// Open loads cfg.File and starts playback.
func Open(cfg Config) (*Source, error) {
	f, err := os.Open(cfg.File)
	if err != nil {
		return nil, fmt.Errorf("failed to open replay file: %w", err)
	}
	defer f.Close()

	points, err := export.ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read replay file %s: %w", cfg.File, err)
	}
	slog.Info("Replay track loaded", "file", cfg.File, "points", len(points))
	return NewSource(points, cfg), nil
}

// NewSource starts playback of points.
func NewSource(points []track.TrackPoint, cfg Config) *Source {
	rate := cfg.Rate
	if rate <= 0 {
		rate = 1
	}
	r := &Source{
		points: points,
		rate:   rate,
		loop:   cfg.Loop,
		events: make(chan sensor.Event, eventBuffer),
		stopCh: make(chan struct{}),
	}
	r.wg.Add(1)
	go r.playLoop()
	return r
}

func (r *Source) Events() <-chan sensor.Event {
	return r.events
}

func (r *Source) StartLocationUpdates() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.locationOn = true
}

func (r *Source) StopLocationUpdates() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.locationOn = false
}

func (r *Source) StartHeadingUpdates() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.headingOn = true
}

func (r *Source) StopHeadingUpdates() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.headingOn = false
}

// RequestAuthorization grants access right away; a recording needs no
// permission.
func (r *Source) RequestAuthorization() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()
		r.emit(sensor.AuthorizationChanged(sensor.AuthAuthorized))
	}()
}

// SetBackgroundDelivery is accepted and ignored.
func (r *Source) SetBackgroundDelivery(bool) {}

// Remaining returns how many points are left in the current pass.
func (r *Source) Remaining() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.points) - r.idx
}

// Close stops playback and closes the events channel.
func (r *Source) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return sensor.ErrClosed
	}
	r.closed = true
	close(r.stopCh)
	r.mu.Unlock()

	r.wg.Wait()

	r.mu.Lock()
	close(r.events)
	r.mu.Unlock()
	return nil
}

func (r *Source) playLoop() {
	defer r.wg.Done()
	for {
		delay, ok := r.nextDelay()
		if !ok {
			slog.Info("Replay finished")
			return
		}
		t := time.NewTimer(delay)
		select {
		case <-r.stopCh:
			t.Stop()
			return
		case <-t.C:
		}
		r.step(time.Now())
	}
}

// nextDelay returns the wait before the next point, scaled by rate. It
// reports false when playback is over.
func (r *Source) nextDelay() (time.Duration, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.idx >= len(r.points) {
		if !r.loop || len(r.points) == 0 {
			return 0, false
		}
		r.idx = 0
	}
	if !r.locationOn {
		return idlePoll, true
	}
	if r.idx == 0 {
		return 0, true
	}
	gap := r.points[r.idx].Timestamp.Sub(r.points[r.idx-1].Timestamp)
	if gap < 0 {
		gap = 0
	}
	return time.Duration(float64(gap) / r.rate), true
}

// step emits the next point while updates are on.
func (r *Source) step(now time.Time) {
	r.mu.Lock()
	if !r.locationOn || r.idx >= len(r.points) {
		r.mu.Unlock()
		return
	}
	p := r.points[r.idx]
	r.idx++
	withHeading := r.headingOn
	r.mu.Unlock()

	course := -1.0
	if p.Speed > 0 {
		course = p.Heading
	}
	r.emit(sensor.FixEvent(sensor.RawFix{
		Latitude:           p.Latitude,
		Longitude:          p.Longitude,
		Speed:              p.Speed,
		Course:             course,
		Altitude:           p.Altitude,
		HorizontalAccuracy: p.HorizontalAccuracy,
		Timestamp:          now,
	}))
	if withHeading {
		r.emit(sensor.HeadingUpdate(sensor.HeadingEvent{
			MagneticHeading: p.Heading,
			TrueHeading:     p.Heading,
			Accuracy:        headingAccuracy,
			Timestamp:       now,
		}))
	}
}

// emit blocks until the consumer takes the event or the source closes, so a
// recording is never thinned out. Only goroutines tracked by wg may call it.
func (r *Source) emit(ev sensor.Event) {
	select {
	case r.events <- ev:
	case <-r.stopCh:
	}
}
