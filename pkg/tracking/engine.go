// Package tracking owns the session state machine: authorization, start,
// stop, reset and background delivery, and the serialized application of
// sensor events to the session aggregates and the track ledger.
package tracking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"saltydog/pkg/filter"
	"saltydog/pkg/geo"
	"saltydog/pkg/logging"
	"saltydog/pkg/sensor"
	"saltydog/pkg/stats"
	"saltydog/pkg/track"
	"saltydog/pkg/tracker"
)

// ErrAuthorizationDenied is returned by operations that need location access
// while the user has denied it.
var ErrAuthorizationDenied = errors.New("location authorization denied")

// DefaultTickInterval is the duration refresh period.
const DefaultTickInterval = time.Second

// Engine is the single writer of the session state. Every event and every
// timer tick acquires mu; collaborator calls happen after it is released.
// Lifecycle operations also hold ctlMu from the state change until the
// sensor calls return, so the source always ends up matching the last
// transition.
type Engine struct {
	src        sensor.Source
	sourceName string
	clock      Clock
	tracker    *tracker.Tracker
	tick       time.Duration

	ctlMu sync.Mutex

	mu         sync.Mutex
	th         filter.Thresholds
	agg        *stats.Aggregator
	ledger     *track.Ledger
	auth       sensor.AuthorizationStatus
	tracking   bool
	background bool
	lastError  string
	start      time.Time
	elapsed    time.Duration // frozen duration while idle
	lastFix    *sensor.RawFix
	generation uint64
	stopTick   chan struct{}
	tickWG     sync.WaitGroup

	subsMu  sync.Mutex
	subs    map[int]chan State
	nextSub int
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the time source.
func WithClock(c Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithThresholds sets the initial filter thresholds.
func WithThresholds(th filter.Thresholds) Option {
	return func(e *Engine) { e.th = th }
}

// WithTracker records event counters under the given source name.
func WithTracker(t *tracker.Tracker, sourceName string) Option {
	return func(e *Engine) {
		e.tracker = t
		e.sourceName = sourceName
	}
}

// WithTickInterval sets the duration refresh period. Zero disables the
// ticker; duration is still computed on every snapshot.
func WithTickInterval(d time.Duration) Option {
	return func(e *Engine) { e.tick = d }
}

// NewEngine creates an idle engine driving src.
func NewEngine(src sensor.Source, opts ...Option) *Engine {
	e := &Engine{
		src:        src,
		sourceName: "sensor",
		clock:      systemClock{},
		tracker:    tracker.New(),
		tick:       DefaultTickInterval,
		th:         filter.DefaultThresholds(),
		agg:        stats.New(),
		ledger:     track.NewLedger(),
		auth:       sensor.AuthNotDetermined,
		subs:       make(map[int]chan State),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Tracker returns the event counters.
func (e *Engine) Tracker() *tracker.Tracker {
	return e.tracker
}

// RequestAuthorization asks the collaborator for location access when the
// status is undetermined, or starts tracking directly when access is already
// granted. While denied it records the denial message and returns
// ErrAuthorizationDenied.
func (e *Engine) RequestAuthorization() error {
	e.ctlMu.Lock()
	defer e.ctlMu.Unlock()

	e.mu.Lock()
	auth := e.auth
	if auth == sensor.AuthDenied {
		e.lastError = msgPermissionDenied
		e.publishLocked()
		e.mu.Unlock()
		return ErrAuthorizationDenied
	}
	e.mu.Unlock()

	if auth.Granted() {
		return e.startTracking()
	}
	slog.Info("Requesting location authorization")
	e.src.RequestAuthorization()
	return nil
}

// StartTracking begins a session. It is a no-op while tracking and refused
// while authorization is denied.
func (e *Engine) StartTracking() error {
	e.ctlMu.Lock()
	defer e.ctlMu.Unlock()
	return e.startTracking()
}

// startTracking is StartTracking with ctlMu held.
func (e *Engine) startTracking() error {
	e.mu.Lock()
	if e.auth == sensor.AuthDenied {
		e.mu.Unlock()
		return ErrAuthorizationDenied
	}
	if e.tracking {
		e.mu.Unlock()
		return nil
	}
	e.beginLocked()
	gen := e.generation
	e.publishLocked()
	e.mu.Unlock()

	e.src.StartLocationUpdates()
	e.src.StartHeadingUpdates()

	slog.Info("Tracking started", "session", gen)
	logging.LogEvent(logging.SessionEvent{Time: e.clock.Now(), Kind: logging.EventStart, Session: gen, Title: "Tracking started"})
	return nil
}

// StopTracking ends event delivery. Statistics and the ledger are kept. No
// fix is applied once StopTracking has returned.
func (e *Engine) StopTracking() {
	e.ctlMu.Lock()
	defer e.ctlMu.Unlock()
	e.stopTracking()
}

func (e *Engine) stopTracking() {
	e.mu.Lock()
	was := e.haltLocked()
	gen := e.generation
	if was {
		e.publishLocked()
	}
	e.mu.Unlock()

	if !was {
		return
	}
	e.src.StopLocationUpdates()
	e.src.StopHeadingUpdates()

	slog.Info("Tracking stopped", "session", gen)
	logging.LogEvent(logging.SessionEvent{Time: e.clock.Now(), Kind: logging.EventStop, Session: gen, Title: "Tracking stopped"})
}

// ResetSession stops tracking, clears every statistic and the ledger, and
// immediately starts a new session. While authorization is denied the
// session is cleared but stays idle and ErrAuthorizationDenied is returned.
func (e *Engine) ResetSession() error {
	e.ctlMu.Lock()
	defer e.ctlMu.Unlock()

	e.mu.Lock()
	was := e.haltLocked()
	e.agg.Reset()
	e.ledger.Clear()
	e.lastFix = nil
	e.start = time.Time{}
	e.elapsed = 0

	denied := e.auth == sensor.AuthDenied
	if !denied {
		e.beginLocked()
	}
	gen := e.generation
	e.publishLocked()
	e.mu.Unlock()

	if was {
		e.src.StopLocationUpdates()
		e.src.StopHeadingUpdates()
	}
	logging.LogEvent(logging.SessionEvent{Time: e.clock.Now(), Kind: logging.EventReset, Session: gen, Title: "Session reset"})
	if denied {
		slog.Warn("Session reset while authorization denied; staying idle")
		return ErrAuthorizationDenied
	}

	e.src.StartLocationUpdates()
	e.src.StartHeadingUpdates()
	slog.Info("Session reset", "session", gen)
	return nil
}

// EnableBackgroundTracking allows delivery while the host is in the
// background.
func (e *Engine) EnableBackgroundTracking() {
	e.setBackground(true)
}

// DisableBackgroundTracking restricts delivery to the foreground.
func (e *Engine) DisableBackgroundTracking() {
	e.setBackground(false)
}

func (e *Engine) setBackground(on bool) {
	e.ctlMu.Lock()
	defer e.ctlMu.Unlock()

	e.mu.Lock()
	if e.background == on {
		e.mu.Unlock()
		return
	}
	e.background = on
	e.publishLocked()
	e.mu.Unlock()

	e.src.SetBackgroundDelivery(on)
	slog.Info("Background tracking changed", "enabled", on)
}

// SetThresholds replaces the filter thresholds. Accepted readings already in
// the session are not re-evaluated.
func (e *Engine) SetThresholds(th filter.Thresholds) error {
	if err := th.Validate(); err != nil {
		return fmt.Errorf("invalid thresholds: %w", err)
	}
	e.mu.Lock()
	e.th = th
	e.publishLocked()
	e.mu.Unlock()
	return nil
}

// Thresholds returns the active filter thresholds.
func (e *Engine) Thresholds() filter.Thresholds {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.th
}

// HandleFix applies one position fix. Fixes delivered while idle, stale or
// duplicate fixes, and fixes failing the accuracy gate change nothing.
func (e *Engine) HandleFix(fix sensor.RawFix) {
	e.tracker.TrackFixReceived(e.sourceName)

	e.mu.Lock()
	if !e.tracking {
		e.mu.Unlock()
		e.tracker.TrackFixIgnored(e.sourceName)
		return
	}
	if filter.Stale(e.lastFix, fix) {
		e.mu.Unlock()
		e.tracker.TrackFixStale(e.sourceName)
		logging.TraceDefault("Dropped stale fix", "ts", fix.Timestamp)
		return
	}
	r, ok := filter.Evaluate(fix, e.th)
	if !ok {
		e.mu.Unlock()
		e.tracker.TrackFixRejected(e.sourceName)
		logging.TraceDefault("Rejected fix", "accuracy", fix.HorizontalAccuracy)
		return
	}

	d := e.agg.ApplyAccepted(r)
	e.ledger.Append(d.Point)
	f := fix
	e.lastFix = &f
	e.publishLocked()
	e.mu.Unlock()

	e.tracker.TrackFixAccepted(e.sourceName)
	logging.TraceDefault("Accepted fix", "speed", r.Speed, "moving", r.Moving, "added_m", d.DistanceAdded)
}

// HandleHeading applies a compass reading through the stationary fallback.
func (e *Engine) HandleHeading(ev sensor.HeadingEvent) {
	e.mu.Lock()
	if !e.tracking {
		e.mu.Unlock()
		e.tracker.TrackHeading(e.sourceName, false)
		return
	}
	used := e.agg.ApplyHeading(ev, e.th.MinimumSpeed)
	if used {
		e.publishLocked()
	}
	e.mu.Unlock()

	e.tracker.TrackHeading(e.sourceName, used)
}

// HandleAuthorization records a new authorization status. A grant starts
// tracking; a denial stops it.
func (e *Engine) HandleAuthorization(status sensor.AuthorizationStatus) {
	e.ctlMu.Lock()
	defer e.ctlMu.Unlock()

	e.mu.Lock()
	prev := e.auth
	e.auth = status
	gen := e.generation
	e.publishLocked()
	e.mu.Unlock()

	if prev != status {
		slog.Info("Authorization changed", "from", prev, "to", status)
		logging.LogEvent(logging.SessionEvent{Time: e.clock.Now(), Kind: logging.EventAuthorization, Session: gen, Title: string(status)})
	}

	switch {
	case status.Granted():
		if err := e.startTracking(); err != nil {
			slog.Error("Auto-start failed", "error", err)
		}
	case status == sensor.AuthDenied:
		e.stopTracking()
	}
}

// HandleError records a sensor failure as the user-visible error. A
// permission failure forces the denied state and stops tracking; every other
// kind leaves the session running.
func (e *Engine) HandleError(ev sensor.ErrorEvent) {
	e.tracker.TrackError(e.sourceName)
	msg := ErrorMessage(ev)

	e.ctlMu.Lock()
	defer e.ctlMu.Unlock()

	e.mu.Lock()
	e.lastError = msg
	gen := e.generation
	was := false
	if ev.Kind == sensor.ErrorPermissionDenied {
		e.auth = sensor.AuthDenied
		was = e.haltLocked()
	}
	e.publishLocked()
	e.mu.Unlock()

	if was {
		e.src.StopLocationUpdates()
		e.src.StopHeadingUpdates()
	}
	slog.Warn("Sensor error", "kind", ev.Kind, "message", ev.Message)
	logging.LogEvent(logging.SessionEvent{Time: e.clock.Now(), Kind: logging.EventError, Session: gen, Title: string(ev.Kind), Detail: msg})
}

// Dispatch routes one sensor event to its handler.
func (e *Engine) Dispatch(ev sensor.Event) {
	switch ev.Type {
	case sensor.EventFix:
		e.HandleFix(ev.Fix)
	case sensor.EventHeading:
		e.HandleHeading(ev.Heading)
	case sensor.EventAuthorization:
		e.HandleAuthorization(ev.Authorization)
	case sensor.EventError:
		e.HandleError(ev.Error)
	default:
		slog.Warn("Unknown sensor event", "type", ev.Type)
	}
}

// maxBatch bounds how many queued events Run sorts together.
const maxBatch = 64

// Run consumes events until ctx is cancelled or the channel is closed.
// Events already queued when one arrives are handled as a batch in
// sensor.SortBatch order.
func (e *Engine) Run(ctx context.Context, events <-chan sensor.Event) {
	batch := make([]sensor.Event, 0, maxBatch)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			batch = append(batch[:0], ev)
		drain:
			for len(batch) < maxBatch {
				select {
				case ev, ok := <-events:
					if !ok {
						break drain
					}
					batch = append(batch, ev)
				default:
					break drain
				}
			}
			sensor.SortBatch(batch)
			for _, ev := range batch {
				e.Dispatch(ev)
			}
		}
	}
}

// Close stops tracking and waits for the ticker to exit.
func (e *Engine) Close() {
	e.StopTracking()
	e.tickWG.Wait()

	e.subsMu.Lock()
	defer e.subsMu.Unlock()
	for id, ch := range e.subs {
		close(ch)
		delete(e.subs, id)
	}
}

// Snapshot returns the current session state.
func (e *Engine) Snapshot() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// Points returns a copy of the ledger.
func (e *Engine) Points() []track.TrackPoint {
	return e.ledger.Snapshot()
}

// Coordinates returns the session path as ordered coordinates.
func (e *Engine) Coordinates() []geo.Point {
	return e.ledger.Coordinates()
}

// Subscribe returns a channel that receives a snapshot after every state
// change. Slow subscribers only see the latest snapshot. The returned func
// unsubscribes.
func (e *Engine) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 1)

	e.subsMu.Lock()
	id := e.nextSub
	e.nextSub++
	e.subs[id] = ch
	e.subsMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			e.subsMu.Lock()
			defer e.subsMu.Unlock()
			if _, ok := e.subs[id]; ok {
				delete(e.subs, id)
				close(ch)
			}
		})
	}
}

// beginLocked starts a new session. Caller holds mu.
func (e *Engine) beginLocked() {
	e.tracking = true
	e.start = e.clock.Now()
	e.elapsed = 0
	e.lastError = ""
	e.generation++

	if e.tick > 0 {
		stop := make(chan struct{})
		e.stopTick = stop
		e.tickWG.Add(1)
		go e.runTicker(e.generation, stop)
	}
}

// haltLocked ends the running session, freezing its duration and cancelling
// the ticker. It reports whether a session was running. Caller holds mu.
func (e *Engine) haltLocked() bool {
	if !e.tracking {
		return false
	}
	e.elapsed = e.durationLocked()
	e.tracking = false
	if e.stopTick != nil {
		close(e.stopTick)
		e.stopTick = nil
	}
	return true
}

func (e *Engine) runTicker(gen uint64, stop <-chan struct{}) {
	defer e.tickWG.Done()
	t := time.NewTicker(e.tick)
	defer t.Stop()

	for {
		select {
		case <-stop:
			return
		case <-t.C:
			e.onTick(gen)
		}
	}
}

// onTick refreshes observers with the advanced duration. Ticks from an
// earlier session are discarded.
func (e *Engine) onTick(gen uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.tracking || gen != e.generation {
		return
	}
	e.publishLocked()
}

func (e *Engine) durationLocked() time.Duration {
	if !e.tracking {
		return e.elapsed
	}
	d := e.clock.Now().Sub(e.start)
	if d < 0 {
		return 0
	}
	return d
}

func (e *Engine) snapshotLocked() State {
	v := e.agg.Values()
	return State{
		CurrentSpeed:       v.CurrentSpeed,
		CurrentHeading:     v.CurrentHeading,
		TopSpeed:           v.TopSpeed,
		AverageSpeed:       v.AverageSpeed,
		TotalDistance:      v.TotalDistance,
		SessionDuration:    e.durationLocked(),
		SessionStart:       e.start,
		CurrentCoordinate:  v.Coordinate,
		HasCoordinate:      v.HasCoordinate,
		IsTracking:         e.tracking,
		Authorization:      e.auth,
		LastError:          e.lastError,
		BackgroundTracking: e.background,
		PointCount:         e.ledger.Len(),
		Thresholds:         e.th,
	}
}

// publishLocked hands the current snapshot to every subscriber without
// blocking. A full channel has its stale value replaced. Caller holds mu, so
// subscribers see snapshots in state order.
func (e *Engine) publishLocked() {
	e.subsMu.Lock()
	defer e.subsMu.Unlock()
	if len(e.subs) == 0 {
		return
	}

	st := e.snapshotLocked()
	for _, ch := range e.subs {
		select {
		case ch <- st:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- st:
			default:
			}
		}
	}
}
