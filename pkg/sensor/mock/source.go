// Package mock provides a simulated positioning sensor. A physics loop moves
// a virtual subject through a parked, walking, driving and stopped cycle and
// reports noisy fixes, compass readings, authorization changes and the
// occasional failure.
package mock

import (
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"time"

	"saltydog/pkg/geo"
	"saltydog/pkg/sensor"
	"saltydog/pkg/units"
)

// Movement stages.
const (
	StageParked  = "PARKED"
	StageWalking = "WALKING"
	StageDriving = "DRIVING"
	StageStopped = "STOPPED"
)

const (
	eventBuffer = 64
	// declination is the fixed offset between true and magnetic north.
	declination = 2.5
	// courseMinSpan is the distance the course window must cover before a
	// course is reported.
	courseMinSpan = 3.0
)

// Config holds the simulation settings.
type Config struct {
	StartLat     float64
	StartLon     float64
	StartAlt     float64
	StartHeading float64

	Interval        time.Duration // fix period
	DurationParked  time.Duration // also used for STOPPED
	DurationWalking time.Duration
	DurationDriving time.Duration
	WalkingSpeed    float64 // m/s
	DrivingSpeed    float64 // m/s

	PositionNoise float64 // meters, one sigma
	BadFixRate    float64 // share of fixes with coarse or invalid accuracy
	ErrorRate     float64 // share of ticks producing a transient failure

	Grant     bool // answer to RequestAuthorization
	AuthDelay time.Duration
	Seed      int64
}

// Source implements sensor.Source.
type Source struct {
	mu     sync.Mutex
	cfg    Config
	rng    *rand.Rand
	events chan sensor.Event
	stopCh chan struct{}
	wg     sync.WaitGroup
	closed bool

	locationOn bool
	headingOn  bool
	background bool
	auth       sensor.AuthorizationStatus

	stage        string
	stageElapsed time.Duration
	pos          geo.Point
	alt          float64
	heading      float64
	speed        float64
	turnRate     float64 // deg/s while driving
	course       *geo.CourseBuffer
	dropped      int
}

// NewSource creates the simulated sensor and starts its physics loop.
func NewSource(cfg Config) *Source {
	m := newSource(cfg)
	m.wg.Add(1)
	go m.physicsLoop()
	return m
}

func newSource(cfg Config) *Source {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Source{
		cfg:     cfg,
		rng:     rand.New(rand.NewSource(seed)),
		events:  make(chan sensor.Event, eventBuffer),
		stopCh:  make(chan struct{}),
		auth:    sensor.AuthNotDetermined,
		stage:   StageParked,
		pos:     geo.Point{Lat: cfg.StartLat, Lon: cfg.StartLon},
		alt:     cfg.StartAlt,
		heading: units.NormalizeHeading(cfg.StartHeading),
		course:  geo.NewCourseBuffer(4, courseMinSpan),
	}
}

// Events implements sensor.Source.
func (m *Source) Events() <-chan sensor.Event {
	return m.events
}

// StartLocationUpdates implements sensor.Source. While access is denied it
// reports a permission failure instead.
func (m *Source) StartLocationUpdates() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.auth == sensor.AuthDenied {
		m.emitLocked(sensor.Failure(sensor.ErrorPermissionDenied, "location services denied"))
		return
	}
	m.locationOn = true
	m.course.Reset()
}

func (m *Source) StopLocationUpdates() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locationOn = false
}

func (m *Source) StartHeadingUpdates() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.headingOn = true
}

func (m *Source) StopHeadingUpdates() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.headingOn = false
}

// RequestAuthorization answers with the configured grant after AuthDelay.
func (m *Source) RequestAuthorization() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.wg.Add(1)
	m.mu.Unlock()

	go func() {
		defer m.wg.Done()
		t := time.NewTimer(m.cfg.AuthDelay)
		defer t.Stop()
		select {
		case <-m.stopCh:
			return
		case <-t.C:
		}

		status := sensor.AuthDenied
		if m.cfg.Grant {
			status = sensor.AuthAuthorized
		}
		m.mu.Lock()
		defer m.mu.Unlock()
		m.auth = status
		m.emitLocked(sensor.AuthorizationChanged(status))
	}()
}

// SetBackgroundDelivery implements sensor.Source. The simulation has no
// foreground concept, so the flag is only recorded.
func (m *Source) SetBackgroundDelivery(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.background = enabled
}

// Stage returns the current movement stage.
func (m *Source) Stage() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stage
}

// Close stops the physics loop and closes the events channel.
func (m *Source) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return sensor.ErrClosed
	}
	m.closed = true
	close(m.stopCh)
	m.mu.Unlock()

	m.wg.Wait()

	m.mu.Lock()
	close(m.events)
	dropped := m.dropped
	m.mu.Unlock()
	if dropped > 0 {
		slog.Debug("Mock sensor dropped events", "count", dropped)
	}
	return nil
}

func (m *Source) physicsLoop() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.update(m.cfg.Interval, time.Now())
		}
	}
}

// update advances the simulation by dt and emits the readings for now.
func (m *Source) update(dt time.Duration, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.advance(dt)

	if m.locationOn {
		m.emitLocked(sensor.FixEvent(m.fixLocked(now)))
		if m.cfg.ErrorRate > 0 && m.rng.Float64() < m.cfg.ErrorRate {
			m.emitLocked(sensor.Failure(sensor.ErrorTransient, "weak GPS signal"))
		}
	}
	if m.headingOn {
		m.emitLocked(sensor.HeadingUpdate(m.headingLocked(now)))
	}
}

func (m *Source) advance(dt time.Duration) {
	secs := dt.Seconds()
	m.stageElapsed += dt

	switch m.stage {
	case StageParked, StageStopped:
		m.speed = 0
		if m.stageElapsed >= m.cfg.DurationParked {
			m.enter(StageWalking)
		}

	case StageWalking:
		m.speed = m.cfg.WalkingSpeed
		m.move(secs)
		if m.stageElapsed >= m.cfg.DurationWalking {
			m.enter(StageDriving)
			m.turnRate = m.rng.Float64()*4 - 2
		}

	case StageDriving:
		m.speed = m.cfg.DrivingSpeed
		m.heading = units.NormalizeHeading(m.heading + m.turnRate*secs)
		m.move(secs)
		if m.stageElapsed >= m.cfg.DurationDriving {
			m.enter(StageStopped)
		}
	}
}

func (m *Source) enter(stage string) {
	m.stage = stage
	m.stageElapsed = 0
}

func (m *Source) move(secs float64) {
	if m.speed <= 0 {
		return
	}
	m.pos = geo.DestinationPoint(m.pos, m.speed*secs, m.heading)
}

// fixLocked builds the noisy reading for the true position.
func (m *Source) fixLocked(now time.Time) sensor.RawFix {
	errDist := math.Abs(m.rng.NormFloat64()) * m.cfg.PositionNoise
	reported := geo.DestinationPoint(m.pos, errDist, m.rng.Float64()*360)

	accuracy := 2*m.cfg.PositionNoise + m.rng.Float64()*3
	if m.cfg.BadFixRate > 0 && m.rng.Float64() < m.cfg.BadFixRate {
		if m.rng.Intn(4) == 0 {
			accuracy = -1
		} else {
			accuracy = 30 + m.rng.Float64()*70
		}
	}

	speed := m.speed + m.rng.NormFloat64()*0.1
	if m.speed == 0 {
		speed = math.Abs(m.rng.NormFloat64()) * 0.1
	}
	speed = math.Max(0, speed)

	course := -1.0
	if c, ok := m.course.Push(reported); ok && m.speed > 0 {
		course = c
	}

	return sensor.RawFix{
		Latitude:           reported.Lat,
		Longitude:          reported.Lon,
		Speed:              speed,
		Course:             course,
		Altitude:           m.alt + m.rng.NormFloat64()*2,
		HorizontalAccuracy: accuracy,
		Timestamp:          now,
	}
}

func (m *Source) headingLocked(now time.Time) sensor.HeadingEvent {
	trueHeading := units.NormalizeHeading(m.heading + m.rng.NormFloat64()*3)
	return sensor.HeadingEvent{
		MagneticHeading: units.NormalizeHeading(trueHeading - declination),
		TrueHeading:     trueHeading,
		Accuracy:        5 + m.rng.Float64()*10,
		Timestamp:       now,
	}
}

// emitLocked delivers without blocking the physics loop. A full buffer drops
// the event, as a real receiver would overrun.
func (m *Source) emitLocked(ev sensor.Event) {
	if m.closed {
		return
	}
	select {
	case m.events <- ev:
	default:
		m.dropped++
	}
}
