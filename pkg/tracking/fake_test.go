package tracking

import (
	"sync"
	"time"

	"saltydog/pkg/sensor"
)

// fakeSource records the calls the engine makes.
type fakeSource struct {
	mu          sync.Mutex
	events      chan sensor.Event
	locationOn  bool
	headingOn   bool
	authAsks    int
	background  []bool
	startCalls  int
	stopCalls   int
	closeCalled bool
	// startDelay stalls StartLocationUpdates before it takes effect.
	startDelay time.Duration
}

func newFakeSource() *fakeSource {
	return &fakeSource{events: make(chan sensor.Event, 16)}
}

func (f *fakeSource) Events() <-chan sensor.Event { return f.events }

func (f *fakeSource) StartLocationUpdates() {
	if f.startDelay > 0 {
		time.Sleep(f.startDelay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.locationOn = true
	f.startCalls++
}

func (f *fakeSource) StopLocationUpdates() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.locationOn = false
	f.stopCalls++
}

func (f *fakeSource) StartHeadingUpdates() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.headingOn = true
}

func (f *fakeSource) StopHeadingUpdates() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.headingOn = false
}

func (f *fakeSource) RequestAuthorization() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.authAsks++
}

func (f *fakeSource) SetBackgroundDelivery(enabled bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.background = append(f.background, enabled)
}

func (f *fakeSource) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeCalled = true
	return nil
}

func (f *fakeSource) calls() (start, stop, auth int, bg []bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.startCalls, f.stopCalls, f.authAsks, append([]bool(nil), f.background...)
}

func (f *fakeSource) locationActive() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.locationOn
}

func (f *fakeSource) delivering() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.locationOn && f.headingOn
}

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 7, 1, 6, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
