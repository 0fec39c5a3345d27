// Package sensor defines the event shapes exchanged with the positioning
// sensor and the interface the tracking engine drives it through.
package sensor

import (
	"errors"
	"sort"
	"time"
)

var (
	// ErrClosed is returned when a source is used after Close.
	ErrClosed = errors.New("sensor source closed")
)

// Source is the positioning sensor collaborator. Implementations deliver
// events asynchronously on the Events channel; the control methods must be
// cheap and must not call back into the consumer.
type Source interface {
	// Events returns the channel on which all sensor events are delivered.
	Events() <-chan Event
	StartLocationUpdates()
	StopLocationUpdates()
	StartHeadingUpdates()
	StopHeadingUpdates()
	// RequestAuthorization prompts for access. The result arrives later as an
	// authorization event.
	RequestAuthorization()
	// SetBackgroundDelivery allows or disallows delivery while the host is
	// not in the foreground.
	SetBackgroundDelivery(enabled bool)
	// Close releases resources and closes the Events channel.
	Close() error
}

// RawFix is a single position/velocity reading as reported by the sensor.
// Negative Speed, Course or HorizontalAccuracy mark the value as invalid.
type RawFix struct {
	Latitude           float64   `json:"lat"`
	Longitude          float64   `json:"lon"`
	Speed              float64   `json:"speed"`  // m/s
	Course             float64   `json:"course"` // degrees true
	Altitude           float64   `json:"altitude"`
	HorizontalAccuracy float64   `json:"accuracy"` // meters
	Timestamp          time.Time `json:"timestamp"`
}

// HeadingEvent is a compass reading without a position.
type HeadingEvent struct {
	MagneticHeading float64   `json:"magnetic_heading"`
	TrueHeading     float64   `json:"true_heading"` // negative if unavailable
	Accuracy        float64   `json:"accuracy"`     // degrees, negative if invalid
	Timestamp       time.Time `json:"timestamp"`
}

// AuthorizationStatus is the location permission state.
type AuthorizationStatus string

const (
	AuthNotDetermined    AuthorizationStatus = "not_determined"
	AuthDenied           AuthorizationStatus = "denied"
	AuthAuthorized       AuthorizationStatus = "authorized"
	AuthAuthorizedAlways AuthorizationStatus = "authorized_always"
)

// Granted reports whether the status allows location delivery.
func (s AuthorizationStatus) Granted() bool {
	return s == AuthAuthorized || s == AuthAuthorizedAlways
}

// ErrorKind classifies sensor failures.
type ErrorKind string

const (
	ErrorPermissionDenied ErrorKind = "permission_denied"
	ErrorTransient        ErrorKind = "transient"
	ErrorOther            ErrorKind = "other"
)

// ErrorEvent is a failure reported by the sensor.
type ErrorEvent struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// EventType tags the payload carried by an Event.
type EventType int

const (
	EventFix EventType = iota
	EventHeading
	EventAuthorization
	EventError
)

func (t EventType) String() string {
	switch t {
	case EventFix:
		return "fix"
	case EventHeading:
		return "heading"
	case EventAuthorization:
		return "authorization"
	case EventError:
		return "error"
	}
	return "unknown"
}

// Event is a tagged union of everything a Source delivers. Only the field
// matching Type is meaningful.
type Event struct {
	Type          EventType
	Fix           RawFix
	Heading       HeadingEvent
	Authorization AuthorizationStatus
	Error         ErrorEvent
}

// FixEvent wraps a RawFix.
func FixEvent(f RawFix) Event { return Event{Type: EventFix, Fix: f} }

// HeadingUpdate wraps a HeadingEvent.
func HeadingUpdate(h HeadingEvent) Event { return Event{Type: EventHeading, Heading: h} }

// AuthorizationChanged wraps an authorization status change.
func AuthorizationChanged(s AuthorizationStatus) Event {
	return Event{Type: EventAuthorization, Authorization: s}
}

// Failure wraps an ErrorEvent.
func Failure(kind ErrorKind, msg string) Event {
	return Event{Type: EventError, Error: ErrorEvent{Kind: kind, Message: msg}}
}

// SortBatch orders events that arrived together: position fixes first, then
// heading events, then authorization changes, then errors. The order within
// each type is preserved.
func SortBatch(events []Event) {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Type < events[j].Type
	})
}
