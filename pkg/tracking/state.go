package tracking

import (
	"time"

	"saltydog/pkg/filter"
	"saltydog/pkg/geo"
	"saltydog/pkg/sensor"
)

// State is an immutable snapshot of the session. Observers receive copies;
// nothing outside the engine can change the live values.
type State struct {
	CurrentSpeed       float64                    `json:"current_speed"`   // m/s, 0 while stationary
	CurrentHeading     float64                    `json:"current_heading"` // degrees
	TopSpeed           float64                    `json:"top_speed"`
	AverageSpeed       float64                    `json:"average_speed"`
	TotalDistance      float64                    `json:"total_distance"` // meters
	SessionDuration    time.Duration              `json:"session_duration"`
	SessionStart       time.Time                  `json:"session_start"`
	CurrentCoordinate  geo.Point                  `json:"current_coordinate"`
	HasCoordinate      bool                       `json:"has_coordinate"`
	IsTracking         bool                       `json:"is_tracking"`
	Authorization      sensor.AuthorizationStatus `json:"authorization"`
	LastError          string                     `json:"last_error,omitempty"`
	BackgroundTracking bool                       `json:"background_tracking"`
	PointCount         int                        `json:"point_count"`
	Thresholds         filter.Thresholds          `json:"thresholds"`
}

// Clock supplies the current time. Tests inject a fixed clock to make the
// session duration deterministic.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// User-visible messages for sensor failures.
const (
	msgPermissionDenied = "Location access denied. Enable location access to track your session."
	msgTransientPrefix  = "Location temporarily unavailable: "
	msgOtherPrefix      = "Location error: "
	msgUnknown          = "Unknown location error"
)

// ErrorMessage maps a sensor failure to the text shown to the user.
func ErrorMessage(ev sensor.ErrorEvent) string {
	switch ev.Kind {
	case sensor.ErrorPermissionDenied:
		return msgPermissionDenied
	case sensor.ErrorTransient:
		if ev.Message == "" {
			return msgTransientPrefix + "no signal"
		}
		return msgTransientPrefix + ev.Message
	default:
		if ev.Message == "" {
			return msgUnknown
		}
		return msgOtherPrefix + ev.Message
	}
}
