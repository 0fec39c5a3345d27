package api

import (
	"net/http"
	"sync"

	"saltydog/pkg/filter"
	"saltydog/pkg/geo"
	"saltydog/pkg/track"
	"saltydog/pkg/tracking"
	"saltydog/pkg/units"
)

// Session is the part of the tracking engine the API drives.
type Session interface {
	Snapshot() tracking.State
	Points() []track.TrackPoint
	Coordinates() []geo.Point
	RequestAuthorization() error
	StartTracking() error
	StopTracking()
	ResetSession() error
	EnableBackgroundTracking()
	DisableBackgroundTracking()
	SetThresholds(th filter.Thresholds) error
	Thresholds() filter.Thresholds
	Subscribe() (<-chan tracking.State, func())
}

// DisplayUnits holds the units used for the formatted display block.
type DisplayUnits struct {
	mu       sync.RWMutex
	speed    units.SpeedUnit
	distance units.DistanceUnit
}

// NewDisplayUnits creates a DisplayUnits.
func NewDisplayUnits(speed units.SpeedUnit, distance units.DistanceUnit) *DisplayUnits {
	return &DisplayUnits{speed: speed, distance: distance}
}

// Get returns the current units.
func (d *DisplayUnits) Get() (units.SpeedUnit, units.DistanceUnit) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.speed, d.distance
}

// Set replaces the current units.
func (d *DisplayUnits) Set(speed units.SpeedUnit, distance units.DistanceUnit) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.speed = speed
	d.distance = distance
}

// Display holds preformatted values for a dashboard.
type Display struct {
	Speed        string `json:"speed"`
	TopSpeed     string `json:"top_speed"`
	AverageSpeed string `json:"average_speed"`
	Distance     string `json:"distance"`
	Heading      string `json:"heading"`
	Duration     string `json:"duration"`
	Started      string `json:"started"`
	Cell         string `json:"cell,omitempty"` // geohash of the current coordinate
}

// StateResponse is the API representation of a session snapshot.
type StateResponse struct {
	tracking.State
	Display Display `json:"display"`
}

func newStateResponse(st tracking.State, du *DisplayUnits) StateResponse {
	speedUnit, distUnit := du.Get()
	started := "--:--:--"
	if !st.SessionStart.IsZero() {
		started = units.FormatClock(st.SessionStart)
	}
	cell := ""
	if st.HasCoordinate {
		cell = st.CurrentCoordinate.Geohash(geo.CellPrecision)
	}
	return StateResponse{
		State: st,
		Display: Display{
			Speed:        units.FormatSpeed(st.CurrentSpeed, speedUnit),
			TopSpeed:     units.FormatSpeed(st.TopSpeed, speedUnit),
			AverageSpeed: units.FormatSpeed(st.AverageSpeed, speedUnit),
			Distance:     units.FormatDistance(st.TotalDistance, distUnit),
			Heading:      units.FormatHeading(st.CurrentHeading),
			Duration:     units.FormatDuration(st.SessionDuration),
			Started:      started,
			Cell:         cell,
		},
	}
}

// StateHandler serves the session snapshot.
type StateHandler struct {
	session Session
	units   *DisplayUnits
}

// NewStateHandler creates a StateHandler.
func NewStateHandler(s Session, du *DisplayUnits) *StateHandler {
	return &StateHandler{session: s, units: du}
}

// HandleState returns the current snapshot with its display block.
// GET /api/state
func (h *StateHandler) HandleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newStateResponse(h.session.Snapshot(), h.units))
}
