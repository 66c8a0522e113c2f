package telemetry

import (
	"strings"
	"time"
)

// Report is the canonical, transport-independent representation of one
// telemetry update. Exactly two kinds exist: LocationReport and StatusReport.
type Report interface {
	// DeviceRef returns the raw identifier as carried on the wire,
	// prior to resolution.
	DeviceRef() string
}

// LocationReport carries one GPS fix.
type LocationReport struct {
	DeviceID    string
	Latitude    float64
	Longitude   float64
	SpeedKmh    float32
	ObservedAt  time.Time
	PersistHint bool
}

func (r *LocationReport) DeviceRef() string { return r.DeviceID }

// StatusReport carries an enable/disable state change for a vehicle.
type StatusReport struct {
	DeviceID   string
	Enabled    bool
	ObservedAt time.Time
}

func (r *StatusReport) DeviceRef() string { return r.DeviceID }

// NormalizeDeviceID trims NUL padding, lower-cases and strips the legacy
// "b-" prefix some tracker batches carry in their flash id.
func NormalizeDeviceID(raw string) string {
	id := strings.ToLower(strings.TrimRight(raw, "\x00"))
	return strings.TrimPrefix(id, "b-")
}
