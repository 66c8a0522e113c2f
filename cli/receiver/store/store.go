package store

import (
	"context"
	"errors"
	"time"
)

// ErrVehicleNotFound is returned when no vehicle matches a device id.
var ErrVehicleNotFound = errors.New("vehicle not found")

// Vehicle status values. Telemetry may only move a vehicle to online;
// offline comes from an external liveness check and disabled only from an
// explicit control action.
const (
	StatusOnline   = "online"
	StatusOffline  = "offline"
	StatusDisabled = "disabled"
)

// VehicleState is the live record for one vehicle. The reconciler is the
// only writer of the telemetry-owned fields.
type VehicleState struct {
	ID             int64
	DeviceID       string
	Latitude       float64
	Longitude      float64
	SpeedKmh       float32
	Status         string
	LastUpdate     time.Time
	LastSeenAddr   string
	MileageTotalKm float64
	MileageDailyKm float64
	HasPosition    bool
}

// Mutation is one atomic change to a vehicle's live state. Nil fields are
// left untouched by the store.
type Mutation struct {
	Latitude     *float64
	Longitude    *float64
	SpeedKmh     *float32
	Status       *string
	LastUpdate   *time.Time
	LastSeenAddr *string

	// MileageAddKm is added to both the total and the daily accumulator.
	MileageAddKm float64
}

// HistoryPoint is one retained fix; append-only.
type HistoryPoint struct {
	VehicleID int64
	Latitude  float64
	Longitude float64
	SpeedKmh  float32
	Timestamp time.Time
}

// Store is the fleet state store the engine reads and mutates. Each call is
// expected to be atomic at single-vehicle granularity.
type Store interface {
	// GetVehicle returns the live state for a canonical device id, or
	// ErrVehicleNotFound.
	GetVehicle(ctx context.Context, deviceID string) (*VehicleState, error)

	// DeviceIDs returns all known canonical device ids.
	DeviceIDs(ctx context.Context) ([]string, error)

	// UpdateVehicle applies one mutation to the vehicle's row.
	UpdateVehicle(ctx context.Context, deviceID string, m Mutation) error

	// AppendHistory persists one retained fix.
	AppendHistory(ctx context.Context, p HistoryPoint) error

	Close() error
}

// Connector is a Store that is constructed empty and configured from the
// yaml storage section, the way output stores are wired in the receiver.
type Connector interface {
	Store

	// Init establishes the connection using the kind-specific parameters.
	Init(map[string]string) error
}

func Float64Ptr(v float64) *float64  { return &v }
func Float32Ptr(v float32) *float32  { return &v }
func StringPtr(v string) *string     { return &v }
func TimePtr(v time.Time) *time.Time { return &v }
