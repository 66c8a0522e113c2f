package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openfleet/fleettrack/cli/receiver/store"
	"github.com/openfleet/fleettrack/libs/telemetry"
)

var (
	// ErrUnknownDevice is returned when no vehicle matches the device ref.
	ErrUnknownDevice = errors.New("unknown device")

	// ErrAmbiguousDevice is returned when substring matching finds more
	// than one candidate. The report is rejected rather than applied to an
	// arbitrary vehicle.
	ErrAmbiguousDevice = errors.New("ambiguous device ref")
)

// Resolver maps a raw wire-level device ref to a known vehicle. The default
// policy is exact match on the canonical id. Substring matching exists only
// for legacy tracker batches whose firmware truncates the id, and must be
// enabled explicitly.
type Resolver struct {
	store          store.Store
	allowSubstring bool
}

func New(s store.Store, allowSubstring bool) *Resolver {
	return &Resolver{store: s, allowSubstring: allowSubstring}
}

// Resolve returns the live state of the vehicle the ref identifies.
func (r *Resolver) Resolve(ctx context.Context, deviceRef string) (*store.VehicleState, error) {
	canonical := telemetry.NormalizeDeviceID(deviceRef)
	if canonical == "" {
		return nil, fmt.Errorf("%w: empty device ref", ErrUnknownDevice)
	}

	v, err := r.store.GetVehicle(ctx, canonical)
	if err == nil {
		return v, nil
	}
	if !errors.Is(err, store.ErrVehicleNotFound) {
		return nil, fmt.Errorf("resolve %q: %w", canonical, err)
	}

	if !r.allowSubstring {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDevice, canonical)
	}
	return r.resolveBySubstring(ctx, canonical)
}

func (r *Resolver) resolveBySubstring(ctx context.Context, canonical string) (*store.VehicleState, error) {
	ids, err := r.store.DeviceIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list device ids: %w", err)
	}

	var matches []string
	for _, id := range ids {
		if strings.Contains(id, canonical) || strings.Contains(canonical, id) {
			matches = append(matches, id)
		}
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDevice, canonical)
	case 1:
		return r.store.GetVehicle(ctx, matches[0])
	default:
		return nil, fmt.Errorf("%w: %q matches %v", ErrAmbiguousDevice, canonical, matches)
	}
}
