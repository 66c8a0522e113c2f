package reconciler

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/openfleet/fleettrack/cli/receiver/notify"
	"github.com/openfleet/fleettrack/cli/receiver/resolver"
	"github.com/openfleet/fleettrack/cli/receiver/store"
	"github.com/openfleet/fleettrack/libs/telemetry"
)

// ErrStoreUnavailable wraps a transient persistence failure. The report is
// rejected without partial mutation; trackers resend naturally, so the
// transport decides whether to signal retry.
var ErrStoreUnavailable = errors.New("fleet state store unavailable")

const earthRadiusKm = 6371

// DefaultSampleWindow bounds history growth for transports without a
// persist hint: at most one retained point per vehicle per window.
const DefaultSampleWindow = 5 * time.Minute

// Reconciler applies resolved telemetry reports to vehicle state. Reports
// for the same vehicle are serialized on a per-vehicle mutex; reports for
// different vehicles proceed in parallel.
type Reconciler struct {
	store        store.Store
	resolver     *resolver.Resolver
	notifier     notify.Publisher
	sampleWindow time.Duration

	mu           sync.Mutex
	vehicleLocks map[string]*sync.Mutex
	lastRetained map[string]time.Time
}

func New(s store.Store, r *resolver.Resolver, n notify.Publisher, sampleWindow time.Duration) *Reconciler {
	if sampleWindow <= 0 {
		sampleWindow = DefaultSampleWindow
	}
	return &Reconciler{
		store:        s,
		resolver:     r,
		notifier:     n,
		sampleWindow: sampleWindow,
		vehicleLocks: make(map[string]*sync.Mutex),
		lastRetained: make(map[string]time.Time),
	}
}

// Apply resolves and applies one report. sourceAddr, when known, is recorded
// as the vehicle's last seen source address. The returned state reflects the
// vehicle after the report took effect.
func (rc *Reconciler) Apply(ctx context.Context, report telemetry.Report, sourceAddr string) (*store.VehicleState, error) {
	resolved, err := rc.resolver.Resolve(ctx, report.DeviceRef())
	if err != nil {
		return nil, err
	}

	lock := rc.lockFor(resolved.DeviceID)
	lock.Lock()
	defer lock.Unlock()

	// Re-read under the lock: another report for this vehicle may have
	// been applied between resolution and now.
	current, err := rc.store.GetVehicle(ctx, resolved.DeviceID)
	if err != nil {
		if errors.Is(err, store.ErrVehicleNotFound) {
			return nil, fmt.Errorf("%w: %q", resolver.ErrUnknownDevice, resolved.DeviceID)
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	switch r := report.(type) {
	case *telemetry.StatusReport:
		return rc.applyStatus(ctx, current, r)
	case *telemetry.LocationReport:
		return rc.applyLocation(ctx, current, r, sourceAddr)
	default:
		return nil, fmt.Errorf("unknown report type %T", report)
	}
}

// applyStatus handles the explicit enable/disable control path. This is the
// only way a vehicle enters or leaves the disabled status.
func (rc *Reconciler) applyStatus(ctx context.Context, current *store.VehicleState, r *telemetry.StatusReport) (*store.VehicleState, error) {
	status := store.StatusDisabled
	if r.Enabled {
		status = store.StatusOnline
	}
	at := observedAt(r.ObservedAt)

	m := store.Mutation{
		Status:     store.StringPtr(status),
		LastUpdate: store.TimePtr(at),
	}
	if err := rc.store.UpdateVehicle(ctx, current.DeviceID, m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	current.Status = status
	current.LastUpdate = at

	log.WithFields(log.Fields{
		"device_id": current.DeviceID,
		"status":    status,
	}).Info("vehicle status changed")

	rc.publish(current)
	return current, nil
}

func (rc *Reconciler) applyLocation(ctx context.Context, current *store.VehicleState, r *telemetry.LocationReport, sourceAddr string) (*store.VehicleState, error) {
	at := observedAt(r.ObservedAt)

	// A disabled vehicle is frozen from telemetry's point of view: only
	// diagnostic bookkeeping is recorded until an explicit enable arrives.
	if current.Status == store.StatusDisabled {
		if sourceAddr != "" && sourceAddr != current.LastSeenAddr {
			m := store.Mutation{LastSeenAddr: store.StringPtr(sourceAddr)}
			if err := rc.store.UpdateVehicle(ctx, current.DeviceID, m); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
			}
			current.LastSeenAddr = sourceAddr
		}
		log.WithField("device_id", current.DeviceID).Debug("fix dropped, vehicle is disabled")
		return current, nil
	}

	var distance float64
	if current.HasPosition {
		distance = haversineKm(current.Latitude, current.Longitude, r.Latitude, r.Longitude)
	}

	m := store.Mutation{
		Latitude:     store.Float64Ptr(r.Latitude),
		Longitude:    store.Float64Ptr(r.Longitude),
		SpeedKmh:     store.Float32Ptr(r.SpeedKmh),
		Status:       store.StringPtr(store.StatusOnline),
		LastUpdate:   store.TimePtr(at),
		MileageAddKm: distance,
	}
	if sourceAddr != "" {
		m.LastSeenAddr = store.StringPtr(sourceAddr)
	}
	if err := rc.store.UpdateVehicle(ctx, current.DeviceID, m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	current.Latitude = r.Latitude
	current.Longitude = r.Longitude
	current.SpeedKmh = r.SpeedKmh
	current.Status = store.StatusOnline
	current.LastUpdate = at
	current.HasPosition = true
	current.MileageTotalKm += distance
	current.MileageDailyKm += distance
	if sourceAddr != "" {
		current.LastSeenAddr = sourceAddr
	}

	err := rc.retain(ctx, current, r, at)

	// Live state is committed at this point, so the snapshot goes out even
	// when retention failed; the failure still surfaces to the transport.
	rc.publish(current)
	if err != nil {
		return nil, err
	}
	return current, nil
}

// retain appends a history point when the report carries a persist hint or
// when the time-based sampler is due for this vehicle. A failed append does
// not mark the sampler window, so retention is retried on the next fix; the
// live update that preceded it stays committed.
func (rc *Reconciler) retain(ctx context.Context, v *store.VehicleState, r *telemetry.LocationReport, at time.Time) error {
	if !r.PersistHint && !rc.samplerDue(v.DeviceID, at) {
		return nil
	}

	point := store.HistoryPoint{
		VehicleID: v.ID,
		Latitude:  r.Latitude,
		Longitude: r.Longitude,
		SpeedKmh:  r.SpeedKmh,
		Timestamp: at,
	}
	if err := rc.store.AppendHistory(ctx, point); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	rc.mu.Lock()
	rc.lastRetained[v.DeviceID] = at
	rc.mu.Unlock()
	return nil
}

func (rc *Reconciler) samplerDue(deviceID string, at time.Time) bool {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	last, ok := rc.lastRetained[deviceID]
	return !ok || at.Sub(last) >= rc.sampleWindow
}

func (rc *Reconciler) publish(v *store.VehicleState) {
	if rc.notifier == nil {
		return
	}
	_ = rc.notifier.VehicleUpdated(notify.Snapshot{
		VehicleID:      v.ID,
		DeviceID:       v.DeviceID,
		Latitude:       v.Latitude,
		Longitude:      v.Longitude,
		SpeedKmh:       v.SpeedKmh,
		Status:         v.Status,
		LastUpdate:     v.LastUpdate,
		MileageTotalKm: v.MileageTotalKm,
		MileageDailyKm: v.MileageDailyKm,
	})
}

func (rc *Reconciler) lockFor(deviceID string) *sync.Mutex {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	lock, ok := rc.vehicleLocks[deviceID]
	if !ok {
		lock = &sync.Mutex{}
		rc.vehicleLocks[deviceID] = lock
	}
	return lock
}

func observedAt(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}

// haversineKm computes the great-circle distance between two points.
func haversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	rlat1 := lat1 * math.Pi / 180
	rlat2 := lat2 * math.Pi / 180
	dlat := (lat2 - lat1) * math.Pi / 180
	dlng := (lng2 - lng1) * math.Pi / 180

	a := math.Sin(dlat/2)*math.Sin(dlat/2) +
		math.Cos(rlat1)*math.Cos(rlat2)*math.Sin(dlng/2)*math.Sin(dlng/2)
	return 2 * earthRadiusKm * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}
