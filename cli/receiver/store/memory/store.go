package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/openfleet/fleettrack/cli/receiver/store"
)

// Store keeps fleet state in process memory. Used by tests and by the
// receiver's no-database dev mode; provisioning happens through AddVehicle.
type Store struct {
	mu       sync.RWMutex
	vehicles map[string]*store.VehicleState
	history  []store.HistoryPoint
	nextID   int64
}

func New() *Store {
	return &Store{vehicles: make(map[string]*store.VehicleState), nextID: 1}
}

func (s *Store) Init(map[string]string) error { return nil }

// AddVehicle provisions a vehicle in offline status and returns its id.
func (s *Store) AddVehicle(deviceID string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.vehicles[deviceID] = &store.VehicleState{
		ID:       id,
		DeviceID: deviceID,
		Status:   store.StatusOffline,
	}
	return id
}

func (s *Store) GetVehicle(ctx context.Context, deviceID string) (*store.VehicleState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.vehicles[deviceID]
	if !ok {
		return nil, store.ErrVehicleNotFound
	}
	snapshot := *v
	return &snapshot, nil
}

func (s *Store) DeviceIDs(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.vehicles))
	for id := range s.vehicles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *Store) UpdateVehicle(ctx context.Context, deviceID string, m store.Mutation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.vehicles[deviceID]
	if !ok {
		return store.ErrVehicleNotFound
	}

	if m.Latitude != nil {
		v.Latitude = *m.Latitude
		v.HasPosition = true
	}
	if m.Longitude != nil {
		v.Longitude = *m.Longitude
	}
	if m.SpeedKmh != nil {
		v.SpeedKmh = *m.SpeedKmh
	}
	if m.Status != nil {
		v.Status = *m.Status
	}
	if m.LastUpdate != nil {
		v.LastUpdate = *m.LastUpdate
	}
	if m.LastSeenAddr != nil {
		v.LastSeenAddr = *m.LastSeenAddr
	}
	v.MileageTotalKm += m.MileageAddKm
	v.MileageDailyKm += m.MileageAddKm
	return nil
}

func (s *Store) AppendHistory(ctx context.Context, p store.HistoryPoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, p)
	return nil
}

// History returns a copy of all retained points, oldest first.
func (s *Store) History() []store.HistoryPoint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]store.HistoryPoint, len(s.history))
	copy(out, s.history)
	return out
}

func (s *Store) Close() error { return nil }
