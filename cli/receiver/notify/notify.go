package notify

import (
	"time"

	log "github.com/sirupsen/logrus"
)

// Snapshot is the live-state view emitted after each successful
// reconciliation for downstream live-view consumers.
type Snapshot struct {
	VehicleID      int64     `json:"vehicle_id"`
	DeviceID       string    `json:"device_id"`
	Latitude       float64   `json:"latitude"`
	Longitude      float64   `json:"longitude"`
	SpeedKmh       float32   `json:"speed_kmh"`
	Status         string    `json:"status"`
	LastUpdate     time.Time `json:"last_update"`
	MileageTotalKm float64   `json:"mileage_total_km"`
	MileageDailyKm float64   `json:"mileage_daily_km"`
}

// Publisher delivers vehicle-updated events to one downstream system.
type Publisher interface {
	VehicleUpdated(s Snapshot) error
	Close() error
}

// Connector is a Publisher configured from the yaml notify section.
type Connector interface {
	Publisher
	Init(map[string]string) error
}

// Fanout delivers each snapshot to every configured publisher. Delivery is
// best-effort: a failing publisher is logged and the rest still receive the
// event.
type Fanout struct {
	publishers []Publisher
}

func NewFanout() *Fanout {
	return &Fanout{}
}

// Add attaches a publisher to the fan-out.
func (f *Fanout) Add(p Publisher) {
	f.publishers = append(f.publishers, p)
}

func (f *Fanout) VehicleUpdated(s Snapshot) error {
	for _, p := range f.publishers {
		if err := p.VehicleUpdated(s); err != nil {
			log.WithField("device_id", s.DeviceID).Warnf("vehicle-updated event was not delivered: %v", err)
		}
	}
	return nil
}

func (f *Fanout) Close() error {
	var last error
	for _, p := range f.publishers {
		if err := p.Close(); err != nil {
			last = err
		}
	}
	return last
}
