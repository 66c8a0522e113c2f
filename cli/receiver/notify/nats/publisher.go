package nats

/*
Publishes vehicle-updated events to a NATS subject.

Notify section parameters:

address = "nats://localhost:4222"
subject = "fleet.vehicle.updated"
*/

import (
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/openfleet/fleettrack/cli/receiver/notify"
)

type Publisher struct {
	connection *nats.Conn
	subject    string
}

func (p *Publisher) Init(cfg map[string]string) error {
	if cfg == nil {
		return fmt.Errorf("empty publisher configuration")
	}

	var err error
	if p.connection, err = nats.Connect(cfg["address"]); err != nil {
		return fmt.Errorf("connect to NATS: %w", err)
	}

	p.subject = cfg["subject"]
	if p.subject == "" {
		p.subject = "fleet.vehicle.updated"
	}
	return nil
}

func (p *Publisher) VehicleUpdated(s notify.Snapshot) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := p.connection.Publish(p.subject, data); err != nil {
		return fmt.Errorf("publish to %s: %w", p.subject, err)
	}
	return nil
}

func (p *Publisher) Close() error {
	p.connection.Close()
	return nil
}
