package rabbitmq

/*
Publishes vehicle-updated events to a RabbitMQ queue.

Notify section parameters:

host = "localhost"
port = "5672"
user = "guest"
password = "guest"
exchange = ""
queue = "fleet.vehicle.updated"
*/

import (
	"encoding/json"
	"fmt"

	"github.com/streadway/amqp"

	"github.com/openfleet/fleettrack/cli/receiver/notify"
)

type Publisher struct {
	connection *amqp.Connection
	channel    *amqp.Channel
	exchange   string
	queue      string
}

func (p *Publisher) Init(cfg map[string]string) error {
	if cfg == nil {
		return fmt.Errorf("empty publisher configuration")
	}

	url := fmt.Sprintf("amqp://%s:%s@%s:%s/", cfg["user"], cfg["password"], cfg["host"], cfg["port"])

	var err error
	if p.connection, err = amqp.Dial(url); err != nil {
		return fmt.Errorf("connect to RabbitMQ: %w", err)
	}
	if p.channel, err = p.connection.Channel(); err != nil {
		return fmt.Errorf("open RabbitMQ channel: %w", err)
	}

	p.exchange = cfg["exchange"]
	p.queue = cfg["queue"]
	if p.queue == "" {
		p.queue = "fleet.vehicle.updated"
	}

	if _, err = p.channel.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", p.queue, err)
	}
	return nil
}

func (p *Publisher) VehicleUpdated(s notify.Snapshot) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	err = p.channel.Publish(p.exchange, p.queue, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        data,
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", p.queue, err)
	}
	return nil
}

func (p *Publisher) Close() error {
	if err := p.channel.Close(); err != nil {
		return err
	}
	return p.connection.Close()
}
