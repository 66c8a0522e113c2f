package tarantool_queue

/*
Enqueues vehicle snapshots onto a Tarantool queue for asynchronous
consumers, serialized with msgpack.

Notify section parameters:

host = "localhost"
port = "3301"
user = "user"
password = "pass"
max_recons = "5"
timeout = "1"
reconnect = "1"
queue = "vehicle_updates"
*/

import (
	"fmt"
	"strconv"
	"time"

	"github.com/tarantool/go-tarantool"
	"github.com/tarantool/go-tarantool/queue"
	"gopkg.in/vmihailenco/msgpack.v2"

	"github.com/openfleet/fleettrack/cli/receiver/notify"
)

type Publisher struct {
	connection *tarantool.Connection
	queue      queue.Queue
}

func (p *Publisher) Init(cfg map[string]string) error {
	if cfg == nil {
		return fmt.Errorf("empty publisher configuration")
	}

	maxRecons, err := strconv.Atoi(cfg["max_recons"])
	if err != nil {
		return fmt.Errorf("parse max_recons: %w", err)
	}
	timeout, err := strconv.Atoi(cfg["timeout"])
	if err != nil {
		return fmt.Errorf("parse timeout: %w", err)
	}
	reconnect, err := strconv.Atoi(cfg["reconnect"])
	if err != nil {
		return fmt.Errorf("parse reconnect: %w", err)
	}

	opts := tarantool.Opts{
		Timeout:       time.Duration(timeout) * time.Second,
		Reconnect:     time.Duration(reconnect) * time.Second,
		MaxReconnects: uint(maxRecons),
		User:          cfg["user"],
		Pass:          cfg["password"],
	}

	addr := fmt.Sprintf("%s:%s", cfg["host"], cfg["port"])
	if p.connection, err = tarantool.Connect(addr, opts); err != nil {
		return fmt.Errorf("connect to Tarantool: %w", err)
	}
	p.queue = queue.New(p.connection, cfg["queue"])

	return nil
}

func (p *Publisher) VehicleUpdated(s notify.Snapshot) error {
	data, err := msgpack.Marshal(&s)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if _, err := p.queue.Put(data); err != nil {
		return fmt.Errorf("enqueue snapshot: %w", err)
	}
	return nil
}

func (p *Publisher) Close() error {
	return p.connection.Close()
}
