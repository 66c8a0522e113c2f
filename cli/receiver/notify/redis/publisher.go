package redis

/*
Mirrors the latest vehicle snapshot into Redis for dashboard reads and
publishes each update on a channel.

Notify section parameters:

address = "localhost:6379"
password = ""
db = "0"
channel = "fleet.vehicle.updated"
key_prefix = "vehicle:"
*/

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	goredis "github.com/go-redis/redis/v8"

	"github.com/openfleet/fleettrack/cli/receiver/notify"
)

type Publisher struct {
	client    *goredis.Client
	channel   string
	keyPrefix string
}

func (p *Publisher) Init(cfg map[string]string) error {
	if cfg == nil {
		return fmt.Errorf("empty publisher configuration")
	}

	db := 0
	if cfg["db"] != "" {
		var err error
		if db, err = strconv.Atoi(cfg["db"]); err != nil {
			return fmt.Errorf("parse redis db number: %w", err)
		}
	}

	p.client = goredis.NewClient(&goredis.Options{
		Addr:     cfg["address"],
		Password: cfg["password"],
		DB:       db,
	})
	if err := p.client.Ping(context.Background()).Err(); err != nil {
		return fmt.Errorf("Redis is unreachable: %w", err)
	}

	p.channel = cfg["channel"]
	if p.channel == "" {
		p.channel = "fleet.vehicle.updated"
	}
	p.keyPrefix = cfg["key_prefix"]
	if p.keyPrefix == "" {
		p.keyPrefix = "vehicle:"
	}
	return nil
}

func (p *Publisher) VehicleUpdated(s notify.Snapshot) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	ctx := context.Background()
	if err := p.client.Set(ctx, p.keyPrefix+s.DeviceID, data, 0).Err(); err != nil {
		return fmt.Errorf("set live snapshot: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", p.channel, err)
	}
	return nil
}

func (p *Publisher) Close() error {
	return p.client.Close()
}
