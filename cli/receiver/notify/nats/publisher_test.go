package nats

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	natsgo "github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfleet/fleettrack/cli/receiver/notify"
)

func runEmbeddedServer(t *testing.T) *server.Server {
	t.Helper()

	opts := &server.Options{Host: "127.0.0.1", Port: -1}
	ns, err := server.NewServer(opts)
	require.NoError(t, err)

	go ns.Start()
	if !ns.ReadyForConnections(5 * time.Second) {
		t.Fatal("embedded NATS server did not start")
	}
	t.Cleanup(ns.Shutdown)
	return ns
}

func TestPublisherDeliversSnapshot(t *testing.T) {
	ns := runEmbeddedServer(t)
	address := fmt.Sprintf("nats://%s", ns.Addr().String())

	p := &Publisher{}
	require.NoError(t, p.Init(map[string]string{"address": address, "subject": "fleet.test"}))
	defer p.Close()

	nc, err := natsgo.Connect(address)
	require.NoError(t, err)
	defer nc.Close()

	received := make(chan *natsgo.Msg, 1)
	_, err = nc.ChanSubscribe("fleet.test", received)
	require.NoError(t, err)
	require.NoError(t, nc.Flush())

	snapshot := notify.Snapshot{
		VehicleID:      7,
		DeviceID:       "eqw1054",
		Latitude:       52.52,
		Longitude:      13.405,
		Status:         "online",
		MileageTotalKm: 120.5,
	}
	require.NoError(t, p.VehicleUpdated(snapshot))

	select {
	case msg := <-received:
		var got notify.Snapshot
		require.NoError(t, json.Unmarshal(msg.Data, &got))
		assert.Equal(t, snapshot, got)
	case <-time.After(5 * time.Second):
		t.Fatal("snapshot was not delivered")
	}
}
