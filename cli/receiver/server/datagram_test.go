package server

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfleet/fleettrack/cli/receiver/store"
	"github.com/openfleet/fleettrack/libs/telemetry"
)

func startDatagramServer(t *testing.T) (*DatagramServer, net.Addr, *serverFixture) {
	t.Helper()
	s, rc := newTestEngine(t)
	s.AddVehicle("eqw1054")

	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := NewDatagramServer("", rc)
	go func() { _ = srv.Serve(conn) }()
	t.Cleanup(func() { _ = srv.Stop() })

	return srv, conn.LocalAddr(), &serverFixture{store: s}
}

type serverFixture struct {
	store interface {
		GetVehicle(ctx context.Context, deviceID string) (*store.VehicleState, error)
	}
}

func TestDatagramPositionPacket(t *testing.T) {
	_, addr, f := startDatagramServer(t)

	client, err := net.Dial("udp", addr.String())
	require.NoError(t, err)
	defer client.Close()

	packet, err := telemetry.EncodePosition(&telemetry.LocationReport{
		DeviceID:  "eqw1054",
		Latitude:  52.52,
		Longitude: 13.405,
	})
	require.NoError(t, err)
	require.Len(t, packet, telemetry.PositionPacketLen)

	_, err = client.Write(packet)
	require.NoError(t, err)

	v := waitForStatus(t, f.store, "eqw1054", store.StatusOnline)
	assert.Equal(t, 52.52, v.Latitude)
	assert.Equal(t, 13.405, v.Longitude)
	assert.NotEmpty(t, v.LastSeenAddr, "datagram source address is recorded")
}

func TestDatagramControlCommand(t *testing.T) {
	_, addr, f := startDatagramServer(t)

	client, err := net.Dial("udp", addr.String())
	require.NoError(t, err)
	defer client.Close()

	_, err = client.Write([]byte(`{"device_id": "eqw1054", "action": "disable"}`))
	require.NoError(t, err)

	waitForStatus(t, f.store, "eqw1054", store.StatusDisabled)

	_, err = client.Write([]byte(`{"device_id": "eqw1054", "action": "enable"}`))
	require.NoError(t, err)

	waitForStatus(t, f.store, "eqw1054", store.StatusOnline)
}

func TestDatagramGarbageIsIgnored(t *testing.T) {
	_, addr, f := startDatagramServer(t)

	client, err := net.Dial("udp", addr.String())
	require.NoError(t, err)
	defer client.Close()

	// Wrong length for a position packet, not valid JSON either.
	_, err = client.Write(make([]byte, 20))
	require.NoError(t, err)

	// The listener must still process valid traffic.
	packet, err := telemetry.EncodePosition(&telemetry.LocationReport{
		DeviceID:  "eqw1054",
		Latitude:  1,
		Longitude: 2,
	})
	require.NoError(t, err)
	_, err = client.Write(packet)
	require.NoError(t, err)

	waitForStatus(t, f.store, "eqw1054", store.StatusOnline)
}
