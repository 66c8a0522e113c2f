package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "receiver.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestNewParsesFullConfig(t *testing.T) {
	path := writeConfig(t, `
log_level: DEBUG
log_file_path: /var/log/fleettrack/receiver.log
log_max_age_days: 14
http_address: ":8000"
stream_address: ":5050"
stream_conn_ttl: 90
datagram_address: ":8888"
mqtt:
  broker: "tcp://localhost:1883"
  username: "gps_user"
  password: "secret"
history_sample_window: 120
allow_substring_match: true
storage:
  postgresql:
    host: localhost
    port: "5432"
    user: postgres
    password: postgres
    database: fleet
    sslmode: disable
notify:
  nats:
    address: "nats://localhost:4222"
    subject: "fleet.vehicle.updated"
`)

	c, err := New(path)
	require.NoError(t, err)

	assert.Equal(t, log.DebugLevel, c.GetLogLevel())
	assert.Equal(t, ":8000", c.HTTPAddress)
	assert.Equal(t, 90*time.Second, c.GetStreamConnTTL())
	assert.Equal(t, ":8888", c.DatagramAddress)
	assert.Equal(t, "tcp://localhost:1883", c.Mqtt.Broker)
	assert.Equal(t, "fleettrack-receiver", c.Mqtt.ClientID, "client id defaults when broker is set")
	assert.Equal(t, 2*time.Minute, c.GetHistorySampleWindow())
	assert.True(t, c.AllowSubstringMatch)
	assert.Equal(t, "localhost", c.Store["postgresql"]["host"])
	assert.Equal(t, "fleet.vehicle.updated", c.Notify["nats"]["subject"])
}

func TestNewDefaults(t *testing.T) {
	path := writeConfig(t, `
http_address: ":8000"
`)

	c, err := New(path)
	require.NoError(t, err)

	assert.Equal(t, log.InfoLevel, c.GetLogLevel())
	assert.Equal(t, 5*time.Minute, c.GetHistorySampleWindow())
	assert.False(t, c.AllowSubstringMatch)
	assert.Zero(t, c.GetStreamConnTTL())
}

func TestNewRejectsConfigWithoutTransports(t *testing.T) {
	path := writeConfig(t, `
log_level: INFO
`)

	_, err := New(path)
	assert.Error(t, err)
}

func TestNewRejectsMissingFile(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
