package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPositionRoundTrip(t *testing.T) {
	r := &LocationReport{DeviceID: "eqw1054", Latitude: 52.5200, Longitude: 13.4050}

	data, err := EncodePosition(r)
	require.NoError(t, err)
	assert.Len(t, data, PositionPacketLen)

	got, err := DecodePosition(data)
	require.NoError(t, err)
	assert.Equal(t, r, got)
}

func TestDecodePositionRejectsWrongLength(t *testing.T) {
	for _, n := range []int{0, 31, 33, 40} {
		_, err := DecodePosition(make([]byte, n))
		assert.ErrorIs(t, err, ErrMalformedPacket, "length %d must be rejected", n)
	}
}

func TestDecodeControl(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    *ControlCommand
		wantErr bool
	}{
		{
			name:    "datagram form with inline device id",
			payload: `{"device_id": "eqw1054", "action": "disable"}`,
			want:    &ControlCommand{DeviceID: "eqw1054", Action: ActionDisable},
		},
		{
			name:    "topic form without device id",
			payload: `{"action": "enable"}`,
			want:    &ControlCommand{Action: ActionEnable},
		},
		{
			name:    "unknown action",
			payload: `{"action": "self_destruct"}`,
			wantErr: true,
		},
		{
			name:    "not json at all",
			payload: "\x01\x02\x03",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeControl([]byte(tt.payload))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformedPacket)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestControlCommandStatusReport(t *testing.T) {
	at := time.Unix(1700000000, 0).UTC()

	// Topic form: device ref comes from the topic path.
	cmd := &ControlCommand{Action: ActionEnable}
	report := cmd.StatusReport("B-EQW1054", at)
	assert.Equal(t, &StatusReport{DeviceID: "eqw1054", Enabled: true, ObservedAt: at}, report)

	// Datagram form: device ref carried inline.
	cmd = &ControlCommand{DeviceID: "eqe2152", Action: ActionDisable}
	report = cmd.StatusReport("", at)
	assert.Equal(t, &StatusReport{DeviceID: "eqe2152", Enabled: false, ObservedAt: at}, report)
}

func TestTopicLocationRoundTrip(t *testing.T) {
	r := &LocationReport{DeviceID: "eqw1054", Latitude: 52.5200, Longitude: 13.4050, SpeedKmh: 35}

	data := EncodeTopicLocation(r, true)
	assert.Len(t, data, topicLocationLen)

	got, ignition, err := DecodeTopicLocation("EQW1054", data)
	require.NoError(t, err)
	assert.True(t, ignition)
	assert.Equal(t, r, got)
}

func TestDecodeTopicLocationRejectsWrongLength(t *testing.T) {
	_, _, err := DecodeTopicLocation("eqw1054", make([]byte, 27))
	assert.ErrorIs(t, err, ErrMalformedPacket)
}
