package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFramedLocationRoundTrip(t *testing.T) {
	r := &LocationReport{
		DeviceID:  "eqw1054",
		Latitude:  52.5,
		Longitude: 13.25,
		SpeedKmh:  60,
	}

	data, err := EncodeFramed(r)
	require.NoError(t, err)
	assert.Len(t, data, framedLocationLen)
	assert.Equal(t, byte(PacketTypeLocation), data[0])

	got, err := DecodeFramed(data)
	require.NoError(t, err)
	loc, ok := got.(*LocationReport)
	require.True(t, ok)

	assert.Equal(t, r.DeviceID, loc.DeviceID)
	// Coordinates are carried as float32 on this variant.
	assert.InDelta(t, r.Latitude, loc.Latitude, 1e-4)
	assert.InDelta(t, r.Longitude, loc.Longitude, 1e-4)
	assert.Equal(t, r.SpeedKmh, loc.SpeedKmh)
}

func TestFramedStatusRoundTrip(t *testing.T) {
	for _, enabled := range []bool{true, false} {
		r := &StatusReport{DeviceID: "eqe2152", Enabled: enabled}

		data, err := EncodeFramed(r)
		require.NoError(t, err)
		assert.Len(t, data, framedStatusLen)

		got, err := DecodeFramed(data)
		require.NoError(t, err)
		status, ok := got.(*StatusReport)
		require.True(t, ok)
		assert.Equal(t, r.DeviceID, status.DeviceID)
		assert.Equal(t, enabled, status.Enabled)
	}
}

func TestDecodeFramedRejectsUnknownTag(t *testing.T) {
	for _, tag := range []byte{0, 3, 7, 0xff} {
		data := make([]byte, framedStatusLen)
		data[0] = tag
		_, err := DecodeFramed(data)
		assert.ErrorIs(t, err, ErrUnsupportedPacketType, "tag %d must be rejected", tag)
	}
}

func TestDecodeFramedRejectsTruncatedPacket(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"tag only", []byte{PacketTypeLocation}},
		{"short id", []byte{PacketTypeLocation, 'a', 'b'}},
		{"location without payload", append([]byte{PacketTypeLocation}, make([]byte, framedIDLen)...)},
		{"status with trailing bytes", make([]byte, framedStatusLen+4)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if len(tt.data) > 0 && tt.data[0] == 0 {
				tt.data[0] = PacketTypeStatus
			}
			_, err := DecodeFramed(tt.data)
			assert.ErrorIs(t, err, ErrMalformedPacket)
		})
	}
}
