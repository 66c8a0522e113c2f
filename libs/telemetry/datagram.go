package telemetry

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// PositionPacketLen is the exact size of the datagram position-only packet:
// a 16-byte device id followed by two big-endian doubles. The datagram
// adapter disambiguates position packets from control commands by this
// length alone.
const PositionPacketLen = 32

// DecodePosition parses the 32-byte datagram packet. It carries neither
// speed nor a timestamp; the adapter fills those in.
func DecodePosition(data []byte) (*LocationReport, error) {
	if len(data) != PositionPacketLen {
		return nil, fmt.Errorf("%w: position packet is %d bytes, want %d",
			ErrMalformedPacket, len(data), PositionPacketLen)
	}

	return &LocationReport{
		DeviceID:  NormalizeDeviceID(string(data[:deviceIDFieldLen])),
		Latitude:  math.Float64frombits(binary.BigEndian.Uint64(data[16:24])),
		Longitude: math.Float64frombits(binary.BigEndian.Uint64(data[24:32])),
	}, nil
}

// EncodePosition is the inverse of DecodePosition.
func EncodePosition(r *LocationReport) ([]byte, error) {
	if len(r.DeviceID) > deviceIDFieldLen {
		return nil, fmt.Errorf("device id %q longer than %d bytes", r.DeviceID, deviceIDFieldLen)
	}

	buf := new(bytes.Buffer)
	id := make([]byte, deviceIDFieldLen)
	copy(id, r.DeviceID)
	buf.Write(id)

	if err := binary.Write(buf, binary.BigEndian, r.Latitude); err != nil {
		return nil, fmt.Errorf("encode latitude: %w", err)
	}
	if err := binary.Write(buf, binary.BigEndian, r.Longitude); err != nil {
		return nil, fmt.Errorf("encode longitude: %w", err)
	}

	return buf.Bytes(), nil
}
