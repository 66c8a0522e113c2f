package telemetry

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// Discriminated stream layout: a 1-byte packet-type tag, an 8-byte
// NUL-padded device id, then a type-specific payload. Carried inside
// a 2-byte big-endian length frame on the stream transport; framing is
// the adapter's concern, this codec sees the bytes between frames.
const (
	PacketTypeLocation = 1
	PacketTypeStatus   = 2

	framedIDLen       = 8
	framedLocationLen = 1 + framedIDLen + 12 // tag + id + 3 floats
	framedStatusLen   = 1 + framedIDLen + 1  // tag + id + bool
)

// DecodeFramed parses one discriminated packet. The variant has no
// timestamp on the wire; the caller stamps ObservedAt at receive time.
func DecodeFramed(data []byte) (Report, error) {
	if len(data) < 1+framedIDLen {
		return nil, fmt.Errorf("%w: framed packet is %d bytes", ErrMalformedPacket, len(data))
	}

	deviceID := NormalizeDeviceID(string(data[1 : 1+framedIDLen]))

	switch data[0] {
	case PacketTypeLocation:
		if len(data) != framedLocationLen {
			return nil, fmt.Errorf("%w: location packet is %d bytes, want %d",
				ErrMalformedPacket, len(data), framedLocationLen)
		}
		return &LocationReport{
			DeviceID:  deviceID,
			Latitude:  float64(math.Float32frombits(binary.BigEndian.Uint32(data[9:13]))),
			Longitude: float64(math.Float32frombits(binary.BigEndian.Uint32(data[13:17]))),
			SpeedKmh:  math.Float32frombits(binary.BigEndian.Uint32(data[17:21])),
		}, nil
	case PacketTypeStatus:
		if len(data) != framedStatusLen {
			return nil, fmt.Errorf("%w: status packet is %d bytes, want %d",
				ErrMalformedPacket, len(data), framedStatusLen)
		}
		return &StatusReport{
			DeviceID: deviceID,
			Enabled:  data[9] != 0,
		}, nil
	default:
		return nil, fmt.Errorf("%w: tag %d", ErrUnsupportedPacketType, data[0])
	}
}

// EncodeFramed is the inverse of DecodeFramed. Latitude and longitude of a
// location report are narrowed to float32 as the wire format dictates.
func EncodeFramed(r Report) ([]byte, error) {
	buf := new(bytes.Buffer)

	id := make([]byte, framedIDLen)
	ref := r.DeviceRef()
	if len(ref) > framedIDLen {
		return nil, fmt.Errorf("device id %q longer than %d bytes", ref, framedIDLen)
	}
	copy(id, ref)

	switch rep := r.(type) {
	case *LocationReport:
		buf.WriteByte(PacketTypeLocation)
		buf.Write(id)
		for _, f := range []float32{float32(rep.Latitude), float32(rep.Longitude), rep.SpeedKmh} {
			if err := binary.Write(buf, binary.BigEndian, f); err != nil {
				return nil, fmt.Errorf("encode location field: %w", err)
			}
		}
	case *StatusReport:
		buf.WriteByte(PacketTypeStatus)
		buf.Write(id)
		enabled := byte(0)
		if rep.Enabled {
			enabled = 1
		}
		buf.WriteByte(enabled)
	default:
		return nil, fmt.Errorf("unknown report type %T", r)
	}

	return buf.Bytes(), nil
}
