package telemetry

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

// Canonical wire layout, all fields big-endian:
//
//	device_id   16 bytes, UTF-8, left-justified, NUL-padded
//	latitude     8 bytes, IEEE-754 double, decimal degrees
//	longitude    8 bytes, IEEE-754 double, decimal degrees
//	speed_kmh    4 bytes, IEEE-754 float
//	observed_at  4 bytes, unsigned Unix seconds
//	persist_hint 1 byte, optional (extended variant only)
const (
	canonicalLen         = 40
	canonicalExtendedLen = 41
	deviceIDFieldLen     = 16
)

// DecodeCanonical parses a canonical 40-byte payload or its 41-byte extended
// variant. Any other length fails with ErrMalformedPacket. The device id in
// the returned report is already normalized.
func DecodeCanonical(data []byte) (*LocationReport, error) {
	if len(data) != canonicalLen && len(data) != canonicalExtendedLen {
		return nil, fmt.Errorf("%w: canonical payload is %d bytes, want %d or %d",
			ErrMalformedPacket, len(data), canonicalLen, canonicalExtendedLen)
	}

	r := &LocationReport{
		DeviceID:  NormalizeDeviceID(string(data[:deviceIDFieldLen])),
		Latitude:  math.Float64frombits(binary.BigEndian.Uint64(data[16:24])),
		Longitude: math.Float64frombits(binary.BigEndian.Uint64(data[24:32])),
		SpeedKmh:  math.Float32frombits(binary.BigEndian.Uint32(data[32:36])),
	}
	r.ObservedAt = time.Unix(int64(binary.BigEndian.Uint32(data[36:40])), 0).UTC()

	if len(data) == canonicalExtendedLen {
		r.PersistHint = data[40] != 0
	}

	return r, nil
}

// EncodeCanonical is the exact inverse of DecodeCanonical. The extended
// 41-byte form is produced when withHint is set; otherwise the persist hint
// is not representable and is dropped.
func EncodeCanonical(r *LocationReport, withHint bool) ([]byte, error) {
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
	if err := binary.Write(buf, binary.BigEndian, r.SpeedKmh); err != nil {
		return nil, fmt.Errorf("encode speed: %w", err)
	}
	if err := binary.Write(buf, binary.BigEndian, uint32(r.ObservedAt.Unix())); err != nil {
		return nil, fmt.Errorf("encode timestamp: %w", err)
	}

	if withHint {
		hint := byte(0)
		if r.PersistHint {
			hint = 1
		}
		buf.WriteByte(hint)
	}

	return buf.Bytes(), nil
}
