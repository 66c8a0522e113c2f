package telemetry

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// Topic-addressed location payload: the device id travels in the topic path,
// the body is lat (double), lng (double), speed (float) and an ignition flag
// (int32), all big-endian.
const topicLocationLen = 24

// DecodeTopicLocation parses the location payload of the topic transport.
// deviceRef is the id extracted from the topic path by the adapter. The
// ignition flag is returned separately; it does not drive vehicle status.
func DecodeTopicLocation(deviceRef string, data []byte) (*LocationReport, bool, error) {
	if len(data) != topicLocationLen {
		return nil, false, fmt.Errorf("%w: topic location payload is %d bytes, want %d",
			ErrMalformedPacket, len(data), topicLocationLen)
	}

	r := &LocationReport{
		DeviceID:  NormalizeDeviceID(deviceRef),
		Latitude:  math.Float64frombits(binary.BigEndian.Uint64(data[0:8])),
		Longitude: math.Float64frombits(binary.BigEndian.Uint64(data[8:16])),
		SpeedKmh:  math.Float32frombits(binary.BigEndian.Uint32(data[16:20])),
	}
	ignition := int32(binary.BigEndian.Uint32(data[20:24])) != 0

	return r, ignition, nil
}

// EncodeTopicLocation is the inverse of DecodeTopicLocation; the device id
// is not part of the payload.
func EncodeTopicLocation(r *LocationReport, ignition bool) []byte {
	buf := make([]byte, topicLocationLen)
	binary.BigEndian.PutUint64(buf[0:8], math.Float64bits(r.Latitude))
	binary.BigEndian.PutUint64(buf[8:16], math.Float64bits(r.Longitude))
	binary.BigEndian.PutUint32(buf[16:20], math.Float32bits(r.SpeedKmh))
	if ignition {
		binary.BigEndian.PutUint32(buf[20:24], 1)
	}
	return buf
}

// ControlCommand is the self-describing control message used by the datagram
// and topic transports. The datagram form carries the device id inline, the
// topic form takes it from the topic path.
type ControlCommand struct {
	DeviceID string `json:"device_id,omitempty"`
	Action   string `json:"action"`
}

const (
	ActionEnable  = "enable"
	ActionDisable = "disable"
)

// DecodeControl parses a control command and validates its action.
func DecodeControl(data []byte) (*ControlCommand, error) {
	var cmd ControlCommand
	if err := json.Unmarshal(data, &cmd); err != nil {
		return nil, fmt.Errorf("%w: control command: %v", ErrMalformedPacket, err)
	}
	if cmd.Action != ActionEnable && cmd.Action != ActionDisable {
		return nil, fmt.Errorf("%w: control action %q", ErrMalformedPacket, cmd.Action)
	}
	return &cmd, nil
}

// StatusReport converts an accepted control command into the canonical
// status report for the given resolved-at-transport device ref.
func (c *ControlCommand) StatusReport(deviceRef string, at time.Time) *StatusReport {
	if deviceRef == "" {
		deviceRef = c.DeviceID
	}
	return &StatusReport{
		DeviceID:   NormalizeDeviceID(deviceRef),
		Enabled:    c.Action == ActionEnable,
		ObservedAt: at,
	}
}

// ControlAck is published to the per-device response topic after a control
// command has been applied.
type ControlAck struct {
	Status    string `json:"status"`
	Action    string `json:"action"`
	Enabled   bool   `json:"enabled"`
	Timestamp string `json:"timestamp"`
}
