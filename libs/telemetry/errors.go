package telemetry

import "errors"

var (
	// ErrMalformedPacket is returned when a buffer does not match any
	// accepted length for the variant being decoded.
	ErrMalformedPacket = errors.New("malformed packet")

	// ErrUnsupportedPacketType is returned when a discriminated packet
	// carries a type tag outside the known set.
	ErrUnsupportedPacketType = errors.New("unsupported packet type")
)
