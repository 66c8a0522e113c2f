package telemetry

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
)

// Compress wraps a payload in the deflate envelope trackers use on the
// request-body transport.
func Compress(data []byte) ([]byte, error) {
	buf := new(bytes.Buffer)
	w := zlib.NewWriter(buf)
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("compress payload: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("flush compressed payload: %w", err)
	}
	return buf.Bytes(), nil
}

// Decompress removes the envelope. A corrupt envelope is a malformed packet.
func Decompress(data []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: compression envelope: %v", ErrMalformedPacket, err)
	}
	defer r.Close()

	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: compression envelope: %v", ErrMalformedPacket, err)
	}
	return out, nil
}
