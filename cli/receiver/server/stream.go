package server

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/openfleet/fleettrack/cli/receiver/reconciler"
	"github.com/openfleet/fleettrack/libs/telemetry"
)

// StreamServer terminates the length-prefixed stream transport: one
// long-lived TCP connection per tracker, frames of
// [2-byte big-endian length][discriminated packet].
type StreamServer struct {
	addr       string
	ttl        time.Duration
	reconciler *reconciler.Reconciler
	l          net.Listener
}

// NewStreamServer creates the stream adapter. ttl is the per-read deadline
// for idle trackers; zero means no deadline.
func NewStreamServer(addr string, ttl time.Duration, rc *reconciler.Reconciler) *StreamServer {
	return &StreamServer{addr: addr, ttl: ttl, reconciler: rc}
}

func (s *StreamServer) Run() error {
	var err error
	s.l, err = net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}

	log.Infof("stream ingress listening on %s", s.addr)
	return s.Serve(s.l)
}

// Serve accepts tracker connections on l until the listener closes.
func (s *StreamServer) Serve(l net.Listener) error {
	s.l = l
	for {
		conn, err := l.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			log.WithField("err", err).Error("accept failed")
			continue
		}
		go s.handleConn(conn)
	}
}

func (s *StreamServer) Stop() error {
	if s.l != nil {
		return s.l.Close()
	}
	return nil
}

func (s *StreamServer) handleConn(conn net.Conn) {
	defer conn.Close()

	remote := conn.RemoteAddr().String()
	log.WithField("ip", remote).Info("tracker connected")

	header := make([]byte, 2)
	for {
		if s.ttl > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(s.ttl))
		} else {
			_ = conn.SetReadDeadline(time.Time{})
		}

		if _, err := io.ReadFull(conn, header); err != nil {
			logDisconnect(remote, err)
			return
		}

		frame := make([]byte, binary.BigEndian.Uint16(header))
		if _, err := io.ReadFull(conn, frame); err != nil {
			// Peer closed mid-frame: release the connection, the
			// listener keeps running.
			logDisconnect(remote, err)
			return
		}

		report, err := telemetry.DecodeFramed(frame)
		if err != nil {
			// One bad frame must not kill the stream.
			log.WithField("ip", remote).Warnf("frame rejected: %v", err)
			continue
		}
		stampObservedAt(report, time.Now().UTC())

		if _, err := s.reconciler.Apply(context.Background(), report, remote); err != nil {
			log.WithFields(log.Fields{
				"ip":         remote,
				"device_ref": report.DeviceRef(),
			}).Warnf("report was not applied: %v", err)
		}
	}
}

// stampObservedAt fills in the receive time for variants that carry no
// timestamp on the wire.
func stampObservedAt(report telemetry.Report, now time.Time) {
	switch r := report.(type) {
	case *telemetry.LocationReport:
		if r.ObservedAt.IsZero() {
			r.ObservedAt = now
		}
	case *telemetry.StatusReport:
		if r.ObservedAt.IsZero() {
			r.ObservedAt = now
		}
	}
}

func logDisconnect(remote string, err error) {
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		log.WithField("ip", remote).Warn("read timeout, dropping connection")
	} else if err == io.EOF {
		log.WithField("ip", remote).Info("tracker disconnected")
	} else {
		log.WithField("ip", remote).Warnf("read failed: %v", err)
	}
}
