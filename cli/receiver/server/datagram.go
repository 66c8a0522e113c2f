package server

import (
	"context"
	"errors"
	"net"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/openfleet/fleettrack/cli/receiver/reconciler"
	"github.com/openfleet/fleettrack/libs/telemetry"
)

// maxDatagramSize bounds a single control command datagram.
const maxDatagramSize = 1024

// DatagramServer terminates the datagram transport. A 32-byte datagram is a
// position-only packet; any other length is treated as a structured control
// command. Disambiguation is by exact length, never by content sniffing.
type DatagramServer struct {
	addr       string
	reconciler *reconciler.Reconciler
	conn       net.PacketConn
}

func NewDatagramServer(addr string, rc *reconciler.Reconciler) *DatagramServer {
	return &DatagramServer{addr: addr, reconciler: rc}
}

func (s *DatagramServer) Run() error {
	conn, err := net.ListenPacket("udp", s.addr)
	if err != nil {
		return err
	}

	log.Infof("datagram ingress listening on %s", s.addr)
	return s.Serve(conn)
}

// Serve reads datagrams from conn until it closes.
func (s *DatagramServer) Serve(conn net.PacketConn) error {
	s.conn = conn
	buf := make([]byte, maxDatagramSize)

	for {
		n, addr, err := conn.ReadFrom(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			log.WithField("err", err).Error("datagram read failed")
			continue
		}

		data := make([]byte, n)
		copy(data, buf[:n])
		s.handleDatagram(data, addr.String())
	}
}

func (s *DatagramServer) Stop() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

func (s *DatagramServer) handleDatagram(data []byte, sourceAddr string) {
	var (
		report telemetry.Report
		err    error
	)

	if len(data) == telemetry.PositionPacketLen {
		var loc *telemetry.LocationReport
		loc, err = telemetry.DecodePosition(data)
		if err == nil {
			loc.ObservedAt = time.Now().UTC()
			report = loc
		}
	} else {
		var cmd *telemetry.ControlCommand
		cmd, err = telemetry.DecodeControl(data)
		if err == nil {
			report = cmd.StatusReport("", time.Now().UTC())
		}
	}

	if err != nil {
		log.WithField("addr", sourceAddr).Warnf("datagram rejected: %v", err)
		return
	}

	if _, err := s.reconciler.Apply(context.Background(), report, sourceAddr); err != nil {
		log.WithFields(log.Fields{
			"addr":       sourceAddr,
			"device_ref": report.DeviceRef(),
		}).Warnf("datagram was not applied: %v", err)
	}
}
