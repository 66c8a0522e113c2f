package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/openfleet/fleettrack/cli/receiver/reconciler"
	"github.com/openfleet/fleettrack/cli/receiver/resolver"
	"github.com/openfleet/fleettrack/libs/telemetry"
)

// HTTPServer terminates the request-body transport: one compressed
// canonical-format payload per POST.
type HTTPServer struct {
	addr       string
	reconciler *reconciler.Reconciler
	engine     *gin.Engine
	srv        *http.Server
}

func NewHTTPServer(addr string, rc *reconciler.Reconciler) *HTTPServer {
	gin.SetMode(gin.ReleaseMode)

	s := &HTTPServer{addr: addr, reconciler: rc}
	s.engine = gin.New()
	s.engine.Use(gin.Recovery())
	s.engine.POST("/gps/binary_data", s.handleBinaryData)
	s.engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return s
}

func (s *HTTPServer) Run() error {
	s.srv = &http.Server{Addr: s.addr, Handler: s.engine}
	log.Infof("HTTP ingress listening on %s", s.addr)

	err := s.srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *HTTPServer) Stop() error {
	if s.srv != nil {
		return s.srv.Close()
	}
	return nil
}

// Handler exposes the router for tests.
func (s *HTTPServer) Handler() http.Handler { return s.engine }

func (s *HTTPServer) handleBinaryData(c *gin.Context) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "cannot read request body"})
		return
	}

	payload, err := telemetry.Decompress(raw)
	if err != nil {
		log.WithField("ip", c.ClientIP()).Warnf("bad compression envelope: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}

	report, err := telemetry.DecodeCanonical(payload)
	if err != nil {
		log.WithField("ip", c.ClientIP()).Warnf("malformed canonical payload: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}

	if _, err := s.reconciler.Apply(c.Request.Context(), report, c.ClientIP()); err != nil {
		status := statusForError(err)
		if status >= http.StatusInternalServerError {
			log.WithField("device_id", report.DeviceID).Errorf("fix was not applied: %v", err)
		} else {
			log.WithField("device_id", report.DeviceID).Warnf("fix rejected: %v", err)
		}
		c.JSON(status, gin.H{"detail": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, resolver.ErrUnknownDevice):
		return http.StatusNotFound
	case errors.Is(err, resolver.ErrAmbiguousDevice):
		return http.StatusNotFound
	case errors.Is(err, telemetry.ErrMalformedPacket), errors.Is(err, telemetry.ErrUnsupportedPacketType):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
