package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"
	"github.com/eclipse/paho.golang/paho/session/state"
	log "github.com/sirupsen/logrus"

	"github.com/openfleet/fleettrack/cli/receiver/reconciler"
	"github.com/openfleet/fleettrack/libs/telemetry"
)

const (
	topicLocationFilter = "gps/+/location"
	topicControlFilter  = "gps/+/control"
)

// TopicConfig configures the pub/sub ingress.
type TopicConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
}

// TopicServer terminates the topic-addressed transport: the device id is
// carried in the topic path, not the payload. Control commands are
// acknowledged on a per-device response topic.
type TopicServer struct {
	cfg        TopicConfig
	reconciler *reconciler.Reconciler
	cm         *autopaho.ConnectionManager
	cancel     context.CancelFunc

	// publish is swappable so the message handlers can be exercised
	// without a broker.
	publish func(topic string, payload []byte)
}

func NewTopicServer(cfg TopicConfig, rc *reconciler.Reconciler) *TopicServer {
	s := &TopicServer{cfg: cfg, reconciler: rc}
	s.publish = s.publishToBroker
	return s
}

func (s *TopicServer) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	defer cancel()

	brokerURL, err := url.Parse(s.cfg.Broker)
	if err != nil {
		return fmt.Errorf("parse broker URL: %w", err)
	}

	cfg := autopaho.ClientConfig{
		ServerUrls:       []*url.URL{brokerURL},
		KeepAlive:        60,
		ReconnectBackoff: autopaho.NewConstantBackoff(5 * time.Second),
		ConnectUsername:  s.cfg.Username,
		ConnectPassword:  []byte(s.cfg.Password),
		OnConnectionUp:   s.onConnectionUp,
		OnConnectError:   func(err error) { log.Warnf("MQTT connect failed: %v", err) },
		ClientConfig: paho.ClientConfig{
			ClientID: s.cfg.ClientID,
			Session:  state.NewInMemory(),
			OnPublishReceived: []func(paho.PublishReceived) (bool, error){
				s.onPublishReceived,
			},
			OnClientError: func(err error) { log.Warnf("MQTT client error: %v", err) },
		},
	}

	log.Infof("topic ingress connecting to %s", s.cfg.Broker)
	s.cm, err = autopaho.NewConnection(ctx, cfg)
	if err != nil {
		return fmt.Errorf("create MQTT connection manager: %w", err)
	}

	<-ctx.Done()
	return nil
}

func (s *TopicServer) Stop() error {
	if s.cm != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.cm.Disconnect(shutdownCtx)
	}
	if s.cancel != nil {
		s.cancel()
	}
	return nil
}

func (s *TopicServer) onConnectionUp(cm *autopaho.ConnectionManager, _ *paho.Connack) {
	_, err := cm.Subscribe(context.Background(), &paho.Subscribe{
		Subscriptions: []paho.SubscribeOptions{
			{Topic: topicLocationFilter, QoS: 1},
			{Topic: topicControlFilter, QoS: 1},
		},
	})
	if err != nil {
		log.Errorf("MQTT subscribe failed: %v", err)
		return
	}
	log.Infof("subscribed to %s and %s", topicLocationFilter, topicControlFilter)
}

func (s *TopicServer) onPublishReceived(pr paho.PublishReceived) (bool, error) {
	s.handleMessage(pr.Packet.Topic, pr.Packet.Payload)
	return true, nil
}

// handleMessage dispatches one inbound publish by topic shape:
// gps/{device_id}/location or gps/{device_id}/control.
func (s *TopicServer) handleMessage(topic string, payload []byte) {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 || parts[0] != "gps" {
		log.WithField("topic", topic).Debug("ignoring message on unexpected topic")
		return
	}
	deviceRef := parts[1]

	switch parts[2] {
	case "location":
		s.handleLocation(deviceRef, payload)
	case "control":
		s.handleControl(deviceRef, payload)
	default:
		log.WithField("topic", topic).Debug("ignoring message on unexpected topic")
	}
}

func (s *TopicServer) handleLocation(deviceRef string, payload []byte) {
	report, ignition, err := telemetry.DecodeTopicLocation(deviceRef, payload)
	if err != nil {
		log.WithField("device_ref", deviceRef).Warnf("location payload rejected: %v", err)
		return
	}
	report.ObservedAt = time.Now().UTC()

	if _, err := s.reconciler.Apply(context.Background(), report, ""); err != nil {
		log.WithFields(log.Fields{
			"device_ref": deviceRef,
			"ignition":   ignition,
		}).Warnf("location was not applied: %v", err)
	}
}

func (s *TopicServer) handleControl(deviceRef string, payload []byte) {
	cmd, err := telemetry.DecodeControl(payload)
	if err != nil {
		log.WithField("device_ref", deviceRef).Warnf("control command rejected: %v", err)
		return
	}

	report := cmd.StatusReport(deviceRef, time.Now().UTC())
	v, err := s.reconciler.Apply(context.Background(), report, "")
	if err != nil {
		log.WithField("device_ref", deviceRef).Warnf("control was not applied: %v", err)
		return
	}

	ack := telemetry.ControlAck{
		Status:    "success",
		Action:    cmd.Action,
		Enabled:   report.Enabled,
		Timestamp: v.LastUpdate.Format(time.RFC3339),
	}
	data, err := json.Marshal(ack)
	if err != nil {
		log.Errorf("marshal control ack: %v", err)
		return
	}
	s.publish(fmt.Sprintf("gps/%s/control/response", deviceRef), data)
}

func (s *TopicServer) publishToBroker(topic string, payload []byte) {
	if s.cm == nil {
		return
	}
	_, err := s.cm.Publish(context.Background(), &paho.Publish{
		Topic:   topic,
		QoS:     1,
		Payload: payload,
	})
	if err != nil {
		log.WithField("topic", topic).Warnf("ack was not published: %v", err)
	}
}
