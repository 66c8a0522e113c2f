package config

import (
	"fmt"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

// MQTT holds the topic-transport connection settings.
type MQTT struct {
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type Settings struct {
	LogLevel      string `yaml:"log_level"`
	LogFilePath   string `yaml:"log_file_path"`
	LogMaxAgeDays int    `yaml:"log_max_age_days"`

	HTTPAddress     string `yaml:"http_address"`
	StreamAddress   string `yaml:"stream_address"`
	StreamConnTTL   int    `yaml:"stream_conn_ttl"`
	DatagramAddress string `yaml:"datagram_address"`
	Mqtt            MQTT   `yaml:"mqtt"`

	HistorySampleWindow int  `yaml:"history_sample_window"`
	AllowSubstringMatch bool `yaml:"allow_substring_match"`

	Store  map[string]map[string]string `yaml:"storage"`
	Notify map[string]map[string]string `yaml:"notify"`
}

func (s *Settings) GetStreamConnTTL() time.Duration {
	return time.Duration(s.StreamConnTTL) * time.Second
}

func (s *Settings) GetHistorySampleWindow() time.Duration {
	return time.Duration(s.HistorySampleWindow) * time.Second
}

func (s *Settings) GetLogLevel() log.Level {
	switch s.LogLevel {
	case "DEBUG":
		return log.DebugLevel
	case "INFO":
		return log.InfoLevel
	case "WARN":
		return log.WarnLevel
	case "ERROR":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

func New(confPath string) (Settings, error) {
	c := Settings{}
	data, err := os.ReadFile(confPath)
	if err != nil {
		return c, err
	}
	if err = yaml.Unmarshal(data, &c); err != nil {
		return c, err
	}

	if c.HistorySampleWindow == 0 {
		c.HistorySampleWindow = 300
	}
	if c.Mqtt.Broker != "" && c.Mqtt.ClientID == "" {
		c.Mqtt.ClientID = "fleettrack-receiver"
	}

	if c.HTTPAddress == "" && c.StreamAddress == "" && c.DatagramAddress == "" && c.Mqtt.Broker == "" {
		return c, fmt.Errorf("no ingress transport is configured")
	}

	return c, nil
}
