package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rifflock/lfshook"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/openfleet/fleettrack/cli/receiver/config"
	"github.com/openfleet/fleettrack/cli/receiver/notify"
	natspub "github.com/openfleet/fleettrack/cli/receiver/notify/nats"
	rabbitpub "github.com/openfleet/fleettrack/cli/receiver/notify/rabbitmq"
	redispub "github.com/openfleet/fleettrack/cli/receiver/notify/redis"
	tntpub "github.com/openfleet/fleettrack/cli/receiver/notify/tarantool_queue"
	"github.com/openfleet/fleettrack/cli/receiver/reconciler"
	"github.com/openfleet/fleettrack/cli/receiver/resolver"
	"github.com/openfleet/fleettrack/cli/receiver/server"
	"github.com/openfleet/fleettrack/cli/receiver/store"
	"github.com/openfleet/fleettrack/cli/receiver/store/memory"
	"github.com/openfleet/fleettrack/cli/receiver/store/mysql"
	"github.com/openfleet/fleettrack/cli/receiver/store/postgresql"
)

func main() {
	configFilePath := ""
	flag.StringVar(&configFilePath, "c", "", "path to the receiver config file")
	flag.Parse()

	if configFilePath == "" {
		log.Fatal("config file path is not set, use -c")
	}

	cfg, err := config.New(configFilePath)
	if err != nil {
		log.Fatalf("cannot load config: %v", err)
	}

	configureLogging(cfg)

	fleetStore, err := loadStore(cfg.Store)
	if err != nil {
		log.Fatalf("cannot initialize fleet state store: %v", err)
	}
	defer fleetStore.Close()

	fanout, err := loadNotifiers(cfg.Notify)
	if err != nil {
		log.Fatalf("cannot initialize notifiers: %v", err)
	}
	defer fanout.Close()

	deviceResolver := resolver.New(fleetStore, cfg.AllowSubstringMatch)
	if cfg.AllowSubstringMatch {
		log.Warn("substring device matching is enabled; ambiguous refs will be rejected")
	}

	rc := reconciler.New(fleetStore, deviceResolver, fanout, cfg.GetHistorySampleWindow())

	var g errgroup.Group
	if cfg.HTTPAddress != "" {
		srv := server.NewHTTPServer(cfg.HTTPAddress, rc)
		g.Go(srv.Run)
	}
	if cfg.StreamAddress != "" {
		srv := server.NewStreamServer(cfg.StreamAddress, cfg.GetStreamConnTTL(), rc)
		g.Go(srv.Run)
	}
	if cfg.DatagramAddress != "" {
		srv := server.NewDatagramServer(cfg.DatagramAddress, rc)
		g.Go(srv.Run)
	}
	if cfg.Mqtt.Broker != "" {
		srv := server.NewTopicServer(server.TopicConfig{
			Broker:   cfg.Mqtt.Broker,
			ClientID: cfg.Mqtt.ClientID,
			Username: cfg.Mqtt.Username,
			Password: cfg.Mqtt.Password,
		}, rc)
		g.Go(srv.Run)
	}

	if err := g.Wait(); err != nil {
		log.Fatalf("ingress failed: %v", err)
	}
}

func configureLogging(cfg config.Settings) {
	log.SetLevel(cfg.GetLogLevel())
	log.SetFormatter(&log.TextFormatter{ForceColors: true, FullTimestamp: false})
	log.SetOutput(os.Stdout)

	if cfg.LogFilePath == "" {
		return
	}

	logDir := filepath.Dir(cfg.LogFilePath)
	if _, err := os.Stat(logDir); os.IsNotExist(err) {
		if err := os.MkdirAll(logDir, os.ModePerm); err != nil {
			log.Fatalf("cannot create log directory: %v", err)
		}
	}

	rotated := &lumberjack.Logger{
		Filename:   cfg.LogFilePath,
		MaxSize:    100,
		MaxBackups: 366,
		MaxAge:     cfg.LogMaxAgeDays,
		Compress:   true,
	}

	fileFmt := &log.TextFormatter{DisableColors: true, FullTimestamp: true}
	log.AddHook(lfshook.NewHook(lfshook.WriterMap{
		log.PanicLevel: rotated,
		log.FatalLevel: rotated,
		log.ErrorLevel: rotated,
		log.WarnLevel:  rotated,
		log.InfoLevel:  rotated,
		log.DebugLevel: rotated,
		log.TraceLevel: rotated,
	}, fileFmt))
}

// loadStore constructs the single configured fleet state store. With no
// storage section the receiver runs against an in-process store, which is
// only useful for local development.
func loadStore(storages map[string]map[string]string) (store.Store, error) {
	if len(storages) == 0 {
		log.Warn("no storage configured, using in-process fleet state store")
		return memory.New(), nil
	}
	if len(storages) > 1 {
		return nil, fmt.Errorf("exactly one storage kind must be configured, got %d", len(storages))
	}

	var (
		kind   string
		params map[string]string
	)
	for k, v := range storages {
		kind, params = k, v
	}

	var c store.Connector
	switch kind {
	case "postgresql":
		c = &postgresql.Connector{}
	case "mysql":
		c = &mysql.Connector{}
	case "memory":
		c = memory.New()
	default:
		return nil, fmt.Errorf("storage kind %q isn't supported", kind)
	}

	if err := c.Init(params); err != nil {
		return nil, fmt.Errorf("init %s store: %w", kind, err)
	}
	log.Infof("fleet state store: %s", kind)
	return c, nil
}

// loadNotifiers builds the vehicle-updated fan-out from the notify section.
func loadNotifiers(notifiers map[string]map[string]string) (*notify.Fanout, error) {
	fanout := notify.NewFanout()

	for kind, params := range notifiers {
		var c notify.Connector
		switch kind {
		case "nats":
			c = &natspub.Publisher{}
		case "rabbitmq":
			c = &rabbitpub.Publisher{}
		case "redis":
			c = &redispub.Publisher{}
		case "tarantool_queue":
			c = &tntpub.Publisher{}
		default:
			return nil, fmt.Errorf("notifier kind %q isn't supported", kind)
		}

		if err := c.Init(params); err != nil {
			return nil, fmt.Errorf("init %s notifier: %w", kind, err)
		}
		log.Infof("vehicle-updated events: %s", kind)
		fanout.Add(c)
	}
	return fanout, nil
}
