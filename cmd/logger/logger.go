package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/LesCam/barstock-sub003/pkg/api"
	"github.com/LesCam/barstock-sub003/pkg/manager"
	"github.com/LesCam/barstock-sub003/pkg/scale"
	"github.com/sirupsen/logrus"
)

type config struct {
	deviceID string
	addr     string
	debug    bool
}

var log = logrus.New()

func main() {

	// Parse command line options
	var cfg config

	flag.StringVar(&cfg.deviceID, "device", "", "ID of the scale to connect (MAC on Linux, UUID on OS X)")
	flag.StringVar(&cfg.addr, "addr", "", "endpoint to serve the REST API on (disabled if empty)")
	flag.BoolVar(&cfg.debug, "debug", false, "enable debug logging")
	flag.Parse()

	m, err := manager.New(manager.WithLogger(scale.NewDefaultLogger(cfg.debug)))
	if err != nil {
		log.Fatalf("Failed to initialize scale manager: %s", err)
	}

	m.OnReading(func(r scale.Reading) {
		log.Infof("Reading from `%s`: %.1f g (stable: %v)", r.DeviceName, r.WeightGrams, r.Stable)
	})
	m.OnDisconnect(func() {
		log.Warnf("Scale dropped connection, reconnect with a fresh connect call")
	})

	if cfg.addr != "" {
		api.New(m).Serve(cfg.addr)
	}

	if cfg.deviceID == "" {
		devices, err := m.Scan()
		if err != nil {
			log.Fatalf("Failed to scan for scales: %s", err)
		}
		if len(devices) == 0 {
			log.Fatal("No scales found")
		}
		for _, d := range devices {
			log.Infof("Found scale `%s` (%s)", d.Name, d.ID)
		}
		cfg.deviceID = devices[0].ID
	}

	if err := m.Connect(cfg.deviceID); err != nil {
		log.Fatalf("Failed to connect scale `%s`: %s", cfg.deviceID, err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM)
	signal.Notify(sigChan, os.Interrupt)
	<-sigChan

	log.Infof("Got signal, terminating connection to device")
	if err := m.Disconnect(); err != nil {
		log.Errorf("Failed to disconnect scale: %s", err)
	}
}
