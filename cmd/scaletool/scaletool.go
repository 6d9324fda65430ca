package main

import (
	"flag"
	"fmt"
	"time"

	"github.com/LesCam/barstock-sub003/pkg/manager"
	"github.com/LesCam/barstock-sub003/pkg/scale"
	"github.com/sirupsen/logrus"
)

type config struct {
	deviceID string

	scanOnly bool
	tare     bool
	watch    time.Duration
	debug    bool
}

var log = logrus.New()

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() (err error) {

	// Parse command line options
	var cfg config

	flag.StringVar(&cfg.deviceID, "device", "", "ID of the scale to connect (as reported by -scan)")
	flag.BoolVar(&cfg.scanOnly, "scan", false, "Scan for nearby scales and exit")
	flag.BoolVar(&cfg.tare, "tare", false, "Tare the scale after connecting (Skale 2 only)")
	flag.DurationVar(&cfg.watch, "watch", 10*time.Second, "How long to stream readings before disconnecting")
	flag.BoolVar(&cfg.debug, "debug", false, "Enable debug logging")
	flag.Parse()

	m, err := manager.New(manager.WithLogger(scale.NewDefaultLogger(cfg.debug)))
	if err != nil {
		return fmt.Errorf("failed to initialize scale manager: %s", err)
	}

	if cfg.scanOnly || cfg.deviceID == "" {
		devices, err := m.Scan()
		if err != nil {
			return fmt.Errorf("failed to scan for scales: %s", err)
		}
		for _, d := range devices {
			log.Infof("found scale `%s` (%s)", d.Name, d.ID)
		}
		return nil
	}

	if err := m.Connect(cfg.deviceID); err != nil {
		return fmt.Errorf("failed to connect scale `%s`: %s", cfg.deviceID, err)
	}
	defer func() {
		if derr := m.Disconnect(); derr != nil {
			err = derr
			return
		}
	}()

	if cfg.tare {
		if err := m.Tare(); err != nil {
			return fmt.Errorf("failed to tare scale: %s", err)
		}
	}

	unsubscribe := m.OnReading(func(r scale.Reading) {
		log.Infof("%s: %.1f g (stable: %v)", r.DeviceName, r.WeightGrams, r.Stable)
	})
	defer unsubscribe()

	time.Sleep(cfg.watch)

	return nil
}
