package manager

import (
	"time"

	"github.com/LesCam/barstock-sub003/pkg/ble"
	"github.com/LesCam/barstock-sub003/pkg/scale"
)

// WithAdapter sets the BLE adapter (defaults to the process-wide one)
func WithAdapter(adapter ble.Adapter) func(*Manager) {
	return func(m *Manager) {
		m.adapter = adapter
	}
}

// WithLogger sets a logger for the manager
func WithLogger(logger scale.Logger) func(*Manager) {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithScanDuration overrides the discovery window
func WithScanDuration(d time.Duration) func(*Manager) {
	return func(m *Manager) {
		m.scanDuration = d
	}
}

// WithPowerOnTimeout overrides how long to wait for the adapter to power on
func WithPowerOnTimeout(d time.Duration) func(*Manager) {
	return func(m *Manager) {
		m.powerOnTimeout = d
	}
}

// WithConnectTimeout overrides the connection establishment timeout
func WithConnectTimeout(d time.Duration) func(*Manager) {
	return func(m *Manager) {
		m.connectTimeout = d
	}
}

// WithKeepaliveInterval overrides the Skale 2 keepalive interval
func WithKeepaliveInterval(d time.Duration) func(*Manager) {
	return func(m *Manager) {
		m.keepaliveInterval = d
	}
}
