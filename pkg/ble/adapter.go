package ble

import (
	"errors"
	"time"
)

// ErrCharacteristicNotFound is returned when a characteristic is addressed
// that the connected peripheral does not expose
var ErrCharacteristicNotFound = errors.New("characteristic not found")

// Advertisement denotes a single received advertisement packet
type Advertisement struct {
	ID       string
	Name     string
	Services []string
}

// NotificationHandler is invoked for every characteristic notification. A
// non-nil error signals a fault on the notification stream.
type NotificationHandler func(data []byte, err error)

// DisconnectHandler is invoked when the link to a peripheral drops without
// a prior call to Adapter.Disconnect
type DisconnectHandler func(err error)

// Peripheral denotes a connected BLE peripheral. All characteristic access
// goes through canonical UUIDs (see CanonicalUUID).
type Peripheral interface {

	// ID returns the stable identifier of the peripheral
	ID() string

	// Name returns the advertised / GAP name of the peripheral (may be empty)
	Name() string

	// Discover performs full service and characteristic discovery
	Discover() error

	// HasCharacteristic returns if the given characteristic was discovered
	HasCharacteristic(uuid string) bool

	// Subscribe enables notifications on the given characteristic
	Subscribe(uuid string, fn NotificationHandler) error

	// Unsubscribe disables notifications on the given characteristic
	Unsubscribe(uuid string) error

	// Read reads the current value of the given characteristic
	Read(uuid string) ([]byte, error)

	// Write writes data to the given characteristic
	Write(uuid string, data []byte) error
}

// Adapter denotes the narrow platform capability the scale subsystem relies
// on. Platform specifics (permission models, HCI vs. CoreBluetooth, ...) stay
// behind this interface so consumers contain no platform-conditional logic.
type Adapter interface {

	// RequestPermissions requests any runtime permissions scanning requires
	// (no-op on platforms that grant BLE access implicitly)
	RequestPermissions() error

	// AwaitPoweredOn blocks until the adapter is powered on, failing after
	// the given timeout
	AwaitPoweredOn(timeout time.Duration) error

	// Scan runs an unfiltered device scan for the given duration, invoking
	// sink for every received advertisement
	Scan(duration time.Duration, sink func(Advertisement)) error

	// Connect dials the peripheral with the given device ID. The disconnect
	// handler is registered before the peripheral is handed to the caller so
	// that any later link drop is observable.
	Connect(deviceID string, timeout time.Duration, onDisconnect DisconnectHandler) (Peripheral, error)

	// Disconnect cancels the connection to the given peripheral and releases
	// its disconnect handler registration
	Disconnect(p Peripheral) error
}
