package scale

import "time"

// Manager denotes the consumer-facing surface of the scale subsystem. The
// rest of the application talks to a connected scale exclusively through
// this interface; no other package may reach into BLE internals.
type Manager interface {

	// Scan discovers nearby scale candidates for a fixed window and returns
	// the deduplicated list
	Scan() ([]DeviceInfo, error)

	// Connect opens a session to the peripheral with the given device ID,
	// detects the protocol variant and starts streaming readings
	Connect(deviceID string) error

	// Disconnect tears down the current session (no-op if idle)
	Disconnect() error

	// Tare zeroes the scale (no-op unless a Skale 2 is connected)
	Tare() error

	// OnReading registers a listener for normalized readings, returning a
	// function that removes it again
	OnReading(fn func(Reading)) (unsubscribe func())

	// OnDisconnect registers a listener for unexpected session drops,
	// returning a function that removes it again
	OnDisconnect(fn func()) (unsubscribe func())

	// IsConnected returns if a session is currently active
	IsConnected() bool

	// ScaleType returns the detected protocol variant (TypeNone when idle)
	ScaleType() Type

	// BatteryLevel returns the last known battery level in percent, if any
	BatteryLevel() (int, bool)

	// DeviceID returns the identity of the bound peripheral (empty when idle)
	DeviceID() string

	// ConnectedFor returns for how long the current session has been up
	ConnectedFor() time.Duration
}
