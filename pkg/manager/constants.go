package manager

import "time"

// BLE protocol constants. These must match the hardware exactly; all UUIDs
// are in canonical 128-bit form (see ble.CanonicalUUID).
const (

	// WeightScaleService is the standard BLE Weight Scale service
	WeightScaleService = "0000181d-0000-1000-8000-00805f9b34fb"

	// WeightMeasurementCharacteristic is the standard Weight Measurement characteristic
	WeightMeasurementCharacteristic = "00002a9d-0000-1000-8000-00805f9b34fb"

	// Skale2WeightCharacteristic is the vendor-specific weight characteristic
	// whose presence identifies a Skale 2
	Skale2WeightCharacteristic = "0000ef81-0000-1000-8000-00805f9b34fb"

	// Skale2CommandCharacteristic is the vendor-specific command characteristic
	Skale2CommandCharacteristic = "0000ef80-0000-1000-8000-00805f9b34fb"

	// BatteryService is the standard Battery Service
	BatteryService = "0000180f-0000-1000-8000-00805f9b34fb"

	// BatteryLevelCharacteristic is the standard Battery Level characteristic
	BatteryLevelCharacteristic = "00002a19-0000-1000-8000-00805f9b34fb"
)

// Skale 2 command bytes
const (
	cmdTare          = 0x10
	cmdGramUnit      = 0x03
	cmdDisplayWeight = 0xEC
)

const (
	defaultScanDuration      = 5 * time.Second
	defaultPowerOnTimeout    = 10 * time.Second
	defaultConnectTimeout    = 10 * time.Second
	defaultKeepaliveInterval = 30 * time.Second

	// fallbackDeviceName is used when the adapter reports no name
	fallbackDeviceName = "Unknown Scale"
)

// knownScaleNames are brand substrings used for name-based discovery of
// scales that do not advertise the Weight Scale service (case-insensitive)
var knownScaleNames = []string{
	"skale",
	"scale",
	"acaia",
	"decent",
	"felicita",
	"brewista",
}
