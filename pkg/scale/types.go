package scale

import "time"

// Type denotes the detected protocol variant of a connected scale
type Type string

const (

	// TypeNone denotes that no scale is connected / no type has been detected
	TypeNone Type = ""

	// TypeStandard denotes a scale exposing the standard BLE Weight Scale service
	TypeStandard Type = "standard"

	// TypeSkale2 denotes a Skale 2 device exposing its vendor-specific characteristics
	TypeSkale2 Type = "skale2"
)

// DeviceInfo denotes a scale candidate found during discovery
type DeviceInfo struct {
	ID   string
	Name string
}

// Reading denotes a normalized weight measurement at a certain point in time
type Reading struct {
	TimeStamp   time.Time
	DeviceID    string
	DeviceName  string
	WeightGrams float64
	Stable      bool
}

// Value provides a method to retrieve the current value (for interface use)
func (r Reading) Value() float64 {
	return r.WeightGrams
}

// Readings denotes a set of readings (usually part of a weighing session)
type Readings []Reading
