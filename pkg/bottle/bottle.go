// Package bottle converts raw bottle weights into liquid volumes using
// per-item bottle templates, and captures individual measurements taken
// from a connected scale or entered manually.
package bottle

import (
	"fmt"
	"math"
	"time"

	"github.com/LesCam/barstock-sub003/pkg/scale"
	"github.com/google/uuid"
)

const (

	// defaultDensityGPerML is assumed when a template carries no density
	// (typical for spirits)
	defaultDensityGPerML = 0.95

	// mlToOz converts milliliters to fluid ounces
	mlToOz = 0.033814
)

// Confidence denotes how a measurement was obtained
type Confidence string

const (

	// ConfidenceMeasured denotes a weight taken from a scale
	ConfidenceMeasured Confidence = "measured"

	// ConfidenceEstimated denotes a visually estimated fill level
	ConfidenceEstimated Confidence = "estimated"
)

// Template denotes the bottle specification of an inventory item, used to
// convert gross weight into liquid volume
type Template struct {
	ID                 uuid.UUID
	InventoryItemID    uuid.UUID
	ContainerSizeML    float64
	EmptyBottleWeightG float64
	FullBottleWeightG  float64
	DensityGPerML      float64
	Enabled            bool
}

// Liquid denotes the derived liquid content of a single bottle
type Liquid struct {
	Grams       float64 `json:"liquid_g"`
	Milliliters float64 `json:"liquid_ml"`
	Ounces      float64 `json:"liquid_oz"`
	PercentFull float64 `json:"percent_full"`
}

// Liquid calculates the liquid content for a gross bottle weight. The net
// weight is clamped to [0, full-empty] so readings outside the template
// bounds degrade gracefully.
func (t Template) Liquid(grossWeightG float64) Liquid {

	netG := math.Max(0, grossWeightG-t.EmptyBottleWeightG)
	maxLiquidG := t.FullBottleWeightG - t.EmptyBottleWeightG
	liquidG := math.Min(netG, maxLiquidG)

	density := t.DensityGPerML
	if density <= 0 {
		density = defaultDensityGPerML
	}
	liquidML := liquidG / density

	var percentFull float64
	if maxLiquidG > 0 {
		percentFull = liquidG / maxLiquidG * 100.
	}

	return Liquid{
		Grams:       round(liquidG, 2),
		Milliliters: round(liquidML, 2),
		Ounces:      round(liquidML*mlToOz, 2),
		PercentFull: round(percentFull, 1),
	}
}

// Validate checks the template for internally consistent bounds
func (t Template) Validate() error {
	if t.ContainerSizeML <= 0 {
		return fmt.Errorf("invalid container size: %v ml", t.ContainerSizeML)
	}
	if t.EmptyBottleWeightG < 0 {
		return fmt.Errorf("invalid empty bottle weight: %v g", t.EmptyBottleWeightG)
	}
	if t.FullBottleWeightG <= t.EmptyBottleWeightG {
		return fmt.Errorf("full bottle weight (%v g) must exceed empty bottle weight (%v g)",
			t.FullBottleWeightG, t.EmptyBottleWeightG)
	}

	return nil
}

// Measurement denotes a single recorded bottle weight. Raw grams are the
// source of truth; derived volumes are calculated on demand via templates.
type Measurement struct {
	ID            uuid.UUID
	MeasuredAt    time.Time
	GrossWeightG  float64
	Manual        bool
	Confidence    Confidence
	ScaleDeviceID string
	ScaleName     string
	Notes         string
}

// MeasurementFromReading captures a live scale reading as a measurement
func MeasurementFromReading(r scale.Reading) Measurement {
	return Measurement{
		ID:            uuid.New(),
		MeasuredAt:    r.TimeStamp,
		GrossWeightG:  r.WeightGrams,
		Manual:        false,
		Confidence:    ConfidenceMeasured,
		ScaleDeviceID: r.DeviceID,
		ScaleName:     r.DeviceName,
	}
}

// ManualMeasurement captures a manually entered bottle weight
func ManualMeasurement(grossWeightG float64, notes string) Measurement {
	return Measurement{
		ID:           uuid.New(),
		MeasuredAt:   time.Now(),
		GrossWeightG: grossWeightG,
		Manual:       true,
		Confidence:   ConfidenceEstimated,
		Notes:        notes,
	}
}

func round(val float64, decimals int) float64 {
	factor := math.Pow(10, float64(decimals))
	return math.Round(val*factor) / factor
}
