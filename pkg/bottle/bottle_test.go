package bottle

import (
	"testing"
	"time"

	"github.com/LesCam/barstock-sub003/pkg/scale"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplateLiquid(t *testing.T) {

	template := Template{
		ContainerSizeML:    1000,
		EmptyBottleWeightG: 500,
		FullBottleWeightG:  1500,
		DensityGPerML:      1.0,
	}

	tests := []struct {
		name   string
		grossG float64
		want   Liquid
	}{
		{"half full", 1000, Liquid{Grams: 500, Milliliters: 500, Ounces: 16.91, PercentFull: 50}},
		{"full bottle", 1500, Liquid{Grams: 1000, Milliliters: 1000, Ounces: 33.81, PercentFull: 100}},
		{"empty bottle", 500, Liquid{Grams: 0, Milliliters: 0, Ounces: 0, PercentFull: 0}},
		{"below empty weight clamps to zero", 300, Liquid{Grams: 0, Milliliters: 0, Ounces: 0, PercentFull: 0}},
		{"above full weight caps at capacity", 2000, Liquid{Grams: 1000, Milliliters: 1000, Ounces: 33.81, PercentFull: 100}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, template.Liquid(tt.grossG))
		})
	}
}

func TestTemplateLiquidDefaultDensity(t *testing.T) {

	// No density on the template: the spirits default of 0.95 g/ml applies
	template := Template{
		ContainerSizeML:    750,
		EmptyBottleWeightG: 400,
		FullBottleWeightG:  1112.5,
	}

	liquid := template.Liquid(875)
	assert.Equal(t, 475.0, liquid.Grams)
	assert.Equal(t, 500.0, liquid.Milliliters)
	assert.Equal(t, 16.91, liquid.Ounces)
	assert.Equal(t, 66.7, liquid.PercentFull)
}

func TestTemplateValidate(t *testing.T) {

	valid := Template{ContainerSizeML: 750, EmptyBottleWeightG: 400, FullBottleWeightG: 1100}
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name     string
		template Template
	}{
		{"zero container size", Template{EmptyBottleWeightG: 400, FullBottleWeightG: 1100}},
		{"negative empty weight", Template{ContainerSizeML: 750, EmptyBottleWeightG: -1, FullBottleWeightG: 1100}},
		{"full not above empty", Template{ContainerSizeML: 750, EmptyBottleWeightG: 400, FullBottleWeightG: 400}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.template.Validate())
		})
	}
}

func TestMeasurementFromReading(t *testing.T) {

	ts := time.Now()
	m := MeasurementFromReading(scale.Reading{
		TimeStamp:   ts,
		DeviceID:    "AA:BB:CC:DD:EE:01",
		DeviceName:  "Skale 2",
		WeightGrams: 873.5,
		Stable:      true,
	})

	require.NotEqual(t, m.ID.String(), "00000000-0000-0000-0000-000000000000")
	assert.Equal(t, ts, m.MeasuredAt)
	assert.Equal(t, 873.5, m.GrossWeightG)
	assert.False(t, m.Manual)
	assert.Equal(t, ConfidenceMeasured, m.Confidence)
	assert.Equal(t, "AA:BB:CC:DD:EE:01", m.ScaleDeviceID)
	assert.Equal(t, "Skale 2", m.ScaleName)
}

func TestManualMeasurement(t *testing.T) {

	m := ManualMeasurement(640, "estimated by eye")

	assert.True(t, m.Manual)
	assert.Equal(t, ConfidenceEstimated, m.Confidence)
	assert.Equal(t, 640.0, m.GrossWeightG)
	assert.Equal(t, "estimated by eye", m.Notes)
	assert.Empty(t, m.ScaleDeviceID)
}
