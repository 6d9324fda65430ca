package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/LesCam/barstock-sub003/pkg/ble"
	"github.com/LesCam/barstock-sub003/pkg/manager"
	"github.com/LesCam/barstock-sub003/pkg/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const deviceID = "AA:BB:CC:DD:EE:01"

func newTestAPI(t *testing.T) (*API, *mock.Adapter, *mock.Peripheral) {
	t.Helper()

	adapter := mock.NewAdapter()
	p := mock.NewPeripheral(deviceID, "Skale 2").
		AddCharacteristic(manager.Skale2WeightCharacteristic, nil).
		AddCharacteristic(manager.Skale2CommandCharacteristic, nil)
	adapter.AddPeripheral(p)

	m, err := manager.New(
		manager.WithAdapter(adapter),
		manager.WithPowerOnTimeout(10*time.Millisecond),
		manager.WithConnectTimeout(10*time.Millisecond),
		manager.WithScanDuration(10*time.Millisecond),
	)
	require.NoError(t, err)

	return New(m), adapter, p
}

func doJSON(t *testing.T, api *API, method, path string, body interface{}) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := api.Router().Test(req)
	require.NoError(t, err)

	return res
}

func decodeBody(t *testing.T, res *http.Response, v interface{}) {
	t.Helper()

	defer func() {
		_ = res.Body.Close()
	}()
	require.NoError(t, json.NewDecoder(res.Body).Decode(v))
}

func TestStatusWhileIdle(t *testing.T) {

	api, _, _ := newTestAPI(t)

	res := doJSON(t, api, http.MethodGet, "/status", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)

	var status statusResponse
	decodeBody(t, res, &status)
	assert.False(t, status.Connected)
	assert.Empty(t, status.DeviceID)
	assert.Nil(t, status.BatteryLevel)
}

func TestConnectTareDisconnectFlow(t *testing.T) {

	api, _, p := newTestAPI(t)

	res := doJSON(t, api, http.MethodPost, "/device/connect", connectRequest{ID: deviceID})
	require.Equal(t, http.StatusNoContent, res.StatusCode)

	res = doJSON(t, api, http.MethodGet, "/status", nil)
	var status statusResponse
	decodeBody(t, res, &status)
	assert.True(t, status.Connected)
	assert.Equal(t, deviceID, status.DeviceID)
	assert.Equal(t, "skale2", status.ScaleType)

	res = doJSON(t, api, http.MethodPost, "/device/tare", nil)
	require.Equal(t, http.StatusNoContent, res.StatusCode)
	writes := p.Writes(manager.Skale2CommandCharacteristic)
	require.NotEmpty(t, writes)
	assert.Equal(t, []byte{0x10}, writes[len(writes)-1])

	res = doJSON(t, api, http.MethodPost, "/device/disconnect", nil)
	require.Equal(t, http.StatusNoContent, res.StatusCode)

	res = doJSON(t, api, http.MethodGet, "/status", nil)
	decodeBody(t, res, &status)
	assert.False(t, status.Connected)
}

func TestConnectRejectsMissingID(t *testing.T) {

	api, _, _ := newTestAPI(t)

	res := doJSON(t, api, http.MethodPost, "/device/connect", connectRequest{})
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestLatestReading(t *testing.T) {

	api, adapter, p := newTestAPI(t)

	// No reading available before anything was received
	res := doJSON(t, api, http.MethodGet, "/reading", nil)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)

	doJSON(t, api, http.MethodPost, "/device/connect", connectRequest{ID: deviceID})
	p.Notify(manager.Skale2WeightCharacteristic, []byte{0x00, 0xE8, 0x03})

	res = doJSON(t, api, http.MethodGet, "/reading", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)

	var reading readingResponse
	decodeBody(t, res, &reading)
	assert.Equal(t, 100.0, reading.WeightGrams)
	assert.True(t, reading.Stable)
	assert.Equal(t, deviceID, reading.DeviceID)

	// An unexpected drop resets the read model back to "disconnected"
	adapter.DropConnection(deviceID, nil)
	res = doJSON(t, api, http.MethodGet, "/reading", nil)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestRecordMeasurement(t *testing.T) {

	api, _, p := newTestAPI(t)

	doJSON(t, api, http.MethodPost, "/device/connect", connectRequest{ID: deviceID})

	// Raw 10000 tenths of a gram -> 1000 g gross
	p.Notify(manager.Skale2WeightCharacteristic, []byte{0x00, 0x10, 0x27})

	res := doJSON(t, api, http.MethodPost, "/measurements", measureRequest{
		ContainerSizeML:    1000,
		EmptyBottleWeightG: 500,
		FullBottleWeightG:  1500,
		DensityGPerML:      1.0,
		Notes:              "well stock",
	})
	require.Equal(t, http.StatusOK, res.StatusCode)

	var measurement measureResponse
	decodeBody(t, res, &measurement)
	assert.NotEmpty(t, measurement.MeasurementID)
	assert.Equal(t, 1000.0, measurement.GrossWeightG)
	assert.Equal(t, "measured", measurement.Confidence)
	assert.Equal(t, deviceID, measurement.ScaleDeviceID)
	assert.Equal(t, 500.0, measurement.Liquid.Grams)
	assert.Equal(t, 500.0, measurement.Liquid.Milliliters)
	assert.Equal(t, 50.0, measurement.Liquid.PercentFull)
}

func TestRecordMeasurementValidation(t *testing.T) {

	api, _, _ := newTestAPI(t)
	doJSON(t, api, http.MethodPost, "/device/connect", connectRequest{ID: deviceID})

	// Invalid template bounds
	res := doJSON(t, api, http.MethodPost, "/measurements", measureRequest{
		ContainerSizeML:    1000,
		EmptyBottleWeightG: 500,
		FullBottleWeightG:  400,
	})
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)

	// Valid template but no reading received yet
	res = doJSON(t, api, http.MethodPost, "/measurements", measureRequest{
		ContainerSizeML:    1000,
		EmptyBottleWeightG: 500,
		FullBottleWeightG:  1500,
	})
	assert.Equal(t, http.StatusConflict, res.StatusCode)
}

func TestScanEndpoint(t *testing.T) {

	api, adapter, _ := newTestAPI(t)
	adapter.Advertise(
		ble.Advertisement{ID: "dev-1", Name: "Felicita Arc"},
		ble.Advertisement{ID: "dev-2", Name: "Random Speaker"},
	)

	res := doJSON(t, api, http.MethodGet, "/devices/scan", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)

	var devices []deviceResponse
	decodeBody(t, res, &devices)
	require.Len(t, devices, 1)
	assert.Equal(t, "Felicita Arc", devices[0].Name)
}
