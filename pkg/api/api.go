package api

import (
	"sync"
	"time"

	"github.com/LesCam/barstock-sub003/pkg/bottle"
	"github.com/LesCam/barstock-sub003/pkg/scale"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// API denotes a REST API for the scale subsystem
type API struct {
	manager scale.Manager
	router  *fiber.App

	mu     sync.Mutex
	latest *scale.Reading
}

// New instantiates a new API on top of a scale manager
func New(m scale.Manager) *API {

	api := &API{
		manager: m,
		router:  fiber.New(),
	}

	// Track the most recent reading for the read endpoints; an unexpected
	// drop resets it so consumers fall back to a disconnected view
	m.OnReading(func(r scale.Reading) {
		api.mu.Lock()
		api.latest = &r
		api.mu.Unlock()
	})
	m.OnDisconnect(func() {
		api.mu.Lock()
		api.latest = nil
		api.mu.Unlock()
	})

	// Setup routes
	api.router.Get("/devices/scan", api.handleScan())
	api.router.Post("/device/connect", api.handleConnect())
	api.router.Post("/device/disconnect", api.handleDisconnect())
	api.router.Post("/device/tare", api.handleTare())
	api.router.Get("/status", api.handleStatus())
	api.router.Get("/reading", api.handleReading())
	api.router.Post("/measurements", api.handleMeasure())

	return api
}

// Serve starts to listen on the given endpoint in a goroutine
func (api *API) Serve(endpoint string) {
	go func() {
		if err := api.router.Listen(endpoint); err != nil {
			panic(err)
		}
	}()
}

// Router exposes the underlying fiber app (e.g. for tests)
func (api *API) Router() *fiber.App {
	return api.router
}

////////////////////////////////////////////////////////////////////////////////

type deviceResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type connectRequest struct {
	ID string `json:"id"`
}

type statusResponse struct {
	Connected     bool    `json:"connected"`
	DeviceID      string  `json:"device_id,omitempty"`
	ScaleType     string  `json:"scale_type,omitempty"`
	BatteryLevel  *int    `json:"battery_level,omitempty"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

type readingResponse struct {
	DeviceID    string    `json:"device_id"`
	DeviceName  string    `json:"device_name"`
	WeightGrams float64   `json:"weight_grams"`
	Stable      bool      `json:"stable"`
	TimeStamp   time.Time `json:"timestamp"`
}

type measureRequest struct {
	InventoryItemID    string  `json:"inventory_item_id,omitempty"`
	ContainerSizeML    float64 `json:"container_size_ml"`
	EmptyBottleWeightG float64 `json:"empty_bottle_weight_g"`
	FullBottleWeightG  float64 `json:"full_bottle_weight_g"`
	DensityGPerML      float64 `json:"density_g_per_ml,omitempty"`
	Notes              string  `json:"notes,omitempty"`
}

type measureResponse struct {
	MeasurementID string        `json:"measurement_id"`
	MeasuredAt    time.Time     `json:"measured_at"`
	GrossWeightG  float64       `json:"gross_weight_g"`
	Confidence    string        `json:"confidence"`
	ScaleDeviceID string        `json:"scale_device_id,omitempty"`
	ScaleName     string        `json:"scale_name,omitempty"`
	Liquid        bottle.Liquid `json:"liquid"`
}

func (api *API) handleScan() func(c *fiber.Ctx) error {
	return func(c *fiber.Ctx) error {
		devices, err := api.manager.Scan()
		if err != nil {
			return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
		}

		res := make([]deviceResponse, 0, len(devices))
		for _, d := range devices {
			res = append(res, deviceResponse{ID: d.ID, Name: d.Name})
		}
		return c.JSON(res)
	}
}

func (api *API) handleConnect() func(c *fiber.Ctx) error {
	return func(c *fiber.Ctx) error {
		var req connectRequest
		if err := c.BodyParser(&req); err != nil || req.ID == "" {
			return fiber.NewError(fiber.StatusBadRequest, "missing device id")
		}

		if err := api.manager.Connect(req.ID); err != nil {
			return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

func (api *API) handleDisconnect() func(c *fiber.Ctx) error {
	return func(c *fiber.Ctx) error {
		if err := api.manager.Disconnect(); err != nil {
			return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
		}

		api.mu.Lock()
		api.latest = nil
		api.mu.Unlock()

		return c.SendStatus(fiber.StatusNoContent)
	}
}

func (api *API) handleTare() func(c *fiber.Ctx) error {
	return func(c *fiber.Ctx) error {
		if err := api.manager.Tare(); err != nil {
			return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

func (api *API) handleStatus() func(c *fiber.Ctx) error {
	return func(c *fiber.Ctx) error {
		res := statusResponse{
			Connected:     api.manager.IsConnected(),
			DeviceID:      api.manager.DeviceID(),
			ScaleType:     string(api.manager.ScaleType()),
			UptimeSeconds: api.manager.ConnectedFor().Seconds(),
		}
		if level, ok := api.manager.BatteryLevel(); ok {
			res.BatteryLevel = &level
		}
		return c.JSON(res)
	}
}

func (api *API) handleReading() func(c *fiber.Ctx) error {
	return func(c *fiber.Ctx) error {
		api.mu.Lock()
		latest := api.latest
		api.mu.Unlock()

		if latest == nil {
			return fiber.NewError(fiber.StatusNotFound, "no reading available")
		}
		return c.JSON(readingResponse{
			DeviceID:    latest.DeviceID,
			DeviceName:  latest.DeviceName,
			WeightGrams: latest.WeightGrams,
			Stable:      latest.Stable,
			TimeStamp:   latest.TimeStamp,
		})
	}
}

func (api *API) handleMeasure() func(c *fiber.Ctx) error {
	return func(c *fiber.Ctx) error {
		var req measureRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}

		template := bottle.Template{
			ID:                 uuid.New(),
			ContainerSizeML:    req.ContainerSizeML,
			EmptyBottleWeightG: req.EmptyBottleWeightG,
			FullBottleWeightG:  req.FullBottleWeightG,
			DensityGPerML:      req.DensityGPerML,
			Enabled:            true,
		}
		if req.InventoryItemID != "" {
			itemID, err := uuid.Parse(req.InventoryItemID)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "invalid inventory item id")
			}
			template.InventoryItemID = itemID
		}
		if err := template.Validate(); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		api.mu.Lock()
		latest := api.latest
		api.mu.Unlock()
		if latest == nil {
			return fiber.NewError(fiber.StatusConflict, "no reading available to record")
		}

		measurement := bottle.MeasurementFromReading(*latest)
		measurement.Notes = req.Notes

		return c.JSON(measureResponse{
			MeasurementID: measurement.ID.String(),
			MeasuredAt:    measurement.MeasuredAt,
			GrossWeightG:  measurement.GrossWeightG,
			Confidence:    string(measurement.Confidence),
			ScaleDeviceID: measurement.ScaleDeviceID,
			ScaleName:     measurement.ScaleName,
			Liquid:        template.Liquid(measurement.GrossWeightG),
		})
	}
}
