package ble

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fako1024/gatt"
)

var (
	defaultAdapter     Adapter
	defaultAdapterErr  error
	defaultAdapterOnce sync.Once
)

// Default returns the process-wide adapter handle, creating it on first use.
// There is exactly one underlying HCI resource per process; repeated calls
// return the same instance.
func Default() (Adapter, error) {
	defaultAdapterOnce.Do(func() {
		defaultAdapter, defaultAdapterErr = NewAdapter()
	})

	return defaultAdapter, defaultAdapterErr
}

// gattAdapter implements Adapter on top of the gatt central role
type gattAdapter struct {
	device gatt.Device

	mu           sync.Mutex
	poweredOn    bool
	powerWaiters []chan struct{}
	scanSink     func(Advertisement)
	pending      map[string]chan connectResult
	disconnects  map[string]DisconnectHandler
}

type connectResult struct {
	peripheral gatt.Peripheral
	err        error
}

// NewAdapter instantiates a new gatt-backed BLE adapter
func NewAdapter() (Adapter, error) {

	device, err := gatt.NewDevice(defaultBTClientOptions...)
	if err != nil {
		return nil, err
	}

	a := &gattAdapter{
		device:      device,
		pending:     make(map[string]chan connectResult),
		disconnects: make(map[string]DisconnectHandler),
	}

	// Register central handlers, then initialize the device
	a.device.Handle(
		gatt.AddPeripheralDiscovered(a.onPeriphDiscovered),
		gatt.AddPeripheralConnected(a.onPeriphConnected),
		gatt.AddPeripheralDisconnected(a.onPeriphDisconnected),
	)
	if err := a.device.Init(a.onStateChanged); err != nil {
		return nil, err
	}

	return a, nil
}

// RequestPermissions is a no-op: the gatt central needs no runtime grant on
// the platforms it supports
func (a *gattAdapter) RequestPermissions() error {
	return nil
}

// AwaitPoweredOn blocks until the adapter reports the powered-on state
func (a *gattAdapter) AwaitPoweredOn(timeout time.Duration) error {

	a.mu.Lock()
	if a.poweredOn {
		a.mu.Unlock()
		return nil
	}
	waiter := make(chan struct{})
	a.powerWaiters = append(a.powerWaiters, waiter)
	a.mu.Unlock()

	select {
	case <-waiter:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("bluetooth adapter did not power on within %v", timeout)
	}
}

// Scan runs an unfiltered scan for the given duration
func (a *gattAdapter) Scan(duration time.Duration, sink func(Advertisement)) error {

	a.mu.Lock()
	if a.scanSink != nil {
		a.mu.Unlock()
		return fmt.Errorf("scan already in progress")
	}
	a.scanSink = sink
	a.mu.Unlock()

	defer func() {
		a.mu.Lock()
		a.scanSink = nil
		a.mu.Unlock()
	}()

	if err := a.device.Scan([]gatt.UUID{}, false); err != nil {
		return fmt.Errorf("failed to start scanning: %w", err)
	}

	timer := time.NewTimer(duration)
	defer timer.Stop()
	<-timer.C

	return a.device.StopScanning()
}

// Connect dials the peripheral with the given device ID. Since the gatt
// central can only connect peripherals it has seen advertise, a scan is run
// until the requested device shows up (bounded by the timeout).
func (a *gattAdapter) Connect(deviceID string, timeout time.Duration, onDisconnect DisconnectHandler) (Peripheral, error) {

	key := strings.ToLower(deviceID)

	a.mu.Lock()
	if _, exists := a.pending[key]; exists {
		a.mu.Unlock()
		return nil, fmt.Errorf("connection attempt to `%s` already in progress", deviceID)
	}
	result := make(chan connectResult, 1)
	a.pending[key] = result
	a.disconnects[key] = onDisconnect
	a.mu.Unlock()

	if err := a.device.Scan([]gatt.UUID{}, false); err != nil {
		a.abortConnect(key)
		return nil, fmt.Errorf("failed to start scanning for `%s`: %w", deviceID, err)
	}

	select {
	case res := <-result:
		a.mu.Lock()
		delete(a.pending, key)
		a.mu.Unlock()
		if res.err != nil {
			a.mu.Lock()
			delete(a.disconnects, key)
			a.mu.Unlock()
			return nil, fmt.Errorf("failed to connect `%s`: %w", deviceID, res.err)
		}
		return &gattPeripheral{p: res.peripheral}, nil
	case <-time.After(timeout):
		_ = a.device.StopScanning()
		a.abortConnect(key)
		return nil, fmt.Errorf("connection to `%s` timed out after %v", deviceID, timeout)
	}
}

// Disconnect cancels the connection to the given peripheral
func (a *gattAdapter) Disconnect(p Peripheral) error {

	gp, ok := p.(*gattPeripheral)
	if !ok {
		return fmt.Errorf("unsupported peripheral type %T", p)
	}

	// Release the drop handler first so a clean disconnect does not surface
	// as an unexpected one
	a.mu.Lock()
	delete(a.disconnects, strings.ToLower(gp.ID()))
	a.mu.Unlock()

	return gp.p.Device().CancelConnection(gp.p)
}

func (a *gattAdapter) abortConnect(key string) {
	a.mu.Lock()
	delete(a.pending, key)
	delete(a.disconnects, key)
	a.mu.Unlock()
}

////////////////////////////////////////////////////////////////////////////////

func (a *gattAdapter) onStateChanged(d gatt.Device, s gatt.State) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if s == gatt.StatePoweredOn {
		a.poweredOn = true
		for _, waiter := range a.powerWaiters {
			close(waiter)
		}
		a.powerWaiters = nil
		return
	}

	a.poweredOn = false
}

func (a *gattAdapter) onPeriphDiscovered(p gatt.Peripheral, adv *gatt.Advertisement, _ int) {

	a.mu.Lock()
	sink := a.scanSink
	_, wanted := a.pending[strings.ToLower(p.ID())]
	a.mu.Unlock()

	if sink != nil {
		name := p.Name()
		var services []string
		if adv != nil {
			if name == "" {
				name = adv.LocalName
			}
			services = make([]string, 0, len(adv.Services))
			for _, u := range adv.Services {
				services = append(services, CanonicalUUID(u.String()))
			}
		}
		sink(Advertisement{ID: p.ID(), Name: name, Services: services})
	}

	if wanted {
		if err := p.Device().StopScanning(); err == nil {
			if err := p.Device().Connect(p); err != nil {
				a.deliverConnect(p.ID(), connectResult{err: err})
			}
		}
	}
}

func (a *gattAdapter) onPeriphConnected(p gatt.Peripheral, err error) {
	a.deliverConnect(p.ID(), connectResult{peripheral: p, err: err})
}

func (a *gattAdapter) onPeriphDisconnected(p gatt.Peripheral, err error) {

	key := strings.ToLower(p.ID())

	a.mu.Lock()
	fn := a.disconnects[key]
	delete(a.disconnects, key)
	a.mu.Unlock()

	if fn != nil {
		fn(err)
	}
}

func (a *gattAdapter) deliverConnect(deviceID string, res connectResult) {
	a.mu.Lock()
	ch := a.pending[strings.ToLower(deviceID)]
	a.mu.Unlock()

	if ch != nil {
		select {
		case ch <- res:
		default:
		}
	}
}

////////////////////////////////////////////////////////////////////////////////

// gattPeripheral wraps a connected gatt peripheral, indexing its
// characteristics by canonical UUID
type gattPeripheral struct {
	p gatt.Peripheral

	mu    sync.Mutex
	chars map[string]*gatt.Characteristic
}

// ID returns the stable identifier of the peripheral
func (gp *gattPeripheral) ID() string {
	return gp.p.ID()
}

// Name returns the GAP name of the peripheral
func (gp *gattPeripheral) Name() string {
	return gp.p.Name()
}

// Discover performs full service / characteristic discovery
func (gp *gattPeripheral) Discover() error {

	ss, err := gp.p.DiscoverServices(nil)
	if err != nil {
		return fmt.Errorf("failed to discover services: %w", err)
	}

	chars := make(map[string]*gatt.Characteristic)
	for _, s := range ss {
		cs, err := gp.p.DiscoverCharacteristics(nil, s)
		if err != nil {
			return fmt.Errorf("failed to discover characteristics of service `%s`: %w", s.UUID().String(), err)
		}
		for _, c := range cs {
			chars[CanonicalUUID(c.UUID().String())] = c
		}
	}

	gp.mu.Lock()
	gp.chars = chars
	gp.mu.Unlock()

	return nil
}

// HasCharacteristic returns if the given characteristic was discovered
func (gp *gattPeripheral) HasCharacteristic(uuid string) bool {
	gp.mu.Lock()
	defer gp.mu.Unlock()

	_, ok := gp.chars[CanonicalUUID(uuid)]
	return ok
}

// Subscribe enables notifications on the given characteristic
func (gp *gattPeripheral) Subscribe(uuid string, fn NotificationHandler) error {

	c, err := gp.characteristic(uuid)
	if err != nil {
		return err
	}

	// Discover descriptors (required by some stacks before enabling notify)
	if _, err := gp.p.DiscoverDescriptors(nil, c); err != nil {
		return fmt.Errorf("failed to discover descriptors of `%s`: %w", uuid, err)
	}

	return gp.p.SetNotifyValue(c, func(_ *gatt.Characteristic, data []byte, err error) {
		fn(data, err)
	})
}

// Unsubscribe disables notifications on the given characteristic
func (gp *gattPeripheral) Unsubscribe(uuid string) error {

	c, err := gp.characteristic(uuid)
	if err != nil {
		return err
	}

	return gp.p.SetNotifyValue(c, nil)
}

// Read reads the current value of the given characteristic
func (gp *gattPeripheral) Read(uuid string) ([]byte, error) {

	c, err := gp.characteristic(uuid)
	if err != nil {
		return nil, err
	}

	return gp.p.ReadCharacteristic(c)
}

// Write writes data to the given characteristic
func (gp *gattPeripheral) Write(uuid string, data []byte) error {

	c, err := gp.characteristic(uuid)
	if err != nil {
		return err
	}

	return gp.p.WriteCharacteristic(c, data, false)
}

func (gp *gattPeripheral) characteristic(uuid string) (*gatt.Characteristic, error) {
	gp.mu.Lock()
	defer gp.mu.Unlock()

	c, ok := gp.chars[CanonicalUUID(uuid)]
	if !ok {
		return nil, fmt.Errorf("`%s` on device `%s`: %w", uuid, gp.p.ID(), ErrCharacteristicNotFound)
	}

	return c, nil
}
