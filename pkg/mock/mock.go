// Package mock provides in-memory stand-ins for the BLE adapter and
// peripheral capabilities, driven entirely from test code: advertisements
// are scripted, notifications injected and link drops forced on demand.
package mock

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/LesCam/barstock-sub003/pkg/ble"
)

var (
	_ ble.Adapter    = (*Adapter)(nil)
	_ ble.Peripheral = (*Peripheral)(nil)
)

// Adapter denotes a scriptable in-memory BLE adapter
type Adapter struct {
	mu sync.Mutex

	poweredOn     bool
	permissionErr error
	scanErr       error
	connectErr    error

	advertisements []ble.Advertisement
	peripherals    map[string]*Peripheral
	disconnects    map[string]ble.DisconnectHandler
}

// NewAdapter instantiates a new mock adapter (powered on by default)
func NewAdapter() *Adapter {
	return &Adapter{
		poweredOn:   true,
		peripherals: make(map[string]*Peripheral),
		disconnects: make(map[string]ble.DisconnectHandler),
	}
}

// SetPoweredOn controls the simulated adapter power state
func (a *Adapter) SetPoweredOn(on bool) {
	a.mu.Lock()
	a.poweredOn = on
	a.mu.Unlock()
}

// FailPermissions makes RequestPermissions return the given error
func (a *Adapter) FailPermissions(err error) {
	a.mu.Lock()
	a.permissionErr = err
	a.mu.Unlock()
}

// FailScan makes Scan return the given error
func (a *Adapter) FailScan(err error) {
	a.mu.Lock()
	a.scanErr = err
	a.mu.Unlock()
}

// FailConnect makes Connect return the given error
func (a *Adapter) FailConnect(err error) {
	a.mu.Lock()
	a.connectErr = err
	a.mu.Unlock()
}

// Advertise scripts advertisements to be replayed by the next Scan
func (a *Adapter) Advertise(advs ...ble.Advertisement) {
	a.mu.Lock()
	a.advertisements = append(a.advertisements, advs...)
	a.mu.Unlock()
}

// AddPeripheral makes a peripheral connectable through this adapter
func (a *Adapter) AddPeripheral(p *Peripheral) {
	a.mu.Lock()
	a.peripherals[strings.ToLower(p.id)] = p
	a.mu.Unlock()
}

// DropConnection simulates an adapter-level link drop, invoking the
// registered disconnect handler like the platform would
func (a *Adapter) DropConnection(deviceID string, err error) {
	key := strings.ToLower(deviceID)

	a.mu.Lock()
	fn := a.disconnects[key]
	delete(a.disconnects, key)
	if p, ok := a.peripherals[key]; ok {
		p.setConnected(false)
	}
	a.mu.Unlock()

	if fn != nil {
		fn(err)
	}
}

// HasDisconnectHandler returns if a drop handler is currently registered for
// the given device
func (a *Adapter) HasDisconnectHandler(deviceID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	_, ok := a.disconnects[strings.ToLower(deviceID)]
	return ok
}

////////////////////////////////////////////////////////////////////////////////

// RequestPermissions returns the scripted permission error, if any
func (a *Adapter) RequestPermissions() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.permissionErr
}

// AwaitPoweredOn succeeds immediately while powered on, otherwise fails
// after the given timeout
func (a *Adapter) AwaitPoweredOn(timeout time.Duration) error {
	a.mu.Lock()
	on := a.poweredOn
	a.mu.Unlock()

	if on {
		return nil
	}
	time.Sleep(timeout)

	return fmt.Errorf("bluetooth adapter did not power on within %v", timeout)
}

// Scan replays the scripted advertisements synchronously. The scan window is
// ignored so tests do not wait out real time.
func (a *Adapter) Scan(_ time.Duration, sink func(ble.Advertisement)) error {
	a.mu.Lock()
	err := a.scanErr
	advs := make([]ble.Advertisement, len(a.advertisements))
	copy(advs, a.advertisements)
	a.mu.Unlock()

	if err != nil {
		return err
	}
	for _, adv := range advs {
		sink(adv)
	}

	return nil
}

// Connect hands out the scripted peripheral with the given ID
func (a *Adapter) Connect(deviceID string, _ time.Duration, onDisconnect ble.DisconnectHandler) (ble.Peripheral, error) {
	key := strings.ToLower(deviceID)

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.connectErr != nil {
		return nil, a.connectErr
	}
	p, ok := a.peripherals[key]
	if !ok {
		return nil, fmt.Errorf("no peripheral with ID `%s`", deviceID)
	}

	a.disconnects[key] = onDisconnect
	p.setConnected(true)

	return p, nil
}

// Disconnect releases the drop handler and marks the peripheral disconnected
func (a *Adapter) Disconnect(p ble.Peripheral) error {
	mp, ok := p.(*Peripheral)
	if !ok {
		return fmt.Errorf("unsupported peripheral type %T", p)
	}

	a.mu.Lock()
	delete(a.disconnects, strings.ToLower(mp.id))
	a.mu.Unlock()
	mp.setConnected(false)

	return nil
}
