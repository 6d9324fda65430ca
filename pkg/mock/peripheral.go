package mock

import (
	"fmt"
	"sync"

	"github.com/LesCam/barstock-sub003/pkg/ble"
)

// Peripheral denotes a scriptable in-memory BLE peripheral
type Peripheral struct {
	id   string
	name string

	mu          sync.Mutex
	connected   bool
	discoverErr error
	chars       map[string]*characteristic
}

type characteristic struct {
	value        []byte
	writes       [][]byte
	handler      ble.NotificationHandler
	readErr      error
	writeErr     error
	subscribeErr error
}

// NewPeripheral instantiates a new mock peripheral
func NewPeripheral(id, name string) *Peripheral {
	return &Peripheral{
		id:    id,
		name:  name,
		chars: make(map[string]*characteristic),
	}
}

// AddCharacteristic exposes a characteristic with an initial value
func (p *Peripheral) AddCharacteristic(uuid string, value []byte) *Peripheral {
	p.mu.Lock()
	p.chars[ble.CanonicalUUID(uuid)] = &characteristic{value: value}
	p.mu.Unlock()

	return p
}

// FailDiscover makes Discover return the given error
func (p *Peripheral) FailDiscover(err error) {
	p.mu.Lock()
	p.discoverErr = err
	p.mu.Unlock()
}

// FailSubscribe makes Subscribe on the given characteristic fail
func (p *Peripheral) FailSubscribe(uuid string, err error) {
	p.mu.Lock()
	if c, ok := p.chars[ble.CanonicalUUID(uuid)]; ok {
		c.subscribeErr = err
	}
	p.mu.Unlock()
}

// FailWrite makes Write on the given characteristic fail
func (p *Peripheral) FailWrite(uuid string, err error) {
	p.mu.Lock()
	if c, ok := p.chars[ble.CanonicalUUID(uuid)]; ok {
		c.writeErr = err
	}
	p.mu.Unlock()
}

// FailRead makes Read on the given characteristic fail
func (p *Peripheral) FailRead(uuid string, err error) {
	p.mu.Lock()
	if c, ok := p.chars[ble.CanonicalUUID(uuid)]; ok {
		c.readErr = err
	}
	p.mu.Unlock()
}

// Notify pushes a notification payload to the subscriber of the given
// characteristic, if any
func (p *Peripheral) Notify(uuid string, data []byte) {
	p.mu.Lock()
	var fn ble.NotificationHandler
	if c, ok := p.chars[ble.CanonicalUUID(uuid)]; ok {
		fn = c.handler
	}
	p.mu.Unlock()

	if fn != nil {
		fn(data, nil)
	}
}

// NotifyError pushes a notification-stream fault to the subscriber of the
// given characteristic, if any
func (p *Peripheral) NotifyError(uuid string, err error) {
	p.mu.Lock()
	var fn ble.NotificationHandler
	if c, ok := p.chars[ble.CanonicalUUID(uuid)]; ok {
		fn = c.handler
	}
	p.mu.Unlock()

	if fn != nil {
		fn(nil, err)
	}
}

// Writes returns all payloads written to the given characteristic so far
func (p *Peripheral) Writes(uuid string) [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()

	c, ok := p.chars[ble.CanonicalUUID(uuid)]
	if !ok {
		return nil
	}
	writes := make([][]byte, len(c.writes))
	copy(writes, c.writes)

	return writes
}

// Subscribed returns if the given characteristic currently has a subscriber
func (p *Peripheral) Subscribed(uuid string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	c, ok := p.chars[ble.CanonicalUUID(uuid)]
	return ok && c.handler != nil
}

// Connected returns if the peripheral is currently connected
func (p *Peripheral) Connected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.connected
}

////////////////////////////////////////////////////////////////////////////////

// ID returns the stable identifier of the peripheral
func (p *Peripheral) ID() string {
	return p.id
}

// Name returns the name of the peripheral
func (p *Peripheral) Name() string {
	return p.name
}

// Discover returns the scripted discovery error, if any
func (p *Peripheral) Discover() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.discoverErr
}

// HasCharacteristic returns if the given characteristic is exposed
func (p *Peripheral) HasCharacteristic(uuid string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	_, ok := p.chars[ble.CanonicalUUID(uuid)]
	return ok
}

// Subscribe registers a notification handler on the given characteristic
func (p *Peripheral) Subscribe(uuid string, fn ble.NotificationHandler) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	c, ok := p.chars[ble.CanonicalUUID(uuid)]
	if !ok {
		return fmt.Errorf("`%s` on device `%s`: %w", uuid, p.id, ble.ErrCharacteristicNotFound)
	}
	if c.subscribeErr != nil {
		return c.subscribeErr
	}
	c.handler = fn

	return nil
}

// Unsubscribe removes the notification handler from the given characteristic
func (p *Peripheral) Unsubscribe(uuid string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	c, ok := p.chars[ble.CanonicalUUID(uuid)]
	if !ok {
		return fmt.Errorf("`%s` on device `%s`: %w", uuid, p.id, ble.ErrCharacteristicNotFound)
	}
	c.handler = nil

	return nil
}

// Read returns the current value of the given characteristic
func (p *Peripheral) Read(uuid string) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	c, ok := p.chars[ble.CanonicalUUID(uuid)]
	if !ok {
		return nil, fmt.Errorf("`%s` on device `%s`: %w", uuid, p.id, ble.ErrCharacteristicNotFound)
	}
	if c.readErr != nil {
		return nil, c.readErr
	}

	return c.value, nil
}

// Write records a payload written to the given characteristic
func (p *Peripheral) Write(uuid string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	c, ok := p.chars[ble.CanonicalUUID(uuid)]
	if !ok {
		return fmt.Errorf("`%s` on device `%s`: %w", uuid, p.id, ble.ErrCharacteristicNotFound)
	}
	if c.writeErr != nil {
		return c.writeErr
	}
	c.writes = append(c.writes, append([]byte(nil), data...))

	return nil
}

func (p *Peripheral) setConnected(connected bool) {
	p.mu.Lock()
	p.connected = connected
	p.mu.Unlock()
}
