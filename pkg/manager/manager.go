package manager

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/LesCam/barstock-sub003/pkg/ble"
	"github.com/LesCam/barstock-sub003/pkg/scale"
	"github.com/fatih/stopwatch"
)

var (

	// ErrAlreadyConnected is returned by Connect while a session is active
	ErrAlreadyConnected = errors.New("a scale is already connected")

	// ErrConnectInProgress is returned by Connect while another connection
	// attempt has not finished yet
	ErrConnectInProgress = errors.New("a connection attempt is already in progress")
)

// Manager owns the BLE session to a single scale: discovery, protocol
// detection, reading normalization, keepalive and teardown / recovery. At
// most one peripheral is connected at a time.
type Manager struct {
	adapter ble.Adapter
	logger  scale.Logger

	scanDuration      time.Duration
	powerOnTimeout    time.Duration
	connectTimeout    time.Duration
	keepaliveInterval time.Duration

	mu         sync.Mutex
	connecting bool
	sess       *session

	nextListenerID int
	readingSubs    []readingListener
	dropSubs       []dropListener
}

// session holds the state of one connection; it is created by Connect and
// replaced by nil on any teardown path, so cleanup is a single swap
type session struct {
	peripheral ble.Peripheral
	deviceID   string
	deviceName string
	scaleType  scale.Type

	batteryLevel  int // -1 while unknown
	batterySub    bool
	keepaliveStop chan struct{}
	uptime        *stopwatch.Stopwatch
}

type readingListener struct {
	id int
	fn func(scale.Reading)
}

type dropListener struct {
	id int
	fn func()
}

var _ scale.Manager = (*Manager)(nil)

// New instantiates a new scale manager, executing functional options, if any
func New(options ...func(*Manager)) (*Manager, error) {

	m := &Manager{
		logger:            &scale.NullLogger{},
		scanDuration:      defaultScanDuration,
		powerOnTimeout:    defaultPowerOnTimeout,
		connectTimeout:    defaultConnectTimeout,
		keepaliveInterval: defaultKeepaliveInterval,
	}

	// Execute functional options (if any), see options.go for implementation
	for _, option := range options {
		option(m)
	}

	// Fall back to the process-wide adapter (if not provided as option)
	if m.adapter == nil {
		adapter, err := ble.Default()
		if err != nil {
			return nil, err
		}
		m.adapter = adapter
	}

	return m, nil
}

// Scan discovers nearby scale candidates for the configured window and
// returns the deduplicated list. Manager state is not touched; the call
// fails atomically on permission or adapter-power errors.
func (m *Manager) Scan() ([]scale.DeviceInfo, error) {

	if err := m.adapter.RequestPermissions(); err != nil {
		return nil, fmt.Errorf("bluetooth permission not granted: %w", err)
	}
	if err := m.adapter.AwaitPoweredOn(m.powerOnTimeout); err != nil {
		return nil, fmt.Errorf("bluetooth adapter not ready: %w", err)
	}

	var (
		resMutex sync.Mutex
		seen     = make(map[string]struct{})
		found    []scale.DeviceInfo
	)
	err := m.adapter.Scan(m.scanDuration, func(adv ble.Advertisement) {
		if !isScaleAdvertisement(adv) {
			return
		}

		resMutex.Lock()
		defer resMutex.Unlock()

		// Deduplicate by device ID, first-seen name wins
		if _, ok := seen[adv.ID]; ok {
			return
		}
		seen[adv.ID] = struct{}{}

		name := adv.Name
		if name == "" {
			name = fallbackDeviceName
		}
		found = append(found, scale.DeviceInfo{ID: adv.ID, Name: name})
	})
	if err != nil {
		return nil, fmt.Errorf("scan failed: %w", err)
	}

	m.logger.Debugf("scan finished, found %d scale candidate(s)", len(found))
	return found, nil
}

// Connect opens a session to the peripheral with the given device ID,
// detects the protocol variant and starts streaming readings. While a
// session is active further calls are rejected with ErrAlreadyConnected.
func (m *Manager) Connect(deviceID string) error {

	m.mu.Lock()
	if m.sess != nil {
		m.mu.Unlock()
		return ErrAlreadyConnected
	}
	if m.connecting {
		m.mu.Unlock()
		return ErrConnectInProgress
	}
	m.connecting = true
	m.mu.Unlock()

	sess, err := m.establish(deviceID)

	m.mu.Lock()
	m.connecting = false
	if err == nil {
		m.sess = sess
	}
	m.mu.Unlock()

	return err
}

// Disconnect tears down the current session. It is idempotent: calling it
// while idle (or after an unexpected drop already fired) is a no-op.
func (m *Manager) Disconnect() error {

	m.mu.Lock()
	sess := m.sess
	m.mu.Unlock()

	if sess == nil {
		return nil
	}
	m.teardown(sess, false)

	return nil
}

// Tare zeroes the scale. Only the Skale 2 protocol has a tare command;
// calling this while idle or on a standard-profile scale is a no-op.
func (m *Manager) Tare() error {

	m.mu.Lock()
	sess := m.sess
	m.mu.Unlock()

	if sess == nil || sess.scaleType != scale.TypeSkale2 {
		return nil
	}

	return sess.peripheral.Write(Skale2CommandCharacteristic, []byte{cmdTare})
}

// OnReading registers a listener for normalized readings. The returned
// function removes the listener again; calling it more than once is safe.
func (m *Manager) OnReading(fn func(scale.Reading)) (unsubscribe func()) {

	m.mu.Lock()
	id := m.nextListenerID
	m.nextListenerID++
	m.readingSubs = append(m.readingSubs, readingListener{id: id, fn: fn})
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		for i, l := range m.readingSubs {
			if l.id == id {
				m.readingSubs = append(m.readingSubs[:i:i], m.readingSubs[i+1:]...)
				return
			}
		}
	}
}

// OnDisconnect registers a listener for unexpected session drops. The
// returned function removes the listener again.
func (m *Manager) OnDisconnect(fn func()) (unsubscribe func()) {

	m.mu.Lock()
	id := m.nextListenerID
	m.nextListenerID++
	m.dropSubs = append(m.dropSubs, dropListener{id: id, fn: fn})
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		for i, l := range m.dropSubs {
			if l.id == id {
				m.dropSubs = append(m.dropSubs[:i:i], m.dropSubs[i+1:]...)
				return
			}
		}
	}
}

// IsConnected returns if a session is currently active
func (m *Manager) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.sess != nil
}

// ScaleType returns the detected protocol variant (TypeNone when idle)
func (m *Manager) ScaleType() scale.Type {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sess == nil {
		return scale.TypeNone
	}
	return m.sess.scaleType
}

// BatteryLevel returns the last known battery level in percent, if any
func (m *Manager) BatteryLevel() (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sess == nil || m.sess.batteryLevel < 0 {
		return 0, false
	}
	return m.sess.batteryLevel, true
}

// DeviceID returns the identity of the bound peripheral (empty when idle)
func (m *Manager) DeviceID() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sess == nil {
		return ""
	}
	return m.sess.deviceID
}

// ConnectedFor returns for how long the current session has been up
func (m *Manager) ConnectedFor() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sess == nil || m.sess.uptime == nil {
		return 0
	}
	return m.sess.uptime.ElapsedTime()
}

////////////////////////////////////////////////////////////////////////////////

func (m *Manager) establish(deviceID string) (*session, error) {

	if err := m.adapter.AwaitPoweredOn(m.powerOnTimeout); err != nil {
		return nil, fmt.Errorf("bluetooth adapter not ready: %w", err)
	}

	// The drop handler is registered before anything else happens on the
	// peripheral so every failure from here on is observable
	p, err := m.adapter.Connect(deviceID, m.connectTimeout, func(err error) {
		m.handleDrop(deviceID, err)
	})
	if err != nil {
		return nil, err
	}

	if err := p.Discover(); err != nil {
		_ = m.adapter.Disconnect(p)
		return nil, err
	}

	// Protocol detection: presence of the vendor weight characteristic
	// identifies a Skale 2, everything else is treated as standard profile
	typ := scale.TypeStandard
	weightChar := WeightMeasurementCharacteristic
	if p.HasCharacteristic(Skale2WeightCharacteristic) {
		typ = scale.TypeSkale2
		weightChar = Skale2WeightCharacteristic
	}

	name := p.Name()
	if name == "" {
		name = fallbackDeviceName
	}

	sess := &session{
		peripheral:   p,
		deviceID:     deviceID,
		deviceName:   name,
		scaleType:    typ,
		batteryLevel: -1,
	}

	if typ == scale.TypeSkale2 {
		if err := p.Write(Skale2CommandCharacteristic, []byte{cmdGramUnit}); err != nil {
			_ = m.adapter.Disconnect(p)
			return nil, fmt.Errorf("failed to set gram display mode: %w", err)
		}
	}

	if err := p.Subscribe(weightChar, m.makeWeightHandler(sess)); err != nil {
		_ = m.adapter.Disconnect(p)
		return nil, fmt.Errorf("failed to subscribe weight characteristic: %w", err)
	}

	// Battery telemetry is best-effort and must never block the connection
	m.attachBattery(sess)

	// The Skale 2 times out its link unless the display mode is re-asserted
	// periodically
	if typ == scale.TypeSkale2 {
		sess.keepaliveStop = make(chan struct{})
		go m.runKeepalive(sess)
	}

	sess.uptime = stopwatch.Start(0)
	m.logger.Infof("connected scale `%s/%s` (%s profile)", sess.deviceName, sess.deviceID, typ)

	return sess, nil
}

// teardown releases all session resources. The session pointer swap under
// the lock makes it reentrant-safe: whichever of an explicit Disconnect, a
// monitor fault or an adapter drop event gets here first wins, the rest are
// no-ops.
func (m *Manager) teardown(sess *session, unexpected bool) {

	m.mu.Lock()
	if m.sess != sess {
		m.mu.Unlock()
		return
	}
	m.sess = nil
	m.mu.Unlock()

	if sess.keepaliveStop != nil {
		close(sess.keepaliveStop)
	}
	if sess.uptime != nil {
		sess.uptime.Stop()
	}

	weightChar := WeightMeasurementCharacteristic
	if sess.scaleType == scale.TypeSkale2 {
		weightChar = Skale2WeightCharacteristic
	}
	if err := sess.peripheral.Unsubscribe(weightChar); err != nil {
		m.logger.Debugf("failed to release weight subscription on `%s`: %s", sess.deviceID, err)
	}
	if sess.batterySub {
		if err := sess.peripheral.Unsubscribe(BatteryLevelCharacteristic); err != nil {
			m.logger.Debugf("failed to release battery subscription on `%s`: %s", sess.deviceID, err)
		}
	}
	if err := m.adapter.Disconnect(sess.peripheral); err != nil {
		m.logger.Debugf("failed to cancel connection to `%s`: %s", sess.deviceID, err)
	}

	m.logger.Infof("disconnected scale `%s/%s`", sess.deviceName, sess.deviceID)

	if unexpected {
		m.notifyDisconnect()
	}
}

func (m *Manager) handleDrop(deviceID string, err error) {

	m.mu.Lock()
	sess := m.sess
	m.mu.Unlock()

	if sess == nil || !strings.EqualFold(sess.deviceID, deviceID) {
		return
	}
	if err != nil {
		m.logger.Warnf("scale `%s` dropped connection: %s", deviceID, err)
	}

	m.teardown(sess, true)
}

func (m *Manager) makeWeightHandler(sess *session) ble.NotificationHandler {
	return func(data []byte, err error) {

		// A monitor fault is treated like an unexpected disconnect
		if err != nil {
			m.logger.Warnf("weight monitor fault on `%s`: %s", sess.deviceID, err)
			m.teardown(sess, true)
			return
		}

		grams, stable, ok := decodeReading(sess.scaleType, data)
		if !ok {
			return
		}

		m.dispatchReading(scale.Reading{
			TimeStamp:   time.Now(),
			DeviceID:    sess.deviceID,
			DeviceName:  sess.deviceName,
			WeightGrams: grams,
			Stable:      stable,
		})
	}
}

func (m *Manager) attachBattery(sess *session) {

	p := sess.peripheral
	if !p.HasCharacteristic(BatteryLevelCharacteristic) {
		return
	}

	if data, err := p.Read(BatteryLevelCharacteristic); err == nil && len(data) > 0 {
		sess.batteryLevel = int(data[0])
	}

	if err := p.Subscribe(BatteryLevelCharacteristic, func(data []byte, err error) {
		if err != nil || len(data) == 0 {
			return
		}
		m.mu.Lock()
		sess.batteryLevel = int(data[0])
		m.mu.Unlock()
	}); err != nil {
		m.logger.Debugf("failed to subscribe battery level on `%s`: %s", sess.deviceID, err)
		return
	}
	sess.batterySub = true
}

func (m *Manager) runKeepalive(sess *session) {

	ticker := time.NewTicker(m.keepaliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-sess.keepaliveStop:
			return
		case <-ticker.C:
			// Re-check after wakeup so no ping is sent past teardown
			select {
			case <-sess.keepaliveStop:
				return
			default:
			}
			if err := sess.peripheral.Write(Skale2CommandCharacteristic, []byte{cmdDisplayWeight}); err != nil {
				m.logger.Debugf("keepalive ping to `%s` failed: %s", sess.deviceID, err)
			}
		}
	}
}

func (m *Manager) dispatchReading(r scale.Reading) {

	m.mu.Lock()
	subs := make([]readingListener, len(m.readingSubs))
	copy(subs, m.readingSubs)
	m.mu.Unlock()

	// Listeners run in registration order and are isolated from each other:
	// a panicking listener must not stop delivery to the remaining ones
	for _, l := range subs {
		m.invoke(func() { l.fn(r) })
	}
}

func (m *Manager) notifyDisconnect() {

	m.mu.Lock()
	subs := make([]dropListener, len(m.dropSubs))
	copy(subs, m.dropSubs)
	m.mu.Unlock()

	for _, l := range subs {
		m.invoke(l.fn)
	}
}

func (m *Manager) invoke(fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			m.logger.Errorf("listener panic: %v", rec)
		}
	}()

	fn()
}

////////////////////////////////////////////////////////////////////////////////

func isScaleAdvertisement(adv ble.Advertisement) bool {

	for _, svc := range adv.Services {
		if ble.CanonicalUUID(svc) == WeightScaleService {
			return true
		}
	}

	name := strings.ToLower(adv.Name)
	if name == "" {
		return false
	}
	for _, known := range knownScaleNames {
		if strings.Contains(name, known) {
			return true
		}
	}

	return false
}
