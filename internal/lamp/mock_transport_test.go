package lamp

import (
	"context"
	"sync"

	"github.com/bluelume/bluelume/internal/ble"
)

// mockAdapter implements ble.Adapter for testing.
type mockAdapter struct {
	mu           sync.Mutex
	connectCount int
	connectErr   error
	discoverErr  error
	current      *mockConnection
	failNextLink bool
	name         string
	chars        map[string]*mockCharacteristic // keyed by UUID
}

func newMockAdapter() *mockAdapter {
	return &mockAdapter{
		name: "Bulb 42",
		chars: map[string]*mockCharacteristic{
			ble.PowerCharUUID:       {value: []byte{1}},
			ble.BrightnessCharUUID:  {value: []byte{50}},
			ble.TemperatureCharUUID: {value: []byte{30}},
		},
	}
}

func (a *mockAdapter) Enable() error { return nil }

func (a *mockAdapter) Scan(_ context.Context, _ func(ble.Peripheral)) error {
	return nil
}

func (a *mockAdapter) Connect(_ context.Context, _ string) (ble.Connection, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.connectCount++
	if a.connectErr != nil {
		return nil, a.connectErr
	}
	conn := &mockConnection{adapter: a, name: a.name, discoverErr: a.discoverErr}
	if a.failNextLink {
		a.failNextLink = false
		conn.discoverErr = ble.ErrNotConnected
		conn.dead = true
		conn.dropOnArm = true
	}
	a.current = conn
	return conn, nil
}

// FailNextLink makes the next transport connection come up dead: the
// disconnect event fires as soon as the handler is armed, discovery
// fails, and the link delivers no further events, not even for its own
// Disconnect call.
func (a *mockAdapter) FailNextLink() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failNextLink = true
}

func (a *mockAdapter) SetDiscoverError(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.discoverErr = err
}

func (a *mockAdapter) ConnectCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.connectCount
}

func (a *mockAdapter) SetConnectError(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.connectErr = err
}

// FireDisconnect simulates a transport disconnect event on the current
// connection.
func (a *mockAdapter) FireDisconnect() {
	a.mu.Lock()
	conn := a.current
	a.mu.Unlock()
	if conn != nil {
		conn.fireDisconnect()
	}
}

func (a *mockAdapter) Characteristic(uuid string) *mockCharacteristic {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.chars[uuid]
}

// mockConnection implements ble.Connection.
type mockConnection struct {
	adapter *mockAdapter
	name    string

	mu           sync.Mutex
	disconnectCb func()
	discoverErr  error
	dead         bool // a dead link delivers no disconnect events
	dropOnArm    bool // fire the disconnect event once the handler is armed
}

func (c *mockConnection) DiscoverCharacteristics(_ string, charUUIDs []string) (map[string]ble.Characteristic, error) {
	c.mu.Lock()
	discoverErr := c.discoverErr
	c.mu.Unlock()
	if discoverErr != nil {
		return nil, discoverErr
	}

	c.adapter.mu.Lock()
	defer c.adapter.mu.Unlock()
	out := make(map[string]ble.Characteristic, len(charUUIDs))
	for _, uuid := range charUUIDs {
		ch, ok := c.adapter.chars[uuid]
		if !ok {
			return nil, ble.ErrCharacteristicNotFound
		}
		out[uuid] = ch
	}
	return out, nil
}

func (c *mockConnection) Name() string { return c.name }

func (c *mockConnection) Disconnect() error {
	c.mu.Lock()
	dead := c.dead
	c.mu.Unlock()
	if dead {
		return nil
	}
	// Real transports deliver the disconnect as an asynchronous event.
	go c.fireDisconnect()
	return nil
}

func (c *mockConnection) OnDisconnect(callback func()) {
	c.mu.Lock()
	c.disconnectCb = callback
	drop := c.dropOnArm
	c.dropOnArm = false
	c.mu.Unlock()
	if drop {
		callback()
	}
}

func (c *mockConnection) fireDisconnect() {
	c.mu.Lock()
	cb := c.disconnectCb
	c.mu.Unlock()
	if cb != nil {
		cb()
	}
}

// mockCharacteristic implements ble.Characteristic.
type mockCharacteristic struct {
	mu       sync.Mutex
	value    []byte
	readErr  error
	writeErr error
	writes   [][]byte
	notify   func(data []byte)
}

func (m *mockCharacteristic) Read() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return nil, m.readErr
	}
	out := make([]byte, len(m.value))
	copy(out, m.value)
	return out, nil
}

func (m *mockCharacteristic) Write(data []byte, _ bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	m.writes = append(m.writes, cp)
	// The bulb applies the write; reads reflect it unless a test
	// overrides the value to simulate firmware clamping.
	m.value = cp
	return nil
}

func (m *mockCharacteristic) Subscribe(callback func(data []byte)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notify = callback
	return nil
}

func (m *mockCharacteristic) SetValue(data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.value = data
}

func (m *mockCharacteristic) SetReadError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readErr = err
}

func (m *mockCharacteristic) Writes() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// Push simulates a peripheral-pushed notification.
func (m *mockCharacteristic) Push(data []byte) {
	m.mu.Lock()
	cb := m.notify
	m.value = data
	m.mu.Unlock()
	if cb != nil {
		cb(data)
	}
}
