package ble

import (
	"context"
	"fmt"
	"sync"

	"tinygo.org/x/bluetooth"
)

// TinyGoAdapter implements Adapter on top of tinygo.org/x/bluetooth.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//
// Disconnect events are delivered through the adapter-level connect
// handler: the stack fires it with connected=false when a peripheral
// drops, and the adapter routes the event to the affected connection's
// OnDisconnect callback.
type TinyGoAdapter struct {
	adapter *bluetooth.Adapter

	mu          sync.Mutex
	connections map[string]*tinygoConnection // keyed by transport address
	names       map[string]string            // advertised names seen in scans
}

// NewTinyGoAdapter creates an adapter backed by the platform default
// Bluetooth adapter.
func NewTinyGoAdapter() *TinyGoAdapter {
	return &TinyGoAdapter{
		adapter:     bluetooth.DefaultAdapter,
		connections: make(map[string]*tinygoConnection),
		names:       make(map[string]string),
	}
}

// Enable powers on the adapter and registers the disconnect router.
func (a *TinyGoAdapter) Enable() error {
	if err := a.adapter.Enable(); err != nil {
		return fmt.Errorf("%w: enable adapter: %w", ErrConnectionFailed, err)
	}

	a.adapter.SetConnectHandler(func(device bluetooth.Device, connected bool) {
		if connected {
			return
		}
		addr := device.Address.String()
		a.mu.Lock()
		conn, ok := a.connections[addr]
		a.mu.Unlock()
		if ok {
			conn.fireDisconnect()
		}
	})

	return nil
}

// Scan discovers peripherals advertising the bulb service until ctx is
// cancelled. Advertised names are remembered so later connections can
// report them.
func (a *TinyGoAdapter) Scan(ctx context.Context, found func(Peripheral)) error {
	svcUUID, err := bluetooth.ParseUUID(ServiceUUID)
	if err != nil {
		return fmt.Errorf("ble: parse service UUID: %w", err)
	}

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			a.adapter.StopScan()
		case <-done:
		}
	}()

	err = a.adapter.Scan(func(_ *bluetooth.Adapter, result bluetooth.ScanResult) {
		if !result.HasServiceUUID(svcUUID) {
			return
		}
		addr := result.Address.String()
		name := result.LocalName()
		if name != "" {
			a.mu.Lock()
			a.names[addr] = name
			a.mu.Unlock()
		}
		found(Peripheral{
			Name:    name,
			Address: addr,
			RSSI:    int(result.RSSI),
		})
	})
	close(done)

	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("ble: scan: %w", err)
	}
	return nil
}

// Connect establishes a connection to the peripheral at the given
// address. The underlying stack blocks with its own timeout; ctx
// cancellation returns early but cannot abort the in-flight attempt.
func (a *TinyGoAdapter) Connect(ctx context.Context, address string) (Connection, error) {
	var addr bluetooth.Address
	addr.Set(address)

	type connectResult struct {
		device bluetooth.Device
		err    error
	}
	ch := make(chan connectResult, 1)
	go func() {
		device, err := a.adapter.Connect(addr, bluetooth.ConnectionParams{})
		ch <- connectResult{device, err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: connect to %s: %w", ErrConnectionFailed, address, ctx.Err())
	case result := <-ch:
		if result.err != nil {
			return nil, fmt.Errorf("%w: connect to %s: %w", ErrConnectionFailed, address, result.err)
		}

		a.mu.Lock()
		name := a.names[address]
		conn := &tinygoConnection{device: result.device, name: name}
		a.connections[address] = conn
		a.mu.Unlock()

		return conn, nil
	}
}

// Compile-time check that TinyGoAdapter implements Adapter.
var _ Adapter = (*TinyGoAdapter)(nil)

type tinygoConnection struct {
	device bluetooth.Device
	name   string

	mu           sync.Mutex
	disconnectCb func()
}

func (c *tinygoConnection) DiscoverCharacteristics(serviceUUID string, charUUIDs []string) (map[string]Characteristic, error) {
	svcUUID, err := bluetooth.ParseUUID(serviceUUID)
	if err != nil {
		return nil, fmt.Errorf("ble: parse service UUID: %w", err)
	}

	uuids := make([]bluetooth.UUID, 0, len(charUUIDs))
	for _, s := range charUUIDs {
		u, parseErr := bluetooth.ParseUUID(s)
		if parseErr != nil {
			return nil, fmt.Errorf("ble: parse characteristic UUID %s: %w", s, parseErr)
		}
		uuids = append(uuids, u)
	}

	svcs, err := c.device.DiscoverServices([]bluetooth.UUID{svcUUID})
	if err != nil {
		return nil, fmt.Errorf("%w: discover services: %w", ErrServiceNotFound, err)
	}
	if len(svcs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrServiceNotFound, serviceUUID)
	}

	chars, err := svcs[0].DiscoverCharacteristics(uuids)
	if err != nil {
		return nil, fmt.Errorf("%w: discover characteristics: %w", ErrCharacteristicNotFound, err)
	}

	byUUID := make(map[string]Characteristic, len(chars))
	for i := range chars {
		byUUID[chars[i].UUID().String()] = &tinygoCharacteristic{char: chars[i]}
	}
	for _, want := range charUUIDs {
		if _, ok := byUUID[want]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrCharacteristicNotFound, want)
		}
	}

	return byUUID, nil
}

func (c *tinygoConnection) Name() string {
	return c.name
}

func (c *tinygoConnection) Disconnect() error {
	return c.device.Disconnect()
}

func (c *tinygoConnection) OnDisconnect(callback func()) {
	c.mu.Lock()
	c.disconnectCb = callback
	c.mu.Unlock()
}

func (c *tinygoConnection) fireDisconnect() {
	c.mu.Lock()
	cb := c.disconnectCb
	c.mu.Unlock()
	if cb != nil {
		cb()
	}
}

type tinygoCharacteristic struct {
	char bluetooth.DeviceCharacteristic
}

func (c *tinygoCharacteristic) Read() ([]byte, error) {
	buf := make([]byte, 8)
	n, err := c.char.Read(buf)
	if err != nil {
		return nil, fmt.Errorf("ble: read: %w", err)
	}
	return buf[:n], nil
}

func (c *tinygoCharacteristic) Write(data []byte, withoutResponse bool) error {
	var err error
	if withoutResponse {
		_, err = c.char.WriteWithoutResponse(data)
	} else {
		_, err = c.char.Write(data)
	}
	if err != nil {
		return fmt.Errorf("ble: write: %w", err)
	}
	return nil
}

func (c *tinygoCharacteristic) Subscribe(callback func(data []byte)) error {
	return c.char.EnableNotifications(func(buf []byte) {
		callback(buf)
	})
}
