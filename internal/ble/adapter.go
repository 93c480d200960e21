// Package ble provides the Bluetooth Low Energy transport for Bluelume.
//
// It abstracts the hardware adapter behind small interfaces so the lamp
// layer can be tested without radio hardware, and ships a production
// implementation built on tinygo.org/x/bluetooth.
//
// The bulbs expose one vendor service with three single-byte
// characteristics: power, brightness and colour temperature.
package ble

import "context"

// Vendor service and characteristic UUIDs exposed by the bulb firmware.
const (
	ServiceUUID         = "0000fff0-0000-1000-8000-00805f9b34fb"
	PowerCharUUID       = "0000fff1-0000-1000-8000-00805f9b34fb"
	BrightnessCharUUID  = "0000fff2-0000-1000-8000-00805f9b34fb"
	TemperatureCharUUID = "0000fff3-0000-1000-8000-00805f9b34fb"
)

// Peripheral represents a discovered BLE peripheral.
type Peripheral struct {
	Name    string
	Address string
	RSSI    int
}

// Characteristic represents a GATT characteristic on a connected peripheral.
type Characteristic interface {
	// Read reads the current value of the characteristic.
	Read() ([]byte, error)

	// Write sends data to the characteristic. When withoutResponse is
	// true the write is unacknowledged.
	Write(data []byte, withoutResponse bool) error

	// Subscribe arms notification delivery. The callback is invoked for
	// every peripheral-pushed notification with the raw payload.
	Subscribe(callback func(data []byte)) error
}

// Connection represents an active connection to a peripheral.
type Connection interface {
	// DiscoverCharacteristics finds the given characteristic UUIDs within
	// a service, returned keyed by UUID.
	DiscoverCharacteristics(serviceUUID string, charUUIDs []string) (map[string]Characteristic, error)

	// Name returns the peripheral's advertised name, if known. Empty
	// until the peripheral has been seen in a scan.
	Name() string

	// Disconnect terminates the connection.
	Disconnect() error

	// OnDisconnect registers a callback invoked when the link drops,
	// whether requested or not. The transport delivers this as an
	// asynchronous event, not as a call result.
	OnDisconnect(callback func())
}

// Adapter abstracts the BLE hardware adapter.
type Adapter interface {
	// Enable powers on the adapter.
	Enable() error

	// Scan discovers peripherals advertising the bulb service until ctx
	// is cancelled.
	Scan(ctx context.Context, found func(Peripheral)) error

	// Connect establishes a connection to the peripheral with the given
	// transport address. Completion of Connect does not guarantee the
	// link is settled; callers apply their own settle delay.
	Connect(ctx context.Context, address string) (Connection, error)
}
