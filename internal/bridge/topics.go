package bridge

import "fmt"

// DefaultTopicRoot is the namespace prefix for all bridge topics.
const DefaultTopicRoot = "bluelume"

// Availability payloads published to the shared availability topic.
const (
	PayloadOnline  = "online"
	PayloadOffline = "offline"
)

// Power payloads on the light state and command topics.
const (
	PayloadOn  = "ON"
	PayloadOff = "OFF"
)

// Topics provides builders for the per-device topic scheme. Using these
// helpers ensures the command subscriptions, state relay and discovery
// documents all agree on topic naming.
//
// Per-device layout under the root namespace:
//
//	topics := bridge.Topics{}
//	topics.LightState("aa:bb")       // bluelume/aa:bb/light/status
//	topics.LightCommand("aa:bb")     // bluelume/aa:bb/light/switch
//	topics.BrightnessState("aa:bb")  // bluelume/aa:bb/brightness/status
//	topics.Availability()            // bluelume/availability (shared)
type Topics struct {
	// Root overrides DefaultTopicRoot when non-empty.
	Root string
}

func (t Topics) root() string {
	if t.Root == "" {
		return DefaultTopicRoot
	}
	return t.Root
}

// Availability returns the availability topic shared by all devices.
//
// Example: bluelume/availability
func (t Topics) Availability() string {
	return fmt.Sprintf("%s/availability", t.root())
}

// LightState returns the retained power state topic for a device.
//
// Example: bluelume/aa:bb:cc:dd:ee:ff/light/status
func (t Topics) LightState(deviceID string) string {
	return fmt.Sprintf("%s/%s/light/status", t.root(), deviceID)
}

// LightCommand returns the power command topic for a device.
//
// Example: bluelume/aa:bb:cc:dd:ee:ff/light/switch
func (t Topics) LightCommand(deviceID string) string {
	return fmt.Sprintf("%s/%s/light/switch", t.root(), deviceID)
}

// BrightnessState returns the retained brightness state topic for a device.
//
// Example: bluelume/aa:bb:cc:dd:ee:ff/brightness/status
func (t Topics) BrightnessState(deviceID string) string {
	return fmt.Sprintf("%s/%s/brightness/status", t.root(), deviceID)
}

// BrightnessCommand returns the brightness command topic for a device.
//
// Example: bluelume/aa:bb:cc:dd:ee:ff/brightness/set
func (t Topics) BrightnessCommand(deviceID string) string {
	return fmt.Sprintf("%s/%s/brightness/set", t.root(), deviceID)
}

// TemperatureState returns the retained colour temperature state topic
// for a device. Payloads are mireds.
//
// Example: bluelume/aa:bb:cc:dd:ee:ff/temperature/status
func (t Topics) TemperatureState(deviceID string) string {
	return fmt.Sprintf("%s/%s/temperature/status", t.root(), deviceID)
}

// TemperatureCommand returns the colour temperature command topic for a
// device. Payloads are mireds.
//
// Example: bluelume/aa:bb:cc:dd:ee:ff/temperature/set
func (t Topics) TemperatureCommand(deviceID string) string {
	return fmt.Sprintf("%s/%s/temperature/set", t.root(), deviceID)
}
