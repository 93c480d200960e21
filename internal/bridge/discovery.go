package bridge

import (
	"fmt"
	"strings"
)

// DefaultDiscoveryPrefix is the topic prefix under which retained
// discovery documents are published, matching the Home Assistant MQTT
// discovery convention.
const DefaultDiscoveryPrefix = "homeassistant"

// brightnessScale is the maximum brightness value on the wire; the
// bulbs use a 1–100 scale rather than the hub default of 255.
const brightnessScale = 100

// discoveryDocument is the retained JSON document that lets a hub
// auto-configure one light entity per bulb.
type discoveryDocument struct {
	Name                   string          `json:"name"`
	UniqueID               string          `json:"unique_id"`
	AvailabilityTopic      string          `json:"availability_topic"`
	StateTopic             string          `json:"state_topic"`
	CommandTopic           string          `json:"command_topic"`
	PayloadOn              string          `json:"payload_on"`
	PayloadOff             string          `json:"payload_off"`
	BrightnessStateTopic   string          `json:"brightness_state_topic"`
	BrightnessCommandTopic string          `json:"brightness_command_topic"`
	BrightnessScale        int             `json:"brightness_scale"`
	ColorTempStateTopic    string          `json:"color_temp_state_topic"`
	ColorTempCommandTopic  string          `json:"color_temp_command_topic"`
	MinMireds              int             `json:"min_mireds"`
	MaxMireds              int             `json:"max_mireds"`
	Device                 discoveryDevice `json:"device"`
}

// discoveryDevice groups entities of one physical bulb in the hub's
// device registry and links them back to the bridge.
type discoveryDevice struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer"`
	ViaDevice    string   `json:"via_device"`
}

// uniqueID derives a stable hub-facing identifier from the transport
// device ID. Colons in transport addresses are stripped so the result
// is safe in topic segments.
func uniqueID(deviceID string) string {
	return "bluelume_" + strings.ReplaceAll(strings.ToLower(deviceID), ":", "")
}

// discoveryTopic returns the retained config topic for a device.
//
// Example: homeassistant/light/bluelume_aabbccddeeff/config
func discoveryTopic(prefix, deviceID string) string {
	return fmt.Sprintf("%s/light/%s/config", prefix, uniqueID(deviceID))
}

// newDiscoveryDocument builds the discovery document for one device.
// The entity name falls back to the device ID until the advertised name
// has been learned.
func newDiscoveryDocument(topics Topics, manufacturer, deviceID, name string) discoveryDocument {
	if name == "" {
		name = deviceID
	}
	return discoveryDocument{
		Name:                   name,
		UniqueID:               uniqueID(deviceID),
		AvailabilityTopic:      topics.Availability(),
		StateTopic:             topics.LightState(deviceID),
		CommandTopic:           topics.LightCommand(deviceID),
		PayloadOn:              PayloadOn,
		PayloadOff:             PayloadOff,
		BrightnessStateTopic:   topics.BrightnessState(deviceID),
		BrightnessCommandTopic: topics.BrightnessCommand(deviceID),
		BrightnessScale:        brightnessScale,
		ColorTempStateTopic:    topics.TemperatureState(deviceID),
		ColorTempCommandTopic:  topics.TemperatureCommand(deviceID),
		MinMireds:              MinMireds,
		MaxMireds:              MaxMireds,
		Device: discoveryDevice{
			Identifiers:  []string{uniqueID(deviceID)},
			Name:         name,
			Manufacturer: manufacturer,
			ViaDevice:    "bluelume-bridge",
		},
	}
}
