// Package bridge translates between BLE bulb state and MQTT topics.
//
// The bridge owns the broker side of the system: the deterministic topic
// scheme, inbound command dispatch with per-characteristic debouncing,
// the state relay from bulb notifications to retained state topics, the
// shared availability topic and the retained discovery documents that
// let a home-automation hub auto-configure a light entity per bulb.
//
// Colour temperature crosses the bridge in mireds (reciprocal Kelvin);
// the bulbs speak a 1–100 percent scale. The conversion lives in
// mireds.go and is applied at the boundary in both directions.
package bridge
