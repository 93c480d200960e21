package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteStateChange records a lamp characteristic change.
//
// This is the primary method for recording light state history. The
// write is non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - deviceID: BLE address of the lamp (e.g., "aa:bb:cc:dd:ee:ff")
//   - characteristic: Which value changed ("power", "brightness", "temperature")
//   - value: The new value (0/1 for power, 1-100 for levels)
//
// Example:
//
//	client.WriteStateChange("aa:bb:cc:dd:ee:ff", "brightness", 75)
func (c *Client) WriteStateChange(deviceID string, characteristic string, value int) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"lamp_state",
		map[string]string{
			"device_id":      deviceID,
			"characteristic": characteristic,
		},
		map[string]interface{}{
			"value": value,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteConnectionEvent records a lamp connectivity transition.
//
// Used for tracking how often lamps drop their BLE link and how long
// reconnection takes when charted against state history.
func (c *Client) WriteConnectionEvent(deviceID string, connected bool) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"lamp_connectivity",
		map[string]string{
			"device_id": deviceID,
		},
		map[string]interface{}{
			"connected": connected,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for measurements that don't fit the helper methods.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}
