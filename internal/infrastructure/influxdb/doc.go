// Package influxdb provides InfluxDB connectivity for Bluelume.
//
// It wraps the official influxdb-client-go v2 library with Bluelume's
// patterns for connection management, point writing, and health
// monitoring.
//
// # Purpose
//
// This package handles time-series storage for:
//   - Lamp state history (power, brightness, colour temperature)
//   - Connectivity events (BLE drops and reconnections)
//
// It is entirely optional: the bridge runs without it, and every
// write method degrades to a no-op when the client is closed.
//
// # Usage
//
//	cfg := config.InfluxDBConfig{
//	    Enabled: true,
//	    URL:     "http://localhost:8086",
//	    Token:   "your-token",
//	    Org:     "bluelume",
//	    Bucket:  "lamps",
//	}
//
//	client, err := influxdb.Connect(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.WriteStateChange("aa:bb:cc:dd:ee:ff", "brightness", 75)
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write operations are non-blocking and batch errors are delivered via
// the SetOnError callback. Connection and health check errors are
// returned directly.
package influxdb
