// Package mqtt provides MQTT client connectivity for Bluelume.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for availability detection
//   - Connection health monitoring
//
// # Architecture
//
// Bluelume uses MQTT as the boundary between BLE lamps and the wider
// home-automation network. The broker (typically Mosquitto) decouples
// consumers such as Home Assistant from the BLE specifics.
//
//	BLE Lamps ↔ Bluelume ↔ MQTT Broker ↔ Home Assistant
//
// Topic construction lives with the bridge; this package only moves
// bytes. The will registered at connect time points at the bridge's
// availability topic so a crash flips the lights to unavailable
// without any cooperation from the dying process.
//
// # Security Considerations
//
//   - TLS is required for production deployments (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//   - Message payloads are not encrypted beyond TLS transport
//
// # Usage
//
//	will := mqtt.Will{Topic: "bluelume/availability", Payload: "offline"}
//	client, err := mqtt.ConnectWithRetry(ctx, cfg.MQTT, will, logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.Subscribe("bluelume/+/light/switch", 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("Received: %s = %s", topic, payload)
//	        return nil
//	    })
//
//	client.Publish("bluelume/availability", []byte("online"), 1, true)
package mqtt
