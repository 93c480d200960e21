// Bluelume - BLE smart light to MQTT bridge
//
// This is the main entry point for the Bluelume bridge. It connects a
// set of BLE smart bulbs to an MQTT broker so hubs like Home Assistant
// can drive them over plain retained topics:
//   - Per-bulb state and command topics for power, brightness and
//     colour temperature
//   - A shared availability topic backed by the broker's Last Will
//   - Retained discovery documents for automatic hub configuration
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/bluelume/bluelume/internal/ble"
	"github.com/bluelume/bluelume/internal/bridge"
	"github.com/bluelume/bluelume/internal/infrastructure/config"
	"github.com/bluelume/bluelume/internal/infrastructure/influxdb"
	"github.com/bluelume/bluelume/internal/infrastructure/logging"
	"github.com/bluelume/bluelume/internal/infrastructure/mqtt"
	"github.com/bluelume/bluelume/internal/lamp"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// lampMonitorInterval is how often disconnected lamps are re-tried and
// connectivity transitions are recorded.
const lampMonitorInterval = 30 * time.Second

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Bluelume",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Connect to the MQTT broker. The bridge is useless without it, so
	// this retries until the broker appears or we are told to stop. The
	// will points at the availability topic so a crash marks every
	// bridged light unavailable.
	topics := bridge.Topics{Root: cfg.Bridge.TopicRoot}
	will := mqtt.Will{Topic: topics.Availability(), Payload: bridge.PayloadOffline}

	mqttClient, err := mqtt.ConnectWithRetry(ctx, cfg.MQTT, will, log)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	mqttClient.SetLogger(log)
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	// Connect to InfluxDB (optional state-history sink)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
	} else {
		log.Info("InfluxDB disabled")
	}

	// Bring up the BLE transport
	adapter := ble.NewTinyGoAdapter()
	if err := adapter.Enable(); err != nil {
		return fmt.Errorf("enabling BLE adapter: %w", err)
	}
	log.Info("BLE adapter enabled")

	// With no configured devices, run a discovery scan and exit. The
	// logged addresses go straight into the config allow-list.
	if len(cfg.BLE.Devices) == 0 {
		log.Info("no devices configured, scanning for peripherals",
			"timeout", cfg.GetScanTimeout().String())
		return runDiscovery(ctx, cfg, adapter, log)
	}

	// Build one Lamp per configured address. All lamps share the connect
	// gate so the adapter never runs overlapping connection attempts.
	gate := ble.NewConnectGate()
	lampOpts := lamp.Options{
		SettleDelay:    cfg.GetSettleDelay(),
		ReadSpacing:    cfg.GetReadSpacing(),
		RetryBudget:    cfg.BLE.RetryBudget,
		NotifyDebounce: cfg.GetNotifyDebounce(),
	}

	lamps := make([]*lamp.Lamp, 0, len(cfg.BLE.Devices))
	for _, address := range cfg.BLE.Devices {
		l := lamp.New(address, adapter, gate, lampOpts)
		l.SetLogger(log.With("component", "lamp"))
		lamps = append(lamps, l)
		defer func() {
			if closeErr := l.Close(); closeErr != nil {
				log.Error("error closing lamp", "lamp", l.ID(), "error", closeErr)
			}
		}()
	}

	// Initial connect and cache fill, in parallel. The gate serialises
	// the radio work; a lamp that cannot be reached stays disconnected
	// and is retried by the monitor loop.
	var wg sync.WaitGroup
	for _, l := range lamps {
		wg.Add(1)
		go func(l *lamp.Lamp) {
			defer wg.Done()
			l.Refresh(ctx)
		}(l)
	}
	wg.Wait()

	connected := 0
	for _, l := range lamps {
		if l.State() == lamp.StateSubscribed {
			connected++
		}
	}
	log.Info("lamp startup complete", "configured", len(lamps), "connected", connected)

	// Record state history if the sink is configured
	if influxClient != nil {
		for _, l := range lamps {
			wireStateHistory(l, influxClient)
		}
	}

	// Create and start the bridge
	devices := make([]bridge.Device, len(lamps))
	for i, l := range lamps {
		devices[i] = l
	}

	mqttAdapter := &mqttBridgeAdapter{client: mqttClient}

	brg, err := bridge.New(bridge.Options{
		MQTTClient:      mqttAdapter,
		Devices:         devices,
		TopicRoot:       cfg.Bridge.TopicRoot,
		DiscoveryPrefix: cfg.Bridge.DiscoveryPrefix,
		Manufacturer:    cfg.Bridge.Manufacturer,
		CommandDebounce: cfg.GetCommandDebounce(),
		Logger:          log.With("component", "bridge"),
	})
	if err != nil {
		return fmt.Errorf("creating bridge: %w", err)
	}

	if err := brg.Start(ctx); err != nil {
		return fmt.Errorf("starting bridge: %w", err)
	}
	defer func() {
		log.Info("stopping bridge")
		brg.Stop()
	}()
	log.Info("bridge started", "devices", len(devices))

	// Keep retrying lamps that dropped off, and record connectivity
	// transitions while we are at it.
	go monitorLamps(ctx, lamps, brg, influxClient, log)

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred cleanup runs in reverse order:
	// 1. Bridge (publishes availability=offline)
	// 2. Lamps (explicit BLE disconnects)
	// 3. InfluxDB (if enabled)
	// 4. MQTT

	log.Info("Bluelume stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses BLUELUME_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("BLUELUME_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// runDiscovery scans for BLE peripherals and logs each one found. This
// is the commissioning aid: run without configured devices, note the
// addresses of the bulbs, add them to the allow-list and restart.
func runDiscovery(ctx context.Context, cfg *config.Config, adapter ble.Adapter, log *logging.Logger) error {
	scanCtx, cancel := context.WithTimeout(ctx, cfg.GetScanTimeout())
	defer cancel()

	seen := make(map[string]bool)
	err := adapter.Scan(scanCtx, func(p ble.Peripheral) {
		if seen[p.Address] {
			return
		}
		seen[p.Address] = true
		log.Info("discovered peripheral",
			"address", p.Address,
			"name", p.Name,
			"rssi", p.RSSI,
		)
	})
	if err != nil && ctx.Err() == nil && scanCtx.Err() == nil {
		return fmt.Errorf("scanning: %w", err)
	}

	log.Info("scan finished", "peripherals", len(seen))
	return nil
}

// wireStateHistory subscribes to a lamp's characteristic notifications
// and records every change as a time-series point.
func wireStateHistory(l *lamp.Lamp, sink *influxdb.Client) {
	id := l.ID()
	for _, name := range lamp.Characteristics {
		l.Subscribe(name, func(value int) {
			sink.WriteStateChange(id, name, value)
		})
	}
}

// monitorLamps periodically re-tries disconnected lamps and records
// connectivity transitions. A lamp that comes back gets a fresh cache
// read and a new retained snapshot so the broker state catches up.
func monitorLamps(ctx context.Context, lamps []*lamp.Lamp, brg *bridge.Bridge, sink *influxdb.Client, log *logging.Logger) {
	ticker := time.NewTicker(lampMonitorInterval)
	defer ticker.Stop()

	last := make(map[string]lamp.ConnectionState, len(lamps))
	for _, l := range lamps {
		last[l.ID()] = l.State()
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		for _, l := range lamps {
			state := l.State()
			prev := last[l.ID()]
			if state != prev {
				log.Info("lamp connectivity changed",
					"lamp", l.ID(), "from", prev.String(), "to", state.String())
				if sink != nil {
					sink.WriteConnectionEvent(l.ID(), state == lamp.StateSubscribed)
				}
				last[l.ID()] = state
			}

			if state != lamp.StateDisconnected {
				continue
			}

			l.Refresh(ctx)
			if l.State() == lamp.StateSubscribed {
				log.Info("lamp reconnected", "lamp", l.ID())
				brg.PublishSnapshot(l)
				if sink != nil {
					sink.WriteConnectionEvent(l.ID(), true)
				}
				last[l.ID()] = lamp.StateSubscribed
			}
		}
	}
}

// mqttBridgeAdapter adapts the infrastructure MQTT client to the
// bridge's MQTTClient interface. The primary difference is the
// Subscribe handler signature:
// - Infrastructure mqtt: func(topic, payload []byte) error
// - Bridge expects: func(topic, payload []byte)
type mqttBridgeAdapter struct {
	client *mqtt.Client
}

// Publish implements bridge.MQTTClient.
func (a *mqttBridgeAdapter) Publish(topic string, payload []byte, qos byte, retained bool) error {
	return a.client.Publish(topic, payload, qos, retained)
}

// Subscribe implements bridge.MQTTClient.
func (a *mqttBridgeAdapter) Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error {
	// Wrap the void handler to return nil error (bridge handlers don't return errors)
	return a.client.Subscribe(topic, qos, func(t string, p []byte) error {
		handler(t, p)
		return nil
	})
}

// IsConnected implements bridge.MQTTClient.
func (a *mqttBridgeAdapter) IsConnected() bool {
	return a.client.IsConnected()
}

// Disconnect implements bridge.MQTTClient.
// The MQTT client lifecycle is owned by run's defer chain, so the
// bridge's disconnect is a no-op here; Stop still publishes the offline
// availability payload through Publish before this is called.
func (a *mqttBridgeAdapter) Disconnect(_ uint) {}

// SetOnConnect forwards broker reconnect notifications so the bridge
// can re-publish retained topics after a session is restored.
func (a *mqttBridgeAdapter) SetOnConnect(callback func()) {
	a.client.SetOnConnect(callback)
}
