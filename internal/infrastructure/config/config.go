package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Bluelume.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	MQTT     MQTTConfig     `yaml:"mqtt"`
	BLE      BLEConfig      `yaml:"ble"`
	Bridge   BridgeConfig   `yaml:"bridge"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
// MaxAttempts of 0 means unlimited; the startup connection always
// retries indefinitely regardless.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// BLEConfig contains BLE transport and device settings.
type BLEConfig struct {
	// Devices is the allow-list of peripheral addresses to manage.
	// Empty means discovery/logging mode: scan and log, manage nothing.
	Devices []string `yaml:"devices"`

	// ScanTimeout bounds a discovery scan, in seconds.
	ScanTimeout int `yaml:"scan_timeout"`

	// SettleDelay is the post-connect settle time in milliseconds.
	// 0 uses the built-in default.
	SettleDelay int `yaml:"settle_delay"`

	// ReadSpacing is the pause between characteristic reads in
	// milliseconds. 0 uses the built-in default.
	ReadSpacing int `yaml:"read_spacing"`

	// RetryBudget is the per-operation reconnect retry budget.
	// 0 uses the built-in default.
	RetryBudget int `yaml:"retry_budget"`

	// NotifyDebounce is the notification coalescing window in
	// milliseconds. 0 uses the built-in default.
	NotifyDebounce int `yaml:"notify_debounce"`
}

// BridgeConfig contains topic scheme and dispatch settings.
type BridgeConfig struct {
	// TopicRoot is the namespace prefix for all bridge topics.
	TopicRoot string `yaml:"topic_root"`

	// DiscoveryPrefix is the hub discovery topic prefix.
	DiscoveryPrefix string `yaml:"discovery_prefix"`

	// Manufacturer is the manufacturer tag in discovery documents.
	Manufacturer string `yaml:"manufacturer"`

	// CommandDebounce is the inbound command coalescing window in
	// milliseconds. 0 uses the built-in default.
	CommandDebounce int `yaml:"command_debounce"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: BLUELUME_SECTION_KEY
// For example: BLUELUME_MQTT_HOST, BLUELUME_INFLUXDB_TOKEN
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	// Start with defaults
	cfg := defaultConfig()

	// Read and parse YAML file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "bluelume",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		BLE: BLEConfig{
			ScanTimeout: 30,
		},
		Bridge: BridgeConfig{
			TopicRoot:       "bluelume",
			DiscoveryPrefix: "homeassistant",
			Manufacturer:    "Bluelume",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: BLUELUME_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// MQTT
	if v := os.Getenv("BLUELUME_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("BLUELUME_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("BLUELUME_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// BLE device allow-list, comma-separated
	if v := os.Getenv("BLUELUME_BLE_DEVICES"); v != "" {
		var devices []string
		for _, d := range strings.Split(v, ",") {
			if d = strings.TrimSpace(d); d != "" {
				devices = append(devices, d)
			}
		}
		cfg.BLE.Devices = devices
	}

	// Bridge
	if v := os.Getenv("BLUELUME_BRIDGE_TOPIC_ROOT"); v != "" {
		cfg.Bridge.TopicRoot = v
	}

	// InfluxDB
	if v := os.Getenv("BLUELUME_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Logging
	if v := os.Getenv("BLUELUME_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// MQTT validation
	if c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required")
	}
	if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	// Bridge validation
	if c.Bridge.TopicRoot == "" {
		errs = append(errs, "bridge.topic_root is required")
	}
	if strings.ContainsAny(c.Bridge.TopicRoot, "#+") {
		errs = append(errs, "bridge.topic_root must not contain MQTT wildcards")
	}

	// InfluxDB validation: only when enabled
	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Token == "" {
			errs = append(errs, "influxdb.token is required when influxdb is enabled (set BLUELUME_INFLUXDB_TOKEN)")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetSettleDelay returns the BLE settle delay as a Duration, or zero to
// use the device layer default.
func (c *Config) GetSettleDelay() time.Duration {
	return time.Duration(c.BLE.SettleDelay) * time.Millisecond
}

// GetReadSpacing returns the BLE read spacing as a Duration, or zero to
// use the device layer default.
func (c *Config) GetReadSpacing() time.Duration {
	return time.Duration(c.BLE.ReadSpacing) * time.Millisecond
}

// GetNotifyDebounce returns the notification coalescing window as a
// Duration, or zero to use the device layer default.
func (c *Config) GetNotifyDebounce() time.Duration {
	return time.Duration(c.BLE.NotifyDebounce) * time.Millisecond
}

// GetScanTimeout returns the BLE scan timeout as a Duration.
func (c *Config) GetScanTimeout() time.Duration {
	return time.Duration(c.BLE.ScanTimeout) * time.Second
}

// GetCommandDebounce returns the command coalescing window as a
// Duration, or zero to use the bridge default.
func (c *Config) GetCommandDebounce() time.Duration {
	return time.Duration(c.Bridge.CommandDebounce) * time.Millisecond
}
