package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bluelume/bluelume/internal/debounce"
	"github.com/bluelume/bluelume/internal/lamp"
)

// Bridge operation constants.
const (
	// defaultCommandDebounce is the coalescing window for inbound
	// commands, per device and characteristic. Duplicate rapid
	// deliveries (retained-message replay, UI double-submission)
	// produce at most one device mutation per window.
	defaultCommandDebounce = 500 * time.Millisecond

	// defaultManufacturer is the manufacturer tag in discovery documents.
	defaultManufacturer = "Bluelume"

	// Defaults substituted for malformed command payloads. Commands
	// never fail on bad input; they proceed with these values.
	defaultBrightness        = 100
	defaultTemperatureMireds = MaxMireds
)

// MQTTClient is the interface for MQTT operations.
// This allows mocking in tests and flexibility in implementation.
type MQTTClient interface {
	// Publish sends a message to a topic.
	Publish(topic string, payload []byte, qos byte, retained bool) error

	// Subscribe registers a handler for a topic pattern.
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error

	// IsConnected returns true if connected to the broker.
	IsConnected() bool

	// Disconnect closes the connection gracefully.
	Disconnect(quiesce uint)
}

// connectNotifier is optionally implemented by MQTT clients that can
// report broker reconnects, so the bridge can re-publish retained state
// after the session is restored.
type connectNotifier interface {
	SetOnConnect(callback func())
}

// Device is the bulb-facing surface the bridge drives. It is satisfied
// by *lamp.Lamp.
type Device interface {
	// ID returns the stable transport identifier.
	ID() string

	// Name returns the advertised name, or empty if never connected.
	Name() string

	// Cached state accessors; never trigger I/O.
	On() lamp.Power
	Brightness() lamp.Level
	Temperature() lamp.Level

	// Setters return a Future completed when the write has been
	// confirmed or has definitively failed.
	SetOn(on bool) *lamp.Future
	SetBrightness(value int) *lamp.Future
	SetTemperature(value int) *lamp.Future

	// Subscribe registers a callback for peripheral-pushed
	// notifications on a characteristic.
	Subscribe(characteristic string, callback func(value int))
}

// Logger is the optional structured logger interface.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Options holds configuration for creating a bridge.
type Options struct {
	// MQTTClient is the broker client. Required, already connected.
	MQTTClient MQTTClient

	// Devices are the managed bulbs, wired in Start order.
	Devices []Device

	// TopicRoot overrides the default topic namespace.
	TopicRoot string

	// DiscoveryPrefix overrides the default discovery topic prefix.
	DiscoveryPrefix string

	// Manufacturer overrides the manufacturer tag in discovery documents.
	Manufacturer string

	// CommandDebounce overrides the inbound command coalescing window.
	CommandDebounce time.Duration

	// Logger is optional structured logger.
	Logger Logger
}

// Bridge maps bulb state to retained broker topics and inbound commands
// to bulb mutations. It owns the broker-facing side of the system:
// topic scheme, command debouncing, state relay, availability and
// discovery publication.
//
// Thread Safety: All methods are safe for concurrent use.
type Bridge struct {
	mqtt            MQTTClient
	devices         []Device
	topics          Topics
	discoveryPrefix string
	manufacturer    string
	window          time.Duration

	stopOnce sync.Once

	logger   Logger
	loggerMu sync.RWMutex
}

// New creates a bridge. Call Start to begin operation.
func New(opts Options) (*Bridge, error) {
	if opts.MQTTClient == nil {
		return nil, fmt.Errorf("MQTT client is required")
	}
	if opts.DiscoveryPrefix == "" {
		opts.DiscoveryPrefix = DefaultDiscoveryPrefix
	}
	if opts.Manufacturer == "" {
		opts.Manufacturer = defaultManufacturer
	}
	if opts.CommandDebounce == 0 {
		opts.CommandDebounce = defaultCommandDebounce
	}

	return &Bridge{
		mqtt:            opts.MQTTClient,
		devices:         opts.Devices,
		topics:          Topics{Root: opts.TopicRoot},
		discoveryPrefix: opts.DiscoveryPrefix,
		manufacturer:    opts.Manufacturer,
		window:          opts.CommandDebounce,
		logger:          opts.Logger,
	}, nil
}

// Start wires up the bridge. It publishes availability=online first,
// then for each device in order: subscribes to its command topics,
// registers the state relay, publishes a retained snapshot of the
// cached state and finally emits the retained discovery document.
//
// Availability is always published before any discovery document so the
// hub never configures an entity it would immediately mark unavailable.
func (b *Bridge) Start(ctx context.Context) error {
	if n, ok := b.mqtt.(connectNotifier); ok {
		n.SetOnConnect(b.handleBrokerReconnect)
	}

	if err := b.mqtt.Publish(b.topics.Availability(), []byte(PayloadOnline), 1, true); err != nil {
		return fmt.Errorf("publish availability: %w", err)
	}

	for _, dev := range b.devices {
		if err := b.wireCommands(dev); err != nil {
			return err
		}
		b.wireStateRelay(dev)
		b.PublishSnapshot(dev)
		if err := b.publishDiscovery(dev); err != nil {
			return err
		}
	}

	b.logInfo("bridge started", "devices", len(b.devices))
	return nil
}

// Stop publishes availability=offline and closes the broker connection.
// The offline publication always precedes the close so subscribers see
// the bridge go away before the session drops. Idempotent.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		if b.mqtt.IsConnected() {
			if err := b.mqtt.Publish(b.topics.Availability(), []byte(PayloadOffline), 1, true); err != nil {
				b.logError("failed to publish offline availability", err)
			}
		}
		b.mqtt.Disconnect(250)
		b.logInfo("bridge stopped")
	})
}

// handleBrokerReconnect restores retained topics after the broker
// session is re-established. The MQTT client restores subscriptions
// itself; the bridge re-publishes availability, state snapshots and
// discovery documents in the same order as Start.
func (b *Bridge) handleBrokerReconnect() {
	b.logInfo("broker session restored, re-publishing retained topics")

	if err := b.mqtt.Publish(b.topics.Availability(), []byte(PayloadOnline), 1, true); err != nil {
		b.logError("failed to re-publish availability", err)
		return
	}
	for _, dev := range b.devices {
		b.PublishSnapshot(dev)
		if err := b.publishDiscovery(dev); err != nil {
			b.logError("failed to re-publish discovery", err)
		}
	}
}

// wireCommands subscribes to the device's three command topics. Each
// handler is individually debounced so rapid duplicates collapse into
// one mutation.
func (b *Bridge) wireCommands(dev Device) error {
	id := dev.ID()

	powerDeb := debounce.New(b.window)
	if err := b.mqtt.Subscribe(b.topics.LightCommand(id), 1, func(topic string, payload []byte) {
		if !powerDeb.Do(func() { b.commandPower(dev, payload) }) {
			b.logDebug("command coalesced", "topic", topic)
		}
	}); err != nil {
		return fmt.Errorf("subscribe power commands for %s: %w", id, err)
	}

	brightDeb := debounce.New(b.window)
	if err := b.mqtt.Subscribe(b.topics.BrightnessCommand(id), 1, func(topic string, payload []byte) {
		if !brightDeb.Do(func() { b.commandBrightness(dev, payload) }) {
			b.logDebug("command coalesced", "topic", topic)
		}
	}); err != nil {
		return fmt.Errorf("subscribe brightness commands for %s: %w", id, err)
	}

	tempDeb := debounce.New(b.window)
	if err := b.mqtt.Subscribe(b.topics.TemperatureCommand(id), 1, func(topic string, payload []byte) {
		if !tempDeb.Do(func() { b.commandTemperature(dev, payload) }) {
			b.logDebug("command coalesced", "topic", topic)
		}
	}); err != nil {
		return fmt.Errorf("subscribe temperature commands for %s: %w", id, err)
	}

	return nil
}

// commandPower handles a power command. The payload is the literal
// "ON" or "OFF"; anything else is treated as "OFF".
func (b *Bridge) commandPower(dev Device, payload []byte) {
	text := string(payload)
	on := text == PayloadOn
	if !on && text != PayloadOff {
		b.logWarn("unrecognised power payload, treating as OFF",
			"device", dev.ID(), "payload", text)
	}
	b.awaitCommand(dev.ID(), "power", dev.SetOn(on))
}

// commandBrightness handles a brightness command. The payload is a
// base-10 integer on the bulb's 1–100 scale; a malformed payload
// substitutes the default. Clamping is the device layer's job.
func (b *Bridge) commandBrightness(dev Device, payload []byte) {
	value, err := strconv.Atoi(strings.TrimSpace(string(payload)))
	if err != nil {
		b.logWarn("malformed brightness payload, using default",
			"device", dev.ID(), "payload", string(payload), "default", defaultBrightness)
		value = defaultBrightness
	}
	b.awaitCommand(dev.ID(), "brightness", dev.SetBrightness(value))
}

// commandTemperature handles a colour temperature command. The payload
// is a base-10 mired value; a malformed payload substitutes the warmest
// setting. Clamping of the converted percent is the device layer's job.
func (b *Bridge) commandTemperature(dev Device, payload []byte) {
	mireds, err := strconv.Atoi(strings.TrimSpace(string(payload)))
	if err != nil {
		b.logWarn("malformed temperature payload, using default",
			"device", dev.ID(), "payload", string(payload), "default", defaultTemperatureMireds)
		mireds = defaultTemperatureMireds
	}
	b.awaitCommand(dev.ID(), "temperature", dev.SetTemperature(MiredsToPercent(mireds)))
}

// awaitCommand logs the eventual outcome of a command without blocking
// the broker message handler. A failed command is observable only as a
// missing state-topic update plus this log line; errors never propagate
// back into the dispatcher.
func (b *Bridge) awaitCommand(deviceID, characteristic string, fut *lamp.Future) {
	go func() {
		if err := fut.Err(); err != nil {
			b.logError("command failed", err,
				"device", deviceID, "characteristic", characteristic)
		}
	}()
}

// wireStateRelay registers subscribers that relay peripheral-pushed
// notifications to the matching retained state topics.
func (b *Bridge) wireStateRelay(dev Device) {
	id := dev.ID()

	dev.Subscribe(lamp.CharPower, func(value int) {
		payload := PayloadOff
		if value != 0 {
			payload = PayloadOn
		}
		b.publishState(b.topics.LightState(id), payload)
	})
	dev.Subscribe(lamp.CharBrightness, func(value int) {
		b.publishState(b.topics.BrightnessState(id), strconv.Itoa(value))
	})
	dev.Subscribe(lamp.CharTemperature, func(value int) {
		b.publishState(b.topics.TemperatureState(id), strconv.Itoa(PercentToMireds(value)))
	})
}

// PublishSnapshot publishes the device's current cached state to its
// state topics. Unknown values are skipped; the retained topics keep
// whatever the broker last saw until a real value arrives. Called
// during Start and on broker reconnect; callers may also invoke it
// after refreshing a device that connected late.
func (b *Bridge) PublishSnapshot(dev Device) {
	id := dev.ID()

	switch dev.On() {
	case lamp.PowerOn:
		b.publishState(b.topics.LightState(id), PayloadOn)
	case lamp.PowerOff:
		b.publishState(b.topics.LightState(id), PayloadOff)
	case lamp.PowerUnknown:
		b.logDebug("power unknown, skipping snapshot", "device", id)
	}

	if v := dev.Brightness(); v.Known() {
		b.publishState(b.topics.BrightnessState(id), strconv.Itoa(v.Value()))
	}
	if v := dev.Temperature(); v.Known() {
		b.publishState(b.topics.TemperatureState(id), strconv.Itoa(PercentToMireds(v.Value())))
	}
}

// publishDiscovery emits the retained discovery document for a device.
func (b *Bridge) publishDiscovery(dev Device) error {
	doc := newDiscoveryDocument(b.topics, b.manufacturer, dev.ID(), dev.Name())

	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal discovery for %s: %w", dev.ID(), err)
	}

	topic := discoveryTopic(b.discoveryPrefix, dev.ID())
	if err := b.mqtt.Publish(topic, payload, 1, true); err != nil {
		return fmt.Errorf("publish discovery for %s: %w", dev.ID(), err)
	}

	b.logInfo("published discovery", "device", dev.ID(), "topic", topic)
	return nil
}

// publishState publishes one retained state payload, logging failures.
func (b *Bridge) publishState(topic, payload string) {
	if err := b.mqtt.Publish(topic, []byte(payload), 1, true); err != nil {
		b.logError("failed to publish state", err, "topic", topic)
	}
}

// SetLogger sets the logger for the bridge.
func (b *Bridge) SetLogger(logger Logger) {
	b.loggerMu.Lock()
	b.logger = logger
	b.loggerMu.Unlock()
}

func (b *Bridge) getLogger() Logger {
	b.loggerMu.RLock()
	defer b.loggerMu.RUnlock()
	return b.logger
}

func (b *Bridge) logDebug(msg string, keysAndValues ...any) {
	if logger := b.getLogger(); logger != nil {
		logger.Debug(msg, keysAndValues...)
	}
}

func (b *Bridge) logInfo(msg string, keysAndValues ...any) {
	if logger := b.getLogger(); logger != nil {
		logger.Info(msg, keysAndValues...)
	}
}

func (b *Bridge) logWarn(msg string, keysAndValues ...any) {
	if logger := b.getLogger(); logger != nil {
		logger.Warn(msg, keysAndValues...)
	}
}

func (b *Bridge) logError(msg string, err error, keysAndValues ...any) {
	if logger := b.getLogger(); logger != nil {
		logger.Error(msg, append([]any{"error", err}, keysAndValues...)...)
	}
}
