package lamp

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bluelume/bluelume/internal/ble"
	"github.com/bluelume/bluelume/internal/debounce"
)

// Default tuning values. The settle delay and read spacing exist because
// the bulb firmware misbehaves when driven faster: the transport signals
// connect completion before the link is usable, and back-to-back reads
// return stale or empty values.
const (
	defaultSettleDelay    = time.Second
	defaultReadSpacing    = 500 * time.Millisecond
	defaultRetryBudget    = 5
	defaultNotifyDebounce = time.Second
)

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Options tunes a Lamp's timing and retry behaviour. Zero fields take
// the defaults above.
type Options struct {
	// SettleDelay is how long to wait after a transport connect before
	// treating the link as usable.
	SettleDelay time.Duration

	// ReadSpacing is the pause between consecutive characteristic reads.
	ReadSpacing time.Duration

	// RetryBudget is the number of times an interrupted operation is
	// re-run across unexpected reconnects before being abandoned.
	RetryBudget int

	// NotifyDebounce is the coalescing window for subscriber callbacks.
	NotifyDebounce time.Duration
}

func (o Options) withDefaults() Options {
	if o.SettleDelay == 0 {
		o.SettleDelay = defaultSettleDelay
	}
	if o.ReadSpacing == 0 {
		o.ReadSpacing = defaultReadSpacing
	}
	if o.RetryBudget == 0 {
		o.RetryBudget = defaultRetryBudget
	}
	if o.NotifyDebounce == 0 {
		o.NotifyDebounce = defaultNotifyDebounce
	}
	return o
}

// Lamp owns one BLE bulb: its connection lifecycle, characteristic
// handles, cached state, operation retry envelope and subscriber fan-out.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - State accessors never block and never see partial writes; the
//     cache is replaced field-by-field with atomics.
//   - Operations run on a per-lamp worker goroutine with a single-slot
//     queue; callers observe completion through the returned Future.
type Lamp struct {
	id      string
	adapter ble.Adapter
	gate    *ble.ConnectGate
	opts    Options

	// Connection lifecycle. connectMu serializes connection attempts for
	// this lamp; the shared gate serializes negotiation across lamps.
	connectMu sync.Mutex
	state     atomic.Int32 // ConnectionState

	mu                 sync.Mutex
	conn               ble.Connection
	connGen            uint64 // bumped per connection; stale disconnect events carry an old value
	chars              map[string]ble.Characteristic
	name               string
	explicitDisconnect bool // consumed exactly once by the disconnect handler

	// Cached device state. power: -1 unknown, 0 off, 1 on.
	// brightness/temperature: 0 unknown, else 1..100.
	power       atomic.Int32
	brightness  atomic.Int32
	temperature atomic.Int32

	// Pending operation and single-slot work queue.
	opMu      sync.Mutex
	pending   *operation
	work      chan *operation
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	subMu       sync.RWMutex
	subscribers map[string][]*subscriber

	logger   Logger
	loggerMu sync.RWMutex
}

// subscriber is one registered callback with its own coalescing window.
type subscriber struct {
	deb *debounce.Debouncer
	fn  func(value int)
}

// New creates a Lamp for the peripheral with the given transport
// address. The gate must be shared by all lamps on the same adapter.
func New(address string, adapter ble.Adapter, gate *ble.ConnectGate, opts Options) *Lamp {
	l := &Lamp{
		id:          address,
		adapter:     adapter,
		gate:        gate,
		opts:        opts.withDefaults(),
		work:        make(chan *operation, 1),
		done:        make(chan struct{}),
		subscribers: make(map[string][]*subscriber),
	}
	l.power.Store(-1)

	l.wg.Add(1)
	go l.worker()

	return l
}

// ID returns the stable transport identifier of the peripheral.
func (l *Lamp) ID() string { return l.id }

// Name returns the advertised name learned at the last successful
// connection, or empty if never connected.
func (l *Lamp) Name() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.name
}

// State returns the current connection lifecycle state.
func (l *Lamp) State() ConnectionState {
	return ConnectionState(l.state.Load())
}

// On returns the cached power state. Never triggers I/O.
func (l *Lamp) On() Power {
	switch l.power.Load() {
	case 0:
		return PowerOff
	case 1:
		return PowerOn
	default:
		return PowerUnknown
	}
}

// Brightness returns the cached brightness. Never triggers I/O.
func (l *Lamp) Brightness() Level {
	v := l.brightness.Load()
	if v == 0 {
		return Level{}
	}
	return LevelOf(int(v))
}

// Temperature returns the cached colour temperature. Never triggers I/O.
func (l *Lamp) Temperature() Level {
	v := l.temperature.Load()
	if v == 0 {
		return Level{}
	}
	return LevelOf(int(v))
}

// Connect brings the lamp to the Subscribed state: transport connect,
// settle delay, characteristic discovery and notification arming.
//
// It is an idempotent no-op when a connection is already up. A failure
// during discovery is not retried here; it surfaces to the caller.
// Connection attempts across all lamps are serialized behind the shared
// gate because the radio cannot negotiate several links at once.
func (l *Lamp) Connect(ctx context.Context) error {
	l.connectMu.Lock()
	defer l.connectMu.Unlock()

	if l.State() != StateDisconnected {
		return nil
	}
	l.state.Store(int32(StateConnecting))

	if err := l.gate.Acquire(ctx); err != nil {
		l.state.Store(int32(StateDisconnected))
		return fmt.Errorf("connect %s: %w", l.id, err)
	}
	defer l.gate.Release()

	conn, err := l.adapter.Connect(ctx, l.id)
	if err != nil {
		l.state.Store(int32(StateDisconnected))
		return fmt.Errorf("connect %s: %w", l.id, err)
	}

	// Each connection gets a fresh generation so disconnect events from
	// torn-down predecessors cannot be mistaken for this link's. Any
	// leftover explicit flag belonged to one of those predecessors.
	l.mu.Lock()
	l.connGen++
	gen := l.connGen
	l.explicitDisconnect = false
	l.mu.Unlock()
	conn.OnDisconnect(func() { l.handleDisconnect(gen) })

	// The transport reports completion before the link is stable; writes
	// issued immediately are lost by the firmware.
	select {
	case <-time.After(l.opts.SettleDelay):
	case <-ctx.Done():
		l.dropConnection(conn)
		return fmt.Errorf("connect %s: %w", l.id, ctx.Err())
	}

	byUUID, err := conn.DiscoverCharacteristics(ble.ServiceUUID, []string{
		ble.PowerCharUUID,
		ble.BrightnessCharUUID,
		ble.TemperatureCharUUID,
	})
	if err != nil {
		l.dropConnection(conn)
		return fmt.Errorf("connect %s: %w", l.id, err)
	}

	chars := map[string]ble.Characteristic{
		CharPower:       byUUID[ble.PowerCharUUID],
		CharBrightness:  byUUID[ble.BrightnessCharUUID],
		CharTemperature: byUUID[ble.TemperatureCharUUID],
	}

	l.mu.Lock()
	l.conn = conn
	l.chars = chars
	if n := conn.Name(); n != "" {
		l.name = n
	}
	l.mu.Unlock()
	l.state.Store(int32(StateConnected))

	// Arm notification delivery for all three characteristics. Only
	// peripheral-pushed notifications reach subscribers; self-initiated
	// reads update the cache silently.
	for name, ch := range chars {
		name := name
		if err := ch.Subscribe(func(data []byte) {
			l.handleNotification(name, data)
		}); err != nil {
			l.dropConnection(conn)
			return fmt.Errorf("connect %s: arm notifications for %s: %w", l.id, name, err)
		}
	}
	l.state.Store(int32(StateSubscribed))

	l.logInfo("connected", "lamp", l.id, "name", l.Name())
	return nil
}

// Disconnect requests an orderly disconnect. The explicit-disconnect
// flag suppresses the automatic reconnect for the resulting transport
// event. Idempotent when already disconnected.
func (l *Lamp) Disconnect() error {
	l.mu.Lock()
	conn := l.conn
	if conn == nil {
		l.mu.Unlock()
		return nil
	}
	l.explicitDisconnect = true
	l.mu.Unlock()

	return conn.Disconnect()
}

// Close disconnects and stops the worker. Any pending operation is
// completed with ErrClosed. Safe to call more than once.
func (l *Lamp) Close() error {
	err := l.Disconnect()

	l.closeOnce.Do(func() { close(l.done) })
	l.wg.Wait()

	l.opMu.Lock()
	op := l.pending
	l.pending = nil
	l.opMu.Unlock()
	if op != nil {
		op.fut.complete(ErrClosed)
	}
	return err
}

// dropConnection tears down a half-established connection without
// triggering the auto-reconnect path. Bumping the generation disarms
// the handler: whether the Disconnect below produces an event or the
// link was already dead and produces none, nothing stays latched for
// the next connection.
func (l *Lamp) dropConnection(conn ble.Connection) {
	l.mu.Lock()
	l.connGen++
	l.conn = nil
	l.chars = nil
	l.mu.Unlock()
	conn.Disconnect()
	l.state.Store(int32(StateDisconnected))
}

// handleDisconnect is the transport disconnect event handler for the
// connection of the given generation. Events from superseded
// connections are dropped. An event with the explicit flag set is a
// requested disconnect and terminal; any other event is unexpected and
// triggers exactly one reconnect, fire-and-forget relative to whatever
// the caller was doing.
func (l *Lamp) handleDisconnect(gen uint64) {
	l.mu.Lock()
	if gen != l.connGen {
		l.mu.Unlock()
		return
	}
	explicit := l.explicitDisconnect
	l.explicitDisconnect = false
	l.conn = nil
	l.chars = nil
	l.mu.Unlock()
	l.state.Store(int32(StateDisconnected))

	if explicit {
		l.logInfo("disconnected", "lamp", l.id)
		return
	}

	l.logWarn("unexpected disconnect, reconnecting", "lamp", l.id)
	go l.reconnect()
}

// reconnect re-establishes the link after an unexpected disconnect and
// re-runs any interrupted operation.
func (l *Lamp) reconnect() {
	if err := l.Connect(context.Background()); err != nil {
		l.logError("reconnect failed", err, "lamp", l.id)
		// Nothing will re-run the parked operation now; complete it so
		// the caller is not left waiting forever.
		l.failPending(err)
		return
	}
	l.retryPending()
}

// failPending completes the parked operation with err, if one exists.
func (l *Lamp) failPending(err error) {
	l.opMu.Lock()
	op := l.pending
	l.pending = nil
	l.opMu.Unlock()
	if op != nil {
		op.fut.complete(err)
	}
}

// retryPending re-queues the pending operation after a successful
// reconnect, consuming one unit of its retry budget. When the budget is
// exhausted the operation is abandoned and its Future completed with
// ErrRetriesExhausted rather than left dangling.
func (l *Lamp) retryPending() {
	l.opMu.Lock()
	op := l.pending
	if op == nil {
		l.opMu.Unlock()
		return
	}
	if op.budget <= 0 {
		l.pending = nil
		l.opMu.Unlock()
		l.logWarn("retry budget exhausted, abandoning operation",
			"lamp", l.id, "op", op.name)
		op.fut.complete(ErrRetriesExhausted)
		return
	}
	op.budget--
	left := op.budget
	l.opMu.Unlock()

	l.logInfo("re-running interrupted operation",
		"lamp", l.id, "op", op.name, "budget_left", left)

	go func() {
		select {
		case l.work <- op:
		case <-l.done:
			op.fut.complete(ErrClosed)
		}
	}()
}

// Run submits an operation to the lamp's worker and returns a Future
// for its completion. The queue has a single slot; submission blocks
// while an earlier operation is still queued.
func (l *Lamp) Run(name string, fn func() error) *Future {
	op := &operation{
		name:   name,
		run:    fn,
		fut:    newFuture(),
		budget: l.opts.RetryBudget,
	}
	select {
	case l.work <- op:
	case <-l.done:
		op.fut.complete(ErrClosed)
	}
	return op.fut
}

// worker executes operations one at a time.
func (l *Lamp) worker() {
	defer l.wg.Done()
	for {
		select {
		case <-l.done:
			return
		case op := <-l.work:
			l.execute(op)
		}
	}
}

// execute runs one operation. An operation that fails while the link is
// down stays pending: the reconnect handler re-runs it. An operation
// that fails on a healthy link is a real failure and completes its
// Future with the error.
func (l *Lamp) execute(op *operation) {
	select {
	case <-op.fut.done:
		// Completed while queued: the op failed on a healthy link just
		// as a reconnect was re-queuing it. The caller has observed the
		// outcome; running it again would repeat the write.
		return
	default:
	}

	l.opMu.Lock()
	if l.pending != nil && l.pending != op {
		// An earlier operation is parked awaiting reconnect and keeps
		// the slot; the link is down, so the newcomer cannot run.
		l.opMu.Unlock()
		op.fut.complete(ErrNotConnected)
		return
	}
	l.pending = op
	l.opMu.Unlock()

	err := op.run()
	if err == nil {
		l.clearPending(op)
		op.fut.complete(nil)
		return
	}

	if l.State() != StateSubscribed {
		l.logWarn("operation interrupted, awaiting reconnect",
			"lamp", l.id, "op", op.name, "error", err)
		return
	}

	l.clearPending(op)
	op.fut.complete(err)
}

// clearPending removes op from the pending slot if it still occupies it.
func (l *Lamp) clearPending(op *operation) {
	l.opMu.Lock()
	if l.pending == op {
		l.pending = nil
	}
	l.opMu.Unlock()
}

// Refresh connects and reads all three characteristics into the cache.
// Reads are spaced out to respect firmware pacing limits. Errors are
// logged and absorbed; on failure the cache keeps its prior values.
func (l *Lamp) Refresh(ctx context.Context) {
	if err := l.Connect(ctx); err != nil {
		l.logError("refresh: connect failed", err, "lamp", l.id)
		return
	}

	fut := l.Run("refresh", func() error {
		for i, name := range Characteristics {
			if i > 0 {
				time.Sleep(l.opts.ReadSpacing)
			}
			if err := l.readCharacteristic(name); err != nil {
				return fmt.Errorf("read %s: %w", name, err)
			}
		}
		return nil
	})

	if err := fut.Err(); err != nil {
		l.logError("refresh failed", err, "lamp", l.id)
	}
}

// SetOn powers the lamp on or off.
func (l *Lamp) SetOn(on bool) *Future {
	var raw byte
	if on {
		raw = 1
	}
	return l.setCharacteristic(CharPower, raw, false)
}

// SetBrightness sets the brightness, clamped into [1,100].
func (l *Lamp) SetBrightness(v int) *Future {
	return l.setCharacteristic(CharBrightness, byte(Clamp(v)), false)
}

// SetTemperature sets the colour temperature percent, clamped into [1,100].
func (l *Lamp) SetTemperature(v int) *Future {
	return l.setCharacteristic(CharTemperature, byte(Clamp(v)), false)
}

// setCharacteristic writes rawValue and re-reads the characteristic to
// capture the state the firmware actually applied, which may differ
// from what was written.
func (l *Lamp) setCharacteristic(name string, rawValue byte, withoutResponse bool) *Future {
	if err := l.Connect(context.Background()); err != nil {
		fut := newFuture()
		fut.complete(err)
		return fut
	}

	return l.Run("set "+name, func() error {
		prevBrightness := l.Brightness()

		ch, err := l.characteristic(name)
		if err != nil {
			return err
		}
		if err := ch.Write([]byte{rawValue}, withoutResponse); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
		if err := l.readCharacteristic(name); err != nil {
			return fmt.Errorf("confirm %s: %w", name, err)
		}

		// Powering on from minimum brightness makes the firmware pick
		// its own brightness default, outside our control. Re-read it
		// and tell brightness subscribers, since no notification comes.
		if name == CharPower && prevBrightness.Known() && prevBrightness.Value() <= MinLevel {
			if err := l.readCharacteristic(CharBrightness); err != nil {
				return fmt.Errorf("re-read brightness: %w", err)
			}
			l.notifySubscribers(CharBrightness, int(l.brightness.Load()))
		}
		return nil
	})
}

// Subscribe registers a callback for peripheral-pushed notifications on
// the named characteristic. Each callback has its own coalescing window
// so notification bursts collapse into one invocation. For power the
// value is 0 or 1; for brightness and temperature it is 1..100.
func (l *Lamp) Subscribe(name string, callback func(value int)) {
	sub := &subscriber{
		deb: debounce.New(l.opts.NotifyDebounce),
		fn:  callback,
	}
	l.subMu.Lock()
	l.subscribers[name] = append(l.subscribers[name], sub)
	l.subMu.Unlock()
}

// handleNotification processes a peripheral-pushed value: update the
// cache, then fan out to subscribers.
func (l *Lamp) handleNotification(name string, data []byte) {
	if len(data) == 0 {
		return
	}
	value := l.storeValue(name, int(data[0]))
	l.notifySubscribers(name, value)
}

func (l *Lamp) notifySubscribers(name string, value int) {
	l.subMu.RLock()
	subs := l.subscribers[name]
	l.subMu.RUnlock()

	for _, s := range subs {
		s.deb.Do(func() { s.fn(value) })
	}
}

// storeValue updates the cached value for a characteristic and returns
// the stored form. Brightness and temperature are clamped into [1,100];
// the firmware reports 0 for brightness when the lamp is powered off.
func (l *Lamp) storeValue(name string, raw int) int {
	switch name {
	case CharPower:
		if raw == 0 {
			l.power.Store(0)
			return 0
		}
		l.power.Store(1)
		return 1
	case CharBrightness:
		v := Clamp(raw)
		l.brightness.Store(int32(v))
		return v
	case CharTemperature:
		v := Clamp(raw)
		l.temperature.Store(int32(v))
		return v
	default:
		return raw
	}
}

// readCharacteristic reads one characteristic and updates the cache
// without notifying subscribers.
func (l *Lamp) readCharacteristic(name string) error {
	ch, err := l.characteristic(name)
	if err != nil {
		return err
	}
	data, err := ch.Read()
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return fmt.Errorf("%s: empty read", name)
	}
	l.storeValue(name, int(data[0]))
	return nil
}

// characteristic returns the live handle for a characteristic name.
func (l *Lamp) characteristic(name string) (ble.Characteristic, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.chars == nil {
		return nil, ErrNotConnected
	}
	ch, ok := l.chars[name]
	if !ok {
		return nil, fmt.Errorf("%w: no characteristic %s", ErrNotConnected, name)
	}
	return ch, nil
}

// SetLogger sets the logger for this lamp.
func (l *Lamp) SetLogger(logger Logger) {
	l.loggerMu.Lock()
	l.logger = logger
	l.loggerMu.Unlock()
}

func (l *Lamp) getLogger() Logger {
	l.loggerMu.RLock()
	defer l.loggerMu.RUnlock()
	return l.logger
}

func (l *Lamp) logInfo(msg string, keysAndValues ...any) {
	if logger := l.getLogger(); logger != nil {
		logger.Info(msg, keysAndValues...)
	}
}

func (l *Lamp) logWarn(msg string, keysAndValues ...any) {
	if logger := l.getLogger(); logger != nil {
		logger.Warn(msg, keysAndValues...)
	}
}

func (l *Lamp) logError(msg string, err error, keysAndValues ...any) {
	if logger := l.getLogger(); logger != nil {
		logger.Error(msg, append([]any{"error", err}, keysAndValues...)...)
	}
}
