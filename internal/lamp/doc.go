// Package lamp manages one BLE smart bulb per Lamp: its connection
// lifecycle, cached state and operation retry envelope.
//
// # Connection lifecycle
//
// A lamp moves through Disconnected → Connecting → Connected
// (characteristics discovered) → Subscribed (notifications armed). An
// unexpected disconnect — one not preceded by Disconnect() — triggers
// exactly one automatic reconnect per event; an explicit Disconnect()
// is terminal until the next Connect().
//
// The battery-powered bulbs drop their link routinely to save power, so
// reconnecting is the normal case, not the exception. Any operation
// interrupted by a drop is re-run after the reconnect, up to a fixed
// retry budget; when the budget is exhausted the operation's Future
// completes with ErrRetriesExhausted.
//
// # State cache
//
// The bulb's power, brightness and colour temperature are cached as
// explicit tri-state values (unknown until first read). Accessors never
// perform I/O and never block: each field is replaced atomically.
//
// # Fan-out
//
// Subscribers registered with Subscribe receive peripheral-pushed
// notifications, debounced per subscriber. Self-initiated reads update
// the cache without waking subscribers, so a Refresh does not spam the
// relay layer unless the bulb itself also notifies.
package lamp
