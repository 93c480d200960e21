package ble

import "context"

// ConnectGate serializes connection negotiations across devices.
//
// The radio hardware has a practical ceiling on simultaneous connection
// negotiations; concurrent attempts fail in undefined ways at the HCI
// level. Every lamp acquires the gate before issuing a transport connect
// and releases it once the link is settled.
//
// Waiters are granted the gate in request order: blocked channel sends
// are queued FIFO by the runtime.
type ConnectGate struct {
	ch chan struct{}
}

// NewConnectGate creates a gate admitting one connection attempt at a time.
func NewConnectGate() *ConnectGate {
	return &ConnectGate{ch: make(chan struct{}, 1)}
}

// Acquire blocks until the gate is granted or ctx is cancelled.
func (g *ConnectGate) Acquire(ctx context.Context) error {
	select {
	case g.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release returns the gate. Must be called exactly once per successful
// Acquire.
func (g *ConnectGate) Release() {
	<-g.ch
}
