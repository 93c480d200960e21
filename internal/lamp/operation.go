package lamp

import "sync"

// Future is the caller's handle on an asynchronously executed operation.
//
// The lamp's reconnect machinery may re-run an operation long after the
// caller issued it, so completion is decoupled from the issuing call.
// Every Future is explicitly completed exactly once: with nil on
// success, with the operation's error on failure, or with
// ErrRetriesExhausted when the retry budget runs out. A Future is never
// silently abandoned.
type Future struct {
	once sync.Once
	done chan struct{}
	err  error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// CompletedFuture returns a Future already resolved with err. Useful
// for Device implementations that complete synchronously.
func CompletedFuture(err error) *Future {
	f := newFuture()
	f.complete(err)
	return f
}

// complete resolves the future. Later calls are no-ops.
func (f *Future) complete(err error) {
	f.once.Do(func() {
		f.err = err
		close(f.done)
	})
}

// Done returns a channel closed when the operation has completed.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Err blocks until the operation completes and returns its result.
func (f *Future) Err() error {
	<-f.done
	return f.err
}

// operation is a unit of work with an associated retry budget. It exists
// only while outstanding and is destroyed on success or when the budget
// is exhausted.
type operation struct {
	name   string
	run    func() error
	fut    *Future
	budget int
}
