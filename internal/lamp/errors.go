package lamp

import "errors"

// Domain-specific errors for lamp operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrRetriesExhausted is returned through an operation's Future when
	// the reconnect retry budget reaches zero. The operation is
	// abandoned; the device may or may not have applied it.
	ErrRetriesExhausted = errors.New("lamp: operation retries exhausted")

	// ErrNotConnected is returned when an operation runs against a lamp
	// whose link is down.
	ErrNotConnected = errors.New("lamp: not connected")

	// ErrClosed is returned when operating on a lamp after Close.
	ErrClosed = errors.New("lamp: closed")
)
