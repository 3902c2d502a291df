package event

import "errors"

// Sentinel errors for the event queue.
var (
	// ErrQueueClosed is returned by Push after Close.
	ErrQueueClosed = errors.New("event queue is closed")

	// ErrNilEvent is returned when a nil event is pushed.
	ErrNilEvent = errors.New("event cannot be nil")
)
