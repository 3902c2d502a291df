package event

import (
	"context"
	"sync"
	"sync/atomic"
)

// DefaultQueueSize is the queue capacity used when none is configured.
const DefaultQueueSize = 64

// MinQueueSize is the smallest capacity a Queue is created with.
const MinQueueSize = 8

// Queue is a bounded multi-producer, single-consumer event queue.
type Queue struct {
	ch        chan Event
	closed    chan struct{}
	closeOnce sync.Once

	pushed   atomic.Uint64
	received atomic.Uint64
}

// NewQueue creates a queue holding up to size events. Sizes below
// MinQueueSize are raised to it.
func NewQueue(size int) *Queue {
	if size < MinQueueSize {
		size = MinQueueSize
	}
	return &Queue{
		ch:     make(chan Event, size),
		closed: make(chan struct{}),
	}
}

// Push appends ev, blocking while the queue is full. It returns early with
// ctx.Err() if the context ends or ErrQueueClosed if the queue is closed.
func (q *Queue) Push(ctx context.Context, ev Event) error {
	if ev == nil {
		return ErrNilEvent
	}

	// Closed wins over a free slot so nothing is accepted after Close.
	select {
	case <-q.closed:
		return ErrQueueClosed
	default:
	}

	select {
	case q.ch <- ev:
		q.pushed.Add(1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.closed:
		return ErrQueueClosed
	}
}

// TryReceive returns the oldest event without blocking. ok is false when
// the queue is empty.
func (q *Queue) TryReceive() (ev Event, ok bool) {
	select {
	case ev = <-q.ch:
		q.received.Add(1)
		return ev, true
	default:
		return nil, false
	}
}

// Close releases blocked producers and rejects further pushes. Events
// already queued can still be received.
func (q *Queue) Close() {
	q.closeOnce.Do(func() { close(q.closed) })
}

// Len returns the number of queued events.
func (q *Queue) Len() int { return len(q.ch) }

// Cap returns the queue capacity.
func (q *Queue) Cap() int { return cap(q.ch) }

// QueueStats holds queue counters.
type QueueStats struct {
	Pushed   uint64
	Received uint64
	Pending  int
}

// Stats returns a snapshot of the queue counters.
func (q *Queue) Stats() QueueStats {
	return QueueStats{
		Pushed:   q.pushed.Load(),
		Received: q.received.Load(),
		Pending:  q.Len(),
	}
}
