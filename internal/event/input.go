package event

import (
	"context"

	"github.com/dshills/vmdb/internal/renderer/backend"
)

// InputSource is a blocking source of terminal events.
type InputSource interface {
	PollEvent() backend.Event
}

// PollInput reads terminal events from src and pushes them into q until ctx
// is done or the queue is closed. Events of type EventNone are dropped; a
// backend returns them after shutdown, so callers cancel ctx before shutting
// the backend down.
func PollInput(ctx context.Context, src InputSource, q *Queue) error {
	for {
		ev := src.PollEvent()

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if ev.Type == backend.EventNone {
			continue
		}
		if err := q.Push(ctx, TerminalInput{Event: ev}); err != nil {
			return err
		}
	}
}
