// Package event merges the session's event sources into one queue.
//
// Two producers feed a single bounded Queue: the debugger driver's output
// reader and the terminal input poller. The main loop is the only consumer
// and drains the queue without blocking, at most one event per tick.
//
//	gdb stdout ──► classifier ──┐
//	                            ├──► Queue ──► TryReceive (main loop)
//	terminal   ──► PollInput ───┘
//
// Push blocks while the queue is full, so events are never dropped. Events
// from one producer arrive in the order they were pushed; there is no
// ordering between producers.
package event
