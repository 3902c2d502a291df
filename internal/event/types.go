package event

import (
	"fmt"

	"github.com/dshills/vmdb/internal/renderer/backend"
)

// Event is a session event. The concrete types are TerminalInput,
// BreakpointHit, BreakpointSet and DriverFailed.
type Event interface {
	// Source names the producer that created the event.
	Source() string
	sessionEvent()
}

// Producer names.
const (
	SourceTerminal = "terminal"
	SourceDriver   = "driver"
)

// TerminalInput carries a key, mouse, resize, paste or focus event.
type TerminalInput struct {
	backend.Event
}

func (TerminalInput) Source() string { return SourceTerminal }
func (TerminalInput) sessionEvent()  {}

func (e TerminalInput) String() string {
	return "terminal " + e.Type.String()
}

// BreakpointHit reports that the debuggee stopped on breakpoint ID.
type BreakpointHit struct {
	ID int
}

func (BreakpointHit) Source() string { return SourceDriver }
func (BreakpointHit) sessionEvent()  {}

func (e BreakpointHit) String() string {
	return fmt.Sprintf("breakpoint %d hit", e.ID)
}

// BreakpointSet reports that the debugger confirmed breakpoint ID at Address.
type BreakpointSet struct {
	ID      int
	Address uint64
}

func (BreakpointSet) Source() string { return SourceDriver }
func (BreakpointSet) sessionEvent()  {}

func (e BreakpointSet) String() string {
	return fmt.Sprintf("breakpoint %d set at 0x%x", e.ID, e.Address)
}

// DriverFailed reports that the debugger's output stream broke. No further
// driver events follow it.
type DriverFailed struct {
	Err error
}

func (DriverFailed) Source() string { return SourceDriver }
func (DriverFailed) sessionEvent()  {}

func (e DriverFailed) String() string {
	return fmt.Sprintf("driver failed: %v", e.Err)
}
