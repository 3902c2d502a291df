package panel

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/dshills/vmdb/internal/integration/gdb"
	"github.com/dshills/vmdb/internal/logging"
	"github.com/dshills/vmdb/internal/renderer/core"
)

// RunState is the debuggee's execution state as the console sees it.
type RunState int

const (
	Stopped RunState = iota
	Running
)

func (s RunState) String() string {
	if s == Running {
		return "running"
	}
	return "stopped"
}

// Button is an Options control.
type Button int

const (
	ButtonContinue Button = iota
	ButtonStop
	ButtonReset
	ButtonStep
	ButtonNext

	numButtons
)

// ButtonWidth is the number of columns each button occupies.
const ButtonWidth = 10

var buttonLabels = [numButtons]string{
	ButtonContinue: "Continue",
	ButtonStop:     "Stop",
	ButtonReset:    "Reset",
	ButtonStep:     "Step",
	ButtonNext:     "Next",
}

func (b Button) String() string {
	if b < 0 || b >= numButtons {
		return fmt.Sprintf("Button(%d)", int(b))
	}
	return buttonLabels[b]
}

// Options is the control bar. It holds the run/stop state machine and
// turns button presses into debugger commands.
type Options struct {
	base

	state  RunState
	hint   string
	dbg    Debugger
	table  *BreakpointTable
	logger *logging.Logger
}

// NewOptions creates the control bar. table is consulted to describe
// breakpoint hits.
func NewOptions(dbg Debugger, table *BreakpointTable, logger *logging.Logger) *Options {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Options{
		base:   newBase(KindOptions),
		state:  Stopped,
		dbg:    dbg,
		table:  table,
		logger: logger.WithComponent("options"),
	}
}

// State returns the run state.
func (p *Options) State() RunState { return p.state }

// Hint returns the text shown under the buttons.
func (p *Options) Hint() string { return p.hint }

// Enabled reports whether b can be pressed in the current state.
func (p *Options) Enabled(b Button) bool {
	if p.state == Running {
		return b == ButtonStop
	}
	return b != ButtonStop && b >= 0 && b < numButtons
}

// Press issues b's command and applies its transition. Disabled buttons
// are ignored. It reports whether a command was issued.
func (p *Options) Press(b Button) (bool, error) {
	if !p.Enabled(b) {
		return false, nil
	}

	var err error
	next := p.state
	switch b {
	case ButtonContinue:
		err = p.dbg.Continue()
		next = Running
	case ButtonStop:
		err = p.dbg.Stop()
		next = Stopped
	case ButtonReset:
		err = p.dbg.Reset()
		next = Running
	case ButtonStep:
		err = p.dbg.StepInstruction()
	case ButtonNext:
		err = p.dbg.NextInstruction()
	}
	if err != nil {
		return true, fmt.Errorf("%s: %w", strings.ToLower(b.String()), err)
	}

	p.logger.Debug("%s: %s -> %s", b, p.state, next)
	p.state = next
	p.hint = ""
	return true, nil
}

// OnBreakpointHit stops the state machine and describes the hit. The id
// must be in the breakpoint table.
func (p *Options) OnBreakpointHit(id int) {
	addr, ok := p.table.Lookup(id)
	if !ok {
		panic(fmt.Sprintf("breakpoint %d hit but never confirmed", id))
	}
	p.state = Stopped
	p.hint = fmt.Sprintf("Bp %d, 0x%016x", id, addr)
}

// ButtonAt maps a terminal cell to the button drawn there.
func (p *Options) ButtonAt(x, y int) (Button, bool) {
	ox, oy := p.frame.ContentOrigin()
	col := x - ox
	if y != oy || col < 0 || col >= p.frame.InnerWidth() || p.frame.InnerHeight() == 0 {
		return 0, false
	}
	b := Button(col / ButtonWidth)
	if b >= numButtons {
		return 0, false
	}
	return b, true
}

// OnClick presses the button under (x, y), if any.
func (p *Options) OnClick(x, y int) (bool, error) {
	b, ok := p.ButtonAt(x, y)
	if !ok {
		return false, nil
	}
	return p.Press(b)
}

// Lines returns the button row and the hint.
func (p *Options) Lines() []string {
	var row strings.Builder
	for b := Button(0); b < numButtons; b++ {
		label := centre(buttonLabels[b], ButtonWidth-2)
		if p.Enabled(b) {
			row.WriteString("[" + label + "]")
		} else {
			row.WriteString(" " + label + " ")
		}
	}
	return []string{row.String(), p.hint}
}

// centre pads s to width columns, with any odd column on the left.
func centre(s string, width int) string {
	pad := width - runewidth.StringWidth(s)
	if pad <= 0 {
		return runewidth.Truncate(s, width, "")
	}
	right := pad / 2
	return runewidth.FillRight(strings.Repeat(" ", pad-right)+s, width)
}

func (p *Options) Render(s core.Surface, _ *gdb.MachineState) {
	p.frame.Render(s, p.Lines())
}

// OnScroll is a no-op: the control bar never scrolls.
func (p *Options) OnScroll(Direction) {}
