// Package panel implements the console's panels.
//
// Every panel owns a frame.Frame and turns the current machine snapshot into
// lines of text. Panels are owned by the main loop and are not safe for
// concurrent use.
package panel

import (
	"github.com/dshills/vmdb/internal/integration/gdb"
	"github.com/dshills/vmdb/internal/renderer/core"
	"github.com/dshills/vmdb/internal/renderer/frame"
)

// Kind identifies a panel variant.
type Kind int

const (
	KindRegisters Kind = iota
	KindDisassembly
	KindOptions
	KindSource
	KindMemory
)

// String returns the panel title for the kind.
func (k Kind) String() string {
	switch k {
	case KindRegisters:
		return "Registers"
	case KindDisassembly:
		return "Disassembly"
	case KindOptions:
		return "Options"
	case KindSource:
		return "Source"
	case KindMemory:
		return "Memory"
	default:
		return "Unknown"
	}
}

// Direction is a scroll direction.
type Direction int

const (
	ScrollUp Direction = iota
	ScrollDown
)

// Panel is the behaviour shared by every panel.
type Panel interface {
	Kind() Kind
	Render(s core.Surface, m *gdb.MachineState)
	OnScroll(d Direction)
	Bounds() core.Rect
	SetBounds(r core.Rect)
}

// Debugger is the set of commands panels can issue.
type Debugger interface {
	Continue() error
	Stop() error
	Reset() error
	StepInstruction() error
	NextInstruction() error
	Break(addr uint64) error
}

// base holds the frame every panel embeds.
type base struct {
	kind  Kind
	frame *frame.Frame
}

func newBase(kind Kind) base {
	return base{kind: kind, frame: frame.New(kind.String(), core.Rect{})}
}

func (b *base) Kind() Kind             { return b.kind }
func (b *base) Bounds() core.Rect      { return b.frame.Bounds() }
func (b *base) SetBounds(r core.Rect)  { b.frame.SetBounds(r) }
func (b *base) SetTheme(t frame.Theme) { b.frame.SetTheme(t) }
func (b *base) Frame() *frame.Frame    { return b.frame }

// scrollFrame moves the frame's own scroll offset.
func (b *base) scrollFrame(d Direction) {
	if d == ScrollUp {
		b.frame.ScrollUp()
	} else {
		b.frame.ScrollDown()
	}
}

// anchored tracks a view positioned relative to an anchor line plus a user
// offset, as used by panels that follow the current stop.
type anchored struct {
	offset int
}

func (a *anchored) scroll(d Direction) {
	if d == ScrollUp {
		a.offset--
	} else {
		a.offset++
	}
}

func (a *anchored) reset() { a.offset = 0 }

// apply positions f at anchor plus the user offset for content of n
// lines. The offset is clamped so scrolling past either end does not
// accumulate.
func (a *anchored) apply(f *frame.Frame, anchor, n int) {
	f.ScrollTo(anchor+a.offset, n)
	a.offset = f.ScrollOffset() - anchor
}
