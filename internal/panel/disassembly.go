package panel

import (
	"github.com/dshills/vmdb/internal/integration/disasm"
	"github.com/dshills/vmdb/internal/integration/gdb"
	"github.com/dshills/vmdb/internal/logging"
	"github.com/dshills/vmdb/internal/renderer/core"
)

// AnchorLines is how many lines above the current instruction the view
// starts.
const AnchorLines = 5

// Gutter markers.
const (
	markerBreakpoint = "●"
	markerIP         = ">"
)

// Disassembly shows the listing around the current instruction pointer.
type Disassembly struct {
	base
	anchored

	listing *disasm.Listing
	table   *BreakpointTable
	dbg     Debugger
	logger  *logging.Logger

	// missing is the last ip not found in the listing, so each is logged once.
	missing    uint64
	hasMissing bool

	ip     uint64
	anchor int
}

// NewDisassembly creates the disassembly panel over an immutable listing.
func NewDisassembly(listing *disasm.Listing, dbg Debugger, logger *logging.Logger) *Disassembly {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Disassembly{
		base:    newBase(KindDisassembly),
		listing: listing,
		table:   NewBreakpointTable(),
		dbg:     dbg,
		logger:  logger.WithComponent("disassembly"),
	}
}

// Breakpoints returns the panel's breakpoint table.
func (p *Disassembly) Breakpoints() *BreakpointTable { return p.table }

// OnBreakpointSet records a confirmed breakpoint.
func (p *Disassembly) OnBreakpointSet(id int, addr uint64) {
	p.table.Set(id, addr)
}

// OnBreakpointHit re-centres the view on the new stop.
func (p *Disassembly) OnBreakpointHit(int) {
	p.reset()
}

func (p *Disassembly) OnScroll(d Direction) { p.scroll(d) }

// Anchor returns the index of the first line of the view before the user
// offset, as of the last render.
func (p *Disassembly) Anchor() int { return p.anchor }

// Offset returns the user scroll offset relative to the anchor.
func (p *Disassembly) Offset() int { return p.offset }

// locate finds the anchor line for ip. An ip missing from a non-empty
// listing is logged once and anchors at the top.
func (p *Disassembly) locate(ip uint64) int {
	idx, ok := p.listing.Find(ip)
	if ok {
		p.hasMissing = false
		return max(0, idx-AnchorLines)
	}
	if p.listing.Len() > 0 && (!p.hasMissing || p.missing != ip) {
		p.logger.Error("ip 0x%x not in disassembly listing", ip)
		p.missing = ip
		p.hasMissing = true
	}
	return 0
}

func (p *Disassembly) Render(s core.Surface, m *gdb.MachineState) {
	p.ip = m.IP()
	p.anchor = p.locate(p.ip)
	n := p.listing.Len()
	p.apply(p.frame, p.anchor, n)
	p.frame.RenderFunc(s, n, p.line)
}

func (p *Disassembly) line(i int) string {
	l := p.listing.Line(i)
	bp, cur := " ", " "
	if l.HasAddress() {
		if p.table.Guards(l.Address) {
			bp = markerBreakpoint
		}
		if l.Address == p.ip {
			cur = markerIP
		}
	}
	return bp + cur + l.Text
}

// OnClick sets a breakpoint on the clicked listing line. Clicks on the
// border or on lines without an address are ignored. It reports whether a
// command was issued.
func (p *Disassembly) OnClick(x, y int) (bool, error) {
	ox, oy := p.frame.ContentOrigin()
	row := y - oy
	if x < ox || x >= ox+p.frame.InnerWidth() || row < 0 || row >= p.frame.InnerHeight() {
		return false, nil
	}
	idx := p.frame.ScrollOffset() + row
	if idx >= p.listing.Len() {
		return false, nil
	}
	l := p.listing.Line(idx)
	if !l.HasAddress() || p.table.Guards(l.Address) {
		return false, nil
	}
	return true, p.dbg.Break(l.Address)
}
