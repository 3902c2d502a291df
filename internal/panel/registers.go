package panel

import (
	"fmt"

	"github.com/dshills/vmdb/internal/integration/gdb"
	"github.com/dshills/vmdb/internal/renderer/core"
)

// Registers shows each tracked register as a name line followed by its
// value in zero-padded hex.
type Registers struct {
	base
	lines []string
}

// NewRegisters creates the registers panel. Its frame is unpadded so a
// full 16-digit value fits the narrow column.
func NewRegisters() *Registers {
	p := &Registers{
		base:  newBase(KindRegisters),
		lines: make([]string, 0, 2*gdb.NumRegisters),
	}
	p.frame.SetPadding(false)
	return p
}

// Lines returns the panel content for m.
func (p *Registers) Lines(m *gdb.MachineState) []string {
	p.lines = p.lines[:0]
	for i, name := range gdb.RegisterNames {
		p.lines = append(p.lines, name, fmt.Sprintf("%016x", m.Registers[i]))
	}
	return p.lines
}

func (p *Registers) Render(s core.Surface, m *gdb.MachineState) {
	p.frame.Render(s, p.Lines(m))
}

func (p *Registers) OnScroll(d Direction) { p.scrollFrame(d) }
