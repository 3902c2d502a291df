// Package layout computes panel rectangles from the terminal size.
//
// The screen is split into columns, left to right: Registers, the
// Disassembly/Options column, Source, and Memory. Registers and Memory have
// fixed widths; the residual width is shared between Disassembly and Source.
package layout

import "github.com/dshills/vmdb/internal/renderer/core"

// Panel widths and heights in terminal cells.
const (
	RegistersWidth = 19
	MemoryWidth    = 58
	MinDisassembly = 44
	MaxDisassembly = 76
	OptionsHeight  = 4
)

// Layout holds the rectangle of every panel.
type Layout struct {
	Width, Height int

	Registers   core.Rect
	Disassembly core.Rect
	Options     core.Rect
	Source      core.Rect
	Memory      core.Rect
}

// Residual returns the width left between Registers and Memory.
func (l Layout) Residual() int {
	return l.Disassembly.Width + l.Source.Width
}

// Compute lays out the panels for a terminal of the given size.
// Negative sizes are treated as zero.
func Compute(width, height int) Layout {
	width = max(0, width)
	height = max(0, height)

	regW := min(RegistersWidth, width)
	memW := min(MemoryWidth, width-regW)
	residual := max(0, width-regW-memW)
	daW := disassemblyWidth(residual)
	srcW := max(0, residual-daW)

	daH := max(0, height-OptionsHeight)
	optH := min(OptionsHeight, height)

	return Layout{
		Width:  width,
		Height: height,

		Registers:   core.Rect{X: 0, Y: 0, Width: regW, Height: height},
		Disassembly: core.Rect{X: regW, Y: 0, Width: daW, Height: daH},
		Options:     core.Rect{X: regW, Y: daH, Width: daW, Height: optH},
		Source:      core.Rect{X: regW + daW, Y: 0, Width: srcW, Height: height},
		Memory:      core.Rect{X: regW + residual, Y: 0, Width: memW, Height: height},
	}
}

func disassemblyWidth(residual int) int {
	if residual <= MinDisassembly {
		return residual
	}
	return min(max(residual/2, MinDisassembly), MaxDisassembly)
}
