package panel

import (
	"fmt"
	"strings"

	"github.com/dshills/vmdb/internal/integration/gdb"
	"github.com/dshills/vmdb/internal/renderer/core"
)

// BytesPerRow is the number of bytes on each hexdump row.
const BytesPerRow = 8

// Memory shows a hexdump of the memory window captured at the last stop.
type Memory struct {
	base
}

// NewMemory creates the memory panel.
func NewMemory() *Memory {
	return &Memory{base: newBase(KindMemory)}
}

// Hexdump formats a memory window as rows of
// "<address>: xx xx xx xx xx xx xx xx  ascii".
func Hexdump(w gdb.MemoryWindow) []string {
	rows := make([]string, 0, (len(w.Bytes)+BytesPerRow-1)/BytesPerRow)
	for off := 0; off < len(w.Bytes); off += BytesPerRow {
		chunk := w.Bytes[off:min(off+BytesPerRow, len(w.Bytes))]

		var b strings.Builder
		fmt.Fprintf(&b, "%016x:", w.Address+uint64(off))
		for i := 0; i < BytesPerRow; i++ {
			if i < len(chunk) {
				fmt.Fprintf(&b, " %02x", chunk[i])
			} else {
				b.WriteString("   ")
			}
		}
		b.WriteString("  ")
		for _, c := range chunk {
			if c >= 0x20 && c < 0x7f {
				b.WriteByte(c)
			} else {
				b.WriteByte('.')
			}
		}
		rows = append(rows, b.String())
	}
	return rows
}

func (p *Memory) Render(s core.Surface, m *gdb.MachineState) {
	p.frame.Render(s, Hexdump(m.Memory))
}

func (p *Memory) OnScroll(d Direction) { p.scrollFrame(d) }
