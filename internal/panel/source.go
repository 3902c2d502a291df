package panel

import (
	"fmt"
	"path/filepath"

	"github.com/dshills/vmdb/internal/integration/gdb"
	"github.com/dshills/vmdb/internal/integration/source"
	"github.com/dshills/vmdb/internal/logging"
	"github.com/dshills/vmdb/internal/renderer/core"
)

// FileSource supplies source file contents by reported name.
type FileSource interface {
	Lookup(name string) (*source.File, error)
}

// Source shows the file of the last reported stop location with a marker
// on the current line.
type Source struct {
	base
	anchored

	files  FileSource
	logger *logging.Logger

	loc     gdb.SourceLocation
	file    *source.File
	lastErr string
}

// NewSource creates the source panel.
func NewSource(files FileSource, logger *logging.Logger) *Source {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Source{
		base:   newBase(KindSource),
		files:  files,
		logger: logger.WithComponent("source"),
	}
}

func (p *Source) OnScroll(d Direction) { p.scroll(d) }

// OnBreakpointHit re-centres the view on the new stop.
func (p *Source) OnBreakpointHit(int) { p.reset() }

func (p *Source) Render(s core.Surface, m *gdb.MachineState) {
	if m.Location != p.loc {
		p.loc = m.Location
		p.reset()
	}

	p.file = nil
	if p.loc.Valid() && p.files != nil {
		f, err := p.files.Lookup(p.loc.File)
		switch {
		case err != nil:
			if msg := err.Error(); msg != p.lastErr {
				p.logger.Warn("%v", err)
				p.lastErr = msg
			}
		default:
			p.file = f
			p.lastErr = ""
		}
	}

	if p.file == nil {
		p.frame.SetTitle(KindSource.String())
		p.frame.ScrollTo(0, 0)
		p.frame.Render(s, nil)
		return
	}

	p.frame.SetTitle(filepath.Base(p.file.Path))
	n := len(p.file.Lines)
	anchor := max(0, p.loc.Line-1-AnchorLines)
	p.apply(p.frame, anchor, n)
	p.frame.RenderFunc(s, n, p.line)
}

func (p *Source) line(i int) string {
	marker := " "
	if i+1 == p.loc.Line {
		marker = ">"
	}
	return fmt.Sprintf("%s%5d  %s", marker, i+1, p.file.Lines[i])
}
