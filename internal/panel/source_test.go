package panel

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/dshills/vmdb/internal/integration/gdb"
	"github.com/dshills/vmdb/internal/integration/source"
	"github.com/dshills/vmdb/internal/logging"
	"github.com/dshills/vmdb/internal/renderer/core"
)

type fakeFiles struct {
	files   map[string]*source.File
	lookups int
}

func (f *fakeFiles) Lookup(name string) (*source.File, error) {
	f.lookups++
	if file, ok := f.files[name]; ok {
		return file, nil
	}
	return nil, fmt.Errorf("%w: %s", source.ErrNotFound, name)
}

func newFakeFiles() *fakeFiles {
	lines := make([]string, 40)
	for i := range lines {
		lines[i] = fmt.Sprintf("stmt_%d();", i+1)
	}
	return &fakeFiles{files: map[string]*source.File{
		"kernel/main.c": {Path: "/src/kernel/main.c", Lines: lines},
	}}
}

func stoppedAt(file string, line int) *gdb.MachineState {
	return &gdb.MachineState{Location: gdb.SourceLocation{File: file, Line: line}}
}

func newTestSource(files FileSource, logger *logging.Logger) *Source {
	p := NewSource(files, logger)
	p.SetBounds(core.Rect{X: 0, Y: 0, Width: 40, Height: 12})
	return p
}

func TestSourceMarksCurrentLine(t *testing.T) {
	p := newTestSource(newFakeFiles(), nil)
	s := newScreen(t, 40, 12)

	p.Render(s, stoppedAt("kernel/main.c", 20))

	if title := p.Frame().Title(); title != "main.c" {
		t.Errorf("title = %q, want main.c", title)
	}
	// Line 20 is index 19; the view starts five lines above it.
	if off := p.Frame().ScrollOffset(); off != 14 {
		t.Errorf("scroll %d, want 14", off)
	}
	if row := s.Row(1); !strings.HasPrefix(row, "│     15  stmt_15();") {
		t.Errorf("first row = %q", row)
	}
	if row := s.Row(6); !strings.HasPrefix(row, "│ >   20  stmt_20();") {
		t.Errorf("marker row = %q", row)
	}
}

func TestSourceNearTopOfFile(t *testing.T) {
	p := newTestSource(newFakeFiles(), nil)
	s := newScreen(t, 40, 12)

	p.Render(s, stoppedAt("kernel/main.c", 2))

	if off := p.Frame().ScrollOffset(); off != 0 {
		t.Errorf("scroll %d, want 0", off)
	}
	if row := s.Row(2); !strings.HasPrefix(row, "│ >    2  stmt_2();") {
		t.Errorf("marker row = %q", row)
	}
}

func TestSourceMissingFile(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New(logging.Config{Level: logging.LevelDebug, Output: &buf})
	files := newFakeFiles()
	p := newTestSource(files, logger)
	s := newScreen(t, 40, 12)

	p.Render(s, stoppedAt("lib/missing.c", 7))
	p.Render(s, stoppedAt("lib/missing.c", 7))

	if title := p.Frame().Title(); title != "Source" {
		t.Errorf("title = %q, want Source", title)
	}
	if row := s.Row(1); row != "│"+strings.Repeat(" ", 38)+"│" {
		t.Errorf("row = %q, want empty content", row)
	}
	if n := strings.Count(buf.String(), "lib/missing.c"); n != 1 {
		t.Errorf("logged %d times, want 1", n)
	}
}

func TestSourceNoLocation(t *testing.T) {
	files := newFakeFiles()
	p := newTestSource(files, nil)
	s := newScreen(t, 40, 12)

	p.Render(s, &gdb.MachineState{})

	if files.lookups != 0 {
		t.Errorf("lookups = %d, want 0", files.lookups)
	}
	if title := p.Frame().Title(); title != "Source" {
		t.Errorf("title = %q", title)
	}
}

func TestSourceLocationChangeResetsOffset(t *testing.T) {
	p := newTestSource(newFakeFiles(), nil)
	s := newScreen(t, 40, 12)
	m := stoppedAt("kernel/main.c", 20)

	p.Render(s, m)
	p.OnScroll(ScrollDown)
	p.OnScroll(ScrollDown)
	p.OnScroll(ScrollDown)
	p.Render(s, m)
	if off := p.Frame().ScrollOffset(); off != 17 {
		t.Fatalf("scroll %d, want 17", off)
	}

	p.Render(s, stoppedAt("kernel/main.c", 30))
	if off := p.Frame().ScrollOffset(); off != 24 {
		t.Errorf("scroll %d after move, want 24", off)
	}

	p.OnScroll(ScrollUp)
	p.Render(s, stoppedAt("kernel/main.c", 30))
	p.OnBreakpointHit(1)
	p.Render(s, stoppedAt("kernel/main.c", 30))
	if off := p.Frame().ScrollOffset(); off != 24 {
		t.Errorf("scroll %d after hit, want 24", off)
	}
}
