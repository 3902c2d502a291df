package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dshills/vmdb/internal/event"
	"github.com/dshills/vmdb/internal/integration/disasm"
	"github.com/dshills/vmdb/internal/integration/gdb"
	"github.com/dshills/vmdb/internal/panel"
	"github.com/dshills/vmdb/internal/renderer/backend"
	"github.com/dshills/vmdb/internal/renderer/core"
	"github.com/dshills/vmdb/internal/renderer/frame"
)

type fakeDriver struct {
	mu    sync.Mutex
	calls []string
	state gdb.MachineState
	panic bool
}

func (f *fakeDriver) record(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
	return nil
}

func (f *fakeDriver) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeDriver) Continue() error        { return f.record("continue") }
func (f *fakeDriver) Stop() error            { return f.record("stop") }
func (f *fakeDriver) Reset() error           { return f.record("reset") }
func (f *fakeDriver) StepInstruction() error { return f.record("stepi") }
func (f *fakeDriver) NextInstruction() error { return f.record("nexti") }
func (f *fakeDriver) Break(addr uint64) error {
	return f.record(fmt.Sprintf("break 0x%x", addr))
}

func (f *fakeDriver) Registers() gdb.MachineState {
	if f.panic {
		panic("snapshot corrupted")
	}
	return f.state
}

func testListing(n int) *disasm.Listing {
	var b strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "%x:\tnop\n", 0x401000+i)
	}
	return disasm.Parse(b.String())
}

type harness struct {
	backend *backend.NullBackend
	driver  *fakeDriver
	queue   *event.Queue
	app     *Application
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		backend: backend.NewNullBackend(120, 40),
		driver:  &fakeDriver{},
		queue:   event.NewQueue(event.DefaultQueueSize),
	}
	h.driver.state.Registers[16] = 0x401000
	h.app = New(h.backend, h.driver, h.queue, testListing(100), nil, Options{
		Tick:  time.Millisecond,
		Theme: frame.DefaultTheme(),
	})
	return h
}

func (h *harness) key(k backend.Key) {
	h.backend.PostEvent(backend.Event{Type: backend.EventKey, Key: k})
}

func (h *harness) mouse(x, y int, b backend.MouseButton) {
	h.backend.PostEvent(backend.Event{Type: backend.EventMouse, MouseX: x, MouseY: y, MouseButton: b})
}

func (h *harness) run(t *testing.T) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := h.app.Run(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		t.Fatal("Run did not finish")
	}
	return err
}

func TestRunQuitsOnCtrlD(t *testing.T) {
	h := newHarness(t)
	h.key(backend.KeyCtrlD)

	if err := h.run(t); err != nil {
		t.Fatalf("Run = %v, want nil", err)
	}
	if h.app.IsRunning() {
		t.Error("still running after Run returned")
	}
	if h.backend.Shows() == 0 {
		t.Error("nothing was shown")
	}
	if ev := h.backend.PollEvent(); ev.Type != backend.EventNone {
		t.Errorf("backend not shut down, got %v", ev.Type)
	}
	if row := h.backend.Row(0); !strings.HasPrefix(row, "┌─ Registers ") {
		t.Errorf("top row = %q", row)
	}
}

func TestRunInitialLayout(t *testing.T) {
	h := newHarness(t)
	h.key(backend.KeyCtrlD)

	if err := h.run(t); err != nil {
		t.Fatal(err)
	}

	l := h.app.Layout()
	tests := []struct {
		name string
		got  core.Rect
		want core.Rect
	}{
		{"registers", l.Registers, core.Rect{X: 0, Y: 0, Width: 19, Height: 40}},
		{"disassembly", l.Disassembly, core.Rect{X: 19, Y: 0, Width: 43, Height: 36}},
		{"options", l.Options, core.Rect{X: 19, Y: 36, Width: 43, Height: 4}},
		{"source", l.Source, core.Rect{X: 62, Y: 0, Width: 0, Height: 40}},
		{"memory", l.Memory, core.Rect{X: 62, Y: 0, Width: 58, Height: 40}},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestRunResize(t *testing.T) {
	h := newHarness(t)
	h.backend.Resize(200, 50)
	h.key(backend.KeyCtrlD)

	if err := h.run(t); err != nil {
		t.Fatal(err)
	}
	l := h.app.Layout()
	if l.Width != 200 || l.Height != 50 {
		t.Fatalf("layout size %dx%d", l.Width, l.Height)
	}
	if l.Disassembly.Width != 61 || l.Source.Width != 62 {
		t.Errorf("disassembly %v source %v", l.Disassembly, l.Source)
	}
}

func TestRunBreakpointEvents(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if err := h.queue.Push(ctx, event.BreakpointSet{ID: 3, Address: 0x4010a0}); err != nil {
		t.Fatal(err)
	}
	if err := h.queue.Push(ctx, event.BreakpointHit{ID: 3}); err != nil {
		t.Fatal(err)
	}
	h.key(backend.KeyCtrlD)

	if err := h.run(t); err != nil {
		t.Fatal(err)
	}

	if got := h.app.Options().Hint(); got != "Bp 3, 0x00000000004010a0" {
		t.Errorf("hint = %q", got)
	}
	if h.app.Options().State() != panel.Stopped {
		t.Errorf("state = %v", h.app.Options().State())
	}
	if !h.app.Disassembly().Breakpoints().Guards(0x4010a0) {
		t.Error("breakpoint not recorded")
	}
	if s := h.app.Metrics().Snapshot(); s.EventCount != 3 {
		t.Errorf("events = %d, want 3", s.EventCount)
	}
}

func TestRunDriverFailed(t *testing.T) {
	h := newHarness(t)
	pipeErr := errors.New("read |0: file already closed")
	if err := h.queue.Push(context.Background(), event.DriverFailed{Err: pipeErr}); err != nil {
		t.Fatal(err)
	}

	err := h.run(t)
	if !errors.Is(err, ErrSessionEnded) || !errors.Is(err, pipeErr) {
		t.Fatalf("Run = %v", err)
	}
	if ev := h.backend.PollEvent(); ev.Type != backend.EventNone {
		t.Error("terminal not restored after driver failure")
	}
}

func TestRunOptionsClicks(t *testing.T) {
	h := newHarness(t)
	// Options content starts at (21, 37); Step is the fourth button.
	h.mouse(51, 37, backend.MouseLeft)
	h.mouse(51, 37, backend.MouseLeft)
	h.mouse(51, 37, backend.MouseNone)
	h.mouse(51, 37, backend.MouseLeft)
	h.mouse(51, 37, backend.MouseNone)
	h.mouse(22, 38, backend.MouseLeft)
	h.key(backend.KeyCtrlD)

	if err := h.run(t); err != nil {
		t.Fatal(err)
	}
	want := []string{"stepi", "stepi"}
	if got := h.driver.Calls(); fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("calls = %v, want %v", got, want)
	}
}

func TestRunDisassemblyClickSetsBreakpoint(t *testing.T) {
	h := newHarness(t)
	// Disassembly content starts at (21, 1); line 2 holds 0x401002.
	h.mouse(30, 3, backend.MouseLeft)
	h.key(backend.KeyCtrlD)

	if err := h.run(t); err != nil {
		t.Fatal(err)
	}
	if got := h.driver.Calls(); len(got) != 1 || got[0] != "break 0x401002" {
		t.Errorf("calls = %v", got)
	}
}

func TestRunFunctionKeys(t *testing.T) {
	h := newHarness(t)
	h.key(backend.KeyF8)
	h.key(backend.KeyF9)
	h.key(backend.KeyF5)
	h.key(backend.KeyF5)
	h.key(backend.KeyF6)
	h.key(backend.KeyCtrlD)

	if err := h.run(t); err != nil {
		t.Fatal(err)
	}
	want := []string{"stepi", "nexti", "continue", "stop"}
	if got := h.driver.Calls(); fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("calls = %v, want %v", got, want)
	}
}

func TestRunWheelScrollsPanelUnderPointer(t *testing.T) {
	h := newHarness(t)
	h.mouse(30, 10, backend.MouseWheelDown)
	h.mouse(30, 10, backend.MouseWheelDown)
	h.mouse(30, 10, backend.MouseWheelUp)
	h.mouse(5, 10, backend.MouseWheelDown)
	h.key(backend.KeyCtrlD)

	if err := h.run(t); err != nil {
		t.Fatal(err)
	}
	if off := h.app.Disassembly().Offset(); off != 1 {
		t.Errorf("disassembly offset = %d, want 1", off)
	}
}

func TestRunRecoversPanic(t *testing.T) {
	h := newHarness(t)
	h.driver.panic = true

	err := h.run(t)
	var perr *RecoveredPanicError
	if !errors.As(err, &perr) {
		t.Fatalf("Run = %v, want RecoveredPanicError", err)
	}
	if perr.Value != "snapshot corrupted" {
		t.Errorf("panic value = %v", perr.Value)
	}
	if ev := h.backend.PollEvent(); ev.Type != backend.EventNone {
		t.Error("terminal not restored after panic")
	}
	if h.app.IsRunning() {
		t.Error("still running after panic")
	}
}

func TestRunContextCancel(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	if err := h.app.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run = %v, want context.Canceled", err)
	}
}
