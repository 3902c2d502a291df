// Package app runs the console session: it owns the panels and the layout,
// drains the event queue once per tick and renders every panel.
package app

import (
	"context"
	"errors"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/dshills/vmdb/internal/event"
	"github.com/dshills/vmdb/internal/integration/disasm"
	"github.com/dshills/vmdb/internal/integration/gdb"
	"github.com/dshills/vmdb/internal/logging"
	"github.com/dshills/vmdb/internal/panel"
	"github.com/dshills/vmdb/internal/renderer/backend"
	"github.com/dshills/vmdb/internal/renderer/frame"
	"github.com/dshills/vmdb/internal/renderer/layout"
)

// DefaultTick is the main loop period.
const DefaultTick = 5 * time.Millisecond

// Driver is the debugger the session controls.
type Driver interface {
	panel.Debugger
	Registers() gdb.MachineState
}

// Options configures the application.
type Options struct {
	// Tick is the main loop period. Zero means DefaultTick.
	Tick time.Duration

	// Theme styles every panel frame.
	Theme frame.Theme

	// Logger receives session diagnostics. Nil discards them.
	Logger *logging.Logger

	// Metrics collects loop timing. Nil creates a private instance.
	Metrics *Metrics
}

// Application is the main loop and the state it owns. Panels and layout
// are touched only from Run.
type Application struct {
	backend backend.Backend
	driver  Driver
	queue   *event.Queue
	logger  *logging.Logger
	metrics *Metrics
	tick    time.Duration

	layout      layout.Layout
	registers   *panel.Registers
	disassembly *panel.Disassembly
	options     *panel.Options
	source      *panel.Source
	memory      *panel.Memory
	panels      []panel.Panel

	// lastButton is the button state of the previous mouse event, so a held
	// button clicks once.
	lastButton backend.MouseButton

	running atomic.Bool
}

// New creates the application and its panels.
func New(b backend.Backend, drv Driver, q *event.Queue, listing *disasm.Listing, files panel.FileSource, opts Options) *Application {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = NewMetrics()
	}
	tick := opts.Tick
	if tick <= 0 {
		tick = DefaultTick
	}

	app := &Application{
		backend: b,
		driver:  drv,
		queue:   q,
		logger:  logger.WithComponent("app"),
		metrics: metrics,
		tick:    tick,
	}

	app.registers = panel.NewRegisters()
	app.disassembly = panel.NewDisassembly(listing, drv, logger)
	app.options = panel.NewOptions(drv, app.disassembly.Breakpoints(), logger)
	app.source = panel.NewSource(files, logger)
	app.memory = panel.NewMemory()

	app.registers.SetTheme(opts.Theme)
	app.disassembly.SetTheme(opts.Theme)
	app.options.SetTheme(opts.Theme)
	app.source.SetTheme(opts.Theme)
	app.memory.SetTheme(opts.Theme)

	app.panels = []panel.Panel{app.registers, app.disassembly, app.options, app.source, app.memory}
	return app
}

// Run takes over the terminal and runs the session until Ctrl+D, a driver
// failure, a panic or ctx is done. The terminal is restored on every path.
// A normal quit returns nil.
func (app *Application) Run(ctx context.Context) (err error) {
	if !app.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer app.running.Store(false)

	defer func() {
		if r := recover(); r != nil {
			err = NewRecoveredPanicError(r, string(debug.Stack()))
		}
	}()

	if err := app.backend.Init(); err != nil {
		return &InitError{Component: "terminal", Err: err}
	}

	inputCtx, cancel := context.WithCancel(ctx)
	inputDone := make(chan struct{})
	go func() {
		defer close(inputDone)
		if err := event.PollInput(inputCtx, app.backend, app.queue); err != nil && !errors.Is(err, context.Canceled) {
			app.logger.Warn("input stopped: %v", err)
		}
	}()
	defer func() {
		cancel()
		app.backend.Shutdown()
		<-inputDone
		app.logger.Info("session metrics: %s", app.metrics.Snapshot())
	}()

	app.resize(app.backend.Size())

	ticker := time.NewTicker(app.tick)
	defer ticker.Stop()

	for {
		if err := app.step(); err != nil {
			if errors.Is(err, ErrQuit) {
				return nil
			}
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// step consumes at most one event and renders every panel.
func (app *Application) step() error {
	if ev, ok := app.queue.TryReceive(); ok {
		timer := StartTimer()
		err := app.handle(ev)
		app.metrics.RecordEvent(timer.Elapsed())
		if err != nil {
			return err
		}
	} else {
		app.metrics.RecordIdle()
	}

	timer := StartTimer()
	app.render()
	app.metrics.RecordFrame(timer.Elapsed())
	return nil
}

// render draws every panel from one machine state snapshot.
func (app *Application) render() {
	m := app.driver.Registers()
	for _, p := range app.panels {
		p.Render(app.backend, &m)
	}
	app.backend.Show()
}

// resize recomputes the layout and moves every panel.
func (app *Application) resize(width, height int) {
	app.layout = layout.Compute(width, height)
	app.registers.SetBounds(app.layout.Registers)
	app.disassembly.SetBounds(app.layout.Disassembly)
	app.options.SetBounds(app.layout.Options)
	app.source.SetBounds(app.layout.Source)
	app.memory.SetBounds(app.layout.Memory)
	app.backend.Clear()
	app.logger.Debug("layout %dx%d: registers=%s disassembly=%s options=%s source=%s memory=%s",
		width, height, app.layout.Registers, app.layout.Disassembly,
		app.layout.Options, app.layout.Source, app.layout.Memory)
}

// Layout returns the current panel rectangles.
func (app *Application) Layout() layout.Layout { return app.layout }

// Options returns the control bar.
func (app *Application) Options() *panel.Options { return app.options }

// Disassembly returns the disassembly panel.
func (app *Application) Disassembly() *panel.Disassembly { return app.disassembly }

// Metrics returns the application's metrics instance.
func (app *Application) Metrics() *Metrics { return app.metrics }

// IsRunning reports whether Run is active.
func (app *Application) IsRunning() bool { return app.running.Load() }
