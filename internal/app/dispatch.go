package app

import (
	"fmt"

	"github.com/dshills/vmdb/internal/event"
	"github.com/dshills/vmdb/internal/panel"
	"github.com/dshills/vmdb/internal/renderer/backend"
)

// keyButtons maps function keys to control bar buttons.
var keyButtons = map[backend.Key]panel.Button{
	backend.KeyF5: panel.ButtonContinue,
	backend.KeyF6: panel.ButtonStop,
	backend.KeyF7: panel.ButtonReset,
	backend.KeyF8: panel.ButtonStep,
	backend.KeyF9: panel.ButtonNext,
}

// handle routes one session event. It returns ErrQuit to end the session
// normally and an error wrapping ErrSessionEnded when the driver failed.
func (app *Application) handle(ev event.Event) error {
	switch e := ev.(type) {
	case event.TerminalInput:
		return app.handleTerminal(e.Event)
	case event.BreakpointHit:
		app.logger.Debug("breakpoint %d hit", e.ID)
		app.options.OnBreakpointHit(e.ID)
		app.disassembly.OnBreakpointHit(e.ID)
		app.source.OnBreakpointHit(e.ID)
	case event.BreakpointSet:
		app.logger.Debug("breakpoint %d set at 0x%x", e.ID, e.Address)
		app.disassembly.OnBreakpointSet(e.ID, e.Address)
	case event.DriverFailed:
		return fmt.Errorf("%w: %w", ErrSessionEnded, e.Err)
	}
	return nil
}

func (app *Application) handleTerminal(ev backend.Event) error {
	switch ev.Type {
	case backend.EventResize:
		app.resize(ev.Width, ev.Height)
	case backend.EventKey:
		return app.handleKey(ev)
	case backend.EventMouse:
		app.handleMouse(ev)
	}
	return nil
}

func (app *Application) handleKey(ev backend.Event) error {
	switch ev.Key {
	case backend.KeyCtrlD:
		return ErrQuit
	case backend.KeyUp:
		app.disassembly.OnScroll(panel.ScrollUp)
	case backend.KeyDown:
		app.disassembly.OnScroll(panel.ScrollDown)
	case backend.KeyPageUp:
		app.source.OnScroll(panel.ScrollUp)
	case backend.KeyPageDown:
		app.source.OnScroll(panel.ScrollDown)
	default:
		if b, ok := keyButtons[ev.Key]; ok {
			_, err := app.options.Press(b)
			app.commandResult("press", b.String(), err)
		}
	}
	return nil
}

// handleMouse scrolls the panel under the pointer on wheel events and
// clicks on the transition to a pressed left button.
func (app *Application) handleMouse(ev backend.Event) {
	switch ev.MouseButton {
	case backend.MouseWheelUp, backend.MouseWheelDown:
		dir := panel.ScrollDown
		if ev.MouseButton == backend.MouseWheelUp {
			dir = panel.ScrollUp
		}
		if p := app.panelAt(ev.MouseX, ev.MouseY); p != nil {
			p.OnScroll(dir)
		}
		return
	}

	pressed := ev.MouseButton == backend.MouseLeft && app.lastButton != backend.MouseLeft
	app.lastButton = ev.MouseButton
	if pressed {
		app.click(ev.MouseX, ev.MouseY)
	}
}

func (app *Application) click(x, y int) {
	p := app.panelAt(x, y)
	if p == nil {
		return
	}
	switch p.Kind() {
	case panel.KindOptions:
		if b, ok := app.options.ButtonAt(x, y); ok {
			_, err := app.options.OnClick(x, y)
			app.commandResult("press", b.String(), err)
		}
	case panel.KindDisassembly:
		_, err := app.disassembly.OnClick(x, y)
		app.commandResult("break", fmt.Sprintf("at row %d", y), err)
	}
}

// panelAt returns the panel containing the cell, or nil.
func (app *Application) panelAt(x, y int) panel.Panel {
	for _, p := range app.panels {
		if p.Bounds().Contains(x, y) {
			return p
		}
	}
	return nil
}

// commandResult logs a failed driver write. The reader reports a broken
// pipe through the queue, so the session continues here.
func (app *Application) commandResult(op, target string, err error) {
	if err == nil {
		return
	}
	app.metrics.RecordCommandError()
	app.logger.Error("%v", NewOperationError(op, target, err))
}
