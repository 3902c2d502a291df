package gdb

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os/exec"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dshills/vmdb/internal/event"
	"github.com/dshills/vmdb/internal/integration/process"
	"github.com/dshills/vmdb/internal/logging"
)

// Sentinel errors for the driver.
var (
	// ErrClosed is returned by commands issued after Close.
	ErrClosed = errors.New("gdb driver closed")

	// ErrOutputClosed is wrapped by the DriverFailed event sent when gdb's
	// output ends while the session is still open.
	ErrOutputClosed = errors.New("gdb output closed")
)

// LaunchError reports that gdb could not be started.
type LaunchError struct {
	Path string
	Err  error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("launch debugger %q: %v", e.Path, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// Endpoint is the address of the remote gdbstub.
type Endpoint struct {
	Host string
	Port int
}

func (e Endpoint) String() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// Config configures the gdb subprocess.
type Config struct {
	// Path is the gdb executable.
	Path string
	// Args are passed to gdb before any command is written.
	Args []string
	// BannerLines is the number of output lines discarded at startup.
	BannerLines int
	// MemoryBytes is the size of the stack memory window read at each stop.
	// Zero disables memory reads.
	MemoryBytes int
	// StopGrace is how long Close waits after SIGTERM before killing gdb.
	StopGrace time.Duration
	// InitCommands are written verbatim after the target is attached.
	InitCommands []string
}

// DefaultConfig returns the configuration used when none is given.
func DefaultConfig() Config {
	return Config{
		Path:        "gdb",
		Args:        []string{"-q", "-nx"},
		BannerLines: 0,
		MemoryBytes: 64,
		StopGrace:   2 * time.Second,
	}
}

// target is the subprocess behind a driver. *process.Process satisfies it.
type target interface {
	Interrupt() error
	Stop(grace time.Duration) error
	Close() error
}

// Driver supervises one gdb subprocess.
type Driver struct {
	cfg    Config
	logger *logging.Logger
	queue  *event.Queue
	proc   target

	wmu   sync.Mutex
	stdin io.Writer

	stdout io.Reader
	state  atomic.Pointer[MachineState]

	ctx        context.Context
	cancel     context.CancelFunc
	readerDone chan struct{}
	closeOnce  sync.Once
	closed     atomic.Bool
}

// Start launches gdb through sup, connects it to ep, and starts the output
// reader. Breakpoint events are pushed into q. A launch failure is returned
// as a *LaunchError.
func Start(ctx context.Context, sup *process.Supervisor, ep Endpoint, cfg Config, q *event.Queue, logger *logging.Logger) (*Driver, error) {
	if logger == nil {
		logger = logging.Discard()
	}

	proc, err := sup.Start("gdb", exec.Command(cfg.Path, cfg.Args...), process.PipeAll)
	if err != nil {
		return nil, &LaunchError{Path: cfg.Path, Err: err}
	}

	d := newDriver(ctx, proc.Stdin, proc.Stdout, proc, q, cfg, logger)
	go d.drainStderr(proc.Stderr)
	go d.readLoop()

	if err := d.attach(ep); err != nil {
		_ = d.Close()
		return nil, &LaunchError{Path: cfg.Path, Err: err}
	}
	d.logger.WithField("pid", proc.PID()).Info("connecting to %s", ep)

	return d, nil
}

// attach connects gdb to the stub, runs the init commands, and requests the
// first snapshot. The target is halted once attached.
func (d *Driver) attach(ep Endpoint) error {
	if err := d.write("target remote " + ep.String()); err != nil {
		return err
	}
	for _, cmd := range d.cfg.InitCommands {
		if err := d.Raw(cmd); err != nil {
			return err
		}
	}
	return d.Refresh()
}

func newDriver(ctx context.Context, stdin io.Writer, stdout io.Reader, proc target, q *event.Queue, cfg Config, logger *logging.Logger) *Driver {
	ctx, cancel := context.WithCancel(ctx)
	d := &Driver{
		cfg:        cfg,
		logger:     logger.WithComponent("gdb"),
		queue:      q,
		proc:       proc,
		stdin:      stdin,
		stdout:     stdout,
		ctx:        ctx,
		cancel:     cancel,
		readerDone: make(chan struct{}),
	}
	d.state.Store(&MachineState{})
	return d
}

// Registers returns the snapshot taken at the last stop.
func (d *Driver) Registers() MachineState {
	return *d.state.Load()
}

// Continue resumes the debuggee.
func (d *Driver) Continue() error {
	return d.write("continue")
}

// Stop interrupts the running debuggee by sending SIGINT to gdb.
func (d *Driver) Stop() error {
	if d.closed.Load() {
		return ErrClosed
	}
	if err := d.proc.Interrupt(); err != nil {
		return fmt.Errorf("interrupt gdb: %w", err)
	}
	return nil
}

// Reset resets the target machine and resumes it.
func (d *Driver) Reset() error {
	return d.write("monitor system_reset", "continue")
}

// StepInstruction executes one instruction, entering calls.
func (d *Driver) StepInstruction() error {
	return d.write(append([]string{"stepi"}, d.refreshCommands()...)...)
}

// NextInstruction executes one instruction, stepping over calls.
func (d *Driver) NextInstruction() error {
	return d.write(append([]string{"nexti"}, d.refreshCommands()...)...)
}

// Break sets a breakpoint at addr. The id arrives later as a BreakpointSet.
func (d *Driver) Break(addr uint64) error {
	return d.write(fmt.Sprintf("break *0x%x", addr))
}

// Raw writes one command line verbatim.
func (d *Driver) Raw(line string) error {
	return d.write(line)
}

// Refresh asks gdb for the registers and memory window.
func (d *Driver) Refresh() error {
	return d.write(d.refreshCommands()...)
}

func (d *Driver) refreshCommands() []string {
	cmds := []string{infoRegistersCommand()}
	if d.cfg.MemoryBytes > 0 {
		cmds = append(cmds, fmt.Sprintf("x/%dxb $sp", d.cfg.MemoryBytes))
	}
	return cmds
}

// write sends each line to gdb's input. The lines of one call are never
// interleaved with another caller's.
func (d *Driver) write(lines ...string) error {
	if d.closed.Load() {
		return ErrClosed
	}

	d.wmu.Lock()
	defer d.wmu.Unlock()

	for _, line := range lines {
		d.logger.Debug("> %s", line)
		if _, err := io.WriteString(d.stdin, line+"\n"); err != nil {
			return fmt.Errorf("write %q: %w", line, err)
		}
	}
	return nil
}

// Close ends the session: it interrupts gdb, sends end-of-input and the
// quit confirmation, stops the subprocess, and waits for the reader to
// exit. A subprocess that already exited is not an error.
func (d *Driver) Close() error {
	var err error
	d.closeOnce.Do(func() {
		d.closed.Store(true)

		if ierr := d.proc.Interrupt(); ierr != nil && !errors.Is(ierr, process.ErrProcessNotRunning) {
			d.logger.Debug("interrupt on close: %v", ierr)
		}

		d.wmu.Lock()
		_, _ = d.stdin.Write([]byte{0x04})
		_, _ = io.WriteString(d.stdin, "y\n")
		d.wmu.Unlock()

		if serr := d.proc.Stop(d.cfg.StopGrace); serr != nil && !errors.Is(serr, process.ErrProcessNotRunning) {
			err = fmt.Errorf("stop gdb: %w", serr)
		}
		if cerr := d.proc.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close gdb pipes: %w", cerr)
		}
		d.cancel()

		select {
		case <-d.readerDone:
		case <-time.After(d.cfg.StopGrace + time.Second):
			d.logger.Warn("output reader did not exit")
		}
	})
	return err
}

// Done is closed when the output reader exits.
func (d *Driver) Done() <-chan struct{} {
	return d.readerDone
}

func (d *Driver) drainStderr(r io.Reader) {
	if r == nil {
		return
	}
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		d.logger.Warn("stderr: %s", sc.Text())
	}
}

func (d *Driver) push(ev event.Event) {
	if err := d.queue.Push(d.ctx, ev); err != nil {
		d.logger.Debug("dropped %v: %v", ev, err)
	}
}

// readLoop owns gdb's output until it ends.
func (d *Driver) readLoop() {
	defer close(d.readerDone)

	sc := bufio.NewScanner(d.stdout)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	asm := newAssembler(d.cfg.MemoryBytes, d.state.Load())
	skip := d.cfg.BannerLines

	for sc.Scan() {
		if skip > 0 {
			skip--
			continue
		}
		d.handleLine(asm, sc.Text())
	}

	if d.closed.Load() {
		return
	}
	err := sc.Err()
	if err == nil {
		err = io.EOF
	}
	d.logger.Error("output ended: %v", err)
	d.push(event.DriverFailed{Err: fmt.Errorf("%w: %v", ErrOutputClosed, err)})
}

func (d *Driver) handleLine(asm *assembler, text string) {
	line := classify(text)
	if line.kind != lineOther {
		d.logger.Debug("< %s [%s]", text, line.kind)
	}

	if snap := asm.feed(line); snap != nil {
		d.state.Store(snap)
	}

	switch line.kind {
	case lineBreakpointHit:
		d.push(event.BreakpointHit{ID: line.breakpoint})
		d.refreshAfterStop()
	case lineBreakpointSet:
		d.push(event.BreakpointSet{ID: line.breakpoint, Address: line.address})
	case lineStopped:
		d.refreshAfterStop()
	}
}

func (d *Driver) refreshAfterStop() {
	if err := d.Refresh(); err != nil && !errors.Is(err, ErrClosed) {
		d.logger.Warn("refresh after stop: %v", err)
	}
}

// assembler builds the next MachineState from register and memory replies.
// It is owned by the reader goroutine.
type assembler struct {
	next        *MachineState
	memoryBytes int
	seen        uint32
	memoryFresh bool
	dirty       bool
}

func newAssembler(memoryBytes int, initial *MachineState) *assembler {
	return &assembler{
		next:        initial.clone(),
		memoryBytes: memoryBytes,
		memoryFresh: true,
	}
}

// feed applies one line and returns a snapshot to publish, or nil.
// A snapshot is published when the register set or memory window is
// complete, or when an unrelated line interrupts a partial reply.
func (a *assembler) feed(line outputLine) *MachineState {
	if line.location.Valid() {
		a.next.Location = line.location
		a.dirty = true
	}

	switch line.kind {
	case lineRegister:
		a.next.Registers[line.register] = line.value
		a.seen |= 1 << line.register
		a.dirty = true
		if a.seen == allRegisters {
			return a.publish()
		}
		return nil

	case lineMemory:
		if a.memoryFresh {
			a.next.Memory = MemoryWindow{Address: line.address}
			a.memoryFresh = false
		}
		room := a.memoryBytes - len(a.next.Memory.Bytes)
		if room > 0 {
			a.next.Memory.Bytes = append(a.next.Memory.Bytes, line.bytes[:min(room, len(line.bytes))]...)
		}
		a.dirty = true
		if len(a.next.Memory.Bytes) >= a.memoryBytes {
			return a.publish()
		}
		return nil

	case lineBreakpointHit, lineStopped:
		// The next register and memory replies start a new snapshot.
		if a.dirty {
			return a.publish()
		}
		a.seen = 0
		a.memoryFresh = true
		return nil
	}

	if a.dirty {
		return a.publish()
	}
	return nil
}

func (a *assembler) publish() *MachineState {
	snap := a.next.clone()
	a.seen = 0
	a.memoryFresh = true
	a.dirty = false
	return snap
}
