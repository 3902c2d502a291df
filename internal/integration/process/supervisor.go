package process

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/vmdb/internal/logging"
)

// Supervisor starts child processes, tracks them until they exit, and
// stops whatever is still running on shutdown.
//
// Supervisor is safe for concurrent use.
type Supervisor struct {
	mu        sync.RWMutex
	processes map[string]*Process
	closed    atomic.Bool

	logger        *logging.Logger
	onProcessExit func(p *Process)
}

// SupervisorOption configures a Supervisor instance.
type SupervisorOption func(*Supervisor)

// WithLogger sets the supervisor's logger.
func WithLogger(l *logging.Logger) SupervisorOption {
	return func(s *Supervisor) {
		s.logger = l
	}
}

// WithProcessExitCallback sets a callback run after each process exits.
func WithProcessExitCallback(fn func(p *Process)) SupervisorOption {
	return func(s *Supervisor) {
		s.onProcessExit = fn
	}
}

// NewSupervisor creates a new process supervisor.
func NewSupervisor(opts ...SupervisorOption) *Supervisor {
	s := &Supervisor{
		processes: make(map[string]*Process),
		logger:    logging.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithComponent("supervisor")
	return s
}

// Start starts cmd and tracks it under a fresh ID. The requested pipes are
// created unless the command already has that stream configured.
func (s *Supervisor) Start(name string, cmd *exec.Cmd, pipes Pipes) (*Process, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed.Load() {
		return nil, ErrSupervisorShutdown
	}

	proc := newProcess(uuid.New().String(), name, cmd)

	var created []interface{ Close() error }
	cleanup := func() {
		for _, c := range created {
			_ = c.Close()
		}
	}

	if pipes.Has(PipeStdin) && cmd.Stdin == nil {
		w, err := cmd.StdinPipe()
		if err != nil {
			cleanup()
			return nil, fmt.Errorf("create stdin pipe: %w", err)
		}
		proc.Stdin = w
		created = append(created, w)
	}
	// Output read ends stay open until Close; readers drain them to EOF
	// even after Wait has returned.
	var childEnds []*os.File
	if pipes.Has(PipeStdout) && cmd.Stdout == nil {
		r, w, err := os.Pipe()
		if err != nil {
			cleanup()
			return nil, fmt.Errorf("create stdout pipe: %w", err)
		}
		cmd.Stdout = w
		proc.Stdout = r
		created = append(created, r, w)
		childEnds = append(childEnds, w)
	}
	if pipes.Has(PipeStderr) && cmd.Stderr == nil {
		r, w, err := os.Pipe()
		if err != nil {
			cleanup()
			return nil, fmt.Errorf("create stderr pipe: %w", err)
		}
		cmd.Stderr = w
		proc.Stderr = r
		created = append(created, r, w)
		childEnds = append(childEnds, w)
	}

	if err := proc.start(); err != nil {
		cleanup()
		return nil, err
	}
	for _, w := range childEnds {
		_ = w.Close()
	}

	s.processes[proc.ID] = proc
	s.logger.WithField("pid", proc.PID()).Debug("started %s: %s", name, strings.Join(cmd.Args, " "))

	go s.monitor(proc)

	return proc, nil
}

// RunError reports a command that exited unsuccessfully.
type RunError struct {
	Name     string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *RunError) Error() string {
	msg := fmt.Sprintf("%s exited with code %d", e.Name, e.ExitCode)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func (e *RunError) Unwrap() error { return e.Err }

// Run starts cmd without pipes, waits for it to finish, and returns its
// standard output. A non-zero exit yields a *RunError carrying the first
// line of standard error. The process is killed if ctx ends first.
func (s *Supervisor) Run(ctx context.Context, name string, cmd *exec.Cmd) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	proc, err := s.Start(name, cmd, 0)
	if err != nil {
		return nil, err
	}

	if err := proc.Wait(ctx); err != nil {
		_ = proc.Kill()
		<-proc.Done()
		return nil, fmt.Errorf("run %s: %w", name, err)
	}

	if code := proc.ExitCode(); code != 0 {
		first, _, _ := strings.Cut(strings.TrimSpace(stderr.String()), "\n")
		return stdout.Bytes(), &RunError{
			Name:     name,
			ExitCode: code,
			Stderr:   first,
			Err:      proc.ExitError(),
		}
	}
	return stdout.Bytes(), nil
}

func (s *Supervisor) monitor(proc *Process) {
	<-proc.Done()

	s.logger.WithField("code", proc.ExitCode()).Debug("%s %s", proc.Name, proc.State())

	if s.onProcessExit != nil {
		func() {
			defer func() {
				if r := recover(); r != nil {
					s.logger.Error("exit callback for %s panicked: %v", proc.Name, r)
				}
			}()
			s.onProcessExit(proc)
		}()
	}

	s.mu.Lock()
	delete(s.processes, proc.ID)
	s.mu.Unlock()
}

// Get returns a tracked process by ID, or nil.
func (s *Supervisor) Get(id string) *Process {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.processes[id]
}

// Count returns the number of tracked processes.
func (s *Supervisor) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.processes)
}

// Stop terminates a tracked process, escalating to SIGKILL after grace.
func (s *Supervisor) Stop(id string, grace time.Duration) error {
	proc := s.Get(id)
	if proc == nil {
		return ErrProcessNotFound
	}
	return proc.Stop(grace)
}

// Shutdown stops every tracked process, giving each grace to exit after
// SIGTERM before it is killed, and rejects further starts. Shutdown blocks
// until every process has exited.
func (s *Supervisor) Shutdown(grace time.Duration) {
	if s.closed.Swap(true) {
		return
	}

	s.mu.RLock()
	procs := make([]*Process, 0, len(s.processes))
	for _, p := range s.processes {
		procs = append(procs, p)
	}
	s.mu.RUnlock()

	var wg sync.WaitGroup
	for _, p := range procs {
		wg.Add(1)
		go func(p *Process) {
			defer wg.Done()
			if err := p.Stop(grace); err != nil {
				s.logger.Warn("stop %s: %v", p.Name, err)
			}
		}(p)
	}
	wg.Wait()
}

// IsShuttingDown returns true once Shutdown has been called.
func (s *Supervisor) IsShuttingDown() bool {
	return s.closed.Load()
}
