package process

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os/exec"
	"sync/atomic"
	"testing"
	"time"
)

func waitForCount(t *testing.T, s *Supervisor, want int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for s.Count() != want {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d tracked processes, got %d", want, s.Count())
		}
		time.Sleep(time.Millisecond)
	}
}

func TestSupervisor_StartPiped(t *testing.T) {
	s := NewSupervisor()
	defer s.Shutdown(time.Second)

	proc, err := s.Start("cat", exec.Command("cat"), PipeAll)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if proc.Stdin == nil || proc.Stdout == nil || proc.Stderr == nil {
		t.Fatal("expected all three pipes")
	}
	if s.Get(proc.ID) != proc {
		t.Error("process not tracked by ID")
	}

	if _, err := io.WriteString(proc.Stdin, "target remote :1234\n"); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	line, err := bufio.NewReader(proc.Stdout).ReadString('\n')
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if line != "target remote :1234\n" {
		t.Errorf("echoed %q", line)
	}

	_ = proc.Stdin.Close()
	select {
	case <-proc.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("cat did not exit after stdin closed")
	}
	waitForCount(t, s, 0)
}

func TestSupervisor_OutputReadableAfterExit(t *testing.T) {
	s := NewSupervisor()
	defer s.Shutdown(time.Second)

	// Small enough to sit in the pipe buffer until the child has exited.
	const lines = 1000
	cmd := exec.Command("sh", "-c", `i=0; while [ $i -lt 1000 ]; do echo "Breakpoint $i at 0x$i"; i=$((i+1)); done`)
	proc, err := s.Start("burst", cmd, PipeStdout|PipeStderr)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	select {
	case <-proc.Done():
	case <-time.After(10 * time.Second):
		t.Fatal("burst did not exit")
	}

	scanner := bufio.NewScanner(proc.Stdout)
	n := 0
	for scanner.Scan() {
		n++
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("reading after exit: %v", err)
	}
	if n != lines {
		t.Errorf("read %d lines, want %d", n, lines)
	}
}

func TestSupervisor_StartOnlyRequestedPipes(t *testing.T) {
	s := NewSupervisor()
	defer s.Shutdown(time.Second)

	proc, err := s.Start("true", exec.Command("true"), PipeStdout)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if proc.Stdin != nil || proc.Stderr != nil {
		t.Error("unrequested pipes were created")
	}
	_, _ = io.ReadAll(proc.Stdout)
	<-proc.Done()
}

func TestSupervisor_StartMissingBinary(t *testing.T) {
	s := NewSupervisor()
	defer s.Shutdown(time.Second)

	_, err := s.Start("missing", exec.Command("/nonexistent/vmdb-test-binary"), PipeAll)
	if err == nil {
		t.Fatal("expected error starting a missing binary")
	}
	if s.Count() != 0 {
		t.Errorf("failed start was tracked")
	}
}

func TestSupervisor_Run(t *testing.T) {
	s := NewSupervisor()
	defer s.Shutdown(time.Second)

	out, err := s.Run(context.Background(), "printf", exec.Command("printf", "401000: 90\n"))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if string(out) != "401000: 90\n" {
		t.Errorf("output %q", out)
	}
}

func TestSupervisor_RunFailure(t *testing.T) {
	s := NewSupervisor()
	defer s.Shutdown(time.Second)

	_, err := s.Run(context.Background(), "objdump", exec.Command("sh", "-c", "echo 'no such file' >&2; echo more >&2; exit 2"))

	var runErr *RunError
	if !errors.As(err, &runErr) {
		t.Fatalf("expected *RunError, got %v", err)
	}
	if runErr.ExitCode != 2 || runErr.Stderr != "no such file" || runErr.Name != "objdump" {
		t.Errorf("unexpected error fields %+v", runErr)
	}
	if runErr.Error() != "objdump exited with code 2: no such file" {
		t.Errorf("unexpected message %q", runErr.Error())
	}
}

func TestSupervisor_RunCanceled(t *testing.T) {
	s := NewSupervisor()
	defer s.Shutdown(time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := s.Run(ctx, "sleep", exec.Command("sleep", "10"))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected DeadlineExceeded, got %v", err)
	}
}

func TestSupervisor_Stop(t *testing.T) {
	s := NewSupervisor()
	defer s.Shutdown(time.Second)

	proc, err := s.Start("sleep", exec.Command("sleep", "10"), 0)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := s.Stop(proc.ID, time.Second); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if !proc.HasExited() {
		t.Error("process still running")
	}
	waitForCount(t, s, 0)

	if err := s.Stop(proc.ID, time.Second); !errors.Is(err, ErrProcessNotFound) {
		t.Errorf("expected ErrProcessNotFound, got %v", err)
	}
}

func TestSupervisor_ExitCallback(t *testing.T) {
	var calls atomic.Int32
	s := NewSupervisor(WithProcessExitCallback(func(p *Process) {
		calls.Add(1)
		panic("callback panics are contained")
	}))
	defer s.Shutdown(time.Second)

	proc, err := s.Start("true", exec.Command("true"), 0)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	<-proc.Done()
	waitForCount(t, s, 0)

	if calls.Load() != 1 {
		t.Errorf("expected 1 callback, got %d", calls.Load())
	}
}

func TestSupervisor_Shutdown(t *testing.T) {
	s := NewSupervisor()

	var procs []*Process
	for i := 0; i < 3; i++ {
		p, err := s.Start("sleep", exec.Command("sleep", "10"), 0)
		if err != nil {
			t.Fatalf("Start failed: %v", err)
		}
		procs = append(procs, p)
	}

	s.Shutdown(time.Second)
	s.Shutdown(time.Second)

	for _, p := range procs {
		if !p.HasExited() {
			t.Errorf("process %s still running after Shutdown", p.ID)
		}
	}
	if !s.IsShuttingDown() {
		t.Error("expected IsShuttingDown")
	}
	if _, err := s.Start("late", exec.Command("true"), 0); !errors.Is(err, ErrSupervisorShutdown) {
		t.Errorf("expected ErrSupervisorShutdown, got %v", err)
	}
	waitForCount(t, s, 0)
}
