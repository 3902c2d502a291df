// Package gdb drives a gdb subprocess attached to a remote gdbstub.
//
// The Driver writes commands to gdb's standard input and never waits for a
// reply. A reader goroutine owns gdb's standard output: it classifies each
// line, pushes breakpoint events into the session queue, and assembles
// register and memory replies into MachineState snapshots. Snapshots are
// replaced wholesale through an atomic pointer, so Registers can be called
// from any goroutine.
//
// Recognised output:
//
//	Breakpoint 3, 0x00000000004010a0 in _start ()     hit
//	Breakpoint 3 at 0x4010a0: file start.S, line 12.  set
//	Program received signal SIGINT, Interrupt.         stop, refresh state
//	rax            0x1c                28              register reply
//	0x7ffe0000:     0x01    0x02    0x03 ...           memory reply
//
// Leading "(gdb) " prompts are stripped before classification. Lines that
// match nothing are ignored.
package gdb
