// Package process supervises the external tools a debugging session runs.
//
// Two kinds of child process are managed: the long-lived debugger, whose
// standard streams are piped to the caller, and one-shot tools such as the
// disassembler, whose output is captured whole.
//
//	sup := process.NewSupervisor()
//	defer sup.Shutdown(2 * time.Second)
//
//	gdb, err := sup.Start("gdb", exec.Command("gdb", "-q", "-nx"), process.PipeAll)
//	listing, err := sup.Run(ctx, "objdump", exec.Command("objdump", "-D", elf))
//
// Stopping a process sends SIGTERM and escalates to SIGKILL when the grace
// period runs out. Stopping a process that already exited is not an error.
package process
