package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/dshills/vmdb/internal/config"
)

// cliFlags holds command-line overrides. Zero values leave the
// configuration untouched.
type cliFlags struct {
	configPath  string
	host        string
	port        int
	elf         string
	gdb         string
	logLevel    string
	logFile     string
	breakpoints []config.Address
}

func parseFlags(args []string) cliFlags {
	var f cliFlags
	var showVersion bool

	fs := flag.NewFlagSet("vmdb", flag.ExitOnError)
	fs.StringVar(&f.configPath, "config", "", "Path to configuration file (.toml, .yaml)")
	fs.StringVar(&f.configPath, "c", "", "Path to configuration file (shorthand)")
	fs.StringVar(&f.host, "host", "", "gdbstub host")
	fs.IntVar(&f.port, "port", 0, "gdbstub port")
	fs.StringVar(&f.gdb, "gdb", "", "gdb executable")
	fs.StringVar(&f.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	fs.StringVar(&f.logFile, "log-file", "", "Write logs to this file")
	fs.Func("break", "Set a breakpoint at this address before starting (repeatable)", func(s string) error {
		v, err := strconv.ParseUint(s, 0, 64)
		if err != nil {
			return fmt.Errorf("invalid address %q", s)
		}
		f.breakpoints = append(f.breakpoints, config.Address(v))
		return nil
	})
	fs.BoolVar(&showVersion, "version", false, "Show version information")
	fs.BoolVar(&showVersion, "v", false, "Show version information (shorthand)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "vmdb - terminal console for gdb remote sessions\n\n")
		fmt.Fprintf(os.Stderr, "Usage: vmdb [options] [image.elf]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  vmdb kernel.elf                     Attach to localhost:1234\n")
		fmt.Fprintf(os.Stderr, "  vmdb -port 1235 -break 0x100000 k.elf\n")
		fmt.Fprintf(os.Stderr, "  vmdb -c vmdb.toml                   Use a session file\n")
		fmt.Fprintf(os.Stderr, "\nKeys: F5 continue, F6 stop, F7 reset, F8 step, F9 next, Ctrl+D quit\n")
	}

	_ = fs.Parse(args)

	if showVersion {
		fmt.Printf("vmdb %s\n", version)
		fmt.Printf("Commit: %s\n", commit)
		fmt.Printf("Built: %s\n", date)
		os.Exit(0)
	}

	if fs.NArg() > 0 {
		f.elf = fs.Arg(0)
	}
	return f
}

// apply writes the overrides into cfg. Breakpoints are appended.
func (f cliFlags) apply(cfg *config.Config) {
	if f.host != "" {
		cfg.Target.Host = f.host
	}
	if f.port != 0 {
		cfg.Target.Port = f.port
	}
	if f.elf != "" {
		cfg.Target.ELF = f.elf
	}
	if f.gdb != "" {
		cfg.Tools.GDB = f.gdb
	}
	if f.logLevel != "" {
		cfg.Logging.Level = f.logLevel
	}
	if f.logFile != "" {
		cfg.Logging.File = f.logFile
	}
	cfg.Session.Breakpoints = append(cfg.Session.Breakpoints, f.breakpoints...)
}
