// Package main is the entry point for the vmdb debugging console.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/dshills/vmdb/internal/app"
	"github.com/dshills/vmdb/internal/config"
	"github.com/dshills/vmdb/internal/event"
	"github.com/dshills/vmdb/internal/integration/disasm"
	"github.com/dshills/vmdb/internal/integration/gdb"
	"github.com/dshills/vmdb/internal/integration/process"
	"github.com/dshills/vmdb/internal/integration/source"
	"github.com/dshills/vmdb/internal/logging"
	"github.com/dshills/vmdb/internal/renderer/backend"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// stopGrace is how long gdb and the disassembler get after SIGTERM.
const stopGrace = 2 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	flags := parseFlags(os.Args[1:])

	cfg, err := config.Load(flags.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: loading config: %v\n", err)
		return 1
	}
	flags.apply(cfg)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid configuration:\n%v\n", err)
		return 2
	}

	if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Fprintln(os.Stderr, "Error: vmdb must be run in a terminal")
		return 1
	}

	logger, closeLog, err := openLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := session(ctx, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("%v", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// session starts the collaborators, runs the console and tears everything
// down. Launch failures are returned before the terminal is taken over.
func session(ctx context.Context, cfg *config.Config, logger *logging.Logger) error {
	sup := process.NewSupervisor(process.WithLogger(logger))
	defer sup.Shutdown(stopGrace)

	listing, err := disasm.Load(ctx, sup, cfg.Tools.Disassembler, cfg.Target.ELF)
	if err != nil {
		return fmt.Errorf("disassembling %s: %w", cfg.Target.ELF, err)
	}
	logger.Info("loaded %d disassembly lines from %s", listing.Len(), cfg.Target.ELF)

	files, err := source.NewStore(cfg.Source.SearchPaths, logger)
	if err != nil {
		return &app.InitError{Component: "source store", Err: err}
	}
	defer files.Close()

	queue := event.NewQueue(cfg.Session.QueueSize)
	defer queue.Close()

	drv, err := gdb.Start(ctx, sup, gdb.Endpoint{Host: cfg.Target.Host, Port: cfg.Target.Port}, gdb.Config{
		Path:         cfg.Tools.GDB,
		Args:         cfg.Tools.GDBArgs,
		BannerLines:  cfg.Tools.BannerLines,
		MemoryBytes:  cfg.Session.MemoryBytes,
		StopGrace:    stopGrace,
		InitCommands: cfg.Session.InitCommands,
	}, queue, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := drv.Close(); err != nil {
			logger.Warn("closing debugger: %v", err)
		}
	}()

	for _, addr := range cfg.BreakpointAddresses() {
		if err := drv.Break(addr); err != nil {
			return app.NewOperationError("break", fmt.Sprintf("0x%x", addr), err)
		}
	}

	theme, err := cfg.UI.Theme.FrameTheme()
	if err != nil {
		return err
	}

	screen, err := backend.NewTerminal()
	if err != nil {
		return &app.InitError{Component: "terminal", Err: err}
	}

	console := app.New(screen, drv, queue, listing, files, app.Options{
		Tick:   time.Duration(cfg.Session.TickMs) * time.Millisecond,
		Theme:  theme,
		Logger: logger,
	})
	return console.Run(ctx)
}

// openLogger opens the configured log file, or discards logs when none is
// set.
func openLogger(cfg config.LoggingConfig) (*logging.Logger, func() error, error) {
	level, _ := logging.ParseLevel(cfg.Level)
	if cfg.File == "" {
		return logging.Discard(), func() error { return nil }, nil
	}
	return logging.OpenFile(cfg.File, level, "vmdb")
}
