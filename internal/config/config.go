package config

import (
	"errors"
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/dshills/vmdb/internal/config/loader"
	"github.com/dshills/vmdb/internal/logging"
	"github.com/dshills/vmdb/internal/renderer/core"
	"github.com/dshills/vmdb/internal/renderer/frame"
)

// EnvPrefix is the prefix of environment variables read by Load.
const EnvPrefix = "VMDB_"

// Config is the decoded session configuration.
type Config struct {
	Target  TargetConfig  `yaml:"target"`
	Tools   ToolsConfig   `yaml:"tools"`
	Session SessionConfig `yaml:"session"`
	UI      UIConfig      `yaml:"ui"`
	Logging LoggingConfig `yaml:"logging"`
	Source  SourceConfig  `yaml:"source"`
}

// TargetConfig names the remote stub and the image being debugged.
type TargetConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	ELF  string `yaml:"elf"`
}

// ToolsConfig configures the external programs.
type ToolsConfig struct {
	GDB          string   `yaml:"gdb"`
	GDBArgs      []string `yaml:"gdbArgs"`
	Disassembler string   `yaml:"disassembler"`
	BannerLines  int      `yaml:"bannerLines"`
}

// SessionConfig tunes the main loop and the driver.
type SessionConfig struct {
	TickMs       int       `yaml:"tickMs"`
	QueueSize    int       `yaml:"queueSize"`
	MemoryBytes  int       `yaml:"memoryBytes"`
	Breakpoints  []Address `yaml:"breakpoints"`
	InitCommands []string  `yaml:"initCommands"`
}

// UIConfig holds presentation settings.
type UIConfig struct {
	Theme ThemeConfig `yaml:"theme"`
}

// ThemeConfig holds hex colours ("#rrggbb") for frame parts. Empty means
// the terminal default.
type ThemeConfig struct {
	Border  string `yaml:"border"`
	Title   string `yaml:"title"`
	Thumb   string `yaml:"thumb"`
	Content string `yaml:"content"`
}

// LoggingConfig selects the log level and file. No file discards logs.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// SourceConfig lists directories searched for source files.
type SourceConfig struct {
	SearchPaths []string `yaml:"searchPaths"`
}

// Address is a code address that decodes from an integer or from a string
// in any base strconv accepts ("0x401000", "4198400").
type Address uint64

// UnmarshalYAML implements yaml.Unmarshaler.
func (a *Address) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: address must be a scalar", n.Line)
	}
	v, err := strconv.ParseUint(n.Value, 0, 64)
	if err != nil {
		return fmt.Errorf("line %d: invalid address %q", n.Line, n.Value)
	}
	*a = Address(v)
	return nil
}

// Defaults returns the compiled-in settings as a configuration map.
func Defaults() map[string]any {
	return map[string]any{
		"target": map[string]any{
			"host": "localhost",
			"port": 1234,
			"elf":  "",
		},
		"tools": map[string]any{
			"gdb":          "gdb",
			"gdbArgs":      []any{"-q", "-nx"},
			"disassembler": "objdump",
			"bannerLines":  0,
		},
		"session": map[string]any{
			"tickMs":       5,
			"queueSize":    64,
			"memoryBytes":  64,
			"breakpoints":  []any{},
			"initCommands": []any{},
		},
		"ui": map[string]any{
			"theme": map[string]any{
				"border":  "",
				"title":   "",
				"thumb":   "",
				"content": "",
			},
		},
		"logging": map[string]any{
			"level": "info",
			"file":  "",
		},
		"source": map[string]any{
			"searchPaths": []any{"."},
		},
	}
}

// Load builds the configuration from defaults, the file at path (if path is
// not empty) and the environment.
func Load(path string) (*Config, error) {
	var sources []loader.Loader
	if path != "" {
		l, err := loader.ForPath(loader.DefaultFS(), path)
		if err != nil {
			return nil, err
		}
		sources = append(sources, l)
	}
	sources = append(sources, loader.NewEnvLoader(EnvPrefix))
	return LoadFrom(sources...)
}

// LoadFrom merges the given sources over the defaults and decodes the result.
func LoadFrom(sources ...loader.Loader) (*Config, error) {
	merged := Defaults()
	for _, src := range sources {
		data, err := src.Load()
		if err != nil {
			return nil, err
		}
		merged = loader.DeepMerge(merged, data)
	}
	return Decode(merged)
}

// Decode converts a configuration map into a Config.
func Decode(data map[string]any) (*Config, error) {
	raw, err := yaml.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encoding config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	return &cfg, nil
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error
	invalid := func(path, msg string, v any) {
		errs = append(errs, &ValidationError{Path: path, Message: msg, Value: v})
	}

	if c.Target.Host == "" {
		invalid("target.host", "must not be empty", c.Target.Host)
	}
	if c.Target.Port < 1 || c.Target.Port > 65535 {
		invalid("target.port", "must be between 1 and 65535", c.Target.Port)
	}
	if c.Target.ELF == "" {
		invalid("target.elf", "must name the image to debug", c.Target.ELF)
	}
	if c.Tools.GDB == "" {
		invalid("tools.gdb", "must not be empty", c.Tools.GDB)
	}
	if c.Tools.Disassembler == "" {
		invalid("tools.disassembler", "must not be empty", c.Tools.Disassembler)
	}
	if c.Tools.BannerLines < 0 {
		invalid("tools.bannerLines", "must not be negative", c.Tools.BannerLines)
	}
	if c.Session.TickMs <= 0 {
		invalid("session.tickMs", "must be positive", c.Session.TickMs)
	}
	if c.Session.QueueSize <= 0 {
		invalid("session.queueSize", "must be positive", c.Session.QueueSize)
	}
	if c.Session.MemoryBytes <= 0 {
		invalid("session.memoryBytes", "must be positive", c.Session.MemoryBytes)
	}
	if _, ok := logging.ParseLevel(c.Logging.Level); !ok {
		invalid("logging.level", "must be debug, info, warn or error", c.Logging.Level)
	}
	if _, err := c.UI.Theme.FrameTheme(); err != nil {
		invalid("ui.theme", err.Error(), c.UI.Theme)
	}

	return errors.Join(errs...)
}

// FrameTheme converts the configured colours into a frame theme.
func (t ThemeConfig) FrameTheme() (frame.Theme, error) {
	theme := frame.DefaultTheme()
	for _, part := range []struct {
		name  string
		hex   string
		style *core.Style
	}{
		{"border", t.Border, &theme.Border},
		{"title", t.Title, &theme.Title},
		{"thumb", t.Thumb, &theme.Thumb},
		{"content", t.Content, &theme.Content},
	} {
		if part.hex == "" {
			continue
		}
		c, err := core.ColorFromHex(part.hex)
		if err != nil {
			return theme, fmt.Errorf("%s colour: %w", part.name, err)
		}
		*part.style = part.style.WithForeground(c)
	}
	return theme, nil
}

// BreakpointAddresses returns the configured initial breakpoints.
func (c *Config) BreakpointAddresses() []uint64 {
	addrs := make([]uint64, len(c.Session.Breakpoints))
	for i, a := range c.Session.Breakpoints {
		addrs[i] = uint64(a)
	}
	return addrs
}
