package loader

import (
	"errors"
	"io/fs"
	"reflect"
	"testing"
)

// MemFS is an in-memory file system for testing.
type MemFS struct {
	files map[string][]byte
}

func NewMemFS() *MemFS {
	return &MemFS{files: make(map[string][]byte)}
}

func (m *MemFS) AddFile(path string, content string) {
	m.files[path] = []byte(content)
}

func (m *MemFS) ReadFile(path string) ([]byte, error) {
	data, ok := m.files[path]
	if !ok {
		return nil, fs.ErrNotExist
	}
	return data, nil
}

func TestTOMLLoader_Load(t *testing.T) {
	memfs := NewMemFS()
	memfs.AddFile("/vmdb.toml", `
[target]
host = "10.0.0.2"
port = 1234

[session]
breakpoints = [0x401000, "0x401010"]
`)

	config, err := NewTOMLLoaderWithFS(memfs, "/vmdb.toml").Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	target, ok := config["target"].(map[string]any)
	if !ok {
		t.Fatalf("target section missing: %v", config)
	}
	if target["host"] != "10.0.0.2" {
		t.Errorf("host = %v", target["host"])
	}
	if target["port"] != int64(1234) {
		t.Errorf("port = %#v", target["port"])
	}
	bps := config["session"].(map[string]any)["breakpoints"].([]any)
	if len(bps) != 2 || bps[0] != int64(0x401000) || bps[1] != "0x401010" {
		t.Errorf("breakpoints = %#v", bps)
	}
}

func TestTOMLLoader_ParseError(t *testing.T) {
	memfs := NewMemFS()
	memfs.AddFile("/bad.toml", "[target]\nport = = 3\n")

	_, err := NewTOMLLoaderWithFS(memfs, "/bad.toml").Load()
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("expected ParseError, got %v", err)
	}
	if perr.Path != "/bad.toml" || perr.Line != 2 {
		t.Errorf("ParseError = %+v", perr)
	}
}

func TestYAMLLoader_Load(t *testing.T) {
	memfs := NewMemFS()
	memfs.AddFile("/vmdb.yaml", `
tools:
  gdb: gdb-multiarch
  gdbArgs: ["-q"]
ui:
  theme:
    border: "#808080"
`)

	config, err := NewYAMLLoaderWithFS(memfs, "/vmdb.yaml").Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	tools := config["tools"].(map[string]any)
	if tools["gdb"] != "gdb-multiarch" {
		t.Errorf("gdb = %v", tools["gdb"])
	}
	if !reflect.DeepEqual(tools["gdbArgs"], []any{"-q"}) {
		t.Errorf("gdbArgs = %#v", tools["gdbArgs"])
	}
	theme := config["ui"].(map[string]any)["theme"].(map[string]any)
	if theme["border"] != "#808080" {
		t.Errorf("border = %v", theme["border"])
	}
}

func TestYAMLLoader_ParseError(t *testing.T) {
	memfs := NewMemFS()
	memfs.AddFile("/bad.yml", "target: [unclosed\n")

	_, err := NewYAMLLoaderWithFS(memfs, "/bad.yml").Load()
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("expected ParseError, got %v", err)
	}
}

func TestLoaders_MissingFile(t *testing.T) {
	memfs := NewMemFS()
	for _, l := range []Loader{
		NewTOMLLoaderWithFS(memfs, "/none.toml"),
		NewYAMLLoaderWithFS(memfs, "/none.yaml"),
	} {
		config, err := l.Load()
		if err != nil || config != nil {
			t.Errorf("%T: Load = %v, %v; want nil, nil", l, config, err)
		}
	}
}

func TestForPath(t *testing.T) {
	memfs := NewMemFS()
	tests := []struct {
		path    string
		want    string
		wantErr bool
	}{
		{"vmdb.toml", "*loader.TOMLLoader", false},
		{"vmdb.TOML", "*loader.TOMLLoader", false},
		{"vmdb.yaml", "*loader.YAMLLoader", false},
		{"vmdb.yml", "*loader.YAMLLoader", false},
		{"vmdb.json", "", true},
		{"vmdb", "", true},
	}
	for _, tt := range tests {
		l, err := ForPath(memfs, tt.path)
		if tt.wantErr {
			if !errors.Is(err, ErrUnsupportedFormat) {
				t.Errorf("ForPath(%q) error = %v", tt.path, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ForPath(%q) error = %v", tt.path, err)
			continue
		}
		if got := reflect.TypeOf(l).String(); got != tt.want {
			t.Errorf("ForPath(%q) = %s, want %s", tt.path, got, tt.want)
		}
	}
}

func TestDeepMerge(t *testing.T) {
	dst := map[string]any{
		"target": map[string]any{"host": "localhost", "port": 1234},
		"tools":  map[string]any{"gdb": "gdb"},
	}
	src := map[string]any{
		"target": map[string]any{"port": 3333},
		"tools":  "replaced",
		"extra":  true,
	}

	got := DeepMerge(dst, src)
	want := map[string]any{
		"target": map[string]any{"host": "localhost", "port": 3333},
		"tools":  "replaced",
		"extra":  true,
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("DeepMerge = %v, want %v", got, want)
	}

	if got := DeepMerge(nil, nil); got == nil || len(got) != 0 {
		t.Errorf("DeepMerge(nil, nil) = %v", got)
	}
}

func TestClone(t *testing.T) {
	src := map[string]any{
		"source": map[string]any{"searchPaths": []any{"a", map[string]any{"k": 1}}},
	}
	dst := Clone(src)
	dst["source"].(map[string]any)["searchPaths"].([]any)[0] = "b"

	if src["source"].(map[string]any)["searchPaths"].([]any)[0] != "a" {
		t.Error("Clone shares slices with the source")
	}
	if Clone(nil) != nil {
		t.Error("Clone(nil) != nil")
	}
}

func TestSetByPath(t *testing.T) {
	data := map[string]any{"target": "scalar"}
	SetByPath(data, "target.host", "h")
	SetByPath(data, "logging.level", "debug")
	SetByPath(data, "top", 1)

	want := map[string]any{
		"target":  map[string]any{"host": "h"},
		"logging": map[string]any{"level": "debug"},
		"top":     1,
	}
	if !reflect.DeepEqual(data, want) {
		t.Errorf("data = %v, want %v", data, want)
	}
}
