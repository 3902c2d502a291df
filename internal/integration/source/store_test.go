package source

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func newTestStore(t *testing.T, paths ...string) *Store {
	t.Helper()
	s, err := NewStore(paths, nil)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestLookupSearchPaths(t *testing.T) {
	root := t.TempDir()
	first := filepath.Join(root, "first")
	second := filepath.Join(root, "second")
	writeFile(t, filepath.Join(second, "src", "main.c"), "int main(void)\n{\n\treturn 0;\n}\n")

	s := newTestStore(t, first, second)

	f, err := s.Lookup("src/main.c")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if f.Path != filepath.Join(second, "src", "main.c") {
		t.Errorf("Path = %q", f.Path)
	}
	if len(f.Lines) != 4 {
		t.Fatalf("expected 4 lines, got %d", len(f.Lines))
	}
	if f.Lines[2] != "    return 0;" {
		t.Errorf("tab not expanded: %q", f.Lines[2])
	}
}

func TestLookupAbsolute(t *testing.T) {
	path := filepath.Join(t.TempDir(), "start.S")
	writeFile(t, path, "_start:\n")

	s := newTestStore(t)
	f, err := s.Lookup(path)
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if f.Lines[0] != "_start:" {
		t.Errorf("unexpected contents %q", f.Lines)
	}
}

func TestLookupCached(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.c")
	writeFile(t, path, "a\n")

	s := newTestStore(t)
	f1, err := s.Lookup(path)
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	f2, _ := s.Lookup(path)
	if f1 != f2 {
		t.Error("expected cached file on second lookup")
	}
	if !s.Cached(path) {
		t.Error("Cached reported false")
	}
}

func TestLookupMissing(t *testing.T) {
	dir := t.TempDir()
	s := newTestStore(t, dir)

	now := time.Unix(1000, 0)
	s.now = func() time.Time { return now }

	if _, err := s.Lookup("late.c"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	writeFile(t, filepath.Join(dir, "late.c"), "late\n")

	if _, err := s.Lookup("late.c"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected remembered miss, got %v", err)
	}

	now = now.Add(2 * missRetry)
	f, err := s.Lookup("late.c")
	if err != nil {
		t.Fatalf("Lookup after retry window failed: %v", err)
	}
	if f.Lines[0] != "late" {
		t.Errorf("unexpected contents %q", f.Lines)
	}
}

func TestLookupReloadsChangedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "main.c")
	writeFile(t, path, "old\n")

	s := newTestStore(t)
	if _, err := s.Lookup(path); err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}

	writeFile(t, path, "new\nlines\n")

	deadline := time.Now().Add(5 * time.Second)
	for {
		f, err := s.Lookup(path)
		if err == nil && len(f.Lines) == 2 && f.Lines[0] == "new" {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("file not reloaded: %v %v", f, err)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestLookupDirectoryIsNotAFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "pkg"), 0o755); err != nil {
		t.Fatal(err)
	}
	s := newTestStore(t, dir)
	if _, err := s.Lookup("pkg"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestClose(t *testing.T) {
	s, err := NewStore(nil, nil)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
	if _, err := s.Lookup("x.c"); !errors.Is(err, ErrStoreClosed) {
		t.Errorf("expected ErrStoreClosed, got %v", err)
	}
}
