// Package source finds, caches and watches the source files gdb reports.
package source

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dshills/vmdb/internal/logging"
	"github.com/dshills/vmdb/internal/renderer/core"
)

// TabWidth is the tab stop used when displaying source.
const TabWidth = 4

// missRetry is how long a failed lookup is remembered.
const missRetry = time.Second

// Sentinel errors for the source store.
var (
	// ErrNotFound is returned when a file is not found on any search path.
	ErrNotFound = errors.New("source file not found")

	// ErrStoreClosed is returned by Lookup after Close.
	ErrStoreClosed = errors.New("source store closed")
)

// File is a loaded source file.
type File struct {
	// Path is the absolute path the file was read from.
	Path string
	// Lines holds the file's lines with tabs expanded.
	Lines []string
}

// Store resolves file names against search paths and caches their
// contents. Cached files are dropped when they change on disk, so the next
// Lookup reads them again.
//
// Store is safe for concurrent use.
type Store struct {
	mu          sync.Mutex
	searchPaths []string
	files       map[string]*File     // absolute path -> contents
	resolved    map[string]string    // reported name -> absolute path
	misses      map[string]time.Time // reported name -> time of failed lookup
	watchedDirs map[string]bool
	closed      bool

	watcher *fsnotify.Watcher
	logger  *logging.Logger
	wg      sync.WaitGroup
	now     func() time.Time
}

// NewStore creates a store that looks names up relative to each of
// searchPaths in order, then relative to the working directory.
func NewStore(searchPaths []string, logger *logging.Logger) (*Store, error) {
	if logger == nil {
		logger = logging.Discard()
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create source watcher: %w", err)
	}

	s := &Store{
		searchPaths: append([]string(nil), searchPaths...),
		files:       make(map[string]*File),
		resolved:    make(map[string]string),
		misses:      make(map[string]time.Time),
		watchedDirs: make(map[string]bool),
		watcher:     w,
		logger:      logger.WithComponent("source"),
		now:         time.Now,
	}

	s.wg.Add(1)
	go s.watchLoop()

	return s, nil
}

// Lookup returns the contents of the file gdb reported as name.
func (s *Store) Lookup(name string) (*File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	path, ok := s.resolved[name]
	if !ok {
		if at, missed := s.misses[name]; missed && s.now().Sub(at) < missRetry {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		found, err := s.resolve(name)
		if err != nil {
			s.misses[name] = s.now()
			return nil, err
		}
		delete(s.misses, name)
		s.resolved[name] = found
		path = found
	}

	if f, ok := s.files[path]; ok {
		return f, nil
	}

	f, err := readFile(path)
	if err != nil {
		delete(s.resolved, name)
		return nil, err
	}
	s.files[path] = f
	s.watchDir(filepath.Dir(path))
	s.logger.Debug("loaded %s (%d lines)", path, len(f.Lines))
	return f, nil
}

func (s *Store) resolve(name string) (string, error) {
	var candidates []string
	if filepath.IsAbs(name) {
		candidates = []string{name}
	} else {
		for _, dir := range s.searchPaths {
			candidates = append(candidates, filepath.Join(dir, name))
		}
		candidates = append(candidates, name)
	}

	for _, c := range candidates {
		info, err := os.Stat(c)
		if err != nil || info.IsDir() {
			continue
		}
		abs, err := filepath.Abs(c)
		if err != nil {
			continue
		}
		return abs, nil
	}
	return "", fmt.Errorf("%w: %s", ErrNotFound, name)
}

func readFile(path string) (*File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open source: %w", err)
	}
	defer fh.Close()

	f := &File{Path: path}
	sc := bufio.NewScanner(fh)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		f.Lines = append(f.Lines, core.ExpandTabs(sc.Text(), TabWidth))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read source %s: %w", path, err)
	}
	return f, nil
}

// watchDir watches the directory holding a cached file. Directories are
// watched rather than files so editors that replace files by rename are
// noticed. Must be called with s.mu held.
func (s *Store) watchDir(dir string) {
	if s.watchedDirs[dir] {
		return
	}
	if err := s.watcher.Add(dir); err != nil {
		s.logger.Warn("watch %s: %v", dir, err)
		return
	}
	s.watchedDirs[dir] = true
}

func (s *Store) watchLoop() {
	defer s.wg.Done()
	for {
		select {
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) ||
				ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
				s.invalidate(ev.Name)
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn("watcher: %v", err)
		}
	}
}

func (s *Store) invalidate(path string) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.files[abs]; !ok {
		return
	}
	delete(s.files, abs)
	for name, p := range s.resolved {
		if p == abs {
			delete(s.resolved, name)
		}
	}
	s.logger.Debug("invalidated %s", abs)
}

// Cached reports whether the file at the absolute path is cached.
func (s *Store) Cached(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.files[path]
	return ok
}

// Close stops watching and releases the cache.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.files = nil
	s.mu.Unlock()

	err := s.watcher.Close()
	s.wg.Wait()
	return err
}
