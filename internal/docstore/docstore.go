// Package docstore reads and writes the markdown documents of all local layers.
package docstore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/natefinch/atomic"
)

// ErrNotFound is returned when a document does not exist.
var ErrNotFound = errors.New("document not found")

const (
	dirPerms  = 0o755
	filePerms = 0o644
)

// Store is the document persistence used by the sync engine.
type Store interface {
	ReadText(path string) (string, error)
	WriteText(path, text string) error
	Exists(path string) bool
}

// FS stores documents on the local filesystem. Writes are atomic per file.
type FS struct{}

// NewFS returns a filesystem-backed Store.
func NewFS() *FS {
	return &FS{}
}

// ReadText returns the file's content.
func (FS) ReadText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return string(data), nil
}

// WriteText replaces the file's content, creating parent directories as needed.
func (FS) WriteText(path, text string) error {
	if err := os.MkdirAll(filepath.Dir(path), dirPerms); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	_, statErr := os.Stat(path)
	isNew := errors.Is(statErr, fs.ErrNotExist)

	if err := atomic.WriteFile(path, strings.NewReader(text)); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	// atomic.WriteFile doesn't set permissions for new files
	if isNew {
		if err := os.Chmod(path, filePerms); err != nil {
			return fmt.Errorf("failed to set permissions on %s: %w", path, err)
		}
	}
	return nil
}

// Exists reports whether path names a regular file.
func (FS) Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// Memory is an in-process Store for tests.
type Memory struct {
	mu     sync.RWMutex
	docs   map[string]string
	writes map[string]int
}

// NewMemory returns a Memory store seeded with docs.
func NewMemory(docs map[string]string) *Memory {
	m := &Memory{docs: make(map[string]string), writes: make(map[string]int)}
	for p, text := range docs {
		m.docs[filepath.Clean(p)] = text
	}
	return m
}

// ReadText returns the stored document.
func (m *Memory) ReadText(path string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	text, ok := m.docs[filepath.Clean(path)]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	return text, nil
}

// WriteText stores the document.
func (m *Memory) WriteText(path, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := filepath.Clean(path)
	m.docs[p] = text
	m.writes[p]++
	return nil
}

// Exists reports whether the document is stored.
func (m *Memory) Exists(path string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.docs[filepath.Clean(path)]
	return ok
}

// Writes returns how many times path was written.
func (m *Memory) Writes(path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.writes[filepath.Clean(path)]
}

// Paths lists stored documents under dir, sorted.
func (m *Memory) Paths(dir string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	dir = filepath.Clean(dir)
	var out []string
	for p := range m.docs {
		if rel, err := filepath.Rel(dir, p); err == nil && !strings.HasPrefix(rel, "..") {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}
