// Package testing provides SSH mock utilities for testing.
// It simulates a remote device with an in-memory filesystem, either behind
// a MockClient or behind a real in-process SSH server.
package testing

import (
	"errors"
	"path/filepath"
	"sort"
	"sync"
)

// MockFS simulates an in-memory remote filesystem with an executable bit.
type MockFS struct {
	mu    sync.RWMutex
	files map[string][]byte
	exec  map[string]bool
}

// NewMockFS creates a new empty mock filesystem.
func NewMockFS() *MockFS {
	return &MockFS{
		files: make(map[string][]byte),
		exec:  make(map[string]bool),
	}
}

// WriteFile writes content to a file. Rewriting a file clears its
// executable bit, like `cat >` onto a fresh path.
func (fs *MockFS) WriteFile(path string, content []byte) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	path = filepath.Clean(path)
	if _, exists := fs.files[path]; !exists {
		fs.exec[path] = false
	}
	fs.files[path] = append([]byte(nil), content...)
	return nil
}

// ReadFile reads the content of a file.
func (fs *MockFS) ReadFile(path string) ([]byte, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	content, ok := fs.files[filepath.Clean(path)]
	if !ok {
		return nil, errors.New("file not found")
	}
	return append([]byte(nil), content...), nil
}

// Chmod sets or clears the executable bit.
func (fs *MockFS) Chmod(path string, executable bool) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	path = filepath.Clean(path)
	if _, ok := fs.files[path]; !ok {
		return errors.New("file not found")
	}
	fs.exec[path] = executable
	return nil
}

// IsFile returns true if path exists as a file.
func (fs *MockFS) IsFile(path string) bool {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	_, ok := fs.files[filepath.Clean(path)]
	return ok
}

// IsExecutable returns true if path exists and has its executable bit set.
func (fs *MockFS) IsExecutable(path string) bool {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.exec[filepath.Clean(path)]
}

// ListFiles returns all file paths, sorted.
func (fs *MockFS) ListFiles() []string {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	paths := make([]string, 0, len(fs.files))
	for p := range fs.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
