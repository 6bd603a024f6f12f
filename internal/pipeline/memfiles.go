package pipeline

import (
	"fmt"
	"io/fs"
	"sync"
)

// MemoryFiles implements Reader over an in-memory file table, for tests
// and for linting text that never touched the disk.
type MemoryFiles struct {
	mu    sync.RWMutex
	Files map[string][]byte
	reads map[string]int
}

// WriteFile stores data in memory.
func (m *MemoryFiles) WriteFile(path string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Files == nil {
		m.Files = make(map[string][]byte)
	}
	m.Files[path] = data
	return nil
}

// ReadFile returns a copy of the stored content. Missing paths report
// fs.ErrNotExist.
func (m *MemoryFiles) ReadFile(path string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, ok := m.Files[path]
	if !ok {
		return nil, fmt.Errorf("open %s: %w", path, fs.ErrNotExist)
	}
	if m.reads == nil {
		m.reads = make(map[string]int)
	}
	m.reads[path]++
	return append([]byte(nil), data...), nil
}

// Reads reports how often path has been read.
func (m *MemoryFiles) Reads(path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.reads[path]
}

// HasFile checks if a file exists.
func (m *MemoryFiles) HasFile(path string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.Files[path]
	return ok
}

// FileCount returns the number of files.
func (m *MemoryFiles) FileCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.Files)
}

var _ Reader = (*MemoryFiles)(nil)
