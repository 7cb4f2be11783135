package testutil

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"sync"
	"time"

	"baucam/internal/timelapse"
)

// MemoryStorage is an in-memory local store that simulates free space:
// removing a file frees its size.
type MemoryStorage struct {
	mu         sync.Mutex
	files      map[string]*MockFile
	free       uint64
	removeErr  error
	freeErr    error
	removedLog []string
}

// MockFile represents a file in the memory store.
type MockFile struct {
	Content []byte
	ModTime time.Time
}

var _ timelapse.LocalStorage = (*MemoryStorage)(nil)

// NewMemoryStorage creates an empty store reporting free bytes available.
func NewMemoryStorage(free uint64) *MemoryStorage {
	return &MemoryStorage{files: make(map[string]*MockFile), free: free}
}

// AddFile adds a file to the store without changing free space.
func (m *MemoryStorage) AddFile(name string, content []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[name] = &MockFile{Content: content, ModTime: time.Date(2024, 1, 15, 10, 30, 0, 0, time.Local)}
}

// SetRemoveError makes every Remove fail with err.
func (m *MemoryStorage) SetRemoveError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeErr = err
}

// SetFreeSpaceError makes FreeSpace fail with err.
func (m *MemoryStorage) SetFreeSpaceError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.freeErr = err
}

// Has reports whether name is stored.
func (m *MemoryStorage) Has(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.files[name]
	return ok
}

// Removed returns the names passed to successful Remove calls, in order.
func (m *MemoryStorage) Removed() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.removedLog...)
}

func (m *MemoryStorage) Path(name string) string { return "/mem/" + name }

func (m *MemoryStorage) Open(name string) (io.ReadCloser, fs.FileInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[name]
	if !ok {
		return nil, nil, fmt.Errorf("open %s: %w", name, fs.ErrNotExist)
	}
	info := &mockFileInfo{name: name, size: int64(len(f.Content)), modTime: f.ModTime}
	return io.NopCloser(bytes.NewReader(f.Content)), info, nil
}

func (m *MemoryStorage) Remove(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.removeErr != nil {
		return m.removeErr
	}
	f, ok := m.files[name]
	if !ok {
		return fmt.Errorf("remove %s: %w", name, fs.ErrNotExist)
	}
	delete(m.files, name)
	m.free += uint64(len(f.Content))
	m.removedLog = append(m.removedLog, name)
	return nil
}

func (m *MemoryStorage) FreeSpace() (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.freeErr != nil {
		return 0, m.freeErr
	}
	return m.free, nil
}

// mockFileInfo implements fs.FileInfo
type mockFileInfo struct {
	name    string
	size    int64
	modTime time.Time
}

func (m *mockFileInfo) Name() string       { return m.name }
func (m *mockFileInfo) Size() int64        { return m.size }
func (m *mockFileInfo) Mode() fs.FileMode  { return 0644 }
func (m *mockFileInfo) ModTime() time.Time { return m.modTime }
func (m *mockFileInfo) IsDir() bool        { return false }
func (m *mockFileInfo) Sys() any           { return nil }
