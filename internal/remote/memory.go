package remote

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"baucam/internal/timelapse"
)

// MemoryRemote is an in-memory remote, useful for tests and dry runs.
// It is safe for concurrent use.
type MemoryRemote struct {
	mu      sync.RWMutex
	alive   bool
	files   map[string][]byte
	times   map[string]time.Time
	failPut map[string]error
	puts    int
}

var _ timelapse.Remote = (*MemoryRemote)(nil)

// NewMemoryRemote creates an empty remote whose marker is present.
func NewMemoryRemote() *MemoryRemote {
	return &MemoryRemote{
		alive:   true,
		files:   make(map[string][]byte),
		times:   make(map[string]time.Time),
		failPut: make(map[string]error),
	}
}

// SetAlive sets whether the liveness marker is present.
func (m *MemoryRemote) SetAlive(alive bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alive = alive
}

// FailPut makes every Put of name return err.
func (m *MemoryRemote) FailPut(name string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failPut[name] = err
}

// Puts returns the number of successful Put calls.
func (m *MemoryRemote) Puts() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.puts
}

// Content returns the stored bytes of name.
func (m *MemoryRemote) Content(name string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.files[name]
	return data, ok
}

func (m *MemoryRemote) Alive(ctx context.Context) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.alive, nil
}

func (m *MemoryRemote) Put(ctx context.Context, name string, r io.Reader, size int64, modTime time.Time) error {
	m.mu.RLock()
	failErr := m.failPut[name]
	m.mu.RUnlock()
	if failErr != nil {
		return failErr
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read content: %w", err)
	}
	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[name] = data
	m.times[name] = modTime
	m.puts++
	return nil
}

func (m *MemoryRemote) Exists(ctx context.Context, name string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.files[name]
	return ok, nil
}

func (m *MemoryRemote) List(ctx context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var names []string
	for n := range m.files {
		if strings.HasPrefix(n, prefix) {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (m *MemoryRemote) Delete(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, name)
	delete(m.times, name)
	return nil
}
