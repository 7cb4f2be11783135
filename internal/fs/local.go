// Package fs implements local storage for captured artifacts.
package fs

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"baucam/internal/timelapse"
)

// LocalStorage is the directory on the controller that holds captured files
// until they are archived and reclaimed.
type LocalStorage struct {
	root string
}

var _ timelapse.LocalStorage = (*LocalStorage)(nil)

// NewLocalStorage creates the storage directory if needed.
func NewLocalStorage(root string) (*LocalStorage, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("creating local storage directory: %w", err)
	}
	return &LocalStorage{root: root}, nil
}

// Root returns the storage directory.
func (l *LocalStorage) Root() string { return l.root }

// Path returns the absolute path of a stored file.
func (l *LocalStorage) Path(name string) string {
	return filepath.Join(l.root, filepath.Base(name))
}

// Open opens a stored file for reading.
func (l *LocalStorage) Open(name string) (io.ReadCloser, fs.FileInfo, error) {
	f, err := os.Open(l.Path(name))
	if err != nil {
		return nil, nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("stat %s: %w", name, err)
	}
	if !info.Mode().IsRegular() {
		f.Close()
		return nil, nil, fmt.Errorf("not a regular file: %s", name)
	}
	return f, info, nil
}

// Remove deletes a stored file.
func (l *LocalStorage) Remove(name string) error {
	return os.Remove(l.Path(name))
}

// Exists reports whether name is present.
func (l *LocalStorage) Exists(name string) bool {
	info, err := os.Stat(l.Path(name))
	return err == nil && info.Mode().IsRegular()
}

// FreeSpace returns the bytes available to unprivileged writers on the
// filesystem holding the storage directory.
func (l *LocalStorage) FreeSpace() (uint64, error) {
	return FreeSpace(l.root)
}
