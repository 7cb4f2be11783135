// Package remote implements the archive targets files are copied to.
package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"baucam/internal/timelapse"
)

// FileSystemRemote archives into a directory, typically a network share
// mounted on the controller. The root is never created: when the share is
// not mounted the marker is missing and archival is skipped instead of
// filling the local disk.
type FileSystemRemote struct {
	root   string
	marker string
}

var _ timelapse.Remote = (*FileSystemRemote)(nil)

// NewFileSystemRemote creates a remote rooted at root whose liveness marker
// is the file named marker inside root.
func NewFileSystemRemote(root, marker string) *FileSystemRemote {
	return &FileSystemRemote{root: root, marker: marker}
}

// Alive reports whether the marker file exists.
func (r *FileSystemRemote) Alive(ctx context.Context) (bool, error) {
	_, err := os.Stat(filepath.Join(r.root, r.marker))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("checking marker: %w", err)
	}
}

// Put writes the file atomically (temp file + rename) and sets its
// modification time.
func (r *FileSystemRemote) Put(ctx context.Context, name string, src io.Reader, size int64, modTime time.Time) error {
	destPath, err := r.path(name)
	if err != nil {
		return err
	}

	tmpFile, err := os.CreateTemp(r.root, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmpFile, src)
	if err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write data: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if written != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, written)
	}
	if err := os.Chtimes(tmpPath, modTime, modTime); err != nil {
		return fmt.Errorf("failed to set modification time: %w", err)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}

// Exists reports whether name is stored.
func (r *FileSystemRemote) Exists(ctx context.Context, name string) (bool, error) {
	p, err := r.path(name)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(p)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}

// List returns the stored names starting with prefix, sorted. The marker
// and temp files are never listed.
func (r *FileSystemRemote) List(ctx context.Context, prefix string) ([]string, error) {
	entries, err := os.ReadDir(r.root)
	if err != nil {
		return nil, fmt.Errorf("listing remote: %w", err)
	}
	var names []string
	for _, e := range entries {
		n := e.Name()
		if !e.Type().IsRegular() || n == r.marker || strings.HasPrefix(n, ".tmp-") {
			continue
		}
		if strings.HasPrefix(n, prefix) {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	return names, nil
}

// Delete removes name. A missing name is not an error.
func (r *FileSystemRemote) Delete(ctx context.Context, name string) error {
	p, err := r.path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (r *FileSystemRemote) path(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || name == r.marker {
		return "", fmt.Errorf("invalid remote name: %q", name)
	}
	return filepath.Join(r.root, name), nil
}
