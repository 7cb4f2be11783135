// Package staging manages the transient directory the camera writes into.
package staging

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"baucam/internal/fs"
	"baucam/internal/timelapse"
)

// FileSystemStagingArea is the directory handed to the imaging tool. Files
// found there after a capture are moved into the local storage directory.
type FileSystemStagingArea struct {
	dir  string
	dest string
	skip *SkipMatcher
}

var _ timelapse.StagingArea = (*FileSystemStagingArea)(nil)

// NewFileSystemStagingArea creates the staging and destination directories
// if needed. Files matching skip patterns are left in place when collecting
// and removed on the next Clear.
func NewFileSystemStagingArea(dir, dest string, skip []string) (*FileSystemStagingArea, error) {
	for _, d := range []string{dir, dest} {
		if err := os.MkdirAll(d, 0755); err != nil {
			return nil, fmt.Errorf("creating directory %s: %w", d, err)
		}
	}
	return &FileSystemStagingArea{dir: dir, dest: dest, skip: NewSkipMatcher(skip)}, nil
}

// Dir returns the staging directory.
func (s *FileSystemStagingArea) Dir() string { return s.dir }

// Clear removes everything in the staging directory.
func (s *FileSystemStagingArea) Clear() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("reading staging directory: %w", err)
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(s.dir, e.Name())); err != nil {
			return fmt.Errorf("removing %s: %w", e.Name(), err)
		}
	}
	return nil
}

// Staged lists the regular files in the staging directory that are not
// matched by a skip pattern, in directory order.
func (s *FileSystemStagingArea) Staged() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("reading staging directory: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() && !s.skip.Match(e.Name()) {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// Collect moves each staged file to the destination directory as baseName
// plus the file's extension. A name already taken gets a numeric suffix, so
// two files with the same extension never overwrite each other.
func (s *FileSystemStagingArea) Collect(baseName string) ([]string, error) {
	staged, err := s.Staged()
	if err != nil {
		return nil, err
	}

	var moved []string
	for _, src := range staged {
		name := s.freeName(baseName, filepath.Ext(src))
		if err := fs.MoveFile(filepath.Join(s.dir, src), filepath.Join(s.dest, name)); err != nil {
			return moved, fmt.Errorf("moving %s: %w", src, err)
		}
		moved = append(moved, name)
	}
	return moved, nil
}

func (s *FileSystemStagingArea) freeName(baseName, ext string) string {
	name := baseName + ext
	for i := 1; exists(filepath.Join(s.dest, name)); i++ {
		name = baseName + "_" + strconv.Itoa(i) + ext
	}
	return name
}

func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}
