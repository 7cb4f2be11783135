package timelapse

import (
	"context"
	"io"
	"io/fs"
	"time"
)

// StagingArea is the transient directory the camera writes into.
type StagingArea interface {
	// Dir returns the directory passed to the camera.
	Dir() string

	// Clear removes leftover files from prior attempts.
	Clear() error

	// Staged returns the names of the files Collect would move.
	Staged() ([]string, error)

	// Collect moves every staged file into the local store, naming each
	// baseName plus its original extension. It returns the new names, in the
	// order they were moved, including those moved before any error.
	Collect(baseName string) ([]string, error)
}

// LocalStorage is the local directory holding captured artifacts.
type LocalStorage interface {
	// Path returns the absolute path of a stored file.
	Path(name string) string

	// Open opens a stored file for reading. A missing file yields an error
	// matching fs.ErrNotExist.
	Open(name string) (io.ReadCloser, fs.FileInfo, error)

	// Remove deletes a stored file. A missing file yields an error matching fs.ErrNotExist.
	Remove(name string) error

	// FreeSpace returns the bytes available to unprivileged writers.
	FreeSpace() (uint64, error)
}

// Remote is the archive target. Names are flat file names.
type Remote interface {
	// Alive reports whether the liveness marker is present.
	Alive(ctx context.Context) (bool, error)

	// Put stores size bytes read from r under name, replacing any existing copy.
	Put(ctx context.Context, name string, r io.Reader, size int64, modTime time.Time) error

	// Exists reports whether name is stored.
	Exists(ctx context.Context, name string) (bool, error)

	// List returns the stored names starting with prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)

	// Delete removes name. Deleting a missing name is not an error.
	Delete(ctx context.Context, name string) error
}

// Encryptor optionally transforms metadata store backups before upload.
type Encryptor interface {
	// Encrypt reads plaintext from r and writes the transformed stream to w.
	Encrypt(r io.Reader, w io.Writer) error

	// Extension is appended to backup names ("" for pass-through).
	Extension() string
}
