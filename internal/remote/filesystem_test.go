package remote

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func newTestFSRemote(t *testing.T, withMarker bool) (*FileSystemRemote, string) {
	t.Helper()
	root := t.TempDir()
	if withMarker {
		if err := os.WriteFile(filepath.Join(root, "canary.txt"), nil, 0644); err != nil {
			t.Fatal(err)
		}
	}
	return NewFileSystemRemote(root, "canary.txt"), root
}

func TestFileSystemRemote_Alive(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("marker present", func(t *testing.T) {
		r, _ := newTestFSRemote(t, true)
		alive, err := r.Alive(ctx)
		if err != nil || !alive {
			t.Errorf("Alive() = %v, %v; want true, nil", alive, err)
		}
	})

	t.Run("marker missing", func(t *testing.T) {
		r, _ := newTestFSRemote(t, false)
		alive, err := r.Alive(ctx)
		if err != nil || alive {
			t.Errorf("Alive() = %v, %v; want false, nil", alive, err)
		}
	})

	t.Run("root not mounted", func(t *testing.T) {
		r := NewFileSystemRemote(filepath.Join(t.TempDir(), "share"), "canary.txt")
		alive, err := r.Alive(ctx)
		if err != nil || alive {
			t.Errorf("Alive() = %v, %v; want false, nil", alive, err)
		}
	})
}

func TestFileSystemRemote_Put(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r, root := newTestFSRemote(t, true)
	modTime := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

	content := []byte("jpeg data")
	if err := r.Put(ctx, "img.jpg", bytes.NewReader(content), int64(len(content)), modTime); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	info, err := os.Stat(filepath.Join(root, "img.jpg"))
	if err != nil {
		t.Fatalf("stat stored file: %v", err)
	}
	if !info.ModTime().Equal(modTime) {
		t.Errorf("ModTime = %v, want %v", info.ModTime(), modTime)
	}

	data, err := os.ReadFile(filepath.Join(root, "img.jpg"))
	if err != nil {
		t.Fatalf("reading stored file: %v", err)
	}
	if !bytes.Equal(data, content) {
		t.Errorf("stored content = %q, want %q", data, content)
	}

	exists, err := r.Exists(ctx, "img.jpg")
	if err != nil || !exists {
		t.Errorf("Exists() = %v, %v; want true, nil", exists, err)
	}
}

func TestFileSystemRemote_PutSizeMismatchLeavesNothing(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r, root := newTestFSRemote(t, true)

	if err := r.Put(ctx, "img.jpg", strings.NewReader("short"), 100, time.Now()); err == nil {
		t.Fatal("Put() with wrong size should return error")
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("remote has %d entries after failed Put, want only the marker", len(entries))
	}
}

func TestFileSystemRemote_RejectsBadNames(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r, _ := newTestFSRemote(t, true)

	for _, name := range []string{"", "../escape.jpg", "sub/img.jpg", "canary.txt"} {
		if err := r.Put(ctx, name, strings.NewReader("x"), 1, time.Now()); err == nil {
			t.Errorf("Put(%q) should return error", name)
		}
	}
}

func TestFileSystemRemote_ListDelete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r, _ := newTestFSRemote(t, true)

	for _, name := range []string{"img_dbBackup_2.db", "img_dbBackup_1.db", "img_1.jpg"} {
		if err := r.Put(ctx, name, strings.NewReader("x"), 1, time.Now()); err != nil {
			t.Fatalf("Put(%s) error = %v", name, err)
		}
	}

	got, err := r.List(ctx, "img_dbBackup_")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	want := []string{"img_dbBackup_1.db", "img_dbBackup_2.db"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("List() = %v, want %v", got, want)
	}

	all, err := r.List(ctx, "")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 3 {
		t.Errorf("List(\"\") = %v, want 3 names without the marker", all)
	}

	if err := r.Delete(ctx, "img_dbBackup_1.db"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := r.Delete(ctx, "img_dbBackup_1.db"); err != nil {
		t.Errorf("Delete() of missing name error = %v, want nil", err)
	}
	exists, _ := r.Exists(ctx, "img_dbBackup_1.db")
	if exists {
		t.Error("Exists() after Delete = true, want false")
	}
}
