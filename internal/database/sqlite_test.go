package database

import (
	"path/filepath"
	"testing"
	"time"

	"baucam/internal/model"
)

// newTestDB creates a new in-memory database with migrations applied.
func newTestDB(t *testing.T) *SQLiteDatabase {
	t.Helper()

	db, err := NewSQLiteDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})
	return db
}

var testTime = time.Date(2024, 1, 15, 10, 30, 0, 123456000, time.Local)

func floatPtr(v float64) *float64 { return &v }

func recordTestCapture(t *testing.T, db *SQLiteDatabase, files ...string) int64 {
	t.Helper()
	id, err := db.RecordCapture(&model.CaptureSet{
		Capture: model.CaptureRecord{LocalTime: testTime, Output: "ok"},
		Files:   files,
	})
	if err != nil {
		t.Fatalf("RecordCapture() error = %v", err)
	}
	return id
}

func TestSQLiteDatabase_RecordCapture(t *testing.T) {
	t.Run("success writes capture, files and tags", func(t *testing.T) {
		db := newTestDB(t)
		cameraTime := time.Date(2024, 1, 15, 10, 29, 58, 0, time.Local)

		id, err := db.RecordCapture(&model.CaptureSet{
			Capture: model.CaptureRecord{LocalTime: testTime, CameraTime: &cameraTime, Output: "New file is in location"},
			Files:   []string{"img_2024.jpg", "img_2024.cr2"},
			Tags: []model.Tag{
				{Name: "Model", Value: "Canon EOS 100D"},
				{Name: "ExposureTime", Value: "1/125"},
			},
		})
		if err != nil {
			t.Fatalf("RecordCapture() error = %v", err)
		}

		captures, err := db.ListCaptures(10)
		if err != nil {
			t.Fatalf("ListCaptures() error = %v", err)
		}
		if len(captures) != 1 {
			t.Fatalf("ListCaptures() returned %d captures, want 1", len(captures))
		}
		c := captures[0]
		if c.ID != id {
			t.Errorf("ID = %d, want %d", c.ID, id)
		}
		if !c.LocalTime.Equal(testTime) {
			t.Errorf("LocalTime = %v, want %v", c.LocalTime, testTime)
		}
		if c.CameraTime == nil || !c.CameraTime.Equal(cameraTime) {
			t.Errorf("CameraTime = %v, want %v", c.CameraTime, cameraTime)
		}
		if c.Output != "New file is in location" {
			t.Errorf("Output = %q", c.Output)
		}
		if c.ToDelete {
			t.Error("ToDelete = true, want false")
		}
		if c.FileCount != 2 || c.Failed() {
			t.Errorf("FileCount = %d, Failed() = %v; want 2, false", c.FileCount, c.Failed())
		}

		files, err := db.FindFilesForCapture(id)
		if err != nil {
			t.Fatalf("FindFilesForCapture() error = %v", err)
		}
		if len(files) != 2 {
			t.Fatalf("FindFilesForCapture() returned %d files, want 2", len(files))
		}
		if files[0].Name != "img_2024.jpg" {
			t.Errorf("first file = %q, want the primary image", files[0].Name)
		}
		for _, f := range files {
			if !f.LocalCopy || f.RemoteCopy {
				t.Errorf("%s flags = (local %v, remote %v), want (true, false)", f.Name, f.LocalCopy, f.RemoteCopy)
			}
		}

		tags, err := db.ListTags(id)
		if err != nil {
			t.Fatalf("ListTags() error = %v", err)
		}
		if len(tags) != 2 || tags[0].Name != "ExposureTime" || tags[1].Value != "Canon EOS 100D" {
			t.Errorf("ListTags() = %+v", tags)
		}
	})

	t.Run("failure writes capture without files", func(t *testing.T) {
		db := newTestDB(t)

		id := recordTestCapture(t, db)

		captures, err := db.ListCaptures(10)
		if err != nil {
			t.Fatalf("ListCaptures() error = %v", err)
		}
		if len(captures) != 1 || captures[0].CameraTime != nil {
			t.Fatalf("ListCaptures() = %+v, want one capture without camera time", captures)
		}
		if !captures[0].Failed() {
			t.Error("Failed() = false for a capture without files")
		}
		files, err := db.FindFilesForCapture(id)
		if err != nil {
			t.Fatalf("FindFilesForCapture() error = %v", err)
		}
		if len(files) != 0 {
			t.Errorf("FindFilesForCapture() returned %d files, want 0", len(files))
		}

		total, failed, err := db.CountCaptures()
		if err != nil {
			t.Fatalf("CountCaptures() error = %v", err)
		}
		if total != 1 || failed != 1 {
			t.Errorf("CountCaptures() = (%d, %d), want (1, 1)", total, failed)
		}
	})
}

func TestSQLiteDatabase_FileSyncState(t *testing.T) {
	db := newTestDB(t)
	recordTestCapture(t, db, "a.jpg", "a.cr2")
	recordTestCapture(t, db, "b.jpg")

	pending, err := db.FindFilesPendingCopy()
	if err != nil {
		t.Fatalf("FindFilesPendingCopy() error = %v", err)
	}
	if len(pending) != 3 {
		t.Fatalf("FindFilesPendingCopy() returned %d files, want 3", len(pending))
	}
	for i, want := range []string{"a.jpg", "a.cr2", "b.jpg"} {
		if pending[i].Name != want {
			t.Errorf("pending[%d] = %q, want %q", i, pending[i].Name, want)
		}
	}

	if err := db.MarkRemoteCopy(pending[0].ID); err != nil {
		t.Fatalf("MarkRemoteCopy() error = %v", err)
	}
	if err := db.MarkRemoteCopy(pending[1].ID); err != nil {
		t.Fatalf("MarkRemoteCopy() error = %v", err)
	}

	archived, err := db.FindFilesArchived()
	if err != nil {
		t.Fatalf("FindFilesArchived() error = %v", err)
	}
	if len(archived) != 2 || archived[0].Name != "a.jpg" {
		t.Fatalf("FindFilesArchived() = %+v, want a.jpg and a.cr2", archived)
	}

	if err := db.MarkLocalRemoved(archived[0].ID); err != nil {
		t.Fatalf("MarkLocalRemoved() error = %v", err)
	}

	counts, err := db.CountFiles()
	if err != nil {
		t.Fatalf("CountFiles() error = %v", err)
	}
	want := model.FileCounts{Total: 3, PendingCopy: 1, Archived: 1, RemoteOnly: 1}
	if *counts != want {
		t.Errorf("CountFiles() = %+v, want %+v", *counts, want)
	}

	if err := db.MarkRemoteMissing(pending[1].ID); err != nil {
		t.Fatalf("MarkRemoteMissing() error = %v", err)
	}
	counts, err = db.CountFiles()
	if err != nil {
		t.Fatalf("CountFiles() error = %v", err)
	}
	want = model.FileCounts{Total: 3, PendingCopy: 2, RemoteOnly: 1}
	if *counts != want {
		t.Errorf("CountFiles() after MarkRemoteMissing = %+v, want %+v", *counts, want)
	}

	if err := db.MarkRemoteCopy(9999); err == nil {
		t.Error("MarkRemoteCopy() on unknown file should return error")
	}
}

func TestSQLiteDatabase_Climate(t *testing.T) {
	db := newTestDB(t)

	if err := db.RecordClimate(&model.ClimateSample{Time: testTime, Humidity: floatPtr(45.5), Temperature: floatPtr(21.25)}); err != nil {
		t.Fatalf("RecordClimate() error = %v", err)
	}
	if err := db.RecordClimate(&model.ClimateSample{Time: testTime.Add(2 * time.Minute)}); err != nil {
		t.Fatalf("RecordClimate() without values error = %v", err)
	}

	samples, err := db.ListClimateSamples(10)
	if err != nil {
		t.Fatalf("ListClimateSamples() error = %v", err)
	}
	if len(samples) != 2 {
		t.Fatalf("ListClimateSamples() returned %d samples, want 2", len(samples))
	}
	if samples[0].Humidity != nil || samples[0].Temperature != nil {
		t.Errorf("newest sample = %+v, want absent values", samples[0])
	}
	if samples[1].Humidity == nil || *samples[1].Humidity != 45.5 {
		t.Errorf("humidity = %v, want 45.5", samples[1].Humidity)
	}
	if samples[1].Temperature == nil || *samples[1].Temperature != 21.25 {
		t.Errorf("temperature = %v, want 21.25", samples[1].Temperature)
	}
	if !samples[1].Time.Equal(testTime) {
		t.Errorf("Time = %v, want %v", samples[1].Time, testTime)
	}
}

func TestSQLiteDatabase_BackupTo(t *testing.T) {
	db := newTestDB(t)
	recordTestCapture(t, db, "a.jpg")

	dest := filepath.Join(t.TempDir(), "backup.db")
	if err := db.BackupTo(dest); err != nil {
		t.Fatalf("BackupTo() error = %v", err)
	}

	restored, err := NewSQLiteDatabase(dest)
	if err != nil {
		t.Fatalf("opening backup: %v", err)
	}
	defer restored.Close()

	pending, err := restored.FindFilesPendingCopy()
	if err != nil {
		t.Fatalf("FindFilesPendingCopy() on backup error = %v", err)
	}
	if len(pending) != 1 || pending[0].Name != "a.jpg" {
		t.Errorf("backup files = %+v, want a.jpg", pending)
	}
}
