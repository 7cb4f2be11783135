package timelapse_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"baucam/internal/database"
	"baucam/internal/fs"
	"baucam/internal/staging"
	"baucam/internal/testutil"
	"baucam/internal/timelapse"
)

type pipelineFixture struct {
	pipeline *timelapse.Pipeline
	camera   *testutil.FakeCamera
	meta     *testutil.FakeMetadataReader
	db       *database.SQLiteDatabase
	local    *fs.LocalStorage
	staging  *staging.FileSystemStagingArea
}

func newPipelineFixture(t *testing.T, timeout time.Duration) *pipelineFixture {
	t.Helper()
	dir := t.TempDir()

	local, err := fs.NewLocalStorage(filepath.Join(dir, "images"))
	if err != nil {
		t.Fatalf("NewLocalStorage() error = %v", err)
	}
	area, err := staging.NewFileSystemStagingArea(filepath.Join(dir, "staging"), local.Root(), staging.DefaultSkipPatterns)
	if err != nil {
		t.Fatalf("NewFileSystemStagingArea() error = %v", err)
	}

	f := &pipelineFixture{
		camera:  testutil.NewFakeCamera(),
		meta:    &testutil.FakeMetadataReader{},
		db:      testutil.NewTestDatabase(t),
		local:   local,
		staging: area,
	}
	f.pipeline = timelapse.NewPipeline(
		timelapse.PipelineConfig{Prefix: "img_", Timeout: timeout},
		f.camera, f.staging, f.local, f.meta, f.db, timelapse.NewNopLogger(),
	)
	return f
}

var captureTime = time.Date(2024, 1, 15, 10, 30, 0, 0, time.Local)

func TestPipeline_CaptureSuccess(t *testing.T) {
	f := newPipelineFixture(t, time.Second)
	taken := time.Date(2024, 1, 15, 10, 29, 58, 0, time.Local)
	f.meta.Meta = &timelapse.ImageMetadata{
		Taken: &taken,
		Tags: map[string]string{
			"Model":     "Canon EOS 100D",
			"MakerNote": strings.Repeat("x", timelapse.MaxTagValueLength),
		},
	}

	// Leftovers from an earlier attempt must not be collected.
	if err := os.WriteFile(filepath.Join(f.staging.Dir(), "stale.jpg"), []byte("old"), 0644); err != nil {
		t.Fatal(err)
	}

	outcome, err := f.pipeline.Capture(context.Background(), captureTime)
	if err != nil {
		t.Fatalf("Capture() error = %v", err)
	}

	wantFiles := []string{"img_2024-01-15_10-30-00.jpg", "img_2024-01-15_10-30-00.cr2"}
	if len(outcome.Files) != len(wantFiles) {
		t.Fatalf("Files = %v, want %v", outcome.Files, wantFiles)
	}
	for i, want := range wantFiles {
		if outcome.Files[i] != want {
			t.Errorf("Files[%d] = %q, want %q", i, outcome.Files[i], want)
		}
		if !f.local.Exists(want) {
			t.Errorf("%s not in local storage", want)
		}
	}
	if outcome.CameraTime == nil || !outcome.CameraTime.Equal(taken) {
		t.Errorf("CameraTime = %v, want %v", outcome.CameraTime, taken)
	}
	if len(outcome.Tags) != 1 || outcome.Tags[0].Name != "Model" {
		t.Errorf("Tags = %+v, want only Model", outcome.Tags)
	}
	if paths := f.meta.Paths(); len(paths) != 1 || paths[0] != f.local.Path(wantFiles[0]) {
		t.Errorf("metadata read from %v, want the primary image", paths)
	}

	files, err := f.db.FindFilesForCapture(outcome.CaptureID)
	if err != nil {
		t.Fatalf("FindFilesForCapture() error = %v", err)
	}
	if len(files) != 2 || files[0].Name != wantFiles[0] {
		t.Errorf("recorded files = %+v", files)
	}
	tags, err := f.db.ListTags(outcome.CaptureID)
	if err != nil {
		t.Fatalf("ListTags() error = %v", err)
	}
	if len(tags) != 1 {
		t.Errorf("recorded %d tags, want 1", len(tags))
	}

	entries, err := os.ReadDir(f.staging.Dir())
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("staging directory holds %d entries after capture, want 0", len(entries))
	}
}

func TestPipeline_CaptureWithoutMetadata(t *testing.T) {
	f := newPipelineFixture(t, time.Second)

	outcome, err := f.pipeline.Capture(context.Background(), captureTime)
	if err != nil {
		t.Fatalf("Capture() error = %v", err)
	}
	if outcome.CameraTime != nil || len(outcome.Tags) != 0 {
		t.Errorf("outcome = %+v, want no camera time and no tags", outcome)
	}
	captures, err := f.db.ListCaptures(10)
	if err != nil {
		t.Fatalf("ListCaptures() error = %v", err)
	}
	if len(captures) != 1 || captures[0].CameraTime != nil {
		t.Fatalf("captures = %+v, want one without camera time", captures)
	}
	if captures[0].Failed() {
		t.Error("capture without metadata reported as failed")
	}
}

func TestPipeline_CaptureFailures(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(c *testutil.FakeCamera)
		wantKind timelapse.FailureKind
		wantLog  string
	}{
		{
			name:     "no files produced",
			setup:    func(c *testutil.FakeCamera) { c.Files = nil; c.Output = "*** Error: no camera found ***" },
			wantKind: timelapse.FailureNoImage,
			wantLog:  "no camera found",
		},
		{
			name:     "sidecar without primary image",
			setup:    func(c *testutil.FakeCamera) { c.Files = map[string][]byte{"capt0001.cr2": []byte("raw")} },
			wantKind: timelapse.FailureNoImage,
		},
		{
			name:     "tool hangs past timeout",
			setup:    func(c *testutil.FakeCamera) { c.Block = true },
			wantKind: timelapse.FailureTimeout,
			wantLog:  "timeout",
		},
		{
			name:     "tool cannot be started",
			setup:    func(c *testutil.FakeCamera) { c.Err = errors.New("exec: gphoto2: not found") },
			wantKind: timelapse.FailureInvocation,
			wantLog:  "not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newPipelineFixture(t, 50*time.Millisecond)
			tt.setup(f.camera)

			outcome, err := f.pipeline.Capture(context.Background(), captureTime)
			if outcome != nil {
				t.Errorf("Capture() outcome = %+v, want nil", outcome)
			}
			if !timelapse.IsCaptureFailure(err, tt.wantKind) {
				t.Fatalf("Capture() error = %v, want %s failure", err, tt.wantKind)
			}

			var cf *timelapse.CaptureFailure
			errors.As(err, &cf)
			if cf.CaptureID == 0 {
				t.Error("failed attempt was not recorded")
			}
			if !strings.Contains(cf.Log, tt.wantLog) {
				t.Errorf("Log = %q, want it to contain %q", cf.Log, tt.wantLog)
			}

			captures, err := f.db.ListCaptures(10)
			if err != nil {
				t.Fatalf("ListCaptures() error = %v", err)
			}
			if len(captures) != 1 {
				t.Fatalf("recorded %d captures, want 1", len(captures))
			}
			if captures[0].CameraTime != nil {
				t.Error("failed capture has a camera time")
			}
			if captures[0].Output != cf.Log {
				t.Errorf("recorded output = %q, want %q", captures[0].Output, cf.Log)
			}
			files, err := f.db.FindFilesForCapture(captures[0].ID)
			if err != nil {
				t.Fatalf("FindFilesForCapture() error = %v", err)
			}
			if len(files) != 0 {
				t.Errorf("failed capture has %d files, want 0", len(files))
			}
		})
	}
}

func TestPipeline_SidecarsStayInStaging(t *testing.T) {
	f := newPipelineFixture(t, time.Second)
	f.camera.Files = map[string][]byte{"capt0001.cr2": []byte("raw")}

	for i := 0; i < 3; i++ {
		_, err := f.pipeline.Capture(context.Background(), captureTime.Add(time.Duration(i)*time.Minute))
		if !timelapse.IsCaptureFailure(err, timelapse.FailureNoImage) {
			t.Fatalf("attempt %d: Capture() error = %v, want NO_IMAGE failure", i+1, err)
		}
	}

	local, err := os.ReadDir(f.local.Root())
	if err != nil {
		t.Fatal(err)
	}
	if len(local) != 0 {
		t.Errorf("local storage holds %d untracked files, want 0", len(local))
	}
	staged, err := os.ReadDir(f.staging.Dir())
	if err != nil {
		t.Fatal(err)
	}
	if len(staged) != 1 || staged[0].Name() != "capt0001.cr2" {
		t.Errorf("staging holds %v, want only the last attempt's sidecar", staged)
	}
}

// panickingReader fails the way a decoder bug on corrupt camera bytes would.
type panickingReader struct{}

func (panickingReader) Read(path string) (*timelapse.ImageMetadata, error) {
	var tags map[string]string
	tags["Model"] = path
	return &timelapse.ImageMetadata{Tags: tags}, nil
}

func TestPipeline_CapturePanicIsRecorded(t *testing.T) {
	f := newPipelineFixture(t, time.Second)
	p := timelapse.NewPipeline(
		timelapse.PipelineConfig{Prefix: "img_", Timeout: time.Second},
		f.camera, f.staging, f.local, panickingReader{}, f.db, timelapse.NewNopLogger(),
	)

	outcome, err := p.Capture(context.Background(), captureTime)
	if outcome != nil {
		t.Errorf("Capture() outcome = %+v, want nil", outcome)
	}
	if !timelapse.IsCaptureFailure(err, timelapse.FailureUnclassified) {
		t.Fatalf("Capture() error = %v, want UNCLASSIFIED failure", err)
	}

	var cf *timelapse.CaptureFailure
	errors.As(err, &cf)
	if cf.CaptureID == 0 {
		t.Error("panicked attempt was not recorded")
	}
	if !strings.Contains(cf.Log, "nil map") {
		t.Errorf("Log = %q, want the panic text", cf.Log)
	}

	total, failed, err := f.db.CountCaptures()
	if err != nil {
		t.Fatalf("CountCaptures() error = %v", err)
	}
	if total != 1 || failed != 1 {
		t.Errorf("CountCaptures() = (%d, %d), want (1, 1)", total, failed)
	}
}
