package timelapse

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"baucam/internal/model"
)

// MaxTagValueLength bounds the tag values stored per capture. Longer values
// (maker notes, thumbnails) are dropped.
const MaxTagValueLength = 150

// NameLayout formats the capture timestamp used as the file name prefix.
const NameLayout = "2006-01-02_15-04-05"

// primaryExtensions are the extensions of primary image files, lower-case.
var primaryExtensions = map[string]bool{".jpg": true, ".jpeg": true}

// IsPrimaryImage reports whether name has a primary image extension.
func IsPrimaryImage(name string) bool {
	return primaryExtensions[strings.ToLower(filepath.Ext(name))]
}

// CaptureOutcome is the result of a successful capture attempt.
type CaptureOutcome struct {
	CaptureID  int64
	CameraTime *time.Time
	Files      []string // primary image first
	Tags       []model.Tag
	Log        string
}

// PipelineConfig holds the capture pipeline settings.
type PipelineConfig struct {
	Prefix  string        // file name prefix
	Timeout time.Duration // hard cap on the imaging tool
}

// Pipeline performs one capture attempt end to end: clears the staging
// directory, triggers the camera, collects the produced files, extracts
// metadata and records the attempt.
type Pipeline struct {
	camera  Camera
	staging StagingArea
	local   LocalStorage
	meta    MetadataReader
	db      Database
	logger  Logger
	cfg     PipelineConfig
}

// NewPipeline creates a new Pipeline with the provided dependencies.
func NewPipeline(cfg PipelineConfig, camera Camera, staging StagingArea, local LocalStorage, meta MetadataReader, db Database, logger Logger) *Pipeline {
	return &Pipeline{
		camera:  camera,
		staging: staging,
		local:   local,
		meta:    meta,
		db:      db,
		logger:  logger,
		cfg:     cfg,
	}
}

// Capture takes one photo stamped with now. Every attempt is recorded. A
// failed attempt returns a *CaptureFailure; no other error is returned, and a
// panic in a collaborator is recorded as an UNCLASSIFIED failure.
func (p *Pipeline) Capture(ctx context.Context, now time.Time) (outcome *CaptureOutcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			cause := panicError(r)
			p.logger.Error("capture attempt panicked", "error", cause)
			outcome, err = nil, p.fail(now, FailureUnclassified, fmt.Sprintf("unclassified failure: %v", cause), cause)
		}
	}()
	return p.capture(ctx, now)
}

func (p *Pipeline) capture(ctx context.Context, now time.Time) (*CaptureOutcome, error) {
	baseName := p.cfg.Prefix + now.Format(NameLayout)

	if err := p.staging.Clear(); err != nil {
		p.logger.Error("clearing staging directory", "dir", p.staging.Dir(), "error", err)
		return nil, p.fail(now, FailureStaging, fmt.Sprintf("staging cleanup failed: %v", err), err)
	}

	cctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	output, err := p.camera.Trigger(cctx, p.staging.Dir())
	timedOut := errors.Is(cctx.Err(), context.DeadlineExceeded)
	cancel()
	if err != nil {
		if timedOut || errors.Is(err, context.DeadlineExceeded) {
			p.logger.Warn("timeout while taking a photo", "timeout", p.cfg.Timeout)
			return nil, p.fail(now, FailureTimeout, joinLog(output, fmt.Sprintf("timeout after %s while taking a photo", p.cfg.Timeout)), err)
		}
		p.logger.Error("camera invocation failed", "error", fmt.Sprintf("%T: %v", err, err))
		return nil, p.fail(now, FailureInvocation, joinLog(output, fmt.Sprintf("camera invocation failed: %v", err)), err)
	}

	staged, err := p.staging.Staged()
	if err != nil {
		p.logger.Error("listing staged files", "dir", p.staging.Dir(), "error", err)
		return nil, p.fail(now, FailureStaging, joinLog(output, fmt.Sprintf("listing staged files failed: %v", err)), err)
	}
	if !hasPrimaryImage(staged) {
		// Sidecars stay in staging until the next pre-clear.
		p.logger.Warn("no image produced", "staged", len(staged))
		return nil, p.fail(now, FailureNoImage, output, nil)
	}

	names, err := p.staging.Collect(baseName)
	if err != nil {
		p.logger.Error("collecting staged files", "moved", len(names), "error", err)
		return nil, p.fail(now, FailureStaging, joinLog(output, fmt.Sprintf("collecting files failed: %v", err)), err)
	}

	files := orderPrimaryFirst(names)
	if len(files) == 0 || !IsPrimaryImage(files[0]) {
		p.logger.Warn("no image produced", "files", len(files))
		return nil, p.fail(now, FailureNoImage, output, nil)
	}

	set := &model.CaptureSet{
		Capture: model.CaptureRecord{LocalTime: now, Output: output},
		Files:   files,
	}
	meta, err := p.meta.Read(p.local.Path(files[0]))
	if err != nil {
		p.logger.Warn("reading image metadata", "file", files[0], "error", err)
	} else {
		set.Capture.CameraTime = meta.Taken
		set.Tags = shortTags(meta.Tags)
	}

	id, err := p.db.RecordCapture(set)
	if err != nil {
		p.logger.Error("recording capture", "file", files[0], "error", err)
		return nil, &CaptureFailure{Kind: FailureStore, Log: output, Err: err}
	}

	p.logger.Info("photo taken", "capture_id", id, "file", files[0], "files", len(files), "tags", len(set.Tags))
	return &CaptureOutcome{
		CaptureID:  id,
		CameraTime: set.Capture.CameraTime,
		Files:      files,
		Tags:       set.Tags,
		Log:        output,
	}, nil
}

// fail records a failed attempt with no files and returns its CaptureFailure.
func (p *Pipeline) fail(now time.Time, kind FailureKind, log string, cause error) *CaptureFailure {
	failure := &CaptureFailure{Kind: kind, Log: log, Err: cause}
	id, err := p.db.RecordCapture(&model.CaptureSet{
		Capture: model.CaptureRecord{LocalTime: now, Output: log},
	})
	if err != nil {
		p.logger.Error("recording failed capture", "kind", string(kind), "error", err)
		return failure
	}
	failure.CaptureID = id
	return failure
}

func hasPrimaryImage(names []string) bool {
	for _, n := range names {
		if IsPrimaryImage(n) {
			return true
		}
	}
	return false
}

// orderPrimaryFirst returns names with the first primary image moved to the front.
func orderPrimaryFirst(names []string) []string {
	out := make([]string, 0, len(names))
	primary := -1
	for i, n := range names {
		if IsPrimaryImage(n) {
			primary = i
			break
		}
	}
	if primary >= 0 {
		out = append(out, names[primary])
	}
	for i, n := range names {
		if i != primary {
			out = append(out, n)
		}
	}
	return out
}

// shortTags converts tags to records, dropping values of MaxTagValueLength or more.
func shortTags(tags map[string]string) []model.Tag {
	out := make([]model.Tag, 0, len(tags))
	for name, value := range tags {
		if len(value) >= MaxTagValueLength {
			continue
		}
		out = append(out, model.Tag{Name: name, Value: value})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func joinLog(output, msg string) string {
	if output == "" {
		return msg
	}
	return strings.TrimRight(output, "\n") + "\n" + msg
}
