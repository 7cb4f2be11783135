package testutil

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"baucam/internal/timelapse"
)

// FakeCamera writes Files into the staging directory on each Trigger.
// With Block set it waits for ctx to expire instead, like a hung tool.
type FakeCamera struct {
	mu     sync.Mutex
	Files  map[string][]byte
	Output string
	Err    error
	Block  bool
	calls  int
}

var _ timelapse.Camera = (*FakeCamera)(nil)

// NewFakeCamera returns a camera that produces a JPEG and a raw sidecar.
func NewFakeCamera() *FakeCamera {
	return &FakeCamera{
		Files: map[string][]byte{
			"capt0000.jpg": []byte("jpeg data"),
			"capt0001.cr2": []byte("raw data"),
		},
		Output: "New file is in location /capt0000.jpg on the camera\n",
	}
}

func (c *FakeCamera) Trigger(ctx context.Context, dir string) (string, error) {
	c.mu.Lock()
	c.calls++
	block, err, files, output := c.Block, c.Err, c.Files, c.Output
	c.mu.Unlock()

	if block {
		<-ctx.Done()
		return output, ctx.Err()
	}
	if err != nil {
		return output, err
	}
	for name, data := range files {
		if err := os.WriteFile(filepath.Join(dir, name), data, 0644); err != nil {
			return output, err
		}
	}
	return output, nil
}

// Calls returns the number of Trigger calls.
func (c *FakeCamera) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// SetErr makes subsequent triggers fail with err, or succeed when err is nil.
func (c *FakeCamera) SetErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Err = err
}

// FakeCapturer returns queued results from Capture, then succeeds.
type FakeCapturer struct {
	mu      sync.Mutex
	results []error
	times   []time.Time
}

// NewFakeCapturer queues one result per call; a nil entry is a success.
func NewFakeCapturer(results ...error) *FakeCapturer {
	return &FakeCapturer{results: results}
}

func (c *FakeCapturer) Capture(ctx context.Context, now time.Time) (*timelapse.CaptureOutcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.times = append(c.times, now)
	var err error
	if len(c.results) > 0 {
		err, c.results = c.results[0], c.results[1:]
	}
	if err != nil {
		return nil, err
	}
	return &timelapse.CaptureOutcome{CaptureID: int64(len(c.times))}, nil
}

// Times returns the timestamps of every Capture call.
func (c *FakeCapturer) Times() []time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Time(nil), c.times...)
}

// FakeArchiver records the budget of every archival pass.
type FakeArchiver struct {
	mu      sync.Mutex
	budgets []time.Duration
}

func (a *FakeArchiver) Archive(ctx context.Context, budget time.Duration) *timelapse.ArchiveReport {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.budgets = append(a.budgets, budget)
	return &timelapse.ArchiveReport{CopyComplete: true, ReclaimComplete: true}
}

// Budgets returns the budgets passed to Archive.
func (a *FakeArchiver) Budgets() []time.Duration {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]time.Duration(nil), a.budgets...)
}

// FakeClimate records the time of every sample.
type FakeClimate struct {
	mu    sync.Mutex
	times []time.Time
}

func (c *FakeClimate) Sample(ctx context.Context, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.times = append(c.times, now)
}

// Times returns the timestamps passed to Sample.
func (c *FakeClimate) Times() []time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Time(nil), c.times...)
}

// FakePowerLine records transitions as "on" and "off".
type FakePowerLine struct {
	mu     sync.Mutex
	events []string
}

func (p *FakePowerLine) On() error  { p.record("on"); return nil }
func (p *FakePowerLine) Off() error { p.record("off"); return nil }

func (p *FakePowerLine) record(ev string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

// Events returns the recorded transitions in order.
func (p *FakePowerLine) Events() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.events...)
}

// FakeRebooter counts reboot requests.
type FakeRebooter struct {
	mu    sync.Mutex
	calls int
}

func (r *FakeRebooter) Reboot() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return nil
}

// Calls returns the number of Reboot calls.
func (r *FakeRebooter) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

// FakeSensor returns fixed readings, or Err.
type FakeSensor struct {
	Humidity    *float64
	Temperature *float64
	Err         error
}

func (s *FakeSensor) Read(ctx context.Context) (*float64, *float64, error) {
	if s.Err != nil {
		return nil, nil, s.Err
	}
	return s.Humidity, s.Temperature, nil
}

// FakeMetadataReader returns Meta for every image, or Err.
type FakeMetadataReader struct {
	Meta  *timelapse.ImageMetadata
	Err   error
	mu    sync.Mutex
	paths []string
}

// ErrNoMetadata is returned by a FakeMetadataReader without metadata.
var ErrNoMetadata = errors.New("no metadata")

func (r *FakeMetadataReader) Read(path string) (*timelapse.ImageMetadata, error) {
	r.mu.Lock()
	r.paths = append(r.paths, path)
	r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	if r.Meta == nil {
		return nil, ErrNoMetadata
	}
	return r.Meta, nil
}

// Paths returns the paths passed to Read.
func (r *FakeMetadataReader) Paths() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.paths...)
}
