package timelapse

import (
	"context"
	"time"
)

// Camera triggers the external imaging tool.
type Camera interface {
	// Trigger runs one capture that writes its files into dir and returns the
	// tool's combined output. An error means the tool could not complete
	// (including ctx expiring); a tool that ran but produced nothing is not an error.
	Trigger(ctx context.Context, dir string) (string, error)
}

// PowerLine is the two-level digital output that powers the camera.
// Callers enforce settle delays after each transition.
type PowerLine interface {
	Off() error
	On() error
}

// ClimateSensor reads ambient humidity and temperature.
// Either value may be nil when unavailable.
type ClimateSensor interface {
	Read(ctx context.Context) (humidity, temperature *float64, err error)
}

// Rebooter requests an OS-level reboot.
type Rebooter interface {
	Reboot() error
}

// ImageMetadata is the metadata extracted from a primary image.
type ImageMetadata struct {
	Taken *time.Time
	Tags  map[string]string
}

// MetadataReader extracts capture metadata from an image file.
type MetadataReader interface {
	Read(path string) (*ImageMetadata, error)
}
