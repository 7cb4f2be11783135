package timelapse

import (
	"errors"
	"fmt"
)

// ErrRebootRequested is returned by the scheduler after it has asked the OS
// to reboot. The process must exit; it is the only error that ends the loop.
var ErrRebootRequested = errors.New("reboot requested")

// FailureKind classifies why a capture attempt failed.
type FailureKind string

const (
	FailureTimeout      FailureKind = "TIMEOUT"      // imaging tool exceeded its time limit
	FailureInvocation   FailureKind = "INVOCATION"   // imaging tool could not be run
	FailureStaging      FailureKind = "STAGING"      // staging directory could not be cleared or collected
	FailureNoImage      FailureKind = "NO_IMAGE"     // tool ran but produced no primary image
	FailureStore        FailureKind = "STORE"        // record set could not be written
	FailureUnclassified FailureKind = "UNCLASSIFIED" // a collaborator panicked
)

// CaptureFailure describes a failed capture attempt.
type CaptureFailure struct {
	Kind      FailureKind
	CaptureID int64  // 0 when the attempt could not be recorded
	Log       string // text persisted with the attempt
	Err       error
}

// Error implements the error interface.
func (e *CaptureFailure) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("capture failed (%s): %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("capture failed (%s)", e.Kind)
}

func (e *CaptureFailure) Unwrap() error { return e.Err }

// ArchiveErrorKind classifies why an archival phase stopped early.
type ArchiveErrorKind string

const (
	ArchiveRemoteUnreachable ArchiveErrorKind = "REMOTE_UNREACHABLE" // liveness marker absent
	ArchiveTimeout           ArchiveErrorKind = "TIMEOUT"            // budget exhausted
	ArchiveIO                ArchiveErrorKind = "IO"                 // permission or OS-level error
	ArchiveUnclassified      ArchiveErrorKind = "UNCLASSIFIED"       // a collaborator panicked
)

// ArchiveError describes why an archival pass stopped before completing.
type ArchiveError struct {
	Kind  ArchiveErrorKind
	Phase string // "copy", "reclaim" or "backup"
	Err   error
}

// Error implements the error interface.
func (e *ArchiveError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("archive %s phase stopped (%s): %v", e.Phase, e.Kind, e.Err)
	}
	return fmt.Sprintf("archive %s phase stopped (%s)", e.Phase, e.Kind)
}

func (e *ArchiveError) Unwrap() error { return e.Err }

// IsCaptureFailure reports whether err is a CaptureFailure of the given kind.
func IsCaptureFailure(err error, kind FailureKind) bool {
	var cf *CaptureFailure
	return errors.As(err, &cf) && cf.Kind == kind
}

// IsArchiveError reports whether err is an ArchiveError of the given kind.
func IsArchiveError(err error, kind ArchiveErrorKind) bool {
	var ae *ArchiveError
	return errors.As(err, &ae) && ae.Kind == kind
}

// panicError wraps a recovered panic value.
func panicError(r any) error {
	return fmt.Errorf("panic: %T: %v", r, r)
}
