package model

import "time"

// CaptureRecord represents one capture attempt, successful or not.
type CaptureRecord struct {
	ID         int64      // Auto-increment row ID
	LocalTime  time.Time  // When the attempt started, by the controller's clock
	CameraTime *time.Time // Timestamp reported by the device (nil on failure)
	Output     string     // Combined output of the imaging tool
	ToDelete   bool       // Set by maintenance tooling only
	FileCount  int        // Artifacts recorded for the attempt
}

// Failed reports whether the attempt produced no files. A success may still
// lack a camera time when the image carried no readable metadata.
func (c *CaptureRecord) Failed() bool { return c.FileCount == 0 }

// FileRecord represents one artifact produced by a capture attempt.
type FileRecord struct {
	ID         int64  // Auto-increment row ID
	CaptureID  int64  // Foreign key to CaptureRecord
	Name       string // File name within the local and remote stores
	LocalCopy  bool   // Present on local storage
	RemoteCopy bool   // Present on the remote target
}

// Tag is a metadata key/value pair extracted from a primary image.
type Tag struct {
	CaptureID int64
	Name      string
	Value     string
}

// ClimateSample is one sensor reading. Either value may be absent.
type ClimateSample struct {
	ID          int64
	Time        time.Time
	Humidity    *float64
	Temperature *float64
}

// CaptureSet is the record set written atomically for one capture attempt.
// Files lists artifact names with the primary image first.
type CaptureSet struct {
	Capture CaptureRecord
	Files   []string
	Tags    []Tag
}

// FileCounts summarizes FileRecords by sync state.
type FileCounts struct {
	Total       int64
	PendingCopy int64 // local only
	Archived    int64 // local and remote
	RemoteOnly  int64 // reclaimed locally
	Lost        int64 // neither local nor remote
	ToDelete    int64 // files of captures flagged for deletion
}
