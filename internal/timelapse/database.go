package timelapse

import "baucam/internal/model"

// Database provides the metadata store operations used by the engine.
// The engine is the only writer; no concurrent access is assumed.
type Database interface {
	// RecordCapture writes the capture record, its files and tags in one
	// transaction and returns the new capture ID.
	RecordCapture(set *model.CaptureSet) (int64, error)

	// RecordClimate appends a climate sample.
	RecordClimate(sample *model.ClimateSample) error

	// FindFilesPendingCopy returns files present locally but not remotely, in arrival order.
	FindFilesPendingCopy() ([]*model.FileRecord, error)

	// FindFilesArchived returns files present both locally and remotely, oldest first.
	FindFilesArchived() ([]*model.FileRecord, error)

	// MarkRemoteCopy records that a file has been copied to the remote.
	MarkRemoteCopy(fileID int64) error

	// MarkRemoteMissing clears the remote flag of a file whose remote copy is gone.
	MarkRemoteMissing(fileID int64) error

	// MarkLocalRemoved records that a file is no longer on local storage.
	MarkLocalRemoved(fileID int64) error

	// BackupTo writes a consistent snapshot of the store to destPath.
	BackupTo(destPath string) error

	// Close closes the database connection.
	Close() error
}
