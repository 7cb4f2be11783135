package database

import (
	"database/sql"
	"fmt"
	"time"

	"baucam/internal/database/migrations"
	"baucam/internal/model"
	"baucam/internal/timelapse"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// TimeLayout is how timestamps are stored: sortable text in local time.
const TimeLayout = "2006-01-02 15:04:05.000000"

// SQLiteDatabase implements the timelapse.Database interface using SQLite.
type SQLiteDatabase struct {
	db   *sql.DB
	path string
}

var _ timelapse.Database = (*SQLiteDatabase)(nil)

// NewSQLiteDatabase opens the database at path and applies pending migrations.
// path can be a file path or ":memory:" for an in-memory database.
func NewSQLiteDatabase(path string) (*SQLiteDatabase, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating %s: %w", path, err)
	}
	return &SQLiteDatabase{db: db, path: path}, nil
}

// OpenConnection opens and configures a SQLite connection.
// The pool is limited to a single connection: there is one writer, and an
// in-memory database only exists on the connection that created it.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	// SQLite default is OFF
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	return db, nil
}

// Capture records

// RecordCapture writes the capture, its files and tags in a single
// transaction. The first file is the primary image; tags belong to the capture.
func (s *SQLiteDatabase) RecordCapture(set *model.CaptureSet) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	c := set.Capture
	res, err := tx.Exec(
		`INSERT INTO images (raspi_time, camera_time, gphoto_output, to_delete) VALUES (?, ?, ?, 0)`,
		formatTime(c.LocalTime), formatTimePtr(c.CameraTime), c.Output,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting capture: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading capture id: %w", err)
	}

	for _, name := range set.Files {
		if _, err := tx.Exec(
			`INSERT INTO files (images_id, name, local_copy, remote_copy) VALUES (?, ?, 1, 0)`,
			id, name,
		); err != nil {
			return 0, fmt.Errorf("inserting file %s: %w", name, err)
		}
	}

	for _, tag := range set.Tags {
		if _, err := tx.Exec(
			`INSERT INTO tags (images_id, name, value) VALUES (?, ?, ?)`,
			id, tag.Name, tag.Value,
		); err != nil {
			return 0, fmt.Errorf("inserting tag %s: %w", tag.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing capture: %w", err)
	}
	return id, nil
}

// ListCaptures returns the newest captures, newest first.
func (s *SQLiteDatabase) ListCaptures(limit int) ([]*model.CaptureRecord, error) {
	rows, err := s.db.Query(
		`SELECT i.id, i.raspi_time, i.camera_time, i.gphoto_output, i.to_delete,
		        (SELECT COUNT(*) FROM files f WHERE f.images_id = i.id)
		 FROM images i ORDER BY i.id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing captures: %w", err)
	}
	defer rows.Close()

	var out []*model.CaptureRecord
	for rows.Next() {
		var (
			c          model.CaptureRecord
			localTime  string
			cameraTime sql.NullString
			toDelete   int
		)
		if err := rows.Scan(&c.ID, &localTime, &cameraTime, &c.Output, &toDelete, &c.FileCount); err != nil {
			return nil, fmt.Errorf("scanning capture: %w", err)
		}
		if c.LocalTime, err = parseTime(localTime); err != nil {
			return nil, fmt.Errorf("capture %d: %w", c.ID, err)
		}
		if cameraTime.Valid {
			t, err := parseTime(cameraTime.String)
			if err != nil {
				return nil, fmt.Errorf("capture %d: %w", c.ID, err)
			}
			c.CameraTime = &t
		}
		c.ToDelete = toDelete != 0
		out = append(out, &c)
	}
	return out, rows.Err()
}

// CountCaptures returns the total number of recorded capture attempts and
// the number of those that produced no files.
func (s *SQLiteDatabase) CountCaptures() (total, failed int, err error) {
	err = s.db.QueryRow(`
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN NOT EXISTS (SELECT 1 FROM files f WHERE f.images_id = i.id) THEN 1 ELSE 0 END), 0)
		FROM images i`).Scan(&total, &failed)
	if err != nil {
		return 0, 0, fmt.Errorf("counting captures: %w", err)
	}
	return total, failed, nil
}

// ListTags returns the tags of a capture, ordered by name.
func (s *SQLiteDatabase) ListTags(captureID int64) ([]model.Tag, error) {
	rows, err := s.db.Query(`SELECT images_id, name, COALESCE(value, '') FROM tags WHERE images_id = ? ORDER BY name`, captureID)
	if err != nil {
		return nil, fmt.Errorf("listing tags: %w", err)
	}
	defer rows.Close()

	var out []model.Tag
	for rows.Next() {
		var tag model.Tag
		if err := rows.Scan(&tag.CaptureID, &tag.Name, &tag.Value); err != nil {
			return nil, fmt.Errorf("scanning tag: %w", err)
		}
		out = append(out, tag)
	}
	return out, rows.Err()
}

// File records

// FindFilesPendingCopy returns files stored locally but not yet remotely, in arrival order.
func (s *SQLiteDatabase) FindFilesPendingCopy() ([]*model.FileRecord, error) {
	return s.queryFiles(`WHERE local_copy = 1 AND remote_copy = 0 ORDER BY id`)
}

// FindFilesArchived returns files stored both locally and remotely, oldest first.
func (s *SQLiteDatabase) FindFilesArchived() ([]*model.FileRecord, error) {
	return s.queryFiles(`WHERE local_copy = 1 AND remote_copy = 1 ORDER BY id`)
}

// FindFilesForCapture returns the files of a capture; the primary image comes first.
func (s *SQLiteDatabase) FindFilesForCapture(captureID int64) ([]*model.FileRecord, error) {
	return s.queryFiles(`WHERE images_id = ? ORDER BY id`, captureID)
}

func (s *SQLiteDatabase) queryFiles(where string, args ...any) ([]*model.FileRecord, error) {
	rows, err := s.db.Query(`SELECT id, images_id, name, local_copy, remote_copy FROM files `+where, args...)
	if err != nil {
		return nil, fmt.Errorf("querying files: %w", err)
	}
	defer rows.Close()

	var out []*model.FileRecord
	for rows.Next() {
		var (
			f             model.FileRecord
			local, remote int
		)
		if err := rows.Scan(&f.ID, &f.CaptureID, &f.Name, &local, &remote); err != nil {
			return nil, fmt.Errorf("scanning file: %w", err)
		}
		f.LocalCopy = local != 0
		f.RemoteCopy = remote != 0
		out = append(out, &f)
	}
	return out, rows.Err()
}

// MarkRemoteCopy sets remote_copy for a file.
func (s *SQLiteDatabase) MarkRemoteCopy(fileID int64) error {
	return s.updateFile(`UPDATE files SET remote_copy = 1 WHERE id = ?`, fileID)
}

// MarkRemoteMissing clears remote_copy for a file.
func (s *SQLiteDatabase) MarkRemoteMissing(fileID int64) error {
	return s.updateFile(`UPDATE files SET remote_copy = 0 WHERE id = ?`, fileID)
}

// MarkLocalRemoved clears local_copy for a file.
func (s *SQLiteDatabase) MarkLocalRemoved(fileID int64) error {
	return s.updateFile(`UPDATE files SET local_copy = 0 WHERE id = ?`, fileID)
}

func (s *SQLiteDatabase) updateFile(query string, fileID int64) error {
	res, err := s.db.Exec(query, fileID)
	if err != nil {
		return fmt.Errorf("updating file %d: %w", fileID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating file %d: %w", fileID, err)
	}
	if n == 0 {
		return fmt.Errorf("file %d not found", fileID)
	}
	return nil
}

// CountFiles summarizes the sync state of all files.
func (s *SQLiteDatabase) CountFiles() (*model.FileCounts, error) {
	var c model.FileCounts
	err := s.db.QueryRow(`
		SELECT COUNT(*),
		       COALESCE(SUM(local_copy = 1 AND remote_copy = 0), 0),
		       COALESCE(SUM(local_copy = 1 AND remote_copy = 1), 0),
		       COALESCE(SUM(local_copy = 0 AND remote_copy = 1), 0),
		       COALESCE(SUM(local_copy = 0 AND remote_copy = 0), 0)
		FROM files`).Scan(&c.Total, &c.PendingCopy, &c.Archived, &c.RemoteOnly, &c.Lost)
	if err != nil {
		return nil, fmt.Errorf("counting files: %w", err)
	}
	err = s.db.QueryRow(`
		SELECT COUNT(*) FROM files f JOIN images i ON i.id = f.images_id WHERE i.to_delete = 1`).Scan(&c.ToDelete)
	if err != nil {
		return nil, fmt.Errorf("counting files flagged for deletion: %w", err)
	}
	return &c, nil
}

// Climate samples

// RecordClimate appends a climate sample. Absent values are stored as NULL.
func (s *SQLiteDatabase) RecordClimate(sample *model.ClimateSample) error {
	_, err := s.db.Exec(
		`INSERT INTO climate (raspi_time, humidity, temperature) VALUES (?, ?, ?)`,
		formatTime(sample.Time), nullFloat(sample.Humidity), nullFloat(sample.Temperature),
	)
	if err != nil {
		return fmt.Errorf("inserting climate sample: %w", err)
	}
	return nil
}

// ListClimateSamples returns the newest samples, newest first.
func (s *SQLiteDatabase) ListClimateSamples(limit int) ([]*model.ClimateSample, error) {
	rows, err := s.db.Query(
		`SELECT id, raspi_time, humidity, temperature FROM climate ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing climate samples: %w", err)
	}
	defer rows.Close()

	var out []*model.ClimateSample
	for rows.Next() {
		var (
			c                     model.ClimateSample
			ts                    string
			humidity, temperature sql.NullFloat64
		)
		if err := rows.Scan(&c.ID, &ts, &humidity, &temperature); err != nil {
			return nil, fmt.Errorf("scanning climate sample: %w", err)
		}
		if c.Time, err = parseTime(ts); err != nil {
			return nil, fmt.Errorf("climate sample %d: %w", c.ID, err)
		}
		if humidity.Valid {
			c.Humidity = &humidity.Float64
		}
		if temperature.Valid {
			c.Temperature = &temperature.Float64
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

// Path returns the database file path (or ":memory:" for in-memory databases).
func (s *SQLiteDatabase) Path() string {
	return s.path
}

// CheckMigrations verifies the database schema is up-to-date.
func (s *SQLiteDatabase) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

// BackupTo creates a complete copy of the database at destPath using VACUUM INTO.
func (s *SQLiteDatabase) BackupTo(destPath string) error {
	if _, err := s.db.Exec("VACUUM INTO ?", destPath); err != nil {
		return fmt.Errorf("backing up database: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.Local().Format(TimeLayout)
}

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.ParseInLocation(TimeLayout, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	return t, nil
}

func nullFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}
