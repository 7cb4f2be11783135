package timelapse

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// ArchiveConfig holds archival and retention settings.
type ArchiveConfig struct {
	MinFreeSpace  uint64 // reclaim stops once free space exceeds this
	BackupEnabled bool
	BackupPrefix  string // remote metadata backups are named BackupPrefix + timestamp
	KeepBackups   int    // newest backups kept on the remote; 0 keeps all
}

// ArchiveReport summarizes one archival pass.
type ArchiveReport struct {
	Copied          int    // files copied to the remote
	Deleted         int    // local files removed after archival
	Healed          int    // records corrected because the local file was missing
	Unconfirmed     int    // archived records whose remote copy was gone; queued for copy again
	CopyComplete    bool   // phase 1 finished without an early abort
	ReclaimComplete bool   // phase 2 finished without an early abort
	Backup          string // remote name of the metadata backup, if one was made
	Err             error  // *ArchiveError for the phase that stopped early, if any
}

// Archiver copies captured files to the remote within a time budget, reclaims
// local space once copies are confirmed, and backs up the metadata store.
type Archiver struct {
	db     Database
	local  LocalStorage
	remote Remote
	enc    Encryptor
	logger Logger
	clock  Clock
	cfg    ArchiveConfig
}

// NewArchiver creates a new Archiver with the provided dependencies.
func NewArchiver(cfg ArchiveConfig, db Database, local LocalStorage, remote Remote, enc Encryptor, logger Logger, clock Clock) *Archiver {
	return &Archiver{
		db:     db,
		local:  local,
		remote: remote,
		enc:    enc,
		logger: logger,
		clock:  clock,
		cfg:    cfg,
	}
}

// Archive runs the copy, reclaim and backup phases, each only if the previous
// one completed, and never past budget. Record flags are committed per file,
// so an interrupted pass leaves the store consistent with the disks. A panic
// in a collaborator ends the pass with an UNCLASSIFIED ArchiveError.
func (a *Archiver) Archive(ctx context.Context, budget time.Duration) (report *ArchiveReport) {
	deadline := a.clock.Now().Add(budget)
	report = &ArchiveReport{}
	phase := "copy"
	defer func() {
		if r := recover(); r != nil {
			report.Err = &ArchiveError{Kind: ArchiveUnclassified, Phase: phase, Err: panicError(r)}
			a.logger.Error("archiving panicked", "phase", phase, "error", report.Err)
		}
	}()

	if err := a.copyPhase(ctx, deadline, report); err != nil {
		report.Err = err
		a.logger.Warn("archiving stopped", "phase", phase, "copied", report.Copied, "error", err)
		return report
	}
	report.CopyComplete = true

	phase = "reclaim"
	if err := a.reclaimPhase(ctx, deadline, report); err != nil {
		report.Err = err
		a.logger.Warn("archiving stopped", "phase", phase, "deleted", report.Deleted, "error", err)
		return report
	}
	report.ReclaimComplete = true

	if a.cfg.BackupEnabled {
		phase = "backup"
		a.backupPhase(ctx, report)
	}

	a.logger.Info("archive pass complete", "copied", report.Copied, "deleted", report.Deleted,
		"healed", report.Healed, "unconfirmed", report.Unconfirmed)
	return report
}

// copyPhase copies files present only locally to the remote.
func (a *Archiver) copyPhase(ctx context.Context, deadline time.Time, report *ArchiveReport) error {
	if err := a.checkAlive(ctx, "copy"); err != nil {
		return err
	}

	files, err := a.db.FindFilesPendingCopy()
	if err != nil {
		return &ArchiveError{Kind: ArchiveIO, Phase: "copy", Err: fmt.Errorf("finding pending files: %w", err)}
	}

	for _, f := range files {
		if !a.clock.Now().Before(deadline) {
			return &ArchiveError{Kind: ArchiveTimeout, Phase: "copy"}
		}

		err := a.copyFile(ctx, f.Name)
		switch {
		case err == nil:
			if err := a.db.MarkRemoteCopy(f.ID); err != nil {
				return &ArchiveError{Kind: ArchiveIO, Phase: "copy", Err: fmt.Errorf("marking %s copied: %w", f.Name, err)}
			}
			report.Copied++
			a.logger.Debug("file archived", "file", f.Name)
		case errors.Is(err, fs.ErrNotExist):
			a.logger.Warn("source file not found, clearing local copy flag", "file", f.Name)
			if err := a.db.MarkLocalRemoved(f.ID); err != nil {
				return &ArchiveError{Kind: ArchiveIO, Phase: "copy", Err: fmt.Errorf("healing %s: %w", f.Name, err)}
			}
			report.Healed++
		default:
			return &ArchiveError{Kind: ArchiveIO, Phase: "copy", Err: fmt.Errorf("copying %s: %w", f.Name, err)}
		}
	}
	return nil
}

// copyFile streams one local file to the remote. A missing source surfaces
// as fs.ErrNotExist.
func (a *Archiver) copyFile(ctx context.Context, name string) error {
	r, info, err := a.local.Open(name)
	if err != nil {
		return err
	}
	defer r.Close()
	if err := a.remote.Put(ctx, name, r, info.Size(), info.ModTime()); err != nil {
		return fmt.Errorf("uploading: %w", err)
	}
	return nil
}

// reclaimPhase deletes archived local files, oldest first, until free space
// exceeds the watermark. A file is deleted only while the remote still has it.
func (a *Archiver) reclaimPhase(ctx context.Context, deadline time.Time, report *ArchiveReport) error {
	if err := a.checkAlive(ctx, "reclaim"); err != nil {
		return err
	}

	files, err := a.db.FindFilesArchived()
	if err != nil {
		return &ArchiveError{Kind: ArchiveIO, Phase: "reclaim", Err: fmt.Errorf("finding archived files: %w", err)}
	}

	for _, f := range files {
		if !a.clock.Now().Before(deadline) {
			return &ArchiveError{Kind: ArchiveTimeout, Phase: "reclaim"}
		}

		free, err := a.local.FreeSpace()
		if err != nil {
			return &ArchiveError{Kind: ArchiveIO, Phase: "reclaim", Err: fmt.Errorf("checking free space: %w", err)}
		}
		if free > a.cfg.MinFreeSpace {
			break
		}

		onRemote, err := a.remote.Exists(ctx, f.Name)
		if err != nil {
			return &ArchiveError{Kind: ArchiveIO, Phase: "reclaim", Err: fmt.Errorf("confirming remote copy of %s: %w", f.Name, err)}
		}
		if !onRemote {
			a.logger.Warn("remote copy missing, keeping local file", "file", f.Name)
			if err := a.db.MarkRemoteMissing(f.ID); err != nil {
				return &ArchiveError{Kind: ArchiveIO, Phase: "reclaim", Err: fmt.Errorf("marking %s not copied: %w", f.Name, err)}
			}
			report.Unconfirmed++
			continue
		}

		err = a.local.Remove(f.Name)
		switch {
		case err == nil:
			report.Deleted++
			a.logger.Debug("local copy removed", "file", f.Name, "free", free)
		case errors.Is(err, fs.ErrNotExist):
			a.logger.Warn("file not found while deleting, clearing local copy flag", "file", f.Name)
			report.Healed++
		default:
			return &ArchiveError{Kind: ArchiveIO, Phase: "reclaim", Err: fmt.Errorf("removing %s: %w", f.Name, err)}
		}
		if err := a.db.MarkLocalRemoved(f.ID); err != nil {
			return &ArchiveError{Kind: ArchiveIO, Phase: "reclaim", Err: fmt.Errorf("marking %s removed: %w", f.Name, err)}
		}
	}
	return nil
}

// backupPhase copies a snapshot of the metadata store to the remote. Failures
// are logged only.
func (a *Archiver) backupPhase(ctx context.Context, report *ArchiveReport) {
	if err := a.checkAlive(ctx, "backup"); err != nil {
		a.logger.Warn("metadata backup skipped", "error", err)
		return
	}

	name := a.cfg.BackupPrefix + a.clock.Now().Format(NameLayout) + ".db" + a.enc.Extension()
	if err := a.uploadBackup(ctx, name); err != nil {
		a.logger.Error("metadata backup failed", "name", name, "error", err)
		return
	}
	report.Backup = name
	a.logger.Info("metadata backed up", "name", name)

	if a.cfg.KeepBackups > 0 {
		a.pruneBackups(ctx)
	}
}

func (a *Archiver) uploadBackup(ctx context.Context, name string) error {
	dir, err := os.MkdirTemp("", "baucam-backup-*")
	if err != nil {
		return fmt.Errorf("creating temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	snapshot := filepath.Join(dir, "snapshot.db")
	if err := a.db.BackupTo(snapshot); err != nil {
		return fmt.Errorf("snapshotting database: %w", err)
	}

	src, err := os.Open(snapshot)
	if err != nil {
		return fmt.Errorf("opening snapshot: %w", err)
	}
	defer src.Close()

	sealed, err := os.Create(filepath.Join(dir, "upload"))
	if err != nil {
		return fmt.Errorf("creating upload file: %w", err)
	}
	defer sealed.Close()

	if err := a.enc.Encrypt(src, sealed); err != nil {
		return fmt.Errorf("encrypting snapshot: %w", err)
	}
	info, err := sealed.Stat()
	if err != nil {
		return fmt.Errorf("stat upload file: %w", err)
	}
	if _, err := sealed.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewinding upload file: %w", err)
	}

	if err := a.remote.Put(ctx, name, sealed, info.Size(), a.clock.Now()); err != nil {
		return fmt.Errorf("uploading snapshot: %w", err)
	}
	return nil
}

// pruneBackups removes all but the newest KeepBackups backups from the remote.
func (a *Archiver) pruneBackups(ctx context.Context) {
	names, err := a.remote.List(ctx, a.cfg.BackupPrefix)
	if err != nil {
		a.logger.Warn("listing remote backups", "error", err)
		return
	}
	sort.Strings(names)
	for len(names) > a.cfg.KeepBackups {
		if err := a.remote.Delete(ctx, names[0]); err != nil {
			a.logger.Warn("removing old backup", "name", names[0], "error", err)
			return
		}
		a.logger.Debug("old backup removed", "name", names[0])
		names = names[1:]
	}
}

// checkAlive returns an ArchiveError unless the remote's liveness marker is present.
func (a *Archiver) checkAlive(ctx context.Context, phase string) error {
	alive, err := a.remote.Alive(ctx)
	if err != nil {
		return &ArchiveError{Kind: ArchiveRemoteUnreachable, Phase: phase, Err: err}
	}
	if !alive {
		return &ArchiveError{Kind: ArchiveRemoteUnreachable, Phase: phase, Err: errors.New("liveness marker not found")}
	}
	return nil
}
