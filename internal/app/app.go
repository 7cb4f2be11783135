package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"baucam/internal/config"
	"baucam/internal/database"
	"baucam/internal/device"
	"baucam/internal/encryption"
	"baucam/internal/fs"
	"baucam/internal/imagemeta"
	"baucam/internal/model"
	"baucam/internal/remote"
	"baucam/internal/staging"
	"baucam/internal/timelapse"
)

// App is the application layer between the CLI and the timelapse engine.
// It constructs the storage side of the system from config, builds the
// devices only when the capture loop runs, and closes everything on Close.
type App struct {
	cfg      *config.Config
	db       *database.SQLiteDatabase
	local    *fs.LocalStorage
	remote   timelapse.Remote
	archiver *timelapse.Archiver
	triggers *timelapse.Triggers
	clock    timelapse.Clock
	logger   timelapse.Logger
	runID    string
	logFile  *os.File
}

// NewApp creates an App from the given config. command names the CLI command
// being run and is logged once. The caller must call Close when done.
func NewApp(ctx context.Context, cfg *config.Config, command string) (*App, error) {
	level, err := parseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	runID := newRunID()
	sl, logFile, err := newLogger(cfg.LogDir, runID, level)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	a := &App{
		cfg:      cfg,
		triggers: timelapse.NewTriggers(),
		clock:    timelapse.RealClock{},
		logger:   &slogAdapter{l: sl},
		runID:    runID,
		logFile:  logFile,
	}

	if err := a.open(ctx); err != nil {
		a.Close()
		return nil, err
	}
	sl.Info("baucam started", slog.String("command", command), slog.String("local", a.local.Root()))
	return a, nil
}

func (a *App) open(ctx context.Context) error {
	db, err := database.NewDatabaseFromConfig(a.cfg.Database)
	if err != nil {
		return fmt.Errorf("creating database: %w", err)
	}
	a.db = db
	if err := db.CheckMigrations(); err != nil {
		return fmt.Errorf("database schema out of date: %w", err)
	}

	a.local, err = fs.NewLocalStorage(a.cfg.LocalPath)
	if err != nil {
		return fmt.Errorf("creating local storage: %w", err)
	}

	a.remote, err = remote.NewRemoteFromConfig(ctx, a.cfg.Remote)
	if err != nil {
		return fmt.Errorf("creating remote: %w", err)
	}

	enc, err := encryption.NewEncryptorFromConfig(a.cfg.Backup)
	if err != nil {
		return fmt.Errorf("creating encryptor: %w", err)
	}

	a.archiver = timelapse.NewArchiver(archiveConfig(a.cfg), a.db, a.local, a.remote, enc, a.logger, a.clock)
	return nil
}

// Triggers returns the request flags the signal handlers set.
func (a *App) Triggers() *timelapse.Triggers { return a.triggers }

// RunID returns the identifier tagging this process's log lines.
func (a *App) RunID() string { return a.runID }

// Run builds the devices and runs the capture loop until shutdown. It returns
// timelapse.ErrRebootRequested when the loop gave up and asked for a reboot.
func (a *App) Run(ctx context.Context) error {
	camera, err := device.NewCameraFromConfig(a.cfg.Camera)
	if err != nil {
		return fmt.Errorf("creating camera: %w", err)
	}
	power, err := device.NewPowerLineFromConfig(a.cfg.Power)
	if err != nil {
		return fmt.Errorf("creating power line: %w", err)
	}
	sensor, err := device.NewClimateSensorFromConfig(a.cfg.Climate)
	if err != nil {
		return fmt.Errorf("creating climate sensor: %w", err)
	}
	area, err := staging.NewFileSystemStagingArea(a.cfg.CapturePath, a.cfg.LocalPath, a.cfg.Camera.Skip)
	if err != nil {
		return fmt.Errorf("creating staging area: %w", err)
	}

	schedCfg, err := schedulerConfig(a.cfg)
	if err != nil {
		return err
	}

	pipeline := timelapse.NewPipeline(
		timelapse.PipelineConfig{Prefix: a.cfg.ImagePrefix, Timeout: seconds(a.cfg.Camera.Timeout)},
		camera, area, a.local, imagemeta.NewEXIFReader(), a.db, a.logger,
	)

	var climate timelapse.ClimateSampler
	if sensor != nil {
		climate = timelapse.NewClimateRecorder(sensor, a.db, a.logger)
	} else {
		schedCfg.ClimateInterval = 0
	}

	rebooter := device.NewCommandRebooter(a.cfg.Escalation.RebootCommand)
	sched := timelapse.NewScheduler(schedCfg, pipeline, a.archiver, climate, power, rebooter, a.triggers, a.logger, a.clock)
	return sched.Run(ctx)
}

// Archive runs one archival pass limited to budget.
func (a *App) Archive(ctx context.Context, budget time.Duration) *timelapse.ArchiveReport {
	return a.archiver.Archive(ctx, budget)
}

// Status summarizes the metadata store and the storage targets.
type Status struct {
	Database       string
	Captures       int
	FailedCaptures int
	LastCapture    *model.CaptureRecord // nil when nothing was captured yet
	Files          model.FileCounts
	RemoteAlive    bool
	RemoteErr      error
	FreeSpace      uint64
	Watermark      uint64
}

// Status collects the current Status. Remote and free-space problems are
// reported in the result rather than as errors.
func (a *App) Status(ctx context.Context) (*Status, error) {
	st := &Status{Database: a.db.Path(), Watermark: uint64(a.cfg.Storage.FreeSpace)}

	total, failed, err := a.db.CountCaptures()
	if err != nil {
		return nil, err
	}
	st.Captures, st.FailedCaptures = total, failed

	last, err := a.db.ListCaptures(1)
	if err != nil {
		return nil, err
	}
	if len(last) > 0 {
		st.LastCapture = last[0]
	}

	counts, err := a.db.CountFiles()
	if err != nil {
		return nil, err
	}
	st.Files = *counts

	st.RemoteAlive, st.RemoteErr = a.remote.Alive(ctx)
	if free, err := a.local.FreeSpace(); err == nil {
		st.FreeSpace = free
	} else {
		a.logger.Warn("checking free space", "error", err)
	}
	return st, nil
}

// Captures returns the most recent capture records, newest first.
func (a *App) Captures(limit int) ([]*model.CaptureRecord, error) {
	return a.db.ListCaptures(limit)
}

// Climate returns the most recent samples that carry both values, newest first.
// limit bounds the samples read, not the samples returned.
func (a *App) Climate(limit int) ([]*model.ClimateSample, error) {
	samples, err := a.db.ListClimateSamples(limit)
	if err != nil {
		return nil, err
	}
	out := samples[:0]
	for _, s := range samples {
		if s.Humidity != nil && s.Temperature != nil {
			out = append(out, s)
		}
	}
	return out, nil
}

// Close closes the database and the log file.
func (a *App) Close() error {
	var firstErr error
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			firstErr = fmt.Errorf("closing database: %w", err)
		}
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	return firstErr
}

// BackupPrefix returns the remote name prefix of metadata store backups.
func BackupPrefix(cfg *config.Config) string {
	return cfg.ImagePrefix + "dbBackup_"
}

func archiveConfig(cfg *config.Config) timelapse.ArchiveConfig {
	return timelapse.ArchiveConfig{
		MinFreeSpace:  uint64(cfg.Storage.FreeSpace),
		BackupEnabled: cfg.Backup.Enabled,
		BackupPrefix:  BackupPrefix(cfg),
		KeepBackups:   cfg.Backup.Keep,
	}
}

func schedulerConfig(cfg *config.Config) (timelapse.SchedulerConfig, error) {
	dayStart, err := config.ParseTimeOfDay(cfg.Schedule.DayStart)
	if err != nil {
		return timelapse.SchedulerConfig{}, err
	}
	dayEnd, err := config.ParseTimeOfDay(cfg.Schedule.DayEnd)
	if err != nil {
		return timelapse.SchedulerConfig{}, err
	}
	weekend := make([]time.Weekday, 0, len(cfg.Schedule.WeekendDays))
	for _, d := range cfg.Schedule.WeekendDays {
		weekend = append(weekend, time.Weekday(d))
	}

	return timelapse.SchedulerConfig{
		Cadence: timelapse.Cadence{
			Interval:      seconds(cfg.Schedule.PhotoInterval),
			DayStart:      dayStart,
			DayEnd:        dayEnd,
			NightFactor:   cfg.Schedule.NightFactor,
			WeekendDays:   weekend,
			WeekendFactor: cfg.Schedule.WeekendFactor,
		},
		Escalation: timelapse.EscalationPolicy{
			RestartAfter:   cfg.Escalation.RestartAfter,
			RebootAfter:    cfg.Escalation.RebootAfter,
			RescueCooldown: seconds(cfg.Escalation.RescueCooldown),
			Night:          timelapse.NightMode(cfg.Escalation.NightFailures),
		},
		ClimateInterval: seconds(cfg.Climate.Interval),
		Tick:            time.Duration(cfg.Schedule.TickMillis) * time.Millisecond,
		PowerSettle:     seconds(cfg.Power.Settle),
		CycleOnStart:    cfg.Power.CycleOnStart,
	}, nil
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
