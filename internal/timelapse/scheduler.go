package timelapse

import (
	"context"
	"time"
)

// Capturer performs one capture attempt.
type Capturer interface {
	Capture(ctx context.Context, now time.Time) (*CaptureOutcome, error)
}

// ArchiveRunner runs one budget-bounded archival pass.
type ArchiveRunner interface {
	Archive(ctx context.Context, budget time.Duration) *ArchiveReport
}

// ClimateSampler records one climate sample.
type ClimateSampler interface {
	Sample(ctx context.Context, now time.Time)
}

var (
	_ Capturer       = (*Pipeline)(nil)
	_ ArchiveRunner  = (*Archiver)(nil)
	_ ClimateSampler = (*ClimateRecorder)(nil)
)

// SchedulerConfig holds the loop settings.
type SchedulerConfig struct {
	Cadence         Cadence
	Escalation      EscalationPolicy
	ClimateInterval time.Duration // 0 disables climate sampling
	Tick            time.Duration
	PowerSettle     time.Duration // wait after each power transition
	CycleOnStart    bool          // power-cycle the camera before the first tick
}

// SchedulerState is the in-memory bookkeeping owned by the loop. It is not
// persisted; a restart resets the cadence phase and the failure count.
type SchedulerState struct {
	Cadence     CadenceState
	LastClimate time.Time
	LastAttempt time.Time
	Failures    int
}

// Scheduler is the top-level control loop. Captures, archival and climate
// samples run one after the other on the calling goroutine.
type Scheduler struct {
	capturer Capturer
	archiver ArchiveRunner
	climate  ClimateSampler
	power    PowerLine
	rebooter Rebooter
	triggers *Triggers
	logger   Logger
	clock    Clock
	cfg      SchedulerConfig
	state    SchedulerState
}

// NewScheduler creates a Scheduler whose first tick captures immediately.
// climate may be nil.
func NewScheduler(cfg SchedulerConfig, capturer Capturer, archiver ArchiveRunner, climate ClimateSampler, power PowerLine, rebooter Rebooter, triggers *Triggers, logger Logger, clock Clock) *Scheduler {
	now := clock.Now()
	return &Scheduler{
		capturer: capturer,
		archiver: archiver,
		climate:  climate,
		power:    power,
		rebooter: rebooter,
		triggers: triggers,
		logger:   logger,
		clock:    clock,
		cfg:      cfg,
		state: SchedulerState{
			Cadence:     cfg.Cadence.NewCadenceState(now),
			LastClimate: now.Add(-cfg.ClimateInterval - 2*time.Second),
			LastAttempt: now,
		},
	}
}

// State returns a copy of the current loop state.
func (s *Scheduler) State() SchedulerState { return s.state }

// Run ticks until shutdown is requested or ctx is done. The only error it
// returns is ErrRebootRequested, after which the process must exit.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler started",
		"interval", s.cfg.Cadence.Interval,
		"night_factor", s.cfg.Cadence.NightFactor,
		"weekend_factor", s.cfg.Cadence.WeekendFactor,
		"climate_interval", s.cfg.ClimateInterval)

	if s.cfg.CycleOnStart {
		s.PowerCycle()
	}

	for {
		if s.triggers.ShutdownRequested() {
			s.logger.Info("shutdown requested, exiting")
			return nil
		}
		if ctx.Err() != nil {
			s.logger.Info("context done, exiting", "error", ctx.Err())
			return nil
		}
		if err := s.Tick(ctx); err != nil {
			return err
		}
		s.clock.Sleep(s.cfg.Tick)
	}
}

// Tick runs one iteration of the loop: a capture when one is due, archival
// after a successful capture, then a climate sample when its interval elapsed.
func (s *Scheduler) Tick(ctx context.Context) error {
	now := s.clock.Now()

	onDemand := s.triggers.takeCapture()
	decision, next := s.cfg.Cadence.Evaluate(now, s.state.Cadence)
	s.state.Cadence = next

	reason := ""
	switch {
	case onDemand:
		reason = "on-demand"
	case decision.Due:
		reason = "scheduled"
	case s.cfg.Escalation.RescueDue(s.state.Failures, s.state.LastAttempt, now):
		reason = "rescue"
	case decision.Scheduled:
		s.logger.Debug("tick skipped", "count", decision.Count, "factor", decision.Factor,
			"daytime", decision.Daytime, "weekend", decision.Weekend)
	}

	if reason != "" {
		if err := s.shoot(ctx, now, reason); err != nil {
			return err
		}
	}

	if s.climate != nil && s.cfg.ClimateInterval > 0 {
		climateNow := s.clock.Now()
		if last, due := advance(s.state.LastClimate, climateNow, s.cfg.ClimateInterval); due {
			s.state.LastClimate = last
			s.climate.Sample(ctx, climateNow)
		}
	}
	return nil
}

func (s *Scheduler) shoot(ctx context.Context, now time.Time, reason string) error {
	s.logger.Debug("taking photo", "reason", reason, "failures", s.state.Failures)
	s.state.LastAttempt = now

	outcome, err := s.capturer.Capture(ctx, now)
	if err == nil {
		if s.state.Failures > 0 {
			s.logger.Info("camera recovered", "failures", s.state.Failures)
		}
		s.state.Failures = 0
		s.archive(ctx, outcome)
		return nil
	}

	failures, action := s.cfg.Escalation.RecordFailure(s.state.Failures, s.cfg.Cadence.Daytime(now))
	s.state.Failures = failures
	switch action {
	case ActionNone:
		s.logger.Warn("capture failed outside the day window", "error", err)
	case ActionWarn:
		s.logger.Warn("capture failed", "error", err, "failures", failures,
			"remaining_before_reboot", s.cfg.Escalation.RemainingBeforeReboot(failures))
	case ActionRestartDevice:
		s.logger.Warn("capture failed, power-cycling camera", "error", err, "failures", failures)
		s.PowerCycle()
	case ActionReboot:
		s.logger.Error("too many failures, rebooting", "error", err, "failures", failures)
		if rerr := s.rebooter.Reboot(); rerr != nil {
			s.logger.Error("reboot command failed", "error", rerr)
		}
		return ErrRebootRequested
	}
	return nil
}

// archive spends the time left before the next nominal interval on archival.
func (s *Scheduler) archive(ctx context.Context, outcome *CaptureOutcome) {
	budget := s.cfg.Cadence.NextNominal(s.state.Cadence).Sub(s.clock.Now())
	if budget <= 0 {
		s.logger.Debug("no time left for archiving", "capture_id", outcome.CaptureID)
		return
	}
	report := s.archiver.Archive(ctx, budget)
	s.logger.Debug("archive report", "budget", budget, "copied", report.Copied,
		"deleted", report.Deleted, "healed", report.Healed, "unconfirmed", report.Unconfirmed, "backup", report.Backup)
}

// PowerCycle switches the camera off and on again, waiting the settle delay
// after each transition. Errors are logged; the next capture will tell.
func (s *Scheduler) PowerCycle() {
	s.logger.Info("power-cycling camera", "settle", s.cfg.PowerSettle)
	if err := s.power.Off(); err != nil {
		s.logger.Error("switching camera off", "error", err)
	}
	s.clock.Sleep(s.cfg.PowerSettle)
	if err := s.power.On(); err != nil {
		s.logger.Error("switching camera on", "error", err)
	}
	s.clock.Sleep(s.cfg.PowerSettle)
}
