package config

import (
	"fmt"
	"time"
)

// Validate checks that the config values are usable.
func (c *Config) Validate() error {
	s := c.Schedule
	if s.PhotoInterval <= 0 {
		return fmt.Errorf("schedule.photo_interval must be positive, got %d", s.PhotoInterval)
	}
	if s.NightFactor < 1 {
		return fmt.Errorf("schedule.night_factor must be at least 1, got %d", s.NightFactor)
	}
	if s.WeekendFactor < 1 {
		return fmt.Errorf("schedule.weekend_factor must be at least 1, got %d", s.WeekendFactor)
	}
	if s.TickMillis <= 0 {
		return fmt.Errorf("schedule.tick_ms must be positive, got %d", s.TickMillis)
	}
	start, err := ParseTimeOfDay(s.DayStart)
	if err != nil {
		return fmt.Errorf("schedule.day_start: %w", err)
	}
	end, err := ParseTimeOfDay(s.DayEnd)
	if err != nil {
		return fmt.Errorf("schedule.day_end: %w", err)
	}
	if start >= end {
		return fmt.Errorf("schedule.day_start %s must be before day_end %s", s.DayStart, s.DayEnd)
	}
	for _, d := range s.WeekendDays {
		if d < 0 || d > 6 {
			return fmt.Errorf("schedule.weekend_days: %d is not a weekday index (0=Sunday..6=Saturday)", d)
		}
	}

	if c.Storage.FreeSpace < 0 {
		return fmt.Errorf("storage.free_space must not be negative")
	}
	if c.Camera.Timeout <= 0 {
		return fmt.Errorf("camera.timeout must be positive, got %d", c.Camera.Timeout)
	}
	if c.Power.Settle < 0 {
		return fmt.Errorf("power.settle must not be negative")
	}
	if c.Climate.Interval <= 0 {
		return fmt.Errorf("climate.interval must be positive, got %d", c.Climate.Interval)
	}

	e := c.Escalation
	if e.RescueCooldown <= 0 {
		return fmt.Errorf("escalation.rescue_cooldown must be positive, got %d", e.RescueCooldown)
	}
	if e.RestartAfter < 0 || e.RebootAfter < 0 {
		return fmt.Errorf("escalation thresholds must not be negative")
	}
	switch e.NightFailures {
	case "count", "ignore", "reset":
	default:
		return fmt.Errorf("escalation.night_failures: unknown mode %q", e.NightFailures)
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level: unknown level %q", c.LogLevel)
	}

	if c.Backup.Keep < 0 {
		return fmt.Errorf("backup.keep must not be negative")
	}
	return nil
}

// ParseTimeOfDay parses "HH:MM" (single-digit hours allowed) into an offset from midnight.
func ParseTimeOfDay(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}
