package timelapse

import "time"

// Action is what the scheduler must do after a capture outcome.
type Action int

const (
	ActionNone          Action = iota // Normal: no failures outstanding
	ActionWarn                        // Degraded: log and retry
	ActionRestartDevice               // power-cycle the camera before the next attempt
	ActionReboot                      // reboot the system and exit
)

func (a Action) String() string {
	switch a {
	case ActionNone:
		return "none"
	case ActionWarn:
		return "warn"
	case ActionRestartDevice:
		return "restart-device"
	case ActionReboot:
		return "reboot"
	default:
		return "unknown"
	}
}

// NightMode selects how failures outside the day window are counted.
type NightMode string

const (
	NightCount  NightMode = "count"  // failures accumulate at all times
	NightIgnore NightMode = "ignore" // night failures leave the count unchanged
	NightReset  NightMode = "reset"  // a night failure resets the count to zero
)

// EscalationPolicy maps consecutive capture failures to recovery actions.
// The failure count itself lives in SchedulerState; the policy is pure.
type EscalationPolicy struct {
	RestartAfter   int           // failures that trigger a device power-cycle; 0 disables
	RebootAfter    int           // failures that trigger a reboot; 0 disables
	RescueCooldown time.Duration // extra wait per outstanding failure before a rescue attempt
	Night          NightMode
}

// RecordFailure returns the new failure count and the action it requires.
func (p EscalationPolicy) RecordFailure(failures int, daytime bool) (int, Action) {
	switch {
	case daytime || p.Night == NightCount:
		failures++
	case p.Night == NightReset:
		failures = 0
	}
	return failures, p.Action(failures)
}

// Action returns the action required at the given failure count.
func (p EscalationPolicy) Action(failures int) Action {
	switch {
	case failures <= 0:
		return ActionNone
	case p.RebootAfter > 0 && failures >= p.RebootAfter:
		return ActionReboot
	case p.RestartAfter > 0 && failures >= p.RestartAfter:
		return ActionRestartDevice
	default:
		return ActionWarn
	}
}

// RemainingBeforeReboot returns how many further failures lead to a reboot,
// or -1 when reboots are disabled.
func (p EscalationPolicy) RemainingBeforeReboot(failures int) int {
	if p.RebootAfter <= 0 {
		return -1
	}
	return max(p.RebootAfter-failures, 0)
}

// RescueDue reports whether an out-of-cadence attempt should be made: with
// failures outstanding, once failures*RescueCooldown has passed since lastAttempt.
func (p EscalationPolicy) RescueDue(failures int, lastAttempt, now time.Time) bool {
	if failures <= 0 {
		return false
	}
	return !now.Before(lastAttempt.Add(time.Duration(failures) * p.RescueCooldown))
}
