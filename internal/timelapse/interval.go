package timelapse

import "time"

// Cadence decides, per scheduled tick, whether a capture is due.
// Outside the day window only every NightFactor-th tick captures; on weekend
// days the WeekendFactor further stretches the cadence, and both compose
// multiplicatively.
type Cadence struct {
	Interval      time.Duration
	DayStart      time.Duration // offset from midnight, exclusive
	DayEnd        time.Duration // offset from midnight, exclusive
	NightFactor   int
	WeekendDays   []time.Weekday
	WeekendFactor int
}

// CadenceState is the bookkeeping carried between evaluations.
type CadenceState struct {
	LastScheduled time.Time // most recent scheduled tick
	Count         int       // stretched-tick counter, reset to 1 on weekday daytime ticks
}

// NewCadenceState returns a state whose first evaluation at now is a scheduled tick.
func (c Cadence) NewCadenceState(now time.Time) CadenceState {
	return CadenceState{
		LastScheduled: now.Add(-c.Interval - 2*time.Second),
		Count:         1,
	}
}

// Decision is the result of evaluating one tick.
type Decision struct {
	Scheduled bool // a nominal interval boundary was reached
	Due       bool // a capture should be taken
	Count     int  // counter value used for the decision
	Factor    int  // combined night and weekend stretch
	Daytime   bool
	Weekend   bool
}

// Evaluate decides whether now is a capture tick and returns the updated state.
// It does not depend on any other state and never consults the wall clock.
func (c Cadence) Evaluate(now time.Time, st CadenceState) (Decision, CadenceState) {
	next, scheduled := advance(st.LastScheduled, now, c.Interval)
	if !scheduled {
		return Decision{}, st
	}
	st.LastScheduled = next

	d := Decision{
		Scheduled: true,
		Factor:    1,
		Daytime:   c.Daytime(now),
		Weekend:   c.Weekend(now),
	}
	if !d.Daytime {
		d.Factor *= max(c.NightFactor, 1)
	}
	if d.Weekend {
		d.Factor *= max(c.WeekendFactor, 1)
	}
	if d.Daytime && !d.Weekend {
		st.Count = 1
	}
	d.Count = st.Count
	d.Due = st.Count%d.Factor == 0
	st.Count++
	return d, st
}

// Daytime reports whether t falls strictly inside the day window.
func (c Cadence) Daytime(t time.Time) bool {
	tod := timeOfDay(t)
	return c.DayStart < tod && tod < c.DayEnd
}

// Weekend reports whether t falls on a configured weekend day.
func (c Cadence) Weekend(t time.Time) bool {
	wd := t.Weekday()
	for _, d := range c.WeekendDays {
		if d == wd {
			return true
		}
	}
	return false
}

// NextNominal returns when the next nominal interval starts after st.
func (c Cadence) NextNominal(st CadenceState) time.Time {
	return st.LastScheduled.Add(c.Interval)
}

// advance moves last forward by one interval once now has reached it. When
// more than one interval was missed, last snaps to now instead of catching up.
func advance(last, now time.Time, interval time.Duration) (time.Time, bool) {
	if now.Before(last.Add(interval)) {
		return last, false
	}
	last = last.Add(interval)
	if last.Before(now.Add(-interval)) {
		last = now
	}
	return last, true
}

func timeOfDay(t time.Time) time.Duration {
	h, m, s := t.Clock()
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute +
		time.Duration(s)*time.Second + time.Duration(t.Nanosecond())
}
