package timelapse_test

import (
	"testing"
	"time"

	"baucam/internal/timelapse"
)

func testCadence() timelapse.Cadence {
	return timelapse.Cadence{
		Interval:      time.Minute,
		DayStart:      6 * time.Hour,
		DayEnd:        20 * time.Hour,
		NightFactor:   6,
		WeekendDays:   []time.Weekday{time.Saturday, time.Sunday},
		WeekendFactor: 2,
	}
}

// dueTicks evaluates n scheduled ticks one interval apart starting at start
// and returns the 1-based indexes of those that were due.
func dueTicks(t *testing.T, c timelapse.Cadence, start time.Time, n int) []int {
	t.Helper()
	st := c.NewCadenceState(start)
	var due []int
	for i := 0; i < n; i++ {
		d, next := c.Evaluate(start.Add(time.Duration(i)*c.Interval), st)
		if !d.Scheduled {
			t.Fatalf("tick %d not scheduled", i+1)
		}
		st = next
		if d.Due {
			due = append(due, i+1)
		}
	}
	return due
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestCadence_Evaluate(t *testing.T) {
	c := testCadence()

	tests := []struct {
		name  string
		start time.Time
		ticks int
		want  []int
	}{
		{
			name:  "weekday daytime captures every tick",
			start: time.Date(2024, 1, 15, 10, 30, 0, 0, time.Local),
			ticks: 4,
			want:  []int{1, 2, 3, 4},
		},
		{
			name:  "weekday night captures every sixth tick",
			start: time.Date(2024, 1, 15, 23, 0, 0, 0, time.Local),
			ticks: 13,
			want:  []int{6, 12},
		},
		{
			name:  "weekend daytime captures every second tick",
			start: time.Date(2024, 1, 20, 12, 0, 0, 0, time.Local),
			ticks: 6,
			want:  []int{2, 4, 6},
		},
		{
			name:  "weekend night factors compose",
			start: time.Date(2024, 1, 20, 22, 0, 0, 0, time.Local),
			ticks: 25,
			want:  []int{12, 24},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := dueTicks(t, c, tt.start, tt.ticks)
			if !equalInts(got, tt.want) {
				t.Errorf("due ticks = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCadence_BetweenTicks(t *testing.T) {
	c := testCadence()
	start := time.Date(2024, 1, 15, 10, 30, 0, 0, time.Local)
	st := c.NewCadenceState(start)

	d, st := c.Evaluate(start, st)
	if !d.Scheduled || !d.Due {
		t.Fatalf("first evaluation = %+v, want a due tick", d)
	}

	d, after := c.Evaluate(start.Add(30*time.Second), st)
	if d.Scheduled || d.Due {
		t.Errorf("mid-interval evaluation = %+v, want nothing", d)
	}
	if after != st {
		t.Errorf("mid-interval evaluation changed state: %+v -> %+v", st, after)
	}

	if got, want := c.NextNominal(st), st.LastScheduled.Add(time.Minute); !got.Equal(want) {
		t.Errorf("NextNominal() = %v, want %v", got, want)
	}
}

func TestCadence_SnapsAfterStall(t *testing.T) {
	c := testCadence()
	start := time.Date(2024, 1, 15, 10, 30, 0, 0, time.Local)
	st := c.NewCadenceState(start)
	_, st = c.Evaluate(start, st)

	late := start.Add(10 * time.Minute)
	d, st := c.Evaluate(late, st)
	if !d.Scheduled {
		t.Fatal("evaluation after a stall should be scheduled")
	}
	if !st.LastScheduled.Equal(late) {
		t.Errorf("LastScheduled = %v, want snapped to %v", st.LastScheduled, late)
	}

	if d, _ := c.Evaluate(late.Add(time.Second), st); d.Scheduled {
		t.Error("missed intervals should not be caught up")
	}
}

func TestCadence_CounterResetsOnWeekdayDaytime(t *testing.T) {
	c := testCadence()
	// Saturday 19:58: daytime weekend ticks, then night weekend ticks.
	start := time.Date(2024, 1, 20, 19, 58, 0, 0, time.Local)
	st := c.NewCadenceState(start)
	for i := 0; i < 3; i++ {
		_, st = c.Evaluate(start.Add(time.Duration(i)*time.Minute), st)
	}
	if st.Count != 4 {
		t.Fatalf("Count after three weekend ticks = %d, want 4", st.Count)
	}

	monday := time.Date(2024, 1, 22, 9, 0, 0, 0, time.Local)
	d, st := c.Evaluate(monday, st)
	if !d.Due || d.Count != 1 || st.Count != 2 {
		t.Errorf("weekday daytime evaluation = %+v (next count %d), want due with count 1", d, st.Count)
	}
}

func TestCadence_DayWindowIsExclusive(t *testing.T) {
	c := testCadence()
	tests := []struct {
		at   time.Time
		want bool
	}{
		{time.Date(2024, 1, 15, 6, 0, 0, 0, time.Local), false},
		{time.Date(2024, 1, 15, 6, 0, 1, 0, time.Local), true},
		{time.Date(2024, 1, 15, 19, 59, 59, 0, time.Local), true},
		{time.Date(2024, 1, 15, 20, 0, 0, 0, time.Local), false},
		{time.Date(2024, 1, 15, 2, 0, 0, 0, time.Local), false},
	}
	for _, tt := range tests {
		if got := c.Daytime(tt.at); got != tt.want {
			t.Errorf("Daytime(%s) = %v, want %v", tt.at.Format("15:04:05"), got, tt.want)
		}
	}
}

func TestCadence_NightScenario(t *testing.T) {
	c := timelapse.Cadence{
		Interval:    600 * time.Second,
		DayStart:    6 * time.Hour,
		DayEnd:      21 * time.Hour,
		NightFactor: 6,
	}

	// A daytime tick at 20:50 resets the counter; night ticks follow from 23:00.
	st := c.NewCadenceState(time.Date(2024, 1, 15, 20, 50, 0, 0, time.Local))
	d, st := c.Evaluate(time.Date(2024, 1, 15, 20, 50, 0, 0, time.Local), st)
	if !d.Due {
		t.Fatal("daytime tick at 20:50 should be due")
	}

	night := time.Date(2024, 1, 15, 23, 0, 0, 0, time.Local)
	var fired []int
	for i := 0; i < 6; i++ {
		d, st = c.Evaluate(night.Add(time.Duration(i)*c.Interval), st)
		if d.Due {
			fired = append(fired, d.Count)
		}
	}
	if len(fired) != 1 || fired[0] != 6 {
		t.Errorf("night ticks fired at counts %v, want only the 6th", fired)
	}
}
