package timelapse

import "time"

// Clock abstracts time retrieval and blocking waits so business logic is
// deterministic in tests.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

// RealClock returns the actual current time.
type RealClock struct{}

func (RealClock) Now() time.Time        { return time.Now() }
func (RealClock) Sleep(d time.Duration) { time.Sleep(d) }
