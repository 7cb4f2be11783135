package timelapse

import "sync/atomic"

// Triggers carries the asynchronous requests delivered by signal handlers.
// Setters never block or perform I/O; the scheduler reads them once per tick.
type Triggers struct {
	shutdown atomic.Bool
	capture  atomic.Bool
}

// NewTriggers creates a Triggers with no pending requests.
func NewTriggers() *Triggers { return &Triggers{} }

// RequestShutdown asks the loop to exit before its next tick.
func (t *Triggers) RequestShutdown() { t.shutdown.Store(true) }

// RequestCapture asks for one immediate capture on the next tick.
func (t *Triggers) RequestCapture() { t.capture.Store(true) }

// ShutdownRequested reports whether shutdown was requested.
func (t *Triggers) ShutdownRequested() bool { return t.shutdown.Load() }

// takeCapture consumes a pending capture request.
func (t *Triggers) takeCapture() bool { return t.capture.Swap(false) }
