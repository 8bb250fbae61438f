package coach

import "time"

// Clock supplies the current time. The engine never reads the wall clock
// directly so tests can drive gating deterministically.
type Clock interface {
	Now() time.Time
}

// Handle is a cancellable scheduled callback. Cancel reports whether the
// callback was stopped before it ran; cancelling an already-fired or
// already-cancelled handle is a no-op.
type Handle interface {
	Cancel() bool
}

// Scheduler schedules single-shot callbacks. The engine uses it for the
// auto-dismiss timer and the post-response settle delay; both are always
// cancelled before being replaced.
type Scheduler interface {
	Clock

	// AfterFunc runs fn once after d elapses. fn may run on an arbitrary
	// goroutine; the engine's callbacks re-check state before acting so a
	// late firing after Cancel is harmless.
	AfterFunc(d time.Duration, fn func()) Handle
}

// realScheduler implements Scheduler on top of the standard time package.
type realScheduler struct{}

// NewScheduler returns a Scheduler backed by real wall-clock timers.
func NewScheduler() Scheduler { return realScheduler{} }

func (realScheduler) Now() time.Time { return time.Now() }

func (realScheduler) AfterFunc(d time.Duration, fn func()) Handle {
	return timerHandle{time.AfterFunc(d, fn)}
}

type timerHandle struct{ t *time.Timer }

func (h timerHandle) Cancel() bool { return h.t.Stop() }
