// Package mock provides a deterministic scheduler for driving the coaching
// engine's time-based gating in tests.
package mock

import (
	"sort"
	"sync"
	"time"

	"github.com/cuecardhq/cuecard/internal/coach"
)

var _ coach.Scheduler = (*Scheduler)(nil)

// Scheduler is a coach.Scheduler whose clock only moves when Advance is
// called. Callbacks due at or before the new time run synchronously inside
// Advance, in due order, without the Scheduler lock held, so a callback may
// call back into the scheduler (and the engine) freely.
type Scheduler struct {
	mu     sync.Mutex
	now    time.Time
	nextID int
	timers []*fakeTimer
}

type fakeTimer struct {
	id    int
	due   time.Time
	fn    func()
	sched *Scheduler
}

// NewScheduler returns a fake scheduler starting at the given time. A zero
// start is replaced with an arbitrary fixed epoch so zero-valued engine
// timestamps stay distinguishable from real ones.
func NewScheduler(start time.Time) *Scheduler {
	if start.IsZero() {
		start = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	}
	return &Scheduler{now: start}
}

// Now returns the fake current time.
func (s *Scheduler) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// AfterFunc registers fn to run once the fake clock has advanced by d.
func (s *Scheduler) AfterFunc(d time.Duration, fn func()) coach.Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	t := &fakeTimer{id: s.nextID, due: s.now.Add(d), fn: fn, sched: s}
	s.timers = append(s.timers, t)
	return t
}

// Advance moves the clock forward by d and fires every timer due on the
// way, in due-time order. Timers scheduled by a firing callback are honoured
// within the same Advance when they fall inside the window.
func (s *Scheduler) Advance(d time.Duration) {
	s.mu.Lock()
	target := s.now.Add(d)
	for {
		t := s.popDueLocked(target)
		if t == nil {
			break
		}
		if t.due.After(s.now) {
			s.now = t.due
		}
		s.mu.Unlock()
		t.fn()
		s.mu.Lock()
	}
	s.now = target
	s.mu.Unlock()
}

// PendingTimers reports how many timers are armed.
func (s *Scheduler) PendingTimers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// popDueLocked removes and returns the earliest timer due at or before
// target, breaking ties by registration order.
func (s *Scheduler) popDueLocked(target time.Time) *fakeTimer {
	sort.SliceStable(s.timers, func(i, j int) bool {
		if !s.timers[i].due.Equal(s.timers[j].due) {
			return s.timers[i].due.Before(s.timers[j].due)
		}
		return s.timers[i].id < s.timers[j].id
	})
	if len(s.timers) == 0 || s.timers[0].due.After(target) {
		return nil
	}
	t := s.timers[0]
	s.timers = s.timers[1:]
	return t
}

// Cancel removes the timer if it has not fired yet.
func (t *fakeTimer) Cancel() bool {
	t.sched.mu.Lock()
	defer t.sched.mu.Unlock()
	for i, other := range t.sched.timers {
		if other == t {
			t.sched.timers = append(t.sched.timers[:i], t.sched.timers[i+1:]...)
			return true
		}
	}
	return false
}
