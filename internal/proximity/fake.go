package proximity

import (
	"sync"
	"time"
)

// FakeScheduler is a test double that fires timers only when Advance is
// called. Callbacks run synchronously on the caller's goroutine, in
// arming order.
type FakeScheduler struct {
	mu      sync.Mutex
	pending []*fakeTimer
}

type fakeTimer struct {
	sched     *FakeScheduler
	remaining time.Duration
	fn        func()
	stopped   bool
}

// NewFakeScheduler creates an empty FakeScheduler.
func NewFakeScheduler() *FakeScheduler {
	return &FakeScheduler{}
}

// After implements Scheduler.
func (s *FakeScheduler) After(d time.Duration, fn func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &fakeTimer{sched: s, remaining: d, fn: fn}
	s.pending = append(s.pending, t)
	return t
}

// Advance moves fake time forward by d, firing every armed timer whose
// remaining duration elapses, in arming order. Timers armed from within
// a firing callback are not charged any of this advance.
func (s *FakeScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	var due []*fakeTimer
	var rest []*fakeTimer
	for _, t := range s.pending {
		if t.stopped {
			continue
		}
		t.remaining -= d
		if t.remaining <= 0 {
			due = append(due, t)
		} else {
			rest = append(rest, t)
		}
	}
	s.pending = rest
	s.mu.Unlock()

	// Fire outside the lock: callbacks take the monitor mutex, which
	// may itself be held by a goroutine arming a new timer.
	for _, t := range due {
		if !t.isStopped() {
			t.fn()
		}
	}
}

// Pending returns the number of armed, uncanceled timers.
func (s *FakeScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.pending {
		if !t.stopped {
			n++
		}
	}
	return n
}

func (t *fakeTimer) Cancel() {
	t.sched.mu.Lock()
	t.stopped = true
	t.sched.mu.Unlock()
}

func (t *fakeTimer) isStopped() bool {
	t.sched.mu.Lock()
	defer t.sched.mu.Unlock()
	return t.stopped
}
