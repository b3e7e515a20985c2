package proximity

import "time"

// Scheduler arms one-shot deferred actions. Callbacks run on a
// scheduler-owned goroutine, never reentrant with the call that armed
// them.
type Scheduler interface {
	// After runs fn once d has elapsed. The returned Timer stops the
	// callback if it has not started yet.
	After(d time.Duration, fn func()) Timer
}

// Timer is a handle to a single armed action. Cancel is safe to call
// whether or not the timer has fired, any number of times.
type Timer interface {
	Cancel()
}

// WallScheduler schedules on real time via time.AfterFunc.
//
// Cancel stops the runtime timer but a callback that has already been
// dequeued may still run; the Monitor makes such late callbacks
// harmless with a generation check under its mutex.
type WallScheduler struct{}

// After implements Scheduler.
func (WallScheduler) After(d time.Duration, fn func()) Timer {
	return wallTimer{t: time.AfterFunc(d, fn)}
}

type wallTimer struct {
	t *time.Timer
}

func (w wallTimer) Cancel() {
	w.t.Stop()
}
