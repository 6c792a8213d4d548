package notify

import (
	"sync"
	"time"
)

// Timer is a pending callback that can be stopped.
type Timer interface {
	// Stop prevents the callback from firing. It reports whether the call
	// stopped the timer.
	Stop() bool
}

// Scheduler starts timers. The callback runs on an arbitrary goroutine.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// SystemScheduler schedules with time.AfterFunc.
type SystemScheduler struct{}

// AfterFunc implements Scheduler.
func (SystemScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// ManualScheduler records timers and fires them only when asked. It is used
// by tests that need deterministic dismissal.
type ManualScheduler struct {
	mu     sync.Mutex
	timers []*ManualTimer
}

// ManualTimer is a timer created by ManualScheduler.
type ManualTimer struct {
	Duration time.Duration

	mu      sync.Mutex
	f       func()
	stopped bool
	fired   bool
}

// NewManualScheduler creates an empty ManualScheduler.
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{}
}

// AfterFunc implements Scheduler.
func (s *ManualScheduler) AfterFunc(d time.Duration, f func()) Timer {
	t := &ManualTimer{Duration: d, f: f}
	s.mu.Lock()
	s.timers = append(s.timers, t)
	s.mu.Unlock()
	return t
}

// Timers returns every timer created so far, oldest first.
func (s *ManualScheduler) Timers() []*ManualTimer {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*ManualTimer, len(s.timers))
	copy(out, s.timers)
	return out
}

// Pending returns the timers that are neither stopped nor fired.
func (s *ManualScheduler) Pending() []*ManualTimer {
	var out []*ManualTimer
	for _, t := range s.Timers() {
		if !t.Stopped() && !t.Fired() {
			out = append(out, t)
		}
	}
	return out
}

// FireAll fires every pending timer, including timers created while firing,
// until none remain.
func (s *ManualScheduler) FireAll() {
	for {
		pending := s.Pending()
		if len(pending) == 0 {
			return
		}
		for _, t := range pending {
			t.Fire()
		}
	}
}

// Stop implements Timer.
func (t *ManualTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// Fire runs the callback unless the timer was stopped or already fired.
// It reports whether the callback ran.
func (t *ManualTimer) Fire() bool {
	t.mu.Lock()
	if t.stopped || t.fired {
		t.mu.Unlock()
		return false
	}
	t.fired = true
	f := t.f
	t.mu.Unlock()

	f()
	return true
}

// Stopped reports whether Stop succeeded.
func (t *ManualTimer) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

// Fired reports whether the callback ran.
func (t *ManualTimer) Fired() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.fired
}
