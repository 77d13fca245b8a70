package attempt

import (
	"sync"
	"time"
)

// Clock abstracts wall-clock time so tests can control it.
type Clock interface {
	Now() time.Time
}

// SystemClock is the real clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Timer tracks an absolute deadline. Because the deadline is persisted and
// never recomputed, backgrounding or reloading a client cannot extend the
// exam; only the wall clock matters.
type Timer struct {
	deadline time.Time
	clock    Clock
	interval time.Duration

	fireOnce sync.Once
	stopOnce sync.Once
	stop     chan struct{}
}

// NewTimer creates a Timer for a deadline in epoch milliseconds.
func NewTimer(deadlineMS int64, clock Clock) *Timer {
	return &Timer{
		deadline: time.UnixMilli(deadlineMS),
		clock:    clock,
		interval: time.Second,
		stop:     make(chan struct{}),
	}
}

// Remaining returns the time until the deadline, clamped at zero.
func (t *Timer) Remaining() time.Duration {
	remaining := t.deadline.Sub(t.clock.Now())
	if remaining < 0 {
		return 0
	}
	return remaining
}

// RemainingSeconds returns whole seconds until the deadline, clamped at zero.
func (t *Timer) RemainingSeconds() int {
	return int(t.Remaining() / time.Second)
}

// Expired reports whether the deadline has passed.
func (t *Timer) Expired() bool {
	return t.Remaining() == 0
}

// Watch fires onExpire exactly once when the deadline passes, checking at
// 1-second granularity. An already-expired deadline (resume after the exam
// window closed) fires immediately.
func (t *Timer) Watch(onExpire func()) {
	go func() {
		ticker := time.NewTicker(t.interval)
		defer ticker.Stop()
		for {
			if t.Expired() {
				t.fireOnce.Do(onExpire)
				return
			}
			select {
			case <-t.stop:
				return
			case <-ticker.C:
			}
		}
	}()
}

// Stop cancels the watch goroutine. A signal that already fired stays fired.
func (t *Timer) Stop() {
	t.stopOnce.Do(func() { close(t.stop) })
}
