package attempt

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestRemainingClampedAtZero(t *testing.T) {
	clock := &fakeClock{now: time.UnixMilli(1_000_000)}
	timer := NewTimer(clock.now.Add(90*time.Second).UnixMilli(), clock)

	if got := timer.RemainingSeconds(); got != 90 {
		t.Errorf("remaining = %d, want 90", got)
	}

	clock.Advance(30 * time.Second)
	if got := timer.RemainingSeconds(); got != 60 {
		t.Errorf("remaining after 30s = %d, want 60", got)
	}

	clock.Advance(5 * time.Minute)
	if got := timer.RemainingSeconds(); got != 0 {
		t.Errorf("remaining past deadline = %d, want 0", got)
	}
	if !timer.Expired() {
		t.Error("timer should report expired")
	}
}

func TestWatchFiresOnceOnExpiry(t *testing.T) {
	clock := &fakeClock{now: time.UnixMilli(1_000_000)}
	timer := NewTimer(clock.now.Add(50*time.Millisecond).UnixMilli(), clock)
	timer.interval = time.Millisecond

	var fired int32
	done := make(chan struct{})
	timer.Watch(func() {
		atomic.AddInt32(&fired, 1)
		close(done)
	})

	clock.Advance(time.Second)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timer never fired")
	}

	// Give a second fire a chance to happen; it must not.
	time.Sleep(20 * time.Millisecond)
	if got := atomic.LoadInt32(&fired); got != 1 {
		t.Errorf("fired %d times, want 1", got)
	}
}

func TestWatchFiresImmediatelyWhenAlreadyExpired(t *testing.T) {
	clock := &fakeClock{now: time.UnixMilli(1_000_000)}
	timer := NewTimer(clock.now.Add(-time.Minute).UnixMilli(), clock)

	done := make(chan struct{})
	timer.Watch(func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expired timer should fire immediately on watch")
	}
}

func TestStopPreventsFire(t *testing.T) {
	clock := &fakeClock{now: time.UnixMilli(1_000_000)}
	timer := NewTimer(clock.now.Add(time.Hour).UnixMilli(), clock)
	timer.interval = time.Millisecond

	var fired int32
	timer.Watch(func() { atomic.AddInt32(&fired, 1) })
	timer.Stop()
	timer.Stop() // must be safe twice

	clock.Advance(2 * time.Hour)
	time.Sleep(20 * time.Millisecond)
	if got := atomic.LoadInt32(&fired); got != 0 {
		t.Errorf("stopped timer fired %d times", got)
	}
}
