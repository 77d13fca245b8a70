package middleware

import (
	"context"
	"testing"
	"time"
)

func TestRateLimiterBurstAndRefill(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rl := NewRateLimiter(ctx, 3, 20*time.Millisecond)

	for i := 0; i < 3; i++ {
		if !rl.allow("10.0.0.1") {
			t.Fatalf("request %d within burst should pass", i+1)
		}
	}
	if rl.allow("10.0.0.1") {
		t.Fatal("request over burst should be rejected")
	}

	time.Sleep(25 * time.Millisecond)
	if !rl.allow("10.0.0.1") {
		t.Fatal("bucket should refill after the window elapses")
	}
}

func TestRateLimiterIsolatesClients(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rl := NewRateLimiter(ctx, 1, time.Minute)

	if !rl.allow("10.0.0.1") {
		t.Fatal("first client should pass")
	}
	if rl.allow("10.0.0.1") {
		t.Fatal("first client should be exhausted")
	}
	if !rl.allow("10.0.0.2") {
		t.Fatal("second client must not share the first client's bucket")
	}
}
