package ratelimit

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"
)

// fakeClock drives the limiter deterministically. sleep advances the
// clock instead of blocking.
type fakeClock struct {
	t      time.Time
	slept  []time.Duration
	sleepE error
}

func (f *fakeClock) now() time.Time { return f.t }

func (f *fakeClock) sleep(ctx context.Context, d time.Duration) error {
	f.slept = append(f.slept, d)
	if f.sleepE != nil {
		return f.sleepE
	}
	f.t = f.t.Add(d)
	return nil
}

func newTestLimiter(limit int, window time.Duration) (*Limiter, *fakeClock) {
	clock := &fakeClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	l := New(limit, window, slog.Default())
	l.now = clock.now
	l.sleep = clock.sleep
	return l, clock
}

func TestAcquireUnderLimit(t *testing.T) {
	l, clock := newTestLimiter(3, 10*time.Second)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := l.Acquire(ctx); err != nil {
			t.Fatalf("Acquire %d failed: %v", i, err)
		}
	}

	if len(clock.slept) != 0 {
		t.Errorf("expected no sleeps under the limit, got %v", clock.slept)
	}
}

func TestAcquireBlocksAtLimit(t *testing.T) {
	l, clock := newTestLimiter(3, 10*time.Second)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := l.Acquire(ctx); err != nil {
			t.Fatalf("Acquire %d failed: %v", i, err)
		}
	}

	// 4 seconds into the window, the 4th call must wait out the
	// remaining 6 seconds plus the safety margin.
	clock.t = clock.t.Add(4 * time.Second)
	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("Acquire at limit failed: %v", err)
	}

	if len(clock.slept) != 1 {
		t.Fatalf("expected 1 sleep, got %d", len(clock.slept))
	}
	want := 6*time.Second + safetyMargin
	if clock.slept[0] != want {
		t.Errorf("slept %v, want %v", clock.slept[0], want)
	}
}

func TestAcquireNewWindowAfterExpiry(t *testing.T) {
	l, clock := newTestLimiter(2, 10*time.Second)
	ctx := context.Background()

	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	// Window elapsed: the counter resets and no sleep happens.
	clock.t = clock.t.Add(10 * time.Second)
	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("Acquire after expiry failed: %v", err)
	}

	if len(clock.slept) != 0 {
		t.Errorf("expected no sleeps after window expiry, got %v", clock.slept)
	}
}

func TestAcquireContextCancelled(t *testing.T) {
	l, clock := newTestLimiter(1, 10*time.Second)
	clock.sleepE = context.Canceled
	ctx := context.Background()

	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	err := l.Acquire(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestAcquireSleepResetsWindow(t *testing.T) {
	l, clock := newTestLimiter(1, 10*time.Second)
	ctx := context.Background()

	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	// Second call sleeps, then starts a fresh window; the third call
	// immediately after must block again for a full window.
	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	if len(clock.slept) != 2 {
		t.Fatalf("expected 2 sleeps, got %d", len(clock.slept))
	}
	want := 10*time.Second + safetyMargin
	if clock.slept[1] != want {
		t.Errorf("second sleep %v, want %v", clock.slept[1], want)
	}
}
