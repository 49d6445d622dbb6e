package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// safetyMargin is added to the sleep when the window is exhausted, so a
// request never lands on the boundary of the server's own window.
const safetyMargin = 500 * time.Millisecond

// Limiter is a fixed-window rate limiter. The window is not rolling:
// once window-length has elapsed since windowStart, the counter resets
// and a new window begins at the current time with no quota carry-over.
type Limiter struct {
	mu          sync.Mutex
	limit       int
	window      time.Duration
	count       int
	windowStart time.Time

	logger *slog.Logger

	// Injectable for tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a limiter allowing limit requests per window.
func New(limit int, window time.Duration, logger *slog.Logger) *Limiter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Limiter{
		limit:  limit,
		window: window,
		logger: logger,
		now:    time.Now,
		sleep:  sleepCtx,
	}
}

// Acquire counts one request against the current window, sleeping first
// if the window's budget is already spent. Callers block first-come,
// first-blocked; there is no fairness queue. Returns early with the
// context error if ctx is cancelled during the sleep.
func (l *Limiter) Acquire(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	// Reset window if expired
	if l.windowStart.IsZero() || now.Sub(l.windowStart) >= l.window {
		l.count = 0
		l.windowStart = now
	}

	// Wait if at limit
	if l.count >= l.limit {
		wait := l.window - now.Sub(l.windowStart) + safetyMargin
		if wait > 0 {
			l.logger.Info("rate limit reached, sleeping", "wait", wait)
			if err := l.sleep(ctx, wait); err != nil {
				return err
			}
		}
		l.count = 0
		l.windowStart = l.now()
	}

	l.count++
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
