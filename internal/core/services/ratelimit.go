package services

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// rateLimiter bounds outbound provider calls with a sliding 60s window,
// backed by a proactive token bucket so calls pace out evenly instead of
// bursting to the cap and stalling.
//
// The window is the single serialization point of the embedding client:
// the mutex is held across the suspend so concurrent callers queue on it,
// and a call's timestamp is recorded only after its wait decision.
type rateLimiter struct {
	mu     sync.Mutex
	rpm    int
	window time.Duration
	calls  []time.Time
	bucket *rate.Limiter

	// now and sleep are injectable for tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func newRateLimiter(rpm int) *rateLimiter {
	return &rateLimiter{
		rpm:    rpm,
		window: time.Minute,
		bucket: rate.NewLimiter(rate.Limit(float64(rpm)/60.0), 1),
		now:    time.Now,
		sleep:  sleepCtx,
	}
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

// Wait suspends the caller until a provider call is permitted, then
// records the call timestamp.
func (l *rateLimiter) Wait(ctx context.Context) error {
	if err := l.bucket.Wait(ctx); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.prune(now)

	if len(l.calls) >= l.rpm {
		wait := l.window - now.Sub(l.calls[0])
		if wait > 0 {
			if err := l.sleep(ctx, wait); err != nil {
				return err
			}
			now = l.now()
			l.prune(now)
		}
	}

	l.calls = append(l.calls, now)
	return nil
}

// prune drops timestamps that have left the trailing window.
// Callers hold the mutex.
func (l *rateLimiter) prune(now time.Time) {
	cutoff := now.Add(-l.window)
	i := 0
	for i < len(l.calls) && !l.calls[i].After(cutoff) {
		i++
	}
	if i > 0 {
		l.calls = append(l.calls[:0], l.calls[i:]...)
	}
}

// pending returns how many calls are currently inside the window.
func (l *rateLimiter) pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prune(l.now())
	return len(l.calls)
}
