package openai

import (
	"context"
	"sync"
	"time"
)

// A token bucket rate limiter for outbound extraction requests. Hosted
// vision models are metered per minute, so one bucket is shared by all chat
// sessions served by the process.
type rateLimiter struct {
	mu       sync.Mutex // protect access to lastTime and tokens
	lastTime time.Time
	tokens   int

	window time.Duration
	rate   int

	now func() time.Time
}

// newRateLimiter creates a limiter allowing rate requests over window, e.g.
// newRateLimiter(30, time.Minute) allows 30 extractions a minute.
func newRateLimiter(rate int, window time.Duration) *rateLimiter {
	return &rateLimiter{
		window:   window,
		rate:     rate,
		lastTime: time.Now(),
		tokens:   rate,
		now:      time.Now,
	}
}

// Acquire returns nil once a request may proceed. It sleeps while the bucket
// is empty and returns ctx.Err() if the context is done first.
func (rl *rateLimiter) Acquire(ctx context.Context) error {
	for !rl.tryAcquire() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(rl.window / time.Duration(rl.rate)):
			// Assuming tokens refill evenly across the window, one should
			// be available after 1/Nth of it.
		}
	}

	return nil
}

func (rl *rateLimiter) tryAcquire() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	elapsed := now.Sub(rl.lastTime)

	// Only advance lastTime when at least one token was earned, otherwise
	// frequent callers would never accumulate a fraction of one.
	earned := int(elapsed.Nanoseconds() * int64(rl.rate) / rl.window.Nanoseconds())
	if earned > 0 {
		rl.tokens = min(rl.tokens+earned, rl.rate)
		rl.lastTime = now
	}
	if rl.tokens <= 0 {
		return false
	}

	rl.tokens--
	return true
}
