package canvas

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"canvascli/internal/config"
)

// minRate is the floor the sustained rate can be penalized down to:
// one request every five seconds.
const minRate = rate.Limit(0.2)

// Limiter paces outbound requests for a single worker. It enforces a
// minimum inter-request interval and degrades adaptively when the server
// signals throttling. Pacing is local to the worker that owns the
// limiter; workers never share timing state.
type Limiter struct {
	mu        sync.Mutex
	limiter   *rate.Limiter
	notBefore time.Time
}

// NewLimiter creates a Limiter from rate configuration.
func NewLimiter(cfg config.RateConfig) *Limiter {
	interval := cfg.MinInterval
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	return &Limiter{limiter: rate.NewLimiter(rate.Every(interval), burst)}
}

// Acquire blocks until it is safe to issue the next request. It fails
// only when ctx is cancelled; rate pressure just delays.
func (l *Limiter) Acquire(ctx context.Context) error {
	l.mu.Lock()
	wait := time.Until(l.notBefore)
	l.mu.Unlock()

	if wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	return l.limiter.Wait(ctx)
}

// Penalize reacts to a server rate-limit response by halving the
// sustained rate (down to a floor) and, when the server suggested a
// Retry-After, deferring the next request by at least that long.
func (l *Limiter) Penalize(retryAfter time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	next := l.limiter.Limit() / 2
	if next < minRate {
		next = minRate
	}
	l.limiter.SetLimit(next)

	if retryAfter > 0 {
		notBefore := time.Now().Add(retryAfter)
		if notBefore.After(l.notBefore) {
			l.notBefore = notBefore
		}
	}
}

// Interval returns the current pacing interval between requests.
func (l *Limiter) Interval() time.Duration {
	limit := l.limiter.Limit()
	if limit <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / float64(limit))
}
