// Package retry paces the bounded retries §5 and §7 call for: the
// transient, explicitly retry-safe PiecesLocked and Concurrent errors, and
// dispatch/return/scrap sequence-number collisions under serializable
// isolation.
package retry

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter paces retry attempts per logical resource (a batch id, a
// sequence prefix, ...) with a token-bucket limiter, the same primitive
// the teacher uses for outbound API throttling.
type Limiter struct {
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
	rps      rate.Limit
	burst    int
}

// NewLimiter creates a retry limiter allowing up to rps attempts per second
// per key, with the given burst.
func NewLimiter(rps float64, burst int) *Limiter {
	return &Limiter{
		limiters: make(map[string]*rate.Limiter),
		rps:      rate.Limit(rps),
		burst:    burst,
	}
}

// Wait blocks until the next retry attempt for key is permitted.
func (l *Limiter) Wait(ctx context.Context, key string) error {
	return l.get(key).Wait(ctx)
}

func (l *Limiter) get(key string) *rate.Limiter {
	l.mu.RLock()
	limiter, ok := l.limiters[key]
	l.mu.RUnlock()
	if ok {
		return limiter
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if limiter, ok := l.limiters[key]; ok {
		return limiter
	}
	limiter = rate.NewLimiter(l.rps, l.burst)
	l.limiters[key] = limiter
	return limiter
}

// WithBackoff runs fn up to maxAttempts times, waiting backoff between
// attempts, stopping as soon as fn returns a nil error or a non-retryable
// error (retryable reports which errors are worth another attempt).
func WithBackoff(ctx context.Context, maxAttempts int, backoff time.Duration, retryable func(error) bool, fn func(attempt int) error) error {
	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		err = fn(attempt)
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return err
		}
		if attempt < maxAttempts-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}
	}
	return err
}
