package engine

import (
	"context"
	"time"

	"github.com/pinggolf/inventory-engine/internal/inventory"
	"github.com/pinggolf/inventory-engine/internal/retry"
)

// retryOnConcurrent bounds the sequence-number race every Dispatch/
// Return/Scrap create can hit under serializable isolation (§5, §9): two
// callers compute the same next number, one wins, the other retries with
// a fresh read of max(...).
func retryOnConcurrent(ctx context.Context, limiter *retry.Limiter, key string, maxAttempts int, fn func() error) error {
	return retry.WithBackoff(ctx, maxAttempts, 15*time.Millisecond,
		func(err error) bool { return inventory.Retryable(err) },
		func(attempt int) error {
			if attempt > 0 {
				if err := limiter.Wait(ctx, key); err != nil {
					return err
				}
			}
			return fn()
		})
}
