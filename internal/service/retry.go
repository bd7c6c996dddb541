package service

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// DefaultConflictRetries is used when the configured attempt count is not positive.
const DefaultConflictRetries = 3

// RetryOnConflict runs fn again while it fails with a concurrency conflict,
// doubling the delay between attempts. Any other error is returned at once.
func RetryOnConflict(ctx context.Context, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts <= 0 {
		attempts = DefaultConflictRetries
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = baseDelay
	exp.Multiplier = 2
	exp.RandomizationFactor = 0
	exp.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(exp, uint64(attempts-1)), ctx)
	err := backoff.Retry(func() error {
		err := fn()
		if err != nil && !errors.Is(err, ErrConcurrencyConflict) {
			return backoff.Permanent(err)
		}
		return err
	}, policy)
	if err != nil && ctx.Err() != nil && !errors.Is(err, ErrConcurrencyConflict) {
		return translateDBError("request", err)
	}
	return err
}
