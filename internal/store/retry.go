package store

import (
	"context"
	"errors"
	"time"

	"github.com/dexlab-io/matchbook/internal/domain"
)

// WithRetry runs fn up to attempts times, sleeping backoff between tries.
// Used for snapshot, order and trade writes so a transient sqlite busy
// error does not lose a book mutation. Permanent errors (constraint
// violations, domain sentinels) surface immediately. Returns the last
// error when all attempts fail, or the context error when cancelled
// while waiting.
func WithRetry(ctx context.Context, attempts int, backoff time.Duration, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if !retryable(err) || i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return err
}

// retryable reports whether another attempt could succeed. A unique
// violation or a domain sentinel reflects state, not a transient fault.
func retryable(err error) bool {
	switch {
	case isUniqueViolation(err),
		errors.Is(err, domain.ErrOrderNotFound),
		errors.Is(err, domain.ErrTradeNotFound),
		errors.Is(err, domain.ErrPairNotFound),
		errors.Is(err, domain.ErrDuplicatePair),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return false
	}
	return true
}
