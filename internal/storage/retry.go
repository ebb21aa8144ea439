package storage

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"fjacquet/receiptvault/internal/logging"
	"fjacquet/receiptvault/internal/storageerror"
)

// RetryPolicy retries transient backend failures with exponential backoff
// and jitter. Only RetryableError (HTTP 429/5xx, timeouts) is retried;
// everything else fails immediately.
type RetryPolicy struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryPolicy matches the shipped configuration defaults.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:     5,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     30 * time.Second,
	}
}

// Do runs fn, retrying on retryable errors up to MaxRetries additional
// attempts. A context deadline hit inside fn counts as one consumed attempt;
// cancellation of ctx itself stops the loop.
func (p RetryPolicy) Do(ctx context.Context, logger logging.Logger, op string, fn func() error) error {
	attempt := 0

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialBackoff
	b.MaxInterval = p.MaxBackoff
	b.MaxElapsedTime = 0 // bounded by MaxRetries, not wall clock

	wrapped := func() error {
		attempt++
		err := fn()
		if err == nil {
			return nil
		}
		if isTransient(err) {
			logger.Warn("retryable storage failure",
				logging.F(logging.FieldOperation, op),
				logging.F(logging.FieldAttempt, attempt),
				logging.F("error", err.Error()))
			return err
		}
		return backoff.Permanent(err)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(p.MaxRetries)), ctx)
	return backoff.Retry(wrapped, policy)
}

// isTransient treats classified retryable errors and deadline expiry the
// same way: worth another attempt.
func isTransient(err error) bool {
	return storageerror.IsRetryable(err) || errors.Is(err, context.DeadlineExceeded)
}
