package scraper

import (
	"context"
	"crypto/rand"
	"errors"
	"math"
	"math/big"
	"net/http"
	"time"

	domerrors "github.com/openct/openct-cms/internal/errors"
)

// permanentError marks an error that must not be retried.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so RetryWithBackoff returns it immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsRetryable reports whether err is a transient transport failure:
// a network error or a 429/5xx page status. Authentication failures and
// permanent errors are never retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var permErr *permanentError
	if errors.As(err, &permErr) || domerrors.IsAuthentication(err) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var te *domerrors.TransportError
	if !errors.As(err, &te) {
		return false
	}
	return te.StatusCode == 0 || te.StatusCode == http.StatusTooManyRequests || te.StatusCode >= 500
}

// RetryWithBackoff retries a function with exponential backoff and jitter.
// Stops retrying immediately if the error was wrapped with Permanent.
// The engine itself never retries; this is for callers that opt in.
//
// maxRetries: maximum number of retry attempts (0 = no retry, just try once)
// initialDelay: initial delay before first retry (e.g., 2s)
//
// Backoff formula: delay = initialDelay * 2^attempt ± 25% jitter
// Example with initialDelay=2s, maxRetries=3:
//
//	attempt 0: immediate (first try)
//	attempt 1: ~2s  (1.5s - 2.5s)
//	attempt 2: ~4s  (3s - 5s)
//	attempt 3: ~8s  (6s - 10s)
func RetryWithBackoff(ctx context.Context, maxRetries int, initialDelay time.Duration, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		var permErr *permanentError
		if errors.As(err, &permErr) {
			return permErr.Unwrap()
		}

		// Don't delay after the last attempt
		if attempt == maxRetries {
			break
		}

		delay := time.Duration(float64(initialDelay) * math.Pow(2, float64(attempt)))

		// Add jitter (±25%)
		halfDelay := int64(delay) / 2
		if halfDelay == 0 {
			halfDelay = 1
		}
		jitterBig, err := rand.Int(rand.Reader, big.NewInt(halfDelay))
		if err != nil {
			jitterBig = big.NewInt(0)
		}
		delay = delay - delay/4 + time.Duration(jitterBig.Int64())

		if err := Sleep(ctx, delay); err != nil {
			return err
		}
	}

	return lastErr
}

// Sleep waits for the specified duration, respecting context cancellation
func Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RetryTransient is RetryWithBackoff that only retries errors for which
// IsRetryable is true; any other error ends the loop at once.
func RetryTransient(ctx context.Context, maxRetries int, initialDelay time.Duration, fn func() error) error {
	return RetryWithBackoff(ctx, maxRetries, initialDelay, func() error {
		err := fn()
		if err != nil && !IsRetryable(err) {
			return Permanent(err)
		}
		return err
	})
}
