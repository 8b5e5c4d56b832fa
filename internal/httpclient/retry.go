package httpclient

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/universal-claude-router/ucr/internal/canon"
)

// RetryConfig controls WithRetry's exponential-backoff-with-jitter
// schedule.
type RetryConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
}

// DefaultRetryConfig returns the default schedule: 3 retries, 1s initial
// backoff, 30s cap, doubling each attempt.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      3,
		InitialInterval: time.Second,
		MaxInterval:     30 * time.Second,
		Multiplier:      2,
	}
}

// retryable reports whether an error is worth retrying: circuit-open and
// credential-missing errors never are (retrying won't change the outcome),
// an UpstreamError is retryable only for 429 and 5xx, an
// UpstreamTimeoutError always is, and anything else unrecognized falls
// through to "retry" since it is most likely a transient network failure.
func retryable(err error) bool {
	var circuitOpen *canon.CircuitOpenError
	if errors.As(err, &circuitOpen) {
		return false
	}
	var credMissing *canon.CredentialMissingError
	if errors.As(err, &credMissing) {
		return false
	}
	var invalidBody *canon.UpstreamInvalidBodyError
	if errors.As(err, &invalidBody) {
		return false
	}
	var timeout *canon.UpstreamTimeoutError
	if errors.As(err, &timeout) {
		return true
	}
	var upstream *canon.UpstreamError
	if errors.As(err, &upstream) {
		return upstream.StatusCode == 429 || upstream.StatusCode >= 500
	}
	return true
}

// WithRetry runs fn up to cfg.MaxRetries+1 times, backing off exponentially
// between attempts (each wait is half the current interval plus a random
// extra of up to another half, capped at cfg.MaxInterval), and returns the first success or the
// last error if every attempt is exhausted. It respects ctx cancellation
// between attempts.
func WithRetry[T any](ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error
	interval := cfg.InitialInterval

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			jitter := time.Duration(rand.Int63n(int64(interval)/2 + 1))
			wait := interval/2 + jitter
			if wait > cfg.MaxInterval {
				wait = cfg.MaxInterval
			}
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(wait):
			}
			interval = time.Duration(float64(interval) * cfg.Multiplier)
			if interval > cfg.MaxInterval {
				interval = cfg.MaxInterval
			}
		}

		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !retryable(err) {
			return zero, err
		}
	}
	return zero, lastErr
}
