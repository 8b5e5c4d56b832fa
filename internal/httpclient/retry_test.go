package httpclient

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/universal-claude-router/ucr/internal/canon"
)

func TestWithRetrySucceedsAfterTransientFailures(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 3, InitialInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond, Multiplier: 2}
	attempts := 0
	result, err := WithRetry(context.Background(), cfg, func(ctx context.Context) (string, error) {
		attempts++
		if attempts < 3 {
			return "", &canon.UpstreamError{Provider: "p", StatusCode: 503}
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 3, attempts)
}

func TestWithRetryStopsOnNonRetryable(t *testing.T) {
	cfg := DefaultRetryConfig()
	attempts := 0
	_, err := WithRetry(context.Background(), cfg, func(ctx context.Context) (string, error) {
		attempts++
		return "", &canon.CredentialMissingError{Provider: "p"}
	})
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestWithRetryRespectsContextCancellation(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 5, InitialInterval: 50 * time.Millisecond, MaxInterval: time.Second, Multiplier: 2}
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()
	_, err := WithRetry(ctx, cfg, func(ctx context.Context) (string, error) {
		attempts++
		return "", &canon.UpstreamTimeoutError{Provider: "p"}
	})
	require.Error(t, err)
}
