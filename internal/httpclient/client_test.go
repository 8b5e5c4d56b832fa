package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/universal-claude-router/ucr/internal/canon"
)

func TestClientDoSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := New(zap.NewNop())
	_, err := c.Do(context.Background(), "test-provider", time.Second, func(ctx context.Context) (*resty.Response, error) {
		return c.NewRequest(ctx).Get(srv.URL)
	})
	require.NoError(t, err)
	assert.Equal(t, "closed", c.BreakerState("test-provider"))
}

func TestClientDoUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	}))
	defer srv.Close()

	c := New(zap.NewNop())
	c.retryCfg = RetryConfig{MaxRetries: 0, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond, Multiplier: 1}

	_, err := c.Do(context.Background(), "test-provider", time.Second, func(ctx context.Context) (*resty.Response, error) {
		return c.NewRequest(ctx).Get(srv.URL)
	})
	require.Error(t, err)
	var upstream *canon.UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, 500, upstream.StatusCode)
}
