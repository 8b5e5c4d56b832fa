// Package httpclient provides the single pooled HTTP client every
// transformer adapter uses to call an upstream provider, wrapping it with
// a generic exponential-backoff-with-jitter retry helper and an added
// per-provider circuit breaker.
package httpclient

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/universal-claude-router/ucr/internal/canon"
)

const (
	maxIdleConnsPerHost = 100
	idleConnTimeout     = 60 * time.Second
	defaultTimeout      = 30 * time.Second
	errorBodyTruncate   = 200
)

// Client is the shared upstream HTTP client. One Client is built in
// cmd/serve.go and passed to every transformer adapter; adapters never
// construct their own *resty.Client, since they all share the same
// connection-pooling and retry policy regardless of which provider
// they're calling.
type Client struct {
	rc  *resty.Client
	log *zap.Logger

	mu       sync.Mutex
	breakers map[string]*CircuitBreaker
	retryCfg RetryConfig
}

// New builds a Client with a pooled transport sized generously for a
// multi-provider proxy (at least 100 idle connections, ~10 in-flight
// requests per connection, a 30s default per-request timeout, 60s idle
// keep-alive).
func New(log *zap.Logger) *Client {
	transport := &http.Transport{
		MaxIdleConns:        maxIdleConnsPerHost * 4,
		MaxIdleConnsPerHost: maxIdleConnsPerHost,
		MaxConnsPerHost:     maxIdleConnsPerHost * 10,
		IdleConnTimeout:     idleConnTimeout,
	}
	rc := resty.New().
		SetTransport(transport).
		SetTimeout(defaultTimeout)

	return &Client{
		rc:       rc,
		log:      log,
		breakers: make(map[string]*CircuitBreaker),
		retryCfg: DefaultRetryConfig(),
	}
}

func (c *Client) breakerFor(providerID string) *CircuitBreaker {
	c.mu.Lock()
	defer c.mu.Unlock()
	cb, ok := c.breakers[providerID]
	if !ok {
		cb = NewCircuitBreaker()
		c.breakers[providerID] = cb
	}
	return cb
}

// NewRequest returns a *resty.Request scoped to ctx, ready for a
// transformer adapter to set headers/body on. The per-call deadline is
// applied by Do, not here, so the request is never bound to a context
// whose cancel func goes uncalled.
func (c *Client) NewRequest(ctx context.Context) *resty.Request {
	return c.rc.R().SetContext(ctx)
}

// Do executes fn (the actual resty call) behind the named provider's
// circuit breaker, the given timeout, and the shared retry policy. fn
// should perform exactly one HTTP call and return a classified error (a
// *canon.UpstreamError, *canon.UpstreamTimeoutError, etc) on failure so
// retryable() can decide whether to try again.
func (c *Client) Do(ctx context.Context, providerID string, timeout time.Duration, fn func(ctx context.Context) (*resty.Response, error)) (*resty.Response, error) {
	cb := c.breakerFor(providerID)
	if !cb.Allow() {
		return nil, &canon.CircuitOpenError{Provider: providerID}
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	resp, err := WithRetry(ctx, c.retryCfg, func(attemptCtx context.Context) (*resty.Response, error) {
		callCtx, cancel := context.WithTimeout(attemptCtx, timeout)
		defer cancel()

		r, err := fn(callCtx)
		if err != nil {
			return nil, classifyTransportError(providerID, err)
		}
		if r.IsError() {
			return nil, &canon.UpstreamError{
				Provider:   providerID,
				StatusCode: r.StatusCode(),
				Body:       truncate(r.String(), errorBodyTruncate),
			}
		}
		return r, nil
	})

	if err != nil {
		cb.RecordFailure()
		return nil, err
	}
	cb.RecordSuccess()
	return resp, nil
}

// classifyTransportError maps a low-level transport failure (DNS, TCP
// reset, context deadline) into the canon taxonomy, operating on the
// transport error rather than a non-2xx status.
func classifyTransportError(providerID string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &canon.UpstreamTimeoutError{Provider: providerID}
	}
	return &canon.UpstreamError{Provider: providerID, StatusCode: 0, Body: truncate(err.Error(), errorBodyTruncate)}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// DoStream executes fn once, with no retry (a partially-delivered stream
// must never be replayed) behind the named provider's circuit breaker. fn
// is expected to call SetDoNotParseResponse(true) so the returned
// response's RawBody() can be read line by line by the caller; the
// response is never buffered here. The context governs the whole call,
// including the body read, so client disconnect or shutdown cancels the
// upstream connection. No per-call timeout is applied here: the call is
// bounded only by ctx, which for the proxy's streaming path is the
// inbound request's own context.
func (c *Client) DoStream(ctx context.Context, providerID string, fn func(ctx context.Context) (*resty.Response, error)) (*resty.Response, error) {
	cb := c.breakerFor(providerID)
	if !cb.Allow() {
		return nil, &canon.CircuitOpenError{Provider: providerID}
	}

	resp, err := fn(ctx)
	if err != nil {
		cb.RecordFailure()
		return nil, classifyTransportError(providerID, err)
	}
	if resp.IsError() {
		cb.RecordFailure()
		body := truncate(resp.String(), errorBodyTruncate)
		return nil, &canon.UpstreamError{Provider: providerID, StatusCode: resp.StatusCode(), Body: body}
	}
	cb.RecordSuccess()
	return resp, nil
}

// BreakerState exposes a provider's breaker state for /debug/metrics.
func (c *Client) BreakerState(providerID string) string {
	return c.breakerFor(providerID).State()
}
