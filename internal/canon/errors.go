package canon

import (
	"fmt"
	"net/http"
)

// HTTPError is implemented by every error in the taxonomy so the proxy's
// error-mapping middleware can translate any returned error into a status
// code without a type switch over every concrete type. Each error knows
// its own HTTP status since the proxy is the one terminating the request.
type HTTPError interface {
	error
	HTTPStatus() int
}

// RequestInvalidError means the inbound canonical request failed
// validation before any provider was contacted.
type RequestInvalidError struct {
	Reason string
}

func (e *RequestInvalidError) Error() string {
	return fmt.Sprintf("invalid request: %s", e.Reason)
}

func (e *RequestInvalidError) HTTPStatus() int { return http.StatusBadRequest }

// NoProviderAvailableError means the router has no configuration snapshot
// or the snapshot has no enabled provider; credentials are not checked.
type NoProviderAvailableError struct {
	TaskType TaskType
}

func (e *NoProviderAvailableError) Error() string {
	return fmt.Sprintf("no provider available for task type %q", e.TaskType)
}

func (e *NoProviderAvailableError) HTTPStatus() int { return http.StatusServiceUnavailable }

// TransformerError means translating between the canonical dialect and a
// provider's wire format failed, independent of any network call.
type TransformerError struct {
	Provider string
	Reason   string
}

func (e *TransformerError) Error() string {
	return fmt.Sprintf("transformer %s: %s", e.Provider, e.Reason)
}

func (e *TransformerError) HTTPStatus() int { return http.StatusBadGateway }

// UpstreamError wraps a non-2xx response an upstream provider returned
// after the transformer successfully sent the request.
type UpstreamError struct {
	Provider   string
	StatusCode int
	Body       string // truncated to 200 bytes
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream %s returned %d: %s", e.Provider, e.StatusCode, e.Body)
}

// HTTPStatus surfaces a 4xx from upstream verbatim (it reflects something
// about the request itself) but normalizes any 5xx, and anything
// unclassified, to 502: a client should see "the gateway failed to get a
// good response", not the specific flavor of upstream failure.
func (e *UpstreamError) HTTPStatus() int {
	if e.StatusCode >= 500 {
		return http.StatusBadGateway
	}
	if e.StatusCode >= 400 {
		return e.StatusCode
	}
	return http.StatusBadGateway
}

// UpstreamInvalidBodyError means the upstream returned a 2xx response this
// transformer could not parse.
type UpstreamInvalidBodyError struct {
	Provider string
	Reason   string
}

func (e *UpstreamInvalidBodyError) Error() string {
	return fmt.Sprintf("upstream %s returned an unparseable body: %s", e.Provider, e.Reason)
}

func (e *UpstreamInvalidBodyError) HTTPStatus() int { return http.StatusBadGateway }

// UpstreamTimeoutError means the per-request context deadline elapsed
// while waiting on the upstream.
type UpstreamTimeoutError struct {
	Provider string
}

func (e *UpstreamTimeoutError) Error() string {
	return fmt.Sprintf("upstream %s timed out", e.Provider)
}

func (e *UpstreamTimeoutError) HTTPStatus() int { return http.StatusGatewayTimeout }

// CircuitOpenError means the httpclient circuit breaker for this provider
// is open and the call was rejected without attempting the network.
type CircuitOpenError struct {
	Provider string
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit open for provider %s", e.Provider)
}

func (e *CircuitOpenError) HTTPStatus() int { return http.StatusServiceUnavailable }

// CredentialMissingError means the credential store holds no credential
// for the provider.
type CredentialMissingError struct {
	Provider string
}

func (e *CredentialMissingError) Error() string {
	return fmt.Sprintf("no credential for provider %s", e.Provider)
}

func (e *CredentialMissingError) HTTPStatus() int { return http.StatusUnauthorized }

// ConfigInvalidError means the configuration failed schema validation,
// either at startup or during a hot-reload (in which case the prior valid
// config is kept and this error is only logged).
type ConfigInvalidError struct {
	Reason string
}

func (e *ConfigInvalidError) Error() string {
	return fmt.Sprintf("invalid config: %s", e.Reason)
}

func (e *ConfigInvalidError) HTTPStatus() int { return http.StatusInternalServerError }
