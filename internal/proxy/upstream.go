package proxy

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-resty/resty/v2"

	"github.com/universal-claude-router/ucr/internal/canon"
	"github.com/universal-claude-router/ucr/internal/transform"
)

const defaultProviderTimeout = 30 * time.Second

// sendBuffered translates the request, calls upstream (buffered, with the
// client's retry policy), and translates the response back into the canonical dialect.
func (s *Server) sendBuffered(c *gin.Context, req *canon.CanonicalRequest, route *canon.RouteResult, tr transform.Transformer) (*canon.CanonicalResponse, error) {
	out, err := tr.Request(req, route.Provider)
	if err != nil {
		return nil, err
	}

	timeout := route.Provider.Timeout
	if timeout <= 0 {
		timeout = defaultProviderTimeout
	}

	resp, err := s.client.Do(c.Request.Context(), route.Provider.ID, timeout, func(ctx context.Context) (*resty.Response, error) {
		r := s.client.NewRequest(ctx).
			SetHeaders(out.Headers).
			SetBody(out.Body)
		return r.Execute(out.Method, out.URL)
	})
	if err != nil {
		return nil, err
	}

	canonical, err := tr.Response(resp.Body(), req)
	if err != nil {
		return nil, &canon.UpstreamInvalidBodyError{Provider: route.Provider.ID, Reason: err.Error()}
	}
	return canonical, nil
}
