package proxy

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/universal-claude-router/ucr/internal/canon"
	"github.com/universal-claude-router/ucr/internal/transform"
)

// streamMessage opens an upstream streaming request, responds 200 with
// SSE headers immediately, then relays each translated chunk to the
// client until upstream EOF or client disconnect. Streaming requests are
// never probed against or stored in the response cache, since a partial
// stream has no single response worth caching.
func (s *Server) streamMessage(c *gin.Context, req *canon.CanonicalRequest, route *canon.RouteResult, tr transform.Transformer) {
	out, err := tr.Request(req, route.Provider)
	if err != nil {
		s.metrics.RecordError()
		writeError(c, err)
		return
	}

	resp, err := s.client.DoStream(c.Request.Context(), route.Provider.ID, func(ctx context.Context) (*resty.Response, error) {
		r := s.client.NewRequest(ctx).
			SetHeaders(out.Headers).
			SetBody(out.Body).
			SetDoNotParseResponse(true)
		return r.Execute(out.Method, out.URL)
	})
	if err != nil {
		s.metrics.RecordError()
		writeError(c, err)
		return
	}
	rawBody := resp.RawBody()
	defer rawBody.Close()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	scanner := transform.NewSSEScanner(rawBody)
	ctx := c.Request.Context()

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			// Client disconnected or the inbound request was cancelled;
			// DoStream's context is the same one, so the upstream read
			// this scanner is driven by unblocks on its own once the
			// connection is torn down.
			return
		default:
		}

		line := scanner.Bytes()
		event, err := tr.StreamChunk(line)
		if err != nil {
			s.log.Warn("stream chunk translation failed", zap.String("provider", route.Provider.ID), zap.Error(err))
			continue
		}
		if event == nil {
			continue
		}

		payload, err := json.Marshal(event)
		if err != nil {
			continue
		}
		if _, err := c.Writer.Write([]byte("data: ")); err != nil {
			return
		}
		if _, err := c.Writer.Write(payload); err != nil {
			return
		}
		if _, err := c.Writer.Write([]byte("\n\n")); err != nil {
			return
		}
		c.Writer.Flush()
	}
}
