package proxy

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/universal-claude-router/ucr/internal/canon"
	"github.com/universal-claude-router/ucr/internal/idgen"
)

const requestIDHeader = "X-Request-Id"
const requestIDKey = "requestID"

// requestIDMiddleware assigns a ulid-based request id, reusing one the
// caller already supplied in the X-Request-Id header if present, per the
// common reverse-proxy convention of honoring an upstream-assigned id.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = idgen.New()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func requestID(c *gin.Context) string {
	if v, ok := c.Get(requestIDKey); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// loggingMiddleware emits one structured zap call per request, carrying
// the request id, method, path, status, and latency as fields so a log
// aggregator can query on them instead of parsing a formatted string.
func loggingMiddleware(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)

		fields := []zap.Field{
			zap.String("requestId", requestID(c)),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("error", c.Errors.String()))
			log.Error("request completed with error", fields...)
			return
		}
		log.Info("request completed", fields...)
	}
}

// recoveryMiddleware mirrors gin.Recovery() but logs through zap with the
// request id attached, and maps the panic into a 500 JSON body instead of
// gin's default plaintext response.
func recoveryMiddleware(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Error("panic recovered", zap.String("requestId", requestID(c)), zap.Any("panic", rec))
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			}
		}()
		c.Next()
	}
}

// writeError maps a canon error (typed via HTTPStatus()) or any other
// error into a JSON error body with a matching status code.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	if he, ok := err.(canon.HTTPError); ok {
		status = he.HTTPStatus()
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}
