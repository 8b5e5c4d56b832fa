package proxy

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/universal-claude-router/ucr/internal/cache"
	"github.com/universal-claude-router/ucr/internal/canon"
)

// dummyAuthHeader stands in for the inbound Authorization header when the
// client sends none: the proxy never forwards the client's own header
// upstream (it authenticates to each provider with that provider's own
// credential), but some downstream framework code expects the header to
// be present, so an absent one is synthesized rather than left unset.
const dummyAuthHeader = "Bearer ucr-internal"

// handleMessages is the full request pipeline for POST /v1/messages:
// decode, route, transform, call upstream (buffered or streamed), and
// translate the response or error back into the canonical dialect.
func (s *Server) handleMessages(c *gin.Context) {
	// Step 2: inbound Authorization is accepted but never forwarded; the
	// proxy authenticates upstream itself via each provider's own
	// credential. A synthesized value is set when absent so any downstream
	// middleware that expects the header present never rejects the call.
	if c.GetHeader("Authorization") == "" {
		c.Request.Header.Set("Authorization", dummyAuthHeader)
	}

	var req canon.CanonicalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, &canon.RequestInvalidError{Reason: err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		writeError(c, err)
		return
	}

	s.metrics.RecordRequest(req.Stream)
	start := time.Now()
	defer func() { s.metrics.RecordLatency(time.Since(start)) }()

	var fingerprint string
	if !req.Stream {
		fingerprint = cache.Fingerprint(&req)
		if cached, ok := s.responses.Get(fingerprint); ok {
			s.metrics.RecordCacheHit()
			c.JSON(http.StatusOK, cached.Response)
			return
		}
		s.metrics.RecordCacheMiss()
	}

	route, err := s.router.Route(c.Request.Context(), &req)
	if err != nil {
		s.metrics.RecordError()
		writeError(c, err)
		return
	}

	tr, err := s.registry.Get(route.Provider.TransformerName)
	if err != nil {
		s.metrics.RecordError()
		writeError(c, &canon.TransformerError{Provider: route.Provider.ID, Reason: err.Error()})
		return
	}

	req.Model = route.Model

	if req.Stream && tr.SupportsStreaming() {
		s.streamMessage(c, &req, route, tr)
		return
	}

	resp, err := s.sendBuffered(c, &req, route, tr)
	if err != nil {
		s.metrics.RecordError()
		writeError(c, err)
		return
	}

	if fingerprint != "" {
		s.responses.Set(fingerprint, canon.CachedResponse{
			Response:  *resp,
			Size:      len(resp.Text()),
			InsertedAt: time.Now(),
		})
	}
	c.JSON(http.StatusOK, resp)
}

// handleHealth implements GET /health.
func (s *Server) handleHealth(c *gin.Context) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.startedAt).Seconds(),
		"memory": gin.H{
			"allocBytes":    mem.Alloc,
			"heapAllocBytes": mem.HeapAlloc,
			"heapSysBytes":  mem.HeapSys,
		},
	})
}

// handleMetrics implements GET /metrics.
func (s *Server) handleMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, s.metrics.Snapshot())
}

// handleDebugMetrics implements GET /debug/metrics: performance, memory,
// and cache statistics for operators debugging a live instance.
func (s *Server) handleDebugMetrics(c *gin.Context) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	c.JSON(http.StatusOK, gin.H{
		"performance": s.metrics.Snapshot().Performance,
		"memory": gin.H{
			"allocBytes":   mem.Alloc,
			"heapAllocBytes": mem.HeapAlloc,
			"heapSysBytes": mem.HeapSys,
			"numGoroutine": runtime.NumGoroutine(),
		},
		"cache": gin.H{
			"response": s.responses.Stats(),
			"layered":  s.layered.Stats(),
		},
	})
}

// handleProviders implements GET /v1/providers.
func (s *Server) handleProviders(c *gin.Context) {
	cfg := s.cfgManager.Current()
	if cfg == nil {
		c.JSON(http.StatusOK, gin.H{"providers": []gin.H{}})
		return
	}
	out := make([]gin.H, 0, len(cfg.Providers))
	for _, p := range cfg.Providers {
		out = append(out, gin.H{
			"id":      p.ID,
			"name":    p.Name,
			"enabled": p.Enabled,
			"models":  p.Models,
		})
	}
	c.JSON(http.StatusOK, gin.H{"providers": out})
}

// handleConfigSummary implements GET /v1/config: a summary that never
// leaks secrets (no apiKey/accessToken fields are surfaced).
func (s *Server) handleConfigSummary(c *gin.Context) {
	cfg := s.cfgManager.Current()
	if cfg == nil {
		c.JSON(http.StatusOK, gin.H{})
		return
	}
	providerSummaries := make([]gin.H, 0, len(cfg.Providers))
	for _, p := range cfg.Providers {
		providerSummaries = append(providerSummaries, gin.H{
			"id":       p.ID,
			"name":     p.Name,
			"enabled":  p.Enabled,
			"priority": p.Priority,
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"version":   cfg.Version,
		"server":    gin.H{"host": cfg.Server.Host, "port": cfg.Server.Port, "cors": cfg.Server.CORS},
		"providers": providerSummaries,
		"router": gin.H{
			"default":        cfg.Router.Default,
			"tokenThreshold": cfg.Router.TokenThreshold,
		},
		"features": cfg.Features,
	})
}

// handleCacheFlush implements DELETE /cache.
func (s *Server) handleCacheFlush(c *gin.Context) {
	s.responses.Flush()
	s.layered.Flush()
	c.JSON(http.StatusOK, gin.H{"flushed": true})
}

// handleCacheStats implements GET /cache/stats.
func (s *Server) handleCacheStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"response": s.responses.Stats(),
		"layered":  s.layered.Stats(),
	})
}
