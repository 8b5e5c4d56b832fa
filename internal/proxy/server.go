// Package proxy is the HTTP surface that accepts a canonical request,
// routes it, translates it through a Transformer, calls upstream via
// internal/httpclient, and reshapes the result back to the canonical
// dialect — buffered or streamed. Built on gin-gonic/gin plus
// gin-contrib/cors, with gin.New(), the package's own request-id, logging
// and recovery middleware, cors.New(), and graceful shutdown via
// http.Server.Shutdown.
package proxy

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/universal-claude-router/ucr/internal/cache"
	"github.com/universal-claude-router/ucr/internal/config"
	"github.com/universal-claude-router/ucr/internal/httpclient"
	"github.com/universal-claude-router/ucr/internal/metrics"
	"github.com/universal-claude-router/ucr/internal/router"
	"github.com/universal-claude-router/ucr/internal/transform"
)

const (
	shutdownDrainTimeout = 30 * time.Second
	readHeaderTimeout    = 10 * time.Second
)

// Server owns the gin engine and every dependency a request handler
// touches. One Server is built in cmd/serve.go's composition root.
type Server struct {
	engine *gin.Engine
	http   *http.Server
	log    *zap.Logger

	cfgManager *config.Manager
	router     *router.Router
	registry   *transform.Registry
	client     *httpclient.Client
	responses  *cache.ResponseCache
	layered    *cache.LayeredCache
	metrics    *metrics.Registry

	version   string
	startedAt time.Time
}

// Option configures optional Server behavior.
type Option func(*Server)

// New builds a Server and wires its routes. It does not start listening;
// call Run for that.
func New(
	log *zap.Logger,
	cfgManager *config.Manager,
	rtr *router.Router,
	registry *transform.Registry,
	client *httpclient.Client,
	responses *cache.ResponseCache,
	layered *cache.LayeredCache,
	metricsRegistry *metrics.Registry,
	version string,
) *Server {
	if cfgManager.Current() != nil && !cfgManager.Current().Server.CORS {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		log:        log,
		cfgManager: cfgManager,
		router:     rtr,
		registry:   registry,
		client:     client,
		responses:  responses,
		layered:    layered,
		metrics:    metricsRegistry,
		version:    version,
		startedAt:  time.Now(),
	}

	engine := gin.New()
	engine.Use(requestIDMiddleware(), loggingMiddleware(log), recoveryMiddleware(log))

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowAllOrigins = true
	corsCfg.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	corsCfg.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-Id"}
	engine.Use(cors.New(corsCfg))

	s.registerRoutes(engine)
	s.engine = engine
	return s
}

func (s *Server) registerRoutes(e *gin.Engine) {
	e.POST("/v1/messages", s.handleMessages)
	e.GET("/health", s.handleHealth)
	e.GET("/metrics", s.handleMetrics)
	e.GET("/debug/metrics", s.handleDebugMetrics)
	e.GET("/v1/providers", s.handleProviders)
	e.GET("/v1/config", s.handleConfigSummary)
	e.DELETE("/cache", s.handleCacheFlush)
	e.GET("/cache/stats", s.handleCacheStats)
}

// Run starts the HTTP listener and blocks until ctx is cancelled, then
// drains in-flight requests for up to shutdownDrainTimeout before
// returning. The caller in cmd/serve.go derives ctx from
// os/signal.NotifyContext so SIGINT/SIGTERM trigger the same graceful
// shutdown path.
func (s *Server) Run(ctx context.Context, addr string) error {
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("proxy listening", zap.String("addr", addr))
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info("proxy shutting down, draining in-flight requests")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownDrainTimeout)
	defer cancel()
	return s.http.Shutdown(shutdownCtx)
}
