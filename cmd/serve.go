/*
Copyright © 2023 sanix-darker <s4nixd@gmail.com>
*/

package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/universal-claude-router/ucr/internal/cache"
	"github.com/universal-claude-router/ucr/internal/config"
	"github.com/universal-claude-router/ucr/internal/credential"
	"github.com/universal-claude-router/ucr/internal/health"
	"github.com/universal-claude-router/ucr/internal/httpclient"
	"github.com/universal-claude-router/ucr/internal/logging"
	"github.com/universal-claude-router/ucr/internal/metrics"
	"github.com/universal-claude-router/ucr/internal/proxy"
	"github.com/universal-claude-router/ucr/internal/router"
	"github.com/universal-claude-router/ucr/internal/transform"
)

const appVersion = "dev"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the proxy's HTTP server.",
	Long:  `Load the configuration, wire every component, and serve /v1/messages until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// runServe is the composition root: it opens the credential store, loads
// and watches the configuration, builds the shared HTTP client, transform
// registry, router, caches and metrics registry, and runs the HTTP server
// until interrupted.
func runServe(parentCtx context.Context) error {
	ctx, stop := signal.NotifyContext(parentCtx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	credStorePath, err := credential.DefaultPath()
	if err != nil {
		return fmt.Errorf("resolve credential store path: %w", err)
	}
	store, err := credential.Open(credStorePath)
	if err != nil {
		return fmt.Errorf("open credential store: %w", err)
	}

	configPath := cfgFile
	if configPath == "" {
		configPath = filepath.Join(filepath.Dir(credStorePath), "config.json")
	}

	cfgManager, err := config.New(configPath, store, logging.Nop())
	if err != nil {
		return fmt.Errorf("build config manager: %w", err)
	}
	if err := cfgManager.Load(); err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	stopWatch := cfgManager.Watch()
	defer stopWatch()

	cfg := cfgManager.Current()
	log, err := logging.New(cfg.Logging.Level, cfg.Logging.File, cfg.Logging.Pretty)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer log.Sync() //nolint:errcheck

	if cfg.Features.HealthChecks {
		probeProviders(ctx, log, cfg.Providers)
	}

	client := httpclient.New(log)

	registry := transform.NewRegistry()
	transform.RegisterDefaults(registry)

	rtr := router.New(log, cfgManager.Subscribe())

	responses := cache.NewResponseCache(cache.DefaultResponseCacheCapacity, cache.DefaultResponseCacheMaxBytes, cache.DefaultResponseCacheTTL)
	layered := cache.NewLayeredCache()
	watchdog := cache.NewWatchdog(log, layered, responses)
	go watchdog.Start()
	defer watchdog.Stop()

	metricsRegistry := metrics.New()

	server := proxy.New(log, cfgManager, rtr, registry, client, responses, layered, metricsRegistry, appVersion)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Info("starting ucr", zap.String("addr", addr))
	return server.Run(ctx, addr)
}

// probeProviders fans out a reachability check to every configured
// provider and logs the outcome; an unreachable provider is never fatal
// to startup since the router degrades to whichever providers remain
// enabled and reachable.
func probeProviders(ctx context.Context, log *zap.Logger, providers []config.ProviderConfig) {
	results := health.ProbeAll(ctx, providers)
	for _, r := range results {
		if r.Reachable {
			log.Info("provider reachable", zap.String("provider", r.ProviderID))
			continue
		}
		log.Warn("provider unreachable at startup", zap.String("provider", r.ProviderID), zap.Error(r.Err))
	}
}
