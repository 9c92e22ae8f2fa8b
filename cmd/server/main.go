package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/tianqi-tools/weather-mcp/internal/auth"
	"github.com/tianqi-tools/weather-mcp/internal/cache"
	"github.com/tianqi-tools/weather-mcp/internal/client"
	"github.com/tianqi-tools/weather-mcp/internal/config"
	"github.com/tianqi-tools/weather-mcp/internal/geo"
	sidecar "github.com/tianqi-tools/weather-mcp/internal/http"
	"github.com/tianqi-tools/weather-mcp/internal/mcptool"
	"github.com/tianqi-tools/weather-mcp/internal/observability"
	"github.com/tianqi-tools/weather-mcp/internal/service"
)

const serverVersion = "1.0.0"

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	var creds auth.TokenSource
	if cfg.SigningMode {
		manager, err := auth.NewJWTManager(cfg.ProjectID, cfg.KeyID, cfg.PrivateKeyPEM)
		if err != nil {
			logger.Fatal("jwt credential", zap.Error(err))
		}
		creds = manager
		logger.Info("credential mode: jwt", zap.String("key_id", cfg.KeyID))
	} else {
		creds = auth.StaticKey(cfg.APIKey)
		logger.Info("credential mode: api key")
	}

	gateway := client.New(cfg.APIHost, creds, cfg.APITimeout)

	var locationCache cache.Cache
	var memcacheCloser *cache.MemcachedCache
	switch cfg.CacheBackend {
	case "memcached":
		mc, err := cache.NewMemcachedCache(cfg.MemcachedAddrs, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns)
		if err != nil {
			logger.Fatal("memcached cache", zap.Error(err))
		}
		memcacheCloser = mc
		locationCache = mc
		logger.Info("cache backend: memcached", zap.String("addrs", cfg.MemcachedAddrs))
	default:
		locationCache = cache.NewInMemoryCache()
		logger.Info("cache backend: in_memory")
	}

	resolver := geo.NewResolver(gateway, locationCache, cfg.CacheTTL, logger)
	weatherService := service.NewWeatherService(gateway, resolver, logger)

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "weather",
		Version: serverVersion,
	}, nil)
	mcptool.Register(server, weatherService, logger)

	var metricsSrv *http.Server
	if cfg.MetricsPort != "" {
		handler := sidecar.NewHandler(logger, time.Now(), cachePing(memcacheCloser))
		metricsSrv = &http.Server{
			Addr:         ":" + cfg.MetricsPort,
			Handler:      sidecar.NewRouter(handler),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		}
		go func() {
			logger.Info("metrics listener starting", zap.String("addr", metricsSrv.Addr))
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics listener", zap.Error(err))
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("mcp server starting",
		zap.String("host", cfg.APIHost),
		zap.Bool("jwt", cfg.SigningMode))
	if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("mcp server", zap.Error(err))
	}

	logger.Info("graceful shutdown triggered")
	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics listener shutdown", zap.Error(err))
		}
	}
	if memcacheCloser != nil {
		if err := memcacheCloser.Close(); err != nil {
			logger.Error("memcached close", zap.Error(err))
		}
	}
	logger.Info("shutdown complete")
}

// cachePing adapts the memcached Ping for the health handler; nil when the
// in-memory backend is active.
func cachePing(mc *cache.MemcachedCache) func() error {
	if mc == nil {
		return nil
	}
	return mc.Ping
}
