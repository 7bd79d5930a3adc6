// Command server runs the tariff engine HTTP API.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"tariff-engine/adapters/alias"
	"tariff-engine/adapters/storage"
	"tariff-engine/adapters/upstream"
	"tariff-engine/api"
	"tariff-engine/core/search"
	"tariff-engine/internal/config"
	"tariff-engine/internal/fetch"
	"tariff-engine/internal/logging"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			logging.Logger.Fatal("failed to load config", zap.Error(err))
		}
		cfg = loaded
	}
	config.Set(cfg)

	if err := logging.Initialize(cfg.Logging); err != nil {
		logging.Logger.Fatal("failed to initialize logging", zap.Error(err))
	}
	defer logging.Sync()
	log := logging.Logger

	engine, cleanup, err := buildEngine(cfg, log)
	if err != nil {
		log.Fatal("failed to build engine", zap.Error(err))
	}
	defer cleanup()

	server := api.NewServer(engine, cfg.Server, log)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			log.Fatal("server failed", zap.Error(err))
		}
	case sig := <-stop:
		log.Info("shutting down", zap.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			log.Error("shutdown failed", zap.Error(err))
		}
	}
}

// buildEngine wires the fetch client, upstream adapter and optional alias
// and snapshot adapters into a search engine.
func buildEngine(cfg *config.Config, log *zap.Logger) (*search.Engine, func(), error) {
	fetcher := fetch.NewClient(nil, fetch.Options{
		MaxAttempts:      cfg.Upstream.MaxAttempts,
		BackoffBase:      time.Duration(cfg.Upstream.BackoffBaseMs) * time.Millisecond,
		BreakerThreshold: cfg.Breaker.FailureThreshold,
		BreakerCooldown:  time.Duration(cfg.Breaker.CooldownMs) * time.Millisecond,
	}, log)

	upCfg := upstream.Config{
		BaseURL: cfg.Upstream.BaseURL,
		Timeout: time.Duration(cfg.Upstream.TimeoutMs) * time.Millisecond,
	}
	if cfg.Upstream.ProxyBase != "" {
		upCfg.Rewrite = upstream.ProxyRewriter(cfg.Upstream.ProxyBase)
	}
	up := upstream.New(fetcher, upCfg, log)

	engineCfg := search.Config{
		CacheCapacity: cfg.Cache.Capacity,
		DefaultLimit:  cfg.Search.DefaultLimit,
	}

	var closers []func()
	if cfg.Alias.DSN != "" {
		src, err := alias.Open(cfg.Alias.DSN, log)
		if err != nil {
			return nil, nil, err
		}
		engineCfg.Alias = src
		closers = append(closers, func() { _ = src.Close() })
	}
	if cfg.Cache.SnapshotPath != "" {
		store, err := storage.Open(cfg.Cache.SnapshotPath)
		if err != nil {
			log.Warn("snapshot store unavailable, continuing without it", zap.Error(err))
		} else {
			engineCfg.Snapshots = store
			closers = append(closers, func() { _ = store.Close() })
		}
	}

	cleanup := func() {
		for _, c := range closers {
			c()
		}
	}
	return search.NewEngine(up, engineCfg, log), cleanup, nil
}
