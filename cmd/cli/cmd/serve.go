package cmd

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tariff-engine/adapters/alias"
	"tariff-engine/adapters/storage"
	"tariff-engine/api"
	"tariff-engine/core/search"
	"tariff-engine/internal/config"
	"tariff-engine/internal/logging"
)

var serveAddress string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the tariff engine HTTP API",
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg := config.Get()
		if serveAddress != "" {
			cfg.Server.Address = serveAddress
		}
		log := logging.Logger

		engineCfg := search.Config{
			CacheCapacity: cfg.Cache.Capacity,
			DefaultLimit:  cfg.Search.DefaultLimit,
		}

		var closers []func()
		defer func() {
			for _, c := range closers {
				c()
			}
		}()

		if cfg.Alias.DSN != "" {
			src, err := alias.Open(cfg.Alias.DSN, log)
			if err != nil {
				return err
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

		engine := newEngineWith(engineCfg, log)
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
				return err
			}
			return nil
		case sig := <-stop:
			log.Info("shutting down", zap.String("signal", sig.String()))
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return server.Shutdown(ctx)
		}
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddress, "address", "", "listen address (overrides config)")
	rootCmd.AddCommand(serveCmd)
}
