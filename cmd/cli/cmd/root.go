// Package cmd holds the CLI command tree.
package cmd

import (
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tariff-engine/adapters/upstream"
	"tariff-engine/core/search"
	"tariff-engine/internal/config"
	"tariff-engine/internal/fetch"
	"tariff-engine/internal/logging"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "tariff",
	Short: "Estimate US import duties from the Harmonized Tariff Schedule",
	Long: `tariff resolves free-text or numeric queries against the US
Harmonized Tariff Schedule and computes duty estimates from each line's
rate text.`,
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if verbose {
			cfg.Logging.Level = "debug"
		}
		config.Set(cfg)
		return logging.Initialize(cfg.Logging)
	},
}

// Execute runs the root command.
func Execute() error {
	defer logging.Sync()
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// newEngine builds a search engine from the global config for one command run.
func newEngine(log *zap.Logger) *search.Engine {
	cfg := config.Get()
	return newEngineWith(search.Config{
		CacheCapacity: cfg.Cache.Capacity,
		DefaultLimit:  cfg.Search.DefaultLimit,
	}, log)
}

// newEngineWith wires the fetch and upstream clients around a caller-supplied
// engine config, so serve can attach optional alias and snapshot adapters.
func newEngineWith(engineCfg search.Config, log *zap.Logger) *search.Engine {
	cfg := config.Get()

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

	return search.NewEngine(upstream.New(fetcher, upCfg, log), engineCfg, log)
}
