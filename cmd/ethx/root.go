package main

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dmagro/eth-extractor/internal/cache"
	"github.com/dmagro/eth-extractor/internal/config"
	"github.com/dmagro/eth-extractor/internal/extract"
	"github.com/dmagro/eth-extractor/internal/logging"
	"github.com/dmagro/eth-extractor/internal/metrics"
	"github.com/dmagro/eth-extractor/internal/rpc"
	"github.com/dmagro/eth-extractor/internal/transport"
)

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "ethx",
		Short:         "Ethereum chain data extractor",
		Long:          "ethx extracts blocks, transactions, account state, and gas statistics\nfrom an Ethereum node over JSON-RPC, with caching and retry built in.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().String("config", "", "Path to YAML config file")
	cmd.PersistentFlags().String("rpc-url", "http://localhost:8545", "Ethereum RPC endpoint (ignored when --config is set)")

	cmd.AddCommand(
		blockCmd(),
		txCmd(),
		accountCmd(),
		latestCmd(),
		gasCmd(),
		watchCmd(),
	)
	return cmd
}

// app bundles the wired extraction stack for one command invocation.
type app struct {
	cfg      *config.Config
	log      *zap.Logger
	registry *prometheus.Registry
	service  *extract.Service
}

func newApp(cmd *cobra.Command) (*app, error) {
	cfgPath, _ := cmd.Flags().GetString("config")
	if cfgPath == "" {
		cfgPath, _ = cmd.Root().PersistentFlags().GetString("config")
	}
	rpcURL, _ := cmd.Root().PersistentFlags().GetString("rpc-url")

	var cfg *config.Config
	var err error
	if cfgPath != "" {
		cfg, err = config.Load(cfgPath)
	} else {
		cfg, err = config.Default(rpcURL)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	m, err := metrics.New(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	tr := transport.New(transport.Config{
		URL:                cfg.Endpoint.URL,
		Timeout:            cfg.Endpoint.Timeout,
		MaxRetries:         cfg.Retry.MaxRetries,
		BackoffBase:        cfg.Retry.BackoffBase,
		RPS:                cfg.RateLimit.RPS,
		Burst:              cfg.RateLimit.Burst,
		BreakerEnabled:     cfg.Breaker.Enabled,
		BreakerMaxFailures: cfg.Breaker.MaxFailures,
		BreakerOpenTimeout: cfg.Breaker.OpenTimeout,
	}, log, m)

	client := rpc.NewClient(tr, log, m)
	blockCache := cache.New(cfg.Cache.Capacity, m)

	svc := extract.NewService(client, blockCache, extract.Config{
		MaxLatestBlocks:      cfg.Limits.MaxLatestBlocks,
		MaxRangeBlocks:       cfg.Limits.MaxRangeBlocks,
		BatchSize:            cfg.Limits.BatchSize,
		MaxConcurrentBatches: cfg.Limits.MaxConcurrentBatches,
		FinalityDepth:        cfg.Cache.FinalityDepth,
	}, log)

	return &app{cfg: cfg, log: log, registry: registry, service: svc}, nil
}

func (a *app) close() {
	_ = a.log.Sync()
}
