package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dmagro/eth-extractor/internal/display"
)

func watchCmd() *cobra.Command {
	var (
		interval    time.Duration
		count       int
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Continuously display the most recent blocks",
		Long: `Refresh a view of the most recent blocks every interval until
interrupted. With --metrics-addr, Prometheus metrics are served at /metrics.

Examples:
  ethx watch
  ethx watch --interval 10s --count 5
  ethx watch --metrics-addr :9090`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if metricsAddr != "" {
				mux := http.NewServeMux()
				mux.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))
				srv := &http.Server{Addr: metricsAddr, Handler: mux}
				go func() {
					if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
						a.log.Error("metrics server failed", zap.Error(err))
					}
				}()
				defer srv.Shutdown(context.Background())
				a.log.Info("serving metrics", zap.String("addr", metricsAddr))
			}

			refresh := func() {
				blocks, err := a.service.GetLatestBlocks(ctx, count)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					a.log.Warn("refresh failed", zap.Error(err))
					return
				}
				display.Blocks(os.Stdout, blocks)
			}

			refresh()
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					a.log.Info("shutting down")
					return nil
				case <-ticker.C:
					refresh()
				}
			}
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 30*time.Second, "Refresh interval")
	cmd.Flags().IntVar(&count, "count", 10, "Number of blocks to display")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Address to serve Prometheus metrics on (empty disables)")
	return cmd
}
