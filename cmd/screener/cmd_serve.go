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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/Tapanrajnayak/credit-spread-optimizer/internal/dashboard"
	"github.com/Tapanrajnayak/credit-spread-optimizer/internal/marketdata"
	"github.com/Tapanrajnayak/credit-spread-optimizer/internal/metrics"
	"github.com/Tapanrajnayak/credit-spread-optimizer/internal/screener"
	"github.com/Tapanrajnayak/credit-spread-optimizer/internal/storage"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve screening over HTTP",
		Long: `Start an HTTP server that screens on request and keeps the latest result.

Routes:
  GET  /health
  GET  /metrics
  POST /api/screen?symbols=SPY,QQQ&sort=ev
  GET  /api/results/latest
  GET  /api/results/latest/{symbol}
  GET  /api/rejections
  GET  /api/runs?limit=20
  GET  /api/runs/{id}
  GET  /api/stats`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			logger, err := root.newLogger(cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			sc, err := cfg.ScreeningConfig()
			if err != nil {
				return err
			}

			reg := prometheus.NewRegistry()
			recorder, err := metrics.NewPrometheus(reg)
			if err != nil {
				return fmt.Errorf("registering metrics: %w", err)
			}
			provider, err := marketdata.NewFromConfig(cfg, logger, recorder)
			if err != nil {
				return fmt.Errorf("building market data provider: %w", err)
			}
			store, err := storage.NewStorage(cfg.Storage.Path, cfg.Storage.MaxRuns)
			if err != nil {
				return fmt.Errorf("opening run archive: %w", err)
			}
			s := screener.New(sc,
				screener.WithLogger(logger),
				screener.WithRecorder(recorder),
				screener.WithWorkers(cfg.Execution.Workers),
			)

			srv := dashboard.NewServer(dashboard.Config{
				Addr:           cfg.Server.Addr,
				AuthToken:      cfg.Server.AuthToken,
				Symbols:        cfg.MarketData.Symbols,
				RequestTimeout: cfg.GetRunTimeout(),
			}, s, provider, store, reg, logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				errCh <- srv.Start()
			}()

			select {
			case err := <-errCh:
				if err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("server failed: %w", err)
				}
				return nil
			case <-ctx.Done():
				logger.Info("Shutdown signal received, stopping server...")
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides server.addr)")
	return cmd
}
