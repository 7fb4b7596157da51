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
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Tapanrajnayak/credit-spread-optimizer/internal/config"
	"github.com/Tapanrajnayak/credit-spread-optimizer/internal/marketdata"
	"github.com/Tapanrajnayak/credit-spread-optimizer/internal/metrics"
	"github.com/Tapanrajnayak/credit-spread-optimizer/internal/models"
	"github.com/Tapanrajnayak/credit-spread-optimizer/internal/ranking"
	"github.com/Tapanrajnayak/credit-spread-optimizer/internal/report"
	"github.com/Tapanrajnayak/credit-spread-optimizer/internal/screener"
	"github.com/Tapanrajnayak/credit-spread-optimizer/internal/storage"
)

type screenOptions struct {
	symbols        []string
	vix            float64
	quotesPath     string
	ivHistoryPath  string
	seed           int64
	sortBy         string
	format         string
	metricsAddr    string
	hideRejections bool
	save           string
	explain        int
}

func newScreenCmd(root *rootOptions) *cobra.Command {
	opts := &screenOptions{}
	cmd := &cobra.Command{
		Use:   "screen",
		Short: "Screen credit spreads and print ranked recommendations",
		Long: `Fetch quotes for each configured underlying, run every candidate through
the hard filters, and print the top recommendations with their rejection
statistics.

Examples:
  screener screen                                   # mock data, config.yaml or defaults
  screener screen --symbols SPY,QQQ --vix 18.5
  screener screen --quotes quotes.csv --vix 17 --format json
  screener screen --sort ev --metrics-addr :9090
  screener screen --save data/runs.json
  screener screen --explain 3                       # show candidates one filter away`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScreen(cmd, root, opts)
		},
	}

	f := cmd.Flags()
	f.StringSliceVar(&opts.symbols, "symbols", nil, "Underlyings to screen (overrides market_data.symbols)")
	f.Float64Var(&opts.vix, "vix", 0, "Use this VIX instead of the provider's")
	f.StringVar(&opts.quotesPath, "quotes", "", "Read quotes from this CSV file instead of generating them")
	f.StringVar(&opts.ivHistoryPath, "iv-history", "", "IV history CSV used with --quotes")
	f.Int64Var(&opts.seed, "seed", 0, "Seed for reproducible mock data")
	f.StringVar(&opts.sortBy, "sort", "score", "Display order: score, ev, roc, theta, pop")
	f.StringVar(&opts.format, "format", "table", "Output format: table, json")
	f.StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while screening")
	f.BoolVar(&opts.hideRejections, "hide-rejections", false, "Hide filter rejection statistics")
	f.StringVar(&opts.save, "save", "", "Archive the run to this file (overrides storage.path)")
	f.IntVar(&opts.explain, "explain", 0, "Show up to N rejected candidates per underlying that failed a single filter")
	return cmd
}

// apply folds command-line overrides into cfg.
func (o *screenOptions) apply(cmd *cobra.Command, cfg *config.Config) error {
	if len(o.symbols) > 0 {
		cfg.MarketData.Symbols = o.symbols
	}
	if cmd.Flags().Changed("vix") {
		cfg.MarketData.VIX = o.vix
	}
	if o.quotesPath != "" {
		cfg.MarketData.Provider = "csv"
		cfg.MarketData.CSV.QuotesPath = o.quotesPath
		cfg.MarketData.CSV.IVHistoryPath = o.ivHistoryPath
	}
	if o.seed != 0 {
		cfg.MarketData.Mock.Seed = o.seed
	}
	if o.metricsAddr != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Addr = o.metricsAddr
	}
	if o.save != "" {
		cfg.Storage.Path = o.save
	}
	return cfg.Validate()
}

func runScreen(cmd *cobra.Command, root *rootOptions, opts *screenOptions) error {
	metric, err := ranking.ParseMetric(opts.sortBy)
	if err != nil {
		return err
	}
	format, err := report.ParseFormat(opts.format)
	if err != nil {
		return err
	}

	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	if err := opts.apply(cmd, cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	logger, err := root.newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, cfg.GetRunTimeout())
	defer cancel()

	var recorder metrics.Recorder = metrics.Noop{}
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		rec, err := metrics.NewPrometheus(reg)
		if err != nil {
			return fmt.Errorf("registering metrics: %w", err)
		}
		recorder = rec
		shutdown := serveMetrics(cfg.Metrics.Addr, reg, logger)
		defer shutdown()
	}

	if opts.explain < 0 {
		return fmt.Errorf("--explain must be >= 0")
	}
	result, err := screenConfigured(ctx, cfg, logger, recorder, screener.WithNearMisses(opts.explain))
	if err != nil {
		return err
	}
	if cfg.Storage.Path != "" {
		if err := archiveRun(cfg, result); err != nil {
			return err
		}
		logger.WithFields(logrus.Fields{"run_id": result.RunID, "path": cfg.Storage.Path}).Info("Run archived")
	}
	return report.Write(cmd.OutOrStdout(), result, report.Options{
		Format:         format,
		SortBy:         metric,
		HideRejections: opts.hideRejections,
	})
}

// screenConfigured runs one screen against the provider described by cfg.
func screenConfigured(ctx context.Context, cfg *config.Config, logger *logrus.Logger, recorder metrics.Recorder, extra ...screener.Option) (models.MultiResult, error) {
	sc, err := cfg.ScreeningConfig()
	if err != nil {
		return models.MultiResult{}, err
	}
	provider, err := marketdata.NewFromConfig(cfg, logger, recorder)
	if err != nil {
		return models.MultiResult{}, fmt.Errorf("building market data provider: %w", err)
	}

	opts := append([]screener.Option{
		screener.WithLogger(logger),
		screener.WithRecorder(recorder),
		screener.WithWorkers(cfg.Execution.Workers),
	}, extra...)
	s := screener.New(sc, opts...)
	logger.WithFields(logrus.Fields{
		"provider": cfg.MarketData.Provider,
		"symbols":  cfg.MarketData.Symbols,
	}).Info("Starting screening run")
	return s.ScreenProvider(ctx, provider, cfg.MarketData.Symbols)
}

// archiveRun appends result to the configured run archive.
func archiveRun(cfg *config.Config, result models.MultiResult) error {
	store, err := storage.NewJSONStorage(cfg.Storage.Path, cfg.Storage.MaxRuns)
	if err != nil {
		return fmt.Errorf("opening run archive: %w", err)
	}
	if err := store.SaveRun(result); err != nil {
		return fmt.Errorf("archiving run: %w", err)
	}
	return nil
}

// serveMetrics exposes reg on addr and returns a function that stops the
// listener.
func serveMetrics(addr string, reg *prometheus.Registry, logger *logrus.Logger) func() {
	srv := &http.Server{
		Addr:              addr,
		Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Infof("Serving metrics on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("Metrics server failed")
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.WithError(err).Warn("Metrics server shutdown")
		}
	}
}
