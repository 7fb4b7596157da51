// Package marketdata supplies the volatility index and spread quotes the
// screener consumes. Providers make no screening decisions.
package marketdata

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Tapanrajnayak/credit-spread-optimizer/internal/analyzer"
	"github.com/Tapanrajnayak/credit-spread-optimizer/internal/config"
	"github.com/Tapanrajnayak/credit-spread-optimizer/internal/metrics"
)

// Provider is the market-data boundary.
type Provider interface {
	// VolatilityIndex returns the current market-wide volatility index (VIX).
	VolatilityIndex(ctx context.Context) (float64, error)
	// SpreadQuotes returns candidate spreads for one underlying.
	SpreadQuotes(ctx context.Context, underlying string) ([]analyzer.SpreadQuote, error)
}

// ErrUnknownUnderlying is returned when a provider has no data for a symbol.
var ErrUnknownUnderlying = errors.New("unknown underlying")

// fixedVIX overrides the volatility index of another provider.
type fixedVIX struct {
	Provider
	vix float64
}

func (f fixedVIX) VolatilityIndex(context.Context) (float64, error) {
	return f.vix, nil
}

// WithVIX returns p with its volatility index pinned to vix.
func WithVIX(p Provider, vix float64) Provider {
	return fixedVIX{Provider: p, vix: vix}
}

// NewFromConfig builds the provider described by cfg.market_data, wrapped
// with resilience and a fixed VIX when configured.
func NewFromConfig(cfg *config.Config, logger logrus.FieldLogger, recorder metrics.Recorder) (Provider, error) {
	md := cfg.MarketData
	var (
		p   Provider
		err error
	)
	switch md.Provider {
	case "mock":
		p = NewMockProvider(MockOptions{
			Seed:       md.Mock.Seed,
			Widths:     md.Mock.Widths,
			BasePrices: md.Mock.BasePrices,
			MinDTE:     cfg.Screening.MinDTE,
			MaxDTE:     cfg.Screening.MaxDTE,
		})
	case "csv":
		p, err = LoadCSVProvider(md.CSV.QuotesPath, md.CSV.IVHistoryPath, logger)
		if err != nil {
			return nil, err
		}
	case "tradier":
		timeout, err := time.ParseDuration(md.Tradier.Timeout)
		if err != nil {
			return nil, fmt.Errorf("parsing tradier timeout: %w", err)
		}
		p = NewTradierProvider(TradierOptions{
			APIKey:        md.Tradier.APIKey,
			Sandbox:       md.Tradier.Sandbox,
			BaseURL:       md.Tradier.BaseURL,
			Timeout:       timeout,
			Widths:        md.Tradier.Widths,
			MinDTE:        cfg.Screening.MinDTE,
			MaxDTE:        cfg.Screening.MaxDTE,
			MaxShortDelta: md.Tradier.MaxShortDelta,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown market data provider %q", md.Provider)
	}

	if md.Resilience.Enabled {
		settings, err := resilienceSettings(md.Resilience)
		if err != nil {
			return nil, err
		}
		p = NewResilientProvider(p, settings, logger, recorder)
	}
	if md.VIX > 0 {
		p = WithVIX(p, md.VIX)
	}
	return p, nil
}

func resilienceSettings(rc config.ResilienceConfig) (ResilienceSettings, error) {
	durations := make([]time.Duration, 4)
	for i, s := range []string{rc.InitialBackoff, rc.MaxBackoff, rc.Breaker.Interval, rc.Breaker.Timeout} {
		d, err := time.ParseDuration(s)
		if err != nil {
			return ResilienceSettings{}, fmt.Errorf("parsing resilience duration %q: %w", s, err)
		}
		durations[i] = d
	}
	return ResilienceSettings{
		Retry: RetryConfig{
			MaxRetries:     rc.MaxRetries,
			InitialBackoff: durations[0],
			MaxBackoff:     durations[1],
		},
		Breaker: BreakerSettings{
			MaxRequests:  rc.Breaker.MaxRequests,
			Interval:     durations[2],
			Timeout:      durations[3],
			MinRequests:  rc.Breaker.MinRequests,
			FailureRatio: rc.Breaker.FailureRatio,
		},
		RequestsPerSecond: rc.RequestsPerSecond,
		Burst:             rc.Burst,
	}, nil
}
