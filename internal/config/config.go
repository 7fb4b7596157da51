// Package config provides configuration management for the screener.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"
)

const (
	// defaultWorkers bounds concurrent per-underlying screening when execution.workers is unset
	defaultWorkers = 4
	// defaultRunTimeout caps a whole screening run
	defaultRunTimeout = 2 * time.Minute
	// defaultMaxRuns bounds the run archive
	defaultMaxRuns = 100
)

// Config represents the complete application configuration.
type Config struct {
	Environment EnvironmentConfig `yaml:"environment"`
	Screening   Thresholds        `yaml:"screening"`
	Weights     Weights           `yaml:"weights"`
	Scoring     Scoring           `yaml:"scoring"`
	Narrative   Narrative         `yaml:"narrative"`
	MarketData  MarketDataConfig  `yaml:"market_data"`
	Execution   ExecutionConfig   `yaml:"execution"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Server      ServerConfig      `yaml:"server"`
	Storage     StorageConfig     `yaml:"storage"`
}

// EnvironmentConfig defines logging settings.
type EnvironmentConfig struct {
	LogLevel  string `yaml:"log_level"`  // debug | info | warn | error
	LogFormat string `yaml:"log_format"` // text | json
}

// MarketDataConfig selects and tunes the quote source.
type MarketDataConfig struct {
	Provider   string           `yaml:"provider"` // mock | csv | tradier
	Symbols    []string         `yaml:"symbols"`
	VIX        float64          `yaml:"vix"` // overrides the provider when > 0
	CSV        CSVConfig        `yaml:"csv"`
	Mock       MockConfig       `yaml:"mock"`
	Tradier    TradierConfig    `yaml:"tradier"`
	Resilience ResilienceConfig `yaml:"resilience"`
}

// TradierConfig reads live chains from the Tradier market data API.
type TradierConfig struct {
	APIKey        string    `yaml:"api_key"`
	Sandbox       bool      `yaml:"sandbox"`
	BaseURL       string    `yaml:"base_url"`
	Timeout       string    `yaml:"timeout"`
	Widths        []float64 `yaml:"widths"`
	MaxShortDelta float64   `yaml:"max_short_delta"`
}

// CSVConfig points at quote and IV history files.
type CSVConfig struct {
	QuotesPath    string `yaml:"quotes_path"`
	IVHistoryPath string `yaml:"iv_history_path"`
}

// MockConfig tunes synthetic chain generation.
type MockConfig struct {
	Seed       int64              `yaml:"seed"` // 0 uses crypto/rand
	Widths     []float64          `yaml:"widths"`
	BasePrices map[string]float64 `yaml:"base_prices"`
}

// ResilienceConfig wraps the provider with retries, a rate limit and a
// circuit breaker.
type ResilienceConfig struct {
	Enabled           bool          `yaml:"enabled"`
	MaxRetries        int           `yaml:"max_retries"`
	InitialBackoff    string        `yaml:"initial_backoff"`
	MaxBackoff        string        `yaml:"max_backoff"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
	Breaker           BreakerConfig `yaml:"breaker"`
}

// BreakerConfig mirrors the circuit breaker settings.
type BreakerConfig struct {
	MaxRequests  uint32  `yaml:"max_requests"`
	Interval     string  `yaml:"interval"`
	Timeout      string  `yaml:"timeout"`
	MinRequests  uint32  `yaml:"min_requests"`
	FailureRatio float64 `yaml:"failure_ratio"`
}

// ExecutionConfig bounds a screening run.
type ExecutionConfig struct {
	Workers int    `yaml:"workers"`
	Timeout string `yaml:"timeout"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// ServerConfig controls the HTTP screening server.
type ServerConfig struct {
	Addr      string `yaml:"addr"`
	AuthToken string `yaml:"auth_token"` // empty disables auth
}

// StorageConfig controls the screening run archive.
type StorageConfig struct {
	Path    string `yaml:"path"`     // empty keeps runs in memory only
	MaxRuns int    `yaml:"max_runs"` // oldest runs beyond this are dropped
}

// Default returns a configuration that screens mock data with the standard
// thresholds.
func Default() *Config {
	return &Config{
		Environment: EnvironmentConfig{LogLevel: "info", LogFormat: "text"},
		Screening:   DefaultThresholds(),
		Weights:     DefaultWeights(),
		Scoring:     DefaultScoring(),
		Narrative:   DefaultNarrative(),
		MarketData: MarketDataConfig{
			Provider: "mock",
			Symbols:  []string{"SPY", "QQQ", "IWM"},
			Mock: MockConfig{
				Widths: []float64{2, 5, 7},
			},
			Tradier: TradierConfig{
				Sandbox:       true,
				Timeout:       "10s",
				Widths:        []float64{2, 5, 7},
				MaxShortDelta: 0.30,
			},
			Resilience: ResilienceConfig{
				MaxRetries:        3,
				InitialBackoff:    "1s",
				MaxBackoff:        "30s",
				RequestsPerSecond: 5,
				Burst:             5,
				Breaker: BreakerConfig{
					MaxRequests:  3,
					Interval:     "60s",
					Timeout:      "30s",
					MinRequests:  5,
					FailureRatio: 0.6,
				},
			},
		},
		Execution: ExecutionConfig{Workers: defaultWorkers, Timeout: defaultRunTimeout.String()},
		Metrics:   MetricsConfig{Addr: ":9090"},
		Server:    ServerConfig{Addr: ":8080"},
		Storage:   StorageConfig{MaxRuns: defaultMaxRuns},
	}
}

// Load reads and parses the configuration file from the specified path.
// Unset keys keep their defaults.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config.yaml"
	}

	data, err := os.ReadFile(configPath) // #nosec G304 -- configPath is a user-provided config file path
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes YAML config bytes on top of the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	config := Default()
	dec := yaml.NewDecoder(strings.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(config); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return config, nil
}

// Validate checks that all configuration values are valid and consistent.
func (c *Config) Validate() error {
	c.normalize()

	switch strings.ToLower(c.Environment.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("environment.log_level must be one of debug, info, warn, error")
	}
	if c.Environment.LogFormat != "text" && c.Environment.LogFormat != "json" {
		return fmt.Errorf("environment.log_format must be 'text' or 'json'")
	}

	if _, err := c.ScreeningConfig(); err != nil {
		return err
	}

	md := c.MarketData
	if len(md.Symbols) == 0 {
		return fmt.Errorf("market_data.symbols must list at least one underlying")
	}
	if md.VIX < 0 {
		return fmt.Errorf("market_data.vix must be >= 0")
	}
	switch md.Provider {
	case "mock":
		if len(md.Mock.Widths) == 0 {
			return fmt.Errorf("market_data.mock.widths must not be empty")
		}
		for _, w := range md.Mock.Widths {
			if w <= 0 {
				return fmt.Errorf("market_data.mock.widths must be positive, got %v", w)
			}
		}
	case "csv":
		if md.CSV.QuotesPath == "" {
			return fmt.Errorf("market_data.csv.quotes_path is required for the csv provider")
		}
		if md.VIX <= 0 {
			return fmt.Errorf("market_data.vix is required for the csv provider")
		}
	case "tradier":
		t := md.Tradier
		if t.APIKey == "" {
			return fmt.Errorf("market_data.tradier.api_key is required for the tradier provider")
		}
		if len(t.Widths) == 0 {
			return fmt.Errorf("market_data.tradier.widths must not be empty")
		}
		for _, w := range t.Widths {
			if w <= 0 {
				return fmt.Errorf("market_data.tradier.widths must be positive, got %v", w)
			}
		}
		if t.MaxShortDelta <= 0 || t.MaxShortDelta >= 1 {
			return fmt.Errorf("market_data.tradier.max_short_delta must be in (0,1)")
		}
		if _, err := time.ParseDuration(t.Timeout); err != nil {
			return fmt.Errorf("market_data.tradier.timeout invalid: %w", err)
		}
	default:
		return fmt.Errorf("market_data.provider must be 'mock', 'csv' or 'tradier'")
	}

	r := md.Resilience
	if r.Enabled {
		if r.MaxRetries < 0 {
			return fmt.Errorf("market_data.resilience.max_retries must be >= 0")
		}
		if r.RequestsPerSecond <= 0 || r.Burst <= 0 {
			return fmt.Errorf("market_data.resilience.requests_per_second and burst must be > 0")
		}
		if r.Breaker.FailureRatio <= 0 || r.Breaker.FailureRatio > 1 {
			return fmt.Errorf("market_data.resilience.breaker.failure_ratio must be in (0,1]")
		}
		for _, d := range []struct{ path, v string }{
			{"market_data.resilience.initial_backoff", r.InitialBackoff},
			{"market_data.resilience.max_backoff", r.MaxBackoff},
			{"market_data.resilience.breaker.interval", r.Breaker.Interval},
			{"market_data.resilience.breaker.timeout", r.Breaker.Timeout},
		} {
			if _, err := time.ParseDuration(d.v); err != nil {
				return fmt.Errorf("%s invalid: %w", d.path, err)
			}
		}
	}

	if c.Execution.Workers <= 0 {
		return fmt.Errorf("execution.workers must be > 0")
	}
	if _, err := time.ParseDuration(c.Execution.Timeout); err != nil {
		return fmt.Errorf("execution.timeout invalid: %w", err)
	}

	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return fmt.Errorf("metrics.addr is required when metrics.enabled is true")
	}
	if c.Storage.MaxRuns < 0 {
		return fmt.Errorf("storage.max_runs must be >= 0")
	}

	return nil
}

// ScreeningConfig builds the immutable screening configuration from the file
// sections. The error, if any, is a *ConfigurationError.
func (c *Config) ScreeningConfig() (ScreeningConfig, error) {
	return NewScreeningConfig(ScreeningParams{
		Thresholds: c.Screening,
		Weights:    c.Weights,
		Scoring:    c.Scoring,
		Narrative:  c.Narrative,
	})
}

// GetRunTimeout returns the configured run timeout, falling back to the default.
func (c *Config) GetRunTimeout() time.Duration {
	d, err := time.ParseDuration(c.Execution.Timeout)
	if err != nil || d <= 0 {
		return defaultRunTimeout
	}
	return d
}

// normalize fills values an explicit empty YAML entry may have cleared.
func (c *Config) normalize() {
	if c.Environment.LogLevel == "" {
		c.Environment.LogLevel = "info"
	}
	if c.Environment.LogFormat == "" {
		c.Environment.LogFormat = "text"
	}
	if c.Execution.Workers == 0 {
		c.Execution.Workers = defaultWorkers
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Execution.Timeout == "" {
		c.Execution.Timeout = defaultRunTimeout.String()
	}
	for i, s := range c.MarketData.Symbols {
		c.MarketData.Symbols[i] = strings.ToUpper(strings.TrimSpace(s))
	}
}
