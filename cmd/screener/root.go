package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Tapanrajnayak/credit-spread-optimizer/internal/config"
)

const defaultConfigPath = "config.yaml"

// rootOptions holds the persistent flags shared by every subcommand.
type rootOptions struct {
	configPath string
	envFile    string
	logLevel   string
	logJSON    bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "screener",
		Short: "Disciplined credit spread screener",
		Long: `Screens bull put and bear call credit spreads through a fail-fast set of
hard filters, scores the survivors on expected value, IV percentile, theta,
execution quality and return on capital, and prints a short ranked list of
explained recommendations. Most days most candidates are rejected.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadEnvFile(opts.envFile)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", defaultConfigPath, "Path to configuration file")
	pf.StringVar(&opts.envFile, "env-file", ".env", "Environment file loaded before the config is expanded")
	pf.StringVar(&opts.logLevel, "log-level", "", "Override environment.log_level (debug, info, warn, error)")
	pf.BoolVar(&opts.logJSON, "log-json", false, "Emit JSON logs")

	cmd.AddCommand(
		newScreenCmd(opts),
		newServeCmd(opts),
		newHistoryCmd(opts),
		newConfigCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

// loadEnvFile loads path into the environment. A missing file is not an error.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s file: %w", path, err)
	}
	return nil
}

// loadConfig reads the config file. When the default path is absent the
// built-in defaults are used.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	if o.configPath == defaultConfigPath {
		if _, err := os.Stat(o.configPath); errors.Is(err, fs.ErrNotExist) {
			cfg := config.Default()
			if err := cfg.Validate(); err != nil {
				return nil, err
			}
			return cfg, nil
		}
	}
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// newLogger builds a logrus logger from the config, with flag overrides.
func (o *rootOptions) newLogger(cfg *config.Config, out io.Writer) (*logrus.Logger, error) {
	logger := logrus.New()
	logger.SetOutput(out)

	levelName := cfg.Environment.LogLevel
	if o.logLevel != "" {
		levelName = o.logLevel
	}
	level, err := logrus.ParseLevel(strings.ToLower(levelName))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", levelName, err)
	}
	logger.SetLevel(level)

	if o.logJSON || cfg.Environment.LogFormat == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger, nil
}
