package main

import (
	"fmt"

	"github.com/spf13/cobra"
	yaml "gopkg.in/yaml.v3"
)

func newConfigCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and validate configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			w := cfg.Weights
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Configuration OK (%s)\n", root.configPath)
			fmt.Fprintf(out, "  provider: %s, symbols: %v\n", cfg.MarketData.Provider, cfg.MarketData.Symbols)
			fmt.Fprintf(out, "  weights: ev=%.2f iv=%.2f theta=%.2f quality=%.2f roc=%.2f liquidity=%.2f (sum %.2f)\n",
				w.ExpectedValue, w.IVPercentile, w.Theta, w.SpreadQuality, w.ROC, w.Liquidity, w.Sum())
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			if cfg.Server.AuthToken != "" {
				cfg.Server.AuthToken = "********"
			}
			if cfg.MarketData.Tradier.APIKey != "" {
				cfg.MarketData.Tradier.APIKey = "********"
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(cfg); err != nil {
				return fmt.Errorf("encoding config: %w", err)
			}
			return enc.Close()
		},
	})
	return cmd
}
