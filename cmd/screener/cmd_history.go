package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Tapanrajnayak/credit-spread-optimizer/internal/report"
	"github.com/Tapanrajnayak/credit-spread-optimizer/internal/storage"
)

func newHistoryCmd(root *rootOptions) *cobra.Command {
	var (
		path   string
		limit  int
		format string
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List archived screening runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := report.ParseFormat(format)
			if err != nil {
				return err
			}
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			if path == "" {
				path = cfg.Storage.Path
			}
			if path == "" {
				return fmt.Errorf("no run archive configured (set storage.path or --path)")
			}

			store, err := storage.NewJSONStorage(path, cfg.Storage.MaxRuns)
			if err != nil {
				return fmt.Errorf("opening run archive: %w", err)
			}
			return report.WriteHistory(cmd.OutOrStdout(), report.History{
				Runs:       store.Runs(limit),
				Statistics: store.Statistics(),
			}, f)
		},
	}
	cmd.Flags().StringVar(&path, "path", "", "Archive file (overrides storage.path)")
	cmd.Flags().IntVar(&limit, "limit", 20, "Show at most this many runs (0 for all)")
	cmd.Flags().StringVar(&format, "format", "table", "Output format: table, json")
	return cmd
}
