package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ahrav/gavel-preload/internal/application"
)

func newValidateConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate-config",
		Short: "Parse and validate the configuration file without starting the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := application.LoadConfig(configPath)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (statefile=%s, scan_interval=%ds, cycle=%ds, strategy=%s)\n",
				configPath, cfg.StateFile, cfg.ScanIntervalSec, cfg.Model.CycleSec, cfg.Prefetch.Strategy)
			return nil
		},
	}
}
