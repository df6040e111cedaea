package main

import (
	"context"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/ahrav/gavel-preload/internal/application"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the preloadd event loop in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(cmd.Context(), configPath)
		},
	}
}

// runDaemon loads configuration, wires the daemon's collaborators, and
// drives the scan/update event loop until a terminating signal arrives.
func runDaemon(ctx context.Context, path string) error {
	cfg, err := application.LoadConfig(path)
	if err != nil {
		return err
	}

	d, err := newDaemon(cfg, path)
	if err != nil {
		return err
	}
	defer d.closeLog()

	d.logger.Printf("starting: statefile=%s scan_interval=%ds cycle=%ds strategy=%s",
		cfg.StateFile, cfg.ScanIntervalSec, cfg.Model.CycleSec, cfg.Prefetch.Strategy)

	sigCh := newSignalChan()
	defer signal.Stop(sigCh)

	ticker := time.NewTicker(time.Duration(cfg.ScanIntervalSec) * time.Second)
	defer ticker.Stop()

	var pendingScan *application.ScanResult

	for {
		select {
		case sig := <-sigCh:
			if d.handleSignal(sig) {
				return nil
			}

		case <-ticker.C:
			if pendingScan == nil {
				pendingScan = d.scanTick(ctx)
				continue
			}
			d.updateTick(ctx, pendingScan)
			pendingScan = nil
		}
	}
}
