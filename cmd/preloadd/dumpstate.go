package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ahrav/gavel-preload/internal/application"
	"github.com/ahrav/gavel-preload/internal/domain"
	"github.com/ahrav/gavel-preload/infrastructure/stateio"
)

func newDumpStateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dump-state",
		Short: "Load the persisted state file and print a one-shot statistics summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := application.LoadConfig(configPath)
			if err != nil {
				return err
			}

			state := domain.NewState()
			if err := stateio.Load(cfg.StateFile, state); err != nil {
				return fmt.Errorf("load state: %w", err)
			}

			printStats(cmd, application.Stats(state))
			return nil
		},
	}
}

func printStats(cmd *cobra.Command, s application.StateStats) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "exes:         %d\n", s.NumExes)
	fmt.Fprintf(out, "maps:         %d\n", s.NumMaps)
	fmt.Fprintf(out, "markov edges: %d\n", s.NumMarkovs)
	fmt.Fprintf(out, "running:      %d\n", s.RunningCount)
	fmt.Fprintf(out, "virtual time: %.0f\n", s.VirtualTime)
	fmt.Fprintf(out, "dirty:        %v\n", s.Dirty)
	fmt.Fprintf(out, "model dirty:  %v\n", s.ModelDirty)
}
