// Command preloadd runs the page-cache preloading daemon: it scans the
// process table, feeds the co-occurrence and sequence models, predicts
// which file-backed regions are about to be needed, and issues advisory
// readahead against them.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:   "preloadd",
		Short: "Adaptive page-cache preloading daemon",
		Long: "preloadd observes running processes, models their file " +
			"access co-occurrence, and issues advisory readahead so the " +
			"page cache is warm before the next launch.",
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "/etc/preloadd.conf", "path to the YAML configuration file")

	root.AddCommand(newRunCmd())
	root.AddCommand(newValidateConfigCmd())
	root.AddCommand(newDumpStateCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
