// Package cmd defines and implements the CLI commands for the hmdbscan
// executable.
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hmdbscan",
		Short: "Flags HMDB metabolites carrying the Endogenous/Animal source tag.",
		Long: `hmdbscan stream-parses an HMDB metabolite XML dump, crawls the
corresponding MetaboCard pages with a bounded worker pool, and writes a
TSV report of which metabolites are flagged Source -> Endogenous -> Animal.
Interrupted runs can be resumed from the report itself.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml if present)")

	cmd.AddCommand(newScanCmd())

	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
