// Package cmd defines the CLI commands for the firmscout executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "firmscout",
		Short: "Collects architecture firm job postings from listing sites.",
		Long: `firmscout resolves a set of small U.S. cities, scrapes the job boards
it knows about for architecture postings in each, enriches every posting with
a phone number and firm website, and exports the deduplicated result set.`,
	}
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")
	cmd.AddCommand(newScrapeCmd())
	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
