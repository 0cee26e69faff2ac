// Package cmd defines and implements the CLI commands for the wormy
// executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wormy",
		Short: "A polite same-site web crawler",
		Long: `wormy crawls a single site from a seed URL: it discovers links,
extracts visible text and metadata from HTML and PDF pages, escalates
JavaScript-heavy pages to a headless browser, and writes the results as
JSON or CSV.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is built-in defaults plus WORMY_* env)")

	cmd.AddCommand(newCrawlCmd())
	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
