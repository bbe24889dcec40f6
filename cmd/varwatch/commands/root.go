package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	logLevel string
	verbose  bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "varwatch",
	Short: "varwatch - per-ticker VaR cache and portfolio risk rules",
	Long: `varwatch unified CLI

Keeps a cache of per-ticker historical VaR with GOOD/MID/BAD quality tiers
and checks a portfolio snapshot against sector, position, exposure and
quality limits.

Usage:
  go run ./cmd/varwatch [command]

Examples:
  go run ./cmd/varwatch evaluate data/finished.csv
  go run ./cmd/varwatch cache list --quality BAD
  go run ./cmd/varwatch cache warm --tickers data/alltickers.txt
  go run ./cmd/varwatch serve`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override LOG_LEVEL (debug|info|warn|error)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (same as --log-level debug)")
}
