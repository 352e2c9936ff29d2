// Package cmd contains the soltrade CLI commands.
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var rootCmd = &cobra.Command{
	Use:   "soltrade",
	Short: "Automated token trading engine",
	Long: `Automated trading engine for Solana tokens.

The engine aggregates swap quotes across venues, watches a live price
stream to fire limit, stop-loss and take-profit orders, and submits
winning routes with anti-front-running shaping through a private relay
when one is configured.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
