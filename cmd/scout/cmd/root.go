package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "scout",
	Short: "An equity setup scanner with AI-advised, risk-managed execution",
	Long: `Scout screens a US equity universe for liquid candidates, computes a
technical indicator set for each, consults an advisory model for trade
setups, sizes accepted setups against a strict risk policy, and supervises
every resulting position through to exit.

It provides commands for:
  - Running the live scan-and-trade loop against a paper or live broker
  - One-shot universe scans for research
  - Generating and validating configuration files
  - Reporting realized P/L from the trade journal

Complete documentation is available at https://github.com/rustyeddy/scout`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}
