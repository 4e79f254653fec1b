package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/scout/market"
	"github.com/rustyeddy/scout/market/data"
	"github.com/rustyeddy/scout/scanner"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run a one-shot universe scan",
	Long: `Fetch the current universe, apply the configured screens, and print the
ranked candidate list. No advisory calls and no orders.

Example:
  scout scan --config scout.yaml`,
	RunE: runScan,
}

var scanConfigPath string

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().StringVarP(&scanConfigPath, "config", "f", "", "path to config file (YAML or JSON)")
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(scanConfigPath)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	source := data.NewYahooSource(30 * time.Second)
	universe, err := source.Universe(ctx)
	if err != nil {
		return fmt.Errorf("fetch universe: %w", err)
	}

	quotes := make(map[string]market.Quote, len(universe))
	for _, symbol := range universe {
		q, err := source.GetQuote(ctx, symbol)
		if err != nil {
			continue
		}
		quotes[symbol] = q
	}

	candidates := scanner.Scan(universe, quotes, scanner.Filters{
		MinPrice:     cfg.Scanner.MinPrice,
		MaxPrice:     cfg.Scanner.MaxPrice,
		MinVolume:    cfg.Scanner.MinVolume,
		MinRelVolume: cfg.Scanner.MinRelVolume,
		MaxSymbols:   cfg.Scanner.MaxSymbols,
	})

	fmt.Printf("%d of %d symbols passed the screen\n\n", len(candidates), len(universe))
	fmt.Printf("%-8s %10s %10s\n", "SYMBOL", "PRICE", "RELVOL")
	for _, c := range candidates {
		fmt.Printf("%-8s %10.2f %10.2f\n", c.Symbol, c.Price, c.RelVolume)
	}
	return nil
}
