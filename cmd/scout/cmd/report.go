package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/scout/journal"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Summarize realized P/L from the trade journal",
	Long: `Read the SQLite trade journal and print a performance summary over the
requested window.

Example:
  scout report --db scout.db --days 7`,
	RunE: runReport,
}

var (
	reportDBPath string
	reportDays   int
)

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().StringVar(&reportDBPath, "db", "scout.db", "path to the SQLite journal")
	reportCmd.Flags().IntVar(&reportDays, "days", 1, "lookback window in days")
}

func runReport(cmd *cobra.Command, args []string) error {
	j, err := journal.NewSQLite(reportDBPath)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer j.Close()

	end := time.Now().UTC()
	start := end.AddDate(0, 0, -reportDays)

	report, err := j.BuildReport(start, end)
	if err != nil {
		return fmt.Errorf("build report: %w", err)
	}

	fmt.Printf("Trade report %s to %s\n\n", start.Format("2006-01-02"), end.Format("2006-01-02"))
	fmt.Println(report)
	return nil
}
