package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/rustyeddy/scout/advisor"
	"github.com/rustyeddy/scout/broker"
	"github.com/rustyeddy/scout/config"
	"github.com/rustyeddy/scout/indicators"
	"github.com/rustyeddy/scout/journal"
	"github.com/rustyeddy/scout/logger"
	"github.com/rustyeddy/scout/market"
	"github.com/rustyeddy/scout/market/data"
	"github.com/rustyeddy/scout/metrics"
	"github.com/rustyeddy/scout/position"
	"github.com/rustyeddy/scout/risk"
	"github.com/rustyeddy/scout/scanner"
	"github.com/rustyeddy/scout/session"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the scan-and-trade loop",
	Long: `Run the continuous scan cycle: screen the universe, evaluate candidates,
size and submit accepted setups, and supervise open positions until
interrupted.

Example:
  scout run --config scout.yaml`,
	RunE: runRun,
}

var runConfigPath string

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runConfigPath, "config", "f", "", "path to config file (YAML or JSON); defaults used when omitted")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(runConfigPath)
	if err != nil {
		return err
	}

	if err := logger.Setup(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		File:   cfg.Logging.File,
	}); err != nil {
		return fmt.Errorf("logger: %w", err)
	}

	loc, err := time.LoadLocation(cfg.Session.Timezone)
	if err != nil {
		return fmt.Errorf("timezone: %w", err)
	}

	quotes := market.NewQuoteStore()

	b, err := buildBroker(cfg, quotes)
	if err != nil {
		return err
	}

	j, err := buildJournal(cfg)
	if err != nil {
		return err
	}
	defer j.Close()

	a, timeout, err := buildAdvisor(cfg)
	if err != nil {
		return err
	}
	gateway := advisor.NewGateway(a, timeout, cfg.Advisor.MinConfidence, cfg.Advisor.RecentBars)

	maxHold, err := cfg.Session.ParseMaxHolding()
	if err != nil {
		return fmt.Errorf("max holding duration: %w", err)
	}
	supervisor := position.NewSupervisor(position.Config{
		TrailingATRMultiple:    cfg.Session.TrailingATRMult,
		MaxHoldingDuration:     maxHold,
		MaxAdverseMoveFraction: cfg.Session.MaxAdverseMove,
		PartialExitFraction:    cfg.Session.PartialExitFrac,
	}, b, j)

	interval, err := cfg.Session.ParseScanInterval()
	if err != nil {
		return fmt.Errorf("scan interval: %w", err)
	}

	source := data.NewYahooSource(30 * time.Second)
	calendar := market.NewUSEquityCalendar(loc, nil)
	engine := indicators.NewEngine(indicators.DefaultConfig(), loc)

	coord := session.NewCoordinator(session.Config{
		ScanInterval: interval,
		Workers:      cfg.Session.Workers,
		Filters: scanner.Filters{
			MinPrice:     cfg.Scanner.MinPrice,
			MaxPrice:     cfg.Scanner.MaxPrice,
			MinVolume:    cfg.Scanner.MinVolume,
			MinRelVolume: cfg.Scanner.MinRelVolume,
			MaxSymbols:   cfg.Scanner.MaxSymbols,
		},
		Policy: risk.Policy{
			RiskPerTradeFraction: cfg.Risk.RiskPerTradeFraction,
			MaxDollarRisk:        cfg.Risk.MaxDollarRisk,
			MaxPositionSize:      cfg.Risk.MaxPositionSize,
			PortfolioRiskCeiling: cfg.Risk.PortfolioRiskCeiling,
			CashReserveFraction:  cfg.Risk.CashReserveFraction,
		},
		Location: loc,
	}, source, calendar, engine, gateway, supervisor, quotes)

	if cfg.Metrics.Enabled {
		go func() {
			http.Handle("/metrics", metrics.Handler())
			if err := http.ListenAndServe(cfg.Metrics.Addr, nil); err != nil {
				logrus.Errorf("metrics endpoint: %v", err)
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logrus.Infof("scout starting: broker=%s interval=%s workers=%d",
		b.Name(), interval, cfg.Session.Workers)
	if err := coord.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	logrus.Info("scout stopped")
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	cfg, err := config.LoadFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func buildBroker(cfg *config.Config, quotes *market.QuoteStore) (broker.Broker, error) {
	switch cfg.Broker.Type {
	case "alpaca":
		key := cfg.Broker.Key
		secret := cfg.Broker.Secret
		if envKey := os.Getenv("APCA_API_KEY_ID"); envKey != "" {
			key = envKey
		}
		if envSecret := os.Getenv("APCA_API_SECRET_KEY"); envSecret != "" {
			secret = envSecret
		}
		return broker.NewAlpaca(cfg.Broker.BaseURL, key, secret, 30*time.Second), nil
	case "paper":
		return broker.NewPaper(cfg.Broker.Cash, quotes), nil
	default:
		return nil, fmt.Errorf("unknown broker type %q", cfg.Broker.Type)
	}
}

func buildJournal(cfg *config.Config) (journal.Journal, error) {
	switch cfg.Journal.Type {
	case "csv":
		return journal.NewCSV(cfg.Journal.File)
	case "memory":
		return journal.NewMemory(), nil
	default:
		return journal.NewSQLite(cfg.Journal.DBPath)
	}
}

func buildAdvisor(cfg *config.Config) (advisor.Advisor, time.Duration, error) {
	timeout, err := cfg.Advisor.ParseTimeout()
	if err != nil {
		return nil, 0, fmt.Errorf("advisor timeout: %w", err)
	}
	switch cfg.Advisor.Type {
	case "ollama":
		return advisor.NewOllamaAdvisor(cfg.Advisor.URL, cfg.Advisor.Model, timeout), timeout, nil
	default:
		return advisor.StubAdvisor{}, timeout, nil
	}
}
