// Package config loads and validates the full runtime configuration from a
// YAML or JSON file, with sane defaults for everything a file omits.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete runtime configuration.
type Config struct {
	Session SessionConfig `json:"session" yaml:"session"`
	Scanner ScannerConfig `json:"scanner" yaml:"scanner"`
	Risk    RiskConfig    `json:"risk" yaml:"risk"`
	Advisor AdvisorConfig `json:"advisor" yaml:"advisor"`
	Broker  BrokerConfig  `json:"broker" yaml:"broker"`
	Journal JournalConfig `json:"journal" yaml:"journal"`
	Logging LoggingConfig `json:"logging" yaml:"logging"`
	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`
}

// SessionConfig controls the scan cycle and position supervision.
type SessionConfig struct {
	ScanInterval       string  `json:"scan_interval" yaml:"scan_interval"` // e.g. "1m"
	Workers            int     `json:"workers" yaml:"workers"`
	Timezone           string  `json:"timezone" yaml:"timezone"`
	TrailingATRMult    float64 `json:"trailing_atr_multiple" yaml:"trailing_atr_multiple"`
	MaxHoldingDuration string  `json:"max_holding_duration" yaml:"max_holding_duration"` // e.g. "4h"
	MaxAdverseMove     float64 `json:"max_adverse_move_fraction" yaml:"max_adverse_move_fraction"`
	PartialExitFrac    float64 `json:"partial_exit_fraction" yaml:"partial_exit_fraction"`
}

// ScannerConfig holds the candidate screens.
type ScannerConfig struct {
	MinPrice     float64 `json:"min_price" yaml:"min_price"`
	MaxPrice     float64 `json:"max_price" yaml:"max_price"`
	MinVolume    float64 `json:"min_volume" yaml:"min_volume"`
	MinRelVolume float64 `json:"min_rel_volume" yaml:"min_rel_volume"`
	MaxSymbols   int     `json:"max_symbols" yaml:"max_symbols"`
}

// RiskConfig holds the sizing policy.
type RiskConfig struct {
	RiskPerTradeFraction float64 `json:"risk_per_trade_fraction" yaml:"risk_per_trade_fraction"`
	MaxDollarRisk        float64 `json:"max_dollar_risk" yaml:"max_dollar_risk"`
	MaxPositionSize      int     `json:"max_position_size" yaml:"max_position_size"`
	PortfolioRiskCeiling float64 `json:"portfolio_risk_ceiling" yaml:"portfolio_risk_ceiling"`
	CashReserveFraction  float64 `json:"cash_reserve_fraction" yaml:"cash_reserve_fraction"`
}

// AdvisorConfig selects and tunes the advisory capability.
type AdvisorConfig struct {
	Type          string  `json:"type" yaml:"type"` // "ollama" or "stub"
	URL           string  `json:"url,omitempty" yaml:"url,omitempty"`
	Model         string  `json:"model,omitempty" yaml:"model,omitempty"`
	Timeout       string  `json:"timeout" yaml:"timeout"` // e.g. "30s"
	MinConfidence float64 `json:"min_confidence" yaml:"min_confidence"`
	RecentBars    int     `json:"recent_bars" yaml:"recent_bars"`
}

// BrokerConfig selects the execution venue.
type BrokerConfig struct {
	Type    string  `json:"type" yaml:"type"` // "paper" or "alpaca"
	BaseURL string  `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	Key     string  `json:"key,omitempty" yaml:"key,omitempty"`
	Secret  string  `json:"secret,omitempty" yaml:"secret,omitempty"`
	Cash    float64 `json:"cash,omitempty" yaml:"cash,omitempty"` // paper starting cash
}

// JournalConfig selects the trade event backend.
type JournalConfig struct {
	Type   string `json:"type" yaml:"type"` // "sqlite", "csv", or "memory"
	DBPath string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
	File   string `json:"file,omitempty" yaml:"file,omitempty"`
}

// LoggingConfig mirrors logger.Config.
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
	File   string `json:"file,omitempty" yaml:"file,omitempty"`
}

// MetricsConfig controls the Prometheus scrape endpoint.
type MetricsConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr" yaml:"addr"` // e.g. ":9090"
}

// Default returns a configuration usable for a paper-trading dry run with no
// file at all.
func Default() *Config {
	return &Config{
		Session: SessionConfig{
			ScanInterval:       "1m",
			Workers:            4,
			Timezone:           "America/New_York",
			TrailingATRMult:    1.5,
			MaxHoldingDuration: "6h",
			MaxAdverseMove:     0.05,
			PartialExitFrac:    0.5,
		},
		Scanner: ScannerConfig{
			MinPrice:     5,
			MaxPrice:     500,
			MinVolume:    500_000,
			MinRelVolume: 1.5,
			MaxSymbols:   20,
		},
		Risk: RiskConfig{
			RiskPerTradeFraction: 0.01,
			MaxDollarRisk:        500,
			MaxPositionSize:      1000,
			PortfolioRiskCeiling: 0.06,
			CashReserveFraction:  0.10,
		},
		Advisor: AdvisorConfig{
			Type:          "stub",
			Timeout:       "30s",
			MinConfidence: 0.6,
			RecentBars:    20,
		},
		Broker: BrokerConfig{
			Type: "paper",
			Cash: 100_000,
		},
		Journal: JournalConfig{
			Type:   "sqlite",
			DBPath: "scout.db",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    ":9090",
		},
	}
}

// LoadFromFile loads configuration from a YAML or JSON file, layered over the
// defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()

	// Try YAML first, fall back to JSON.
	if err := yaml.Unmarshal(data, cfg); err != nil {
		if jerr := json.Unmarshal(data, cfg); jerr != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// SaveToFile writes the configuration as YAML (.yaml/.yml) or indented JSON.
func (c *Config) SaveToFile(path string) error {
	var (
		data []byte
		err  error
	)
	if ext := len(path); (ext > 5 && path[ext-5:] == ".yaml") || (ext > 4 && path[ext-4:] == ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate checks every cross-field constraint the runtime relies on.
func (c *Config) Validate() error {
	if _, err := c.Session.ParseScanInterval(); err != nil {
		return fmt.Errorf("session.scan_interval: %w", err)
	}
	if c.Session.MaxHoldingDuration != "" {
		if _, err := time.ParseDuration(c.Session.MaxHoldingDuration); err != nil {
			return fmt.Errorf("session.max_holding_duration: %w", err)
		}
	}
	if c.Session.Workers < 1 {
		return fmt.Errorf("session.workers must be >= 1")
	}
	if _, err := time.LoadLocation(c.Session.Timezone); err != nil {
		return fmt.Errorf("session.timezone: %w", err)
	}
	if c.Session.MaxAdverseMove < 0 || c.Session.MaxAdverseMove > 1 {
		return fmt.Errorf("session.max_adverse_move_fraction must be in [0,1]")
	}
	if c.Session.PartialExitFrac < 0 || c.Session.PartialExitFrac >= 1 {
		return fmt.Errorf("session.partial_exit_fraction must be in [0,1)")
	}

	if c.Scanner.MinPrice < 0 || c.Scanner.MaxPrice <= 0 || c.Scanner.MinPrice > c.Scanner.MaxPrice {
		return fmt.Errorf("scanner price bounds invalid: min=%v max=%v", c.Scanner.MinPrice, c.Scanner.MaxPrice)
	}
	if c.Scanner.MaxSymbols < 1 {
		return fmt.Errorf("scanner.max_symbols must be >= 1")
	}

	if c.Risk.RiskPerTradeFraction <= 0 || c.Risk.RiskPerTradeFraction > 0.1 {
		return fmt.Errorf("risk.risk_per_trade_fraction must be in (0, 0.1]")
	}
	if c.Risk.PortfolioRiskCeiling < 0 || c.Risk.PortfolioRiskCeiling > 1 {
		return fmt.Errorf("risk.portfolio_risk_ceiling must be in [0,1]")
	}
	if c.Risk.CashReserveFraction < 0 || c.Risk.CashReserveFraction >= 1 {
		return fmt.Errorf("risk.cash_reserve_fraction must be in [0,1)")
	}

	switch c.Advisor.Type {
	case "ollama":
		if c.Advisor.URL == "" || c.Advisor.Model == "" {
			return fmt.Errorf("advisor.url and advisor.model are required for type ollama")
		}
	case "stub":
	default:
		return fmt.Errorf("advisor.type must be ollama or stub, got %q", c.Advisor.Type)
	}
	if _, err := c.Advisor.ParseTimeout(); err != nil {
		return fmt.Errorf("advisor.timeout: %w", err)
	}
	if c.Advisor.MinConfidence < 0 || c.Advisor.MinConfidence > 1 {
		return fmt.Errorf("advisor.min_confidence must be in [0,1]")
	}

	switch c.Broker.Type {
	case "alpaca":
		if c.Broker.Key == "" || c.Broker.Secret == "" {
			return fmt.Errorf("broker.key and broker.secret are required for type alpaca")
		}
	case "paper":
		if c.Broker.Cash <= 0 {
			return fmt.Errorf("broker.cash must be > 0 for paper trading")
		}
	default:
		return fmt.Errorf("broker.type must be paper or alpaca, got %q", c.Broker.Type)
	}

	switch c.Journal.Type {
	case "sqlite":
		if c.Journal.DBPath == "" {
			return fmt.Errorf("journal.db_path is required for type sqlite")
		}
	case "csv":
		if c.Journal.File == "" {
			return fmt.Errorf("journal.file is required for type csv")
		}
	case "memory":
	default:
		return fmt.Errorf("journal.type must be sqlite, csv, or memory, got %q", c.Journal.Type)
	}

	return nil
}

// ParseScanInterval returns the cycle cadence as a duration.
func (s SessionConfig) ParseScanInterval() (time.Duration, error) {
	if s.ScanInterval == "" {
		return time.Minute, nil
	}
	d, err := time.ParseDuration(s.ScanInterval)
	if err != nil {
		return 0, err
	}
	if d < time.Second {
		return 0, fmt.Errorf("interval %s too short", d)
	}
	return d, nil
}

// ParseMaxHolding returns the time-stop duration, zero when disabled.
func (s SessionConfig) ParseMaxHolding() (time.Duration, error) {
	if s.MaxHoldingDuration == "" {
		return 0, nil
	}
	return time.ParseDuration(s.MaxHoldingDuration)
}

// ParseTimeout returns the per-call advisory timeout.
func (a AdvisorConfig) ParseTimeout() (time.Duration, error) {
	if a.Timeout == "" {
		return 30 * time.Second, nil
	}
	return time.ParseDuration(a.Timeout)
}
