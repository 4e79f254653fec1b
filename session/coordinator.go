// Package session drives the periodic scan cycle: screen the universe,
// evaluate candidates concurrently, size and submit accepted setups, and
// supervise open positions. One symbol's failure never aborts the cycle;
// only a universe-level market data failure does.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rustyeddy/scout/advisor"
	"github.com/rustyeddy/scout/broker"
	"github.com/rustyeddy/scout/indicators"
	"github.com/rustyeddy/scout/market"
	"github.com/rustyeddy/scout/metrics"
	"github.com/rustyeddy/scout/position"
	"github.com/rustyeddy/scout/risk"
	"github.com/rustyeddy/scout/scanner"
)

var log = logrus.WithField("component", "session")

// ErrMarketData marks a universe-level data failure that aborts the cycle.
var ErrMarketData = errors.New("session: market data unavailable")

// Config tunes the cycle cadence and evaluation concurrency.
type Config struct {
	ScanInterval time.Duration
	Workers      int
	Filters      scanner.Filters
	Policy       risk.Policy
	Location     *time.Location // exchange timezone for session-scoped indicators
}

// Coordinator owns the cycle loop. It composes the data source, indicator
// engine, advisory gateway, risk policy, and position supervisor; it holds no
// position state of its own.
type Coordinator struct {
	cfg        Config
	source     market.SnapshotSource
	calendar   market.Calendar
	engine     *indicators.Engine
	gateway    *advisor.Gateway
	supervisor *position.Supervisor
	quotes     *market.QuoteStore
}

func NewCoordinator(
	cfg Config,
	source market.SnapshotSource,
	calendar market.Calendar,
	engine *indicators.Engine,
	gateway *advisor.Gateway,
	supervisor *position.Supervisor,
	quotes *market.QuoteStore,
) *Coordinator {
	if cfg.Workers < 1 {
		cfg.Workers = 4
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if quotes == nil {
		quotes = market.NewQuoteStore()
	}
	return &Coordinator{
		cfg:        cfg,
		source:     source,
		calendar:   calendar,
		engine:     engine,
		gateway:    gateway,
		supervisor: supervisor,
		quotes:     quotes,
	}
}

// Run executes cycles at the configured interval until ctx is cancelled. The
// first cycle starts immediately.
func (c *Coordinator) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.cfg.ScanInterval)
	defer ticker.Stop()

	for {
		if err := c.Cycle(ctx, time.Now()); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			metrics.CycleErrors.Inc()
			log.Errorf("cycle failed: %v", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Cycle runs one full pass. Open positions are supervised first and always,
// even outside market hours; new entries are gated on the session calendar.
func (c *Coordinator) Cycle(ctx context.Context, now time.Time) error {
	c.superviseOpen(ctx)

	open, err := c.calendar.IsOpen(ctx, now)
	if err != nil {
		return fmt.Errorf("%w: calendar: %v", ErrMarketData, err)
	}
	if !open {
		log.Debug("market closed, skipping entry scan")
		metrics.CyclesTotal.Inc()
		return nil
	}

	universe, err := c.source.Universe(ctx)
	if err != nil {
		return fmt.Errorf("%w: universe: %v", ErrMarketData, err)
	}

	quotes := c.fetchQuotes(ctx, universe)
	candidates := scanner.Scan(universe, quotes, c.cfg.Filters)
	metrics.CandidatesScanned.Observe(float64(len(candidates)))
	log.Infof("cycle: %d universe, %d candidates", len(universe), len(candidates))

	c.evaluate(ctx, candidates)

	c.publishAccountMetrics(ctx)
	metrics.CyclesTotal.Inc()
	return ctx.Err()
}

// superviseOpen ticks every open position with a fresh price and ATR. A data
// failure for one symbol skips that symbol; the stop recorded at entry still
// protects it at the broker.
func (c *Coordinator) superviseOpen(ctx context.Context) {
	for _, symbol := range c.supervisor.OpenSymbols() {
		if ctx.Err() != nil {
			return
		}
		snap, err := c.source.GetSnapshot(ctx, symbol)
		if err != nil {
			metrics.Rejections.WithLabelValues(metrics.StageData).Inc()
			log.WithField("symbol", symbol).Warnf("supervision snapshot failed: %v", err)
			continue
		}
		set, err := c.engine.Compute(snap)
		if err != nil {
			metrics.Rejections.WithLabelValues(metrics.StageIndicators).Inc()
			log.WithField("symbol", symbol).Warnf("supervision indicators failed: %v", err)
			continue
		}
		price := snap.Quote.Price
		if price == 0 && len(snap.Bars) > 0 {
			price = snap.Bars[len(snap.Bars)-1].Close
		}
		if err := c.supervisor.Tick(ctx, symbol, price, set.ATR, snap.Time); err != nil {
			log.WithField("symbol", symbol).Errorf("supervision tick failed: %v", err)
		}
	}
}

// fetchQuotes pulls quotes for the universe with bounded concurrency.
// Symbols that fail are simply absent from the result.
func (c *Coordinator) fetchQuotes(ctx context.Context, universe []string) map[string]market.Quote {
	var (
		mu     sync.Mutex
		out    = make(map[string]market.Quote, len(universe))
		wg     sync.WaitGroup
		tokens = make(chan struct{}, c.cfg.Workers)
	)

	for _, symbol := range universe {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		tokens <- struct{}{}
		go func(symbol string) {
			defer wg.Done()
			defer func() { <-tokens }()
			q, err := c.source.GetQuote(ctx, symbol)
			if err != nil {
				log.WithField("symbol", symbol).Debugf("quote fetch failed: %v", err)
				return
			}
			c.quotes.Set(q)
			mu.Lock()
			out[symbol] = q
			mu.Unlock()
		}(symbol)
	}
	wg.Wait()
	return out
}

// evaluate fans candidate analysis out over the worker pool. Every stage
// failure is contained to its symbol and logged by fault class.
func (c *Coordinator) evaluate(ctx context.Context, candidates []scanner.Candidate) {
	var (
		wg     sync.WaitGroup
		tokens = make(chan struct{}, c.cfg.Workers)
	)
	for _, cand := range candidates {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		tokens <- struct{}{}
		go func(cand scanner.Candidate) {
			defer wg.Done()
			defer func() { <-tokens }()
			c.evaluateOne(ctx, cand)
		}(cand)
	}
	wg.Wait()
}

// evaluateOne runs the full pipeline for a single candidate: indicators,
// advisory, sizing, submission. Rejections are normal flow, not errors.
func (c *Coordinator) evaluateOne(ctx context.Context, cand scanner.Candidate) {
	slog := log.WithField("symbol", cand.Symbol)

	snap, err := c.source.GetSnapshot(ctx, cand.Symbol)
	if err != nil {
		metrics.Rejections.WithLabelValues(metrics.StageData).Inc()
		slog.Debugf("snapshot failed: %v", err)
		return
	}

	set, err := c.engine.Compute(snap)
	if err != nil {
		metrics.Rejections.WithLabelValues(metrics.StageIndicators).Inc()
		slog.Debugf("indicators: %v", err)
		return
	}

	setup, err := c.gateway.Evaluate(ctx, set, snap)
	if err != nil {
		metrics.Rejections.WithLabelValues(metrics.StageAdvisory).Inc()
		switch {
		case errors.Is(err, advisor.ErrAdvisoryRejected):
			slog.Warnf("advisory response rejected: %v", err)
		case errors.Is(err, advisor.ErrAdvisoryUnavailable):
			slog.Warnf("advisory unavailable, skipping symbol: %v", err)
		default:
			slog.Errorf("advisory: %v", err)
		}
		return
	}
	if setup == nil {
		return
	}
	metrics.SetupsAccepted.Inc()
	slog.Infof("setup accepted: %s entry=%.2f stop=%.2f target=%.2f conf=%.2f",
		setup.Direction, setup.Entry, setup.Stop, setup.Target, setup.Confidence)

	acct, err := c.supervisor.AccountState(ctx)
	if err != nil {
		metrics.Rejections.WithLabelValues(metrics.StageData).Inc()
		slog.Errorf("account state: %v", err)
		return
	}

	order, err := risk.SizeOrder(c.cfg.Policy, *setup, acct)
	if err != nil {
		metrics.Rejections.WithLabelValues(metrics.StageRisk).Inc()
		slog.Infof("sizing rejected: %v", err)
		return
	}

	if err := c.supervisor.Submit(ctx, order); err != nil {
		switch {
		case errors.Is(err, risk.ErrDuplicatePosition):
			metrics.Rejections.WithLabelValues(metrics.StageRisk).Inc()
			slog.Debugf("submit: %v", err)
		case errors.Is(err, risk.ErrRiskRejected):
			// The supervisor re-checks the portfolio ceiling under its lock;
			// a concurrent entry may have taken the remaining headroom since
			// this order was sized.
			metrics.Rejections.WithLabelValues(metrics.StageRisk).Inc()
			slog.Infof("submit rejected: %v", err)
		case errors.Is(err, broker.ErrExecutionFailed):
			metrics.Rejections.WithLabelValues(metrics.StageExecution).Inc()
			slog.Warnf("execution failed: %v", err)
		default:
			metrics.Rejections.WithLabelValues(metrics.StageExecution).Inc()
			slog.Errorf("submit: %v", err)
		}
	}
}

// publishAccountMetrics refreshes the account gauges and logs the end-of-cycle
// summary line.
func (c *Coordinator) publishAccountMetrics(ctx context.Context) {
	openCount := len(c.supervisor.OpenSymbols())
	committed := c.supervisor.CommittedRisk()
	metrics.OpenPositions.Set(float64(openCount))
	metrics.CommittedRisk.Set(committed)

	acct, err := c.supervisor.AccountState(ctx)
	if err != nil {
		log.Warnf("cycle complete: committed_risk=%.2f open_positions=%d (account unavailable: %v)",
			committed, openCount, err)
		return
	}
	metrics.Equity.Set(acct.Equity)
	log.Infof("cycle complete: equity=%.2f committed_risk=%.2f open_positions=%d",
		acct.Equity, committed, openCount)
}

// Quotes exposes the latest quote cache, used by the paper broker for fills.
func (c *Coordinator) Quotes() *market.QuoteStore { return c.quotes }
