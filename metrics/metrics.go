// Package metrics exposes the Prometheus instrumentation for the scan and
// trade pipeline. Collectors are package-level and registered at init, so any
// component can record without plumbing a registry through.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	CyclesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scout_cycles_total",
		Help: "Completed scan cycles.",
	})

	CycleErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scout_cycle_errors_total",
		Help: "Cycles aborted by a market data failure.",
	})

	CandidatesScanned = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "scout_candidates_per_cycle",
		Help:    "Candidates surviving the screen each cycle.",
		Buckets: prometheus.LinearBuckets(0, 5, 10),
	})

	SetupsAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scout_setups_accepted_total",
		Help: "Validated setups that passed the confidence gate.",
	})

	Rejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scout_rejections_total",
		Help: "Symbols dropped from the pipeline, by stage.",
	}, []string{"stage"})

	OpenPositions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "scout_open_positions",
		Help: "Currently open positions.",
	})

	CommittedRisk = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "scout_committed_risk_dollars",
		Help: "Aggregate dollar risk across open positions.",
	})

	Equity = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "scout_account_equity_dollars",
		Help: "Last observed account equity.",
	})

	TradesClosed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scout_trades_closed_total",
		Help: "Closed trades, by exit reason.",
	}, []string{"reason"})
)

// Rejection stages recorded on the Rejections counter.
const (
	StageIndicators = "indicators"
	StageAdvisory   = "advisory"
	StageRisk       = "risk"
	StageExecution  = "execution"
	StageData       = "data"
)

// Handler serves the scrape endpoint.
func Handler() http.Handler { return promhttp.Handler() }
