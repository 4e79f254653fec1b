// Package indicators computes the technical indicator set used for setup
// evaluation. All functions are deterministic, operate on an immutable bar
// slice, and never mutate their input.
package indicators

import (
	"errors"
	"fmt"
	"time"

	"github.com/rustyeddy/scout/market"
)

// ErrInsufficientHistory is returned when a snapshot has fewer bars than an
// indicator's warmup window requires.
var ErrInsufficientHistory = errors.New("indicators: insufficient history")

// Config holds the lookback windows for one engine instance.
type Config struct {
	RSIPeriod int
	SMAPeriod int
	EMAPeriod int
	ATRPeriod int
}

func DefaultConfig() Config {
	return Config{
		RSIPeriod: 14,
		SMAPeriod: 20,
		EMAPeriod: 9,
		ATRPeriod: 14,
	}
}

// Set is the full per-symbol indicator snapshot for one cycle. Values are
// derived once from a MarketSnapshot and never updated in place.
type Set struct {
	Symbol string
	Time   time.Time // source snapshot timestamp

	RSI  float64
	VWAP float64
	SMA  float64
	EMA  float64
	ATR  float64

	// Advisory context, not used for screening.
	PriceMomentum  float64 // % change over the SMA window
	VolumeMomentum float64 // 5-bar avg volume / 20-bar avg volume
}

// Engine computes indicator sets with fixed lookback windows.
type Engine struct {
	cfg Config
	loc *time.Location // session boundary timezone for VWAP reset
}

func NewEngine(cfg Config, loc *time.Location) *Engine {
	if loc == nil {
		loc = time.UTC
	}
	return &Engine{cfg: cfg, loc: loc}
}

// warmup is the minimum bar count needed by the largest configured window.
// ATR needs one extra bar because true range references the previous close.
func (e *Engine) warmup() int {
	need := e.cfg.RSIPeriod + 1
	if e.cfg.SMAPeriod > need {
		need = e.cfg.SMAPeriod
	}
	if e.cfg.EMAPeriod > need {
		need = e.cfg.EMAPeriod
	}
	if e.cfg.ATRPeriod+1 > need {
		need = e.cfg.ATRPeriod + 1
	}
	return need
}

// Compute derives the indicator set from a snapshot or fails with
// ErrInsufficientHistory when the bar series is too short for any window.
func (e *Engine) Compute(snap *market.Snapshot) (Set, error) {
	if need := e.warmup(); len(snap.Bars) < need {
		return Set{}, fmt.Errorf("%w: %s has %d bars, need %d",
			ErrInsufficientHistory, snap.Symbol, len(snap.Bars), need)
	}

	rsi, err := RSI(snap.Bars, e.cfg.RSIPeriod)
	if err != nil {
		return Set{}, err
	}
	sma, err := SMA(snap.Bars, e.cfg.SMAPeriod)
	if err != nil {
		return Set{}, err
	}
	ema, err := EMA(snap.Bars, e.cfg.EMAPeriod)
	if err != nil {
		return Set{}, err
	}
	atr, err := ATR(snap.Bars, e.cfg.ATRPeriod)
	if err != nil {
		return Set{}, err
	}
	vwap, err := VWAP(snap.SessionBars(e.loc))
	if err != nil {
		return Set{}, err
	}

	return Set{
		Symbol:         snap.Symbol,
		Time:           snap.Time,
		RSI:            rsi,
		VWAP:           vwap,
		SMA:            sma,
		EMA:            ema,
		ATR:            atr,
		PriceMomentum:  priceMomentum(snap.Bars, e.cfg.SMAPeriod),
		VolumeMomentum: volumeMomentum(snap.Bars),
	}, nil
}

// priceMomentum is the % change over the trailing window. Returns 0 when the
// reference close is zero.
func priceMomentum(bars []market.Bar, window int) float64 {
	if len(bars) <= window {
		return 0
	}
	ref := bars[len(bars)-1-window].Close
	if ref == 0 {
		return 0
	}
	return (bars[len(bars)-1].Close - ref) / ref * 100
}

// volumeMomentum is recent (5-bar) average volume over the 20-bar baseline.
func volumeMomentum(bars []market.Bar) float64 {
	if len(bars) < 20 {
		return 0
	}
	var recent, base float64
	for _, b := range bars[len(bars)-5:] {
		recent += b.Volume
	}
	for _, b := range bars[len(bars)-20:] {
		base += b.Volume
	}
	recent /= 5
	base /= 20
	if base == 0 {
		return 0
	}
	return recent / base
}
