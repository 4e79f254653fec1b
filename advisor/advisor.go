// Package advisor turns indicator snapshots into validated trade setups by
// consulting an external advisory capability. The capability is opaque and
// non-deterministic; everything it returns is validated against a strict
// schema before a setup is produced.
package advisor

import (
	"context"
	"errors"
	"time"

	"github.com/rustyeddy/scout/indicators"
	"github.com/rustyeddy/scout/market"
)

var (
	// ErrAdvisoryRejected marks a schema or content fault in the advisory
	// response. Content faults are never retried.
	ErrAdvisoryRejected = errors.New("advisor: response rejected")

	// ErrAdvisoryUnavailable marks a transport fault (timeout, connection)
	// after the single permitted retry. The symbol is skipped for the cycle.
	ErrAdvisoryUnavailable = errors.New("advisor: capability unavailable")
)

// Direction of a proposed trade.
type Direction string

const (
	Long  Direction = "long"
	Short Direction = "short"
	None  Direction = "none"
)

func (d Direction) valid() bool {
	return d == Long || d == Short || d == None
}

// Request is the structured market description sent to the capability.
// Field order is fixed so serialization is byte-stable for identical inputs.
type Request struct {
	Symbol     string       `json:"symbol"`
	Price      float64      `json:"price"`
	RSI        float64      `json:"rsi"`
	VWAP       float64      `json:"vwap"`
	SMA        float64      `json:"sma"`
	EMA        float64      `json:"ema"`
	ATR        float64      `json:"atr"`
	PriceMom   float64      `json:"price_momentum"`
	VolumeMom  float64      `json:"volume_momentum"`
	RecentBars []market.Bar `json:"recent_bars"`
}

// Response is the raw trade opinion returned by the capability, prior to
// validation.
type Response struct {
	Direction  Direction `json:"direction"`
	Entry      float64   `json:"entry"`
	Stop       float64   `json:"stop"`
	Target     float64   `json:"target"`
	Confidence float64   `json:"confidence"`
	Rationale  string    `json:"rationale"`
}

// Advisor maps a structured market description to a structured trade
// opinion. Implementations: the live LLM client and the deterministic stub.
type Advisor interface {
	Advise(ctx context.Context, req Request) (Response, error)
}

// Setup is a validated, accepted trade proposal. Immutable once produced.
type Setup struct {
	Symbol     string
	Direction  Direction
	Entry      float64
	Stop       float64
	Target     float64
	Confidence float64
	Rationale  string
	Time       time.Time // source snapshot timestamp
}

// BuildRequest assembles the capability request from one cycle's data.
// recentBars bounds how much price action is shared with the capability.
func BuildRequest(set indicators.Set, snap *market.Snapshot, recentBars int) Request {
	price := snap.Quote.Price
	if price == 0 && len(snap.Bars) > 0 {
		price = snap.Bars[len(snap.Bars)-1].Close
	}
	return Request{
		Symbol:     set.Symbol,
		Price:      price,
		RSI:        set.RSI,
		VWAP:       set.VWAP,
		SMA:        set.SMA,
		EMA:        set.EMA,
		ATR:        set.ATR,
		PriceMom:   set.PriceMomentum,
		VolumeMom:  set.VolumeMomentum,
		RecentBars: snap.LastBars(recentBars),
	}
}
