// Package market defines the read-only market data types the rest of the
// system consumes: bars, quotes, and per-symbol snapshots.
package market

import "time"

// Bar represents one OHLCV candlestick.
type Bar struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Quote is the latest traded state for a symbol.
type Quote struct {
	Symbol    string
	Time      time.Time
	Price     float64
	Volume    float64 // cumulative session volume
	AvgVolume float64 // historical average volume baseline
}

// RelVolume returns current session volume divided by the average baseline.
// Zero baseline yields 0, not a division error.
func (q Quote) RelVolume() float64 {
	if q.AvgVolume <= 0 {
		return 0
	}
	return q.Volume / q.AvgVolume
}

// Snapshot is a per-symbol view of the market captured at one instant.
// A snapshot is immutable once produced and owned by the cycle that
// requested it.
type Snapshot struct {
	Symbol string
	Bars   []Bar // oldest first
	Quote  Quote
	Time   time.Time
}

// LastBars returns the trailing n bars (fewer if the series is shorter).
// The returned slice aliases the snapshot; callers must not mutate it.
func (s *Snapshot) LastBars(n int) []Bar {
	if n <= 0 || len(s.Bars) == 0 {
		return nil
	}
	if n >= len(s.Bars) {
		return s.Bars
	}
	return s.Bars[len(s.Bars)-n:]
}

// SessionBars returns the bars belonging to the current session, defined as
// the trailing run of bars sharing the calendar date (in loc) of the last bar.
// VWAP is computed over exactly this window.
func (s *Snapshot) SessionBars(loc *time.Location) []Bar {
	if len(s.Bars) == 0 {
		return nil
	}
	if loc == nil {
		loc = time.UTC
	}
	last := s.Bars[len(s.Bars)-1].Time.In(loc)
	y, m, d := last.Date()
	start := len(s.Bars) - 1
	for start > 0 {
		by, bm, bd := s.Bars[start-1].Time.In(loc).Date()
		if by != y || bm != m || bd != d {
			break
		}
		start--
	}
	return s.Bars[start:]
}
