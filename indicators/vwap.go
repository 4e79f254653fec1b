package indicators

import (
	"fmt"

	"github.com/rustyeddy/scout/market"
)

// VWAP calculates the cumulative volume-weighted average price over the
// given session bars (Σ typical price · volume / Σ volume). Callers pass the
// current session's bars only; the window resets at each session boundary.
func VWAP(bars []market.Bar) (float64, error) {
	if len(bars) == 0 {
		return 0, fmt.Errorf("%w: vwap needs at least 1 bar", ErrInsufficientHistory)
	}

	var cumPV, cumVol float64
	for _, b := range bars {
		typical := (b.High + b.Low + b.Close) / 3
		cumPV += typical * b.Volume
		cumVol += b.Volume
	}
	if cumVol == 0 {
		// No volume traded this session; fall back to the last close.
		return bars[len(bars)-1].Close, nil
	}
	return cumPV / cumVol, nil
}
