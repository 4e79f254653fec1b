package indicators

import (
	"fmt"

	"github.com/rustyeddy/scout/market"
)

// SMA calculates the Simple Moving Average of closes for the given period.
func SMA(bars []market.Bar, period int) (float64, error) {
	if period <= 0 {
		return 0, fmt.Errorf("sma: period must be positive, got %d", period)
	}
	if len(bars) < period {
		return 0, fmt.Errorf("%w: sma needs %d bars, got %d",
			ErrInsufficientHistory, period, len(bars))
	}

	sum := 0.0
	for i := len(bars) - period; i < len(bars); i++ {
		sum += bars[i].Close
	}
	return sum / float64(period), nil
}

// EMA calculates the Exponential Moving Average of closes for the given
// period, seeded from the SMA of the first period window.
func EMA(bars []market.Bar, period int) (float64, error) {
	if period <= 0 {
		return 0, fmt.Errorf("ema: period must be positive, got %d", period)
	}
	if len(bars) < period {
		return 0, fmt.Errorf("%w: ema needs %d bars, got %d",
			ErrInsufficientHistory, period, len(bars))
	}

	multiplier := 2.0 / float64(period+1)

	sma := 0.0
	for i := 0; i < period; i++ {
		sma += bars[i].Close
	}
	ema := sma / float64(period)

	for i := period; i < len(bars); i++ {
		ema = (bars[i].Close-ema)*multiplier + ema
	}
	return ema, nil
}
