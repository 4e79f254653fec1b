package journal

import (
	"errors"
	"fmt"
)

// ReplayPL reconstructs a position's realized P&L from its event sequence
// (open → (stop_adjust | scale_out)* → close). The result must equal the
// live-computed value carried on the close event; callers can use both to
// cross-check journal integrity.
func ReplayPL(events []TradeEvent) (float64, error) {
	var (
		opened    bool
		direction string
		remaining int
		entry     float64
		total     float64
	)

	leg := func(qty int, price float64) float64 {
		pl := float64(qty) * (price - entry)
		if direction == "short" {
			pl = -pl
		}
		return pl
	}

	for _, e := range events {
		switch e.Kind {
		case EventOpen:
			if opened {
				return 0, errors.New("replay: duplicate open event")
			}
			opened = true
			direction = e.Direction
			remaining = e.Quantity
			entry = e.Price

		case EventStopAdjust:
			if !opened {
				return 0, errors.New("replay: stop adjust before open")
			}

		case EventScaleOut:
			if !opened {
				return 0, errors.New("replay: scale out before open")
			}
			if e.Quantity >= remaining {
				return 0, fmt.Errorf("replay: scale out of %d exceeds remaining %d", e.Quantity, remaining)
			}
			total += leg(e.Quantity, e.Price)
			remaining -= e.Quantity

		case EventClose:
			if !opened {
				return 0, errors.New("replay: close before open")
			}
			return total + leg(remaining, e.Price), nil

		case EventRejected:
			return 0, errors.New("replay: position was rejected, no P&L")

		default:
			return 0, fmt.Errorf("replay: unknown event kind %q", e.Kind)
		}
	}
	return 0, errors.New("replay: no close event")
}
