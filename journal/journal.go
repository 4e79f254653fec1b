// Package journal records the append-only trade event stream emitted by the
// position supervisor. Events are never mutated after emission; the core
// never reads them back for decisioning.
package journal

import "time"

// EventKind tags a position lifecycle transition.
type EventKind string

const (
	EventOpen       EventKind = "open"
	EventStopAdjust EventKind = "stop_adjust"
	EventScaleOut   EventKind = "scale_out"
	EventClose      EventKind = "close"
	EventRejected   EventKind = "rejected"
)

// TradeEvent is one append-only record of a position transition.
type TradeEvent struct {
	EventID    string
	PositionID string
	Symbol     string
	Kind       EventKind
	Time       time.Time

	Direction string  // long | short
	Quantity  int     // position quantity; shares closed for scale_out
	Price     float64 // fill price for open/scale_out/close, new stop for stop_adjust
	Stop      float64
	Target    float64

	RealizedPL float64 // set only on close
	Reason     string
}

// Journal persists trade events.
type Journal interface {
	RecordEvent(TradeEvent) error
	Close() error
}
