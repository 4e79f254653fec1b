// Package position owns the lifecycle state machine for every position:
// entry confirmation, stop/target/trailing supervision, time-based exit, and
// exit dispatch. It is the only component that mutates position or committed
// risk state, and it does so under a single mutex.
package position

import (
	"time"

	"github.com/rustyeddy/scout/advisor"
)

// State of a position. PendingEntry and Open are live; Closed and Failed are
// terminal.
type State string

const (
	PendingEntry State = "pending_entry"
	Open         State = "open"
	Closed       State = "closed"
	Failed       State = "failed"
)

// Terminal reports whether s can never transition again.
func (s State) Terminal() bool {
	return s == Closed || s == Failed
}

// validTransitions encodes the full state machine. Everything not listed is
// illegal and guarded against at runtime.
var validTransitions = map[State][]State{
	PendingEntry: {Open, Failed},
	Open:         {Closed, Failed},
}

func canTransition(from, to State) bool {
	for _, t := range validTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// Position is one supervised trade. At most one non-terminal Position exists
// per symbol at any time.
type Position struct {
	ID        string
	Symbol    string
	Direction advisor.Direction
	Quantity  int

	EntryOrderID string
	EntryPrice   float64
	Stop         float64 // current stop; ratchets favorably, never loosens
	Target       float64
	DollarRisk   float64

	State    State
	Trailing bool // stop has ratcheted at least once
	Scaled   bool // partial exit already taken at target

	OpenedAt   time.Time
	ClosedAt   time.Time // zero while open
	RealizedPL float64   // set only at close
}

// UnrealizedPL values the position at the given mark.
func (p *Position) UnrealizedPL(mark float64) float64 {
	pl := float64(p.Quantity) * (mark - p.EntryPrice)
	if p.Direction == advisor.Short {
		pl = -pl
	}
	return pl
}

// stopHit reports whether price has crossed the protective stop.
func (p *Position) stopHit(price float64) bool {
	if p.Direction == advisor.Long {
		return price <= p.Stop
	}
	return price >= p.Stop
}

// targetHit reports whether price has reached the profit target.
func (p *Position) targetHit(price float64) bool {
	if p.Direction == advisor.Long {
		return price >= p.Target
	}
	return price <= p.Target
}
