package journal

import "sync"

// Memory keeps events in a slice. Used by tests and dry runs.
type Memory struct {
	mu     sync.Mutex
	events []TradeEvent
}

func NewMemory() *Memory { return &Memory{} }

func (j *Memory) RecordEvent(e TradeEvent) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.events = append(j.events, e)
	return nil
}

// Events returns a copy of everything recorded so far.
func (j *Memory) Events() []TradeEvent {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]TradeEvent, len(j.events))
	copy(out, j.events)
	return out
}

func (j *Memory) Close() error { return nil }
