package data

import (
	"context"
	"sync"
	"time"

	"github.com/rustyeddy/scout/market"
)

// ReplaySource serves pre-loaded snapshots from memory. It backs tests and
// dry runs where the scan pipeline must be exactly reproducible.
type ReplaySource struct {
	mu    sync.RWMutex
	snaps map[string]*market.Snapshot
	open  bool
}

func NewReplaySource() *ReplaySource {
	return &ReplaySource{snaps: make(map[string]*market.Snapshot), open: true}
}

// Load installs or replaces the snapshot for its symbol.
func (r *ReplaySource) Load(snap *market.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps[snap.Symbol] = snap
}

// SetOpen flips the session state reported by IsOpen.
func (r *ReplaySource) SetOpen(open bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.open = open
}

func (r *ReplaySource) Universe(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	symbols := make([]string, 0, len(r.snaps))
	for s := range r.snaps {
		symbols = append(symbols, s)
	}
	return symbols, nil
}

func (r *ReplaySource) GetQuote(ctx context.Context, symbol string) (market.Quote, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	snap, ok := r.snaps[symbol]
	if !ok {
		return market.Quote{}, market.ErrNoData
	}
	return snap.Quote, nil
}

func (r *ReplaySource) GetSnapshot(ctx context.Context, symbol string) (*market.Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	snap, ok := r.snaps[symbol]
	if !ok {
		return nil, market.ErrNoData
	}
	return snap, nil
}

// IsOpen implements market.Calendar so the replay source can drive the
// session gate in tests.
func (r *ReplaySource) IsOpen(ctx context.Context, at time.Time) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.open, nil
}
