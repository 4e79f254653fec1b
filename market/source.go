package market

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrNoData = errors.New("market: no data for symbol")

// SnapshotSource supplies per-symbol snapshots. Implementations may be a
// live data feed or a deterministic replay; the core treats both identically
// and skips a symbol for the cycle when data is missing or partial.
type SnapshotSource interface {
	Universe(ctx context.Context) ([]string, error)
	GetQuote(ctx context.Context, symbol string) (Quote, error)
	GetSnapshot(ctx context.Context, symbol string) (*Snapshot, error)
}

// Calendar reports whether the market session is open. New entries are gated
// on it; exit supervision for open positions is not.
type Calendar interface {
	IsOpen(ctx context.Context, at time.Time) (bool, error)
}

// QuoteStore caches the latest quote per symbol for a cycle.
type QuoteStore struct {
	mu     sync.RWMutex
	quotes map[string]Quote
}

func NewQuoteStore() *QuoteStore {
	return &QuoteStore{quotes: make(map[string]Quote)}
}

func (qs *QuoteStore) Set(q Quote) {
	qs.mu.Lock()
	defer qs.mu.Unlock()
	qs.quotes[q.Symbol] = q
}

func (qs *QuoteStore) Get(symbol string) (Quote, error) {
	qs.mu.RLock()
	defer qs.mu.RUnlock()
	q, ok := qs.quotes[symbol]
	if !ok {
		return Quote{}, ErrNoData
	}
	return q, nil
}
