package position

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/scout/advisor"
	"github.com/rustyeddy/scout/broker"
	"github.com/rustyeddy/scout/journal"
	"github.com/rustyeddy/scout/risk"
)

// fakeBroker fills every order at a scripted price, or fails on demand. An
// optional fillDelay holds each order in flight so tests can overlap
// submissions from concurrent workers.
type fakeBroker struct {
	mu        sync.Mutex
	fillPrice float64
	fillDelay time.Duration
	failNext  bool
	submitted []broker.OrderRequest
	account   broker.Account
}

func (b *fakeBroker) Name() string { return "fake" }

func (b *fakeBroker) GetAccount(ctx context.Context) (broker.Account, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.account, nil
}

func (b *fakeBroker) SubmitOrder(ctx context.Context, req broker.OrderRequest) (broker.Fill, error) {
	b.mu.Lock()
	b.submitted = append(b.submitted, req)
	fail := b.failNext
	b.failNext = false
	price := b.fillPrice
	delay := b.fillDelay
	b.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if fail {
		return broker.Fill{}, errors.New("venue unavailable")
	}
	return broker.Fill{
		OrderID:  "ord-" + req.Symbol,
		Symbol:   req.Symbol,
		Side:     req.Side,
		Quantity: req.Quantity,
		Price:    price,
		Time:     time.Date(2025, 6, 2, 15, 0, 0, 0, time.UTC),
	}, nil
}

func newSupervisor(t *testing.T, cfg Config, b *fakeBroker) (*Supervisor, *journal.Memory) {
	t.Helper()
	j := journal.NewMemory()
	return NewSupervisor(cfg, b, j), j
}

func longOrder(symbol string, qty int, entry, stop, target float64) risk.SizedOrder {
	return risk.SizedOrder{
		Setup: advisor.Setup{
			Symbol:    symbol,
			Direction: advisor.Long,
			Entry:     entry,
			Stop:      stop,
			Target:    target,
			Rationale: "test entry",
		},
		OrderID:    "client-" + symbol,
		Quantity:   qty,
		DollarRisk: float64(qty) * (entry - stop),
	}
}

func shortOrder(symbol string, qty int, entry, stop, target float64) risk.SizedOrder {
	o := longOrder(symbol, qty, entry, stop, target)
	o.Direction = advisor.Short
	o.DollarRisk = float64(qty) * (stop - entry)
	return o
}

func TestSubmitOpensOnFill(t *testing.T) {
	b := &fakeBroker{fillPrice: 25.00}
	s, j := newSupervisor(t, Config{}, b)

	err := s.Submit(context.Background(), longOrder("ACME", 400, 25.00, 24.50, 26.00))
	require.NoError(t, err)

	pos, ok := s.Get("ACME")
	require.True(t, ok)
	assert.Equal(t, Open, pos.State)
	assert.Equal(t, 25.00, pos.EntryPrice)
	assert.Equal(t, 400, pos.Quantity)
	assert.InDelta(t, 200.0, s.CommittedRisk(), 1e-9)

	events := j.Events()
	require.Len(t, events, 1)
	assert.Equal(t, journal.EventOpen, events[0].Kind)
	assert.Equal(t, pos.ID, events[0].PositionID)
	assert.Equal(t, broker.Buy, b.submitted[0].Side)
}

func TestSubmitFailureLeavesNothingCommitted(t *testing.T) {
	b := &fakeBroker{fillPrice: 25.00, failNext: true}
	s, j := newSupervisor(t, Config{}, b)

	err := s.Submit(context.Background(), longOrder("ACME", 400, 25.00, 24.50, 26.00))
	require.Error(t, err)
	assert.ErrorIs(t, err, broker.ErrExecutionFailed)

	pos, ok := s.Get("ACME")
	require.True(t, ok)
	assert.Equal(t, Failed, pos.State)
	assert.Zero(t, s.CommittedRisk())
	assert.Empty(t, s.OpenSymbols())

	events := j.Events()
	require.Len(t, events, 1)
	assert.Equal(t, journal.EventRejected, events[0].Kind)

	// The symbol slot is free again.
	require.NoError(t, s.Submit(context.Background(), longOrder("ACME", 400, 25.00, 24.50, 26.00)))
	pos, _ = s.Get("ACME")
	assert.Equal(t, Open, pos.State)
}

func TestSubmitRejectsDuplicateSymbol(t *testing.T) {
	b := &fakeBroker{fillPrice: 25.00}
	s, _ := newSupervisor(t, Config{}, b)

	require.NoError(t, s.Submit(context.Background(), longOrder("ACME", 100, 25.00, 24.50, 26.00)))
	err := s.Submit(context.Background(), longOrder("ACME", 100, 25.00, 24.50, 26.00))
	assert.ErrorIs(t, err, risk.ErrDuplicatePosition)
	assert.Len(t, b.submitted, 1, "duplicate must be rejected before reaching the broker")
}

func TestSubmitConcurrentCeilingAdmitsOnlyOne(t *testing.T) {
	// Two workers race for the last slice of ceiling headroom while their
	// entry orders are in flight at the broker. The supervisor reserves risk
	// before dispatch, so only one may open.
	b := &fakeBroker{fillPrice: 25.00, fillDelay: 50 * time.Millisecond}
	s, _ := newSupervisor(t, Config{}, b)

	order := func(symbol string) risk.SizedOrder {
		o := longOrder(symbol, 40, 25.00, 24.50, 26.00) // $20 risk each
		o.RiskCeiling = 30.00
		return o
	}

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for _, symbol := range []string{"AAAA", "BBBB"} {
		wg.Add(1)
		go func(symbol string) {
			defer wg.Done()
			errs <- s.Submit(context.Background(), order(symbol))
		}(symbol)
	}
	wg.Wait()
	close(errs)

	var opened, rejected int
	for err := range errs {
		switch {
		case err == nil:
			opened++
		case errors.Is(err, risk.ErrRiskRejected):
			rejected++
		default:
			t.Fatalf("unexpected submit error: %v", err)
		}
	}
	assert.Equal(t, 1, opened, "exactly one order fits under the ceiling")
	assert.Equal(t, 1, rejected)
	assert.Len(t, s.OpenSymbols(), 1)
	assert.LessOrEqual(t, s.CommittedRisk(), 30.00)
	assert.InDelta(t, 20.0, s.CommittedRisk(), 1e-9)
}

func TestTickStopCrossClosesWithLoss(t *testing.T) {
	b := &fakeBroker{fillPrice: 25.00}
	s, j := newSupervisor(t, Config{}, b)
	require.NoError(t, s.Submit(context.Background(), longOrder("ACME", 400, 25.00, 24.50, 26.00)))

	b.fillPrice = 24.45 // exit fills just through the stop
	now := time.Date(2025, 6, 2, 15, 30, 0, 0, time.UTC)
	require.NoError(t, s.Tick(context.Background(), "ACME", 24.45, 0.3, now))

	pos, _ := s.Get("ACME")
	assert.Equal(t, Closed, pos.State)
	assert.InDelta(t, -220.0, pos.RealizedPL, 1e-9) // 400 * (24.45 - 25.00)
	assert.Zero(t, s.CommittedRisk())

	events := j.Events()
	require.Len(t, events, 2)
	assert.Equal(t, journal.EventClose, events[1].Kind)
	assert.Equal(t, ReasonStopLoss, events[1].Reason)
	assert.InDelta(t, -220.0, events[1].RealizedPL, 1e-9)
}

func TestTickTargetCrossClosesWithGain(t *testing.T) {
	b := &fakeBroker{fillPrice: 25.00}
	s, j := newSupervisor(t, Config{}, b)
	require.NoError(t, s.Submit(context.Background(), longOrder("ACME", 400, 25.00, 24.50, 26.00)))

	b.fillPrice = 26.05
	require.NoError(t, s.Tick(context.Background(), "ACME", 26.05, 0.3, time.Now()))

	pos, _ := s.Get("ACME")
	assert.Equal(t, Closed, pos.State)
	assert.InDelta(t, 420.0, pos.RealizedPL, 1e-9)

	events := j.Events()
	require.Len(t, events, 2)
	assert.Equal(t, ReasonTakeProfit, events[1].Reason)

	// Exit order is the opposite side at the full quantity.
	exit := b.submitted[1]
	assert.Equal(t, broker.Sell, exit.Side)
	assert.Equal(t, 400, exit.Quantity)
}

func TestTickPartialExitAtTarget(t *testing.T) {
	b := &fakeBroker{fillPrice: 25.00}
	s, j := newSupervisor(t, Config{PartialExitFraction: 0.5}, b)
	require.NoError(t, s.Submit(context.Background(), longOrder("ACME", 400, 25.00, 24.50, 26.00)))

	// Target reached: half scales out, the rest keeps running.
	b.fillPrice = 26.05
	require.NoError(t, s.Tick(context.Background(), "ACME", 26.05, 0.3, time.Now()))

	pos, _ := s.Get("ACME")
	assert.Equal(t, Open, pos.State)
	assert.True(t, pos.Scaled)
	assert.Equal(t, 200, pos.Quantity)
	assert.InDelta(t, 210.0, pos.RealizedPL, 1e-9) // 200 * (26.05 - 25.00)
	assert.InDelta(t, 100.0, pos.DollarRisk, 1e-9)
	assert.InDelta(t, 100.0, s.CommittedRisk(), 1e-9)

	scaleOut := b.submitted[1]
	assert.Equal(t, broker.Sell, scaleOut.Side)
	assert.Equal(t, 200, scaleOut.Quantity)

	// The remainder later stops out; totals accumulate across both legs.
	b.fillPrice = 24.45
	require.NoError(t, s.Tick(context.Background(), "ACME", 24.45, 0.3, time.Now()))

	pos, _ = s.Get("ACME")
	assert.Equal(t, Closed, pos.State)
	assert.InDelta(t, 100.0, pos.RealizedPL, 1e-9) // 210 + 200*(24.45-25.00)
	assert.Zero(t, s.CommittedRisk())

	events := j.Events()
	require.Len(t, events, 3)
	assert.Equal(t, journal.EventScaleOut, events[1].Kind)
	assert.Equal(t, 200, events[1].Quantity)
	assert.InDelta(t, 210.0, events[1].RealizedPL, 1e-9)
	assert.Equal(t, journal.EventClose, events[2].Kind)
	assert.InDelta(t, 100.0, events[2].RealizedPL, 1e-9)

	pl, err := journal.ReplayPL(events)
	require.NoError(t, err)
	assert.InDelta(t, events[2].RealizedPL, pl, 1e-9,
		"replayed value must match the recorded close")
}

func TestTickPartialExitNotRepeated(t *testing.T) {
	b := &fakeBroker{fillPrice: 25.00}
	s, _ := newSupervisor(t, Config{PartialExitFraction: 0.5}, b)
	require.NoError(t, s.Submit(context.Background(), longOrder("ACME", 400, 25.00, 24.50, 26.00)))

	b.fillPrice = 26.05
	require.NoError(t, s.Tick(context.Background(), "ACME", 26.05, 0.3, time.Now()))
	pos, _ := s.Get("ACME")
	require.True(t, pos.Scaled)

	// Still above target on the next tick: the remainder exits in full.
	b.fillPrice = 26.10
	require.NoError(t, s.Tick(context.Background(), "ACME", 26.10, 0.3, time.Now()))

	pos, _ = s.Get("ACME")
	assert.Equal(t, Closed, pos.State)
	assert.InDelta(t, 430.0, pos.RealizedPL, 1e-9) // 200*1.05 + 200*1.10
	assert.Equal(t, 200, b.submitted[2].Quantity)
}

func TestTickShortStopIsAboveEntry(t *testing.T) {
	b := &fakeBroker{fillPrice: 50.00}
	s, _ := newSupervisor(t, Config{}, b)
	require.NoError(t, s.Submit(context.Background(), shortOrder("ACME", 200, 50.00, 51.00, 47.00)))

	b.fillPrice = 51.10
	require.NoError(t, s.Tick(context.Background(), "ACME", 51.10, 0.5, time.Now()))

	pos, _ := s.Get("ACME")
	assert.Equal(t, Closed, pos.State)
	assert.InDelta(t, -220.0, pos.RealizedPL, 1e-9) // -(200 * (51.10 - 50.00))
	assert.Equal(t, broker.Buy, b.submitted[1].Side, "short exit buys to cover")
}

func TestTickTrailingRatchetsUpOnly(t *testing.T) {
	b := &fakeBroker{fillPrice: 25.00}
	s, j := newSupervisor(t, Config{TrailingATRMultiple: 2}, b)
	require.NoError(t, s.Submit(context.Background(), longOrder("ACME", 400, 25.00, 24.50, 30.00)))

	// Price rises: stop follows at price - 2*ATR.
	require.NoError(t, s.Tick(context.Background(), "ACME", 25.80, 0.3, time.Now()))
	pos, _ := s.Get("ACME")
	assert.InDelta(t, 25.20, pos.Stop, 1e-9)
	assert.True(t, pos.Trailing)
	assert.Equal(t, Open, pos.State)

	// Price falls back: the stop must hold, never loosen.
	require.NoError(t, s.Tick(context.Background(), "ACME", 25.40, 0.3, time.Now()))
	pos, _ = s.Get("ACME")
	assert.InDelta(t, 25.20, pos.Stop, 1e-9)

	// Only one stop adjustment was journaled.
	var adjusts int
	for _, e := range j.Events() {
		if e.Kind == journal.EventStopAdjust {
			adjusts++
		}
	}
	assert.Equal(t, 1, adjusts)
}

func TestTickTrailingShortRatchetsDown(t *testing.T) {
	b := &fakeBroker{fillPrice: 50.00}
	s, _ := newSupervisor(t, Config{TrailingATRMultiple: 2}, b)
	require.NoError(t, s.Submit(context.Background(), shortOrder("ACME", 100, 50.00, 51.00, 44.00)))

	require.NoError(t, s.Tick(context.Background(), "ACME", 48.00, 0.5, time.Now()))
	pos, _ := s.Get("ACME")
	assert.InDelta(t, 49.00, pos.Stop, 1e-9)

	require.NoError(t, s.Tick(context.Background(), "ACME", 48.80, 0.5, time.Now()))
	pos, _ = s.Get("ACME")
	assert.InDelta(t, 49.00, pos.Stop, 1e-9, "stop must not loosen on a bounce")
}

func TestTickTimeStop(t *testing.T) {
	b := &fakeBroker{fillPrice: 25.00}
	s, j := newSupervisor(t, Config{MaxHoldingDuration: time.Hour}, b)
	require.NoError(t, s.Submit(context.Background(), longOrder("ACME", 100, 25.00, 24.50, 30.00)))

	pos, _ := s.Get("ACME")
	late := pos.OpenedAt.Add(2 * time.Hour)
	require.NoError(t, s.Tick(context.Background(), "ACME", 25.10, 0.3, late))

	pos, _ = s.Get("ACME")
	assert.Equal(t, Closed, pos.State)
	events := j.Events()
	assert.Equal(t, ReasonTimeStop, events[len(events)-1].Reason)
}

func TestTickAdverseMoveForcesExit(t *testing.T) {
	b := &fakeBroker{fillPrice: 100.00}
	// 3% adverse cap; the stop sits 10% away so the cap fires first.
	s, j := newSupervisor(t, Config{MaxAdverseMoveFraction: 0.03}, b)
	require.NoError(t, s.Submit(context.Background(), longOrder("ACME", 10, 100.00, 90.00, 120.00)))

	b.fillPrice = 96.00
	require.NoError(t, s.Tick(context.Background(), "ACME", 96.00, 1, time.Now()))

	pos, _ := s.Get("ACME")
	assert.Equal(t, Closed, pos.State)
	events := j.Events()
	assert.Equal(t, ReasonAdverseMove, events[len(events)-1].Reason)
}

func TestTickExitFailureKeepsPositionOpen(t *testing.T) {
	b := &fakeBroker{fillPrice: 25.00}
	s, _ := newSupervisor(t, Config{}, b)
	require.NoError(t, s.Submit(context.Background(), longOrder("ACME", 400, 25.00, 24.50, 26.00)))

	b.failNext = true
	err := s.Tick(context.Background(), "ACME", 24.40, 0.3, time.Now())
	require.Error(t, err)
	assert.ErrorIs(t, err, broker.ErrExecutionFailed)

	pos, _ := s.Get("ACME")
	assert.Equal(t, Open, pos.State, "failed exit leaves the position open for retry")
	assert.InDelta(t, 200.0, s.CommittedRisk(), 1e-9)

	// The next tick retries and succeeds.
	b.fillPrice = 24.40
	require.NoError(t, s.Tick(context.Background(), "ACME", 24.40, 0.3, time.Now()))
	pos, _ = s.Get("ACME")
	assert.Equal(t, Closed, pos.State)
}

func TestTickUnknownSymbolIsNoop(t *testing.T) {
	b := &fakeBroker{fillPrice: 25.00}
	s, _ := newSupervisor(t, Config{}, b)
	require.NoError(t, s.Tick(context.Background(), "GHOST", 10, 0.3, time.Now()))
	assert.Empty(t, b.submitted)
}

func TestAccountStateReflectsOpenPositions(t *testing.T) {
	b := &fakeBroker{
		fillPrice: 25.00,
		account:   broker.Account{Equity: 10_000, Cash: 5_000, BuyingPower: 5_000},
	}
	s, _ := newSupervisor(t, Config{}, b)
	require.NoError(t, s.Submit(context.Background(), longOrder("ACME", 400, 25.00, 24.50, 26.00)))

	acct, err := s.AccountState(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10_000.0, acct.Equity)
	assert.InDelta(t, 200.0, acct.CommittedRisk, 1e-9)
	assert.True(t, acct.OpenSymbols["ACME"])
}

func TestStateTransitions(t *testing.T) {
	tests := []struct {
		from, to State
		ok       bool
	}{
		{PendingEntry, Open, true},
		{PendingEntry, Failed, true},
		{Open, Closed, true},
		{Open, Failed, true},
		{PendingEntry, Closed, false},
		{Closed, Open, false},
		{Failed, Open, false},
		{Closed, Failed, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.ok, canTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestUnrealizedPL(t *testing.T) {
	long := &Position{Direction: advisor.Long, Quantity: 100, EntryPrice: 50}
	assert.InDelta(t, 200.0, long.UnrealizedPL(52), 1e-9)
	assert.InDelta(t, -300.0, long.UnrealizedPL(47), 1e-9)

	short := &Position{Direction: advisor.Short, Quantity: 100, EntryPrice: 50}
	assert.InDelta(t, -200.0, short.UnrealizedPL(52), 1e-9)
	assert.InDelta(t, 300.0, short.UnrealizedPL(47), 1e-9)
}
