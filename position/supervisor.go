package position

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rustyeddy/scout/advisor"
	"github.com/rustyeddy/scout/broker"
	"github.com/rustyeddy/scout/internal/id"
	"github.com/rustyeddy/scout/journal"
	"github.com/rustyeddy/scout/metrics"
	"github.com/rustyeddy/scout/risk"
)

var log = logrus.WithField("component", "supervisor")

// Exit reasons recorded on close events.
const (
	ReasonStopLoss    = "stop_loss"
	ReasonTakeProfit  = "take_profit"
	ReasonTimeStop    = "time_stop"
	ReasonAdverseMove = "adverse_move"
	ReasonManual      = "manual"
)

// Config holds the supervision rules applied to every open position.
type Config struct {
	// TrailingATRMultiple ratchets the stop to price ∓ multiple*ATR when
	// that tightens it. Zero disables trailing.
	TrailingATRMultiple float64

	// MaxHoldingDuration forces a market exit regardless of price.
	// Zero disables the time stop.
	MaxHoldingDuration time.Duration

	// MaxAdverseMoveFraction forces an exit when the unrealized loss
	// exceeds this fraction of entry price. Zero disables.
	MaxAdverseMoveFraction float64

	// PartialExitFraction scales out this fraction of the position when the
	// profit target is reached, leaving the remainder to run under the
	// trailing stop. Zero exits the full quantity at target.
	PartialExitFraction float64
}

// Supervisor owns the mutable position set and the committed-risk
// aggregate. All reads and writes of that state go through one mutex so the
// one-position-per-symbol and portfolio-ceiling invariants hold under
// concurrent cycles.
type Supervisor struct {
	mu        sync.Mutex
	cfg       Config
	broker    broker.Broker
	journal   journal.Journal
	positions map[string]*Position // keyed by symbol; terminal entries pruned on reuse
	committed float64              // reserved dollar risk, in-flight entries included
}

func NewSupervisor(cfg Config, b broker.Broker, j journal.Journal) *Supervisor {
	return &Supervisor{
		cfg:       cfg,
		broker:    b,
		journal:   j,
		positions: make(map[string]*Position),
	}
}

// Submit dispatches a sized order for entry. The symbol slot and the order's
// dollar risk are both reserved under the lock before the broker is called,
// so concurrent submissions cannot jointly breach the portfolio ceiling the
// sizer checked against a possibly stale view. On execution failure the
// reservation is released and the symbol is immediately eligible again.
func (s *Supervisor) Submit(ctx context.Context, order risk.SizedOrder) error {
	s.mu.Lock()
	if existing, ok := s.positions[order.Symbol]; ok && !existing.State.Terminal() {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s held in state %s", risk.ErrDuplicatePosition, order.Symbol, existing.State)
	}
	if order.RiskCeiling > 0 && s.committed+order.DollarRisk > order.RiskCeiling {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s would push committed risk to $%.2f over ceiling $%.2f",
			risk.ErrRiskRejected, order.Symbol, s.committed+order.DollarRisk, order.RiskCeiling)
	}

	pos := &Position{
		ID:         id.New(),
		Symbol:     order.Symbol,
		Direction:  order.Direction,
		Quantity:   order.Quantity,
		Stop:       order.Stop,
		Target:     order.Target,
		DollarRisk: order.DollarRisk,
		State:      PendingEntry,
	}
	s.positions[order.Symbol] = pos
	s.committed += pos.DollarRisk
	s.mu.Unlock()

	// The broker call blocks; it runs outside the lock so other symbols
	// keep ticking. The pending entry above reserves the symbol slot.
	side := broker.Buy
	if order.Direction == advisor.Short {
		side = broker.Sell
	}
	fill, err := s.broker.SubmitOrder(ctx, broker.OrderRequest{
		ClientOrderID: order.OrderID,
		Symbol:        order.Symbol,
		Side:          side,
		Quantity:      order.Quantity,
		Entry:         order.Entry,
		Stop:          order.Stop,
		Target:        order.Target,
	})

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.transitionLocked(pos, Failed, time.Now().UTC())
		s.releaseLocked(pos.DollarRisk)
		s.emitLocked(pos, journal.EventRejected, pos.Quantity, 0, 0, err.Error())
		log.WithField("symbol", order.Symbol).Warnf("entry failed: %v", err)
		return fmt.Errorf("%w: %s: %v", broker.ErrExecutionFailed, order.Symbol, err)
	}

	pos.EntryOrderID = fill.OrderID
	pos.EntryPrice = fill.Price
	pos.Quantity = fill.Quantity
	pos.OpenedAt = fill.Time
	s.transitionLocked(pos, Open, fill.Time)
	s.emitLocked(pos, journal.EventOpen, pos.Quantity, fill.Price, 0, order.Rationale)

	log.WithField("symbol", order.Symbol).Infof(
		"opened %s %d @ %.2f stop=%.2f target=%.2f risk=$%.2f",
		pos.Direction, pos.Quantity, pos.EntryPrice, pos.Stop, pos.Target, pos.DollarRisk)
	return nil
}

// Tick re-evaluates one open position against a fresh price and ATR. Exits
// (stop, target, time stop, adverse move) dispatch a market exit through the
// broker; otherwise the trailing rule may ratchet the stop. Terminal and
// unknown symbols are no-ops.
func (s *Supervisor) Tick(ctx context.Context, symbol string, price, atr float64, now time.Time) error {
	s.mu.Lock()
	pos, ok := s.positions[symbol]
	if !ok || pos.State != Open {
		s.mu.Unlock()
		return nil
	}

	reason := s.exitReasonLocked(pos, price, now)
	if reason == "" {
		if newStop, ratchet := s.trailLocked(pos, price, atr); ratchet {
			pos.Stop = newStop
			pos.Trailing = true
			s.emitLocked(pos, journal.EventStopAdjust, pos.Quantity, newStop, 0, "trailing ratchet")
			log.WithField("symbol", symbol).Debugf("stop ratcheted to %.2f", newStop)
		}
		s.mu.Unlock()
		return nil
	}

	if reason == ReasonTakeProfit && s.cfg.PartialExitFraction > 0 && !pos.Scaled && pos.Quantity > 1 {
		qtyOut := int(math.Floor(float64(pos.Quantity) * s.cfg.PartialExitFraction))
		if qtyOut < 1 {
			qtyOut = 1
		}
		if qtyOut < pos.Quantity {
			s.mu.Unlock()
			return s.partialExit(ctx, pos, qtyOut)
		}
	}
	s.mu.Unlock()

	return s.exit(ctx, pos, reason)
}

// exit dispatches the closing order and finalizes the position on a
// confirmed fill. A failed exit leaves the position Open so the next tick
// retries; the broker never silently resubmits, so no duplicate orders.
func (s *Supervisor) exit(ctx context.Context, pos *Position, reason string) error {
	side := broker.Sell
	if pos.Direction == advisor.Short {
		side = broker.Buy
	}
	fill, err := s.broker.SubmitOrder(ctx, broker.OrderRequest{
		ClientOrderID: id.New(),
		Symbol:        pos.Symbol,
		Side:          side,
		Quantity:      pos.Quantity,
	})

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		log.WithField("symbol", pos.Symbol).Errorf("exit dispatch failed (%s): %v", reason, err)
		return fmt.Errorf("%w: exit %s: %v", broker.ErrExecutionFailed, pos.Symbol, err)
	}
	if pos.State != Open {
		// Already finalized by a competing tick.
		return nil
	}

	pos.RealizedPL += pos.UnrealizedPL(fill.Price)
	pos.ClosedAt = fill.Time
	s.transitionLocked(pos, Closed, fill.Time)
	s.releaseLocked(pos.DollarRisk)
	s.emitLocked(pos, journal.EventClose, pos.Quantity, fill.Price, pos.RealizedPL, reason)
	metrics.TradesClosed.WithLabelValues(reason).Inc()

	log.WithField("symbol", pos.Symbol).Infof(
		"closed %s @ %.2f (%s) pl=%.2f", pos.Direction, fill.Price, reason, pos.RealizedPL)
	return nil
}

// partialExit scales qtyOut shares out at the profit target and leaves the
// remainder open. Risk is released in proportion to the quantity closed.
func (s *Supervisor) partialExit(ctx context.Context, pos *Position, qtyOut int) error {
	side := broker.Sell
	if pos.Direction == advisor.Short {
		side = broker.Buy
	}
	fill, err := s.broker.SubmitOrder(ctx, broker.OrderRequest{
		ClientOrderID: id.New(),
		Symbol:        pos.Symbol,
		Side:          side,
		Quantity:      qtyOut,
	})

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		log.WithField("symbol", pos.Symbol).Errorf("partial exit dispatch failed: %v", err)
		return fmt.Errorf("%w: partial exit %s: %v", broker.ErrExecutionFailed, pos.Symbol, err)
	}
	if pos.State != Open || pos.Scaled {
		return nil
	}

	pl := float64(fill.Quantity) * (fill.Price - pos.EntryPrice)
	if pos.Direction == advisor.Short {
		pl = -pl
	}
	released := pos.DollarRisk * float64(fill.Quantity) / float64(pos.Quantity)
	pos.DollarRisk -= released
	s.releaseLocked(released)
	pos.Quantity -= fill.Quantity
	pos.RealizedPL += pl
	pos.Scaled = true
	s.emitLocked(pos, journal.EventScaleOut, fill.Quantity, fill.Price, pl, ReasonTakeProfit)

	log.WithField("symbol", pos.Symbol).Infof(
		"scaled out %d %s @ %.2f pl=%.2f, %d remaining",
		fill.Quantity, pos.Direction, fill.Price, pl, pos.Quantity)
	return nil
}

// exitReasonLocked returns the exit reason a tick demands, or "" to stay in.
func (s *Supervisor) exitReasonLocked(pos *Position, price float64, now time.Time) string {
	switch {
	case pos.stopHit(price):
		return ReasonStopLoss
	case pos.targetHit(price):
		return ReasonTakeProfit
	case s.cfg.MaxHoldingDuration > 0 && now.Sub(pos.OpenedAt) >= s.cfg.MaxHoldingDuration:
		return ReasonTimeStop
	case s.cfg.MaxAdverseMoveFraction > 0 && pos.EntryPrice > 0 &&
		pos.UnrealizedPL(price) < -s.cfg.MaxAdverseMoveFraction*pos.EntryPrice*float64(pos.Quantity):
		return ReasonAdverseMove
	}
	return ""
}

// trailLocked computes the ratcheted stop. The stop only ever tightens:
// up for longs, down for shorts.
func (s *Supervisor) trailLocked(pos *Position, price, atr float64) (float64, bool) {
	if s.cfg.TrailingATRMultiple <= 0 || atr <= 0 {
		return 0, false
	}
	if pos.Direction == advisor.Long {
		candidate := price - s.cfg.TrailingATRMultiple*atr
		if candidate > pos.Stop {
			return candidate, true
		}
		return 0, false
	}
	candidate := price + s.cfg.TrailingATRMultiple*atr
	if candidate < pos.Stop {
		return candidate, true
	}
	return 0, false
}

func (s *Supervisor) transitionLocked(pos *Position, to State, at time.Time) {
	if !canTransition(pos.State, to) {
		// Illegal transitions indicate a supervisor bug; fail loudly.
		panic(fmt.Sprintf("position %s: illegal transition %s -> %s", pos.Symbol, pos.State, to))
	}
	pos.State = to
	if to.Terminal() && pos.ClosedAt.IsZero() {
		pos.ClosedAt = at
	}
}

// releaseLocked returns reserved dollar risk to the pool, clamping at zero.
func (s *Supervisor) releaseLocked(amount float64) {
	s.committed -= amount
	if s.committed < 0 {
		s.committed = 0
	}
}

func (s *Supervisor) emitLocked(pos *Position, kind journal.EventKind, qty int, price, realizedPL float64, reason string) {
	err := s.journal.RecordEvent(journal.TradeEvent{
		EventID:    id.New(),
		PositionID: pos.ID,
		Symbol:     pos.Symbol,
		Kind:       kind,
		Time:       time.Now().UTC(),
		Direction:  string(pos.Direction),
		Quantity:   qty,
		Price:      price,
		Stop:       pos.Stop,
		Target:     pos.Target,
		RealizedPL: realizedPL,
		Reason:     reason,
	})
	if err != nil {
		log.WithField("symbol", pos.Symbol).Errorf("journal write failed: %v", err)
	}
}

// AccountState assembles the read-only view the risk sizer needs: broker
// account plus this supervisor's committed risk and open symbol set.
func (s *Supervisor) AccountState(ctx context.Context) (risk.AccountState, error) {
	acct, err := s.broker.GetAccount(ctx)
	if err != nil {
		return risk.AccountState{}, fmt.Errorf("account state: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	open := make(map[string]bool, len(s.positions))
	for sym, pos := range s.positions {
		if !pos.State.Terminal() {
			open[sym] = true
		}
	}
	return risk.AccountState{
		Equity:        acct.Equity,
		BuyingPower:   acct.BuyingPower,
		CommittedRisk: s.committed,
		OpenSymbols:   open,
	}, nil
}

// OpenSymbols lists symbols with a non-terminal position, sorted by nothing
// in particular; callers that need determinism sort it themselves.
func (s *Supervisor) OpenSymbols() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for sym, pos := range s.positions {
		if !pos.State.Terminal() {
			out = append(out, sym)
		}
	}
	return out
}

// CommittedRisk returns the aggregate dollar risk reserved by open and
// in-flight positions.
func (s *Supervisor) CommittedRisk() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.committed
}

// Get returns a copy of the tracked position for symbol, if any.
func (s *Supervisor) Get(symbol string) (Position, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pos, ok := s.positions[symbol]
	if !ok {
		return Position{}, false
	}
	return *pos, true
}

// Positions returns copies of every tracked position, terminal included.
func (s *Supervisor) Positions() []Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Position, 0, len(s.positions))
	for _, pos := range s.positions {
		out = append(out, *pos)
	}
	return out
}
