package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/rustyeddy/scout/market"
)

var paperLog = logrus.WithField("component", "paper_broker")

// Paper simulates execution in memory. Orders fill immediately at the latest
// quote (falling back to the request's reference entry when no quote is
// cached). Cash and buying power are tracked so sizing sees a live-like
// account.
type Paper struct {
	mu     sync.Mutex
	quotes *market.QuoteStore
	cash   float64
}

func NewPaper(startingBalance float64, quotes *market.QuoteStore) *Paper {
	if quotes == nil {
		quotes = market.NewQuoteStore()
	}
	return &Paper{
		quotes: quotes,
		cash:   startingBalance,
	}
}

func (p *Paper) Name() string { return "paper" }

// Quotes exposes the store so the session loop can keep fill prices fresh.
func (p *Paper) Quotes() *market.QuoteStore { return p.quotes }

func (p *Paper) GetAccount(ctx context.Context) (Account, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	// Cash accounting already reflects realized P&L through fills, so cash
	// doubles as equity for sizing purposes.
	return Account{
		Equity:      p.cash,
		Cash:        p.cash,
		BuyingPower: p.cash,
	}, nil
}

func (p *Paper) SubmitOrder(ctx context.Context, req OrderRequest) (Fill, error) {
	if req.Quantity <= 0 {
		return Fill{}, fmt.Errorf("%w: quantity must be positive", ErrExecutionFailed)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	price := req.Entry
	if q, err := p.quotes.Get(req.Symbol); err == nil && q.Price > 0 {
		price = q.Price
	}
	if price <= 0 {
		return Fill{}, fmt.Errorf("%w: no price for %s", ErrExecutionFailed, req.Symbol)
	}

	notional := float64(req.Quantity) * price
	if req.Side == Buy && notional > p.cash {
		return Fill{}, fmt.Errorf("%w: insufficient cash for %s (need %.2f, have %.2f)",
			ErrExecutionFailed, req.Symbol, notional, p.cash)
	}

	if req.Side == Buy {
		p.cash -= notional
	} else {
		p.cash += notional
	}

	fill := Fill{
		OrderID:  uuid.New().String(),
		Symbol:   req.Symbol,
		Side:     req.Side,
		Quantity: req.Quantity,
		Price:    price,
		Time:     time.Now().UTC(),
	}
	paperLog.Infof("filled %s %d %s @ %.2f", fill.Side, fill.Quantity, fill.Symbol, fill.Price)
	return fill, nil
}
