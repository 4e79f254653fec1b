// Package broker defines the execution contract shared by the paper and
// live backends. The position supervisor only ever talks to this interface;
// it cannot tell a simulated fill from a real one.
package broker

import (
	"context"
	"errors"
	"time"
)

// ErrExecutionFailed marks a brokerage fault: rejection, timeout, or
// transport failure. No risk is committed when entry execution fails.
var ErrExecutionFailed = errors.New("broker: execution failed")

// Side of an order.
type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

// Opposite returns the closing side for a position opened with s.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// OrderRequest is a normalized order the execution backend accepts.
type OrderRequest struct {
	ClientOrderID string
	Symbol        string
	Side          Side
	Quantity      int

	// Reference prices for the backend; market orders may fill elsewhere.
	Entry  float64
	Stop   float64
	Target float64
}

// Fill is the confirmed execution of an order.
type Fill struct {
	OrderID  string
	Symbol   string
	Side     Side
	Quantity int
	Price    float64
	Time     time.Time
}

// Account is the execution backend's view of buying capacity.
type Account struct {
	Equity      float64
	Cash        float64
	BuyingPower float64
}

// Broker routes orders to a paper or live backend.
type Broker interface {
	Name() string
	GetAccount(ctx context.Context) (Account, error)
	SubmitOrder(ctx context.Context, req OrderRequest) (Fill, error)
}
