package broker

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

var alpacaLog = logrus.WithField("component", "alpaca_broker")

// Alpaca talks to the Alpaca trading REST API (paper or live endpoint — same
// contract). Market orders are submitted and then polled briefly for a fill;
// anything unfilled inside the poll budget is an execution failure, which
// leaves the position uncommitted.
type Alpaca struct {
	client       *resty.Client
	pollInterval time.Duration
	pollBudget   time.Duration
}

func NewAlpaca(baseURL, keyID, secretKey string, timeout time.Duration) *Alpaca {
	if baseURL == "" {
		baseURL = "https://paper-api.alpaca.markets"
	}
	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetTimeout(timeout)
	client.SetHeader("APCA-API-KEY-ID", keyID)
	client.SetHeader("APCA-API-SECRET-KEY", secretKey)

	return &Alpaca{
		client:       client,
		pollInterval: 500 * time.Millisecond,
		pollBudget:   10 * time.Second,
	}
}

func (a *Alpaca) Name() string { return "alpaca" }

type alpacaAccount struct {
	Equity      string `json:"equity"`
	Cash        string `json:"cash"`
	BuyingPower string `json:"buying_power"`
}

type alpacaOrder struct {
	ID             string `json:"id"`
	Status         string `json:"status"`
	FilledQty      string `json:"filled_qty"`
	FilledAvgPrice string `json:"filled_avg_price"`
	FilledAt       string `json:"filled_at"`
}

func (a *Alpaca) GetAccount(ctx context.Context) (Account, error) {
	var acct alpacaAccount
	resp, err := a.client.R().
		SetContext(ctx).
		SetResult(&acct).
		Get("/v2/account")
	if err != nil {
		return Account{}, fmt.Errorf("get account: %w", err)
	}
	if resp.StatusCode() != 200 {
		return Account{}, fmt.Errorf("get account: status %d", resp.StatusCode())
	}

	equity, _ := strconv.ParseFloat(acct.Equity, 64)
	cash, _ := strconv.ParseFloat(acct.Cash, 64)
	bp, _ := strconv.ParseFloat(acct.BuyingPower, 64)
	return Account{Equity: equity, Cash: cash, BuyingPower: bp}, nil
}

func (a *Alpaca) SubmitOrder(ctx context.Context, req OrderRequest) (Fill, error) {
	var order alpacaOrder
	resp, err := a.client.R().
		SetContext(ctx).
		SetBody(map[string]any{
			"client_order_id": req.ClientOrderID,
			"symbol":          req.Symbol,
			"side":            string(req.Side),
			"qty":             strconv.Itoa(req.Quantity),
			"type":            "market",
			"time_in_force":   "day",
		}).
		SetResult(&order).
		Post("/v2/orders")
	if err != nil {
		return Fill{}, fmt.Errorf("%w: submit %s: %v", ErrExecutionFailed, req.Symbol, err)
	}
	if resp.StatusCode() != 200 && resp.StatusCode() != 201 {
		return Fill{}, fmt.Errorf("%w: submit %s: status %d: %s",
			ErrExecutionFailed, req.Symbol, resp.StatusCode(), resp.String())
	}

	return a.awaitFill(ctx, req, order.ID)
}

// awaitFill polls the order until it fills, is rejected, or the budget runs
// out. The order is NOT resubmitted on timeout: duplicate entry orders are
// worse than a missed entry.
func (a *Alpaca) awaitFill(ctx context.Context, req OrderRequest, orderID string) (Fill, error) {
	deadline := time.Now().Add(a.pollBudget)
	for {
		var order alpacaOrder
		resp, err := a.client.R().
			SetContext(ctx).
			SetResult(&order).
			Get("/v2/orders/" + orderID)
		if err == nil && resp.StatusCode() == 200 {
			switch order.Status {
			case "filled":
				qty, _ := strconv.Atoi(order.FilledQty)
				price, _ := strconv.ParseFloat(order.FilledAvgPrice, 64)
				filledAt, _ := time.Parse(time.RFC3339, order.FilledAt)
				if filledAt.IsZero() {
					filledAt = time.Now().UTC()
				}
				return Fill{
					OrderID:  order.ID,
					Symbol:   req.Symbol,
					Side:     req.Side,
					Quantity: qty,
					Price:    price,
					Time:     filledAt,
				}, nil
			case "rejected", "canceled", "expired":
				return Fill{}, fmt.Errorf("%w: %s order %s %s",
					ErrExecutionFailed, req.Symbol, orderID, order.Status)
			}
		}

		if time.Now().After(deadline) {
			alpacaLog.Warnf("order %s for %s unfilled after %s", orderID, req.Symbol, a.pollBudget)
			return Fill{}, fmt.Errorf("%w: %s order %s fill timeout",
				ErrExecutionFailed, req.Symbol, orderID)
		}
		select {
		case <-ctx.Done():
			return Fill{}, fmt.Errorf("%w: %s: %v", ErrExecutionFailed, req.Symbol, ctx.Err())
		case <-time.After(a.pollInterval):
		}
	}
}
