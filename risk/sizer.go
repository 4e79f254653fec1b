package risk

import (
	"errors"
	"fmt"
	"math"

	"github.com/rustyeddy/scout/advisor"
	"github.com/rustyeddy/scout/internal/id"
)

var (
	// ErrRiskRejected marks any business-rule sizing rejection.
	ErrRiskRejected = errors.New("risk: order rejected")

	// ErrPositionTooSmall means the computed quantity rounded below one share.
	ErrPositionTooSmall = fmt.Errorf("%w: position too small", ErrRiskRejected)

	// ErrDuplicatePosition guards the one-position-per-symbol invariant.
	ErrDuplicatePosition = fmt.Errorf("%w: duplicate position", ErrRiskRejected)
)

// SizedOrder is a setup with a quantity and committed dollar risk attached.
type SizedOrder struct {
	advisor.Setup

	OrderID    string
	Quantity   int
	DollarRisk float64 // Quantity * |Entry - Stop|

	// RiskCeiling is the absolute portfolio ceiling captured at sizing time.
	// The supervisor re-checks it atomically when reserving risk, since this
	// sizer's view of committed risk may be stale by submission time.
	// Zero means no ceiling.
	RiskCeiling float64
}

// SizeOrder computes a bounded order from a validated setup and the current
// account state, or rejects it. It never mutates account state.
//
// Guarantees for every accepted order:
//   - Quantity*|Entry-Stop| <= RiskPerTradeFraction*Equity (and MaxDollarRisk)
//   - Quantity <= MaxPositionSize
//   - Quantity*Entry fits inside available buying power less the cash reserve
//   - CommittedRisk + DollarRisk <= PortfolioRiskCeiling*Equity
func SizeOrder(p Policy, setup advisor.Setup, acct AccountState) (SizedOrder, error) {
	if acct.OpenSymbols[setup.Symbol] {
		return SizedOrder{}, fmt.Errorf("%w: %s already open", ErrDuplicatePosition, setup.Symbol)
	}

	stopDist := math.Abs(setup.Entry - setup.Stop)
	if stopDist <= 0 {
		return SizedOrder{}, fmt.Errorf("%w: %s zero stop distance", ErrRiskRejected, setup.Symbol)
	}

	dollarRisk := p.RiskPerTradeFraction * acct.Equity
	if p.MaxDollarRisk > 0 && dollarRisk > p.MaxDollarRisk {
		dollarRisk = p.MaxDollarRisk
	}

	qty := int(math.Floor(dollarRisk / stopDist))
	if qty < 1 {
		return SizedOrder{}, fmt.Errorf("%w: %s risk $%.2f cannot cover stop distance %.2f",
			ErrPositionTooSmall, setup.Symbol, dollarRisk, stopDist)
	}

	if p.MaxPositionSize > 0 && qty > p.MaxPositionSize {
		qty = p.MaxPositionSize
	}

	// Cap by buying power after the cash reserve.
	available := acct.BuyingPower - p.CashReserveFraction*acct.Equity
	if available <= 0 {
		return SizedOrder{}, fmt.Errorf("%w: %s no buying power available", ErrRiskRejected, setup.Symbol)
	}
	if maxAffordable := int(math.Floor(available / setup.Entry)); qty > maxAffordable {
		qty = maxAffordable
	}
	if qty < 1 {
		return SizedOrder{}, fmt.Errorf("%w: %s buying power too low", ErrPositionTooSmall, setup.Symbol)
	}

	committed := float64(qty) * stopDist
	var ceiling float64
	if p.PortfolioRiskCeiling > 0 {
		ceiling = p.PortfolioRiskCeiling * acct.Equity
		if acct.CommittedRisk+committed > ceiling {
			return SizedOrder{}, fmt.Errorf(
				"%w: %s would push committed risk to $%.2f over ceiling $%.2f",
				ErrRiskRejected, setup.Symbol, acct.CommittedRisk+committed, ceiling)
		}
	}

	return SizedOrder{
		Setup:       setup,
		OrderID:     id.New(),
		Quantity:    qty,
		DollarRisk:  committed,
		RiskCeiling: ceiling,
	}, nil
}
