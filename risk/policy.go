// Package risk converts validated trade setups into bounded orders under
// per-trade and portfolio risk limits. Sizing is deterministic and
// side-effect free; the position supervisor performs the actual commitment.
package risk

// Policy holds the hard risk limits applied to every order.
type Policy struct {
	// RiskPerTradeFraction is the fraction of equity that may be lost if
	// the stop is hit, e.g. 0.02.
	RiskPerTradeFraction float64

	// MaxDollarRisk caps the per-trade dollar risk in absolute terms.
	// Zero means no absolute cap.
	MaxDollarRisk float64

	// MaxPositionSize caps quantity in shares.
	MaxPositionSize int

	// PortfolioRiskCeiling caps aggregate committed dollar risk across all
	// open positions, as a fraction of equity, e.g. 0.06.
	PortfolioRiskCeiling float64

	// CashReserveFraction is withheld from buying power, e.g. 0.10.
	CashReserveFraction float64
}

// AccountState is a read-only view of the account at sizing time.
type AccountState struct {
	Equity        float64
	BuyingPower   float64
	CommittedRisk float64 // aggregate dollar risk of open positions

	// OpenSymbols are symbols with a non-terminal position.
	OpenSymbols map[string]bool
}
