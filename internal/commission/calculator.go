package commission

import (
	"github.com/shopspring/decimal"

	pkgerrors "github.com/agrilinkhq/mandi-backend/pkg/errors"
)

var hundred = decimal.NewFromInt(100)

// Breakdown is the three-way money split for one sale. FarmerEarning is
// always computed as the remainder after rounding the commission, so
// TotalAmount = CommissionAmount + FarmerEarning holds exactly.
type Breakdown struct {
	TotalAmount      decimal.Decimal
	CommissionAmount decimal.Decimal
	FarmerEarning    decimal.Decimal
}

// Calculate splits a sale of quantity units at unitPrice with the given
// commission rate (a percentage in [0,100]). Monetary values are rounded
// half-up to two places, once, at the point of computation.
func Calculate(quantity, unitPrice, rate decimal.Decimal) (Breakdown, error) {
	if quantity.LessThanOrEqual(decimal.Zero) {
		return Breakdown{}, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	if unitPrice.IsNegative() {
		return Breakdown{}, pkgerrors.New(pkgerrors.CodeValidation, "unit price cannot be negative")
	}
	if rate.IsNegative() || rate.GreaterThan(hundred) {
		return Breakdown{}, pkgerrors.New(pkgerrors.CodeValidation, "commission rate must be between 0 and 100")
	}

	total := quantity.Mul(unitPrice).Round(2)
	commissionAmount := total.Mul(rate).Div(hundred).Round(2)
	earning := total.Sub(commissionAmount)

	return Breakdown{
		TotalAmount:      total,
		CommissionAmount: commissionAmount,
		FarmerEarning:    earning,
	}, nil
}
