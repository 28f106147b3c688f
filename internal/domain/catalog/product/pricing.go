package product

import (
	"github.com/shopspring/decimal"

	"consigna/internal/core/types"
)

var hundred = decimal.NewFromInt(100)

// DerivePrice returns the sale price for the given pricing inputs.
//
// Plated and silver items always derive it as cost × (1 + margin/100),
// rounded half-even to cents; without a cost the price is zero. Gold keeps
// the assigned price, or zero.
func DerivePrice(material Material, cost decimal.NullDecimal, margin decimal.Decimal, assigned *decimal.Decimal) types.Money {
	if material == MaterialGold {
		if assigned == nil {
			return types.Zero()
		}
		return *assigned
	}
	if !cost.Valid {
		return types.Zero()
	}
	factor := decimal.NewFromInt(1).Add(margin.Div(hundred))
	return types.RoundCents(cost.Decimal.Mul(factor))
}
