// Package pricing decides what a customer pays: the effective unit price of a
// product, the delivery charge for a tier and the resulting order totals.
package pricing

import (
	"fmt"

	"storefront/internal/models"

	"github.com/shopspring/decimal"
)

var (
	hundred = decimal.NewFromInt(100)

	// PriceTolerance is how far a stored discount price may drift from the
	// price implied by the stored percentage.
	PriceTolerance = decimal.NewFromFloat(0.1)
	// PercentTolerance is the same drift measured in percentage points.
	PercentTolerance = decimal.NewFromFloat(0.1)
)

// ConsistencyWarning reports two discount representations that disagree.
// It is informational: the resolver precedence rule still yields a price.
type ConsistencyWarning struct {
	ProductID         int64
	Percentage        decimal.Decimal
	DiscountPrice     decimal.Decimal
	ImpliedPrice      decimal.Decimal
	ImpliedPercentage decimal.Decimal
	Reason            string
}

func (w ConsistencyWarning) String() string {
	return fmt.Sprintf("product %d: %s (percentage=%s price=%s implied_price=%s implied_percentage=%s)",
		w.ProductID, w.Reason, w.Percentage, w.DiscountPrice, w.ImpliedPrice, w.ImpliedPercentage)
}

// Materialize turns a percentage discount into a unit price rounded to whole taka.
func Materialize(basePrice int64, percentage decimal.Decimal) int64 {
	factor := decimal.NewFromInt(1).Sub(percentage.Div(hundred))
	return decimal.NewFromInt(basePrice).Mul(factor).Round(0).IntPart()
}

// ImpliedPercentage is the percentage a discount price represents, to two places.
func ImpliedPercentage(basePrice int64, discountPrice decimal.Decimal) decimal.Decimal {
	if basePrice <= 0 {
		return decimal.Zero
	}
	base := decimal.NewFromInt(basePrice)
	return base.Sub(discountPrice).Div(base).Mul(hundred).Round(2)
}

// EffectivePrice is the unit price charged for p right now.
func EffectivePrice(p *models.Product) int64 {
	price, _ := Resolve(p)
	return price
}

// Resolve returns the effective unit price together with any consistency
// warnings found between the two discount representations.
//
// A positive discount price wins. A percentage without a discount price is
// materialized first. A discount that does not end strictly below the base
// price (or rounds to zero) is ignored.
func Resolve(p *models.Product) (int64, []ConsistencyWarning) {
	warnings := Check(p)

	if p.DiscountPrice.Valid && p.DiscountPrice.Decimal.IsPositive() {
		dp := p.DiscountPrice.Decimal.Round(0).IntPart()
		if dp > 0 && dp < p.Price {
			return dp, warnings
		}
		return p.Price, warnings
	}

	if p.DiscountPercentage.Valid && p.DiscountPercentage.Decimal.IsPositive() {
		dp := Materialize(p.Price, p.DiscountPercentage.Decimal)
		if dp > 0 && dp < p.Price {
			return dp, warnings
		}
	}

	return p.Price, warnings
}

// Check lists the ways p violates the discount invariants.
func Check(p *models.Product) []ConsistencyWarning {
	var warnings []ConsistencyWarning

	hasPrice := p.DiscountPrice.Valid && p.DiscountPrice.Decimal.IsPositive()
	hasPct := p.DiscountPercentage.Valid && p.DiscountPercentage.Decimal.IsPositive()

	if hasPrice && p.DiscountPrice.Decimal.GreaterThanOrEqual(decimal.NewFromInt(p.Price)) {
		warnings = append(warnings, ConsistencyWarning{
			ProductID:     p.ID,
			DiscountPrice: p.DiscountPrice.Decimal,
			Reason:        "discount price is not below base price",
		})
	}

	if hasPrice && hasPct {
		implied := decimal.NewFromInt(Materialize(p.Price, p.DiscountPercentage.Decimal))
		impliedPct := ImpliedPercentage(p.Price, p.DiscountPrice.Decimal)
		priceOff := implied.Sub(p.DiscountPrice.Decimal).Abs().GreaterThan(PriceTolerance)
		pctOff := impliedPct.Sub(p.DiscountPercentage.Decimal).Abs().GreaterThan(PercentTolerance)
		if priceOff && pctOff {
			warnings = append(warnings, ConsistencyWarning{
				ProductID:         p.ID,
				Percentage:        p.DiscountPercentage.Decimal,
				DiscountPrice:     p.DiscountPrice.Decimal,
				ImpliedPrice:      implied,
				ImpliedPercentage: impliedPct,
				Reason:            "discount percentage and discount price disagree",
			})
		}
	}

	return warnings
}
