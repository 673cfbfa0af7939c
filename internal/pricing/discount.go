package pricing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Which discount input the editor touched last
const (
	AuthorityPercentage = "percentage"
	AuthorityPrice      = "price"
)

var (
	ErrPercentageRange   = errors.New("discount percentage must be between 0 and 100")
	ErrDiscountNegative  = errors.New("discount price cannot be negative")
	ErrDiscountNotBelow  = errors.New("discount price must be lower than the base price")
	ErrBasePriceRequired = errors.New("base price must be positive")
)

// DiscountInput carries the two editable discount fields of a product form.
type DiscountInput struct {
	Percentage *decimal.Decimal `json:"discount_percentage,omitempty"`
	Price      *decimal.Decimal `json:"discount_price,omitempty"`
	// LastEdited is AuthorityPercentage or AuthorityPrice; empty means unknown.
	LastEdited string `json:"last_edited,omitempty"`
}

// Discount is the reconciled pair written to the record store.
type Discount struct {
	Percentage decimal.NullDecimal
	Price      decimal.NullDecimal
}

// Reconcile derives a consistent percentage/price pair from the form input.
// The last edited field wins; when unknown, a positive discount price wins
// because that is what the resolver would charge.
func Reconcile(basePrice int64, in DiscountInput) (Discount, []ConsistencyWarning, error) {
	if basePrice <= 0 {
		return Discount{}, nil, ErrBasePriceRequired
	}
	if in.Percentage != nil && (in.Percentage.IsNegative() || in.Percentage.GreaterThan(hundred)) {
		return Discount{}, nil, ErrPercentageRange
	}
	if in.Price != nil && in.Price.IsNegative() {
		return Discount{}, nil, ErrDiscountNegative
	}

	hasPct := in.Percentage != nil && in.Percentage.IsPositive()
	hasPrice := in.Price != nil && in.Price.IsPositive()

	authority := in.LastEdited
	switch {
	case hasPct && !hasPrice && authority != AuthorityPrice:
		authority = AuthorityPercentage
	case hasPrice && !hasPct && authority != AuthorityPercentage:
		authority = AuthorityPrice
	case authority == "":
		authority = AuthorityPrice
	}

	var warnings []ConsistencyWarning
	if hasPct && hasPrice {
		implied := decimal.NewFromInt(Materialize(basePrice, *in.Percentage))
		impliedPct := ImpliedPercentage(basePrice, *in.Price)
		if implied.Sub(*in.Price).Abs().GreaterThan(PriceTolerance) &&
			impliedPct.Sub(*in.Percentage).Abs().GreaterThan(PercentTolerance) {
			warnings = append(warnings, ConsistencyWarning{
				Percentage:        *in.Percentage,
				DiscountPrice:     *in.Price,
				ImpliedPrice:      implied,
				ImpliedPercentage: impliedPct,
				Reason:            fmt.Sprintf("inputs disagree, %s input kept", authority),
			})
		}
	}

	switch authority {
	case AuthorityPercentage:
		if !hasPct {
			return Discount{}, warnings, nil
		}
		price := Materialize(basePrice, *in.Percentage)
		if price <= 0 || price >= basePrice {
			return Discount{}, warnings, nil
		}
		return Discount{
			Percentage: decimal.NewNullDecimal(*in.Percentage),
			Price:      decimal.NewNullDecimal(decimal.NewFromInt(price)),
		}, warnings, nil

	default:
		if !hasPrice {
			return Discount{}, warnings, nil
		}
		if in.Price.GreaterThanOrEqual(decimal.NewFromInt(basePrice)) {
			return Discount{}, warnings, ErrDiscountNotBelow
		}
		return Discount{
			Percentage: decimal.NewNullDecimal(ImpliedPercentage(basePrice, *in.Price)),
			Price:      decimal.NewNullDecimal(*in.Price),
		}, warnings, nil
	}
}
