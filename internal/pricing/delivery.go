package pricing

import (
	"errors"
	"fmt"
)

// Delivery tiers
const (
	LocationDhaka   = "dhaka"
	LocationOutside = "outside"
)

var ErrUnknownLocation = errors.New("unknown delivery location")

// DeliveryRates holds the flat fee of each delivery tier.
type DeliveryRates struct {
	Dhaka   int64
	Outside int64
}

// DefaultRates are the storefront's published fees.
func DefaultRates() DeliveryRates {
	return DeliveryRates{Dhaka: 70, Outside: 120}
}

// Totals is the money breakdown shown to the customer and stored on the order.
type Totals struct {
	Subtotal       int64 `json:"subtotal"`
	DeliveryCharge int64 `json:"delivery_charge"`
	Total          int64 `json:"total"`
}

// Charge returns the delivery fee for a tier.
func (r DeliveryRates) Charge(location string) (int64, error) {
	switch location {
	case LocationDhaka:
		return r.Dhaka, nil
	case LocationOutside:
		return r.Outside, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownLocation, location)
	}
}

// GrandTotal adds the delivery fee to the subtotal. The fee applies to every
// payment method, prepaid or not.
func (r DeliveryRates) GrandTotal(subtotal int64, location, paymentMethod string) (int64, error) {
	t, err := r.Totals(subtotal, location, paymentMethod)
	if err != nil {
		return 0, err
	}
	return t.Total, nil
}

// Totals computes the full breakdown for a subtotal.
func (r DeliveryRates) Totals(subtotal int64, location, _ string) (Totals, error) {
	charge, err := r.Charge(location)
	if err != nil {
		return Totals{}, err
	}
	return Totals{
		Subtotal:       subtotal,
		DeliveryCharge: charge,
		Total:          subtotal + charge,
	}, nil
}
