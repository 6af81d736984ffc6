package money

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// OrderTotal breaks an order amount down into its components.
//
// Total is not clamped at zero: a discount larger than the other components
// yields a negative total, which callers must reject explicitly.
type OrderTotal struct {
	Subtotal decimal.Decimal
	Shipping decimal.Decimal
	Tax      decimal.Decimal
	Discount decimal.Decimal
}

// NewOrderTotal validates that every component is non-negative.
func NewOrderTotal(subtotal, shipping, tax, discount decimal.Decimal) (OrderTotal, error) {
	for _, c := range []struct {
		name  string
		value decimal.Decimal
	}{
		{"subtotal", subtotal},
		{"shipping", shipping},
		{"tax", tax},
		{"discount", discount},
	} {
		if c.value.IsNegative() {
			return OrderTotal{}, errors.Wrapf(ErrInvalidArgument, "%s %s is negative", c.name, c.value)
		}
	}
	return OrderTotal{
		Subtotal: subtotal,
		Shipping: shipping,
		Tax:      tax,
		Discount: discount,
	}, nil
}

// Total returns subtotal + shipping + tax - discount.
func (t OrderTotal) Total() decimal.Decimal {
	return t.Subtotal.Add(t.Shipping).Add(t.Tax).Sub(t.Discount)
}

// IsNegative reports whether the discount exceeds the other components.
func (t OrderTotal) IsNegative() bool {
	return t.Total().IsNegative()
}
