package money

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Price is a catalog price with an optional markdown.
type Price struct {
	base       Money
	discounted *Money
}

// NewPrice creates a Price. discounted may be nil.
func NewPrice(base decimal.Decimal, discounted *decimal.Decimal, currency string) (Price, error) {
	b, err := New(base, currency)
	if err != nil {
		return Price{}, errors.Wrap(err, "base price")
	}
	p := Price{base: b}
	if discounted != nil {
		d, err := New(*discounted, currency)
		if err != nil {
			return Price{}, errors.Wrap(err, "discounted price")
		}
		p.discounted = &d
	}
	return p, nil
}

// Base returns the undiscounted price.
func (p Price) Base() Money { return p.base }

// Currency returns the price currency.
func (p Price) Currency() string { return p.base.currency }

// Discounted reports whether a markdown is present and strictly below the base.
func (p Price) Discounted() bool {
	return p.discounted != nil && p.discounted.amount.LessThan(p.base.amount)
}

// Effective returns the price a customer pays.
func (p Price) Effective() Money {
	if p.Discounted() {
		return *p.discounted
	}
	return p.base
}

// Savings returns base minus effective price.
func (p Price) Savings() Money {
	return p.base.WithAmount(p.base.amount.Sub(p.Effective().amount))
}

// DiscountPercentage returns the markdown as a whole percentage of the base
// price, or zero when the price is not discounted.
func (p Price) DiscountPercentage() decimal.Decimal {
	if !p.Discounted() || p.base.amount.IsZero() {
		return decimal.Zero
	}
	return p.Savings().amount.Div(p.base.amount).Mul(hundred).Round(0)
}
