package coupon

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/luxethreads/promotions/internal/domain/money"
)

var hundred = decimal.NewFromInt(100)

// Discount is an immutable discount formula: a type, a value and the
// currency fixed amounts are expressed in.
type Discount struct {
	kind     DiscountType
	value    decimal.Decimal
	currency string
}

// NewDiscount validates the type, a non-negative value and, for
// percentages, a value of at most 100.
func NewDiscount(kind DiscountType, value decimal.Decimal, currency string) (Discount, error) {
	if !kind.Valid() {
		return Discount{}, errors.Wrapf(money.ErrInvalidArgument, "unsupported discount type %q", kind)
	}
	if value.IsNegative() {
		return Discount{}, errors.Wrapf(money.ErrInvalidArgument, "discount value %s is negative", value)
	}
	if kind == DiscountPercentage && value.GreaterThan(hundred) {
		return Discount{}, errors.Wrapf(money.ErrInvalidArgument, "percentage %s exceeds 100", value)
	}
	cur, err := money.NormalizeCurrency(currency)
	if err != nil {
		return Discount{}, err
	}
	return Discount{kind: kind, value: value, currency: cur}, nil
}

// Type returns the discount type.
func (d Discount) Type() DiscountType { return d.kind }

// Value returns the percentage or fixed amount.
func (d Discount) Value() decimal.Decimal { return d.value }

// Currency returns the discount currency.
func (d Discount) Currency() string { return d.currency }

// Calculate returns the amount taken off orderAmount. The result is never
// negative and never exceeds orderAmount.
func (d Discount) Calculate(orderAmount money.Money) (money.Money, error) {
	if orderAmount.Currency() != d.currency {
		return money.Money{}, errors.Wrapf(money.ErrCurrencyMismatch,
			"discount in %s, order in %s", d.currency, orderAmount.Currency())
	}
	if orderAmount.IsNegative() {
		return money.Money{}, errors.Wrapf(money.ErrInvalidArgument, "order amount %s is negative", orderAmount)
	}

	switch d.kind {
	case DiscountPercentage:
		return orderAmount.MulPercent(d.value), nil
	case DiscountFixedAmount:
		return orderAmount.WithAmount(decimal.Min(d.value, orderAmount.Amount())), nil
	default:
		// Shipping is waived by checkout, not taken off the order amount.
		return orderAmount.WithAmount(decimal.Zero), nil
	}
}
