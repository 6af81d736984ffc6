package coupon

import (
	"github.com/go-faster/errors"

	"github.com/luxethreads/promotions/internal/domain/money"
)

// Calculate computes the discount c grants on orderAmount, clamped to the
// coupon's maximum discount when one is configured.
func Calculate(c *Coupon, orderAmount money.Money) (money.Money, error) {
	if !orderAmount.IsPositive() {
		return money.Money{}, reject(ErrInvalidOrderAmount, "order amount %s must be greater than zero", orderAmount)
	}

	d, err := c.Discount()
	if err != nil {
		return money.Money{}, errors.Wrapf(err, "coupon %s", c.Code)
	}

	amount, err := d.Calculate(orderAmount)
	if err != nil {
		return money.Money{}, err
	}

	if c.MaxDiscountAmount.Valid && amount.Amount().GreaterThan(c.MaxDiscountAmount.Decimal) {
		amount = amount.WithAmount(c.MaxDiscountAmount.Decimal)
	}
	return amount, nil
}
