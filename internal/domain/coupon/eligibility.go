package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/luxethreads/promotions/internal/domain/customer"
	"github.com/luxethreads/promotions/internal/domain/money"
)

// Item is an order line as seen by the item restriction rules.
type Item struct {
	ProductID  int64
	CategoryID int64
	BrandID    int64
	UnitPrice  decimal.Decimal
	Quantity   int
}

// Order is the checkout context a coupon is validated against.
type Order struct {
	Amount money.Money
	Items  []Item
}

// UserValidator checks coupon availability and the customer-specific rules.
type UserValidator struct {
	usage UsageStore
	now   func() time.Time
}

// NewUserValidator creates a UserValidator that reads prior redemptions
// from usage.
func NewUserValidator(usage UsageStore) *UserValidator {
	return &UserValidator{usage: usage, now: time.Now}
}

// Validate runs the rules in a fixed order and returns the first failure.
// Availability is checked before anything customer-specific, so an expired
// coupon is refused the same way for everyone. cust may be nil for guests.
func (v *UserValidator) Validate(ctx context.Context, c *Coupon, cust *customer.Customer) error {
	now := v.now()

	if !c.Available(now) {
		return reject(ErrCouponUnavailable, "coupon %s is inactive or outside its validity window", c.Code)
	}
	if c.MaxUses > 0 && c.UsesCount >= c.MaxUses {
		return reject(ErrUsageLimitExceeded, "coupon %s has been redeemed %d of %d times", c.Code, c.UsesCount, c.MaxUses)
	}

	if c.NewUsersOnly {
		if cust == nil || !cust.CreatedAt.After(newUserCutoff(c)) {
			return reject(ErrUserRestrictionViolation, "coupon %s is for new customers only", c.Code)
		}
	}
	if c.FirstOrderOnly {
		if cust == nil || cust.HasPriorOrders {
			return reject(ErrUserRestrictionViolation, "coupon %s is valid on a first order only", c.Code)
		}
	}

	if !c.AllowedUsers.Empty() {
		if cust == nil || !c.AllowedUsers.Has(cust.ID) {
			return reject(ErrUserNotEligible, "coupon %s is limited to selected customers", c.Code)
		}
	}
	if cust != nil && c.DeniedUsers.Has(cust.ID) {
		return reject(ErrUserNotEligible, "coupon %s cannot be used by this customer", c.Code)
	}

	if c.MaxUsesPerUser > 0 && cust != nil {
		used, err := v.usage.CountForUser(ctx, c.ID, cust.ID)
		if err != nil {
			return errors.Wrap(err, "count coupon usage")
		}
		if used >= c.MaxUsesPerUser {
			return reject(ErrUsageLimitExceeded, "coupon %s can be used %d time(s) per customer", c.Code, c.MaxUsesPerUser)
		}
	}

	return nil
}

// newUserCutoff is the instant a customer must have registered after to
// count as new: the start of the validity window, or coupon creation when
// the window is open-ended.
func newUserCutoff(c *Coupon) time.Time {
	if c.ValidFrom != nil {
		return *c.ValidFrom
	}
	return c.CreatedAt
}

// OrderValidator checks a coupon against a whole order: the customer rules,
// the minimum amount and the item restrictions.
type OrderValidator struct {
	users *UserValidator
}

// NewOrderValidator creates an OrderValidator on top of users.
func NewOrderValidator(users *UserValidator) *OrderValidator {
	return &OrderValidator{users: users}
}

// Validate returns the first failing rule. Exclusions are evaluated on every
// order and win over applicability: an order holding an excluded item is
// refused even when other items qualify.
func (v *OrderValidator) Validate(ctx context.Context, c *Coupon, order Order, cust *customer.Customer) error {
	if err := v.users.Validate(ctx, c, cust); err != nil {
		return err
	}
	if err := checkAmount(c, order.Amount); err != nil {
		return err
	}

	for _, it := range order.Items {
		if c.ExcludedCategories.Has(it.CategoryID) ||
			c.ExcludedProducts.Has(it.ProductID) ||
			c.ExcludedBrands.Has(it.BrandID) {
			return reject(ErrExcludedItemsPresent, "product %d cannot be purchased with coupon %s", it.ProductID, c.Code)
		}
	}

	if c.HasItemRestrictions() && !anyApplicable(c, order.Items) {
		return reject(ErrNoApplicableItems, "coupon %s does not apply to any item in the order", c.Code)
	}

	return nil
}

// checkAmount validates a positive amount in the coupon currency that meets
// the coupon minimum.
func checkAmount(c *Coupon, amount money.Money) error {
	if !amount.IsPositive() {
		return reject(ErrInvalidOrderAmount, "order amount %s must be greater than zero", amount)
	}
	if amount.Currency() != c.Currency {
		return errors.Wrapf(money.ErrCurrencyMismatch, "coupon in %s, order in %s", c.Currency, amount.Currency())
	}
	if c.MinOrderAmount.Valid && amount.Amount().LessThan(c.MinOrderAmount.Decimal) {
		return reject(ErrMinimumAmountNotMet, "minimum order amount is %s %s",
			c.MinOrderAmount.Decimal.StringFixed(2), c.Currency)
	}
	return nil
}

func anyApplicable(c *Coupon, items []Item) bool {
	for _, it := range items {
		if c.ApplicableCategories.Has(it.CategoryID) ||
			c.ApplicableProducts.Has(it.ProductID) ||
			c.ApplicableBrands.Has(it.BrandID) {
			return true
		}
	}
	return false
}
