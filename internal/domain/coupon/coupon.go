package coupon

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/luxethreads/promotions/internal/domain/money"
)

// DiscountType enumerates the supported coupon discount strategies.
type DiscountType string

const (
	// DiscountPercentage takes a percentage (0-100) off the order amount.
	DiscountPercentage DiscountType = "percentage"
	// DiscountFixedAmount takes a fixed amount off, capped at the order amount.
	DiscountFixedAmount DiscountType = "fixed_amount"
	// DiscountFreeShipping waives shipping; it never reduces the order amount.
	DiscountFreeShipping DiscountType = "free_shipping"
)

// Valid reports whether t is a known discount type.
func (t DiscountType) Valid() bool {
	switch t {
	case DiscountPercentage, DiscountFixedAmount, DiscountFreeShipping:
		return true
	default:
		return false
	}
}

// IDSet is a set of catalog or user identifiers. A nil or empty set means
// the corresponding restriction is not configured.
type IDSet map[int64]struct{}

// NewIDSet builds a set from ids, skipping zero values.
func NewIDSet(ids ...int64) IDSet {
	if len(ids) == 0 {
		return nil
	}
	s := make(IDSet, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		s[id] = struct{}{}
	}
	return s
}

// Has reports whether id is in the set.
func (s IDSet) Has(id int64) bool {
	_, ok := s[id]
	return ok
}

// Empty reports whether the set holds no ids.
func (s IDSet) Empty() bool { return len(s) == 0 }

// Slice returns the ids in ascending order.
func (s IDSet) Slice() []int64 {
	out := make([]int64, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// Coupon is a redeemable discount code with its eligibility rules.
type Coupon struct {
	ID          int64
	Code        string
	Description string

	DiscountType      DiscountType
	Value             decimal.Decimal
	Currency          string
	MaxDiscountAmount decimal.NullDecimal
	MinOrderAmount    decimal.NullDecimal

	ValidFrom  *time.Time
	ValidUntil *time.Time
	Active     bool

	// MaxUses and MaxUsesPerUser of zero mean unlimited.
	MaxUses        int
	UsesCount      int
	MaxUsesPerUser int

	NewUsersOnly   bool
	FirstOrderOnly bool

	ApplicableCategories IDSet
	ApplicableProducts   IDSet
	ApplicableBrands     IDSet
	ExcludedCategories   IDSet
	ExcludedProducts     IDSet
	ExcludedBrands       IDSet
	AllowedUsers         IDSet
	DeniedUsers          IDSet

	CreatedAt time.Time
}

// NormalizeCode trims surrounding whitespace and uppercases a coupon code.
func NormalizeCode(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// Available reports whether the coupon is active and now falls inside its
// validity window. Both window bounds are inclusive.
func (c *Coupon) Available(now time.Time) bool {
	if !c.Active {
		return false
	}
	if c.ValidFrom != nil && now.Before(*c.ValidFrom) {
		return false
	}
	if c.ValidUntil != nil && now.After(*c.ValidUntil) {
		return false
	}
	return true
}

// Expired reports whether the validity window closed before now.
func (c *Coupon) Expired(now time.Time) bool {
	return c.ValidUntil != nil && now.After(*c.ValidUntil)
}

// HasItemRestrictions reports whether any applicable category, product or
// brand set is configured.
func (c *Coupon) HasItemRestrictions() bool {
	return !c.ApplicableCategories.Empty() ||
		!c.ApplicableProducts.Empty() ||
		!c.ApplicableBrands.Empty()
}

// Discount builds the discount value object for this coupon.
func (c *Coupon) Discount() (Discount, error) {
	return NewDiscount(c.DiscountType, c.Value, c.Currency)
}

// Validate checks the entity invariants enforced when a coupon is created.
// It normalizes Code and Currency in place.
func (c *Coupon) Validate() error {
	c.Code = NormalizeCode(c.Code)
	if c.Code == "" {
		return errors.Wrap(money.ErrInvalidArgument, "code is required")
	}

	cur, err := money.NormalizeCurrency(c.Currency)
	if err != nil {
		return err
	}
	c.Currency = cur

	if _, err := c.Discount(); err != nil {
		return err
	}
	if c.MaxDiscountAmount.Valid && c.MaxDiscountAmount.Decimal.IsNegative() {
		return errors.Wrap(money.ErrInvalidArgument, "max discount amount is negative")
	}
	if c.MinOrderAmount.Valid && c.MinOrderAmount.Decimal.IsNegative() {
		return errors.Wrap(money.ErrInvalidArgument, "min order amount is negative")
	}
	if c.ValidFrom != nil && c.ValidUntil != nil && c.ValidUntil.Before(*c.ValidFrom) {
		return errors.Wrap(money.ErrInvalidArgument, "valid_until is before valid_from")
	}
	if c.MaxUses < 0 || c.MaxUsesPerUser < 0 || c.UsesCount < 0 {
		return errors.Wrap(money.ErrInvalidArgument, "usage caps must be non-negative")
	}
	return nil
}

// Usage records one redemption of a coupon by a customer.
type Usage struct {
	CouponID int64
	// CustomerID is zero for guest checkouts.
	CustomerID     int64
	OrderID        string
	DiscountAmount decimal.Decimal
	UsedAt         time.Time
}

// Repository provides lookup and mutation of coupons.
type Repository interface {
	// FindByCode returns the coupon with the given normalized code, or
	// ErrCouponNotFound.
	FindByCode(ctx context.Context, code string) (*Coupon, error)
	// Create stores c, or returns ErrCodeTaken.
	Create(ctx context.Context, c *Coupon) error
	// DeactivateExpired marks coupons whose window closed before now as
	// inactive and returns their codes.
	DeactivateExpired(ctx context.Context, now time.Time) ([]string, error)
	// Delete soft-deletes the coupon, or returns ErrCouponNotFound.
	Delete(ctx context.Context, code string, now time.Time) error
}

// UsageStore reports how many times a customer has redeemed a coupon.
type UsageStore interface {
	CountForUser(ctx context.Context, couponID, userID int64) (int, error)
}
