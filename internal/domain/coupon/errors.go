package coupon

import (
	"fmt"
	"strings"

	"github.com/go-faster/errors"

	"github.com/luxethreads/promotions/internal/domain/money"
)

// Rejection reasons. Each is an expected, customer-facing outcome.
var (
	ErrCodeRequired             = errors.New("coupon code is required")
	ErrCouponNotFound           = errors.New("coupon not found")
	ErrCouponUnavailable        = errors.New("coupon is not available")
	ErrUserRestrictionViolation = errors.New("coupon is restricted to new customers")
	ErrUserNotEligible          = errors.New("customer is not eligible for this coupon")
	ErrUsageLimitExceeded       = errors.New("coupon usage limit reached")
	ErrInvalidOrderAmount       = errors.New("order amount must be greater than zero")
	ErrMinimumAmountNotMet      = errors.New("order amount is below the coupon minimum")
	ErrNoApplicableItems        = errors.New("no items in the order qualify for this coupon")
	ErrExcludedItemsPresent     = errors.New("order contains items excluded from this coupon")

	// ErrInvalidArgument is returned for malformed Discount, Price or Money
	// construction, including currency mismatches.
	ErrInvalidArgument = money.ErrInvalidArgument
)

// ErrCodeTaken is returned by Repository.Create when a coupon that is not
// deleted already uses the code.
var ErrCodeTaken = errors.New("coupon code already exists")

// Kind is the wire name of a rejection reason.
type Kind string

const (
	KindCodeRequired             Kind = "code_required"
	KindCouponNotFound           Kind = "coupon_not_found"
	KindCouponUnavailable        Kind = "coupon_unavailable"
	KindUserRestrictionViolation Kind = "user_restriction_violation"
	KindUserNotEligible          Kind = "user_not_eligible"
	KindUsageLimitExceeded       Kind = "usage_limit_exceeded"
	KindInvalidOrderAmount       Kind = "invalid_order_amount"
	KindMinimumAmountNotMet      Kind = "minimum_amount_not_met"
	KindNoApplicableItems        Kind = "no_applicable_items"
	KindExcludedItemsPresent     Kind = "excluded_items_present"
	KindInvalidArgument          Kind = "invalid_argument"
)

var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrCodeRequired, KindCodeRequired},
	{ErrCouponNotFound, KindCouponNotFound},
	{ErrCouponUnavailable, KindCouponUnavailable},
	{ErrUserRestrictionViolation, KindUserRestrictionViolation},
	{ErrUserNotEligible, KindUserNotEligible},
	{ErrUsageLimitExceeded, KindUsageLimitExceeded},
	{ErrInvalidOrderAmount, KindInvalidOrderAmount},
	{ErrMinimumAmountNotMet, KindMinimumAmountNotMet},
	{ErrNoApplicableItems, KindNoApplicableItems},
	{ErrExcludedItemsPresent, KindExcludedItemsPresent},
	{ErrInvalidArgument, KindInvalidArgument},
}

// KindOf returns the rejection kind carried by err, or "" when err is not a
// coupon rejection (for example an infrastructure failure).
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return ""
}

// IsRejection reports whether err is an expected coupon rejection rather
// than a system failure.
func IsRejection(err error) bool {
	return KindOf(err) != ""
}

// RejectionError is the single primary reason a coupon was refused, plus
// human-readable details for display.
type RejectionError struct {
	Reason  error
	Details []string
}

func (e *RejectionError) Error() string {
	if len(e.Details) == 0 {
		return e.Reason.Error()
	}
	return e.Reason.Error() + ": " + strings.Join(e.Details, "; ")
}

// Unwrap exposes Reason to errors.Is.
func (e *RejectionError) Unwrap() error {
	return e.Reason
}

// Messages returns the details, falling back to the reason text.
func (e *RejectionError) Messages() []string {
	if len(e.Details) == 0 {
		return []string{e.Reason.Error()}
	}
	return e.Details
}

func reject(reason error, format string, args ...any) *RejectionError {
	return &RejectionError{
		Reason:  reason,
		Details: []string{fmt.Sprintf(format, args...)},
	}
}
