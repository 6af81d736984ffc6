package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/luxethreads/promotions/internal/domain/coupon"
	"github.com/luxethreads/promotions/internal/domain/money"
)

// Order represents a placed customer order with its price breakdown.
type Order struct {
	ID         string
	CustomerID *int64
	Lines      []Line
	Currency   string
	Total      money.OrderTotal
	CouponID   *int64
	CouponCode string
	CreatedAt  time.Time
}

// Line is a priced order line.
type Line struct {
	ProductID int64
	Quantity  int
	UnitPrice decimal.Decimal
}

// Item is a requested order line.
type Item struct {
	ProductID int64
	Quantity  int
}

// Repository defines persistence operations for orders.
type Repository interface {
	// Create stores the order and decrements stock for every line. When
	// usage is not nil the coupon redemption is recorded in the same
	// transaction, after re-checking the global and per-customer caps.
	Create(ctx context.Context, o *Order, usage *coupon.Usage) error
}
