// Package customer holds the customer reference consumed by coupon eligibility rules.
package customer

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when a customer does not exist.
var ErrNotFound = errors.New("customer not found")

// Customer is the subset of a storefront account that promotion rules need.
type Customer struct {
	ID             int64
	CreatedAt      time.Time
	HasPriorOrders bool
}

// Repository resolves customers by id.
type Repository interface {
	FindByID(ctx context.Context, id int64) (*Customer, error)
}
