package cache

import (
	"context"

	"github.com/luxethreads/promotions/internal/domain/coupon"
	"github.com/luxethreads/promotions/internal/domain/order"
)

var _ order.Repository = (*OrderStore)(nil)

// OrderStore wraps an order.Repository and evicts the redeemed coupon once
// the order is stored, so the next lookup sees the new usage count.
type OrderStore struct {
	next    order.Repository
	coupons *CouponCache
}

// NewOrderStore returns an OrderStore evicting from coupons.
func NewOrderStore(next order.Repository, coupons *CouponCache) *OrderStore {
	return &OrderStore{next: next, coupons: coupons}
}

// Create stores the order and, when a coupon was redeemed, evicts it.
func (s *OrderStore) Create(ctx context.Context, o *order.Order, usage *coupon.Usage) error {
	if err := s.next.Create(ctx, o, usage); err != nil {
		return err
	}
	if usage != nil && o.CouponCode != "" {
		s.coupons.forget(ctx, o.CouponCode)
	}
	return nil
}
