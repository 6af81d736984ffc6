package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/luxethreads/promotions/internal/domain/coupon"
)

const countCouponUsageSQL = `SELECT count(*) FROM coupon_usages
	WHERE coupon_id = $1 AND customer_id = $2`

var _ coupon.UsageStore = (*UsageRepository)(nil)

// UsageRepository reads coupon redemption history.
type UsageRepository struct {
	pool *pgxpool.Pool
}

// NewUsageRepository returns a UsageRepository that uses the given pool.
func NewUsageRepository(pool *pgxpool.Pool) *UsageRepository {
	return &UsageRepository{pool: pool}
}

// CountForUser returns how many times userID has redeemed couponID.
func (r *UsageRepository) CountForUser(ctx context.Context, couponID, userID int64) (int, error) {
	var n int64
	if err := r.pool.QueryRow(ctx, countCouponUsageSQL, couponID, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting usage of coupon %d by customer %d: %w", couponID, userID, err)
	}
	return int(n), nil
}
