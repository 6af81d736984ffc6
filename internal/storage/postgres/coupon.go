package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/luxethreads/promotions/internal/domain/coupon"
)

const couponColumns = `id, code, description, discount_type, value, currency,
	max_discount_amount, min_order_amount, valid_from, valid_until, active,
	max_uses, uses_count, max_uses_per_user, new_users_only, first_order_only,
	applicable_categories, applicable_products, applicable_brands,
	excluded_categories, excluded_products, excluded_brands,
	allowed_users, denied_users, created_at`

const (
	getCouponByCodeSQL = `SELECT ` + couponColumns + `
		FROM coupons WHERE code = $1 AND deleted_at IS NULL`

	insertCouponSQL = `INSERT INTO coupons (code, description, discount_type, value, currency,
		max_discount_amount, min_order_amount, valid_from, valid_until, active,
		max_uses, max_uses_per_user, new_users_only, first_order_only,
		applicable_categories, applicable_products, applicable_brands,
		excluded_categories, excluded_products, excluded_brands,
		allowed_users, denied_users)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
		$15, $16, $17, $18, $19, $20, $21, $22)`

	createCouponSQL = insertCouponSQL + ` RETURNING id, created_at`

	upsertCouponSQL = insertCouponSQL + `
	ON CONFLICT (code) WHERE deleted_at IS NULL DO UPDATE SET
		description = EXCLUDED.description,
		discount_type = EXCLUDED.discount_type,
		value = EXCLUDED.value,
		currency = EXCLUDED.currency,
		max_discount_amount = EXCLUDED.max_discount_amount,
		min_order_amount = EXCLUDED.min_order_amount,
		valid_from = EXCLUDED.valid_from,
		valid_until = EXCLUDED.valid_until,
		active = EXCLUDED.active,
		max_uses = EXCLUDED.max_uses,
		max_uses_per_user = EXCLUDED.max_uses_per_user,
		new_users_only = EXCLUDED.new_users_only,
		first_order_only = EXCLUDED.first_order_only,
		applicable_categories = EXCLUDED.applicable_categories,
		applicable_products = EXCLUDED.applicable_products,
		applicable_brands = EXCLUDED.applicable_brands,
		excluded_categories = EXCLUDED.excluded_categories,
		excluded_products = EXCLUDED.excluded_products,
		excluded_brands = EXCLUDED.excluded_brands,
		allowed_users = EXCLUDED.allowed_users,
		denied_users = EXCLUDED.denied_users`

	deactivateExpiredSQL = `UPDATE coupons SET active = FALSE
		WHERE active AND deleted_at IS NULL AND valid_until < $1
		RETURNING code`

	softDeleteCouponSQL = `UPDATE coupons SET deleted_at = $2, active = FALSE
		WHERE code = $1 AND deleted_at IS NULL`
)

const uniqueViolation = "23505"

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// FindByCode looks up a coupon by its normalized code. Inactive coupons are
// returned so the caller can tell them apart from unknown codes; soft-deleted
// ones are not.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, getCouponByCodeSQL, code)
	if err != nil {
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrCouponNotFound
		}
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}
	return &c, nil
}

// Create inserts c and fills in its ID and CreatedAt. The code of a
// soft-deleted coupon can be reused.
func (r *CouponRepository) Create(ctx context.Context, c *coupon.Coupon) error {
	err := r.pool.QueryRow(ctx, createCouponSQL, couponArgs(c)...).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return coupon.ErrCodeTaken
		}
		return fmt.Errorf("creating coupon %q: %w", c.Code, err)
	}
	return nil
}

// Upsert inserts or replaces coupons by code in a single batch. Usage
// counters of existing coupons are preserved; a deleted coupon is not
// revived, a new one is inserted under its code.
func (r *CouponRepository) Upsert(ctx context.Context, coupons []coupon.Coupon) error {
	if len(coupons) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for i := range coupons {
		batch.Queue(upsertCouponSQL, couponArgs(&coupons[i])...)
	}
	if err := r.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("upserting %d coupons: %w", len(coupons), err)
	}
	return nil
}

// DeactivateExpired marks coupons whose window closed before now as
// inactive and returns their codes.
func (r *CouponRepository) DeactivateExpired(ctx context.Context, now time.Time) ([]string, error) {
	rows, err := r.pool.Query(ctx, deactivateExpiredSQL, now)
	if err != nil {
		return nil, fmt.Errorf("deactivating expired coupons: %w", err)
	}
	codes, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("deactivating expired coupons: %w", err)
	}
	return codes, nil
}

// Delete soft-deletes the coupon stored under code.
func (r *CouponRepository) Delete(ctx context.Context, code string, now time.Time) error {
	tag, err := r.pool.Exec(ctx, softDeleteCouponSQL, code, now)
	if err != nil {
		return fmt.Errorf("deleting coupon %q: %w", code, err)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrCouponNotFound
	}
	return nil
}

func couponArgs(c *coupon.Coupon) []any {
	return []any{
		c.Code, c.Description, string(c.DiscountType), c.Value, c.Currency,
		c.MaxDiscountAmount, c.MinOrderAmount, c.ValidFrom, c.ValidUntil, c.Active,
		c.MaxUses, c.MaxUsesPerUser, c.NewUsersOnly, c.FirstOrderOnly,
		c.ApplicableCategories.Slice(), c.ApplicableProducts.Slice(), c.ApplicableBrands.Slice(),
		c.ExcludedCategories.Slice(), c.ExcludedProducts.Slice(), c.ExcludedBrands.Slice(),
		c.AllowedUsers.Slice(), c.DeniedUsers.Slice(),
	}
}

func scanCoupon(row pgx.CollectableRow) (coupon.Coupon, error) {
	var (
		c              coupon.Coupon
		discountType   string
		maxDiscount    decimal.NullDecimal
		minOrder       decimal.NullDecimal
		maxUses        int32
		usesCount      int32
		maxUsesPerUser int32

		applicableCategories, applicableProducts, applicableBrands []int64
		excludedCategories, excludedProducts, excludedBrands       []int64
		allowedUsers, deniedUsers                                  []int64
	)
	err := row.Scan(
		&c.ID, &c.Code, &c.Description, &discountType, &c.Value, &c.Currency,
		&maxDiscount, &minOrder, &c.ValidFrom, &c.ValidUntil, &c.Active,
		&maxUses, &usesCount, &maxUsesPerUser, &c.NewUsersOnly, &c.FirstOrderOnly,
		&applicableCategories, &applicableProducts, &applicableBrands,
		&excludedCategories, &excludedProducts, &excludedBrands,
		&allowedUsers, &deniedUsers, &c.CreatedAt,
	)
	c.DiscountType = coupon.DiscountType(discountType)
	c.MaxDiscountAmount = maxDiscount
	c.MinOrderAmount = minOrder
	c.MaxUses = int(maxUses)
	c.UsesCount = int(usesCount)
	c.MaxUsesPerUser = int(maxUsesPerUser)
	c.ApplicableCategories = coupon.NewIDSet(applicableCategories...)
	c.ApplicableProducts = coupon.NewIDSet(applicableProducts...)
	c.ApplicableBrands = coupon.NewIDSet(applicableBrands...)
	c.ExcludedCategories = coupon.NewIDSet(excludedCategories...)
	c.ExcludedProducts = coupon.NewIDSet(excludedProducts...)
	c.ExcludedBrands = coupon.NewIDSet(excludedBrands...)
	c.AllowedUsers = coupon.NewIDSet(allowedUsers...)
	c.DeniedUsers = coupon.NewIDSet(deniedUsers...)
	return c, err
}
