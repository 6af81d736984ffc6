package postgres

import (
	"context"
	"fmt"
	"slices"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/luxethreads/promotions/internal/domain/coupon"
	"github.com/luxethreads/promotions/internal/domain/order"
)

const (
	createOrderSQL = `INSERT INTO orders (id, customer_id, lines, currency,
		subtotal, shipping, tax, discount, total, coupon_id, coupon_code, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	reserveStockSQL = `UPDATE products SET stock = stock - $2
		WHERE id = $1 AND stock - reserved >= $2
		RETURNING stock`

	availableStockSQL = `SELECT stock - reserved FROM products WHERE id = $1`

	lockCouponSQL = `SELECT max_uses, uses_count, max_uses_per_user
		FROM coupons WHERE id = $1 AND deleted_at IS NULL FOR UPDATE`

	incrementCouponUsesSQL = `UPDATE coupons SET uses_count = uses_count + 1 WHERE id = $1`

	createUsageSQL = `INSERT INTO coupon_usages (coupon_id, customer_id, order_id, discount_amount, used_at)
	VALUES ($1, $2, $3, $4, $5)`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a new order in one transaction: the coupon row is locked
// and its caps re-checked, stock is decremented, and the order and usage
// rows are inserted. The order lines are stored as a JSONB array.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order, usage *coupon.Usage) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if usage != nil {
			if err := claimCoupon(ctx, tx, usage); err != nil {
				return err
			}
		}
		if err := reserveStock(ctx, tx, o.Lines); err != nil {
			return err
		}

		_, err := tx.Exec(ctx, createOrderSQL,
			o.ID, o.CustomerID, encodeLines(o.Lines), o.Currency,
			o.Total.Subtotal, o.Total.Shipping, o.Total.Tax, o.Total.Discount, o.Total.Total(),
			o.CouponID, o.CouponCode, o.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("inserting order: %w", err)
		}

		if usage != nil {
			var customerID *int64
			if usage.CustomerID != 0 {
				customerID = &usage.CustomerID
			}
			_, err := tx.Exec(ctx, createUsageSQL,
				usage.CouponID, customerID, usage.OrderID, usage.DiscountAmount, usage.UsedAt,
			)
			if err != nil {
				return fmt.Errorf("recording coupon usage: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		if coupon.IsRejection(err) {
			return err
		}
		var stockErr *order.InsufficientStockError
		if errors.As(err, &stockErr) {
			return err
		}
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}
	return nil
}

// claimCoupon locks the coupon row so concurrent checkouts serialize on it,
// then re-checks the global and per-customer caps before counting the use.
func claimCoupon(ctx context.Context, tx pgx.Tx, usage *coupon.Usage) error {
	var maxUses, usesCount, maxPerUser int32
	err := tx.QueryRow(ctx, lockCouponSQL, usage.CouponID).Scan(&maxUses, &usesCount, &maxPerUser)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &coupon.RejectionError{Reason: coupon.ErrCouponNotFound}
		}
		return fmt.Errorf("locking coupon %d: %w", usage.CouponID, err)
	}

	if maxUses > 0 && usesCount >= maxUses {
		return &coupon.RejectionError{
			Reason:  coupon.ErrUsageLimitExceeded,
			Details: []string{fmt.Sprintf("coupon has been redeemed %d of %d times", usesCount, maxUses)},
		}
	}
	if maxPerUser > 0 && usage.CustomerID != 0 {
		var used int64
		if err := tx.QueryRow(ctx, countCouponUsageSQL, usage.CouponID, usage.CustomerID).Scan(&used); err != nil {
			return fmt.Errorf("counting coupon usage: %w", err)
		}
		if used >= int64(maxPerUser) {
			return &coupon.RejectionError{
				Reason:  coupon.ErrUsageLimitExceeded,
				Details: []string{fmt.Sprintf("coupon can be used %d time(s) per customer", maxPerUser)},
			}
		}
	}

	if _, err := tx.Exec(ctx, incrementCouponUsesSQL, usage.CouponID); err != nil {
		return fmt.Errorf("incrementing coupon uses: %w", err)
	}
	return nil
}

// reserveStock decrements stock per product in ascending id order so that
// concurrent orders lock rows consistently.
func reserveStock(ctx context.Context, tx pgx.Tx, lines []order.Line) error {
	qty := make(map[int64]int, len(lines))
	for _, l := range lines {
		qty[l.ProductID] += l.Quantity
	}
	ids := make([]int64, 0, len(qty))
	for id := range qty {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	for _, id := range ids {
		var left int32
		err := tx.QueryRow(ctx, reserveStockSQL, id, qty[id]).Scan(&left)
		if err == nil {
			continue
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("reserving stock for product %d: %w", id, err)
		}

		var available int32
		if err := tx.QueryRow(ctx, availableStockSQL, id).Scan(&available); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return &order.ProductNotFoundError{ProductID: id}
			}
			return fmt.Errorf("reading stock for product %d: %w", id, err)
		}
		return &order.InsufficientStockError{
			ProductID: id,
			Requested: qty[id],
			Available: max(int(available), 0),
		}
	}
	return nil
}

func encodeLines(lines []order.Line) []byte {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	e.ArrStart()
	for _, l := range lines {
		e.ObjStart()
		e.FieldStart("product_id")
		e.Int64(l.ProductID)
		e.FieldStart("quantity")
		e.Int(l.Quantity)
		e.FieldStart("unit_price")
		e.Str(l.UnitPrice.StringFixed(2))
		e.ObjEnd()
	}
	e.ArrEnd()

	return slices.Clone(e.Bytes())
}
