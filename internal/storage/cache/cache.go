// Package cache provides a Redis read-through cache in front of the coupon
// repository.
package cache

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/luxethreads/promotions/internal/domain/coupon"
)

const keyPrefix = "coupon:"

// Client is the subset of redis.Cmdable used by the cache.
type Client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

var (
	_ Client            = (*redis.Client)(nil)
	_ coupon.Repository = (*CouponCache)(nil)
)

// CouponCache wraps a coupon.Repository and caches FindByCode results.
// Cache failures are logged and fall through to the repository.
//
// Cached entries include UsesCount. Redemptions evict the entry through
// OrderStore; checkout re-checks the caps under a row lock regardless.
type CouponCache struct {
	next coupon.Repository
	rdb  Client
	ttl  time.Duration
}

// NewCouponCache returns a CouponCache storing entries for ttl.
func NewCouponCache(next coupon.Repository, rdb Client, ttl time.Duration) *CouponCache {
	return &CouponCache{next: next, rdb: rdb, ttl: ttl}
}

// FindByCode returns the cached coupon or loads and caches it. Misses are
// not cached.
func (c *CouponCache) FindByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	lg := zctx.From(ctx)
	key := keyPrefix + code

	raw, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		cp, err := decodeCoupon(raw)
		if err == nil {
			return cp, nil
		}
		lg.Warn("Drop undecodable cache entry", zap.String("key", key), zap.Error(err))
	case errors.Is(err, redis.Nil):
	default:
		lg.Warn("Coupon cache read failed", zap.String("key", key), zap.Error(err))
	}

	cp, err := c.next.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	if err := c.rdb.Set(ctx, key, encodeCoupon(cp), c.ttl).Err(); err != nil {
		lg.Warn("Coupon cache write failed", zap.String("key", key), zap.Error(err))
	}
	return cp, nil
}

// Create stores the coupon and drops any stale cache entry for its code.
func (c *CouponCache) Create(ctx context.Context, cp *coupon.Coupon) error {
	if err := c.next.Create(ctx, cp); err != nil {
		return err
	}
	c.forget(ctx, cp.Code)
	return nil
}

// DeactivateExpired delegates to the repository and evicts every code it
// deactivated.
func (c *CouponCache) DeactivateExpired(ctx context.Context, now time.Time) ([]string, error) {
	codes, err := c.next.DeactivateExpired(ctx, now)
	if err != nil {
		return nil, err
	}
	c.forget(ctx, codes...)
	return codes, nil
}

// Delete soft-deletes the coupon and evicts it.
func (c *CouponCache) Delete(ctx context.Context, code string, now time.Time) error {
	if err := c.next.Delete(ctx, code, now); err != nil {
		return err
	}
	c.forget(ctx, code)
	return nil
}

// Evict removes the given codes from the cache.
func (c *CouponCache) Evict(ctx context.Context, codes ...string) error {
	if len(codes) == 0 {
		return nil
	}
	keys := make([]string, len(codes))
	for i, code := range codes {
		keys[i] = keyPrefix + code
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		return errors.Wrap(err, "evict coupons")
	}
	return nil
}

// forget evicts codes after a committed write. A failure only leaves a
// stale entry until the TTL, so it is logged instead of returned.
func (c *CouponCache) forget(ctx context.Context, codes ...string) {
	if err := c.Evict(ctx, codes...); err != nil {
		zctx.From(ctx).Warn("Coupon cache eviction failed", zap.Strings("codes", codes), zap.Error(err))
	}
}
