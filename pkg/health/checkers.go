package health

import (
	"context"
	"runtime"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck fails when the database does not answer a ping.
func PingCheck(p Pinger) CheckFunc {
	return func(ctx context.Context) error {
		if err := p.Ping(ctx); err != nil {
			return errors.Wrap(err, "ping")
		}
		return nil
	}
}

// PoolExhaustedCheck fails when every connection of the pool is acquired.
func PoolExhaustedCheck(stat func() *pgxpool.Stat) CheckFunc {
	return func(context.Context) error {
		s := stat()
		if s.MaxConns() > 0 && s.AcquiredConns() >= s.MaxConns() {
			return errors.Errorf("all %d connections acquired", s.MaxConns())
		}
		return nil
	}
}

// RedisPinger is satisfied by *redis.Client.
type RedisPinger interface {
	Ping(ctx context.Context) *redis.StatusCmd
}

// RedisCheck fails when redis does not answer PING.
func RedisCheck(rdb RedisPinger) CheckFunc {
	return func(ctx context.Context) error {
		if err := rdb.Ping(ctx).Err(); err != nil {
			return errors.Wrap(err, "redis ping")
		}
		return nil
	}
}

// GoroutineCountCheck fails when the number of goroutines exceeds threshold,
// which usually means a leak.
func GoroutineCountCheck(threshold int) CheckFunc {
	return func(context.Context) error {
		if n := runtime.NumGoroutine(); n > threshold {
			return errors.Errorf("goroutine count %d exceeds threshold %d", n, threshold)
		}
		return nil
	}
}
