package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/luxethreads/promotions/internal/domain/customer"
)

const getCustomerByIDSQL = `SELECT c.id, c.created_at,
		EXISTS (SELECT 1 FROM orders o WHERE o.customer_id = c.id)
	FROM customers c WHERE c.id = $1`

var _ customer.Repository = (*CustomerRepository)(nil)

// CustomerRepository implements customer.Repository backed by PostgreSQL.
type CustomerRepository struct {
	pool *pgxpool.Pool
}

// NewCustomerRepository returns a CustomerRepository that uses the given pool.
func NewCustomerRepository(pool *pgxpool.Pool) *CustomerRepository {
	return &CustomerRepository{pool: pool}
}

// FindByID returns the customer with its registration time and whether it
// has placed an order before.
func (r *CustomerRepository) FindByID(ctx context.Context, id int64) (*customer.Customer, error) {
	var c customer.Customer
	err := r.pool.QueryRow(ctx, getCustomerByIDSQL, id).Scan(&c.ID, &c.CreatedAt, &c.HasPriorOrders)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, customer.ErrNotFound
		}
		return nil, fmt.Errorf("getting customer %d: %w", id, err)
	}
	return &c, nil
}
