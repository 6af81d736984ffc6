//go:build integration

package postgres

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/luxethreads/promotions/internal/domain/coupon"
	"github.com/luxethreads/promotions/internal/domain/customer"
	"github.com/luxethreads/promotions/internal/domain/money"
	"github.com/luxethreads/promotions/internal/domain/order"
	"github.com/luxethreads/promotions/internal/domain/product"
)

var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	os.Exit(testMain(m))
}

func testMain(m *testing.M) int {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pg, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "luxe",
				"POSTGRES_PASSWORD": "luxe",
				"POSTGRES_DB":       "promotions",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	if err != nil {
		log.Fatalf("start postgres: %v", err)
	}
	defer func() {
		if err := pg.Terminate(context.Background()); err != nil {
			log.Printf("terminate postgres: %v", err)
		}
	}()

	host, err := pg.Host(ctx)
	if err != nil {
		log.Fatalf("host: %v", err)
	}
	port, err := pg.MappedPort(ctx, "5432/tcp")
	if err != nil {
		log.Fatalf("mapped port: %v", err)
	}

	dsn := fmt.Sprintf("postgres://luxe:luxe@%s:%s/promotions?sslmode=disable", host, port.Port())
	testPool, err = NewPool(ctx, dsn)
	if err != nil {
		log.Fatalf("pool: %v", err)
	}
	defer testPool.Close()

	if err := RunMigrations(ctx, testPool); err != nil {
		log.Fatalf("migrations: %v", err)
	}

	return m.Run()
}

func seedProduct(t *testing.T, stock int) int64 {
	t.Helper()
	var id int64
	err := testPool.QueryRow(context.Background(),
		`INSERT INTO products (name, category_id, brand_id, base_price, discounted_price, stock)
		VALUES ($1, 1, 2, 100.00, 80.00, $2) RETURNING id`,
		"Linen Shirt "+uuid.NewString(), stock,
	).Scan(&id)
	require.NoError(t, err)
	return id
}

func seedCustomer(t *testing.T) int64 {
	t.Helper()
	var id int64
	err := testPool.QueryRow(context.Background(),
		`INSERT INTO customers (email) VALUES ($1) RETURNING id`,
		uuid.NewString()+"@example.com",
	).Scan(&id)
	require.NoError(t, err)
	return id
}

func newCoupon(code string) *coupon.Coupon {
	return &coupon.Coupon{
		Code:                 code,
		Description:          "integration",
		DiscountType:         coupon.DiscountPercentage,
		Value:                decimal.NewFromInt(10),
		Currency:             "USD",
		MaxDiscountAmount:    decimal.NewNullDecimal(decimal.NewFromInt(50)),
		Active:               true,
		ApplicableCategories: coupon.NewIDSet(1, 3),
		DeniedUsers:          coupon.NewIDSet(99),
	}
}

func TestProductRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewProductRepository(testPool)
	id := seedProduct(t, 7)

	p, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.True(t, p.Price.Discounted())
	assert.True(t, decimal.NewFromInt(80).Equal(p.Price.Effective().Amount()))
	assert.True(t, decimal.NewFromInt(20).Equal(p.Price.DiscountPercentage()))
	assert.Equal(t, 7, p.Inventory.Available())
	assert.Equal(t, product.StatusInStock, p.Inventory.Status())

	batch, err := repo.GetByIDs(ctx, []int64{id, -1})
	require.NoError(t, err)
	assert.Len(t, batch, 1)

	_, err = repo.GetByID(ctx, -1)
	require.ErrorIs(t, err, product.ErrNotFound)
}

func TestCouponRepository_RoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewCouponRepository(testPool)

	c := newCoupon("RT-" + uuid.NewString()[:8])
	require.NoError(t, c.Validate())
	require.NoError(t, repo.Create(ctx, c))
	assert.NotZero(t, c.ID)

	got, err := repo.FindByCode(ctx, c.Code)
	require.NoError(t, err)
	assert.Equal(t, c.Code, got.Code)
	assert.True(t, got.MaxDiscountAmount.Valid)
	assert.True(t, decimal.NewFromInt(50).Equal(got.MaxDiscountAmount.Decimal))
	assert.False(t, got.MinOrderAmount.Valid)
	assert.True(t, got.ApplicableCategories.Has(3))
	assert.True(t, got.DeniedUsers.Has(99))
	assert.True(t, got.ExcludedBrands.Empty())

	require.NoError(t, repo.Delete(ctx, c.Code, time.Now()))
	_, err = repo.FindByCode(ctx, c.Code)
	require.ErrorIs(t, err, coupon.ErrCouponNotFound)
}

func TestCouponRepository_CodeReuse(t *testing.T) {
	ctx := context.Background()
	repo := NewCouponRepository(testPool)
	code := "DUP-" + uuid.NewString()[:8]

	first := newCoupon(code)
	require.NoError(t, repo.Create(ctx, first))
	require.ErrorIs(t, repo.Create(ctx, newCoupon(code)), coupon.ErrCodeTaken)

	require.NoError(t, repo.Delete(ctx, code, time.Now()))

	second := newCoupon(code)
	require.NoError(t, repo.Create(ctx, second))
	assert.NotEqual(t, first.ID, second.ID)

	second.Value = decimal.NewFromInt(30)
	require.NoError(t, repo.Upsert(ctx, []coupon.Coupon{*second}))

	got, err := repo.FindByCode(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.ID)
	assert.True(t, decimal.NewFromInt(30).Equal(got.Value))
}

func TestCouponRepository_DeactivateExpired(t *testing.T) {
	ctx := context.Background()
	repo := NewCouponRepository(testPool)

	past := time.Now().Add(-time.Hour)
	c := newCoupon("EXP-" + uuid.NewString()[:8])
	c.ValidUntil = &past
	require.NoError(t, repo.Create(ctx, c))

	codes, err := repo.DeactivateExpired(ctx, time.Now())
	require.NoError(t, err)
	assert.Contains(t, codes, c.Code)

	// Inactive coupons are still found; availability is decided by the engine.
	got, err := repo.FindByCode(ctx, c.Code)
	require.NoError(t, err)
	assert.False(t, got.Active)
}

func TestCouponRepository_Upsert(t *testing.T) {
	ctx := context.Background()
	repo := NewCouponRepository(testPool)

	c := newCoupon("UP-" + uuid.NewString()[:8])
	require.NoError(t, repo.Upsert(ctx, []coupon.Coupon{*c}))

	c.Value = decimal.NewFromInt(25)
	require.NoError(t, repo.Upsert(ctx, []coupon.Coupon{*c}))

	got, err := repo.FindByCode(ctx, c.Code)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(25).Equal(got.Value))
}

func TestCustomerRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewCustomerRepository(testPool)
	id := seedCustomer(t)

	c, err := repo.FindByID(ctx, id)
	require.NoError(t, err)
	assert.False(t, c.HasPriorOrders)

	_, err = repo.FindByID(ctx, -1)
	require.ErrorIs(t, err, customer.ErrNotFound)
}

func placeOrder(t *testing.T, repo *OrderRepository, productID, customerID int64, c *coupon.Coupon) error {
	t.Helper()
	total, err := money.NewOrderTotal(decimal.NewFromInt(80), decimal.NewFromInt(5), decimal.Zero, decimal.NewFromInt(8))
	require.NoError(t, err)

	o := &order.Order{
		ID:         uuid.NewString(),
		CustomerID: &customerID,
		Lines:      []order.Line{{ProductID: productID, Quantity: 1, UnitPrice: decimal.NewFromInt(80)}},
		Currency:   "USD",
		Total:      total,
		CouponID:   &c.ID,
		CouponCode: c.Code,
		CreatedAt:  time.Now().UTC(),
	}
	return repo.Create(context.Background(), o, &coupon.Usage{
		CouponID:       c.ID,
		CustomerID:     customerID,
		OrderID:        o.ID,
		DiscountAmount: total.Discount,
		UsedAt:         o.CreatedAt,
	})
}

func TestOrderRepository_PerCustomerCap(t *testing.T) {
	ctx := context.Background()
	coupons := NewCouponRepository(testPool)
	orders := NewOrderRepository(testPool)
	usage := NewUsageRepository(testPool)

	c := newCoupon("ONCE-" + uuid.NewString()[:8])
	c.MaxUsesPerUser = 1
	require.NoError(t, coupons.Create(ctx, c))

	productID := seedProduct(t, 10)
	customerID := seedCustomer(t)

	require.NoError(t, placeOrder(t, orders, productID, customerID, c))

	n, err := usage.CountForUser(ctx, c.ID, customerID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	err = placeOrder(t, orders, productID, customerID, c)
	require.ErrorIs(t, err, coupon.ErrUsageLimitExceeded)

	got, err := coupons.FindByCode(ctx, c.Code)
	require.NoError(t, err)
	assert.Equal(t, 1, got.UsesCount)

	cust, err := NewCustomerRepository(testPool).FindByID(ctx, customerID)
	require.NoError(t, err)
	assert.True(t, cust.HasPriorOrders)
}

func TestOrderRepository_GlobalCapUnderConcurrency(t *testing.T) {
	ctx := context.Background()
	coupons := NewCouponRepository(testPool)
	orders := NewOrderRepository(testPool)

	c := newCoupon("RACE-" + uuid.NewString()[:8])
	c.MaxUses = 3
	require.NoError(t, coupons.Create(ctx, c))
	productID := seedProduct(t, 100)

	const workers = 10
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
		refused  int
	)
	for range workers {
		customerID := seedCustomer(t)
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := placeOrder(t, orders, productID, customerID, c)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				accepted++
			case coupon.KindOf(err) == coupon.KindUsageLimitExceeded:
				refused++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, accepted)
	assert.Equal(t, workers-3, refused)

	got, err := coupons.FindByCode(ctx, c.Code)
	require.NoError(t, err)
	assert.Equal(t, 3, got.UsesCount)
}

func TestOrderRepository_InsufficientStock(t *testing.T) {
	ctx := context.Background()
	coupons := NewCouponRepository(testPool)
	orders := NewOrderRepository(testPool)

	c := newCoupon("STOCK-" + uuid.NewString()[:8])
	require.NoError(t, coupons.Create(ctx, c))
	productID := seedProduct(t, 0)

	err := placeOrder(t, orders, productID, seedCustomer(t), c)
	var stockErr *order.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 0, stockErr.Available)

	// The transaction rolled back, so the coupon use was not counted.
	got, err := coupons.FindByCode(ctx, c.Code)
	require.NoError(t, err)
	assert.Zero(t, got.UsesCount)
}
