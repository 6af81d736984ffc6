// Command seed-db loads a demo catalog, customers and coupons into the
// database. Running it twice leaves the data unchanged.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/luxethreads/promotions/internal/domain/coupon"
	"github.com/luxethreads/promotions/internal/logger"
	"github.com/luxethreads/promotions/internal/storage/postgres"
)

func main() {
	var (
		databaseURL  string
		productsFile string
		logOpts      logger.Options
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
	flag.StringVar(&logOpts.Level, "log-level", "info", "log level")
	flag.Parse()

	_ = godotenv.Load()
	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}

	lg, closeLog, err := logger.New(logOpts)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer func() { _ = closeLog() }()

	if databaseURL == "" {
		lg.Error("Database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, lg, databaseURL, productsFile); err != nil {
		lg.Error("Seed failed", zap.Error(err))
		_ = closeLog()
		os.Exit(1)
	}

	lg.Info("Seed completed successfully")
}

func run(ctx context.Context, lg *zap.Logger, databaseURL, productsFile string) error {
	lg.Info("Connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	lg.Info("Running migrations")
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedProducts(ctx, lg, pool, productsFile); err != nil {
		return errors.Wrap(err, "seed products")
	}
	if err := seedCustomers(ctx, lg, pool); err != nil {
		return errors.Wrap(err, "seed customers")
	}
	if err := seedCoupons(ctx, lg, postgres.NewCouponRepository(pool)); err != nil {
		return errors.Wrap(err, "seed coupons")
	}
	return nil
}

const upsertProduct = `
INSERT INTO products (id, name, category_id, brand_id, currency, base_price, discounted_price,
	stock, low_stock_threshold, image_thumbnail, image_mobile, image_tablet, image_desktop)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
ON CONFLICT (id) DO UPDATE SET
	name = EXCLUDED.name,
	category_id = EXCLUDED.category_id,
	brand_id = EXCLUDED.brand_id,
	currency = EXCLUDED.currency,
	base_price = EXCLUDED.base_price,
	discounted_price = EXCLUDED.discounted_price,
	stock = EXCLUDED.stock,
	low_stock_threshold = EXCLUDED.low_stock_threshold,
	image_thumbnail = EXCLUDED.image_thumbnail,
	image_mobile = EXCLUDED.image_mobile,
	image_tablet = EXCLUDED.image_tablet,
	image_desktop = EXCLUDED.image_desktop`

func seedProducts(ctx context.Context, lg *zap.Logger, pool *pgxpool.Pool, path string) error {
	lg.Info("Reading products file", zap.String("path", path))

	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "read products file")
	}
	products, err := parseProducts(data)
	if err != nil {
		return errors.Wrap(err, "parse products JSON")
	}

	batch := &pgx.Batch{}
	for _, p := range products {
		batch.Queue(upsertProduct,
			p.ID, p.Name, p.CategoryID, p.BrandID, p.Currency, p.Price, p.DiscountedPrice,
			p.Stock, p.LowStockThreshold,
			p.Image.Thumbnail, p.Image.Mobile, p.Image.Tablet, p.Image.Desktop,
		)
	}
	if err := pool.SendBatch(ctx, batch).Close(); err != nil {
		return errors.Wrap(err, "upsert products")
	}

	// Explicit ids leave the sequence behind.
	if _, err := pool.Exec(ctx,
		`SELECT setval(pg_get_serial_sequence('products', 'id'), (SELECT COALESCE(MAX(id), 1) FROM products))`,
	); err != nil {
		return errors.Wrap(err, "reset product sequence")
	}

	lg.Info("Upserted products", zap.Int("count", len(products)))
	return nil
}

type seedCustomer struct {
	Email     string
	CreatedAt time.Time
}

func seedCustomers(ctx context.Context, lg *zap.Logger, pool *pgxpool.Pool) error {
	now := time.Now().UTC()
	customers := []seedCustomer{
		{Email: "long.time@luxethreads.test", CreatedAt: now.AddDate(-2, 0, 0)},
		{Email: "regular@luxethreads.test", CreatedAt: now.AddDate(0, -6, 0)},
		{Email: "new.member@luxethreads.test", CreatedAt: now},
	}

	batch := &pgx.Batch{}
	for _, c := range customers {
		batch.Queue(`INSERT INTO customers (email, created_at) VALUES ($1, $2) ON CONFLICT (email) DO NOTHING`,
			c.Email, c.CreatedAt)
	}
	if err := pool.SendBatch(ctx, batch).Close(); err != nil {
		return errors.Wrap(err, "insert customers")
	}

	lg.Info("Seeded customers", zap.Int("count", len(customers)))
	return nil
}

func seedCoupons(ctx context.Context, lg *zap.Logger, repo *postgres.CouponRepository) error {
	coupons := demoCoupons(time.Now().UTC())
	for i := range coupons {
		if err := coupons[i].Validate(); err != nil {
			return errors.Wrapf(err, "coupon %s", coupons[i].Code)
		}
	}
	if err := repo.Upsert(ctx, coupons); err != nil {
		return errors.Wrap(err, "upsert coupons")
	}

	for _, c := range coupons {
		lg.Info("Upserted coupon", zap.String("code", c.Code), zap.String("description", c.Description))
	}
	return nil
}

func demoCoupons(now time.Time) []coupon.Coupon {
	usd := "USD"
	until := now.AddDate(0, 3, 0)

	return []coupon.Coupon{
		{
			Code:              "SAVE20",
			Description:       "20% off orders over $100, up to $50",
			DiscountType:      coupon.DiscountPercentage,
			Value:             decimal.NewFromInt(20),
			Currency:          usd,
			MaxDiscountAmount: decimal.NewNullDecimal(decimal.NewFromInt(50)),
			MinOrderAmount:    decimal.NewNullDecimal(decimal.NewFromInt(100)),
			ValidUntil:        &until,
			Active:            true,
			MaxUses:           1000,
			MaxUsesPerUser:    1,
		},
		{
			Code:           "FLAT100",
			Description:    "$100 off your first order over $300",
			DiscountType:   coupon.DiscountFixedAmount,
			Value:          decimal.NewFromInt(100),
			Currency:       usd,
			MinOrderAmount: decimal.NewNullDecimal(decimal.NewFromInt(300)),
			Active:         true,
			FirstOrderOnly: true,
		},
		{
			Code:                 "SHIPFREE",
			Description:          "Free shipping on knitwear and accessories",
			DiscountType:         coupon.DiscountFreeShipping,
			Currency:             usd,
			Active:               true,
			ApplicableCategories: coupon.NewIDSet(10, 13),
		},
	}
}
