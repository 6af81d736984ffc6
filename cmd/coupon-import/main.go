// Command coupon-import bulk-loads coupons from gzipped JSON-lines files.
//
//	coupon-import --database-url postgres://... spring.jsonl.gz partners.jsonl.gz
//
// Every line is one coupon in the API format. Invalid lines are logged and
// skipped; when the same code appears more than once the first occurrence read
// wins. Existing coupons are updated in place, keeping their usage counters.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/luxethreads/promotions/internal/logger"
	"github.com/luxethreads/promotions/internal/storage/postgres"
)

func main() {
	var (
		databaseURL string
		batchSize   int
		estimate    uint
		logOpts     logger.Options
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.IntVar(&batchSize, "batch-size", 500, "coupons per upsert batch")
	flag.UintVar(&estimate, "expected", 1_000_000, "expected number of coupons, sizes the bloom filter")
	flag.StringVar(&logOpts.Level, "log-level", "info", "log level")
	flag.StringVar(&logOpts.File, "log-file", "", "also write logs to this rotated file")
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
	if flag.NArg() == 0 {
		lg.Error("No input files given")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, lg, databaseURL, flag.Args(), batchSize, estimate); err != nil {
		lg.Error("Coupon import failed", zap.Error(err))
		_ = closeLog()
		os.Exit(1)
	}
}

func run(ctx context.Context, lg *zap.Logger, databaseURL string, files []string, batchSize int, estimate uint) error {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			return errors.Wrapf(err, "check file %s", f)
		}
	}

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	im := &importer{
		store:     postgres.NewCouponRepository(pool),
		lg:        lg,
		batchSize: max(1, batchSize),
		estimate:  max(1, estimate),
		fpr:       0.001,
	}
	st, err := im.Run(ctx, files)
	if err != nil {
		return err
	}

	lg.Info("Coupon import completed",
		zap.Int("lines", st.Lines),
		zap.Int("invalid", st.Invalid),
		zap.Int("duplicates", st.Duplicates),
		zap.Int("imported", st.Imported),
	)
	return nil
}
