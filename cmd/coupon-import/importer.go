package main

import (
	"bufio"
	"context"
	"os"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	pgzip "github.com/klauspost/pgzip"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/luxethreads/promotions/internal/couponjson"
	"github.com/luxethreads/promotions/internal/domain/coupon"
)

const maxLineSize = 1 << 20

// upserter is satisfied by *postgres.CouponRepository.
type upserter interface {
	Upsert(ctx context.Context, coupons []coupon.Coupon) error
}

type stats struct {
	Lines      int
	Invalid    int
	Duplicates int
	Imported   int
}

// record is one decoded line. err is set when the line is not a valid coupon.
type record struct {
	file   string
	line   int
	coupon *coupon.Coupon
	err    error
}

// importer loads coupons from gzipped JSON-lines files.
//
// Pass 1 streams every file through a bloom filter and collects the codes
// the filter has already seen. Those suspects are exact-checked in pass 2,
// so only duplicates and false positives are kept in memory; every other
// code is known to be unique.
type importer struct {
	store     upserter
	lg        *zap.Logger
	batchSize int
	estimate  uint
	fpr       float64
}

func (im *importer) Run(ctx context.Context, files []string) (stats, error) {
	var st stats

	im.lg.Info("Pass 1: scanning for duplicate codes", zap.Int("files", len(files)))
	suspects, err := im.findSuspects(ctx, files, &st)
	if err != nil {
		return st, errors.Wrap(err, "find duplicates")
	}
	im.lg.Info("Pass 1 complete",
		zap.Int("lines", st.Lines),
		zap.Int("invalid", st.Invalid),
		zap.Int("suspects", len(suspects)),
	)

	im.lg.Info("Pass 2: importing coupons", zap.Int("batch_size", im.batchSize))
	if err := im.load(ctx, files, suspects, &st); err != nil {
		return st, errors.Wrap(err, "load coupons")
	}
	return st, nil
}

func (im *importer) findSuspects(ctx context.Context, files []string, st *stats) (map[string]struct{}, error) {
	filter := bloom.NewWithEstimates(im.estimate, im.fpr)
	suspects := make(map[string]struct{})

	err := scan(ctx, files, func(rec record) error {
		st.Lines++
		if rec.err != nil {
			st.Invalid++
			im.lg.Warn("Skipping invalid line",
				zap.String("file", rec.file),
				zap.Int("line", rec.line),
				zap.Error(rec.err),
			)
			return nil
		}
		if filter.TestAndAddString(rec.coupon.Code) {
			suspects[rec.coupon.Code] = struct{}{}
		}
		return nil
	})
	return suspects, err
}

func (im *importer) load(ctx context.Context, files []string, suspects map[string]struct{}, st *stats) error {
	emitted := make(map[string]struct{}, len(suspects))
	batch := make([]coupon.Coupon, 0, im.batchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := im.store.Upsert(ctx, batch); err != nil {
			return errors.Wrapf(err, "upsert batch of %d", len(batch))
		}
		st.Imported += len(batch)
		batch = batch[:0]
		im.lg.Debug("Batch imported", zap.Int("imported", st.Imported))
		return nil
	}

	err := scan(ctx, files, func(rec record) error {
		if rec.err != nil {
			return nil
		}
		code := rec.coupon.Code
		if _, suspect := suspects[code]; suspect {
			if _, dup := emitted[code]; dup {
				st.Duplicates++
				return nil
			}
			emitted[code] = struct{}{}
		}
		batch = append(batch, *rec.coupon)
		if len(batch) >= im.batchSize {
			return flush()
		}
		return nil
	})
	if err != nil {
		return err
	}
	return flush()
}

// scan reads all files concurrently and calls fn for every line from a
// single goroutine.
func scan(ctx context.Context, files []string, fn func(record) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	g, ctx := errgroup.WithContext(ctx)
	records := make(chan record, 1024)

	var producers sync.WaitGroup
	for _, path := range files {
		producers.Add(1)
		g.Go(func() error {
			defer producers.Done()
			return readFile(ctx, path, records)
		})
	}
	g.Go(func() error {
		producers.Wait()
		close(records)
		return nil
	})
	g.Go(func() error {
		for rec := range records {
			if err := fn(rec); err != nil {
				return err
			}
		}
		return nil
	})

	return g.Wait()
}

// readFile decodes every non-blank line of a gzip-compressed JSON-lines file.
func readFile(ctx context.Context, path string, out chan<- record) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		rec := record{file: path, line: line}
		rec.coupon, rec.err = couponjson.Decode(jx.DecodeBytes(raw))
		if rec.err == nil {
			rec.err = rec.coupon.Validate()
		}

		select {
		case out <- rec:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}
	return nil
}
