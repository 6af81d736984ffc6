package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/luxethreads/promotions/internal/domain/coupon"
)

type fakeStore struct {
	mu      sync.Mutex
	batches [][]coupon.Coupon
	err     error
}

func (s *fakeStore) Upsert(_ context.Context, coupons []coupon.Coupon) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.batches = append(s.batches, append([]coupon.Coupon(nil), coupons...))
	return nil
}

func (s *fakeStore) codes() []string {
	var out []string
	for _, b := range s.batches {
		for _, c := range b {
			out = append(out, c.Code)
		}
	}
	return out
}

func writeGzip(t *testing.T, name string, lines ...string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	require.NoError(t, err)
	gz := pgzip.NewWriter(f)
	_, err = gz.Write([]byte(strings.Join(lines, "\n") + "\n"))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())
	return path
}

func flat(code string) string {
	return `{"code":"` + code + `","discount_type":"fixed_amount","value":"10.00","currency":"USD"}`
}

func TestImporter_Run(t *testing.T) {
	first := writeGzip(t, "a.jsonl.gz",
		flat("SAVE10"),
		flat("welcome"),
		"",
		`{"code":"BROKEN"`,
		flat("save10"),
	)
	second := writeGzip(t, "b.jsonl.gz",
		flat("SPRING"),
		`{"code":"","discount_type":"percentage","value":10,"currency":"USD"}`,
		flat("WELCOME"),
		flat("AUTUMN"),
	)

	core, logs := observer.New(zap.WarnLevel)
	store := &fakeStore{}
	im := &importer{store: store, lg: zap.New(core), batchSize: 2, estimate: 100, fpr: 0.01}

	st, err := im.Run(context.Background(), []string{first, second})
	require.NoError(t, err)

	assert.Equal(t, stats{Lines: 8, Invalid: 2, Duplicates: 2, Imported: 4}, st)
	assert.ElementsMatch(t, []string{"SAVE10", "WELCOME", "SPRING", "AUTUMN"}, store.codes())
	for _, b := range store.batches {
		assert.LessOrEqual(t, len(b), 2)
	}
	assert.Equal(t, 2, logs.FilterMessage("Skipping invalid line").Len())
}

func TestImporter_Run_Errors(t *testing.T) {
	valid := writeGzip(t, "ok.jsonl.gz", flat("ONE"), flat("TWO"))

	notGzip := filepath.Join(t.TempDir(), "plain.jsonl.gz")
	require.NoError(t, os.WriteFile(notGzip, []byte(flat("ONE")), 0o600))

	tests := []struct {
		name    string
		files   []string
		store   *fakeStore
		wantErr string
	}{
		{
			name:    "missing file",
			files:   []string{valid, filepath.Join(t.TempDir(), "nope.gz")},
			store:   &fakeStore{},
			wantErr: "open",
		},
		{
			name:    "not gzip",
			files:   []string{notGzip},
			store:   &fakeStore{},
			wantErr: "gzip reader",
		},
		{
			name:    "upsert fails",
			files:   []string{valid},
			store:   &fakeStore{err: errors.New("deadlock detected")},
			wantErr: "deadlock detected",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			im := &importer{store: tt.store, lg: zap.NewNop(), batchSize: 10, estimate: 10, fpr: 0.01}
			_, err := im.Run(context.Background(), tt.files)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestImporter_Run_Cancelled(t *testing.T) {
	path := writeGzip(t, "a.jsonl.gz", flat("ONE"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	im := &importer{store: &fakeStore{}, lg: zap.NewNop(), batchSize: 10, estimate: 10, fpr: 0.01}
	_, err := im.Run(ctx, []string{path})
	assert.ErrorIs(t, err, context.Canceled)
}
