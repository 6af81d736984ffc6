package app

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Expirer deactivates coupons whose validity window has closed.
type Expirer interface {
	DeactivateExpired(ctx context.Context, now time.Time) ([]string, error)
}

// Sweeper periodically deactivates expired coupons so that they stop
// showing up as active in listings and cached lookups.
type Sweeper struct {
	coupons Expirer
	lg      *zap.Logger
	now     func() time.Time
	cron    *cron.Cron
}

// NewSweeper creates a Sweeper. Call Start to schedule it.
func NewSweeper(coupons Expirer, lg *zap.Logger) *Sweeper {
	return &Sweeper{
		coupons: coupons,
		lg:      lg,
		now:     time.Now,
		cron:    cron.New(),
	}
}

// Start schedules the sweep with a cron spec such as "@every 5m" or
// "*/10 * * * *". Runs stop once ctx is done or Stop is called.
func (s *Sweeper) Start(ctx context.Context, schedule string) error {
	if _, err := s.cron.AddFunc(schedule, func() { s.Sweep(ctx) }); err != nil {
		return errors.Wrapf(err, "schedule sweeper %q", schedule)
	}
	s.cron.Start()
	s.lg.Info("Sweeper scheduled", zap.String("schedule", schedule))
	return nil
}

// Stop unschedules the sweep and waits for a running one to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

// Sweep runs one deactivation pass.
func (s *Sweeper) Sweep(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	start := s.now()
	codes, err := s.coupons.DeactivateExpired(ctx, start)
	if err != nil {
		s.lg.Error("Sweep failed", zap.Error(err))
		return
	}
	if len(codes) == 0 {
		s.lg.Debug("No expired coupons")
		return
	}
	s.lg.Info("Deactivated expired coupons",
		zap.Int("count", len(codes)),
		zap.Strings("codes", codes),
	)
}
