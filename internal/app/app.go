package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/luxethreads/promotions/internal/domain/coupon"
	"github.com/luxethreads/promotions/internal/domain/order"
	"github.com/luxethreads/promotions/internal/handler"
	"github.com/luxethreads/promotions/internal/storage/cache"
	"github.com/luxethreads/promotions/internal/storage/postgres"
	"github.com/luxethreads/promotions/pkg/health"
	"github.com/luxethreads/promotions/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	pricing, err := cfg.Checkout.Pricing()
	if err != nil {
		return errors.Wrap(err, "checkout pricing")
	}

	// PostgreSQL pool + migrations.
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	probes := health.New(lg.Named("health"))
	probes.Add(health.Readiness, "postgres", health.PingCheck(pool), health.WithTimeout(5*time.Second))
	probes.Add(health.Readiness, "postgres_pool", health.PoolExhaustedCheck(pool.Stat), health.WithThresholds(5, 1))
	probes.Add(health.Liveness, "goroutines", health.GoroutineCountCheck(10000), health.WithTimeout(time.Second))

	// Repositories.
	productRepo := postgres.NewProductRepository(pool)
	customerRepo := postgres.NewCustomerRepository(pool)
	var orderRepo order.Repository = postgres.NewOrderRepository(pool)
	usageRepo := postgres.NewUsageRepository(pool)

	var couponRepo coupon.Repository = postgres.NewCouponRepository(pool)
	if cfg.Redis.Enabled() {
		opts, err := cfg.Redis.Options()
		if err != nil {
			return err
		}
		rdb := redis.NewClient(opts)
		defer func() { _ = rdb.Close() }()

		couponCache := cache.NewCouponCache(couponRepo, rdb, cfg.Redis.TTL)
		couponRepo = couponCache
		orderRepo = cache.NewOrderStore(orderRepo, couponCache)
		probes.Add(health.Readiness, "redis", health.RedisCheck(rdb), health.WithTimeout(2*time.Second))
		lg.Info("Coupon cache enabled", zap.String("redis", opts.Addr), zap.Duration("ttl", cfg.Redis.TTL))
	}

	// Domain services.
	couponService, err := coupon.NewService(couponRepo, usageRepo,
		coupon.WithTracerProvider(m.TracerProvider()),
		coupon.WithMeterProvider(m.MeterProvider()),
	)
	if err != nil {
		return errors.Wrap(err, "create coupon service")
	}
	orderService := order.NewService(productRepo, customerRepo, couponService, orderRepo, pricing)

	sweeper := NewSweeper(couponRepo, lg.Named("sweeper"))
	if err := sweeper.Start(ctx, cfg.Sweeper.Schedule); err != nil {
		return err
	}
	defer sweeper.Stop()

	probes.Start(ctx, 10*time.Second)
	probes.SetReady(true)

	// HTTP handlers.
	h := handler.NewHandler(
		handler.HandlerConfig{ImageBaseURL: cfg.ImageBaseURL},
		productRepo,
		customerRepo,
		couponService,
		orderService,
	)
	applyLimit := httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
		RPS:   cfg.RateLimit.RPS,
		Burst: cfg.RateLimit.Burst,
	})

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: h.Router(probes, applyLimit,
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(lg),
			httpmiddleware.Recovery(),
			httpmiddleware.Instrument("promotions-api", handler.RoutePattern, m),
			httpmiddleware.LogRequests(handler.RoutePattern),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		probes.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		probes.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
