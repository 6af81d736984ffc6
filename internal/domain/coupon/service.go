package coupon

import (
	"context"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/luxethreads/promotions/internal/domain/customer"
	"github.com/luxethreads/promotions/internal/domain/money"
)

const instrumentationName = "github.com/luxethreads/promotions/internal/domain/coupon"

// Result is the outcome of a successful coupon application.
type Result struct {
	Coupon         *Coupon
	DiscountAmount money.Money
	FinalAmount    money.Money
}

// FreeShipping reports whether the applied coupon waives shipping.
func (r *Result) FreeShipping() bool {
	return r.Coupon.DiscountType == DiscountFreeShipping
}

// Applier applies a coupon code to an order. The order service depends on
// this interface rather than on *Service.
type Applier interface {
	ApplyToOrder(ctx context.Context, code string, order Order, cust *customer.Customer) (*Result, error)
}

var _ Applier = (*Service)(nil)

// Option configures a Service.
type Option func(*options)

type options struct {
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

// WithTracerProvider sets the tracer provider. Defaults to the global one.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.tracerProvider = tp }
}

// WithMeterProvider sets the meter provider. Defaults to the global one.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) { o.meterProvider = mp }
}

// Service looks coupons up by code and runs the eligibility and
// calculation pipeline. It holds no per-request state.
type Service struct {
	coupons Repository
	users   *UserValidator
	orders  *OrderValidator

	tracer       trace.Tracer
	applications metric.Int64Counter
}

// NewService creates a Service backed by the given coupon repository and
// usage store.
func NewService(coupons Repository, usage UsageStore, opts ...Option) (*Service, error) {
	o := options{
		tracerProvider: otel.GetTracerProvider(),
		meterProvider:  otel.GetMeterProvider(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	applications, err := o.meterProvider.Meter(instrumentationName).Int64Counter(
		"coupon.applications",
		metric.WithDescription("Coupon application attempts by outcome"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create applications counter")
	}

	users := NewUserValidator(usage)
	return &Service{
		coupons:      coupons,
		users:        users,
		orders:       NewOrderValidator(users),
		tracer:       o.tracerProvider.Tracer(instrumentationName),
		applications: applications,
	}, nil
}

// Apply attempts to apply code to an order amount for cust, which may be
// nil for guest checkouts. Rejections are returned as *RejectionError;
// any other error is an infrastructure failure.
func (s *Service) Apply(ctx context.Context, code string, amount money.Money, cust *customer.Customer) (_ *Result, rerr error) {
	ctx, span := s.tracer.Start(ctx, "coupon.Apply")
	defer func() { s.observe(ctx, span, rerr) }()

	c, err := s.lookup(ctx, code)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("coupon.code", c.Code))

	if err := s.users.Validate(ctx, c, cust); err != nil {
		return nil, err
	}
	if err := checkAmount(c, amount); err != nil {
		return nil, err
	}

	return calculateResult(c, amount)
}

// ApplyToOrder is like Apply but also enforces the item restrictions
// against the order lines.
func (s *Service) ApplyToOrder(ctx context.Context, code string, order Order, cust *customer.Customer) (_ *Result, rerr error) {
	ctx, span := s.tracer.Start(ctx, "coupon.ApplyToOrder")
	defer func() { s.observe(ctx, span, rerr) }()

	c, err := s.lookup(ctx, code)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("coupon.code", c.Code))

	if err := s.orders.Validate(ctx, c, order, cust); err != nil {
		return nil, err
	}

	return calculateResult(c, order.Amount)
}

// Get returns the coupon stored under code.
func (s *Service) Get(ctx context.Context, code string) (*Coupon, error) {
	return s.lookup(ctx, code)
}

// Create validates c and persists it.
func (s *Service) Create(ctx context.Context, c *Coupon) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if err := s.coupons.Create(ctx, c); err != nil {
		return errors.Wrap(err, "create coupon")
	}
	return nil
}

// Delete soft-deletes the coupon stored under code. Deleted coupons can no
// longer be looked up or applied; past orders keep referencing them.
func (s *Service) Delete(ctx context.Context, raw string) error {
	code := NormalizeCode(raw)
	if code == "" {
		return &RejectionError{Reason: ErrCodeRequired}
	}
	if err := s.coupons.Delete(ctx, code, s.users.now()); err != nil {
		if errors.Is(err, ErrCouponNotFound) {
			return reject(ErrCouponNotFound, "no coupon matches code %s", code)
		}
		return errors.Wrap(err, "delete coupon")
	}
	return nil
}

func (s *Service) lookup(ctx context.Context, raw string) (*Coupon, error) {
	code := NormalizeCode(raw)
	if code == "" {
		return nil, &RejectionError{Reason: ErrCodeRequired}
	}

	c, err := s.coupons.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrCouponNotFound) {
			return nil, reject(ErrCouponNotFound, "no coupon matches code %s", code)
		}
		return nil, errors.Wrap(err, "lookup coupon")
	}
	return c, nil
}

func (s *Service) observe(ctx context.Context, span trace.Span, err error) {
	defer span.End()

	outcome := "applied"
	switch kind := KindOf(err); {
	case err == nil:
	case kind != "":
		outcome = string(kind)
	default:
		outcome = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	span.SetAttributes(attribute.String("coupon.outcome", outcome))
	s.applications.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func calculateResult(c *Coupon, amount money.Money) (*Result, error) {
	discount, err := Calculate(c, amount)
	if err != nil {
		return nil, err
	}
	final, err := amount.Sub(discount)
	if err != nil {
		return nil, err
	}
	return &Result{
		Coupon:         c,
		DiscountAmount: discount,
		FinalAmount:    final,
	}, nil
}
