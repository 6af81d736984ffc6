// Package handler exposes the catalog, coupon and checkout operations over
// HTTP. Routing is done with chi and bodies are encoded with jx.
package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/luxethreads/promotions/internal/domain/coupon"
	"github.com/luxethreads/promotions/internal/domain/customer"
	"github.com/luxethreads/promotions/internal/domain/money"
	"github.com/luxethreads/promotions/internal/domain/order"
	"github.com/luxethreads/promotions/internal/domain/product"
	"github.com/luxethreads/promotions/pkg/health"
	"github.com/luxethreads/promotions/pkg/httpmiddleware"
)

// CouponService is the part of *coupon.Service the handlers use.
type CouponService interface {
	Apply(ctx context.Context, code string, amount money.Money, cust *customer.Customer) (*coupon.Result, error)
	Get(ctx context.Context, code string) (*coupon.Coupon, error)
	Create(ctx context.Context, c *coupon.Coupon) error
	Delete(ctx context.Context, code string) error
}

// OrderService is the part of *order.Service the handlers use.
type OrderService interface {
	PlaceOrder(ctx context.Context, req order.PlaceOrderRequest) (*order.PlaceOrderResult, error)
}

var (
	_ CouponService = (*coupon.Service)(nil)
	_ OrderService  = (*order.Service)(nil)
)

// HandlerConfig holds non-dependency configuration for the Handler.
type HandlerConfig struct {
	// ImageBaseURL is prepended to relative image paths in product responses.
	// When empty, image paths are returned as stored in the database.
	ImageBaseURL string
}

// Handler serves the public API.
type Handler struct {
	products  product.Repository
	customers customer.Repository
	coupons   CouponService
	orders    OrderService

	imageBaseURL string
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	cfg HandlerConfig,
	products product.Repository,
	customers customer.Repository,
	coupons CouponService,
	orders OrderService,
) *Handler {
	return &Handler{
		products:     products,
		customers:    customers,
		coupons:      coupons,
		orders:       orders,
		imageBaseURL: cfg.ImageBaseURL,
	}
}

// Router builds the route table. mws wrap every route and run inside chi, so
// RoutePattern resolves once they call the next handler. limit, when not nil,
// wraps only the coupon apply endpoint.
func (h *Handler) Router(probes *health.Health, limit httpmiddleware.Middleware, mws ...httpmiddleware.Middleware) http.Handler {
	r := chi.NewRouter()
	for _, mw := range mws {
		r.Use(mw)
	}

	r.Get("/livez", probes.LiveEndpoint)
	r.Get("/readyz", probes.ReadyEndpoint)

	r.Get("/api/products", h.ListProducts)
	r.Get("/api/products/{id}", h.GetProduct)

	apply := http.Handler(http.HandlerFunc(h.ApplyCoupon))
	if limit != nil {
		apply = limit(apply)
	}
	r.Method(http.MethodPost, "/api/coupons/apply", apply)
	r.Post("/api/coupons", h.CreateCoupon)
	r.Get("/api/coupons/{code}", h.GetCoupon)
	r.Delete("/api/coupons/{code}", h.DeleteCoupon)

	r.Post("/api/orders", h.PlaceOrder)

	return r
}

// RoutePattern returns the chi route pattern matched for r, or "" when no
// route matched yet.
func RoutePattern(r *http.Request) string {
	rc := chi.RouteContext(r.Context())
	if rc == nil {
		return ""
	}
	return rc.RoutePattern()
}
