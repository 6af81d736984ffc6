package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/luxethreads/promotions/internal/domain/coupon"
	"github.com/luxethreads/promotions/internal/domain/customer"
	"github.com/luxethreads/promotions/internal/domain/money"
	"github.com/luxethreads/promotions/internal/domain/product"
)

// Sentinel errors for order validation.
var (
	ErrEmptyItems    = errors.New("items required")
	ErrNegativeTotal = errors.New("order total is negative")
)

// ProductNotFoundError indicates a requested product does not exist.
type ProductNotFoundError struct {
	ProductID int64
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %d not found", e.ProductID)
}

// InvalidQuantityError indicates a line item has a non-positive quantity.
type InvalidQuantityError struct {
	ProductID int64
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for product %d", e.ProductID)
}

// InsufficientStockError indicates more units were requested than are
// available.
type InsufficientStockError struct {
	ProductID int64
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("product %d: requested %d, available %d", e.ProductID, e.Requested, e.Available)
}

// Pricing holds the checkout settings applied on top of item prices.
type Pricing struct {
	Currency    string
	ShippingFee decimal.Decimal
	// TaxRate is a fraction, e.g. 0.08 for 8%.
	TaxRate decimal.Decimal
}

// PlaceOrderRequest holds the input for placing an order.
type PlaceOrderRequest struct {
	Items      []Item
	CouponCode string
	// CustomerID is nil for guest checkouts.
	CustomerID *int64
}

// PlaceOrderResult holds the output of a successfully placed order.
type PlaceOrderResult struct {
	Order    *Order
	Products []product.Product
	// Coupon is nil when no coupon code was given.
	Coupon *coupon.Result
}

// Service encapsulates order placement business logic.
type Service struct {
	products  product.Repository
	customers customer.Repository
	coupons   coupon.Applier
	orders    Repository
	pricing   Pricing
	now       func() time.Time
}

// NewService creates an order Service with the required domain dependencies.
func NewService(
	products product.Repository,
	customers customer.Repository,
	coupons coupon.Applier,
	orders Repository,
	pricing Pricing,
) *Service {
	return &Service{
		products:  products,
		customers: customers,
		coupons:   coupons,
		orders:    orders,
		pricing:   pricing,
		now:       time.Now,
	}
}

// PlaceOrder validates items, fetches products in a single batch, checks
// stock, applies the coupon, prices shipping and tax, and persists the
// order together with the coupon redemption.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*PlaceOrderResult, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}

	// Validate quantities and collect product IDs.
	ids := make([]int64, 0, len(req.Items))
	wanted := make(map[int64]int, len(req.Items))
	for _, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, &InvalidQuantityError{ProductID: item.ProductID}
		}
		if _, seen := wanted[item.ProductID]; !seen {
			ids = append(ids, item.ProductID)
		}
		wanted[item.ProductID] += item.Quantity
	}

	fetched, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}
	productMap := make(map[int64]product.Product, len(fetched))
	for _, p := range fetched {
		productMap[p.ID] = p
	}

	// Verify every requested product exists and is in stock.
	for _, id := range ids {
		p, ok := productMap[id]
		if !ok {
			return nil, &ProductNotFoundError{ProductID: id}
		}
		if !p.Inventory.CanFulfill(wanted[id]) {
			return nil, &InsufficientStockError{
				ProductID: id,
				Requested: wanted[id],
				Available: p.Inventory.Available(),
			}
		}
	}

	subtotal, err := money.Zero(s.pricing.Currency)
	if err != nil {
		return nil, errors.Wrap(err, "checkout currency")
	}
	products := make([]product.Product, 0, len(req.Items))
	lines := make([]Line, 0, len(req.Items))
	couponItems := make([]coupon.Item, 0, len(req.Items))
	for _, item := range req.Items {
		p := productMap[item.ProductID]
		unit := p.Price.Effective()
		lineTotal := unit.WithAmount(unit.Amount().Mul(decimal.NewFromInt(int64(item.Quantity))))
		if subtotal, err = subtotal.Add(lineTotal); err != nil {
			return nil, errors.Wrapf(err, "price product %d", p.ID)
		}

		products = append(products, p)
		lines = append(lines, Line{ProductID: p.ID, Quantity: item.Quantity, UnitPrice: unit.Amount()})
		couponItems = append(couponItems, coupon.Item{
			ProductID:  p.ID,
			CategoryID: p.CategoryID,
			BrandID:    p.BrandID,
			UnitPrice:  unit.Amount(),
			Quantity:   item.Quantity,
		})
	}

	var cust *customer.Customer
	if req.CustomerID != nil {
		cust, err = s.customers.FindByID(ctx, *req.CustomerID)
		if err != nil {
			return nil, errors.Wrap(err, "get customer")
		}
	}

	var applied *coupon.Result
	discount := decimal.Zero
	shipping := s.pricing.ShippingFee
	if req.CouponCode != "" {
		applied, err = s.coupons.ApplyToOrder(ctx, req.CouponCode, coupon.Order{Amount: subtotal, Items: couponItems}, cust)
		if err != nil {
			return nil, errors.Wrap(err, "apply coupon")
		}
		discount = applied.DiscountAmount.Amount()
		if applied.FreeShipping() {
			shipping = decimal.Zero
		}
	}

	taxable := subtotal.Amount().Sub(discount)
	tax := taxable.Mul(s.pricing.TaxRate).Round(2)
	if tax.IsNegative() {
		tax = decimal.Zero
	}

	total, err := money.NewOrderTotal(subtotal.Amount(), shipping, tax, discount)
	if err != nil {
		return nil, errors.Wrap(err, "order total")
	}
	if total.IsNegative() {
		return nil, errors.Wrapf(ErrNegativeTotal, "total %s", total.Total())
	}

	o := &Order{
		ID:         uuid.New().String(),
		CustomerID: req.CustomerID,
		Lines:      lines,
		Currency:   subtotal.Currency(),
		Total:      total,
		CreatedAt:  s.now().UTC(),
	}

	var usage *coupon.Usage
	if applied != nil {
		o.CouponID = &applied.Coupon.ID
		o.CouponCode = applied.Coupon.Code
		usage = &coupon.Usage{
			CouponID:       applied.Coupon.ID,
			OrderID:        o.ID,
			DiscountAmount: discount,
			UsedAt:         o.CreatedAt,
		}
		if cust != nil {
			usage.CustomerID = cust.ID
		}
	}

	if err := s.orders.Create(ctx, o, usage); err != nil {
		return nil, errors.Wrap(err, "create order")
	}

	return &PlaceOrderResult{
		Order:    o,
		Products: products,
		Coupon:   applied,
	}, nil
}
