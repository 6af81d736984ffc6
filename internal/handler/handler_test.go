package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luxethreads/promotions/internal/domain/coupon"
	"github.com/luxethreads/promotions/internal/domain/customer"
	"github.com/luxethreads/promotions/internal/domain/money"
	"github.com/luxethreads/promotions/internal/domain/order"
	"github.com/luxethreads/promotions/internal/domain/product"
	"github.com/luxethreads/promotions/pkg/health"
	"github.com/luxethreads/promotions/pkg/httpmiddleware"
)

// --- Mock implementations ---

type mockProducts struct {
	products []product.Product
	err      error
}

func (m *mockProducts) List(context.Context) ([]product.Product, error) {
	return m.products, m.err
}

func (m *mockProducts) GetByID(_ context.Context, id int64) (*product.Product, error) {
	if m.err != nil {
		return nil, m.err
	}
	for i := range m.products {
		if m.products[i].ID == id {
			return &m.products[i], nil
		}
	}
	return nil, product.ErrNotFound
}

func (m *mockProducts) GetByIDs(context.Context, []int64) ([]product.Product, error) {
	return m.products, m.err
}

type mockCustomers struct {
	customers map[int64]*customer.Customer
}

func (m *mockCustomers) FindByID(_ context.Context, id int64) (*customer.Customer, error) {
	c, ok := m.customers[id]
	if !ok {
		return nil, customer.ErrNotFound
	}
	return c, nil
}

type mockCoupons struct {
	result *coupon.Result
	err    error
	stored map[string]*coupon.Coupon

	gotCode   string
	gotAmount money.Money
	gotCust   *customer.Customer
	created   *coupon.Coupon
}

func (m *mockCoupons) Delete(_ context.Context, code string) error {
	if m.err != nil {
		return m.err
	}
	code = coupon.NormalizeCode(code)
	if _, ok := m.stored[code]; !ok {
		return &coupon.RejectionError{Reason: coupon.ErrCouponNotFound}
	}
	delete(m.stored, code)
	return nil
}

func (m *mockCoupons) Apply(_ context.Context, code string, amount money.Money, cust *customer.Customer) (*coupon.Result, error) {
	m.gotCode, m.gotAmount, m.gotCust = code, amount, cust
	return m.result, m.err
}

func (m *mockCoupons) Get(_ context.Context, code string) (*coupon.Coupon, error) {
	if m.err != nil {
		return nil, m.err
	}
	c, ok := m.stored[coupon.NormalizeCode(code)]
	if !ok {
		return nil, &coupon.RejectionError{Reason: coupon.ErrCouponNotFound}
	}
	return c, nil
}

func (m *mockCoupons) Create(_ context.Context, c *coupon.Coupon) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if m.err != nil {
		return m.err
	}
	c.ID = 99
	m.created = c
	return nil
}

type mockOrders struct {
	result *order.PlaceOrderResult
	err    error
	got    order.PlaceOrderRequest
}

func (m *mockOrders) PlaceOrder(_ context.Context, req order.PlaceOrderRequest) (*order.PlaceOrderResult, error) {
	m.got = req
	return m.result, m.err
}

// --- Helpers ---

type fixture struct {
	products  *mockProducts
	customers *mockCustomers
	coupons   *mockCoupons
	orders    *mockOrders
	router    http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		products:  &mockProducts{products: []product.Product{testShirt(t)}},
		customers: &mockCustomers{customers: map[int64]*customer.Customer{42: {ID: 42}}},
		coupons:   &mockCoupons{},
		orders:    &mockOrders{},
	}
	h := NewHandler(
		HandlerConfig{ImageBaseURL: "https://cdn.luxethreads.com/"},
		f.products, f.customers, f.coupons, f.orders,
	)
	f.router = h.Router(health.New(nil), nil)
	return f
}

func testShirt(t *testing.T) product.Product {
	t.Helper()

	sale := decimal.NewFromInt(60)
	price, err := money.NewPrice(decimal.NewFromInt(80), &sale, "USD")
	require.NoError(t, err)
	inv, err := product.NewInventory(10, 2, 3)
	require.NoError(t, err)

	return product.Product{
		ID:         1,
		Name:       "Linen Shirt",
		CategoryID: 3,
		BrandID:    5,
		Price:      price,
		Inventory:  inv,
		Image:      product.Image{Thumbnail: "img/shirt-thumb.jpg"},
	}
}

func (f *fixture) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

const shirtJSON = `{
	"id": 1,
	"name": "Linen Shirt",
	"category_id": 3,
	"brand_id": 5,
	"price": {
		"base": "80.00",
		"effective": "60.00",
		"savings": "20.00",
		"discounted": true,
		"discount_percentage": "25",
		"currency": "USD"
	},
	"inventory": {"available": 8, "status": "in_stock"},
	"image": {
		"thumbnail": "https://cdn.luxethreads.com/img/shirt-thumb.jpg",
		"mobile": "",
		"tablet": "",
		"desktop": ""
	}
}`

// --- Tests ---

func TestListProducts(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodGet, "/api/products", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, "["+shirtJSON+"]", w.Body.String())
}

func TestListProducts_Error(t *testing.T) {
	f := newFixture(t)
	f.products.err = errors.New("db down")

	w := f.do(http.MethodGet, "/api/products", "")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error_kind":"internal","message":"internal server error"}`, w.Body.String())
}

func TestGetProduct(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		wantCode int
		wantBody string
	}{
		{"found", "/api/products/1", http.StatusOK, shirtJSON},
		{"not found", "/api/products/7", http.StatusNotFound, `{"error_kind":"not_found","message":"product not found"}`},
		{"invalid id", "/api/products/abc", http.StatusBadRequest, `{"error_kind":"invalid_request","message":"invalid product id \"abc\""}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			w := f.do(http.MethodGet, tt.path, "")
			assert.Equal(t, tt.wantCode, w.Code)
			assert.JSONEq(t, tt.wantBody, w.Body.String())
		})
	}
}

func TestApplyCoupon(t *testing.T) {
	save20 := &coupon.Coupon{ID: 1, Code: "SAVE20", DiscountType: coupon.DiscountPercentage, Currency: "USD"}

	t.Run("applied", func(t *testing.T) {
		f := newFixture(t)
		f.coupons.result = &coupon.Result{
			Coupon:         save20,
			DiscountAmount: money.MustNew("20", "USD"),
			FinalAmount:    money.MustNew("80", "USD"),
		}

		w := f.do(http.MethodPost, "/api/coupons/apply",
			`{"code":"save20","amount":"100.00","currency":"usd","customer_id":42}`)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{
			"coupon_id": 1,
			"code": "SAVE20",
			"discount_amount": "20.00",
			"final_amount": "80.00",
			"currency": "USD",
			"free_shipping": false
		}`, w.Body.String())

		assert.Equal(t, "save20", f.coupons.gotCode)
		assert.True(t, f.coupons.gotAmount.Equal(money.MustNew("100", "USD")))
		require.NotNil(t, f.coupons.gotCust)
		assert.Equal(t, int64(42), f.coupons.gotCust.ID)
	})

	t.Run("numeric amount and guest", func(t *testing.T) {
		f := newFixture(t)
		f.coupons.result = &coupon.Result{
			Coupon:         save20,
			DiscountAmount: money.MustNew("9.99", "USD"),
			FinalAmount:    money.MustNew("40.01", "USD"),
		}

		w := f.do(http.MethodPost, "/api/coupons/apply", `{"code":"SAVE20","amount":50,"currency":"USD"}`)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Nil(t, f.coupons.gotCust)
		assert.True(t, f.coupons.gotAmount.Equal(money.MustNew("50", "USD")))
	})

	tests := []struct {
		name     string
		body     string
		err      error
		wantCode int
		wantBody string
	}{
		{
			name: "rejected",
			body: `{"code":"SAVE20","amount":"10","currency":"USD"}`,
			err: &coupon.RejectionError{
				Reason:  coupon.ErrMinimumAmountNotMet,
				Details: []string{"minimum order amount is 50.00 USD"},
			},
			wantCode: http.StatusUnprocessableEntity,
			wantBody: `{
				"error_kind": "minimum_amount_not_met",
				"message": "order amount is below the coupon minimum",
				"details": ["minimum order amount is 50.00 USD"]
			}`,
		},
		{
			name:     "code required",
			body:     `{"amount":"10","currency":"USD"}`,
			err:      &coupon.RejectionError{Reason: coupon.ErrCodeRequired},
			wantCode: http.StatusUnprocessableEntity,
			wantBody: `{"error_kind":"code_required","message":"coupon code is required","details":["coupon code is required"]}`,
		},
		{
			name:     "currency mismatch",
			body:     `{"code":"SAVE20","amount":"10","currency":"EUR"}`,
			err:      errors.Wrap(money.ErrCurrencyMismatch, "coupon in USD, order in EUR"),
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "malformed json",
			body:     `{"code":`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "invalid currency",
			body:     `{"code":"SAVE20","amount":"10","currency":"dollars"}`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "unknown customer",
			body:     `{"code":"SAVE20","amount":"10","currency":"USD","customer_id":7}`,
			wantCode: http.StatusNotFound,
			wantBody: `{"error_kind":"customer_not_found","message":"customer not found"}`,
		},
		{
			name:     "lookup failure",
			body:     `{"code":"SAVE20","amount":"10","currency":"USD"}`,
			err:      errors.Wrap(errors.New("connection reset"), "lookup coupon"),
			wantCode: http.StatusInternalServerError,
			wantBody: `{"error_kind":"internal","message":"internal server error"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.coupons.err = tt.err

			w := f.do(http.MethodPost, "/api/coupons/apply", tt.body)

			assert.Equal(t, tt.wantCode, w.Code)
			if tt.wantBody != "" {
				assert.JSONEq(t, tt.wantBody, w.Body.String())
			}
		})
	}
}

type memCoupons map[string]*coupon.Coupon

func (m memCoupons) FindByCode(_ context.Context, code string) (*coupon.Coupon, error) {
	c, ok := m[code]
	if !ok {
		return nil, coupon.ErrCouponNotFound
	}
	return c, nil
}

func (memCoupons) Create(context.Context, *coupon.Coupon) error {
	return nil
}

func (memCoupons) DeactivateExpired(context.Context, time.Time) ([]string, error) {
	return nil, nil
}

func (memCoupons) Delete(context.Context, string, time.Time) error {
	return nil
}

type noUsage struct{}

func (noUsage) CountForUser(context.Context, int64, int64) (int, error) { return 0, nil }

func errorKind(t *testing.T, body []byte) string {
	t.Helper()

	var kind string
	err := jx.DecodeBytes(body).ObjBytes(func(d *jx.Decoder, key []byte) error {
		if string(key) != "error_kind" {
			return d.Skip()
		}
		var err error
		kind, err = d.Str()
		return err
	})
	require.NoError(t, err)
	return kind
}

func TestApplyCoupon_AmountCheckedAfterCode(t *testing.T) {
	svc, err := coupon.NewService(memCoupons{
		"SAVE20": {
			ID:           1,
			Code:         "SAVE20",
			DiscountType: coupon.DiscountPercentage,
			Value:        decimal.NewFromInt(20),
			Currency:     "USD",
			Active:       true,
		},
	}, noUsage{})
	require.NoError(t, err)

	f := newFixture(t)
	router := NewHandler(HandlerConfig{}, f.products, f.customers, svc, f.orders).Router(health.New(nil), nil)

	tests := []struct {
		name     string
		body     string
		wantKind string
	}{
		{"zero amount", `{"code":"SAVE20","amount":"0","currency":"USD"}`, "invalid_order_amount"},
		{"negative amount", `{"code":"SAVE20","amount":"-5","currency":"USD"}`, "invalid_order_amount"},
		{"negative numeric amount", `{"code":"SAVE20","amount":-5,"currency":"USD"}`, "invalid_order_amount"},
		{"blank code before amount", `{"code":"","amount":"-5","currency":"USD"}`, "code_required"},
		{"unknown code before amount", `{"code":"NOPE","amount":"-5","currency":"USD"}`, "coupon_not_found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/coupons/apply", strings.NewReader(tt.body)))

			assert.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())
			assert.Equal(t, tt.wantKind, errorKind(t, w.Body.Bytes()))
		})
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/coupons/apply",
		strings.NewReader(`{"code":"save20","amount":"50","currency":"USD"}`)))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"discount_amount":"10.00"`)
}

func TestApplyCoupon_RateLimitedOnly(t *testing.T) {
	f := newFixture(t)
	f.coupons.result = &coupon.Result{
		Coupon:         &coupon.Coupon{ID: 1, Code: "SAVE20"},
		DiscountAmount: money.MustNew("1", "USD"),
		FinalAmount:    money.MustNew("9", "USD"),
	}
	h := NewHandler(HandlerConfig{}, f.products, f.customers, f.coupons, f.orders)
	router := h.Router(health.New(nil), httpmiddleware.RateLimit(httpmiddleware.RateLimitConfig{RPS: 0.001, Burst: 1}))

	apply := func() int {
		req := httptest.NewRequest(http.MethodPost, "/api/coupons/apply",
			strings.NewReader(`{"code":"SAVE20","amount":"10","currency":"USD"}`))
		req.RemoteAddr = "10.0.0.1:1234"
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, apply())
	assert.Equal(t, http.StatusTooManyRequests, apply())

	for range 3 {
		req := httptest.NewRequest(http.MethodGet, "/api/products", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestGetCoupon(t *testing.T) {
	f := newFixture(t)
	until := time.Date(2025, 12, 31, 23, 59, 59, 0, time.UTC)
	f.coupons.stored = map[string]*coupon.Coupon{
		"FLAT100": {
			ID:                 2,
			Code:               "FLAT100",
			DiscountType:       coupon.DiscountFixedAmount,
			Value:              decimal.NewFromInt(100),
			Currency:           "USD",
			MinOrderAmount:     decimal.NewNullDecimal(decimal.NewFromInt(500)),
			ValidUntil:         &until,
			Active:             true,
			MaxUses:            1000,
			UsesCount:          12,
			ExcludedCategories: coupon.NewIDSet(9, 4),
		},
	}

	w := f.do(http.MethodGet, "/api/coupons/flat100", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{
		"id": 2,
		"code": "FLAT100",
		"description": "",
		"discount_type": "fixed_amount",
		"value": "100",
		"currency": "USD",
		"max_discount_amount": null,
		"min_order_amount": "500.00",
		"valid_from": null,
		"valid_until": "2025-12-31T23:59:59Z",
		"active": true,
		"max_uses": 1000,
		"uses_count": 12,
		"max_uses_per_user": 0,
		"new_users_only": false,
		"first_order_only": false,
		"applicable_categories": [],
		"applicable_products": [],
		"applicable_brands": [],
		"excluded_categories": [4, 9],
		"excluded_products": [],
		"excluded_brands": [],
		"allowed_users": [],
		"denied_users": []
	}`, w.Body.String())

	w = f.do(http.MethodGet, "/api/coupons/NOPE", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error_kind":"coupon_not_found","message":"coupon not found"}`, w.Body.String())
}

func TestDeleteCoupon(t *testing.T) {
	f := newFixture(t)
	f.coupons.stored = map[string]*coupon.Coupon{"SAVE20": {ID: 1, Code: "SAVE20"}}

	w := f.do(http.MethodDelete, "/api/coupons/save20", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())
	assert.NotContains(t, f.coupons.stored, "SAVE20")

	w = f.do(http.MethodDelete, "/api/coupons/save20", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error_kind":"coupon_not_found","message":"coupon not found"}`, w.Body.String())

	f.coupons.err = errors.New("connection reset")
	w = f.do(http.MethodDelete, "/api/coupons/OTHER", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestCreateCoupon_CodeTaken(t *testing.T) {
	f := newFixture(t)
	f.coupons.err = errors.Wrap(coupon.ErrCodeTaken, "create coupon")

	w := f.do(http.MethodPost, "/api/coupons",
		`{"code":"SAVE20","discount_type":"percentage","value":20,"currency":"USD"}`)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.JSONEq(t, `{"error_kind":"code_taken","message":"coupon code already exists"}`, w.Body.String())
}

func TestCreateCoupon(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		f := newFixture(t)

		w := f.do(http.MethodPost, "/api/coupons", `{
			"code": " summer25 ",
			"discount_type": "percentage",
			"value": 25,
			"currency": "usd",
			"max_discount_amount": "150",
			"valid_from": "2025-06-01T00:00:00Z",
			"valid_until": "2025-08-31T23:59:59Z",
			"max_uses_per_user": 1,
			"applicable_categories": [3, 7],
			"unknown": {"ignored": true}
		}`)

		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		assert.Equal(t, "/api/coupons/SUMMER25", w.Header().Get("Location"))

		c := f.coupons.created
		require.NotNil(t, c)
		assert.Equal(t, "SUMMER25", c.Code)
		assert.Equal(t, "USD", c.Currency)
		assert.True(t, c.Active)
		assert.True(t, c.Value.Equal(decimal.NewFromInt(25)))
		assert.True(t, c.MaxDiscountAmount.Valid)
		assert.Equal(t, 1, c.MaxUsesPerUser)
		assert.Equal(t, []int64{3, 7}, c.ApplicableCategories.Slice())
		require.NotNil(t, c.ValidFrom)
		assert.Equal(t, 6, int(c.ValidFrom.Month()))
	})

	tests := []struct {
		name string
		body string
	}{
		{"percentage over 100", `{"code":"BAD","discount_type":"percentage","value":120,"currency":"USD"}`},
		{"unknown type", `{"code":"BAD","discount_type":"bogo","value":1,"currency":"USD"}`},
		{"window reversed", `{"code":"BAD","discount_type":"fixed_amount","value":5,"currency":"USD","valid_from":"2025-09-01T00:00:00Z","valid_until":"2025-08-01T00:00:00Z"}`},
		{"bad timestamp", `{"code":"BAD","discount_type":"fixed_amount","value":5,"currency":"USD","valid_from":"yesterday"}`},
		{"bad decimal", `{"code":"BAD","discount_type":"fixed_amount","value":"five","currency":"USD"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			w := f.do(http.MethodPost, "/api/coupons", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			assert.Nil(t, f.coupons.created)
		})
	}
}

func TestPlaceOrder(t *testing.T) {
	shirt := testShirt(t)
	total, err := money.NewOrderTotal(
		decimal.NewFromInt(120),
		decimal.Zero,
		decimal.RequireFromString("10.80"),
		decimal.NewFromInt(12),
	)
	require.NoError(t, err)

	t.Run("placed", func(t *testing.T) {
		f := newFixture(t)
		f.orders.result = &order.PlaceOrderResult{
			Order: &order.Order{
				ID:         "0b7c5a6e-8a43-4d36-9d1e-3b0f1b7a6c11",
				Currency:   "USD",
				Lines:      []order.Line{{ProductID: 1, Quantity: 2, UnitPrice: decimal.NewFromInt(60)}},
				Total:      total,
				CouponCode: "SAVE10",
			},
			Products: []product.Product{shirt},
		}

		w := f.do(http.MethodPost, "/api/orders",
			`{"items":[{"product_id":1,"quantity":2}],"coupon_code":"SAVE10","customer_id":42}`)

		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		assert.JSONEq(t, `{
			"id": "0b7c5a6e-8a43-4d36-9d1e-3b0f1b7a6c11",
			"currency": "USD",
			"items": [{"product_id": 1, "quantity": 2, "unit_price": "60.00"}],
			"subtotal": "120.00",
			"shipping": "0.00",
			"tax": "10.80",
			"discount": "12.00",
			"total": "118.80",
			"coupon_code": "SAVE10",
			"products": [`+shirtJSON+`]
		}`, w.Body.String())

		assert.Equal(t, []order.Item{{ProductID: 1, Quantity: 2}}, f.orders.got.Items)
		assert.Equal(t, "SAVE10", f.orders.got.CouponCode)
		require.NotNil(t, f.orders.got.CustomerID)
		assert.Equal(t, int64(42), *f.orders.got.CustomerID)
	})

	tests := []struct {
		name     string
		body     string
		err      error
		wantCode int
		wantKind string
	}{
		{"empty items", `{"items":[]}`, order.ErrEmptyItems, http.StatusBadRequest, "invalid_request"},
		{"invalid quantity", `{"items":[{"product_id":1,"quantity":0}]}`, &order.InvalidQuantityError{ProductID: 1}, http.StatusBadRequest, "invalid_request"},
		{"unknown product", `{"items":[{"product_id":8,"quantity":1}]}`, &order.ProductNotFoundError{ProductID: 8}, http.StatusUnprocessableEntity, "product_not_found"},
		{
			"insufficient stock",
			`{"items":[{"product_id":1,"quantity":50}]}`,
			errors.Wrap(&order.InsufficientStockError{ProductID: 1, Requested: 50, Available: 8}, "create order"),
			http.StatusConflict, "insufficient_stock",
		},
		{
			"coupon rejected",
			`{"items":[{"product_id":1,"quantity":1}],"coupon_code":"EXPIRED"}`,
			errors.Wrap(&coupon.RejectionError{Reason: coupon.ErrCouponUnavailable}, "apply coupon"),
			http.StatusUnprocessableEntity, "coupon_unavailable",
		},
		{
			"usage cap hit at commit",
			`{"items":[{"product_id":1,"quantity":1}],"coupon_code":"ONCE"}`,
			errors.Wrap(&coupon.RejectionError{Reason: coupon.ErrUsageLimitExceeded}, "create order"),
			http.StatusUnprocessableEntity, "usage_limit_exceeded",
		},
		{"negative total", `{"items":[{"product_id":1,"quantity":1}],"coupon_code":"FLAT100"}`, order.ErrNegativeTotal, http.StatusUnprocessableEntity, "negative_total"},
		{"malformed items", `{"items":[{"product_id":"one"}]}`, nil, http.StatusBadRequest, "invalid_request"},
		{"storage failure", `{"items":[{"product_id":1,"quantity":1}]}`, errors.New("tx aborted"), http.StatusInternalServerError, "internal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.orders.err = tt.err

			w := f.do(http.MethodPost, "/api/orders", tt.body)

			assert.Equal(t, tt.wantCode, w.Code, w.Body.String())
			assert.Contains(t, w.Body.String(), `"error_kind":"`+tt.wantKind+`"`)
		})
	}
}

func TestRouter_HealthAndRoutePattern(t *testing.T) {
	f := newFixture(t)
	probes := health.New(nil)
	probes.SetReady(true)

	var pattern string
	capture := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r)
			pattern = RoutePattern(r)
		})
	}
	h := NewHandler(HandlerConfig{}, f.products, f.customers, f.coupons, f.orders)
	router := h.Router(probes, nil, capture)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "/readyz", pattern)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/products/1", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "/api/products/{id}", pattern)

	assert.Empty(t, RoutePattern(httptest.NewRequest(http.MethodGet, "/", nil)))
}
