package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/luxethreads/promotions/internal/couponjson"
	"github.com/luxethreads/promotions/internal/domain/coupon"
	"github.com/luxethreads/promotions/internal/domain/customer"
	"github.com/luxethreads/promotions/internal/domain/money"
)

type applyRequest struct {
	Code       string
	Amount     decimal.Decimal
	Currency   string
	CustomerID *int64
}

func (req *applyRequest) decode(d *jx.Decoder, key string) (err error) {
	switch key {
	case "code":
		req.Code, err = d.Str()
	case "amount":
		req.Amount, err = couponjson.DecodeDecimal(d)
	case "currency":
		req.Currency, err = d.Str()
	case "customer_id":
		req.CustomerID, err = decodeOptionalInt64(d)
	default:
		err = d.Skip()
	}
	return err
}

// ApplyCoupon previews a coupon against an order amount without redeeming it.
func (h *Handler) ApplyCoupon(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req applyRequest
	if err := decodeBody(w, r, req.decode); err != nil {
		writeError(w, r, err)
		return
	}

	// A non-positive amount is rejected by the engine after the code and
	// customer checks.
	amount, err := money.NewSigned(req.Amount, req.Currency)
	if err != nil {
		writeError(w, r, err)
		return
	}

	cust, err := h.customer(ctx, req.CustomerID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	res, err := h.coupons.Apply(ctx, req.Code, amount, cust)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			fieldInt64(e, "coupon_id", res.Coupon.ID)
			fieldStr(e, "code", res.Coupon.Code)
			fieldAmount(e, "discount_amount", res.DiscountAmount.Amount())
			fieldAmount(e, "final_amount", res.FinalAmount.Amount())
			fieldStr(e, "currency", res.FinalAmount.Currency())
			fieldBool(e, "free_shipping", res.FreeShipping())
		})
	})
}

// GetCoupon returns the coupon stored under the code in the path.
func (h *Handler) GetCoupon(w http.ResponseWriter, r *http.Request) {
	c, err := h.coupons.Get(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeCouponError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		couponjson.Encode(e, c)
	})
}

// CreateCoupon validates and stores a new coupon.
func (h *Handler) CreateCoupon(w http.ResponseWriter, r *http.Request) {
	c := &coupon.Coupon{Active: true}
	if err := decodeBody(w, r, func(d *jx.Decoder, key string) error {
		return couponjson.DecodeField(d, key, c)
	}); err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.coupons.Create(r.Context(), c); err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Location", "/api/coupons/"+c.Code)
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) {
		couponjson.Encode(e, c)
	})
}

// DeleteCoupon soft-deletes the coupon stored under the code in the path.
func (h *Handler) DeleteCoupon(w http.ResponseWriter, r *http.Request) {
	if err := h.coupons.Delete(r.Context(), chi.URLParam(r, "code")); err != nil {
		writeCouponError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeCouponError reports an unknown code as 404 instead of a rejection.
func writeCouponError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, coupon.ErrCouponNotFound) {
		writeProblem(w, http.StatusNotFound, string(coupon.KindCouponNotFound), coupon.ErrCouponNotFound.Error(), nil)
		return
	}
	writeError(w, r, err)
}

func (h *Handler) customer(ctx context.Context, id *int64) (*customer.Customer, error) {
	if id == nil {
		return nil, nil
	}
	cust, err := h.customers.FindByID(ctx, *id)
	if err != nil {
		return nil, errors.Wrap(err, "get customer")
	}
	return cust, nil
}
