package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/luxethreads/promotions/internal/domain/coupon"
	"github.com/luxethreads/promotions/internal/domain/customer"
	"github.com/luxethreads/promotions/internal/domain/order"
	"github.com/luxethreads/promotions/internal/domain/product"
)

// Error kinds that are not coupon rejections.
const (
	kindInvalidRequest    = "invalid_request"
	kindNotFound          = "not_found"
	kindProductNotFound   = "product_not_found"
	kindCustomerNotFound  = "customer_not_found"
	kindInsufficientStock = "insufficient_stock"
	kindNegativeTotal     = "negative_total"
	kindCodeTaken         = "code_taken"
	kindInternal          = "internal"
)

// writeError maps err to a status code and an
// {"error_kind", "message", "details"} body. Anything unrecognized is logged
// and reported as a bare 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		reqErr     *requestError
		rejection  *coupon.RejectionError
		qtyErr     *order.InvalidQuantityError
		missingErr *order.ProductNotFoundError
		stockErr   *order.InsufficientStockError
	)
	lg := zctx.From(r.Context())

	switch {
	case errors.As(err, &reqErr):
		writeProblem(w, http.StatusBadRequest, kindInvalidRequest, reqErr.msg, nil)
	case errors.Is(err, order.ErrEmptyItems):
		writeProblem(w, http.StatusBadRequest, kindInvalidRequest, order.ErrEmptyItems.Error(), nil)
	case errors.As(err, &qtyErr):
		writeProblem(w, http.StatusBadRequest, kindInvalidRequest, qtyErr.Error(), nil)
	case errors.As(err, &rejection):
		kind := coupon.KindOf(rejection)
		lg.Debug("Coupon rejected",
			zap.String("error_kind", string(kind)),
			zap.Strings("details", rejection.Messages()),
		)
		writeProblem(w, http.StatusUnprocessableEntity, string(kind), rejection.Reason.Error(), rejection.Messages())
	case errors.Is(err, coupon.ErrCodeTaken):
		writeProblem(w, http.StatusConflict, kindCodeTaken, coupon.ErrCodeTaken.Error(), nil)
	case coupon.KindOf(err) == coupon.KindInvalidArgument:
		writeProblem(w, http.StatusBadRequest, string(coupon.KindInvalidArgument), err.Error(), nil)
	case errors.Is(err, product.ErrNotFound):
		writeProblem(w, http.StatusNotFound, kindNotFound, product.ErrNotFound.Error(), nil)
	case errors.Is(err, customer.ErrNotFound):
		writeProblem(w, http.StatusNotFound, kindCustomerNotFound, customer.ErrNotFound.Error(), nil)
	case errors.As(err, &missingErr):
		writeProblem(w, http.StatusUnprocessableEntity, kindProductNotFound, missingErr.Error(), nil)
	case errors.As(err, &stockErr):
		writeProblem(w, http.StatusConflict, kindInsufficientStock, stockErr.Error(), nil)
	case errors.Is(err, order.ErrNegativeTotal):
		writeProblem(w, http.StatusUnprocessableEntity, kindNegativeTotal, order.ErrNegativeTotal.Error(), nil)
	default:
		lg.Error("Request failed", zap.Error(err))
		writeProblem(w, http.StatusInternalServerError, kindInternal, "internal server error", nil)
	}
}

func writeProblem(w http.ResponseWriter, status int, kind, message string, details []string) {
	writeJSON(w, status, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			fieldStr(e, "error_kind", kind)
			fieldStr(e, "message", message)
			if len(details) > 0 {
				e.Field("details", func(e *jx.Encoder) {
					e.Arr(func(e *jx.Encoder) {
						for _, d := range details {
							e.Str(d)
						}
					})
				})
			}
		})
	})
}
