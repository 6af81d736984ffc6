package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/luxethreads/promotions/internal/domain/product"
)

// ListProducts returns every product in the catalog.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context())
	if err != nil {
		writeError(w, r, errors.Wrap(err, "list products"))
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for _, p := range products {
				h.encodeProduct(e, p)
			}
		})
	})
}

// GetProduct returns a single product by ID.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, r, badRequest("invalid product id %q", chi.URLParam(r, "id")))
		return
	}

	p, err := h.products.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, r, errors.Wrap(err, "get product"))
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		h.encodeProduct(e, *p)
	})
}

// encodeProduct renders p with its derived price and stock fields. Relative
// image paths are prefixed with the configured imageBaseURL.
func (h *Handler) encodeProduct(e *jx.Encoder, p product.Product) {
	e.Obj(func(e *jx.Encoder) {
		fieldInt64(e, "id", p.ID)
		fieldStr(e, "name", p.Name)
		fieldInt64(e, "category_id", p.CategoryID)
		fieldInt64(e, "brand_id", p.BrandID)
		e.Field("price", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				fieldAmount(e, "base", p.Price.Base().Amount())
				fieldAmount(e, "effective", p.Price.Effective().Amount())
				fieldAmount(e, "savings", p.Price.Savings().Amount())
				fieldBool(e, "discounted", p.Price.Discounted())
				fieldDecimal(e, "discount_percentage", p.Price.DiscountPercentage())
				fieldStr(e, "currency", p.Price.Currency())
			})
		})
		e.Field("inventory", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				fieldInt(e, "available", p.Inventory.Available())
				fieldStr(e, "status", string(p.Inventory.Status()))
			})
		})
		e.Field("image", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				fieldStr(e, "thumbnail", h.imageURL(p.Image.Thumbnail))
				fieldStr(e, "mobile", h.imageURL(p.Image.Mobile))
				fieldStr(e, "tablet", h.imageURL(p.Image.Tablet))
				fieldStr(e, "desktop", h.imageURL(p.Image.Desktop))
			})
		})
	})
}

func (h *Handler) imageURL(path string) string {
	if path == "" || h.imageBaseURL == "" || strings.Contains(path, "://") {
		return path
	}
	return strings.TrimSuffix(h.imageBaseURL, "/") + "/" + strings.TrimPrefix(path, "/")
}
