package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/luxethreads/promotions/internal/domain/order"
)

func decodeOrderRequest(d *jx.Decoder, key string, req *order.PlaceOrderRequest) (err error) {
	switch key {
	case "items":
		err = d.Arr(func(d *jx.Decoder) error {
			var item order.Item
			if err := d.ObjBytes(func(d *jx.Decoder, key []byte) (err error) {
				switch string(key) {
				case "product_id":
					item.ProductID, err = d.Int64()
				case "quantity":
					item.Quantity, err = d.Int()
				default:
					err = d.Skip()
				}
				return err
			}); err != nil {
				return err
			}
			req.Items = append(req.Items, item)
			return nil
		})
	case "coupon_code":
		if d.Next() == jx.Null {
			return d.Null()
		}
		req.CouponCode, err = d.Str()
	case "customer_id":
		req.CustomerID, err = decodeOptionalInt64(d)
	default:
		err = d.Skip()
	}
	return err
}

// PlaceOrder prices the requested items, applies the optional coupon and
// stores the order.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req order.PlaceOrderRequest
	if err := decodeBody(w, r, func(d *jx.Decoder, key string) error {
		return decodeOrderRequest(d, key, &req)
	}); err != nil {
		writeError(w, r, err)
		return
	}

	result, err := h.orders.PlaceOrder(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	o := result.Order
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			fieldStr(e, "id", o.ID)
			fieldStr(e, "currency", o.Currency)
			e.Field("items", func(e *jx.Encoder) {
				e.Arr(func(e *jx.Encoder) {
					for _, l := range o.Lines {
						e.Obj(func(e *jx.Encoder) {
							fieldInt64(e, "product_id", l.ProductID)
							fieldInt(e, "quantity", l.Quantity)
							fieldAmount(e, "unit_price", l.UnitPrice)
						})
					}
				})
			})
			fieldAmount(e, "subtotal", o.Total.Subtotal)
			fieldAmount(e, "shipping", o.Total.Shipping)
			fieldAmount(e, "tax", o.Total.Tax)
			fieldAmount(e, "discount", o.Total.Discount)
			fieldAmount(e, "total", o.Total.Total())
			if o.CouponCode != "" {
				fieldStr(e, "coupon_code", o.CouponCode)
			}
			e.Field("products", func(e *jx.Encoder) {
				e.Arr(func(e *jx.Encoder) {
					for _, p := range result.Products {
						h.encodeProduct(e, p)
					}
				})
			})
		})
	})
}
