package cache

import (
	"slices"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/luxethreads/promotions/internal/domain/coupon"
)

func encodeCoupon(c *coupon.Coupon) []byte {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Int64(c.ID) })
		e.Field("code", func(e *jx.Encoder) { e.Str(c.Code) })
		e.Field("description", func(e *jx.Encoder) { e.Str(c.Description) })
		e.Field("discount_type", func(e *jx.Encoder) { e.Str(string(c.DiscountType)) })
		e.Field("value", func(e *jx.Encoder) { e.Str(c.Value.String()) })
		e.Field("currency", func(e *jx.Encoder) { e.Str(c.Currency) })
		if c.MaxDiscountAmount.Valid {
			e.Field("max_discount_amount", func(e *jx.Encoder) { e.Str(c.MaxDiscountAmount.Decimal.String()) })
		}
		if c.MinOrderAmount.Valid {
			e.Field("min_order_amount", func(e *jx.Encoder) { e.Str(c.MinOrderAmount.Decimal.String()) })
		}
		if c.ValidFrom != nil {
			e.Field("valid_from", func(e *jx.Encoder) { e.Str(c.ValidFrom.Format(time.RFC3339Nano)) })
		}
		if c.ValidUntil != nil {
			e.Field("valid_until", func(e *jx.Encoder) { e.Str(c.ValidUntil.Format(time.RFC3339Nano)) })
		}
		e.Field("active", func(e *jx.Encoder) { e.Bool(c.Active) })
		e.Field("max_uses", func(e *jx.Encoder) { e.Int(c.MaxUses) })
		e.Field("uses_count", func(e *jx.Encoder) { e.Int(c.UsesCount) })
		e.Field("max_uses_per_user", func(e *jx.Encoder) { e.Int(c.MaxUsesPerUser) })
		e.Field("new_users_only", func(e *jx.Encoder) { e.Bool(c.NewUsersOnly) })
		e.Field("first_order_only", func(e *jx.Encoder) { e.Bool(c.FirstOrderOnly) })
		encodeIDSet(e, "applicable_categories", c.ApplicableCategories)
		encodeIDSet(e, "applicable_products", c.ApplicableProducts)
		encodeIDSet(e, "applicable_brands", c.ApplicableBrands)
		encodeIDSet(e, "excluded_categories", c.ExcludedCategories)
		encodeIDSet(e, "excluded_products", c.ExcludedProducts)
		encodeIDSet(e, "excluded_brands", c.ExcludedBrands)
		encodeIDSet(e, "allowed_users", c.AllowedUsers)
		encodeIDSet(e, "denied_users", c.DeniedUsers)
		e.Field("created_at", func(e *jx.Encoder) { e.Str(c.CreatedAt.Format(time.RFC3339Nano)) })
	})

	return slices.Clone(e.Bytes())
}

func encodeIDSet(e *jx.Encoder, name string, s coupon.IDSet) {
	if s.Empty() {
		return
	}
	e.Field(name, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for _, id := range s.Slice() {
				e.Int64(id)
			}
		})
	})
}

func decodeCoupon(data []byte) (*coupon.Coupon, error) {
	var c coupon.Coupon
	d := jx.DecodeBytes(data)
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "id":
			c.ID, err = d.Int64()
		case "code":
			c.Code, err = d.Str()
		case "description":
			c.Description, err = d.Str()
		case "discount_type":
			var s string
			s, err = d.Str()
			c.DiscountType = coupon.DiscountType(s)
		case "value":
			c.Value, err = decodeDecimal(d)
		case "currency":
			c.Currency, err = d.Str()
		case "max_discount_amount":
			c.MaxDiscountAmount.Decimal, err = decodeDecimal(d)
			c.MaxDiscountAmount.Valid = err == nil
		case "min_order_amount":
			c.MinOrderAmount.Decimal, err = decodeDecimal(d)
			c.MinOrderAmount.Valid = err == nil
		case "valid_from":
			c.ValidFrom, err = decodeTimePtr(d)
		case "valid_until":
			c.ValidUntil, err = decodeTimePtr(d)
		case "active":
			c.Active, err = d.Bool()
		case "max_uses":
			c.MaxUses, err = d.Int()
		case "uses_count":
			c.UsesCount, err = d.Int()
		case "max_uses_per_user":
			c.MaxUsesPerUser, err = d.Int()
		case "new_users_only":
			c.NewUsersOnly, err = d.Bool()
		case "first_order_only":
			c.FirstOrderOnly, err = d.Bool()
		case "applicable_categories":
			c.ApplicableCategories, err = decodeIDSet(d)
		case "applicable_products":
			c.ApplicableProducts, err = decodeIDSet(d)
		case "applicable_brands":
			c.ApplicableBrands, err = decodeIDSet(d)
		case "excluded_categories":
			c.ExcludedCategories, err = decodeIDSet(d)
		case "excluded_products":
			c.ExcludedProducts, err = decodeIDSet(d)
		case "excluded_brands":
			c.ExcludedBrands, err = decodeIDSet(d)
		case "allowed_users":
			c.AllowedUsers, err = decodeIDSet(d)
		case "denied_users":
			c.DeniedUsers, err = decodeIDSet(d)
		case "created_at":
			var t *time.Time
			t, err = decodeTimePtr(d)
			if t != nil {
				c.CreatedAt = *t
			}
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrapf(err, "field %s", key)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode coupon")
	}
	return &c, nil
}

func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	s, err := d.Str()
	if err != nil {
		return decimal.Decimal{}, err
	}
	return decimal.NewFromString(s)
}

func decodeTimePtr(d *jx.Decoder) (*time.Time, error) {
	s, err := d.Str()
	if err != nil {
		return nil, err
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func decodeIDSet(d *jx.Decoder) (coupon.IDSet, error) {
	var ids []int64
	err := d.Arr(func(d *jx.Decoder) error {
		id, err := d.Int64()
		if err != nil {
			return err
		}
		ids = append(ids, id)
		return nil
	})
	return coupon.NewIDSet(ids...), err
}
