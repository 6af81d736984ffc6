// Package couponjson is the public JSON shape of a coupon, shared by the HTTP
// API and the bulk import files.
//
// Amounts are decimal strings (numbers are accepted on input), timestamps are
// RFC 3339 and id sets are arrays of integers.
package couponjson

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/luxethreads/promotions/internal/domain/coupon"
)

// Decode reads one coupon object. Active defaults to true when the field is
// absent. Unknown fields are skipped.
func Decode(d *jx.Decoder) (*coupon.Coupon, error) {
	c := &coupon.Coupon{Active: true}
	if err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		return DecodeField(d, string(key), c)
	}); err != nil {
		return nil, err
	}
	return c, nil
}

// DecodeField decodes the value of a single object field into c.
func DecodeField(d *jx.Decoder, key string, c *coupon.Coupon) error {
	var err error
	switch key {
	case "code":
		c.Code, err = d.Str()
	case "description":
		c.Description, err = d.Str()
	case "discount_type":
		var t string
		t, err = d.Str()
		c.DiscountType = coupon.DiscountType(t)
	case "value":
		c.Value, err = DecodeDecimal(d)
	case "currency":
		c.Currency, err = d.Str()
	case "max_discount_amount":
		c.MaxDiscountAmount, err = decodeNullDecimal(d)
	case "min_order_amount":
		c.MinOrderAmount, err = decodeNullDecimal(d)
	case "valid_from":
		c.ValidFrom, err = decodeTime(d)
	case "valid_until":
		c.ValidUntil, err = decodeTime(d)
	case "active":
		c.Active, err = d.Bool()
	case "max_uses":
		c.MaxUses, err = d.Int()
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
	default:
		return d.Skip()
	}
	if err != nil {
		return errors.Wrapf(err, "field %s", key)
	}
	return nil
}

// DecodeDecimal accepts both JSON numbers and numeric strings.
func DecodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	var raw string
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Decimal{}, err
		}
		raw = s
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Decimal{}, err
		}
		raw = n.String()
	default:
		return decimal.Decimal{}, errors.New("expected a decimal number")
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, errors.Errorf("invalid decimal %q", raw)
	}
	return v, nil
}

func decodeNullDecimal(d *jx.Decoder) (decimal.NullDecimal, error) {
	if d.Next() == jx.Null {
		return decimal.NullDecimal{}, d.Null()
	}
	v, err := DecodeDecimal(d)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(v), nil
}

func decodeTime(d *jx.Decoder) (*time.Time, error) {
	if d.Next() == jx.Null {
		return nil, d.Null()
	}
	s, err := d.Str()
	if err != nil {
		return nil, err
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, errors.Errorf("invalid timestamp %q, want RFC 3339", s)
	}
	return &t, nil
}

func decodeIDSet(d *jx.Decoder) (coupon.IDSet, error) {
	var ids []int64
	if err := d.Arr(func(d *jx.Decoder) error {
		id, err := d.Int64()
		if err != nil {
			return err
		}
		ids = append(ids, id)
		return nil
	}); err != nil {
		return nil, err
	}
	return coupon.NewIDSet(ids...), nil
}

// Encode writes c as a JSON object. Absent amounts and timestamps are null
// and id sets are always present, possibly empty.
func Encode(e *jx.Encoder, c *coupon.Coupon) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Int64(c.ID) })
		e.Field("code", func(e *jx.Encoder) { e.Str(c.Code) })
		e.Field("description", func(e *jx.Encoder) { e.Str(c.Description) })
		e.Field("discount_type", func(e *jx.Encoder) { e.Str(string(c.DiscountType)) })
		e.Field("value", func(e *jx.Encoder) { e.Str(c.Value.String()) })
		e.Field("currency", func(e *jx.Encoder) { e.Str(c.Currency) })
		encodeNullAmount(e, "max_discount_amount", c.MaxDiscountAmount)
		encodeNullAmount(e, "min_order_amount", c.MinOrderAmount)
		encodeTime(e, "valid_from", c.ValidFrom)
		encodeTime(e, "valid_until", c.ValidUntil)
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
	})
}

func encodeNullAmount(e *jx.Encoder, name string, v decimal.NullDecimal) {
	e.Field(name, func(e *jx.Encoder) {
		if !v.Valid {
			e.Null()
			return
		}
		e.Str(v.Decimal.StringFixed(2))
	})
}

func encodeTime(e *jx.Encoder, name string, v *time.Time) {
	e.Field(name, func(e *jx.Encoder) {
		if v == nil {
			e.Null()
			return
		}
		e.Str(v.UTC().Format(time.RFC3339))
	})
}

func encodeIDSet(e *jx.Encoder, name string, s coupon.IDSet) {
	e.Field(name, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for _, id := range s.Slice() {
				e.Int64(id)
			}
		})
	})
}
