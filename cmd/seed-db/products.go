package main

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/luxethreads/promotions/internal/couponjson"
)

type seedImage struct {
	Thumbnail string
	Mobile    string
	Tablet    string
	Desktop   string
}

type seedProduct struct {
	ID                int64
	Name              string
	CategoryID        int64
	BrandID           int64
	Currency          string
	Price             decimal.Decimal
	DiscountedPrice   decimal.NullDecimal
	Stock             int
	LowStockThreshold int
	Image             seedImage
}

// parseProducts decodes the catalog file: a JSON array of products.
func parseProducts(data []byte) ([]seedProduct, error) {
	var products []seedProduct
	err := jx.DecodeBytes(data).Arr(func(d *jx.Decoder) error {
		p := seedProduct{Currency: "USD", LowStockThreshold: 5}
		if err := d.Obj(func(d *jx.Decoder, key string) error {
			return decodeProductField(d, key, &p)
		}); err != nil {
			return errors.Wrapf(err, "product %d", len(products))
		}
		if p.ID <= 0 || p.Name == "" {
			return errors.Errorf("product %d: id and name are required", len(products))
		}
		products = append(products, p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return products, nil
}

func decodeProductField(d *jx.Decoder, key string, p *seedProduct) error {
	var err error
	switch key {
	case "id":
		p.ID, err = d.Int64()
	case "name":
		p.Name, err = d.Str()
	case "category_id":
		p.CategoryID, err = d.Int64()
	case "brand_id":
		p.BrandID, err = d.Int64()
	case "currency":
		p.Currency, err = d.Str()
	case "price":
		p.Price, err = couponjson.DecodeDecimal(d)
	case "discounted_price":
		if d.Next() == jx.Null {
			return d.Null()
		}
		var v decimal.Decimal
		v, err = couponjson.DecodeDecimal(d)
		p.DiscountedPrice = decimal.NewNullDecimal(v)
	case "stock":
		p.Stock, err = d.Int()
	case "low_stock_threshold":
		p.LowStockThreshold, err = d.Int()
	case "image":
		err = d.Obj(func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "thumbnail":
				p.Image.Thumbnail, err = d.Str()
			case "mobile":
				p.Image.Mobile, err = d.Str()
			case "tablet":
				p.Image.Tablet, err = d.Str()
			case "desktop":
				p.Image.Desktop, err = d.Str()
			default:
				err = d.Skip()
			}
			return err
		})
	default:
		return d.Skip()
	}
	return errors.Wrapf(err, "field %s", key)
}
