package product

import (
	"github.com/go-faster/errors"

	"github.com/luxethreads/promotions/internal/domain/money"
)

// StockStatus is the derived availability label of an Inventory.
type StockStatus string

const (
	StatusOutOfStock StockStatus = "out_of_stock"
	StatusLowStock   StockStatus = "low_stock"
	StatusInStock    StockStatus = "in_stock"
)

// Inventory is a stock snapshot for a single product.
type Inventory struct {
	stock             int
	reserved          int
	lowStockThreshold int
}

// NewInventory validates that all quantities are non-negative.
func NewInventory(stock, reserved, lowStockThreshold int) (Inventory, error) {
	if stock < 0 || reserved < 0 || lowStockThreshold < 0 {
		return Inventory{}, errors.Wrapf(money.ErrInvalidArgument,
			"inventory quantities must be non-negative (stock=%d reserved=%d threshold=%d)",
			stock, reserved, lowStockThreshold,
		)
	}
	return Inventory{stock: stock, reserved: reserved, lowStockThreshold: lowStockThreshold}, nil
}

// Stock returns the physical stock quantity.
func (i Inventory) Stock() int { return i.stock }

// Reserved returns the quantity held for unfinished checkouts.
func (i Inventory) Reserved() int { return i.reserved }

// LowStockThreshold returns the quantity at or below which stock is low.
func (i Inventory) LowStockThreshold() int { return i.lowStockThreshold }

// Available returns stock minus reserved, floored at zero.
func (i Inventory) Available() int {
	return max(i.stock-i.reserved, 0)
}

// Status derives the stock label from Available and the threshold.
func (i Inventory) Status() StockStatus {
	available := i.Available()
	switch {
	case available == 0:
		return StatusOutOfStock
	case available <= i.lowStockThreshold:
		return StatusLowStock
	default:
		return StatusInStock
	}
}

// CanFulfill reports whether qty units are available.
func (i Inventory) CanFulfill(qty int) bool {
	return qty > 0 && qty <= i.Available()
}
