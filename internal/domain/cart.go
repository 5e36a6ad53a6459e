package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const MaxItemQuantity = 99

type Cart struct {
	ID        int64      `json:"id"`
	UserID    string     `json:"user_id"`
	Items     []CartItem `json:"items"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// CartItem carries the product as it was read together with the cart.
type CartItem struct {
	ProductID int64     `json:"product_id"`
	Quantity  int       `json:"quantity"`
	AddedAt   time.Time `json:"added_at"`
	Product   *Product  `json:"product,omitempty"`
}

func (c *Cart) IsEmpty() bool {
	return c == nil || len(c.Items) == 0
}

func ValidQuantity(q int) bool {
	return q >= 1 && q <= MaxItemQuantity
}

// CheckStock reports the first line asking for more than the stock read with the cart.
func (c *Cart) CheckStock() error {
	for _, item := range c.Items {
		if item.Product == nil {
			return fmt.Errorf("product %d: %w", item.ProductID, ErrNotFound)
		}
		if item.Product.Stock < item.Quantity {
			return fmt.Errorf("product %d: %w", item.ProductID, ErrInsufficientStock)
		}
	}
	return nil
}

type CartSnapshotItem struct {
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

// CartSnapshot represents the full cart state at checkout time
type CartSnapshot struct {
	Items       []CartSnapshotItem `json:"items"`
	TotalAmount decimal.Decimal    `json:"total_amount"`
	Currency    string             `json:"currency"`
	CapturedAt  time.Time          `json:"captured_at"`
}

// Snapshot freezes current catalog prices for every line. A line whose product was not loaded
// yields ErrNotFound.
func (c *Cart) Snapshot(currency string, now time.Time) (*CartSnapshot, error) {
	if c.IsEmpty() {
		return nil, ErrEmptyCart
	}
	snapshot := &CartSnapshot{
		Items:      make([]CartSnapshotItem, 0, len(c.Items)),
		Currency:   currency,
		CapturedAt: now,
	}

	total := decimal.Zero
	for _, item := range c.Items {
		if item.Product == nil {
			return nil, ErrNotFound
		}
		subtotal := item.Product.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
		snapshot.Items = append(snapshot.Items, CartSnapshotItem{
			ProductID:   item.ProductID,
			ProductName: item.Product.Name,
			Quantity:    item.Quantity,
			UnitPrice:   item.Product.Price,
			Subtotal:    subtotal,
		})
		total = total.Add(subtotal)
	}

	snapshot.TotalAmount = total
	return snapshot, nil
}
