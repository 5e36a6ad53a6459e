package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fjod/pawmart/internal/domain"
)

// CheckoutTx is the set of writes an order placement performs inside one transaction.
type CheckoutTx interface {
	LockCart(ctx context.Context, userID string) (*domain.Cart, error)
	FindOrderByPaymentSession(ctx context.Context, sessionID string) (*domain.Order, error)
	DecrementStock(ctx context.Context, productID int64, quantity int, allowNegative bool) error
	CreateOrder(ctx context.Context, order *domain.Order) error
	ClearCart(ctx context.Context, userID string) error
	AppendEvent(ctx context.Context, event domain.OrderEvent) error
}

type checkoutTx struct {
	tx *sql.Tx
}

// WithCheckoutTx commits when fn returns nil and rolls everything back otherwise.
func (r *Repository) WithCheckoutTx(ctx context.Context, fn func(CheckoutTx) error) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		return fn(&checkoutTx{tx: tx})
	})
}

func (c *checkoutTx) LockCart(ctx context.Context, userID string) (*domain.Cart, error) {
	return loadCart(ctx, c.tx, userID, true)
}

func (c *checkoutTx) FindOrderByPaymentSession(ctx context.Context, sessionID string) (*domain.Order, error) {
	return findOrderByPaymentSession(ctx, c.tx, sessionID)
}

// DecrementStock subtracts quantity from the product. Unless allowNegative is set the update
// only applies when enough stock is left, and ErrInsufficientStock is returned otherwise.
func (c *checkoutTx) DecrementStock(ctx context.Context, productID int64, quantity int, allowNegative bool) error {
	query := `UPDATE products SET stock = stock - $2, updated_at = NOW() WHERE id = $1`
	notAffected := fmt.Errorf("product %d: %w", productID, domain.ErrNotFound)
	if !allowNegative {
		query += ` AND stock >= $2`
		notAffected = fmt.Errorf("product %d: %w", productID, domain.ErrInsufficientStock)
	}

	res, err := c.tx.ExecContext(ctx, query, productID, quantity)
	if err != nil {
		return fmt.Errorf("decrement stock: %w", err)
	}
	return expectAffected(res, notAffected)
}

func (c *checkoutTx) CreateOrder(ctx context.Context, order *domain.Order) error {
	return insertOrder(ctx, c.tx, order)
}

func (c *checkoutTx) ClearCart(ctx context.Context, userID string) error {
	return clearCart(ctx, c.tx, userID)
}

func (c *checkoutTx) AppendEvent(ctx context.Context, event domain.OrderEvent) error {
	return appendOutbox(ctx, c.tx, event)
}
