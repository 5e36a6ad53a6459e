package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fjod/pawmart/internal/domain"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// loadCart reads the cart with its items and their current products. A user without a cart
// gets an empty one. With lock set the cart row is held FOR UPDATE until the transaction ends.
func loadCart(ctx context.Context, q querier, userID string, lock bool) (*domain.Cart, error) {
	query := `SELECT id, user_id, created_at, updated_at FROM carts WHERE user_id = $1`
	if lock {
		query += ` FOR UPDATE`
	}

	cart := &domain.Cart{UserID: userID, Items: []domain.CartItem{}}
	err := q.QueryRowContext(ctx, query, userID).Scan(&cart.ID, &cart.UserID, &cart.CreatedAt, &cart.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return cart, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query cart: %w", err)
	}

	itemsQuery := `SELECT ci.product_id, ci.quantity, ci.added_at, ` + productColumns + `
	               FROM cart_items ci JOIN products p ON p.id = ci.product_id
	               WHERE ci.cart_id = $1
	               ORDER BY ci.added_at, ci.product_id`

	rows, err := q.QueryContext(ctx, itemsQuery, cart.ID)
	if err != nil {
		return nil, fmt.Errorf("query cart items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item domain.CartItem
		var p domain.Product
		if err := rows.Scan(
			&item.ProductID,
			&item.Quantity,
			&item.AddedAt,
			&p.ID,
			&p.CategoryID,
			&p.Name,
			&p.Description,
			&p.Price,
			&p.ImageURL,
			&p.Stock,
			&p.AverageRating,
			&p.RatingCount,
			&p.CreatedAt,
			&p.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan cart item row: %w", err)
		}
		item.Product = &p
		cart.Items = append(cart.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return cart, nil
}

func (r *Repository) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	return loadCart(ctx, r.db, userID, false)
}

// AddItem inserts the product or, when it is already in the cart, increments its quantity.
func (r *Repository) AddItem(ctx context.Context, userID string, productID int64, quantity int) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		var cartID int64
		err := tx.QueryRowContext(ctx,
			`INSERT INTO carts (user_id) VALUES ($1)
			 ON CONFLICT (user_id) DO UPDATE SET updated_at = NOW()
			 RETURNING id`, userID).Scan(&cartID)
		if err != nil {
			return fmt.Errorf("ensure cart: %w", err)
		}

		var total int
		err = tx.QueryRowContext(ctx,
			`INSERT INTO cart_items (cart_id, product_id, quantity) VALUES ($1, $2, $3)
			 ON CONFLICT (cart_id, product_id) DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity
			 RETURNING quantity`, cartID, productID, quantity).Scan(&total)
		if err != nil {
			if isForeignKeyViolation(err) {
				return fmt.Errorf("product %d: %w", productID, domain.ErrNotFound)
			}
			return fmt.Errorf("upsert cart item: %w", err)
		}
		if !domain.ValidQuantity(total) {
			return domain.NewValidationError("quantity")
		}
		return nil
	})
}

func (r *Repository) UpdateItemQuantity(ctx context.Context, userID string, productID int64, quantity int) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE cart_items SET quantity = $3
		 WHERE cart_id = (SELECT id FROM carts WHERE user_id = $1) AND product_id = $2`,
		userID, productID, quantity)
	if err != nil {
		return fmt.Errorf("update cart item: %w", err)
	}
	return expectAffected(res, fmt.Errorf("cart item %d: %w", productID, domain.ErrNotFound))
}

func (r *Repository) RemoveItem(ctx context.Context, userID string, productID int64) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM cart_items
		 WHERE cart_id = (SELECT id FROM carts WHERE user_id = $1) AND product_id = $2`,
		userID, productID)
	if err != nil {
		return fmt.Errorf("delete cart item: %w", err)
	}
	return expectAffected(res, fmt.Errorf("cart item %d: %w", productID, domain.ErrNotFound))
}

func (r *Repository) ClearCart(ctx context.Context, userID string) error {
	return clearCart(ctx, r.db, userID)
}

func clearCart(ctx context.Context, q querier, userID string) error {
	_, err := q.ExecContext(ctx,
		`DELETE FROM cart_items WHERE cart_id = (SELECT id FROM carts WHERE user_id = $1)`, userID)
	if err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

func expectAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
