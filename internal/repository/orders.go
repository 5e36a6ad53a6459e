package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/fjod/pawmart/internal/domain"
)

const orderColumns = `id, user_id, name, email, phone, address, city, state, country, postal_code,
	total_price, payment_method, status, payment_session_id, created_at, updated_at`

const paymentSessionConstraint = "orders_payment_session_id_key"

func scanOrder(row rowScanner) (*domain.Order, error) {
	var o domain.Order
	var sessionID sql.NullString
	err := row.Scan(
		&o.ID,
		&o.UserID,
		&o.Shipping.Name,
		&o.Shipping.Email,
		&o.Shipping.Phone,
		&o.Shipping.Address,
		&o.Shipping.City,
		&o.Shipping.State,
		&o.Shipping.Country,
		&o.Shipping.PostalCode,
		&o.TotalPrice,
		&o.PaymentMethod,
		&o.Status,
		&sessionID,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if sessionID.Valid {
		o.PaymentSessionID = &sessionID.String
	}
	o.Items = []domain.OrderItem{}
	return &o, nil
}

func queryOrders(ctx context.Context, q querier, query string, args ...any) ([]*domain.Order, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	orders := make([]*domain.Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	// The connection must be free before the items query when q is a transaction.
	rows.Close()

	if err := attachOrderItems(ctx, q, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// attachOrderItems loads the lines of every order with a single query.
func attachOrderItems(ctx context.Context, q querier, orders []*domain.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]string, len(orders))
	byID := make(map[uuid.UUID]*domain.Order, len(orders))
	for i, o := range orders {
		ids[i] = o.ID.String()
		byID[o.ID] = o
	}

	rows, err := q.QueryContext(ctx,
		`SELECT order_id, product_id, product_name, quantity, price
		 FROM order_items WHERE order_id = ANY($1::uuid[]) ORDER BY id`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var orderID uuid.UUID
		var item domain.OrderItem
		if err := rows.Scan(&orderID, &item.ProductID, &item.ProductName, &item.Quantity, &item.Price); err != nil {
			return fmt.Errorf("scan order item row: %w", err)
		}
		if o, ok := byID[orderID]; ok {
			o.Items = append(o.Items, item)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("row iteration error: %w", err)
	}
	return nil
}

func getOrder(ctx context.Context, q querier, query string, args ...any) (*domain.Order, error) {
	orders, err := queryOrders(ctx, q, query, args...)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, domain.ErrNotFound
	}
	return orders[0], nil
}

func (r *Repository) GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	o, err := getOrder(ctx, r.db, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("order %s: %w", id, err)
	}
	return o, nil
}

func (r *Repository) FindOrderByPaymentSession(ctx context.Context, sessionID string) (*domain.Order, error) {
	return findOrderByPaymentSession(ctx, r.db, sessionID)
}

func findOrderByPaymentSession(ctx context.Context, q querier, sessionID string) (*domain.Order, error) {
	o, err := getOrder(ctx, q, `SELECT `+orderColumns+` FROM orders WHERE payment_session_id = $1`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("order for session %s: %w", sessionID, err)
	}
	return o, nil
}

// ListOrdersByUser returns the user's orders, newest first.
func (r *Repository) ListOrdersByUser(ctx context.Context, userID string) ([]*domain.Order, error) {
	return queryOrders(ctx, r.db,
		`SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`, userID)
}

func (r *Repository) ListOrders(ctx context.Context, limit, offset int) ([]*domain.Order, error) {
	return queryOrders(ctx, r.db,
		`SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
}

// UpdateOrderStatus overwrites the status and records an order.status_changed event in the
// same transaction.
func (r *Repository) UpdateOrderStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus, now time.Time) (*domain.Order, error) {
	var order *domain.Order
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		o, err := getOrder(ctx, tx,
			`UPDATE orders SET status = $2, updated_at = $3 WHERE id = $1 RETURNING `+orderColumns,
			id, status, now)
		if err != nil {
			return fmt.Errorf("order %s: %w", id, err)
		}
		if err := appendOutbox(ctx, tx, domain.NewOrderEvent(domain.EventOrderStatusChanged, o, now)); err != nil {
			return err
		}
		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func insertOrder(ctx context.Context, q querier, o *domain.Order) error {
	var sessionID sql.NullString
	if o.PaymentSessionID != nil {
		sessionID = sql.NullString{String: *o.PaymentSessionID, Valid: true}
	}

	err := q.QueryRowContext(ctx,
		`INSERT INTO orders (id, user_id, name, email, phone, address, city, state, country, postal_code,
		                     total_price, payment_method, status, payment_session_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, NOW(), NOW())
		 RETURNING created_at, updated_at`,
		o.ID,
		o.UserID,
		o.Shipping.Name,
		o.Shipping.Email,
		o.Shipping.Phone,
		o.Shipping.Address,
		o.Shipping.City,
		o.Shipping.State,
		o.Shipping.Country,
		o.Shipping.PostalCode,
		o.TotalPrice,
		o.PaymentMethod,
		o.Status,
		sessionID,
	).Scan(&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err, paymentSessionConstraint) {
			return ErrDuplicatePaymentSession
		}
		return fmt.Errorf("insert order: %w", err)
	}

	for _, item := range o.Items {
		_, err := q.ExecContext(ctx,
			`INSERT INTO order_items (order_id, product_id, product_name, quantity, price)
			 VALUES ($1, $2, $3, $4, $5)`,
			o.ID, item.ProductID, item.ProductName, item.Quantity, item.Price)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}
	return nil
}

