package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	EventOrderPlaced        = "order.placed"
	EventOrderStatusChanged = "order.status_changed"
)

// OrderEvent is the outbox payload published to the order-events topic.
type OrderEvent struct {
	EventID       uuid.UUID       `json:"event_id"`
	EventType     string          `json:"event_type"`
	OrderID       uuid.UUID       `json:"order_id"`
	UserID        string          `json:"user_id"`
	Status        OrderStatus     `json:"status"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	TotalPrice    decimal.Decimal `json:"total_price"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

func NewOrderEvent(eventType string, order *Order, now time.Time) OrderEvent {
	return OrderEvent{
		EventID:       uuid.New(),
		EventType:     eventType,
		OrderID:       order.ID,
		UserID:        order.UserID,
		Status:        order.Status,
		PaymentMethod: order.PaymentMethod,
		TotalPrice:    order.TotalPrice,
		OccurredAt:    now,
	}
}
