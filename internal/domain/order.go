package domain

import (
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusOnWay     OrderStatus = "ON_WAY"
	OrderStatusDelivered OrderStatus = "DELIVERED"
	OrderStatusCanceled  OrderStatus = "CANCELED"
)

// ParseOrderStatus accepts exactly the closed set of statuses, case-insensitively.
func ParseOrderStatus(s string) (OrderStatus, error) {
	switch OrderStatus(strings.ToUpper(strings.TrimSpace(s))) {
	case OrderStatusPending:
		return OrderStatusPending, nil
	case OrderStatusOnWay:
		return OrderStatusOnWay, nil
	case OrderStatusDelivered:
		return OrderStatusDelivered, nil
	case OrderStatusCanceled:
		return OrderStatusCanceled, nil
	default:
		return "", NewValidationError("status")
	}
}

type PaymentMethod string

const (
	PaymentCashOnDelivery PaymentMethod = "CASH_ON_DELIVERY"
	PaymentCard           PaymentMethod = "CARD"
)

// ParsePaymentMethod maps the checkout selector to a payment method. VISA is the storefront's
// label for card payments.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case string(PaymentCashOnDelivery):
		return PaymentCashOnDelivery, nil
	case string(PaymentCard), "VISA":
		return PaymentCard, nil
	default:
		return "", NewValidationError("payment")
	}
}

// ShippingInfo is copied into the order, never referenced.
type ShippingInfo struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Address    string `json:"address"`
	City       string `json:"city"`
	State      string `json:"state"`
	Country    string `json:"country"`
	PostalCode string `json:"postal_code"`
}

func (s ShippingInfo) Validate() error {
	var fields []string
	required := []struct {
		name  string
		value string
	}{
		{"name", s.Name},
		{"phone", s.Phone},
		{"address", s.Address},
		{"city", s.City},
		{"state", s.State},
		{"country", s.Country},
		{"postal_code", s.PostalCode},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			fields = append(fields, r.name)
		}
	}
	if _, err := mail.ParseAddress(s.Email); err != nil {
		fields = append(fields, "email")
	}
	if len(fields) > 0 {
		return NewValidationError(fields...)
	}
	return nil
}

type OrderItem struct {
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
}

type Order struct {
	ID               uuid.UUID       `json:"id"`
	UserID           string          `json:"user_id"`
	Shipping         ShippingInfo    `json:"shipping"`
	TotalPrice       decimal.Decimal `json:"total_price"`
	PaymentMethod    PaymentMethod   `json:"payment_method"`
	PaymentSessionID *string         `json:"payment_session_id,omitempty"`
	Status           OrderStatus     `json:"status"`
	Items            []OrderItem     `json:"items"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// NewOrderFromSnapshot builds a PENDING order whose lines and total come from the frozen snapshot.
func NewOrderFromSnapshot(userID string, shipping ShippingInfo, method PaymentMethod, snapshot *CartSnapshot) *Order {
	items := make([]OrderItem, len(snapshot.Items))
	for i, item := range snapshot.Items {
		items[i] = OrderItem{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			Price:       item.UnitPrice,
		}
	}
	return &Order{
		ID:            uuid.New(),
		UserID:        userID,
		Shipping:      shipping,
		TotalPrice:    snapshot.TotalAmount,
		PaymentMethod: method,
		Status:        OrderStatusPending,
		Items:         items,
	}
}

// ItemsTotal recomputes Σ(price × quantity) over the order lines.
func (o *Order) ItemsTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total
}
