package payment

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/fjod/pawmart/internal/domain"
)

const (
	EventCheckoutSessionCompleted = "checkout.session.completed"
	EventCheckoutSessionExpired   = "checkout.session.expired"

	MetadataUserID   = "user_id"
	MetadataShipping = "shipping"
)

// Event is a webhook notification from the gateway.
type Event struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// Session is a hosted checkout session as the gateway reports it.
type Session struct {
	ID            string            `json:"id"`
	URL           string            `json:"url,omitempty"`
	AmountTotal   int64             `json:"amount_total"`
	Currency      string            `json:"currency"`
	PaymentStatus string            `json:"payment_status,omitempty"`
	Metadata      map[string]string `json:"metadata"`
}

func ParseEvent(payload []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(payload, &e); err != nil {
		return nil, domain.NewValidationError("payload")
	}
	if e.Type == "" {
		return nil, domain.NewValidationError("type")
	}
	return &e, nil
}

func (e *Event) Session() (*Session, error) {
	var s Session
	if err := json.Unmarshal(e.Data.Object, &s); err != nil {
		return nil, fmt.Errorf("decode session object: %w", domain.NewValidationError("data.object"))
	}
	if s.ID == "" {
		return nil, domain.NewValidationError("data.object.id")
	}
	return &s, nil
}

// CardPayment reads the order metadata attached when the session was created.
func (s *Session) CardPayment() (domain.CardPaymentCompleted, error) {
	userID := s.Metadata[MetadataUserID]
	if userID == "" {
		return domain.CardPaymentCompleted{}, domain.NewValidationError("metadata.user_id")
	}

	var shipping domain.ShippingInfo
	if err := json.Unmarshal([]byte(s.Metadata[MetadataShipping]), &shipping); err != nil {
		return domain.CardPaymentCompleted{}, domain.NewValidationError("metadata.shipping")
	}

	return domain.CardPaymentCompleted{
		SessionID:   s.ID,
		UserID:      userID,
		Shipping:    shipping,
		AmountTotal: FromMinorUnits(s.AmountTotal),
	}, nil
}

// ToMinorUnits converts an amount to cents, rounding half away from zero.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

func FromMinorUnits(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}
