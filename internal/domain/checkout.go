package domain

import "github.com/shopspring/decimal"

type CheckoutState string

const (
	CheckoutInitiated  CheckoutState = "INITIATED"
	CheckoutReserved   CheckoutState = "RESERVED"
	CheckoutCommitted  CheckoutState = "COMMITTED"
	CheckoutFinalized  CheckoutState = "FINALIZED"
	CheckoutFailed     CheckoutState = "FAILED"
	CheckoutRolledBack CheckoutState = "ROLLED_BACK"
)

var checkoutTransitions = map[CheckoutState][]CheckoutState{
	CheckoutInitiated: {CheckoutReserved, CheckoutFailed},
	CheckoutReserved:  {CheckoutCommitted, CheckoutFailed},
	CheckoutCommitted: {CheckoutFinalized, CheckoutFailed},
	CheckoutFailed:    {CheckoutRolledBack},
}

func (s CheckoutState) IsTerminal() bool {
	return s == CheckoutFinalized || s == CheckoutRolledBack
}

// String representation (for logging)
func (s CheckoutState) String() string {
	return string(s)
}

func CanTransitionTo(from, to CheckoutState) bool {
	for _, next := range checkoutTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type CheckoutRequest struct {
	Shipping      ShippingInfo
	PaymentMethod PaymentMethod
}

// CheckoutResult carries either the created order (cash) or the payment session (card).
type CheckoutResult struct {
	Order      *Order
	SessionID  string
	SessionURL string
}

// CardPaymentCompleted is what the payment webhook hands to the checkout service.
type CardPaymentCompleted struct {
	SessionID string
	UserID    string
	Shipping  ShippingInfo
	// AmountTotal is the amount the gateway charged, zero when the event did not carry it.
	AmountTotal decimal.Decimal
}
