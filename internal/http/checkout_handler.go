package http

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/fjod/pawmart/internal/domain"
	"github.com/fjod/pawmart/internal/payment"
)

const maxWebhookBody = 1 << 16

type CheckoutHandler struct {
	checkout CheckoutService
	log      *slog.Logger
}

func NewCheckoutHandler(checkout CheckoutService, log *slog.Logger) *CheckoutHandler {
	return &CheckoutHandler{checkout: checkout, log: log}
}

type CheckoutRequestDTO struct {
	domain.ShippingInfo
	Payment string `json:"payment"`
}

type CheckoutResponseDTO struct {
	Success   bool          `json:"success,omitempty"`
	Order     *domain.Order `json:"order,omitempty"`
	SessionID string        `json:"session_id,omitempty"`
	URL       string        `json:"url,omitempty"`
}

// POST /api/v1/checkout
func (h *CheckoutHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req CheckoutRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	method, err := domain.ParsePaymentMethod(req.Payment)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}

	result, err := h.checkout.PlaceOrder(r.Context(), domain.CheckoutRequest{
		Shipping:      req.ShippingInfo,
		PaymentMethod: method,
	})
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}

	if result.Order != nil {
		respondJSON(w, http.StatusCreated, CheckoutResponseDTO{Success: true, Order: result.Order})
		return
	}
	respondJSON(w, http.StatusOK, CheckoutResponseDTO{SessionID: result.SessionID, URL: result.SessionURL})
}

// POST /api/v1/webhooks/payment
//
// The body is verified byte for byte, so it is read raw. An empty cart is acknowledged so the
// gateway stops redelivering; other failures return 500 and are retried by the gateway.
func (h *CheckoutHandler) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "unreadable body")
		return
	}

	order, err := h.checkout.HandleWebhook(r.Context(), payload, r.Header.Get(payment.SignatureHeader))
	switch {
	case err == nil:
		resp := map[string]any{"received": true}
		if order != nil {
			resp["order_id"] = order.ID
		}
		respondJSON(w, http.StatusOK, resp)
	case errors.Is(err, domain.ErrEmptyCart):
		h.log.WarnContext(r.Context(), "payment completed for empty cart", slog.Any("error", err))
		respondJSON(w, http.StatusOK, map[string]any{"received": true})
	case errors.Is(err, domain.ErrInvalidSignature):
		h.log.WarnContext(r.Context(), "rejected webhook", slog.Any("error", err))
		respondError(w, http.StatusBadRequest, "invalid_signature", "invalid signature")
	case errors.Is(err, domain.ErrValidation):
		respondError(w, http.StatusBadRequest, "invalid_event", "malformed event")
	default:
		h.log.ErrorContext(r.Context(), "webhook processing failed", slog.Any("error", err))
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
