package handler

import (
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/xenking/storefront-backend/internal/domain/auth"
)

// Webhook payloads are small; cap reads to guard against oversized bodies.
const maxWebhookBody = 64 << 10

type createPaymentResponse struct {
	PaymentIntentID string `json:"paymentIntentId"`
	ClientSecret    string `json:"clientSecret"`
}

type paymentStatusResponse struct {
	OrderID         string    `json:"orderId"`
	PaymentIntentID string    `json:"paymentIntentId"`
	Amount          float64   `json:"amount"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"createdAt"`
}

// CreatePayment requests a payment intent for the order from the provider.
func (h *Handler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	ident, _ := auth.IdentityFromContext(r.Context())

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeErrorCode(w, http.StatusBadRequest, "validation_error", "invalid order id")
		return
	}

	intent, err := h.payments.CreateIntent(r.Context(), id, ident)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, createPaymentResponse{
		PaymentIntentID: intent.ID,
		ClientSecret:    intent.ClientSecret,
	})
}

// PaymentStatus returns the payment record for an order.
func (h *Handler) PaymentStatus(w http.ResponseWriter, r *http.Request) {
	ident, _ := auth.IdentityFromContext(r.Context())

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeErrorCode(w, http.StatusBadRequest, "validation_error", "invalid order id")
		return
	}

	p, err := h.payments.Status(r.Context(), id, ident)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, paymentStatusResponse{
		OrderID:         p.OrderID.String(),
		PaymentIntentID: p.IntentID,
		Amount:          p.Amount.InexactFloat64(),
		Status:          string(p.Status),
		CreatedAt:       p.CreatedAt,
	})
}

// Webhook receives signed payment-provider events. Signature verification
// happens in the reconciler; anything unverified is rejected.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeErrorCode(w, http.StatusBadRequest, "validation_error", "cannot read payload")
		return
	}

	if err := h.reconciler.Process(r.Context(), payload, r.Header.Get("Stripe-Signature")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "received"})
}
