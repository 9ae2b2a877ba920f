// Package handler exposes the REST surface over the domain services.
package handler

import (
	"net/http"

	"github.com/xenking/storefront-backend/internal/domain/order"
	"github.com/xenking/storefront-backend/internal/domain/payment"
	"github.com/xenking/storefront-backend/internal/domain/product"
)

// Handler wires the HTTP routes to the domain services.
type Handler struct {
	products   product.Repository
	orders     *order.Service
	payments   *payment.Service
	reconciler *payment.Reconciler
	security   *Security
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	products product.Repository,
	orders *order.Service,
	payments *payment.Service,
	reconciler *payment.Reconciler,
	security *Security,
) *Handler {
	return &Handler{
		products:   products,
		orders:     orders,
		payments:   payments,
		reconciler: reconciler,
		security:   security,
	}
}

// Register mounts all API routes on the mux. The webhook endpoint is
// deliberately outside API-key auth; it is authenticated by its signature.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/products", h.ListProducts)
	mux.HandleFunc("GET /api/products/{id}", h.GetProduct)

	mux.HandleFunc("POST /api/orders", h.security.Require(h.CreateOrder))
	mux.HandleFunc("GET /api/orders/{id}", h.security.Require(h.GetOrder))
	mux.HandleFunc("PATCH /api/orders/{id}", h.security.Require(h.UpdateOrder))
	mux.HandleFunc("POST /api/orders/{id}/update_status", h.security.RequireAdmin(h.UpdateOrderStatus))
	mux.HandleFunc("POST /api/orders/{id}/create_payment", h.security.Require(h.CreatePayment))
	mux.HandleFunc("GET /api/orders/{id}/payment_status", h.security.Require(h.PaymentStatus))

	mux.HandleFunc("POST /api/payments/webhook", h.Webhook)
}
