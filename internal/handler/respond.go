package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront-backend/internal/domain/coupon"
	"github.com/xenking/storefront-backend/internal/domain/order"
	"github.com/xenking/storefront-backend/internal/domain/payment"
	"github.com/xenking/storefront-backend/internal/domain/product"
)

// errorResponse is the envelope for all error replies. Code is a stable
// machine-readable identifier; Message is for humans.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErrorCode(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// writeError maps a domain error onto the HTTP error taxonomy.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		pnfErr *order.ProductNotFoundError
		iqErr  *order.InvalidQuantityError
	)

	switch {
	case errors.Is(err, order.ErrEmptyItems):
		writeErrorCode(w, http.StatusBadRequest, "validation_error", err.Error())
	case errors.As(err, &iqErr):
		writeErrorCode(w, http.StatusUnprocessableEntity, "validation_error", iqErr.Error())
	case errors.As(err, &pnfErr):
		writeErrorCode(w, http.StatusUnprocessableEntity, "not_found", pnfErr.Error())
	case errors.Is(err, product.ErrNotFound):
		writeErrorCode(w, http.StatusNotFound, "not_found", "product not found")
	case errors.Is(err, order.ErrNotFound):
		writeErrorCode(w, http.StatusNotFound, "order_not_found", "order not found")
	case errors.Is(err, coupon.ErrNotFound):
		writeErrorCode(w, http.StatusUnprocessableEntity, "coupon_not_found", "coupon not found")
	case errors.Is(err, coupon.ErrUsageLimitReached):
		writeErrorCode(w, http.StatusUnprocessableEntity, "coupon_usage_exceeded", "coupon usage limit reached")
	case errors.Is(err, coupon.ErrBelowMinCartValue):
		writeErrorCode(w, http.StatusUnprocessableEntity, "below_minimum_cart_value", "cart below coupon minimum value")
	case errors.Is(err, coupon.ErrInvalid):
		writeErrorCode(w, http.StatusUnprocessableEntity, "coupon_invalid", "coupon is invalid or expired")
	case errors.Is(err, order.ErrInvalidStatus):
		writeErrorCode(w, http.StatusBadRequest, "invalid_status", err.Error())
	case errors.Is(err, order.ErrForbidden), errors.Is(err, payment.ErrForbidden):
		writeErrorCode(w, http.StatusForbidden, "forbidden", "you may not access this order")
	case errors.Is(err, payment.ErrAlreadyPaid):
		writeErrorCode(w, http.StatusConflict, "already_paid", "order is already paid")
	case errors.Is(err, payment.ErrNotFound):
		writeErrorCode(w, http.StatusNotFound, "not_found", "no payment found for this order")
	case errors.Is(err, payment.ErrProcessing):
		writeErrorCode(w, http.StatusBadGateway, "payment_processing_error", "payment processing error")
	case errors.Is(err, payment.ErrInvalidSignature):
		writeErrorCode(w, http.StatusBadRequest, "invalid_signature", "webhook signature verification failed")
	case errors.Is(err, payment.ErrMissingMetadata):
		writeErrorCode(w, http.StatusBadRequest, "validation_error", "event is missing order metadata")
	default:
		zctx.From(r.Context()).Error("Unhandled request error", zap.Error(err))
		writeErrorCode(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
