package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/xenking/storefront-backend/internal/domain/auth"
	"github.com/xenking/storefront-backend/internal/domain/order"
)

type orderItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int32  `json:"quantity"`
}

type createOrderRequest struct {
	Items             []orderItemRequest `json:"items"`
	ShippingAddressID *string            `json:"shippingAddressId,omitempty"`
	CouponCode        string             `json:"couponCode,omitempty"`
}

type updateOrderRequest struct {
	Items             []orderItemRequest `json:"items,omitempty"`
	ShippingAddressID *string            `json:"shippingAddressId,omitempty"`
	CouponCode        *string            `json:"couponCode,omitempty"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

type orderItemResponse struct {
	ProductID    string  `json:"productId"`
	Quantity     int32   `json:"quantity"`
	PricePerUnit float64 `json:"pricePerUnit"`
	TotalPrice   float64 `json:"totalPrice"`
	Status       string  `json:"status"`
}

type orderResponse struct {
	ID                string              `json:"id"`
	ShippingAddressID *string             `json:"shippingAddressId,omitempty"`
	CouponCode        *string             `json:"couponCode,omitempty"`
	TotalAmount       float64             `json:"totalAmount"`
	Status            string              `json:"status"`
	PaymentStatus     string              `json:"paymentStatus"`
	Items             []orderItemResponse `json:"items"`
	CreatedAt         time.Time           `json:"createdAt"`
	UpdatedAt         time.Time           `json:"updatedAt"`
}

func toOrderResponse(o *order.Order) orderResponse {
	items := make([]orderItemResponse, len(o.Items))
	for i, it := range o.Items {
		items[i] = orderItemResponse{
			ProductID:    it.ProductID.String(),
			Quantity:     it.Quantity,
			PricePerUnit: it.PricePerUnit.InexactFloat64(),
			TotalPrice:   it.TotalPrice().InexactFloat64(),
			Status:       string(it.Status),
		}
	}

	resp := orderResponse{
		ID:            o.ID.String(),
		CouponCode:    o.CouponCode,
		TotalAmount:   o.TotalAmount.InexactFloat64(),
		Status:        string(o.Status),
		PaymentStatus: string(o.PaymentStatus),
		Items:         items,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
	if o.ShippingAddressID != nil {
		s := o.ShippingAddressID.String()
		resp.ShippingAddressID = &s
	}
	return resp
}

func parseItems(in []orderItemRequest) ([]order.ItemInput, bool) {
	items := make([]order.ItemInput, len(in))
	for i, it := range in {
		id, err := uuid.Parse(it.ProductID)
		if err != nil {
			return nil, false
		}
		items[i] = order.ItemInput{ProductID: id, Quantity: it.Quantity}
	}
	return items, true
}

func parseOptionalUUID(s *string) (*uuid.UUID, bool) {
	if s == nil {
		return nil, true
	}
	id, err := uuid.Parse(*s)
	if err != nil {
		return nil, false
	}
	return &id, true
}

// CreateOrder places a new order for the authenticated user.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	ident, _ := auth.IdentityFromContext(r.Context())

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorCode(w, http.StatusBadRequest, "validation_error", "invalid request body")
		return
	}

	items, ok := parseItems(req.Items)
	if !ok {
		writeErrorCode(w, http.StatusBadRequest, "validation_error", "invalid product id")
		return
	}
	addrID, ok := parseOptionalUUID(req.ShippingAddressID)
	if !ok {
		writeErrorCode(w, http.StatusBadRequest, "validation_error", "invalid shipping address id")
		return
	}

	o, err := h.orders.Create(r.Context(), order.CreateRequest{
		UserID:            ident.UserID,
		Items:             items,
		ShippingAddressID: addrID,
		CouponCode:        req.CouponCode,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrderResponse(o))
}

// GetOrder returns a single order, visible to its owner or an admin.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ident, _ := auth.IdentityFromContext(r.Context())

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeErrorCode(w, http.StatusBadRequest, "validation_error", "invalid order id")
		return
	}

	o, err := h.orders.Get(r.Context(), id, ident)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

// UpdateOrder modifies an order's items, shipping address, or coupon.
func (h *Handler) UpdateOrder(w http.ResponseWriter, r *http.Request) {
	ident, _ := auth.IdentityFromContext(r.Context())

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeErrorCode(w, http.StatusBadRequest, "validation_error", "invalid order id")
		return
	}

	var req updateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorCode(w, http.StatusBadRequest, "validation_error", "invalid request body")
		return
	}

	upd := order.UpdateRequest{CouponCode: req.CouponCode}
	if req.Items != nil {
		items, ok := parseItems(req.Items)
		if !ok {
			writeErrorCode(w, http.StatusBadRequest, "validation_error", "invalid product id")
			return
		}
		upd.Items = items
	}
	addrID, ok := parseOptionalUUID(req.ShippingAddressID)
	if !ok {
		writeErrorCode(w, http.StatusBadRequest, "validation_error", "invalid shipping address id")
		return
	}
	upd.ShippingAddressID = addrID

	o, err := h.orders.Update(r.Context(), id, ident, upd)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

// UpdateOrderStatus transitions the fulfillment status. Admin only; the
// cascade to order items happens in the service.
func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeErrorCode(w, http.StatusBadRequest, "validation_error", "invalid order id")
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorCode(w, http.StatusBadRequest, "validation_error", "invalid request body")
		return
	}

	o, err := h.orders.UpdateStatus(r.Context(), id, req.Status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}
