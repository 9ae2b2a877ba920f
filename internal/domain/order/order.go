package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status is the fulfillment state of an order. It is tracked separately from
// PaymentStatus so that shipping progress and payment progress never compete
// for one field.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusShipped    Status = "SHIPPED"
	StatusDelivered  Status = "DELIVERED"
	StatusCancelled  Status = "CANCELLED"
)

// PaymentStatus is the payment state of an order, driven by the payment
// gateway and the webhook reconciler.
type PaymentStatus string

const (
	PaymentUnpaid   PaymentStatus = "UNPAID"
	PaymentAwaiting PaymentStatus = "AWAITING_PAYMENT"
	PaymentPaid     PaymentStatus = "PAID"
	PaymentFailed   PaymentStatus = "PAYMENT_FAILED"
)

var (
	// ErrNotFound is returned when a requested order does not exist.
	ErrNotFound = errors.New("order not found")
	// ErrInvalidStatus is returned for unrecognized status values or
	// transitions out of a terminal state.
	ErrInvalidStatus = errors.New("invalid order status")
	// ErrForbidden is returned when the caller may not act on the order.
	ErrForbidden = errors.New("order access forbidden")
	// ErrEmptyItems is returned when an order has no line items.
	ErrEmptyItems = errors.New("items required")
)

// ParseStatus validates a raw status value.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled:
		return st, nil
	default:
		return "", errors.Wrapf(ErrInvalidStatus, "%q", s)
	}
}

// Terminal reports whether no further fulfillment transitions are allowed.
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// Order is the aggregate root for a customer purchase. TotalAmount is always
// derived from the persisted items plus the coupon discount, never set
// directly.
type Order struct {
	ID                uuid.UUID
	UserID            uuid.UUID
	ShippingAddressID *uuid.UUID
	CouponCode        *string
	TotalAmount       decimal.Decimal
	Status            Status
	PaymentStatus     PaymentStatus
	Items             []Item
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Item is a single order line. PricePerUnit is snapshotted from the product
// at creation time; Status mirrors the owning order's status.
type Item struct {
	ID           uuid.UUID
	OrderID      uuid.UUID
	ProductID    uuid.UUID
	Quantity     int32
	PricePerUnit decimal.Decimal
	Status       Status
}

// TotalPrice is the line total for the item.
func (i Item) TotalPrice() decimal.Decimal {
	return i.PricePerUnit.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Repository defines persistence operations for orders and their items.
// Mutating methods are expected to run inside a transaction started by the
// service; UpdateStatus cascades the status to every item of the order.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	Get(ctx context.Context, id uuid.UUID) (*Order, error)
	UpdateHeader(ctx context.Context, o *Order) error
	ReplaceItems(ctx context.Context, orderID uuid.UUID, items []Item) error
	SumItems(ctx context.Context, orderID uuid.UUID) (decimal.Decimal, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, status Status) error
	SetPaymentStatus(ctx context.Context, orderID uuid.UUID, status PaymentStatus) error
}

// TxRunner executes fn inside a single atomic unit of work. Every repository
// call made within fn joins the same transaction.
type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}
