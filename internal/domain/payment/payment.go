package payment

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of a payment record.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

var (
	// ErrNotFound is returned when no payment exists for an order.
	ErrNotFound = errors.New("payment not found")
	// ErrAlreadyPaid is returned when the order is already paid or has a
	// succeeded payment.
	ErrAlreadyPaid = errors.New("order already paid")
	// ErrForbidden is returned when the caller may not pay for the order.
	ErrForbidden = errors.New("payment forbidden")
	// ErrProcessing is returned when the external payment provider fails.
	ErrProcessing = errors.New("payment processing error")
	// ErrInvalidSignature is returned when webhook signature verification
	// fails; such payloads are never processed.
	ErrInvalidSignature = errors.New("invalid webhook signature")
	// ErrMissingMetadata is returned when a webhook event lacks the order
	// correlation metadata.
	ErrMissingMetadata = errors.New("missing order metadata")
)

// Payment is the local record of a payment-intent attempt, one per order.
// After creation it is mutated only by the webhook reconciler.
type Payment struct {
	ID        uuid.UUID
	OrderID   uuid.UUID
	IntentID  string
	Amount    decimal.Decimal
	Status    Status
	CreatedAt time.Time
}

// Repository defines persistence operations for payments. Upserts are keyed
// by the unique provider intent id, which makes webhook replays no-ops.
type Repository interface {
	Create(ctx context.Context, p *Payment) error
	GetByOrderID(ctx context.Context, orderID uuid.UUID) (*Payment, error)
	HasSucceeded(ctx context.Context, orderID uuid.UUID) (bool, error)
	UpsertSucceeded(ctx context.Context, p *Payment) error
	MarkFailedByIntentID(ctx context.Context, intentID string) error
}

// Intent is the provider handle for an in-progress charge attempt.
type Intent struct {
	ID           string
	ClientSecret string
}

// IntentRequest is the outbound call to the payment provider. Amount is in
// minor currency units; metadata carries order and user correlation ids.
type IntentRequest struct {
	AmountMinor int64
	Currency    string
	Metadata    map[string]string
}

// Gateway creates payment intents with the external processor.
type Gateway interface {
	CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error)
}

// TxRunner executes fn inside a single atomic unit of work.
type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}
