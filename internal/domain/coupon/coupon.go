package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// DiscountType enumerates the supported coupon discount strategies.
type DiscountType string

const (
	// DiscountPercent applies a percentage-based discount to the subtotal.
	DiscountPercent DiscountType = "percent"
	// DiscountFixed applies a fixed monetary discount capped at the subtotal.
	DiscountFixed DiscountType = "fixed"
)

var (
	// ErrNotFound is returned when no coupon exists for a given code.
	ErrNotFound = errors.New("coupon not found")
	// ErrInvalid is returned when a coupon is inactive or outside its
	// validity window.
	ErrInvalid = errors.New("coupon invalid")
	// ErrUsageLimitReached is returned when a coupon has exhausted its
	// allowed redemptions.
	ErrUsageLimitReached = errors.New("coupon usage limit reached")
	// ErrBelowMinCartValue is returned when the cart subtotal does not meet
	// the coupon's minimum cart value.
	ErrBelowMinCartValue = errors.New("cart below coupon minimum value")
)

// Coupon defines a discount rule together with its redemption bookkeeping.
// UsedCount is mutated only through the Ledger, inside the transaction of
// the order write that triggered it.
type Coupon struct {
	Code         string
	DiscountType DiscountType
	Value        decimal.Decimal
	ValidFrom    time.Time
	ValidTo      time.Time
	MinCartValue decimal.Decimal
	Active       bool
	UsageLimit   *int32 // nil means unlimited
	UsedCount    int32
}

// Repository provides lookup and usage-counter mutation of coupons.
//
// GetByCodeForUpdate must acquire a row-level lock when called inside a
// transaction, so that the check-then-increment sequence in the Ledger is
// safe under concurrent redemptions.
type Repository interface {
	GetByCode(ctx context.Context, code string) (*Coupon, error)
	GetByCodeForUpdate(ctx context.Context, code string) (*Coupon, error)
	IncrementUsage(ctx context.Context, code string) error
	DecrementUsage(ctx context.Context, code string) error
}
