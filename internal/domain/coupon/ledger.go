package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Ledger reserves and releases coupon redemptions. Implementations must keep
// the usage counter exact under concurrent order writes.
type Ledger interface {
	Lookup(ctx context.Context, code string) (*Coupon, error)
	Reserve(ctx context.Context, code string, subtotal decimal.Decimal) (*Coupon, error)
	Release(ctx context.Context, code string) error
}

// RepoLedger implements Ledger on top of a Repository. Reserve relies on the
// repository taking a row lock, so the validity check and the counter
// increment happen atomically within the caller's transaction.
type RepoLedger struct {
	repo Repository
	now  func() time.Time
}

// NewRepoLedger creates a RepoLedger backed by the given Repository.
func NewRepoLedger(repo Repository) *RepoLedger {
	return &RepoLedger{repo: repo, now: time.Now}
}

// Lookup fetches a coupon by code without reserving it.
func (l *RepoLedger) Lookup(ctx context.Context, code string) (*Coupon, error) {
	return l.repo.GetByCode(ctx, code)
}

// Reserve validates the coupon against the clock, its usage limit, and the
// cart subtotal, then increments its usage counter. The locked read ensures
// two concurrent reservations of a near-limit coupon cannot both succeed.
func (l *RepoLedger) Reserve(ctx context.Context, code string, subtotal decimal.Decimal) (*Coupon, error) {
	c, err := l.repo.GetByCodeForUpdate(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "lookup coupon")
	}

	now := l.now()
	if !c.Active || now.Before(c.ValidFrom) || now.After(c.ValidTo) {
		return nil, ErrInvalid
	}
	if c.UsageLimit != nil && c.UsedCount >= *c.UsageLimit {
		return nil, ErrUsageLimitReached
	}
	if subtotal.LessThan(c.MinCartValue) {
		return nil, ErrBelowMinCartValue
	}

	// Increment by the stored code, not the caller's. The lookup is
	// case-insensitive, so the two can differ in casing and an increment
	// keyed on the caller's spelling would touch zero rows.
	if err := l.repo.IncrementUsage(ctx, c.Code); err != nil {
		return nil, errors.Wrap(err, "increment coupon usage")
	}
	c.UsedCount++

	return c, nil
}

// Release returns one redemption to the coupon. The counter is floored at
// zero by the repository, so releasing more than was reserved is harmless.
func (l *RepoLedger) Release(ctx context.Context, code string) error {
	c, err := l.repo.GetByCode(ctx, code)
	if err != nil {
		return errors.Wrap(err, "lookup coupon")
	}
	if err := l.repo.DecrementUsage(ctx, c.Code); err != nil {
		return errors.Wrap(err, "decrement coupon usage")
	}
	return nil
}
