package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront-backend/internal/domain/coupon"
)

const (
	getCouponSQL = `SELECT code, discount_type, discount_value, valid_from, valid_to,
		min_cart_value, active, usage_limit, used_count
		FROM coupons WHERE UPPER(code) = UPPER($1)`

	// FOR UPDATE serializes concurrent redemptions of the same coupon: the
	// validity check and the counter increment in the ledger happen under
	// one row lock.
	getCouponForUpdateSQL = getCouponSQL + ` FOR UPDATE`

	incrementCouponSQL = `UPDATE coupons SET used_count = used_count + 1 WHERE code = $1`

	decrementCouponSQL = `UPDATE coupons SET used_count = GREATEST(used_count - 1, 0) WHERE code = $1`
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// GetByCode looks up a coupon by its code (case-insensitive).
// Returns coupon.ErrNotFound when no matching coupon exists.
func (r *CouponRepository) GetByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	return r.getByCode(ctx, getCouponSQL, code)
}

// GetByCodeForUpdate looks up a coupon with a row-level lock. Must be called
// inside a transaction for the lock to be meaningful.
func (r *CouponRepository) GetByCodeForUpdate(ctx context.Context, code string) (*coupon.Coupon, error) {
	return r.getByCode(ctx, getCouponForUpdateSQL, code)
}

func (r *CouponRepository) getByCode(ctx context.Context, sql, code string) (*coupon.Coupon, error) {
	rows, err := dbFor(ctx, r.pool).Query(ctx, sql, code)
	if err != nil {
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrNotFound
		}
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}
	return &c, nil
}

// IncrementUsage adds one redemption to the coupon's usage counter. The code
// must be the stored spelling; a silent zero-row update would leave the
// counter behind the orders that consumed it.
func (r *CouponRepository) IncrementUsage(ctx context.Context, code string) error {
	tag, err := dbFor(ctx, r.pool).Exec(ctx, incrementCouponSQL, code)
	if err != nil {
		return fmt.Errorf("incrementing usage for coupon %q: %w", code, err)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrNotFound
	}
	return nil
}

// DecrementUsage returns one redemption, floored at zero in SQL so the
// counter can never go negative.
func (r *CouponRepository) DecrementUsage(ctx context.Context, code string) error {
	_, err := dbFor(ctx, r.pool).Exec(ctx, decrementCouponSQL, code)
	if err != nil {
		return fmt.Errorf("decrementing usage for coupon %q: %w", code, err)
	}
	return nil
}

func scanCoupon(row pgx.CollectableRow) (coupon.Coupon, error) {
	var (
		c            coupon.Coupon
		discountType string
		usageLimit   *int32
	)
	err := row.Scan(
		&c.Code, &discountType, &c.Value, &c.ValidFrom, &c.ValidTo,
		&c.MinCartValue, &c.Active, &usageLimit, &c.UsedCount,
	)
	c.DiscountType = coupon.DiscountType(discountType)
	c.UsageLimit = usageLimit
	return c, err
}
