package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront-backend/internal/domain/payment"
)

const (
	// One payment row per order. A retry after a failed or abandoned
	// attempt replaces the stale row with the fresh intent; a succeeded
	// row is never overwritten, the service checks for one first.
	insertPaymentSQL = `INSERT INTO payments (id, order_id, stripe_payment_intent_id, amount, status)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (order_id) DO UPDATE
		SET stripe_payment_intent_id = EXCLUDED.stripe_payment_intent_id,
			amount = EXCLUDED.amount,
			status = EXCLUDED.status,
			created_at = now()
		WHERE payments.status <> 'succeeded'`

	getPaymentByOrderSQL = `SELECT id, order_id, stripe_payment_intent_id, amount, status, created_at
		FROM payments WHERE order_id = $1`

	hasSucceededPaymentSQL = `SELECT EXISTS (
		SELECT 1 FROM payments WHERE order_id = $1 AND status = 'succeeded')`

	// The unique index on stripe_payment_intent_id makes replayed webhook
	// deliveries converge on the same row.
	upsertSucceededSQL = `INSERT INTO payments (id, order_id, stripe_payment_intent_id, amount, status)
		VALUES ($1, $2, $3, $4, 'succeeded')
		ON CONFLICT (stripe_payment_intent_id) DO UPDATE SET status = 'succeeded'`

	markFailedSQL = `UPDATE payments SET status = 'failed' WHERE stripe_payment_intent_id = $1`
)

var _ payment.Repository = (*PaymentRepository)(nil)

// PaymentRepository implements payment.Repository backed by PostgreSQL.
type PaymentRepository struct {
	pool *pgxpool.Pool
}

// NewPaymentRepository returns a PaymentRepository that uses the given pool.
func NewPaymentRepository(pool *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{pool: pool}
}

// Create persists the payment record for an order, replacing a stale
// failed or pending attempt from an earlier try.
func (r *PaymentRepository) Create(ctx context.Context, p *payment.Payment) error {
	_, err := dbFor(ctx, r.pool).Exec(ctx, insertPaymentSQL,
		p.ID, p.OrderID, p.IntentID, p.Amount, p.Status,
	)
	if err != nil {
		return fmt.Errorf("creating payment for order %s: %w", p.OrderID, err)
	}
	return nil
}

// GetByOrderID returns the payment for an order. Returns payment.ErrNotFound
// when none exists.
func (r *PaymentRepository) GetByOrderID(ctx context.Context, orderID uuid.UUID) (*payment.Payment, error) {
	rows, err := dbFor(ctx, r.pool).Query(ctx, getPaymentByOrderSQL, orderID)
	if err != nil {
		return nil, fmt.Errorf("getting payment for order %s: %w", orderID, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanPayment)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, payment.ErrNotFound
		}
		return nil, fmt.Errorf("getting payment for order %s: %w", orderID, err)
	}
	return &p, nil
}

// HasSucceeded reports whether the order already has a succeeded payment.
func (r *PaymentRepository) HasSucceeded(ctx context.Context, orderID uuid.UUID) (bool, error) {
	var exists bool
	err := dbFor(ctx, r.pool).QueryRow(ctx, hasSucceededPaymentSQL, orderID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking payments for order %s: %w", orderID, err)
	}
	return exists, nil
}

// UpsertSucceeded inserts the payment or, if the intent id is already known,
// forces the existing row to succeeded. Idempotent under replay.
func (r *PaymentRepository) UpsertSucceeded(ctx context.Context, p *payment.Payment) error {
	_, err := dbFor(ctx, r.pool).Exec(ctx, upsertSucceededSQL,
		p.ID, p.OrderID, p.IntentID, p.Amount,
	)
	if err != nil {
		return fmt.Errorf("upserting payment for intent %s: %w", p.IntentID, err)
	}
	return nil
}

// MarkFailedByIntentID marks the payment failed. A missing row is not an
// error; the failed branch of reconciliation is best-effort.
func (r *PaymentRepository) MarkFailedByIntentID(ctx context.Context, intentID string) error {
	_, err := dbFor(ctx, r.pool).Exec(ctx, markFailedSQL, intentID)
	if err != nil {
		return fmt.Errorf("marking payment failed for intent %s: %w", intentID, err)
	}
	return nil
}

func scanPayment(row pgx.CollectableRow) (payment.Payment, error) {
	var (
		p      payment.Payment
		status string
	)
	err := row.Scan(&p.ID, &p.OrderID, &p.IntentID, &p.Amount, &status, &p.CreatedAt)
	p.Status = payment.Status(status)
	return p, err
}
