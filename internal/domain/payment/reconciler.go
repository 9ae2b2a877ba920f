package payment

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/webhook"
	"go.uber.org/zap"

	"github.com/xenking/storefront-backend/internal/domain/order"
)

// Reconciler consumes signed payment-provider events and transitions
// payment and order state idempotently. Replaying a delivered event leaves
// the final state unchanged.
type Reconciler struct {
	tx       TxRunner
	payments Repository
	orders   order.Repository
	secret   string
	lg       *zap.Logger

	construct func(payload []byte, sigHeader, secret string) (stripe.Event, error)
}

// NewReconciler creates a Reconciler verifying events with the given
// webhook signing secret.
func NewReconciler(tx TxRunner, payments Repository, orders order.Repository, secret string, lg *zap.Logger) *Reconciler {
	return &Reconciler{
		tx:        tx,
		payments:  payments,
		orders:    orders,
		secret:    secret,
		lg:        lg,
		construct: webhook.ConstructEvent,
	}
}

// Process verifies the event signature and dispatches on the event type.
// Verification failure fails closed: nothing is processed. Unhandled event
// types are acknowledged without side effects.
func (r *Reconciler) Process(ctx context.Context, payload []byte, sigHeader string) error {
	event, err := r.construct(payload, sigHeader, r.secret)
	if err != nil {
		return errors.Wrap(ErrInvalidSignature, err.Error())
	}

	switch event.Type {
	case "payment_intent.succeeded":
		return r.applySucceeded(ctx, event)
	case "payment_intent.payment_failed":
		return r.applyFailed(ctx, event)
	default:
		r.lg.Debug("Ignoring webhook event", zap.String("type", string(event.Type)))
		return nil
	}
}

// applySucceeded upserts the payment keyed by intent id and marks the order
// paid. The get-or-create covers the case where the intent was created but
// the local payment write was lost.
func (r *Reconciler) applySucceeded(ctx context.Context, event stripe.Event) error {
	pi, orderID, err := intentFromEvent(event)
	if err != nil {
		return err
	}

	return r.tx.InTx(ctx, func(ctx context.Context) error {
		if _, err := r.orders.Get(ctx, orderID); err != nil {
			if errors.Is(err, order.ErrNotFound) {
				return errors.Wrapf(order.ErrNotFound, "intent %s", pi.ID)
			}
			return err
		}

		p := &Payment{
			ID:       uuid.New(),
			OrderID:  orderID,
			IntentID: pi.ID,
			Amount:   decimal.New(pi.Amount, -2),
			Status:   StatusSucceeded,
		}
		if err := r.payments.UpsertSucceeded(ctx, p); err != nil {
			return errors.Wrap(err, "upsert payment")
		}

		if err := r.orders.SetPaymentStatus(ctx, orderID, order.PaymentPaid); err != nil {
			return errors.Wrap(err, "mark order paid")
		}

		r.lg.Info("Payment succeeded",
			zap.String("order_id", orderID.String()),
			zap.String("intent_id", pi.ID),
		)
		return nil
	})
}

// applyFailed is best-effort: it tolerates a missing payment row and a
// missing order.
func (r *Reconciler) applyFailed(ctx context.Context, event stripe.Event) error {
	pi, orderID, err := intentFromEvent(event)
	if err != nil {
		return err
	}

	return r.tx.InTx(ctx, func(ctx context.Context) error {
		if err := r.payments.MarkFailedByIntentID(ctx, pi.ID); err != nil {
			return errors.Wrap(err, "mark payment failed")
		}

		if err := r.orders.SetPaymentStatus(ctx, orderID, order.PaymentFailed); err != nil {
			if errors.Is(err, order.ErrNotFound) {
				r.lg.Warn("Order missing for failed payment",
					zap.String("order_id", orderID.String()),
					zap.String("intent_id", pi.ID),
				)
				return nil
			}
			return errors.Wrap(err, "mark order payment failed")
		}

		r.lg.Info("Payment failed",
			zap.String("order_id", orderID.String()),
			zap.String("intent_id", pi.ID),
		)
		return nil
	})
}

func intentFromEvent(event stripe.Event) (*stripe.PaymentIntent, uuid.UUID, error) {
	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return nil, uuid.Nil, errors.Wrap(err, "unmarshal payment intent")
	}

	raw, ok := pi.Metadata["order_id"]
	if !ok || raw == "" {
		return nil, uuid.Nil, errors.Wrapf(ErrMissingMetadata, "intent %s", pi.ID)
	}

	orderID, err := uuid.Parse(raw)
	if err != nil {
		return nil, uuid.Nil, errors.Wrapf(ErrMissingMetadata, "intent %s: bad order id %q", pi.ID, raw)
	}

	return &pi, orderID, nil
}
