package payment

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/xenking/storefront-backend/internal/domain/auth"
	"github.com/xenking/storefront-backend/internal/domain/order"
)

// Service creates payment intents and answers payment-status queries.
type Service struct {
	tx       TxRunner
	gateway  Gateway
	payments Repository
	orders   order.Repository
	currency string
}

// NewService creates a payment Service with the required dependencies.
func NewService(tx TxRunner, gateway Gateway, payments Repository, orders order.Repository, currency string) *Service {
	return &Service{
		tx:       tx,
		gateway:  gateway,
		payments: payments,
		orders:   orders,
		currency: currency,
	}
}

// CreateIntent requests a payment intent from the provider for the order's
// total. Only the order's owner may create one; an admin acting on another
// user's order is rejected. The already-paid checks share a transaction
// with the Payment insert, so a webhook landing between the check and the
// write rolls the whole attempt back. A provider failure aborts the
// transaction and leaves no partial Payment row.
func (s *Service) CreateIntent(ctx context.Context, orderID uuid.UUID, ident auth.Identity) (*Intent, error) {
	var intent *Intent
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		o, err := s.orders.Get(ctx, orderID)
		if err != nil {
			return err
		}
		if o.UserID != ident.UserID {
			return ErrForbidden
		}
		if o.PaymentStatus == order.PaymentPaid {
			return ErrAlreadyPaid
		}

		succeeded, err := s.payments.HasSucceeded(ctx, o.ID)
		if err != nil {
			return errors.Wrap(err, "check existing payments")
		}
		if succeeded {
			return ErrAlreadyPaid
		}

		intent, err = s.gateway.CreateIntent(ctx, IntentRequest{
			AmountMinor: o.TotalAmount.Shift(2).IntPart(),
			Currency:    s.currency,
			Metadata: map[string]string{
				"order_id": o.ID.String(),
				"user_id":  o.UserID.String(),
			},
		})
		if err != nil {
			return errors.Wrap(ErrProcessing, err.Error())
		}

		p := &Payment{
			ID:       uuid.New(),
			OrderID:  o.ID,
			IntentID: intent.ID,
			Amount:   o.TotalAmount,
			Status:   StatusPending,
		}
		if err := s.payments.Create(ctx, p); err != nil {
			return errors.Wrap(err, "create payment")
		}
		if err := s.orders.SetPaymentStatus(ctx, o.ID, order.PaymentAwaiting); err != nil {
			return errors.Wrap(err, "set order awaiting payment")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return intent, nil
}

// Status returns the payment record for an order, visible to the order's
// owner or an admin.
func (s *Service) Status(ctx context.Context, orderID uuid.UUID, ident auth.Identity) (*Payment, error) {
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != ident.UserID && !ident.Admin {
		return nil, ErrForbidden
	}
	return s.payments.GetByOrderID(ctx, o.ID)
}
