package order

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/xenking/storefront-backend/internal/domain/auth"
	"github.com/xenking/storefront-backend/internal/domain/coupon"
	"github.com/xenking/storefront-backend/internal/domain/pricing"
	"github.com/xenking/storefront-backend/internal/domain/product"
)

// ProductNotFoundError indicates a requested product does not exist.
type ProductNotFoundError struct {
	ProductID uuid.UUID
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

// InvalidQuantityError indicates a line item has a non-positive quantity.
type InvalidQuantityError struct {
	ProductID uuid.UUID
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for product %s", e.ProductID)
}

// ItemInput is a requested order line before pricing.
type ItemInput struct {
	ProductID uuid.UUID
	Quantity  int32
}

// CreateRequest holds the input for creating an order.
type CreateRequest struct {
	UserID            uuid.UUID
	Items             []ItemInput
	ShippingAddressID *uuid.UUID
	CouponCode        string
}

// UpdateRequest holds the input for updating an order. Nil fields are left
// unchanged; a pointer to an empty coupon code removes the coupon.
type UpdateRequest struct {
	Items             []ItemInput
	ShippingAddressID *uuid.UUID
	CouponCode        *string
}

// Service owns the order aggregate: creation, updates, and status
// transitions, coordinating pricing and coupon redemption inside one
// transaction per operation.
type Service struct {
	tx       TxRunner
	products product.Repository
	coupons  coupon.Ledger
	orders   Repository
}

// NewService creates an order Service with the required domain dependencies.
func NewService(tx TxRunner, products product.Repository, coupons coupon.Ledger, orders Repository) *Service {
	return &Service{
		tx:       tx,
		products: products,
		coupons:  coupons,
		orders:   orders,
	}
}

// Create places a new order. Product resolution, item persistence, total
// calculation, and coupon reservation all commit or roll back together, so
// no order can exist without its items or with a stale coupon counter.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Order, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}

	var created *Order
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		items, err := s.priceItems(ctx, req.Items)
		if err != nil {
			return err
		}

		// The header is inserted without a coupon. The code from the request
		// is unvalidated, and the coupon_code foreign key would reject an
		// unknown one as a constraint error before the ledger can answer
		// with ErrNotFound. The reserved coupon's canonical code is written
		// by UpdateHeader below.
		o := &Order{
			ID:                uuid.New(),
			UserID:            req.UserID,
			ShippingAddressID: req.ShippingAddressID,
			Status:            StatusPending,
			PaymentStatus:     PaymentUnpaid,
			Items:             items,
		}

		if err := s.orders.Create(ctx, o); err != nil {
			return errors.Wrap(err, "create order")
		}

		// The stored rows, not the request, are the source of truth for the
		// subtotal.
		subtotal, err := s.orders.SumItems(ctx, o.ID)
		if err != nil {
			return errors.Wrap(err, "sum order items")
		}

		var cpn *coupon.Coupon
		if req.CouponCode != "" {
			cpn, err = s.coupons.Reserve(ctx, req.CouponCode, subtotal)
			if err != nil {
				return err
			}
			o.CouponCode = &cpn.Code
		}

		o.TotalAmount = pricing.Total(subtotal, cpn)
		if err := s.orders.UpdateHeader(ctx, o); err != nil {
			return errors.Wrap(err, "store order total")
		}

		created = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	return created, nil
}

// Update modifies an order's items, shipping address, or coupon. A coupon
// change releases the old reservation and reserves the new code against the
// recomputed subtotal; replaced items are deleted and re-inserted atomically.
func (s *Service) Update(ctx context.Context, orderID uuid.UUID, ident auth.Identity, req UpdateRequest) (*Order, error) {
	var updated *Order
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		o, err := s.orders.Get(ctx, orderID)
		if err != nil {
			return err
		}
		if o.UserID != ident.UserID && !ident.Admin {
			return ErrForbidden
		}

		if req.Items != nil {
			if len(req.Items) == 0 {
				return ErrEmptyItems
			}
			items, err := s.priceItems(ctx, req.Items)
			if err != nil {
				return err
			}
			if err := s.orders.ReplaceItems(ctx, o.ID, items); err != nil {
				return errors.Wrap(err, "replace order items")
			}
			o.Items = items
		}

		subtotal, err := s.orders.SumItems(ctx, o.ID)
		if err != nil {
			return errors.Wrap(err, "sum order items")
		}

		newCode := ""
		if o.CouponCode != nil {
			newCode = *o.CouponCode
		}
		if req.CouponCode != nil {
			newCode = *req.CouponCode
		}

		var cpn *coupon.Coupon
		switch {
		case couponChanged(o.CouponCode, newCode):
			if o.CouponCode != nil {
				if err := s.coupons.Release(ctx, *o.CouponCode); err != nil {
					return err
				}
				o.CouponCode = nil
			}
			if newCode != "" {
				cpn, err = s.coupons.Reserve(ctx, newCode, subtotal)
				if err != nil {
					return err
				}
				o.CouponCode = &cpn.Code
			}
		case o.CouponCode != nil:
			cpn, err = s.coupons.Lookup(ctx, *o.CouponCode)
			if err != nil {
				return errors.Wrap(err, "lookup applied coupon")
			}
		}

		if req.ShippingAddressID != nil {
			o.ShippingAddressID = req.ShippingAddressID
		}

		o.TotalAmount = pricing.Total(subtotal, cpn)
		if err := s.orders.UpdateHeader(ctx, o); err != nil {
			return errors.Wrap(err, "update order")
		}

		updated = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

// UpdateStatus transitions the order's fulfillment status and cascades it to
// every order item. Cancelling an order that consumed a coupon redemption
// returns the redemption to the coupon.
func (s *Service) UpdateStatus(ctx context.Context, orderID uuid.UUID, rawStatus string) (*Order, error) {
	status, err := ParseStatus(rawStatus)
	if err != nil {
		return nil, err
	}

	var updated *Order
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		o, err := s.orders.Get(ctx, orderID)
		if err != nil {
			return err
		}
		if o.Status.Terminal() {
			return errors.Wrapf(ErrInvalidStatus, "order is %s", o.Status)
		}

		if status == StatusCancelled && o.CouponCode != nil {
			if err := s.coupons.Release(ctx, *o.CouponCode); err != nil {
				return err
			}
		}

		if err := s.orders.UpdateStatus(ctx, o.ID, status); err != nil {
			return errors.Wrap(err, "update order status")
		}

		o.Status = status
		for i := range o.Items {
			o.Items[i].Status = status
		}
		updated = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

// Get returns an order visible to the caller: its owner or an admin.
func (s *Service) Get(ctx context.Context, orderID uuid.UUID, ident auth.Identity) (*Order, error) {
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != ident.UserID && !ident.Admin {
		return nil, ErrForbidden
	}
	return o, nil
}

// priceItems resolves products in a single batch and snapshots their prices
// onto new order items.
func (s *Service) priceItems(ctx context.Context, inputs []ItemInput) ([]Item, error) {
	ids := make([]uuid.UUID, len(inputs))
	for i, in := range inputs {
		if in.Quantity <= 0 {
			return nil, &InvalidQuantityError{ProductID: in.ProductID}
		}
		ids[i] = in.ProductID
	}

	fetched, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}

	byID := make(map[uuid.UUID]product.Product, len(fetched))
	for _, p := range fetched {
		byID[p.ID] = p
	}

	items := make([]Item, len(inputs))
	for i, in := range inputs {
		p, ok := byID[in.ProductID]
		if !ok {
			return nil, &ProductNotFoundError{ProductID: in.ProductID}
		}
		items[i] = Item{
			ID:           uuid.New(),
			ProductID:    in.ProductID,
			Quantity:     in.Quantity,
			PricePerUnit: p.Price,
			Status:       StatusPending,
		}
	}
	return items, nil
}

func couponChanged(current *string, next string) bool {
	if current == nil {
		return next != ""
	}
	return *current != next
}
