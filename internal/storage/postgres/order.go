package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-backend/internal/domain/order"
)

const (
	insertOrderSQL = `INSERT INTO orders
		(id, user_id, shipping_address_id, coupon_code, total_amount, status, payment_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	insertOrderItemSQL = `INSERT INTO order_items
		(id, order_id, product_id, quantity, price_per_unit, status)
		VALUES ($1, $2, $3, $4, $5, $6)`

	getOrderSQL = `SELECT id, user_id, shipping_address_id, coupon_code, total_amount,
		status, payment_status, created_at, updated_at
		FROM orders WHERE id = $1`

	getOrderItemsSQL = `SELECT id, order_id, product_id, quantity, price_per_unit, status
		FROM order_items WHERE order_id = $1 ORDER BY id`

	updateOrderHeaderSQL = `UPDATE orders SET shipping_address_id = $2, coupon_code = $3,
		total_amount = $4, updated_at = now() WHERE id = $1`

	deleteOrderItemsSQL = `DELETE FROM order_items WHERE order_id = $1`

	sumOrderItemsSQL = `SELECT COALESCE(SUM(price_per_unit * quantity), 0)
		FROM order_items WHERE order_id = $1`

	updateOrderStatusSQL = `UPDATE orders SET status = $2, updated_at = now() WHERE id = $1`

	cascadeItemStatusSQL = `UPDATE order_items SET status = $2 WHERE order_id = $1`

	setPaymentStatusSQL = `UPDATE orders SET payment_status = $2, updated_at = now() WHERE id = $1`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL. All
// mutating methods are meant to run inside a TxManager transaction.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists the order header and its items.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	db := dbFor(ctx, r.pool)

	_, err := db.Exec(ctx, insertOrderSQL,
		o.ID, o.UserID, o.ShippingAddressID, o.CouponCode,
		o.TotalAmount, o.Status, o.PaymentStatus,
	)
	if err != nil {
		return fmt.Errorf("creating order %s: %w", o.ID, err)
	}

	return r.insertItems(ctx, o.ID, o.Items)
}

// Get returns the order with its items. Returns order.ErrNotFound when the
// order does not exist.
func (r *OrderRepository) Get(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	db := dbFor(ctx, r.pool)

	rows, err := db.Query(ctx, getOrderSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %s: %w", id, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %s: %w", id, err)
	}

	itemRows, err := db.Query(ctx, getOrderItemsSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting items for order %s: %w", id, err)
	}
	o.Items, err = pgx.CollectRows(itemRows, scanOrderItem)
	if err != nil {
		return nil, fmt.Errorf("getting items for order %s: %w", id, err)
	}

	return &o, nil
}

// UpdateHeader stores the order's mutable header fields: shipping address,
// coupon code, and the derived total.
func (r *OrderRepository) UpdateHeader(ctx context.Context, o *order.Order) error {
	_, err := dbFor(ctx, r.pool).Exec(ctx, updateOrderHeaderSQL,
		o.ID, o.ShippingAddressID, o.CouponCode, o.TotalAmount,
	)
	if err != nil {
		return fmt.Errorf("updating order %s: %w", o.ID, err)
	}
	return nil
}

// ReplaceItems deletes all items of the order and inserts the new set.
func (r *OrderRepository) ReplaceItems(ctx context.Context, orderID uuid.UUID, items []order.Item) error {
	_, err := dbFor(ctx, r.pool).Exec(ctx, deleteOrderItemsSQL, orderID)
	if err != nil {
		return fmt.Errorf("deleting items for order %s: %w", orderID, err)
	}
	return r.insertItems(ctx, orderID, items)
}

// SumItems returns the subtotal over the persisted order items.
func (r *OrderRepository) SumItems(ctx context.Context, orderID uuid.UUID) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := dbFor(ctx, r.pool).QueryRow(ctx, sumOrderItemsSQL, orderID).Scan(&sum)
	if err != nil {
		return decimal.Zero, fmt.Errorf("summing items for order %s: %w", orderID, err)
	}
	return sum, nil
}

// UpdateStatus sets the order's fulfillment status and cascades it to every
// item of the order.
func (r *OrderRepository) UpdateStatus(ctx context.Context, orderID uuid.UUID, status order.Status) error {
	db := dbFor(ctx, r.pool)

	tag, err := db.Exec(ctx, updateOrderStatusSQL, orderID, status)
	if err != nil {
		return fmt.Errorf("updating status of order %s: %w", orderID, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}

	if _, err := db.Exec(ctx, cascadeItemStatusSQL, orderID, status); err != nil {
		return fmt.Errorf("cascading status to items of order %s: %w", orderID, err)
	}
	return nil
}

// SetPaymentStatus sets the order's payment status.
func (r *OrderRepository) SetPaymentStatus(ctx context.Context, orderID uuid.UUID, status order.PaymentStatus) error {
	tag, err := dbFor(ctx, r.pool).Exec(ctx, setPaymentStatusSQL, orderID, status)
	if err != nil {
		return fmt.Errorf("setting payment status of order %s: %w", orderID, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

func (r *OrderRepository) insertItems(ctx context.Context, orderID uuid.UUID, items []order.Item) error {
	db := dbFor(ctx, r.pool)
	for i := range items {
		items[i].OrderID = orderID
		_, err := db.Exec(ctx, insertOrderItemSQL,
			items[i].ID, orderID, items[i].ProductID,
			items[i].Quantity, items[i].PricePerUnit, items[i].Status,
		)
		if err != nil {
			return fmt.Errorf("creating item for order %s: %w", orderID, err)
		}
	}
	return nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o             order.Order
		status        string
		paymentStatus string
	)
	err := row.Scan(
		&o.ID, &o.UserID, &o.ShippingAddressID, &o.CouponCode, &o.TotalAmount,
		&status, &paymentStatus, &o.CreatedAt, &o.UpdatedAt,
	)
	o.Status = order.Status(status)
	o.PaymentStatus = order.PaymentStatus(paymentStatus)
	return o, err
}

func scanOrderItem(row pgx.CollectableRow) (order.Item, error) {
	var (
		it     order.Item
		status string
	)
	err := row.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &it.PricePerUnit, &status)
	it.Status = order.Status(status)
	return it, err
}
