package order

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront-backend/internal/domain/auth"
	"github.com/xenking/storefront-backend/internal/domain/coupon"
	"github.com/xenking/storefront-backend/internal/domain/product"
)

// --- Mock implementations ---

// passthroughTx runs the unit of work directly; rollback behaviour is
// asserted through the repository mocks instead.
type passthroughTx struct{}

func (passthroughTx) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type mockProductRepo struct {
	byID map[uuid.UUID]product.Product
}

func (m *mockProductRepo) List(_ context.Context) ([]product.Product, error) { return nil, nil }

func (m *mockProductRepo) GetByID(_ context.Context, id uuid.UUID) (*product.Product, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return &p, nil
}

func (m *mockProductRepo) GetByIDs(_ context.Context, ids []uuid.UUID) ([]product.Product, error) {
	out := make([]product.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := m.byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

type mockLedger struct {
	coupons    map[string]*coupon.Coupon
	reserveErr error
	reserved   []string
	released   []string
}

// Lookups are case-insensitive like the real repository; the returned
// coupon carries the stored spelling of the code.
func (m *mockLedger) Lookup(_ context.Context, code string) (*coupon.Coupon, error) {
	c, ok := m.coupons[strings.ToUpper(code)]
	if !ok {
		return nil, coupon.ErrNotFound
	}
	return c, nil
}

func (m *mockLedger) Reserve(_ context.Context, code string, _ decimal.Decimal) (*coupon.Coupon, error) {
	if m.reserveErr != nil {
		return nil, m.reserveErr
	}
	c, ok := m.coupons[strings.ToUpper(code)]
	if !ok {
		return nil, coupon.ErrNotFound
	}
	m.reserved = append(m.reserved, code)
	return c, nil
}

func (m *mockLedger) Release(_ context.Context, code string) error {
	m.released = append(m.released, code)
	return nil
}

type mockOrderRepo struct {
	orders map[uuid.UUID]*Order

	createdCoupons []*string
	statusUpdates  []Status
	headerUpdates  int
}

func newMockOrderRepo() *mockOrderRepo {
	return &mockOrderRepo{orders: make(map[uuid.UUID]*Order)}
}

func (m *mockOrderRepo) Create(_ context.Context, o *Order) error {
	cp := *o
	m.orders[o.ID] = &cp
	m.createdCoupons = append(m.createdCoupons, o.CouponCode)
	return nil
}

func (m *mockOrderRepo) Get(_ context.Context, id uuid.UUID) (*Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *mockOrderRepo) UpdateHeader(_ context.Context, o *Order) error {
	m.headerUpdates++
	cp := *o
	m.orders[o.ID] = &cp
	return nil
}

func (m *mockOrderRepo) ReplaceItems(_ context.Context, orderID uuid.UUID, items []Item) error {
	o, ok := m.orders[orderID]
	if !ok {
		return ErrNotFound
	}
	o.Items = items
	return nil
}

func (m *mockOrderRepo) SumItems(_ context.Context, orderID uuid.UUID) (decimal.Decimal, error) {
	o, ok := m.orders[orderID]
	if !ok {
		return decimal.Zero, ErrNotFound
	}
	sum := decimal.Zero
	for _, it := range o.Items {
		sum = sum.Add(it.TotalPrice())
	}
	return sum, nil
}

func (m *mockOrderRepo) UpdateStatus(_ context.Context, orderID uuid.UUID, status Status) error {
	o, ok := m.orders[orderID]
	if !ok {
		return ErrNotFound
	}
	o.Status = status
	for i := range o.Items {
		o.Items[i].Status = status
	}
	m.statusUpdates = append(m.statusUpdates, status)
	return nil
}

func (m *mockOrderRepo) SetPaymentStatus(_ context.Context, orderID uuid.UUID, status PaymentStatus) error {
	o, ok := m.orders[orderID]
	if !ok {
		return ErrNotFound
	}
	o.PaymentStatus = status
	return nil
}

// --- Helpers ---

var (
	userID  = uuid.New()
	otherID = uuid.New()
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newCatalog(prices ...string) (*mockProductRepo, []uuid.UUID) {
	repo := &mockProductRepo{byID: make(map[uuid.UUID]product.Product)}
	ids := make([]uuid.UUID, len(prices))
	for i, p := range prices {
		id := uuid.New()
		repo.byID[id] = product.Product{ID: id, Name: "Widget", Price: dec(p), Stock: 100}
		ids[i] = id
	}
	return repo, ids
}

func percentCoupon(code string, value string) *coupon.Coupon {
	return &coupon.Coupon{
		Code:         code,
		DiscountType: coupon.DiscountPercent,
		Value:        dec(value),
		Active:       true,
	}
}

// --- Tests ---

func TestCreate_EmptyItems(t *testing.T) {
	products, _ := newCatalog()
	svc := NewService(passthroughTx{}, products, &mockLedger{}, newMockOrderRepo())

	_, err := svc.Create(context.Background(), CreateRequest{UserID: userID})
	require.ErrorIs(t, err, ErrEmptyItems)
}

func TestCreate_InvalidQuantity(t *testing.T) {
	products, ids := newCatalog("10.00")
	svc := NewService(passthroughTx{}, products, &mockLedger{}, newMockOrderRepo())

	_, err := svc.Create(context.Background(), CreateRequest{
		UserID: userID,
		Items:  []ItemInput{{ProductID: ids[0], Quantity: 0}},
	})

	var iqErr *InvalidQuantityError
	require.ErrorAs(t, err, &iqErr)
	assert.Equal(t, ids[0], iqErr.ProductID)
}

func TestCreate_ProductNotFound(t *testing.T) {
	products, _ := newCatalog()
	svc := NewService(passthroughTx{}, products, &mockLedger{}, newMockOrderRepo())

	missing := uuid.New()
	_, err := svc.Create(context.Background(), CreateRequest{
		UserID: userID,
		Items:  []ItemInput{{ProductID: missing, Quantity: 1}},
	})

	var pnfErr *ProductNotFoundError
	require.ErrorAs(t, err, &pnfErr)
	assert.Equal(t, missing, pnfErr.ProductID)
}

func TestCreate_NoCoupon(t *testing.T) {
	products, ids := newCatalog("10.00", "20.00")
	orders := newMockOrderRepo()
	svc := NewService(passthroughTx{}, products, &mockLedger{}, orders)

	o, err := svc.Create(context.Background(), CreateRequest{
		UserID: userID,
		Items: []ItemInput{
			{ProductID: ids[0], Quantity: 2},
			{ProductID: ids[1], Quantity: 1},
		},
	})

	require.NoError(t, err)
	assert.True(t, dec("40.00").Equal(o.TotalAmount), "got %s", o.TotalAmount)
	assert.Equal(t, StatusPending, o.Status)
	assert.Equal(t, PaymentUnpaid, o.PaymentStatus)
	require.Len(t, o.Items, 2)
	assert.True(t, dec("10.00").Equal(o.Items[0].PricePerUnit))
}

func TestCreate_WithCoupon(t *testing.T) {
	products, ids := newCatalog("50.00")
	ledger := &mockLedger{coupons: map[string]*coupon.Coupon{
		"SAVE20": percentCoupon("SAVE20", "20"),
	}}
	svc := NewService(passthroughTx{}, products, ledger, newMockOrderRepo())

	o, err := svc.Create(context.Background(), CreateRequest{
		UserID:     userID,
		Items:      []ItemInput{{ProductID: ids[0], Quantity: 2}},
		CouponCode: "SAVE20",
	})

	require.NoError(t, err)
	assert.True(t, dec("80.00").Equal(o.TotalAmount), "got %s", o.TotalAmount)
	assert.Equal(t, []string{"SAVE20"}, ledger.reserved)
}

func TestCreate_FixedDiscountClampedAtZero(t *testing.T) {
	products, ids := newCatalog("10.00")
	ledger := &mockLedger{coupons: map[string]*coupon.Coupon{
		"BIG": {
			Code:         "BIG",
			DiscountType: coupon.DiscountFixed,
			Value:        dec("50"),
			Active:       true,
		},
	}}
	svc := NewService(passthroughTx{}, products, ledger, newMockOrderRepo())

	o, err := svc.Create(context.Background(), CreateRequest{
		UserID:     userID,
		Items:      []ItemInput{{ProductID: ids[0], Quantity: 1}},
		CouponCode: "BIG",
	})

	require.NoError(t, err)
	assert.True(t, decimal.Zero.Equal(o.TotalAmount), "got %s", o.TotalAmount)
}

func TestCreate_CouponReservationFailurePropagates(t *testing.T) {
	products, ids := newCatalog("10.00")
	ledger := &mockLedger{reserveErr: coupon.ErrUsageLimitReached}
	svc := NewService(passthroughTx{}, products, ledger, newMockOrderRepo())

	_, err := svc.Create(context.Background(), CreateRequest{
		UserID:     userID,
		Items:      []ItemInput{{ProductID: ids[0], Quantity: 1}},
		CouponCode: "LIMITED",
	})

	require.ErrorIs(t, err, coupon.ErrUsageLimitReached)
	assert.Empty(t, ledger.reserved)
}

func TestCreate_UnknownCouponCode(t *testing.T) {
	products, ids := newCatalog("10.00")
	ledger := &mockLedger{coupons: map[string]*coupon.Coupon{}}
	orders := newMockOrderRepo()
	svc := NewService(passthroughTx{}, products, ledger, orders)

	_, err := svc.Create(context.Background(), CreateRequest{
		UserID:     userID,
		Items:      []ItemInput{{ProductID: ids[0], Quantity: 1}},
		CouponCode: "BOGUS",
	})

	require.ErrorIs(t, err, coupon.ErrNotFound)
	// The unvalidated code must never reach the orders table, where the
	// foreign key would turn it into a constraint error instead.
	require.Len(t, orders.createdCoupons, 1)
	assert.Nil(t, orders.createdCoupons[0])
}

func TestCreate_CouponResolvedBeforeHeaderCarriesIt(t *testing.T) {
	products, ids := newCatalog("50.00")
	ledger := &mockLedger{coupons: map[string]*coupon.Coupon{
		"SAVE20": percentCoupon("SAVE20", "20"),
	}}
	orders := newMockOrderRepo()
	svc := NewService(passthroughTx{}, products, ledger, orders)

	o, err := svc.Create(context.Background(), CreateRequest{
		UserID:     userID,
		Items:      []ItemInput{{ProductID: ids[0], Quantity: 2}},
		CouponCode: "save20",
	})

	require.NoError(t, err)
	require.Len(t, orders.createdCoupons, 1)
	assert.Nil(t, orders.createdCoupons[0], "header insert must not carry an unresolved code")

	// The order stores the ledger's spelling of the code, not the caller's.
	require.NotNil(t, o.CouponCode)
	assert.Equal(t, "SAVE20", *o.CouponCode)
	assert.True(t, dec("80.00").Equal(o.TotalAmount), "got %s", o.TotalAmount)
}

func TestUpdate_Forbidden(t *testing.T) {
	products, ids := newCatalog("10.00")
	orders := newMockOrderRepo()
	svc := NewService(passthroughTx{}, products, &mockLedger{}, orders)

	o, err := svc.Create(context.Background(), CreateRequest{
		UserID: userID,
		Items:  []ItemInput{{ProductID: ids[0], Quantity: 1}},
	})
	require.NoError(t, err)

	_, err = svc.Update(context.Background(), o.ID, auth.Identity{UserID: otherID}, UpdateRequest{})
	require.ErrorIs(t, err, ErrForbidden)
}

func TestUpdate_ReplaceItemsRecomputesTotal(t *testing.T) {
	products, ids := newCatalog("10.00", "25.00")
	orders := newMockOrderRepo()
	svc := NewService(passthroughTx{}, products, &mockLedger{}, orders)

	o, err := svc.Create(context.Background(), CreateRequest{
		UserID: userID,
		Items:  []ItemInput{{ProductID: ids[0], Quantity: 1}},
	})
	require.NoError(t, err)

	updated, err := svc.Update(context.Background(), o.ID, auth.Identity{UserID: userID}, UpdateRequest{
		Items: []ItemInput{{ProductID: ids[1], Quantity: 2}},
	})

	require.NoError(t, err)
	assert.True(t, dec("50.00").Equal(updated.TotalAmount), "got %s", updated.TotalAmount)
	require.Len(t, updated.Items, 1)
	assert.Equal(t, ids[1], updated.Items[0].ProductID)
}

func TestUpdate_CouponChangeReleasesOldAndReservesNew(t *testing.T) {
	products, ids := newCatalog("100.00")
	ledger := &mockLedger{coupons: map[string]*coupon.Coupon{
		"OLD10": percentCoupon("OLD10", "10"),
		"NEW20": percentCoupon("NEW20", "20"),
	}}
	orders := newMockOrderRepo()
	svc := NewService(passthroughTx{}, products, ledger, orders)

	o, err := svc.Create(context.Background(), CreateRequest{
		UserID:     userID,
		Items:      []ItemInput{{ProductID: ids[0], Quantity: 1}},
		CouponCode: "OLD10",
	})
	require.NoError(t, err)

	newCode := "NEW20"
	updated, err := svc.Update(context.Background(), o.ID, auth.Identity{UserID: userID}, UpdateRequest{
		CouponCode: &newCode,
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"OLD10"}, ledger.released)
	assert.Equal(t, []string{"OLD10", "NEW20"}, ledger.reserved)
	assert.True(t, dec("80.00").Equal(updated.TotalAmount), "got %s", updated.TotalAmount)
}

func TestUpdate_RemovingCouponReleasesOnlyIt(t *testing.T) {
	products, ids := newCatalog("100.00")
	ledger := &mockLedger{coupons: map[string]*coupon.Coupon{
		"OLD10": percentCoupon("OLD10", "10"),
	}}
	orders := newMockOrderRepo()
	svc := NewService(passthroughTx{}, products, ledger, orders)

	o, err := svc.Create(context.Background(), CreateRequest{
		UserID:     userID,
		Items:      []ItemInput{{ProductID: ids[0], Quantity: 1}},
		CouponCode: "OLD10",
	})
	require.NoError(t, err)

	none := ""
	updated, err := svc.Update(context.Background(), o.ID, auth.Identity{UserID: userID}, UpdateRequest{
		CouponCode: &none,
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"OLD10"}, ledger.released)
	assert.Nil(t, updated.CouponCode)
	assert.True(t, dec("100.00").Equal(updated.TotalAmount), "got %s", updated.TotalAmount)
}

func TestUpdate_UnchangedCouponNotReReserved(t *testing.T) {
	products, ids := newCatalog("100.00", "40.00")
	ledger := &mockLedger{coupons: map[string]*coupon.Coupon{
		"KEEP10": percentCoupon("KEEP10", "10"),
	}}
	orders := newMockOrderRepo()
	svc := NewService(passthroughTx{}, products, ledger, orders)

	o, err := svc.Create(context.Background(), CreateRequest{
		UserID:     userID,
		Items:      []ItemInput{{ProductID: ids[0], Quantity: 1}},
		CouponCode: "KEEP10",
	})
	require.NoError(t, err)

	updated, err := svc.Update(context.Background(), o.ID, auth.Identity{UserID: userID}, UpdateRequest{
		Items: []ItemInput{{ProductID: ids[1], Quantity: 1}},
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"KEEP10"}, ledger.reserved, "reserve must not run twice")
	assert.Empty(t, ledger.released)
	assert.True(t, dec("36.00").Equal(updated.TotalAmount), "got %s", updated.TotalAmount)
}

func TestUpdateStatus_CascadesToItems(t *testing.T) {
	products, ids := newCatalog("10.00", "20.00")
	orders := newMockOrderRepo()
	svc := NewService(passthroughTx{}, products, &mockLedger{}, orders)

	o, err := svc.Create(context.Background(), CreateRequest{
		UserID: userID,
		Items: []ItemInput{
			{ProductID: ids[0], Quantity: 1},
			{ProductID: ids[1], Quantity: 1},
		},
	})
	require.NoError(t, err)

	updated, err := svc.UpdateStatus(context.Background(), o.ID, "DELIVERED")

	require.NoError(t, err)
	assert.Equal(t, StatusDelivered, updated.Status)
	for _, it := range updated.Items {
		assert.Equal(t, StatusDelivered, it.Status)
	}
}

func TestUpdateStatus_InvalidValue(t *testing.T) {
	products, ids := newCatalog("10.00")
	orders := newMockOrderRepo()
	svc := NewService(passthroughTx{}, products, &mockLedger{}, orders)

	o, err := svc.Create(context.Background(), CreateRequest{
		UserID: userID,
		Items:  []ItemInput{{ProductID: ids[0], Quantity: 1}},
	})
	require.NoError(t, err)

	_, err = svc.UpdateStatus(context.Background(), o.ID, "BOGUS")
	require.ErrorIs(t, err, ErrInvalidStatus)

	stored, err := orders.Get(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, stored.Status, "status must be unchanged")
}

func TestUpdateStatus_TerminalStateRejected(t *testing.T) {
	products, ids := newCatalog("10.00")
	orders := newMockOrderRepo()
	svc := NewService(passthroughTx{}, products, &mockLedger{}, orders)

	o, err := svc.Create(context.Background(), CreateRequest{
		UserID: userID,
		Items:  []ItemInput{{ProductID: ids[0], Quantity: 1}},
	})
	require.NoError(t, err)

	_, err = svc.UpdateStatus(context.Background(), o.ID, "DELIVERED")
	require.NoError(t, err)

	_, err = svc.UpdateStatus(context.Background(), o.ID, "SHIPPED")
	require.ErrorIs(t, err, ErrInvalidStatus)
}

func TestUpdateStatus_CancelReleasesCoupon(t *testing.T) {
	products, ids := newCatalog("100.00")
	ledger := &mockLedger{coupons: map[string]*coupon.Coupon{
		"SAVE20": percentCoupon("SAVE20", "20"),
	}}
	orders := newMockOrderRepo()
	svc := NewService(passthroughTx{}, products, ledger, orders)

	o, err := svc.Create(context.Background(), CreateRequest{
		UserID:     userID,
		Items:      []ItemInput{{ProductID: ids[0], Quantity: 1}},
		CouponCode: "SAVE20",
	})
	require.NoError(t, err)

	_, err = svc.UpdateStatus(context.Background(), o.ID, "CANCELLED")

	require.NoError(t, err)
	assert.Equal(t, []string{"SAVE20"}, ledger.released)
}

func TestGet_OwnerAndAdmin(t *testing.T) {
	products, ids := newCatalog("10.00")
	orders := newMockOrderRepo()
	svc := NewService(passthroughTx{}, products, &mockLedger{}, orders)

	o, err := svc.Create(context.Background(), CreateRequest{
		UserID: userID,
		Items:  []ItemInput{{ProductID: ids[0], Quantity: 1}},
	})
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), o.ID, auth.Identity{UserID: userID})
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), o.ID, auth.Identity{UserID: otherID, Admin: true})
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), o.ID, auth.Identity{UserID: otherID})
	require.ErrorIs(t, err, ErrForbidden)
}
