package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/xenking/storefront-backend/internal/domain/coupon"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestSubtotal(t *testing.T) {
	tests := []struct {
		name  string
		items []Item
		want  decimal.Decimal
	}{
		{
			name: "single line",
			items: []Item{
				{UnitPrice: dec("6.50"), Quantity: 2},
			},
			want: dec("13.00"),
		},
		{
			name: "multiple lines",
			items: []Item{
				{UnitPrice: dec("10.00"), Quantity: 2},
				{UnitPrice: dec("20.00"), Quantity: 1},
			},
			want: dec("40.00"),
		},
		{
			name: "no drift on cents",
			items: []Item{
				{UnitPrice: dec("0.10"), Quantity: 3},
			},
			want: dec("0.30"),
		},
		{
			name: "empty cart",
			want: decimal.Zero,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Subtotal(tt.items)
			assert.True(t, tt.want.Equal(got), "want %s, got %s", tt.want, got)
		})
	}
}

func TestTotal(t *testing.T) {
	tests := []struct {
		name     string
		subtotal decimal.Decimal
		coupon   *coupon.Coupon
		want     decimal.Decimal
	}{
		{
			name:     "no coupon",
			subtotal: dec("40.00"),
			want:     dec("40.00"),
		},
		{
			name:     "percent discount",
			subtotal: dec("100"),
			coupon: &coupon.Coupon{
				DiscountType: coupon.DiscountPercent,
				Value:        dec("20"),
			},
			want: dec("80.00"),
		},
		{
			name:     "fixed discount",
			subtotal: dec("40.00"),
			coupon: &coupon.Coupon{
				DiscountType: coupon.DiscountFixed,
				Value:        dec("5"),
			},
			want: dec("35.00"),
		},
		{
			name:     "fixed discount larger than subtotal clamps to zero",
			subtotal: dec("10"),
			coupon: &coupon.Coupon{
				DiscountType: coupon.DiscountFixed,
				Value:        dec("50"),
			},
			want: decimal.Zero,
		},
		{
			name:     "full percent discount",
			subtotal: dec("33.33"),
			coupon: &coupon.Coupon{
				DiscountType: coupon.DiscountPercent,
				Value:        dec("100"),
			},
			want: decimal.Zero,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Total(tt.subtotal, tt.coupon)
			assert.True(t, tt.want.Equal(got), "want %s, got %s", tt.want, got)
		})
	}
}

func TestDiscount_NilCoupon(t *testing.T) {
	assert.True(t, decimal.Zero.Equal(Discount(dec("100"), nil)))
}
