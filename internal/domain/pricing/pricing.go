// Package pricing computes cart totals with exact decimal arithmetic.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-backend/internal/domain/coupon"
)

var hundred = decimal.NewFromInt(100)

// Item is a priced cart line for total calculation.
type Item struct {
	UnitPrice decimal.Decimal
	Quantity  int32
}

// Subtotal returns the sum of unit price times quantity across all items.
func Subtotal(items []Item) decimal.Decimal {
	sum := decimal.Zero
	for _, item := range items {
		line := item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
		sum = sum.Add(line)
	}
	return sum
}

// Discount returns the discount amount a coupon grants on the given subtotal.
// A nil coupon grants nothing.
func Discount(subtotal decimal.Decimal, c *coupon.Coupon) decimal.Decimal {
	if c == nil {
		return decimal.Zero
	}

	switch c.DiscountType {
	case coupon.DiscountPercent:
		return subtotal.Mul(c.Value).Div(hundred).Round(2)
	case coupon.DiscountFixed:
		return c.Value.Round(2)
	default:
		return decimal.Zero
	}
}

// Total returns the order total: subtotal minus the coupon discount, floored
// at zero and rounded to 2 decimal places.
func Total(subtotal decimal.Decimal, c *coupon.Coupon) decimal.Decimal {
	total := subtotal.Sub(Discount(subtotal, c))
	if total.IsNegative() {
		total = decimal.Zero
	}
	return total.Round(2)
}
