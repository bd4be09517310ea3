package engine

import (
	"github.com/shopspring/decimal"

	"github.com/promostack/coupon-backend/internal/models"
)

var hundred = decimal.NewFromInt(100)

// ComputeDiscount returns the monetary discount the coupon yields on the
// given cart value. FLAT coupons grant their value; PERCENT coupons grant the
// percentage share, capped at MaxDiscountAmount when one is set. Either kind
// is capped at the cart value so the payable amount never goes negative.
// The result is rounded half-up to currency scale exactly once, at the end.
// A 0.00 discount is a valid result.
func ComputeDiscount(c models.Coupon, cartValue decimal.Decimal) decimal.Decimal {
	var d decimal.Decimal
	switch c.DiscountType {
	case models.DiscountFlat:
		d = c.DiscountValue
	case models.DiscountPercent:
		d = cartValue.Mul(c.DiscountValue).Div(hundred)
		if c.MaxDiscountAmount != nil {
			d = decimal.Min(d, *c.MaxDiscountAmount)
		}
	}
	d = decimal.Min(d, cartValue)
	if d.IsNegative() {
		d = decimal.Zero
	}
	return d.Round(2)
}
