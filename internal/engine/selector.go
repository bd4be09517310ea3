package engine

import (
	"github.com/shopspring/decimal"

	"github.com/promostack/coupon-backend/internal/models"
)

// SelectBest returns the winning coupon among the eligible set and its
// computed discount, or nil when the set is empty. The winner is the maximum
// under a strict total order: higher discount first, then earlier end date
// (soonest-expiring preferred), then lexicographically smaller code. Codes
// are unique, so the order is total and the winner unique.
func SelectBest(eligible []models.Coupon, cartValue decimal.Decimal) (*models.Coupon, decimal.Decimal) {
	var best *models.Coupon
	bestDiscount := decimal.Zero
	for i := range eligible {
		c := &eligible[i]
		d := ComputeDiscount(*c, cartValue)
		if best == nil || ranksAbove(c, d, best, bestDiscount) {
			best, bestDiscount = c, d
		}
	}
	return best, bestDiscount
}

// ranksAbove reports whether coupon a with discount da beats coupon b with
// discount db. Byte-wise code comparison keeps the final tie-break
// case-sensitive.
func ranksAbove(a *models.Coupon, da decimal.Decimal, b *models.Coupon, db decimal.Decimal) bool {
	if !da.Equal(db) {
		return da.GreaterThan(db)
	}
	if !a.EndDate.Equal(b.EndDate) {
		return a.EndDate.Before(b.EndDate)
	}
	return a.Code < b.Code
}
