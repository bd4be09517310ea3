package engine

import (
	"strings"
	"time"

	"github.com/promostack/coupon-backend/internal/models"
)

// Eligible reports whether the coupon may be applied at all for this user,
// cart and prior usage count at instant now. Every configured rule must hold;
// rules left at their zero value are vacuously satisfied. Tier, country and
// category matching is case-insensitive; coupon codes are not compared here
// and stay case-sensitive.
//
// Coupons that should never have reached the engine (endDate not after
// startDate, non-positive discountValue) are reported ineligible instead of
// failing the evaluation, so one malformed row cannot block the rest.
func Eligible(c models.Coupon, user models.UserProfile, cart models.Cart, usageCount int, now time.Time) bool {
	if !c.EndDate.After(c.StartDate) || !c.DiscountValue.IsPositive() {
		return false
	}
	if now.Before(c.StartDate) || now.After(c.EndDate) {
		return false
	}
	if usageCount >= c.UsageLimitPerUser {
		return false
	}

	e := c.Eligibility
	if len(e.AllowedUserTiers) > 0 && !containsFold(e.AllowedUserTiers, user.UserTier) {
		return false
	}
	if len(e.AllowedCountries) > 0 && !containsFold(e.AllowedCountries, user.Country) {
		return false
	}
	if e.FirstOrderOnly && user.OrdersPlaced != 0 {
		return false
	}
	if user.OrdersPlaced < e.MinOrdersPlaced {
		return false
	}
	if user.LifetimeSpend.LessThan(e.MinLifetimeSpend) {
		return false
	}
	if cart.TotalValue().LessThan(e.MinCartValue) {
		return false
	}
	if cart.TotalItems() < e.MinItemsCount {
		return false
	}

	cats := cart.Categories()
	if len(e.ApplicableCategories) > 0 && !intersectsFold(e.ApplicableCategories, cats) {
		return false
	}
	if len(e.ExcludedCategories) > 0 && intersectsFold(e.ExcludedCategories, cats) {
		return false
	}
	return true
}

func containsFold(set []string, v string) bool {
	for _, s := range set {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}

func intersectsFold(set, values []string) bool {
	for _, v := range values {
		if containsFold(set, v) {
			return true
		}
	}
	return false
}
