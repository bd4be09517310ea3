package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DiscountType is FLAT (absolute amount) or PERCENT (share of the cart value).
const (
	DiscountFlat    = "FLAT"
	DiscountPercent = "PERCENT"
)

// Eligibility is the set of independent predicates constraining when a coupon
// applies. Zero values mean "no constraint": an empty list or a zero minimum
// is vacuously satisfied.
type Eligibility struct {
	AllowedUserTiers     []string        `json:"allowed_user_tiers,omitempty"`
	MinLifetimeSpend     decimal.Decimal `json:"min_lifetime_spend"`
	MinOrdersPlaced      int             `json:"min_orders_placed"`
	FirstOrderOnly       bool            `json:"first_order_only"`
	AllowedCountries     []string        `json:"allowed_countries,omitempty"`
	MinCartValue         decimal.Decimal `json:"min_cart_value"`
	ApplicableCategories []string        `json:"applicable_categories,omitempty"`
	ExcludedCategories   []string        `json:"excluded_categories,omitempty"`
	MinItemsCount        int             `json:"min_items_count"`
}

// Coupon is a discount code. Coupons are immutable once created and are
// identified by their case-sensitive code.
type Coupon struct {
	Code              string           `json:"code"`
	Description       string           `json:"description,omitempty"`
	DiscountType      string           `json:"discount_type"`
	DiscountValue     decimal.Decimal  `json:"discount_value"`
	MaxDiscountAmount *decimal.Decimal `json:"max_discount_amount,omitempty"`
	StartDate         time.Time        `json:"start_date"`
	EndDate           time.Time        `json:"end_date"`
	UsageLimitPerUser int              `json:"usage_limit_per_user"`
	Eligibility       Eligibility      `json:"eligibility"`
	CreatedAt         time.Time        `json:"created_at"`
}
