package engine

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/promostack/coupon-backend/internal/models"
)

var testNow = time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func baseCoupon(code string) models.Coupon {
	return models.Coupon{
		Code:              code,
		DiscountType:      models.DiscountFlat,
		DiscountValue:     dec("10"),
		StartDate:         testNow.Add(-24 * time.Hour),
		EndDate:           testNow.Add(24 * time.Hour),
		UsageLimitPerUser: 3,
	}
}

func cartOf(items ...models.CartItem) models.Cart {
	return models.Cart{Items: items}
}

func item(category, price string, qty int) models.CartItem {
	return models.CartItem{ProductID: "p-" + category, Category: category, UnitPrice: dec(price), Quantity: qty}
}

func TestEligibleValidityWindow(t *testing.T) {
	c := baseCoupon("WINDOW")
	user := models.UserProfile{UserID: "u1"}
	cart := cartOf(item("BOOKS", "50", 1))

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"before start", c.StartDate.Add(-time.Second), false},
		{"exactly at start", c.StartDate, true},
		{"inside window", testNow, true},
		{"exactly at end", c.EndDate, true},
		{"after end", c.EndDate.Add(time.Second), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Eligible(c, user, cart, 0, tt.now))
		})
	}
}

func TestEligibleUsageLimit(t *testing.T) {
	c := baseCoupon("LIMIT3")
	user := models.UserProfile{UserID: "u1"}
	cart := cartOf(item("BOOKS", "50", 1))

	require.True(t, Eligible(c, user, cart, 0, testNow))
	require.True(t, Eligible(c, user, cart, 2, testNow))
	// Reaching the limit excludes the coupon; the comparison is strict.
	require.False(t, Eligible(c, user, cart, 3, testNow))
	require.False(t, Eligible(c, user, cart, 4, testNow))
}

func TestEligibleTierAndCountry(t *testing.T) {
	c := baseCoupon("TIERED")
	c.Eligibility.AllowedUserTiers = []string{"GOLD", "SILVER"}
	c.Eligibility.AllowedCountries = []string{"US", "CA"}
	cart := cartOf(item("BOOKS", "50", 1))

	tests := []struct {
		name    string
		tier    string
		country string
		want    bool
	}{
		{"member of both", "GOLD", "US", true},
		{"tier matched case-insensitively", "gold", "US", true},
		{"country matched case-insensitively", "SILVER", "ca", true},
		{"tier not allowed", "BRONZE", "US", false},
		{"country not allowed", "GOLD", "DE", false},
		{"empty tier against non-empty rule", "", "US", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user := models.UserProfile{UserID: "u1", UserTier: tt.tier, Country: tt.country}
			require.Equal(t, tt.want, Eligible(c, user, cart, 0, testNow))
		})
	}

	// Empty rule sets impose no constraint at all.
	open := baseCoupon("OPEN")
	require.True(t, Eligible(open, models.UserProfile{UserID: "u1", UserTier: "BRONZE", Country: "DE"}, cart, 0, testNow))
}

func TestEligibleFirstOrderOnly(t *testing.T) {
	c := baseCoupon("WELCOME")
	c.Eligibility.FirstOrderOnly = true
	cart := cartOf(item("BOOKS", "50", 1))

	require.True(t, Eligible(c, models.UserProfile{UserID: "u1", OrdersPlaced: 0}, cart, 0, testNow))
	require.False(t, Eligible(c, models.UserProfile{UserID: "u1", OrdersPlaced: 1}, cart, 0, testNow))
}

func TestEligibleUserMinimums(t *testing.T) {
	c := baseCoupon("LOYAL")
	c.Eligibility.MinOrdersPlaced = 5
	c.Eligibility.MinLifetimeSpend = dec("1000")
	cart := cartOf(item("BOOKS", "50", 1))

	tests := []struct {
		name   string
		orders int
		spend  string
		want   bool
	}{
		{"both above", 6, "1500", true},
		{"both exactly at threshold", 5, "1000", true},
		{"orders below", 4, "1500", false},
		{"spend below", 6, "999.99", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user := models.UserProfile{UserID: "u1", OrdersPlaced: tt.orders, LifetimeSpend: dec(tt.spend)}
			require.Equal(t, tt.want, Eligible(c, user, cart, 0, testNow))
		})
	}
}

func TestEligibleCartThresholds(t *testing.T) {
	c := baseCoupon("BULK")
	c.Eligibility.MinCartValue = dec("100")
	c.Eligibility.MinItemsCount = 3
	user := models.UserProfile{UserID: "u1"}

	require.True(t, Eligible(c, user, cartOf(item("BOOKS", "25", 4)), 0, testNow))   // value 100, items 4
	require.True(t, Eligible(c, user, cartOf(item("BOOKS", "40", 3)), 0, testNow))   // value 120, items 3
	require.False(t, Eligible(c, user, cartOf(item("BOOKS", "33", 3)), 0, testNow))  // value 99
	require.False(t, Eligible(c, user, cartOf(item("BOOKS", "100", 2)), 0, testNow)) // items 2
}

func TestEligibleCategories(t *testing.T) {
	user := models.UserProfile{UserID: "u1"}
	mixed := cartOf(item("BOOKS", "30", 1), item("ELECTRONICS", "200", 1))

	applicable := baseCoupon("TECH")
	applicable.Eligibility.ApplicableCategories = []string{"ELECTRONICS"}
	require.True(t, Eligible(applicable, user, mixed, 0, testNow))
	require.False(t, Eligible(applicable, user, cartOf(item("BOOKS", "30", 1)), 0, testNow))

	// Category matching is case-insensitive, like tiers and countries.
	require.True(t, Eligible(applicable, user, cartOf(item("electronics", "5", 1)), 0, testNow))

	excluded := baseCoupon("NOTECH")
	excluded.Eligibility.ExcludedCategories = []string{"ELECTRONICS"}
	require.False(t, Eligible(excluded, user, mixed, 0, testNow))
	require.True(t, Eligible(excluded, user, cartOf(item("BOOKS", "30", 1)), 0, testNow))
}

func TestEligibleMalformedCoupon(t *testing.T) {
	user := models.UserProfile{UserID: "u1"}
	cart := cartOf(item("BOOKS", "50", 1))

	inverted := baseCoupon("INVERTED")
	inverted.StartDate = testNow.Add(time.Hour)
	inverted.EndDate = testNow.Add(-time.Hour)
	require.False(t, Eligible(inverted, user, cart, 0, testNow))

	// Equal start and end would otherwise slip through the inclusive window.
	collapsed := baseCoupon("COLLAPSED")
	collapsed.StartDate = testNow
	collapsed.EndDate = testNow
	require.False(t, Eligible(collapsed, user, cart, 0, testNow))

	worthless := baseCoupon("WORTHLESS")
	worthless.DiscountValue = decimal.Zero
	require.False(t, Eligible(worthless, user, cart, 0, testNow))

	negative := baseCoupon("NEGATIVE")
	negative.DiscountValue = dec("-5")
	require.False(t, Eligible(negative, user, cart, 0, testNow))
}

func TestEligibleMonotonicUnderCartGrowth(t *testing.T) {
	// With only cart-size constraints configured, growing the cart can never
	// turn an eligible coupon ineligible.
	c := baseCoupon("GROW")
	c.Eligibility.MinCartValue = dec("50")
	c.Eligibility.MinItemsCount = 2
	user := models.UserProfile{UserID: "u1"}

	cart := cartOf(item("BOOKS", "25", 2))
	require.True(t, Eligible(c, user, cart, 0, testNow))

	for i := 0; i < 5; i++ {
		cart.Items = append(cart.Items, item("BOOKS", "25", 1))
		require.True(t, Eligible(c, user, cart, 0, testNow))
	}
}
