package engine

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/promostack/coupon-backend/internal/models"
)

func flat(value string) models.Coupon {
	c := baseCoupon("FLAT")
	c.DiscountType = models.DiscountFlat
	c.DiscountValue = dec(value)
	return c
}

func percent(value string, cap *decimal.Decimal) models.Coupon {
	c := baseCoupon("PCT")
	c.DiscountType = models.DiscountPercent
	c.DiscountValue = dec(value)
	c.MaxDiscountAmount = cap
	return c
}

func capOf(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func TestComputeDiscountFlat(t *testing.T) {
	tests := []struct {
		name      string
		value     string
		cartValue string
		want      string
	}{
		{"plain", "10", "200", "10.00"},
		{"capped at cart value", "50", "30", "30.00"},
		{"equal to cart value", "30", "30", "30.00"},
		{"zero cart", "10", "0", "0.00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeDiscount(flat(tt.value), dec(tt.cartValue))
			require.True(t, got.Equal(dec(tt.want)), "got %s want %s", got, tt.want)
			require.Equal(t, tt.want, got.StringFixed(2))
		})
	}
}

func TestComputeDiscountPercent(t *testing.T) {
	tests := []struct {
		name      string
		value     string
		cap       *decimal.Decimal
		cartValue string
		want      string
	}{
		{"plain", "25", nil, "200", "50.00"},
		{"capped by max amount", "25", capOf("40"), "200", "40.00"},
		{"cap not reached", "25", capOf("40"), "100", "25.00"},
		{"capped at cart value", "100", nil, "80", "80.00"},
		{"over one hundred percent", "150", nil, "80", "80.00"},
		{"zero cart", "25", nil, "0", "0.00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeDiscount(percent(tt.value, tt.cap), dec(tt.cartValue))
			require.True(t, got.Equal(dec(tt.want)), "got %s want %s", got, tt.want)
			require.Equal(t, tt.want, got.StringFixed(2))
		})
	}
}

func TestComputeDiscountRoundsHalfUpOnce(t *testing.T) {
	// 12.5% of 21.40 is exactly 2.675; half-up gives 2.68. Binary floats
	// land on 2.67 here, which is why the engine stays in decimal.
	got := ComputeDiscount(percent("12.5", nil), dec("21.40"))
	require.Equal(t, "2.68", got.StringFixed(2))

	// The cap applies before rounding, never after.
	got = ComputeDiscount(percent("12.5", capOf("2.675")), dec("21.40"))
	require.Equal(t, "2.68", got.StringFixed(2))

	got = ComputeDiscount(percent("12.5", capOf("2.67")), dec("21.40"))
	require.Equal(t, "2.67", got.StringFixed(2))
}

func TestComputeDiscountAlwaysTwoDecimals(t *testing.T) {
	got := ComputeDiscount(flat("10"), dec("200"))
	require.Equal(t, "10.00", got.String())

	got = ComputeDiscount(percent("20", nil), dec("200"))
	require.Equal(t, "40.00", got.String())

	got = ComputeDiscount(percent("33.333", nil), dec("9.99"))
	require.Equal(t, "3.33", got.String())
}
