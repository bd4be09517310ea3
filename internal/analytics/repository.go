package analytics

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// CouponStats aggregates redemption activity for one coupon.
type CouponStats struct {
	CouponCode       string          `json:"coupon_code"`
	TotalRedemptions int             `json:"total_redemptions"`
	UniqueUsers      int             `json:"unique_users"`
	TotalDiscount    decimal.Decimal `json:"total_discount"`
	LastRedeemedAt   *time.Time      `json:"last_redeemed_at,omitempty"`
}

// Repository reads redemption aggregates.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an analytics repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// StatsByCoupon returns aggregate redemption stats for a coupon. A coupon
// with no redemptions yields zero counts, not an error.
func (r *Repository) StatsByCoupon(ctx context.Context, couponCode string) (*CouponStats, error) {
	const q = `SELECT COUNT(*), COUNT(DISTINCT user_id), COALESCE(SUM(discount_applied), 0), MAX(redeemed_at)
		FROM redemptions WHERE coupon_code = $1`
	stats := &CouponStats{CouponCode: couponCode}
	err := r.pool.QueryRow(ctx, q, couponCode).
		Scan(&stats.TotalRedemptions, &stats.UniqueUsers, &stats.TotalDiscount, &stats.LastRedeemedAt)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// TopCoupons returns the redemption leaderboard, most-redeemed first. Ties
// are broken by code so the order is stable.
func (r *Repository) TopCoupons(ctx context.Context, limit int) ([]CouponStats, error) {
	const q = `SELECT coupon_code, COUNT(*), COUNT(DISTINCT user_id), COALESCE(SUM(discount_applied), 0), MAX(redeemed_at)
		FROM redemptions
		GROUP BY coupon_code
		ORDER BY COUNT(*) DESC, coupon_code
		LIMIT $1`
	rows, err := r.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []CouponStats
	for rows.Next() {
		var s CouponStats
		if err := rows.Scan(&s.CouponCode, &s.TotalRedemptions, &s.UniqueUsers, &s.TotalDiscount, &s.LastRedeemedAt); err != nil {
			return nil, err
		}
		list = append(list, s)
	}
	return list, rows.Err()
}
