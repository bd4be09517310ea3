package redemptions

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/promostack/coupon-backend/internal/models"
)

var (
	// ErrCouponNotFound is returned when redeeming a code that does not exist.
	ErrCouponNotFound = errors.New("coupon not found")
	// ErrUsageLimitReached is returned when the user has exhausted the coupon.
	ErrUsageLimitReached = errors.New("usage limit reached")
	// ErrNotFound is returned when a redemption row does not exist.
	ErrNotFound = errors.New("redemption not found")
)

// Repository handles redemption and usage persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a redemptions repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Redeem consumes one use of a coupon for a user. The usage row is locked for
// the duration of the transaction, so concurrent redeems of the same pair
// serialize and the limit cannot be oversubscribed.
func (r *Repository) Redeem(ctx context.Context, couponCode, userID, orderID string, discount decimal.Decimal) (*models.Redemption, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var limit int
	err = tx.QueryRow(ctx, `SELECT usage_limit_per_user FROM coupons WHERE code = $1`, couponCode).Scan(&limit)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrCouponNotFound
	}
	if err != nil {
		return nil, err
	}

	const ensure = `INSERT INTO coupon_usage (coupon_code, user_id, usage_count) VALUES ($1, $2, 0)
		ON CONFLICT (coupon_code, user_id) DO NOTHING`
	if _, err := tx.Exec(ctx, ensure, couponCode, userID); err != nil {
		return nil, err
	}

	var count int
	const lock = `SELECT usage_count FROM coupon_usage WHERE coupon_code = $1 AND user_id = $2 FOR UPDATE`
	if err := tx.QueryRow(ctx, lock, couponCode, userID).Scan(&count); err != nil {
		return nil, err
	}
	if count >= limit {
		return nil, ErrUsageLimitReached
	}

	newCount := count + 1
	const bump = `UPDATE coupon_usage SET usage_count = $1, last_used_at = NOW() WHERE coupon_code = $2 AND user_id = $3`
	if _, err := tx.Exec(ctx, bump, newCount, couponCode, userID); err != nil {
		return nil, err
	}

	red := &models.Redemption{
		CouponCode:      couponCode,
		UserID:          userID,
		OrderID:         orderID,
		DiscountApplied: discount,
		UsageAfter:      newCount,
		Status:          models.RedemptionStatusPending,
	}
	const insert = `INSERT INTO redemptions (coupon_code, user_id, order_id, discount_applied, usage_after, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, redeemed_at`
	if err := tx.QueryRow(ctx, insert, couponCode, userID, orderID, discount, newCount, red.Status).Scan(&red.ID, &red.RedeemedAt); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return red, nil
}

// CountsForUser returns the user's usage count per coupon code.
func (r *Repository) CountsForUser(ctx context.Context, userID string) (map[string]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT coupon_code, usage_count FROM coupon_usage WHERE user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var code string
		var count int
		if err := rows.Scan(&code, &count); err != nil {
			return nil, err
		}
		counts[code] = count
	}
	return counts, rows.Err()
}

// GetByID returns a redemption by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Redemption, error) {
	const q = `SELECT id, coupon_code, user_id, order_id, discount_applied, usage_after, status, archive_key, archive_url, redeemed_at, archived_at
		FROM redemptions WHERE id = $1`
	var red models.Redemption
	err := r.pool.QueryRow(ctx, q, id).Scan(&red.ID, &red.CouponCode, &red.UserID, &red.OrderID, &red.DiscountApplied,
		&red.UsageAfter, &red.Status, &red.ArchiveKey, &red.ArchiveURL, &red.RedeemedAt, &red.ArchivedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &red, nil
}

// ListByCoupon returns the most recent redemptions for a coupon.
func (r *Repository) ListByCoupon(ctx context.Context, couponCode string, limit int) ([]models.Redemption, error) {
	const q = `SELECT id, coupon_code, user_id, order_id, discount_applied, usage_after, status, archive_key, archive_url, redeemed_at, archived_at
		FROM redemptions WHERE coupon_code = $1 ORDER BY redeemed_at DESC LIMIT $2`
	rows, err := r.pool.Query(ctx, q, couponCode, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Redemption
	for rows.Next() {
		var red models.Redemption
		if err := rows.Scan(&red.ID, &red.CouponCode, &red.UserID, &red.OrderID, &red.DiscountApplied,
			&red.UsageAfter, &red.Status, &red.ArchiveKey, &red.ArchiveURL, &red.RedeemedAt, &red.ArchivedAt); err != nil {
			return nil, err
		}
		list = append(list, red)
	}
	return list, rows.Err()
}

// UpdateArchiveResult sets the S3 location and marks the redemption archived.
func (r *Repository) UpdateArchiveResult(ctx context.Context, id uuid.UUID, key, url string) error {
	const q = `UPDATE redemptions SET archive_key = $1, archive_url = $2, status = $3, archived_at = NOW() WHERE id = $4`
	_, err := r.pool.Exec(ctx, q, key, url, models.RedemptionStatusArchived, id)
	return err
}

// MarkArchiveFailed marks the redemption's archival as failed after retries.
func (r *Repository) MarkArchiveFailed(ctx context.Context, id uuid.UUID) error {
	const q = `UPDATE redemptions SET status = $1 WHERE id = $2`
	_, err := r.pool.Exec(ctx, q, models.RedemptionStatusFailed, id)
	return err
}
