package coupons

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/promostack/coupon-backend/internal/models"
)

// ErrNotFound is returned when a coupon code does not exist.
var ErrNotFound = errors.New("coupon not found")

// Repository handles coupon persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a coupon repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a new coupon. The eligibility rules are stored as JSONB.
func (r *Repository) Create(ctx context.Context, c *models.Coupon) error {
	const q = `INSERT INTO coupons (code, description, discount_type, discount_value, max_discount_amount, start_date, end_date, usage_limit_per_user, eligibility)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at`
	return r.pool.QueryRow(ctx, q, c.Code, c.Description, c.DiscountType, c.DiscountValue, c.MaxDiscountAmount,
		c.StartDate, c.EndDate, c.UsageLimitPerUser, c.Eligibility).Scan(&c.CreatedAt)
}

// GetByCode returns a coupon by its code.
func (r *Repository) GetByCode(ctx context.Context, code string) (*models.Coupon, error) {
	const q = `SELECT code, description, discount_type, discount_value, max_discount_amount, start_date, end_date, usage_limit_per_user, eligibility, created_at
		FROM coupons WHERE code = $1`
	var c models.Coupon
	err := r.pool.QueryRow(ctx, q, code).Scan(&c.Code, &c.Description, &c.DiscountType, &c.DiscountValue, &c.MaxDiscountAmount,
		&c.StartDate, &c.EndDate, &c.UsageLimitPerUser, &c.Eligibility, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// Exists reports whether a coupon code is already taken.
func (r *Repository) Exists(ctx context.Context, code string) (bool, error) {
	const q = `SELECT 1 FROM coupons WHERE code = $1`
	var one int
	err := r.pool.QueryRow(ctx, q, code).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// List returns all coupons ordered by code.
func (r *Repository) List(ctx context.Context) ([]models.Coupon, error) {
	const q = `SELECT code, description, discount_type, discount_value, max_discount_amount, start_date, end_date, usage_limit_per_user, eligibility, created_at
		FROM coupons ORDER BY code`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Coupon
	for rows.Next() {
		var c models.Coupon
		if err := rows.Scan(&c.Code, &c.Description, &c.DiscountType, &c.DiscountValue, &c.MaxDiscountAmount,
			&c.StartDate, &c.EndDate, &c.UsageLimitPerUser, &c.Eligibility, &c.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, c)
	}
	return list, rows.Err()
}
