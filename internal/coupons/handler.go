package coupons

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/promostack/coupon-backend/internal/engine"
	"github.com/promostack/coupon-backend/internal/models"
	"github.com/promostack/coupon-backend/pkg/response"
)

// Store is the coupon persistence surface the handler depends on.
// *Repository implements it; SnapshotCache wraps it.
type Store interface {
	Create(ctx context.Context, c *models.Coupon) error
	GetByCode(ctx context.Context, code string) (*models.Coupon, error)
	Exists(ctx context.Context, code string) (bool, error)
	List(ctx context.Context) ([]models.Coupon, error)
}

// UsageReader supplies per-user redemption counts for evaluation.
type UsageReader interface {
	CountsForUser(ctx context.Context, userID string) (map[string]int, error)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}

// CreateRequest is the body for POST /coupons.
type CreateRequest struct {
	Code              string              `json:"code" binding:"required,max=64"`
	Description       string              `json:"description"`
	DiscountType      string              `json:"discount_type" binding:"required,oneof=FLAT PERCENT"`
	DiscountValue     decimal.Decimal     `json:"discount_value"`
	MaxDiscountAmount *decimal.Decimal    `json:"max_discount_amount"`
	StartDate         string              `json:"start_date" binding:"required"`
	EndDate           string              `json:"end_date" binding:"required"`
	UsageLimitPerUser int                 `json:"usage_limit_per_user" binding:"required,gte=1"`
	Eligibility       *models.Eligibility `json:"eligibility"`
}

// EvaluateRequest is the body for POST /best-coupon. An absent or empty cart
// is valid; it evaluates with a zero cart value.
type EvaluateRequest struct {
	UserProfile            models.UserProfile `json:"user_profile" binding:"required"`
	Cart                   models.Cart        `json:"cart"`
	IncludeUsageProjection bool               `json:"include_usage_projection"`
}

// EvaluateResponse is the body for POST /best-coupon. BestCoupon is null when
// nothing is eligible; the projection fields appear only when requested and a
// winner exists.
type EvaluateResponse struct {
	BestCoupon            *models.Coupon   `json:"best_coupon"`
	ComputedDiscount      *decimal.Decimal `json:"computed_discount,omitempty"`
	ProjectedUsageForUser *int             `json:"projected_usage_for_user,omitempty"`
	UsageLimitPerUser     *int             `json:"usage_limit_per_user,omitempty"`
}

// Handler handles coupon HTTP endpoints.
type Handler struct {
	store  Store
	usage  UsageReader
	logger *zap.Logger
}

// NewHandler creates a coupon handler.
func NewHandler(store Store, usage UsageReader, logger *zap.Logger) *Handler {
	return &Handler{store: store, usage: usage, logger: logger}
}

// Create handles POST /coupons (admin only).
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	if !req.DiscountValue.IsPositive() {
		response.BadRequest(c, "discount_value must be positive")
		return
	}
	if req.MaxDiscountAmount != nil && !req.MaxDiscountAmount.IsPositive() {
		response.BadRequest(c, "max_discount_amount must be positive")
		return
	}

	startDate, err := parseTime(req.StartDate)
	if err != nil {
		response.BadRequest(c, "invalid start_date")
		return
	}
	endDate, err := parseTime(req.EndDate)
	if err != nil {
		response.BadRequest(c, "invalid end_date")
		return
	}
	if !endDate.After(startDate) {
		response.BadRequest(c, "end_date must be after start_date")
		return
	}

	var elig models.Eligibility
	if req.Eligibility != nil {
		elig = *req.Eligibility
	}
	if elig.MinLifetimeSpend.IsNegative() || elig.MinCartValue.IsNegative() {
		response.BadRequest(c, "eligibility minimums must not be negative")
		return
	}
	if elig.MinOrdersPlaced < 0 || elig.MinItemsCount < 0 {
		response.BadRequest(c, "eligibility minimums must not be negative")
		return
	}

	taken, err := h.store.Exists(c.Request.Context(), req.Code)
	if err != nil {
		response.Internal(c, "failed to check coupon code")
		return
	}
	if taken {
		response.Conflict(c, "coupon code already exists")
		return
	}

	coupon := &models.Coupon{
		Code:              req.Code,
		Description:       req.Description,
		DiscountType:      req.DiscountType,
		DiscountValue:     req.DiscountValue,
		MaxDiscountAmount: req.MaxDiscountAmount,
		StartDate:         startDate,
		EndDate:           endDate,
		UsageLimitPerUser: req.UsageLimitPerUser,
		Eligibility:       elig,
	}
	if err := h.store.Create(c.Request.Context(), coupon); err != nil {
		h.logger.Error("coupon create failed", zap.Error(err), zap.String("code", req.Code))
		response.Internal(c, "failed to create coupon")
		return
	}
	response.Created(c, coupon)
}

// List handles GET /coupons. Query ?active=1 returns only coupons whose
// validity window contains the current time.
func (h *Handler) List(c *gin.Context) {
	list, err := h.store.List(c.Request.Context())
	if err != nil {
		response.Internal(c, "failed to list coupons")
		return
	}
	if c.Query("active") == "1" {
		now := time.Now().UTC()
		active := make([]models.Coupon, 0, len(list))
		for _, cp := range list {
			if !now.Before(cp.StartDate) && !now.After(cp.EndDate) {
				active = append(active, cp)
			}
		}
		list = active
	}
	response.OK(c, list)
}

// GetByCode handles GET /coupons/:code.
func (h *Handler) GetByCode(c *gin.Context) {
	coupon, err := h.store.GetByCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "coupon not found")
			return
		}
		response.Internal(c, "failed to load coupon")
		return
	}
	response.OK(c, coupon)
}

// Evaluate handles POST /best-coupon. It loads the coupon snapshot, prefetches
// the caller's usage counts, and runs the selection over them.
func (h *Handler) Evaluate(c *gin.Context) {
	var req EvaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	ctx := c.Request.Context()
	snapshot, err := h.store.List(ctx)
	if err != nil {
		response.Internal(c, "failed to load coupons")
		return
	}
	counts, err := h.usage.CountsForUser(ctx, req.UserProfile.UserID)
	if err != nil {
		response.Internal(c, "failed to load usage counts")
		return
	}

	res, err := engine.Evaluate(engine.Input{
		Coupons: snapshot,
		User:    req.UserProfile,
		Cart:    req.Cart,
		Usage: func(code, userID string) int {
			return counts[code]
		},
		Now:                    time.Now().UTC(),
		IncludeUsageProjection: req.IncludeUsageProjection,
	})
	if err != nil {
		if errors.Is(err, engine.ErrNegativeCartValue) {
			response.BadRequest(c, "cart value must not be negative")
			return
		}
		response.Internal(c, "evaluation failed")
		return
	}

	out := EvaluateResponse{BestCoupon: res.Best}
	if res.Best != nil {
		d := res.Discount
		out.ComputedDiscount = &d
		out.ProjectedUsageForUser = res.ProjectedUsage
		out.UsageLimitPerUser = res.UsageLimit
		h.logger.Debug("best coupon selected",
			zap.String("user_id", req.UserProfile.UserID),
			zap.String("code", res.Best.Code),
			zap.String("discount", res.Discount.String()),
		)
	}
	response.OK(c, out)
}
