package analytics

import (
	"context"
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/promostack/coupon-backend/internal/coupons"
	"github.com/promostack/coupon-backend/internal/models"
	"github.com/promostack/coupon-backend/pkg/response"
)

const (
	defaultTopLimit = 10
	maxTopLimit     = 100
)

// StatsSource reads redemption aggregates. *Repository implements it.
type StatsSource interface {
	StatsByCoupon(ctx context.Context, couponCode string) (*CouponStats, error)
	TopCoupons(ctx context.Context, limit int) ([]CouponStats, error)
}

// CouponGetter resolves coupon codes so stats for unknown codes 404 instead
// of returning empty aggregates.
type CouponGetter interface {
	GetByCode(ctx context.Context, code string) (*models.Coupon, error)
}

// WatcherCounter reports connected live-feed clients per coupon.
// *realtime.Hub implements it; nil means no live feed is running.
type WatcherCounter interface {
	WatcherCount(couponCode string) int
}

// StatsResponse is CouponStats plus the live watcher count.
type StatsResponse struct {
	CouponStats
	LiveWatchers int `json:"live_watchers"`
}

// Handler handles analytics HTTP endpoints.
type Handler struct {
	stats      StatsSource
	couponRepo CouponGetter
	watchers   WatcherCounter
}

// NewHandler creates an analytics handler. watchers may be nil.
func NewHandler(stats StatsSource, couponRepo CouponGetter, watchers WatcherCounter) *Handler {
	return &Handler{stats: stats, couponRepo: couponRepo, watchers: watchers}
}

// GetByCoupon handles GET /coupons/:code/stats (admin only).
func (h *Handler) GetByCoupon(c *gin.Context) {
	code := c.Param("code")
	ctx := c.Request.Context()

	if _, err := h.couponRepo.GetByCode(ctx, code); err != nil {
		if errors.Is(err, coupons.ErrNotFound) {
			response.NotFound(c, "coupon not found")
			return
		}
		response.Internal(c, "failed to load coupon")
		return
	}

	stats, err := h.stats.StatsByCoupon(ctx, code)
	if err != nil {
		response.Internal(c, "failed to load coupon stats")
		return
	}

	out := StatsResponse{CouponStats: *stats}
	if h.watchers != nil {
		out.LiveWatchers = h.watchers.WatcherCount(code)
	}
	response.OK(c, out)
}

// TopCoupons handles GET /analytics/top-coupons (admin only). Query ?limit=
// caps the leaderboard size.
func (h *Handler) TopCoupons(c *gin.Context) {
	limit := defaultTopLimit
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			response.BadRequest(c, "invalid limit")
			return
		}
		if n > maxTopLimit {
			n = maxTopLimit
		}
		limit = n
	}

	list, err := h.stats.TopCoupons(c.Request.Context(), limit)
	if err != nil {
		response.Internal(c, "failed to load top coupons")
		return
	}
	response.OK(c, list)
}
