package redemptions

import (
	"context"
	"errors"
	"io"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/promostack/coupon-backend/internal/middleware"
	"github.com/promostack/coupon-backend/internal/models"
	"github.com/promostack/coupon-backend/internal/realtime"
	"github.com/promostack/coupon-backend/pkg/queue"
	"github.com/promostack/coupon-backend/pkg/response"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// Store is the redemption persistence surface the handler depends on.
// *Repository implements it.
type Store interface {
	Redeem(ctx context.Context, couponCode, userID, orderID string, discount decimal.Decimal) (*models.Redemption, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Redemption, error)
	ListByCoupon(ctx context.Context, couponCode string, limit int) ([]models.Redemption, error)
}

// Archive issues pre-signed URLs for archived redemption objects.
// *storage.S3 implements it; nil means archive storage is not configured.
type Archive interface {
	GeneratePresignedDownloadURL(ctx context.Context, key string, expires time.Duration) (string, error)
	PresignExpire() time.Duration
}

// RedeemRequest is the body for POST /coupons/:code/redeem. All fields are
// optional: user_id falls back to the authenticated user.
type RedeemRequest struct {
	UserID          string           `json:"user_id"`
	OrderID         string           `json:"order_id"`
	DiscountApplied *decimal.Decimal `json:"discount_applied"`
}

// Handler handles redemption HTTP endpoints.
type Handler struct {
	store   Store
	archive Archive
	queue   *queue.Queue
	hub     *realtime.Hub
	logger  *zap.Logger
}

// NewHandler creates a redemptions handler. archive, q and hub may be nil,
// which disables archival and the live feed respectively.
func NewHandler(store Store, archive Archive, q *queue.Queue, hub *realtime.Hub, logger *zap.Logger) *Handler {
	return &Handler{store: store, archive: archive, queue: q, hub: hub, logger: logger}
}

// Redeem handles POST /coupons/:code/redeem.
func (h *Handler) Redeem(c *gin.Context) {
	var req RedeemRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	userID := req.UserID
	if userID == "" {
		if v, ok := c.Get(middleware.ContextUserID); ok {
			if id, ok := v.(uuid.UUID); ok {
				userID = id.String()
			}
		}
	}
	if userID == "" {
		response.BadRequest(c, "user_id required")
		return
	}

	discount := decimal.Zero
	if req.DiscountApplied != nil {
		if req.DiscountApplied.IsNegative() {
			response.BadRequest(c, "discount_applied must not be negative")
			return
		}
		discount = *req.DiscountApplied
	}

	code := c.Param("code")
	red, err := h.store.Redeem(c.Request.Context(), code, userID, req.OrderID, discount)
	if err != nil {
		switch {
		case errors.Is(err, ErrCouponNotFound):
			response.NotFound(c, "coupon not found")
		case errors.Is(err, ErrUsageLimitReached):
			response.TooManyRequests(c, "usage limit reached for this coupon")
		default:
			h.logger.Error("redeem failed", zap.Error(err), zap.String("code", code), zap.String("user_id", userID))
			response.Internal(c, "failed to redeem coupon")
		}
		return
	}

	if h.queue != nil {
		payload := queue.RedemptionArchivePayload{RedemptionID: red.ID, CouponCode: red.CouponCode}
		if err := h.queue.EnqueueRedemptionArchive(c.Request.Context(), payload); err != nil {
			h.logger.Warn("archive enqueue failed", zap.Error(err), zap.String("redemption_id", red.ID.String()))
		}
	}
	if h.hub != nil {
		h.hub.BroadcastToCouponAndPublish(red.CouponCode, "redemption", red)
	}

	response.Created(c, red)
}

// List handles GET /coupons/:code/redemptions (admin only). Query ?limit=
// caps the page size.
func (h *Handler) List(c *gin.Context) {
	limit := defaultListLimit
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			response.BadRequest(c, "invalid limit")
			return
		}
		if n > maxListLimit {
			n = maxListLimit
		}
		limit = n
	}

	list, err := h.store.ListByCoupon(c.Request.Context(), c.Param("code"), limit)
	if err != nil {
		response.Internal(c, "failed to list redemptions")
		return
	}
	response.OK(c, list)
}

// ArchiveURL handles GET /redemptions/:id/archive-url (admin only). Returns a
// pre-signed download URL for the archived redemption record.
func (h *Handler) ArchiveURL(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid redemption id")
		return
	}

	red, err := h.store.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "redemption not found")
			return
		}
		response.Internal(c, "failed to load redemption")
		return
	}

	if h.archive == nil {
		response.ServiceUnavailable(c, "archive storage not configured")
		return
	}
	if red.ArchiveKey == "" {
		response.NotFound(c, "redemption not archived yet")
		return
	}

	url, err := h.archive.GeneratePresignedDownloadURL(c.Request.Context(), red.ArchiveKey, h.archive.PresignExpire())
	if err != nil {
		h.logger.Error("presign failed", zap.Error(err), zap.String("key", red.ArchiveKey))
		response.Internal(c, "failed to sign archive url")
		return
	}
	response.OK(c, gin.H{"url": url, "key": red.ArchiveKey, "expires_in": int(h.archive.PresignExpire().Seconds())})
}
