package redemptions

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/promostack/coupon-backend/internal/realtime"
	"github.com/promostack/coupon-backend/pkg/queue"
	"github.com/promostack/coupon-backend/pkg/response"
)

// signatureHeader carries the hex-encoded HMAC-SHA256 of the raw body.
const signatureHeader = "X-Webhook-Signature"

// OrderCompletedPayload is the body the order system posts when a checkout
// that used a coupon completes.
type OrderCompletedPayload struct {
	OrderID         string          `json:"order_id"`
	UserID          string          `json:"user_id"`
	CouponCode      string          `json:"coupon_code"`
	DiscountApplied decimal.Decimal `json:"discount_applied"`
}

// WebhookHandler consumes order-completed webhooks from the order system and
// runs the usage write path for them.
type WebhookHandler struct {
	store  Store
	queue  *queue.Queue
	hub    *realtime.Hub
	secret []byte
	logger *zap.Logger
}

// NewWebhookHandler creates a webhook handler. An empty secret disables
// signature checks (local development); queue and hub may be nil.
func NewWebhookHandler(store Store, q *queue.Queue, hub *realtime.Hub, secret string, logger *zap.Logger) *WebhookHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookHandler{store: store, queue: q, hub: hub, secret: []byte(secret), logger: logger}
}

// OrderCompleted handles POST /webhooks/order-completed. Validates the HMAC
// signature when a secret is configured, consumes one coupon use and records
// the redemption.
func (h *WebhookHandler) OrderCompleted(c *gin.Context) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		response.BadRequest(c, "failed to read body")
		return
	}
	if !h.verifySignature(raw, c.GetHeader(signatureHeader)) {
		response.Unauthorized(c, "invalid webhook signature")
		return
	}

	var body OrderCompletedPayload
	if err := json.Unmarshal(raw, &body); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if body.OrderID == "" || body.UserID == "" || body.CouponCode == "" {
		response.BadRequest(c, "order_id, user_id and coupon_code required")
		return
	}
	if body.DiscountApplied.IsNegative() {
		response.BadRequest(c, "discount_applied must not be negative")
		return
	}

	red, err := h.store.Redeem(c.Request.Context(), body.CouponCode, body.UserID, body.OrderID, body.DiscountApplied)
	if err != nil {
		switch {
		case errors.Is(err, ErrCouponNotFound):
			response.NotFound(c, "coupon not found")
		case errors.Is(err, ErrUsageLimitReached):
			response.TooManyRequests(c, "usage limit reached for this coupon")
		default:
			h.logger.Error("webhook redeem failed", zap.Error(err),
				zap.String("code", body.CouponCode), zap.String("order_id", body.OrderID))
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

	h.logger.Info("order-completed webhook processed",
		zap.String("order_id", body.OrderID), zap.String("code", red.CouponCode))
	c.JSON(http.StatusOK, response.Body{Success: true, Data: red})
}

// verifySignature checks the hex HMAC-SHA256 of body against the header
// value. With no secret configured every request passes.
func (h *WebhookHandler) verifySignature(body []byte, header string) bool {
	if len(h.secret) == 0 {
		return true
	}
	sig, err := hex.DecodeString(header)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, h.secret)
	mac.Write(body)
	return hmac.Equal(sig, mac.Sum(nil))
}
