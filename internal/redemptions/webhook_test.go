package redemptions

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/promostack/coupon-backend/internal/models"
)

func newWebhookRouter(store Store, secret string) *gin.Engine {
	h := NewWebhookHandler(store, nil, nil, secret, zap.NewNop())
	r := gin.New()
	r.POST("/webhooks/order-completed", h.OrderCompleted)
	return r
}

func signBody(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func postWebhook(t *testing.T, r *gin.Engine, body interface{}, signature string) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/order-completed", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set(signatureHeader, signature)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestOrderCompletedRedeems(t *testing.T) {
	store := newFakeStore(map[string]int{"SAVE10": 1})
	r := newWebhookRouter(store, "")

	body := gin.H{"order_id": "ord-1", "user_id": "u1", "coupon_code": "SAVE10", "discount_applied": "10.00"}
	w := postWebhook(t, r, body, "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data models.Redemption `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "SAVE10", resp.Data.CouponCode)
	require.Equal(t, "ord-1", resp.Data.OrderID)
	require.Equal(t, 1, resp.Data.UsageAfter)

	// Second order for the same user exceeds the limit of 1.
	w = postWebhook(t, r, gin.H{"order_id": "ord-2", "user_id": "u1", "coupon_code": "SAVE10"}, "")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestOrderCompletedSignature(t *testing.T) {
	const secret = "hush"
	store := newFakeStore(map[string]int{"SAVE10": 5})
	r := newWebhookRouter(store, secret)

	body := gin.H{"order_id": "ord-1", "user_id": "u1", "coupon_code": "SAVE10"}
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	// Missing signature.
	w := postWebhook(t, r, body, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)

	// Wrong secret.
	w = postWebhook(t, r, body, signBody("other", raw))
	require.Equal(t, http.StatusUnauthorized, w.Code)

	// Valid signature.
	w = postWebhook(t, r, body, signBody(secret, raw))
	require.Equal(t, http.StatusOK, w.Code)
}

func TestOrderCompletedValidation(t *testing.T) {
	store := newFakeStore(map[string]int{"SAVE10": 5})
	r := newWebhookRouter(store, "")

	w := postWebhook(t, r, gin.H{"user_id": "u1", "coupon_code": "SAVE10"}, "")
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = postWebhook(t, r, gin.H{"order_id": "ord-1", "user_id": "u1", "coupon_code": "SAVE10", "discount_applied": "-5"}, "")
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = postWebhook(t, r, gin.H{"order_id": "ord-1", "user_id": "u1", "coupon_code": "NOPE"}, "")
	require.Equal(t, http.StatusNotFound, w.Code)
}
