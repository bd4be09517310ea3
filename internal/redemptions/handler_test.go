package redemptions

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/promostack/coupon-backend/internal/middleware"
	"github.com/promostack/coupon-backend/internal/models"
)

func init() { gin.SetMode(gin.TestMode) }

type fakeStore struct {
	limits map[string]int
	counts map[string]map[string]int
	byID   map[uuid.UUID]models.Redemption
}

func newFakeStore(limits map[string]int) *fakeStore {
	return &fakeStore{
		limits: limits,
		counts: make(map[string]map[string]int),
		byID:   make(map[uuid.UUID]models.Redemption),
	}
}

func (f *fakeStore) Redeem(_ context.Context, couponCode, userID, orderID string, discount decimal.Decimal) (*models.Redemption, error) {
	limit, ok := f.limits[couponCode]
	if !ok {
		return nil, ErrCouponNotFound
	}
	if f.counts[couponCode] == nil {
		f.counts[couponCode] = make(map[string]int)
	}
	if f.counts[couponCode][userID] >= limit {
		return nil, ErrUsageLimitReached
	}
	f.counts[couponCode][userID]++
	red := models.Redemption{
		ID:              uuid.New(),
		CouponCode:      couponCode,
		UserID:          userID,
		OrderID:         orderID,
		DiscountApplied: discount,
		UsageAfter:      f.counts[couponCode][userID],
		Status:          models.RedemptionStatusPending,
		RedeemedAt:      time.Now(),
	}
	f.byID[red.ID] = red
	return &red, nil
}

func (f *fakeStore) GetByID(_ context.Context, id uuid.UUID) (*models.Redemption, error) {
	red, ok := f.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &red, nil
}

func (f *fakeStore) ListByCoupon(_ context.Context, couponCode string, limit int) ([]models.Redemption, error) {
	var list []models.Redemption
	for _, red := range f.byID {
		if red.CouponCode == couponCode && len(list) < limit {
			list = append(list, red)
		}
	}
	return list, nil
}

type fakeArchive struct {
	url string
	err error
}

func (f fakeArchive) GeneratePresignedDownloadURL(context.Context, string, time.Duration) (string, error) {
	return f.url, f.err
}

func (f fakeArchive) PresignExpire() time.Duration { return 15 * time.Minute }

var testUserID = uuid.New()

func newTestRouter(store Store, archive Archive, withUser bool) *gin.Engine {
	h := NewHandler(store, archive, nil, nil, zap.NewNop())
	r := gin.New()
	grp := r.Group("/")
	if withUser {
		grp.Use(func(c *gin.Context) { c.Set(middleware.ContextUserID, testUserID) })
	}
	grp.POST("/coupons/:code/redeem", h.Redeem)
	grp.GET("/coupons/:code/redemptions", h.List)
	grp.GET("/redemptions/:id/archive-url", h.ArchiveURL)
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRedeem(t *testing.T) {
	store := newFakeStore(map[string]int{"SAVE10": 2})
	r := newTestRouter(store, nil, false)

	var resp struct {
		Success bool              `json:"success"`
		Data    models.Redemption `json:"data"`
	}

	w := doJSON(t, r, http.MethodPost, "/coupons/SAVE10/redeem", gin.H{"user_id": "u1", "order_id": "ord-1"})
	require.Equal(t, http.StatusCreated, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	require.Equal(t, "SAVE10", resp.Data.CouponCode)
	require.Equal(t, 1, resp.Data.UsageAfter)
	require.Equal(t, models.RedemptionStatusPending, resp.Data.Status)

	w = doJSON(t, r, http.MethodPost, "/coupons/SAVE10/redeem", gin.H{"user_id": "u1"})
	require.Equal(t, http.StatusCreated, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, 2, resp.Data.UsageAfter)

	// Third redeem hits the limit of 2.
	w = doJSON(t, r, http.MethodPost, "/coupons/SAVE10/redeem", gin.H{"user_id": "u1"})
	require.Equal(t, http.StatusTooManyRequests, w.Code)

	// A different user starts from zero.
	w = doJSON(t, r, http.MethodPost, "/coupons/SAVE10/redeem", gin.H{"user_id": "u2"})
	require.Equal(t, http.StatusCreated, w.Code)
}

func TestRedeemUnknownCoupon(t *testing.T) {
	r := newTestRouter(newFakeStore(nil), nil, false)

	w := doJSON(t, r, http.MethodPost, "/coupons/NOPE/redeem", gin.H{"user_id": "u1"})
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestRedeemNegativeDiscount(t *testing.T) {
	r := newTestRouter(newFakeStore(map[string]int{"SAVE10": 2}), nil, false)

	w := doJSON(t, r, http.MethodPost, "/coupons/SAVE10/redeem", gin.H{"user_id": "u1", "discount_applied": -1})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRedeemFallsBackToAuthenticatedUser(t *testing.T) {
	store := newFakeStore(map[string]int{"SAVE10": 2})
	r := newTestRouter(store, nil, true)

	w := doJSON(t, r, http.MethodPost, "/coupons/SAVE10/redeem", nil)
	require.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		Data models.Redemption `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, testUserID.String(), resp.Data.UserID)
}

func TestRedeemRequiresSomeUser(t *testing.T) {
	r := newTestRouter(newFakeStore(map[string]int{"SAVE10": 2}), nil, false)

	w := doJSON(t, r, http.MethodPost, "/coupons/SAVE10/redeem", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListLimitValidation(t *testing.T) {
	r := newTestRouter(newFakeStore(nil), nil, false)

	w := doJSON(t, r, http.MethodGet, "/coupons/SAVE10/redemptions?limit=abc", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, http.MethodGet, "/coupons/SAVE10/redemptions?limit=0", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, http.MethodGet, "/coupons/SAVE10/redemptions", nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestArchiveURL(t *testing.T) {
	store := newFakeStore(map[string]int{"SAVE10": 5})
	red, err := store.Redeem(context.Background(), "SAVE10", "u1", "", decimal.Zero)
	require.NoError(t, err)

	// No archive storage configured.
	r := newTestRouter(store, nil, false)
	w := doJSON(t, r, http.MethodGet, "/redemptions/"+red.ID.String()+"/archive-url", nil)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	// Configured, but the row has no archive key yet.
	r = newTestRouter(store, fakeArchive{url: "https://signed.example/obj"}, false)
	w = doJSON(t, r, http.MethodGet, "/redemptions/"+red.ID.String()+"/archive-url", nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	archived := store.byID[red.ID]
	archived.ArchiveKey = "redemptions/SAVE10/" + red.ID.String() + ".json"
	store.byID[red.ID] = archived

	w = doJSON(t, r, http.MethodGet, "/redemptions/"+red.ID.String()+"/archive-url", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data struct {
			URL string `json:"url"`
			Key string `json:"key"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "https://signed.example/obj", resp.Data.URL)
	require.Equal(t, archived.ArchiveKey, resp.Data.Key)

	w = doJSON(t, r, http.MethodGet, "/redemptions/not-a-uuid/archive-url", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, http.MethodGet, "/redemptions/"+uuid.NewString()+"/archive-url", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}
