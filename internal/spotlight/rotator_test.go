package spotlight

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/promostack/coupon-backend/internal/models"
)

type staticSource []models.Coupon

func (s staticSource) List(_ context.Context) ([]models.Coupon, error) {
	return s, nil
}

type recordingHub struct {
	mu     sync.Mutex
	rooms  []string
	events []Featured
}

func (h *recordingHub) BroadcastToCouponAndPublish(room, event string, payload interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.rooms = append(h.rooms, room)
	if f, ok := payload.(Featured); ok {
		h.events = append(h.events, f)
	}
}

func (h *recordingHub) snapshot() ([]string, []Featured) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.rooms...), append([]Featured(nil), h.events...)
}

func validCoupon(code string, categories ...string) models.Coupon {
	now := time.Now().UTC()
	return models.Coupon{
		Code:          code,
		DiscountType:  models.DiscountFlat,
		DiscountValue: decimal.NewFromInt(10),
		StartDate:     now.Add(-time.Hour),
		EndDate:       now.Add(time.Hour),
		Eligibility:   models.Eligibility{ApplicableCategories: categories},
	}
}

func waitForEvents(t *testing.T, hub *recordingHub, n int) []Featured {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		_, events := hub.snapshot()
		if len(events) >= n {
			return events
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %d events, got %d", n, len(events))
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestRotatorCyclesThroughCoupons(t *testing.T) {
	source := staticSource{validCoupon("ALPHA"), validCoupon("BETA")}
	hub := &recordingHub{}
	r := NewRotator("homepage", "", source, hub, 10*time.Millisecond, nil)
	r.Start()
	defer r.Stop()

	events := waitForEvents(t, hub, 3)
	require.Equal(t, "ALPHA", events[0].Code)
	require.Equal(t, "BETA", events[1].Code)
	require.Equal(t, "ALPHA", events[2].Code)

	rooms, _ := hub.snapshot()
	require.Equal(t, RoomKey("homepage"), rooms[0])
}

func TestRotatorSkipsExpiredCoupons(t *testing.T) {
	expired := validCoupon("OLD")
	expired.StartDate = time.Now().UTC().Add(-48 * time.Hour)
	expired.EndDate = time.Now().UTC().Add(-24 * time.Hour)
	source := staticSource{expired, validCoupon("FRESH")}
	hub := &recordingHub{}
	r := NewRotator("homepage", "", source, hub, 10*time.Millisecond, nil)
	r.Start()
	defer r.Stop()

	events := waitForEvents(t, hub, 2)
	for _, e := range events {
		require.Equal(t, "FRESH", e.Code)
	}
}

func TestRotatorFiltersByCategory(t *testing.T) {
	source := staticSource{
		validCoupon("BOOKS10", "BOOKS"),
		validCoupon("TECH10", "ELECTRONICS"),
		validCoupon("ANY10"),
	}
	hub := &recordingHub{}
	r := NewRotator("books-page", "BOOKS", source, hub, 10*time.Millisecond, nil)
	r.Start()
	defer r.Stop()

	events := waitForEvents(t, hub, 4)
	for _, e := range events {
		require.Contains(t, []string{"BOOKS10", "ANY10"}, e.Code)
	}
}

func TestRegistryStartStop(t *testing.T) {
	reg := NewRegistry()
	source := staticSource{validCoupon("ALPHA")}
	hub := &recordingHub{}

	require.True(t, reg.Start("homepage", "", source, hub, time.Minute, nil))
	require.False(t, reg.Start("homepage", "", source, hub, time.Minute, nil))
	require.Equal(t, []string{"homepage"}, reg.Channels())

	require.True(t, reg.Reload("homepage"))
	require.False(t, reg.Reload("unknown"))

	require.True(t, reg.Stop("homepage"))
	require.False(t, reg.Stop("homepage"))
	require.Empty(t, reg.Channels())
}
