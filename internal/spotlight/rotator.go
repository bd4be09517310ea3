// Package spotlight cycles a "featured coupon" through the live feed. A
// rotator runs per channel (storefront section, campaign page, ...), loads
// the currently valid coupons and broadcasts the next one on every tick.
package spotlight

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/promostack/coupon-backend/internal/models"
)

// roomPrefix namespaces spotlight rooms so they cannot collide with coupon
// code rooms on the hub.
const roomPrefix = "spotlight:"

// RoomKey returns the hub room a channel's watchers join
// (e.g. /ws?coupon=spotlight:homepage).
func RoomKey(channel string) string { return roomPrefix + channel }

// CouponSource lists the coupon snapshot the rotator cycles through.
// The coupons snapshot cache implements it.
type CouponSource interface {
	List(ctx context.Context) ([]models.Coupon, error)
}

// HubBroadcaster pushes events to a feed room locally and across instances.
// *realtime.Hub implements it.
type HubBroadcaster interface {
	BroadcastToCouponAndPublish(couponCode, event string, payload interface{})
}

// Featured is the payload broadcast on every rotation.
type Featured struct {
	Code          string    `json:"code"`
	Description   string    `json:"description,omitempty"`
	DiscountType  string    `json:"discount_type"`
	DiscountValue string    `json:"discount_value"`
	EndDate       time.Time `json:"end_date"`
}

// Rotator runs the rotation loop for one channel: ticker, load valid
// coupons, broadcast the next featured coupon.
type Rotator struct {
	channel  string
	category string
	source   CouponSource
	hub      HubBroadcaster
	logger   *zap.Logger
	interval time.Duration
	mu       sync.Mutex
	cancel   context.CancelFunc
	done     chan struct{}
	reloadCh chan struct{}
}

// NewRotator creates a rotator for a channel. An empty category features
// every valid coupon; otherwise only coupons applicable to that category
// (or unrestricted ones) rotate.
func NewRotator(channel, category string, source CouponSource, hub HubBroadcaster, interval time.Duration, logger *zap.Logger) *Rotator {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Rotator{
		channel:  channel,
		category: category,
		source:   source,
		hub:      hub,
		logger:   logger,
		interval: interval,
		done:     make(chan struct{}),
		reloadCh: make(chan struct{}, 1),
	}
}

// Start begins the rotation loop. Call Stop to release resources.
func (r *Rotator) Start() {
	r.mu.Lock()
	if r.cancel != nil {
		r.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.mu.Unlock()

	go r.run(ctx)
	r.logger.Info("spotlight rotator started", zap.String("channel", r.channel), zap.Duration("interval", r.interval))
}

// Stop stops the rotation and waits for the loop to exit.
func (r *Rotator) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel == nil {
		return
	}
	r.cancel()
	r.cancel = nil
	<-r.done
	r.logger.Info("spotlight rotator stopped", zap.String("channel", r.channel))
}

// Reload signals the rotator to reload the coupon list on its next tick
// (e.g. after a new coupon was created).
func (r *Rotator) Reload() {
	select {
	case r.reloadCh <- struct{}{}:
	default:
	}
}

func (r *Rotator) run(ctx context.Context) {
	defer close(r.done)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	var (
		featured []Featured
		index    int
	)
	load := func() {
		list, err := r.source.List(ctx)
		if err != nil {
			r.logger.Warn("spotlight load coupons failed", zap.Error(err), zap.String("channel", r.channel))
			return
		}
		now := time.Now().UTC()
		var next []Featured
		for _, c := range list {
			if now.Before(c.StartDate) || now.After(c.EndDate) {
				continue
			}
			if !r.matchesCategory(c) {
				continue
			}
			next = append(next, Featured{
				Code:          c.Code,
				Description:   c.Description,
				DiscountType:  c.DiscountType,
				DiscountValue: c.DiscountValue.String(),
				EndDate:       c.EndDate,
			})
		}
		featured = next
		index = 0
	}
	load()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.reloadCh:
			load()
			continue
		case <-ticker.C:
			if len(featured) == 0 {
				load()
				continue
			}
			cur := featured[index%len(featured)]
			index++
			if r.hub != nil {
				r.hub.BroadcastToCouponAndPublish(RoomKey(r.channel), "spotlight", cur)
			}
		}
	}
}

// matchesCategory reports whether the coupon may be featured on this
// channel. Coupons without category restrictions rotate everywhere.
func (r *Rotator) matchesCategory(c models.Coupon) bool {
	if r.category == "" || len(c.Eligibility.ApplicableCategories) == 0 {
		return true
	}
	for _, cat := range c.Eligibility.ApplicableCategories {
		if cat == r.category {
			return true
		}
	}
	return false
}
