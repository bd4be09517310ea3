package realtime

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

const (
	// PingInterval and PongWait are used for heartbeat.
	PingInterval = 30
	PongWait     = 60
)

// Hub maintains coupon code -> set of connections and broadcasts redemption
// events to watchers. Uses Redis pub/sub for horizontal scaling: local
// broadcast + publish to Redis.
type Hub struct {
	// coupon code -> map[clientID]*Client
	rooms    map[string]map[string]*Client
	subs     map[string]func() // cancel Redis subscription per coupon
	mu       sync.RWMutex
	logger   *zap.Logger
	redis    RedisPublisher
	redisSub RedisSubscriber
}

// RedisPublisher is the interface for publishing to Redis (for cross-instance broadcast).
type RedisPublisher interface {
	PublishCouponEvent(couponCode, event string, payload []byte) error
}

// RedisSubscriber subscribes to coupon channels and invokes handler for incoming events.
type RedisSubscriber interface {
	SubscribeCoupon(couponCode string, handler func(event string, payload []byte)) (cancel func(), err error)
}

// NewHub creates a new WebSocket hub.
func NewHub(logger *zap.Logger, redisPub RedisPublisher, redisSub RedisSubscriber) *Hub {
	return &Hub{
		rooms:    make(map[string]map[string]*Client),
		subs:     make(map[string]func()),
		logger:   logger,
		redis:    redisPub,
		redisSub: redisSub,
	}
}

// Register adds a client to a coupon room. Starts Redis subscription for this coupon if first client.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	if h.rooms[c.CouponCode] == nil {
		h.rooms[c.CouponCode] = make(map[string]*Client)
		if h.redisSub != nil {
			cancel, err := h.redisSub.SubscribeCoupon(c.CouponCode, func(event string, payload []byte) {
				h.BroadcastToCoupon(c.CouponCode, event, json.RawMessage(payload))
			})
			if err == nil {
				h.subs[c.CouponCode] = cancel
			}
		}
	}
	h.rooms[c.CouponCode][c.ID] = c
	h.mu.Unlock()
	h.logger.Debug("client joined coupon feed", zap.String("client_id", c.ID), zap.String("coupon", c.CouponCode))
}

// Unregister removes a client from a coupon room. Cancels Redis subscription when last client leaves.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if m, ok := h.rooms[c.CouponCode]; ok {
		delete(m, c.ID)
		if len(m) == 0 {
			delete(h.rooms, c.CouponCode)
			if cancel, ok := h.subs[c.CouponCode]; ok {
				cancel()
				delete(h.subs, c.CouponCode)
			}
		}
	}
	h.mu.Unlock()
	h.logger.Debug("client left coupon feed", zap.String("client_id", c.ID), zap.String("coupon", c.CouponCode))
}

// BroadcastToCoupon sends a message to all clients watching a coupon (local only).
func (h *Hub) BroadcastToCoupon(couponCode, event string, payload interface{}) {
	var data []byte
	switch v := payload.(type) {
	case []byte:
		data = v
	case json.RawMessage:
		data = v
	default:
		data, _ = json.Marshal(payload)
	}
	msg := WSMessage{Event: event, Data: data}

	h.mu.RLock()
	clients := h.rooms[couponCode]
	h.mu.RUnlock()

	if clients == nil {
		return
	}
	for _, c := range clients {
		select {
		case c.send <- msg:
		default:
			// buffer full, skip
		}
	}
}

// BroadcastToCouponAndPublish sends to local clients and publishes to Redis for other instances.
func (h *Hub) BroadcastToCouponAndPublish(couponCode, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	h.BroadcastToCoupon(couponCode, event, payload)
	if h.redis != nil {
		_ = h.redis.PublishCouponEvent(couponCode, event, data)
	}
}

// WatcherCount returns the number of connected clients watching a coupon.
func (h *Hub) WatcherCount(couponCode string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[couponCode])
}
