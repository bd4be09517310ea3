package coupons

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/promostack/coupon-backend/internal/models"
)

// snapshotKey is the Redis key holding the JSON-encoded coupon list.
const snapshotKey = "coupons:snapshot"

// SnapshotCache wraps a Store with a short-lived Redis snapshot of the full
// coupon list. Evaluations read the whole set on every request, so the
// snapshot keeps that off the database. Reads fall through to the underlying
// store when Redis is unavailable; writes invalidate the snapshot.
type SnapshotCache struct {
	store  Store
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewSnapshotCache creates a snapshot cache around store.
func NewSnapshotCache(store Store, client *redis.Client, ttl time.Duration, logger *zap.Logger) *SnapshotCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SnapshotCache{store: store, client: client, ttl: ttl, logger: logger}
}

// List returns the cached coupon snapshot, refreshing it from the store on a
// miss.
func (s *SnapshotCache) List(ctx context.Context) ([]models.Coupon, error) {
	raw, err := s.client.Get(ctx, snapshotKey).Bytes()
	if err == nil {
		var list []models.Coupon
		if err := json.Unmarshal(raw, &list); err == nil {
			return list, nil
		}
		s.logger.Warn("corrupt coupon snapshot, refreshing", zap.Error(err))
	} else if !errors.Is(err, redis.Nil) {
		s.logger.Warn("coupon snapshot read failed", zap.Error(err))
	}

	list, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	if encoded, err := json.Marshal(list); err == nil {
		if err := s.client.Set(ctx, snapshotKey, encoded, s.ttl).Err(); err != nil {
			s.logger.Warn("coupon snapshot write failed", zap.Error(err))
		}
	}
	return list, nil
}

// Create inserts through to the store and invalidates the snapshot.
func (s *SnapshotCache) Create(ctx context.Context, c *models.Coupon) error {
	if err := s.store.Create(ctx, c); err != nil {
		return err
	}
	if err := s.client.Del(ctx, snapshotKey).Err(); err != nil {
		s.logger.Warn("coupon snapshot invalidation failed", zap.Error(err))
	}
	return nil
}

// GetByCode delegates to the store; single-coupon reads are cheap enough.
func (s *SnapshotCache) GetByCode(ctx context.Context, code string) (*models.Coupon, error) {
	return s.store.GetByCode(ctx, code)
}

// Exists delegates to the store.
func (s *SnapshotCache) Exists(ctx context.Context, code string) (bool, error) {
	return s.store.Exists(ctx, code)
}
