package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/AshishSahani0/saarthi-portal/internal/config"
	"github.com/AshishSahani0/saarthi-portal/internal/models"

	"github.com/redis/go-redis/v9"
)

// RedisSnapshotRepository persists per-viewer dashboard snapshots so a
// restarted portal instance serves the last known list while the first
// backend fetch is in flight.
type RedisSnapshotRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClient builds a Redis client from config.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	options := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}

	return redis.NewClient(options)
}

func NewRedisSnapshotRepository(client *redis.Client, ttl time.Duration) *RedisSnapshotRepository {
	return &RedisSnapshotRepository{
		client: client,
		ttl:    ttl,
	}
}

func (r *RedisSnapshotRepository) GetSnapshot(ctx context.Context, viewerID string) ([]models.Booking, error) {
	if r.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	key := snapshotKey(viewerID)
	val, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot from redis: %w", err)
	}

	var bookings []models.Booking
	if err := json.Unmarshal([]byte(val), &bookings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}

	return bookings, nil
}

func (r *RedisSnapshotRepository) SetSnapshot(ctx context.Context, viewerID string, bookings []models.Booking) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	data, err := json.Marshal(bookings)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	if err := r.client.Set(ctx, snapshotKey(viewerID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set snapshot in redis: %w", err)
	}

	return nil
}

func (r *RedisSnapshotRepository) ClearSnapshot(ctx context.Context, viewerID string) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if err := r.client.Del(ctx, snapshotKey(viewerID)).Err(); err != nil {
		return fmt.Errorf("failed to clear snapshot in redis: %w", err)
	}
	return nil
}

// CheckRateLimit implements a fixed-window counter per key.
func (r *RedisSnapshotRepository) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if r.client == nil {
		return false, fmt.Errorf("redis client is nil")
	}

	redisKey := fmt.Sprintf("rate_limit:%s", key)
	count, err := r.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return false, fmt.Errorf("failed to increment rate limit: %w", err)
	}
	if count == 1 {
		if err := r.client.Expire(ctx, redisKey, window).Err(); err != nil {
			return false, fmt.Errorf("failed to set rate limit expiry: %w", err)
		}
	}

	return count <= int64(limit), nil
}

func snapshotKey(viewerID string) string {
	return fmt.Sprintf("dashboard_snapshot:%s", viewerID)
}
