package repository

import (
	"context"
	"sync"
	"time"

	"github.com/AshishSahani0/saarthi-portal/internal/models"
)

// MemorySnapshotRepository keeps dashboard snapshots in process. Used
// as the failover target when Redis is down and in tests.
type MemorySnapshotRepository struct {
	snapshots  sync.Map
	rateLimits sync.Map
	ttl        time.Duration
}

func NewMemorySnapshotRepository(ttl time.Duration) *MemorySnapshotRepository {
	return &MemorySnapshotRepository{
		ttl: ttl,
	}
}

func (r *MemorySnapshotRepository) GetSnapshot(ctx context.Context, viewerID string) ([]models.Booking, error) {
	val, ok := r.snapshots.Load(viewerID)
	if !ok {
		return nil, nil
	}
	stored := val.([]models.Booking)
	return append([]models.Booking(nil), stored...), nil
}

func (r *MemorySnapshotRepository) SetSnapshot(ctx context.Context, viewerID string, bookings []models.Booking) error {
	r.snapshots.Store(viewerID, append([]models.Booking(nil), bookings...))
	return nil
}

func (r *MemorySnapshotRepository) ClearSnapshot(ctx context.Context, viewerID string) error {
	r.snapshots.Delete(viewerID)
	return nil
}

type rateLimitEntry struct {
	count     int
	expiresAt time.Time
}

func (r *MemorySnapshotRepository) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	now := time.Now()
	val, ok := r.rateLimits.Load(key)

	var entry *rateLimitEntry
	if !ok {
		entry = &rateLimitEntry{
			count:     1,
			expiresAt: now.Add(window),
		}
	} else {
		entry = val.(*rateLimitEntry)
		if now.After(entry.expiresAt) {
			entry.count = 1
			entry.expiresAt = now.Add(window)
		} else {
			entry.count++
		}
	}

	r.rateLimits.Store(key, entry)
	return entry.count <= limit, nil
}
