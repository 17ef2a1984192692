package repository

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/AshishSahani0/saarthi-portal/internal/domain"
	"github.com/AshishSahani0/saarthi-portal/internal/models"

	"github.com/rs/zerolog"
)

// FailoverSnapshotRepository serves from the primary (Redis) until it
// fails, then falls back to memory and retries the primary once a
// minute.
type FailoverSnapshotRepository struct {
	primary   domain.SnapshotRepository
	fallback  domain.SnapshotRepository
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck time.Time
}

func NewFailoverSnapshotRepository(primary, fallback domain.SnapshotRepository, logger *zerolog.Logger) *FailoverSnapshotRepository {
	return &FailoverSnapshotRepository{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (r *FailoverSnapshotRepository) GetSnapshot(ctx context.Context, viewerID string) ([]models.Booking, error) {
	if !r.isDown.Load() {
		snapshot, err := r.primary.GetSnapshot(ctx, viewerID)
		if err == nil {
			return snapshot, nil
		}
		r.logger.Error().Err(err).Msg("primary snapshot repository failed, falling back to memory")
		r.isDown.Store(true)
		r.lastCheck = time.Now()
	}

	if r.isDown.Load() && time.Since(r.lastCheck) > time.Minute {
		snapshot, err := r.primary.GetSnapshot(ctx, viewerID)
		if err == nil {
			r.isDown.Store(false)
			return snapshot, nil
		}
		r.lastCheck = time.Now()
	}

	return r.fallback.GetSnapshot(ctx, viewerID)
}

func (r *FailoverSnapshotRepository) SetSnapshot(ctx context.Context, viewerID string, bookings []models.Booking) error {
	if !r.isDown.Load() {
		err := r.primary.SetSnapshot(ctx, viewerID, bookings)
		if err == nil {
			return nil
		}
		r.logger.Error().Err(err).Msg("primary snapshot repository failed, falling back to memory")
		r.isDown.Store(true)
		r.lastCheck = time.Now()
	}

	return r.fallback.SetSnapshot(ctx, viewerID, bookings)
}

func (r *FailoverSnapshotRepository) ClearSnapshot(ctx context.Context, viewerID string) error {
	if !r.isDown.Load() {
		err := r.primary.ClearSnapshot(ctx, viewerID)
		if err == nil {
			return nil
		}
		r.logger.Error().Err(err).Msg("primary snapshot repository failed, falling back to memory")
		r.isDown.Store(true)
		r.lastCheck = time.Now()
	}

	return r.fallback.ClearSnapshot(ctx, viewerID)
}

func (r *FailoverSnapshotRepository) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if !r.isDown.Load() {
		allowed, err := r.primary.CheckRateLimit(ctx, key, limit, window)
		if err == nil {
			return allowed, nil
		}
		r.logger.Error().Err(err).Msg("primary snapshot repository failed, falling back to memory")
		r.isDown.Store(true)
		r.lastCheck = time.Now()
	}

	return r.fallback.CheckRateLimit(ctx, key, limit, window)
}
