package repository

import (
	"context"
	"testing"
	"time"

	"github.com/AshishSahani0/saarthi-portal/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySnapshotRepository(t *testing.T) {
	repo := NewMemorySnapshotRepository(time.Hour)
	ctx := context.Background()

	t.Run("SetAndGetSnapshot", func(t *testing.T) {
		bookings := []models.Booking{{ID: "b-1", Status: models.StatusPending}}
		require.NoError(t, repo.SetSnapshot(ctx, "viewer-1", bookings))

		got, err := repo.GetSnapshot(ctx, "viewer-1")
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "b-1", got[0].ID)
	})

	t.Run("SnapshotIsACopy", func(t *testing.T) {
		bookings := []models.Booking{{ID: "b-2", Status: models.StatusPending}}
		require.NoError(t, repo.SetSnapshot(ctx, "viewer-2", bookings))

		got, err := repo.GetSnapshot(ctx, "viewer-2")
		require.NoError(t, err)
		got[0].Status = models.StatusRejected

		again, err := repo.GetSnapshot(ctx, "viewer-2")
		require.NoError(t, err)
		assert.Equal(t, models.StatusPending, again[0].Status)
	})

	t.Run("GetNonExistent", func(t *testing.T) {
		got, err := repo.GetSnapshot(ctx, "nobody")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("ClearSnapshot", func(t *testing.T) {
		require.NoError(t, repo.SetSnapshot(ctx, "viewer-3", []models.Booking{{ID: "b-3"}}))
		require.NoError(t, repo.ClearSnapshot(ctx, "viewer-3"))

		got, err := repo.GetSnapshot(ctx, "viewer-3")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("RateLimit", func(t *testing.T) {
		for i := 0; i < 5; i++ {
			allowed, err := repo.CheckRateLimit(ctx, "key", 5, time.Minute)
			require.NoError(t, err)
			assert.True(t, allowed)
		}

		allowed, err := repo.CheckRateLimit(ctx, "key", 5, time.Minute)
		require.NoError(t, err)
		assert.False(t, allowed)
	})

	t.Run("RateLimitWindowReset", func(t *testing.T) {
		allowed, err := repo.CheckRateLimit(ctx, "short", 1, 10*time.Millisecond)
		require.NoError(t, err)
		assert.True(t, allowed)

		allowed, _ = repo.CheckRateLimit(ctx, "short", 1, 10*time.Millisecond)
		assert.False(t, allowed)

		time.Sleep(20 * time.Millisecond)

		allowed, err = repo.CheckRateLimit(ctx, "short", 1, 10*time.Millisecond)
		require.NoError(t, err)
		assert.True(t, allowed)
	})
}
