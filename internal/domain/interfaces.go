package domain

import (
	"context"
	"time"

	"github.com/AshishSahani0/saarthi-portal/internal/models"
)

// Clock supplies the reference time for classification. Injected so a
// single render pass sees one consistent now and tests stay
// deterministic.
type Clock interface {
	Now() time.Time
}

// BackendClient talks to the authoritative booking service.
type BackendClient interface {
	ListBookings(ctx context.Context, scope models.ViewerScope) ([]models.Booking, error)
	CreateBooking(ctx context.Context, booking *models.Booking) error
	UpdateBookingStatus(ctx context.Context, bookingID, status string) error
	RescheduleBooking(ctx context.Context, bookingID string, date time.Time, timeSlot string) error
	SubmitScreening(ctx context.Context, result *models.ScreeningResult) error
}

// SnapshotRepository persists per-viewer dashboard snapshots and
// enforces viewer rate limits. Redis-backed in production, memory in
// tests and as failover.
type SnapshotRepository interface {
	GetSnapshot(ctx context.Context, viewerID string) ([]models.Booking, error)
	SetSnapshot(ctx context.Context, viewerID string, bookings []models.Booking) error
	ClearSnapshot(ctx context.Context, viewerID string) error
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// LocalStore is the SQLite cache surviving restarts: the last fetched
// booking list, journal drafts and screening results.
type LocalStore interface {
	SaveBookings(ctx context.Context, bookings []models.Booking) error
	LoadBookings(ctx context.Context) ([]models.Booking, error)
	SaveJournalDraft(ctx context.Context, draft *models.JournalDraft) error
	GetJournalDraft(ctx context.Context, studentID string) (*models.JournalDraft, error)
	DeleteJournalDraft(ctx context.Context, studentID string) error
	SaveScreeningResult(ctx context.Context, result *models.ScreeningResult) error
	ListScreeningResults(ctx context.Context, studentID string) ([]*models.ScreeningResult, error)
}

// EventPublisher publishes portal events to in-process subscribers.
type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// Notifier delivers staff notifications (session reminders, screening
// risk flags).
type Notifier interface {
	NotifyStaff(ctx context.Context, text string) error
}

// DashboardService is the session engine surface consumed by the HTTP
// layer and the reminder scheduler.
type DashboardService interface {
	Refresh(ctx context.Context) error
	Buckets(now time.Time) map[string][]models.ClassifiedBooking
	ListSessions(now time.Time) []models.ClassifiedBooking
	GetSession(id string, now time.Time) (models.ClassifiedBooking, bool)
	CreateBooking(ctx context.Context, booking *models.Booking) error
	ApproveBooking(ctx context.Context, bookingID string) error
	RejectBooking(ctx context.Context, bookingID string) error
	CompleteBooking(ctx context.Context, bookingID string) error
	RescheduleBooking(ctx context.Context, bookingID string, date time.Time, timeSlot string) error
	SubmitScreening(ctx context.Context, studentID, instrument string, answers []int) (*models.ScreeningResult, error)
	UpcomingWithin(now time.Time, window time.Duration) []models.Booking
}
