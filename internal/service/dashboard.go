package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/AshishSahani0/saarthi-portal/internal/domain"
	"github.com/AshishSahani0/saarthi-portal/internal/events"
	"github.com/AshishSahani0/saarthi-portal/internal/metrics"
	"github.com/AshishSahani0/saarthi-portal/internal/models"
	"github.com/AshishSahani0/saarthi-portal/internal/reconcile"
	"github.com/AshishSahani0/saarthi-portal/internal/screening"
	"github.com/AshishSahani0/saarthi-portal/internal/session"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	ErrSessionNotFound    = errors.New("session not found")
	ErrNotActionable      = errors.New("session is not actionable in its current state")
	ErrScreeningThrottled = errors.New("too many screening submissions")
)

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// DashboardService owns one viewer scope's booking list. All reads and
// writes funnel through its mutex; the reconciler and classifier
// underneath stay lock-free. Push-channel events feed the reconciler
// via the event bus subscription set up in New.
type DashboardService struct {
	mu sync.Mutex

	backend    domain.BackendClient
	classifier *session.Classifier
	reconciler *reconcile.Reconciler
	snapshots  domain.SnapshotRepository
	store      domain.LocalStore
	bus        *events.EventBus
	clock      domain.Clock
	scope      models.ViewerScope
	logger     *zerolog.Logger
}

func New(
	backend domain.BackendClient,
	classifier *session.Classifier,
	snapshots domain.SnapshotRepository,
	store domain.LocalStore,
	bus *events.EventBus,
	clock domain.Clock,
	scope models.ViewerScope,
	loc *time.Location,
	logger *zerolog.Logger,
) *DashboardService {
	if clock == nil {
		clock = SystemClock{}
	}
	s := &DashboardService{
		backend:    backend,
		classifier: classifier,
		reconciler: reconcile.New(loc),
		snapshots:  snapshots,
		store:      store,
		bus:        bus,
		clock:      clock,
		scope:      scope,
		logger:     logger,
	}
	s.subscribe()
	return s
}

// subscribe feeds push-channel booking events into the reconciler.
// Anything carrying a full record upserts; deletions remove.
func (s *DashboardService) subscribe() {
	if s.bus == nil {
		return
	}
	upsert := func(event *events.Event) error {
		payload, err := events.DecodeBookingPayload(event)
		if err != nil {
			return err
		}
		s.mu.Lock()
		s.reconciler.Upsert(payload.Booking)
		s.mu.Unlock()
		metrics.IncReconcile("upsert")
		return nil
	}
	for _, eventType := range []string{
		events.EventBookingCreated,
		events.EventBookingUpdated,
		events.EventBookingApproved,
		events.EventBookingRejected,
		events.EventBookingCompleted,
		events.EventBookingRescheduled,
	} {
		s.bus.Subscribe(eventType, upsert)
	}
	s.bus.Subscribe(events.EventBookingDeleted, func(event *events.Event) error {
		payload, err := events.DecodeBookingPayload(event)
		if err != nil {
			return err
		}
		s.mu.Lock()
		s.reconciler.Remove(payload.BookingID)
		s.mu.Unlock()
		metrics.IncReconcile("remove")
		return nil
	})
}

// Refresh re-fetches the full booking list and replaces the local
// collection with it. When the backend is unreachable and nothing is
// loaded yet, the last known list is served instead: the per-viewer
// snapshot first, then the local store.
func (s *DashboardService) Refresh(ctx context.Context) error {
	bookings, err := s.backend.ListBookings(ctx, s.scope)
	if err != nil {
		metrics.IncBackend("list_bookings", "error")
		s.mu.Lock()
		empty := s.reconciler.Len() == 0
		s.mu.Unlock()
		if empty && s.hydrate(ctx, err) {
			return nil
		}
		return fmt.Errorf("failed to refresh bookings: %w", err)
	}
	metrics.IncBackend("list_bookings", "ok")
	s.replaceAll(ctx, bookings, true)
	return nil
}

// hydrate loads the last known booking list while the backend is down.
// The snapshot repository wins over the local store: its entries are
// TTL-bounded, so a hit is never older than the snapshot lifetime.
func (s *DashboardService) hydrate(ctx context.Context, cause error) bool {
	if s.snapshots != nil {
		cached, err := s.snapshots.GetSnapshot(ctx, s.snapshotKey())
		if err != nil {
			s.logger.Warn().Err(err).Msg("failed to load dashboard snapshot")
		} else if len(cached) > 0 {
			s.logger.Warn().Err(cause).Int("cached", len(cached)).
				Msg("backend unavailable, serving last dashboard snapshot")
			s.replaceAll(ctx, cached, false)
			return true
		}
	}
	if s.store != nil {
		cached, err := s.store.LoadBookings(ctx)
		if err == nil && len(cached) > 0 {
			s.logger.Warn().Err(cause).Int("cached", len(cached)).
				Msg("backend unavailable, serving last persisted booking list")
			s.replaceAll(ctx, cached, false)
			return true
		}
	}
	return false
}

func (s *DashboardService) replaceAll(ctx context.Context, bookings []models.Booking, persist bool) {
	s.mu.Lock()
	s.reconciler.ReplaceAll(bookings)
	snapshot := s.reconciler.Snapshot()
	s.mu.Unlock()
	metrics.IncReconcile("replace_all")

	if persist {
		s.persist(ctx, snapshot)
	}
}

func (s *DashboardService) persist(ctx context.Context, bookings []models.Booking) {
	if s.store != nil {
		if err := s.store.SaveBookings(ctx, bookings); err != nil {
			s.logger.Error().Err(err).Msg("failed to persist booking list")
		}
	}
	if s.snapshots != nil {
		var err error
		if len(bookings) == 0 {
			// An empty list is no better than a cold start; drop the
			// snapshot instead of serving it after a restart.
			err = s.snapshots.ClearSnapshot(ctx, s.snapshotKey())
		} else {
			err = s.snapshots.SetSnapshot(ctx, s.snapshotKey(), bookings)
		}
		if err != nil {
			s.logger.Error().Err(err).Msg("failed to store dashboard snapshot")
		}
	}
}

func (s *DashboardService) snapshotKey() string {
	return fmt.Sprintf("%s:%s:%s", s.scope.Role, s.scope.UserID, s.scope.InstituteID)
}

// ListSessions classifies every booking at the given reference time.
// One now for the whole pass keeps the rendered list consistent.
func (s *DashboardService) ListSessions(now time.Time) []models.ClassifiedBooking {
	s.mu.Lock()
	bookings := s.reconciler.Snapshot()
	s.mu.Unlock()

	out := make([]models.ClassifiedBooking, 0, len(bookings))
	for _, b := range bookings {
		status := s.classifier.Classify(b, now)
		metrics.IncClassification(status.Status)
		out = append(out, models.ClassifiedBooking{Booking: b, Session: status})
	}
	return out
}

// Buckets groups classified sessions by derived status for dashboard
// sections.
func (s *DashboardService) Buckets(now time.Time) map[string][]models.ClassifiedBooking {
	buckets := make(map[string][]models.ClassifiedBooking)
	for _, cb := range s.ListSessions(now) {
		buckets[cb.Session.Status] = append(buckets[cb.Session.Status], cb)
	}
	return buckets
}

// GetSession returns one classified booking by ID.
func (s *DashboardService) GetSession(id string, now time.Time) (models.ClassifiedBooking, bool) {
	s.mu.Lock()
	b, ok := s.reconciler.Get(id)
	s.mu.Unlock()
	if !ok {
		return models.ClassifiedBooking{}, false
	}
	return models.ClassifiedBooking{Booking: b, Session: s.classifier.Classify(b, now)}, true
}

// CreateBooking submits a booking request to the backend and inserts
// the backend-assigned record locally.
func (s *DashboardService) CreateBooking(ctx context.Context, booking *models.Booking) error {
	if err := s.backend.CreateBooking(ctx, booking); err != nil {
		metrics.IncBackend("create_booking", "error")
		return fmt.Errorf("failed to create booking: %w", err)
	}
	metrics.IncBackend("create_booking", "ok")

	s.upsertAndPersist(ctx, *booking)
	s.publishBooking(events.EventBookingCreated, *booking, booking.StudentID)
	return nil
}

// ApproveBooking moves a pending request to Approved. Only valid while
// the derived status is still Pending.
func (s *DashboardService) ApproveBooking(ctx context.Context, bookingID string) error {
	return s.transition(ctx, bookingID, models.StatusApproved, models.StatusPending, events.EventBookingApproved)
}

// RejectBooking declines a pending request.
func (s *DashboardService) RejectBooking(ctx context.Context, bookingID string) error {
	return s.transition(ctx, bookingID, models.StatusRejected, models.StatusPending, events.EventBookingRejected)
}

// CompleteBooking closes out a session that is currently active.
func (s *DashboardService) CompleteBooking(ctx context.Context, bookingID string) error {
	return s.transition(ctx, bookingID, models.StatusCompleted, models.StatusActive, events.EventBookingCompleted)
}

// transition is the shared path for staff actions: the derived status
// must match requiredDerived at the time of the call, the backend is
// told first, then the local record flips.
func (s *DashboardService) transition(ctx context.Context, bookingID, newStatus, requiredDerived, eventType string) error {
	now := s.clock.Now()

	s.mu.Lock()
	b, ok := s.reconciler.Get(bookingID)
	s.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}

	derived := s.classifier.Classify(b, now)
	if !derived.CanAct || derived.Status != requiredDerived {
		return fmt.Errorf("%w: %s is %s", ErrNotActionable, bookingID, derived.Status)
	}

	if err := s.backend.UpdateBookingStatus(ctx, bookingID, newStatus); err != nil {
		metrics.IncBackend("update_status", "error")
		return fmt.Errorf("failed to update booking status: %w", err)
	}
	metrics.IncBackend("update_status", "ok")

	b.Status = newStatus
	b.UpdatedAt = now
	s.upsertAndPersist(ctx, b)
	s.publishBooking(eventType, b, "staff")

	s.logger.Info().
		Str("booking_id", bookingID).
		Str("status", newStatus).
		Msg("booking transitioned")
	return nil
}

// RescheduleBooking moves a booking to a new date and slot. Allowed
// for pending and upcoming sessions; completed and rejected records
// are immutable.
func (s *DashboardService) RescheduleBooking(ctx context.Context, bookingID string, date time.Time, timeSlot string) error {
	now := s.clock.Now()

	s.mu.Lock()
	b, ok := s.reconciler.Get(bookingID)
	s.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}

	derived := s.classifier.Classify(b, now)
	if derived.Status != models.StatusPending && derived.Status != models.StatusUpcoming {
		return fmt.Errorf("%w: %s is %s", ErrNotActionable, bookingID, derived.Status)
	}

	if err := s.backend.RescheduleBooking(ctx, bookingID, date, timeSlot); err != nil {
		metrics.IncBackend("reschedule", "error")
		return fmt.Errorf("failed to reschedule booking: %w", err)
	}
	metrics.IncBackend("reschedule", "ok")

	b.Date = date
	b.TimeSlot = timeSlot
	b.UpdatedAt = now
	s.upsertAndPersist(ctx, b)
	s.publishBooking(events.EventBookingRescheduled, b, "staff")
	return nil
}

// SubmitScreening scores a questionnaire, stores the result locally,
// forwards it to the backend and raises a risk event when the score or
// a critical item warrants follow-up. Submissions are throttled per
// student so a stuck client cannot flood the results table.
func (s *DashboardService) SubmitScreening(ctx context.Context, studentID, instrument string, answers []int) (*models.ScreeningResult, error) {
	if s.snapshots != nil {
		allowed, err := s.snapshots.CheckRateLimit(ctx, "screening:"+studentID,
			models.RateLimitRequests, models.RateLimitWindow*time.Second)
		if err != nil {
			s.logger.Warn().Err(err).Str("student_id", studentID).
				Msg("screening rate limit check failed")
		} else if !allowed {
			return nil, fmt.Errorf("%w: student %s", ErrScreeningThrottled, studentID)
		}
	}

	outcome, err := screening.Score(instrument, answers)
	if err != nil {
		return nil, err
	}

	result := &models.ScreeningResult{
		ID:         uuid.NewString(),
		StudentID:  studentID,
		Instrument: outcome.Instrument,
		Score:      outcome.Score,
		Severity:   outcome.Severity,
		RiskFlag:   outcome.RiskFlag,
		TakenAt:    s.clock.Now(),
	}

	if s.store != nil {
		if err := s.store.SaveScreeningResult(ctx, result); err != nil {
			return nil, fmt.Errorf("failed to save screening result: %w", err)
		}
	}

	if err := s.backend.SubmitScreening(ctx, result); err != nil {
		// Kept locally; backend sync can catch up on the next submission.
		metrics.IncBackend("submit_screening", "error")
		s.logger.Error().Err(err).Str("student_id", studentID).
			Msg("failed to forward screening result")
	} else {
		metrics.IncBackend("submit_screening", "ok")
	}

	if result.RiskFlag {
		metrics.IncRiskFlag()
		if s.bus != nil {
			_ = s.bus.PublishJSON(events.EventScreeningRisk, events.ScreeningEventPayload{
				StudentID:  result.StudentID,
				Instrument: result.Instrument,
				Score:      result.Score,
				Severity:   result.Severity,
			})
		}
	}
	return result, nil
}

// UpcomingWithin returns approved bookings whose slot starts inside
// (now, now+window]. Used by the reminder job.
func (s *DashboardService) UpcomingWithin(now time.Time, window time.Duration) []models.Booking {
	s.mu.Lock()
	bookings := s.reconciler.Snapshot()
	s.mu.Unlock()

	var out []models.Booking
	for _, b := range bookings {
		if b.Status != models.StatusApproved {
			continue
		}
		start := session.EffectiveStart(b, s.classifier.Location())
		if start.After(now) && !start.After(now.Add(window)) {
			out = append(out, b)
		}
	}
	return out
}

func (s *DashboardService) upsertAndPersist(ctx context.Context, b models.Booking) {
	s.mu.Lock()
	s.reconciler.Upsert(b)
	snapshot := s.reconciler.Snapshot()
	s.mu.Unlock()
	metrics.IncReconcile("upsert")
	s.persist(ctx, snapshot)
}

func (s *DashboardService) publishBooking(eventType string, b models.Booking, changedBy string) {
	if s.bus == nil {
		return
	}
	if err := s.bus.PublishJSON(eventType, events.BookingEventPayload{
		BookingID: b.ID,
		Booking:   b,
		ChangedBy: changedBy,
	}); err != nil {
		s.logger.Error().Err(err).Str("event", eventType).Msg("failed to publish event")
	}
}
