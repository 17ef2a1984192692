package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/AshishSahani0/saarthi-portal/internal/domain"
	"github.com/AshishSahani0/saarthi-portal/internal/models"
	"github.com/AshishSahani0/saarthi-portal/internal/session"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// UpcomingLister yields approved bookings starting inside a window.
type UpcomingLister interface {
	UpcomingWithin(now time.Time, window time.Duration) []models.Booking
}

// ReminderScheduler periodically scans for approved sessions about to
// start and notifies staff. Each booking is reminded at most once.
type ReminderScheduler struct {
	dashboard UpcomingLister
	notifier  domain.Notifier
	clock     domain.Clock
	window    time.Duration
	schedule  string
	loc       *time.Location
	logger    *zerolog.Logger

	cron *cron.Cron

	mu       sync.Mutex
	reminded map[string]bool
}

func New(
	dashboard UpcomingLister,
	notifier domain.Notifier,
	clock domain.Clock,
	windowMinutes int,
	schedule string,
	loc *time.Location,
	logger *zerolog.Logger,
) *ReminderScheduler {
	if windowMinutes <= 0 {
		windowMinutes = models.DefaultReminderWindowMinutes
	}
	if schedule == "" {
		schedule = "*/5 * * * *"
	}
	if loc == nil {
		loc = time.Local
	}
	return &ReminderScheduler{
		dashboard: dashboard,
		notifier:  notifier,
		clock:     clock,
		window:    time.Duration(windowMinutes) * time.Minute,
		schedule:  schedule,
		loc:       loc,
		logger:    logger,
		reminded:  make(map[string]bool),
	}
}

// Start registers the cron entry and begins scanning. Stop with Stop.
func (s *ReminderScheduler) Start(ctx context.Context) error {
	s.cron = cron.New(cron.WithLocation(s.loc))
	if _, err := s.cron.AddFunc(s.schedule, func() {
		s.Scan(ctx)
	}); err != nil {
		return fmt.Errorf("failed to schedule reminders: %w", err)
	}
	s.cron.Start()
	s.logger.Info().Str("schedule", s.schedule).Dur("window", s.window).
		Msg("reminder scheduler started")
	return nil
}

// Stop halts the cron loop and waits for a running scan to finish.
func (s *ReminderScheduler) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

// Scan sends one reminder per approved session starting inside the
// window. Exposed for tests and for an immediate scan on startup.
func (s *ReminderScheduler) Scan(ctx context.Context) {
	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, b := range s.dashboard.UpcomingWithin(now, s.window) {
		if s.reminded[b.ID] {
			continue
		}
		if err := s.notifier.NotifyStaff(ctx, formatReminder(b, s.loc)); err != nil {
			s.logger.Error().Err(err).Str("booking_id", b.ID).Msg("failed to send reminder")
			continue
		}
		s.reminded[b.ID] = true
	}
}

func formatReminder(b models.Booking, loc *time.Location) string {
	start := session.EffectiveStart(b, loc)
	return fmt.Sprintf("Upcoming session at %s: %s with %s (%s)",
		start.Format("15:04"), b.StudentName, b.PsychologistName, b.MeetingMode)
}
