package session

import (
	"time"

	"github.com/AshishSahani0/saarthi-portal/internal/models"
)

// Classifier derives the lifecycle stage of a booking from its slot
// interval, its backend status and a caller-supplied reference time.
// Classify is pure: same inputs, same output, no I/O.
type Classifier struct {
	grace     time.Duration
	loc       *time.Location
	onAnomaly func(status string)
}

// NewClassifier builds a classifier with the given early-join grace in
// minutes. Zero or negative grace uses models.JoinGraceMinutes; nil loc
// uses the local timezone.
func NewClassifier(graceMinutes int, loc *time.Location) *Classifier {
	if graceMinutes <= 0 {
		graceMinutes = models.JoinGraceMinutes
	}
	if loc == nil {
		loc = time.Local
	}
	return &Classifier{
		grace: time.Duration(graceMinutes) * time.Minute,
		loc:   loc,
	}
}

// OnAnomaly registers a hook invoked when a booking carries a status
// outside the four known values. Such bookings are classified as
// Pending instead of being rejected.
func (c *Classifier) OnAnomaly(fn func(status string)) {
	c.onAnomaly = fn
}

// Location returns the timezone slot clock times are resolved in.
func (c *Classifier) Location() *time.Location {
	return c.loc
}

// Classify maps a booking onto its derived session status at now.
func (c *Classifier) Classify(b models.Booking, now time.Time) models.SessionStatus {
	start, end := ResolveInterval(b.Date, b.TimeSlot, c.loc)

	switch b.Status {
	case models.StatusApproved:
		joinFrom := start.Add(-c.grace)
		switch {
		case !now.Before(joinFrom) && !now.After(end):
			return models.SessionStatus{Status: models.StatusActive, CanAct: true, Color: models.ColorGreen}
		case now.After(end):
			return models.SessionStatus{Status: models.StatusCompleted, Color: models.ColorRed}
		default:
			return models.SessionStatus{Status: models.StatusUpcoming, CanAct: true, Color: models.ColorBlue}
		}

	case models.StatusRejected:
		return models.SessionStatus{Status: models.StatusRejected, Color: models.ColorRed}

	case models.StatusCompleted:
		return models.SessionStatus{Status: models.StatusCompleted, Color: models.ColorRed}

	case models.StatusPending:

	default:
		if c.onAnomaly != nil {
			c.onAnomaly(b.Status)
		}
	}

	// Pending, or an unknown status treated as pending. A request
	// nobody acted on before its slot elapsed is operationally dead;
	// showing it as still pending would invite action that is no
	// longer possible.
	if !now.Before(end) {
		return models.SessionStatus{Status: models.StatusCompleted, Color: models.ColorRed}
	}
	return models.SessionStatus{Status: models.StatusPending, CanAct: true, Color: models.ColorYellow}
}
