package reconcile

import (
	"sort"
	"time"

	"github.com/AshishSahani0/saarthi-portal/internal/models"
	"github.com/AshishSahani0/saarthi-portal/internal/session"
)

// Reconciler keeps one view's booking list consistent with
// server-originated updates. ReplaceAll mirrors a full list fetch and
// discards records absent from it; Upsert applies an incremental
// create/update and preserves everything else. The list stays sorted
// ascending by effective start time after every mutation.
//
// Not safe for concurrent writers; the owning service serializes calls.
type Reconciler struct {
	bookings []models.Booking
	loc      *time.Location
}

// New builds an empty reconciler ordering by clock times in loc.
func New(loc *time.Location) *Reconciler {
	if loc == nil {
		loc = time.Local
	}
	return &Reconciler{loc: loc}
}

// ReplaceAll swaps the whole collection for the fetched list.
func (r *Reconciler) ReplaceAll(bookings []models.Booking) {
	r.bookings = append([]models.Booking(nil), bookings...)
	r.sortByStart()
}

// Upsert replaces the record with a matching ID in place, or inserts
// the booking when no match exists. Never rejects a record.
func (r *Reconciler) Upsert(b models.Booking) {
	for i := range r.bookings {
		if r.bookings[i].ID == b.ID {
			r.bookings[i] = b
			r.sortByStart()
			return
		}
	}
	r.bookings = append([]models.Booking{b}, r.bookings...)
	r.sortByStart()
}

// Remove drops the record with the given ID. Only called on confirmed
// backend deletion; reports whether anything was removed.
func (r *Reconciler) Remove(id string) bool {
	for i := range r.bookings {
		if r.bookings[i].ID == id {
			r.bookings = append(r.bookings[:i], r.bookings[i+1:]...)
			return true
		}
	}
	return false
}

// Get returns the record with the given ID.
func (r *Reconciler) Get(id string) (models.Booking, bool) {
	for i := range r.bookings {
		if r.bookings[i].ID == id {
			return r.bookings[i], true
		}
	}
	return models.Booking{}, false
}

// Snapshot returns a copy of the current list in order.
func (r *Reconciler) Snapshot() []models.Booking {
	return append([]models.Booking(nil), r.bookings...)
}

// Len returns the number of records held.
func (r *Reconciler) Len() int {
	return len(r.bookings)
}

// Stable sort: records with equal effective starts keep their relative
// order.
func (r *Reconciler) sortByStart() {
	sort.SliceStable(r.bookings, func(i, j int) bool {
		return session.EffectiveStart(r.bookings[i], r.loc).
			Before(session.EffectiveStart(r.bookings[j], r.loc))
	})
}
