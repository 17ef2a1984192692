package session

import (
	"strings"
	"time"

	"github.com/AshishSahani0/saarthi-portal/internal/models"
)

// Accepted clock layouts for one side of a time slot, tried in order.
// Anything else is treated as unparseable.
var slotLayouts = []string{"15:04", "3:04 PM"}

// ResolveInterval turns a booking date and its free-text slot into a
// concrete [start, end) interval in loc. Slots are staff-entered text,
// so a missing separator or an unparseable side falls back to the full
// calendar day of the booking rather than an error. A slot whose end is
// not after its start crosses midnight and rolls end forward one day.
func ResolveInterval(date time.Time, slot string, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.Local
	}
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, loc)
	nextDay := day.AddDate(0, 0, 1)

	if !strings.Contains(slot, "-") {
		return day, nextDay
	}

	parts := strings.SplitN(slot, "-", 2)
	startClock, okStart := parseClock(strings.TrimSpace(parts[0]))
	endClock, okEnd := parseClock(strings.TrimSpace(parts[1]))
	if !okStart || !okEnd {
		return day, nextDay
	}

	start := day.Add(startClock)
	end := day.Add(endClock)
	if !end.After(start) {
		// Slot like "23:00 - 01:00" ends on the next day.
		end = end.AddDate(0, 0, 1)
	}
	return start, end
}

// EffectiveStart is the ordering key for booking lists: the booking
// date combined with the first clock component of the slot, midnight
// when the slot does not parse. Never fails.
func EffectiveStart(b models.Booking, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	day := time.Date(b.Date.Year(), b.Date.Month(), b.Date.Day(), 0, 0, 0, 0, loc)

	first := b.TimeSlot
	if i := strings.Index(first, "-"); i >= 0 {
		first = first[:i]
	}
	if clock, ok := parseClock(strings.TrimSpace(first)); ok {
		return day.Add(clock)
	}
	return day
}

// parseClock parses a single clock string against the accepted layouts
// and returns its offset from midnight.
func parseClock(s string) (time.Duration, bool) {
	for _, layout := range slotLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, true
	}
	return 0, false
}
