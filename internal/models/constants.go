package models

// Backend booking statuses (authoritative).
const (
	StatusPending   = "Pending"
	StatusApproved  = "Approved"
	StatusRejected  = "Rejected"
	StatusCompleted = "Completed"
)

// Derived-only session statuses.
const (
	StatusUpcoming = "Upcoming"
	StatusActive   = "Active"
)

// Display color tags for session cards.
const (
	ColorYellow = "yellow"
	ColorBlue   = "blue"
	ColorGreen  = "green"
	ColorRed    = "red"
)

// Meeting modes.
const (
	ModeChat     = "Chat"
	ModeVideo    = "Video"
	ModeInPerson = "In-Person"
)

// Screening instruments.
const (
	InstrumentPHQ9  = "PHQ-9"
	InstrumentGAD7  = "GAD-7"
	InstrumentGHQ12 = "GHQ-12"
)

const (
	// JoinGraceMinutes is how early an approved session opens before
	// its slot start.
	JoinGraceMinutes = 5

	// DefaultRefreshSeconds is how often dashboards re-fetch the
	// booking list from the backend.
	DefaultRefreshSeconds = 30

	// DefaultSnapshotTTL is the lifetime of a per-viewer dashboard
	// snapshot in Redis, in seconds.
	DefaultSnapshotTTL = 24 * 60 * 60

	// DefaultReminderWindowMinutes is how far ahead the reminder job
	// looks for sessions about to start.
	DefaultReminderWindowMinutes = 15

	// RateLimitRequests is the number of API requests allowed per key
	// within RateLimitWindow seconds.
	RateLimitRequests = 30
	RateLimitWindow   = 60
)
