package models

import "time"

// Booking is the client-side copy of an appointment record owned by the
// backend. Only Date, TimeSlot and Status matter to the session engine;
// everything else passes through reconciliation unchanged.
type Booking struct {
	ID               string    `json:"id"`
	StudentID        string    `json:"student_id"`
	StudentName      string    `json:"student_name"`
	PsychologistID   string    `json:"psychologist_id"`
	PsychologistName string    `json:"psychologist_name"`
	InstituteID      string    `json:"institute_id"`
	Date             time.Time `json:"date"`
	TimeSlot         string    `json:"time_slot"` // free text: "10:00 - 11:00" or "02:00 PM - 03:00 PM"
	Status           string    `json:"status"`    // Pending, Approved, Rejected, Completed
	MeetingMode      string    `json:"meeting_mode"`
	Reason           string    `json:"reason,omitempty"`
	Feedback         string    `json:"feedback,omitempty"`
	Location         string    `json:"location,omitempty"`
	RoomID           string    `json:"room_id,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// SessionStatus is the derived, time-aware view of a booking shown to
// users. Recomputed on every read, never persisted.
type SessionStatus struct {
	Status string `json:"status"` // Pending, Upcoming, Active, Completed, Rejected
	CanAct bool   `json:"can_act"`
	Color  string `json:"color"`
}

// ClassifiedBooking pairs a booking with its derived session status for
// API responses.
type ClassifiedBooking struct {
	Booking `json:"booking"`
	Session SessionStatus `json:"session"`
}
