package models

import "time"

// ScreeningResult is a scored questionnaire submission.
type ScreeningResult struct {
	ID         string    `json:"id"`
	StudentID  string    `json:"student_id"`
	Instrument string    `json:"instrument"` // PHQ-9, GAD-7, GHQ-12
	Score      int       `json:"score"`
	Severity   string    `json:"severity"`
	RiskFlag   bool      `json:"risk_flag"`
	TakenAt    time.Time `json:"taken_at"`
}

// JournalDraft is an unsent journal entry kept locally so it survives
// restarts. The backend only ever sees published entries.
type JournalDraft struct {
	ID        string    `json:"id"`
	StudentID string    `json:"student_id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Mood      string    `json:"mood,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}
