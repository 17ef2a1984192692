package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/AshishSahani0/saarthi-portal/internal/models"

	_ "github.com/mattn/go-sqlite3"
)

var ErrNotFound = errors.New("record not found")

// Store is the portal's local SQLite cache. It keeps the last fetched
// booking list so a restarted instance has something to show before
// the first backend fetch, plus journal drafts and screening results
// that must survive restarts.
type Store struct {
	db *sql.DB
}

func New(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to cache: %w", err)
	}

	if err := createTables(db); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS bookings (
            id TEXT PRIMARY KEY,
            student_id TEXT NOT NULL,
            student_name TEXT,
            psychologist_id TEXT NOT NULL,
            psychologist_name TEXT,
            institute_id TEXT,
            date DATETIME NOT NULL,
            time_slot TEXT,
            status TEXT NOT NULL DEFAULT 'Pending',
            meeting_mode TEXT,
            reason TEXT,
            feedback TEXT,
            location TEXT,
            room_id TEXT,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,
		`CREATE TABLE IF NOT EXISTS journal_drafts (
            student_id TEXT PRIMARY KEY,
            draft_id TEXT NOT NULL,
            title TEXT,
            body TEXT,
            mood TEXT,
            updated_at DATETIME NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS screening_results (
            id TEXT PRIMARY KEY,
            student_id TEXT NOT NULL,
            instrument TEXT NOT NULL,
            score INTEGER NOT NULL,
            severity TEXT NOT NULL,
            risk_flag BOOLEAN NOT NULL DEFAULT 0,
            taken_at DATETIME NOT NULL
        )`,

		`CREATE INDEX IF NOT EXISTS idx_bookings_date ON bookings(date)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_status ON bookings(status)`,
		`CREATE INDEX IF NOT EXISTS idx_screening_student ON screening_results(student_id)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return nil
}

// SaveBookings replaces the cached booking list in one transaction.
func (s *Store) SaveBookings(ctx context.Context, bookings []models.Booking) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM bookings`); err != nil {
		return fmt.Errorf("failed to clear booking cache: %w", err)
	}

	query := `INSERT INTO bookings (
				id, student_id, student_name, psychologist_id, psychologist_name,
				institute_id, date, time_slot, status, meeting_mode, reason,
				feedback, location, room_id, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	for _, b := range bookings {
		_, err := tx.ExecContext(ctx, query,
			b.ID,
			b.StudentID,
			b.StudentName,
			b.PsychologistID,
			b.PsychologistName,
			b.InstituteID,
			b.Date.Format("2006-01-02"),
			b.TimeSlot,
			b.Status,
			b.MeetingMode,
			b.Reason,
			b.Feedback,
			b.Location,
			b.RoomID,
			b.CreatedAt,
			b.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to cache booking %s: %w", b.ID, err)
		}
	}

	return tx.Commit()
}

// LoadBookings returns the cached booking list ordered by date.
func (s *Store) LoadBookings(ctx context.Context) ([]models.Booking, error) {
	query := `SELECT id, student_id, student_name, psychologist_id, psychologist_name,
	                 institute_id, date(date), time_slot, status, meeting_mode, reason,
	                 feedback, location, room_id, created_at, updated_at
	          FROM bookings ORDER BY date ASC`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to load cached bookings: %w", err)
	}
	defer rows.Close()

	var bookings []models.Booking
	for rows.Next() {
		var b models.Booking
		var dateStr string
		err := rows.Scan(
			&b.ID, &b.StudentID, &b.StudentName, &b.PsychologistID, &b.PsychologistName,
			&b.InstituteID, &dateStr, &b.TimeSlot, &b.Status, &b.MeetingMode, &b.Reason,
			&b.Feedback, &b.Location, &b.RoomID, &b.CreatedAt, &b.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cached booking: %w", err)
		}
		b.Date, err = time.Parse("2006-01-02", dateStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse cached booking date %s: %w", dateStr, err)
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

// SaveJournalDraft upserts the single draft a student may hold.
func (s *Store) SaveJournalDraft(ctx context.Context, draft *models.JournalDraft) error {
	query := `INSERT INTO journal_drafts (student_id, draft_id, title, body, mood, updated_at)
	          VALUES (?, ?, ?, ?, ?, ?)
	          ON CONFLICT(student_id) DO UPDATE SET
	              draft_id = excluded.draft_id,
	              title = excluded.title,
	              body = excluded.body,
	              mood = excluded.mood,
	              updated_at = excluded.updated_at`
	_, err := s.db.ExecContext(ctx, query,
		draft.StudentID, draft.ID, draft.Title, draft.Body, draft.Mood, draft.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save journal draft: %w", err)
	}
	return nil
}

func (s *Store) GetJournalDraft(ctx context.Context, studentID string) (*models.JournalDraft, error) {
	var draft models.JournalDraft
	query := `SELECT draft_id, student_id, title, body, mood, updated_at
	          FROM journal_drafts WHERE student_id = ?`
	err := s.db.QueryRowContext(ctx, query, studentID).Scan(
		&draft.ID, &draft.StudentID, &draft.Title, &draft.Body, &draft.Mood, &draft.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get journal draft: %w", err)
	}
	return &draft, nil
}

func (s *Store) DeleteJournalDraft(ctx context.Context, studentID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM journal_drafts WHERE student_id = ?`, studentID)
	if err != nil {
		return fmt.Errorf("failed to delete journal draft: %w", err)
	}
	return nil
}

func (s *Store) SaveScreeningResult(ctx context.Context, result *models.ScreeningResult) error {
	query := `INSERT INTO screening_results (id, student_id, instrument, score, severity, risk_flag, taken_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		result.ID, result.StudentID, result.Instrument,
		result.Score, result.Severity, result.RiskFlag, result.TakenAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save screening result: %w", err)
	}
	return nil
}

// ListScreeningResults returns a student's results, newest first.
func (s *Store) ListScreeningResults(ctx context.Context, studentID string) ([]*models.ScreeningResult, error) {
	query := `SELECT id, student_id, instrument, score, severity, risk_flag, taken_at
	          FROM screening_results WHERE student_id = ? ORDER BY taken_at DESC`
	rows, err := s.db.QueryContext(ctx, query, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list screening results: %w", err)
	}
	defer rows.Close()

	var results []*models.ScreeningResult
	for rows.Next() {
		r := &models.ScreeningResult{}
		err := rows.Scan(&r.ID, &r.StudentID, &r.Instrument, &r.Score, &r.Severity, &r.RiskFlag, &r.TakenAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan screening result: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
