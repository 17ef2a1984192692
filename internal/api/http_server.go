package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/AshishSahani0/saarthi-portal/internal/config"
	"github.com/AshishSahani0/saarthi-portal/internal/domain"
	"github.com/AshishSahani0/saarthi-portal/internal/export"
	"github.com/AshishSahani0/saarthi-portal/internal/metrics"
	"github.com/AshishSahani0/saarthi-portal/internal/models"
	"github.com/AshishSahani0/saarthi-portal/internal/service"
	"github.com/AshishSahani0/saarthi-portal/internal/store"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// HTTPServer exposes the portal dashboard over HTTP. Every read
// classifies against a single reference time taken at the top of the
// request, so one response never mixes clocks.
type HTTPServer struct {
	cfg       config.APIConfig
	dashboard domain.DashboardService
	store     domain.LocalStore
	clock     domain.Clock
	server    *http.Server
	auth      *HTTPAuth
	validate  *validator.Validate
	logger    *zerolog.Logger
}

func NewHTTPServer(cfg config.APIConfig, dashboard domain.DashboardService, store domain.LocalStore, clock domain.Clock, logger *zerolog.Logger) *HTTPServer {
	if clock == nil {
		clock = service.SystemClock{}
	}
	srv := &HTTPServer{
		cfg:       cfg,
		dashboard: dashboard,
		store:     store,
		clock:     clock,
		auth:      NewHTTPAuth(cfg),
		validate:  validator.New(),
		logger:    logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/sessions", srv.handleSessions)
	mux.HandleFunc("/api/v1/sessions/", srv.handleSessionAction)
	mux.HandleFunc("/api/v1/bookings", srv.handleCreateBooking)
	mux.HandleFunc("/api/v1/screenings", srv.handleSubmitScreening)
	mux.HandleFunc("/api/v1/screenings/", srv.handleScreeningHistory)
	mux.HandleFunc("/api/v1/journal/", srv.handleJournalDraft)
	mux.HandleFunc("/api/v1/export/schedule", srv.handleExportSchedule)
	mux.HandleFunc("/api/v1/refresh", srv.handleRefresh)
	mux.HandleFunc("/healthz", srv.handleHealth)

	handler := srv.loggingMiddleware(srv.auth.Wrap(mux))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}
	return srv
}

// Handler returns the full middleware chain. Used by tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// GET /api/v1/sessions returns the classified list, optionally
// filtered by ?status=. ?grouped=1 buckets by derived status.
func (s *HTTPServer) handleSessions(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("sessions")
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	now := s.clock.Now()
	if r.URL.Query().Get("grouped") == "1" {
		writeJSON(w, http.StatusOK, map[string]any{
			"as_of":   now,
			"buckets": s.dashboard.Buckets(now),
		})
		return
	}

	sessions := s.dashboard.ListSessions(now)
	if want := strings.TrimSpace(r.URL.Query().Get("status")); want != "" {
		filtered := make([]models.ClassifiedBooking, 0, len(sessions))
		for _, cb := range sessions {
			if cb.Session.Status == want {
				filtered = append(filtered, cb)
			}
		}
		sessions = filtered
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"as_of":    now,
		"sessions": sessions,
	})
}

// /api/v1/sessions/{id} and /api/v1/sessions/{id}/{action}.
func (s *HTTPServer) handleSessionAction(w http.ResponseWriter, r *http.Request) {
	const prefix = "/api/v1/sessions/"
	rest := strings.TrimPrefix(r.URL.Path, prefix)
	id, action, _ := strings.Cut(rest, "/")
	id = strings.TrimSpace(id)
	if id == "" {
		writeError(w, http.StatusBadRequest, "session id is required")
		return
	}

	if action == "" {
		metrics.IncHTTP("session_get")
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		cb, ok := s.dashboard.GetSession(id, s.clock.Now())
		if !ok {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		writeJSON(w, http.StatusOK, cb)
		return
	}

	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var err error
	switch action {
	case "approve":
		metrics.IncHTTP("session_approve")
		err = s.dashboard.ApproveBooking(r.Context(), id)
	case "reject":
		metrics.IncHTTP("session_reject")
		err = s.dashboard.RejectBooking(r.Context(), id)
	case "complete":
		metrics.IncHTTP("session_complete")
		err = s.dashboard.CompleteBooking(r.Context(), id)
	case "reschedule":
		metrics.IncHTTP("session_reschedule")
		err = s.reschedule(r, id)
	default:
		writeError(w, http.StatusNotFound, "unknown action")
		return
	}

	if err != nil {
		writeActionError(w, err)
		return
	}

	cb, ok := s.dashboard.GetSession(id, s.clock.Now())
	if !ok {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	writeJSON(w, http.StatusOK, cb)
}

type rescheduleRequest struct {
	Date     string `json:"date" validate:"required,datetime=2006-01-02"`
	TimeSlot string `json:"time_slot" validate:"required"`
}

func (s *HTTPServer) reschedule(r *http.Request, id string) error {
	var req rescheduleRequest
	if err := s.decodeAndValidate(r, &req); err != nil {
		return err
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return errBadRequest("invalid date format; expected YYYY-MM-DD")
	}
	return s.dashboard.RescheduleBooking(r.Context(), id, date, req.TimeSlot)
}

type createBookingRequest struct {
	StudentID      string `json:"student_id" validate:"required"`
	StudentName    string `json:"student_name"`
	PsychologistID string `json:"psychologist_id" validate:"required"`
	InstituteID    string `json:"institute_id"`
	Date           string `json:"date" validate:"required,datetime=2006-01-02"`
	TimeSlot       string `json:"time_slot" validate:"required"`
	MeetingMode    string `json:"meeting_mode" validate:"omitempty,oneof=Chat Video In-Person"`
	Reason         string `json:"reason"`
	Location       string `json:"location"`
}

// POST /api/v1/bookings submits a booking request to the backend.
func (s *HTTPServer) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("booking_create")
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req createBookingRequest
	if err := s.decodeAndValidate(r, &req); err != nil {
		writeActionError(w, err)
		return
	}

	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date format; expected YYYY-MM-DD")
		return
	}

	booking := models.Booking{
		StudentID:      req.StudentID,
		StudentName:    req.StudentName,
		PsychologistID: req.PsychologistID,
		InstituteID:    req.InstituteID,
		Date:           date,
		TimeSlot:       req.TimeSlot,
		MeetingMode:    req.MeetingMode,
		Reason:         req.Reason,
		Location:       req.Location,
	}
	if err := s.dashboard.CreateBooking(r.Context(), &booking); err != nil {
		writeActionError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, booking)
}

type screeningRequest struct {
	StudentID  string `json:"student_id" validate:"required"`
	Instrument string `json:"instrument" validate:"required"`
	Answers    []int  `json:"answers" validate:"required,min=1"`
}

// POST /api/v1/screenings scores and records a questionnaire.
func (s *HTTPServer) handleSubmitScreening(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("screening_submit")
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req screeningRequest
	if err := s.decodeAndValidate(r, &req); err != nil {
		writeActionError(w, err)
		return
	}

	result, err := s.dashboard.SubmitScreening(r.Context(), req.StudentID, req.Instrument, req.Answers)
	if err != nil {
		if errors.Is(err, service.ErrScreeningThrottled) {
			writeError(w, http.StatusTooManyRequests, err.Error())
			return
		}
		// Scoring errors are caller mistakes, not server faults.
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// GET /api/v1/screenings/{student_id} lists a student's recorded
// results, newest first.
func (s *HTTPServer) handleScreeningHistory(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("screening_history")
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.store == nil {
		writeError(w, http.StatusNotFound, "screening history is not enabled")
		return
	}

	studentID := strings.TrimSpace(strings.TrimPrefix(r.URL.Path, "/api/v1/screenings/"))
	if studentID == "" || strings.Contains(studentID, "/") {
		writeError(w, http.StatusBadRequest, "student id is required")
		return
	}

	results, err := s.store.ListScreeningResults(r.Context(), studentID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load screening results")
		return
	}
	if results == nil {
		results = []*models.ScreeningResult{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

type journalDraftRequest struct {
	Title string `json:"title"`
	Body  string `json:"body" validate:"required"`
	Mood  string `json:"mood"`
}

// /api/v1/journal/{student_id} persists a local draft so an unsent
// entry survives browser and portal restarts. Drafts never reach the
// backend.
func (s *HTTPServer) handleJournalDraft(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("journal_draft")
	if s.store == nil {
		writeError(w, http.StatusNotFound, "journal drafts are not enabled")
		return
	}

	studentID := strings.TrimSpace(strings.TrimPrefix(r.URL.Path, "/api/v1/journal/"))
	if studentID == "" || strings.Contains(studentID, "/") {
		writeError(w, http.StatusBadRequest, "student id is required")
		return
	}

	switch r.Method {
	case http.MethodGet:
		draft, err := s.store.GetJournalDraft(r.Context(), studentID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeError(w, http.StatusNotFound, "no draft")
				return
			}
			writeError(w, http.StatusInternalServerError, "failed to load draft")
			return
		}
		writeJSON(w, http.StatusOK, draft)

	case http.MethodPut:
		var req journalDraftRequest
		if err := s.decodeAndValidate(r, &req); err != nil {
			writeActionError(w, err)
			return
		}
		draft := &models.JournalDraft{
			ID:        uuid.NewString(),
			StudentID: studentID,
			Title:     req.Title,
			Body:      req.Body,
			Mood:      req.Mood,
			UpdatedAt: s.clock.Now(),
		}
		if err := s.store.SaveJournalDraft(r.Context(), draft); err != nil {
			writeError(w, http.StatusInternalServerError, "failed to save draft")
			return
		}
		writeJSON(w, http.StatusOK, draft)

	case http.MethodDelete:
		if err := s.store.DeleteJournalDraft(r.Context(), studentID); err != nil {
			writeError(w, http.StatusInternalServerError, "failed to delete draft")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// GET /api/v1/export/schedule serves the current schedule as an xlsx
// download.
func (s *HTTPServer) handleExportSchedule(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("export_schedule")
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	now := s.clock.Now()
	data, err := export.Schedule(s.dashboard.ListSessions(now), now)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to build schedule export")
		writeError(w, http.StatusInternalServerError, "failed to build export")
		return
	}

	fileName := fmt.Sprintf("schedule_%s.xlsx", now.Format("2006-01-02"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// POST /api/v1/refresh forces a full re-fetch from the backend.
func (s *HTTPServer) handleRefresh(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("refresh")
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if err := s.dashboard.Refresh(r.Context()); err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) decodeAndValidate(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return errBadRequest("invalid JSON body")
	}
	if err := s.validate.Struct(dst); err != nil {
		return errBadRequest(err.Error())
	}
	return nil
}

type badRequestError string

func (e badRequestError) Error() string { return string(e) }

func errBadRequest(msg string) error { return badRequestError(msg) }

func writeActionError(w http.ResponseWriter, err error) {
	var bad badRequestError
	switch {
	case errors.As(err, &bad):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrNotActionable):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusBadGateway, err.Error())
	}
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		s.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
