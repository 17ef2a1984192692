package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/AshishSahani0/saarthi-portal/internal/config"
	"github.com/AshishSahani0/saarthi-portal/internal/models"
	"github.com/AshishSahani0/saarthi-portal/internal/service"
	"github.com/AshishSahani0/saarthi-portal/internal/store"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testDay = time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

// fakeDashboard records calls and serves canned sessions.
type fakeDashboard struct {
	sessions   []models.ClassifiedBooking
	actions    []string
	actionErr  error
	refreshErr error
	screening  *models.ScreeningResult
}

func (f *fakeDashboard) Refresh(ctx context.Context) error { return f.refreshErr }

func (f *fakeDashboard) Buckets(now time.Time) map[string][]models.ClassifiedBooking {
	buckets := make(map[string][]models.ClassifiedBooking)
	for _, cb := range f.sessions {
		buckets[cb.Session.Status] = append(buckets[cb.Session.Status], cb)
	}
	return buckets
}

func (f *fakeDashboard) ListSessions(now time.Time) []models.ClassifiedBooking {
	return f.sessions
}

func (f *fakeDashboard) GetSession(id string, now time.Time) (models.ClassifiedBooking, bool) {
	for _, cb := range f.sessions {
		if cb.ID == id {
			return cb, true
		}
	}
	return models.ClassifiedBooking{}, false
}

func (f *fakeDashboard) CreateBooking(ctx context.Context, booking *models.Booking) error {
	if f.actionErr != nil {
		return f.actionErr
	}
	booking.ID = "b-new"
	booking.Status = models.StatusPending
	return nil
}

func (f *fakeDashboard) act(name, id string) error {
	if f.actionErr != nil {
		return f.actionErr
	}
	f.actions = append(f.actions, name+":"+id)
	return nil
}

func (f *fakeDashboard) ApproveBooking(ctx context.Context, id string) error {
	return f.act("approve", id)
}
func (f *fakeDashboard) RejectBooking(ctx context.Context, id string) error {
	return f.act("reject", id)
}
func (f *fakeDashboard) CompleteBooking(ctx context.Context, id string) error {
	return f.act("complete", id)
}

func (f *fakeDashboard) RescheduleBooking(ctx context.Context, id string, date time.Time, timeSlot string) error {
	return f.act("reschedule", id)
}

func (f *fakeDashboard) SubmitScreening(ctx context.Context, studentID, instrument string, answers []int) (*models.ScreeningResult, error) {
	if f.actionErr != nil {
		return nil, f.actionErr
	}
	return f.screening, nil
}

func (f *fakeDashboard) UpcomingWithin(now time.Time, window time.Duration) []models.Booking {
	return nil
}

func testLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

func classified(id, derived string) models.ClassifiedBooking {
	return models.ClassifiedBooking{
		Booking: models.Booking{ID: id, Date: testDay, TimeSlot: "10:00 - 11:00"},
		Session: models.SessionStatus{Status: derived},
	}
}

func newTestServer(dash *fakeDashboard) *HTTPServer {
	cfg := config.APIConfig{Enabled: true, HTTP: config.APIHTTPConfig{Enabled: true, Port: 0}}
	return NewHTTPServer(cfg, dash, nil, fixedClock{testDay.Add(9 * time.Hour)}, testLogger())
}

func doRequest(t *testing.T, srv *HTTPServer, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestListSessions(t *testing.T) {
	dash := &fakeDashboard{sessions: []models.ClassifiedBooking{
		classified("b-1", models.StatusPending),
		classified("b-2", models.StatusActive),
	}}
	srv := newTestServer(dash)

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/sessions", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Sessions []models.ClassifiedBooking `json:"sessions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Sessions, 2)
}

func TestListSessionsFilterByDerivedStatus(t *testing.T) {
	dash := &fakeDashboard{sessions: []models.ClassifiedBooking{
		classified("b-1", models.StatusPending),
		classified("b-2", models.StatusActive),
	}}
	srv := newTestServer(dash)

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/sessions?status=Active", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Sessions []models.ClassifiedBooking `json:"sessions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Sessions, 1)
	assert.Equal(t, "b-2", resp.Sessions[0].ID)
}

func TestListSessionsGrouped(t *testing.T) {
	dash := &fakeDashboard{sessions: []models.ClassifiedBooking{
		classified("b-1", models.StatusPending),
		classified("b-2", models.StatusActive),
	}}
	srv := newTestServer(dash)

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/sessions?grouped=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Buckets map[string][]models.ClassifiedBooking `json:"buckets"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Buckets[models.StatusPending], 1)
	assert.Len(t, resp.Buckets[models.StatusActive], 1)
}

func TestGetSession(t *testing.T) {
	dash := &fakeDashboard{sessions: []models.ClassifiedBooking{classified("b-1", models.StatusPending)}}
	srv := newTestServer(dash)

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/sessions/b-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, srv, http.MethodGet, "/api/v1/sessions/ghost", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSessionActions(t *testing.T) {
	dash := &fakeDashboard{sessions: []models.ClassifiedBooking{classified("b-1", models.StatusPending)}}
	srv := newTestServer(dash)

	for _, action := range []string{"approve", "reject", "complete"} {
		rec := doRequest(t, srv, http.MethodPost, "/api/v1/sessions/b-1/"+action, nil)
		assert.Equal(t, http.StatusOK, rec.Code, action)
	}
	assert.Equal(t, []string{"approve:b-1", "reject:b-1", "complete:b-1"}, dash.actions)
}

func TestSessionActionErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", service.ErrSessionNotFound, http.StatusNotFound},
		{"not actionable", service.ErrNotActionable, http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dash := &fakeDashboard{actionErr: tt.err}
			srv := newTestServer(dash)
			rec := doRequest(t, srv, http.MethodPost, "/api/v1/sessions/b-1/approve", nil)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestUnknownActionRejected(t *testing.T) {
	srv := newTestServer(&fakeDashboard{})
	rec := doRequest(t, srv, http.MethodPost, "/api/v1/sessions/b-1/explode", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReschedule(t *testing.T) {
	dash := &fakeDashboard{sessions: []models.ClassifiedBooking{classified("b-1", models.StatusPending)}}
	srv := newTestServer(dash)

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/sessions/b-1/reschedule", map[string]string{
		"date":      "2025-03-12",
		"time_slot": "14:00 - 15:00",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"reschedule:b-1"}, dash.actions)
}

func TestRescheduleValidation(t *testing.T) {
	srv := newTestServer(&fakeDashboard{})

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/sessions/b-1/reschedule", map[string]string{
		"date": "12-03-2025", "time_slot": "14:00 - 15:00",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, srv, http.MethodPost, "/api/v1/sessions/b-1/reschedule", map[string]string{
		"date": "2025-03-12",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "time_slot is required")
}

func TestCreateBooking(t *testing.T) {
	srv := newTestServer(&fakeDashboard{})

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/bookings", map[string]any{
		"student_id":      "s-1",
		"psychologist_id": "p-1",
		"date":            "2025-03-12",
		"time_slot":       "10:00 - 11:00",
		"meeting_mode":    models.ModeVideo,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created models.Booking
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "b-new", created.ID)
	assert.Equal(t, models.StatusPending, created.Status)
}

func TestCreateBookingValidation(t *testing.T) {
	srv := newTestServer(&fakeDashboard{})

	tests := []struct {
		name string
		body map[string]any
	}{
		{"missing student", map[string]any{"psychologist_id": "p-1", "date": "2025-03-12", "time_slot": "10:00"}},
		{"bad mode", map[string]any{"student_id": "s-1", "psychologist_id": "p-1", "date": "2025-03-12", "time_slot": "10:00", "meeting_mode": "Carrier Pigeon"}},
		{"bad date", map[string]any{"student_id": "s-1", "psychologist_id": "p-1", "date": "tomorrow", "time_slot": "10:00"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, srv, http.MethodPost, "/api/v1/bookings", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestSubmitScreening(t *testing.T) {
	dash := &fakeDashboard{screening: &models.ScreeningResult{
		ID: "scr-1", Instrument: models.InstrumentPHQ9, Score: 12, Severity: "moderate",
	}}
	srv := newTestServer(dash)

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/screenings", map[string]any{
		"student_id": "s-1",
		"instrument": models.InstrumentPHQ9,
		"answers":    []int{1, 1, 2, 1, 2, 1, 2, 1, 1},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var result models.ScreeningResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 12, result.Score)
}

func TestSubmitScreeningThrottled(t *testing.T) {
	dash := &fakeDashboard{actionErr: service.ErrScreeningThrottled}
	srv := newTestServer(dash)

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/screenings", map[string]any{
		"student_id": "s-1",
		"instrument": models.InstrumentPHQ9,
		"answers":    []int{1, 1, 2, 1, 2, 1, 2, 1, 1},
	})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestScreeningHistory(t *testing.T) {
	srv, localStore := newTestServerWithStore(t)

	ctx := context.Background()
	require.NoError(t, localStore.SaveScreeningResult(ctx, &models.ScreeningResult{
		ID: "scr-1", StudentID: "s-1", Instrument: models.InstrumentPHQ9,
		Score: 7, Severity: "mild", TakenAt: testDay.Add(8 * time.Hour),
	}))
	require.NoError(t, localStore.SaveScreeningResult(ctx, &models.ScreeningResult{
		ID: "scr-2", StudentID: "s-1", Instrument: models.InstrumentGAD7,
		Score: 11, Severity: "moderate", TakenAt: testDay.Add(9 * time.Hour),
	}))

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/screenings/s-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Results []models.ScreeningResult `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "scr-2", resp.Results[0].ID, "newest first")

	rec = doRequest(t, srv, http.MethodGet, "/api/v1/screenings/s-unknown", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp.Results)
}

func TestExportSchedule(t *testing.T) {
	dash := &fakeDashboard{sessions: []models.ClassifiedBooking{classified("b-1", models.StatusUpcoming)}}
	srv := newTestServer(dash)

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/export/schedule", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "spreadsheetml")
	assert.Contains(t, rec.Header().Get("Content-Disposition"), ".xlsx")
	assert.NotZero(t, rec.Body.Len())
}

func TestRefreshEndpoint(t *testing.T) {
	srv := newTestServer(&fakeDashboard{})
	rec := doRequest(t, srv, http.MethodPost, "/api/v1/refresh", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, srv, http.MethodGet, "/api/v1/refresh", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func newTestServerWithStore(t *testing.T) (*HTTPServer, *store.Store) {
	t.Helper()
	localStore, err := store.New(filepath.Join(t.TempDir(), "portal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = localStore.Close() })

	cfg := config.APIConfig{Enabled: true, HTTP: config.APIHTTPConfig{Enabled: true, Port: 0}}
	return NewHTTPServer(cfg, &fakeDashboard{}, localStore, fixedClock{testDay.Add(9 * time.Hour)}, testLogger()), localStore
}

func TestJournalDraftLifecycle(t *testing.T) {
	srv, _ := newTestServerWithStore(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/journal/s-1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, "no draft yet")

	rec = doRequest(t, srv, http.MethodPut, "/api/v1/journal/s-1", map[string]string{
		"title": "today",
		"body":  "slept badly, talked to counselor",
		"mood":  "low",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, srv, http.MethodGet, "/api/v1/journal/s-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var draft models.JournalDraft
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &draft))
	assert.Equal(t, "today", draft.Title)
	assert.Equal(t, "s-1", draft.StudentID)
	// Timestamp comes from the injected clock, not the wall clock.
	assert.True(t, draft.UpdatedAt.Equal(testDay.Add(9*time.Hour)))

	rec = doRequest(t, srv, http.MethodDelete, "/api/v1/journal/s-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, srv, http.MethodGet, "/api/v1/journal/s-1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestJournalDraftValidation(t *testing.T) {
	srv, _ := newTestServerWithStore(t)

	rec := doRequest(t, srv, http.MethodPut, "/api/v1/journal/s-1", map[string]string{"title": "empty"})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "body is required")

	rec = doRequest(t, srv, http.MethodGet, "/api/v1/journal/", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(&fakeDashboard{})
	rec := doRequest(t, srv, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
