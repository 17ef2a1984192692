package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/AshishSahani0/saarthi-portal/internal/config"
	"github.com/AshishSahani0/saarthi-portal/internal/models"

	"github.com/redis/go-redis/v9"
)

var ErrUnavailable = errors.New("backend unavailable")

// Client calls the authoritative booking service's REST API. Reads can
// be served from an optional Redis cache; writes always go through.
// Transient failures (network, 5xx) are retried with backoff.
type Client struct {
	baseURL    string
	apiKey     string
	apiExtra   string
	httpClient *http.Client
	retry      RetryPolicy

	redis    *redis.Client
	cacheTTL time.Duration
}

// NewClient constructs a client from backend config.
func NewClient(cfg config.BackendConfig) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		apiExtra:   cfg.APIExtra,
		httpClient: &http.Client{Timeout: timeout},
		retry: RetryPolicy{
			MaxRetries:    cfg.MaxRetries,
			InitialDelay:  500 * time.Millisecond,
			MaxDelay:      5 * time.Second,
			BackoffFactor: 2,
		},
	}
}

// UseRedisCache configures optional Redis caching for list fetches.
func (c *Client) UseRedisCache(redisClient *redis.Client, ttl time.Duration) {
	c.redis = redisClient
	c.cacheTTL = ttl
}

// ListBookings fetches the booking list visible to the viewer scope.
func (c *Client) ListBookings(ctx context.Context, scope models.ViewerScope) ([]models.Booking, error) {
	query := url.Values{}
	if scope.Role != "" {
		query.Set("role", scope.Role)
	}
	if scope.UserID != "" {
		query.Set("user_id", scope.UserID)
	}
	if scope.InstituteID != "" {
		query.Set("institute_id", scope.InstituteID)
	}

	endpoint := fmt.Sprintf("%s/api/v1/bookings", c.baseURL)
	if encoded := query.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}
	cacheKey := fmt.Sprintf("bookings:%s:%s:%s", scope.Role, scope.UserID, scope.InstituteID)

	var wrap struct {
		Bookings []models.Booking `json:"bookings"`
	}
	if c.readCache(ctx, cacheKey, &wrap) {
		return wrap.Bookings, nil
	}

	if err := c.doGet(ctx, endpoint, &wrap); err != nil {
		return nil, err
	}
	c.writeCache(ctx, cacheKey, wrap)
	return wrap.Bookings, nil
}

// CreateBooking submits a new booking request. The backend assigns the
// Pending status; the returned record overwrites the argument.
func (c *Client) CreateBooking(ctx context.Context, booking *models.Booking) error {
	endpoint := fmt.Sprintf("%s/api/v1/bookings", c.baseURL)
	var created models.Booking
	if err := c.doJSON(ctx, http.MethodPost, endpoint, booking, &created); err != nil {
		return err
	}
	if created.ID != "" {
		*booking = created
	}
	return nil
}

// UpdateBookingStatus asks the backend to move a booking to the given
// authoritative status.
func (c *Client) UpdateBookingStatus(ctx context.Context, bookingID, status string) error {
	endpoint := fmt.Sprintf("%s/api/v1/bookings/%s/status", c.baseURL, url.PathEscape(bookingID))
	body := map[string]string{"status": status}
	return c.doJSON(ctx, http.MethodPatch, endpoint, body, nil)
}

// RescheduleBooking moves a booking to a new date and slot.
func (c *Client) RescheduleBooking(ctx context.Context, bookingID string, date time.Time, timeSlot string) error {
	endpoint := fmt.Sprintf("%s/api/v1/bookings/%s/reschedule", c.baseURL, url.PathEscape(bookingID))
	body := map[string]string{
		"date":      date.Format("2006-01-02"),
		"time_slot": timeSlot,
	}
	return c.doJSON(ctx, http.MethodPatch, endpoint, body, nil)
}

// SubmitScreening forwards a scored questionnaire to the backend.
func (c *Client) SubmitScreening(ctx context.Context, result *models.ScreeningResult) error {
	endpoint := fmt.Sprintf("%s/api/v1/screenings", c.baseURL)
	return c.doJSON(ctx, http.MethodPost, endpoint, result, nil)
}

func (c *Client) readCache(ctx context.Context, key string, out any) bool {
	if c.redis == nil || c.cacheTTL <= 0 {
		return false
	}
	val, err := c.redis.Get(ctx, key).Result()
	if err != nil {
		return false
	}
	return json.Unmarshal([]byte(val), out) == nil
}

func (c *Client) writeCache(ctx context.Context, key string, val any) {
	if c.redis == nil || c.cacheTTL <= 0 {
		return
	}
	data, err := json.Marshal(val)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, key, data, c.cacheTTL).Err()
}

func (c *Client) doGet(ctx context.Context, endpoint string, out any) error {
	return c.withRetry(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return err
		}
		c.addHeaders(req)
		return c.do(req, out)
	})
}

func (c *Client) doJSON(ctx context.Context, method, endpoint string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	return c.withRetry(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, method, endpoint, strings.NewReader(string(data)))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		c.addHeaders(req)
		return c.do(req, out)
	})
}

// withRetry retries transient failures only; client errors (4xx)
// surface immediately.
func (c *Client) withRetry(ctx context.Context, call func() error) error {
	maxAttempts := c.retry.MaxRetries
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		lastErr = call()
		if lastErr == nil {
			return nil
		}
		if !errors.Is(lastErr, ErrUnavailable) {
			return lastErr
		}
		if attempt == maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.retry.NextDelay(attempt)):
		}
	}
	return lastErr
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: http %d", ErrUnavailable, resp.StatusCode)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("backend http %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) addHeaders(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}
	if c.apiExtra != "" {
		req.Header.Set("x-api-extra", c.apiExtra)
	}
}
