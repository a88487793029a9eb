// Package scheduleapi is an HTTP client for an external clinic schedule service.
package scheduleapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/drbembem2005/taafi-clinic-portal-sub000/internal/availability"
	"github.com/drbembem2005/taafi-clinic-portal-sub000/internal/model"

	"github.com/redis/go-redis/v9"
)

// HTTPError is a non-2xx response from the schedule service.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("http %d", e.StatusCode)
	}
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Body)
}

// Client calls the schedule service's availability and booking endpoints.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client

	redis    *redis.Client
	cacheTTL time.Duration
}

type availabilityResponse struct {
	Days []availability.RawDay `json:"days"`
}

type createBookingResponse struct {
	ID string `json:"id"`
}

// NewClient constructs a client for baseURL authenticated with apiKey.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// UseRedisCache configures optional Redis caching of availability.
func (c *Client) UseRedisCache(redisClient *redis.Client, ttl time.Duration) {
	c.redis = redisClient
	c.cacheTTL = ttl
}

func availabilityKey(doctorID int64) string {
	return fmt.Sprintf("availability:doctor:%d", doctorID)
}

// FetchAvailability implements availability.Source.
func (c *Client) FetchAvailability(ctx context.Context, doctorID int64) ([]availability.RawDay, error) {
	endpoint := fmt.Sprintf("%s/api/v1/doctors/%d/availability", c.baseURL, doctorID)
	cacheKey := availabilityKey(doctorID)
	var resp availabilityResponse

	if c.readCache(ctx, cacheKey, &resp) {
		return nonNil(resp.Days), nil
	}

	if err := c.doGet(ctx, endpoint, &resp); err != nil {
		return nil, err
	}
	c.writeCache(ctx, cacheKey, resp)
	return nonNil(resp.Days), nil
}

// CreateBooking posts the booking and returns the id assigned by the service.
// The doctor's cached availability is dropped on success.
func (c *Client) CreateBooking(ctx context.Context, b model.Booking) (string, error) {
	endpoint := fmt.Sprintf("%s/api/v1/bookings", c.baseURL)
	var resp createBookingResponse
	if err := c.doPost(ctx, endpoint, b, &resp); err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", fmt.Errorf("create booking: empty id in response")
	}
	if c.redis != nil {
		_ = c.redis.Del(ctx, availabilityKey(b.DoctorID)).Err()
	}
	return resp.ID, nil
}

func nonNil(days []availability.RawDay) []availability.RawDay {
	if days == nil {
		return []availability.RawDay{}
	}
	return days
}

func (c *Client) readCache(ctx context.Context, key string, out any) bool {
	if c.redis == nil || c.cacheTTL <= 0 {
		return false
	}
	val, err := c.redis.Get(ctx, key).Result()
	if err != nil {
		return false
	}
	if err := json.Unmarshal([]byte(val), out); err != nil {
		return false
	}
	return true
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
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return err
	}
	c.addHeaders(req)
	return c.do(req, out)
}

func (c *Client) doPost(ctx context.Context, endpoint string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.addHeaders(req)
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &HTTPError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) addHeaders(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}
	req.Header.Set("Accept", "application/json")
}
