// Package client is an HTTP client for the roombook REST API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"roombook/internal/models"
	"roombook/internal/service"

	"github.com/redis/go-redis/v9"
)

const (
	apiPrefix      = "/api/v1"
	cacheKeyPrefix = "roombook:client:"
)

// APIError is a non-2xx response decoded from the API error body.
type APIError struct {
	StatusCode int
	Code       string `json:"code"`
	Message    string `json:"error"`
	Stage      string `json:"stage,omitempty"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("http %d", e.StatusCode)
	}
	return fmt.Sprintf("http %d %s: %s", e.StatusCode, e.Code, e.Message)
}

// IsStatus reports whether err is an APIError with the given status code.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}

type Client struct {
	baseURL    string
	apiKey     string
	apiExtra   string
	httpClient *http.Client

	redis    *redis.Client
	cacheTTL time.Duration
}

func New(baseURL, apiKey, apiExtra string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		apiExtra:   apiExtra,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// UseRedisCache caches resource lookups for ttl.
func (c *Client) UseRedisCache(redisClient *redis.Client, ttl time.Duration) {
	c.redis = redisClient
	c.cacheTTL = ttl
}

func (c *Client) ListResources(ctx context.Context) ([]*models.Resource, error) {
	var wrap struct {
		Resources []*models.Resource `json:"resources"`
	}
	if c.readCache(ctx, "resources", &wrap) {
		return wrap.Resources, nil
	}
	if err := c.do(ctx, http.MethodGet, "/resources", nil, &wrap); err != nil {
		return nil, err
	}
	c.writeCache(ctx, "resources", wrap)
	return wrap.Resources, nil
}

func (c *Client) GetResource(ctx context.Context, id string) (*models.Resource, error) {
	key := "resource:" + id
	var res models.Resource
	if c.readCache(ctx, key, &res) {
		return &res, nil
	}
	if err := c.do(ctx, http.MethodGet, "/resources/"+url.PathEscape(id), nil, &res); err != nil {
		return nil, err
	}
	c.writeCache(ctx, key, res)
	return &res, nil
}

// SaveResource creates or replaces a resource and drops cached copies.
func (c *Client) SaveResource(ctx context.Context, res *models.Resource) (*models.Resource, error) {
	var out models.Resource
	if err := c.do(ctx, http.MethodPut, "/resources/"+url.PathEscape(res.ID), res, &out); err != nil {
		return nil, err
	}
	c.dropCache(ctx, "resources", "resource:"+res.ID)
	return &out, nil
}

func (c *Client) Quote(ctx context.Context, req service.QuoteRequest) (*models.MultiQuote, error) {
	var out models.MultiQuote
	if err := c.do(ctx, http.MethodPost, "/availability/quote", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CheckAvailability(ctx context.Context, items []models.BookingItem) (*models.Availability, error) {
	body := struct {
		Items []models.BookingItem `json:"items"`
	}{items}
	var out models.Availability
	if err := c.do(ctx, http.MethodPost, "/availability/check", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Hold places a hold. A conflicting request is not an error: the result comes
// back with OK false and the full conflict list.
func (c *Client) Hold(ctx context.Context, req service.HoldRequest) (*service.HoldResult, error) {
	var out service.HoldResult
	err := c.do(ctx, http.MethodPost, "/availability/hold", req, &out)
	if err != nil && !(IsStatus(err, http.StatusConflict) && out.AttemptID != "") {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ReleaseHold(ctx context.Context, holdID string) error {
	return c.do(ctx, http.MethodDelete, "/availability/hold/"+url.PathEscape(holdID), nil, nil)
}

func (c *Client) Confirm(ctx context.Context, req service.ConfirmRequest) (*models.Reservation, error) {
	var out models.Reservation
	if err := c.do(ctx, http.MethodPost, "/reservations/confirm", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) readCache(ctx context.Context, key string, out any) bool {
	if c.redis == nil || c.cacheTTL <= 0 {
		return false
	}
	val, err := c.redis.Get(ctx, cacheKeyPrefix+key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(val, out) == nil
}

func (c *Client) writeCache(ctx context.Context, key string, val any) {
	if c.redis == nil || c.cacheTTL <= 0 {
		return
	}
	data, err := json.Marshal(val)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, cacheKeyPrefix+key, data, c.cacheTTL).Err()
}

func (c *Client) dropCache(ctx context.Context, keys ...string) {
	if c.redis == nil {
		return
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = cacheKeyPrefix + k
	}
	_ = c.redis.Del(ctx, full...).Err()
}

// do sends the request and decodes the body into out. Error responses are
// still decoded into out so callers can read structured 409 bodies.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+apiPrefix+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}
	if c.apiExtra != "" {
		req.Header.Set("x-api-extra", c.apiExtra)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return err
	}

	if resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		_ = json.Unmarshal(data, apiErr)
		if out != nil {
			_ = json.Unmarshal(data, out)
		}
		return apiErr
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, out)
}
