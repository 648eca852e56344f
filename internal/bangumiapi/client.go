package bangumiapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultBaseURL   = "https://api.bgm.tv"
	defaultUserAgent = "bangumi-harvest/0.1 (https://github.com/amberdev/bangumi-harvest)"
)

const (
	rateLimitRequests = 2
	rateLimitDuration = time.Second

	connectTimeout = 30 * time.Second
	readTimeout    = 30 * time.Second
	callTimeout    = 60 * time.Second

	// Total attempts for a single call when the transport times out.
	maxAttempts = 3
)

var (
	// ErrNotFound is returned for 404 responses.
	ErrNotFound = errors.New("not found")
	// ErrRateLimited is returned for 429 responses.
	ErrRateLimited = errors.New("rate limited")
)

// Client talks to the Bangumi v0 API.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	userAgent   string
	token       string
	rateLimiter *rate.Limiter
}

// NewClient creates a new Bangumi API client authenticated with the given
// static bearer token.
func NewClient(token string) *Client {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: connectTimeout,
		}).DialContext,
		TLSHandshakeTimeout:   connectTimeout,
		ResponseHeaderTimeout: readTimeout,
	}
	return &Client{
		httpClient: &http.Client{
			Timeout:   callTimeout,
			Transport: transport,
		},
		baseURL:     defaultBaseURL,
		userAgent:   defaultUserAgent,
		token:       token,
		rateLimiter: rate.NewLimiter(rate.Every(rateLimitDuration/time.Duration(rateLimitRequests)), rateLimitRequests),
	}
}

// SetBaseURL overrides the API host (tests).
func (c *Client) SetBaseURL(u string) {
	c.baseURL = u
}

// SetUserAgent overrides the client identifier header.
func (c *Client) SetUserAgent(ua string) {
	c.userAgent = ua
}

// doRequest performs one HTTP call, re-issuing it on transport timeouts up
// to maxAttempts total attempts. Non-timeout failures are not retried.
func (c *Client) doRequest(ctx context.Context, method, endpoint string, params url.Values, body any) (*http.Response, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit error: %w", err)
	}

	fullURL := c.baseURL + endpoint
	if len(params) > 0 {
		fullURL += "?" + params.Encode()
	}

	var bodyBytes []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyBytes = b
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		var bodyReader io.Reader
		if bodyBytes != nil {
			bodyReader = bytes.NewReader(bodyBytes)
		}
		req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("Content-Type", "application/json")
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		resp, err := c.httpClient.Do(req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !isTimeout(err) {
			break
		}
	}
	return nil, fmt.Errorf("failed to send request: %w", lastErr)
}

func isTimeout(err error) bool {
	var nerr net.Error
	return errors.As(err, &nerr) && nerr.Timeout()
}

// doJSON executes a request and decodes a 2xx response body into out.
func (c *Client) doJSON(ctx context.Context, method, endpoint string, params url.Values, body any, out any) error {
	resp, err := c.doRequest(ctx, method, endpoint, params, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s: %w", endpoint, ErrNotFound)
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%s: %w", endpoint, ErrRateLimited)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		var apiErr apiError
		if json.Unmarshal(b, &apiErr) == nil && apiErr.Title != "" {
			return fmt.Errorf("api error (%d): %s: %s", resp.StatusCode, apiErr.Title, apiErr.Description)
		}
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(b))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("decode response: %w (body: %s)", err, string(b))
	}
	return nil
}

// apiError is the error shape the API returns on non-2xx statuses.
type apiError struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}
