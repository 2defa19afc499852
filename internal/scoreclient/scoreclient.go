// Package scoreclient calls the scoring service's /predict_confidence
// endpoint with a bounded timeout and retry policy.
package scoreclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// PredictPath is the scoring service endpoint.
const PredictPath = "/predict_confidence"

// ErrNoConfidence is returned when a 2xx response carries no confidence.
var ErrNoConfidence = errors.New("scoreclient: response has no confidence")

// Client posts statements to the scoring service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxRetries int
	backoff    time.Duration
}

// APIError represents a non-2xx HTTP response.
type APIError struct {
	StatusCode int
	Body       string // first 512 bytes
	retryAfter string // Retry-After header value for 429s
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// Prediction is the scoring service's answer for one statement.
type Prediction struct {
	Confidence float64
	Sources    string
	Label      *int // classification only
}

type predictRequest struct {
	Text string `json:"text"`
}

type predictResponse struct {
	Confidence *float64 `json:"confidence"`
	Sources    string   `json:"sources"`
	Label      *int     `json:"label"`
}

// Option configures Client behavior.
type Option func(*Client)

// WithTimeout sets the per-attempt HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithMaxRetries sets how many times a failed attempt is retried.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.maxRetries = n
		}
	}
}

// WithBackoff sets the delay before the first retry; it doubles after each.
func WithBackoff(d time.Duration) Option {
	return func(c *Client) {
		if d >= 0 {
			c.backoff = d
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client. A timeout set by
// WithTimeout applies to whichever client is in place when it runs.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// New creates a Client for the scoring service at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		maxRetries: 2,
		backoff:    500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// PredictConfidence scores text. Transport failures, 429 and 5xx responses
// are retried with exponential backoff; other non-2xx responses return
// *APIError at once.
func (c *Client) PredictConfidence(ctx context.Context, text string) (*Prediction, error) {
	payload, err := json.Marshal(predictRequest{Text: text})
	if err != nil {
		return nil, fmt.Errorf("scoreclient: encode request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			t := time.NewTimer(c.backoffDelay(attempt, lastErr))
			select {
			case <-ctx.Done():
				t.Stop()
				return nil, ctx.Err()
			case <-t.C:
			}
		}

		pred, retry, err := c.do(ctx, payload)
		if err == nil {
			return pred, nil
		}
		if !retry {
			return nil, err
		}
		lastErr = err
	}

	return nil, lastErr
}

// do performs one attempt and reports whether its failure may be retried.
func (c *Client) do(ctx context.Context, payload []byte) (*Prediction, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+PredictPath, bytes.NewReader(payload))
	if err != nil {
		return nil, false, fmt.Errorf("scoreclient: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		return nil, true, fmt.Errorf("scoreclient: %w", err)
	}

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, true, fmt.Errorf("scoreclient: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyStr := string(body)
		if len(bodyStr) > 512 {
			bodyStr = bodyStr[:512]
		}
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: bodyStr}
		if resp.StatusCode == http.StatusTooManyRequests {
			apiErr.retryAfter = resp.Header.Get("Retry-After")
			return nil, true, apiErr
		}
		return nil, resp.StatusCode >= 500, apiErr
	}

	var out predictResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, false, fmt.Errorf("scoreclient: decode response: %w", err)
	}
	if out.Confidence == nil {
		return nil, false, ErrNoConfidence
	}
	return &Prediction{Confidence: *out.Confidence, Sources: out.Sources, Label: out.Label}, false, nil
}

// maxRetryAfter bounds a Retry-After wait when no per-attempt timeout is set.
const maxRetryAfter = 30 * time.Second

// backoffDelay returns the wait duration before a retry attempt. A 429
// Retry-After is honoured up to the per-attempt timeout; longer values fall
// back to exponential backoff.
func (c *Client) backoffDelay(attempt int, lastErr error) time.Duration {
	exp := c.backoff << (attempt - 1)
	var apiErr *APIError
	if errors.As(lastErr, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests && apiErr.retryAfter != "" {
		if secs, err := strconv.Atoi(apiErr.retryAfter); err == nil && secs >= 0 {
			limit := c.httpClient.Timeout
			if limit <= 0 {
				limit = maxRetryAfter
			}
			if d := time.Duration(secs) * time.Second; d <= limit {
				return d
			}
		}
	}
	return exp
}
