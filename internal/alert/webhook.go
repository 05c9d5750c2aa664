package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultSendTimeout = 10 * time.Second
	defaultMaxRetries  = 2
	defaultBackoff     = time.Second
)

// Sender delivers a formatted message to the chat transport.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// WebhookOption configures a WebhookSender.
type WebhookOption func(*WebhookSender)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) WebhookOption {
	return func(s *WebhookSender) { s.client = c }
}

// WithMaxRetries sets how many times a 5xx response is retried. Default: 2.
func WithMaxRetries(n int) WebhookOption {
	return func(s *WebhookSender) { s.maxRetries = n }
}

// WithBackoff sets the base delay between retries, doubled per attempt.
// Default: 1s.
func WithBackoff(d time.Duration) WebhookOption {
	return func(s *WebhookSender) { s.backoff = d }
}

// WebhookSender POSTs messages as JSON to an incoming-webhook URL.
type WebhookSender struct {
	url        string
	client     *http.Client
	maxRetries int
	backoff    time.Duration
}

// NewWebhookSender creates a sender targeting url.
func NewWebhookSender(url string, opts ...WebhookOption) *WebhookSender {
	s := &WebhookSender{
		url:        url,
		client:     &http.Client{Timeout: defaultSendTimeout},
		maxRetries: defaultMaxRetries,
		backoff:    defaultBackoff,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send posts msg. Any non-2xx response is an error; 5xx responses are
// retried with exponential backoff until ctx is done.
func (s *WebhookSender) Send(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("webhook: marshal: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			delay := s.backoff * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				return fmt.Errorf("webhook: %w (last error: %v)", ctx.Err(), lastErr)
			case <-time.After(delay):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("webhook: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.client.Do(req)
		if err != nil {
			return fmt.Errorf("webhook: %w", err)
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}

		lastErr = fmt.Errorf("webhook: HTTP %d", resp.StatusCode)

		// Only retry on 5xx server errors.
		if resp.StatusCode < 500 {
			return lastErr
		}
	}
	return lastErr
}
