// Package webhook notifies client endpoints when an asynchronous crawl
// finishes.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Event types.
const (
	EventCrawlCompleted = "crawl.completed"
	EventCrawlFailed    = "crawl.failed"
)

// SignatureHeader carries the HMAC-SHA256 of the body as "sha256=<hex>".
const SignatureHeader = "X-Crawlkit-Signature"

// Event is the payload sent to webhook endpoints.
type Event struct {
	Type      string `json:"type"`
	JobID     string `json:"job_id"`
	Timestamp int64  `json:"timestamp"`
	Data      any    `json:"data"`
}

// Sender posts events. The zero value is not usable; use NewSender.
type Sender struct {
	client *http.Client
	delays []time.Duration
}

// NewSender creates a Sender whose requests time out after timeout and
// whose async deliveries retry after each of retryDelays.
func NewSender(timeout time.Duration, retryDelays ...time.Duration) *Sender {
	return &Sender{
		client: &http.Client{Timeout: timeout},
		delays: append([]time.Duration{0}, retryDelays...),
	}
}

var defaultSender = NewSender(10*time.Second, 1*time.Second, 5*time.Second, 30*time.Second)

// Deliver sends event with the default Sender.
func Deliver(ctx context.Context, url, secret string, event *Event) error {
	return defaultSender.Deliver(ctx, url, secret, event)
}

// DeliverAsync sends event in the background with the default Sender,
// retrying after 1s, 5s and 30s.
func DeliverAsync(url, secret string, event *Event) <-chan error {
	return defaultSender.DeliverAsync(url, secret, event)
}

// Sign returns the signature header value for body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether header is a valid signature of body.
func Verify(secret string, body []byte, header string) bool {
	if !strings.HasPrefix(header, "sha256=") {
		return false
	}
	return hmac.Equal([]byte(header), []byte(Sign(secret, body)))
}

// Deliver sends a webhook event synchronously. The body is signed when
// secret is non-empty.
func (s *Sender) Deliver(ctx context.Context, url, secret string, event *Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("webhook: marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Crawlkit-Webhook/1.0")
	if secret != "" {
		req.Header.Set(SignatureHeader, Sign(secret, body))
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: deliver: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook: endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// DeliverAsync sends event in the background, retrying on failure. The
// returned channel receives the final outcome and is then closed; callers
// may ignore it.
func (s *Sender) DeliverAsync(url, secret string, event *Event) <-chan error {
	done := make(chan error, 1)
	go func() {
		defer close(done)
		var err error
		for attempt, delay := range s.delays {
			if delay > 0 {
				time.Sleep(delay)
			}
			ctx, cancel := context.WithTimeout(context.Background(), s.client.Timeout)
			err = s.Deliver(ctx, url, secret, event)
			cancel()
			if err == nil {
				slog.Info("webhook delivered",
					"url", url,
					"event", event.Type,
					"job_id", event.JobID,
					"attempt", attempt+1,
				)
				done <- nil
				return
			}
			slog.Warn("webhook delivery failed",
				"url", url,
				"event", event.Type,
				"job_id", event.JobID,
				"attempt", attempt+1,
				"error", err,
			)
		}
		slog.Error("webhook delivery exhausted all retries",
			"url", url,
			"event", event.Type,
			"job_id", event.JobID,
		)
		done <- err
	}()
	return done
}
