// Package notify delivers appointment reminders to an external webhook and
// records them as user notifications.
package notify

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
)

const (
	SignatureHeader = "X-Clinic-Signature"
	EventHeader     = "X-Clinic-Event"
	TimestampHeader = "X-Clinic-Timestamp"

	EventAppointmentReminder = "appointment.reminder"
)

// Event is the JSON body posted to the webhook.
type Event struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

func NewEvent(eventType string, data interface{}) (Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Event{}, fmt.Errorf("marshal event data: %w", err)
	}
	return Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      raw,
	}, nil
}

// SignPayload computes the hex HMAC-SHA256 of payload under secret.
func SignPayload(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a "sha256=<hex>" or bare hex signature.
func VerifySignature(payload []byte, secret, signature string) bool {
	if len(signature) > 7 && signature[:7] == "sha256=" {
		signature = signature[7:]
	}
	expected := SignPayload(payload, secret)
	return hmac.Equal([]byte(expected), []byte(signature))
}

type ClientOption func(*resty.Client)

// WithRetry overrides the retry policy.
func WithRetry(count int, wait, maxWait time.Duration) ClientOption {
	return func(c *resty.Client) {
		c.SetRetryCount(count).SetRetryWaitTime(wait).SetRetryMaxWaitTime(maxWait)
	}
}

func WithTimeout(d time.Duration) ClientOption {
	return func(c *resty.Client) { c.SetTimeout(d) }
}

// Client posts signed events to one webhook URL.
type Client struct {
	http   *resty.Client
	url    string
	secret string
}

func NewClient(url, secret string, opts ...ClientOption) *Client {
	rc := resty.New().
		SetTimeout(10*time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(1*time.Second).
		SetRetryMaxWaitTime(5*time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= http.StatusInternalServerError || r.StatusCode() == http.StatusTooManyRequests
		})
	for _, o := range opts {
		o(rc)
	}
	return &Client{http: rc, url: url, secret: secret}
}

// Send delivers ev. Any non-2xx final response is an error.
func (c *Client) Send(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	req := c.http.R().
		SetContext(ctx).
		SetHeader(EventHeader, ev.Type).
		SetHeader(TimestampHeader, strconv.FormatInt(ev.Timestamp.Unix(), 10)).
		SetBody(payload)
	if c.secret != "" {
		req.SetHeader(SignatureHeader, "sha256="+SignPayload(payload, c.secret))
	}

	resp, err := req.Post(c.url)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode())
	}
	return nil
}
