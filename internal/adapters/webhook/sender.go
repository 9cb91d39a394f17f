// Package webhook delivers signed outbound event notifications.
package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// SignatureHeader carries the hex HMAC-SHA256 of the request body.
const SignatureHeader = "X-Webhook-Signature"

type Sender struct {
	client *resty.Client
	url    string
	secret []byte
}

func NewSender(url, secret string) *Sender {
	return &Sender{
		client: resty.New().SetTimeout(5 * time.Second),
		url:    url,
		secret: []byte(secret),
	}
}

type payload struct {
	Event     string         `json:"event"`
	Data      map[string]any `json:"data"`
	Timestamp time.Time      `json:"timestamp"`
}

func (s *Sender) Send(ctx context.Context, event string, data map[string]any) error {
	if s.url == "" {
		return nil
	}
	body, err := json.Marshal(payload{Event: event, Data: data, Timestamp: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}
	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader(SignatureHeader, s.Sign(body)).
		SetBody(body).
		Post(s.url)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("webhook endpoint returned %s", resp.Status())
	}
	return nil
}

// Sign returns the hex HMAC-SHA256 of body under the shared secret.
func (s *Sender) Sign(body []byte) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
