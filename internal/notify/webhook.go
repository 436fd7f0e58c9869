package notify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// DefaultWebhookTimeout bounds one webhook delivery.
const DefaultWebhookTimeout = 10 * time.Second

// webhookPayload matches the bot gateway's sendMessage body.
type webhookPayload struct {
	ChatID     int64  `json:"chat_id"`
	Text       string `json:"text"`
	DeliveryID string `json:"delivery_id"`
	PacketID   int64  `json:"packet_id,omitempty"`
	Kind       string `json:"type"`
}

// Webhook delivers messages by POSTing them to a bot gateway.
type Webhook struct {
	url    string
	token  string
	client *http.Client
}

// NewWebhook creates a webhook deliverer. A nil client gets timeout applied.
func NewWebhook(url, token string, timeout time.Duration, client *http.Client) *Webhook {
	if timeout <= 0 {
		timeout = DefaultWebhookTimeout
	}
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &Webhook{url: url, token: token, client: client}
}

// Deliver posts d to the gateway.
func (w *Webhook) Deliver(ctx context.Context, d Delivery) error {
	body, err := json.Marshal(webhookPayload{
		ChatID:     d.UserID,
		Text:       d.Text,
		DeliveryID: uuid.NewString(),
		PacketID:   d.PacketID,
		Kind:       d.Kind,
	})
	if err != nil {
		return fmt.Errorf("encode webhook body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if w.token != "" {
		req.Header.Set("Authorization", "Bearer "+w.token)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: gateway returned %s", ErrDeliveryRejected, resp.Status)
	}
	return nil
}
