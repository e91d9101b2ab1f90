package notify

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"github.com/agentstation/worldfeed/internal/transport"
	"github.com/agentstation/worldfeed/pkg/errors"
)

// Poster publishes a status update to a named channel.
type Poster interface {
	Post(ctx context.Context, channel, text string) error
}

// WebhookPoster posts {"channel": ..., "text": ...} documents to a URL.
type WebhookPoster struct {
	url   string
	token string
	http  *transport.Client
}

// WebhookOption configures a WebhookPoster.
type WebhookOption func(*WebhookPoster)

// WithBearerToken authenticates posts with a bearer token.
func WithBearerToken(token string) WebhookOption {
	return func(w *WebhookPoster) { w.token = token }
}

// NewWebhookPoster creates a poster for the webhook URL. A nil client
// uses the default timeout.
func NewWebhookPoster(url string, client *http.Client, opts ...WebhookOption) *WebhookPoster {
	w := &WebhookPoster{url: url}
	for _, opt := range opts {
		opt(w)
	}
	w.http = transport.New(client, &transport.BearerAuth{}, w.token)
	return w
}

type webhookPost struct {
	Channel string `json:"channel"`
	Text    string `json:"text"`
}

// Post implements Poster.
func (w *WebhookPoster) Post(ctx context.Context, channel, text string) error {
	resp, err := w.http.PostJSON(ctx, w.url, webhookPost{Channel: channel, Text: text})
	if err != nil {
		return errors.WrapNotification(channel, err)
	}
	if !resp.OK() {
		return errors.NewNotificationError(channel, resp.StatusCode, fmt.Errorf("%s", bytes.TrimSpace(resp.Body)))
	}
	return nil
}
