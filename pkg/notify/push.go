package notify

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/agentstation/worldfeed/internal/transport"
	"github.com/agentstation/worldfeed/pkg/errors"
)

// DefaultGCMEndpoint is the legacy GCM HTTP send endpoint.
const DefaultGCMEndpoint = "https://gcm-http.googleapis.com/gcm/send"

// maxTTL is the longest time to live the push service accepts.
const maxTTL = 4 * 7 * 24 * time.Hour

// Device errors that mean the registration is gone for good.
const (
	ErrorInvalidRegistration = "InvalidRegistration"
	ErrorNotRegistered       = "NotRegistered"
)

// Message is one push request to a page of devices.
type Message struct {
	IDs         []string
	CollapseKey string
	TTL         time.Duration
	Data        map[string]any
}

// DeviceResult is the outcome for one device, in request order.
type DeviceResult struct {
	MessageID string `json:"message_id,omitempty"`
	// CanonicalID replaces the id the message was sent to.
	CanonicalID string `json:"registration_id,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Gone reports whether the device should be removed from the registry.
func (r DeviceResult) Gone() bool {
	return r.Error == ErrorInvalidRegistration || r.Error == ErrorNotRegistered
}

// Result is the response to one Message.
type Result struct {
	Success int            `json:"success"`
	Failure int            `json:"failure"`
	Results []DeviceResult `json:"results"`
}

// Pusher delivers messages to devices.
type Pusher interface {
	Push(ctx context.Context, msg Message) (Result, error)
}

// GCMPusher sends messages through the GCM HTTP API.
type GCMPusher struct {
	endpoint string
	key      string
	client   *http.Client
	http     *transport.Client
}

// GCMOption configures a GCMPusher.
type GCMOption func(*GCMPusher)

// WithGCMEndpoint overrides the send endpoint.
func WithGCMEndpoint(endpoint string) GCMOption {
	return func(p *GCMPusher) { p.endpoint = endpoint }
}

// WithGCMClient overrides the HTTP client.
func WithGCMClient(client *http.Client) GCMOption {
	return func(p *GCMPusher) { p.client = client }
}

// NewGCMPusher creates a GCM pusher authenticating with the server key.
func NewGCMPusher(key string, opts ...GCMOption) *GCMPusher {
	p := &GCMPusher{
		endpoint: DefaultGCMEndpoint,
		key:      key,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.http = transport.New(p.client, &transport.HeaderAuth{Prefix: "key="}, key)
	return p
}

type gcmRequest struct {
	RegistrationIDs []string       `json:"registration_ids"`
	CollapseKey     string         `json:"collapse_key,omitempty"`
	TimeToLive      int64          `json:"time_to_live,omitempty"`
	Data            map[string]any `json:"data"`
}

// Push implements Pusher.
func (p *GCMPusher) Push(ctx context.Context, msg Message) (Result, error) {
	resp, err := p.http.PostJSON(ctx, p.endpoint, gcmRequest{
		RegistrationIDs: msg.IDs,
		CollapseKey:     msg.CollapseKey,
		TimeToLive:      int64(clampTTL(msg.TTL) / time.Second),
		Data:            msg.Data,
	})
	if err != nil {
		return Result{}, errors.WrapNotification("gcm", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Result{}, errors.NewNotificationError("gcm", resp.StatusCode, fmt.Errorf("%s", bytes.TrimSpace(resp.Body)))
	}

	var res Result
	if err := transport.DecodeJSON(resp, &res); err != nil {
		return Result{}, err
	}
	return res, nil
}

func clampTTL(ttl time.Duration) time.Duration {
	switch {
	case ttl <= 0:
		return 0
	case ttl > maxTTL:
		return maxTTL
	default:
		return ttl
	}
}
