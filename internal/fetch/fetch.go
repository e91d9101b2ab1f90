// Package fetch downloads world state feeds over HTTP.
package fetch

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/agentstation/worldfeed/pkg/constants"
	"github.com/agentstation/worldfeed/pkg/errors"
	"github.com/agentstation/worldfeed/pkg/worldstate"
)

// Client fetches feeds with a bounded timeout and size.
type Client struct {
	http      *http.Client
	timeout   time.Duration
	maxSize   int64
	userAgent string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

// WithTimeout bounds a single fetch.
func WithTimeout(d time.Duration) Option {
	return func(cl *Client) {
		if d > 0 {
			cl.timeout = d
		}
	}
}

// WithMaxSize caps the accepted payload size in bytes.
func WithMaxSize(n int64) Option {
	return func(cl *Client) {
		if n > 0 {
			cl.maxSize = n
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(cl *Client) { cl.userAgent = ua }
}

// New creates a Client.
func New(opts ...Option) *Client {
	c := &Client{
		http:      &http.Client{},
		timeout:   constants.DefaultFetchTimeout,
		maxSize:   constants.MaxFeedSize,
		userAgent: "worldfeed",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch downloads the feed of a region. Transport failures, timeouts and
// non-2xx responses are reported as a FetchError.
func (c *Client) Fetch(ctx context.Context, region worldstate.Region, url string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.NewFetchError(region.String(), url, 0, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.NewFetchError(region.String(), url, 0, timeout(err))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, errors.NewFetchError(region.String(), url, resp.StatusCode, nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxSize+1))
	if err != nil {
		return nil, errors.NewFetchError(region.String(), url, 0, timeout(err))
	}
	if int64(len(body)) > c.maxSize {
		return nil, errors.NewFetchError(region.String(), url, 0, fmt.Errorf("feed exceeds %d bytes", c.maxSize))
	}
	return body, nil
}

// timeout marks deadline failures with ErrTimeout.
func timeout(err error) error {
	if stderrors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", errors.ErrTimeout, err)
	}
	return err
}
