// Package transport provides the HTTP client of outbound JSON requests:
// push service calls and webhook posts.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/agentstation/worldfeed/pkg/constants"
	"github.com/agentstation/worldfeed/pkg/errors"
)

// DefaultHTTPTimeout is the default timeout for HTTP requests.
var DefaultHTTPTimeout = constants.DefaultHTTPTimeout

// maxBody caps how much of a response is read.
const maxBody = 1 << 20

// Client sends JSON requests with a credential applied.
type Client struct {
	http *http.Client
	auth Authenticator
	key  string
}

// New creates a client. A nil httpClient uses DefaultHTTPTimeout; a nil
// auth or an empty key sends no credential.
func New(httpClient *http.Client, auth Authenticator, key string) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	if auth == nil {
		auth = &NoAuth{}
	}
	return &Client{http: httpClient, auth: auth, key: key}
}

// Response is a fully read response.
type Response struct {
	StatusCode int
	Body       []byte
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode <= 299
}

// Do sends req with the credential and common headers applied and reads
// up to 1 MiB of the response body.
func (c *Client) Do(req *http.Request) (*Response, error) {
	if c.key != "" {
		c.auth.Apply(req, c.key)
	}
	req.Header.Set("Accept", "application/json")
	if req.Method == http.MethodPost || req.Method == http.MethodPut || req.Method == http.MethodPatch {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, errors.WrapIO("read", "response body", err)
	}
	return &Response{StatusCode: resp.StatusCode, Body: body}, nil
}

// PostJSON marshals v and posts it to url.
func (c *Client) PostJSON(ctx context.Context, url string, v any) (*Response, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, errors.WrapParse("json", "request", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	return c.Do(req)
}

// DecodeJSON decodes the body of a response.
func DecodeJSON(resp *Response, target any) error {
	if err := json.Unmarshal(resp.Body, target); err != nil {
		return errors.WrapParse("json", "response", err)
	}
	return nil
}
