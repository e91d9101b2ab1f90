package transport

import (
	"net/http"
)

// Authenticator applies a credential to an outbound request.
type Authenticator interface {
	Apply(req *http.Request, key string)
}

// NoAuth implements no authentication.
type NoAuth struct{}

// Apply implements the Authenticator interface for NoAuth.
func (a *NoAuth) Apply(_ *http.Request, _ string) {}

// BearerAuth sends the key as a bearer token.
type BearerAuth struct{}

// Apply implements the Authenticator interface for BearerAuth.
func (a *BearerAuth) Apply(req *http.Request, key string) {
	req.Header.Set("Authorization", "Bearer "+key)
}

// HeaderAuth sends the key in a header, behind an optional scheme prefix
// such as "key=" for the GCM API.
type HeaderAuth struct {
	Header string
	Prefix string
}

// Apply implements the Authenticator interface for HeaderAuth.
func (a *HeaderAuth) Apply(req *http.Request, key string) {
	header := a.Header
	if header == "" {
		header = "Authorization"
	}
	req.Header.Set(header, a.Prefix+key)
}

// QueryAuth sends the key as a query parameter.
type QueryAuth struct {
	Param string
}

// Apply implements the Authenticator interface for QueryAuth.
func (a *QueryAuth) Apply(req *http.Request, key string) {
	if req.URL == nil {
		return
	}
	query := req.URL.Query()
	query.Set(a.Param, key)
	req.URL.RawQuery = query.Encode()
}
