package transport

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAuthenticators(t *testing.T) {
	tests := []struct {
		name   string
		auth   Authenticator
		header string
		want   string
		query  string
	}{
		{name: "none", auth: &NoAuth{}, header: "Authorization", want: ""},
		{name: "bearer", auth: &BearerAuth{}, header: "Authorization", want: "Bearer secret"},
		{name: "gcm key", auth: &HeaderAuth{Prefix: "key="}, header: "Authorization", want: "key=secret"},
		{name: "custom header", auth: &HeaderAuth{Header: "X-Api-Key"}, header: "X-Api-Key", want: "secret"},
		{name: "query", auth: &QueryAuth{Param: "key"}, query: "a=1&key=secret"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "http://example.com/send?a=1", nil)
			tt.auth.Apply(req, "secret")
			if tt.query != "" {
				assert.Equal(t, tt.query, req.URL.RawQuery)
				assert.Empty(t, req.Header.Get("Authorization"))
				return
			}
			assert.Equal(t, tt.want, req.Header.Get(tt.header))
		})
	}
}

func TestQueryAuthWithoutURL(t *testing.T) {
	req := &http.Request{Header: make(http.Header)}
	assert.NotPanics(t, func() { (&QueryAuth{Param: "key"}).Apply(req, "secret") })
}
