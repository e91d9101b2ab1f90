package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/worldfeed/pkg/errors"
)

func TestPostJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"echo":"` + body["text"] + `"}`))
	}))
	defer srv.Close()

	c := New(srv.Client(), &BearerAuth{}, "tok")
	resp, err := c.PostJSON(context.Background(), srv.URL, map[string]string{"text": "hello"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.True(t, resp.OK())

	var out struct {
		Echo string `json:"echo"`
	}
	require.NoError(t, DecodeJSON(resp, &out))
	assert.Equal(t, "hello", out.Echo)
}

func TestEmptyKeySendsNoCredential(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	resp, err := New(nil, &BearerAuth{}, "").PostJSON(context.Background(), srv.URL, struct{}{})
	require.NoError(t, err)
	assert.False(t, resp.OK())
}

func TestBodyIsCapped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", maxBody+10)))
	}))
	defer srv.Close()

	resp, err := New(srv.Client(), nil, "").PostJSON(context.Background(), srv.URL, struct{}{})
	require.NoError(t, err)
	assert.Len(t, resp.Body, maxBody)
}

func TestDecodeJSONMalformed(t *testing.T) {
	err := DecodeJSON(&Response{StatusCode: http.StatusOK, Body: []byte("{")}, &struct{}{})
	var parseErr *errors.ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, "response", parseErr.File)
}
