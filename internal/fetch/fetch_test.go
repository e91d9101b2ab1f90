package fetch

import (
	"context"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/worldfeed/pkg/errors"
	"github.com/agentstation/worldfeed/pkg/worldstate"
)

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Equal(t, "worldfeed-test", r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(`{"Time":1}`))
	}))
	defer srv.Close()

	c := New(WithHTTPClient(srv.Client()), WithUserAgent("worldfeed-test"))
	body, err := c.Fetch(context.Background(), worldstate.RegionPC, srv.URL)
	require.NoError(t, err)
	assert.Equal(t, `{"Time":1}`, string(body))
}

func TestFetchStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := New(WithHTTPClient(srv.Client())).Fetch(context.Background(), worldstate.RegionPS4, srv.URL)
	require.Error(t, err)
	assert.True(t, errors.IsFetch(err))

	var ferr *errors.FetchError
	require.ErrorAs(t, err, &ferr)
	assert.Equal(t, http.StatusServiceUnavailable, ferr.StatusCode)
	assert.Equal(t, "ps4", ferr.Region)
}

func TestFetchTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	_, err := New(WithHTTPClient(srv.Client()), WithTimeout(20*time.Millisecond)).
		Fetch(context.Background(), worldstate.RegionPC, srv.URL)
	require.Error(t, err)
	assert.True(t, errors.IsFetch(err))
	assert.True(t, stderrors.Is(err, errors.ErrTimeout))
}

func TestFetchSizeLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 64)))
	}))
	defer srv.Close()

	c := New(WithHTTPClient(srv.Client()), WithMaxSize(32))
	_, err := c.Fetch(context.Background(), worldstate.RegionPC, srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds 32 bytes")

	body, err := New(WithHTTPClient(srv.Client()), WithMaxSize(64)).Fetch(context.Background(), worldstate.RegionPC, srv.URL)
	require.NoError(t, err)
	assert.Len(t, body, 64)
}

func TestFetchBadURL(t *testing.T) {
	_, err := New().Fetch(context.Background(), worldstate.RegionPC, "://nope")
	assert.True(t, errors.IsFetch(err))
}
