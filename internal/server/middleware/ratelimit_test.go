package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterWindow(t *testing.T) {
	rl := newRateLimiter(3, time.Minute, nil)
	now := time.Unix(1475600000, 0)
	rl.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow("10.0.0.1"), "request %d", i)
	}
	assert.False(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.2"), "clients are limited separately")
	assert.Equal(t, 2, rl.Visitors())

	now = now.Add(time.Minute + time.Second)
	assert.True(t, rl.Allow("10.0.0.1"), "window reset")
}

func TestRateLimiterConcurrent(t *testing.T) {
	rl := newRateLimiter(50, time.Minute, nil)
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if rl.Allow("10.0.0.1") {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, allowed)
}

func TestRateLimitMiddleware(t *testing.T) {
	h := RateLimit(newRateLimiter(1, time.Minute, nil))(http.HandlerFunc(okHandler))

	do := func(remote, forwarded string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/regions", nil)
		req.RemoteAddr = remote
		if forwarded != "" {
			req.Header.Set("X-Forwarded-For", forwarded)
		}
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, do("10.0.0.1:1000", ""))
	assert.Equal(t, http.StatusTooManyRequests, do("10.0.0.1:2000", ""), "port is not part of the client key")
	assert.Equal(t, http.StatusOK, do("10.0.0.1:3000", "203.0.113.9, 10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, do("10.0.0.2:1000", "203.0.113.9"))
}

func TestClientAddr(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "not-a-hostport"
	assert.Equal(t, "not-a-hostport", clientAddr(req))
}
