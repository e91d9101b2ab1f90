package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"

	"github.com/agentstation/worldfeed/internal/server/response"
)

// RateLimiter allows a fixed number of requests per client and window.
// Idle clients expire from the visitor cache.
type RateLimiter struct {
	visitors *gocache.Cache
	mu       sync.Mutex
	limit    int
	window   time.Duration
	now      func() time.Time
	logger   *zerolog.Logger
}

// visitor tracks the window of a single client.
type visitor struct {
	tokens int
	reset  time.Time
}

// NewRateLimiter creates a limiter of limit requests per minute.
func NewRateLimiter(limit int, logger *zerolog.Logger) *RateLimiter {
	return newRateLimiter(limit, time.Minute, logger)
}

func newRateLimiter(limit int, window time.Duration, logger *zerolog.Logger) *RateLimiter {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &RateLimiter{
		visitors: gocache.New(10*window, 5*window),
		limit:    limit,
		window:   window,
		now:      time.Now,
		logger:   logger,
	}
}

// Allow reports whether a request of the client fits its window.
func (rl *RateLimiter) Allow(client string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	v, _ := rl.visitors.Get(client)
	vis, ok := v.(*visitor)
	if !ok || now.After(vis.reset) {
		vis = &visitor{tokens: rl.limit, reset: now.Add(rl.window)}
	}
	rl.visitors.SetDefault(client, vis)

	if vis.tokens <= 0 {
		return false
	}
	vis.tokens--
	return true
}

// Visitors returns the number of tracked clients.
func (rl *RateLimiter) Visitors() int {
	return rl.visitors.ItemCount()
}

// RateLimit middleware limits requests per client address.
func RateLimit(rl *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			client := clientAddr(r)
			if !rl.Allow(client) {
				rl.logger.Warn().
					Str("client", client).
					Str("path", r.URL.Path).
					Msg("Rate limit exceeded")
				response.RateLimited(w, "Too many requests. Please try again later.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientAddr returns the first X-Forwarded-For hop or the remote host.
func clientAddr(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
