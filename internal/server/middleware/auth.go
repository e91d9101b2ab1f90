package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/agentstation/worldfeed/internal/server/response"
)

// AuthConfig holds admin key configuration.
type AuthConfig struct {
	APIKey     string
	HeaderName string
}

// DefaultAuthConfig returns the default admin key configuration.
func DefaultAuthConfig(key string) AuthConfig {
	return AuthConfig{
		APIKey:     key,
		HeaderName: "X-Admin-Key",
	}
}

// Auth rejects requests that do not carry the configured key. It wraps the
// admin routes only. An empty key rejects everything.
func Auth(config AuthConfig, logger *zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := extractAPIKey(r, config.HeaderName)
			if config.APIKey == "" || key == "" ||
				subtle.ConstantTimeCompare([]byte(key), []byte(config.APIKey)) != 1 {
				logger.Warn().
					Str("path", r.URL.Path).
					Str("remote_addr", r.RemoteAddr).
					Bool("key_provided", key != "").
					Msg("Authentication failed")
				response.Unauthorized(w, "Invalid or missing admin key",
					"Provide the admin key in the "+config.HeaderName+" header")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// extractAPIKey reads the key from the named header or a bearer token.
func extractAPIKey(r *http.Request, header string) string {
	if key := r.Header.Get(header); key != "" {
		return key
	}
	if auth := r.Header.Get("Authorization"); auth != "" {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}
