package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestAuth(t *testing.T) {
	logger := zerolog.Nop()
	tests := []struct {
		name    string
		key     string
		headers map[string]string
		want    int
	}{
		{"header", "s3cret", map[string]string{"X-Admin-Key": "s3cret"}, http.StatusOK},
		{"bearer", "s3cret", map[string]string{"Authorization": "Bearer s3cret"}, http.StatusOK},
		{"raw authorization", "s3cret", map[string]string{"Authorization": "s3cret"}, http.StatusOK},
		{"wrong key", "s3cret", map[string]string{"X-Admin-Key": "guess"}, http.StatusUnauthorized},
		{"missing key", "s3cret", nil, http.StatusUnauthorized},
		{"unset key rejects all", "", map[string]string{"X-Admin-Key": ""}, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := Auth(DefaultAuthConfig(tt.key), &logger)(http.HandlerFunc(okHandler))
			req := httptest.NewRequest(http.MethodPut, "/api/v1/admin/tick", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
			if tt.want == http.StatusUnauthorized {
				assert.Contains(t, w.Body.String(), "X-Admin-Key")
			}
		})
	}
}
