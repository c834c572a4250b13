package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d0mkaaa/portfolio-api/pkg/config"
)

func TestRateLimitMiddleware(t *testing.T) {
	s := &server{}

	handler := s.rateLimitMiddleware(config.RateLimitTier{
		RequestsPerMinute: 1,
	})(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	do := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/repos", nil)
		req.Header.Set("X-Forwarded-For", ip)

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		return rec.Code
	}

	require.Equal(t, http.StatusOK, do("203.0.113.7"))
	assert.Equal(t, http.StatusTooManyRequests, do("203.0.113.7"))

	// Limits are tracked per client IP.
	assert.Equal(t, http.StatusOK, do("203.0.113.8"))
}

func TestExtractIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:5050"
	assert.Equal(t, "192.0.2.1", extractIP(req))

	req.Header.Set("X-Forwarded-For", "198.51.100.2, 10.0.0.1")
	assert.Equal(t, "198.51.100.2", extractIP(req))
}
