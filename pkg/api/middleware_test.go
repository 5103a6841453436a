package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSecurityHeaders(t *testing.T) {
	srv := NewServer(testConfig(t), &stubService{}, nil)

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/analyses/any/status", nil, "")

	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "strict-origin-when-cross-origin", rec.Header().Get("Referrer-Policy"))
	assert.Equal(t, "camera=(), microphone=(), geolocation=()", rec.Header().Get("Permissions-Policy"))
}

func TestSecurityHeadersOnUnmatchedRoute(t *testing.T) {
	srv := NewServer(testConfig(t), &stubService{}, nil)

	rec := doRequest(t, srv, http.MethodGet, "/definitely/not/a/route", nil, "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}
