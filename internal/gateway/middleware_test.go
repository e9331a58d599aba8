package gateway

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/volumeee/zenclaw-sub000/internal/logging"
)

func serveThrough(h http.Handler, method, origin, requestID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/health", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	if requestID != "" {
		req.Header.Set(requestIDHeader, requestID)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestWithMiddleware_RequestID(t *testing.T) {
	var seen string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r.Context())
		w.WriteHeader(http.StatusTeapot)
	})
	h := withMiddleware(inner, logging.New(nil, "silent"), nil)

	rr := serveThrough(h, http.MethodGet, "", "")
	assert.Equal(t, http.StatusTeapot, rr.Code)
	require.NotEmpty(t, seen)
	assert.Equal(t, seen, rr.Header().Get(requestIDHeader))

	rr = serveThrough(h, http.MethodGet, "", "trace-42")
	assert.Equal(t, "trace-42", rr.Header().Get(requestIDHeader))
	assert.Equal(t, "trace-42", seen)
}

func TestWithMiddleware_CORS(t *testing.T) {
	reached := false
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { reached = true })

	tests := []struct {
		name    string
		origins []string
		origin  string
		allowed bool
	}{
		{"no allow list", nil, "http://localhost:3000", false},
		{"wildcard", []string{"*"}, "http://localhost:3000", true},
		{"exact", []string{"https://app.example.com"}, "https://app.example.com", true},
		{"other origin", []string{"https://app.example.com"}, "https://evil.example.net", false},
		{"subdomain pattern", []string{"https://*.example.com"}, "https://ops.example.com", true},
		{"pattern needs a subdomain", []string{"https://*.example.com"}, "https://.example.com", false},
		{"pattern checks scheme", []string{"https://*.example.com"}, "http://ops.example.com", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := withMiddleware(inner, logging.New(nil, "silent"), tt.origins)
			rr := serveThrough(h, http.MethodGet, tt.origin, "")
			if tt.allowed {
				assert.Equal(t, tt.origin, rr.Header().Get("Access-Control-Allow-Origin"))
			} else {
				assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
			}
		})
	}
	assert.True(t, reached)
}

func TestWithMiddleware_PreflightShortCircuits(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("preflight reached the handler")
	})
	h := withMiddleware(inner, logging.New(nil, "silent"), []string{"*"})

	rr := serveThrough(h, http.MethodOptions, "http://localhost:3000", "")
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Empty(t, rr.Body.String())
	assert.Contains(t, rr.Header().Get("Access-Control-Allow-Headers"), requestIDHeader)
}

func TestStatusWriter_HijackUnsupported(t *testing.T) {
	sw := &statusWriter{ResponseWriter: httptest.NewRecorder(), status: http.StatusOK}
	_, _, err := sw.Hijack()
	assert.Error(t, err)
	assert.Equal(t, http.StatusOK, sw.status)
}
