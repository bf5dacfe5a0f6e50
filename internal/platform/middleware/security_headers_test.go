package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func headersFor(t *testing.T, prefix, path string) http.Header {
	t.Helper()
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, path, nil), rec)
	if err := SecurityHeaders(prefix)(okHandler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return rec.Header()
}

func TestSecurityHeaders_Base(t *testing.T) {
	h := headersFor(t, "/files/", "/api/v1/health-metrics/my/dashboard")
	for _, kv := range baseHeaders {
		if got := h.Get(kv.name); got != kv.value {
			t.Errorf("%s = %q, want %q", kv.name, got, kv.value)
		}
	}
	if h.Get("Cache-Control") != "no-store" {
		t.Error("patient data must not be cached")
	}
}

func TestSecurityHeaders_ContentPolicy(t *testing.T) {
	tests := []struct {
		prefix, path, want string
	}{
		{"/files/", "/api/v1/prescriptions/my/list", apiCSP},
		{"/files/", "/files/patient_1/record.pdf", documentCSP},
		{"/files/", "/filesystem", apiCSP},
		{"", "/files/patient_1/record.pdf", apiCSP},
	}
	for _, tt := range tests {
		if got := headersFor(t, tt.prefix, tt.path).Get("Content-Security-Policy"); got != tt.want {
			t.Errorf("prefix %q path %q: CSP = %q, want %q", tt.prefix, tt.path, got, tt.want)
		}
	}
}

func TestSecurityHeaders_PropagatesHandlerError(t *testing.T) {
	c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	want := errors.New("handler failed")
	if err := SecurityHeaders("")(func(echo.Context) error { return want })(c); err != want {
		t.Errorf("got %v, want handler error", err)
	}
}
