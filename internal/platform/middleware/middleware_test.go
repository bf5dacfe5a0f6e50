package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/carebridge/clinic/internal/platform/apperr"
	"github.com/carebridge/clinic/internal/platform/auth"
)

func TestRequestID_GeneratesNew(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := func(c echo.Context) error {
		rid, _ := c.Get("request_id").(string)
		if rid == "" {
			t.Error("expected request_id to be generated")
		}
		return c.String(http.StatusOK, "ok")
	}

	if err := RequestID()(handler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Header().Get(RequestIDHeader) == "" {
		t.Error("expected X-Request-ID response header")
	}
}

func TestRequestID_PreservesExisting(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "my-custom-id")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	_ = RequestID()(okHandler)(c)

	if c.Get("request_id") != "my-custom-id" {
		t.Errorf("expected my-custom-id, got %v", c.Get("request_id"))
	}
	if rec.Header().Get(RequestIDHeader) != "my-custom-id" {
		t.Errorf("expected my-custom-id in response header, got %s", rec.Header().Get(RequestIDHeader))
	}
}

func TestRequestID_ReplacesUnsafeValue(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "bad id\nwith newline")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	_ = RequestID()(okHandler)(c)

	if got := rec.Header().Get(RequestIDHeader); got == "bad id\nwith newline" || got == "" {
		t.Errorf("expected a generated id, got %q", got)
	}
	if validRequestID(strings.Repeat("a", maxRequestIDLen+1)) {
		t.Error("expected overlong id to be rejected")
	}
}

func logLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &m); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	return m
}

func TestLogger_LogsRequest(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/appointments/my/list", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("request_id", "req-1")

	if err := Logger(logger)(okHandler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	line := logLine(t, &buf)
	if line["level"] != "info" || line["request_id"] != "req-1" || line["status"] != float64(200) {
		t.Errorf("unexpected log line: %v", line)
	}
	if line["path"] != "/api/v1/appointments/my/list" {
		t.Errorf("unexpected path: %v", line["path"])
	}
}

func TestLogger_ErrorStatus(t *testing.T) {
	tests := []struct {
		err    error
		status float64
	}{
		{apperr.NotFound("Appointment not found"), 404},
		{echo.NewHTTPError(http.StatusForbidden, "Access denied"), 403},
		{errors.New("boom"), 500},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		e := echo.New()
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/x", nil), httptest.NewRecorder())

		err := Logger(zerolog.New(&buf))(func(c echo.Context) error { return tt.err })(c)
		if err != tt.err {
			t.Errorf("expected error to pass through, got %v", err)
		}
		line := logLine(t, &buf)
		if line["level"] != "error" || line["status"] != tt.status {
			t.Errorf("for %v: unexpected log line %v", tt.err, line)
		}
	}
}

func TestRecovery_CatchesPanic(t *testing.T) {
	var buf bytes.Buffer
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/prescriptions", nil)
	uid := uuid.New()
	req = req.WithContext(auth.WithPrincipal(req.Context(), &auth.Principal{UserID: uid, Role: auth.RoleDoctor}))
	c := e.NewContext(req, httptest.NewRecorder())
	c.Set("request_id", "rid-panic")

	err := Recovery(zerolog.New(&buf))(func(c echo.Context) error {
		panic("nil prescription item")
	})(c)

	if err == nil {
		t.Fatal("expected error from recovered panic")
	}
	if apperr.KindOf(err) != apperr.KindInternal {
		t.Errorf("expected internal error, got %v", err)
	}
	if !strings.Contains(err.Error(), "nil prescription item") {
		t.Errorf("panic value not wrapped: %v", err)
	}
	for _, want := range []string{"nil prescription item", "rid-panic", uid.String(), `"role":"doctor"`, "handler panicked"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("log missing %q: %s", want, buf.String())
		}
	}
}

func TestRecovery_ReraisesAbort(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/stream", nil), httptest.NewRecorder())

	defer func() {
		if r := recover(); r != http.ErrAbortHandler {
			t.Errorf("expected ErrAbortHandler to propagate, got %v", r)
		}
	}()
	_ = Recovery(zerolog.Nop())(func(c echo.Context) error {
		panic(http.ErrAbortHandler)
	})(c)
}

func TestRecovery_PassesThrough(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/ok", nil), httptest.NewRecorder())

	if err := Recovery(zerolog.Nop())(okHandler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
