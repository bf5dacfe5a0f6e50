package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/carebridge/clinic/internal/platform/apperr"
	"github.com/carebridge/clinic/internal/platform/auth"
)

// mockRecorder collects audit entries for assertions.
type mockRecorder struct {
	mu      sync.Mutex
	entries []AuditEntry
	err     error // if set, RecordAccess returns this error
}

func (m *mockRecorder) RecordAccess(entry AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return m.err
}

func (m *mockRecorder) last() AuditEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries[len(m.entries)-1]
}

func (m *mockRecorder) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func newTestContext(method, path string, opts ...func(*http.Request)) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, path, nil)
	for _, opt := range opts {
		opt(req)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	return c, rec
}

func withPrincipal(p *auth.Principal) func(*http.Request) {
	return func(req *http.Request) {
		*req = *req.WithContext(auth.WithPrincipal(req.Context(), p))
	}
}

func okHandler(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func TestAudit_RecordRead(t *testing.T) {
	logger := zerolog.New(os.Stderr)
	rec := &mockRecorder{}
	userID := uuid.New()
	recordID := uuid.New().String()
	patientID := uuid.New()

	c, _ := newTestContext(http.MethodGet, "/api/v1/records/"+recordID,
		withPrincipal(&auth.Principal{UserID: userID, Role: auth.RolePatient, PatientID: &patientID}),
	)
	c.SetParamNames("id")
	c.SetParamValues(recordID)
	c.Set("request_id", "req-abc")

	if err := Audit(logger, rec)(okHandler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.count() != 1 {
		t.Fatalf("expected 1 audit entry, got %d", rec.count())
	}
	entry := rec.last()
	if entry.UserID != userID.String() {
		t.Errorf("expected user_id %q, got %q", userID, entry.UserID)
	}
	if entry.Role != auth.RolePatient {
		t.Errorf("expected role patient, got %q", entry.Role)
	}
	if entry.ResourceType != "records" {
		t.Errorf("expected resource_type 'records', got %q", entry.ResourceType)
	}
	if entry.ResourceID != recordID {
		t.Errorf("expected resource_id %q, got %q", recordID, entry.ResourceID)
	}
	if entry.PatientID != patientID.String() {
		t.Errorf("expected patient_id from principal, got %q", entry.PatientID)
	}
	if entry.Action != "read" {
		t.Errorf("expected action 'read', got %q", entry.Action)
	}
	if entry.RequestID != "req-abc" {
		t.Errorf("expected request_id 'req-abc', got %q", entry.RequestID)
	}
	if entry.StatusCode != http.StatusOK {
		t.Errorf("expected status 200, got %d", entry.StatusCode)
	}
}

func TestAudit_DoctorCreateWithPatientParam(t *testing.T) {
	logger := zerolog.New(os.Stderr)
	rec := &mockRecorder{}
	patientID := uuid.New().String()

	c, _ := newTestContext(http.MethodPost, "/api/v1/health-metrics/patient/"+patientID,
		withPrincipal(&auth.Principal{UserID: uuid.New(), Role: auth.RoleDoctor}),
	)
	c.SetParamNames("patient_id")
	c.SetParamValues(patientID)

	if err := Audit(logger, rec)(okHandler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	entry := rec.last()
	if entry.Action != "create" {
		t.Errorf("expected action 'create', got %q", entry.Action)
	}
	if entry.ResourceType != "health-metrics" {
		t.Errorf("expected resource_type 'health-metrics', got %q", entry.ResourceType)
	}
	if entry.PatientID != patientID {
		t.Errorf("expected patient_id %q, got %q", patientID, entry.PatientID)
	}
}

func TestAudit_StatusFromAppError(t *testing.T) {
	logger := zerolog.New(os.Stderr)
	rec := &mockRecorder{}

	c, _ := newTestContext(http.MethodDelete, "/api/v1/medical-conditions/x",
		withPrincipal(&auth.Principal{UserID: uuid.New(), Role: auth.RoleAdmin}),
	)

	err := Audit(logger, rec)(func(c echo.Context) error {
		return apperr.NotFound("Condition not found")
	})(c)

	if err == nil {
		t.Fatal("expected handler error to propagate")
	}
	entry := rec.last()
	if entry.Action != "delete" {
		t.Errorf("expected action 'delete', got %q", entry.Action)
	}
	if entry.StatusCode != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", entry.StatusCode)
	}
}

func TestAudit_SkipsNonAuditablePaths(t *testing.T) {
	logger := zerolog.New(os.Stderr)
	rec := &mockRecorder{}

	paths := []string{"/health", "/files/a.pdf", "/", "/api/v1/auth/login", "/api/v1/auth/revoke"}
	for _, path := range paths {
		c, _ := newTestContext(http.MethodGet, path)
		if err := Audit(logger, rec)(okHandler)(c); err != nil {
			t.Fatalf("unexpected error for path %s: %v", path, err)
		}
	}

	if rec.count() != 0 {
		t.Errorf("expected 0 audit entries for non-auditable paths, got %d", rec.count())
	}
}

func TestAudit_RecorderError_DoesNotBreakRequest(t *testing.T) {
	logger := zerolog.New(os.Stderr)
	rec := &mockRecorder{err: errors.New("database connection failed")}

	c, _ := newTestContext(http.MethodGet, "/api/v1/prescriptions/my/active")

	if err := Audit(logger, rec)(okHandler)(c); err != nil {
		t.Fatalf("expected no error even when recorder fails, got: %v", err)
	}
}

func TestAudit_NoRecorder_LogOnly(t *testing.T) {
	logger := zerolog.New(os.Stderr)
	c, _ := newTestContext(http.MethodGet, "/api/v1/appointments/my/list")

	if err := Audit(logger)(okHandler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAudit_PatientIDFromQuery(t *testing.T) {
	logger := zerolog.New(os.Stderr)
	rec := &mockRecorder{}
	patientID := uuid.New().String()

	c, _ := newTestContext(http.MethodGet, "/api/v1/appointments/search?patient_id="+patientID,
		withPrincipal(&auth.Principal{UserID: uuid.New(), Role: auth.RoleDoctor}),
	)

	if err := Audit(logger, rec)(okHandler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := rec.last().PatientID; got != patientID {
		t.Errorf("expected patient_id %q, got %q", patientID, got)
	}
}

func TestAudit_CapturesIPAndUserAgent(t *testing.T) {
	logger := zerolog.New(os.Stderr)
	rec := &mockRecorder{}

	c, _ := newTestContext(http.MethodGet, "/api/v1/notifications/my",
		func(req *http.Request) {
			req.Header.Set("User-Agent", "Clinic-Client/1.0")
		},
	)

	if err := Audit(logger, rec)(okHandler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	entry := rec.last()
	if entry.UserAgent != "Clinic-Client/1.0" {
		t.Errorf("expected user_agent 'Clinic-Client/1.0', got %q", entry.UserAgent)
	}
	if entry.IPAddress == "" {
		t.Error("expected non-empty IP address")
	}
}

func TestIsAuditablePath(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/api/v1/appointments", true},
		{"/api/v1/records/abc", true},
		{"/api/v1/auth/login", false},
		{"/health", false},
		{"/", false},
		{"/api/v1", false},
		{"/files/x.pdf", false},
	}
	for _, tt := range tests {
		if got := isAuditablePath(tt.path); got != tt.want {
			t.Errorf("isAuditablePath(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestHttpMethodToAction(t *testing.T) {
	tests := []struct {
		method string
		want   string
	}{
		{http.MethodGet, "read"},
		{http.MethodHead, "read"},
		{http.MethodPost, "create"},
		{http.MethodPut, "update"},
		{http.MethodPatch, "update"},
		{http.MethodDelete, "delete"},
		{http.MethodOptions, "read"},
	}
	for _, tt := range tests {
		if got := httpMethodToAction(tt.method); got != tt.want {
			t.Errorf("httpMethodToAction(%q) = %q, want %q", tt.method, got, tt.want)
		}
	}
}

func TestExtractResourceType(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/api/v1/appointments", "appointments"},
		{"/api/v1/appointments/123", "appointments"},
		{"/api/v1/medical-conditions/abc/status", "medical-conditions"},
		{"/api/v1/", "unknown"},
		{"/other/path", "unknown"},
	}
	for _, tt := range tests {
		if got := extractResourceType(tt.path); got != tt.want {
			t.Errorf("extractResourceType(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestExtractResourceID_IgnoresNonUUID(t *testing.T) {
	c, _ := newTestContext(http.MethodGet, "/api/v1/records/search")
	c.SetParamNames("id")
	c.SetParamValues("search")
	if got := extractResourceID(c); got != "" {
		t.Errorf("expected empty resource id, got %q", got)
	}
}

func TestIsUUIDLike(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{uuid.New().String(), true},
		{"not-a-uuid", false},
		{"", false},
		{"12345678-1234-1234-1234-123456789012", true},
	}
	for _, tt := range tests {
		if got := isUUIDLike(tt.input); got != tt.want {
			t.Errorf("isUUIDLike(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestAuditRecorderFunc(t *testing.T) {
	var called bool
	fn := AuditRecorderFunc(func(entry AuditEntry) error {
		called = true
		return nil
	})

	if err := fn.RecordAccess(AuditEntry{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Error("expected function to be called")
	}
}
