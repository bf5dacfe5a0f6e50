package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

func contextWithRole(role string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if role != "" {
		req = req.WithContext(WithPrincipal(req.Context(), &Principal{UserID: uuid.New(), Role: role}))
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func okHandler(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func TestRequireRole_Allowed(t *testing.T) {
	c, rec := contextWithRole(RoleDoctor)
	if err := RequireRole(RoleDoctor)(okHandler)(c); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestRequireRole_Denied(t *testing.T) {
	c, _ := contextWithRole(RolePatient)
	err := RequireRole(RoleDoctor)(okHandler)(c)
	expectStatus(t, err, http.StatusForbidden, "required role: doctor")
}

func TestRequireRole_AdminBypass(t *testing.T) {
	c, rec := contextWithRole(RoleAdmin)
	if err := RequireRole(RolePatient)(okHandler)(c); err != nil {
		t.Errorf("expected admin to pass, got %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestRequireRole_MultipleRoles(t *testing.T) {
	c, _ := contextWithRole(RolePatient)
	err := RequireRole(RoleDoctor, RoleAdmin)(okHandler)(c)
	expectStatus(t, err, http.StatusForbidden, "required role: doctor or admin")
}

func TestRequireRole_Unauthenticated(t *testing.T) {
	c, _ := contextWithRole("")
	err := RequireRole(RolePatient)(okHandler)(c)
	expectStatus(t, err, http.StatusUnauthorized, "")
}

func TestRequireAuth(t *testing.T) {
	c, _ := contextWithRole("")
	expectStatus(t, RequireAuth()(okHandler)(c), http.StatusUnauthorized, "")

	c, _ = contextWithRole(RolePatient)
	if err := RequireAuth()(okHandler)(c); err != nil {
		t.Errorf("expected authenticated request to pass, got %v", err)
	}
}

func TestValidRole(t *testing.T) {
	for _, r := range []string{RolePatient, RoleDoctor, RoleAdmin} {
		if !ValidRole(r) {
			t.Errorf("expected %s to be valid", r)
		}
	}
	for _, r := range []string{"", "system_admin", "nurse"} {
		if ValidRole(r) {
			t.Errorf("expected %q to be invalid", r)
		}
	}
}
