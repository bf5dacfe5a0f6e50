package appointment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/carebridge/clinic/internal/platform/apperr"
	"github.com/carebridge/clinic/internal/platform/auth"
	"github.com/carebridge/clinic/internal/platform/batch"
)

func newRequest(method, target, body string, p *auth.Principal) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	return req.WithContext(auth.WithPrincipal(context.Background(), p))
}

func TestHandler_Cancel(t *testing.T) {
	f := newFixture()
	a := f.seed(f.patientA, f.doctorA, StatusScheduled, fixedNow)
	h := NewHandler(f.svc)
	e := echo.New()

	rec := httptest.NewRecorder()
	c := e.NewContext(newRequest(http.MethodDelete, "/", "", patient(f.patientA)), rec)
	c.SetParamNames("id")
	c.SetParamValues(a.ID.String())

	if err := h.Cancel(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["message"] != "Appointment cancelled successfully" {
		t.Errorf("unexpected message %q", body["message"])
	}
}

func TestHandler_Get_InvalidID(t *testing.T) {
	f := newFixture()
	h := NewHandler(f.svc)
	e := echo.New()
	c := e.NewContext(newRequest(http.MethodGet, "/", "", admin()), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("abc")

	err := h.Get(c)
	if apperr.StatusCode(err) != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", apperr.StatusCode(err))
	}
}

func TestHandler_Search_BadParams(t *testing.T) {
	f := newFixture()
	h := NewHandler(f.svc)
	e := echo.New()
	for _, q := range []string{"?limit=0", "?limit=101", "?offset=-1", "?doctor_id=x", "?date_from=soon"} {
		c := e.NewContext(newRequest(http.MethodGet, "/"+q, "", admin()), httptest.NewRecorder())
		if err := h.Search(c); apperr.KindOf(err) != apperr.KindValidation {
			t.Errorf("%s: expected validation error, got %v", q, err)
		}
	}
}

func TestHandler_Search_DateRange(t *testing.T) {
	f := newFixture()
	f.seed(f.patientA, f.doctorA, StatusScheduled, fixedNow)
	f.seed(f.patientA, f.doctorA, StatusScheduled, fixedNow.AddDate(0, 1, 0))
	h := NewHandler(f.svc)
	e := echo.New()

	rec := httptest.NewRecorder()
	c := e.NewContext(newRequest(http.MethodGet, "/?date_from=2026-06-01&date_to=2026-06-30", "", admin()), rec)
	if err := h.Search(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var resp SearchResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Total != 1 || resp.Limit != 20 || resp.HasMore {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestHandler_Batch_AppointmentIDsKey(t *testing.T) {
	f := newFixture()
	a := f.seed(f.patientA, f.doctorA, StatusScheduled, fixedNow)
	h := NewHandler(f.svc)
	e := echo.New()

	body := `{"appointment_ids":["` + a.ID.String() + `"],"status":"confirmed"}`
	rec := httptest.NewRecorder()
	c := e.NewContext(newRequest(http.MethodPut, "/batch", body, doctor(f.doctorA)), rec)
	if err := h.Batch(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var res batch.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.UpdatedCount != 1 || res.FailedCount != 0 {
		t.Errorf("unexpected result %+v", res)
	}
	if f.repo.appts[a.ID].Status != StatusConfirmed {
		t.Errorf("status not applied")
	}
}

func TestHandler_Export(t *testing.T) {
	f := newFixture()
	f.seed(f.patientA, f.doctorA, StatusScheduled, fixedNow.Add(time.Hour))
	h := NewHandler(f.svc)
	e := echo.New()

	rec := httptest.NewRecorder()
	c := e.NewContext(newRequest(http.MethodGet, "/my/export", "", patient(f.patientA)), rec)
	if err := h.Export(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cd := rec.Header().Get(echo.HeaderContentDisposition); !strings.HasPrefix(cd, `attachment; filename="appointments_`) {
		t.Errorf("unexpected Content-Disposition %q", cd)
	}
}
