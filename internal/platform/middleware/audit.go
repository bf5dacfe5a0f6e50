package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/carebridge/clinic/internal/platform/auth"
)

// AuditEntry records who touched which patient data and how.
type AuditEntry struct {
	UserID       string
	Role         string
	ResourceType string
	ResourceID   string
	PatientID    string
	Action       string // read, create, update, delete
	IPAddress    string
	UserAgent    string
	Path         string
	Method       string
	Timestamp    time.Time
	RequestID    string
	StatusCode   int
}

// AuditRecorder persists audit entries somewhere other than the log.
type AuditRecorder interface {
	RecordAccess(entry AuditEntry) error
}

type AuditRecorderFunc func(entry AuditEntry) error

func (f AuditRecorderFunc) RecordAccess(entry AuditEntry) error {
	return f(entry)
}

// Audit emits a phi_access log line for every /api/v1/ request after the
// handler has run, and forwards the entry to the optional recorder.
func Audit(logger zerolog.Logger, recorders ...AuditRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			path := req.URL.Path

			if !isAuditablePath(path) {
				return next(c)
			}

			err := next(c)

			entry := AuditEntry{
				Timestamp:    time.Now().UTC(),
				Path:         path,
				Method:       req.Method,
				IPAddress:    c.RealIP(),
				UserAgent:    req.UserAgent(),
				StatusCode:   responseStatus(c, err),
				Action:       httpMethodToAction(req.Method),
				ResourceType: extractResourceType(path),
				ResourceID:   extractResourceID(c),
				PatientID:    extractPatientID(c),
			}
			if p := auth.PrincipalFromContext(c.Request().Context()); p != nil {
				entry.UserID = p.UserID.String()
				entry.Role = p.Role
			}
			if rid, ok := c.Get("request_id").(string); ok {
				entry.RequestID = rid
			}

			for _, r := range recorders {
				if r == nil {
					continue
				}
				if recErr := r.RecordAccess(entry); recErr != nil {
					logger.Error().Err(recErr).
						Str("request_id", entry.RequestID).
						Msg("failed to record audit entry")
				}
			}

			logger.Info().
				Str("type", "phi_access").
				Str("request_id", entry.RequestID).
				Str("user_id", entry.UserID).
				Str("role", entry.Role).
				Str("resource", entry.ResourceType).
				Str("resource_id", entry.ResourceID).
				Str("patient_id", entry.PatientID).
				Str("action", entry.Action).
				Str("method", entry.Method).
				Str("path", entry.Path).
				Str("remote_ip", entry.IPAddress).
				Int("status", entry.StatusCode).
				Msg("phi_access")

			return err
		}
	}
}

func isAuditablePath(path string) bool {
	return strings.HasPrefix(path, "/api/v1/") && !strings.HasPrefix(path, "/api/v1/auth/")
}

func httpMethodToAction(method string) string {
	switch method {
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	default:
		return "read"
	}
}

// extractResourceType returns the first segment after /api/v1/, e.g.
// /api/v1/medical-conditions/123 -> medical-conditions.
func extractResourceType(path string) string {
	rest := strings.TrimPrefix(path, "/api/v1/")
	if rest == path {
		return "unknown"
	}
	if seg, _, _ := strings.Cut(rest, "/"); seg != "" {
		return seg
	}
	return "unknown"
}

func extractResourceID(c echo.Context) string {
	for _, name := range []string{"id", "attachment_id"} {
		if v := c.Param(name); isUUIDLike(v) {
			return v
		}
	}
	return ""
}

// extractPatientID finds the patient whose data the request touches: a
// :patient_id route param, a patient_id query filter, or the caller's own
// profile when the caller is a patient.
func extractPatientID(c echo.Context) string {
	if pid := c.Param("patient_id"); isUUIDLike(pid) {
		return pid
	}
	if pid := c.QueryParam("patient_id"); isUUIDLike(pid) {
		return pid
	}
	if p := auth.PrincipalFromContext(c.Request().Context()); p != nil && p.PatientID != nil {
		return p.PatientID.String()
	}
	return ""
}

func isUUIDLike(s string) bool {
	if s == "" {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}
