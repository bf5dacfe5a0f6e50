package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"
)

type header struct{ name, value string }

// Every response carries patient data or a patient document, so nothing is
// cached, framed or sniffed.
var baseHeaders = []header{
	{"X-Content-Type-Options", "nosniff"},
	{"X-Frame-Options", "DENY"},
	{"X-XSS-Protection", "0"},
	{"Strict-Transport-Security", "max-age=31536000; includeSubDomains"},
	{"Referrer-Policy", "no-referrer"},
	{"Permissions-Policy", "camera=(), microphone=(), geolocation=()"},
	{"Cache-Control", "no-store"},
}

const (
	apiCSP = "default-src 'none'; frame-ancestors 'none'"
	// uploaded scans and prescription PDFs render inline in the browser
	documentCSP = "default-src 'none'; img-src 'self'; object-src 'self'; frame-ancestors 'none'"
)

// SecurityHeaders hardens responses. Paths under filesPrefix get the
// document CSP; an empty prefix applies the API policy everywhere.
func SecurityHeaders(filesPrefix string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			for _, kv := range baseHeaders {
				h.Set(kv.name, kv.value)
			}
			h.Set("Content-Security-Policy", contentPolicy(c.Request().URL.Path, filesPrefix))
			return next(c)
		}
	}
}

func contentPolicy(path, filesPrefix string) string {
	if filesPrefix != "" && strings.HasPrefix(path, filesPrefix) {
		return documentCSP
	}
	return apiCSP
}
