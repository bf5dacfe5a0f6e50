package auth

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// publicPaths lists route patterns reachable without a bearer token.
var publicPaths = map[string]bool{
	"/health":                             true,
	"/health/db":                          true,
	"/files/*":                            true,
	"/api/v1/auth/login":                  true,
	"/api/v1/auth/register/patient":       true,
	"/api/v1/auth/register/doctor":        true,
	"/api/v1/profiles/doctors/search":     true,
	"/api/v1/profiles/doctors/:doctor_id": true,
}

// AuthSkipper returns true for requests that bypass authentication: public
// routes and CORS preflight.
func AuthSkipper(c echo.Context) bool {
	if c.Request().Method == http.MethodOptions {
		return true
	}
	return publicPaths[c.Path()]
}

func IsPublicPath(path string) bool {
	return publicPaths[path]
}
