package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/carebridge/clinic/internal/platform/apperr"
	"github.com/carebridge/clinic/internal/platform/auth"
)

// Recovery turns a handler panic into an internal apperr, so the caller gets
// the usual error envelope. The stack and the caller's identity go to the
// log only. http.ErrAbortHandler is re-raised for net/http to handle.
func Recovery(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				if r == http.ErrAbortHandler {
					panic(r)
				}
				req := c.Request()
				rid, _ := c.Get("request_id").(string)
				ev := logger.Error().
					Str("request_id", rid).
					Str("method", req.Method).
					Str("route", c.Path()).
					Interface("panic", r).
					Bytes("stack", debug.Stack())
				if p := auth.PrincipalFromContext(req.Context()); p != nil {
					ev = ev.Str("user_id", p.UserID.String()).Str("role", p.Role)
				}
				ev.Msg("handler panicked")

				err = apperr.Internal("unexpected server error", fmt.Errorf("panic: %v", r))
			}()
			return next(c)
		}
	}
}
