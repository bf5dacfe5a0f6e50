package identity

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/carebridge/clinic/internal/platform/apperr"
	"github.com/carebridge/clinic/internal/platform/auth"
)

type Handler struct {
	svc         *Service
	revocations auth.RevocationStore
}

func NewHandler(svc *Service, revocations auth.RevocationStore) *Handler {
	return &Handler{svc: svc, revocations: revocations}
}

// RegisterRoutes mounts /auth on api. mw applies to every auth route and is
// where the stricter auth rate limit goes.
func (h *Handler) RegisterRoutes(api *echo.Group, mw ...echo.MiddlewareFunc) {
	g := api.Group("/auth", mw...)
	g.POST("/login", h.Login)
	g.POST("/register/patient", h.RegisterPatient)
	g.POST("/register/doctor", h.RegisterDoctor)
	g.POST("/logout", h.Logout, auth.RequireAuth())
	g.GET("/me", h.Me, auth.RequireAuth())

	admin := g.Group("", auth.RequireRole(auth.RoleAdmin))
	admin.POST("/register/admin", h.RegisterAdmin)
}

func (h *Handler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request body")
	}
	resp, err := h.svc.Login(c.Request().Context(), &req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) RegisterPatient(c echo.Context) error {
	var req RegisterPatientRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request body")
	}
	resp, err := h.svc.RegisterPatient(c.Request().Context(), &req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) RegisterDoctor(c echo.Context) error {
	var req RegisterDoctorRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request body")
	}
	resp, err := h.svc.RegisterDoctor(c.Request().Context(), &req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) RegisterAdmin(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request body")
	}
	u, err := h.svc.RegisterAdmin(c.Request().Context(), &req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, u)
}

// Logout revokes the presented token until it would have expired anyway.
func (h *Handler) Logout(c echo.Context) error {
	ctx := c.Request().Context()
	claims := auth.ClaimsFromContext(ctx)
	if h.revocations != nil && claims != nil && claims.ID != "" {
		expiresAt := time.Now().Add(h.svc.tokens.TTL())
		if claims.ExpiresAt != nil {
			expiresAt = claims.ExpiresAt.Time
		}
		if err := h.revocations.Revoke(ctx, claims.ID, claims.Subject, expiresAt); err != nil {
			return apperr.Internal("revoke token", err)
		}
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Successfully logged out"})
}

func (h *Handler) Me(c echo.Context) error {
	p := auth.PrincipalFromContext(c.Request().Context())
	if p == nil || p.UserID == uuid.Nil {
		return apperr.Unauthorized("User not found")
	}
	u, err := h.svc.GetUser(c.Request().Context(), p.UserID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, u)
}
