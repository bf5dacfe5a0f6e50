package auth

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/carebridge/clinic/internal/platform/apperr"
)

// revocationAdmin serves the admin-only endpoints that pull access tokens
// out of circulation before they expire.
type revocationAdmin struct {
	store RevocationStore
	ttl   time.Duration
	now   func() time.Time
}

type revokeTokenInput struct {
	JTI       string    `json:"jti"`
	ExpiresAt time.Time `json:"expires_at"`
	UserID    string    `json:"user_id,omitempty"`
}

type revokeUserInput struct {
	UserID string `json:"user_id"`
}

type userRevocation struct {
	UserID       string    `json:"user_id"`
	RevokedCount int       `json:"revoked_count"`
	RevokedAt    time.Time `json:"revoked_at"`
}

type revocationList struct {
	Count   int              `json:"count"`
	Entries []RevocationInfo `json:"entries"`
}

// RegisterRevocationRoutes mounts /auth/revoke, /auth/revoke-user and
// /auth/revocations under g for admins.
func RegisterRevocationRoutes(g *echo.Group, store RevocationStore, tokenTTL time.Duration) {
	h := &revocationAdmin{store: store, ttl: tokenTTL, now: time.Now}
	admin := g.Group("/auth", RequireRole(RoleAdmin))
	admin.POST("/revoke", h.revokeToken)
	admin.POST("/revoke-user", h.revokeUser)
	admin.GET("/revocations", h.list)
}

func (h *revocationAdmin) revokeToken(c echo.Context) error {
	var in revokeTokenInput
	if err := c.Bind(&in); err != nil {
		return apperr.Validation("Invalid request body")
	}
	if in.JTI == "" {
		return apperr.Validation("jti is required")
	}
	// A token never lives longer than the issuer's TTL, so that bounds
	// how long the entry has to be remembered.
	expires := in.ExpiresAt
	if expires.IsZero() {
		expires = h.now().Add(h.ttl)
	}
	if err := h.store.Revoke(c.Request().Context(), in.JTI, in.UserID, expires); err != nil {
		return apperr.Internal("revoke token", err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *revocationAdmin) revokeUser(c echo.Context) error {
	var in revokeUserInput
	if err := c.Bind(&in); err != nil {
		return apperr.Validation("Invalid request body")
	}
	if in.UserID == "" {
		return apperr.Validation("user_id is required")
	}
	at := h.now().UTC().Truncate(time.Second)
	n, err := h.store.RevokeAllForUser(c.Request().Context(), in.UserID, at)
	if err != nil {
		return apperr.Internal("revoke user tokens", err)
	}
	return c.JSON(http.StatusOK, userRevocation{UserID: in.UserID, RevokedCount: n, RevokedAt: at})
}

func (h *revocationAdmin) list(c echo.Context) error {
	entries, err := h.store.Entries(c.Request().Context())
	if err != nil {
		return apperr.Internal("list revocations", err)
	}
	return c.JSON(http.StatusOK, revocationList{Count: len(entries), Entries: entries})
}
