package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
)

type contextKey string

const (
	UserIDKey    contextKey = "user_id"
	UserRolesKey contextKey = "user_roles"
	PrincipalKey contextKey = "principal"
	ClaimsKey    contextKey = "claims"
)

const (
	msgMissingHeader = "Authorization header missing or invalid"
	msgInvalidToken  = "Invalid or expired token"
	msgUserNotFound  = "User not found"
)

type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Role  string `json:"role"`
}

type JWTConfig struct {
	SigningKey []byte
	Algorithm  string
	Issuer     string

	Skipper     echomw.Skipper
	Revocations RevocationStore
	Resolver    PrincipalResolver
}

// JWTMiddleware authenticates the bearer token and stores the resolved
// Principal in the request context. It fails closed on every error path.
func JWTMiddleware(cfg JWTConfig) echo.MiddlewareFunc {
	alg := cfg.Algorithm
	if alg == "" {
		alg = "HS256"
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{alg}),
		jwt.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if cfg.Skipper != nil && cfg.Skipper(c) {
				return next(c)
			}

			authHeader := c.Request().Header.Get("Authorization")
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, msgMissingHeader)
			}

			claims := &Claims{}
			token, err := jwt.ParseWithClaims(strings.TrimSpace(parts[1]), claims, func(t *jwt.Token) (interface{}, error) {
				return cfg.SigningKey, nil
			}, opts...)
			if err != nil || !token.Valid {
				return echo.NewHTTPError(http.StatusUnauthorized, msgInvalidToken)
			}

			userID, err := uuid.Parse(claims.Subject)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, msgInvalidToken)
			}

			ctx := c.Request().Context()
			if cfg.Revocations != nil {
				revoked, err := isRevoked(ctx, cfg.Revocations, claims)
				if err != nil {
					return err
				}
				if revoked {
					return echo.NewHTTPError(http.StatusUnauthorized, msgInvalidToken)
				}
			}

			principal := &Principal{UserID: userID, Email: claims.Email, Role: claims.Role}
			if cfg.Resolver != nil {
				principal, err = cfg.Resolver.ResolvePrincipal(ctx, userID)
				if errors.Is(err, ErrPrincipalNotFound) || (err == nil && principal == nil) {
					return echo.NewHTTPError(http.StatusUnauthorized, msgUserNotFound)
				}
				if err != nil {
					return err
				}
			}

			ctx = WithPrincipal(ctx, principal)
			ctx = context.WithValue(ctx, ClaimsKey, claims)
			c.SetRequest(c.Request().WithContext(ctx))
			c.Set("user_id", principal.UserID.String())

			return next(c)
		}
	}
}

func isRevoked(ctx context.Context, store RevocationStore, claims *Claims) (bool, error) {
	if claims.ID != "" {
		revoked, err := store.IsRevoked(ctx, claims.ID)
		if err != nil || revoked {
			return revoked, err
		}
	}
	cutoff, ok, err := store.UserCutoff(ctx, claims.Subject)
	if err != nil || !ok {
		return false, err
	}
	if claims.IssuedAt == nil {
		return true, nil
	}
	return !claims.IssuedAt.Time.After(cutoff), nil
}

func UserIDFromContext(ctx context.Context) string {
	uid, _ := ctx.Value(UserIDKey).(string)
	return uid
}

func RolesFromContext(ctx context.Context) []string {
	roles, _ := ctx.Value(UserRolesKey).([]string)
	return roles
}

func ClaimsFromContext(ctx context.Context) *Claims {
	claims, _ := ctx.Value(ClaimsKey).(*Claims)
	return claims
}
